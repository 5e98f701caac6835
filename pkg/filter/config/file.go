package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filter types are dotted identifiers, so the koanf key delimiter must be
// something that never appears in one.
const keyDelim = "::"

// envPrefix is the prefix for environment variable overrides. Variables are
// mapped OPENEDX_FILTERS_LOG_LEVEL -> "filters_log_level"; "__" nests.
const envPrefix = "OPENEDX_"

// FileSource reads filter configuration from a YAML file, with environment
// variable overrides. The expected layout is:
//
//	filters:
//	  org.openedx.learning.course.enrollment.started.v1:
//	    fail_silently: false
//	    pipeline:
//	      - openedx.steps.webhook
//	log_level: info
//
// Lookups read from the last loaded snapshot; Watch reloads the snapshot
// whenever the file changes, so in-flight pipeline runs keep the
// configuration they started with while new runs observe the update.
type FileSource struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	k  *koanf.Koanf
}

// NewFileSource loads the configuration file at path. A nil logger falls
// back to slog.Default.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileSource{path: path, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSource) load() error {
	k := koanf.New(keyDelim)

	if err := k.Load(file.Provider(s.path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config from %s: %w", s.path, err)
	}

	if err := k.Load(env.Provider(envPrefix, keyDelim, func(key string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", keyDelim)
	}), nil); err != nil {
		return fmt.Errorf("load env overrides: %w", err)
	}

	s.mu.Lock()
	s.k = k
	s.mu.Unlock()

	s.logger.Info("filter config loaded", slog.String("path", s.path))
	return nil
}

// Lookup implements Source against the current snapshot.
func (s *FileSource) Lookup(filterType string) (PipelineConfig, error) {
	s.mu.RLock()
	raw := s.k.Get("filters" + keyDelim + filterType)
	s.mu.RUnlock()

	return Normalize(raw)
}

// FilterTypes returns the filter types present in the current snapshot.
func (s *FileSource) FilterTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.k.Get("filters").(map[string]any)
	if !ok {
		return nil
	}
	types := make([]string, 0, len(raw))
	for t := range raw {
		types = append(types, t)
	}
	return types
}

// Watch reloads the configuration whenever the file is written, until ctx is
// canceled. Reload failures keep the previous snapshot.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}

	s.logger.Info("watching filter config for changes", slog.String("path", s.path))

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write != fsnotify.Write {
					continue
				}
				if err := s.load(); err != nil {
					s.logger.Error("failed to reload filter config",
						slog.String("path", s.path),
						slog.String("error", err.Error()))
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("config watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}
