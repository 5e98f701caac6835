// Package registry maps step references to step factories.
//
// Operator configuration identifies pipeline steps by opaque string
// references. This package is the compile-time counterpart of a dynamic
// import-by-name resolver: step implementations register themselves under a
// stable reference, and the filter runner resolves configured references
// through a Registry.
//
// Step packages typically register from init() or from an explicit
// RegisterBuiltins-style function called by the host before wiring a runner.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/openedx/openedx-filters/pkg/filter"
)

// ErrUnknownStep is returned when a reference has no registered step.
var ErrUnknownStep = errors.New("unknown step reference")

// Registry is a thread-safe mapping from step reference to step factory.
// The zero value is not usable; call New.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]filter.StepFactory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{factories: make(map[string]filter.StepFactory)}
}

// Register registers a step factory under ref. Panics on an empty reference,
// a nil factory, or a duplicate registration: all three are programming
// errors in the registering package.
func (r *Registry) Register(ref string, factory filter.StepFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref == "" {
		panic("step reference cannot be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("step %q must have a factory", ref))
	}
	if _, exists := r.factories[ref]; exists {
		panic(fmt.Sprintf("step %q already registered", ref))
	}

	r.factories[ref] = factory
}

// RegisterFunc registers a plain-function step under ref. The function
// ignores construction metadata.
func (r *Registry) RegisterFunc(ref string, fn filter.StepFunc) {
	step := filter.FuncStep(ref, fn)
	r.Register(ref, func(filter.Metadata) (filter.Step, error) {
		return step, nil
	})
}

// Resolve implements filter.Resolver.
func (r *Registry) Resolve(ref string) (filter.StepFactory, error) {
	r.mu.RLock()
	factory, ok := r.factories[ref]
	r.mu.RUnlock()

	if !ok {
		return nil, &filter.ResolutionError{Ref: ref, Err: ErrUnknownStep}
	}
	return factory, nil
}

// Refs returns the registered references in sorted order.
func (r *Registry) Refs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refs := make([]string, 0, len(r.factories))
	for ref := range r.factories {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Default is the process-wide registry used by package-level registration.
var Default = New()

// Register registers a step factory in the default registry.
func Register(ref string, factory filter.StepFactory) {
	Default.Register(ref, factory)
}

// RegisterFunc registers a plain-function step in the default registry.
func RegisterFunc(ref string, fn filter.StepFunc) {
	Default.RegisterFunc(ref, fn)
}

var _ filter.Resolver = (*Registry)(nil)
