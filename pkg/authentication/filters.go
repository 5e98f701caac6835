// Package authentication defines the filter call sites of the authentication
// subdomain.
package authentication

import (
	"context"

	"github.com/openedx/openedx-filters/pkg/filter"
)

// SessionJWTCreationRequestedType identifies the JWT payload filter.
const SessionJWTCreationRequestedType = "org.openedx.authentication.session.jwt.creation.requested.v1"

// SessionJWTCreationRequested runs when a session JWT is about to be issued,
// letting configured steps enrich the token payload.
type SessionJWTCreationRequested struct {
	def    filter.Definition
	runner *filter.Runner
}

// NewSessionJWTCreationRequested binds the filter to a runner.
func NewSessionJWTCreationRequested(runner *filter.Runner) *SessionJWTCreationRequested {
	return &SessionJWTCreationRequested{
		def:    filter.Definition{Type: SessionJWTCreationRequestedType},
		runner: runner,
	}
}

// RunFilter executes the configured pipeline and returns the possibly
// extended payload along with the user it was built for.
func (f *SessionJWTCreationRequested) RunFilter(ctx context.Context, payload map[string]any, user any) (map[string]any, any, error) {
	res, err := f.def.Run(ctx, f.runner, filter.Bag{
		"payload": payload,
		"user":    user,
	})
	if err != nil {
		return payload, user, err
	}
	return filter.ValueOr(res.Bag, "payload", payload), res.Bag["user"], nil
}
