package learning

import (
	"context"

	"github.com/openedx/openedx-filters/pkg/filter"
)

// sensitiveFormFields are registration form keys that must never reach
// pipeline steps. They are stripped before the pipeline runs and restored
// verbatim on the result.
var sensitiveFormFields = []string{
	"password",
	"newpassword",
	"new_password",
	"oldpassword",
	"old_password",
	"new_password1",
	"new_password2",
}

// StudentLoginRequested runs when a user attempts to log in.
type StudentLoginRequested struct {
	def    filter.Definition
	runner *filter.Runner
}

// NewStudentLoginRequested binds the filter to a runner.
func NewStudentLoginRequested(runner *filter.Runner) *StudentLoginRequested {
	return &StudentLoginRequested{
		def:    filter.Definition{Type: StudentLoginRequestedType},
		runner: runner,
	}
}

// PreventLoginError halts the login process. Beyond the message it can carry
// a redirect URL, a machine-readable error code, and arbitrary context for
// the login view.
type PreventLoginError struct{ *filter.TerminationError }

// NewPreventLogin creates a PreventLoginError.
func NewPreventLogin(message, redirectTo, errorCode string, context map[string]any) *PreventLoginError {
	term := filter.NewTermination(message).WithRedirect(redirectTo).
		WithAttr("error_code", errorCode)
	if context != nil {
		term.WithAttr("context", context)
	}
	return &PreventLoginError{term}
}

func (e *PreventLoginError) Unwrap() error { return e.TerminationError }

// ErrorCode returns the machine-readable code attached at raise time.
func (e *PreventLoginError) ErrorCode() string {
	code, _ := e.Attr("error_code")
	s, _ := code.(string)
	return s
}

// RunFilter executes the configured pipeline and returns the possibly
// modified user.
func (f *StudentLoginRequested) RunFilter(ctx context.Context, user UserData) (UserData, error) {
	res, err := f.def.Run(ctx, f.runner, filter.Bag{"user": user})
	if err != nil {
		return user, err
	}
	return filter.ValueOr(res.Bag, "user", user), nil
}

// StudentRegistrationRequested runs when a user submits the registration
// form. Password fields are stripped from the pipeline's view and restored
// afterwards, so steps can rewrite the rest of the form but never see or
// alter credentials.
type StudentRegistrationRequested struct {
	def    filter.Definition
	runner *filter.Runner
}

// NewStudentRegistrationRequested binds the filter to a runner.
func NewStudentRegistrationRequested(runner *filter.Runner) *StudentRegistrationRequested {
	return &StudentRegistrationRequested{
		def: filter.Definition{
			Type:      StudentRegistrationRequestedType,
			Sensitive: sensitiveFormFields,
		},
		runner: runner,
	}
}

// PreventRegistrationError halts the registration process.
type PreventRegistrationError struct{ *filter.TerminationError }

// NewPreventRegistration creates a PreventRegistrationError.
func NewPreventRegistration(message string) *PreventRegistrationError {
	return &PreventRegistrationError{filter.NewTermination(message)}
}

func (e *PreventRegistrationError) Unwrap() error { return e.TerminationError }

// RunFilter executes the configured pipeline against the registration form
// data and returns it with sensitive fields restored.
func (f *StudentRegistrationRequested) RunFilter(ctx context.Context, formData filter.Bag) (filter.Bag, error) {
	res, err := f.def.RunProtected(ctx, f.runner, "form_data", filter.Bag{"form_data": formData})
	if err != nil {
		return formData, err
	}
	return filter.ValueOr(res.Bag, "form_data", formData), nil
}
