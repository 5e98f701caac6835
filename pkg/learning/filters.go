// Package learning defines the filter call sites of the learning subdomain:
// typed wrappers around the pipeline runner, one per extension point, each
// with its family of termination errors.
package learning

import (
	"context"

	"github.com/openedx/openedx-filters/pkg/filter"
)

// Filter types owned by the learning subdomain.
const (
	CourseEnrollmentStartedType      = "org.openedx.learning.course.enrollment.started.v1"
	CourseUnenrollmentStartedType    = "org.openedx.learning.course.unenrollment.started.v1"
	CertificateCreationRequestedType = "org.openedx.learning.certificate.creation.requested.v1"
	CourseAboutRenderStartedType     = "org.openedx.learning.course_about.render.started.v1"
	StudentLoginRequestedType        = "org.openedx.learning.student.login.requested.v1"
	StudentRegistrationRequestedType = "org.openedx.learning.student.registration.requested.v1"
)

// CourseEnrollmentStarted runs when a user initiates enrollment in a course.
// Configured steps see and may rewrite the user, course key, and mode; a step
// raises PreventEnrollmentError to stop the enrollment entirely.
type CourseEnrollmentStarted struct {
	def    filter.Definition
	runner *filter.Runner
}

// NewCourseEnrollmentStarted binds the filter to a runner.
func NewCourseEnrollmentStarted(runner *filter.Runner) *CourseEnrollmentStarted {
	return &CourseEnrollmentStarted{
		def:    filter.Definition{Type: CourseEnrollmentStartedType},
		runner: runner,
	}
}

// PreventEnrollmentError halts the enrollment process.
type PreventEnrollmentError struct{ *filter.TerminationError }

// NewPreventEnrollment creates a PreventEnrollmentError with the given
// message.
func NewPreventEnrollment(message string) *PreventEnrollmentError {
	return &PreventEnrollmentError{filter.NewTermination(message)}
}

// Unwrap exposes the underlying termination error to errors.As.
func (e *PreventEnrollmentError) Unwrap() error { return e.TerminationError }

// RunFilter executes the configured pipeline and returns the possibly
// modified user, course key, and mode.
func (f *CourseEnrollmentStarted) RunFilter(ctx context.Context, user UserData, courseKey, mode string) (UserData, string, string, error) {
	res, err := f.def.Run(ctx, f.runner, filter.Bag{
		"user":       user,
		"course_key": courseKey,
		"mode":       mode,
	})
	if err != nil {
		return user, courseKey, mode, err
	}
	return filter.ValueOr(res.Bag, "user", user),
		filter.ValueOr(res.Bag, "course_key", courseKey),
		filter.ValueOr(res.Bag, "mode", mode),
		nil
}

// CourseUnenrollmentStarted runs when a user starts unenrolling from a
// course.
type CourseUnenrollmentStarted struct {
	def    filter.Definition
	runner *filter.Runner
}

// NewCourseUnenrollmentStarted binds the filter to a runner.
func NewCourseUnenrollmentStarted(runner *filter.Runner) *CourseUnenrollmentStarted {
	return &CourseUnenrollmentStarted{
		def:    filter.Definition{Type: CourseUnenrollmentStartedType},
		runner: runner,
	}
}

// PreventUnenrollmentError halts the unenrollment process.
type PreventUnenrollmentError struct{ *filter.TerminationError }

// NewPreventUnenrollment creates a PreventUnenrollmentError.
func NewPreventUnenrollment(message string) *PreventUnenrollmentError {
	return &PreventUnenrollmentError{filter.NewTermination(message)}
}

func (e *PreventUnenrollmentError) Unwrap() error { return e.TerminationError }

// RunFilter executes the configured pipeline against the enrollment.
func (f *CourseUnenrollmentStarted) RunFilter(ctx context.Context, enrollment CourseEnrollmentData) (CourseEnrollmentData, error) {
	res, err := f.def.Run(ctx, f.runner, filter.Bag{"enrollment": enrollment})
	if err != nil {
		return enrollment, err
	}
	return filter.ValueOr(res.Bag, "enrollment", enrollment), nil
}

// CertificateCreationRequested runs when a certificate generation is
// requested for a user.
type CertificateCreationRequested struct {
	def    filter.Definition
	runner *filter.Runner
}

// NewCertificateCreationRequested binds the filter to a runner.
func NewCertificateCreationRequested(runner *filter.Runner) *CertificateCreationRequested {
	return &CertificateCreationRequested{
		def:    filter.Definition{Type: CertificateCreationRequestedType},
		runner: runner,
	}
}

// PreventCertificateCreationError halts certificate generation.
type PreventCertificateCreationError struct{ *filter.TerminationError }

// NewPreventCertificateCreation creates a PreventCertificateCreationError.
func NewPreventCertificateCreation(message string) *PreventCertificateCreationError {
	return &PreventCertificateCreationError{filter.NewTermination(message)}
}

func (e *PreventCertificateCreationError) Unwrap() error { return e.TerminationError }

// RunFilter executes the configured pipeline and returns the possibly
// modified certificate inputs.
func (f *CertificateCreationRequested) RunFilter(ctx context.Context, user UserData, courseKey, mode, status string) (UserData, string, string, string, error) {
	res, err := f.def.Run(ctx, f.runner, filter.Bag{
		"user":       user,
		"course_key": courseKey,
		"mode":       mode,
		"status":     status,
	})
	if err != nil {
		return user, courseKey, mode, status, err
	}
	return filter.ValueOr(res.Bag, "user", user),
		filter.ValueOr(res.Bag, "course_key", courseKey),
		filter.ValueOr(res.Bag, "mode", mode),
		filter.ValueOr(res.Bag, "status", status),
		nil
}

// CourseAboutRenderStarted runs before the course about page renders. Its
// termination errors carry per-case attributes: a redirect URL, an alternate
// template, or a ready-made response.
type CourseAboutRenderStarted struct {
	def    filter.Definition
	runner *filter.Runner
}

// NewCourseAboutRenderStarted binds the filter to a runner.
func NewCourseAboutRenderStarted(runner *filter.Runner) *CourseAboutRenderStarted {
	return &CourseAboutRenderStarted{
		def:    filter.Definition{Type: CourseAboutRenderStartedType},
		runner: runner,
	}
}

// RedirectToPageError redirects the user before the page renders.
type RedirectToPageError struct{ *filter.TerminationError }

// NewRedirectToPage creates a RedirectToPageError pointing at redirectTo.
func NewRedirectToPage(message, redirectTo string) *RedirectToPageError {
	return &RedirectToPageError{filter.NewTermination(message).WithRedirect(redirectTo)}
}

func (e *RedirectToPageError) Unwrap() error { return e.TerminationError }

// RenderInvalidCourseAboutError renders an alternate template instead of the
// course about page.
type RenderInvalidCourseAboutError struct{ *filter.TerminationError }

// NewRenderInvalidCourseAbout creates a RenderInvalidCourseAboutError with
// the alternate template and its context.
func NewRenderInvalidCourseAbout(message, template string, templateContext map[string]any) *RenderInvalidCourseAboutError {
	term := filter.NewTermination(message).
		WithAttr("course_about_template", template).
		WithAttr("template_context", templateContext)
	return &RenderInvalidCourseAboutError{term}
}

func (e *RenderInvalidCourseAboutError) Unwrap() error { return e.TerminationError }

// RenderCustomResponseError returns a caller-provided response instead of
// rendering the page.
type RenderCustomResponseError struct{ *filter.TerminationError }

// NewRenderCustomResponse creates a RenderCustomResponseError wrapping the
// response to hand back.
func NewRenderCustomResponse(message string, response any) *RenderCustomResponseError {
	return &RenderCustomResponseError{filter.NewTermination(message).WithAttr("response", response)}
}

func (e *RenderCustomResponseError) Unwrap() error { return e.TerminationError }

// RunFilter executes the configured pipeline and returns the possibly
// modified template context and template name.
func (f *CourseAboutRenderStarted) RunFilter(ctx context.Context, templateContext map[string]any, templateName string) (map[string]any, string, error) {
	res, err := f.def.Run(ctx, f.runner, filter.Bag{
		"context":       templateContext,
		"template_name": templateName,
	})
	if err != nil {
		return templateContext, templateName, err
	}
	return filter.ValueOr(res.Bag, "context", templateContext),
		filter.ValueOr(res.Bag, "template_name", templateName),
		nil
}
