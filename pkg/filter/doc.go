// Package filter provides the accumulative pipeline engine behind Open edX
// filters.
//
// A filter is a named extension point inside host business logic. Call sites
// declare the extension point's type (a reverse-DNS identifier such as
// "org.openedx.learning.course.enrollment.started.v1") and the named
// arguments it exposes. Operators configure, per filter type, an ordered list
// of pipeline steps; the Runner resolves and executes them in order, threading
// a single accumulating argument bag through every step.
//
// # Step Contract
//
// Steps receive the accumulated bag and return a StepOutput:
//
//   - Continue(updates): merge updates into the bag and run the next step.
//     Later steps win on conflicting keys. A zero StepOutput is equivalent
//     to Continue(nil).
//   - Stop(value): terminate the pipeline immediately and hand value back to
//     the caller as the overall result. Remaining steps never run.
//
// A step may also fail. A *TerminationError halts the guarded business
// operation and always propagates to the caller, carrying a message plus
// arbitrary named attributes (redirect URLs, status codes, custom responses).
// Any other error is governed by the pipeline's fail_silently policy: logged
// and skipped when true, propagated when false.
//
// # Configuration
//
// Pipeline configuration is read fresh on every Run through an injected
// config.Source, so concurrent invocations may observe different
// configurations while one is being rolled out. Step references are resolved
// through an injected Resolver, typically the registry package's compile-time
// step registry.
package filter
