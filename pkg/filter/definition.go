package filter

import "context"

// Definition describes one filter call site: its stable type identifier and,
// optionally, argument keys whose values must never reach pipeline steps.
// Typed wrappers (pkg/learning, pkg/authentication) embed a Definition and
// expose strongly typed run methods on top of it.
type Definition struct {
	// Type is the reverse-DNS filter type, e.g.
	// "org.openedx.learning.student.registration.requested.v1".
	Type string

	// Sensitive lists top-level keys of one bag-valued argument that are
	// stripped before the pipeline runs and restored verbatim afterwards.
	Sensitive []string
}

// Run executes the filter's pipeline against args.
func (d Definition) Run(ctx context.Context, r *Runner, args Bag) (Result, error) {
	return r.Run(ctx, d.Type, args)
}

// RunProtected executes the filter's pipeline with the Sensitive keys of the
// bag stored under key stripped from the pipeline's view. Whatever the
// pipeline returns for that key, the stripped values are overlaid back on
// top, so steps can neither read nor mutate them.
func (d Definition) RunProtected(ctx context.Context, r *Runner, key string, args Bag) (Result, error) {
	inner, _ := args[key].(Bag)
	if len(d.Sensitive) == 0 || inner == nil {
		return d.Run(ctx, r, args)
	}

	stripped := inner.Clone()
	sensitive := make(Bag)
	for _, k := range d.Sensitive {
		if v, ok := stripped[k]; ok {
			sensitive[k] = v
			delete(stripped, k)
		}
	}

	outer := args.Clone()
	outer[key] = stripped

	res, err := d.Run(ctx, r, outer)
	if err != nil {
		return res, err
	}

	restored, _ := res.Bag[key].(Bag)
	restored = restored.Clone()
	restored.Merge(sensitive)

	res.Bag = res.Bag.Clone()
	res.Bag[key] = restored
	return res, nil
}
