package filter

// Bag is the argument bag threaded through a pipeline. Keys are parameter
// names; values are arbitrary. The engine never removes keys, it only adds or
// overwrites them with step results.
type Bag map[string]any

// Clone returns a shallow copy of the bag. Cloning a nil bag returns an
// empty, non-nil bag.
func (b Bag) Clone() Bag {
	out := make(Bag, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Merge copies every key from updates into the bag, overwriting existing
// keys. Merging a nil or empty bag is a no-op.
func (b Bag) Merge(updates Bag) {
	for k, v := range updates {
		b[k] = v
	}
}

// Value returns the value stored under key asserted to T.
func Value[T any](b Bag, key string) (T, bool) {
	v, ok := b[key].(T)
	return v, ok
}

// ValueOr returns the value stored under key asserted to T, or fallback when
// the key is absent or holds a different type. Typed filter wrappers use it
// to extract their declared results from the accumulated bag.
func ValueOr[T any](b Bag, key string, fallback T) T {
	if v, ok := b[key].(T); ok {
		return v
	}
	return fallback
}
