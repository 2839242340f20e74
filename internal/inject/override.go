package inject

import "context"

type binding struct {
	key   *slotKey
	value any
}

// Override is an ordered set of slot bindings applied together around one
// invocation. The zero value binds nothing.
type Override struct {
	bindings []binding
}

// Compose merges overrides into one. Compose(a, b, c) wraps a handler as
// a(b(c(handler))): a is outermost, and when several of them bind the same
// slot the leftmost binding is the one the handler sees.
func Compose(overrides ...Override) Override {
	var n int
	for _, o := range overrides {
		n += len(o.bindings)
	}
	merged := make([]binding, 0, n)
	for _, o := range overrides {
		merged = append(merged, o.bindings...)
	}
	return Override{bindings: merged}
}

// Len returns the number of bindings, duplicates included.
func (o Override) Len() int {
	return len(o.bindings)
}

// Apply derives a context carrying the bindings. ctx itself is not modified.
func (o Override) Apply(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	seen := make(map[*slotKey]struct{}, len(o.bindings))
	for _, b := range o.bindings {
		if _, dup := seen[b.key]; dup {
			continue
		}
		seen[b.key] = struct{}{}
		ctx = context.WithValue(ctx, b.key, b.value)
	}
	return ctx
}

// Run calls fn once with the bindings applied.
func (o Override) Run(ctx context.Context, fn func(context.Context) error) error {
	return fn(o.Apply(ctx))
}

// Handler is any single-payload function that takes a context first.
type Handler[P, R any] func(ctx context.Context, payload P) (R, error)

// Wrap returns a handler with the same signature as h that runs h under o.
func Wrap[P, R any](o Override, h Handler[P, R]) Handler[P, R] {
	return func(ctx context.Context, payload P) (R, error) {
		return h(o.Apply(ctx), payload)
	}
}
