package forge

import "context"

// Next invokes the remainder of the middleware chain, terminating in the
// operation's own Forge.
type Next func(ctx context.Context, input any) (any, error)

// Middleware wraps a single operation invocation. Implementations must
// propagate ctx cancellation and should be stateless; the smith composes
// the registered list outermost-first.
type Middleware interface {
	Execute(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error)
}

// MiddlewareFunc adapts a plain function to Middleware.
type MiddlewareFunc func(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error)

func (fn MiddlewareFunc) Execute(ctx context.Context, op Operation, f *Foundry, input any, next Next) (any, error) {
	return fn(ctx, op, f, input, next)
}

// buildPipeline composes mw around terminal, binding op/f into every link
// so each middleware sees the operation and foundry currently executing.
func buildPipeline(mw []Middleware, op Operation, f *Foundry, terminal Next) Next {
	next := terminal
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		captured := next
		next = func(ctx context.Context, input any) (any, error) {
			return m.Execute(ctx, op, f, input, captured)
		}
	}
	return next
}
