package dawnwire

import (
	"context"

	"github.com/broady/dawnwire/wiregen/ir"
)

// Call is one decoded command as seen by server handlers.
type Call struct {
	Command *ir.CommandType

	// Self is the object the command was issued on. It is nil for declared
	// commands.
	Self any

	// Args holds the input values after self, in member order. For declared
	// commands it holds every member value.
	Args []any

	// Result is the handle the client reserved for the produced object, or
	// the zero handle when the command produces none.
	Result ObjectHandle
}

// Name returns the canonical command name.
func (c *Call) Name() string { return c.Command.Name.Canonical() }

// HandlerFunc executes a command. The returned value becomes the server side
// object for Call.Result.
type HandlerFunc func(ctx context.Context, call *Call) (res any, err error)

// Interceptor wraps command execution.
//
//	func timing(ctx context.Context, call *dawnwire.Call, next dawnwire.HandlerFunc) (any, error) {
//	    start := time.Now()
//	    res, err := next(ctx, call)
//	    log.Printf("%s took %v", call.Name(), time.Since(start))
//	    return res, err
//	}
//
// Interceptors can inspect the call, short-circuit by returning an error
// without calling next, or add values to the context.
type Interceptor func(ctx context.Context, call *Call, next HandlerFunc) (res any, err error)

// chainInterceptors combines multiple interceptors into a single one.
// The first interceptor in the slice is the outer-most one (runs first).
func chainInterceptors(interceptors []Interceptor) Interceptor {
	if len(interceptors) == 0 {
		return nil
	}
	if len(interceptors) == 1 {
		return interceptors[0]
	}
	return func(ctx context.Context, call *Call, handler HandlerFunc) (any, error) {
		// Chain: i[0] -> i[1] -> ... -> handler
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			current := interceptors[i]
			next := chain
			chain = func(ctx context.Context, call *Call) (any, error) {
				return current(ctx, call, next)
			}
		}
		return chain(ctx, call)
	}
}

// wrap applies interceptor around handler.
func wrap(handler HandlerFunc, interceptor Interceptor) HandlerFunc {
	if interceptor == nil {
		return handler
	}
	return func(ctx context.Context, call *Call) (any, error) {
		return interceptor(ctx, call, handler)
	}
}
