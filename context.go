package dawnwire

import "context"

type contextKey struct {
	name string
}

var callKey = &contextKey{"call"}

// CallFromContext returns the command being executed by a Server.
func CallFromContext(ctx context.Context) (*Call, bool) {
	call, ok := ctx.Value(callKey).(*Call)
	return call, ok
}

// CommandFromContext returns the canonical name of the command being executed.
func CommandFromContext(ctx context.Context) (string, bool) {
	if call, ok := CallFromContext(ctx); ok {
		return call.Name(), true
	}
	return "", false
}

func newCallContext(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, callKey, call)
}
