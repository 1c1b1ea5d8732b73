package authcore

import "context"

type clientIPContextKey struct{}

type userAgentContextKey struct{}

// WithClientIP attaches the caller's source IP to the context so it
// lands on audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the caller's user agent to the context so it
// lands on audit events.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, ua)
}

func clientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPContextKey{}).(string); ok {
		return v
	}
	return ""
}

func userAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userAgentContextKey{}).(string); ok {
		return v
	}
	return ""
}
