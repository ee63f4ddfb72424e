package gastronomy

import "context"

type clientAddressContextKey struct{}

// WithClientAddress attaches the caller's address to ctx. The Engine copies it
// into audit events.
func WithClientAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddressContextKey{}, addr)
}

// ClientAddressFromContext returns the address set by WithClientAddress.
func ClientAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	addr, _ := ctx.Value(clientAddressContextKey{}).(string)
	return addr
}
