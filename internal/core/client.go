package core

import "context"

// ClientInfo identifies who triggered an import. It is stored with the
// import history entry.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

type clientKey struct{}

// WithClient attaches client details to ctx.
func WithClient(ctx context.Context, c ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

// ClientFromContext returns the client attached by WithClient, or the zero value.
func ClientFromContext(ctx context.Context) ClientInfo {
	c, _ := ctx.Value(clientKey{}).(ClientInfo)
	return c
}
