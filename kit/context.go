package kit

import (
	"context"
	"log/slog"
)

// Caller describes who invoked an endpoint. Transport is "http", "mcp",
// "mcp_quic" or "cli".
type Caller struct {
	Transport  string
	RequestID  string
	RemoteAddr string
}

type callerKey struct{}

// CallerFrom returns the caller stored in ctx. Transport defaults to "http".
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	if c.Transport == "" {
		c.Transport = "http"
	}
	return c
}

// WithCaller stores c in ctx, replacing any previous caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func update(ctx context.Context, fn func(*Caller)) context.Context {
	c, _ := ctx.Value(callerKey{}).(Caller)
	fn(&c)
	return WithCaller(ctx, c)
}

func WithTransport(ctx context.Context, t string) context.Context {
	return update(ctx, func(c *Caller) { c.Transport = t })
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return update(ctx, func(c *Caller) { c.RequestID = id })
}

func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	return update(ctx, func(c *Caller) { c.RemoteAddr = addr })
}

func GetTransport(ctx context.Context) string  { return CallerFrom(ctx).Transport }
func GetRequestID(ctx context.Context) string  { return CallerFrom(ctx).RequestID }
func GetRemoteAddr(ctx context.Context) string { return CallerFrom(ctx).RemoteAddr }

// LogValue renders the non-empty fields as a slog group.
func (c Caller) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("transport", c.Transport)}
	if c.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", c.RequestID))
	}
	if c.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", c.RemoteAddr))
	}
	return slog.GroupValue(attrs...)
}
