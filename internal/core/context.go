package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "client_ip"
	ctxKeyUserAgent contextKey = "client_ua"
	ctxKeyAPIKey    contextKey = "api_key_id"
)

// ContextWithIPAddress records the caller's IP for import logs.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent records the caller's User-Agent.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// ContextWithAPIKeyID records which API key authenticated the caller.
func ContextWithAPIKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyAPIKey, id)
}

func IPAddressFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyIPAddress).(string)
	return v
}

func UserAgentFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyUserAgent).(string)
	return v
}

func APIKeyIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyAPIKey).(string)
	return v
}
