// Package context carries request-scoped correlation fields used by logs and spans.
package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	orgIDKey
	actorTypeKey
	actorIDKey
)

const (
	ActorTypeUser      = "user"
	ActorTypeAnonymous = "anonymous"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithOrgID(ctx context.Context, orgID string) context.Context {
	if orgID == "" {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey, orgID)
}

func OrgIDFromContext(ctx context.Context) string {
	return stringValue(ctx, orgIDKey)
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = context.WithValue(ctx, actorTypeKey, actorType)
	return context.WithValue(ctx, actorIDKey, actorID)
}

// ActorFromContext returns the actor type and id, defaulting to anonymous.
func ActorFromContext(ctx context.Context) (string, string) {
	actorType := stringValue(ctx, actorTypeKey)
	if actorType == "" {
		actorType = ActorTypeAnonymous
	}
	return actorType, stringValue(ctx, actorIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
