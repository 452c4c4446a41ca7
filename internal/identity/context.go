package identity

import "context"

type ctxKey string

const callerKey ctxKey = "clinvia.caller_id"

// WithCallerID stores the verified caller user id in context.
func WithCallerID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey, userID)
}

// CallerIDFromContext extracts the caller user id if present.
func CallerIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(callerKey)
	if val == nil {
		return "", false
	}
	userID, ok := val.(string)
	return userID, ok && userID != ""
}
