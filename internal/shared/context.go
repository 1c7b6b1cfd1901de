package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session snapshot in context.
func ContextWithSession(ctx context.Context, snap *Snapshot) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, snap)
}

// SessionFromContext extracts the session snapshot from context. It returns nil
// for unauthenticated requests.
func SessionFromContext(ctx context.Context) *Snapshot {
	snap, _ := ctx.Value(sessionContextKey{}).(*Snapshot)
	return snap
}
