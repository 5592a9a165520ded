package auth

import "context"

// Session is the authenticated caller identity. It is threaded explicitly
// through API clients and handlers; nothing reads tokens from ambient storage.
type Session struct {
	UserID string
	Name   string
	Role   Role
	Token  string
}

type ctxKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}
