package session

import "context"

type ctxKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session carried by ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// MustFromContext returns the session carried by ctx and panics when there
// is none. Reaching for the session outside a session scope is a wiring bug.
func MustFromContext(ctx context.Context) *Session {
	s, ok := FromContext(ctx)
	if !ok {
		panic("session: MustFromContext called without a session in scope")
	}
	return s
}
