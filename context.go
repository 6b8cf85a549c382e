package learnhub

import "context"

type ctxKey string

const (
	ctxKeyUserID ctxKey = "learnhub_user_id"
	ctxKeyUser   ctxKey = "learnhub_user"
)

// WithUserID stores the authenticated user ID in the context. Services use
// it to scope "my X" cache keys to the learner.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ctxKeyUserID, userID)
}

// UserIDFromContext extracts the authenticated user ID from the context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ctxKeyUserID).(int64)
	return v, ok && v != 0
}

// WithUser stores the user snapshot and its ID in the context.
func WithUser(ctx context.Context, u *User) context.Context {
	if u == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxKeyUser, u.Clone())
	return WithUserID(ctx, u.ID)
}

// UserFromContext extracts the user snapshot from the context.
func UserFromContext(ctx context.Context) *User {
	v, _ := ctx.Value(ctxKeyUser).(*User)
	return v
}
