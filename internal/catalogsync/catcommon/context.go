// Package catcommon holds the types and context helpers shared by the catalog
// synchronization packages.
package catcommon

import (
	"context"
)

type ctxKeyType string

const (
	ctxActorKey       ctxKeyType = "CatalogSyncActor"
	ctxTestContextKey ctxKeyType = "CatalogSyncTestContext"
)

// Actor identifies the user a change is made on behalf of.
type Actor struct {
	Username string
	IsAdmin  bool
}

// WithActor returns a copy of ctx carrying the acting user.
func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, ctxActorKey, a)
}

// GetActor returns the acting user, or nil.
func GetActor(ctx context.Context) *Actor {
	if a, ok := ctx.Value(ctxActorKey).(*Actor); ok {
		return a
	}
	return nil
}

// GetActorName returns the acting username, or "" when none is set.
func GetActorName(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.Username
	}
	return ""
}

// WithTestContext marks ctx as used by a test.
func WithTestContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxTestContextKey, true)
}

func IsTestContext(ctx context.Context) bool {
	v, _ := ctx.Value(ctxTestContextKey).(bool)
	return v
}
