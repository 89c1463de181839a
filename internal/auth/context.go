package auth

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxProjectID
	ctxRole
)

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithProjectRole records the caller's role in the project being accessed.
func WithProjectRole(ctx context.Context, projectID, role string) context.Context {
	ctx = context.WithValue(ctx, ctxProjectID, projectID)
	ctx = context.WithValue(ctx, ctxRole, role)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func ProjectID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxProjectID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("project_id not in context")
}

func Role(ctx context.Context) (string, error) {
	v := ctx.Value(ctxRole)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role not in context")
}
