// pkg/utils/auth_helpers.go

package utils

import (
	"context"

	"laundry-delivery/pkg/contextkeys"
	apperrors "laundry-delivery/pkg/errors"
)

// GetUserIDFromCtx - текущий пользователь, записанный AuthMiddleware.
func GetUserIDFromCtx(ctx context.Context) (uint64, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(uint64)
	if !ok || userID == 0 {
		return 0, apperrors.ErrUserIDNotFoundInContext
	}
	return userID, nil
}

// WithUserID кладёт пользователя в контекст (middleware и тесты).
func WithUserID(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, contextkeys.UserIDKey, userID)
}
