package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"laundry-delivery/internal/repositories"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/utils"
)

type IdentityServiceInterface interface {
	GetCurrentUserID(ctx context.Context) (uint64, error)
	GetRole(ctx context.Context, userID uint64) (constants.Role, error)
}

// IdentityService отдаёт текущего пользователя и его роль. Роли кешируются в Redis.
type IdentityService struct {
	userRepo  repositories.UserRepositoryInterface
	cacheRepo repositories.CacheRepositoryInterface
	logger    *zap.Logger
	cacheTTL  time.Duration
}

func NewIdentityService(
	userRepo repositories.UserRepositoryInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	logger *zap.Logger,
	cacheTTL time.Duration,
) IdentityServiceInterface {
	return &IdentityService{
		userRepo:  userRepo,
		cacheRepo: cacheRepo,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

func roleCacheKey(userID uint64) string {
	return fmt.Sprintf("auth:role:user:%d", userID)
}

func (s *IdentityService) GetCurrentUserID(ctx context.Context) (uint64, error) {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrUnauthorized, err)
	}
	return userID, nil
}

func (s *IdentityService) GetRole(ctx context.Context, userID uint64) (constants.Role, error) {
	cacheKey := roleCacheKey(userID)

	// 1. Попытка получить роль из Redis
	cached, errGet := s.cacheRepo.Get(ctx, cacheKey)
	if errGet == nil && cached != "" {
		return constants.Role(cached), nil
	}
	if errGet != nil && !repositories.IsCacheMiss(errGet) {
		// недоступный кеш не должен ломать авторизацию - идём в БД
		s.logger.Warn("IdentityService: ошибка чтения роли из кеша", zap.Uint64("userID", userID), zap.Error(errGet))
	}

	// 2. Из базы данных
	role, err := s.userRepo.GetRole(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("IdentityService: не удалось получить роль из БД", zap.Uint64("userID", userID), zap.Error(err))
		}
		return "", err
	}

	// 3. Кешируем
	if errSet := s.cacheRepo.Set(ctx, cacheKey, string(role), s.cacheTTL); errSet != nil {
		s.logger.Warn("IdentityService: не удалось сохранить роль в кеш", zap.Uint64("userID", userID), zap.Error(errSet))
	}
	return role, nil
}
