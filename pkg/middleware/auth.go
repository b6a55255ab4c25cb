package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/service"
	"laundry-delivery/pkg/utils"
)

// tokenQueryParam - браузерный WebSocket не умеет слать заголовок Authorization.
const tokenQueryParam = "token"

type AuthMiddleware struct {
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthMiddleware(jwtSvc service.JWTService, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtSvc,
		logger:     logger,
	}
}

func bearerToken(c echo.Context) (string, error) {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.ErrEmptyAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.ErrInvalidAuthHeader
	}
	return parts[1], nil
}

// Auth - проверка access-токена из заголовка Authorization.
func (m *AuthMiddleware) Auth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.authenticate(next, bearerToken)
}

// AuthQuery - то же для WebSocket: токен берётся из ?token=, затем из заголовка.
func (m *AuthMiddleware) AuthQuery(next echo.HandlerFunc) echo.HandlerFunc {
	return m.authenticate(next, func(c echo.Context) (string, error) {
		if token := c.QueryParam(tokenQueryParam); token != "" {
			return token, nil
		}
		return bearerToken(c)
	})
}

func (m *AuthMiddleware) authenticate(next echo.HandlerFunc, extract func(echo.Context) (string, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		// 1. Извлекаем токен
		tokenString, err := extract(c)
		if err != nil {
			m.logger.Warn("AuthMiddleware: токен не передан", zap.Error(err))
			return utils.ErrorResponse(c, err, m.logger)
		}

		// 2. Валидируем токен
		claims, err := m.jwtService.ValidateToken(tokenString)
		if err != nil {
			m.logger.Warn("AuthMiddleware: Ошибка валидации токена", zap.Error(err))
			return utils.ErrorResponse(c, err, m.logger)
		}

		// 3. Убеждаемся, что это не refresh токен
		if claims.IsRefreshToken {
			m.logger.Warn("AuthMiddleware: Попытка доступа с refresh токеном")
			return utils.ErrorResponse(c, apperrors.ErrTokenIsNotAccess, m.logger)
		}

		// 4. Записываем UserID в контекст запроса
		c.SetRequest(c.Request().WithContext(utils.WithUserID(c.Request().Context(), claims.UserID)))

		m.logger.Debug("AuthMiddleware: Пользователь аутентифицирован", zap.Uint64("userID", claims.UserID))
		return next(c)
	}
}
