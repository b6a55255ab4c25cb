package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// JWT и токены
	ErrInvalidSigningMethod = fmt.Errorf("неверный метод подписи токена")
	ErrInvalidToken         = fmt.Errorf("недопустимый токен")
	ErrTokenExpired         = fmt.Errorf("срок действия токена истёк")
	ErrTokenNotYetValid     = fmt.Errorf("токен ещё не активен")
	ErrTokenIsNotAccess     = fmt.Errorf("токен не является access-токеном")

	// Авторизация
	ErrEmptyAuthHeader   = fmt.Errorf("заголовок авторизации отсутствует")
	ErrInvalidAuthHeader = fmt.Errorf("неверный формат заголовка авторизации")
	ErrUnauthorized      = fmt.Errorf("неавторизован")
	ErrForbidden         = fmt.Errorf("доступ запрещён")

	// Контекст
	ErrUserIDNotFoundInContext = fmt.Errorf("UserID не найден в контексте запроса")

	// Общие
	ErrNotFound           = fmt.Errorf("запись не найдена")
	ErrConflict           = fmt.Errorf("конфликт состояния")
	ErrInvalidInput       = fmt.Errorf("некорректные данные")
	ErrUnavailable        = fmt.Errorf("сервис временно недоступен")
	ErrPreconditionFailed = fmt.Errorf("не выполнено предварительное условие")
)

// Кастомные типы ошибок
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string { return e.Message }

// Is позволяет проверять InvalidInputError через errors.Is(err, ErrInvalidInput).
func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

func NewInvalidInputError(format string, args ...interface{}) error {
	return &InvalidInputError{Message: fmt.Sprintf(format, args...)}
}

// HttpError - ошибка, которую контроллер отдаёт клиенту как есть.
type HttpError struct {
	Code    int
	Message string
	Err     error
	Details interface{}
	Context map[string]interface{}
}

func (e *HttpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *HttpError) Unwrap() error { return e.Err }

func NewHttpError(code int, message string, err error, ctx map[string]interface{}) *HttpError {
	return &HttpError{Code: code, Message: message, Err: err, Context: ctx}
}

// порядок важен: InvalidInputError оборачивает ErrInvalidInput
var statusByKind = []struct {
	kind error
	code int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrConflict, http.StatusConflict},
	{ErrForbidden, http.StatusForbidden},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrPreconditionFailed, http.StatusPreconditionFailed},
	{ErrUnavailable, http.StatusServiceUnavailable},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrEmptyAuthHeader, http.StatusUnauthorized},
	{ErrInvalidAuthHeader, http.StatusUnauthorized},
	{ErrInvalidToken, http.StatusUnauthorized},
	{ErrTokenExpired, http.StatusUnauthorized},
	{ErrTokenNotYetValid, http.StatusUnauthorized},
	{ErrTokenIsNotAccess, http.StatusUnauthorized},
	{ErrInvalidSigningMethod, http.StatusUnauthorized},
	{ErrUserIDNotFoundInContext, http.StatusUnauthorized},
}

// Kind возвращает sentinel-ошибку таксономии, к которой относится err, либо nil.
func Kind(err error) error {
	for _, k := range statusByKind {
		if errors.Is(err, k.kind) {
			return k.kind
		}
	}
	return nil
}

// StatusCode сопоставляет ошибку с HTTP-кодом.
func StatusCode(err error) int {
	for _, k := range statusByKind {
		if errors.Is(err, k.kind) {
			return k.code
		}
	}
	return http.StatusInternalServerError
}

// Unavailable помечает ошибку инфраструктуры как временную, сохраняя исходную причину.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
