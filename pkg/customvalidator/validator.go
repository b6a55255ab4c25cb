// Файл: pkg/customvalidator/validators.go

package customvalidator

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const minAddressLength = 5

// RegisterCustomValidations регистрирует правила, которых нет в validator/v10.
func RegisterCustomValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("address", isAddress); err != nil {
		return err
	}
	if err := v.RegisterValidation("reason_text", isReasonText); err != nil {
		return err
	}
	return nil
}

// isAddress: не короче minAddressLength символов без учёта пробелов по краям и хотя бы одна буква.
func isAddress(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if utf8.RuneCountInString(value) < minAddressLength {
		return false
	}
	for _, r := range value {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// isReasonText - причина не может состоять из одних пробелов.
func isReasonText(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
