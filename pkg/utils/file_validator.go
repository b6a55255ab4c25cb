package utils

import (
	"fmt"
	"io"
	"net/http"
	"slices"

	"laundry-delivery/config"
	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
)

// ValidateFile проверяет размер и MIME-тип по содержимому и возвращает курсор в начало.
func ValidateFile(size int64, file io.ReadSeeker, uploadContext constants.UploadContext) error {
	rules, ok := config.UploadContexts[uploadContext]
	if !ok {
		return fmt.Errorf("неизвестный контекст загрузки: %s", uploadContext)
	}

	if rules.MaxSizeMB > 0 {
		maxSizeBytes := rules.MaxSizeMB * 1024 * 1024
		if size > maxSizeBytes {
			return apperrors.NewInvalidInputError("размер файла (%d KB) превышает лимит в %d MB", size/1024, rules.MaxSizeMB)
		}
	}

	buffer := make([]byte, 512)
	if _, err := file.Read(buffer); err != nil && err != io.EOF {
		return fmt.Errorf("не удалось прочитать файл для определения типа: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("не удалось сбросить указатель файла: %w", err)
	}

	mimeType := http.DetectContentType(buffer)
	if !slices.Contains(rules.AllowedMimeTypes, mimeType) {
		return apperrors.NewInvalidInputError("недопустимый тип файла: %s", mimeType)
	}
	return nil
}

// PathPrefix - каталог хранения для контекста загрузки.
func PathPrefix(uploadContext constants.UploadContext) string {
	if rules, ok := config.UploadContexts[uploadContext]; ok {
		return rules.PathPrefix
	}
	return uploadContext.String()
}
