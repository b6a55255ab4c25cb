package services

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/filestorage"
	"laundry-delivery/pkg/utils"
)

// PhotoFile - загруженное клиентом фото-подтверждение.
type PhotoFile struct {
	Name    string
	Size    int64
	Content io.ReadSeeker
}

type MediaServiceInterface interface {
	// Upload проверяет и сохраняет все файлы. При ошибке уже сохранённые удаляются.
	Upload(ctx context.Context, uploadContext constants.UploadContext, files []PhotoFile) ([]string, error)
	// Delete удаляет файлы без возврата ошибки (компенсация после отката).
	Delete(ctx context.Context, urls []string)
}

type MediaService struct {
	storage filestorage.FileStorageInterface
	logger  *zap.Logger
}

func NewMediaService(storage filestorage.FileStorageInterface, logger *zap.Logger) MediaServiceInterface {
	return &MediaService{storage: storage, logger: logger}
}

func (s *MediaService) Upload(ctx context.Context, uploadContext constants.UploadContext, files []PhotoFile) ([]string, error) {
	urls := make([]string, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			s.Delete(ctx, urls)
			return nil, err
		}
		if err := utils.ValidateFile(f.Size, f.Content, uploadContext); err != nil {
			s.Delete(ctx, urls)
			if errors.Is(err, apperrors.ErrInvalidInput) {
				return nil, err
			}
			return nil, apperrors.NewInvalidInputError("файл %s не прошёл проверку: %v", f.Name, err)
		}
		url, err := s.storage.Save(f.Content, f.Name, utils.PathPrefix(uploadContext))
		if err != nil {
			s.Delete(ctx, urls)
			return nil, apperrors.Unavailable("сохранение фото", err)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

func (s *MediaService) Delete(_ context.Context, urls []string) {
	for _, url := range urls {
		if err := s.storage.Delete(url); err != nil {
			s.logger.Warn("не удалось удалить файл после отката", zap.String("url", url), zap.Error(err))
		}
	}
}
