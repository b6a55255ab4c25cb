package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"laundry-delivery/pkg/constants"
	apperrors "laundry-delivery/pkg/errors"
	"laundry-delivery/pkg/filestorage"
)

// минимальный заголовок PNG достаточен для определения типа по содержимому
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestMediaService_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	storage, err := filestorage.NewLocalFileStorage(dir, "/uploads")
	require.NoError(t, err)
	media := NewMediaService(storage, zap.NewNop())

	urls, err := media.Upload(context.Background(), constants.UploadContextPickupProof, []PhotoFile{
		{Name: "door.png", Size: int64(len(pngHeader)), Content: bytes.NewReader(pngHeader)},
	})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.True(t, strings.HasPrefix(urls[0], "/uploads/proofs/pickup/"), urls[0])

	path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(urls[0], "/uploads/")))
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, saved)

	media.Delete(context.Background(), urls)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMediaService_RejectsNonImagesAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	storage, err := filestorage.NewLocalFileStorage(dir, "/uploads")
	require.NoError(t, err)
	media := NewMediaService(storage, zap.NewNop())

	_, err = media.Upload(context.Background(), constants.UploadContextDeliveryProof, []PhotoFile{
		{Name: "ok.png", Size: int64(len(pngHeader)), Content: bytes.NewReader(pngHeader)},
		{Name: "notes.txt", Size: 5, Content: strings.NewReader("hello")},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	var files int
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, _ error) error {
		if info != nil && !info.IsDir() {
			files++
		}
		return nil
	})
	assert.Zero(t, files, "первый файл удалён после отказа второго")
}
