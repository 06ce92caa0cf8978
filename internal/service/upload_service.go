package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/storage"
	"muichiro-nexus/pkg/tasks"

	"github.com/google/uuid"
)

// TaskDispatcher hands a stored file to post-processing. Implementations are
// the Kafka producer and the in-process dispatcher.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task tasks.FileProcessingTask) error
}

// UploadInput is one file received from a client.
type UploadInput struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.Reader
}

// UploadService stores new files.
type UploadService interface {
	Upload(ctx context.Context, user *model.User, in UploadInput) (*model.File, error)
}

type uploadService struct {
	fileRepo   repository.FileRepository
	store      storage.ObjectStore
	dispatcher TaskDispatcher
}

func NewUploadService(fileRepo repository.FileRepository, store storage.ObjectStore, dispatcher TaskDispatcher) UploadService {
	return &uploadService{fileRepo: fileRepo, store: store, dispatcher: dispatcher}
}

// Upload validates the input, writes the object, records it and queues
// post-processing. A failed insert removes the written object again. Nothing
// after the insert can fail the upload.
func (s *uploadService) Upload(ctx context.Context, user *model.User, in UploadInput) (*model.File, error) {
	if in.Body == nil || in.Size <= 0 {
		return nil, ErrEmptyFile
	}
	mimeType := model.NormalizeMimeType(in.MimeType)
	if !model.IsAllowedMimeType(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, in.MimeType)
	}

	filePath := fmt.Sprintf("%s/%s.%s", user.ID, uuid.NewString(), storageExt(in.FileName, mimeType))
	log.Infof("[UploadService] storing %s (%d bytes) for user %s at %s", in.FileName, in.Size, user.ID, filePath)

	if err := s.store.PutObject(ctx, filePath, in.Body, in.Size, mimeType); err != nil {
		log.Errorf("[UploadService] storage write failed for %s: %v", filePath, err)
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	record := &model.File{
		UserID:   user.ID,
		FilePath: filePath,
		FileName: in.FileName,
		FileSize: in.Size,
		MimeType: mimeType,
	}
	if err := s.fileRepo.Create(ctx, record); err != nil {
		log.Errorf("[UploadService] metadata insert failed for %s: %v", filePath, err)
		// the request context may already be cancelled; cleanup must still run
		if rmErr := s.store.RemoveObject(context.WithoutCancel(ctx), filePath); rmErr != nil {
			log.Errorf("[UploadService] cleanup of %s failed: %v", filePath, rmErr)
		}
		return nil, fmt.Errorf("failed to record file metadata: %w", err)
	}

	task := tasks.FileProcessingTask{
		FileID:   record.ID,
		UserID:   record.UserID,
		FilePath: record.FilePath,
		FileName: record.FileName,
		MimeType: record.MimeType,
		FileSize: record.FileSize,
	}
	if err := s.dispatcher.Dispatch(context.WithoutCancel(ctx), task); err != nil {
		log.Errorf("[UploadService] dispatching post-processing for %s failed: %v", record.ID, err)
	}
	return record, nil
}

// storageExt picks the key extension: the file name's own extension, else one
// registered for the MIME type, else "bin".
func storageExt(fileName, mimeType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), "."); ext != "" {
		return ext
	}
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}
