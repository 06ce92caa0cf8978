package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/storage"

	"gorm.io/gorm"
)

// ChunkIndexDeleter removes a file's vector documents.
type ChunkIndexDeleter interface {
	DeleteByFile(ctx context.Context, fileID string) error
}

// FileService serves listing, download and delete of stored files.
type FileService interface {
	List(ctx context.Context, userID string) ([]model.File, error)
	// DownloadURL presigns a GET for one of the user's own objects.
	DownloadURL(ctx context.Context, userID, path string) (string, error)
	// Delete removes the object, then the record. An empty path uses the
	// record's path; a non-empty one must match it.
	Delete(ctx context.Context, userID, fileID, path string) error
}

type fileService struct {
	fileRepo      repository.FileRepository
	chunkRepo     repository.ChunkRepository
	index         ChunkIndexDeleter
	store         storage.ObjectStore
	presignExpiry time.Duration
}

func NewFileService(
	fileRepo repository.FileRepository,
	chunkRepo repository.ChunkRepository,
	index ChunkIndexDeleter,
	store storage.ObjectStore,
	presignExpiry time.Duration,
) FileService {
	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &fileService{
		fileRepo:      fileRepo,
		chunkRepo:     chunkRepo,
		index:         index,
		store:         store,
		presignExpiry: presignExpiry,
	}
}

func (s *fileService) List(ctx context.Context, userID string) ([]model.File, error) {
	files, err := s.fileRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

func (s *fileService) DownloadURL(ctx context.Context, userID, path string) (string, error) {
	if path == "" {
		return "", ErrNotFound
	}
	if !strings.HasPrefix(path, userID+"/") {
		return "", ErrForbidden
	}
	if _, err := s.fileRepo.FindByPathForUser(ctx, path, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	url, err := s.store.PresignedGetURL(ctx, path, s.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to create download URL: %w", err)
	}
	return url, nil
}

func (s *fileService) Delete(ctx context.Context, userID, fileID, path string) error {
	record, err := s.fileRepo.FindByIDForUser(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if path == "" {
		path = record.FilePath
	} else if path != record.FilePath {
		return ErrPathMismatch
	}

	if err := s.store.RemoveObject(ctx, path); err != nil {
		log.Errorf("[FileService] removing object %s failed: %v", path, err)
		return fmt.Errorf("failed to delete file from storage: %w", err)
	}

	n, err := s.fileRepo.Delete(ctx, fileID, userID)
	if err != nil {
		log.Errorf("[FileService] object %s removed but record %s remains: %v", path, fileID, err)
		return fmt.Errorf("file removed from storage but failed to delete record: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	if err := s.cascade(ctx, fileID); err != nil {
		log.Warnf("[FileService] cleanup of chunks for %s incomplete: %v", fileID, err)
	}
	return nil
}

// cascade drops chunk rows and vector documents; failures are joined.
func (s *fileService) cascade(ctx context.Context, fileID string) error {
	var errs []error
	if err := s.chunkRepo.DeleteByFile(ctx, fileID); err != nil {
		errs = append(errs, fmt.Errorf("chunk rows: %w", err))
	}
	if s.index != nil {
		if err := s.index.DeleteByFile(ctx, fileID); err != nil {
			errs = append(errs, fmt.Errorf("vector documents: %w", err))
		}
	}
	return errors.Join(errs...)
}
