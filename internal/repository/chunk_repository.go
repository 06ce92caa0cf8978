package repository

import (
	"context"

	"muichiro-nexus/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository persists the text windows of processed files.
type ChunkRepository interface {
	// ReplaceForFile drops the previous chunk set of fileID and inserts chunks
	// in one transaction.
	ReplaceForFile(ctx context.Context, fileID string, chunks []model.FileChunk) error
	ListByFile(ctx context.Context, fileID string) ([]model.FileChunk, error)
	DeleteByFile(ctx context.Context, fileID string) error
}

type chunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) ReplaceForFile(ctx context.Context, fileID string, chunks []model.FileChunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&model.FileChunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 100).Error
	})
}

func (r *chunkRepository) ListByFile(ctx context.Context, fileID string) ([]model.FileChunk, error) {
	var chunks []model.FileChunk
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).Order("chunk_index ASC").Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) DeleteByFile(ctx context.Context, fileID string) error {
	return r.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&model.FileChunk{}).Error
}
