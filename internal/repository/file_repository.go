package repository

import (
	"context"
	"time"

	"muichiro-nexus/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FileFilter narrows ListForSearch. Zero values mean "no constraint".
type FileFilter struct {
	Category      string
	Analyzed      *bool
	UploadedAfter time.Time
}

// FileRepository persists file records.
type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	FindByID(ctx context.Context, id string) (*model.File, error)
	FindByIDForUser(ctx context.Context, id, userID string) (*model.File, error)
	FindByPathForUser(ctx context.Context, path, userID string) (*model.File, error)
	// ListByUser returns a user's files, newest first.
	ListByUser(ctx context.Context, userID string) ([]model.File, error)
	ListForSearch(ctx context.Context, userID string, filter FileFilter) ([]model.File, error)
	// UpdateAnalysis stores metadata and flips analyzed in one statement.
	UpdateAnalysis(ctx context.Context, id string, metadata datatypes.JSON) error
	// Delete removes the user's record and reports how many rows went away.
	Delete(ctx context.Context, id, userID string) (int64, error)
}

type fileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *fileRepository) FindByID(ctx context.Context, id string) (*model.File, error) {
	var file model.File
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) FindByIDForUser(ctx context.Context, id, userID string) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) FindByPathForUser(ctx context.Context, path, userID string) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).Where("file_path = ? AND user_id = ?", path, userID).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *fileRepository) ListByUser(ctx context.Context, userID string) ([]model.File, error) {
	var files []model.File
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&files).Error
	return files, err
}

func (r *fileRepository) ListForSearch(ctx context.Context, userID string, filter FileFilter) ([]model.File, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)

	switch filter.Category {
	case model.CategoryImage:
		q = q.Where("mime_type LIKE ?", "image/%")
	case model.CategoryDocument:
		q = q.Where("mime_type IN ?", model.DocumentMimeTypes)
	}
	if filter.Analyzed != nil {
		q = q.Where("analyzed = ?", *filter.Analyzed)
	}
	if !filter.UploadedAfter.IsZero() {
		q = q.Where("uploaded_at >= ?", filter.UploadedAfter)
	}

	var files []model.File
	err := q.Order("uploaded_at DESC").Find(&files).Error
	return files, err
}

func (r *fileRepository) UpdateAnalysis(ctx context.Context, id string, metadata datatypes.JSON) error {
	res := r.db.WithContext(ctx).Model(&model.File{}).Where("id = ?", id).Updates(map[string]interface{}{
		"ai_metadata": metadata,
		"analyzed":    true,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *fileRepository) Delete(ctx context.Context, id, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.File{})
	return res.RowsAffected, res.Error
}
