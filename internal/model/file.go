package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// File is one uploaded object owned by a user. FilePath is the object key in
// storage and has the form <userID>/<uuid>.<ext>.
type File struct {
	ID         string         `gorm:"type:char(36);primaryKey" json:"id"`
	UserID     string         `gorm:"type:char(36);not null;index:idx_files_user_uploaded,priority:1" json:"userId"`
	FilePath   string         `gorm:"type:varchar(512);not null;uniqueIndex:files_file_path_key" json:"filePath"`
	FileName   string         `gorm:"type:varchar(255);not null" json:"fileName"`
	FileSize   int64          `gorm:"not null" json:"fileSize"`
	MimeType   string         `gorm:"type:varchar(127);not null" json:"mimeType"`
	UploadedAt time.Time      `gorm:"not null;index:idx_files_user_uploaded,priority:2" json:"uploadedAt"`
	AIMetadata datatypes.JSON `gorm:"type:json" json:"aiMetadata,omitempty"`
	Analyzed   bool           `gorm:"not null;default:false" json:"analyzed"`
}

func (File) TableName() string {
	return "files"
}

func (f *File) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now()
	}
	return nil
}

// Metadata decodes AIMetadata. It returns nil, nil for files that were never analyzed.
func (f *File) Metadata() (*AIMetadata, error) {
	if len(f.AIMetadata) == 0 || string(f.AIMetadata) == "null" {
		return nil, nil
	}
	var m AIMetadata
	if err := json.Unmarshal(f.AIMetadata, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LenientMetadata decodes AIMetadata field by field, so one mistyped field
// does not hide the others. It returns nil when the column is empty or is not
// a JSON object.
func (f *File) LenientMetadata() *AIMetadata {
	if len(f.AIMetadata) == 0 {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(f.AIMetadata, &raw); err != nil || raw == nil {
		return nil
	}
	return decodeLenient(raw)
}
