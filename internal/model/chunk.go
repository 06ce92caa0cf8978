package model

import "time"

// FileChunk is one window of a file's extracted text. Its vector lives in
// Elasticsearch under the same (file_id, chunk_index).
type FileChunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     string    `gorm:"type:char(36);not null;index:idx_file_chunks_user" json:"userId"`
	FileID     string    `gorm:"type:char(36);not null;uniqueIndex:file_chunks_file_index_key,priority:1" json:"fileId"`
	FilePath   string    `gorm:"type:varchar(512);not null" json:"filePath"`
	ChunkIndex int       `gorm:"not null;uniqueIndex:file_chunks_file_index_key,priority:2" json:"chunkIndex"`
	Content    string    `gorm:"type:mediumtext;not null" json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (FileChunk) TableName() string {
	return "file_chunks"
}
