// Package tasks defines the post-upload processing job shared by the
// in-process dispatcher and the Kafka transport.
package tasks

// FileProcessingTask describes one uploaded file awaiting extraction,
// chunking, embedding and optional analysis.
type FileProcessingTask struct {
	FileID   string `json:"file_id"`
	UserID   string `json:"user_id"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}
