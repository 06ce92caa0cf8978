package model

import "fmt"

// ChunkDocument is the Elasticsearch document stored per chunk.
type ChunkDocument struct {
	VectorID     string    `json:"vector_id"`
	UserID       string    `json:"user_id"`
	FileID       string    `json:"file_id"`
	FilePath     string    `json:"file_path"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// ChunkVectorID is the document id of a chunk: "<fileID>_<index>".
func ChunkVectorID(fileID string, index int) string {
	return fmt.Sprintf("%s_%d", fileID, index)
}

// ChunkMatch is one semantic search hit as returned to clients.
type ChunkMatch struct {
	FileID     string  `json:"file_id"`
	FilePath   string  `json:"file_path"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}
