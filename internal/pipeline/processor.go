// Package pipeline turns uploaded files into searchable chunks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/pkg/embedding"
	"muichiro-nexus/pkg/extract"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/storage"
	"muichiro-nexus/pkg/tasks"

	"gorm.io/datatypes"
)

// TextExtractor turns raw file bytes into text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, fileName, mimeType string) (string, error)
}

// ChunkIndexer stores chunk vectors.
type ChunkIndexer interface {
	IndexChunks(ctx context.Context, docs []model.ChunkDocument) error
	DeleteByFile(ctx context.Context, fileID string) error
}

// Analyzer runs AI analysis of a stored file.
type Analyzer interface {
	Analyze(ctx context.Context, userID, fileID string) (datatypes.JSON, error)
}

// Processor downloads a stored file, chunks its text, embeds the chunks and
// persists them to the database and the vector index.
type Processor struct {
	store        storage.ObjectStore
	extractor    TextExtractor
	embedder     embedding.Client
	chunkRepo    repository.ChunkRepository
	index        ChunkIndexer
	analyzer     Analyzer
	opts         ChunkOptions
	modelVersion string
}

// NewProcessor builds a Processor. analyzer may be nil, which skips analysis.
func NewProcessor(
	store storage.ObjectStore,
	extractor TextExtractor,
	embedder embedding.Client,
	chunkRepo repository.ChunkRepository,
	index ChunkIndexer,
	analyzer Analyzer,
	opts ChunkOptions,
	modelVersion string,
) *Processor {
	return &Processor{
		store:        store,
		extractor:    extractor,
		embedder:     embedder,
		chunkRepo:    chunkRepo,
		index:        index,
		analyzer:     analyzer,
		opts:         opts,
		modelVersion: modelVersion,
	}
}

// Process runs the full pipeline for one task. Files without text, such as
// images, skip chunking but are still analyzed when an analyzer is set.
func (p *Processor) Process(ctx context.Context, task tasks.FileProcessingTask) error {
	log.Infof("[Processor] processing file %s (%s) for user %s", task.FileID, task.FileName, task.UserID)

	data, err := p.store.GetObject(ctx, task.FilePath)
	if err != nil {
		log.Errorf("[Processor] download of %s failed: %v", task.FilePath, err)
		return fmt.Errorf("download object: %w", err)
	}
	if len(data) == 0 {
		log.Warnf("[Processor] object %s is empty, nothing to do", task.FilePath)
		return nil
	}

	text, err := p.extractor.Extract(ctx, data, task.FileName, task.MimeType)
	switch {
	case errors.Is(err, extract.ErrNoText):
		log.Infof("[Processor] %s has no textual content, skipping embeddings", task.FileName)
	case err != nil:
		log.Errorf("[Processor] text extraction for %s failed: %v", task.FileName, err)
		return fmt.Errorf("extract text: %w", err)
	default:
		if err := p.indexText(ctx, task, sanitizeText(text)); err != nil {
			return err
		}
	}

	if p.analyzer != nil {
		if _, err := p.analyzer.Analyze(ctx, task.UserID, task.FileID); err != nil {
			// chunks are already stored; a failed analysis does not redo them
			log.Warnf("[Processor] analysis of %s failed: %v", task.FileID, err)
		}
	}

	log.Infof("[Processor] file %s done", task.FileID)
	return nil
}

func (p *Processor) indexText(ctx context.Context, task tasks.FileProcessingTask, text string) error {
	if text == "" {
		log.Infof("[Processor] %s extracted to empty text, skipping embeddings", task.FileName)
		return nil
	}
	log.Infof("[Processor] extracted %d characters from %s", utf8.RuneCountInString(text), task.FileName)

	pieces := ChunkText(text, p.opts)
	vectors, err := p.embedder.CreateEmbeddings(ctx, pieces)
	if err != nil {
		log.Errorf("[Processor] embedding %d chunks of %s failed: %v", len(pieces), task.FileID, err)
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(pieces) {
		return fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(pieces))
	}

	rows := make([]model.FileChunk, len(pieces))
	docs := make([]model.ChunkDocument, len(pieces))
	for i, content := range pieces {
		rows[i] = model.FileChunk{
			UserID:     task.UserID,
			FileID:     task.FileID,
			FilePath:   task.FilePath,
			ChunkIndex: i,
			Content:    content,
		}
		docs[i] = model.ChunkDocument{
			VectorID:     model.ChunkVectorID(task.FileID, i),
			UserID:       task.UserID,
			FileID:       task.FileID,
			FilePath:     task.FilePath,
			ChunkIndex:   i,
			Content:      content,
			Vector:       vectors[i],
			ModelVersion: p.modelVersion,
		}
	}

	if err := p.chunkRepo.ReplaceForFile(ctx, task.FileID, rows); err != nil {
		log.Errorf("[Processor] saving chunks of %s failed: %v", task.FileID, err)
		return fmt.Errorf("save chunks: %w", err)
	}

	// a re-run may produce fewer chunks than the previous one
	if err := p.index.DeleteByFile(ctx, task.FileID); err != nil {
		log.Warnf("[Processor] clearing old vectors of %s failed: %v", task.FileID, err)
	}
	if err := p.index.IndexChunks(ctx, docs); err != nil {
		log.Errorf("[Processor] indexing %d chunks of %s failed: %v", len(docs), task.FileID, err)
		return fmt.Errorf("index chunks: %w", err)
	}
	log.Infof("[Processor] stored %d chunks for %s", len(docs), task.FileID)
	return nil
}
