package service

import (
	"context"
	"fmt"
	"strings"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/pkg/embedding"
	"muichiro-nexus/pkg/log"
)

// DefaultTopK is used when a semantic search request omits topK.
const DefaultTopK = 8

// VectorSearcher runs a nearest-neighbour lookup scoped to one user.
type VectorSearcher interface {
	SearchKNN(ctx context.Context, userID string, vector []float32, k int) ([]model.ChunkMatch, error)
}

// SemanticSearchService embeds a query and returns the closest chunks.
type SemanticSearchService interface {
	Search(ctx context.Context, userID, query string, topK int) ([]model.ChunkMatch, error)
}

type semanticSearchService struct {
	embedder embedding.Client
	searcher VectorSearcher
}

func NewSemanticSearchService(embedder embedding.Client, searcher VectorSearcher) SemanticSearchService {
	return &semanticSearchService{embedder: embedder, searcher: searcher}
}

func (s *semanticSearchService) Search(ctx context.Context, userID, query string, topK int) ([]model.ChunkMatch, error) {
	if userID == "" || strings.TrimSpace(query) == "" {
		return nil, ErrInvalidSearch
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[SemanticSearchService] embedding query failed: %v", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.searcher.SearchKNN(ctx, userID, vector, topK)
	if err != nil {
		log.Errorf("[SemanticSearchService] vector lookup for user %s failed: %v", userID, err)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if matches == nil {
		matches = []model.ChunkMatch{}
	}
	return matches, nil
}
