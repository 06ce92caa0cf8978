package service

import (
	"context"
	"testing"

	"muichiro-nexus/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemanticSearch_InvalidInput(t *testing.T) {
	emb := &fakeEmbedder{vector: []float32{1}}
	svc := NewSemanticSearchService(emb, &fakeIndex{})

	_, err := svc.Search(context.Background(), "", "q", 3)
	assert.ErrorIs(t, err, ErrInvalidSearch)
	_, err = svc.Search(context.Background(), "user-1", " ", 3)
	assert.ErrorIs(t, err, ErrInvalidSearch)
	assert.Empty(t, emb.texts)
}

func TestSemanticSearch_PassesThroughMatches(t *testing.T) {
	want := []model.ChunkMatch{
		{FileID: "f2", FilePath: "user-1/f2.txt", ChunkIndex: 1, Content: "b", Similarity: 0.9},
		{FileID: "f1", FilePath: "user-1/f1.txt", ChunkIndex: 0, Content: "a", Similarity: 0.7},
	}
	emb := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	index := &fakeIndex{matches: want}

	got, err := NewSemanticSearchService(emb, index).Search(context.Background(), "user-1", "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, DefaultTopK, index.lastK)
	assert.Equal(t, "user-1", index.lastUser)
	assert.Equal(t, []float32{0.1, 0.2}, index.lastVector)
	assert.Equal(t, []string{"hello"}, emb.texts)
}

func TestSemanticSearch_Failures(t *testing.T) {
	_, err := NewSemanticSearchService(&fakeEmbedder{err: errBoom}, &fakeIndex{}).
		Search(context.Background(), "user-1", "q", 2)
	assert.ErrorIs(t, err, errBoom)

	_, err = NewSemanticSearchService(&fakeEmbedder{vector: []float32{1}}, &fakeIndex{searchErr: errBoom}).
		Search(context.Background(), "user-1", "q", 2)
	assert.ErrorIs(t, err, errBoom)
}
