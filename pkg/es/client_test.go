package es

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"muichiro-nexus/internal/config"
	"muichiro-nexus/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeES struct {
	mu       sync.Mutex
	created  string
	indexed  []string
	searches []map[string]any
	deleted  []string
}

func (f *fakeES) handler(t *testing.T, indexExists bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/chunks":
			if indexExists {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}
		case r.Method == http.MethodPut && r.URL.Path == "/chunks":
			var body bytes.Buffer
			_, _ = body.ReadFrom(r.Body)
			f.created = body.String()
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		case strings.HasPrefix(r.URL.Path, "/chunks/_doc/"):
			f.indexed = append(f.indexed, strings.TrimPrefix(r.URL.Path, "/chunks/_doc/"))
			_, _ = w.Write([]byte(`{"result":"created"}`))
		case strings.HasSuffix(r.URL.Path, "/_refresh"):
			_, _ = w.Write([]byte(`{}`))
		case strings.HasSuffix(r.URL.Path, "/_delete_by_query"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			term := body["query"].(map[string]any)["term"].(map[string]any)
			f.deleted = append(f.deleted, term["file_id"].(string))
			_, _ = w.Write([]byte(`{"deleted":2}`))
		case strings.HasSuffix(r.URL.Path, "/_search"):
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.searches = append(f.searches, body)
			_, _ = w.Write([]byte(`{"hits":{"hits":[
				{"_score":0.93,"_source":{"file_id":"f1","file_path":"u1/a.txt","chunk_index":2,"content":"alpha"}},
				{"_score":0.71,"_source":{"file_id":"f2","file_path":"u1/b.txt","chunk_index":0,"content":"beta"}}
			]}}`))
		default:
			t.Logf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, f *fakeES, indexExists bool) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t, indexExists))
	t.Cleanup(srv.Close)
	c, err := NewClient(context.Background(), config.ElasticsearchConfig{Addresses: srv.URL, IndexName: "chunks"}, 3)
	require.NoError(t, err)
	return c
}

func TestNewClient_CreatesIndexWithConfiguredDims(t *testing.T) {
	f := &fakeES{}
	newTestClient(t, f, false)
	assert.Contains(t, f.created, `"dims": 3`)
	assert.Contains(t, f.created, `"dense_vector"`)
}

func TestNewClient_KeepsExistingIndex(t *testing.T) {
	f := &fakeES{}
	newTestClient(t, f, true)
	assert.Empty(t, f.created)
}

func TestIndexChunks(t *testing.T) {
	f := &fakeES{}
	c := newTestClient(t, f, true)

	docs := []model.ChunkDocument{
		{VectorID: model.ChunkVectorID("f1", 0), FileID: "f1", Vector: []float32{1, 0, 0}},
		{VectorID: model.ChunkVectorID("f1", 1), FileID: "f1", Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, c.IndexChunks(context.Background(), docs))
	assert.Equal(t, []string{"f1_0", "f1_1"}, f.indexed)

	err := c.IndexChunks(context.Background(), []model.ChunkDocument{{VectorID: "bad", Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestSearchKNN(t *testing.T) {
	f := &fakeES{}
	c := newTestClient(t, f, true)

	matches, err := c.SearchKNN(context.Background(), "u1", []float32{0.1, 0.2, 0.3}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, model.ChunkMatch{FileID: "f1", FilePath: "u1/a.txt", ChunkIndex: 2, Content: "alpha", Similarity: 0.93}, matches[0])
	assert.Equal(t, "f2", matches[1].FileID)

	require.Len(t, f.searches, 1)
	knn := f.searches[0]["knn"].(map[string]any)
	assert.EqualValues(t, 2, knn["k"])
	assert.EqualValues(t, 50, knn["num_candidates"])
	filter := knn["filter"].(map[string]any)["term"].(map[string]any)
	assert.Equal(t, "u1", filter["user_id"])
}

func TestDeleteByFile(t *testing.T) {
	f := &fakeES{}
	c := newTestClient(t, f, true)
	require.NoError(t, c.DeleteByFile(context.Background(), "f9"))
	assert.Equal(t, []string{"f9"}, f.deleted)
}

func TestNumCandidates(t *testing.T) {
	assert.Equal(t, 50, numCandidates(1))
	assert.Equal(t, 50, numCandidates(5))
	assert.Equal(t, 80, numCandidates(8))
	assert.Equal(t, 200, numCandidates(20))
}
