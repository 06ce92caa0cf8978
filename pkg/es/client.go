// Package es stores chunk vectors in Elasticsearch and runs kNN lookups.
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"muichiro-nexus/internal/config"
	"muichiro-nexus/internal/model"
	"muichiro-nexus/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Client is bound to one chunk index.
type Client struct {
	es    *elasticsearch.Client
	index string
	dims  int
}

// NewClient connects and creates the index with a dense_vector mapping of
// dims dimensions when it does not exist yet.
func NewClient(ctx context.Context, esCfg config.ElasticsearchConfig, dims int) (*Client, error) {
	raw, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	c := &Client{es: raw, index: esCfg.IndexName, dims: dims}
	if err := c.createIndexIfNotExists(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func indexMapping(dims int) string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id": { "type": "keyword" },
				"user_id": { "type": "keyword" },
				"file_id": { "type": "keyword" },
				"file_path": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)
}

func (c *Client) createIndexIfNotExists(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %q: %w", c.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("[ES] index '%s' already exists", c.index)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %q: unexpected status %d", c.index, res.StatusCode)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping(c.dims))),
	)
	if err != nil {
		return fmt.Errorf("create index %q: %w", c.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %q: %s", c.index, res.String())
	}
	log.Infof("[ES] index '%s' created, dims=%d", c.index, c.dims)
	return nil
}

// IndexChunks writes docs one by one and refreshes the index once at the end.
func (c *Client) IndexChunks(ctx context.Context, docs []model.ChunkDocument) error {
	for _, doc := range docs {
		if len(doc.Vector) != c.dims {
			return fmt.Errorf("chunk %s: vector has %d dims, index expects %d", doc.VectorID, len(doc.Vector), c.dims)
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		req := esapi.IndexRequest{
			Index:      c.index,
			DocumentID: doc.VectorID,
			Body:       bytes.NewReader(body),
		}
		res, err := req.Do(ctx, c.es)
		if err != nil {
			return fmt.Errorf("index chunk %s: %w", doc.VectorID, err)
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			log.Errorf("[ES] index chunk %s failed: %s", doc.VectorID, msg)
			return errors.New("failed to index document")
		}
		res.Body.Close()
	}

	res, err := c.es.Indices.Refresh(c.es.Indices.Refresh.WithIndex(c.index), c.es.Indices.Refresh.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("refresh index: %w", err)
	}
	res.Body.Close()
	return nil
}

// DeleteByFile removes every chunk document of fileID.
func (c *Client) DeleteByFile(ctx context.Context, fileID string) error {
	query := map[string]any{"query": map[string]any{"term": map[string]any{"file_id": fileID}}}
	body, err := json.Marshal(query)
	if err != nil {
		return err
	}
	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(body),
		c.es.DeleteByQuery.WithContext(ctx),
		c.es.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("delete chunks of %s: %w", fileID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("delete chunks of %s: %s", fileID, res.String())
	}
	return nil
}

func numCandidates(k int) int {
	if n := k * 10; n > 50 {
		return n
	}
	return 50
}

func buildKNNQuery(userID string, vector []float32, k int) map[string]any {
	return map[string]any{
		"size": k,
		"knn": map[string]any{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": numCandidates(k),
			"filter": map[string]any{
				"term": map[string]any{"user_id": userID},
			},
		},
		"_source": map[string]any{"excludes": []string{"vector"}},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64             `json:"_score"`
			Source model.ChunkDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchKNN returns the k chunks of userID nearest to vector, in the order
// Elasticsearch ranks them. Similarity is the raw _score, (1+cos)/2.
func (c *Client) SearchKNN(ctx context.Context, userID string, vector []float32, k int) ([]model.ChunkMatch, error) {
	body, err := json.Marshal(buildKNNQuery(userID, vector, k))
	if err != nil {
		return nil, err
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("knn search: %s", res.String())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode knn response: %w", err)
	}
	matches := make([]model.ChunkMatch, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		matches = append(matches, model.ChunkMatch{
			FileID:     h.Source.FileID,
			FilePath:   h.Source.FilePath,
			ChunkIndex: h.Source.ChunkIndex,
			Content:    h.Source.Content,
			Similarity: h.Score,
		})
	}
	return matches, nil
}
