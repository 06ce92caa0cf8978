package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"muichiro-nexus/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinIO is a path-style S3 endpoint holding a single bucket.
type fakeMinIO struct {
	mu            sync.Mutex
	bucket        string
	bucketCreated bool
	objects       map[string][]byte
	putBodies     map[string][]byte
	putTypes      map[string]string
	deleted       []string
}

func (f *fakeMinIO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	if parts[0] != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !f.bucketCreated {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		f.bucketCreated = true
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		raw, _ := io.ReadAll(r.Body)
		f.putBodies[key] = raw
		f.putTypes[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code>`+
				`<Message>The specified key does not exist.</Message><Key>`+key+`</Key><BucketName>`+f.bucket+`</BucketName></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case r.Method == http.MethodDelete:
		f.deleted = append(f.deleted, key)
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newMinIOFixture(t *testing.T) (*fakeMinIO, ObjectStore, string) {
	t.Helper()
	fake := &fakeMinIO{
		bucket:    "cloud-storage-files",
		objects:   map[string][]byte{},
		putBodies: map[string][]byte{},
		putTypes:  map[string]string{},
	}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	endpoint := strings.TrimPrefix(srv.URL, "http://")
	store, err := New(context.Background(), config.StorageConfig{
		Driver:          "minio",
		Endpoint:        endpoint,
		AccessKeyID:     "minio",
		SecretAccessKey: "minio-secret",
		BucketName:      "cloud-storage-files",
		Region:          "us-east-1",
	})
	require.NoError(t, err)
	return fake, store, endpoint
}

func TestMinIOStore_CreatesMissingBucket(t *testing.T) {
	fake, _, _ := newMinIOFixture(t)
	assert.True(t, fake.bucketCreated)
}

func TestMinIOStore_PutGetRemove(t *testing.T) {
	fake, store, _ := newMinIOFixture(t)
	ctx := context.Background()

	payload := []byte("quarterly budget review")
	require.NoError(t, store.PutObject(ctx, "u1/report.txt", bytes.NewReader(payload), int64(len(payload)), "text/plain"))
	fake.mu.Lock()
	assert.Equal(t, "text/plain", fake.putTypes["u1/report.txt"])
	// the body may be aws-chunked, which keeps the payload inline
	assert.True(t, bytes.Contains(fake.putBodies["u1/report.txt"], payload))
	fake.objects["u1/report.txt"] = payload
	fake.mu.Unlock()

	data, err := store.GetObject(ctx, "u1/report.txt")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	require.NoError(t, store.RemoveObject(ctx, "u1/report.txt"))
	assert.Equal(t, []string{"u1/report.txt"}, fake.deleted)

	_, err = store.GetObject(ctx, "u1/report.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestMinIOStore_PresignedGetURL(t *testing.T) {
	_, store, endpoint := newMinIOFixture(t)

	url, err := store.PresignedGetURL(context.Background(), "u1/report.txt", time.Hour)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://"+endpoint+"/cloud-storage-files/u1/report.txt?"), url)
	assert.Contains(t, url, "X-Amz-Expires=3600")
}
