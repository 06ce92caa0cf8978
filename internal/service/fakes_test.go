package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/pkg/llm"
	"muichiro-nexus/pkg/storage"
	"muichiro-nexus/pkg/tasks"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeStore struct {
	storage.ObjectStore

	mu        sync.Mutex
	objects   map[string][]byte
	putErr    error
	removeErr error
	removed   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) PutObject(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStore) GetObject(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return data, nil
}

func (f *fakeStore) RemoveObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, key)
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) PresignedGetURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	return "https://storage.example.com/" + key + "?expires=" + expiry.String(), nil
}

// fakeFileRepo keeps records in memory, newest appended last.
type fakeFileRepo struct {
	repository.FileRepository

	files     []model.File
	createErr error
	deleteErr error
	lastQuery *repository.FileFilter
}

func (f *fakeFileRepo) Create(_ context.Context, file *model.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	if file.ID == "" {
		file.ID = "file-" + file.FileName
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now()
	}
	f.files = append(f.files, *file)
	return nil
}

func (f *fakeFileRepo) find(id, userID string) (*model.File, error) {
	for i := range f.files {
		if f.files[i].ID == id && (userID == "" || f.files[i].UserID == userID) {
			cp := f.files[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeFileRepo) FindByID(_ context.Context, id string) (*model.File, error) {
	return f.find(id, "")
}

func (f *fakeFileRepo) FindByIDForUser(_ context.Context, id, userID string) (*model.File, error) {
	return f.find(id, userID)
}

func (f *fakeFileRepo) FindByPathForUser(_ context.Context, path, userID string) (*model.File, error) {
	for i := range f.files {
		if f.files[i].FilePath == path && f.files[i].UserID == userID {
			cp := f.files[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeFileRepo) ListByUser(_ context.Context, userID string) ([]model.File, error) {
	var out []model.File
	for i := len(f.files) - 1; i >= 0; i-- {
		if f.files[i].UserID == userID {
			out = append(out, f.files[i])
		}
	}
	return out, nil
}

func (f *fakeFileRepo) ListForSearch(ctx context.Context, userID string, filter repository.FileFilter) ([]model.File, error) {
	f.lastQuery = &filter
	return f.ListByUser(ctx, userID)
}

func (f *fakeFileRepo) UpdateAnalysis(_ context.Context, id string, metadata datatypes.JSON) error {
	for i := range f.files {
		if f.files[i].ID == id {
			f.files[i].AIMetadata = metadata
			f.files[i].Analyzed = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeFileRepo) Delete(_ context.Context, id, userID string) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	for i := range f.files {
		if f.files[i].ID == id && f.files[i].UserID == userID {
			f.files = append(f.files[:i], f.files[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

type fakeDispatcher struct {
	tasks []tasks.FileProcessingTask
	err   error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, task tasks.FileProcessingTask) error {
	d.tasks = append(d.tasks, task)
	return d.err
}

type fakeChunkRepo struct {
	repository.ChunkRepository
	deleted []string
	err     error
}

func (f *fakeChunkRepo) DeleteByFile(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return f.err
}

type fakeIndex struct {
	deleted []string
	err     error

	matches    []model.ChunkMatch
	searchErr  error
	lastUser   string
	lastK      int
	lastVector []float32
}

func (f *fakeIndex) DeleteByFile(_ context.Context, fileID string) error {
	f.deleted = append(f.deleted, fileID)
	return f.err
}

func (f *fakeIndex) SearchKNN(_ context.Context, userID string, vector []float32, k int) ([]model.ChunkMatch, error) {
	f.lastUser, f.lastK, f.lastVector = userID, k, vector
	return f.matches, f.searchErr
}

type fakeEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	return f.vector, f.err
}

func (f *fakeEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.CreateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeLLM struct {
	reply    string
	err      error
	model    string
	messages []llm.Message
	deltas   []string
}

func (f *fakeLLM) Chat(_ context.Context, model string, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.model, f.messages = model, messages
	return f.reply, f.err
}

func (f *fakeLLM) StreamChat(_ context.Context, model string, messages []llm.Message, _ *llm.GenerationParams, w llm.MessageWriter) (string, error) {
	f.model, f.messages = model, messages
	if f.err != nil {
		return "", f.err
	}
	for _, d := range f.deltas {
		if err := w.WriteMessage(1, []byte(d)); err != nil {
			return "", err
		}
	}
	return f.reply, nil
}

type fakeTextExtractor struct {
	text string
	err  error
}

func (f fakeTextExtractor) Extract(context.Context, []byte, string, string) (string, error) {
	return f.text, f.err
}

var errBoom = errors.New("boom")
