package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memCache) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func newTestUserDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}))
	return db
}

func newUserService(t *testing.T) (UserService, *gorm.DB) {
	t.Helper()
	db := newTestUserDB(t)
	return NewUserService(repository.NewUserRepository(db), nil, 0), db
}

func TestUserService_SyncCreatesAndUpdates(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	first, err := svc.Sync(ctx, "ext-1", "a@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	second, err := svc.Sync(ctx, "ext-1", "b@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "b@example.com", second.Email)

	var count int64
	require.NoError(t, db.Model(&model.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUserService_SyncRekeysOnEmailCollision(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	orig, err := svc.Sync(ctx, "old-ext", "a@example.com")
	require.NoError(t, err)

	moved, err := svc.Sync(ctx, "new-ext", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, moved.ID)
	assert.Equal(t, "new-ext", moved.ExternalID)
}

func TestUserService_SyncRequiresEmail(t *testing.T) {
	svc, _ := newUserService(t)
	_, err := svc.Sync(context.Background(), "ext-1", "")
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestUserService_ResolveSyncsOnFirstSight(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, "ext-9", "z@example.com")
	require.NoError(t, err)
	again, err := svc.Resolve(ctx, "ext-9", "ignored@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "z@example.com", again.Email)

	got, err := svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "ext-9", got.ExternalID)

	_, err = svc.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserService_RekeyInvalidatesBothCacheEntries(t *testing.T) {
	cache := &memCache{data: map[string]string{}}
	svc := &userService{
		userRepo: repository.NewUserRepository(newTestUserDB(t)),
		cache:    cache,
		cacheTTL: time.Minute,
	}
	ctx := context.Background()

	orig, err := svc.Resolve(ctx, "old-ext", "a@example.com")
	require.NoError(t, err)
	require.True(t, cache.has(userCacheKey("old-ext")))

	cached, err := svc.Resolve(ctx, "old-ext", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, cached.ID)

	moved, err := svc.Sync(ctx, "new-ext", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, moved.ID)
	assert.False(t, cache.has(userCacheKey("old-ext")))
	assert.False(t, cache.has(userCacheKey("new-ext")))

	got, err := svc.Resolve(ctx, "new-ext", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, "new-ext", got.ExternalID)
}
