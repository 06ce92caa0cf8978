package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"muichiro-nexus/internal/model"
	"muichiro-nexus/internal/repository"
	"muichiro-nexus/pkg/log"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// UserService maps identity-provider subjects to internal users.
type UserService interface {
	// Sync upserts the user keyed on externalID. When the email already
	// belongs to another row, that row is re-keyed to externalID.
	Sync(ctx context.Context, externalID, email string) (*model.User, error)
	// Resolve returns the user for a verified identity, syncing on first sight.
	Resolve(ctx context.Context, externalID, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// userCache is the subset of the Redis client the service caches users in.
type userCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type userService struct {
	userRepo repository.UserRepository
	cache    userCache
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewUserService builds the service. rdb may be nil, which disables caching.
func NewUserService(userRepo repository.UserRepository, rdb *redis.Client, cacheTTL time.Duration) UserService {
	s := &userService{userRepo: userRepo, cacheTTL: cacheTTL}
	if rdb != nil {
		s.cache = rdb
	}
	return s
}

func userCacheKey(externalID string) string {
	return "user:ext:" + externalID
}

func (s *userService) Sync(ctx context.Context, externalID, email string) (*model.User, error) {
	if email == "" {
		log.Warnf("[UserService] user %s has no primary email, cannot sync", externalID)
		return nil, ErrMissingEmail
	}

	err := s.userRepo.UpsertByExternalID(ctx, &model.User{ExternalID: externalID, Email: email})
	if err != nil && !repository.IsDuplicateKey(err) {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	if err == nil {
		user, ferr := s.userRepo.FindByExternalID(ctx, externalID)
		if ferr == nil {
			s.invalidate(ctx, externalID)
			return user, nil
		}
		// MySQL resolves an email collision by touching the other row; the
		// new external id is then missing.
		if !errors.Is(ferr, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("reload user: %w", ferr)
		}
	}

	log.Warnf("[UserService] duplicate email %s, re-keying existing user to %s", email, externalID)
	user, previous, err := s.userRepo.RekeyByEmail(ctx, email, externalID)
	if err != nil {
		return nil, fmt.Errorf("update existing user by email: %w", err)
	}
	s.invalidate(ctx, externalID, previous)
	return user, nil
}

func (s *userService) Resolve(ctx context.Context, externalID, email string) (*model.User, error) {
	if user := s.cached(ctx, externalID); user != nil {
		return user, nil
	}

	v, err, _ := s.group.Do(externalID, func() (interface{}, error) {
		user, err := s.userRepo.FindByExternalID(ctx, externalID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user, err = s.Sync(ctx, externalID, email)
		}
		if err != nil {
			return nil, err
		}
		s.store(ctx, user)
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.User), nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return user, err
}

func (s *userService) cached(ctx context.Context, externalID string) *model.User {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, userCacheKey(externalID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[UserService] cache read failed: %v", err)
		}
		return nil
	}
	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil
	}
	return &user
}

func (s *userService) store(ctx context.Context, user *model.User) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, userCacheKey(user.ExternalID), raw, s.cacheTTL).Err(); err != nil {
		log.Warnf("[UserService] cache write failed: %v", err)
	}
}

func (s *userService) invalidate(ctx context.Context, externalIDs ...string) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(externalIDs))
	for _, id := range externalIDs {
		if id != "" {
			keys = append(keys, userCacheKey(id))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		log.Warnf("[UserService] cache invalidation failed: %v", err)
	}
}
