package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
)

type redisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) SessionStore {
	return &redisSessionStore{rdb: rdb}
}

func (s *redisSessionStore) Create(ctx context.Context, session *model.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("redisSessionStore.Create marshal: %w", err)
	}

	userKey := userSessionKeyPrefix + session.UserID
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl)
	pipe.SAdd(ctx, userKey, session.ID)
	// Sessions share one TTL, so the newest one always outlives the rest.
	pipe.Expire(ctx, userKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisSessionStore.Create: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("redisSessionStore.Get: %w", err)
	}
	var session model.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("redisSessionStore.Get unmarshal: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, common.ErrNotFound
	}
	return &session, nil
}

func (s *redisSessionStore) Revoke(ctx context.Context, id string) error {
	session, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, sessionKeyPrefix+id)
	pipe.SRem(ctx, userSessionKeyPrefix+session.UserID, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisSessionStore.Revoke: %w", err)
	}
	return nil
}

func (s *redisSessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	userKey := userSessionKeyPrefix + userID
	ids, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("redisSessionStore.RevokeAllForUser: %w", err)
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}
	keys = append(keys, userKey)
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redisSessionStore.RevokeAllForUser: %w", err)
	}
	return nil
}
