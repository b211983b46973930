package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore connects to REDIS_URL-style addresses (redis://[:pass@]host:port/db).
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(rdb, ttl), nil
}

func NewRedisStoreWithClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) key(id string) string { return "board:game:" + strings.TrimSpace(id) }

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	key := s.key(sess.ID)
	next := sess.Clone()
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var cur int64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var stored Session
			if err := json.Unmarshal(raw, &stored); err != nil {
				return err
			}
			cur = stored.Version
		}
		if cur != sess.Version {
			return redis.TxFailedErr
		}

		next.Version = sess.Version + 1
		next.UpdatedAt = time.Now().UTC()
		if next.CreatedAt.IsZero() {
			next.CreatedAt = next.UpdatedAt
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, payload, s.ttl)
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	if err != nil {
		return err
	}
	sess.Version = next.Version
	sess.UpdatedAt = next.UpdatedAt
	sess.CreatedAt = next.CreatedAt
	return nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
