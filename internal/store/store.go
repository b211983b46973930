// Package store persists in-progress game sessions.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session modified concurrently")
)

type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Session is the arbiter's authoritative record of one game.
// Moves holds UCI strings; the position is always derived by replaying them.
type Session struct {
	ID        string    `json:"id"`
	Human     string    `json:"human"`
	Moves     []string  `json:"moves_uci"`
	SAN       []string  `json:"moves_san"`
	Status    Status    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Method    string    `json:"method,omitempty"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Moves = append([]string(nil), s.Moves...)
	cp.SAN = append([]string(nil), s.SAN...)
	return &cp
}

// Store is implemented by MemoryStore and RedisStore.
//
// Save is an optimistic write: it succeeds only when the stored Version equals
// sess.Version (0 for a new session) and bumps Version on success.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
}

const updateRetries = 5

// Update loads id, applies fn and saves, retrying on ErrConflict.
// fn must be safe to run more than once.
func Update(ctx context.Context, s Store, id string, fn func(*Session) error) (*Session, error) {
	var lastErr error
	for attempt := 0; attempt < updateRetries; attempt++ {
		sess, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(sess); err != nil {
			return nil, err
		}
		err = s.Save(ctx, sess)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
