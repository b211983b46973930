// Package repository archives finished games.
package repository

import (
	"context"
	"sync"

	"github.com/park285/cheese-board/internal/domain"
)

type Repository interface {
	SaveResult(ctx context.Context, g *domain.FinishedGame) error
}

// Memory keeps results in process; it backs the arbiter when DATABASE_URL is unset.
type Memory struct {
	mu    sync.RWMutex
	games map[string]domain.FinishedGame
	order []string
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]domain.FinishedGame)}
}

func (m *Memory) SaveResult(ctx context.Context, g *domain.FinishedGame) error {
	if g == nil {
		return nil
	}
	rec := *g
	rec.MovesUCI = append([]string(nil), g.MovesUCI...)
	rec.MovesSAN = append([]string(nil), g.MovesSAN...)
	if rec.PGN == "" {
		rec.PGN = BuildPGN(&rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[rec.GameID]; !ok {
		m.order = append(m.order, rec.GameID)
	}
	m.games[rec.GameID] = rec
	return nil
}

func (m *Memory) Get(id string) (domain.FinishedGame, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	return g, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
