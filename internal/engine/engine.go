// Package engine picks the computer reply for a position.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/engine/uci"
	"github.com/park285/cheese-board/internal/rules"
)

// ErrNoMove is returned when the side to move has no legal move.
var ErrNoMove = errors.New("no legal move")

// Position is the game as a start FEN plus the UCI moves played from it.
// An empty FEN means the standard initial position.
type Position struct {
	FEN   string
	Moves []string
}

type Mover interface {
	BestMove(ctx context.Context, pos Position) (string, error)
}

// RandomMover plays a uniformly random legal move. It is used when no engine binary is configured.
type RandomMover struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomMover(seed int64) *RandomMover {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomMover{rng: rand.New(rand.NewSource(seed))}
}

func (m *RandomMover) BestMove(ctx context.Context, pos Position) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g, err := replay(pos)
	if err != nil {
		return "", err
	}
	moves := g.ValidMovesUCI()
	if len(moves) == 0 {
		return "", ErrNoMove
	}
	m.mu.Lock()
	idx := m.rng.Intn(len(moves))
	m.mu.Unlock()
	return moves[idx], nil
}

func replay(pos Position) (*rules.ChessGame, error) {
	fen := pos.FEN
	if fen == "" {
		fen = rules.StartFEN
	}
	g, err := rules.NewChessGameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	for _, mv := range pos.Moves {
		if _, err := g.ApplyUCI(mv); err != nil {
			return nil, err
		}
	}
	return g, nil
}

type StockfishConfig struct {
	BinaryPath     string
	Depth          int
	MoveTimeMillis int
	PoolSize       int
	SkillLevel     int
	Logger         *zap.Logger
}

// Stockfish asks a pooled UCI engine for its best move.
type Stockfish struct {
	pool   *uci.Pool
	limits uci.Limits
	logger *zap.Logger
}

func NewStockfish(cfg StockfishConfig) (*Stockfish, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath: cfg.BinaryPath,
		Capacity:   cfg.PoolSize,
		Options:    uci.Options{SkillLevel: cfg.SkillLevel},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	limits := uci.Limits{Depth: cfg.Depth, MoveTimeMillis: cfg.MoveTimeMillis}
	if limits.Depth <= 0 && limits.MoveTimeMillis <= 0 {
		limits.Depth = 3
	}
	return &Stockfish{pool: pool, limits: limits, logger: logger}, nil
}

func (s *Stockfish) BestMove(ctx context.Context, pos Position) (string, error) {
	session, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	var releaseErr error
	defer func() {
		s.pool.Release(session, releaseErr)
	}()

	start := time.Now()
	resp, err := session.Search(ctx, uci.SearchRequest{FEN: pos.FEN, Moves: pos.Moves, Limits: s.limits})
	if err != nil {
		releaseErr = err
		return "", err
	}
	if resp.BestMove == "" || resp.BestMove == "(none)" || resp.BestMove == "0000" {
		return "", ErrNoMove
	}
	s.logger.Debug("engine_move",
		zap.String("move", resp.BestMove),
		zap.Int("eval_cp", resp.EvalCP),
		zap.Duration("took", time.Since(start)),
	)
	return resp.BestMove, nil
}

func (s *Stockfish) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
