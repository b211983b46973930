// Package game is the arbiter: it validates player moves against the stored
// session and answers with the computer reply.
package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/domain"
	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/repository"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/internal/store"
	"github.com/park285/cheese-board/pkg/chessdto"
)

const (
	DefaultGameID        = "default"
	DefaultEngineTimeout = 8 * time.Second
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrInvalidColor = errors.New("invalid player color")

	errRejected = errors.New("move rejected")
)

// Verdict answers one submitted move.
type Verdict struct {
	GameID       string
	Legal        bool
	ComputerMove string
	GameOver     bool
	FEN          string
}

type Config struct {
	EngineTimeout time.Duration
}

type Service struct {
	store  store.Store
	mover  engine.Mover
	repo   repository.Repository
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	locksMu sync.Mutex
	locks   map[string]*gameLock

	obsMu     sync.RWMutex
	observers map[int]func(chessdto.GameState)
	nextObs   int
}

func NewService(st store.Store, mover engine.Mover, repo repository.Repository, cfg Config, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if mover == nil {
		return nil, fmt.Errorf("mover is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.EngineTimeout <= 0 {
		cfg.EngineTimeout = DefaultEngineTimeout
	}
	return &Service{
		store:     st,
		mover:     mover,
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		locks:     make(map[string]*gameLock),
		observers: make(map[int]func(chessdto.GameState)),
	}, nil
}

// Subscribe registers fn for every state change. The returned func removes it.
func (s *Service) Subscribe(fn func(chessdto.GameState)) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Service) publish(st chessdto.GameState) {
	s.obsMu.RLock()
	fns := make([]func(chessdto.GameState), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.RUnlock()
	for _, fn := range fns {
		fn(st)
	}
}

// gameLock serialises writers of one game. refs counts holders and waiters.
type gameLock struct {
	mu   sync.Mutex
	refs int
}

// lockGame locks id and returns the unlock func. The entry is dropped once nobody holds or waits for it.
func (s *Service) lockGame(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &gameLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultGameID
	}
	return id
}

// load returns the session for id. The default game is created on first use.
func (s *Service) load(ctx context.Context, id string) (*store.Session, error) {
	sess, err := s.store.Load(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if id != DefaultGameID {
		return nil, ErrGameNotFound
	}
	sess = &store.Session{ID: id, Human: rules.White.String(), Status: store.StatusActive}
	if err := s.store.Save(ctx, sess); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return s.store.Load(ctx, id)
		}
		return nil, err
	}
	return sess, nil
}

func humanOf(sess *store.Session) rules.Color {
	c, err := rules.ParseColor(sess.Human)
	if err != nil {
		return rules.White
	}
	return c
}

// MakeMove validates from→to for the player and, when legal, plays the computer reply.
// Illegal input is reported through Verdict.Legal, not as an error. A session written
// concurrently by another arbiter process is reloaded and the move is judged again.
func (s *Service) MakeMove(ctx context.Context, gameID, from, to string) (Verdict, error) {
	id := normalizeID(gameID)
	unlock := s.lockGame(id)
	defer unlock()

	if _, err := s.load(ctx, id); err != nil {
		return Verdict{}, err
	}
	rejected := Verdict{GameID: id}

	fromSq, err1 := rules.ParseSquare(from)
	toSq, err2 := rules.ParseSquare(to)
	if err1 != nil || err2 != nil {
		return rejected, nil
	}

	var (
		verdict Verdict
		g       *rules.ChessGame
	)
	sess, err := store.Update(ctx, s.store, id, func(sess *store.Session) error {
		var err error
		g, _, err = rules.ReplayUCI(sess.Moves)
		if err != nil {
			return fmt.Errorf("replay session %s: %w", id, err)
		}
		if g.Outcome() != rules.Ongoing || g.Turn() != humanOf(sess) {
			return errRejected
		}

		player, err := g.ApplyUCI(fromSq.String() + toSq.String())
		if err != nil {
			s.logger.Debug("illegal_move", zap.String("game_id", id), zap.String("move", from+to))
			return errRejected
		}
		sess.Moves = append(sess.Moves, player.UCI)
		sess.SAN = append(sess.SAN, player.SAN)

		verdict = Verdict{GameID: id, Legal: true}
		if g.Outcome() == rules.Ongoing {
			if reply, ok := s.computerReply(ctx, id, sess, g); ok {
				verdict.ComputerMove = reply
			}
		}
		verdict.GameOver = g.Outcome() != rules.Ongoing
		verdict.FEN = g.FEN()
		settle(sess, g)
		return nil
	})
	switch {
	case errors.Is(err, errRejected):
		return rejected, nil
	case errors.Is(err, store.ErrConflict):
		s.logger.Warn("session_contended", zap.String("game_id", id))
		return Verdict{}, fmt.Errorf("save session %s: %w", id, err)
	case err != nil:
		return Verdict{}, err
	}
	s.finish(ctx, sess, g)
	return verdict, nil
}

// computerReply asks the mover and applies its answer to g and sess.
// Failures leave the player's move standing without a reply.
func (s *Service) computerReply(ctx context.Context, id string, sess *store.Session, g *rules.ChessGame) (string, bool) {
	moverCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
	defer cancel()

	start := s.now()
	uci, err := s.mover.BestMove(moverCtx, engine.Position{Moves: append([]string(nil), sess.Moves...)})
	if err != nil {
		s.logger.Warn("engine_move_failed",
			zap.String("game_id", id),
			zap.Int("move_count", len(sess.Moves)),
			zap.Duration("timeout", s.cfg.EngineTimeout),
			zap.Error(err),
		)
		return "", false
	}
	applied, err := g.ApplyUCI(strings.ToLower(strings.TrimSpace(uci)))
	if err != nil {
		s.logger.Warn("engine_move_illegal", zap.String("game_id", id), zap.String("move", uci), zap.Error(err))
		return "", false
	}
	sess.Moves = append(sess.Moves, applied.UCI)
	sess.SAN = append(sess.SAN, applied.SAN)
	s.logger.Info("engine_move",
		zap.String("game_id", id),
		zap.String("move", applied.UCI),
		zap.Duration("took", s.now().Sub(start)),
	)
	return applied.UCI, true
}

// commit persists sess, archives a finished game and notifies observers.
func (s *Service) commit(ctx context.Context, sess *store.Session, g *rules.ChessGame) error {
	settle(sess, g)
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	s.finish(ctx, sess, g)
	return nil
}

// settle copies the outcome of g onto sess.
func settle(sess *store.Session, g *rules.ChessGame) {
	if out := g.Outcome(); out != rules.Ongoing {
		sess.Status = store.StatusFinished
		sess.Result = out.String()
		sess.Method = g.Method()
		return
	}
	sess.Status = store.StatusActive
	sess.Result = ""
	sess.Method = ""
}

// finish runs after a successful save.
func (s *Service) finish(ctx context.Context, sess *store.Session, g *rules.ChessGame) {
	if sess.Status == store.StatusFinished {
		s.archive(ctx, sess, g)
	}
	s.publish(snapshot(sess, g))
}

func (s *Service) archive(ctx context.Context, sess *store.Session, g *rules.ChessGame) {
	if s.repo == nil {
		return
	}
	eco, name := g.Opening()
	rec := &domain.FinishedGame{
		GameID:       sess.ID,
		HumanColor:   sess.Human,
		Result:       sess.Result,
		ResultMethod: sess.Method,
		ECO:          eco,
		Opening:      name,
		MovesUCI:     sess.Moves,
		MovesSAN:     sess.SAN,
		StartedAt:    sess.CreatedAt,
		EndedAt:      sess.UpdatedAt,
	}
	rec.PGN = repository.BuildPGN(rec)
	if err := s.repo.SaveResult(ctx, rec); err != nil {
		s.logger.Warn("archive_failed", zap.String("game_id", sess.ID), zap.Error(err))
		return
	}
	s.logger.Info("game_archived",
		zap.String("game_id", sess.ID),
		zap.String("result", sess.Result),
		zap.String("method", sess.Method),
		zap.Int("plies", len(sess.Moves)),
	)
}

// State returns the snapshot for gameID.
func (s *Service) State(ctx context.Context, gameID string) (chessdto.GameState, error) {
	id := normalizeID(gameID)
	sess, err := s.load(ctx, id)
	if err != nil {
		return chessdto.GameState{}, err
	}
	g, _, err := rules.ReplayUCI(sess.Moves)
	if err != nil {
		return chessdto.GameState{}, fmt.Errorf("replay session %s: %w", id, err)
	}
	return snapshot(sess, g), nil
}

// NewGame starts a game. An empty gameID creates a new id; an existing id is reset.
// When the player takes black the computer opens.
func (s *Service) NewGame(ctx context.Context, gameID, human string) (chessdto.GameState, error) {
	color := rules.White
	if strings.TrimSpace(human) != "" {
		c, err := rules.ParseColor(human)
		if err != nil {
			return chessdto.GameState{}, fmt.Errorf("%w: %q", ErrInvalidColor, human)
		}
		color = c
	}
	id := strings.TrimSpace(gameID)
	if id == "" {
		id = uuid.NewString()
	}
	unlock := s.lockGame(id)
	defer unlock()

	sess := &store.Session{ID: id}
	if cur, err := s.store.Load(ctx, id); err == nil {
		sess.Version = cur.Version
	} else if !errors.Is(err, store.ErrNotFound) {
		return chessdto.GameState{}, err
	}
	sess.Human = color.String()
	sess.CreatedAt = s.now().UTC()

	g := rules.NewChessGame()
	if color == rules.Black {
		s.computerReply(ctx, id, sess, g)
	}
	if err := s.commit(ctx, sess, g); err != nil {
		return chessdto.GameState{}, err
	}
	s.logger.Info("game_started", zap.String("game_id", id), zap.String("human", sess.Human))
	return snapshot(sess, g), nil
}

// Position returns the current board and last move for rendering.
func (s *Service) Position(ctx context.Context, gameID string) (*rules.ChessGame, string, error) {
	id := normalizeID(gameID)
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	g, _, err := rules.ReplayUCI(sess.Moves)
	if err != nil {
		return nil, "", err
	}
	return g, lastMove(sess), nil
}

func lastMove(sess *store.Session) string {
	if len(sess.Moves) == 0 {
		return ""
	}
	return sess.Moves[len(sess.Moves)-1]
}

func snapshot(sess *store.Session, g *rules.ChessGame) chessdto.GameState {
	eco, name := g.Opening()
	return chessdto.GameState{
		GameID:    sess.ID,
		Human:     sess.Human,
		FEN:       g.FEN(),
		Turn:      g.Turn().String(),
		MovesUCI:  append([]string{}, sess.Moves...),
		MovesSAN:  append([]string(nil), sess.SAN...),
		Status:    string(sess.Status),
		Result:    sess.Result,
		LastMove:  lastMove(sess),
		ECO:       eco,
		Opening:   name,
		UpdatedAt: sess.UpdatedAt,
	}
}
