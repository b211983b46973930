package engine

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	chesslib "github.com/corentings/chess/v2"
	"go.uber.org/zap"
)

// DefaultBookPlies bounds how deep into the game the opening book is consulted.
const DefaultBookPlies = 16

// BookMover answers from a Polyglot opening book and hands every other position to Next.
type BookMover struct {
	book     *chesslib.PolyglotBook
	next     Mover
	maxPlies int
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// LoadBook reads a Polyglot .bin file.
func LoadBook(path string) (*chesslib.PolyglotBook, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("polyglot book path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	defer file.Close()

	book, err := chesslib.LoadFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %q: %w", path, err)
	}
	return book, nil
}

func NewBookMover(book *chesslib.PolyglotBook, next Mover, maxPlies int, logger *zap.Logger) *BookMover {
	if maxPlies <= 0 {
		maxPlies = DefaultBookPlies
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookMover{
		book:     book,
		next:     next,
		maxPlies: maxPlies,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *BookMover) BestMove(ctx context.Context, pos Position) (string, error) {
	if mv, ok := b.lookup(pos); ok {
		b.logger.Debug("book_move", zap.String("move", mv), zap.Int("ply", len(pos.Moves)+1))
		return mv, nil
	}
	if b.next == nil {
		return "", ErrNoMove
	}
	return b.next.BestMove(ctx, pos)
}

// lookup picks a book move weighted by entry weight. Entries that are not legal here are skipped.
func (b *BookMover) lookup(pos Position) (string, bool) {
	if b.book == nil || len(pos.Moves) >= b.maxPlies {
		return "", false
	}
	g, err := replay(pos)
	if err != nil {
		return "", false
	}
	hash, err := chesslib.NewZobristHasher().HashPosition(g.FEN())
	if err != nil {
		b.logger.Warn("book_hash_failed", zap.Error(err))
		return "", false
	}
	entries := b.book.FindMoves(chesslib.ZobristHashToUint64(hash))
	if len(entries) == 0 {
		return "", false
	}

	legal := make(map[string]struct{})
	for _, mv := range g.ValidMovesUCI() {
		legal[mv] = struct{}{}
	}
	var (
		moves   []string
		weights []int
		total   int
	)
	for _, e := range entries {
		mv := chesslib.DecodeMove(e.Move).ToMove()
		uciMove := mv.String()
		if _, ok := legal[uciMove]; !ok {
			continue
		}
		w := int(e.Weight)
		if w <= 0 {
			w = 1
		}
		moves = append(moves, uciMove)
		weights = append(weights, w)
		total += w
	}
	if len(moves) == 0 {
		return "", false
	}

	b.mu.Lock()
	pick := b.rng.Intn(total)
	b.mu.Unlock()
	for i, w := range weights {
		if pick < w {
			return moves[i], true
		}
		pick -= w
	}
	return moves[len(moves)-1], true
}

func (b *BookMover) Close() error {
	if c, ok := b.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
