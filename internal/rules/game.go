package rules

import (
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Game is the game-state contract the board client depends on.
type Game interface {
	Get(sq Square) (Piece, bool)
	Move(from, to Square) error
	Turn() Color
	InCheckmate() bool
}

// Loader is implemented by games that can be resynchronised from a FEN.
type Loader interface {
	LoadFEN(fen string) error
}

// Promoter is implemented by games that accept an explicit promotion piece.
type Promoter interface {
	MoveWithPromotion(from, to Square, promo PieceType) error
}

type Outcome uint8

const (
	Ongoing Outcome = iota
	WhiteWon
	BlackWon
	Drawn
)

func (o Outcome) String() string {
	switch o {
	case WhiteWon:
		return "white"
	case BlackWon:
		return "black"
	case Drawn:
		return "draw"
	default:
		return "ongoing"
	}
}

// Applied describes a move that was accepted by the rules engine.
type Applied struct {
	UCI string
	SAN string
}

// ChessGame implements Game on top of corentings/chess.
type ChessGame struct {
	mu   sync.RWMutex
	game *nchess.Game
}

func NewChessGame() *ChessGame {
	return &ChessGame{game: nchess.NewGame()}
}

func NewChessGameFromFEN(fen string) (*ChessGame, error) {
	g, err := gameFromFEN(fen)
	if err != nil {
		return nil, err
	}
	return &ChessGame{game: g}, nil
}

// ReplayUCI rebuilds a game from the start position by applying stored UCI moves.
func ReplayUCI(moves []string) (*ChessGame, []Applied, error) {
	g := NewChessGame()
	applied := make([]Applied, 0, len(moves))
	for _, mv := range moves {
		a, err := g.ApplyUCI(mv)
		if err != nil {
			return nil, nil, fmt.Errorf("replay %s: %w", mv, err)
		}
		applied = append(applied, a)
	}
	return g, applied, nil
}

func gameFromFEN(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return nchess.NewGame(opt), nil
}

func (g *ChessGame) Get(sq Square) (Piece, bool) {
	if !sq.Valid() {
		return Piece{}, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	p := g.game.Position().Board().Piece(toNative(sq))
	if p == nchess.NoPiece {
		return Piece{}, false
	}
	return fromNativePiece(p), true
}

// Move applies from→to. A pawn reaching the last rank is promoted to a queen.
func (g *ChessGame) Move(from, to Square) error {
	return g.MoveWithPromotion(from, to, NoPieceType)
}

func (g *ChessGame) MoveWithPromotion(from, to Square, promo PieceType) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %s%s", ErrInvalidSquare, from, to)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, err := g.applyLocked(from, to, promo)
	return err
}

// ApplyUCI applies a move in UCI notation and reports its canonical UCI and SAN forms.
func (g *ChessGame) ApplyUCI(uci string) (Applied, error) {
	from, to, promo, err := ParseUCI(uci)
	if err != nil {
		return Applied{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.applyLocked(from, to, promo)
}

func (g *ChessGame) applyLocked(from, to Square, promo PieceType) (Applied, error) {
	if g.game.Outcome() != nchess.NoOutcome {
		return Applied{}, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	pos := g.game.Position()
	text := from.String() + to.String()
	if promo == NoPieceType && reachesLastRank(pos, from, to) {
		promo = Queen
	}
	text += promo.PromotionSuffix()

	notation := nchess.UCINotation{}
	mv, err := notation.Decode(pos, text)
	if err != nil {
		return Applied{}, fmt.Errorf("%w: %s", ErrIllegalMove, text)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := g.game.Move(mv, nil); err != nil {
		return Applied{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, text, err)
	}
	return Applied{UCI: text, SAN: san}, nil
}

func reachesLastRank(pos *nchess.Position, from, to Square) bool {
	p := pos.Board().Piece(toNative(from))
	if p == nchess.NoPiece || p.Type() != nchess.Pawn {
		return false
	}
	if p.Color() == nchess.White {
		return to.Rank() == '8'
	}
	return to.Rank() == '1'
}

func (g *ChessGame) Turn() Color {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fromNativeColor(g.game.Position().Turn())
}

func (g *ChessGame) InCheckmate() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.game.Position().Status() == nchess.Checkmate
}

func (g *ChessGame) LoadFEN(fen string) error {
	next, err := gameFromFEN(fen)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.game = next
	g.mu.Unlock()
	return nil
}

func (g *ChessGame) FEN() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.game.FEN()
}

func (g *ChessGame) Outcome() Outcome {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch g.game.Outcome() {
	case nchess.WhiteWon:
		return WhiteWon
	case nchess.BlackWon:
		return BlackWon
	case nchess.Draw:
		return Drawn
	default:
		return Ongoing
	}
}

// Method names how a finished game ended, e.g. "checkmate" or "stalemate".
func (g *ChessGame) Method() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.game.Outcome() == nchess.NoOutcome {
		return ""
	}
	return strings.ToLower(g.game.Method().String())
}

// ValidMovesUCI lists every legal move for the side to move.
func (g *ChessGame) ValidMovesUCI() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	moves := g.game.Position().ValidMoves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.S1().String()+mv.S2().String()+nativePromoSuffix(mv.Promo()))
	}
	return out
}

func toNative(sq Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.Col), nchess.Rank(7-sq.Row))
}

func fromNativeColor(c nchess.Color) Color {
	switch c {
	case nchess.White:
		return White
	case nchess.Black:
		return Black
	default:
		return NoColor
	}
}

func fromNativePiece(p nchess.Piece) Piece {
	var t PieceType
	switch p.Type() {
	case nchess.King:
		t = King
	case nchess.Queen:
		t = Queen
	case nchess.Rook:
		t = Rook
	case nchess.Bishop:
		t = Bishop
	case nchess.Knight:
		t = Knight
	case nchess.Pawn:
		t = Pawn
	}
	return Piece{Type: t, Color: fromNativeColor(p.Color())}
}

func nativePromoSuffix(t nchess.PieceType) string {
	switch t {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}
