// Package rules wraps the chess rules library behind the small surface the board client needs.
package rules

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSquare = errors.New("invalid square")
	ErrIllegalMove   = errors.New("illegal move")
	ErrInvalidColor  = errors.New("invalid color")
)

// Color identifies a side. The zero value means "no side".
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return "none"
	}
}

// Title returns the capitalised side name used in player-facing texts.
func (c Color) Title() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return ""
	}
}

// ParseColor accepts "white"/"black" and the one-letter forms.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return NoColor, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

type PieceType uint8

const (
	NoPieceType PieceType = iota
	King
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

func (t PieceType) String() string {
	switch t {
	case King:
		return "king"
	case Queen:
		return "queen"
	case Rook:
		return "rook"
	case Bishop:
		return "bishop"
	case Knight:
		return "knight"
	case Pawn:
		return "pawn"
	default:
		return ""
	}
}

// PromotionSuffix maps a promotion piece to its UCI letter.
func (t PieceType) PromotionSuffix() string {
	switch t {
	case Queen:
		return "q"
	case Rook:
		return "r"
	case Bishop:
		return "b"
	case Knight:
		return "n"
	default:
		return ""
	}
}

func promotionFromSuffix(s string) PieceType {
	switch strings.ToLower(s) {
	case "q":
		return Queen
	case "r":
		return Rook
	case "b":
		return Bishop
	case "n":
		return Knight
	default:
		return NoPieceType
	}
}

// Piece is a typed, coloured piece. The zero value is an empty square.
type Piece struct {
	Type  PieceType
	Color Color
}

func (p Piece) IsZero() bool { return p.Type == NoPieceType }

// Square addresses a board cell by grid position: row 0 is rank 8, col 0 is file a.
type Square struct {
	Row int
	Col int
}

// SquareAt returns the square at grid (row, col).
func SquareAt(row, col int) Square { return Square{Row: row, Col: col} }

func (s Square) Valid() bool {
	return s.Row >= 0 && s.Row < 8 && s.Col >= 0 && s.Col < 8
}

// File returns the file letter 'a'..'h'.
func (s Square) File() byte { return byte('a' + s.Col) }

// Rank returns the rank digit '1'..'8'.
func (s Square) Rank() byte { return byte('8' - s.Row) }

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return string([]byte{s.File(), s.Rank()})
}

// ParseSquare parses algebraic coordinates such as "e4".
func ParseSquare(raw string) (Square, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if len(v) != 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, raw)
	}
	file, rank := v[0], v[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, raw)
	}
	return Square{Row: int('8' - rank), Col: int(file - 'a')}, nil
}

// ParseUCI splits a 4 or 5 character UCI move into its squares and optional promotion piece.
func ParseUCI(raw string) (from, to Square, promo PieceType, err error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if len(v) != 4 && len(v) != 5 {
		return Square{}, Square{}, NoPieceType, fmt.Errorf("%w: uci %q", ErrIllegalMove, raw)
	}
	if from, err = ParseSquare(v[:2]); err != nil {
		return Square{}, Square{}, NoPieceType, err
	}
	if to, err = ParseSquare(v[2:4]); err != nil {
		return Square{}, Square{}, NoPieceType, err
	}
	if len(v) == 5 {
		promo = promotionFromSuffix(v[4:])
		if promo == NoPieceType {
			return Square{}, Square{}, NoPieceType, fmt.Errorf("%w: promotion %q", ErrIllegalMove, raw)
		}
	}
	return from, to, promo, nil
}
