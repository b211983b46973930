// Package board turns game state into the 64 square views drawn by a surface.
package board

import (
	"github.com/park285/cheese-board/internal/rules"
)

type Shade uint8

const (
	Light Shade = iota
	Dark
)

// Class returns the square colour class name, "white" or "black".
func (s Shade) Class() string {
	if s == Dark {
		return "black"
	}
	return "white"
}

// Cell is one rendered square.
type Cell struct {
	Row      int
	Col      int
	Square   rules.Square
	Shade    Shade
	Piece    rules.Piece
	Glyph    string
	Selected bool
}

var glyphs = map[rules.Color]map[rules.PieceType]string{
	rules.White: {
		rules.King:   "♔",
		rules.Queen:  "♕",
		rules.Rook:   "♖",
		rules.Bishop: "♗",
		rules.Knight: "♘",
		rules.Pawn:   "♙",
	},
	rules.Black: {
		rules.King:   "♚",
		rules.Queen:  "♛",
		rules.Rook:   "♜",
		rules.Bishop: "♝",
		rules.Knight: "♞",
		rules.Pawn:   "♟",
	},
}

// Glyph returns the display symbol for a piece, or "" for an empty square.
func Glyph(p rules.Piece) string {
	if p.IsZero() {
		return ""
	}
	return glyphs[p.Color][p.Type]
}

// ShadeAt is Dark iff row+col is odd.
func ShadeAt(row, col int) Shade {
	if (row+col)%2 == 1 {
		return Dark
	}
	return Light
}

// Build produces the 64 cells in row-major order, rank 8 first.
func Build(game rules.Game, selected *rules.Square) []Cell {
	cells := make([]Cell, 0, 64)
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			sq := rules.SquareAt(row, col)
			cell := Cell{
				Row:    row,
				Col:    col,
				Square: sq,
				Shade:  ShadeAt(row, col),
			}
			if game != nil {
				if p, ok := game.Get(sq); ok {
					cell.Piece = p
					cell.Glyph = Glyph(p)
				}
			}
			if selected != nil && *selected == sq {
				cell.Selected = true
			}
			cells = append(cells, cell)
		}
	}
	return cells
}
