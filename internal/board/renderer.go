package board

import (
	"sync"

	"github.com/park285/cheese-board/internal/rules"
)

// Surface is the board container. Replace swaps in a full frame; Mark toggles the selection marker only.
type Surface interface {
	Replace(cells []Cell)
	Mark(sq rules.Square, on bool)
}

// Renderer draws the current game state onto a surface.
type Renderer struct {
	surface Surface
}

func NewRenderer(surface Surface) *Renderer {
	return &Renderer{surface: surface}
}

// Render rebuilds every square from game state. It never diffs against the previous frame.
func (r *Renderer) Render(game rules.Game) {
	if r == nil || r.surface == nil {
		return
	}
	r.surface.Replace(Build(game, nil))
}

func (r *Renderer) Mark(sq rules.Square, on bool) {
	if r == nil || r.surface == nil {
		return
	}
	r.surface.Mark(sq, on)
}

// TextSurface keeps the last frame as plain text.
type TextSurface struct {
	mu      sync.Mutex
	cells   []Cell
	renders int
}

func NewTextSurface() *TextSurface { return &TextSurface{} }

func (t *TextSurface) Replace(cells []Cell) {
	t.mu.Lock()
	t.cells = append(t.cells[:0], cells...)
	t.renders++
	t.mu.Unlock()
}

func (t *TextSurface) Mark(sq rules.Square, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.cells {
		if t.cells[i].Square == sq {
			t.cells[i].Selected = on
		}
	}
}

// Renders counts full frame replacements.
func (t *TextSurface) Renders() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.renders
}

// Cells returns a copy of the current frame.
func (t *TextSurface) Cells() []Cell {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Cell(nil), t.cells...)
}

// Marked lists squares currently carrying the selection marker.
func (t *TextSurface) Marked() []rules.Square {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []rules.Square
	for _, c := range t.cells {
		if c.Selected {
			out = append(out, c.Square)
		}
	}
	return out
}

// String prints rank 8 first; empty squares are dots, the selected square is bracketed.
func (t *TextSurface) String() string {
	return FormatText(t.Cells())
}

func FormatText(cells []Cell) string {
	buf := make([]byte, 0, 8*40)
	for i, c := range cells {
		if c.Col == 0 {
			buf = append(buf, c.Square.Rank(), ' ')
		}
		sym := c.Glyph
		if sym == "" {
			sym = "·"
		}
		if c.Selected {
			buf = append(buf, '[')
			buf = append(buf, sym...)
			buf = append(buf, ']')
		} else {
			buf = append(buf, ' ')
			buf = append(buf, sym...)
			buf = append(buf, ' ')
		}
		if c.Col == 7 && i != len(cells)-1 {
			buf = append(buf, '\n')
		}
	}
	if len(cells) > 0 {
		buf = append(buf, "\n   a  b  c  d  e  f  g  h"...)
	}
	return string(buf)
}
