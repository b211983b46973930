// Package tui is the terminal board client built on tview.
package tui

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/rules"
)

const (
	labelWidth = 2 // rank digit + space
	cellWidth  = 3
)

var (
	lightSquare    = tcell.NewRGBColor(240, 217, 181)
	darkSquare     = tcell.NewRGBColor(181, 136, 99)
	selectedSquare = tcell.NewRGBColor(246, 246, 105)
	whitePiece     = tcell.NewRGBColor(255, 255, 255)
	blackPiece     = tcell.NewRGBColor(0, 0, 0)
)

// BoardView is a tview box that implements board.Surface.
type BoardView struct {
	Box *tview.Box

	mu      sync.Mutex
	cells   []board.Cell
	onClick func(rules.Square)
	redraw  func()
}

func NewBoardView() *BoardView {
	v := &BoardView{Box: tview.NewBox()}
	v.Box.SetDrawFunc(v.draw)
	v.Box.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action != tview.MouseLeftClick || event == nil {
			return action, event
		}
		x, y := event.Position()
		if v.HandleClick(x, y) {
			return action, nil
		}
		return action, event
	})
	return v
}

// SetClickHandler registers the callback for clicks that land on a square.
func (v *BoardView) SetClickHandler(fn func(rules.Square)) {
	v.mu.Lock()
	v.onClick = fn
	v.mu.Unlock()
}

// SetRedraw registers the callback run after every frame or marker change.
// It is called while the controller holds its lock, so it must not block on the UI goroutine.
func (v *BoardView) SetRedraw(fn func()) {
	v.mu.Lock()
	v.redraw = fn
	v.mu.Unlock()
}

func (v *BoardView) Replace(cells []board.Cell) {
	v.mu.Lock()
	v.cells = append(v.cells[:0], cells...)
	redraw := v.redraw
	v.mu.Unlock()
	if redraw != nil {
		redraw()
	}
}

func (v *BoardView) Mark(sq rules.Square, on bool) {
	v.mu.Lock()
	for i := range v.cells {
		if v.cells[i].Square == sq {
			v.cells[i].Selected = on
		}
	}
	redraw := v.redraw
	v.mu.Unlock()
	if redraw != nil {
		redraw()
	}
}

// Cells returns a copy of the current frame.
func (v *BoardView) Cells() []board.Cell {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]board.Cell(nil), v.cells...)
}

// HandleClick maps a screen position to a square and forwards it. It reports whether the click hit the board.
func (v *BoardView) HandleClick(x, y int) bool {
	ox, oy, _, _ := v.Box.GetInnerRect()
	sq, ok := squareAt(ox, oy, x, y)
	if !ok {
		return false
	}
	v.mu.Lock()
	fn := v.onClick
	v.mu.Unlock()
	if fn != nil {
		fn(sq)
	}
	return true
}

// squareAt converts screen coordinates into a board square, rank 8 on the top row.
func squareAt(originX, originY, x, y int) (rules.Square, bool) {
	dx := x - originX - labelWidth
	row := y - originY
	if dx < 0 || row < 0 || row > 7 {
		return rules.Square{}, false
	}
	col := dx / cellWidth
	if col > 7 {
		return rules.Square{}, false
	}
	return rules.SquareAt(row, col), true
}

func (v *BoardView) draw(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
	cells := v.Cells()
	label := tcell.StyleDefault
	for _, c := range cells {
		left := x + labelWidth + c.Col*cellWidth
		top := y + c.Row
		if c.Col == 0 {
			screen.SetContent(x, top, rune(c.Square.Rank()), nil, label)
		}
		style := tcell.StyleDefault.Background(squareColor(c))
		if !c.Piece.IsZero() {
			if c.Piece.Color == rules.White {
				style = style.Foreground(whitePiece).Bold(true)
			} else {
				style = style.Foreground(blackPiece)
			}
		}
		glyph := ' '
		if c.Glyph != "" {
			glyph = []rune(c.Glyph)[0]
		}
		screen.SetContent(left, top, ' ', nil, style)
		screen.SetContent(left+1, top, glyph, nil, style)
		// wide glyphs already cover the third column
		if runewidth.RuneWidth(glyph) < 2 {
			screen.SetContent(left+2, top, ' ', nil, style)
		}
	}
	if len(cells) > 0 {
		for col := 0; col < 8; col++ {
			screen.SetContent(x+labelWidth+col*cellWidth+1, y+8, rune('a'+col), nil, label)
		}
	}
	return x, y, labelWidth + 8*cellWidth, 9
}

func squareColor(c board.Cell) tcell.Color {
	switch {
	case c.Selected:
		return selectedSquare
	case c.Shade == board.Dark:
		return darkSquare
	default:
		return lightSquare
	}
}
