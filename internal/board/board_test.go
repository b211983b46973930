package board

import (
	"bytes"
	"context"
	"image/png"
	"strings"
	"testing"

	"github.com/park285/cheese-board/internal/rules"
)

func TestBuildCoordinatesAndShade(t *testing.T) {
	cells := Build(rules.NewChessGame(), nil)
	if len(cells) != 64 {
		t.Fatalf("cells = %d", len(cells))
	}
	for i, c := range cells {
		row, col := i/8, i%8
		if c.Row != row || c.Col != col {
			t.Fatalf("cell %d at (%d,%d), want (%d,%d)", i, c.Row, c.Col, row, col)
		}
		want := string([]byte{byte('a' + col), byte('0' + 8 - row)})
		if c.Square.String() != want {
			t.Fatalf("cell %d coordinate %s, want %s", i, c.Square, want)
		}
		dark := (row+col)%2 == 1
		if (c.Shade == Dark) != dark {
			t.Fatalf("cell %s shade %v", c.Square, c.Shade)
		}
	}
	if cells[0].Shade.Class() != "white" || cells[1].Shade.Class() != "black" {
		t.Fatalf("a8 must be light and b8 dark")
	}
}

func TestBuildGlyphs(t *testing.T) {
	cells := Build(rules.NewChessGame(), nil)
	byName := map[string]Cell{}
	for _, c := range cells {
		byName[c.Square.String()] = c
	}
	cases := map[string]string{
		"a8": "♜", "b8": "♞", "c8": "♝", "d8": "♛", "e8": "♚", "a7": "♟",
		"a1": "♖", "b1": "♘", "c1": "♗", "d1": "♕", "e1": "♔", "a2": "♙",
		"e4": "",
	}
	for sq, glyph := range cases {
		if got := byName[sq].Glyph; got != glyph {
			t.Fatalf("%s glyph %q, want %q", sq, got, glyph)
		}
	}
}

func TestBuildSelected(t *testing.T) {
	sel := rules.SquareAt(6, 4)
	cells := Build(rules.NewChessGame(), &sel)
	n := 0
	for _, c := range cells {
		if c.Selected {
			n++
			if c.Square != sel {
				t.Fatalf("wrong square selected: %s", c.Square)
			}
		}
	}
	if n != 1 {
		t.Fatalf("selected count = %d", n)
	}
}

func TestRendererReplacesWholeFrame(t *testing.T) {
	surface := NewTextSurface()
	r := NewRenderer(surface)
	g := rules.NewChessGame()
	r.Mark(rules.SquareAt(6, 0), true)
	r.Render(g)
	r.Mark(rules.SquareAt(6, 0), true)
	if got := surface.Marked(); len(got) != 1 {
		t.Fatalf("marked = %v", got)
	}
	r.Render(g)
	if surface.Renders() != 2 {
		t.Fatalf("renders = %d", surface.Renders())
	}
	if got := surface.Marked(); len(got) != 0 {
		t.Fatalf("render should clear markers, got %v", got)
	}
	text := surface.String()
	if !strings.HasPrefix(text, "8  ♜ ") {
		t.Fatalf("unexpected text frame:\n%s", text)
	}
}

func TestRenderPNG(t *testing.T) {
	sel := rules.SquareAt(6, 4)
	cells := Build(rules.NewChessGame(), &sel)
	out, err := NewPNGRenderer().RenderPNG(context.Background(), cells, RenderOptions{
		SquareSize: 32,
		LastMove:   &MoveHighlight{From: rules.SquareAt(1, 4), To: rules.SquareAt(3, 4)},
	})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w := img.Bounds().Dx(); w != 32*8+32 {
		t.Fatalf("width = %d", w)
	}
}

func TestRenderPNGRejectsShortFrame(t *testing.T) {
	if _, err := NewPNGRenderer().RenderPNG(context.Background(), nil, RenderOptions{}); err != ErrEmptyFrame {
		t.Fatalf("err = %v", err)
	}
}

func TestRenderPNGCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPNGRenderer().RenderPNG(ctx, Build(nil, nil), RenderOptions{}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestSanitizeSVG(t *testing.T) {
	got := string(sanitizeSVG([]byte(`style="fill: #fff; stroke: #000"`)))
	if got != `style="fill:#fff; stroke:#000"` {
		t.Fatalf("sanitizeSVG = %s", got)
	}
}
