package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/controller"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/pkg/chessdto"
)

func newCatalog(t *testing.T) *msgcat.Catalog {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func TestSquareAt(t *testing.T) {
	cases := []struct {
		x, y int
		want string
		ok   bool
	}{
		{x: 2, y: 0, want: "a8", ok: true},
		{x: 4, y: 0, want: "a8", ok: true},
		{x: 5, y: 0, want: "b8", ok: true},
		{x: 25, y: 7, want: "h1", ok: true},
		{x: 11, y: 6, want: "d2", ok: true},
		{x: 1, y: 3},
		{x: 26, y: 3},
		{x: 5, y: 8},
		{x: 5, y: -1},
	}
	for _, tc := range cases {
		sq, ok := squareAt(0, 0, tc.x, tc.y)
		if ok != tc.ok {
			t.Fatalf("(%d,%d) ok = %v, want %v", tc.x, tc.y, ok, tc.ok)
		}
		if ok && sq.String() != tc.want {
			t.Fatalf("(%d,%d) = %s, want %s", tc.x, tc.y, sq, tc.want)
		}
	}
	if sq, ok := squareAt(10, 5, 12, 5); !ok || sq.String() != "a8" {
		t.Fatalf("offset origin = %s, %v", sq, ok)
	}
}

func TestBoardViewClickForwardsSquare(t *testing.T) {
	v := NewBoardView()
	v.Box.SetRect(0, 0, 30, 10)
	var got []string
	v.SetClickHandler(func(sq rules.Square) { got = append(got, sq.String()) })

	if !v.HandleClick(5, 6) {
		t.Fatalf("click on board not handled")
	}
	if v.HandleClick(0, 0) {
		t.Fatalf("click on rank label handled")
	}
	if len(got) != 1 || got[0] != "b2" {
		t.Fatalf("clicks = %v", got)
	}
}

func TestBoardViewDrawsFrame(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(30, 10)

	v := NewBoardView()
	redraws := 0
	v.SetRedraw(func() { redraws++ })
	board.NewRenderer(v).Render(rules.NewChessGame())
	v.Mark(rules.SquareAt(6, 4), true)
	if redraws != 2 {
		t.Fatalf("redraws = %d", redraws)
	}

	v.Box.SetRect(0, 0, 30, 10)
	v.Box.Draw(screen)

	if r, _, _, _ := screen.GetContent(3, 0); r != '♜' {
		t.Fatalf("a8 = %q", r)
	}
	if r, _, _, _ := screen.GetContent(0, 7); r != '1' {
		t.Fatalf("rank label = %q", r)
	}
	_, _, style, _ := screen.GetContent(2+4*cellWidth+1, 6)
	if _, bg, _ := style.Decompose(); bg != selectedSquare {
		t.Fatalf("e2 background = %v", bg)
	}
}

func TestStatusTexts(t *testing.T) {
	cat := newCatalog(t)
	if got := turnLine(cat, controller.Idle, rules.Black); got != "Black to move" {
		t.Fatalf("turn = %q", got)
	}
	if got := turnLine(cat, controller.InFlight, rules.White); !strings.Contains(got, "arbiter") {
		t.Fatalf("thinking = %q", got)
	}
	if got := gameOverText(cat, controller.Result{Winner: rules.White}); got != "Game Over! White wins!" {
		t.Fatalf("win = %q", got)
	}
	if got := gameOverText(cat, controller.Result{Draw: true}); got != "Game Over! Draw!" {
		t.Fatalf("draw = %q", got)
	}
	if got := gameOverText(nil, controller.Result{Winner: rules.Black}); got != "Game Over! Black wins!" {
		t.Fatalf("nil catalog = %q", got)
	}
}

type fakeArbiter struct {
	state    *chessdto.GameState
	err      error
	newHuman rules.Color
}

func (f *fakeArbiter) Submit(context.Context, controller.Move) (controller.Verdict, error) {
	return controller.Verdict{}, errors.New("not used")
}

func (f *fakeArbiter) State(context.Context) (*chessdto.GameState, error) {
	return f.state, f.err
}

func (f *fakeArbiter) NewGame(_ context.Context, human rules.Color) (*chessdto.GameState, error) {
	f.newHuman = human
	return f.state, f.err
}

func newTestApp(t *testing.T, arb *fakeArbiter, human rules.Color) *App {
	t.Helper()
	a := New(Config{Arbiter: arb, Catalog: newCatalog(t), Human: human})
	a.queue = func(func()) {}
	t.Cleanup(a.ctl.Close)
	return a
}

func TestSyncLoadsArbiterPosition(t *testing.T) {
	const fen = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"
	a := newTestApp(t, &fakeArbiter{state: &chessdto.GameState{FEN: fen, Status: "active"}}, rules.White)

	if err := a.sync(context.Background(), false); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if a.game.FEN() != fen {
		t.Fatalf("fen = %q", a.game.FEN())
	}
	cells := a.view.Cells()
	if len(cells) != 64 || cells[4*8+4].Glyph != "♙" {
		t.Fatalf("e4 not drawn: %+v", cells[4*8+4])
	}
	if got := a.statusText(); got != "White to move" {
		t.Fatalf("status = %q", got)
	}
}

func TestSyncFreshGameAsBlack(t *testing.T) {
	const fen = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	arb := &fakeArbiter{state: &chessdto.GameState{FEN: fen, Status: "active"}}
	a := newTestApp(t, arb, rules.Black)

	if err := a.sync(context.Background(), true); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if arb.newHuman != rules.Black {
		t.Fatalf("new game human = %v", arb.newHuman)
	}
	if got := a.statusText(); !strings.Contains(got, "You play Black") {
		t.Fatalf("status = %q", got)
	}
}

func TestSyncReportsFinishedGame(t *testing.T) {
	const mated = "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3"
	a := newTestApp(t, &fakeArbiter{state: &chessdto.GameState{FEN: mated, Status: "finished"}}, rules.White)

	if err := a.sync(context.Background(), false); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := a.statusText(); got != "Game Over! Black wins!" {
		t.Fatalf("status = %q", got)
	}
}

func TestSyncOffline(t *testing.T) {
	a := newTestApp(t, &fakeArbiter{err: errors.New("connection refused")}, rules.White)
	if err := a.sync(context.Background(), false); err == nil {
		t.Fatalf("expected error")
	}
	if got := a.statusText(); !strings.Contains(got, "Arbiter unreachable: connection refused") {
		t.Fatalf("status = %q", got)
	}
}
