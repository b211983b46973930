package tui

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/controller"
	"github.com/park285/cheese-board/internal/msgcat"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/pkg/chessdto"
)

const requestTimeout = 10 * time.Second

// Arbiter is the remote side the terminal client talks to.
type Arbiter interface {
	controller.Arbiter
	State(ctx context.Context) (*chessdto.GameState, error)
	NewGame(ctx context.Context, human rules.Color) (*chessdto.GameState, error)
}

type Config struct {
	Arbiter        Arbiter
	Catalog        *msgcat.Catalog
	Human          rules.Color
	ReplyDelay     time.Duration
	ArbiterTimeout time.Duration
	NewGameOnStart bool
	Logger         *zap.Logger
}

// App is the tview application: board on top, status and key help below.
type App struct {
	app    *tview.Application
	view   *BoardView
	status *tview.TextView
	help   *tview.TextView

	arbiter  Arbiter
	cat      *msgcat.Catalog
	game     *rules.ChessGame
	ctl      *controller.Controller
	human    rules.Color
	logger   *zap.Logger
	startNew bool

	// queue schedules a UI update; it must never run f on the caller's goroutine.
	queue func(f func())

	mu     sync.Mutex
	ctx    context.Context
	over   string
	notice string
}

func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	human := cfg.Human
	if human == rules.NoColor {
		human = rules.White
	}
	a := &App{
		app:      tview.NewApplication(),
		view:     NewBoardView(),
		status:   tview.NewTextView(),
		help:     tview.NewTextView(),
		arbiter:  cfg.Arbiter,
		cat:      cfg.Catalog,
		game:     rules.NewChessGame(),
		human:    human,
		logger:   logger,
		startNew: cfg.NewGameOnStart,
		ctx:      context.Background(),
	}
	a.queue = func(f func()) {
		go a.app.QueueUpdateDraw(f)
	}

	opts := []controller.Option{
		controller.WithHuman(human),
		controller.WithNotifier(controller.NotifierFunc(a.gameOver)),
		controller.WithLogger(logger.Named("controller")),
	}
	if cfg.ReplyDelay >= 0 {
		opts = append(opts, controller.WithReplyDelay(cfg.ReplyDelay))
	}
	if cfg.ArbiterTimeout > 0 {
		opts = append(opts, controller.WithArbiterTimeout(cfg.ArbiterTimeout))
	}
	a.ctl = controller.New(a.game, cfg.Arbiter, board.NewRenderer(a.view), opts...)

	a.view.SetRedraw(a.refresh)
	a.view.SetClickHandler(a.click)
	a.help.SetText(a.cat.Text("help.keys", nil, "click a piece, then a square · n new game · q quit"))
	a.app.SetInputCapture(a.handleKey)
	return a
}

func (a *App) layout() tview.Primitive {
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.view.Box, 10, 0, true).
		AddItem(a.status, 2, 0, false).
		AddItem(a.help, 1, 0, false)
}

// Run blocks until the user quits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		a.app.Stop()
	}()
	go func() {
		if err := a.sync(ctx, a.startNew); err != nil {
			a.logger.Warn("initial_sync_failed", zap.Error(err))
		}
	}()

	a.ctl.Render()
	err := a.app.SetRoot(a.layout(), true).EnableMouse(true).Run()
	a.ctl.Close()
	return err
}

func (a *App) context() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}

func (a *App) click(sq rules.Square) {
	done := a.ctl.Click(a.context(), sq)
	a.refresh()
	go func() {
		<-done
		a.refresh()
	}()
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q':
		a.app.Stop()
		return nil
	case 'n':
		go func() {
			if err := a.sync(a.context(), true); err != nil {
				a.logger.Warn("new_game_failed", zap.Error(err))
			}
		}()
		return nil
	}
	return event
}

// sync loads the arbiter's game into the local board, starting a fresh one when fresh is set.
func (a *App) sync(ctx context.Context, fresh bool) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		st  *chessdto.GameState
		err error
	)
	if fresh {
		st, err = a.arbiter.NewGame(ctx, a.human)
	} else {
		st, err = a.arbiter.State(ctx)
	}
	if err != nil {
		a.setNotice(a.cat.Text("status.offline", map[string]string{"Error": err.Error()}, "Arbiter unreachable: "+err.Error()))
		return err
	}
	if err := a.ctl.Reset(st.FEN); err != nil {
		return err
	}

	a.mu.Lock()
	a.over = ""
	a.mu.Unlock()
	if fresh {
		a.setNotice(a.cat.Text("status.new_game", map[string]string{"Color": a.human.Title()}, "New game started."))
	} else {
		a.setNotice("")
	}
	if st.Status == "finished" {
		res := controller.Result{Draw: true}
		if a.game.InCheckmate() {
			res = controller.Result{Winner: a.game.Turn().Opposite()}
		}
		a.gameOver(res)
	}
	return nil
}

func (a *App) gameOver(res controller.Result) {
	text := gameOverText(a.cat, res)
	a.mu.Lock()
	a.over = text
	a.mu.Unlock()
	a.refresh()
}

func (a *App) setNotice(s string) {
	a.mu.Lock()
	a.notice = s
	a.mu.Unlock()
	a.refresh()
}

func (a *App) refresh() {
	a.queue(func() {
		a.status.SetText(a.statusText())
	})
}

func (a *App) statusText() string {
	a.mu.Lock()
	over, notice := a.over, a.notice
	a.mu.Unlock()

	line := over
	if line == "" {
		line = turnLine(a.cat, a.ctl.State(), a.game.Turn())
	}
	if notice != "" {
		line += "\n" + notice
	}
	return line
}

func turnLine(cat *msgcat.Catalog, state controller.State, turn rules.Color) string {
	if state == controller.InFlight {
		return cat.Text("status.thinking", nil, "Waiting for the arbiter...")
	}
	return cat.Text("status.turn", map[string]string{"Turn": turn.Title()}, turn.Title()+" to move")
}

func gameOverText(cat *msgcat.Catalog, res controller.Result) string {
	if res.Draw {
		return cat.Text("game.over.draw", nil, "Game Over! Draw!")
	}
	winner := res.Winner.Title()
	return cat.Text("game.over.win", map[string]string{"Winner": winner}, "Game Over! "+winner+" wins!")
}
