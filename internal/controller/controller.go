// Package controller implements the two-click move interaction against a remote arbiter.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-board/internal/rules"
)

const (
	DefaultReplyDelay     = 600 * time.Millisecond
	DefaultArbiterTimeout = 10 * time.Second
)

var ErrClosed = errors.New("controller closed")

type State uint8

const (
	Idle State = iota
	Selected
	InFlight
)

func (s State) String() string {
	switch s {
	case Selected:
		return "selected"
	case InFlight:
		return "in_flight"
	default:
		return "idle"
	}
}

// Move is a from/to pair submitted to the arbiter.
type Move struct {
	From rules.Square
	To   rules.Square
}

func (m Move) UCI() string { return m.From.String() + m.To.String() }

// Verdict is the arbiter's answer to a submitted move.
type Verdict struct {
	Legal        bool
	ComputerMove string
	GameOver     bool
	FEN          string
}

// Arbiter validates a player move and returns the opponent reply.
type Arbiter interface {
	Submit(ctx context.Context, mv Move) (Verdict, error)
}

// View is the rendering side the controller drives.
type View interface {
	Render(game rules.Game)
	Mark(sq rules.Square, on bool)
}

// Result is a finished game as seen from local state.
type Result struct {
	Winner rules.Color
	Draw   bool
}

// Notifier receives player-facing events.
type Notifier interface {
	GameOver(res Result)
}

type NotifierFunc func(Result)

func (f NotifierFunc) GameOver(res Result) { f(res) }

type Option func(*Controller)

func WithHuman(c rules.Color) Option {
	return func(ctl *Controller) { ctl.human = c }
}

func WithReplyDelay(d time.Duration) Option {
	return func(ctl *Controller) { ctl.replyDelay = d }
}

func WithArbiterTimeout(d time.Duration) Option {
	return func(ctl *Controller) { ctl.timeout = d }
}

func WithScheduler(s Scheduler) Option {
	return func(ctl *Controller) { ctl.sched = s }
}

func WithNotifier(n Notifier) Option {
	return func(ctl *Controller) { ctl.notifier = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}

// Controller owns the selection and the game reference. Every field is guarded by mu.
type Controller struct {
	game     rules.Game
	arbiter  Arbiter
	view     View
	notifier Notifier
	sched    Scheduler
	logger   *zap.Logger

	human      rules.Color
	replyDelay time.Duration
	timeout    time.Duration

	mu       sync.Mutex
	state    State
	selected rules.Square
	pending  Timer
	queued   *reply
	gen      uint64
	closed   bool
}

// reply is a computer move waiting for its display delay.
type reply struct {
	uci      string
	gameOver bool
	fen      string
}

func New(game rules.Game, arbiter Arbiter, view View, opts ...Option) *Controller {
	c := &Controller{
		game:       game,
		arbiter:    arbiter,
		view:       view,
		sched:      RealScheduler{},
		logger:     zap.NewNop(),
		human:      rules.White,
		replyDelay: DefaultReplyDelay,
		timeout:    DefaultArbiterTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Selection returns the selected square, if any.
func (c *Controller) Selection() (rules.Square, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return rules.Square{}, false
	}
	return c.selected, true
}

// Render draws the current state without changing anything else.
func (c *Controller) Render() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Render(c.game)
}

// Click feeds one square click into the state machine. The returned channel is closed once
// the work caused by this click has settled; a delayed computer reply is not waited for.
func (c *Controller) Click(ctx context.Context, sq rules.Square) <-chan struct{} {
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed || !sq.Valid() {
		c.mu.Unlock()
		close(done)
		return done
	}
	switch c.state {
	case Idle:
		if p, ok := c.game.Get(sq); ok && p.Color == c.human {
			c.selected = sq
			c.state = Selected
			c.view.Mark(sq, true)
			c.logger.Debug("square_selected", zap.String("square", sq.String()))
		}
		c.mu.Unlock()
		close(done)
	case Selected:
		mv := Move{From: c.selected, To: sq}
		c.state = InFlight
		gen := c.gen
		c.mu.Unlock()
		go c.submit(ctx, mv, gen, done)
	default:
		// one request at a time
		c.mu.Unlock()
		close(done)
	}
	return done
}

func (c *Controller) submit(ctx context.Context, mv Move, gen uint64, done chan struct{}) {
	defer close(done)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	verdict, err := c.arbiter.Submit(callCtx, mv)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.view.Mark(mv.From, false)
	c.state = Idle
	c.selected = rules.Square{}

	if c.closed {
		return
	}
	if gen != c.gen {
		// the board was reloaded while this move was on the wire
		c.logger.Debug("stale_verdict_dropped", zap.String("move", mv.UCI()))
		return
	}
	if err != nil {
		c.logger.Warn("arbiter_request_failed",
			zap.String("move", mv.UCI()),
			zap.Error(err),
		)
		return
	}
	if !verdict.Legal {
		c.logger.Debug("move_rejected", zap.String("move", mv.UCI()))
		return
	}

	// a reply still waiting out its delay precedes this move on the arbiter
	c.flushLocked()

	resynced := c.applyLocked(mv.From, mv.To, rules.NoPieceType, verdict.FEN)
	c.view.Render(c.game)

	if verdict.ComputerMove != "" && !resynced {
		r := &reply{uci: verdict.ComputerMove, gameOver: verdict.GameOver, fen: verdict.FEN}
		c.queued = r
		c.pending = c.sched.AfterFunc(c.replyDelay, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.queued != r || c.closed {
				return
			}
			c.pending = nil
			c.queued = nil
			c.applyReplyLocked(r)
		})
		return
	}
	if verdict.GameOver {
		c.announceLocked()
	}
}

func (c *Controller) flushLocked() {
	r := c.queued
	if r == nil {
		return
	}
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.queued = nil
	c.logger.Debug("computer_move_flushed", zap.String("move", r.uci))
	c.applyReplyLocked(r)
}

func (c *Controller) applyReplyLocked(r *reply) {
	from, to, promo, err := rules.ParseUCI(r.uci)
	if err != nil {
		c.logger.Warn("computer_move_unparsable", zap.String("move", r.uci), zap.Error(err))
		c.resyncLocked(r.fen)
	} else {
		c.applyLocked(from, to, promo, r.fen)
	}
	c.view.Render(c.game)
	if c.state == Selected {
		c.view.Mark(c.selected, true)
	}
	if r.gameOver {
		c.announceLocked()
	}
}

// applyLocked mutates local state and falls back to the arbiter's FEN when local rules disagree.
// It reports whether a resync happened.
func (c *Controller) applyLocked(from, to rules.Square, promo rules.PieceType, fen string) bool {
	var err error
	if p, ok := c.game.(rules.Promoter); ok && promo != rules.NoPieceType {
		err = p.MoveWithPromotion(from, to, promo)
	} else {
		err = c.game.Move(from, to)
	}
	if err == nil {
		return false
	}
	c.logger.Warn("local_state_diverged",
		zap.String("move", from.String()+to.String()+promo.PromotionSuffix()),
		zap.Error(err),
	)
	return c.resyncLocked(fen)
}

func (c *Controller) resyncLocked(fen string) bool {
	loader, ok := c.game.(rules.Loader)
	if !ok || fen == "" {
		return false
	}
	if err := loader.LoadFEN(fen); err != nil {
		c.logger.Error("resync_failed", zap.String("fen", fen), zap.Error(err))
		return false
	}
	c.logger.Info("resynced_from_arbiter", zap.String("fen", fen))
	return true
}

func (c *Controller) announceLocked() {
	res := Result{Draw: true}
	if c.game.InCheckmate() {
		res = Result{Winner: c.game.Turn().Opposite()}
	}
	c.logger.Info("game_over",
		zap.String("winner", res.Winner.String()),
		zap.Bool("draw", res.Draw),
	)
	if c.notifier != nil {
		c.notifier.GameOver(res)
	}
}

// Reset cancels any pending reply, clears the selection and reloads the board from fen.
// A verdict still in flight is discarded when it arrives.
func (c *Controller) Reset(fen string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.queued = nil
	if c.state == Selected {
		c.view.Mark(c.selected, false)
	}
	if c.state != InFlight {
		c.state = Idle
		c.selected = rules.Square{}
	}
	loader, ok := c.game.(rules.Loader)
	if !ok {
		return errors.New("game cannot be reloaded")
	}
	if err := loader.LoadFEN(fen); err != nil {
		return err
	}
	c.view.Render(c.game)
	return nil
}

// Close cancels a pending computer reply. Later clicks are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.queued = nil
}
