package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/repository"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/internal/store"
	"github.com/park285/cheese-board/pkg/chessdto"
)

// scriptedMover replays a fixed list of replies.
type scriptedMover struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (m *scriptedMover) BestMove(ctx context.Context, pos engine.Position) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", engine.ErrNoMove
	}
	mv := m.replies[0]
	m.replies = m.replies[1:]
	return mv, nil
}

type fixture struct {
	svc   *Service
	store *store.MemoryStore
	repo  *repository.Memory
	mover *scriptedMover
}

func newFixture(t *testing.T, replies ...string) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	repo := repository.NewMemory()
	mover := &scriptedMover{replies: replies}
	svc, err := NewService(st, mover, repo, Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, store: st, repo: repo, mover: mover}
}

func TestMakeMoveLegalWithReply(t *testing.T) {
	f := newFixture(t, "e7e5")
	v, err := f.svc.MakeMove(context.Background(), "", "a2", "a4")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if !v.Legal || v.ComputerMove != "e7e5" || v.GameOver {
		t.Fatalf("verdict = %+v", v)
	}
	if v.GameID != DefaultGameID {
		t.Fatalf("game id = %q", v.GameID)
	}
	st, err := f.svc.State(context.Background(), "")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.FEN != v.FEN || st.Turn != "white" || len(st.MovesUCI) != 2 || st.LastMove != "e7e5" {
		t.Fatalf("state = %+v", st)
	}
	if st.MovesSAN[0] != "a4" || st.MovesSAN[1] != "e5" {
		t.Fatalf("san = %v", st.MovesSAN)
	}
}

func TestMakeMoveIllegal(t *testing.T) {
	f := newFixture(t, "e7e5")
	cases := []struct{ from, to string }{
		{"a2", "a5"},
		{"e7", "e5"},
		{"z9", "a4"},
		{"", ""},
	}
	for _, tc := range cases {
		v, err := f.svc.MakeMove(context.Background(), "", tc.from, tc.to)
		if err != nil {
			t.Fatalf("%s%s: %v", tc.from, tc.to, err)
		}
		if v.Legal || v.ComputerMove != "" {
			t.Fatalf("%s%s: verdict = %+v", tc.from, tc.to, v)
		}
	}
	if f.mover.calls != 0 {
		t.Fatalf("mover called for illegal moves")
	}
	st, _ := f.svc.State(context.Background(), "")
	if len(st.MovesUCI) != 0 {
		t.Fatalf("illegal move persisted: %v", st.MovesUCI)
	}
}

func TestMakeMoveEndsGameWithoutReply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "e7e5", "b8c6", "g8f6")
	if _, err := f.svc.NewGame(ctx, "scholar", "white"); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	for _, mv := range [][2]string{{"e2", "e4"}, {"f1", "c4"}, {"d1", "h5"}} {
		v, err := f.svc.MakeMove(ctx, "scholar", mv[0], mv[1])
		if err != nil || !v.Legal {
			t.Fatalf("%v: %+v %v", mv, v, err)
		}
	}
	calls := f.mover.calls
	v, err := f.svc.MakeMove(ctx, "scholar", "h5", "f7")
	if err != nil {
		t.Fatalf("mate move: %v", err)
	}
	if !v.Legal || !v.GameOver || v.ComputerMove != "" || v.FEN == "" {
		t.Fatalf("verdict = %+v", v)
	}
	if f.mover.calls != calls {
		t.Fatalf("mover consulted after game over")
	}
	rec, ok := f.repo.Get("scholar")
	if !ok || rec.Result != "white" || rec.ResultMethod != "checkmate" {
		t.Fatalf("archived = %+v, %v", rec, ok)
	}
	if rec.ECO == "" || !strings.Contains(rec.PGN, `[ECO "`+rec.ECO+`"]`) {
		t.Fatalf("opening not recorded: %q\n%s", rec.ECO, rec.PGN)
	}

	again, _ := f.svc.MakeMove(ctx, "scholar", "a2", "a3")
	if again.Legal {
		t.Fatalf("move accepted after game over")
	}
}

func TestComputerMateIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "e7e5", "d8h4")
	if _, err := f.svc.MakeMove(ctx, "", "f2", "f3"); err != nil {
		t.Fatalf("f3: %v", err)
	}
	v, err := f.svc.MakeMove(ctx, "", "g2", "g4")
	if err != nil {
		t.Fatalf("g4: %v", err)
	}
	if !v.Legal || v.ComputerMove != "d8h4" || !v.GameOver {
		t.Fatalf("verdict = %+v", v)
	}
	st, _ := f.svc.State(ctx, "")
	if st.Status != string(store.StatusFinished) || st.Result != "black" {
		t.Fatalf("state = %+v", st)
	}
	if f.repo.Len() != 1 {
		t.Fatalf("archive len = %d", f.repo.Len())
	}
}

func TestMoverFailureKeepsPlayerMove(t *testing.T) {
	f := newFixture(t)
	f.mover.err = errors.New("engine crashed")
	v, err := f.svc.MakeMove(context.Background(), "", "e2", "e4")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if !v.Legal || v.ComputerMove != "" || v.GameOver {
		t.Fatalf("verdict = %+v", v)
	}
	st, _ := f.svc.State(context.Background(), "")
	if st.Turn != "black" || len(st.MovesUCI) != 1 {
		t.Fatalf("state = %+v", st)
	}
	// the player cannot move again while it is the computer's turn
	if v, _ := f.svc.MakeMove(context.Background(), "", "d2", "d4"); v.Legal {
		t.Fatalf("out-of-turn move accepted")
	}
}

func TestIllegalEngineReplyIsDropped(t *testing.T) {
	f := newFixture(t, "e2e4")
	v, err := f.svc.MakeMove(context.Background(), "", "d2", "d4")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if !v.Legal || v.ComputerMove != "" {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestUnknownGame(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.MakeMove(context.Background(), "nope", "e2", "e4"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.svc.State(context.Background(), "nope"); !errors.Is(err, ErrGameNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewGameAsBlackComputerOpens(t *testing.T) {
	f := newFixture(t, "e2e4")
	st, err := f.svc.NewGame(context.Background(), "", "black")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if st.GameID == "" || st.GameID == DefaultGameID {
		t.Fatalf("game id = %q", st.GameID)
	}
	if st.Human != "black" || st.Turn != "black" || st.LastMove != "e2e4" {
		t.Fatalf("state = %+v", st)
	}
	if _, err := f.svc.NewGame(context.Background(), "", "purple"); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("err = %v", err)
	}
}

func TestNewGameResetsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "e7e5")
	_, _ = f.svc.MakeMove(ctx, "", "e2", "e4")
	st, err := f.svc.NewGame(ctx, DefaultGameID, "")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if st.FEN != rules.NewChessGame().FEN() || len(st.MovesUCI) != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestSubscribersSeeEveryCommit(t *testing.T) {
	f := newFixture(t, "e7e5")
	var got []chessdto.GameState
	cancel := f.svc.Subscribe(func(st chessdto.GameState) { got = append(got, st) })
	_, _ = f.svc.MakeMove(context.Background(), "", "e2", "e4")
	_, _ = f.svc.MakeMove(context.Background(), "", "e2", "e5")
	if len(got) != 1 || got[0].LastMove != "e7e5" {
		t.Fatalf("published = %+v", got)
	}
	cancel()
	_, _ = f.svc.NewGame(context.Background(), "", "")
	if len(got) != 1 {
		t.Fatalf("published after unsubscribe")
	}
}

// racingStore lets another writer bump the session right before each of the next races saves.
type racingStore struct {
	*store.MemoryStore
	races int
}

func (r *racingStore) Save(ctx context.Context, sess *store.Session) error {
	if r.races > 0 && sess.Version > 0 {
		r.races--
		other, err := r.MemoryStore.Load(ctx, sess.ID)
		if err != nil {
			return err
		}
		if err := r.MemoryStore.Save(ctx, other); err != nil {
			return err
		}
	}
	return r.MemoryStore.Save(ctx, sess)
}

func TestMakeMoveRetriesConcurrentWrite(t *testing.T) {
	st := &racingStore{MemoryStore: store.NewMemoryStore(), races: 1}
	mover := &scriptedMover{replies: []string{"e7e5", "e7e5"}}
	svc, err := NewService(st, mover, nil, Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	v, err := svc.MakeMove(context.Background(), "", "e2", "e4")
	if err != nil {
		t.Fatalf("MakeMove: %v", err)
	}
	if !v.Legal || v.ComputerMove != "e7e5" {
		t.Fatalf("verdict = %+v", v)
	}
	if mover.calls != 2 {
		t.Fatalf("mover calls = %d, want 2", mover.calls)
	}
	state, err := svc.State(context.Background(), "")
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(state.MovesUCI) != 2 || state.FEN != v.FEN {
		t.Fatalf("state = %+v", state)
	}
}

func TestMakeMoveGivesUpOnPersistentConflict(t *testing.T) {
	st := &racingStore{MemoryStore: store.NewMemoryStore(), races: 100}
	mover := &scriptedMover{err: engine.ErrNoMove}
	svc, err := NewService(st, mover, nil, Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.MakeMove(context.Background(), "", "e2", "e4"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestGameLocksAreReleased(t *testing.T) {
	f := newFixture(t, "e7e5")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.svc.NewGame(ctx, "", "white"); err != nil {
			t.Fatalf("NewGame: %v", err)
		}
	}
	if _, err := f.svc.MakeMove(ctx, "", "e2", "e4"); err != nil {
		t.Fatalf("MakeMove: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.MakeMove(ctx, "", "a2", "a3")
		}()
	}
	wg.Wait()

	f.svc.locksMu.Lock()
	n := len(f.svc.locks)
	f.svc.locksMu.Unlock()
	if n != 0 {
		t.Fatalf("locks left = %d, want 0", n)
	}
}
