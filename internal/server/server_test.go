package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-board/internal/engine"
	"github.com/park285/cheese-board/internal/game"
	"github.com/park285/cheese-board/internal/repository"
	"github.com/park285/cheese-board/internal/store"
	"github.com/park285/cheese-board/pkg/chessdto"
)

type queueMover struct {
	mu      sync.Mutex
	replies []string
}

func (m *queueMover) BestMove(ctx context.Context, pos engine.Position) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.replies) == 0 {
		return "", engine.ErrNoMove
	}
	mv := m.replies[0]
	m.replies = m.replies[1:]
	return mv, nil
}

func newTestServer(t *testing.T, replies ...string) (*Server, http.Handler) {
	t.Helper()
	svc, err := game.NewService(store.NewMemoryStore(), &queueMover{replies: replies}, repository.NewMemory(), game.Config{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s := New(svc, nil)
	t.Cleanup(s.Close)
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v (body=%q)", err, w.Body.String())
	}
	return v
}

func TestMakeMoveLegal(t *testing.T) {
	_, h := newTestServer(t, "e7e5")
	w := do(t, h, http.MethodPost, "/make_move", `{"from":"a2","to":"a4"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[map[string]any](t, w)
	if resp["legal"] != true || resp["computer_move"] != "e7e5" {
		t.Fatalf("resp = %v", resp)
	}
	if _, ok := resp["fen"].(string); !ok {
		t.Fatalf("fen missing: %v", resp)
	}
}

func TestMakeMoveIllegalOmitsEverythingElse(t *testing.T) {
	_, h := newTestServer(t, "e7e5")
	w := do(t, h, http.MethodPost, "/make_move", `{"from":"a2","to":"a5"}`)
	resp := decode[map[string]any](t, w)
	if resp["legal"] != false {
		t.Fatalf("resp = %v", resp)
	}
	for _, k := range []string{"computer_move", "fen", "game_over"} {
		if _, ok := resp[k]; ok {
			t.Fatalf("%s present in illegal response: %v", k, resp)
		}
	}
}

func TestMakeMoveBadJSON(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/make_move", `{nope`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[chessdto.ErrorResponse](t, w)
	if resp.Legal || resp.Error != "bad json" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestMakeMoveUnknownGame(t *testing.T) {
	_, h := newTestServer(t)
	w := do(t, h, http.MethodPost, "/make_move", `{"from":"e2","to":"e4","game_id":"missing"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)
	if w := do(t, h, http.MethodGet, "/make_move", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestNewAndState(t *testing.T) {
	_, h := newTestServer(t, "d7d5")
	w := do(t, h, http.MethodPost, "/new", "")
	if w.Code != http.StatusOK {
		t.Fatalf("new status = %d", w.Code)
	}
	created := decode[chessdto.GameState](t, w)
	if created.GameID == "" || created.Human != "white" {
		t.Fatalf("created = %+v", created)
	}

	body, _ := json.Marshal(chessdto.MoveRequest{From: "d2", To: "d4", GameID: created.GameID})
	_ = do(t, h, http.MethodPost, "/make_move", string(body))

	st := decode[chessdto.GameState](t, do(t, h, http.MethodGet, "/state?game_id="+created.GameID, ""))
	if len(st.MovesUCI) != 2 || st.LastMove != "d7d5" || st.Turn != "white" {
		t.Fatalf("state = %+v", st)
	}

	if w := do(t, h, http.MethodPost, "/new", `{"human":"green"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad color status = %d", w.Code)
	}
}

func TestBoardPNG(t *testing.T) {
	_, h := newTestServer(t, "e7e5")
	_ = do(t, h, http.MethodPost, "/make_move", `{"from":"e2","to":"e4"}`)
	w := do(t, h, http.MethodGet, "/board.png", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("status = %d type = %q", w.Code, w.Header().Get("Content-Type"))
	}
	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("png decode: %v", err)
	}
	if img.Bounds().Dx() != 64*8+64 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
}

func TestWatchPushesState(t *testing.T) {
	s, h := newTestServer(t, "e7e5")
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/watch", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var first chessdto.GameState
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.GameID != game.DefaultGameID || len(first.MovesUCI) != 0 {
		t.Fatalf("initial = %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Watchers(game.DefaultGameID) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/make_move", "application/json", strings.NewReader(`{"from":"e2","to":"e4"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	var next chessdto.GameState
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if next.LastMove != "e7e5" || len(next.MovesUCI) != 2 {
		t.Fatalf("update = %+v", next)
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	ch := make(chan []byte, 1)
	h.AddWatcher("g", ch)
	h.Broadcast(chessdto.GameState{GameID: "g"})
	h.Broadcast(chessdto.GameState{GameID: "g"})
	h.Broadcast(chessdto.GameState{GameID: "other"})
	if len(ch) != 1 {
		t.Fatalf("buffered = %d", len(ch))
	}
	h.RemoveWatcher("g", ch)
	if h.Watchers("g") != 0 {
		t.Fatalf("watcher not removed")
	}
}
