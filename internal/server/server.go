// Package server exposes the arbiter over HTTP.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/cheese-board/internal/board"
	"github.com/park285/cheese-board/internal/game"
	"github.com/park285/cheese-board/internal/rules"
	"github.com/park285/cheese-board/pkg/chessdto"
)

const (
	maxBodyBytes = 4 << 10
	writeTimeout = 5 * time.Second
)

// GameService is the arbiter behaviour the handlers need.
type GameService interface {
	MakeMove(ctx context.Context, gameID, from, to string) (game.Verdict, error)
	State(ctx context.Context, gameID string) (chessdto.GameState, error)
	NewGame(ctx context.Context, gameID, human string) (chessdto.GameState, error)
	Position(ctx context.Context, gameID string) (*rules.ChessGame, string, error)
	Subscribe(fn func(chessdto.GameState)) func()
}

type Server struct {
	svc      GameService
	hub      *Hub
	renderer *board.PNGRenderer
	logger   *zap.Logger

	unsubscribe func()
}

func New(svc GameService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:      svc,
		hub:      NewHub(),
		renderer: board.NewPNGRenderer(),
		logger:   logger,
	}
	s.unsubscribe = svc.Subscribe(s.hub.Broadcast)
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /make_move", s.HandleMakeMove)
	mux.HandleFunc("GET /state", s.HandleState)
	mux.HandleFunc("POST /new", s.HandleNew)
	mux.HandleFunc("GET /board.png", s.HandleBoardPNG)
	mux.HandleFunc("GET /watch", s.HandleWatch)
	return s.withLogging(mux)
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		WriteJSON(w, http.StatusNotFound, chessdto.ErrorResponse{Error: "game not found"})
	case errors.Is(err, game.ErrInvalidColor):
		WriteJSON(w, http.StatusBadRequest, chessdto.ErrorResponse{Error: "invalid color"})
	default:
		s.logger.Error("request_failed", zap.Error(err))
		WriteJSON(w, http.StatusInternalServerError, chessdto.ErrorResponse{Error: "internal error"})
	}
}

func (s *Server) HandleMakeMove(w http.ResponseWriter, r *http.Request) {
	var req chessdto.MoveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		WriteJSON(w, http.StatusBadRequest, chessdto.ErrorResponse{Error: "bad json"})
		return
	}
	from := strings.ToLower(strings.TrimSpace(req.From))
	to := strings.ToLower(strings.TrimSpace(req.To))

	v, err := s.svc.MakeMove(r.Context(), req.GameID, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := chessdto.MoveResponse{Legal: v.Legal, GameID: v.GameID}
	if v.Legal {
		resp.ComputerMove = v.ComputerMove
		resp.GameOver = v.GameOver
		resp.FEN = v.FEN
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.State(r.Context(), r.URL.Query().Get("game_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

func (s *Server) HandleNew(w http.ResponseWriter, r *http.Request) {
	var req chessdto.NewGameRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteJSON(w, http.StatusBadRequest, chessdto.ErrorResponse{Error: "bad json"})
		return
	}
	st, err := s.svc.NewGame(r.Context(), req.GameID, req.Human)
	if err != nil {
		s.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

func (s *Server) HandleBoardPNG(w http.ResponseWriter, r *http.Request) {
	g, last, err := s.svc.Position(r.Context(), r.URL.Query().Get("game_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := board.RenderOptions{}
	if from, to, _, err := rules.ParseUCI(last); err == nil {
		opts.LastMove = &board.MoveHighlight{From: from, To: to}
	}
	png, err := s.renderer.RenderPNG(r.Context(), board.Build(g, nil), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(png)
}

// HandleWatch streams the game state over a websocket: once on connect, then after every change.
func (s *Server) HandleWatch(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.State(r.Context(), r.URL.Query().Get("game_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Warn("watch_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	ch := make(chan []byte, 16)
	s.hub.AddWatcher(st.GameID, ch)
	defer s.hub.RemoveWatcher(st.GameID, ch)

	// 읽기는 버리고 close 프레임만 감지
	ctx := conn.CloseRead(r.Context())

	initial, _ := json.Marshal(st)
	if err := s.writeFrame(ctx, conn, initial); err != nil {
		return
	}
	s.logger.Debug("watcher_joined", zap.String("game_id", st.GameID), zap.Int("watchers", s.hub.Watchers(st.GameID)))

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg := <-ch:
			if err := s.writeFrame(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, conn *websocket.Conn, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack is required by websocket.Accept.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return hj.Hijack()
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}
