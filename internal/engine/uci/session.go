// Package uci drives a UCI engine process over stdin/stdout.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout  = 4 * time.Second
	newGameRetryAttempts = 3
	newGameRetryDelay    = 150 * time.Millisecond
)

type Options struct {
	Threads    int
	HashMB     int
	SkillLevel int
}

func (o Options) withDefaults() Options {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.HashMB <= 0 {
		o.HashMB = 16
	}
	return o
}

type Limits struct {
	Depth          int
	MoveTimeMillis int
}

type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *zap.Logger

	mu     sync.Mutex
	search sync.Mutex
}

func NewSession(ctx context.Context, binaryPath string, opt Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opt = opt.withDefaults()
	if err := validateOptions(opt); err != nil {
		return nil, err
	}

	// 프로세스 수명은 ctx가 아니라 Close가 관리한다.
	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
		logger: logger,
	}

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

type SearchRequest struct {
	FEN    string
	Moves  []string
	Limits Limits
}

type SearchResponse struct {
	BestMove string
	EvalCP   int
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}

	goTokens, err := buildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Limits))
	defer cancel()

	var resp SearchResponse
	for {
		line, err := s.readLine(searchCtx)
		if err != nil {
			s.logger.Warn("uci_read_failed",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Error(err),
			)
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case line == "":
		case strings.HasPrefix(line, "info "):
			if cp, ok := parseScore(line); ok {
				resp.EvalCP = cp
			}
		case strings.HasPrefix(line, "bestmove"):
			if parts := strings.Fields(line); len(parts) >= 2 {
				resp.BestMove = parts[1]
			}
			return resp, nil
		}
	}
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func validateOptions(opt Options) error {
	if opt.SkillLevel < 0 || opt.SkillLevel > 20 {
		return fmt.Errorf("skill level %d out of range 0-20", opt.SkillLevel)
	}
	if opt.HashMB <= 0 {
		return fmt.Errorf("hash size must be > 0: %d", opt.HashMB)
	}
	return nil
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if len(args) == 1 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return args, nil
}

func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis+2000) * time.Millisecond
	}
	if l.Depth > 0 {
		base := time.Duration(l.Depth) * 300 * time.Millisecond
		if base < 6*time.Second {
			base = 6 * time.Second
		}
		if base > 20*time.Second {
			base = 20 * time.Second
		}
		return base
	}
	return 6 * time.Second
}

// parseScore extracts the centipawn score from an info line; mates map to ±30000.
func parseScore(line string) (int, bool) {
	parts := strings.Fields(line)
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] != "score" {
			continue
		}
		v, err := strconv.Atoi(parts[i+2])
		if err != nil {
			return 0, false
		}
		switch parts[i+1] {
		case "cp":
			return v, true
		case "mate":
			const mateValue = 30000
			if v >= 0 {
				return mateValue, true
			}
			return -mateValue, true
		}
		return 0, false
	}
	return 0, false
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	for attempt := 1; attempt <= newGameRetryAttempts; attempt++ {
		err := s.EnsureReady(ctx)
		if err == nil {
			return nil
		}
		if attempt == newGameRetryAttempts {
			return err
		}
		s.logger.Debug("uci_ready_retry", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(newGameRetryDelay):
		}
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.cmd != nil {
		return s.cmd.Wait()
	}
	return nil
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	cmds := []string{
		fmt.Sprintf("setoption name Threads value %d\n", opt.Threads),
		fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB),
		fmt.Sprintf("setoption name Skill Level value %d\n", opt.SkillLevel),
	}
	for _, cmd := range cmds {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		line, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		line, err := s.stdout.ReadString('\n')
		ch <- result{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
