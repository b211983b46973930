package uci

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

var ErrPoolClosed = errors.New("uci pool closed")

type PoolConfig struct {
	BinaryPath string
	Capacity   int
	Options    Options
	Logger     *zap.Logger
}

// Pool keeps up to Capacity engine processes with identical options.
type Pool struct {
	binaryPath string
	opt        Options
	capacity   int
	logger     *zap.Logger

	mu     sync.Mutex
	total  int
	closed bool
	idle   chan *Session
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("stockfish binary check: %w", err)
	}
	opt := cfg.Options.withDefaults()
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		binaryPath: cfg.BinaryPath,
		opt:        opt,
		capacity:   capacity,
		logger:     logger,
		idle:       make(chan *Session, capacity),
	}, nil
}

func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for {
		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.EnsureReady(ctx); err != nil {
				p.discard(session)
				continue
			}
			return session, nil
		default:
		}

		session, err := p.create(ctx)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, errAtCapacity) {
			return nil, err
		}

		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.EnsureReady(ctx); err != nil {
				p.discard(session)
				continue
			}
			return session, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns session to the pool. A non-nil err discards the process.
func (p *Pool) Release(session *Session, err error) {
	if session == nil {
		return
	}
	if err != nil {
		p.logger.Debug("uci_session_discarded", zap.Error(err))
		p.discard(session)
		return
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.discard(session)
		return
	}
	select {
	case p.idle <- session:
	default:
		p.discard(session)
	}
}

func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for {
		select {
		case session := <-p.idle:
			if session == nil {
				continue
			}
			if err := session.Close(); err != nil {
				errs = append(errs, err)
			}
			p.decrement()
		default:
			return errors.Join(errs...)
		}
	}
}

var errAtCapacity = errors.New("uci pool at capacity")

func (p *Pool) create(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if p.total >= p.capacity {
		p.mu.Unlock()
		return nil, errAtCapacity
	}
	p.total++
	p.mu.Unlock()

	session, err := NewSession(ctx, p.binaryPath, p.opt, p.logger)
	if err != nil {
		p.decrement()
		return nil, err
	}
	return session, nil
}

func (p *Pool) discard(session *Session) {
	_ = session.Close()
	p.decrement()
}

func (p *Pool) decrement() {
	p.mu.Lock()
	if p.total > 0 {
		p.total--
	}
	p.mu.Unlock()
}

func defaultCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
