package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-board/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS board_games (
    game_id       TEXT PRIMARY KEY,
    human_color   TEXT NOT NULL,
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL DEFAULT '',
    eco           TEXT NOT NULL DEFAULT '',
    opening       TEXT NOT NULL DEFAULT '',
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    pgn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

const upsertResult = `INSERT INTO board_games (
    game_id, human_color, result, result_method, eco, opening,
    moves_uci, moves_san, pgn, started_at, ended_at, duration_ms
  ) VALUES (
    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
  ) ON CONFLICT (game_id) DO UPDATE SET
    human_color=EXCLUDED.human_color,
    result=EXCLUDED.result,
    result_method=EXCLUDED.result_method,
    eco=EXCLUDED.eco,
    opening=EXCLUDED.opening,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    pgn=EXCLUDED.pgn,
    started_at=EXCLUDED.started_at,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresWithDB(db), nil
}

func NewPostgresWithDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game keyed by game id.
func (r *Postgres) SaveResult(ctx context.Context, g *domain.FinishedGame) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}
	pgn := g.PGN
	if pgn == "" {
		pgn = BuildPGN(g)
	}
	movesUCIRaw, _ := json.Marshal(nonNil(g.MovesUCI))
	movesSANRaw, _ := json.Marshal(nonNil(g.MovesSAN))

	_, err := r.db.ExecContext(ctx, upsertResult,
		g.GameID, g.HumanColor, g.Result, strings.TrimSpace(g.ResultMethod), g.ECO, g.Opening,
		string(movesUCIRaw), string(movesSANRaw), pgn,
		g.StartedAt, g.EndedAt, g.Duration().Milliseconds(),
	)
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
