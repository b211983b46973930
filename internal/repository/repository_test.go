package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/park285/cheese-board/internal/domain"
)

func foolsMate() *domain.FinishedGame {
	start := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	return &domain.FinishedGame{
		GameID:       "g1",
		HumanColor:   "white",
		Result:       "black",
		ResultMethod: "Checkmate",
		ECO:          "A00",
		Opening:      "Barnes Opening",
		MovesUCI:     []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN:     []string{"f3", "e5", "g4", "Qh4#"},
		StartedAt:    start,
		EndedAt:      start.Add(90 * time.Second),
	}
}

func TestMapResultToPGN(t *testing.T) {
	cases := map[string]string{"white": "1-0", "BLACK": "0-1", "draw": "1/2-1/2", "": "*"}
	for in, want := range cases {
		if got := MapResultToPGN(in); got != want {
			t.Fatalf("MapResultToPGN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildPGN(t *testing.T) {
	pgn := BuildPGN(foolsMate())
	for _, want := range []string{
		`[Date "2024.03.09"]`,
		`[White "Player"]`,
		`[Black "Computer"]`,
		`[ECO "A00"]`,
		`[Opening "Barnes Opening"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
}

func TestSanitizePGN(t *testing.T) {
	if got := sanitizePGN(` a"b\c `); got != "a'b c" {
		t.Fatalf("sanitizePGN = %q", got)
	}
}

func TestMemorySaveResultUpserts(t *testing.T) {
	m := NewMemory()
	g := foolsMate()
	if err := m.SaveResult(context.Background(), g); err != nil {
		t.Fatalf("save: %v", err)
	}
	g.ResultMethod = "resignation"
	_ = m.SaveResult(context.Background(), g)
	if m.Len() != 1 {
		t.Fatalf("len = %d, want 1", m.Len())
	}
	got, ok := m.Get("g1")
	if !ok || got.ResultMethod != "resignation" || got.PGN == "" {
		t.Fatalf("got %+v", got)
	}
	if got.Duration() != 90*time.Second {
		t.Fatalf("duration = %v", got.Duration())
	}
}

func TestPostgresRequiresURL(t *testing.T) {
	if _, err := NewPostgres(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestPostgresSaveResult(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	repo, err := NewPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	g := foolsMate()
	g.GameID = "test-" + time.Now().Format("150405.000000")
	if err := repo.SaveResult(ctx, g); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.SaveResult(ctx, g); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}
