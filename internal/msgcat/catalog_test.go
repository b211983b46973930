package msgcat

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedGameOverTexts(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("game.over.win", map[string]string{"Winner": "Black"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "Game Over! Black wins!" {
		t.Fatalf("win = %q", got)
	}
	if got, _ := c.Render("game.over.draw", nil); got != "Game Over! Draw!" {
		t.Fatalf("draw = %q", got)
	}
}

func TestMissingKeyAndField(t *testing.T) {
	c, _ := New("")
	if _, err := c.Render("no.such.key", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := c.Render("game.over.win", map[string]string{}); err == nil {
		t.Fatalf("expected missingkey error")
	}
	if got := c.Text("no.such.key", nil, "fallback"); got != "fallback" {
		t.Fatalf("Text = %q", got)
	}
	var nilCat *Catalog
	if got := nilCat.Text("game.over.draw", nil, "fb"); got != "fb" {
		t.Fatalf("nil catalog Text = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  over:\n    draw: \"Remis!\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got, _ := c.Render("game.over.draw", nil); got != "Remis!" {
		t.Fatalf("draw = %q", got)
	}
	if got, _ := c.Render("game.over.win", map[string]string{"Winner": "White"}); got != "Game Over! White wins!" {
		t.Fatalf("win = %q", got)
	}
}

func TestOverrideDuplicateKeys(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("status:\n  turn: \"x\"\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}

func TestNonStringLeafRejected(t *testing.T) {
	if _, err := parseYAMLToFlat([]byte("a:\n  b: 3\n")); err == nil {
		t.Fatalf("expected error for int leaf")
	}
}
