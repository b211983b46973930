package domain

import "time"

// FinishedGame is the archived record of a completed game.
type FinishedGame struct {
	GameID       string
	HumanColor   string
	Result       string
	ResultMethod string
	ECO          string
	Opening      string
	MovesUCI     []string
	MovesSAN     []string
	PGN          string
	StartedAt    time.Time
	EndedAt      time.Time
}

func (g FinishedGame) Duration() time.Duration {
	d := g.EndedAt.Sub(g.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
