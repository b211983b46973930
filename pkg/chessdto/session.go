package chessdto

import "time"

// GameState is the public snapshot served by GET /state and pushed to watchers.
type GameState struct {
	GameID    string    `json:"game_id"`
	Human     string    `json:"human"`
	FEN       string    `json:"fen"`
	Turn      string    `json:"turn"`
	MovesUCI  []string  `json:"moves"`
	MovesSAN  []string  `json:"san,omitempty"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	LastMove  string    `json:"last_move,omitempty"`
	ECO       string    `json:"eco,omitempty"`
	Opening   string    `json:"opening,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGameRequest is the optional body of POST /new. An empty GameID creates a fresh game;
// Human selects the side the player takes ("white" by default).
type NewGameRequest struct {
	GameID string `json:"game_id,omitempty"`
	Human  string `json:"human,omitempty"`
}
