package chessdto

// MoveRequest is the body of POST /make_move.
type MoveRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	GameID string `json:"game_id,omitempty"`
}

// MoveResponse is the arbiter verdict for a submitted move.
// ComputerMove is a 4 or 5 character UCI move and is omitted when there is no reply.
type MoveResponse struct {
	Legal        bool   `json:"legal"`
	ComputerMove string `json:"computer_move,omitempty"`
	GameOver     bool   `json:"game_over,omitempty"`
	FEN          string `json:"fen,omitempty"`
	GameID       string `json:"game_id,omitempty"`
	Error        string `json:"error,omitempty"`
}
