package rules

import (
	"sync"

	"github.com/corentings/chess/v2/opening"
)

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func ecoBookInstance() *opening.BookECO {
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	return ecoBook
}

// Opening names the deepest ECO line matching the moves played so far.
// A game loaded from FEN has no history and returns empty strings.
func (g *ChessGame) Opening() (code, title string) {
	book := ecoBookInstance()
	if book == nil {
		return "", ""
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	moves := g.game.Moves()
	if len(moves) == 0 {
		return "", ""
	}
	if eco := book.Find(moves); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}
