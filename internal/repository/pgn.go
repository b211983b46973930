package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-board/internal/domain"
)

func MapResultToPGN(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders headers and numbered SAN movetext.
func BuildPGN(g *domain.FinishedGame) string {
	if g == nil {
		return ""
	}
	result := MapResultToPGN(g.Result)
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}

	white, black := "Computer", "Computer"
	switch strings.ToLower(g.HumanColor) {
	case "white":
		white = "Player"
	case "black":
		black = "Player"
	}

	var b strings.Builder
	b.WriteString("[Event \"Casual Game\"]\n")
	b.WriteString("[Site \"cheese-board\"]\n")
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", white)
	fmt.Fprintf(&b, "[Black \"%s\"]\n", black)
	if eco := strings.TrimSpace(g.ECO); eco != "" {
		fmt.Fprintf(&b, "[ECO \"%s\"]\n", sanitizePGN(eco))
	}
	if name := strings.TrimSpace(g.Opening); name != "" {
		fmt.Fprintf(&b, "[Opening \"%s\"]\n", sanitizePGN(name))
	}
	if m := strings.TrimSpace(g.ResultMethod); m != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(m)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(g.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(g.MovesSAN[i]))
		if i+1 < len(g.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
