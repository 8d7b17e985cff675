package domain

import (
	"fmt"
	"strings"
)

// Color is the side to move, in the short form both GTP peers accept.
type Color string

const (
	Black Color = "b"
	White Color = "w"
)

// ParseColor accepts "b", "w", "black" and "white" in any case.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(s) {
	case "b", "black":
		return Black, nil
	case "w", "white":
		return White, nil
	}
	return "", fmt.Errorf("invalid color %q", s)
}

func (c Color) Opponent() Color {
	if c == Black {
		return White
	}
	return Black
}

// AnalysisResult is the top candidate of one kata-analyze query. ScoreLead is
// from the point of view of the side that was to move when it was asked.
type AnalysisResult struct {
	Move      string  `json:"move"`
	ScoreLead float64 `json:"score_lead"`
}

// RecordSummary is what the mirror strategy needs from the game record.
type RecordSummary struct {
	BoardSize   int    `json:"board_size"`
	LastMove    string `json:"last_move,omitempty"` // SGF point
	HasLastMove bool   `json:"has_last_move"`
}
