package domain

import "time"

type DecisionReason string

const (
	// ReasonMirror: the mirror move was close enough to the engine's choice.
	ReasonMirror DecisionReason = "mirror"
	// ReasonWorse: the mirror move lost more than the threshold.
	ReasonWorse DecisionReason = "worse"
	// ReasonIllegal: the mirror point could not be played.
	ReasonIllegal DecisionReason = "illegal"
)

// Decision records one genmove from start to finish.
type Decision struct {
	ID          string         `json:"id"`
	Color       Color          `json:"color"`
	BoardSize   int            `json:"board_size"`
	LastMove    string         `json:"last_move,omitempty"` // GTP vertex mirrored, empty for tengen
	BestMove    string         `json:"best_move"`
	BestScore   float64        `json:"best_score"`
	MirrorMove  string         `json:"mirror_move"`
	MirrorScore float64        `json:"mirror_score"`
	MirrorLegal bool           `json:"mirror_legal"`
	Threshold   float64        `json:"threshold"`
	Move        string         `json:"move"`
	Reason      DecisionReason `json:"reason"`
	DecidedAt   time.Time      `json:"decided_at"`
}
