package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mirror_go/internal/bootstrap"
	"mirror_go/internal/domain"
	"mirror_go/internal/domain/coords"
	"mirror_go/internal/errors"
)

type KatagoStore interface {
	Analyze(color domain.Color) (domain.AnalysisResult, error)
	PrintRecord() (domain.RecordSummary, error)
	Play(color domain.Color, vertex string) error
	Undo() error
}

type DecisionSink interface {
	Record(ctx context.Context, d domain.Decision)
}

type MirrorUseCase struct {
	store     KatagoStore
	sink      DecisionSink
	threshold float64
	log       *zap.SugaredLogger
	now       func() time.Time
}

// NewMirrorUseCase wires the strategy to an engine. sink may be nil.
func NewMirrorUseCase(cfg *bootstrap.Config, log *zap.SugaredLogger, store KatagoStore, sink DecisionSink) *MirrorUseCase {
	return &MirrorUseCase{
		store:     store,
		sink:      sink,
		threshold: cfg.MirrorThreshold,
		log:       log,
		now:       time.Now,
	}
}

type DecisionInput struct {
	BestMove    string
	BestScore   float64
	MirrorMove  string
	MirrorScore float64
	Threshold   float64
}

// Decide keeps the mirror move unless it loses strictly more than the
// threshold compared to the engine's own choice.
func Decide(in DecisionInput) string {
	if in.BestScore-in.MirrorScore > in.Threshold {
		return in.BestMove
	}
	return in.MirrorMove
}

// MirrorCandidate reflects the last move through the centre of the board, or
// returns tengen when nothing has been played yet.
func MirrorCandidate(summary domain.RecordSummary) (candidate string, lastMove string, err error) {
	if !summary.HasLastMove {
		candidate, err = coords.GridToProtocol(summary.BoardSize, coords.CenterPoint(summary.BoardSize))
		return candidate, "", err
	}
	lastMove, err = coords.RecordToProtocol(summary.BoardSize, summary.LastMove)
	if err != nil {
		return "", "", err
	}
	candidate, err = coords.MirrorVertex(summary.BoardSize, lastMove)
	return candidate, lastMove, err
}

// GenerateMove picks the move for color without committing it. Whatever it
// plays to probe the position is undone before it returns.
func (m *MirrorUseCase) GenerateMove(ctx context.Context, color domain.Color) (domain.Decision, error) {
	decision := domain.Decision{
		ID:        uuid.New().String(),
		Color:     color,
		Threshold: m.threshold,
	}
	log := m.log.With("decision", decision.ID, "color", color)

	best, err := m.store.Analyze(color)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("analyze position: %w", err)
	}
	decision.BestMove = best.Move
	decision.BestScore = best.ScoreLead

	summary, err := m.store.PrintRecord()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("read game record: %w", err)
	}
	decision.BoardSize = summary.BoardSize
	decision.MirrorMove, decision.LastMove, err = MirrorCandidate(summary)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("mirror candidate: %w", err)
	}

	legal, err := m.probeLegal(color, decision.MirrorMove)
	if err != nil {
		return domain.Decision{}, err
	}
	decision.MirrorLegal = legal

	if !legal {
		decision.Move = best.Move
		decision.Reason = domain.ReasonIllegal
		return m.finish(ctx, log, decision), nil
	}

	mirrorScore, err := m.evaluate(color, decision.MirrorMove)
	if err != nil {
		return domain.Decision{}, err
	}
	decision.MirrorScore = mirrorScore

	decision.Move = Decide(DecisionInput{
		BestMove:    best.Move,
		BestScore:   best.ScoreLead,
		MirrorMove:  decision.MirrorMove,
		MirrorScore: mirrorScore,
		Threshold:   m.threshold,
	})
	decision.Reason = domain.ReasonMirror
	if decision.Move != decision.MirrorMove {
		decision.Reason = domain.ReasonWorse
	}
	return m.finish(ctx, log, decision), nil
}

func (m *MirrorUseCase) finish(ctx context.Context, log *zap.SugaredLogger, d domain.Decision) domain.Decision {
	d.DecidedAt = m.now()
	log.Infow("move decided",
		"move", d.Move,
		"reason", d.Reason,
		"best", d.BestMove,
		"bestScore", d.BestScore,
		"mirror", d.MirrorMove,
		"mirrorScore", d.MirrorScore,
	)
	if m.sink != nil {
		m.sink.Record(ctx, d)
	}
	return d
}

// probeLegal plays vertex and takes it back. Only a rejected play means
// "illegal"; every other failure is returned.
func (m *MirrorUseCase) probeLegal(color domain.Color, vertex string) (bool, error) {
	if err := m.store.Play(color, vertex); err != nil {
		if cmdErr, ok := errors.AsCommandError(err); ok {
			m.log.Debugw("mirror move rejected", "vertex", vertex, "reason", cmdErr.Message)
			return false, nil
		}
		return false, fmt.Errorf("probe %s: %w", vertex, err)
	}
	if err := m.store.Undo(); err != nil {
		return false, fmt.Errorf("undo probe %s: %w", vertex, err)
	}
	return true, nil
}

// evaluate returns the score of vertex for color. After the play it is the
// opponent's turn, so the analysis is from their side and gets negated.
func (m *MirrorUseCase) evaluate(color domain.Color, vertex string) (float64, error) {
	if err := m.store.Play(color, vertex); err != nil {
		return 0, fmt.Errorf("play %s for evaluation: %w", vertex, err)
	}
	reply, err := m.store.Analyze(color.Opponent())
	if err != nil {
		// a rejected analysis leaves the session in sync, anything else does not
		if _, ok := errors.AsCommandError(err); ok {
			if undoErr := m.store.Undo(); undoErr != nil {
				return 0, fmt.Errorf("undo evaluation of %s: %w", vertex, undoErr)
			}
		}
		return 0, fmt.Errorf("analyze reply to %s: %w", vertex, err)
	}
	if err := m.store.Undo(); err != nil {
		return 0, fmt.Errorf("undo evaluation of %s: %w", vertex, err)
	}
	return -reply.ScoreLead, nil
}
