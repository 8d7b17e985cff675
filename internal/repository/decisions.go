package repository

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"mirror_go/internal/bootstrap"
	"mirror_go/internal/domain"
)

const subscriberBuffer = 16

type DecisionPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// DecisionRepository keeps the most recent decisions in memory and fans every
// new one out to live subscribers and an optional publisher.
type DecisionRepository struct {
	mu          sync.RWMutex
	capacity    int
	decisions   []domain.Decision
	subscribers map[chan domain.Decision]struct{}

	publisher DecisionPublisher
	channel   string
	log       *zap.SugaredLogger
}

// NewDecisionRepository builds the journal. publisher may be nil.
func NewDecisionRepository(cfg *bootstrap.Config, log *zap.SugaredLogger, publisher DecisionPublisher) *DecisionRepository {
	return &DecisionRepository{
		capacity:    cfg.DecisionHistory,
		decisions:   make([]domain.Decision, 0, cfg.DecisionHistory),
		subscribers: make(map[chan domain.Decision]struct{}),
		publisher:   publisher,
		channel:     cfg.RedisChannel,
		log:         log,
	}
}

func (r *DecisionRepository) Record(ctx context.Context, d domain.Decision) {
	r.mu.Lock()
	if len(r.decisions) == r.capacity {
		copy(r.decisions, r.decisions[1:])
		r.decisions = r.decisions[:len(r.decisions)-1]
	}
	r.decisions = append(r.decisions, d)
	for ch := range r.subscribers {
		select {
		case ch <- d:
		default:
			r.log.Warnw("dropping decision for slow subscriber", "id", d.ID)
		}
	}
	r.mu.Unlock()

	if r.publisher == nil {
		return
	}
	payload, err := json.Marshal(d)
	if err != nil {
		r.log.Errorw("failed to marshal decision", "id", d.ID, "error", err)
		return
	}
	if err := r.publisher.Publish(ctx, r.channel, payload); err != nil {
		r.log.Warnw("failed to publish decision", "id", d.ID, "channel", r.channel, "error", err)
	}
}

// List returns the stored decisions, oldest first.
func (r *DecisionRepository) List() []domain.Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Decision(nil), r.decisions...)
}

// Subscribe returns a channel receiving every decision recorded from now on
// and a function that cancels the subscription and closes the channel.
func (r *DecisionRepository) Subscribe() (<-chan domain.Decision, func()) {
	ch := make(chan domain.Decision, subscriberBuffer)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, ch)
			r.mu.Unlock()
			close(ch)
		})
	}
}
