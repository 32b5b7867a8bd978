package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	application "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
)

// FinalizedPollProjection consumes poll.finalized events off the bus and
// keeps a read model of which polls have closed. Redelivered events are
// deduplicated by event id, so Handle is safe under at-least-once delivery.
type FinalizedPollProjection struct {
	Logger *slog.Logger

	mu    sync.Mutex
	seen  map[string]struct{}
	polls map[int64]struct{}
}

func (p *FinalizedPollProjection) Handle(_ context.Context, event ports.EventEnvelope) error {
	logger := application.ResolveLogger(p.Logger)

	var data struct {
		PollID int64 `json:"poll_id"`
	}
	if err := json.Unmarshal(event.Data, &data); err != nil {
		logger.Error("finalized projection decode failed",
			"event", "poll_finalized_projection_decode_failed",
			"module", "ballot-privacy/poll-engine",
			"layer", "worker",
			"event_id", event.EventID,
			"error", err.Error(),
		)
		return err
	}

	p.mu.Lock()
	if p.seen == nil {
		p.seen = make(map[string]struct{})
		p.polls = make(map[int64]struct{})
	}
	if _, dup := p.seen[event.EventID]; dup {
		p.mu.Unlock()
		return nil
	}
	p.seen[event.EventID] = struct{}{}
	p.polls[data.PollID] = struct{}{}
	total := len(p.polls)
	p.mu.Unlock()

	logger.Info("poll finalization observed",
		"event", "poll_finalized_projection_applied",
		"module", "ballot-privacy/poll-engine",
		"layer", "worker",
		"poll_id", data.PollID,
		"finalized_total", total,
	)
	return nil
}

// FinalizedPolls reports how many distinct polls the projection has seen
// finalize.
func (p *FinalizedPollProjection) FinalizedPolls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.polls)
}
