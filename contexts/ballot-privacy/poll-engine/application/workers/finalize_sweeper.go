package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/commands"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
)

// FinalizeSweeper finalizes polls whose voting window has closed. It goes
// through the same FinalizePoll use case as callers do, so no transition
// semantics are added; a concurrent manual finalize simply surfaces as
// AlreadyFinalized and is skipped.
//
// Finalization re-encrypts counter handles, so the sweeper must run next to
// the engine instance that created them; polls owned by another instance are
// skipped, not treated as failures.
type FinalizeSweeper struct {
	Polls  ports.PollRegistry
	Poller commands.PollUseCase
	Clock  ports.Clock
	Logger *slog.Logger
}

func (s FinalizeSweeper) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)

	polls, err := s.Polls.ListPolls(ctx)
	if err != nil {
		logger.Error("finalize sweep list failed",
			"event", "poll_finalize_sweep_list_failed",
			"module", "ballot-privacy/poll-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}

	swept := 0
	for _, poll := range polls {
		if poll.Phase(now) != entities.PhaseEnded {
			continue
		}
		err := s.Poller.FinalizePoll(ctx, commands.FinalizePollCommand{PollID: poll.ID})
		if errors.Is(err, domainerrors.ErrAlreadyFinalized) || errors.Is(err, domainerrors.ErrPollStillActive) {
			continue
		}
		if errors.Is(err, domainerrors.ErrConflict) {
			// Counter handles created by another engine instance; the sweeper
			// colocated with that instance finalizes the poll.
			logger.Warn("finalize sweep skipped foreign counters",
				"event", "poll_finalize_sweep_skipped",
				"module", "ballot-privacy/poll-engine",
				"layer", "worker",
				"poll_id", poll.ID,
			)
			continue
		}
		if err != nil {
			logger.Error("finalize sweep failed",
				"event", "poll_finalize_sweep_failed",
				"module", "ballot-privacy/poll-engine",
				"layer", "worker",
				"poll_id", poll.ID,
				"error", err.Error(),
			)
			return err
		}
		swept++
	}

	if swept > 0 {
		logger.Info("finalize sweep completed",
			"event", "poll_finalize_sweep_completed",
			"module", "ballot-privacy/poll-engine",
			"layer", "worker",
			"finalized_count", swept,
		)
	}
	return nil
}
