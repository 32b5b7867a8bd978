package queries

import (
	"context"
	"strings"
	"time"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
)

// PollMetadata is the read model for a single poll. Counters are excluded;
// encrypted results have their own accessor gated on finalization.
type PollMetadata struct {
	PollID      int64
	Name        string
	StartsAt    time.Time
	EndsAt      time.Time
	Finalized   bool
	Phase       entities.PollPhase
	CreatorID   string
	OptionCount int
}

// PollQueryUseCase serves the read-only accessors. None of these mutate
// state; the phase reported in metadata is derived fresh from the clock on
// every call.
type PollQueryUseCase struct {
	Polls  ports.PollRegistry
	Ledger ports.VoterLedger
	Clock  ports.Clock
}

func (uc PollQueryUseCase) PollCount(ctx context.Context) (int64, error) {
	return uc.Polls.CountPolls(ctx)
}

func (uc PollQueryUseCase) PollMetadata(ctx context.Context, pollID int64) (PollMetadata, error) {
	poll, err := uc.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return PollMetadata{}, err
	}
	return uc.toMetadata(poll), nil
}

func (uc PollQueryUseCase) ListPolls(ctx context.Context) ([]PollMetadata, error) {
	polls, err := uc.Polls.ListPolls(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]PollMetadata, 0, len(polls))
	for _, poll := range polls {
		items = append(items, uc.toMetadata(poll))
	}
	return items, nil
}

func (uc PollQueryUseCase) PollOptions(ctx context.Context, pollID int64) ([]string, error) {
	poll, err := uc.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	options := make([]string, len(poll.Options))
	copy(options, poll.Options)
	return options, nil
}

func (uc PollQueryUseCase) HasVoted(ctx context.Context, pollID int64, voterID string) (bool, error) {
	if _, err := uc.Polls.GetPoll(ctx, pollID); err != nil {
		return false, err
	}
	return uc.Ledger.HasVoted(ctx, pollID, strings.TrimSpace(voterID))
}

// EncryptedResults returns the counter handle vector for downstream public
// decryption. Before finalization the handles are withheld entirely; there
// is no partial-tally read path.
func (uc PollQueryUseCase) EncryptedResults(ctx context.Context, pollID int64) ([]entities.CipherHandle, error) {
	poll, err := uc.Polls.GetPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !poll.Finalized {
		return nil, domainerrors.ErrNotFinalized
	}
	handles := make([]entities.CipherHandle, len(poll.Counters))
	copy(handles, poll.Counters)
	return handles, nil
}

func (uc PollQueryUseCase) toMetadata(poll entities.Poll) PollMetadata {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return PollMetadata{
		PollID:      poll.ID,
		Name:        poll.Name,
		StartsAt:    poll.StartsAt,
		EndsAt:      poll.EndsAt,
		Finalized:   poll.Finalized,
		Phase:       poll.Phase(now),
		CreatorID:   poll.CreatorID,
		OptionCount: len(poll.Options),
	}
}
