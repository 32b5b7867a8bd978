package commands

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	application "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
)

// CreatePollCommand is the write-model input for poll creation.
type CreatePollCommand struct {
	Name      string
	Options   []string
	StartsAt  time.Time
	EndsAt    time.Time
	CreatorID string
}

// CastVoteCommand carries an encrypted ballot. Ciphertext and Proof are
// opaque to the engine; they are handed to the arithmetic service for
// verification and import.
type CastVoteCommand struct {
	PollID     int64
	VoterID    string
	Ciphertext []byte
	Proof      []byte
}

// FinalizePollCommand closes a poll and makes its counters publicly
// decryptable.
type FinalizePollCommand struct {
	PollID int64
}

// PollLocks serializes mutating operations per poll id. The tally update
// sequence (read counters, compute increments, write counters) is not safe
// under interleaved writers on the same poll.
type PollLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewPollLocks() *PollLocks {
	return &PollLocks{locks: make(map[int64]*sync.Mutex)}
}

func (l *PollLocks) Lock(pollID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[pollID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[pollID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// PollUseCase orchestrates the poll lifecycle transitions. Every failure is
// detected before any state write, so a rejected command leaves the
// registry, ledger and counter vector untouched.
type PollUseCase struct {
	Polls     ports.PollRegistry
	Ledger    ports.VoterLedger
	Ballots   ports.BallotCommitter
	Cipher    ports.CipherEngine
	Tally     TallyAccumulator
	Outbox    ports.OutboxWriter
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Locks     *PollLocks
	Principal string
	Logger    *slog.Logger
}

// CreatePoll validates and appends a new poll. Counters are allocated as
// encrypted zeros with a persistent decryption grant for the engine
// principal, which later homomorphic updates and the finalize step rely on.
func (uc PollUseCase) CreatePoll(ctx context.Context, cmd CreatePollCommand) (int64, error) {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("poll create processing started",
		"event", "poll_create_started",
		"module", "ballot-privacy/poll-engine",
		"layer", "application",
		"creator_id", strings.TrimSpace(cmd.CreatorID),
		"option_count", len(cmd.Options),
	)

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		logger.Warn("poll create rejected empty name",
			"event", "poll_create_empty_name",
			"module", "ballot-privacy/poll-engine",
			"layer", "application",
			"creator_id", strings.TrimSpace(cmd.CreatorID),
		)
		return 0, domainerrors.ErrEmptyName
	}
	if len(cmd.Options) < entities.MinOptions || len(cmd.Options) > entities.MaxOptions {
		logger.Warn("poll create rejected option count",
			"event", "poll_create_invalid_option_count",
			"module", "ballot-privacy/poll-engine",
			"layer", "application",
			"option_count", len(cmd.Options),
		)
		return 0, domainerrors.ErrInvalidOptionCount
	}

	now := uc.now()
	startsAt := cmd.StartsAt.UTC()
	endsAt := cmd.EndsAt.UTC()
	if !endsAt.After(startsAt) || startsAt.Before(now) {
		logger.Warn("poll create rejected window",
			"event", "poll_create_invalid_window",
			"module", "ballot-privacy/poll-engine",
			"layer", "application",
			"starts_at", startsAt,
			"ends_at", endsAt,
		)
		return 0, domainerrors.ErrInvalidWindow
	}

	counters := make([]entities.CipherHandle, 0, len(cmd.Options))
	for range cmd.Options {
		handle, err := uc.Cipher.EncryptZero(ctx)
		if err != nil {
			return 0, err
		}
		if err := uc.Cipher.GrantPersistentAccess(ctx, handle, uc.Principal); err != nil {
			return 0, err
		}
		counters = append(counters, handle)
	}

	options := make([]string, len(cmd.Options))
	copy(options, cmd.Options)

	pollID, err := uc.Polls.AppendPoll(ctx, entities.Poll{
		Name:      name,
		Options:   options,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		Finalized: false,
		CreatorID: strings.TrimSpace(cmd.CreatorID),
		Counters:  counters,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return 0, err
	}

	if err := uc.appendPollEvent(ctx, "poll.created", pollID, now, map[string]any{
		"name":         name,
		"starts_at":    startsAt.Format(time.RFC3339),
		"ends_at":      endsAt.Format(time.RFC3339),
		"option_count": len(options),
	}); err != nil {
		return 0, err
	}

	logger.Info("poll created",
		"event", "poll_created",
		"module", "ballot-privacy/poll-engine",
		"layer", "application",
		"poll_id", pollID,
		"option_count", len(options),
		"starts_at", startsAt,
		"ends_at", endsAt,
	)
	return pollID, nil
}

// CastVote accepts one encrypted ballot for an active poll. The choice stays
// encrypted end to end: the ballot is verified and imported by the
// arithmetic service, and the tally accumulator updates every counter with
// an encrypted zero-or-one increment. The emitted event carries the poll id
// and the voter identity only, never the choice.
func (uc PollUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	voterID := strings.TrimSpace(cmd.VoterID)
	logger.Info("vote cast processing started",
		"event", "poll_vote_cast_started",
		"module", "ballot-privacy/poll-engine",
		"layer", "application",
		"poll_id", cmd.PollID,
		"voter_id", voterID,
	)

	unlock := uc.lock(cmd.PollID)
	defer unlock()

	poll, err := uc.Polls.GetPoll(ctx, cmd.PollID)
	if err != nil {
		return err
	}

	now := uc.now()
	switch poll.Phase(now) {
	case entities.PhasePending:
		return domainerrors.ErrNotStarted
	case entities.PhaseEnded, entities.PhaseFinalized:
		return domainerrors.ErrWindowClosed
	}

	voted, err := uc.Ledger.HasVoted(ctx, cmd.PollID, voterID)
	if err != nil {
		return err
	}
	if voted {
		logger.Warn("vote cast rejected duplicate voter",
			"event", "poll_vote_duplicate",
			"module", "ballot-privacy/poll-engine",
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter_id", voterID,
		)
		return domainerrors.ErrAlreadyVoted
	}

	choice, err := uc.Cipher.ImportCiphertext(ctx, cmd.Ciphertext, cmd.Proof, BallotBinding(cmd.PollID, voterID))
	if err != nil {
		logger.Warn("vote cast rejected ciphertext",
			"event", "poll_vote_invalid_ciphertext",
			"module", "ballot-privacy/poll-engine",
			"layer", "application",
			"poll_id", cmd.PollID,
			"voter_id", voterID,
			"error", err.Error(),
		)
		return err
	}

	// The full replacement vector is computed before any write so that a
	// failed ciphertext operation aborts with no partial mutation.
	counters, err := uc.Tally.Increment(ctx, choice, poll.Counters)
	if err != nil {
		return err
	}

	// Ledger entry, counter vector and outbox event commit as one unit.
	event, err := uc.voteCastEvent(ctx, cmd.PollID, voterID, now)
	if err != nil {
		return err
	}
	if err := uc.Ballots.CommitBallot(ctx, ports.BallotCommit{
		PollID:   cmd.PollID,
		VoterID:  voterID,
		Counters: counters,
		Event:    event,
		At:       now,
	}); err != nil {
		return err
	}

	logger.Info("vote cast recorded",
		"event", "poll_vote_cast",
		"module", "ballot-privacy/poll-engine",
		"layer", "application",
		"poll_id", cmd.PollID,
		"voter_id", voterID,
	)
	return nil
}

// FinalizePoll is the one-way transition to the terminal phase. Every
// counter handle is replaced by its publicly decryptable form exactly once;
// counters never change again afterwards.
func (uc PollUseCase) FinalizePoll(ctx context.Context, cmd FinalizePollCommand) error {
	logger := application.ResolveLogger(uc.Logger)
	logger.Info("poll finalize processing started",
		"event", "poll_finalize_started",
		"module", "ballot-privacy/poll-engine",
		"layer", "application",
		"poll_id", cmd.PollID,
	)

	unlock := uc.lock(cmd.PollID)
	defer unlock()

	poll, err := uc.Polls.GetPoll(ctx, cmd.PollID)
	if err != nil {
		return err
	}
	if poll.Finalized {
		return domainerrors.ErrAlreadyFinalized
	}

	now := uc.now()
	if now.Before(poll.EndsAt) {
		logger.Warn("poll finalize rejected while window open",
			"event", "poll_finalize_still_active",
			"module", "ballot-privacy/poll-engine",
			"layer", "application",
			"poll_id", cmd.PollID,
			"ends_at", poll.EndsAt,
		)
		return domainerrors.ErrPollStillActive
	}

	revealed := make([]entities.CipherHandle, 0, len(poll.Counters))
	for _, handle := range poll.Counters {
		public, err := uc.Cipher.MarkPubliclyDecryptable(ctx, handle)
		if err != nil {
			return err
		}
		revealed = append(revealed, public)
	}

	if err := uc.Polls.MarkFinalized(ctx, cmd.PollID, revealed, now); err != nil {
		return err
	}

	if err := uc.appendPollEvent(ctx, "poll.finalized", cmd.PollID, now, map[string]any{
		"option_count": len(revealed),
	}); err != nil {
		return err
	}

	logger.Info("poll finalized",
		"event", "poll_finalized",
		"module", "ballot-privacy/poll-engine",
		"layer", "application",
		"poll_id", cmd.PollID,
	)
	return nil
}

func (uc PollUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc PollUseCase) lock(pollID int64) func() {
	if uc.Locks == nil {
		return func() {}
	}
	return uc.Locks.Lock(pollID)
}
