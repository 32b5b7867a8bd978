package commands

import (
	"context"
	"encoding/binary"
	"log/slog"

	application "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
)

// TallyAccumulator applies the encrypted one-hot increment: for every option
// index the choice is tested for equality, the test selects between an
// encrypted one and an encrypted zero, and the selection is added to that
// option's counter. The work is data-independent: the same optionCount
// equality tests, selects and adds run for every ballot regardless of its
// content.
type TallyAccumulator struct {
	Cipher    ports.CipherEngine
	Principal string
	Logger    *slog.Logger
}

// Increment returns the replacement counter vector for one ballot. Input
// handles are never mutated; each output handle carries a fresh persistent
// grant for the engine principal. Nothing is written to storage here, so a
// failure at any step leaves the poll untouched.
func (t TallyAccumulator) Increment(
	ctx context.Context,
	choice entities.CipherHandle,
	counters []entities.CipherHandle,
) ([]entities.CipherHandle, error) {
	logger := application.ResolveLogger(t.Logger)

	one, err := t.Cipher.EncryptOne(ctx)
	if err != nil {
		return nil, err
	}
	zero, err := t.Cipher.EncryptZero(ctx)
	if err != nil {
		return nil, err
	}

	next := make([]entities.CipherHandle, len(counters))
	for i, counter := range counters {
		match, err := t.Cipher.Equals(ctx, choice, uint64(i))
		if err != nil {
			return nil, err
		}
		increment, err := t.Cipher.Select(ctx, match, one, zero)
		if err != nil {
			return nil, err
		}
		updated, err := t.Cipher.Add(ctx, counter, increment)
		if err != nil {
			return nil, err
		}
		if err := t.Cipher.GrantPersistentAccess(ctx, updated, t.Principal); err != nil {
			return nil, err
		}
		next[i] = updated
	}

	logger.Debug("tally increment computed",
		"event", "poll_tally_increment",
		"module", "ballot-privacy/poll-engine",
		"layer", "application",
		"option_count", len(counters),
	)
	return next, nil
}

// BallotBinding is the context a ballot proof must commit to. Binding the
// ciphertext to (poll, voter) stops a captured ballot from being replayed
// into another poll or under another identity.
func BallotBinding(pollID int64, voterID string) []byte {
	binding := make([]byte, 8, 8+len(voterID))
	binary.BigEndian.PutUint64(binding, uint64(pollID))
	return append(binding, voterID...)
}
