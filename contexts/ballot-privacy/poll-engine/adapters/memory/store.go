package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	published bool
}

// Store is the in-memory registry, voter ledger and outbox. Polls live in an
// append-only slice so the slice index is the poll id; entries are never
// removed or reordered.
type Store struct {
	mu sync.RWMutex

	polls  []entities.Poll
	voters map[int64]map[string]time.Time
	outbox map[string]outboxRecord
}

func NewStore() *Store {
	return &Store{
		voters: make(map[int64]map[string]time.Time),
		outbox: make(map[string]outboxRecord),
	}
}

func (s *Store) AppendPoll(_ context.Context, poll entities.Poll) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll.ID = int64(len(s.polls))
	s.polls = append(s.polls, clonePoll(poll))
	return poll.ID, nil
}

func (s *Store) GetPoll(_ context.Context, pollID int64) (entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pollID < 0 || pollID >= int64(len(s.polls)) {
		return entities.Poll{}, domainerrors.ErrUnknownPoll
	}
	return clonePoll(s.polls[pollID]), nil
}

func (s *Store) ListPolls(_ context.Context) ([]entities.Poll, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Poll, 0, len(s.polls))
	for _, poll := range s.polls {
		items = append(items, clonePoll(poll))
	}
	return items, nil
}

func (s *Store) CountPolls(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.polls)), nil
}

func (s *Store) ReplaceCounters(
	_ context.Context,
	pollID int64,
	counters []entities.CipherHandle,
	updatedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pollID < 0 || pollID >= int64(len(s.polls)) {
		return domainerrors.ErrUnknownPoll
	}
	if len(counters) != len(s.polls[pollID].Counters) {
		return domainerrors.ErrConflict
	}
	s.polls[pollID].Counters = append([]entities.CipherHandle(nil), counters...)
	s.polls[pollID].UpdatedAt = updatedAt.UTC()
	return nil
}

func (s *Store) MarkFinalized(
	_ context.Context,
	pollID int64,
	counters []entities.CipherHandle,
	updatedAt time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pollID < 0 || pollID >= int64(len(s.polls)) {
		return domainerrors.ErrUnknownPoll
	}
	if s.polls[pollID].Finalized {
		return domainerrors.ErrAlreadyFinalized
	}
	if len(counters) != len(s.polls[pollID].Counters) {
		return domainerrors.ErrConflict
	}
	s.polls[pollID].Counters = append([]entities.CipherHandle(nil), counters...)
	s.polls[pollID].Finalized = true
	s.polls[pollID].UpdatedAt = updatedAt.UTC()
	return nil
}

func (s *Store) HasVoted(_ context.Context, pollID int64, voterID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.voters[pollID][strings.TrimSpace(voterID)]
	return ok, nil
}

func (s *Store) RecordVote(_ context.Context, pollID int64, voterID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	voterID = strings.TrimSpace(voterID)
	ledger, ok := s.voters[pollID]
	if !ok {
		ledger = make(map[string]time.Time)
		s.voters[pollID] = ledger
	}
	if _, voted := ledger[voterID]; voted {
		return domainerrors.ErrAlreadyVoted
	}
	ledger[voterID] = at.UTC()
	return nil
}

// CommitBallot applies one accepted ballot under a single lock hold. The
// ledger entry, counter vector and outbox row land together or not at all.
func (s *Store) CommitBallot(_ context.Context, commit ports.BallotCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if commit.PollID < 0 || commit.PollID >= int64(len(s.polls)) {
		return domainerrors.ErrUnknownPoll
	}
	if len(commit.Counters) != len(s.polls[commit.PollID].Counters) {
		return domainerrors.ErrConflict
	}
	voterID := strings.TrimSpace(commit.VoterID)
	ledger, ok := s.voters[commit.PollID]
	if !ok {
		ledger = make(map[string]time.Time)
		s.voters[commit.PollID] = ledger
	}
	if _, voted := ledger[voterID]; voted {
		return domainerrors.ErrAlreadyVoted
	}

	// The outbox append is the last failable step; write it before mutating
	// the ledger and counters.
	if commit.Event != nil {
		if err := s.appendOutboxLocked(*commit.Event); err != nil {
			return err
		}
	}
	ledger[voterID] = commit.At.UTC()
	s.polls[commit.PollID].Counters = append([]entities.CipherHandle(nil), commit.Counters...)
	s.polls[commit.PollID].UpdatedAt = commit.At.UTC()
	return nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendOutboxLocked(envelope)
}

func (s *Store) appendOutboxLocked(envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if _, exists := s.outbox[outboxID]; exists {
		return domainerrors.ErrConflict
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	s.outbox[outboxID] = outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		items = append(items, row.message)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func clonePoll(poll entities.Poll) entities.Poll {
	poll.Options = append([]string(nil), poll.Options...)
	poll.Counters = append([]entities.CipherHandle(nil), poll.Counters...)
	return poll
}
