package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
)

// PollRegistry is the append-only poll collection. Ids are assigned by
// position starting at zero and are never reused or reordered. Option lists
// and windows are immutable after AppendPoll; only the counter vector and the
// finalized flag are ever rewritten.
type PollRegistry interface {
	AppendPoll(ctx context.Context, poll entities.Poll) (int64, error)
	GetPoll(ctx context.Context, pollID int64) (entities.Poll, error)
	ListPolls(ctx context.Context) ([]entities.Poll, error)
	CountPolls(ctx context.Context) (int64, error)
	ReplaceCounters(ctx context.Context, pollID int64, counters []entities.CipherHandle, updatedAt time.Time) error
	MarkFinalized(ctx context.Context, pollID int64, counters []entities.CipherHandle, updatedAt time.Time) error
}

// VoterLedger tracks which identities have voted per poll. Membership is
// permanent; RecordVote fails with ErrAlreadyVoted on a duplicate pair.
type VoterLedger interface {
	HasVoted(ctx context.Context, pollID int64, voterID string) (bool, error)
	RecordVote(ctx context.Context, pollID int64, voterID string, at time.Time) error
}

// BallotCommit is the write set produced by one accepted ballot: the voter
// ledger entry, the replacement counter vector and the outbox event. Event is
// nil when no eventing is wired.
type BallotCommit struct {
	PollID   int64
	VoterID  string
	Counters []entities.CipherHandle
	Event    *EventEnvelope
	At       time.Time
}

// BallotCommitter applies a BallotCommit atomically; either every write in
// the commit lands or none does, so an infrastructure failure can never spend
// a vote without applying its increment.
type BallotCommitter interface {
	CommitBallot(ctx context.Context, commit BallotCommit) error
}

// CipherEngine is the boundary with the encrypted arithmetic service. All
// vote-dependent state changes are expressed through these operations so that
// control flow never branches on a plaintext choice.
//
// Equals produces a handle encrypting 1 when the choice equals the plaintext
// index and 0 otherwise; Select picks ifTrue or ifFalse under an encrypted
// condition; Add is homomorphic addition. PublicDecrypt succeeds only for
// handles that went through MarkPubliclyDecryptable and is never called by
// the lifecycle controller itself.
type CipherEngine interface {
	EncryptZero(ctx context.Context) (entities.CipherHandle, error)
	EncryptOne(ctx context.Context) (entities.CipherHandle, error)
	ImportCiphertext(ctx context.Context, raw []byte, proof []byte, binding []byte) (entities.CipherHandle, error)
	Equals(ctx context.Context, choice entities.CipherHandle, index uint64) (entities.CipherHandle, error)
	Select(ctx context.Context, cond, ifTrue, ifFalse entities.CipherHandle) (entities.CipherHandle, error)
	Add(ctx context.Context, a, b entities.CipherHandle) (entities.CipherHandle, error)
	GrantPersistentAccess(ctx context.Context, handle entities.CipherHandle, principal string) error
	MarkPubliclyDecryptable(ctx context.Context, handle entities.CipherHandle) (entities.CipherHandle, error)
	PublicDecrypt(ctx context.Context, handles []entities.CipherHandle) (map[entities.CipherHandle]uint64, error)
}

// EventEnvelope is the canonical event shape produced by the poll engine.
type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
