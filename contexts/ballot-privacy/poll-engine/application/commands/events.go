package commands

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
)

// Poll events are partitioned by poll id so per-poll ordering is stable for
// downstream consumers.
func newPollEnvelope(
	eventID string,
	eventType string,
	pollID int64,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	if data == nil {
		data = map[string]any{}
	}
	data["poll_id"] = pollID
	data["occurred_at"] = occurredAt.UTC().Format(time.RFC3339)

	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "poll-engine",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "poll_id",
		PartitionKey:     strconv.FormatInt(pollID, 10),
		Data:             payload,
	}, nil
}

// voteCastEvent builds the poll.vote_cast envelope handed to the atomic
// ballot commit. Nil when no outbox is wired, matching appendPollEvent.
func (uc PollUseCase) voteCastEvent(
	ctx context.Context,
	pollID int64,
	voterID string,
	occurredAt time.Time,
) (*ports.EventEnvelope, error) {
	if uc.Outbox == nil {
		return nil, nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return nil, err
	}
	envelope, err := newPollEnvelope(eventID, "poll.vote_cast", pollID, occurredAt, map[string]any{
		"voter_id": voterID,
	})
	if err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (uc PollUseCase) appendPollEvent(
	ctx context.Context,
	eventType string,
	pollID int64,
	occurredAt time.Time,
	data map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope, err := newPollEnvelope(eventID, eventType, pollID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}
