package unit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/workers"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
	"github.com/ethanmiles0/VoteGrid/internal/platform/messaging"
)

type capturingPublisher struct {
	topics []string
	events []ports.EventEnvelope
}

func (p *capturingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func TestOutboxRelayPublishesPendingEvents(t *testing.T) {
	fixture := newPollFixture()
	pollID := fixture.createPoll(t, "relayed", []string{"a", "b"}, time.Second, time.Hour)
	fixture.clock.Advance(time.Minute)
	if err := fixture.castVote(pollID, "voter-a", 0); err != nil {
		t.Fatalf("vote failed: %v", err)
	}

	publisher := &capturingPublisher{}
	relay := workers.OutboxRelay{
		Outbox:    fixture.store,
		Publisher: publisher,
		Clock:     fixture.clock,
		BatchSize: 10,
	}

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(publisher.events))
	}
	if publisher.topics[0] != "poll.created" || publisher.topics[1] != "poll.vote_cast" {
		t.Fatalf("unexpected topics %v", publisher.topics)
	}
	for _, event := range publisher.events {
		if event.SourceService != "poll-engine" {
			t.Fatalf("unexpected source service %s", event.SourceService)
		}
		if event.PartitionKey == "" {
			t.Fatalf("expected partition key on %s", event.EventType)
		}
	}

	// A second cycle finds nothing pending.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay rerun failed: %v", err)
	}
	if len(publisher.events) != 2 {
		t.Fatalf("expected no re-publish, got %d events", len(publisher.events))
	}
}

func TestFinalizeSweeperFinalizesEndedPolls(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	endedID := fixture.createPoll(t, "ended", []string{"a", "b"}, time.Second, time.Minute)
	activeID := fixture.createPoll(t, "active", []string{"a", "b"}, time.Second, 3*time.Hour)
	fixture.clock.Advance(2 * time.Hour)

	sweeper := workers.FinalizeSweeper{
		Polls:  fixture.store,
		Poller: fixture.module.Handler.Polls,
		Clock:  fixture.clock,
	}
	if err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	ended, err := fixture.store.GetPoll(ctx, endedID)
	if err != nil {
		t.Fatalf("get ended poll failed: %v", err)
	}
	if !ended.Finalized {
		t.Fatalf("expected ended poll to be finalized")
	}

	active, err := fixture.store.GetPoll(ctx, activeID)
	if err != nil {
		t.Fatalf("get active poll failed: %v", err)
	}
	if active.Finalized {
		t.Fatalf("active poll must not be finalized")
	}
	if active.Phase(fixture.clock.Now()) != entities.PhaseActive {
		t.Fatalf("expected active phase, got %s", active.Phase(fixture.clock.Now()))
	}

	// Idempotent on rerun: the already-finalized poll is skipped.
	if err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
}

func TestFinalizeSweeperSkipsForeignCounterHandles(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	ownedID := fixture.createPoll(t, "owned", []string{"a", "b"}, time.Second, time.Minute)

	// A poll whose counters were created by another engine instance: its
	// handles are unknown to this process's cipher.
	start := fixture.clock.Now().Add(time.Second)
	foreignID, err := fixture.store.AppendPoll(ctx, entities.Poll{
		Name:     "foreign",
		Options:  []string{"a", "b"},
		StartsAt: start,
		EndsAt:   start.Add(time.Minute),
		Counters: []entities.CipherHandle{"foreign-0", "foreign-1"},
	})
	if err != nil {
		t.Fatalf("append foreign poll failed: %v", err)
	}
	fixture.clock.Advance(time.Hour)

	sweeper := workers.FinalizeSweeper{
		Polls:  fixture.store,
		Poller: fixture.module.Handler.Polls,
		Clock:  fixture.clock,
	}
	if err := sweeper.RunOnce(ctx); err != nil {
		t.Fatalf("sweep must tolerate foreign handles, got %v", err)
	}

	owned, _ := fixture.store.GetPoll(ctx, ownedID)
	if !owned.Finalized {
		t.Fatalf("expected owned poll to be finalized")
	}
	foreign, _ := fixture.store.GetPoll(ctx, foreignID)
	if foreign.Finalized {
		t.Fatalf("foreign poll must be left for its owning instance")
	}
}

func TestFinalizedProjectionObservesRelayedEvents(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	pollID := fixture.createPoll(t, "projected", []string{"a", "b"}, time.Second, time.Minute)
	fixture.clock.Advance(time.Hour)
	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	bus, err := messaging.NewKafka(nil, nil)
	if err != nil {
		t.Fatalf("bus setup failed: %v", err)
	}
	projection := &workers.FinalizedPollProjection{}
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := bus.Subscribe(subCtx, "poll.finalized", "poll-engine-finalized-projection", projection.Handle); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	relay := workers.OutboxRelay{
		Outbox:    fixture.store,
		Publisher: bus,
		Clock:     fixture.clock,
		BatchSize: 10,
	}
	if err := relay.RunOnce(ctx); err != nil {
		t.Fatalf("relay run failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for projection.FinalizedPolls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := projection.FinalizedPolls(); got != 1 {
		t.Fatalf("expected 1 finalized poll observed, got %d", got)
	}
}

func TestFinalizedProjectionDeduplicatesRedelivery(t *testing.T) {
	projection := &workers.FinalizedPollProjection{}
	event := ports.EventEnvelope{
		EventID:   "evt-1",
		EventType: "poll.finalized",
		Data:      json.RawMessage(`{"poll_id": 3}`),
	}

	for i := 0; i < 2; i++ {
		if err := projection.Handle(context.Background(), event); err != nil {
			t.Fatalf("handle failed: %v", err)
		}
	}
	if got := projection.FinalizedPolls(); got != 1 {
		t.Fatalf("expected redelivery to be deduplicated, got %d", got)
	}
}
