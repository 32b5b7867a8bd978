package unit

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	pollengine "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/adapters/memory"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/commands"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	httptransport "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/transport/http"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type pollFixture struct {
	module pollengine.Module
	store  *memory.Store
	cipher *memory.CipherSim
	clock  *fakeClock
}

func newPollFixture() pollFixture {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	cipher := memory.NewCipherSim()
	module := pollengine.NewModule(pollengine.Dependencies{
		Polls:   store,
		Ledger:  store,
		Ballots: store,
		Cipher:  cipher,
		Outbox:  store,
		Clock:   clock,
		IDGen:   store,
	})
	return pollFixture{module: module, store: store, cipher: cipher, clock: clock}
}

func (f pollFixture) createPoll(t *testing.T, name string, options []string, startIn, duration time.Duration) int64 {
	t.Helper()
	resp, err := f.module.Handler.CreatePollHandler(context.Background(), "creator-1", httptransport.CreatePollRequest{
		Name:     name,
		Options:  options,
		StartsAt: f.clock.now.Add(startIn),
		EndsAt:   f.clock.now.Add(startIn + duration),
	})
	if err != nil {
		t.Fatalf("create poll failed: %v", err)
	}
	return resp.PollID
}

func (f pollFixture) castVote(pollID int64, voterID string, choice uint64) error {
	raw, proof := memory.SealBallot(choice, commands.BallotBinding(pollID, voterID))
	return f.module.Handler.CastVoteHandler(context.Background(), pollID, voterID, httptransport.CastVoteRequest{
		Ciphertext: base64.StdEncoding.EncodeToString(raw),
		Proof:      hex.EncodeToString(proof),
	})
}

func (f pollFixture) decryptedResults(t *testing.T, pollID int64) []uint64 {
	t.Helper()
	resp, err := f.module.Handler.EncryptedResultsHandler(context.Background(), pollID)
	if err != nil {
		t.Fatalf("encrypted results failed: %v", err)
	}
	handles := make([]entities.CipherHandle, 0, len(resp.Handles))
	for _, handle := range resp.Handles {
		handles = append(handles, entities.CipherHandle(handle))
	}
	values, err := f.cipher.PublicDecrypt(context.Background(), handles)
	if err != nil {
		t.Fatalf("public decrypt failed: %v", err)
	}
	counts := make([]uint64, 0, len(handles))
	for _, handle := range handles {
		counts = append(counts, values[handle])
	}
	return counts
}

func TestPollCreationBoundaries(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	startsAt := fixture.clock.now.Add(time.Minute)
	endsAt := startsAt.Add(time.Hour)

	_, err := fixture.module.Handler.CreatePollHandler(ctx, "creator-1", httptransport.CreatePollRequest{
		Name:     "   ",
		Options:  []string{"a", "b"},
		StartsAt: startsAt,
		EndsAt:   endsAt,
	})
	if !errors.Is(err, domainerrors.ErrEmptyName) {
		t.Fatalf("expected EmptyName, got %v", err)
	}

	for _, options := range [][]string{
		{"only"},
		{"a", "b", "c", "d", "e"},
	} {
		_, err := fixture.module.Handler.CreatePollHandler(ctx, "creator-1", httptransport.CreatePollRequest{
			Name:     "bad options",
			Options:  options,
			StartsAt: startsAt,
			EndsAt:   endsAt,
		})
		if !errors.Is(err, domainerrors.ErrInvalidOptionCount) {
			t.Fatalf("expected InvalidOptionCount for %d options, got %v", len(options), err)
		}
	}

	_, err = fixture.module.Handler.CreatePollHandler(ctx, "creator-1", httptransport.CreatePollRequest{
		Name:     "degenerate window",
		Options:  []string{"a", "b"},
		StartsAt: startsAt,
		EndsAt:   startsAt,
	})
	if !errors.Is(err, domainerrors.ErrInvalidWindow) {
		t.Fatalf("expected InvalidWindow for end == start, got %v", err)
	}

	_, err = fixture.module.Handler.CreatePollHandler(ctx, "creator-1", httptransport.CreatePollRequest{
		Name:     "past start",
		Options:  []string{"a", "b"},
		StartsAt: fixture.clock.now.Add(-time.Minute),
		EndsAt:   endsAt,
	})
	if !errors.Is(err, domainerrors.ErrInvalidWindow) {
		t.Fatalf("expected InvalidWindow for past start, got %v", err)
	}
}

func TestPollIdsAreSequentialFromZero(t *testing.T) {
	fixture := newPollFixture()

	for want := int64(0); want < 3; want++ {
		got := fixture.createPoll(t, "seq", []string{"a", "b"}, time.Minute, time.Hour)
		if got != want {
			t.Fatalf("expected poll id %d, got %d", want, got)
		}
	}
}

func TestPollCreationAllocatesEncryptedZeroCounters(t *testing.T) {
	fixture := newPollFixture()
	pollID := fixture.createPoll(t, "zeros", []string{"a", "b", "c"}, time.Minute, time.Hour)

	poll, err := fixture.store.GetPoll(context.Background(), pollID)
	if err != nil {
		t.Fatalf("get poll failed: %v", err)
	}
	if len(poll.Counters) != len(poll.Options) {
		t.Fatalf("expected %d counters, got %d", len(poll.Options), len(poll.Counters))
	}
	for i, handle := range poll.Counters {
		value, ok := fixture.cipher.Plaintext(handle)
		if !ok {
			t.Fatalf("counter %d handle unknown to cipher", i)
		}
		if value != 0 {
			t.Fatalf("expected counter %d to start at 0, got %d", i, value)
		}
	}
}

// Mirrors the canonical walkthrough: three options, two voters, a premature
// finalize, then a post-window finalize and decryption.
func TestLaunchPlanScenario(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	pollID := fixture.createPoll(t, "Launch Plan", []string{"Option A", "Option B", "Option C"}, 5*time.Second, time.Hour)

	if err := fixture.castVote(pollID, "voter-a", 1); !errors.Is(err, domainerrors.ErrNotStarted) {
		t.Fatalf("expected NotStarted before window opens, got %v", err)
	}

	fixture.clock.Advance(10 * time.Second)
	if err := fixture.castVote(pollID, "voter-a", 1); err != nil {
		t.Fatalf("voter-a vote failed: %v", err)
	}
	if err := fixture.castVote(pollID, "voter-b", 2); err != nil {
		t.Fatalf("voter-b vote failed: %v", err)
	}

	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); !errors.Is(err, domainerrors.ErrPollStillActive) {
		t.Fatalf("expected PollStillActive before end, got %v", err)
	}
	if _, err := fixture.module.Handler.EncryptedResultsHandler(ctx, pollID); !errors.Is(err, domainerrors.ErrNotFinalized) {
		t.Fatalf("expected NotFinalized before finalize, got %v", err)
	}

	fixture.clock.Advance(2 * time.Hour)
	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	counts := fixture.decryptedResults(t, pollID)
	want := []uint64{0, 1, 1}
	for i, count := range counts {
		if count != want[i] {
			t.Fatalf("expected counts %v, got %v", want, counts)
		}
	}
}

func TestDuplicateVoteLeavesCountersUntouched(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	pollID := fixture.createPoll(t, "dupes", []string{"yes", "no"}, time.Second, time.Hour)
	fixture.clock.Advance(time.Minute)

	if err := fixture.castVote(pollID, "voter-a", 0); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	if err := fixture.castVote(pollID, "voter-a", 1); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected AlreadyVoted, got %v", err)
	}

	fixture.clock.Advance(2 * time.Hour)
	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	counts := fixture.decryptedResults(t, pollID)
	if counts[0] != 1 || counts[1] != 0 {
		t.Fatalf("expected counts [1 0], got %v", counts)
	}
}

func TestVoteAfterWindowCloses(t *testing.T) {
	fixture := newPollFixture()
	pollID := fixture.createPoll(t, "closing", []string{"a", "b"}, time.Second, time.Minute)

	fixture.clock.Advance(time.Hour)
	if err := fixture.castVote(pollID, "voter-a", 0); !errors.Is(err, domainerrors.ErrWindowClosed) {
		t.Fatalf("expected WindowClosed, got %v", err)
	}
}

func TestVoteRejectsTamperedProof(t *testing.T) {
	fixture := newPollFixture()
	pollID := fixture.createPoll(t, "proofs", []string{"a", "b"}, time.Second, time.Hour)
	fixture.clock.Advance(time.Minute)

	// Ballot sealed for another voter's binding must not import.
	raw, proof := memory.SealBallot(0, commands.BallotBinding(pollID, "voter-b"))
	err := fixture.module.Handler.CastVoteHandler(context.Background(), pollID, "voter-a", httptransport.CastVoteRequest{
		Ciphertext: base64.StdEncoding.EncodeToString(raw),
		Proof:      hex.EncodeToString(proof),
	})
	if !errors.Is(err, domainerrors.ErrInvalidCiphertext) {
		t.Fatalf("expected InvalidCiphertext, got %v", err)
	}

	voted, queryErr := fixture.module.Handler.HasVotedHandler(context.Background(), pollID, "voter-a")
	if queryErr != nil {
		t.Fatalf("has voted failed: %v", queryErr)
	}
	if voted.Voted {
		t.Fatalf("rejected ballot must not mark the voter as having voted")
	}
}

func TestOutOfRangeChoiceAddsNothing(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	pollID := fixture.createPoll(t, "absorb", []string{"a", "b"}, time.Second, time.Hour)
	fixture.clock.Advance(time.Minute)

	if err := fixture.castVote(pollID, "voter-a", 7); err != nil {
		t.Fatalf("out-of-range vote failed: %v", err)
	}

	fixture.clock.Advance(2 * time.Hour)
	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	counts := fixture.decryptedResults(t, pollID)
	if counts[0] != 0 || counts[1] != 0 {
		t.Fatalf("expected all-zero counts, got %v", counts)
	}

	voted, err := fixture.module.Handler.HasVotedHandler(ctx, pollID, "voter-a")
	if err != nil {
		t.Fatalf("has voted failed: %v", err)
	}
	if !voted.Voted {
		t.Fatalf("absorbed ballot still consumes the voter's one vote")
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	pollID := fixture.createPoll(t, "terminal", []string{"a", "b"}, time.Second, time.Minute)

	fixture.clock.Advance(time.Hour)
	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); !errors.Is(err, domainerrors.ErrAlreadyFinalized) {
		t.Fatalf("expected AlreadyFinalized, got %v", err)
	}

	if err := fixture.castVote(pollID, "voter-a", 0); !errors.Is(err, domainerrors.ErrWindowClosed) {
		t.Fatalf("expected WindowClosed after finalize, got %v", err)
	}
}

func TestUnknownPollAccessors(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()

	if _, err := fixture.module.Handler.PollMetadataHandler(ctx, 42); !errors.Is(err, domainerrors.ErrUnknownPoll) {
		t.Fatalf("expected UnknownPoll for metadata, got %v", err)
	}
	if _, err := fixture.module.Handler.PollOptionsHandler(ctx, 42); !errors.Is(err, domainerrors.ErrUnknownPoll) {
		t.Fatalf("expected UnknownPoll for options, got %v", err)
	}
	if _, err := fixture.module.Handler.HasVotedHandler(ctx, 42, "voter-a"); !errors.Is(err, domainerrors.ErrUnknownPoll) {
		t.Fatalf("expected UnknownPoll for has-voted, got %v", err)
	}
	if err := fixture.castVote(42, "voter-a", 0); !errors.Is(err, domainerrors.ErrUnknownPoll) {
		t.Fatalf("expected UnknownPoll for vote, got %v", err)
	}
	if err := fixture.module.Handler.FinalizePollHandler(ctx, 42); !errors.Is(err, domainerrors.ErrUnknownPoll) {
		t.Fatalf("expected UnknownPoll for finalize, got %v", err)
	}
}

func TestPhaseDerivation(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	pollID := fixture.createPoll(t, "phases", []string{"a", "b"}, time.Minute, time.Hour)

	metadata, err := fixture.module.Handler.PollMetadataHandler(ctx, pollID)
	if err != nil {
		t.Fatalf("metadata failed: %v", err)
	}
	if metadata.Phase != string(entities.PhasePending) {
		t.Fatalf("expected pending, got %s", metadata.Phase)
	}

	fixture.clock.Advance(2 * time.Minute)
	metadata, _ = fixture.module.Handler.PollMetadataHandler(ctx, pollID)
	if metadata.Phase != string(entities.PhaseActive) {
		t.Fatalf("expected active, got %s", metadata.Phase)
	}

	fixture.clock.Advance(2 * time.Hour)
	metadata, _ = fixture.module.Handler.PollMetadataHandler(ctx, pollID)
	if metadata.Phase != string(entities.PhaseEnded) {
		t.Fatalf("expected ended, got %s", metadata.Phase)
	}

	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	metadata, _ = fixture.module.Handler.PollMetadataHandler(ctx, pollID)
	if metadata.Phase != string(entities.PhaseFinalized) {
		t.Fatalf("expected finalized, got %s", metadata.Phase)
	}
}

func TestTallySumMatchesVoteCount(t *testing.T) {
	fixture := newPollFixture()
	ctx := context.Background()
	pollID := fixture.createPoll(t, "sum", []string{"a", "b", "c", "d"}, time.Second, time.Hour)
	fixture.clock.Advance(time.Minute)

	choices := []uint64{0, 3, 1, 3, 2, 3, 0}
	for i, choice := range choices {
		voter := string(rune('a' + i))
		if err := fixture.castVote(pollID, "voter-"+voter, choice); err != nil {
			t.Fatalf("vote %d failed: %v", i, err)
		}
	}

	fixture.clock.Advance(2 * time.Hour)
	if err := fixture.module.Handler.FinalizePollHandler(ctx, pollID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	counts := fixture.decryptedResults(t, pollID)
	want := []uint64{2, 1, 1, 3}
	var total uint64
	for i, count := range counts {
		if count != want[i] {
			t.Fatalf("expected counts %v, got %v", want, counts)
		}
		total += count
	}
	if total != uint64(len(choices)) {
		t.Fatalf("expected %d total votes, got %d", len(choices), total)
	}
}
