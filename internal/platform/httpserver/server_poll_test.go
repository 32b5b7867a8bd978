package httpserver

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pollengine "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/adapters/memory"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/commands"
	pollhttp "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/transport/http"
)

type stubClock struct {
	now time.Time
}

func (c *stubClock) Now() time.Time {
	return c.now
}

func newTestServer() (*Server, *stubClock) {
	clock := &stubClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	module := pollengine.NewModule(pollengine.Dependencies{
		Polls:   store,
		Ledger:  store,
		Ballots: store,
		Cipher:  memory.NewCipherSim(),
		Outbox:  store,
		Clock:   clock,
		IDGen:   store,
	})
	return New(module, nil, ":0"), clock
}

// createTestPoll opens a poll one minute out and advances the clock into the
// active window.
func createTestPoll(t *testing.T, server *Server, clock *stubClock, options int) int64 {
	t.Helper()
	labels := make([]string, 0, options)
	for i := 0; i < options; i++ {
		labels = append(labels, fmt.Sprintf("option-%d", i))
	}
	payload, _ := json.Marshal(pollhttp.CreatePollRequest{
		Name:     "launch plan",
		Options:  labels,
		StartsAt: clock.now.Add(time.Minute),
		EndsAt:   clock.now.Add(time.Hour),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/polls", bytes.NewReader(payload))
	req.Header.Set("X-User-Id", "creator-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp pollhttp.CreatePollResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	return resp.PollID
}

func castTestVote(server *Server, pollID int64, voterID string, choice uint64) *httptest.ResponseRecorder {
	raw, proof := memory.SealBallot(choice, commands.BallotBinding(pollID, voterID))
	payload, _ := json.Marshal(pollhttp.CastVoteRequest{
		Ciphertext: base64.StdEncoding.EncodeToString(raw),
		Proof:      hex.EncodeToString(proof),
	})
	req := httptest.NewRequest(
		http.MethodPost,
		fmt.Sprintf("/v1/polls/%d/votes", pollID),
		bytes.NewReader(payload),
	)
	req.Header.Set("X-User-Id", voterID)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	return rr
}

func TestCreatePollRequiresUserHeader(t *testing.T) {
	server, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/v1/polls", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreatePollRejectsSingleOption(t *testing.T) {
	server, clock := newTestServer()

	payload, _ := json.Marshal(pollhttp.CreatePollRequest{
		Name:     "solo",
		Options:  []string{"only"},
		StartsAt: clock.now.Add(time.Minute),
		EndsAt:   clock.now.Add(time.Hour),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/polls", bytes.NewReader(payload))
	req.Header.Set("X-User-Id", "creator-1")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp pollhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "invalid_option_count" {
		t.Fatalf("expected invalid_option_count, got %s", resp.Code)
	}
}

func TestVoteThenDuplicateIsConflict(t *testing.T) {
	server, clock := newTestServer()
	pollID := createTestPoll(t, server, clock, 3)

	if rr := castTestVote(server, pollID, "voter-a", 1); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr := castTestVote(server, pollID, "voter-a", 2)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp pollhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "already_voted" {
		t.Fatalf("expected already_voted, got %s", resp.Code)
	}
}

func TestVoteRejectsMalformedCiphertext(t *testing.T) {
	server, clock := newTestServer()
	pollID := createTestPoll(t, server, clock, 2)

	payload, _ := json.Marshal(pollhttp.CastVoteRequest{
		Ciphertext: "not-base64!!",
		Proof:      "00",
	})
	req := httptest.NewRequest(
		http.MethodPost,
		fmt.Sprintf("/v1/polls/%d/votes", pollID),
		bytes.NewReader(payload),
	)
	req.Header.Set("X-User-Id", "voter-a")

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestFinalizeBeforeEndIsConflict(t *testing.T) {
	server, clock := newTestServer()
	pollID := createTestPoll(t, server, clock, 2)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/polls/%d/finalize", pollID), nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp pollhttp.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Code != "poll_still_active" {
		t.Fatalf("expected poll_still_active, got %s", resp.Code)
	}
}

func TestFinalizeThenResultsFlow(t *testing.T) {
	server, clock := newTestServer()
	pollID := createTestPoll(t, server, clock, 2)

	if rr := castTestVote(server, pollID, "voter-a", 1); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	resultsTarget := fmt.Sprintf("/v1/polls/%d/results", pollID)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, resultsTarget, nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 before finalize, got %d body=%s", rr.Code, rr.Body.String())
	}

	clock.now = clock.now.Add(2 * time.Hour)

	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/polls/%d/finalize", pollID), nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/polls/%d/finalize", pollID), nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second finalize, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, resultsTarget, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var results pollhttp.EncryptedResultsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode results response: %v", err)
	}
	if len(results.Handles) != 2 {
		t.Fatalf("expected 2 counter handles, got %d", len(results.Handles))
	}
}

func TestHasVotedReflectsLedger(t *testing.T) {
	server, clock := newTestServer()
	pollID := createTestPoll(t, server, clock, 2)

	target := fmt.Sprintf("/v1/polls/%d/voters/voter-a", pollID)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var before pollhttp.HasVotedResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &before); err != nil {
		t.Fatalf("decode has-voted response: %v", err)
	}
	if before.Voted {
		t.Fatalf("expected voted=false before casting")
	}

	if rr := castTestVote(server, pollID, "voter-a", 0); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	var after pollhttp.HasVotedResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode has-voted response: %v", err)
	}
	if !after.Voted {
		t.Fatalf("expected voted=true after casting")
	}
}

func TestUnknownPollIsNotFound(t *testing.T) {
	server, _ := newTestServer()

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/polls/42", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestListPollsIncludesPhase(t *testing.T) {
	server, clock := newTestServer()
	createTestPoll(t, server, clock, 2)
	createTestPoll(t, server, clock, 4)

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/polls", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var resp pollhttp.PollListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("expected two polls, got total=%d items=%d", resp.Total, len(resp.Items))
	}
	for _, item := range resp.Items {
		if item.Phase != "active" {
			t.Fatalf("expected active phase, got %s", item.Phase)
		}
	}
}

func TestInvalidPollIDIsBadRequest(t *testing.T) {
	server, _ := newTestServer()

	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/polls/abc", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
	}
}
