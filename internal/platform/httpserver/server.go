package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	pollengine "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine"
	pollerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	pollhttp "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/ethanmiles0/VoteGrid/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	polls  pollengine.Module
}

func New(polls pollengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		polls:  polls,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/polls", s.handleCreatePoll)
	s.mux.HandleFunc("GET /v1/polls", s.handleListPolls)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}", s.handlePollMetadata)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/options", s.handlePollOptions)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /v1/polls/{poll_id}/finalize", s.handleFinalizePoll)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/results", s.handleEncryptedResults)
	s.mux.HandleFunc("GET /v1/polls/{poll_id}/voters/{voter_id}", s.handleHasVoted)
}

func (s *Server) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	creatorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if creatorID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req pollhttp.CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.polls.Handler.CreatePollHandler(r.Context(), creatorID, req)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListPolls(w http.ResponseWriter, r *http.Request) {
	resp, err := s.polls.Handler.ListPollsHandler(r.Context())
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePollMetadata(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.PollMetadataHandler(r.Context(), pollID)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePollOptions(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.PollOptionsHandler(r.Context(), pollID)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if voterID == "" {
		writePollError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}

	var req pollhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePollError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.polls.Handler.CastVoteHandler(r.Context(), pollID, voterID, req); err != nil {
		writePollDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinalizePoll(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	if err := s.polls.Handler.FinalizePollHandler(r.Context(), pollID); err != nil {
		writePollDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEncryptedResults(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	resp, err := s.polls.Handler.EncryptedResultsHandler(r.Context(), pollID)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHasVoted(w http.ResponseWriter, r *http.Request) {
	pollID, ok := parsePollID(w, r)
	if !ok {
		return
	}
	voterID := strings.TrimSpace(r.PathValue("voter_id"))
	if voterID == "" {
		writePollError(w, http.StatusBadRequest, "invalid_voter_id", "voter id must not be empty")
		return
	}

	resp, err := s.polls.Handler.HasVotedHandler(r.Context(), pollID, voterID)
	if err != nil {
		writePollDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func parsePollID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	pollID, err := strconv.ParseInt(r.PathValue("poll_id"), 10, 64)
	if err != nil || pollID < 0 {
		writePollError(w, http.StatusBadRequest, "invalid_poll_id", "poll id must be a non-negative integer")
		return 0, false
	}
	return pollID, true
}

func writePollDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pollerrors.ErrEmptyName):
		writePollError(w, http.StatusBadRequest, "empty_name", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidOptionCount):
		writePollError(w, http.StatusBadRequest, "invalid_option_count", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidWindow):
		writePollError(w, http.StatusBadRequest, "invalid_window", err.Error())
	case errors.Is(err, pollerrors.ErrInvalidCiphertext):
		writePollError(w, http.StatusBadRequest, "invalid_ciphertext", err.Error())
	case errors.Is(err, pollerrors.ErrUnknownPoll):
		writePollError(w, http.StatusNotFound, "unknown_poll", err.Error())
	case errors.Is(err, pollerrors.ErrNotStarted):
		writePollError(w, http.StatusConflict, "not_started", err.Error())
	case errors.Is(err, pollerrors.ErrWindowClosed):
		writePollError(w, http.StatusConflict, "window_closed", err.Error())
	case errors.Is(err, pollerrors.ErrAlreadyVoted):
		writePollError(w, http.StatusConflict, "already_voted", err.Error())
	case errors.Is(err, pollerrors.ErrPollStillActive):
		writePollError(w, http.StatusConflict, "poll_still_active", err.Error())
	case errors.Is(err, pollerrors.ErrAlreadyFinalized):
		writePollError(w, http.StatusConflict, "already_finalized", err.Error())
	case errors.Is(err, pollerrors.ErrNotFinalized):
		writePollError(w, http.StatusConflict, "not_finalized", err.Error())
	case errors.Is(err, pollerrors.ErrConflict):
		writePollError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writePollError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writePollError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, pollhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
