package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreatePollRequest struct {
	Name     string    `json:"name"`
	Options  []string  `json:"options"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type CreatePollResponse struct {
	PollID int64 `json:"poll_id"`
}

// CastVoteRequest carries an encrypted ballot. Ciphertext is the
// base64-encoded ciphertext of the chosen option index; Proof is the
// hex-encoded binding proof. Neither field is interpretable by the server.
type CastVoteRequest struct {
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"proof"`
}

type PollMetadataResponse struct {
	PollID      int64     `json:"poll_id"`
	Name        string    `json:"name"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
	Finalized   bool      `json:"finalized"`
	Phase       string    `json:"phase"`
	CreatorID   string    `json:"creator_id"`
	OptionCount int       `json:"option_count"`
}

type PollListResponse struct {
	Total int64                  `json:"total"`
	Items []PollMetadataResponse `json:"items"`
}

type PollOptionsResponse struct {
	PollID  int64    `json:"poll_id"`
	Options []string `json:"options"`
}

type HasVotedResponse struct {
	PollID  int64  `json:"poll_id"`
	VoterID string `json:"voter_id"`
	Voted   bool   `json:"voted"`
}

// EncryptedResultsResponse exposes the counter handles of a finalized poll
// for downstream public decryption, in option order.
type EncryptedResultsResponse struct {
	PollID  int64    `json:"poll_id"`
	Handles []string `json:"handles"`
}
