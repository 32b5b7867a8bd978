package entities

import "time"

// CipherHandle is an opaque reference to a ciphertext held by the encrypted
// arithmetic service. Nothing outside that service ever sees the plaintext
// behind a handle.
type CipherHandle string

// MinOptions and MaxOptions bound the option list of a poll. The encrypted
// choice domain of the arithmetic service is sized to MaxOptions.
const (
	MinOptions = 2
	MaxOptions = 4
)

type PollPhase string

const (
	PhasePending   PollPhase = "pending"
	PhaseActive    PollPhase = "active"
	PhaseEnded     PollPhase = "ended"
	PhaseFinalized PollPhase = "finalized"
)

// Poll is an append-only registry entry. After creation only Counters and
// Finalized (plus UpdatedAt) ever change; Counters always has exactly one
// handle per option, in option order.
type Poll struct {
	ID        int64
	Name      string
	Options   []string
	StartsAt  time.Time
	EndsAt    time.Time
	Finalized bool
	CreatorID string
	Counters  []CipherHandle
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Phase derives the lifecycle phase from the wall clock. Phase is never
// stored: only the Finalized boolean persists, everything else is a pure
// function of (now, StartsAt, EndsAt, Finalized).
func (p Poll) Phase(now time.Time) PollPhase {
	if p.Finalized {
		return PhaseFinalized
	}
	now = now.UTC()
	if now.Before(p.StartsAt) {
		return PhasePending
	}
	if now.Before(p.EndsAt) {
		return PhaseActive
	}
	return PhaseEnded
}

// AcceptsVotes reports whether the voting window is open at now.
func (p Poll) AcceptsVotes(now time.Time) bool {
	return p.Phase(now) == PhaseActive
}
