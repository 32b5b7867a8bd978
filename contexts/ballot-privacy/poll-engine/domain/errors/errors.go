package errors

import "errors"

var (
	ErrEmptyName          = errors.New("poll name is empty")
	ErrInvalidOptionCount = errors.New("poll option count is out of range")
	ErrInvalidWindow      = errors.New("poll voting window is invalid")
	ErrUnknownPoll        = errors.New("poll not found")
	ErrNotStarted         = errors.New("poll voting window has not started")
	ErrWindowClosed       = errors.New("poll voting window is closed")
	ErrAlreadyVoted       = errors.New("voter has already cast a vote in this poll")
	ErrInvalidCiphertext  = errors.New("ballot ciphertext proof rejected")
	ErrPollStillActive    = errors.New("poll voting window is still open")
	ErrAlreadyFinalized   = errors.New("poll is already finalized")
	ErrNotFinalized       = errors.New("poll is not finalized")
	ErrConflict           = errors.New("poll state conflict")
)
