package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"

	"github.com/zeebo/blake3"
)

type cipherRecord struct {
	value  uint64
	grants map[string]struct{}
	public bool
}

// CipherSim is the in-memory stand-in for the encrypted arithmetic service.
// Handles map to plaintext values held privately inside the simulator, with
// the same grant and public-decrypt bookkeeping as the real service, so the
// lifecycle and tally logic exercise identical handle flows in unit tests.
//
// Out-of-range choices are absorbed: Equals reports false against every
// option index, so a malformed ballot adds zero to every counter.
type CipherSim struct {
	mu      sync.Mutex
	handles map[entities.CipherHandle]*cipherRecord
	seq     uint64
}

var _ ports.CipherEngine = (*CipherSim)(nil)

func NewCipherSim() *CipherSim {
	return &CipherSim{handles: make(map[entities.CipherHandle]*cipherRecord)}
}

// SealBallot produces the wire form of a ballot for the simulator: the raw
// ciphertext is the decimal choice and the proof is its BLAKE3 binding to
// (poll, voter) context, mirroring the real service's proof rule.
func SealBallot(choice uint64, binding []byte) (raw []byte, proof []byte) {
	raw = []byte(strconv.FormatUint(choice, 10))
	return raw, ballotProof(raw, binding)
}

func ballotProof(raw []byte, binding []byte) []byte {
	sum := blake3.Sum256(append(append([]byte(nil), raw...), binding...))
	return sum[:]
}

func (c *CipherSim) EncryptZero(_ context.Context) (entities.CipherHandle, error) {
	return c.store(0), nil
}

func (c *CipherSim) EncryptOne(_ context.Context) (entities.CipherHandle, error) {
	return c.store(1), nil
}

func (c *CipherSim) ImportCiphertext(
	_ context.Context,
	raw []byte,
	proof []byte,
	binding []byte,
) (entities.CipherHandle, error) {
	expected := ballotProof(raw, binding)
	if subtle.ConstantTimeCompare(expected, proof) != 1 {
		return "", domainerrors.ErrInvalidCiphertext
	}
	value, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return "", domainerrors.ErrInvalidCiphertext
	}
	return c.store(value), nil
}

func (c *CipherSim) Equals(
	_ context.Context,
	choice entities.CipherHandle,
	index uint64,
) (entities.CipherHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.handles[choice]
	if !ok {
		return "", domainerrors.ErrConflict
	}
	result := uint64(0)
	if record.value == index {
		result = 1
	}
	return c.storeLocked(result), nil
}

func (c *CipherSim) Select(
	_ context.Context,
	cond, ifTrue, ifFalse entities.CipherHandle,
) (entities.CipherHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	condRecord, ok := c.handles[cond]
	if !ok {
		return "", domainerrors.ErrConflict
	}
	trueRecord, ok := c.handles[ifTrue]
	if !ok {
		return "", domainerrors.ErrConflict
	}
	falseRecord, ok := c.handles[ifFalse]
	if !ok {
		return "", domainerrors.ErrConflict
	}
	if condRecord.value != 0 {
		return c.storeLocked(trueRecord.value), nil
	}
	return c.storeLocked(falseRecord.value), nil
}

func (c *CipherSim) Add(_ context.Context, a, b entities.CipherHandle) (entities.CipherHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	left, ok := c.handles[a]
	if !ok {
		return "", domainerrors.ErrConflict
	}
	right, ok := c.handles[b]
	if !ok {
		return "", domainerrors.ErrConflict
	}
	return c.storeLocked(left.value + right.value), nil
}

func (c *CipherSim) GrantPersistentAccess(
	_ context.Context,
	handle entities.CipherHandle,
	principal string,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.handles[handle]
	if !ok {
		return domainerrors.ErrConflict
	}
	record.grants[principal] = struct{}{}
	return nil
}

func (c *CipherSim) MarkPubliclyDecryptable(
	_ context.Context,
	handle entities.CipherHandle,
) (entities.CipherHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.handles[handle]
	if !ok {
		return "", domainerrors.ErrConflict
	}
	public := c.storeLocked(record.value)
	c.handles[public].public = true
	return public, nil
}

func (c *CipherSim) PublicDecrypt(
	_ context.Context,
	handles []entities.CipherHandle,
) (map[entities.CipherHandle]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make(map[entities.CipherHandle]uint64, len(handles))
	for _, handle := range handles {
		record, ok := c.handles[handle]
		if !ok {
			return nil, domainerrors.ErrConflict
		}
		if !record.public {
			return nil, domainerrors.ErrNotFinalized
		}
		values[handle] = record.value
	}
	return values, nil
}

// Plaintext exposes the value behind a handle for test harnesses that need
// decryption access without going through finalization.
func (c *CipherSim) Plaintext(handle entities.CipherHandle) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.handles[handle]
	if !ok {
		return 0, false
	}
	return record.value, true
}

func (c *CipherSim) store(value uint64) entities.CipherHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeLocked(value)
}

func (c *CipherSim) storeLocked(value uint64) entities.CipherHandle {
	c.seq++
	handle := entities.CipherHandle(fmt.Sprintf("sim-%d", c.seq))
	c.handles[handle] = &cipherRecord{
		value:  value,
		grants: make(map[string]struct{}),
	}
	return handle
}
