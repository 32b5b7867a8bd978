// Package fhe hosts the homomorphic arithmetic service used by the poll
// engine. Counter handles are opaque ids; the ciphertexts and the secret key
// never leave this package. Ballots arrive as serialized BGV ciphertexts and
// every tally update is computed with encrypted operands only.
package fhe

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuneinsight/lattigo/v4/bgv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
	"github.com/zeebo/blake3"
)

var (
	ErrBadProof            = errors.New("fhe: proof does not bind ciphertext to context")
	ErrMalformedCiphertext = errors.New("fhe: ciphertext failed to deserialize")
	ErrValueOutOfDomain    = errors.New("fhe: encrypted value outside the interpolation domain")
	ErrUnknownHandle       = errors.New("fhe: unknown handle")
	ErrNotPublic           = errors.New("fhe: handle is not publicly decryptable")
)

// Depth-3 circuit (two relinearized products plus a select) at T=65537 fits
// comfortably in a 216-bit modulus chain without rescaling, so every
// ciphertext stays at the top level with scale one.
var paramsLiteral = bgv.ParametersLiteral{
	LogN: 13,
	LogQ: []int{54, 54, 54, 54},
	LogP: []int{55},
	T:    65537,
}

type handleRecord struct {
	ct     *rlwe.Ciphertext
	grants map[string]struct{}
	public bool
}

// Service owns the key material and the handle table. Equality against a
// plaintext index is evaluated as the Lagrange interpolation of the indicator
// polynomial over the fixed domain {0..domain-1}, which is exact only when
// the encrypted value lies inside that domain; Import therefore rejects
// ballots whose value falls outside it.
type Service struct {
	params    bgv.Parameters
	sk        *rlwe.SecretKey
	pk        *rlwe.PublicKey
	encoder   bgv.Encoder
	encryptor rlwe.Encryptor
	decryptor rlwe.Decryptor
	evaluator bgv.Evaluator
	domain    uint64
	logger    *slog.Logger

	mu      sync.Mutex
	handles map[string]*handleRecord
	seq     uint64
}

// New generates a fresh key pair and evaluation keys. domain is the number of
// admissible plaintext values, starting at zero.
func New(domain uint64, logger *slog.Logger) (*Service, error) {
	if domain < 2 {
		return nil, fmt.Errorf("fhe: domain must hold at least two values, got %d", domain)
	}
	if logger == nil {
		logger = slog.Default()
	}
	params, err := bgv.NewParametersFromLiteral(paramsLiteral)
	if err != nil {
		return nil, fmt.Errorf("fhe: build parameters: %w", err)
	}
	keygen := bgv.NewKeyGenerator(params)
	sk, pk := keygen.GenKeyPair()
	rlk := keygen.GenRelinearizationKey(sk, 1)

	return &Service{
		params:    params,
		sk:        sk,
		pk:        pk,
		encoder:   bgv.NewEncoder(params),
		encryptor: bgv.NewEncryptor(params, pk),
		decryptor: bgv.NewDecryptor(params, sk),
		evaluator: bgv.NewEvaluator(params, rlwe.EvaluationKey{Rlk: rlk}),
		domain:    domain,
		logger:    logger,
		handles:   make(map[string]*handleRecord),
	}, nil
}

// NewSealer returns a client-side sealer bound to this service's public key.
func (s *Service) NewSealer() *Sealer {
	return &Sealer{
		params:    s.params,
		encoder:   bgv.NewEncoder(s.params),
		encryptor: bgv.NewEncryptor(s.params, s.pk),
	}
}

func (s *Service) EncryptZero(_ context.Context) (string, error) {
	return s.encryptScalar(0)
}

func (s *Service) EncryptOne(_ context.Context) (string, error) {
	return s.encryptScalar(1)
}

func (s *Service) encryptScalar(value uint64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt := s.encoder.EncodeNew([]uint64{value}, s.params.MaxLevel(), rlwe.NewScale(1))
	ct := s.encryptor.EncryptNew(pt)
	return s.storeLocked(ct), nil
}

// Import verifies the binding proof, deserializes the ciphertext, and checks
// under the service key that the encrypted value lies in the domain. The
// plaintext value is never returned to the caller.
func (s *Service) Import(_ context.Context, raw, proof, binding []byte) (string, error) {
	if subtle.ConstantTimeCompare(BindingProof(raw, binding), proof) != 1 {
		return "", ErrBadProof
	}
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(raw); err != nil {
		return "", ErrMalformedCiphertext
	}
	if ct.Degree() != 1 {
		return "", ErrMalformedCiphertext
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value := s.decodeLocked(ct)
	if value >= s.domain {
		return "", ErrValueOutOfDomain
	}
	return s.storeLocked(ct), nil
}

// Equals evaluates the indicator polynomial for index over the domain:
// eq(x) = invDenom * prod_{j != index} (x - j), which is 1 at x == index and
// 0 at every other domain point.
func (s *Service) Equals(_ context.Context, handle string, index uint64) (string, error) {
	if index >= s.domain {
		return "", ErrValueOutOfDomain
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.handles[handle]
	if !ok {
		return "", ErrUnknownHandle
	}

	t := s.params.T()
	var acc *rlwe.Ciphertext
	denom := uint64(1)
	for j := uint64(0); j < s.domain; j++ {
		if j == index {
			continue
		}
		term := s.evaluator.AddScalarNew(record.ct, (t-j)%t)
		if acc == nil {
			acc = term
		} else {
			acc = s.evaluator.MulRelinNew(acc, term)
		}
		denom = mulMod(denom, subMod(index, j, t), t)
	}
	acc = s.evaluator.MulScalarNew(acc, invMod(denom, t))
	return s.storeLocked(acc), nil
}

// Select returns ifTrue where cond encrypts 1 and ifFalse where it encrypts
// 0, computed as ifFalse + cond*(ifTrue - ifFalse).
func (s *Service) Select(_ context.Context, cond, ifTrue, ifFalse string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	condRecord, ok := s.handles[cond]
	if !ok {
		return "", ErrUnknownHandle
	}
	trueRecord, ok := s.handles[ifTrue]
	if !ok {
		return "", ErrUnknownHandle
	}
	falseRecord, ok := s.handles[ifFalse]
	if !ok {
		return "", ErrUnknownHandle
	}

	diff := s.evaluator.SubNew(trueRecord.ct, falseRecord.ct)
	gated := s.evaluator.MulRelinNew(condRecord.ct, diff)
	out := s.evaluator.AddNew(falseRecord.ct, gated)
	return s.storeLocked(out), nil
}

func (s *Service) Add(_ context.Context, a, b string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	left, ok := s.handles[a]
	if !ok {
		return "", ErrUnknownHandle
	}
	right, ok := s.handles[b]
	if !ok {
		return "", ErrUnknownHandle
	}
	return s.storeLocked(s.evaluator.AddNew(left.ct, right.ct)), nil
}

func (s *Service) Grant(_ context.Context, handle, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.handles[handle]
	if !ok {
		return ErrUnknownHandle
	}
	record.grants[principal] = struct{}{}
	return nil
}

// MarkPublic produces a new handle over the same ciphertext that anyone may
// decrypt through PublicDecrypt. The source handle keeps its access rules.
func (s *Service) MarkPublic(_ context.Context, handle string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.handles[handle]
	if !ok {
		return "", ErrUnknownHandle
	}
	public := s.storeLocked(record.ct.CopyNew())
	s.handles[public].public = true
	return public, nil
}

func (s *Service) PublicDecrypt(_ context.Context, handles []string) (map[string]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make(map[string]uint64, len(handles))
	for _, handle := range handles {
		record, ok := s.handles[handle]
		if !ok {
			return nil, ErrUnknownHandle
		}
		if !record.public {
			return nil, ErrNotPublic
		}
		values[handle] = s.decodeLocked(record.ct)
	}
	return values, nil
}

func (s *Service) decodeLocked(ct *rlwe.Ciphertext) uint64 {
	return s.encoder.DecodeUintNew(s.decryptor.DecryptNew(ct))[0]
}

func (s *Service) storeLocked(ct *rlwe.Ciphertext) string {
	s.seq++
	handle := fmt.Sprintf("fhe-%d", s.seq)
	s.handles[handle] = &handleRecord{
		ct:     ct,
		grants: make(map[string]struct{}),
	}
	return handle
}

// BindingProof derives the proof that ties a serialized ciphertext to its
// submission context. Verification recomputes the hash over the received
// bytes, so a ballot replayed under a different binding fails the check.
func BindingProof(raw, binding []byte) []byte {
	hasher := blake3.New()
	hasher.Write(raw)
	hasher.Write(binding)
	return hasher.Sum(nil)
}

func subMod(a, b, m uint64) uint64 {
	return (a + m - b%m) % m
}

func mulMod(a, b, m uint64) uint64 {
	return a * b % m
}

// invMod computes the inverse by Fermat's little theorem; m is prime.
func invMod(a, m uint64) uint64 {
	result := uint64(1)
	base := a % m
	exp := m - 2
	for exp > 0 {
		if exp&1 == 1 {
			result = mulMod(result, base, m)
		}
		base = mulMod(base, base, m)
		exp >>= 1
	}
	return result
}
