package fhe

import (
	"fmt"
	"sync"

	"github.com/tuneinsight/lattigo/v4/bgv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// Sealer is the client-side half of the scheme: it encrypts a choice under
// the service public key and derives the proof that binds the ciphertext to
// its submission context. It holds no secret key material.
type Sealer struct {
	mu        sync.Mutex
	params    bgv.Parameters
	encoder   bgv.Encoder
	encryptor rlwe.Encryptor
}

// Seal encrypts choice and returns the serialized ciphertext together with
// its binding proof.
func (s *Sealer) Seal(choice uint64, binding []byte) (raw []byte, proof []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pt := s.encoder.EncodeNew([]uint64{choice}, s.params.MaxLevel(), rlwe.NewScale(1))
	ct := s.encryptor.EncryptNew(pt)
	raw, err = ct.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("fhe: serialize ballot: %w", err)
	}
	return raw, BindingProof(raw, binding), nil
}
