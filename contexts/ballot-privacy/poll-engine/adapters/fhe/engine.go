// Package fheadapter binds the homomorphic arithmetic service to the poll
// engine's cipher port, translating handle types and error vocabularies.
package fheadapter

import (
	"context"
	"errors"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"
	"github.com/ethanmiles0/VoteGrid/internal/platform/fhe"
)

type Engine struct {
	Service *fhe.Service
}

var _ ports.CipherEngine = (*Engine)(nil)

func (e *Engine) EncryptZero(ctx context.Context) (entities.CipherHandle, error) {
	handle, err := e.Service.EncryptZero(ctx)
	return entities.CipherHandle(handle), mapError(err)
}

func (e *Engine) EncryptOne(ctx context.Context) (entities.CipherHandle, error) {
	handle, err := e.Service.EncryptOne(ctx)
	return entities.CipherHandle(handle), mapError(err)
}

func (e *Engine) ImportCiphertext(
	ctx context.Context,
	raw []byte,
	proof []byte,
	binding []byte,
) (entities.CipherHandle, error) {
	handle, err := e.Service.Import(ctx, raw, proof, binding)
	return entities.CipherHandle(handle), mapError(err)
}

func (e *Engine) Equals(
	ctx context.Context,
	choice entities.CipherHandle,
	index uint64,
) (entities.CipherHandle, error) {
	handle, err := e.Service.Equals(ctx, string(choice), index)
	return entities.CipherHandle(handle), mapError(err)
}

func (e *Engine) Select(
	ctx context.Context,
	cond, ifTrue, ifFalse entities.CipherHandle,
) (entities.CipherHandle, error) {
	handle, err := e.Service.Select(ctx, string(cond), string(ifTrue), string(ifFalse))
	return entities.CipherHandle(handle), mapError(err)
}

func (e *Engine) Add(ctx context.Context, a, b entities.CipherHandle) (entities.CipherHandle, error) {
	handle, err := e.Service.Add(ctx, string(a), string(b))
	return entities.CipherHandle(handle), mapError(err)
}

func (e *Engine) GrantPersistentAccess(
	ctx context.Context,
	handle entities.CipherHandle,
	principal string,
) error {
	return mapError(e.Service.Grant(ctx, string(handle), principal))
}

func (e *Engine) MarkPubliclyDecryptable(
	ctx context.Context,
	handle entities.CipherHandle,
) (entities.CipherHandle, error) {
	public, err := e.Service.MarkPublic(ctx, string(handle))
	return entities.CipherHandle(public), mapError(err)
}

func (e *Engine) PublicDecrypt(
	ctx context.Context,
	handles []entities.CipherHandle,
) (map[entities.CipherHandle]uint64, error) {
	raw := make([]string, 0, len(handles))
	for _, handle := range handles {
		raw = append(raw, string(handle))
	}
	values, err := e.Service.PublicDecrypt(ctx, raw)
	if err != nil {
		return nil, mapError(err)
	}
	mapped := make(map[entities.CipherHandle]uint64, len(values))
	for handle, value := range values {
		mapped[entities.CipherHandle(handle)] = value
	}
	return mapped, nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fhe.ErrBadProof),
		errors.Is(err, fhe.ErrMalformedCiphertext),
		errors.Is(err, fhe.ErrValueOutOfDomain):
		return domainerrors.ErrInvalidCiphertext
	case errors.Is(err, fhe.ErrNotPublic):
		return domainerrors.ErrNotFinalized
	case errors.Is(err, fhe.ErrUnknownHandle):
		return domainerrors.ErrConflict
	default:
		return err
	}
}
