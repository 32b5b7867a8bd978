package httpadapter

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"log/slog"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/commands"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/application/queries"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	httptransport "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/transport/http"
)

type Handler struct {
	Polls   commands.PollUseCase
	Queries queries.PollQueryUseCase
	Logger  *slog.Logger
}

func (h Handler) CreatePollHandler(
	ctx context.Context,
	creatorID string,
	req httptransport.CreatePollRequest,
) (httptransport.CreatePollResponse, error) {
	pollID, err := h.Polls.CreatePoll(ctx, commands.CreatePollCommand{
		Name:      req.Name,
		Options:   req.Options,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		CreatorID: creatorID,
	})
	if err != nil {
		return httptransport.CreatePollResponse{}, err
	}
	return httptransport.CreatePollResponse{PollID: pollID}, nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	pollID int64,
	voterID string,
	req httptransport.CastVoteRequest,
) error {
	ciphertext, err := base64.StdEncoding.DecodeString(req.Ciphertext)
	if err != nil {
		return domainerrors.ErrInvalidCiphertext
	}
	proof, err := hex.DecodeString(req.Proof)
	if err != nil {
		return domainerrors.ErrInvalidCiphertext
	}
	return h.Polls.CastVote(ctx, commands.CastVoteCommand{
		PollID:     pollID,
		VoterID:    voterID,
		Ciphertext: ciphertext,
		Proof:      proof,
	})
}

func (h Handler) FinalizePollHandler(ctx context.Context, pollID int64) error {
	return h.Polls.FinalizePoll(ctx, commands.FinalizePollCommand{PollID: pollID})
}

func (h Handler) ListPollsHandler(ctx context.Context) (httptransport.PollListResponse, error) {
	total, err := h.Queries.PollCount(ctx)
	if err != nil {
		return httptransport.PollListResponse{}, err
	}
	items, err := h.Queries.ListPolls(ctx)
	if err != nil {
		return httptransport.PollListResponse{}, err
	}
	return httptransport.PollListResponse{
		Total: total,
		Items: mapMetadata(items),
	}, nil
}

func (h Handler) PollMetadataHandler(ctx context.Context, pollID int64) (httptransport.PollMetadataResponse, error) {
	metadata, err := h.Queries.PollMetadata(ctx, pollID)
	if err != nil {
		return httptransport.PollMetadataResponse{}, err
	}
	return toMetadataResponse(metadata), nil
}

func (h Handler) PollOptionsHandler(ctx context.Context, pollID int64) (httptransport.PollOptionsResponse, error) {
	options, err := h.Queries.PollOptions(ctx, pollID)
	if err != nil {
		return httptransport.PollOptionsResponse{}, err
	}
	return httptransport.PollOptionsResponse{
		PollID:  pollID,
		Options: options,
	}, nil
}

func (h Handler) HasVotedHandler(
	ctx context.Context,
	pollID int64,
	voterID string,
) (httptransport.HasVotedResponse, error) {
	voted, err := h.Queries.HasVoted(ctx, pollID, voterID)
	if err != nil {
		return httptransport.HasVotedResponse{}, err
	}
	return httptransport.HasVotedResponse{
		PollID:  pollID,
		VoterID: voterID,
		Voted:   voted,
	}, nil
}

func (h Handler) EncryptedResultsHandler(
	ctx context.Context,
	pollID int64,
) (httptransport.EncryptedResultsResponse, error) {
	handles, err := h.Queries.EncryptedResults(ctx, pollID)
	if err != nil {
		return httptransport.EncryptedResultsResponse{}, err
	}
	items := make([]string, 0, len(handles))
	for _, handle := range handles {
		items = append(items, string(handle))
	}
	return httptransport.EncryptedResultsResponse{
		PollID:  pollID,
		Handles: items,
	}, nil
}

func mapMetadata(items []queries.PollMetadata) []httptransport.PollMetadataResponse {
	mapped := make([]httptransport.PollMetadataResponse, 0, len(items))
	for _, item := range items {
		mapped = append(mapped, toMetadataResponse(item))
	}
	return mapped
}

func toMetadataResponse(metadata queries.PollMetadata) httptransport.PollMetadataResponse {
	return httptransport.PollMetadataResponse{
		PollID:      metadata.PollID,
		Name:        metadata.Name,
		StartsAt:    metadata.StartsAt,
		EndsAt:      metadata.EndsAt,
		Finalized:   metadata.Finalized,
		Phase:       string(metadata.Phase),
		CreatorID:   metadata.CreatorID,
		OptionCount: metadata.OptionCount,
	}
}
