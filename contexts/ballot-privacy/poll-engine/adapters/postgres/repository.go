package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/entities"
	domainerrors "github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/domain/errors"
	"github.com/ethanmiles0/VoteGrid/contexts/ballot-privacy/poll-engine/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// AppendPoll assigns the next dense id inside a transaction. Polls are never
// deleted, so the row count is the next position.
func (r *Repository) AppendPoll(ctx context.Context, poll entities.Poll) (int64, error) {
	var pollID int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&pollModel{}).Count(&count).Error; err != nil {
			return err
		}
		pollID = count

		row := pollModelFromEntity(poll)
		row.ID = pollID
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for idx, label := range poll.Options {
			if err := tx.Create(&pollOptionModel{
				PollID: pollID,
				Idx:    idx,
				Label:  label,
			}).Error; err != nil {
				return err
			}
		}
		for idx, handle := range poll.Counters {
			if err := tx.Create(&pollCounterModel{
				PollID: pollID,
				Idx:    idx,
				Handle: string(handle),
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domainerrors.ErrConflict
		}
		return 0, r.logError("poll_repo_append_poll_failed", err,
			"creator_id", strings.TrimSpace(poll.CreatorID),
		)
	}
	return pollID, nil
}

func (r *Repository) GetPoll(ctx context.Context, pollID int64) (entities.Poll, error) {
	var row pollModel
	err := r.db.WithContext(ctx).
		Where("id = ?", pollID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Poll{}, domainerrors.ErrUnknownPoll
		}
		return entities.Poll{}, r.logError("poll_repo_get_poll_failed", err, "poll_id", pollID)
	}

	options, counters, err := r.loadVectors(ctx, pollID)
	if err != nil {
		return entities.Poll{}, err
	}
	return row.toEntity(options, counters), nil
}

func (r *Repository) ListPolls(ctx context.Context) ([]entities.Poll, error) {
	var rows []pollModel
	if err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_list_polls_failed", err)
	}

	items := make([]entities.Poll, 0, len(rows))
	for _, row := range rows {
		options, counters, err := r.loadVectors(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, row.toEntity(options, counters))
	}
	return items, nil
}

func (r *Repository) CountPolls(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&pollModel{}).
		Count(&count).Error; err != nil {
		return 0, r.logError("poll_repo_count_polls_failed", err)
	}
	return count, nil
}

func (r *Repository) ReplaceCounters(
	ctx context.Context,
	pollID int64,
	counters []entities.CipherHandle,
	updatedAt time.Time,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for idx, handle := range counters {
			result := tx.Model(&pollCounterModel{}).
				Where("poll_id = ? AND idx = ?", pollID, idx).
				Update("handle", string(handle))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrUnknownPoll
			}
		}
		return tx.Model(&pollModel{}).
			Where("id = ?", pollID).
			Update("updated_at", updatedAt.UTC()).
			Error
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnknownPoll) {
			return err
		}
		return r.logError("poll_repo_replace_counters_failed", err, "poll_id", pollID)
	}
	return nil
}

func (r *Repository) MarkFinalized(
	ctx context.Context,
	pollID int64,
	counters []entities.CipherHandle,
	updatedAt time.Time,
) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&pollModel{}).
			Where("id = ? AND finalized = ?", pollID, false).
			Updates(map[string]any{
				"finalized":  true,
				"updated_at": updatedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&pollModel{}).Where("id = ?", pollID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domainerrors.ErrUnknownPoll
			}
			return domainerrors.ErrAlreadyFinalized
		}
		for idx, handle := range counters {
			if err := tx.Model(&pollCounterModel{}).
				Where("poll_id = ? AND idx = ?", pollID, idx).
				Update("handle", string(handle)).
				Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnknownPoll) || errors.Is(err, domainerrors.ErrAlreadyFinalized) {
			return err
		}
		return r.logError("poll_repo_mark_finalized_failed", err, "poll_id", pollID)
	}
	return nil
}

func (r *Repository) HasVoted(ctx context.Context, pollID int64, voterID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&pollVoterModel{}).
		Where("poll_id = ? AND voter_id = ?", pollID, strings.TrimSpace(voterID)).
		Count(&count).
		Error
	if err != nil {
		return false, r.logError("poll_repo_has_voted_failed", err,
			"poll_id", pollID,
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return count > 0, nil
}

// RecordVote relies on the (poll_id, voter_id) primary key: a duplicate
// insert surfaces as a unique violation and maps to AlreadyVoted.
func (r *Repository) RecordVote(ctx context.Context, pollID int64, voterID string, at time.Time) error {
	row := pollVoterModel{
		PollID:  pollID,
		VoterID: strings.TrimSpace(voterID),
		VotedAt: at.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyVoted
		}
		return r.logError("poll_repo_record_vote_failed", err,
			"poll_id", pollID,
			"voter_id", row.VoterID,
		)
	}
	return nil
}

// CommitBallot applies one accepted ballot in a single transaction: the voter
// row, the counter vector and the outbox row commit together, so a failure
// mid-sequence cannot spend the vote without applying its increment.
func (r *Repository) CommitBallot(ctx context.Context, commit ports.BallotCommit) error {
	voterID := strings.TrimSpace(commit.VoterID)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&pollVoterModel{
			PollID:  commit.PollID,
			VoterID: voterID,
			VotedAt: commit.At.UTC(),
		}).Error; err != nil {
			return err
		}
		for idx, handle := range commit.Counters {
			result := tx.Model(&pollCounterModel{}).
				Where("poll_id = ? AND idx = ?", commit.PollID, idx).
				Update("handle", string(handle))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrUnknownPoll
			}
		}
		if err := tx.Model(&pollModel{}).
			Where("id = ?", commit.PollID).
			Update("updated_at", commit.At.UTC()).
			Error; err != nil {
			return err
		}
		if commit.Event == nil {
			return nil
		}
		row, err := outboxRowFromEnvelope(*commit.Event)
		if err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.TableName == "poll_voters" {
				return domainerrors.ErrAlreadyVoted
			}
			return domainerrors.ErrConflict
		}
		if errors.Is(err, domainerrors.ErrUnknownPoll) {
			return err
		}
		return r.logError("poll_repo_commit_ballot_failed", err,
			"poll_id", commit.PollID,
			"voter_id", voterID,
		)
	}
	return nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	row, err := outboxRowFromEnvelope(envelope)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("poll_repo_append_outbox_failed", err, "outbox_id", row.OutboxID)
	}
	return nil
}

func outboxRowFromEnvelope(envelope ports.EventEnvelope) (outboxModel, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return outboxModel{}, err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return outboxModel{
		OutboxID:     outboxID,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    createdAt,
	}, nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("poll_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("poll_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) loadVectors(ctx context.Context, pollID int64) ([]string, []entities.CipherHandle, error) {
	var optionRows []pollOptionModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("idx ASC").
		Find(&optionRows).Error; err != nil {
		return nil, nil, r.logError("poll_repo_load_options_failed", err, "poll_id", pollID)
	}
	var counterRows []pollCounterModel
	if err := r.db.WithContext(ctx).
		Where("poll_id = ?", pollID).
		Order("idx ASC").
		Find(&counterRows).Error; err != nil {
		return nil, nil, r.logError("poll_repo_load_counters_failed", err, "poll_id", pollID)
	}

	options := make([]string, 0, len(optionRows))
	for _, row := range optionRows {
		options = append(options, row.Label)
	}
	counters := make([]entities.CipherHandle, 0, len(counterRows))
	for _, row := range counterRows {
		counters = append(counters, entities.CipherHandle(row.Handle))
	}
	return options, counters, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "ballot-privacy/poll-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("poll repository operation failed", fields...)
	return err
}

// SystemClock satisfies ports.Clock with the process wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator satisfies ports.IDGenerator with random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

type pollModel struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name"`
	StartsAt  time.Time `gorm:"column:starts_at"`
	EndsAt    time.Time `gorm:"column:ends_at"`
	Finalized bool      `gorm:"column:finalized"`
	CreatorID string    `gorm:"column:creator_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (pollModel) TableName() string {
	return "polls"
}

func pollModelFromEntity(poll entities.Poll) pollModel {
	row := pollModel{
		ID:        poll.ID,
		Name:      strings.TrimSpace(poll.Name),
		StartsAt:  poll.StartsAt.UTC(),
		EndsAt:    poll.EndsAt.UTC(),
		Finalized: poll.Finalized,
		CreatorID: strings.TrimSpace(poll.CreatorID),
		CreatedAt: poll.CreatedAt.UTC(),
		UpdatedAt: poll.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m pollModel) toEntity(options []string, counters []entities.CipherHandle) entities.Poll {
	return entities.Poll{
		ID:        m.ID,
		Name:      m.Name,
		Options:   options,
		StartsAt:  m.StartsAt.UTC(),
		EndsAt:    m.EndsAt.UTC(),
		Finalized: m.Finalized,
		CreatorID: m.CreatorID,
		Counters:  counters,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

type pollOptionModel struct {
	PollID int64  `gorm:"column:poll_id;primaryKey"`
	Idx    int    `gorm:"column:idx;primaryKey"`
	Label  string `gorm:"column:label"`
}

func (pollOptionModel) TableName() string {
	return "poll_options"
}

type pollCounterModel struct {
	PollID int64  `gorm:"column:poll_id;primaryKey"`
	Idx    int    `gorm:"column:idx;primaryKey"`
	Handle string `gorm:"column:handle"`
}

func (pollCounterModel) TableName() string {
	return "poll_counters"
}

type pollVoterModel struct {
	PollID  int64     `gorm:"column:poll_id;primaryKey"`
	VoterID string    `gorm:"column:voter_id;primaryKey"`
	VotedAt time.Time `gorm:"column:voted_at"`
}

func (pollVoterModel) TableName() string {
	return "poll_voters"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "poll_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.PollRegistry = (*Repository)(nil)
var _ ports.VoterLedger = (*Repository)(nil)
var _ ports.BallotCommitter = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
