package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/storage"
	"github.com/vietddude/interviewer/internal/pipeline/metrics"
)

// RoundRepo implements storage.RoundRepository using PostgreSQL.
type RoundRepo struct {
	db *DB
}

// NewRoundRepo creates a new PostgreSQL round repository.
func NewRoundRepo(db *DB) *RoundRepo {
	return &RoundRepo{db: db}
}

// Create inserts a new round. One round per type and interview.
func (r *RoundRepo) Create(ctx context.Context, round *domain.Round) error {
	round.Version = 1
	doc, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("failed to encode round: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rounds (id, interview_id, type, status, unevaluated_items, doc, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)`,
		round.ID, round.InterviewID, string(round.Type), string(round.Status),
		len(round.Unevaluated()), doc, round.CreatedAt, round.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s round of interview %s: %w", round.Type, round.InterviewID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

// Get retrieves a round by id.
func (r *RoundRepo) Get(ctx context.Context, id string) (*domain.Round, error) {
	var row documentRow
	err := r.db.GetContext(ctx, &row, `SELECT doc, version FROM rounds WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}
	return decodeRound(row)
}

// Update writes the round when the stored version matches.
func (r *RoundRepo) Update(ctx context.Context, round *domain.Round) error {
	next := *round
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode round: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE rounds
		SET status = $1, unevaluated_items = $2, doc = $3, version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6`,
		string(next.Status), len(next.Unevaluated()), doc, next.UpdatedAt, round.ID, round.Version)
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update round: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM rounds WHERE id = $1)`, round.ID); err != nil {
			return fmt.Errorf("failed to check round: %w", err)
		}
		if !exists {
			return domain.ErrRoundNotFound
		}
		metrics.VersionConflictsTotal.WithLabelValues("round").Inc()
		return fmt.Errorf("round %s at version %d: %w", round.ID, round.Version, domain.ErrVersionConflict)
	}

	round.Version = next.Version
	round.UpdatedAt = next.UpdatedAt
	return nil
}

// ListByInterview returns all rounds of an interview in creation order.
func (r *RoundRepo) ListByInterview(ctx context.Context, interviewID string) ([]*domain.Round, error) {
	return r.selectRounds(ctx,
		`SELECT doc, version FROM rounds WHERE interview_id = $1 ORDER BY created_at`, interviewID)
}

// FindUnevaluated returns rounds with answered items lacking a real evaluation.
func (r *RoundRepo) FindUnevaluated(ctx context.Context, limit int) ([]*domain.Round, error) {
	if limit <= 0 {
		limit = 1000
	}
	return r.selectRounds(ctx,
		`SELECT doc, version FROM rounds WHERE unevaluated_items > 0 ORDER BY created_at LIMIT $1`, limit)
}

func (r *RoundRepo) selectRounds(ctx context.Context, query string, args ...any) ([]*domain.Round, error) {
	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	out := make([]*domain.Round, 0, len(rows))
	for _, row := range rows {
		round, err := decodeRound(row)
		if err != nil {
			return nil, err
		}
		out = append(out, round)
	}
	return out, nil
}

func decodeRound(row documentRow) (*domain.Round, error) {
	var round domain.Round
	if err := json.Unmarshal(row.Doc, &round); err != nil {
		return nil, fmt.Errorf("failed to decode round: %w", err)
	}
	round.Version = row.Version
	return &round, nil
}
