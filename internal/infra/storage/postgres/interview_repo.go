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

type documentRow struct {
	Doc     []byte `db:"doc"`
	Version int64  `db:"version"`
}

// InterviewRepo implements storage.InterviewRepository using PostgreSQL.
type InterviewRepo struct {
	db *DB
}

// NewInterviewRepo creates a new PostgreSQL interview repository.
func NewInterviewRepo(db *DB) *InterviewRepo {
	return &InterviewRepo{db: db}
}

// Create inserts a new interview.
func (r *InterviewRepo) Create(ctx context.Context, iv *domain.Interview) error {
	iv.Version = 1
	doc, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("failed to encode interview: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO interviews (id, candidate_id, status, doc, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6)`,
		iv.ID, iv.CandidateID, string(iv.Status), doc, iv.CreatedAt, iv.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("interview %s: %w", iv.ID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to create interview: %w", err)
	}
	return nil
}

// Get retrieves an interview by id.
func (r *InterviewRepo) Get(ctx context.Context, id string) (*domain.Interview, error) {
	var row documentRow
	err := r.db.GetContext(ctx, &row, `SELECT doc, version FROM interviews WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInterviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interview: %w", err)
	}
	return decodeInterview(row)
}

// Update writes the interview when the stored version matches.
func (r *InterviewRepo) Update(ctx context.Context, iv *domain.Interview) error {
	next := *iv
	next.Version++
	next.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to encode interview: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE interviews
		SET status = $1, doc = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		string(next.Status), doc, next.UpdatedAt, iv.ID, iv.Version)
	if err != nil {
		return fmt.Errorf("failed to update interview: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update interview: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM interviews WHERE id = $1)`, iv.ID); err != nil {
			return fmt.Errorf("failed to check interview: %w", err)
		}
		if !exists {
			return domain.ErrInterviewNotFound
		}
		metrics.VersionConflictsTotal.WithLabelValues("interview").Inc()
		return fmt.Errorf("interview %s at version %d: %w", iv.ID, iv.Version, domain.ErrVersionConflict)
	}

	iv.Version = next.Version
	iv.UpdatedAt = next.UpdatedAt
	return nil
}

// List returns the most recently updated interviews.
func (r *InterviewRepo) List(ctx context.Context, limit int) ([]*domain.Interview, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT doc, version FROM interviews ORDER BY updated_at DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("failed to list interviews: %w", err)
	}

	out := make([]*domain.Interview, 0, len(rows))
	for _, row := range rows {
		iv, err := decodeInterview(row)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}

func decodeInterview(row documentRow) (*domain.Interview, error) {
	var iv domain.Interview
	if err := json.Unmarshal(row.Doc, &iv); err != nil {
		return nil, fmt.Errorf("failed to decode interview: %w", err)
	}
	iv.Version = row.Version
	return &iv, nil
}
