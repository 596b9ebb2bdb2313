package storage

import (
	"context"
	"errors"

	"github.com/vietddude/interviewer/internal/core/domain"
)

var (
	// ErrDuplicate is returned when creating a record whose key already exists
	ErrDuplicate = errors.New("record already exists")
)

// InterviewRepository handles interview storage operations
type InterviewRepository interface {
	// Create stores a new interview at version 1
	Create(ctx context.Context, interview *domain.Interview) error

	// Get retrieves an interview by id (domain.ErrInterviewNotFound if missing)
	Get(ctx context.Context, id string) (*domain.Interview, error)

	// Update writes the interview if its stored version still equals
	// interview.Version, then bumps the version. A stale write returns
	// domain.ErrVersionConflict.
	Update(ctx context.Context, interview *domain.Interview) error

	// List returns the most recently updated interviews
	List(ctx context.Context, limit int) ([]*domain.Interview, error)
}

// RoundRepository handles round storage operations
type RoundRepository interface {
	// Create stores a new round at version 1
	Create(ctx context.Context, round *domain.Round) error

	// Get retrieves a round by id (domain.ErrRoundNotFound if missing)
	Get(ctx context.Context, id string) (*domain.Round, error)

	// Update is a compare-and-swap on round.Version
	Update(ctx context.Context, round *domain.Round) error

	// ListByInterview returns all rounds of an interview
	ListByInterview(ctx context.Context, interviewID string) ([]*domain.Round, error)

	// FindUnevaluated returns rounds holding answered items without a real
	// evaluation
	FindUnevaluated(ctx context.Context, limit int) ([]*domain.Round, error)
}
