package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/interviewer/internal/core/domain"
	"github.com/vietddude/interviewer/internal/infra/storage"
)

// MemoryStorage keeps documents as JSON so callers never share pointers
// with the store.
type MemoryStorage struct {
	interviews map[string][]byte
	rounds     map[string][]byte
	mu         sync.RWMutex
	now        func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		interviews: make(map[string][]byte),
		rounds:     make(map[string][]byte),
		now:        time.Now,
	}
}

// SetClock overrides the clock used for UpdatedAt stamps.
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &v, nil
}

// -----------------------------------------------------------------------------
// Interview Repository
// -----------------------------------------------------------------------------

type InterviewRepo struct {
	store *MemoryStorage
}

func NewInterviewRepo(store *MemoryStorage) *InterviewRepo {
	return &InterviewRepo{store: store}
}

func (r *InterviewRepo) Create(ctx context.Context, iv *domain.Interview) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.interviews[iv.ID]; ok {
		return fmt.Errorf("interview %s: %w", iv.ID, storage.ErrDuplicate)
	}
	iv.Version = 1
	data, err := json.Marshal(iv)
	if err != nil {
		return fmt.Errorf("encode interview: %w", err)
	}
	r.store.interviews[iv.ID] = data
	return nil
}

func (r *InterviewRepo) Get(ctx context.Context, id string) (*domain.Interview, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	data, ok := r.store.interviews[id]
	if !ok {
		return nil, domain.ErrInterviewNotFound
	}
	return decode[domain.Interview](data)
}

func (r *InterviewRepo) Update(ctx context.Context, iv *domain.Interview) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	data, ok := r.store.interviews[iv.ID]
	if !ok {
		return domain.ErrInterviewNotFound
	}
	current, err := decode[domain.Interview](data)
	if err != nil {
		return err
	}
	if current.Version != iv.Version {
		return fmt.Errorf("interview %s at version %d, have %d: %w",
			iv.ID, current.Version, iv.Version, domain.ErrVersionConflict)
	}

	next := *iv
	next.Version++
	next.UpdatedAt = r.store.now()
	data, err = json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode interview: %w", err)
	}
	r.store.interviews[iv.ID] = data
	iv.Version = next.Version
	iv.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *InterviewRepo) List(ctx context.Context, limit int) ([]*domain.Interview, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Interview, 0, len(r.store.interviews))
	for _, data := range r.store.interviews {
		iv, err := decode[domain.Interview](data)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	slices.SortFunc(out, func(a, b *domain.Interview) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Round Repository
// -----------------------------------------------------------------------------

type RoundRepo struct {
	store *MemoryStorage
}

func NewRoundRepo(store *MemoryStorage) *RoundRepo {
	return &RoundRepo{store: store}
}

func (r *RoundRepo) Create(ctx context.Context, round *domain.Round) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.rounds[round.ID]; ok {
		return fmt.Errorf("round %s: %w", round.ID, storage.ErrDuplicate)
	}
	for _, data := range r.store.rounds {
		other, err := decode[domain.Round](data)
		if err != nil {
			return err
		}
		if other.InterviewID == round.InterviewID && other.Type == round.Type {
			return fmt.Errorf("%s round of interview %s: %w", round.Type, round.InterviewID, storage.ErrDuplicate)
		}
	}
	round.Version = 1
	data, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("encode round: %w", err)
	}
	r.store.rounds[round.ID] = data
	return nil
}

func (r *RoundRepo) Get(ctx context.Context, id string) (*domain.Round, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	data, ok := r.store.rounds[id]
	if !ok {
		return nil, domain.ErrRoundNotFound
	}
	return decode[domain.Round](data)
}

func (r *RoundRepo) Update(ctx context.Context, round *domain.Round) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	data, ok := r.store.rounds[round.ID]
	if !ok {
		return domain.ErrRoundNotFound
	}
	current, err := decode[domain.Round](data)
	if err != nil {
		return err
	}
	if current.Version != round.Version {
		return fmt.Errorf("round %s at version %d, have %d: %w",
			round.ID, current.Version, round.Version, domain.ErrVersionConflict)
	}

	next := *round
	next.Version++
	next.UpdatedAt = r.store.now()
	data, err = json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode round: %w", err)
	}
	r.store.rounds[round.ID] = data
	round.Version = next.Version
	round.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *RoundRepo) ListByInterview(ctx context.Context, interviewID string) ([]*domain.Round, error) {
	return r.filter(0, func(round *domain.Round) bool {
		return round.InterviewID == interviewID
	})
}

func (r *RoundRepo) FindUnevaluated(ctx context.Context, limit int) ([]*domain.Round, error) {
	return r.filter(limit, func(round *domain.Round) bool {
		return len(round.Unevaluated()) > 0
	})
}

func (r *RoundRepo) filter(limit int, keep func(*domain.Round) bool) ([]*domain.Round, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.Round
	for _, data := range r.store.rounds {
		round, err := decode[domain.Round](data)
		if err != nil {
			return nil, err
		}
		if keep(round) {
			out = append(out, round)
		}
	}
	slices.SortFunc(out, func(a, b *domain.Round) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
