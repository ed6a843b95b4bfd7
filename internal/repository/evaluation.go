package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/store"
)

var ErrEvaluationNotFound = errors.New("evaluation not found")

// EvaluationRepository persists evaluations in the "evaluations" collection.
// Categories and candidates are embedded; they have no rows of their own.
type EvaluationRepository struct {
	coll *store.Collection[domain.Evaluation]
	now  func() time.Time
}

func NewEvaluationRepository(s *store.Store) (*EvaluationRepository, error) {
	coll, err := store.NewCollection[domain.Evaluation](s, "evaluations")
	if err != nil {
		return nil, fmt.Errorf("store.NewCollection -> %w", err)
	}

	return &EvaluationRepository{coll: coll, now: time.Now}, nil
}

func (r *EvaluationRepository) FindAll(ctx context.Context) ([]domain.Evaluation, error) {
	all, err := r.coll.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("r.coll.ReadAll -> %w", err)
	}

	return all, nil
}

func (r *EvaluationRepository) FindByID(ctx context.Context, id string) (domain.Evaluation, error) {
	eval, ok, err := r.coll.FindByID(id)
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("r.coll.FindByID -> %w", err)
	}
	if !ok {
		return domain.Evaluation{}, ErrEvaluationNotFound
	}

	return eval, nil
}

func (r *EvaluationRepository) Create(ctx context.Context, eval domain.Evaluation) (domain.Evaluation, error) {
	if eval.ID == "" {
		eval.ID = uuid.NewString()
	}
	now := r.now()
	eval.CreatedAt = now
	eval.UpdatedAt = now

	if err := r.coll.Insert(eval); err != nil {
		return domain.Evaluation{}, fmt.Errorf("r.coll.Insert -> %w", err)
	}

	return eval, nil
}

// Update applies mutate to the stored evaluation and stamps updated_at.
func (r *EvaluationRepository) Update(ctx context.Context, id string, mutate func(*domain.Evaluation)) (domain.Evaluation, error) {
	updated, ok, err := r.coll.Update(id, func(e *domain.Evaluation) {
		mutate(e)
		e.UpdatedAt = r.now()
	})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("r.coll.Update -> %w", err)
	}
	if !ok {
		return domain.Evaluation{}, ErrEvaluationNotFound
	}

	return updated, nil
}

func (r *EvaluationRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.coll.Delete(id)
	if err != nil {
		return fmt.Errorf("r.coll.Delete -> %w", err)
	}
	if !removed {
		return ErrEvaluationNotFound
	}

	return nil
}
