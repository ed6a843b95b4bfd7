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

var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository persists jury submissions in the "submissions"
// collection. The natural key is (user, evaluation, candidate-or-nil);
// Upsert enforces at most one record per key.
type SubmissionRepository struct {
	coll *store.Collection[domain.Submission]
	now  func() time.Time
}

func NewSubmissionRepository(s *store.Store) (*SubmissionRepository, error) {
	coll, err := store.NewCollection[domain.Submission](s, "submissions")
	if err != nil {
		return nil, fmt.Errorf("store.NewCollection -> %w", err)
	}

	return &SubmissionRepository{coll: coll, now: time.Now}, nil
}

func (r *SubmissionRepository) FindByEvaluation(ctx context.Context, evaluationID string) ([]domain.Submission, error) {
	subs, err := r.coll.FindWhere(func(s domain.Submission) bool {
		return s.EvaluationID == evaluationID
	})
	if err != nil {
		return nil, fmt.Errorf("r.coll.FindWhere -> %w", err)
	}

	return subs, nil
}

// FindByUserAndEvaluation returns every submission this user made in this
// evaluation: one per candidate in candidate mode, at most one otherwise.
func (r *SubmissionRepository) FindByUserAndEvaluation(ctx context.Context, userID, evaluationID string) ([]domain.Submission, error) {
	subs, err := r.coll.FindWhere(func(s domain.Submission) bool {
		return s.UserID == userID && s.EvaluationID == evaluationID
	})
	if err != nil {
		return nil, fmt.Errorf("r.coll.FindWhere -> %w", err)
	}

	return subs, nil
}

func (r *SubmissionRepository) FindByUserEvaluationAndCandidate(ctx context.Context, userID, evaluationID string, candidateID *string) (domain.Submission, error) {
	subs, err := r.coll.FindWhere(func(s domain.Submission) bool {
		return s.UserID == userID && s.EvaluationID == evaluationID && s.MatchesCandidate(candidateID)
	})
	if err != nil {
		return domain.Submission{}, fmt.Errorf("r.coll.FindWhere -> %w", err)
	}
	if len(subs) == 0 {
		return domain.Submission{}, ErrSubmissionNotFound
	}

	return subs[0], nil
}

// Upsert stores the score set under the natural key. An existing record
// keeps its id and submitted_at and gets fresh scores, comment and
// updated_at; otherwise a new record is created with both timestamps set.
func (r *SubmissionRepository) Upsert(ctx context.Context, userID, evaluationID string, candidateID *string, scores []domain.ScoreEntry, comment *string) (domain.Submission, error) {
	existing, err := r.FindByUserEvaluationAndCandidate(ctx, userID, evaluationID, candidateID)
	if err != nil && !errors.Is(err, ErrSubmissionNotFound) {
		return domain.Submission{}, err
	}

	if err == nil {
		updated, ok, uerr := r.coll.Update(existing.ID, func(s *domain.Submission) {
			s.Scores = scores
			s.Comment = comment
			s.UpdatedAt = r.now()
		})
		if uerr != nil {
			return domain.Submission{}, fmt.Errorf("r.coll.Update -> %w", uerr)
		}
		if !ok {
			return domain.Submission{}, ErrSubmissionNotFound
		}
		return updated, nil
	}

	now := r.now()
	sub := domain.Submission{
		ID:           uuid.NewString(),
		EvaluationID: evaluationID,
		UserID:       userID,
		CandidateID:  candidateID,
		Scores:       scores,
		Comment:      comment,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	if err := r.coll.Insert(sub); err != nil {
		return domain.Submission{}, fmt.Errorf("r.coll.Insert -> %w", err)
	}

	return sub, nil
}

func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	removed, err := r.coll.Delete(id)
	if err != nil {
		return fmt.Errorf("r.coll.Delete -> %w", err)
	}
	if !removed {
		return ErrSubmissionNotFound
	}

	return nil
}

// DeleteByEvaluationAndUsers removes every submission the given users made
// in the evaluation. Used when jurors are unassigned; returns how many
// records were removed.
func (r *SubmissionRepository) DeleteByEvaluationAndUsers(ctx context.Context, evaluationID string, userIDs []string) (int, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	drop := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		drop[id] = true
	}

	removed, err := r.coll.DeleteWhere(func(s domain.Submission) bool {
		return s.EvaluationID == evaluationID && drop[s.UserID]
	})
	if err != nil {
		return 0, fmt.Errorf("r.coll.DeleteWhere -> %w", err)
	}

	return removed, nil
}
