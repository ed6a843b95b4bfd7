package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/repository"
)

var (
	ErrWindowNotOpen      = errors.New("submission window has not opened yet")
	ErrWindowClosed       = errors.New("submission window has closed")
	ErrInvalidCategory    = errors.New("category does not exist in this evaluation")
	ErrDuplicateCategory  = errors.New("category appears more than once")
	ErrInvalidScore       = errors.New("score is outside the allowed range")
	ErrIncompleteScores   = errors.New("scores missing for some categories")
	ErrSubmissionNotFound = repository.ErrSubmissionNotFound
)

// ScoringService is the submission-write path: it re-derives the window
// state on every call, validates the score set against the evaluation's
// categories and only then lets the repository upsert run. A failed
// validation never touches the store.
type ScoringService struct {
	evals       EvaluationRepository
	submissions SubmissionRepository
	now         func() time.Time
}

func NewScoringService(evals EvaluationRepository, submissions SubmissionRepository) *ScoringService {
	return &ScoringService{
		evals:       evals,
		submissions: submissions,
		now:         time.Now,
	}
}

// SubmitScores records or replaces the juror's score set for the evaluation
// (or for one candidate within it). Evaluations the juror is not assigned
// to read as not found.
func (s *ScoringService) SubmitScores(ctx context.Context, userID, evaluationID string, candidateID *string, scores []domain.ScoreEntry, comment *string) (domain.Submission, error) {
	eval, err := s.evals.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Submission{}, ErrEvaluationNotFound
		}
		return domain.Submission{}, fmt.Errorf("s.evals.FindByID -> %w", err)
	}
	if !eval.IsAssigned(userID) {
		return domain.Submission{}, ErrEvaluationNotFound
	}

	if eval.HasCandidates() {
		if candidateID == nil {
			return domain.Submission{}, ErrInvalidCandidate
		}
		if _, ok := eval.CandidateByID(*candidateID); !ok {
			return domain.Submission{}, ErrInvalidCandidate
		}
	} else if candidateID != nil {
		return domain.Submission{}, ErrInvalidCandidate
	}

	switch eval.Status(s.now()) {
	case domain.StatusUpcoming:
		return domain.Submission{}, ErrWindowNotOpen
	case domain.StatusClosed:
		return domain.Submission{}, ErrWindowClosed
	}

	if err := validateScores(eval, scores); err != nil {
		return domain.Submission{}, err
	}

	sub, err := s.submissions.Upsert(ctx, userID, evaluationID, candidateID, scores, comment)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("s.submissions.Upsert -> %w", err)
	}

	return sub, nil
}

// GetSubmission returns the juror's own stored submission for the target.
func (s *ScoringService) GetSubmission(ctx context.Context, userID, evaluationID string, candidateID *string) (domain.Submission, error) {
	eval, err := s.evals.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Submission{}, ErrEvaluationNotFound
		}
		return domain.Submission{}, fmt.Errorf("s.evals.FindByID -> %w", err)
	}
	if !eval.IsAssigned(userID) {
		return domain.Submission{}, ErrEvaluationNotFound
	}

	sub, err := s.submissions.FindByUserEvaluationAndCandidate(ctx, userID, evaluationID, candidateID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return domain.Submission{}, ErrSubmissionNotFound
		}
		return domain.Submission{}, fmt.Errorf("s.submissions.FindByUserEvaluationAndCandidate -> %w", err)
	}

	return sub, nil
}

// validateScores checks the submitted set against the evaluation's
// categories: every category exactly once, no foreign categories, every
// score an integer within [0, max_score].
func validateScores(eval domain.Evaluation, scores []domain.ScoreEntry) error {
	seen := make(map[string]bool, len(scores))

	for i, entry := range scores {
		cat, ok := eval.CategoryByID(entry.CategoryID)
		if !ok {
			return fmt.Errorf("scores[%d]: category %q: %w", i, entry.CategoryID, ErrInvalidCategory)
		}
		if seen[entry.CategoryID] {
			return fmt.Errorf("scores[%d]: category %q: %w", i, entry.CategoryID, ErrDuplicateCategory)
		}
		seen[entry.CategoryID] = true

		if entry.Score < 0 || entry.Score > cat.MaxScore {
			return fmt.Errorf("scores[%d]: score must be 0..%d: %w", i, cat.MaxScore, ErrInvalidScore)
		}
	}

	var missing []string
	for _, cat := range eval.Categories {
		if !seen[cat.ID] {
			missing = append(missing, cat.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %v", ErrIncompleteScores, missing)
	}

	return nil
}
