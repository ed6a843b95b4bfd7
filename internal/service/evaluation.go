package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/repository"
)

var (
	ErrEvaluationNotFound = repository.ErrEvaluationNotFound
	ErrAlreadyPublished   = errors.New("results are already published")
	ErrNotPublished       = errors.New("results are not published")
	ErrNotJuryMember      = errors.New("user does not have the jury role")
	ErrInvalidWindow      = errors.New("submission_close_at must be after submission_open_at")
	ErrInvalidPublishAt   = errors.New("results_publish_at must not be before submission_close_at")
	ErrNoCategories       = errors.New("at least one category is required")
	ErrInvalidCategoryDef = errors.New("category needs a name and a positive max_score")
	ErrInvalidCandidate   = errors.New("candidate not found")
	ErrInvalidAudienceMax = errors.New("audience_max_score must be a positive integer")
)

type EvaluationRepository interface {
	FindAll(ctx context.Context) ([]domain.Evaluation, error)
	FindByID(ctx context.Context, id string) (domain.Evaluation, error)
	Create(ctx context.Context, eval domain.Evaluation) (domain.Evaluation, error)
	Update(ctx context.Context, id string, mutate func(*domain.Evaluation)) (domain.Evaluation, error)
	Delete(ctx context.Context, id string) error
}

type SubmissionRepository interface {
	FindByEvaluation(ctx context.Context, evaluationID string) ([]domain.Submission, error)
	FindByUserAndEvaluation(ctx context.Context, userID, evaluationID string) ([]domain.Submission, error)
	FindByUserEvaluationAndCandidate(ctx context.Context, userID, evaluationID string, candidateID *string) (domain.Submission, error)
	Upsert(ctx context.Context, userID, evaluationID string, candidateID *string, scores []domain.ScoreEntry, comment *string) (domain.Submission, error)
	DeleteByEvaluationAndUsers(ctx context.Context, evaluationID string, userIDs []string) (int, error)
}

// EvaluationService owns the admin-side evaluation lifecycle: creation,
// partial updates, jury assignment with its destructive cascade, and the
// publish/unpublish gate.
type EvaluationService struct {
	repo        EvaluationRepository
	users       UserRepository
	submissions SubmissionRepository
	now         func() time.Time
}

func NewEvaluationService(repo EvaluationRepository, users UserRepository, submissions SubmissionRepository) *EvaluationService {
	return &EvaluationService{
		repo:        repo,
		users:       users,
		submissions: submissions,
		now:         time.Now,
	}
}

type CategoryInput struct {
	ID          string // empty for new categories
	Name        string
	Description string
	MaxScore    int
}

type CandidateInput struct {
	ID          string // empty for new candidates
	Name        string
	Description string
}

type CreateEvaluationInput struct {
	Title             string
	Description       string
	Categories        []CategoryInput
	Candidates        []CandidateInput
	SubmissionOpenAt  time.Time
	SubmissionCloseAt time.Time
	ResultsPublishAt  time.Time
	AudienceEnabled   bool
	AudienceMaxScore  int // 0 means the default
}

func (in CreateEvaluationInput) Validate() error {
	if err := validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.SubmissionOpenAt, validation.Required),
		validation.Field(&in.SubmissionCloseAt, validation.Required),
		validation.Field(&in.ResultsPublishAt, validation.Required),
	); err != nil {
		return err
	}

	if len(in.Categories) == 0 {
		return ErrNoCategories
	}
	if err := validateCategoryInputs(in.Categories); err != nil {
		return err
	}
	if err := validateCandidateInputs(in.Candidates); err != nil {
		return err
	}

	if !in.SubmissionCloseAt.After(in.SubmissionOpenAt) {
		return ErrInvalidWindow
	}
	if in.ResultsPublishAt.Before(in.SubmissionCloseAt) {
		return ErrInvalidPublishAt
	}
	if in.AudienceMaxScore < 0 {
		return ErrInvalidAudienceMax
	}

	return nil
}

func validateCategoryInputs(categories []CategoryInput) error {
	for i, c := range categories {
		if c.Name == "" {
			return fmt.Errorf("categories[%d]: %w", i, ErrInvalidCategoryDef)
		}
		if c.MaxScore < 1 {
			return fmt.Errorf("categories[%d]: %w", i, ErrInvalidCategoryDef)
		}
	}
	return nil
}

func validateCandidateInputs(candidates []CandidateInput) error {
	for i, c := range candidates {
		if c.Name == "" {
			return fmt.Errorf("candidates[%d]: name is required: %w", i, ErrInvalidCandidate)
		}
	}
	return nil
}

// buildCategories keeps ids the caller provided (edits) and mints fresh ones
// for new entries.
func buildCategories(inputs []CategoryInput) []domain.Category {
	out := make([]domain.Category, 0, len(inputs))
	for _, c := range inputs {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, domain.Category{
			ID:          id,
			Name:        c.Name,
			Description: c.Description,
			MaxScore:    c.MaxScore,
		})
	}
	return out
}

func buildCandidates(inputs []CandidateInput) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(inputs))
	for _, c := range inputs {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, domain.Candidate{
			ID:          id,
			Name:        c.Name,
			Description: c.Description,
		})
	}
	return out
}

func (s *EvaluationService) CreateEvaluation(ctx context.Context, in CreateEvaluationInput) (domain.Evaluation, error) {
	if err := in.Validate(); err != nil {
		return domain.Evaluation{}, err
	}

	audienceMax := in.AudienceMaxScore
	if audienceMax == 0 {
		audienceMax = domain.DefaultAudienceMaxScore
	}

	created, err := s.repo.Create(ctx, domain.Evaluation{
		Title:             in.Title,
		Description:       in.Description,
		Categories:        buildCategories(in.Categories),
		Candidates:        buildCandidates(in.Candidates),
		SubmissionOpenAt:  in.SubmissionOpenAt,
		SubmissionCloseAt: in.SubmissionCloseAt,
		ResultsPublishAt:  in.ResultsPublishAt,
		JuryAssignments:   []string{},
		AudienceEnabled:   in.AudienceEnabled,
		AudienceMaxScore:  audienceMax,
	})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	return created, nil
}

// UpdateEvaluationInput is a partial update; nil fields stay untouched.
// Editing categories after jurors have scored is allowed but risky: old
// submissions keep referencing category ids that may no longer exist, and
// nothing migrates them.
type UpdateEvaluationInput struct {
	Title             *string
	Description       *string
	Categories        *[]CategoryInput
	Candidates        *[]CandidateInput
	SubmissionOpenAt  *time.Time
	SubmissionCloseAt *time.Time
	ResultsPublishAt  *time.Time
	AudienceEnabled   *bool
	AudienceMaxScore  *int
}

func (in UpdateEvaluationInput) empty() bool {
	return in.Title == nil && in.Description == nil && in.Categories == nil &&
		in.Candidates == nil && in.SubmissionOpenAt == nil && in.SubmissionCloseAt == nil &&
		in.ResultsPublishAt == nil && in.AudienceEnabled == nil && in.AudienceMaxScore == nil
}

func (s *EvaluationService) UpdateEvaluation(ctx context.Context, id string, in UpdateEvaluationInput) (domain.Evaluation, error) {
	if in.empty() {
		return domain.Evaluation{}, ErrNoChanges
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Evaluation{}, ErrEvaluationNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	if in.Title != nil && *in.Title == "" {
		return domain.Evaluation{}, errors.New("title cannot be empty")
	}
	if in.Categories != nil {
		if len(*in.Categories) == 0 {
			return domain.Evaluation{}, ErrNoCategories
		}
		if err := validateCategoryInputs(*in.Categories); err != nil {
			return domain.Evaluation{}, err
		}
	}
	if in.Candidates != nil {
		if err := validateCandidateInputs(*in.Candidates); err != nil {
			return domain.Evaluation{}, err
		}
	}

	// Revalidate the window against the merged state so a partial update
	// cannot invert it.
	openAt := existing.SubmissionOpenAt
	if in.SubmissionOpenAt != nil {
		openAt = *in.SubmissionOpenAt
	}
	closeAt := existing.SubmissionCloseAt
	if in.SubmissionCloseAt != nil {
		closeAt = *in.SubmissionCloseAt
	}
	if !closeAt.After(openAt) {
		return domain.Evaluation{}, ErrInvalidWindow
	}

	if in.AudienceMaxScore != nil && *in.AudienceMaxScore < 1 {
		return domain.Evaluation{}, ErrInvalidAudienceMax
	}

	updated, err := s.repo.Update(ctx, id, func(e *domain.Evaluation) {
		if in.Title != nil {
			e.Title = *in.Title
		}
		if in.Description != nil {
			e.Description = *in.Description
		}
		if in.Categories != nil {
			e.Categories = buildCategories(*in.Categories)
		}
		if in.Candidates != nil {
			e.Candidates = buildCandidates(*in.Candidates)
		}
		if in.SubmissionOpenAt != nil {
			e.SubmissionOpenAt = *in.SubmissionOpenAt
		}
		if in.SubmissionCloseAt != nil {
			e.SubmissionCloseAt = *in.SubmissionCloseAt
		}
		if in.ResultsPublishAt != nil {
			e.ResultsPublishAt = *in.ResultsPublishAt
		}
		if in.AudienceEnabled != nil {
			e.AudienceEnabled = *in.AudienceEnabled
		}
		if in.AudienceMaxScore != nil {
			e.AudienceMaxScore = *in.AudienceMaxScore
		}
	})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}

func (s *EvaluationService) GetEvaluation(ctx context.Context, id string) (domain.Evaluation, error) {
	eval, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Evaluation{}, ErrEvaluationNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	return eval, nil
}

func (s *EvaluationService) ListEvaluations(ctx context.Context) ([]domain.Evaluation, error) {
	evals, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindAll -> %w", err)
	}

	return evals, nil
}

func (s *EvaluationService) DeleteEvaluation(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return ErrEvaluationNotFound
		}
		return fmt.Errorf("s.repo.Delete -> %w", err)
	}

	return nil
}

// AssignJury replaces the evaluation's jury list. Every id must belong to an
// existing user with the jury role. Removing a previously assigned juror
// cascades to that juror's submissions for this evaluation — destructive and
// irreversible, so the boundary must have confirmed it with the caller.
func (s *EvaluationService) AssignJury(ctx context.Context, evaluationID string, userIDs []string) (domain.Evaluation, error) {
	existing, err := s.repo.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Evaluation{}, ErrEvaluationNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	deduped := make([]string, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domain.Evaluation{}, fmt.Errorf("user %q: %w", id, ErrUserNotFound)
			}
			return domain.Evaluation{}, fmt.Errorf("s.users.FindByID -> %w", err)
		}
		if user.Role != domain.RoleJury {
			return domain.Evaluation{}, fmt.Errorf("user %q: %w", id, ErrNotJuryMember)
		}

		deduped = append(deduped, id)
	}

	var removed []string
	for _, old := range existing.JuryAssignments {
		if !seen[old] {
			removed = append(removed, old)
		}
	}

	updated, err := s.repo.Update(ctx, evaluationID, func(e *domain.Evaluation) {
		e.JuryAssignments = deduped
	})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	if _, err := s.submissions.DeleteByEvaluationAndUsers(ctx, evaluationID, removed); err != nil {
		return domain.Evaluation{}, fmt.Errorf("s.submissions.DeleteByEvaluationAndUsers -> %w", err)
	}

	return updated, nil
}

// Publish arms the admin half of the two-gate visibility check. Results
// still stay hidden until results_publish_at is reached; publishing early
// simply pre-arms the flag.
func (s *EvaluationService) Publish(ctx context.Context, id string) (domain.Evaluation, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Evaluation{}, ErrEvaluationNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}
	if existing.ResultsIsPublished {
		return domain.Evaluation{}, ErrAlreadyPublished
	}

	publishedAt := s.now()
	updated, err := s.repo.Update(ctx, id, func(e *domain.Evaluation) {
		e.ResultsIsPublished = true
		e.ResultsPublishedAt = &publishedAt
	})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}

func (s *EvaluationService) Unpublish(ctx context.Context, id string) (domain.Evaluation, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Evaluation{}, ErrEvaluationNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("s.repo.FindByID -> %w", err)
	}
	if !existing.ResultsIsPublished {
		return domain.Evaluation{}, ErrNotPublished
	}

	updated, err := s.repo.Update(ctx, id, func(e *domain.Evaluation) {
		e.ResultsIsPublished = false
		e.ResultsPublishedAt = nil
	})
	if err != nil {
		return domain.Evaluation{}, fmt.Errorf("s.repo.Update -> %w", err)
	}

	return updated, nil
}

// JurorEvaluation is the listing view a jury member sees: window status plus
// their own submission progress.
type JurorEvaluation struct {
	ID                string
	Title             string
	Description       string
	SubmissionOpenAt  time.Time
	SubmissionCloseAt time.Time
	Status            string
	CandidateCount    int
	HasSubmission     bool
	SubmissionSummary string // "submitted/expected", e.g. "2/3"
}

func (s *EvaluationService) ListForJuror(ctx context.Context, userID string) ([]JurorEvaluation, error) {
	evals, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindAll -> %w", err)
	}

	now := s.now()
	var out []JurorEvaluation
	for _, eval := range evals {
		if !eval.IsAssigned(userID) {
			continue
		}

		subs, err := s.submissions.FindByUserAndEvaluation(ctx, userID, eval.ID)
		if err != nil {
			return nil, fmt.Errorf("s.submissions.FindByUserAndEvaluation -> %w", err)
		}

		var submitted, expected int
		if eval.HasCandidates() {
			expected = len(eval.Candidates)
			for _, sub := range subs {
				if sub.CandidateID != nil {
					submitted++
				}
			}
		} else {
			expected = 1
			if len(subs) > 0 {
				submitted = 1
			}
		}

		out = append(out, JurorEvaluation{
			ID:                eval.ID,
			Title:             eval.Title,
			Description:       eval.Description,
			SubmissionOpenAt:  eval.SubmissionOpenAt,
			SubmissionCloseAt: eval.SubmissionCloseAt,
			Status:            eval.Status(now),
			CandidateCount:    len(eval.Candidates),
			HasSubmission:     submitted > 0,
			SubmissionSummary: fmt.Sprintf("%d/%d", submitted, expected),
		})
	}

	return out, nil
}

// GetForJuror returns the full evaluation plus the juror's own submissions.
// Evaluations the user is not assigned to read as not found, so their
// existence never leaks to unassigned jurors.
func (s *EvaluationService) GetForJuror(ctx context.Context, userID, evaluationID string) (domain.Evaluation, []domain.Submission, error) {
	eval, err := s.repo.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Evaluation{}, nil, ErrEvaluationNotFound
		}
		return domain.Evaluation{}, nil, fmt.Errorf("s.repo.FindByID -> %w", err)
	}
	if !eval.IsAssigned(userID) {
		return domain.Evaluation{}, nil, ErrEvaluationNotFound
	}

	subs, err := s.submissions.FindByUserAndEvaluation(ctx, userID, evaluationID)
	if err != nil {
		return domain.Evaluation{}, nil, fmt.Errorf("s.submissions.FindByUserAndEvaluation -> %w", err)
	}

	return eval, subs, nil
}

// JurorProgress is the admin-side submission overview for one assigned
// juror. Jurors deleted after assignment are reported with placeholder
// names instead of failing the whole overview.
type JurorProgress struct {
	UserID          string
	Name            string
	Username        string
	HasSubmission   bool
	SubmittedAt     *time.Time // simple mode only
	UpdatedAt       *time.Time // simple mode only
	SubmissionCount int
	Candidates      []CandidateProgress // candidate mode only
}

type CandidateProgress struct {
	CandidateID   string
	CandidateName string
	HasSubmission bool
	SubmittedAt   *time.Time
	UpdatedAt     *time.Time
}

const deletedUserPlaceholder = "(deleted)"

func (s *EvaluationService) SubmissionOverview(ctx context.Context, evaluationID string) ([]JurorProgress, error) {
	eval, err := s.repo.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return nil, ErrEvaluationNotFound
		}
		return nil, fmt.Errorf("s.repo.FindByID -> %w", err)
	}

	var out []JurorProgress
	for _, userID := range eval.JuryAssignments {
		name, username := deletedUserPlaceholder, deletedUserPlaceholder
		user, err := s.users.FindByID(ctx, userID)
		if err == nil {
			name, username = user.Name, user.Username
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("s.users.FindByID -> %w", err)
		}

		subs, err := s.submissions.FindByUserAndEvaluation(ctx, userID, evaluationID)
		if err != nil {
			return nil, fmt.Errorf("s.submissions.FindByUserAndEvaluation -> %w", err)
		}

		progress := JurorProgress{UserID: userID, Name: name, Username: username}

		if eval.HasCandidates() {
			byCandidate := make(map[string]domain.Submission, len(subs))
			for _, sub := range subs {
				if sub.CandidateID != nil {
					byCandidate[*sub.CandidateID] = sub
				}
			}

			for _, cand := range eval.Candidates {
				cp := CandidateProgress{CandidateID: cand.ID, CandidateName: cand.Name}
				if sub, ok := byCandidate[cand.ID]; ok {
					cp.HasSubmission = true
					submittedAt, updatedAt := sub.SubmittedAt, sub.UpdatedAt
					cp.SubmittedAt = &submittedAt
					cp.UpdatedAt = &updatedAt
				}
				progress.Candidates = append(progress.Candidates, cp)
			}

			progress.SubmissionCount = len(byCandidate)
			progress.HasSubmission = len(byCandidate) > 0
		} else if len(subs) > 0 {
			sub := subs[0]
			submittedAt, updatedAt := sub.SubmittedAt, sub.UpdatedAt
			progress.HasSubmission = true
			progress.SubmissionCount = 1
			progress.SubmittedAt = &submittedAt
			progress.UpdatedAt = &updatedAt
		}

		out = append(out, progress)
	}

	return out, nil
}
