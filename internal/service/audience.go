package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/repository"
)

var (
	ErrAlreadyVoted  = repository.ErrAlreadyVoted
	ErrVotingNotOpen = errors.New("audience voting has not started yet")
	ErrVotingClosed  = errors.New("audience voting is closed")
)

type AudienceVoteRepository interface {
	FindByEvaluation(ctx context.Context, evaluationID string) ([]domain.AudienceVote, error)
	HasVoted(ctx context.Context, evaluationID, deviceID string) (bool, error)
	CountByEvaluation(ctx context.Context, evaluationID string) (int, error)
	CreateOnce(ctx context.Context, vote domain.AudienceVote) (domain.AudienceVote, error)
}

// AudienceService handles the public voting path. The device id is minted
// by the boundary (a long-lived cookie in the original deployment); the
// core only relies on it as the dedup key. Evaluations without audience
// voting enabled read as not found.
type AudienceService struct {
	evals EvaluationRepository
	votes AudienceVoteRepository
	now   func() time.Time
}

func NewAudienceService(evals EvaluationRepository, votes AudienceVoteRepository) *AudienceService {
	return &AudienceService{
		evals: evals,
		votes: votes,
		now:   time.Now,
	}
}

// AudienceInfo describes the voting state a device sees before casting.
type AudienceInfo struct {
	EvaluationID      string
	Title             string
	Description       string
	SubmissionOpenAt  time.Time
	SubmissionCloseAt time.Time
	Mode              string
	Status            string
	AudienceMaxScore  *int // simple mode only
	Candidates        []domain.Candidate
	AlreadyVoted      bool
	Participants      int
}

func (s *AudienceService) Info(ctx context.Context, evaluationID, deviceID string) (AudienceInfo, error) {
	eval, err := s.audienceEvaluation(ctx, evaluationID)
	if err != nil {
		return AudienceInfo{}, err
	}

	already, err := s.votes.HasVoted(ctx, evaluationID, deviceID)
	if err != nil {
		return AudienceInfo{}, fmt.Errorf("s.votes.HasVoted -> %w", err)
	}
	participants, err := s.votes.CountByEvaluation(ctx, evaluationID)
	if err != nil {
		return AudienceInfo{}, fmt.Errorf("s.votes.CountByEvaluation -> %w", err)
	}

	info := AudienceInfo{
		EvaluationID:      eval.ID,
		Title:             eval.Title,
		Description:       eval.Description,
		SubmissionOpenAt:  eval.SubmissionOpenAt,
		SubmissionCloseAt: eval.SubmissionCloseAt,
		Status:            eval.Status(s.now()),
		Candidates:        eval.Candidates,
		AlreadyVoted:      already,
		Participants:      participants,
	}

	if eval.HasCandidates() {
		info.Mode = ModeCandidates
	} else {
		info.Mode = ModeSimple
		maxScore := eval.EffectiveAudienceMaxScore()
		info.AudienceMaxScore = &maxScore
	}

	return info, nil
}

// CastVote records one vote per device per evaluation. In candidate mode a
// candidate id is expected, in simple mode a score within the audience
// scale. A device that already voted gets ErrAlreadyVoted; the stored vote
// never changes.
func (s *AudienceService) CastVote(ctx context.Context, evaluationID, deviceID string, candidateID *string, score *int) (domain.AudienceVote, error) {
	eval, err := s.audienceEvaluation(ctx, evaluationID)
	if err != nil {
		return domain.AudienceVote{}, err
	}

	switch eval.Status(s.now()) {
	case domain.StatusUpcoming:
		return domain.AudienceVote{}, ErrVotingNotOpen
	case domain.StatusClosed:
		return domain.AudienceVote{}, ErrVotingClosed
	}

	vote := domain.AudienceVote{
		EvaluationID: evaluationID,
		DeviceID:     deviceID,
	}

	if eval.HasCandidates() {
		if candidateID == nil {
			return domain.AudienceVote{}, ErrInvalidCandidate
		}
		if _, ok := eval.CandidateByID(*candidateID); !ok {
			return domain.AudienceVote{}, ErrInvalidCandidate
		}
		vote.CandidateID = candidateID
	} else {
		if score == nil {
			return domain.AudienceVote{}, ErrInvalidScore
		}
		if *score < 0 || *score > eval.EffectiveAudienceMaxScore() {
			return domain.AudienceVote{}, fmt.Errorf("score must be 0..%d: %w", eval.EffectiveAudienceMaxScore(), ErrInvalidScore)
		}
		vote.Score = score
	}

	created, err := s.votes.CreateOnce(ctx, vote)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyVoted) {
			return domain.AudienceVote{}, ErrAlreadyVoted
		}
		return domain.AudienceVote{}, fmt.Errorf("s.votes.CreateOnce -> %w", err)
	}

	return created, nil
}

// audienceEvaluation masks evaluations without audience voting as missing.
func (s *AudienceService) audienceEvaluation(ctx context.Context, evaluationID string) (domain.Evaluation, error) {
	eval, err := s.evals.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return domain.Evaluation{}, ErrEvaluationNotFound
		}
		return domain.Evaluation{}, fmt.Errorf("s.evals.FindByID -> %w", err)
	}
	if !eval.AudienceEnabled {
		return domain.Evaluation{}, ErrEvaluationNotFound
	}

	return eval, nil
}
