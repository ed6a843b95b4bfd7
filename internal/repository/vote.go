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

var ErrAlreadyVoted = errors.New("device already voted")

// AudienceVoteRepository persists audience votes in the "audience_votes"
// collection. Uniqueness spans (evaluation, device), which the store cannot
// express structurally, so CreateOnce serializes the check-then-insert under
// the collection's exclusive lock.
type AudienceVoteRepository struct {
	coll *store.Collection[domain.AudienceVote]
	now  func() time.Time
}

func NewAudienceVoteRepository(s *store.Store) (*AudienceVoteRepository, error) {
	coll, err := store.NewCollection[domain.AudienceVote](s, "audience_votes")
	if err != nil {
		return nil, fmt.Errorf("store.NewCollection -> %w", err)
	}

	return &AudienceVoteRepository{coll: coll, now: time.Now}, nil
}

func (r *AudienceVoteRepository) FindByEvaluation(ctx context.Context, evaluationID string) ([]domain.AudienceVote, error) {
	votes, err := r.coll.FindWhere(func(v domain.AudienceVote) bool {
		return v.EvaluationID == evaluationID
	})
	if err != nil {
		return nil, fmt.Errorf("r.coll.FindWhere -> %w", err)
	}

	return votes, nil
}

// HasVoted reports whether the device already voted in the evaluation.
func (r *AudienceVoteRepository) HasVoted(ctx context.Context, evaluationID, deviceID string) (bool, error) {
	votes, err := r.coll.FindWhere(func(v domain.AudienceVote) bool {
		return v.EvaluationID == evaluationID && v.DeviceID == deviceID
	})
	if err != nil {
		return false, fmt.Errorf("r.coll.FindWhere -> %w", err)
	}

	return len(votes) > 0, nil
}

func (r *AudienceVoteRepository) CountByEvaluation(ctx context.Context, evaluationID string) (int, error) {
	votes, err := r.FindByEvaluation(ctx, evaluationID)
	if err != nil {
		return 0, err
	}

	return len(votes), nil
}

// CreateOnce inserts the vote unless the device has already voted in the
// evaluation. The duplicate check and the write happen under one held
// exclusive lock; a plain insert would only guard against id collisions and
// lose the race between two identical devices.
func (r *AudienceVoteRepository) CreateOnce(ctx context.Context, vote domain.AudienceVote) (domain.AudienceVote, error) {
	if vote.ID == "" {
		vote.ID = uuid.NewString()
	}
	vote.SubmittedAt = r.now()

	err := r.coll.WithExclusiveLock(func() error {
		all, err := r.coll.ReadAll()
		if err != nil {
			return err
		}

		for _, v := range all {
			if v.EvaluationID == vote.EvaluationID && v.DeviceID == vote.DeviceID {
				return ErrAlreadyVoted
			}
		}

		return r.coll.WriteAll(append(all, vote))
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			return domain.AudienceVote{}, ErrAlreadyVoted
		}
		return domain.AudienceVote{}, fmt.Errorf("r.coll.WithExclusiveLock -> %w", err)
	}

	return vote, nil
}
