package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/repository"
	"github.com/mhartmann/jurypad/internal/store"
)

// fixture wires every service against real repositories on a throwaway
// store directory. The clock starts inside the default submission window
// and can be moved per test.
type fixture struct {
	users       *repository.UserRepository
	evals       *repository.EvaluationRepository
	submissions *repository.SubmissionRepository
	votes       *repository.AudienceVoteRepository

	userSvc     *UserService
	evalSvc     *EvaluationService
	scoringSvc  *ScoringService
	resultsSvc  *ResultsService
	audienceSvc *AudienceService

	clock time.Time
}

var fixtureNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	users, err := repository.NewUserRepository(s)
	require.NoError(t, err)
	evals, err := repository.NewEvaluationRepository(s)
	require.NoError(t, err)
	subs, err := repository.NewSubmissionRepository(s)
	require.NoError(t, err)
	votes, err := repository.NewAudienceVoteRepository(s)
	require.NoError(t, err)

	f := &fixture{
		users:       users,
		evals:       evals,
		submissions: subs,
		votes:       votes,
		userSvc:     NewUserService(users),
		evalSvc:     NewEvaluationService(evals, users, subs),
		scoringSvc:  NewScoringService(evals, subs),
		resultsSvc:  NewResultsService(evals, subs, votes),
		audienceSvc: NewAudienceService(evals, votes),
		clock:       fixtureNow,
	}

	now := func() time.Time { return f.clock }
	f.evalSvc.now = now
	f.scoringSvc.now = now
	f.resultsSvc.now = now
	f.audienceSvc.now = now

	return f
}

func (f *fixture) createJuror(t *testing.T, username string) domain.User {
	t.Helper()

	user, err := f.userSvc.CreateUser(context.Background(), CreateUserInput{
		Username:     username,
		PasswordHash: "hash",
		Role:         domain.RoleJury,
		Name:         "Juror " + username,
	})
	require.NoError(t, err)

	return user
}

func (f *fixture) createAdmin(t *testing.T, username string) domain.User {
	t.Helper()

	user, err := f.userSvc.CreateUser(context.Background(), CreateUserInput{
		Username:     username,
		PasswordHash: "hash",
		Role:         domain.RoleAdmin,
		Name:         "Admin " + username,
	})
	require.NoError(t, err)

	return user
}

// createEvaluation creates an evaluation whose window contains fixtureNow,
// with two categories (max 10 and max 5) and the given candidates.
func (f *fixture) createEvaluation(t *testing.T, candidates []CandidateInput, jurorIDs ...string) domain.Evaluation {
	t.Helper()

	eval, err := f.evalSvc.CreateEvaluation(context.Background(), CreateEvaluationInput{
		Title: "Test Evaluation",
		Categories: []CategoryInput{
			{ID: "catA", Name: "A", MaxScore: 10},
			{ID: "catB", Name: "B", MaxScore: 5},
		},
		Candidates:        candidates,
		SubmissionOpenAt:  fixtureNow.Add(-time.Hour),
		SubmissionCloseAt: fixtureNow.Add(time.Hour),
		ResultsPublishAt:  fixtureNow.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	if len(jurorIDs) > 0 {
		eval, err = f.evalSvc.AssignJury(context.Background(), eval.ID, jurorIDs)
		require.NoError(t, err)
	}

	return eval
}

func strptr(s string) *string { return &s }
func intptr(n int) *int       { return &n }
func boolptr(b bool) *bool    { return &b }
