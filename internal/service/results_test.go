package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhartmann/jurypad/internal/domain"
)

func TestResultsService_AggregateSimple(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	juror1 := f.createJuror(t, "jury1")
	juror2 := f.createJuror(t, "jury2")
	eval := f.createEvaluation(t, nil, juror1.ID, juror2.ID) // catA max 10, catB max 5

	_, err := f.scoringSvc.SubmitScores(ctx, juror1.ID, eval.ID, nil,
		[]domain.ScoreEntry{{CategoryID: "catA", Score: 8}, {CategoryID: "catB", Score: 3}}, nil)
	require.NoError(t, err)
	_, err = f.scoringSvc.SubmitScores(ctx, juror2.ID, eval.ID, nil,
		[]domain.ScoreEntry{{CategoryID: "catA", Score: 6}, {CategoryID: "catB", Score: 5}}, nil)
	require.NoError(t, err)

	result, err := f.resultsSvc.Aggregate(ctx, eval.ID)
	require.NoError(t, err)

	assert.Equal(t, ModeSimple, result.Mode)
	assert.Equal(t, 2, result.TotalJuryCount)
	assert.Zero(t, result.AudienceParticipants)
	require.NotNil(t, result.Simple)

	agg := *result.Simple
	assert.Equal(t, 2, agg.SubmissionCount)
	assert.Equal(t, 15, agg.MaxPerEntry)
	assert.Equal(t, 30, agg.TotalMax)
	assert.Equal(t, 22.0, agg.TotalSum)
	require.NotNil(t, agg.TotalAverage)
	assert.Equal(t, 11.0, *agg.TotalAverage)

	require.Len(t, agg.Categories, 2)
	catA := agg.Categories[0]
	assert.Equal(t, "catA", catA.ID)
	assert.Equal(t, 14.0, catA.Sum)
	require.NotNil(t, catA.Average)
	assert.Equal(t, 7.0, *catA.Average)

	catB := agg.Categories[1]
	assert.Equal(t, 8.0, catB.Sum)
	require.NotNil(t, catB.Average)
	assert.Equal(t, 4.0, *catB.Average)
}

func TestResultsService_AggregateEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	eval := f.createEvaluation(t, nil)

	result, err := f.resultsSvc.Aggregate(ctx, eval.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Simple)

	agg := *result.Simple
	assert.Zero(t, agg.SubmissionCount)
	assert.Zero(t, agg.TotalSum)
	assert.Zero(t, agg.TotalMax)
	// No entries means no average, never a phantom zero.
	assert.Nil(t, agg.TotalAverage)
	for _, cat := range agg.Categories {
		assert.Nil(t, cat.Average)
	}
}

func TestResultsService_AggregateMissingEvaluation(t *testing.T) {
	f := newFixture(t)

	_, err := f.resultsSvc.Aggregate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEvaluationNotFound)
}

func TestResultsService_CandidateRanking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	juror1 := f.createJuror(t, "jury1")
	juror2 := f.createJuror(t, "jury2")
	eval := f.createEvaluation(t, []CandidateInput{
		{ID: "candA", Name: "Anna"},
		{ID: "candB", Name: "Ben"},
		{ID: "candC", Name: "Clara"},
	}, juror1.ID, juror2.ID)

	submit := func(jurorID, candID string, a, b int) {
		t.Helper()
		_, err := f.scoringSvc.SubmitScores(ctx, jurorID, eval.ID, &candID,
			[]domain.ScoreEntry{{CategoryID: "catA", Score: a}, {CategoryID: "catB", Score: b}}, nil)
		require.NoError(t, err)
	}

	// Averages: candA 7.5, candB 9.0, candC 7.5 — a tie between A and C.
	submit(juror1.ID, "candA", 7, 1)
	submit(juror2.ID, "candA", 5, 2)
	submit(juror1.ID, "candB", 9, 0)
	submit(juror2.ID, "candB", 8, 1)
	submit(juror1.ID, "candC", 6, 2)
	submit(juror2.ID, "candC", 4, 3)

	result, err := f.resultsSvc.Aggregate(ctx, eval.ID)
	require.NoError(t, err)
	assert.Equal(t, ModeCandidates, result.Mode)
	assert.Nil(t, result.Simple)
	require.Len(t, result.Candidates, 3)

	// Ben wins; ties keep the original candidate order, so Anna beats Clara.
	assert.Equal(t, "candB", result.Candidates[0].ID)
	assert.Equal(t, 1, result.Candidates[0].Rank)
	assert.Equal(t, "candA", result.Candidates[1].ID)
	assert.Equal(t, 2, result.Candidates[1].Rank)
	assert.Equal(t, "candC", result.Candidates[2].ID)
	assert.Equal(t, 3, result.Candidates[2].Rank)

	require.NotNil(t, result.Candidates[0].Results.TotalAverage)
	assert.Equal(t, 9.0, *result.Candidates[0].Results.TotalAverage)
}

func TestResultsService_CandidateWithoutEntriesRanksLast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	juror := f.createJuror(t, "jury1")
	eval := f.createEvaluation(t, []CandidateInput{
		{ID: "candA", Name: "Anna"},
		{ID: "candB", Name: "Ben"},
	}, juror.ID)

	_, err := f.scoringSvc.SubmitScores(ctx, juror.ID, eval.ID, strptr("candB"),
		[]domain.ScoreEntry{{CategoryID: "catA", Score: 2}, {CategoryID: "catB", Score: 0}}, nil)
	require.NoError(t, err)

	result, err := f.resultsSvc.Aggregate(ctx, eval.ID)
	require.NoError(t, err)
	require.Len(t, result.Candidates, 2)

	// Even a low score beats having no submissions at all.
	assert.Equal(t, "candB", result.Candidates[0].ID)
	assert.Equal(t, "candA", result.Candidates[1].ID)
	assert.Nil(t, result.Candidates[1].Results.TotalAverage)
}

func TestResultsService_SimpleAudienceBlending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	juror := f.createJuror(t, "jury1")
	eval := f.createEvaluation(t, nil, juror.ID)
	_, err := f.evalSvc.UpdateEvaluation(ctx, eval.ID, UpdateEvaluationInput{
		AudienceEnabled:  boolptr(true),
		AudienceMaxScore: intptr(10),
	})
	require.NoError(t, err)

	_, err = f.scoringSvc.SubmitScores(ctx, juror.ID, eval.ID, nil,
		[]domain.ScoreEntry{{CategoryID: "catA", Score: 9}, {CategoryID: "catB", Score: 3}}, nil)
	require.NoError(t, err)

	// Audience mean is 7 on a 0..10 scale: normalized onto max_per_entry 15
	// that is 10.5, split as 7.0 on catA and 3.5 on catB.
	_, err = f.audienceSvc.CastVote(ctx, eval.ID, "device1", nil, intptr(6))
	require.NoError(t, err)
	_, err = f.audienceSvc.CastVote(ctx, eval.ID, "device2", nil, intptr(8))
	require.NoError(t, err)

	result, err := f.resultsSvc.Aggregate(ctx, eval.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AudienceParticipants)
	require.NotNil(t, result.Simple)

	agg := *result.Simple
	// One juror plus one synthetic audience entry.
	assert.Equal(t, 2, agg.SubmissionCount)
	assert.Equal(t, 16.0, agg.Categories[0].Sum) // 9 + 7.0
	assert.Equal(t, 6.5, agg.Categories[1].Sum)  // 3 + 3.5
	require.NotNil(t, agg.TotalAverage)
	assert.Equal(t, 11.25, *agg.TotalAverage) // 22.5 / 2
}

func TestResultsService_CandidateAudienceBlending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	juror := f.createJuror(t, "jury1")
	eval := f.createEvaluation(t, []CandidateInput{
		{ID: "candA", Name: "Anna"},
		{ID: "candB", Name: "Ben"},
	}, juror.ID)
	_, err := f.evalSvc.UpdateEvaluation(ctx, eval.ID, UpdateEvaluationInput{
		AudienceEnabled: boolptr(true),
	})
	require.NoError(t, err)

	// Three votes: two for Anna, one for Ben.
	_, err = f.audienceSvc.CastVote(ctx, eval.ID, "device1", strptr("candA"), nil)
	require.NoError(t, err)
	_, err = f.audienceSvc.CastVote(ctx, eval.ID, "device2", strptr("candA"), nil)
	require.NoError(t, err)
	_, err = f.audienceSvc.CastVote(ctx, eval.ID, "device3", strptr("candB"), nil)
	require.NoError(t, err)

	result, err := f.resultsSvc.Aggregate(ctx, eval.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.AudienceParticipants)
	require.Len(t, result.Candidates, 2)

	// No jury submissions, so each candidate's only entry is the synthetic
	// audience juror. Anna: 2/3 of max_per_entry 15 = 10, split 6.67 + 3.33.
	anna := result.Candidates[0]
	assert.Equal(t, "candA", anna.ID)
	assert.Equal(t, 1, anna.Results.SubmissionCount)
	assert.Equal(t, 6.67, anna.Results.Categories[0].Sum)
	assert.Equal(t, 3.33, anna.Results.Categories[1].Sum)
	require.NotNil(t, anna.Results.TotalAverage)
	assert.Equal(t, 10.0, *anna.Results.TotalAverage)

	// Ben: 1/3 of 15 = 5, split 3.33 + 1.67.
	ben := result.Candidates[1]
	assert.Equal(t, "candB", ben.ID)
	require.NotNil(t, ben.Results.TotalAverage)
	assert.Equal(t, 5.0, *ben.Results.TotalAverage)
}

func TestResultsService_NoVotesMeansNoSyntheticEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	juror := f.createJuror(t, "jury1")
	eval := f.createEvaluation(t, nil, juror.ID)
	_, err := f.evalSvc.UpdateEvaluation(ctx, eval.ID, UpdateEvaluationInput{
		AudienceEnabled: boolptr(true),
	})
	require.NoError(t, err)

	_, err = f.scoringSvc.SubmitScores(ctx, juror.ID, eval.ID, nil,
		[]domain.ScoreEntry{{CategoryID: "catA", Score: 9}, {CategoryID: "catB", Score: 3}}, nil)
	require.NoError(t, err)

	result, err := f.resultsSvc.Aggregate(ctx, eval.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Simple)
	assert.Equal(t, 1, result.Simple.SubmissionCount)
}

func TestResultsService_PublicResults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	eval := f.createEvaluation(t, nil) // results_publish_at = fixtureNow + 2h

	// Unpublished results read as not found, existence never leaks.
	_, err := f.resultsSvc.PublicResults(ctx, eval.ID)
	assert.ErrorIs(t, err, ErrEvaluationNotFound)

	// Pre-armed publish before publish_at stays hidden.
	_, err = f.evalSvc.Publish(ctx, eval.ID)
	require.NoError(t, err)
	_, err = f.resultsSvc.PublicResults(ctx, eval.ID)
	assert.ErrorIs(t, err, ErrEvaluationNotFound)

	// Once the clock passes publish_at, the pre-armed flag takes effect.
	f.clock = fixtureNow.Add(2 * time.Hour)
	result, err := f.resultsSvc.PublicResults(ctx, eval.ID)
	require.NoError(t, err)
	assert.Equal(t, eval.ID, result.EvaluationID)
	require.NotNil(t, result.PublishedAt)
	assert.Equal(t, fixtureNow, *result.PublishedAt)
}
