package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mhartmann/jurypad/internal/domain"
	"github.com/mhartmann/jurypad/internal/repository"
)

// Result modes. Simple mode aggregates every submission into one block;
// candidate mode aggregates per candidate and ranks them.
const (
	ModeSimple     = "simple"
	ModeCandidates = "candidates"
)

// CategoryResult is one category's aggregate across all counted entries.
type CategoryResult struct {
	ID       string
	Name     string
	MaxScore int
	Sum      float64
	Average  *float64 // nil when no entries were counted
}

// AggregateResult is the aggregate for one logical target: the whole
// evaluation in simple mode, or one candidate. The submission count
// includes the synthetic audience entry when one was blended in.
type AggregateResult struct {
	SubmissionCount int
	TotalSum        float64
	TotalMax        int // MaxPerEntry × SubmissionCount, informational
	TotalAverage    *float64
	MaxPerEntry     int
	Categories      []CategoryResult
}

// CandidateResult pairs a candidate with its aggregate and 1-based rank.
type CandidateResult struct {
	ID          string
	Name        string
	Description string
	Rank        int
	Results     AggregateResult
}

// Result is the full aggregation output for one evaluation.
type Result struct {
	EvaluationID         string
	Title                string
	Description          string
	PublishedAt          *time.Time
	Mode                 string
	TotalJuryCount       int
	AudienceParticipants int
	Simple               *AggregateResult  // set in simple mode
	Candidates           []CandidateResult // set in candidate mode, ranked
}

// ResultsService recomputes aggregated results from the current submissions
// on every call; nothing is cached.
type ResultsService struct {
	evals       EvaluationRepository
	submissions SubmissionRepository
	votes       AudienceVoteRepository
	now         func() time.Time
}

func NewResultsService(evals EvaluationRepository, submissions SubmissionRepository, votes AudienceVoteRepository) *ResultsService {
	return &ResultsService{
		evals:       evals,
		submissions: submissions,
		votes:       votes,
		now:         time.Now,
	}
}

// Aggregate computes the evaluation's results regardless of visibility. The
// caller is responsible for any access gating; see PublicResults for the
// masked variant.
func (s *ResultsService) Aggregate(ctx context.Context, evaluationID string) (Result, error) {
	eval, err := s.evals.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return Result{}, ErrEvaluationNotFound
		}
		return Result{}, fmt.Errorf("s.evals.FindByID -> %w", err)
	}

	return s.aggregate(ctx, eval)
}

// PublicResults is the public read path: an evaluation whose results are not
// visible yet reads as not found, deliberately hiding whether it exists at
// all.
func (s *ResultsService) PublicResults(ctx context.Context, evaluationID string) (Result, error) {
	eval, err := s.evals.FindByID(ctx, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return Result{}, ErrEvaluationNotFound
		}
		return Result{}, fmt.Errorf("s.evals.FindByID -> %w", err)
	}
	if !eval.VisibleToPublic(s.now()) {
		return Result{}, ErrEvaluationNotFound
	}

	return s.aggregate(ctx, eval)
}

func (s *ResultsService) aggregate(ctx context.Context, eval domain.Evaluation) (Result, error) {
	subs, err := s.submissions.FindByEvaluation(ctx, eval.ID)
	if err != nil {
		return Result{}, fmt.Errorf("s.submissions.FindByEvaluation -> %w", err)
	}

	var votes []domain.AudienceVote
	if eval.AudienceEnabled {
		votes, err = s.votes.FindByEvaluation(ctx, eval.ID)
		if err != nil {
			return Result{}, fmt.Errorf("s.votes.FindByEvaluation -> %w", err)
		}
	}

	result := Result{
		EvaluationID:         eval.ID,
		Title:                eval.Title,
		Description:          eval.Description,
		PublishedAt:          eval.ResultsPublishedAt,
		TotalJuryCount:       len(eval.JuryAssignments),
		AudienceParticipants: len(votes),
	}

	if eval.HasCandidates() {
		result.Mode = ModeCandidates
		result.Candidates = s.aggregateCandidates(eval, subs, votes)
		return result, nil
	}

	result.Mode = ModeSimple
	agg := s.aggregateSimple(eval, subs, votes)
	result.Simple = &agg
	return result, nil
}

func (s *ResultsService) aggregateSimple(eval domain.Evaluation, subs []domain.Submission, votes []domain.AudienceVote) AggregateResult {
	entries := submissionEntries(subs, nil)

	if synthetic, ok := simpleAudienceEntry(eval, votes); ok {
		entries = append(entries, synthetic)
	}

	return aggregateEntries(eval.Categories, entries)
}

func (s *ResultsService) aggregateCandidates(eval domain.Evaluation, subs []domain.Submission, votes []domain.AudienceVote) []CandidateResult {
	results := make([]CandidateResult, 0, len(eval.Candidates))

	for _, cand := range eval.Candidates {
		candID := cand.ID
		entries := submissionEntries(subs, &candID)

		if synthetic, ok := candidateAudienceEntry(eval, votes, cand.ID); ok {
			entries = append(entries, synthetic)
		}

		results = append(results, CandidateResult{
			ID:          cand.ID,
			Name:        cand.Name,
			Description: cand.Description,
			Results:     aggregateEntries(eval.Categories, entries),
		})
	}

	// Highest average first; candidates without any entries sort last.
	// The sort is stable so ties keep the original candidate order.
	sort.SliceStable(results, func(i, j int) bool {
		return averageOrMinusOne(results[i].Results.TotalAverage) > averageOrMinusOne(results[j].Results.TotalAverage)
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	return results
}

// submissionEntries converts the submissions targeting one candidate (or
// the bare evaluation when candidateID is nil) into per-category score maps.
func submissionEntries(subs []domain.Submission, candidateID *string) []map[string]float64 {
	var entries []map[string]float64
	for _, sub := range subs {
		if !sub.MatchesCandidate(candidateID) {
			continue
		}

		entry := make(map[string]float64, len(sub.Scores))
		for _, sc := range sub.Scores {
			entry[sc.CategoryID] = float64(sc.Score)
		}
		entries = append(entries, entry)
	}
	return entries
}

// aggregateEntries computes per-category sums and averages plus the totals
// for one target. Score entries referencing categories the evaluation no
// longer has are ignored; writes are validated strictly, but reads stay
// tolerant of category edits made after scoring.
func aggregateEntries(categories []domain.Category, entries []map[string]float64) AggregateResult {
	count := len(entries)
	maxPerEntry := 0
	for _, cat := range categories {
		maxPerEntry += cat.MaxScore
	}

	var totalSum float64
	results := make([]CategoryResult, 0, len(categories))
	for _, cat := range categories {
		var sum float64
		for _, entry := range entries {
			sum += entry[cat.ID]
		}
		totalSum += sum

		cr := CategoryResult{
			ID:       cat.ID,
			Name:     cat.Name,
			MaxScore: cat.MaxScore,
			Sum:      sum,
		}
		if count > 0 {
			avg := round2(sum / float64(count))
			cr.Average = &avg
		}
		results = append(results, cr)
	}

	agg := AggregateResult{
		SubmissionCount: count,
		TotalSum:        totalSum,
		TotalMax:        maxPerEntry * count,
		MaxPerEntry:     maxPerEntry,
		Categories:      results,
	}
	if count > 0 {
		avg := round2(totalSum / float64(count))
		agg.TotalAverage = &avg
	}

	return agg
}

// simpleAudienceEntry folds the audience into one synthetic juror entry:
// the mean raw audience score is normalized from the audience scale onto
// max_per_entry and spread over the categories by their share of it. Zero
// votes produce no entry at all, never a phantom zero score.
func simpleAudienceEntry(eval domain.Evaluation, votes []domain.AudienceVote) (map[string]float64, bool) {
	var sum, n float64
	for _, v := range votes {
		if v.Score != nil {
			sum += float64(*v.Score)
			n++
		}
	}
	if n == 0 {
		return nil, false
	}

	maxPerEntry := eval.MaxPerEntry()
	if maxPerEntry == 0 {
		return nil, false
	}

	audienceScore := sum / n / float64(eval.EffectiveAudienceMaxScore()) * float64(maxPerEntry)
	return distributeAcrossCategories(eval.Categories, audienceScore, maxPerEntry), true
}

// candidateAudienceEntry does the same in candidate mode, scoring each
// candidate by its share of all audience votes. When votes exist, every
// candidate gets an entry — a candidate nobody voted for is scored zero by
// the synthetic juror.
func candidateAudienceEntry(eval domain.Evaluation, votes []domain.AudienceVote, candidateID string) (map[string]float64, bool) {
	var total, mine float64
	for _, v := range votes {
		if v.CandidateID == nil {
			continue
		}
		total++
		if *v.CandidateID == candidateID {
			mine++
		}
	}
	if total == 0 {
		return nil, false
	}

	maxPerEntry := eval.MaxPerEntry()
	if maxPerEntry == 0 {
		return nil, false
	}

	audienceScore := mine / total * float64(maxPerEntry)
	return distributeAcrossCategories(eval.Categories, audienceScore, maxPerEntry), true
}

func distributeAcrossCategories(categories []domain.Category, audienceScore float64, maxPerEntry int) map[string]float64 {
	entry := make(map[string]float64, len(categories))
	for _, cat := range categories {
		entry[cat.ID] = round2(audienceScore * float64(cat.MaxScore) / float64(maxPerEntry))
	}
	return entry
}

func averageOrMinusOne(avg *float64) float64 {
	if avg == nil {
		return -1
	}
	return *avg
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
