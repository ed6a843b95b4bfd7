package domain

import "time"

// ScoreEntry is one juror score for one category.
type ScoreEntry struct {
	CategoryID string `json:"category_id"`
	Score      int    `json:"score"`
}

// Submission is one juror's complete score set for one evaluation, or for
// one candidate within it. CandidateID is nil in simple mode. Exactly one
// submission exists per (user, evaluation, candidate-or-nil); re-submitting
// replaces the scores and advances UpdatedAt while SubmittedAt stays put.
type Submission struct {
	ID           string       `json:"id"`
	EvaluationID string       `json:"evaluation_id"`
	UserID       string       `json:"user_id"`
	CandidateID  *string      `json:"candidate_id"`
	Scores       []ScoreEntry `json:"scores"`
	Comment      *string      `json:"comment"`
	SubmittedAt  time.Time    `json:"submitted_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (s Submission) RecordID() string { return s.ID }

// MatchesCandidate compares the submission's candidate key against
// candidateID, treating two nils as equal.
func (s Submission) MatchesCandidate(candidateID *string) bool {
	if s.CandidateID == nil || candidateID == nil {
		return s.CandidateID == nil && candidateID == nil
	}
	return *s.CandidateID == *candidateID
}
