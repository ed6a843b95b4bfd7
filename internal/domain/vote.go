package domain

import "time"

// AudienceVote is one anonymous-by-device audience vote. In candidate mode
// CandidateID is set and Score is nil; in simple mode the reverse. A device
// gets exactly one vote per evaluation, and a cast vote is never updated or
// deleted by the voter.
type AudienceVote struct {
	ID           string    `json:"id"`
	EvaluationID string    `json:"evaluation_id"`
	DeviceID     string    `json:"device_id"`
	CandidateID  *string   `json:"candidate_id"`
	Score        *int      `json:"score"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

func (v AudienceVote) RecordID() string { return v.ID }
