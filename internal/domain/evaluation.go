package domain

import "time"

// Submission window states derived from the clock, never stored.
const (
	StatusUpcoming = "upcoming"
	StatusOpen     = "open"
	StatusClosed   = "closed"
)

// DefaultAudienceMaxScore applies when audience voting is enabled in simple
// mode without an explicit maximum.
const DefaultAudienceMaxScore = 10

// Category is one scoring dimension of an evaluation. Categories have no
// identity outside the evaluation that embeds them.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxScore    int    `json:"max_score"`
}

// Candidate is an optional per-evaluation entity scored independently.
type Candidate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Evaluation is one scored competition instance: ordered categories, optional
// candidates, a submission time window and the two-gate publish state.
type Evaluation struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Categories  []Category  `json:"categories"`
	Candidates  []Candidate `json:"candidates"`

	SubmissionOpenAt  time.Time `json:"submission_open_at"`
	SubmissionCloseAt time.Time `json:"submission_close_at"`

	ResultsPublishAt   time.Time  `json:"results_publish_at"`
	ResultsIsPublished bool       `json:"results_is_published"`
	ResultsPublishedAt *time.Time `json:"results_published_at"`

	JuryAssignments []string `json:"jury_assignments"`

	AudienceEnabled  bool `json:"audience_enabled"`
	AudienceMaxScore int  `json:"audience_max_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e Evaluation) RecordID() string { return e.ID }

// Status derives the submission-window state from the clock. Transitions are
// purely time-driven and monotonic.
func (e Evaluation) Status(now time.Time) string {
	switch {
	case now.Before(e.SubmissionOpenAt):
		return StatusUpcoming
	case now.After(e.SubmissionCloseAt):
		return StatusClosed
	default:
		return StatusOpen
	}
}

// VisibleToPublic reports whether aggregated results may be shown publicly.
// Both gates must hold: the admin publish toggle and the publication
// timestamp. An admin may pre-arm the toggle before the timestamp is
// reached; visibility then flips on its own once the time comes.
func (e Evaluation) VisibleToPublic(now time.Time) bool {
	return e.ResultsIsPublished && !now.Before(e.ResultsPublishAt)
}

// HasCandidates reports candidate mode. An empty candidate list means simple
// mode: one overall score set per juror.
func (e Evaluation) HasCandidates() bool {
	return len(e.Candidates) > 0
}

// CategoryByID looks a category up in the embedded list.
func (e Evaluation) CategoryByID(id string) (Category, bool) {
	for _, c := range e.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CandidateByID looks a candidate up in the embedded list.
func (e Evaluation) CandidateByID(id string) (Candidate, bool) {
	for _, c := range e.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// IsAssigned reports whether the user id is on the jury of this evaluation.
func (e Evaluation) IsAssigned(userID string) bool {
	for _, id := range e.JuryAssignments {
		if id == userID {
			return true
		}
	}
	return false
}

// MaxPerEntry is the ceiling one juror can award across all categories.
func (e Evaluation) MaxPerEntry() int {
	var total int
	for _, c := range e.Categories {
		total += c.MaxScore
	}
	return total
}

// EffectiveAudienceMaxScore resolves the simple-mode audience scale,
// falling back to the default when unset.
func (e Evaluation) EffectiveAudienceMaxScore() int {
	if e.AudienceMaxScore < 1 {
		return DefaultAudienceMaxScore
	}
	return e.AudienceMaxScore
}
