package importer

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Outcome is the terminal state of one source row.
type Outcome string

const (
	OutcomeCreated            Outcome = "created"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeSkippedInvalidType Outcome = "skipped-invalid-type"
	OutcomeSkippedAlreadyDone Outcome = "skipped-already-done"
	OutcomeSkippedMissingFile Outcome = "skipped-missing-file"
	OutcomeSkippedConflict    Outcome = "skipped-conflict"
	OutcomeFatal              Outcome = "fatal"
)

// Result records what happened to a row.
type Result struct {
	Line       int     `json:"line"`
	ActivityID string  `json:"activity_id"`
	Outcome    Outcome `json:"outcome"`
	Detail     string  `json:"detail,omitempty"`
	StravaID   int64   `json:"strava_id,omitempty"`
}

// Summary describes a whole run. It is returned even when the run aborts.
type Summary struct {
	RunID      string          `json:"run_id"`
	Athlete    string          `json:"athlete,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Created    int             `json:"created"`
	Counts     map[Outcome]int `json:"counts"`
	Results    []Result        `json:"results"`
	Error      string          `json:"error,omitempty"`
}

func newSummary(runID string, started time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		StartedAt: started,
		Counts:    make(map[Outcome]int),
	}
}

func (s *Summary) record(r Result) {
	s.Results = append(s.Results, r)
	s.Counts[r.Outcome]++
	if r.Outcome == OutcomeCreated {
		s.Created++
	}
}

// Aborted reports whether the run stopped on a fatal error.
func (s *Summary) Aborted() bool {
	return s.Error != ""
}

// Line is the closing log line of a run. The count is printed without
// digit grouping.
func (s *Summary) Line() string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("Complete! Created approximately [%v] activities.", number.Decimal(s.Created, number.NoSeparator()))
}
