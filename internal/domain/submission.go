package domain

import "time"

type TransportKind string

const (
	TransportPrimary  TransportKind = "primary"
	TransportFallback TransportKind = "fallback"
)

// Outcome distinguishes a server-acknowledged write from a best-effort
// beacon that was never confirmed.
type Outcome string

const (
	OutcomeConfirmed  Outcome = "confirmed"
	OutcomeOptimistic Outcome = "optimistic"
)

type SubmissionRecord struct {
	Payload   *Request      `json:"payload"`
	Attempt   int           `json:"attempt"`
	Transport TransportKind `json:"transport"`
	StartedAt time.Time     `json:"startedAt"`
	Err       string        `json:"error,omitempty"`
}

type Result struct {
	Outcome     Outcome            `json:"outcome"`
	Action      Action             `json:"action"`
	Ack         *Response          `json:"ack,omitempty"`
	RowID       string             `json:"rowId,omitempty"`
	Records     []SubmissionRecord `json:"records"`
	CompletedAt time.Time          `json:"completedAt"`
}

func (r *Result) Confirmed() bool {
	return r != nil && r.Outcome == OutcomeConfirmed && r.Ack != nil
}

// Attempts counts primary transport attempts only.
func (r *Result) Attempts() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Transport == TransportPrimary {
			n++
		}
	}
	return n
}

func (r *Result) Message() string {
	if r.Action == ActionUpdate {
		return "Assessment updated to database"
	}
	return "Assessment saved to database"
}

type Status struct {
	Submitted       bool       `json:"submitted"`
	HasChanges      bool       `json:"hasChanges"`
	LastSubmittedAt *time.Time `json:"lastSubmittedAt,omitempty"`
}

func (s Status) Label() string {
	switch {
	case !s.Submitted:
		return "unsubmitted"
	case s.HasChanges:
		return "modified"
	default:
		return "submitted"
	}
}

// HistoryEntry is an audit line for one completed submission. It plays no
// part in deciding create versus update.
type HistoryEntry struct {
	VentureID        string        `json:"ventureId"`
	At               time.Time     `json:"at"`
	Action           Action        `json:"action"`
	Outcome          Outcome       `json:"outcome"`
	Transport        TransportKind `json:"transport"`
	Attempts         int           `json:"attempts"`
	RowID            string        `json:"rowId,omitempty"`
	AssessmentNumber int           `json:"assessmentNumber"`
	Fingerprint      string        `json:"fingerprint"`
}

type VentureRef struct {
	Name      string `json:"name"`
	Portfolio string `json:"portfolio"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

const (
	SourceAssessment    = "rl"
	SourceQualification = "qual"
)

// Listing is one cached remote read together with the time it was taken.
type Listing struct {
	Kind      string       `json:"kind"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Refs      []VentureRef `json:"refs,omitempty"`
	Rows      []Row        `json:"rows,omitempty"`
}
