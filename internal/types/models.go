package types

import (
	"strings"
	"time"
)

// Candidate pipeline statuses.
const (
	StatusNew         = "new"
	StatusShortlisted = "shortlisted"
	StatusRejected    = "rejected"
)

// Candidate sources.
const (
	SourceCall   = "call"
	SourceManual = "manual"
	SourceImport = "import"
)

// Unknown is the placeholder models use for facts they could not learn.
const Unknown = "Unknown"

// Candidate is a recruitment prospect keyed by E.164 phone number.
type Candidate struct {
	ID                string     `json:"id"`
	Phone             string     `json:"phone"`
	Name              string     `json:"name,omitempty"`
	Status            string     `json:"status"`
	Source            string     `json:"source"`
	Roles             []string   `json:"roles"`
	Qualifications    []string   `json:"qualifications"`
	DriverStatus      string     `json:"driver_status,omitempty"`
	DBSStatus         string     `json:"dbs_status,omitempty"`
	RightToWork       string     `json:"right_to_work,omitempty"`
	TrainingStatus    string     `json:"training_status,omitempty"`
	EarliestStartDate string     `json:"earliest_start_date,omitempty"`
	PreferredHours    string     `json:"preferred_hours,omitempty"`
	ExperienceSummary string     `json:"experience_summary,omitempty"`
	EnergyScore       *float64   `json:"energy_score,omitempty"`
	LastContactedAt   *time.Time `json:"last_contacted_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ValidStatus reports whether s is a pipeline status a candidate can hold.
func ValidStatus(s string) bool {
	switch s {
	case StatusNew, StatusShortlisted, StatusRejected:
		return true
	}
	return false
}

// CallRecord is one phone call as stored in call history.
type CallRecord struct {
	CallID        string    `json:"call_id"`
	CandidateID   string    `json:"candidate_id,omitempty"`
	Phone         string    `json:"phone"`
	Direction     string    `json:"direction,omitempty"`
	DurationSecs  int       `json:"duration_secs"`
	StartedAt     time.Time `json:"started_at"`
	RecordingURL  string    `json:"recording_url,omitempty"`
	Transcript    string    `json:"transcript,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Analysis      *Analysis `json:"analysis,omitempty"`
	EnergyScore   *int      `json:"energy_score,omitempty"`
	QualityRating *int      `json:"quality_rating,omitempty"`
	CallType      string    `json:"call_type,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// Ledger statuses. Processing is the claim marker held while a call is in
// flight; every other value is terminal.
const (
	LedgerProcessing       = "processing"
	LedgerProcessed        = "processed"
	LedgerNoRecording      = "no_recording"
	LedgerDownloadFailed   = "download_failed"
	LedgerTranscribeFailed = "transcribe_failed"
	LedgerAnalysisFailed   = "analysis_failed"
	LedgerSkipped          = "skipped"
	LedgerError            = "error"
)

// LedgerStatuses lists every status in display order.
var LedgerStatuses = []string{
	LedgerProcessing,
	LedgerProcessed,
	LedgerNoRecording,
	LedgerDownloadFailed,
	LedgerTranscribeFailed,
	LedgerAnalysisFailed,
	LedgerSkipped,
	LedgerError,
}

// IsFailure reports whether a ledger status means the call was not analysed
// because something broke.
func IsFailure(status string) bool {
	switch status {
	case LedgerDownloadFailed, LedgerTranscribeFailed, LedgerAnalysisFailed, LedgerError:
		return true
	}
	return false
}

// LedgerEntry is one row of the processed-call ledger.
type LedgerEntry struct {
	CallID    string    `json:"call_id"`
	Phone     string    `json:"phone,omitempty"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is an append-only annotation on a candidate.
type Note struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidate_id"`
	Author      string    `json:"author"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// Known reports whether v carries information, i.e. it is neither blank nor
// the Unknown placeholder.
func Known(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, Unknown) && !strings.EqualFold(v, "null") && !strings.EqualFold(v, "n/a")
}
