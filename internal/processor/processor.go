package processor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"care-ats/internal/dialpad"
	"care-ats/internal/extractor"
	"care-ats/internal/logger"
	"care-ats/internal/store"
	"care-ats/internal/transcription"
	"care-ats/internal/types"
	"care-ats/internal/webhook"
)

// Response statuses returned to the webhook caller and the CLI.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
	StatusIgnored = "ignored"
)

const (
	ReasonMissingIdentity = "missing call_id or phone"
	ReasonDuplicate       = "already processed"
	ReasonNoRecording     = "no recording"

	degradedCandidate = "degraded: minimal candidate insert"
	degradedCall      = "degraded: minimal call insert"
)

// Repository is the persistence the pipeline needs. *store.Store
// implements it.
type Repository interface {
	ClaimCall(ctx context.Context, callID, phone string) (bool, error)
	RecordNoRecording(ctx context.Context, callID, phone string) (bool, error)
	MarkCall(ctx context.Context, callID, status, detail string) error

	GetCandidateByPhone(ctx context.Context, phone string) (*types.Candidate, error)
	InsertCandidate(ctx context.Context, c *types.Candidate) error
	InsertCandidateMinimal(ctx context.Context, c *types.Candidate) error
	UpdateCandidate(ctx context.Context, c *types.Candidate) error

	UpsertCall(ctx context.Context, r *types.CallRecord) error
	UpsertCallMinimal(ctx context.Context, r *types.CallRecord) error
}

// Fetcher downloads call recordings.
type Fetcher interface {
	FetchRecording(ctx context.Context, rec dialpad.Recording) (*dialpad.Audio, error)
}

// Analyzer turns a transcript or raw audio into a validated analysis.
type Analyzer interface {
	AcceptsAudio() bool
	Extract(ctx context.Context, in extractor.Input) (*types.Analysis, error)
}

// Notifier is told about every call that reached a terminal ledger status.
type Notifier interface {
	CallProcessed(ctx context.Context, res Result)
}

// Result is the outcome of one Process call.
type Result struct {
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`
	CallID       string `json:"call_id,omitempty"`
	CandidateID  string `json:"candidate_id,omitempty"`
	LedgerStatus string `json:"ledger_status,omitempty"`
	NewCandidate bool   `json:"new_candidate,omitempty"`
	Degraded     bool   `json:"degraded,omitempty"`
	DurationMs   int64  `json:"duration_ms"`
}

type Processor struct {
	repo        Repository
	fetcher     Fetcher
	transcriber transcription.Transcriber
	analyzer    Analyzer
	notifier    Notifier
	timeout     time.Duration
	now         func() time.Time
	log         *logger.Logger
}

type Option func(*Processor)

// WithNotifier registers n for terminal outcomes.
func WithNotifier(n Notifier) Option {
	return func(p *Processor) { p.notifier = n }
}

// WithTimeout bounds the work done for a single call.
func WithTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock overrides the reference time used for date resolution.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

func New(repo Repository, fetcher Fetcher, tr transcription.Transcriber, an Analyzer, log *logger.Logger, opts ...Option) *Processor {
	if log == nil {
		log = logger.Discard()
	}
	p := &Processor{
		repo:        repo,
		fetcher:     fetcher,
		transcriber: tr,
		analyzer:    an,
		timeout:     4 * time.Minute,
		now:         time.Now,
		log:         log.Component("processor"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs one call event through the pipeline. Pipeline failures are
// reported in the Result and recorded in the ledger; the error is only set
// when the ledger itself could not be written.
func (p *Processor) Process(ctx context.Context, ev webhook.Event) (Result, error) {
	start := time.Now()
	log := p.log.WithField("call_id", ev.CallID).WithField("state", ev.State)

	done := func(r Result) Result {
		r.CallID = ev.CallID
		r.DurationMs = time.Since(start).Milliseconds()
		return r
	}

	kind := webhook.Classify(ev)
	if kind == webhook.KindIgnorable {
		log.Debug("ignoring call state")
		return done(Result{Status: StatusIgnored, Reason: "state " + orNone(ev.State)}), nil
	}
	if err := webhook.Validate(ev); err != nil {
		log.Warn("event without call id or phone")
		return done(Result{Status: StatusIgnored, Reason: ReasonMissingIdentity}), nil
	}

	if kind == webhook.KindHangupWithoutRecording {
		written, err := p.repo.RecordNoRecording(ctx, ev.CallID, ev.Phone)
		if err != nil {
			return done(Result{Status: StatusError, Message: err.Error()}), err
		}
		log.WithField("written", written).Info("hangup without recording")
		return done(Result{Status: StatusIgnored, Reason: ReasonNoRecording, LedgerStatus: types.LedgerNoRecording}), nil
	}

	claimed, err := p.repo.ClaimCall(ctx, ev.CallID, ev.Phone)
	if err != nil {
		return done(Result{Status: StatusError, Message: err.Error()}), err
	}
	if !claimed {
		log.Info("call already claimed")
		return done(Result{Status: StatusIgnored, Reason: ReasonDuplicate}), nil
	}

	res, status, detail := p.runRecovered(ctx, ev, log)
	res.LedgerStatus = status

	if err := p.mark(ctx, ev.CallID, status, detail); err != nil {
		log.WithField("error", err.Error()).Error("failed to write ledger status")
		return done(res), err
	}

	res = done(res)
	log.WithField("ledger_status", status).
		WithField("candidate_id", res.CandidateID).
		WithField("duration_ms", res.DurationMs).
		Info("call finished")

	if p.notifier != nil {
		p.notifier.CallProcessed(context.WithoutCancel(ctx), res)
	}
	return res, nil
}

// runRecovered runs the claimed part of the pipeline under the per-call
// timeout and turns a panic into an error outcome. Once a call is claimed
// it runs to completion even if the caller goes away: a redelivery would
// find the claim and be ignored.
func (p *Processor) runRecovered(ctx context.Context, ev webhook.Event, log *logrus.Entry) (res Result, status, detail string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).WithField("stack", string(debug.Stack())).Error("pipeline panic")
			res = Result{Status: StatusError, Message: "internal error"}
			status, detail = types.LedgerError, fmt.Sprintf("panic: %v", r)
		}
	}()

	return p.run(ctx, ev, log)
}

func (p *Processor) run(ctx context.Context, ev webhook.Event, log *logrus.Entry) (Result, string, string) {
	audio, err := p.fetcher.FetchRecording(ctx, ev.Recording)
	if err != nil {
		log.WithField("error", err.Error()).Warn("recording download failed")
		return Result{Status: StatusError, Reason: "download failed", Message: err.Error()}, types.LedgerDownloadFailed, err.Error()
	}

	var transcript string
	if !p.analyzer.AcceptsAudio() {
		transcript, err = p.transcriber.Transcribe(ctx, audio.Data, audio.ContentType)
		if err != nil {
			log.WithField("error", err.Error()).Warn("transcription failed")
			return Result{Status: StatusError, Reason: "transcription failed", Message: err.Error()}, types.LedgerTranscribeFailed, err.Error()
		}
	}

	analysis, err := p.analyzer.Extract(ctx, extractor.Input{
		Today:      p.now(),
		Phone:      ev.Phone,
		Transcript: transcript,
		Audio:      audio.Data,
		AudioMIME:  audio.ContentType,
	})
	if err != nil {
		log.WithField("error", err.Error()).Warn("analysis failed")
		res := Result{Status: StatusError, Reason: "analysis failed", Message: err.Error()}
		if transcript != "" {
			// keep what we paid for; the call can be re-analysed later
			rec := p.callRecord(ev, "", transcript, nil)
			if existing, lerr := p.repo.GetCandidateByPhone(ctx, ev.Phone); lerr == nil {
				rec.CandidateID = existing.ID
				res.CandidateID = existing.ID
			}
			if uerr := p.repo.UpsertCall(ctx, rec); uerr != nil {
				log.WithField("error", uerr.Error()).Error("failed to store transcript")
			}
		}
		return res, types.LedgerAnalysisFailed, err.Error()
	}
	if transcript == "" {
		transcript = types.Str(analysis.Transcript)
	}

	existing, err := p.repo.GetCandidateByPhone(ctx, ev.Phone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{Status: StatusError, Message: err.Error()}, types.LedgerError, err.Error()
	}
	if existing == nil && !types.RecruitmentRelevant(analysis.CallType) {
		log.WithField("call_type", analysis.CallType).Info("non-recruitment call from unknown number")
		return Result{Status: StatusSkipped, Reason: "non-recruitment call from unknown number"},
			types.LedgerSkipped, "call_type " + analysis.CallType
	}

	contactedAt := ev.StartedAt
	if contactedAt.IsZero() {
		contactedAt = p.now()
	}

	cand, created, degraded, err := p.upsertCandidate(ctx, existing, ev.Phone, analysis, contactedAt, log)
	if err != nil {
		log.WithField("error", err.Error()).Error("candidate upsert failed")
		return Result{Status: StatusError, Reason: "candidate upsert failed", Message: err.Error()}, types.LedgerError, err.Error()
	}

	var notes []string
	if degraded {
		notes = append(notes, degradedCandidate)
	}

	rec := p.callRecord(ev, cand.ID, transcript, analysis)
	if err := p.repo.UpsertCall(ctx, rec); err != nil {
		log.WithField("error", err.Error()).Warn("call upsert failed, retrying with minimal fields")
		if merr := p.repo.UpsertCallMinimal(ctx, rec); merr != nil {
			log.WithField("error", merr.Error()).Error("minimal call upsert failed")
			return Result{Status: StatusError, Reason: "call upsert failed", Message: merr.Error(), CandidateID: cand.ID},
				types.LedgerError, merr.Error()
		}
		notes = append(notes, degradedCall)
	}

	res := Result{
		Status:       StatusOK,
		Message:      analysis.Summary,
		CandidateID:  cand.ID,
		NewCandidate: created,
		Degraded:     len(notes) > 0,
	}
	return res, types.LedgerProcessed, strings.Join(notes, "; ")
}

// upsertCandidate merges the analysis into the candidate for phone,
// creating it when missing. A duplicate on insert means another call
// created the row first, so the merge is applied to that row instead.
func (p *Processor) upsertCandidate(ctx context.Context, existing *types.Candidate, phone string, a *types.Analysis, contactedAt time.Time, log *logrus.Entry) (*types.Candidate, bool, bool, error) {
	if existing != nil {
		c := Merge(existing, a, contactedAt)
		if err := p.repo.UpdateCandidate(ctx, c); err != nil {
			return nil, false, false, err
		}
		return c, false, false, nil
	}

	c := Merge(&types.Candidate{Phone: phone, Status: types.StatusNew, Source: types.SourceCall}, a, contactedAt)
	err := p.repo.InsertCandidate(ctx, c)
	if err == nil {
		return c, true, false, nil
	}

	if errors.Is(err, store.ErrDuplicate) {
		winner, gerr := p.repo.GetCandidateByPhone(ctx, phone)
		if gerr != nil {
			return nil, false, false, fmt.Errorf("re-query after duplicate: %w", gerr)
		}
		merged := Merge(winner, a, contactedAt)
		if uerr := p.repo.UpdateCandidate(ctx, merged); uerr != nil {
			return nil, false, false, uerr
		}
		return merged, false, false, nil
	}

	log.WithField("error", err.Error()).Warn("candidate insert failed, retrying with minimal fields")
	minimal := &types.Candidate{ID: c.ID, Phone: phone, Name: c.Name, Status: types.StatusNew, Source: types.SourceCall}
	if merr := p.repo.InsertCandidateMinimal(ctx, minimal); merr != nil {
		return nil, false, false, fmt.Errorf("minimal insert: %w (full insert: %v)", merr, err)
	}
	log.WithField("candidate_id", minimal.ID).Warn(degradedCandidate)
	return minimal, true, true, nil
}

func (p *Processor) callRecord(ev webhook.Event, candidateID, transcript string, a *types.Analysis) *types.CallRecord {
	rec := &types.CallRecord{
		CallID:       ev.CallID,
		CandidateID:  candidateID,
		Phone:        ev.Phone,
		Direction:    ev.Direction,
		DurationSecs: ev.DurationSecs,
		StartedAt:    ev.StartedAt,
		RecordingURL: ev.Recording.URL,
		Transcript:   transcript,
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = p.now().UTC()
	}
	if a != nil {
		energy, quality := a.EnergyScore, a.QualityRating
		rec.Analysis = a
		rec.Summary = a.Summary
		rec.CallType = a.CallType
		rec.EnergyScore = &energy
		rec.QualityRating = &quality
	}
	return rec
}

// mark writes the terminal ledger status even when the call's own context
// has timed out.
func (p *Processor) mark(ctx context.Context, callID, status, detail string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return p.repo.MarkCall(ctx, callID, status, detail)
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
