package dispatch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/history"
	"github.com/kmankuan/ChiPiLink-sub010/internal/logger"
	"github.com/kmankuan/ChiPiLink-sub010/internal/metrics"
	"github.com/kmankuan/ChiPiLink-sub010/internal/printer"
)

// Mode records which decision path dispatched an attempt.
type Mode string

const (
	ModeAuto   Mode = "auto"
	ModeManual Mode = "manual"
)

// Outcome is the terminal state of a print attempt.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeFailed    Outcome = "failed"
)

const defaultCompletionWindow = 12 * time.Second

// Recorder persists resolved attempts for the operator history view.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) error
}

// Tracker resolves a dispatched print attempt exactly once: an explicit
// completion signal confirms it, a post-dispatch adapter error fails it, and
// silence resolves it through a bounded timeout. Confirmed and timed-out
// attempts both report completion to the job store. The window is
// deliberately generous: after a successful dispatch call, silence from the
// device or spooler almost always means the paper came out, and completing
// beats re-prompting the operator for a receipt that already printed.
type Tracker struct {
	store    JobStore
	notifier Notifier
	recorder Recorder
	window   time.Duration
	log      zerolog.Logger
}

func NewTracker(store JobStore, notifier Notifier, recorder Recorder, window time.Duration, log zerolog.Logger) *Tracker {
	if window <= 0 {
		window = defaultCompletionWindow
	}
	return &Tracker{
		store:    store,
		notifier: notifier,
		recorder: recorder,
		window:   window,
		log:      log.With().Str("component", "tracker").Logger(),
	}
}

// Track blocks until the attempt resolves and returns the outcome. It calls
// the job store's Complete at most once per attempt; the endpoint itself is
// idempotent, so a replayed job resolving elsewhere is still safe.
func (t *Tracker) Track(ctx context.Context, attempt *printer.Attempt, mode Mode, orderCount int) Outcome {
	log := logger.WithJobID(t.log, attempt.JobID).With().
		Str("attempt_id", attempt.ID).
		Str("mode", string(mode)).
		Logger()

	timer := time.NewTimer(t.window)
	defer timer.Stop()

	var outcome Outcome
	var attemptErr error

	select {
	case <-attempt.Done():
		outcome = OutcomeConfirmed
	case attemptErr = <-attempt.Failed():
		outcome = OutcomeFailed
	case <-timer.C:
		outcome = OutcomeTimedOut
	case <-ctx.Done():
		// Shutdown while waiting: treat like the timeout path so a
		// dispatched print is still reported.
		outcome = OutcomeTimedOut
	}

	resolvedAt := time.Now()
	metrics.AttemptDuration.Observe(resolvedAt.Sub(attempt.DispatchedAt).Seconds())

	switch outcome {
	case OutcomeConfirmed:
		t.complete(attempt.JobID, orderCount, log)
	case OutcomeTimedOut:
		metrics.AttemptsTimedOutTotal.Inc()
		log.Warn().Dur("window", t.window).Msg("no completion signal, resolving by timeout")
		t.complete(attempt.JobID, orderCount, log)
	case OutcomeFailed:
		metrics.AttemptsFailedTotal.Inc()
		log.Error().Err(attemptErr).Msg("print attempt failed")
		t.notifier.PrintFailed(attempt.JobID, orderCount, attemptErr)
	}

	t.record(attempt, mode, outcome, orderCount, attemptErr, resolvedAt)
	return outcome
}

func (t *Tracker) complete(jobID string, orderCount int, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := t.store.Complete(ctx, jobID); err != nil {
		// The print already happened; completion reporting is best-effort
		// and the external store stays authoritative either way.
		log.Error().Err(err).Msg("failed to report job completion")
		return
	}

	metrics.JobsCompletedTotal.Inc()
	t.notifier.PrintSucceeded(jobID, orderCount)
}

func (t *Tracker) record(attempt *printer.Attempt, mode Mode, outcome Outcome, orderCount int, attemptErr error, resolvedAt time.Time) {
	if t.recorder == nil {
		return
	}

	errText := ""
	if attemptErr != nil {
		errText = attemptErr.Error()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := history.Record{
		AttemptID:    attempt.ID,
		JobID:        attempt.JobID,
		Mode:         string(mode),
		Outcome:      string(outcome),
		OrderCount:   orderCount,
		Error:        errText,
		DispatchedAt: attempt.DispatchedAt,
		ResolvedAt:   &resolvedAt,
	}
	if err := t.recorder.Record(ctx, rec); err != nil {
		t.log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("failed to record attempt history")
	}
}
