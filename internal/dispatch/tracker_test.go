package dispatch

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/history"
	"github.com/kmankuan/ChiPiLink-sub010/internal/jobstore"
	"github.com/kmankuan/ChiPiLink-sub010/internal/printer"
	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

type fakeStore struct {
	mu        sync.Mutex
	jobs      map[string]*jobstore.PrintJob
	fetchErr  error
	completes atomic.Int32
	completed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: make(map[string]*jobstore.PrintJob)}
}

func (s *fakeStore) Fetch(ctx context.Context, jobID string) (*jobstore.PrintJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, jobstore.ErrJobNotFound
	}
	return job, nil
}

func (s *fakeStore) Complete(ctx context.Context, jobID string) error {
	s.completes.Add(1)
	s.mu.Lock()
	s.completed = append(s.completed, jobID)
	s.mu.Unlock()
	return nil
}

type notification struct {
	kind       string
	jobID      string
	orderCount int
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notification
}

func (n *fakeNotifier) PrintSucceeded(jobID string, orderCount int) {
	n.add(notification{"success", jobID, orderCount})
}

func (n *fakeNotifier) ManualPending(d Descriptor) {
	n.add(notification{"manual", d.JobID, d.OrderCount})
}

func (n *fakeNotifier) PrintFailed(jobID string, orderCount int, err error) {
	n.add(notification{"failed", jobID, orderCount})
}

func (n *fakeNotifier) add(c notification) {
	n.mu.Lock()
	n.calls = append(n.calls, c)
	n.mu.Unlock()
}

func (n *fakeNotifier) byKind(kind string) []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification
	for _, c := range n.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []history.Record
}

func (r *fakeRecorder) Record(ctx context.Context, rec history.Record) error {
	r.mu.Lock()
	r.recs = append(r.recs, rec)
	r.mu.Unlock()
	return nil
}

func (r *fakeRecorder) last(t *testing.T) history.Record {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.recs) == 0 {
		t.Fatal("no history recorded")
	}
	return r.recs[len(r.recs)-1]
}

func trackedAttempt(jobID string) *printer.Attempt {
	a := printer.NewAttempt()
	a.JobID = jobID
	return a
}

// TestTrackerConfirmedCompletesOnce verifies the explicit-signal path calls
// complete exactly once and announces success.
func TestTrackerConfirmedCompletesOnce(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	tracker := NewTracker(store, notifier, recorder, 5*time.Second, zerolog.Nop())

	attempt := trackedAttempt("J1")
	attempt.Confirm()

	if outcome := tracker.Track(context.Background(), attempt, ModeAuto, 2); outcome != OutcomeConfirmed {
		t.Fatalf("outcome = %s, want confirmed", outcome)
	}
	if got := store.completes.Load(); got != 1 {
		t.Fatalf("complete calls = %d, want 1", got)
	}
	success := notifier.byKind("success")
	if len(success) != 1 || success[0].jobID != "J1" || success[0].orderCount != 2 {
		t.Fatalf("unexpected success notifications: %+v", success)
	}
	if rec := recorder.last(t); rec.Outcome != "confirmed" || rec.Mode != "auto" {
		t.Fatalf("unexpected history record: %+v", rec)
	}
}

// TestTrackerTimeoutStillCompletes verifies silence resolves through the
// bounded window and the job is completed exactly once, not zero times.
func TestTrackerTimeoutStillCompletes(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	tracker := NewTracker(store, notifier, nil, 50*time.Millisecond, zerolog.Nop())

	attempt := trackedAttempt("J2")

	start := time.Now()
	outcome := tracker.Track(context.Background(), attempt, ModeManual, 1)
	if outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", outcome)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("resolved before the window elapsed: %v", elapsed)
	}
	if got := store.completes.Load(); got != 1 {
		t.Fatalf("complete calls = %d, want 1", got)
	}
}

// TestTrackerFailureNeverCompletes verifies a pre-signal adapter failure
// surfaces an operator error and leaves the job queued.
func TestTrackerFailureNeverCompletes(t *testing.T) {
	store := newFakeStore()
	notifier := &fakeNotifier{}
	recorder := &fakeRecorder{}
	tracker := NewTracker(store, notifier, recorder, 5*time.Second, zerolog.Nop())

	attempt := trackedAttempt("J3")
	attempt.Fail(errors.New("paper jam"))

	if outcome := tracker.Track(context.Background(), attempt, ModeAuto, 3); outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}
	if got := store.completes.Load(); got != 0 {
		t.Fatalf("complete calls = %d, want 0", got)
	}
	failed := notifier.byKind("failed")
	if len(failed) != 1 || failed[0].jobID != "J3" {
		t.Fatalf("unexpected failure notifications: %+v", failed)
	}
	if rec := recorder.last(t); rec.Outcome != "failed" || rec.Error == "" {
		t.Fatalf("unexpected history record: %+v", rec)
	}
}

// TestTrackerLogsCarryJobID verifies every tracker log line is scoped to the
// attempt's job through the shared job-logger helper.
func TestTrackerLogsCarryJobID(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	store := newFakeStore()
	tracker := NewTracker(store, &fakeNotifier{}, nil, 10*time.Millisecond, log)

	attempt := trackedAttempt("J7")
	if outcome := tracker.Track(context.Background(), attempt, ModeAuto, 1); outcome != OutcomeTimedOut {
		t.Fatalf("outcome = %s, want timed_out", outcome)
	}

	if !strings.Contains(buf.String(), `"job_id":"J7"`) {
		t.Fatalf("tracker output missing job scope: %s", buf.String())
	}
}

func testOrders(n int) []receipt.OrderSnapshot {
	price := int64(300)
	orders := make([]receipt.OrderSnapshot, n)
	for i := range orders {
		orders[i] = receipt.OrderSnapshot{
			OrderID:       string(rune('A' + i)),
			RecipientName: "Recipient",
			LineItems: []receipt.LineItem{
				{Name: "Item", Quantity: 1, UnitPriceCents: &price},
			},
		}
	}
	return orders
}
