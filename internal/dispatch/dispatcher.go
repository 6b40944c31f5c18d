package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/jobstore"
	"github.com/kmankuan/ChiPiLink-sub010/internal/metrics"
	"github.com/kmankuan/ChiPiLink-sub010/internal/printer"
	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

var (
	ErrJobNotPending = errors.New("job is not pending manual print")
	ErrShuttingDown  = errors.New("dispatcher is shutting down")
)

// Descriptor is the minimal job identity carried by a channel notification.
// The full payload is fetched only when a print is actually attempted.
type Descriptor struct {
	JobID      string `json:"job_id"`
	OrderCount int    `json:"order_count"`
	Source     string `json:"source"`
}

// JobStore is the slice of the external job API the dispatcher needs.
type JobStore interface {
	Fetch(ctx context.Context, jobID string) (*jobstore.PrintJob, error)
	Complete(ctx context.Context, jobID string) error
}

// Driver is the printer adapter contract as the dispatcher consumes it.
type Driver interface {
	Name() string
	Connected() bool
	Profile() receipt.PaperProfile
	Print(ctx context.Context, doc *receipt.Document) (*printer.Attempt, error)
}

type jobState int

const (
	stateInFlight jobState = iota + 1
	statePendingManual
	stateCompleted
)

type Config struct {
	QueueSize    int
	FetchTimeout time.Duration
	AutoPrint    bool
	Layout       receipt.LayoutConfig
}

// Dispatcher serializes job notifications through a FIFO queue and decides
// between hardware auto-print and the operator-triggered manual path. It is
// the only component that is idempotent against replayed notifications: a
// job id that is in flight, pending with the operator, or already completed
// within this process lifetime is dropped.
type Dispatcher struct {
	cfg      Config
	store    JobStore
	hardware Driver // nil when no hardware unit is configured
	spooler  Driver
	tracker  *Tracker
	notifier Notifier
	log      zerolog.Logger

	queue  chan Descriptor
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	seen    map[string]jobState
	pending map[string]Descriptor

	// One in-flight attempt per printer resource.
	slots map[string]chan struct{}
}

func New(cfg Config, store JobStore, hardware, spooler Driver, tracker *Tracker, notifier Notifier, log zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}

	d := &Dispatcher{
		cfg:      cfg,
		store:    store,
		hardware: hardware,
		spooler:  spooler,
		tracker:  tracker,
		notifier: notifier,
		log:      log.With().Str("component", "dispatcher").Logger(),
		queue:    make(chan Descriptor, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		seen:     make(map[string]jobState),
		pending:  make(map[string]Descriptor),
		slots:    make(map[string]chan struct{}),
	}
	if hardware != nil {
		d.slots[hardware.Name()] = make(chan struct{}, 1)
	}
	if spooler != nil {
		d.slots[spooler.Name()] = make(chan struct{}, 1)
	}
	return d
}

func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.worker()
}

func (d *Dispatcher) Stop() {
	close(d.stopCh)
	d.wg.Wait()
}

// Enqueue accepts a job notification without blocking the caller. A full
// queue drops the notification; at-least-once delivery upstream means a
// replay will come around.
func (d *Dispatcher) Enqueue(desc Descriptor) bool {
	select {
	case d.queue <- desc:
		return true
	default:
		d.log.Warn().Str("job_id", desc.JobID).Msg("dispatch queue full, dropping notification")
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopCh:
			return
		case desc := <-d.queue:
			d.handle(desc)
		}
	}
}

// handle runs the decision algorithm for one notification. Nothing in here
// may take down the worker loop: failures degrade to the manual path and
// panics are contained.
func (d *Dispatcher) handle(desc Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("job_id", desc.JobID).Interface("panic", r).Msg("recovered panic while handling job")
			d.queueManual(desc)
		}
	}()

	d.mu.Lock()
	if _, dup := d.seen[desc.JobID]; dup {
		d.mu.Unlock()
		metrics.JobsDuplicateTotal.Inc()
		d.log.Debug().Str("job_id", desc.JobID).Msg("duplicate notification dropped")
		return
	}
	d.seen[desc.JobID] = stateInFlight
	d.mu.Unlock()

	metrics.JobsReceivedTotal.Inc()

	if d.cfg.AutoPrint && d.hardware != nil && d.hardware.Connected() {
		err := d.autoPrint(desc)
		if err == nil {
			return
		}
		d.log.Warn().Err(err).Str("job_id", desc.JobID).Msg("auto-print failed, falling back to manual")
	}

	d.queueManual(desc)
}

// autoPrint is the best-effort hardware path. Any error falls back to the
// manual path in the caller; a zero-order job aborts silently with no print
// and no completion call.
func (d *Dispatcher) autoPrint(desc Descriptor) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.FetchTimeout)
	defer cancel()

	job, err := d.store.Fetch(ctx, desc.JobID)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if len(job.Orders) == 0 {
		d.setState(desc.JobID, stateCompleted)
		d.log.Info().Str("job_id", desc.JobID).Msg("job has no orders, nothing to print")
		return nil
	}

	layout := d.cfg.Layout
	layout.PaperProfile = d.hardware.Profile()
	doc, err := receipt.Render(job.Orders, layout)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if err := d.dispatchAttempt(desc, d.hardware, doc, ModeAuto, len(job.Orders)); err != nil {
		return err
	}
	metrics.JobsAutoPrintedTotal.Inc()
	return nil
}

// dispatchAttempt acquires the driver's single in-flight slot, dispatches,
// and tracks the attempt in the background so the FIFO queue is free to
// process the next distinct job once this one is on the wire.
func (d *Dispatcher) dispatchAttempt(desc Descriptor, driver Driver, doc *receipt.Document, mode Mode, orderCount int) error {
	slot := d.slots[driver.Name()]
	select {
	case slot <- struct{}{}:
	case <-d.stopCh:
		return ErrShuttingDown
	}

	attemptCtx, cancelAttempt := context.WithCancel(context.Background())

	attempt, err := driver.Print(attemptCtx, doc)
	if err != nil {
		cancelAttempt()
		<-slot
		return fmt.Errorf("dispatch to %s: %w", driver.Name(), err)
	}
	attempt.JobID = desc.JobID

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancelAttempt()
		defer func() { <-slot }()

		outcome := d.tracker.Track(attemptCtx, attempt, mode, orderCount)
		d.finalize(desc, outcome)
	}()

	return nil
}

// finalize settles the duplicate-suppression state once an attempt resolved.
// A failed attempt hands the job to the operator for a retry; the job is
// still queued in the external store.
func (d *Dispatcher) finalize(desc Descriptor, outcome Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch outcome {
	case OutcomeConfirmed, OutcomeTimedOut:
		d.seen[desc.JobID] = stateCompleted
		delete(d.pending, desc.JobID)
	case OutcomeFailed:
		d.seen[desc.JobID] = statePendingManual
		d.pending[desc.JobID] = desc
	}
}

func (d *Dispatcher) queueManual(desc Descriptor) {
	d.mu.Lock()
	d.seen[desc.JobID] = statePendingManual
	d.pending[desc.JobID] = desc
	d.mu.Unlock()

	metrics.JobsManualQueuedTotal.Inc()
	d.notifier.ManualPending(desc)
}

func (d *Dispatcher) setState(jobID string, state jobState) {
	d.mu.Lock()
	d.seen[jobID] = state
	if state == stateCompleted {
		delete(d.pending, jobID)
	}
	d.mu.Unlock()
}

// Pending lists jobs awaiting an operator-triggered print.
func (d *Dispatcher) Pending() []Descriptor {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Descriptor, 0, len(d.pending))
	for _, desc := range d.pending {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out
}

// TriggerManual runs the operator-invoked print flow for a pending job
// through the host spooler. A dispatch failure puts the job back in the
// pending set so the operator can retry.
func (d *Dispatcher) TriggerManual(ctx context.Context, jobID string) error {
	d.mu.Lock()
	desc, ok := d.pending[jobID]
	if !ok || d.seen[jobID] != statePendingManual {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrJobNotPending, jobID)
	}
	d.seen[jobID] = stateInFlight
	delete(d.pending, jobID)
	d.mu.Unlock()

	err := d.printManual(ctx, desc)
	if err != nil {
		// Back to the operator; the job is still queued externally.
		d.mu.Lock()
		d.seen[jobID] = statePendingManual
		d.pending[jobID] = desc
		d.mu.Unlock()
	}
	return err
}

func (d *Dispatcher) printManual(ctx context.Context, desc Descriptor) error {
	fetchCtx, cancel := context.WithTimeout(ctx, d.cfg.FetchTimeout)
	defer cancel()

	job, err := d.store.Fetch(fetchCtx, desc.JobID)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if len(job.Orders) == 0 {
		d.setState(desc.JobID, stateCompleted)
		d.log.Info().Str("job_id", desc.JobID).Msg("job has no orders, nothing to print")
		return nil
	}

	layout := d.cfg.Layout
	layout.PaperProfile = d.spooler.Profile()
	doc, err := receipt.Render(job.Orders, layout)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	return d.dispatchAttempt(desc, d.spooler, doc, ModeManual, len(job.Orders))
}
