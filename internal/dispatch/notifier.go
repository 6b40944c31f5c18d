package dispatch

import "github.com/rs/zerolog"

// Notifier surfaces print outcomes to the operator. The dispatcher only
// depends on this contract; the default implementation writes structured
// log lines, and the operator API exposes the pending set for polling.
type Notifier interface {
	// PrintSucceeded announces a completed job with its receipt count.
	PrintSucceeded(jobID string, orderCount int)
	// ManualPending announces a job waiting for an operator-triggered print.
	// The notification is persistent in the sense that the job stays in the
	// pending set until the operator resolves it.
	ManualPending(d Descriptor)
	// PrintFailed announces an attempt that failed before any print signal.
	PrintFailed(jobID string, orderCount int, err error)
}

type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) PrintSucceeded(jobID string, orderCount int) {
	n.log.Info().
		Str("job_id", jobID).
		Int("receipts", orderCount).
		Msg("receipts printed")
}

func (n *LogNotifier) ManualPending(d Descriptor) {
	n.log.Info().
		Str("job_id", d.JobID).
		Int("order_count", d.OrderCount).
		Str("source", d.Source).
		Msg("print job waiting for operator")
}

func (n *LogNotifier) PrintFailed(jobID string, orderCount int, err error) {
	n.log.Error().
		Str("job_id", jobID).
		Int("order_count", orderCount).
		Err(err).
		Msg("print failed, job left queued for retry")
}
