package events

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/dispatch"
)

// TypePrintJob is the discriminator value this agent reacts to; the channel
// is shared with unrelated notification types which are ignored here.
const TypePrintJob = "print_job"

// Envelope is the wire shape of a realtime channel message. Only Type is
// required; the remaining fields are meaningful for print_job messages.
type Envelope struct {
	Type       string `json:"type"`
	JobID      string `json:"job_id"`
	OrderCount int    `json:"order_count"`
	Source     string `json:"source"`
}

// Sink accepts job descriptors without blocking; the dispatcher satisfies it.
type Sink interface {
	Enqueue(d dispatch.Descriptor) bool
}

// Listener turns raw channel messages into dispatcher work. It is transport
// agnostic: the websocket and NATS sources both feed HandleMessage.
type Listener struct {
	sink Sink
	log  zerolog.Logger
}

func NewListener(sink Sink, log zerolog.Logger) *Listener {
	return &Listener{
		sink: sink,
		log:  log.With().Str("component", "listener").Logger(),
	}
}

// HandleMessage parses one inbound message, drops everything that is not a
// print_job event, and enqueues the descriptor. Malformed payloads are
// logged and dropped; the channel must keep being consumed regardless.
func (l *Listener) HandleMessage(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		l.log.Warn().Err(err).Msg("undecodable channel message dropped")
		return
	}
	if env.Type != TypePrintJob {
		return
	}
	if env.JobID == "" {
		l.log.Warn().Msg("print_job message without job_id dropped")
		return
	}

	if !l.sink.Enqueue(dispatch.Descriptor{
		JobID:      env.JobID,
		OrderCount: env.OrderCount,
		Source:     env.Source,
	}) {
		l.log.Warn().Str("job_id", env.JobID).Msg("dispatch queue full, notification dropped")
	}
}
