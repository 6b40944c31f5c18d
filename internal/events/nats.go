package events

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const DefaultSubject = "printjobs.events"

type NATSConfig struct {
	URL     string
	Subject string
}

// NATSSource subscribes to the realtime channel bridged over NATS. The nats
// client owns reconnection, so unlike the websocket source there is no
// retry loop here.
type NATSSource struct {
	cfg      NATSConfig
	listener *Listener
	log      zerolog.Logger

	conn *nats.Conn
	sub  *nats.Subscription
}

func NewNATSSource(cfg NATSConfig, listener *Listener, log zerolog.Logger) *NATSSource {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	return &NATSSource{
		cfg:      cfg,
		listener: listener,
		log:      log.With().Str("component", "nats_source").Logger(),
	}
}

func (s *NATSSource) Start() error {
	conn, err := nats.Connect(s.cfg.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	s.conn = conn

	sub, err := conn.Subscribe(s.cfg.Subject, func(msg *nats.Msg) {
		s.listener.HandleMessage(msg.Data)
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("subscribe %s: %w", s.cfg.Subject, err)
	}
	s.sub = sub

	s.log.Info().Str("url", s.cfg.URL).Str("subject", s.cfg.Subject).Msg("subscribed to NATS channel")
	return nil
}

func (s *NATSSource) Stop() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
