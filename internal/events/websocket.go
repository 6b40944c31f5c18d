package events

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	defaultReconnectMin = time.Second
	defaultReconnectMax = 30 * time.Second
	wsHandshakeTimeout  = 10 * time.Second
)

type WebsocketConfig struct {
	URL          string
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// WebsocketSource keeps a long-lived subscription to the realtime channel,
// reconnecting with capped exponential backoff. Every text message is handed
// to the listener; consumption never waits on print completion.
type WebsocketSource struct {
	cfg      WebsocketConfig
	listener *Listener
	log      zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebsocketSource(cfg WebsocketConfig, listener *Listener, log zerolog.Logger) *WebsocketSource {
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = defaultReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = defaultReconnectMax
	}
	return &WebsocketSource{
		cfg:      cfg,
		listener: listener,
		log:      log.With().Str("component", "ws_source").Str("url", cfg.URL).Logger(),
		stopCh:   make(chan struct{}),
	}
}

func (s *WebsocketSource) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *WebsocketSource) Stop() {
	close(s.stopCh)

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *WebsocketSource) run() {
	defer s.wg.Done()

	backoff := s.cfg.ReconnectMin
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		connected, err := s.consume()
		if connected {
			backoff = s.cfg.ReconnectMin
		}
		if err != nil {
			s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("channel connection lost")
		}

		select {
		case <-s.stopCh:
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.cfg.ReconnectMax {
			backoff = s.cfg.ReconnectMax
		}
	}
}

// consume dials once and reads until the connection drops. It reports
// whether a connection was ever established so the caller can reset the
// reconnect backoff.
func (s *WebsocketSource) consume() (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.Dial(s.cfg.URL, nil)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.log.Info().Msg("connected to realtime channel")

	defer func() {
		conn.Close()
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
				return true, nil
			default:
				return true, err
			}
		}
		s.listener.HandleMessage(data)
	}
}
