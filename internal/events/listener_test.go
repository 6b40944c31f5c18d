package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/dispatch"
)

type captureSink struct {
	mu    sync.Mutex
	descs []dispatch.Descriptor
}

func (s *captureSink) Enqueue(d dispatch.Descriptor) bool {
	s.mu.Lock()
	s.descs = append(s.descs, d)
	s.mu.Unlock()
	return true
}

func (s *captureSink) all() []dispatch.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dispatch.Descriptor(nil), s.descs...)
}

// TestListenerFiltersMessageTypes verifies only print_job messages reach the
// sink and unrelated or malformed traffic is ignored.
func TestListenerFiltersMessageTypes(t *testing.T) {
	sink := &captureSink{}
	l := NewListener(sink, zerolog.Nop())

	l.HandleMessage([]byte(`{"type":"chat_message","job_id":"X"}`))
	l.HandleMessage([]byte(`{"type":"wallet_update"}`))
	l.HandleMessage([]byte(`not json at all`))
	l.HandleMessage([]byte(`{"type":"print_job"}`)) // missing job_id
	l.HandleMessage([]byte(`{"type":"print_job","job_id":"J1","order_count":3,"source":"external_trigger"}`))

	descs := sink.all()
	if len(descs) != 1 {
		t.Fatalf("descriptors = %d, want 1", len(descs))
	}
	d := descs[0]
	if d.JobID != "J1" || d.OrderCount != 3 || d.Source != "external_trigger" {
		t.Fatalf("unexpected descriptor: %+v", d)
	}
}

// TestWebsocketSourceDeliversAndReconnects runs a real websocket server that
// drops the first connection after one message, then serves a second one.
func TestWebsocketSourceDeliversAndReconnects(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	conns := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		msg := `{"type":"print_job","job_id":"J` + string(rune('0'+n)) + `","order_count":1,"source":"manual"}`
		conn.WriteMessage(websocket.TextMessage, []byte(msg))
		if n == 1 {
			conn.Close() // force a reconnect
			return
		}
		// Keep the second connection open until the client walks away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := &captureSink{}
	source := NewWebsocketSource(WebsocketConfig{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		ReconnectMin: 10 * time.Millisecond,
		ReconnectMax: 50 * time.Millisecond,
	}, NewListener(sink, zerolog.Nop()), zerolog.Nop())

	source.Start()
	defer source.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.all()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	descs := sink.all()
	if len(descs) < 2 {
		t.Fatalf("descriptors = %d, want at least 2 (one per connection)", len(descs))
	}
	if descs[0].JobID != "J1" || descs[1].JobID != "J2" {
		t.Fatalf("unexpected job ids: %+v", descs)
	}
}
