package printer

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

// fakeThermalUnit answers the status probe with a fixed state byte and
// captures everything else written to it.
type fakeThermalUnit struct {
	listener   net.Listener
	state      byte
	replyDelay time.Duration // pause between reply bytes
	received   chan string
}

func newFakeThermalUnit(t *testing.T, state byte) *fakeThermalUnit {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	unit := &fakeThermalUnit{
		listener: listener,
		state:    state,
		received: make(chan string, 16),
	}
	go unit.serve()
	t.Cleanup(func() { listener.Close() })
	return unit
}

func (u *fakeThermalUnit) serve() {
	for {
		conn, err := u.listener.Accept()
		if err != nil {
			return
		}
		go u.handle(conn)
	}
}

func (u *fakeThermalUnit) handle(conn net.Conn) {
	defer conn.Close()
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		data := string(buf[:n])
		for strings.Contains(data, statusCommand) {
			data = strings.Replace(data, statusCommand, "", 1)
			for _, b := range []byte{u.state, '@', '@', '@'} {
				if u.replyDelay > 0 {
					time.Sleep(u.replyDelay)
				}
				conn.Write([]byte{b})
			}
		}
		if data != "" {
			u.received <- data
		}
	}
}

func (u *fakeThermalUnit) addr(t *testing.T) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(u.listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}

func hardwareFor(t *testing.T, unit *fakeThermalUnit) *Hardware {
	t.Helper()
	host, port := unit.addr(t)
	h := NewHardware(HardwareConfig{
		Address:           host,
		Port:              port,
		PaperProfile:      receipt.ProfileThermal80,
		DialTimeout:       2 * time.Second,
		HeartbeatInterval: time.Hour, // tests drive probes explicitly
	}, zerolog.Nop())
	t.Cleanup(h.Stop)
	return h
}

// TestHardwareProbeSetsConnectivity verifies the heartbeat probe flips the
// connectivity flag based on the device state byte.
func TestHardwareProbeSetsConnectivity(t *testing.T) {
	unit := newFakeThermalUnit(t, '@')
	h := hardwareFor(t, unit)

	if h.Connected() {
		t.Fatal("unprobed adapter should report disconnected")
	}
	h.probe()
	if !h.Connected() {
		t.Fatal("ready device should report connected")
	}
}

// TestHardwareProbeErrorState verifies a device in error state is not
// offered for auto-print.
func TestHardwareProbeErrorState(t *testing.T) {
	unit := newFakeThermalUnit(t, 'E')
	h := hardwareFor(t, unit)

	h.probe()
	if h.Connected() {
		t.Fatal("device in error state must not report connected")
	}
}

// TestHardwarePrintStreamsAndConfirms verifies the document reaches the
// device and the ready follow-up probe confirms the attempt.
func TestHardwarePrintStreamsAndConfirms(t *testing.T) {
	unit := newFakeThermalUnit(t, '@')
	h := hardwareFor(t, unit)

	doc, err := receipt.Render(
		[]receipt.OrderSnapshot{{OrderID: "O1", RecipientName: "Ada"}},
		receipt.LayoutConfig{PaperProfile: receipt.ProfileThermal80},
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	attempt, err := h.Print(context.Background(), doc)
	if err != nil {
		t.Fatalf("print: %v", err)
	}

	select {
	case payload := <-unit.received:
		if !strings.Contains(payload, "Ada") {
			t.Fatalf("device did not receive rendered block: %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device received nothing")
	}

	select {
	case <-attempt.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("ready device should confirm the attempt")
	}
}

// TestHardwareConcurrentProbesDoNotCrossReplies drives the status exchange
// from several goroutines at once, the way the heartbeat and a post-print
// confirmation poll overlap in production. The device answers slowly, one
// byte at a time, with an error state byte followed by ready-looking filler;
// a reader consuming another exchange's filler would falsely see '@'.
func TestHardwareConcurrentProbesDoNotCrossReplies(t *testing.T) {
	unit := newFakeThermalUnit(t, 'E')
	unit.replyDelay = 5 * time.Millisecond
	h := hardwareFor(t, unit)

	const probes = 8
	results := make(chan byte, probes)
	errs := make(chan error, probes)

	for i := 0; i < probes; i++ {
		go func() {
			state, err := h.queryState()
			if err != nil {
				errs <- err
				return
			}
			results <- state
		}()
	}

	for i := 0; i < probes; i++ {
		select {
		case state := <-results:
			if state != 'E' {
				t.Fatalf("probe read state %q, want 'E'", state)
			}
		case err := <-errs:
			t.Fatalf("probe failed: %v", err)
		case <-time.After(5 * time.Second):
			t.Fatal("probe did not return")
		}
	}
}

// TestHardwarePrintConnectionRefused verifies a dead device fails at
// dispatch time, before any attempt exists.
func TestHardwarePrintConnectionRefused(t *testing.T) {
	unit := newFakeThermalUnit(t, '@')
	host, port := unit.addr(t)
	unit.listener.Close()

	h := NewHardware(HardwareConfig{
		Address:           host,
		Port:              port,
		DialTimeout:       time.Second,
		HeartbeatInterval: time.Hour,
	}, zerolog.Nop())
	t.Cleanup(h.Stop)

	doc, _ := receipt.Render(
		[]receipt.OrderSnapshot{{OrderID: "O1", RecipientName: "Ada"}},
		receipt.LayoutConfig{PaperProfile: receipt.ProfileThermal80},
	)
	if _, err := h.Print(context.Background(), doc); err == nil {
		t.Fatal("expected dispatch error against closed port")
	}
}
