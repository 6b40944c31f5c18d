package printer

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

const (
	defaultTCPPort          = 9100
	defaultDialTimeout      = 5 * time.Second
	defaultHeartbeatPeriod  = 15 * time.Second
	defaultConfirmPollEvery = 500 * time.Millisecond

	// Status probe understood by the supported thermal units: one control
	// sequence out, four state bytes back.
	statusCommand        = "\x1b!?"
	statusResponseLength = 4

	// Slip separation on continuous paper.
	feedSequence = "\n\n\n\n"
)

var readyStates = map[byte]bool{
	'@': true, // normal
	'S': true, // standby
	'I': true, // idle
}

type HardwareConfig struct {
	Address           string
	Port              int
	PaperProfile      receipt.PaperProfile
	DialTimeout       time.Duration
	HeartbeatInterval time.Duration
}

// Hardware drives a locally attached thermal unit over TCP. Connected is
// answered from the last heartbeat probe, not a live dial, so the dispatcher
// can take the auto/manual decision without blocking on the network.
type Hardware struct {
	cfg HardwareConfig
	log zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	online bool

	// wireMu serializes whole command/response exchanges on the connection.
	// The heartbeat probe and a post-print confirmation poll run on separate
	// goroutines; without this one could read the other's reply bytes.
	wireMu sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewHardware(cfg HardwareConfig, log zerolog.Logger) *Hardware {
	if cfg.Port == 0 {
		cfg.Port = defaultTCPPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaultHeartbeatPeriod
	}
	if !cfg.PaperProfile.Valid() || cfg.PaperProfile == receipt.ProfileStandard {
		cfg.PaperProfile = receipt.ProfileThermal80
	}
	return &Hardware{
		cfg:    cfg,
		log:    log.With().Str("component", "hardware_printer").Logger(),
		stopCh: make(chan struct{}),
	}
}

func (h *Hardware) Name() string { return "hardware" }

// Profile is the paper hint the dispatcher renders with for this device.
func (h *Hardware) Profile() receipt.PaperProfile { return h.cfg.PaperProfile }

func (h *Hardware) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

// Start launches the heartbeat loop. The first probe runs immediately so
// auto-print is available as soon as the device answers.
func (h *Hardware) Start() {
	h.wg.Add(1)
	go h.heartbeatLoop()
}

func (h *Hardware) Stop() {
	close(h.stopCh)
	h.wg.Wait()

	h.mu.Lock()
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
	h.mu.Unlock()
}

func (h *Hardware) heartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	h.probe()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.probe()
		}
	}
}

func (h *Hardware) probe() {
	state, err := h.queryState()
	h.mu.Lock()
	was := h.online
	h.online = err == nil && readyStates[state]
	now := h.online
	h.mu.Unlock()

	if was != now {
		h.log.Info().Bool("connected", now).Msg("printer connectivity changed")
	}
}

func (h *Hardware) connect() (net.Conn, error) {
	h.mu.Lock()
	if h.conn != nil {
		conn := h.conn
		h.mu.Unlock()
		return conn, nil
	}
	h.mu.Unlock()

	address := fmt.Sprintf("%s:%d", h.cfg.Address, h.cfg.Port)
	conn, err := net.DialTimeout("tcp", address, h.cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
	return conn, nil
}

func (h *Hardware) disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
}

// queryState asks the device for its state byte. Any transport failure drops
// the cached connection so the next probe redials.
func (h *Hardware) queryState() (byte, error) {
	h.wireMu.Lock()
	defer h.wireMu.Unlock()

	conn, err := h.connect()
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(h.cfg.DialTimeout)
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte(statusCommand)); err != nil {
		h.disconnect()
		return 0, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	response := make([]byte, statusResponseLength)
	total := 0
	for total < statusResponseLength {
		n, err := conn.Read(response[total:])
		if err != nil {
			h.disconnect()
			return 0, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		}
		total += n
	}

	return response[0], nil
}

// Print streams the rendered document to the device. On write success it
// returns an attempt handle and confirms it in the background once the unit
// reports ready again; a device that never answers the follow-up probe
// leaves the attempt to the tracker's timeout.
func (h *Hardware) Print(ctx context.Context, doc *receipt.Document) (*Attempt, error) {
	if doc == nil || doc.BlockCount() == 0 {
		return nil, ErrEmptyDocument
	}

	payload := strings.ReplaceAll(doc.Content(), receipt.ThermalPageBreak, feedSequence)
	payload += feedSequence

	h.wireMu.Lock()
	conn, err := h.connect()
	if err != nil {
		h.wireMu.Unlock()
		return nil, err
	}

	deadline := time.Now().Add(h.cfg.DialTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)

	if _, err := conn.Write([]byte(payload)); err != nil {
		h.disconnect()
		h.wireMu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	h.wireMu.Unlock()

	attempt := NewAttempt()
	h.wg.Add(1)
	go h.awaitReady(ctx, attempt)
	return attempt, nil
}

// awaitReady polls the device until it reports a ready state again, which is
// the closest thing the wire protocol has to a "job finished" callback.
func (h *Hardware) awaitReady(ctx context.Context, attempt *Attempt) {
	defer h.wg.Done()

	ticker := time.NewTicker(defaultConfirmPollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			state, err := h.queryState()
			if err != nil {
				// The print bytes were already accepted; silence here is
				// the tracker's timeout case, not a failure.
				return
			}
			if readyStates[state] {
				attempt.Confirm()
				return
			}
		}
	}
}
