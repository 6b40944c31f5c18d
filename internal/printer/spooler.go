package printer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

type SpoolerConfig struct {
	// Command hands a document file to the host print system, e.g. "lp" or
	// "lpr". Args are inserted before the file path.
	Command      string
	Args         []string
	PaperProfile receipt.PaperProfile
}

// Spooler hands rendered documents to the operating system's print spooler.
// It is always "connected": availability of the default printer is the host
// system's concern, and failures surface when the spool command exits.
type Spooler struct {
	cfg SpoolerConfig
	log zerolog.Logger
	wg  sync.WaitGroup
}

func NewSpooler(cfg SpoolerConfig, log zerolog.Logger) *Spooler {
	if cfg.Command == "" {
		cfg.Command = "lp"
	}
	if !cfg.PaperProfile.Valid() {
		cfg.PaperProfile = receipt.ProfileStandard
	}
	return &Spooler{
		cfg: cfg,
		log: log.With().Str("component", "spooler").Logger(),
	}
}

func (s *Spooler) Name() string { return "spooler" }

func (s *Spooler) Connected() bool { return true }

func (s *Spooler) Profile() receipt.PaperProfile { return s.cfg.PaperProfile }

// Print writes the document to a temp file and runs the spool command. The
// command's clean exit is the "after print" signal: the host accepted the
// document, which is as much confirmation as a spooler gives.
func (s *Spooler) Print(ctx context.Context, doc *receipt.Document) (*Attempt, error) {
	if doc == nil || doc.BlockCount() == 0 {
		return nil, ErrEmptyDocument
	}

	file, err := os.CreateTemp("", "receipt-*"+extensionFor(doc.ContentType))
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	path := file.Name()

	if _, err := file.WriteString(doc.Content()); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write spool file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close spool file: %w", err)
	}

	// The command is deliberately not bound to ctx: once the document is
	// handed off, cancellation upstream (tracker timeout, shutdown) must not
	// kill a spool job the host may already be printing.
	args := append(append([]string{}, s.cfg.Args...), path)
	cmd := exec.Command(s.cfg.Command, args...)

	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("start %s: %w", s.cfg.Command, err)
	}

	attempt := NewAttempt()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer os.Remove(path)

		if err := cmd.Wait(); err != nil {
			attempt.Fail(fmt.Errorf("%s exited: %w", s.cfg.Command, err))
			return
		}
		attempt.Confirm()
	}()

	return attempt, nil
}

// Wait blocks until outstanding spool commands finished; used on shutdown.
func (s *Spooler) Wait() {
	s.wg.Wait()
}

func extensionFor(contentType string) string {
	if contentType == "text/html" {
		return ".html"
	}
	return ".txt"
}
