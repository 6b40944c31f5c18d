package printer

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmankuan/ChiPiLink-sub010/internal/receipt"
)

func testDocument() *receipt.Document {
	doc, err := receipt.Render(
		[]receipt.OrderSnapshot{{OrderID: "O1", RecipientName: "Ada"}},
		receipt.LayoutConfig{PaperProfile: receipt.ProfileStandard},
	)
	if err != nil {
		panic(err)
	}
	return doc
}

// TestSpoolerConfirmsOnCleanExit verifies the command's clean exit acts as
// the after-print signal.
func TestSpoolerConfirmsOnCleanExit(t *testing.T) {
	s := NewSpooler(SpoolerConfig{Command: "true"}, zerolog.Nop())

	attempt, err := s.Print(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("print: %v", err)
	}

	select {
	case <-attempt.Done():
	case err := <-attempt.Failed():
		t.Fatalf("attempt failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("attempt never confirmed")
	}
	s.Wait()
}

// TestSpoolerFailsOnCommandError verifies a non-zero exit resolves the
// attempt as failed, not confirmed.
func TestSpoolerFailsOnCommandError(t *testing.T) {
	s := NewSpooler(SpoolerConfig{Command: "false"}, zerolog.Nop())

	attempt, err := s.Print(context.Background(), testDocument())
	if err != nil {
		t.Fatalf("print: %v", err)
	}

	select {
	case err := <-attempt.Failed():
		if err == nil {
			t.Fatal("expected failure error")
		}
	case <-attempt.Done():
		t.Fatal("failed spool must not confirm")
	case <-time.After(5 * time.Second):
		t.Fatal("attempt never resolved")
	}
	s.Wait()
}

// TestSpoolerCommandOutlivesCallerContext verifies cancelling the dispatch
// context after handoff does not kill a spool command that is still running:
// the attempt must resolve from the command's own exit, as confirmed.
func TestSpoolerCommandOutlivesCallerContext(t *testing.T) {
	s := NewSpooler(SpoolerConfig{Command: "sh", Args: []string{"-c", "sleep 0.2"}}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	attempt, err := s.Print(ctx, testDocument())
	if err != nil {
		t.Fatalf("print: %v", err)
	}
	cancel()

	select {
	case <-attempt.Done():
	case err := <-attempt.Failed():
		t.Fatalf("cancelled context killed the spool command: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("attempt never resolved")
	}
	s.Wait()
}

// TestSpoolerRejectsMissingCommand verifies dispatch errors are synchronous.
func TestSpoolerRejectsMissingCommand(t *testing.T) {
	s := NewSpooler(SpoolerConfig{Command: "definitely-not-a-real-spooler"}, zerolog.Nop())

	if _, err := s.Print(context.Background(), testDocument()); err == nil {
		t.Fatal("expected start error for missing command")
	}
}

// TestSpoolerRejectsEmptyDocument guards the empty-document edge.
func TestSpoolerRejectsEmptyDocument(t *testing.T) {
	s := NewSpooler(SpoolerConfig{Command: "true"}, zerolog.Nop())

	if _, err := s.Print(context.Background(), &receipt.Document{}); err != ErrEmptyDocument {
		t.Fatalf("err = %v, want ErrEmptyDocument", err)
	}
}
