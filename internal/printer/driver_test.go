package printer

import (
	"errors"
	"testing"
	"time"
)

// TestAttemptConfirmOnce verifies an attempt resolves exactly once.
func TestAttemptConfirmOnce(t *testing.T) {
	a := NewAttempt()

	a.Confirm()
	a.Confirm()
	a.Fail(errors.New("late failure"))

	select {
	case <-a.Done():
	default:
		t.Fatal("attempt should be confirmed")
	}
	select {
	case err := <-a.Failed():
		t.Fatalf("confirmed attempt also failed: %v", err)
	default:
	}
}

// TestAttemptFailWinsWhenFirst verifies a failure recorded before any signal
// is observable and blocks a later confirm.
func TestAttemptFailWinsWhenFirst(t *testing.T) {
	a := NewAttempt()

	a.Fail(errors.New("device rejected"))
	a.Confirm()

	select {
	case <-a.Done():
		t.Fatal("failed attempt must not confirm")
	default:
	}
	select {
	case err := <-a.Failed():
		if err == nil {
			t.Fatal("expected failure error")
		}
	case <-time.After(time.Second):
		t.Fatal("failure was not delivered")
	}
}
