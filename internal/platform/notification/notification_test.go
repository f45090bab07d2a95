package notification

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(zerolog.New(os.Stderr))
	if err := n.Notify(context.Background(), "12345678", KindAccessRequested, "t", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecordingNotifier_Records(t *testing.T) {
	n := NewRecordingNotifier()
	if err := n.Notify(context.Background(), "u1", KindAccessApproved, "approved", "body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := n.Deliveries()
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got[0].UserID != "u1" || got[0].Kind != KindAccessApproved {
		t.Errorf("unexpected delivery: %+v", got[0])
	}
}

func TestRecordingNotifier_Fail(t *testing.T) {
	n := NewRecordingNotifier()
	n.Fail(errors.New("smtp down"))
	if err := n.Notify(context.Background(), "u1", KindAccessRejected, "t", "b"); err == nil {
		t.Fatal("expected error")
	}
	if len(n.Deliveries()) != 0 {
		t.Error("expected no deliveries recorded")
	}
}
