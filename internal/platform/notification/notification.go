// Package notification is the boundary to the platform's notification
// delivery service. The core only ever fires and forgets: a failed delivery
// is logged by the caller and never surfaces as a request error.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind identifies the notification template on the delivery side.
type Kind string

const (
	KindAccessRequested Kind = "access_requested"
	KindAccessApproved  Kind = "access_approved"
	KindAccessRejected  Kind = "access_rejected"
)

// Notifier delivers a notification to a user. Implementations must be safe
// for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind Kind, title, body string) error
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(ctx context.Context, userID string, kind Kind, title, body string) error

func (f NotifierFunc) Notify(ctx context.Context, userID string, kind Kind, title, body string) error {
	return f(ctx, userID, kind, title, body)
}

// LogNotifier writes notifications to the structured log instead of
// delivering them. Used in development and as the default when no delivery
// backend is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID string, kind Kind, title, body string) error {
	n.logger.Info().
		Str("notification_id", uuid.New().String()).
		Str("user_id", userID).
		Str("kind", string(kind)).
		Str("title", title).
		Str("body", body).
		Msg("notification")
	return nil
}

// Delivery is one recorded notification, kept by RecordingNotifier.
type Delivery struct {
	UserID string
	Kind   Kind
	Title  string
	Body   string
	SentAt time.Time
}

// RecordingNotifier keeps deliveries in memory. Test helper.
type RecordingNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// Fail makes every subsequent Notify return err.
func (n *RecordingNotifier) Fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *RecordingNotifier) Notify(_ context.Context, userID string, kind Kind, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.deliveries = append(n.deliveries, Delivery{
		UserID: userID, Kind: kind, Title: title, Body: body, SentAt: time.Now(),
	})
	return nil
}

func (n *RecordingNotifier) Deliveries() []Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}
