// Package notify defines the outbound notification boundary. The core emits
// plain event structs; delivery (push channel, email, webhook) is entirely
// external and out of scope.
package notify

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/trustflow/types"
)

// EventType identifies a notification event.
type EventType string

const (
	EventApprovalAlert     EventType = "approval_alert"
	EventTrustLevelChanged EventType = "trust_level_changed"
	EventTaskBlocked       EventType = "task_blocked"
	EventAnomalyDetected   EventType = "anomaly_detected"
)

// Event is a notification emitted by the core.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// ApprovalAlert is emitted when a new approval request needs a human decision.
type ApprovalAlert struct {
	RequestID  string    `json:"request_id"`
	SubjectID  string    `json:"subject_id"`
	Action     string    `json:"action"`
	RiskLevel  string    `json:"risk_level"`
	ExpiresAt  time.Time `json:"expires_at"`
	Timestamp_ time.Time `json:"timestamp"`
}

func (e *ApprovalAlert) Type() EventType      { return EventApprovalAlert }
func (e *ApprovalAlert) Timestamp() time.Time { return e.Timestamp_ }

// TrustLevelChanged is emitted on every promotion or demotion.
type TrustLevelChanged struct {
	SubjectID    string           `json:"subject_id"`
	From         types.TrustLevel `json:"from"`
	To           types.TrustLevel `json:"to"`
	Reason       string           `json:"reason"`
	AuthorizedBy string           `json:"authorized_by,omitempty"`
	Override     bool             `json:"override,omitempty"`
	Timestamp_   time.Time        `json:"timestamp"`
}

func (e *TrustLevelChanged) Type() EventType      { return EventTrustLevelChanged }
func (e *TrustLevelChanged) Timestamp() time.Time { return e.Timestamp_ }

// TaskBlocked is emitted when a submitted task has no eligible agent.
type TaskBlocked struct {
	TaskID     string    `json:"task_id"`
	Reason     string    `json:"reason"`
	Timestamp_ time.Time `json:"timestamp"`
}

func (e *TaskBlocked) Type() EventType      { return EventTaskBlocked }
func (e *TaskBlocked) Timestamp() time.Time { return e.Timestamp_ }

// AnomalyDetected is emitted when a behavioral anomaly is recorded for a subject.
type AnomalyDetected struct {
	SubjectID  string    `json:"subject_id"`
	Detector   string    `json:"detector"`
	Detail     string    `json:"detail"`
	Timestamp_ time.Time `json:"timestamp"`
}

func (e *AnomalyDetected) Type() EventType      { return EventAnomalyDetected }
func (e *AnomalyDetected) Timestamp() time.Time { return e.Timestamp_ }

// Notifier receives events from the core. Implementations must not block.
type Notifier interface {
	Notify(event Event)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// LogNotifier writes events to the structured log. Useful as a default sink
// and in tests.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(zap.String("component", "notifier"))}
}

func (n *LogNotifier) Notify(event Event) {
	n.logger.Info("notification",
		zap.String("event_type", string(event.Type())),
		zap.Time("event_time", event.Timestamp()),
		zap.Any("event", event),
	)
}

// Bus fans events out to subscribers over a buffered channel. Sends never
// block: if the buffer is full the event is dropped with a warning, since
// notification delivery is best-effort by contract.
type Bus struct {
	ch     chan Event
	logger *zap.Logger
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		ch:     make(chan Event, buffer),
		logger: logger.With(zap.String("component", "notify_bus")),
	}
}

// Notify implements Notifier.
func (b *Bus) Notify(event Event) {
	select {
	case b.ch <- event:
	default:
		b.logger.Warn("notification buffer full, event dropped",
			zap.String("event_type", string(event.Type())),
		)
	}
}

// Events returns the receive side of the bus.
func (b *Bus) Events() <-chan Event {
	return b.ch
}
