package scheduling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventSlotCreated            = "SLOT_CREATED"
)

// EventPublisher fans lifecycle events out to external collaborators
// (notifications, chat). Publishing is best-effort; the audit row in
// appointment_events is the durable record.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload map[string]any)
}

// NopPublisher drops events. Used by tests and tools that have no event bus.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, map[string]any) {}

// eventRecorder writes the audit row and, once the surrounding transaction has
// committed, pushes the event to the publisher. recordTx must be called with
// the transaction-scoped repository so a rollback also discards the audit row.
type eventRecorder struct {
	pub EventPublisher
	log zerolog.Logger
}

func (e eventRecorder) recordTx(ctx context.Context, repo Repository, appointmentID int64, eventType string, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["event_id"] = uuid.NewString()

	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	var apptID *int64
	if appointmentID != 0 {
		id := appointmentID
		apptID = &id
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: apptID,
		Payload:       data,
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.InsertEvent(ctx, ev); err != nil {
		e.log.Error().Err(err).Str("event", eventType).Int64("appointment_id", appointmentID).Msg("insert event log")
	}
}

func (e eventRecorder) publish(ctx context.Context, eventType string, payload map[string]any) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(ctx, eventType, payload)
}
