package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BookingService is the only entry point that creates appointments. Everything
// that claims a slot goes through Book, so the slot flip and the insert always
// land in the same transaction.
type BookingService struct {
	repo   Repository
	events eventRecorder
	log    zerolog.Logger
}

func NewBookingService(repo Repository, pub EventPublisher, log zerolog.Logger) *BookingService {
	return &BookingService{
		repo:   repo,
		events: eventRecorder{pub: pub, log: log},
		log:    log,
	}
}

// Book reserves the slot at slotTime for the patient and creates a pending
// appointment. The slot row is locked for the duration of the transaction, so
// of two concurrent attempts one commits and the other either sees the slot
// already booked or waits and then fails the availability check.
func (s *BookingService) Book(ctx context.Context, actor CurrentUser, doctorID, patientID int64, slotTime time.Time, complain *string) (*AppointmentDetail, error) {
	if slotTime.IsZero() {
		return nil, ErrInvalidSlotTime
	}
	slotTime = slotTime.UTC()

	// Patients book for themselves; only admins may book on behalf of others.
	if !actor.IsAdmin && !actor.OwnsPatient(patientID) {
		return nil, ErrNotPermitted
	}

	var created *Appointment

	err := s.repo.WithTx(ctx, func(r Repository) error {
		if _, err := r.GetDoctorByID(ctx, doctorID); err != nil {
			if errors.Is(err, ErrDoctorNotFound) {
				return err
			}
			return fmt.Errorf("load doctor: %w", err)
		}

		if _, err := r.GetPatientByID(ctx, patientID); err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return err
			}
			return fmt.Errorf("load patient: %w", err)
		}

		slot, err := r.GetSlotForUpdate(ctx, doctorID, slotTime)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return ErrSlotNotAvailable
			}
			return fmt.Errorf("load slot: %w", err)
		}
		if slot.Status != SlotAvailable {
			return ErrSlotNotAvailable
		}

		// Defensive second guard: an active appointment should never exist
		// against an available slot, but both checks stay independent.
		existing, err := r.GetActiveAppointmentForSlot(ctx, doctorID, slotTime, 0)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check active appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotAlreadyBooked
		}

		if err := r.SetSlotStatus(ctx, slot.ID, SlotBooked); err != nil {
			return fmt.Errorf("book slot: %w", err)
		}

		appt, err := r.CreateAppointment(ctx, doctorID, patientID, slotTime, complain)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt

		s.events.recordTx(ctx, r, appt.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID,
			"patient_id": patientID,
			"slot_time":  slotTime,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.publish(ctx, EventAppointmentBooked, map[string]any{
		"appointment_id": created.ID,
		"doctor_id":      doctorID,
		"patient_id":     patientID,
		"slot_time":      slotTime,
	})

	detail, err := s.repo.GetAppointmentDetail(ctx, created.ID)
	if err != nil {
		// The booking committed; fall back to the bare row rather than
		// reporting failure for a read-side miss.
		s.log.Warn().Err(err).Int64("appointment_id", created.ID).Msg("load booked appointment detail")
		return &AppointmentDetail{Appointment: *created}, nil
	}
	return detail, nil
}

// CreateAvailability opens a new bookable slot for a doctor. Doctors may only
// open slots on their own calendar; admins may open slots for anyone.
func (s *BookingService) CreateAvailability(ctx context.Context, actor CurrentUser, doctorID int64, availableAt time.Time) (*Slot, error) {
	if availableAt.IsZero() {
		return nil, ErrInvalidSlotTime
	}
	availableAt = availableAt.UTC()

	if !actor.IsAdmin && !actor.OwnsDoctor(doctorID) {
		return nil, ErrNotPermitted
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	// Pre-check for a friendlier error; the unique constraint still backstops
	// a concurrent create.
	if _, err := s.repo.GetSlot(ctx, doctorID, availableAt); err == nil {
		return nil, ErrSlotExists
	} else if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("check existing slot: %w", err)
	}

	slot, err := s.repo.CreateSlot(ctx, doctorID, availableAt)
	if err != nil {
		if errors.Is(err, ErrSlotExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.events.recordTx(ctx, s.repo, 0, EventSlotCreated, map[string]any{
		"doctor_id":    doctorID,
		"available_at": availableAt,
	})
	s.events.publish(ctx, EventSlotCreated, map[string]any{
		"slot_id":      slot.ID,
		"doctor_id":    doctorID,
		"available_at": availableAt,
	})

	return slot, nil
}
