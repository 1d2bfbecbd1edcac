package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LifecycleService owns every post-creation transition: confirm, cancel,
// reschedule, the generic admin patch, and slot expiry. It is the only
// component allowed to change an appointment's status or slot_time.
//
// Status machine: pending -confirm-> confirmed, pending/confirmed -cancel->
// cancelled, cancelled -confirm-> confirmed. Cancelling a cancelled
// appointment matches zero rows and reports ErrNotCancellable.
type LifecycleService struct {
	repo   Repository
	events eventRecorder
	log    zerolog.Logger
}

func NewLifecycleService(repo Repository, pub EventPublisher, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		repo:   repo,
		events: eventRecorder{pub: pub, log: log},
		log:    log,
	}
}

// actingDoctorID resolves which doctor the caller acts as for appt. The id
// always comes from the authenticated identity, never from request input;
// admins act as the appointment's own doctor.
func actingDoctorID(actor CurrentUser, appt *Appointment) (int64, error) {
	if actor.IsAdmin {
		return appt.DoctorID, nil
	}
	if actor.OwnsDoctor(appt.DoctorID) {
		return appt.DoctorID, nil
	}
	return 0, ErrNotPermitted
}

// Confirm moves an appointment to confirmed. Confirming a cancelled
// appointment is legal (re-confirmation); confirming a confirmed one reports
// ErrNotConfirmable.
func (s *LifecycleService) Confirm(ctx context.Context, actor CurrentUser, appointmentID int64) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNotConfirmable
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	doctorID, err := actingDoctorID(actor, appt)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appointmentID, doctorID,
		[]AppointmentStatus{StatusPending, StatusCancelled}, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNotConfirmable
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.events.recordTx(ctx, s.repo, updated.ID, EventAppointmentConfirmed, map[string]any{
		"doctor_id":  updated.DoctorID,
		"patient_id": updated.PatientID,
	})
	s.events.publish(ctx, EventAppointmentConfirmed, map[string]any{
		"appointment_id": updated.ID,
		"patient_id":     updated.PatientID,
	})

	return updated, nil
}

// Cancel releases the slot and cancels the appointment in one transaction.
// If the transition guard matches no row the slot release rolls back too, so
// a repeated cancel cannot leave an available slot behind a live appointment.
func (s *LifecycleService) Cancel(ctx context.Context, actor CurrentUser, appointmentID int64) (*Appointment, error) {
	var updated *Appointment

	err := s.repo.WithTx(ctx, func(r Repository) error {
		appt, err := r.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrNotCancellable
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		doctorID, err := actingDoctorID(actor, appt)
		if err != nil {
			return err
		}

		slot, err := r.GetSlotForUpdate(ctx, appt.DoctorID, appt.SlotTime)
		switch {
		case err == nil:
			if err := r.SetSlotStatus(ctx, slot.ID, SlotAvailable); err != nil {
				return fmt.Errorf("release slot: %w", err)
			}
		case errors.Is(err, ErrSlotNotFound):
			// Appointments whose slot_time was moved via the admin patch may
			// have no matching slot row. Nothing to release.
		default:
			return fmt.Errorf("load slot: %w", err)
		}

		updated, err = r.UpdateAppointmentStatus(ctx, appointmentID, doctorID,
			[]AppointmentStatus{StatusPending, StatusConfirmed}, StatusCancelled)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrNotCancellable
			}
			return fmt.Errorf("cancel appointment: %w", err)
		}

		s.events.recordTx(ctx, r, updated.ID, EventAppointmentCancelled, map[string]any{
			"doctor_id":  updated.DoctorID,
			"patient_id": updated.PatientID,
			"slot_time":  updated.SlotTime,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.publish(ctx, EventAppointmentCancelled, map[string]any{
		"appointment_id": updated.ID,
		"patient_id":     updated.PatientID,
	})

	return updated, nil
}

// Reschedule moves an appointment to a different instant on the same doctor's
// calendar. The old slot is released and the new slot booked atomically with
// the slot_time update. A missing slot row at the target instant is created on
// the fly rather than rejected.
func (s *LifecycleService) Reschedule(ctx context.Context, actor CurrentUser, appointmentID int64, newSlotTime time.Time) (*Appointment, error) {
	if newSlotTime.IsZero() {
		return nil, ErrInvalidSlotTime
	}
	newSlotTime = newSlotTime.UTC()

	var updated *Appointment

	err := s.repo.WithTx(ctx, func(r Repository) error {
		appt, err := r.GetAppointmentByID(ctx, appointmentID)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		if !actor.IsAdmin && !actor.OwnsPatient(appt.PatientID) && !actor.OwnsDoctor(appt.DoctorID) {
			return ErrNotPermitted
		}

		oldSlotTime := appt.SlotTime

		target, err := r.GetSlotForUpdate(ctx, appt.DoctorID, newSlotTime)
		switch {
		case err == nil:
			if target.Status != SlotAvailable {
				return ErrSlotAlreadyBooked
			}
		case errors.Is(err, ErrSlotNotFound):
			target, err = r.CreateSlot(ctx, appt.DoctorID, newSlotTime)
			if err != nil {
				if errors.Is(err, ErrSlotExists) {
					// Raced with a concurrent create; treat as occupied.
					return ErrSlotAlreadyBooked
				}
				return fmt.Errorf("create slot: %w", err)
			}
		default:
			return fmt.Errorf("load target slot: %w", err)
		}

		// Direct conflict check against the appointment table, excluding this
		// appointment's own row.
		conflict, err := r.GetActiveAppointmentForSlot(ctx, appt.DoctorID, newSlotTime, appt.ID)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check conflicting appointment: %w", err)
		}
		if conflict != nil {
			return ErrSlotAlreadyBooked
		}

		oldSlot, err := r.GetSlotForUpdate(ctx, appt.DoctorID, oldSlotTime)
		switch {
		case err == nil:
			if err := r.SetSlotStatus(ctx, oldSlot.ID, SlotAvailable); err != nil {
				return fmt.Errorf("release old slot: %w", err)
			}
		case errors.Is(err, ErrSlotNotFound):
			// Tolerated for the same admin-patch reason as in Cancel.
		default:
			return fmt.Errorf("load old slot: %w", err)
		}

		if err := r.SetSlotStatus(ctx, target.ID, SlotBooked); err != nil {
			return fmt.Errorf("book new slot: %w", err)
		}

		updated, err = r.UpdateAppointmentSlotTime(ctx, appt.ID, newSlotTime)
		if err != nil {
			return fmt.Errorf("update slot_time: %w", err)
		}

		s.events.recordTx(ctx, r, updated.ID, EventAppointmentRescheduled, map[string]any{
			"doctor_id": updated.DoctorID,
			"from":      oldSlotTime,
			"to":        newSlotTime,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.publish(ctx, EventAppointmentRescheduled, map[string]any{
		"appointment_id": updated.ID,
		"patient_id":     updated.PatientID,
		"slot_time":      updated.SlotTime,
	})

	return updated, nil
}

// Update applies a generic field patch without any slot bookkeeping. Admin
// only; a slot_time changed through here leaves the slot table untouched,
// which is why it is kept off-limits to regular callers.
func (s *LifecycleService) Update(ctx context.Context, actor CurrentUser, appointmentID int64, patch AppointmentPatch) (*Appointment, error) {
	if !actor.IsAdmin {
		return nil, ErrNotPermitted
	}
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}
	if patch.SlotTime != nil {
		t := patch.SlotTime.UTC()
		patch.SlotTime = &t
	}

	if _, err := s.repo.GetAppointmentByID(ctx, appointmentID); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	updated, err := s.repo.UpdateAppointmentFields(ctx, appointmentID, patch)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) || errors.Is(err, ErrEmptyPatch) ||
			errors.Is(err, ErrSlotAlreadyBooked) {
			return nil, err
		}
		return nil, fmt.Errorf("patch appointment: %w", err)
	}

	return updated, nil
}

// ExpireStaleSlots marks available slots whose instant has passed as expired.
// Run periodically by the expiry worker; this is the only producer of the
// expired status.
func (s *LifecycleService) ExpireStaleSlots(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := time.Now().Add(-grace).UTC()

	n, err := s.repo.ExpireSlotsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire stale slots: %w", err)
	}

	if n > 0 {
		s.log.Info().Int64("expired", n).Time("cutoff", cutoff).Msg("expired stale slots")
	}
	return n, nil
}
