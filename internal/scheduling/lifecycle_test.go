package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newLifecycleService(repo Repository) *LifecycleService {
	return NewLifecycleService(repo, NopPublisher{}, zerolog.Nop())
}

func TestConfirmPending(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	appt := repo.addAppointment(doc.ID, pat.ID, at, StatusPending)

	svc := newLifecycleService(repo)
	updated, err := svc.Confirm(context.Background(), doctorActor(doc.ID), appt.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
	if got := repo.eventTypes(); len(got) != 1 || got[0] != EventAppointmentConfirmed {
		t.Errorf("events = %v, want [%s]", got, EventAppointmentConfirmed)
	}
}

func TestConfirmCancelledIsReconfirmation(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	appt := repo.addAppointment(doc.ID, pat.ID, time.Now().UTC(), StatusCancelled)

	svc := newLifecycleService(repo)
	updated, err := svc.Confirm(context.Background(), doctorActor(doc.ID), appt.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
}

func TestConfirmAlreadyConfirmed(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	appt := repo.addAppointment(doc.ID, pat.ID, time.Now().UTC(), StatusConfirmed)

	svc := newLifecycleService(repo)
	_, err := svc.Confirm(context.Background(), doctorActor(doc.ID), appt.ID)
	if !errors.Is(err, ErrNotConfirmable) {
		t.Fatalf("err = %v, want ErrNotConfirmable", err)
	}
}

func TestConfirmMissingAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newLifecycleService(repo)
	_, err := svc.Confirm(context.Background(), adminActor(), 404)
	if !errors.Is(err, ErrNotConfirmable) {
		t.Fatalf("err = %v, want ErrNotConfirmable", err)
	}
}

func TestConfirmByForeignDoctorDenied(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	other := repo.addDoctor("Ada", "Lovelace")
	pat := repo.addPatient("Alan", "Turing")
	appt := repo.addAppointment(doc.ID, pat.ID, time.Now().UTC(), StatusPending)

	svc := newLifecycleService(repo)
	_, err := svc.Confirm(context.Background(), doctorActor(other.ID), appt.ID)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	if repo.appointments[appt.ID].Status != StatusPending {
		t.Errorf("status changed by denied confirm")
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	slot := repo.addSlot(doc.ID, at, SlotBooked)
	appt := repo.addAppointment(doc.ID, pat.ID, at, StatusConfirmed)

	svc := newLifecycleService(repo)
	updated, err := svc.Cancel(context.Background(), doctorActor(doc.ID), appt.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", updated.Status)
	}
	if repo.slots[slot.ID].Status != SlotAvailable {
		t.Errorf("slot status = %s, want available", repo.slots[slot.ID].Status)
	}
	if got := repo.eventTypes(); len(got) != 1 || got[0] != EventAppointmentCancelled {
		t.Errorf("events = %v, want [%s]", got, EventAppointmentCancelled)
	}
}

func TestCancelTwice(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	repo.addSlot(doc.ID, at, SlotBooked)
	appt := repo.addAppointment(doc.ID, pat.ID, at, StatusPending)

	svc := newLifecycleService(repo)
	if _, err := svc.Cancel(context.Background(), adminActor(), appt.ID); err != nil {
		t.Fatalf("first Cancel: %v", err)
	}
	_, err := svc.Cancel(context.Background(), adminActor(), appt.ID)
	if !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("second Cancel: err = %v, want ErrNotCancellable", err)
	}
}

func TestCancelMissingSlotRowTolerated(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	// slot_time moved by an admin patch; no slot row matches it.
	appt := repo.addAppointment(doc.ID, pat.ID, time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC), StatusConfirmed)

	svc := newLifecycleService(repo)
	updated, err := svc.Cancel(context.Background(), adminActor(), appt.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if updated.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", updated.Status)
	}
}

func TestCancelByPatientDenied(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	appt := repo.addAppointment(doc.ID, pat.ID, time.Now().UTC(), StatusPending)

	svc := newLifecycleService(repo)
	_, err := svc.Cancel(context.Background(), patientActor(pat.ID), appt.ID)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestRescheduleToExistingSlot(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	oldAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	newAt := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	oldSlot := repo.addSlot(doc.ID, oldAt, SlotBooked)
	newSlot := repo.addSlot(doc.ID, newAt, SlotAvailable)
	appt := repo.addAppointment(doc.ID, pat.ID, oldAt, StatusConfirmed)

	svc := newLifecycleService(repo)
	updated, err := svc.Reschedule(context.Background(), patientActor(pat.ID), appt.ID, newAt)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !updated.SlotTime.Equal(newAt) {
		t.Errorf("slot_time = %v, want %v", updated.SlotTime, newAt)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("status = %s, reschedule must not change status", updated.Status)
	}
	if repo.slots[oldSlot.ID].Status != SlotAvailable {
		t.Errorf("old slot = %s, want available", repo.slots[oldSlot.ID].Status)
	}
	if repo.slots[newSlot.ID].Status != SlotBooked {
		t.Errorf("new slot = %s, want booked", repo.slots[newSlot.ID].Status)
	}
	if got := repo.eventTypes(); len(got) != 1 || got[0] != EventAppointmentRescheduled {
		t.Errorf("events = %v, want [%s]", got, EventAppointmentRescheduled)
	}
}

func TestRescheduleCreatesMissingTargetSlot(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	oldAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	newAt := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo.addSlot(doc.ID, oldAt, SlotBooked)
	appt := repo.addAppointment(doc.ID, pat.ID, oldAt, StatusPending)

	svc := newLifecycleService(repo)
	updated, err := svc.Reschedule(context.Background(), patientActor(pat.ID), appt.ID, newAt)
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !updated.SlotTime.Equal(newAt) {
		t.Errorf("slot_time = %v, want %v", updated.SlotTime, newAt)
	}
	target := repo.slotAt(doc.ID, newAt)
	if target == nil {
		t.Fatal("target slot was not created")
	}
	if target.Status != SlotBooked {
		t.Errorf("target slot = %s, want booked", target.Status)
	}
}

func TestRescheduleToBookedSlot(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	oldAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	newAt := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	oldSlot := repo.addSlot(doc.ID, oldAt, SlotBooked)
	repo.addSlot(doc.ID, newAt, SlotBooked)
	appt := repo.addAppointment(doc.ID, pat.ID, oldAt, StatusConfirmed)

	svc := newLifecycleService(repo)
	_, err := svc.Reschedule(context.Background(), patientActor(pat.ID), appt.ID, newAt)
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("err = %v, want ErrSlotAlreadyBooked", err)
	}
	if repo.slots[oldSlot.ID].Status != SlotBooked {
		t.Errorf("old slot released by failed reschedule")
	}
	if !repo.appointments[appt.ID].SlotTime.Equal(oldAt) {
		t.Errorf("slot_time moved by failed reschedule")
	}
}

func TestRescheduleConflictingAppointment(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	other := repo.addPatient("Ada", "Lovelace")
	oldAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	newAt := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	repo.addSlot(doc.ID, oldAt, SlotBooked)
	repo.addSlot(doc.ID, newAt, SlotAvailable)
	appt := repo.addAppointment(doc.ID, pat.ID, oldAt, StatusConfirmed)
	repo.addAppointment(doc.ID, other.ID, newAt, StatusPending)

	svc := newLifecycleService(repo)
	_, err := svc.Reschedule(context.Background(), patientActor(pat.ID), appt.ID, newAt)
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("err = %v, want ErrSlotAlreadyBooked", err)
	}
}

func TestRescheduleToOwnSlotTime(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	repo.addSlot(doc.ID, at, SlotBooked)
	appt := repo.addAppointment(doc.ID, pat.ID, at, StatusConfirmed)

	// The conflict check excludes the appointment's own row, but the slot
	// itself is booked, so this still reports a conflict.
	svc := newLifecycleService(repo)
	_, err := svc.Reschedule(context.Background(), patientActor(pat.ID), appt.ID, at)
	if !errors.Is(err, ErrSlotAlreadyBooked) {
		t.Fatalf("err = %v, want ErrSlotAlreadyBooked", err)
	}
}

func TestRescheduleByUnrelatedPatientDenied(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	other := repo.addPatient("Ada", "Lovelace")
	at := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	repo.addSlot(doc.ID, at, SlotBooked)
	appt := repo.addAppointment(doc.ID, pat.ID, at, StatusPending)

	svc := newLifecycleService(repo)
	_, err := svc.Reschedule(context.Background(), patientActor(other.ID), appt.ID,
		time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestRescheduleMissingAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newLifecycleService(repo)
	_, err := svc.Reschedule(context.Background(), adminActor(), 404,
		time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestUpdateAdminPatch(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	appt := repo.addAppointment(doc.ID, pat.ID, time.Now().UTC(), StatusPending)

	svc := newLifecycleService(repo)
	status := StatusConfirmed
	updated, err := svc.Update(context.Background(), adminActor(), appt.ID, AppointmentPatch{
		Complain: ptrStr("follow-up"),
		Status:   &status,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Complain == nil || *updated.Complain != "follow-up" {
		t.Errorf("complain = %v, want follow-up", updated.Complain)
	}
	if updated.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", updated.Status)
	}
}

func TestUpdateNonAdminDenied(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	pat := repo.addPatient("Alan", "Turing")
	appt := repo.addAppointment(doc.ID, pat.ID, time.Now().UTC(), StatusPending)

	svc := newLifecycleService(repo)
	_, err := svc.Update(context.Background(), doctorActor(doc.ID), appt.ID,
		AppointmentPatch{Complain: ptrStr("x")})
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestUpdateEmptyPatch(t *testing.T) {
	repo := newMockRepo()
	svc := newLifecycleService(repo)
	_, err := svc.Update(context.Background(), adminActor(), 1, AppointmentPatch{})
	if !errors.Is(err, ErrEmptyPatch) {
		t.Fatalf("err = %v, want ErrEmptyPatch", err)
	}
}

func TestUpdateMissingAppointment(t *testing.T) {
	repo := newMockRepo()
	svc := newLifecycleService(repo)
	_, err := svc.Update(context.Background(), adminActor(), 404,
		AppointmentPatch{Complain: ptrStr("x")})
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Fatalf("err = %v, want ErrAppointmentNotFound", err)
	}
}

func TestExpireStaleSlots(t *testing.T) {
	repo := newMockRepo()
	doc := repo.addDoctor("Grace", "Hopper")
	past := repo.addSlot(doc.ID, time.Now().Add(-2*time.Hour).UTC(), SlotAvailable)
	booked := repo.addSlot(doc.ID, time.Now().Add(-3*time.Hour).UTC(), SlotBooked)
	future := repo.addSlot(doc.ID, time.Now().Add(2*time.Hour).UTC(), SlotAvailable)

	svc := newLifecycleService(repo)
	n, err := svc.ExpireStaleSlots(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("ExpireStaleSlots: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}
	if repo.slots[past.ID].Status != SlotExpired {
		t.Errorf("past slot = %s, want expired", repo.slots[past.ID].Status)
	}
	if repo.slots[booked.ID].Status != SlotBooked {
		t.Errorf("booked slot = %s, expiry must not touch booked slots", repo.slots[booked.ID].Status)
	}
	if repo.slots[future.ID].Status != SlotAvailable {
		t.Errorf("future slot = %s, want available", repo.slots[future.ID].Status)
	}
}
