package scheduling

import "errors"

// Domain errors. The api package maps these to HTTP statuses; anything else
// coming out of a service is a storage failure and surfaces as a 500.
var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotNotAvailable covers both "no slot at that instant" and "slot is
	// not bookable", so a client knows to re-poll availability.
	ErrSlotNotAvailable = errors.New("slot is not available")

	// ErrSlotAlreadyBooked is the double-booking conflict: an active
	// appointment already claims the slot.
	ErrSlotAlreadyBooked = errors.New("slot already booked")

	ErrSlotExists = errors.New("availability slot already exists for this time")

	ErrInvalidSlotTime = errors.New("slot_time must be a valid RFC 3339 timestamp")
	ErrEmptyPatch      = errors.New("no fields to update")

	ErrNotConfirmable = errors.New("appointment not found or cannot be confirmed")
	ErrNotCancellable = errors.New("appointment not found or cannot be cancelled")

	ErrNotPermitted = errors.New("caller may not access this appointment")
)
