package scheduling

import (
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotExpired   SlotStatus = "expired"
)

type Doctor struct {
	ID        int64
	UserID    *int64
	FirstName string
	LastName  string
	Title     *string
	Bio       *string
	Location  *string
	Rating    float64
	CreatedAt time.Time
}

type Patient struct {
	ID        int64
	UserID    *int64
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// Slot is one bookable instant for one doctor. (doctor_id, available_at) is
// unique; the status moves available -> booked on booking, booked -> available
// on cancel or the vacate step of reschedule, and available -> expired once the
// instant has passed without a booking.
type Slot struct {
	ID          int64
	DoctorID    int64
	AvailableAt time.Time
	Status      SlotStatus
	CreatedAt   time.Time
}

// Appointment is a patient's claim on a doctor's slot. slot_time always refers
// to some Slot.AvailableAt for the same doctor; keeping the two in step is the
// booking and lifecycle services' job, not the database's.
type Appointment struct {
	ID        int64
	DoctorID  int64
	PatientID int64
	SlotTime  time.Time
	Complain  *string
	Status    AppointmentStatus
	CreatedAt time.Time
}

// Summary holds clinical notes attached after a visit. Owned by the clinical
// notes module; the scheduling core only ever reads it.
type Summary struct {
	Diagnosis    *string
	Notes        *string
	Prescription *string
	FollowUpDate *time.Time
}

// AppointmentDetail is the denormalized read shape: the appointment row plus
// doctor/patient display columns and the optional clinical summary.
type AppointmentDetail struct {
	Appointment
	DoctorFirstName  string
	DoctorLastName   string
	DoctorTitle      *string
	DoctorBio        *string
	DoctorLocation   *string
	DoctorRating     float64
	PatientFirstName string
	PatientLastName  string
	Summary          *Summary
}

// CurrentUser is the caller identity resolved by the auth layer. DoctorID and
// PatientID are set when the user has the corresponding profile.
type CurrentUser struct {
	UserID    int64
	DoctorID  *int64
	PatientID *int64
	IsAdmin   bool
	IsDoctor  bool
}

// OwnsDoctor reports whether the caller acts as the given doctor.
func (u CurrentUser) OwnsDoctor(doctorID int64) bool {
	return u.DoctorID != nil && *u.DoctorID == doctorID
}

// OwnsPatient reports whether the caller acts as the given patient.
func (u CurrentUser) OwnsPatient(patientID int64) bool {
	return u.PatientID != nil && *u.PatientID == patientID
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentPatch is the generic admin patch. Fields left nil are untouched.
// Changing SlotTime through a patch deliberately bypasses slot bookkeeping;
// reschedule is the path that keeps slots consistent.
type AppointmentPatch struct {
	DoctorID  *int64
	PatientID *int64
	SlotTime  *time.Time
	Complain  *string
	Status    *AppointmentStatus
}

// IsEmpty reports whether the patch would change nothing.
func (p AppointmentPatch) IsEmpty() bool {
	return p.DoctorID == nil && p.PatientID == nil && p.SlotTime == nil &&
		p.Complain == nil && p.Status == nil
}

// ListFilter narrows the admin listing. Zero values mean "no constraint".
type ListFilter struct {
	DoctorID      *int64
	PatientID     *int64
	Status        *AppointmentStatus
	SlotTimeFrom  *time.Time
	SlotTimeTo    *time.Time
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Search        string
	Page          int
	PageSize      int
}

// Page is the admin listing result.
type Page struct {
	Items    []AppointmentDetail
	Total    int
	Page     int
	PageSize int
}
