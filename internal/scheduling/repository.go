package scheduling

import (
	"context"
	"time"
)

// Repository contains all DB interactions needed by the scheduling services.
//
// WithTx runs fn against a transaction-scoped Repository; every store method
// called inside fn sees the same transaction. The booking, cancel and
// reschedule flows rely on this plus the FOR UPDATE slot reads for their
// atomicity, so concurrent attempts against one slot serialize on the row lock
// rather than on any in-process state.
type Repository interface {
	WithTx(ctx context.Context, fn func(Repository) error) error

	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)

	// Slot store
	GetSlot(ctx context.Context, doctorID int64, availableAt time.Time) (*Slot, error)
	GetSlotForUpdate(ctx context.Context, doctorID int64, availableAt time.Time) (*Slot, error)
	CreateSlot(ctx context.Context, doctorID int64, availableAt time.Time) (*Slot, error)
	SetSlotStatus(ctx context.Context, slotID int64, status SlotStatus) error
	ExpireSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Appointment store
	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	GetActiveAppointmentForSlot(ctx context.Context, doctorID int64, slotTime time.Time, excludeID int64) (*Appointment, error)
	CreateAppointment(ctx context.Context, doctorID, patientID int64, slotTime time.Time, complain *string) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id, doctorID int64, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)
	UpdateAppointmentSlotTime(ctx context.Context, id int64, slotTime time.Time) (*Appointment, error)
	UpdateAppointmentFields(ctx context.Context, id int64, patch AppointmentPatch) (*Appointment, error)

	// Read projections
	GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error)
	ListByPatient(ctx context.Context, patientID int64) ([]AppointmentDetail, error)
	ListByDoctor(ctx context.Context, doctorID int64) ([]AppointmentDetail, error)
	ListAll(ctx context.Context, filter ListFilter) ([]AppointmentDetail, int, error)

	// Audit trail
	InsertEvent(ctx context.Context, ev EventLog) error
}
