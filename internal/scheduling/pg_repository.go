package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, q: pool}
}

// WithTx runs fn against a transaction-scoped repository. Nested calls reuse
// the enclosing transaction.
func (r *PgRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&PgRepository{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Helpers

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.FirstName,
		&d.LastName,
		&d.Title,
		&d.Bio,
		&d.Location,
		&d.Rating,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FirstName,
		&p.LastName,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.AvailableAt,
		&s.Status,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.SlotTime,
		&a.Complain,
		&a.Status,
		&a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var summaryID *int64
	var diagnosis, notes, prescription *string
	var followUp *time.Time

	err := row.Scan(
		&d.ID,
		&d.DoctorID,
		&d.PatientID,
		&d.SlotTime,
		&d.Complain,
		&d.Status,
		&d.CreatedAt,
		&d.DoctorFirstName,
		&d.DoctorLastName,
		&d.DoctorTitle,
		&d.DoctorBio,
		&d.DoctorLocation,
		&d.DoctorRating,
		&d.PatientFirstName,
		&d.PatientLastName,
		&summaryID,
		&diagnosis,
		&notes,
		&prescription,
		&followUp,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if summaryID != nil {
		d.Summary = &Summary{
			Diagnosis:    diagnosis,
			Notes:        notes,
			Prescription: prescription,
			FollowUpDate: followUp,
		}
	}

	return &d, nil
}

const detailSelect = `
	SELECT a.id, a.doctor_id, a.patient_id, a.slot_time, a.complain, a.status, a.created_at,
	       d.first_name, d.last_name, d.title, d.bio, d.location, d.rating,
	       p.first_name, p.last_name,
	       s.id, s.diagnosis, s.notes, s.prescription, s.follow_up_date
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN patients p ON p.id = a.patient_id
	LEFT JOIN appointments_summary s ON s.appointment_id = a.id
`

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, user_id, first_name, last_name, title, bio, location, rating, created_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, user_id, first_name, last_name, created_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetSlot(ctx context.Context, doctorID int64, availableAt time.Time) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, available_at, status, created_at
		FROM doctor_availability_slots
		WHERE doctor_id = $1 AND available_at = $2
	`, doctorID, availableAt)
	return scanSlot(row)
}

func (r *PgRepository) GetSlotForUpdate(ctx context.Context, doctorID int64, availableAt time.Time) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, available_at, status, created_at
		FROM doctor_availability_slots
		WHERE doctor_id = $1 AND available_at = $2
		FOR UPDATE
	`, doctorID, availableAt)
	return scanSlot(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, doctorID int64, availableAt time.Time) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO doctor_availability_slots (doctor_id, available_at, status)
		VALUES ($1, $2, 'available')
		RETURNING id, doctor_id, available_at, status, created_at
	`, doctorID, availableAt)

	slot, err := scanSlot(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotExists
		}
		return nil, err
	}
	return slot, nil
}

func (r *PgRepository) SetSlotStatus(ctx context.Context, slotID int64, status SlotStatus) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE doctor_availability_slots
		SET status = $2
		WHERE id = $1
	`, slotID, status)
	if err != nil {
		return fmt.Errorf("set slot status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgRepository) ExpireSlotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE doctor_availability_slots
		SET status = 'expired'
		WHERE status = 'available'
		  AND available_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, slot_time, complain, status, created_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetActiveAppointmentForSlot(ctx context.Context, doctorID int64, slotTime time.Time, excludeID int64) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		SELECT id, doctor_id, patient_id, slot_time, complain, status, created_at
		FROM appointments
		WHERE doctor_id = $1
		  AND slot_time = $2
		  AND status IN ('pending', 'confirmed')
		  AND id <> $3
	`, doctorID, slotTime, excludeID)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, doctorID, patientID int64, slotTime time.Time, complain *string) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments (doctor_id, patient_id, slot_time, complain, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, doctor_id, patient_id, slot_time, complain, status, created_at
	`, doctorID, patientID, slotTime, complain)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id, doctorID int64, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3
		WHERE id = $1
		  AND doctor_id = $2
		  AND status = ANY($4)
		RETURNING id, doctor_id, patient_id, slot_time, complain, status, created_at
	`, id, doctorID, to, statuses)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentSlotTime(ctx context.Context, id int64, slotTime time.Time) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments
		SET slot_time = $2
		WHERE id = $1
		RETURNING id, doctor_id, patient_id, slot_time, complain, status, created_at
	`, id, slotTime)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) UpdateAppointmentFields(ctx context.Context, id int64, patch AppointmentPatch) (*Appointment, error) {
	sets := make([]string, 0, 5)
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.DoctorID != nil {
		add("doctor_id", *patch.DoctorID)
	}
	if patch.PatientID != nil {
		add("patient_id", *patch.PatientID)
	}
	if patch.SlotTime != nil {
		add("slot_time", *patch.SlotTime)
	}
	if patch.Complain != nil {
		add("complain", *patch.Complain)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}

	if len(sets) == 0 {
		return nil, ErrEmptyPatch
	}

	query := fmt.Sprintf(`
		UPDATE appointments
		SET %s
		WHERE id = $1
		RETURNING id, doctor_id, patient_id, slot_time, complain, status, created_at
	`, strings.Join(sets, ", "))

	appt, err := scanAppointment(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotAlreadyBooked
		}
		return nil, err
	}
	return appt, nil
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	row := r.q.QueryRow(ctx, detailSelect+` WHERE a.id = $1`, id)
	return scanDetail(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID int64) ([]AppointmentDetail, error) {
	rows, err := r.q.Query(ctx, detailSelect+`
		WHERE a.patient_id = $1
		ORDER BY a.slot_time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID int64) ([]AppointmentDetail, error) {
	rows, err := r.q.Query(ctx, detailSelect+`
		WHERE a.doctor_id = $1
		ORDER BY a.slot_time DESC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDetails(rows)
}

func (r *PgRepository) ListAll(ctx context.Context, filter ListFilter) ([]AppointmentDetail, int, error) {
	where, args := buildListFilter(filter)

	var total int
	countQuery := `
		SELECT count(*)
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
	` + where
	if err := r.q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	limit := filter.PageSize
	offset := (filter.Page - 1) * filter.PageSize
	args = append(args, limit, offset)

	query := fmt.Sprintf(`%s %s
		ORDER BY a.slot_time DESC
		LIMIT $%d OFFSET $%d
	`, detailSelect, where, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := collectDetails(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// buildListFilter assembles a parameterized WHERE clause; user input only ever
// travels through the args slice, never the SQL text.
func buildListFilter(filter ListFilter) (string, []any) {
	conds := make([]string, 0, 8)
	args := make([]any, 0, 8)

	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.DoctorID != nil {
		add("a.doctor_id = $%d", *filter.DoctorID)
	}
	if filter.PatientID != nil {
		add("a.patient_id = $%d", *filter.PatientID)
	}
	if filter.Status != nil {
		add("a.status = $%d", *filter.Status)
	}
	if filter.SlotTimeFrom != nil {
		add("a.slot_time >= $%d", *filter.SlotTimeFrom)
	}
	if filter.SlotTimeTo != nil {
		add("a.slot_time <= $%d", *filter.SlotTimeTo)
	}
	if filter.CreatedFrom != nil {
		add("a.created_at >= $%d", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		add("a.created_at <= $%d", *filter.CreatedTo)
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(d.first_name ILIKE $%d OR d.last_name ILIKE $%d OR p.first_name ILIKE $%d OR p.last_name ILIKE $%d OR a.complain ILIKE $%d)",
			n, n, n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert appointment event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
