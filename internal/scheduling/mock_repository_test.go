package scheduling

import (
	"context"
	"sort"
	"time"
)

// mockRepo is an in-memory Repository. WithTx runs fn directly against the
// same state; transactional rollback is exercised against Postgres, not here.
type mockRepo struct {
	doctors      map[int64]*Doctor
	patients     map[int64]*Patient
	slots        map[int64]*Slot
	appointments map[int64]*Appointment
	events       []EventLog
	nextID       int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		doctors:      make(map[int64]*Doctor),
		patients:     make(map[int64]*Patient),
		slots:        make(map[int64]*Slot),
		appointments: make(map[int64]*Appointment),
	}
}

func (m *mockRepo) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *mockRepo) addDoctor(firstName, lastName string) *Doctor {
	d := &Doctor{ID: m.id(), FirstName: firstName, LastName: lastName, Rating: 4.5, CreatedAt: time.Now()}
	m.doctors[d.ID] = d
	return d
}

func (m *mockRepo) addPatient(firstName, lastName string) *Patient {
	p := &Patient{ID: m.id(), FirstName: firstName, LastName: lastName, CreatedAt: time.Now()}
	m.patients[p.ID] = p
	return p
}

func (m *mockRepo) addSlot(doctorID int64, at time.Time, status SlotStatus) *Slot {
	s := &Slot{ID: m.id(), DoctorID: doctorID, AvailableAt: at.UTC(), Status: status, CreatedAt: time.Now()}
	m.slots[s.ID] = s
	return s
}

func (m *mockRepo) addAppointment(doctorID, patientID int64, at time.Time, status AppointmentStatus) *Appointment {
	a := &Appointment{ID: m.id(), DoctorID: doctorID, PatientID: patientID, SlotTime: at.UTC(), Status: status, CreatedAt: time.Now()}
	m.appointments[a.ID] = a
	return a
}

func (m *mockRepo) slotAt(doctorID int64, at time.Time) *Slot {
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.AvailableAt.Equal(at) {
			return s
		}
	}
	return nil
}

// Repository implementation

func (m *mockRepo) WithTx(_ context.Context, fn func(Repository) error) error {
	return fn(m)
}

func (m *mockRepo) GetDoctorByID(_ context.Context, id int64) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (m *mockRepo) GetPatientByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (m *mockRepo) GetSlot(_ context.Context, doctorID int64, availableAt time.Time) (*Slot, error) {
	if s := m.slotAt(doctorID, availableAt); s != nil {
		return s, nil
	}
	return nil, ErrSlotNotFound
}

func (m *mockRepo) GetSlotForUpdate(ctx context.Context, doctorID int64, availableAt time.Time) (*Slot, error) {
	return m.GetSlot(ctx, doctorID, availableAt)
}

func (m *mockRepo) CreateSlot(_ context.Context, doctorID int64, availableAt time.Time) (*Slot, error) {
	if m.slotAt(doctorID, availableAt) != nil {
		return nil, ErrSlotExists
	}
	return m.addSlot(doctorID, availableAt, SlotAvailable), nil
}

func (m *mockRepo) SetSlotStatus(_ context.Context, slotID int64, status SlotStatus) error {
	s, ok := m.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	s.Status = status
	return nil
}

func (m *mockRepo) ExpireSlotsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, s := range m.slots {
		if s.Status == SlotAvailable && s.AvailableAt.Before(cutoff) {
			s.Status = SlotExpired
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) GetAppointmentByID(_ context.Context, id int64) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepo) GetActiveAppointmentForSlot(_ context.Context, doctorID int64, slotTime time.Time, excludeID int64) (*Appointment, error) {
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.SlotTime.Equal(slotTime) && a.ID != excludeID &&
			(a.Status == StatusPending || a.Status == StatusConfirmed) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *mockRepo) CreateAppointment(_ context.Context, doctorID, patientID int64, slotTime time.Time, complain *string) (*Appointment, error) {
	a := &Appointment{
		ID:        m.id(),
		DoctorID:  doctorID,
		PatientID: patientID,
		SlotTime:  slotTime.UTC(),
		Complain:  complain,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	m.appointments[a.ID] = a
	copied := *a
	return &copied, nil
}

func (m *mockRepo) UpdateAppointmentStatus(_ context.Context, id, doctorID int64, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok || a.DoctorID != doctorID {
		return nil, ErrAppointmentNotFound
	}
	matched := false
	for _, s := range from {
		if a.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	copied := *a
	return &copied, nil
}

func (m *mockRepo) UpdateAppointmentSlotTime(_ context.Context, id int64, slotTime time.Time) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.SlotTime = slotTime.UTC()
	copied := *a
	return &copied, nil
}

func (m *mockRepo) UpdateAppointmentFields(_ context.Context, id int64, patch AppointmentPatch) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if patch.IsEmpty() {
		return nil, ErrEmptyPatch
	}
	if patch.DoctorID != nil {
		a.DoctorID = *patch.DoctorID
	}
	if patch.PatientID != nil {
		a.PatientID = *patch.PatientID
	}
	if patch.SlotTime != nil {
		a.SlotTime = patch.SlotTime.UTC()
	}
	if patch.Complain != nil {
		a.Complain = patch.Complain
	}
	if patch.Status != nil {
		a.Status = *patch.Status
	}
	copied := *a
	return &copied, nil
}

func (m *mockRepo) detail(a *Appointment) *AppointmentDetail {
	d := &AppointmentDetail{Appointment: *a}
	if doc, ok := m.doctors[a.DoctorID]; ok {
		d.DoctorFirstName = doc.FirstName
		d.DoctorLastName = doc.LastName
		d.DoctorTitle = doc.Title
		d.DoctorRating = doc.Rating
	}
	if p, ok := m.patients[a.PatientID]; ok {
		d.PatientFirstName = p.FirstName
		d.PatientLastName = p.LastName
	}
	return d
}

func (m *mockRepo) GetAppointmentDetail(_ context.Context, id int64) (*AppointmentDetail, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return m.detail(a), nil
}

func (m *mockRepo) listWhere(match func(*Appointment) bool) []AppointmentDetail {
	var result []AppointmentDetail
	for _, a := range m.appointments {
		if match(a) {
			result = append(result, *m.detail(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SlotTime.After(result[j].SlotTime)
	})
	return result
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID int64) ([]AppointmentDetail, error) {
	return m.listWhere(func(a *Appointment) bool { return a.PatientID == patientID }), nil
}

func (m *mockRepo) ListByDoctor(_ context.Context, doctorID int64) ([]AppointmentDetail, error) {
	return m.listWhere(func(a *Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (m *mockRepo) ListAll(_ context.Context, filter ListFilter) ([]AppointmentDetail, int, error) {
	items := m.listWhere(func(a *Appointment) bool {
		if filter.DoctorID != nil && a.DoctorID != *filter.DoctorID {
			return false
		}
		if filter.PatientID != nil && a.PatientID != *filter.PatientID {
			return false
		}
		if filter.Status != nil && a.Status != *filter.Status {
			return false
		}
		if filter.SlotTimeFrom != nil && a.SlotTime.Before(*filter.SlotTimeFrom) {
			return false
		}
		if filter.SlotTimeTo != nil && a.SlotTime.After(*filter.SlotTimeTo) {
			return false
		}
		return true
	})

	total := len(items)
	start := (filter.Page - 1) * filter.PageSize
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func (m *mockRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *mockRepo) eventTypes() []string {
	types := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		types = append(types, ev.EventType)
	}
	return types
}
