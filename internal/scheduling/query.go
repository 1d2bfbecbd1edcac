package scheduling

import (
	"context"
	"errors"
	"fmt"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QueryService serves read projections. It never mutates state.
type QueryService struct {
	repo Repository
}

func NewQueryService(repo Repository) *QueryService {
	return &QueryService{repo: repo}
}

func (s *QueryService) ListForPatient(ctx context.Context, patientID int64) ([]AppointmentDetail, error) {
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return items, nil
}

func (s *QueryService) ListForDoctor(ctx context.Context, doctorID int64) ([]AppointmentDetail, error) {
	items, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return items, nil
}

// GetByID returns one hydrated appointment. Non-owning, non-admin callers are
// refused with ErrNotPermitted whether or not the appointment exists, so the
// response does not leak which ids are taken.
func (s *QueryService) GetByID(ctx context.Context, actor CurrentUser, id int64) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			if actor.IsAdmin {
				return nil, err
			}
			return nil, ErrNotPermitted
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}

	if actor.IsAdmin || actor.OwnsPatient(detail.PatientID) || actor.OwnsDoctor(detail.DoctorID) {
		return detail, nil
	}
	return nil, ErrNotPermitted
}

// ListAll is the admin listing with filters and pagination.
func (s *QueryService) ListAll(ctx context.Context, actor CurrentUser, filter ListFilter) (*Page, error) {
	if !actor.IsAdmin {
		return nil, ErrNotPermitted
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	items, total, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	return &Page{
		Items:    items,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}
