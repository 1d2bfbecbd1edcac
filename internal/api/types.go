package api

import (
	"time"

	"github.com/carebridge/telehealth/internal/scheduling"
)

type BookAppointmentRequest struct {
	DoctorID  int64   `json:"doctor_id"`
	SlotTime  string  `json:"slot_time"`
	PatientID *int64  `json:"patient_id,omitempty"`
	Complain  *string `json:"complain,omitempty"`
}

type RescheduleRequest struct {
	NewSlotTime string `json:"new_slot_time"`
}

type CreateAvailabilityRequest struct {
	AvailableAt string `json:"available_at"`
}

type UpdateAppointmentRequest struct {
	DoctorID  *int64  `json:"doctor_id,omitempty"`
	PatientID *int64  `json:"patient_id,omitempty"`
	SlotTime  *string `json:"slot_time,omitempty"`
	Complain  *string `json:"complain,omitempty"`
	Status    *string `json:"status,omitempty"`
}

type AppointmentResponse struct {
	ID        int64     `json:"id"`
	DoctorID  int64     `json:"doctor_id"`
	PatientID int64     `json:"patient_id"`
	SlotTime  time.Time `json:"slot_time"`
	Complain  *string   `json:"complain,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type DoctorSnapshot struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Title     *string `json:"title,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	Location  *string `json:"location,omitempty"`
	Rating    float64 `json:"rating"`
}

type PatientSnapshot struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type SummaryResponse struct {
	Diagnosis    *string    `json:"diagnosis,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	Prescription *string    `json:"prescription,omitempty"`
	FollowUpDate *time.Time `json:"follow_up_date,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	Doctor  DoctorSnapshot   `json:"doctor"`
	Patient PatientSnapshot  `json:"patient"`
	Summary *SummaryResponse `json:"summary,omitempty"`
}

type SlotResponse struct {
	ID          int64     `json:"id"`
	DoctorID    int64     `json:"doctor_id"`
	AvailableAt time.Time `json:"available_at"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListMeta struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentDetailResponse `json:"appointments"`
	Meta         *ListMeta                   `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		DoctorID:  a.DoctorID,
		PatientID: a.PatientID,
		SlotTime:  a.SlotTime,
		Complain:  a.Complain,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
	}
}

func toDetailResponse(d *scheduling.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{
		AppointmentResponse: toAppointmentResponse(&d.Appointment),
		Doctor: DoctorSnapshot{
			FirstName: d.DoctorFirstName,
			LastName:  d.DoctorLastName,
			Title:     d.DoctorTitle,
			Bio:       d.DoctorBio,
			Location:  d.DoctorLocation,
			Rating:    d.DoctorRating,
		},
		Patient: PatientSnapshot{
			FirstName: d.PatientFirstName,
			LastName:  d.PatientLastName,
		},
	}
	if d.Summary != nil {
		resp.Summary = &SummaryResponse{
			Diagnosis:    d.Summary.Diagnosis,
			Notes:        d.Summary.Notes,
			Prescription: d.Summary.Prescription,
			FollowUpDate: d.Summary.FollowUpDate,
		}
	}
	return resp
}

func toDetailResponses(items []scheduling.AppointmentDetail) []AppointmentDetailResponse {
	out := make([]AppointmentDetailResponse, 0, len(items))
	for i := range items {
		out = append(out, toDetailResponse(&items[i]))
	}
	return out
}

func toSlotResponse(s *scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:          s.ID,
		DoctorID:    s.DoctorID,
		AvailableAt: s.AvailableAt,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
	}
}
