package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/carebridge/telehealth/internal/auth"
	"github.com/carebridge/telehealth/internal/scheduling"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// handleDomainError maps scheduling errors to HTTP statuses. Anything not in
// the taxonomy is a storage failure: logged with context, surfaced as a bare
// 500.
func handleDomainError(log zerolog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidSlotTime):
		writeError(w, http.StatusBadRequest, "invalid_slot_time", err.Error())
	case errors.Is(err, scheduling.ErrEmptyPatch):
		writeError(w, http.StatusBadRequest, "empty_patch", err.Error())
	case errors.Is(err, scheduling.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "not_permitted", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, scheduling.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", err.Error())
	case errors.Is(err, scheduling.ErrSlotExists):
		writeError(w, http.StatusConflict, "slot_exists", err.Error())
	case errors.Is(err, scheduling.ErrNotConfirmable):
		writeError(w, http.StatusConflict, "not_confirmable", err.Error())
	case errors.Is(err, scheduling.ErrNotCancellable):
		writeError(w, http.StatusConflict, "not_cancellable", err.Error())
	default:
		log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", GetRequestID(r.Context())).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (scheduling.CurrentUser, bool) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
		return scheduling.CurrentUser{}, false
	}
	return u, true
}

func parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", param+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// parseSlotTime accepts RFC 3339 only; the offset requirement is what keeps
// naive timestamps out of the store.
func parseSlotTime(w http.ResponseWriter, field, value string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot_time",
			field+" must be an RFC 3339 timestamp with offset")
		return time.Time{}, false
	}
	return t.UTC(), true
}

func bookAppointmentHandler(svc *scheduling.BookingService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotTime, ok := parseSlotTime(w, "slot_time", req.SlotTime)
		if !ok {
			return
		}

		patientID := actor.PatientID
		if req.PatientID != nil {
			patientID = req.PatientID
		}
		if patientID == nil {
			writeError(w, http.StatusBadRequest, "missing_patient_id", "patient_id is required")
			return
		}

		detail, err := svc.Book(r.Context(), actor, req.DoctorID, *patientID, slotTime, req.Complain)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toDetailResponse(detail))
	}
}

func listOwnAppointmentsHandler(svc *scheduling.QueryService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}

		var (
			items []scheduling.AppointmentDetail
			err   error
		)
		switch {
		case actor.IsDoctor && actor.DoctorID != nil:
			items, err = svc.ListForDoctor(r.Context(), *actor.DoctorID)
		case actor.PatientID != nil:
			items, err = svc.ListForPatient(r.Context(), *actor.PatientID)
		default:
			writeError(w, http.StatusForbidden, "not_permitted", "caller has no doctor or patient profile")
			return
		}
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: toDetailResponses(items)})
	}
}

func getAppointmentHandler(svc *scheduling.QueryService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.GetByID(r.Context(), actor, id)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func listAllAppointmentsHandler(svc *scheduling.QueryService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}

		filter, ok := parseListFilter(w, r)
		if !ok {
			return
		}

		page, err := svc.ListAll(r.Context(), actor, filter)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{
			Appointments: toDetailResponses(page.Items),
			Meta: &ListMeta{
				Total:    page.Total,
				Page:     page.Page,
				PageSize: page.PageSize,
			},
		})
	}
}

func parseListFilter(w http.ResponseWriter, r *http.Request) (scheduling.ListFilter, bool) {
	q := r.URL.Query()
	var filter scheduling.ListFilter

	parseInt := func(key string, dst **int64) bool {
		v := q.Get(key)
		if v == "" {
			return true
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", key+" must be an integer")
			return false
		}
		*dst = &n
		return true
	}
	parseTime := func(key string, dst **time.Time) bool {
		v := q.Get(key)
		if v == "" {
			return true
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", key+" must be an RFC 3339 timestamp")
			return false
		}
		u := t.UTC()
		*dst = &u
		return true
	}

	if !parseInt("doctor_id", &filter.DoctorID) ||
		!parseInt("patient_id", &filter.PatientID) ||
		!parseTime("slot_time_from", &filter.SlotTimeFrom) ||
		!parseTime("slot_time_to", &filter.SlotTimeTo) ||
		!parseTime("created_at_from", &filter.CreatedFrom) ||
		!parseTime("created_at_to", &filter.CreatedTo) {
		return scheduling.ListFilter{}, false
	}

	if v := q.Get("status"); v != "" {
		status := scheduling.AppointmentStatus(v)
		switch status {
		case scheduling.StatusPending, scheduling.StatusConfirmed, scheduling.StatusCancelled:
			filter.Status = &status
		default:
			writeError(w, http.StatusBadRequest, "invalid_filter", "status must be pending, confirmed or cancelled")
			return scheduling.ListFilter{}, false
		}
	}

	filter.Search = q.Get("search")
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	return filter, true
}

func confirmAppointmentHandler(svc *scheduling.LifecycleService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Confirm(r.Context(), actor, id)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *scheduling.LifecycleService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc *scheduling.LifecycleService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newSlotTime, ok := parseSlotTime(w, "new_slot_time", req.NewSlotTime)
		if !ok {
			return
		}

		appt, err := svc.Reschedule(r.Context(), actor, id, newSlotTime)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateAppointmentHandler(svc *scheduling.LifecycleService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		id, ok := parseID(w, r, "id")
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patch := scheduling.AppointmentPatch{
			DoctorID:  req.DoctorID,
			PatientID: req.PatientID,
			Complain:  req.Complain,
		}
		if req.SlotTime != nil {
			t, ok := parseSlotTime(w, "slot_time", *req.SlotTime)
			if !ok {
				return
			}
			patch.SlotTime = &t
		}
		if req.Status != nil {
			status := scheduling.AppointmentStatus(*req.Status)
			switch status {
			case scheduling.StatusPending, scheduling.StatusConfirmed, scheduling.StatusCancelled:
				patch.Status = &status
			default:
				writeError(w, http.StatusBadRequest, "invalid_status", "status must be pending, confirmed or cancelled")
				return
			}
		}

		appt, err := svc.Update(r.Context(), actor, id, patch)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func createAvailabilityHandler(svc *scheduling.BookingService, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := currentUser(w, r)
		if !ok {
			return
		}
		doctorID, ok := parseID(w, r, "doctorID")
		if !ok {
			return
		}

		var req CreateAvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		availableAt, ok := parseSlotTime(w, "available_at", req.AvailableAt)
		if !ok {
			return
		}

		slot, err := svc.CreateAvailability(r.Context(), actor, doctorID, availableAt)
		if err != nil {
			handleDomainError(log, w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(slot))
	}
}
