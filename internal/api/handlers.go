package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

type Handler struct {
	svc      Scheduler
	metrics  *metrics.Metrics
	validate *validator.Validate
	log      zerolog.Logger
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func (h *Handler) listPatients(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	patients, err := h.svc.ListPatients(r.Context())
	h.metrics.Observe("list_patients", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]PatientResponse, 0, len(patients))
	for _, p := range patients {
		resp = append(resp, toPatientResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createPatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	p, err := h.svc.AddPatient(r.Context(), req.Name)
	h.metrics.Observe("add_patient", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPatientResponse(*p))
}

func (h *Handler) listDoctors(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	doctors, err := h.svc.ListDoctors(r.Context())
	h.metrics.Observe("list_doctors", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]DoctorResponse, 0, len(doctors))
	for _, d := range doctors {
		resp = append(resp, toDoctorResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createDoctor(w http.ResponseWriter, r *http.Request) {
	var req CreateDoctorRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	d, err := h.svc.AddDoctor(r.Context(), req.Name, req.Specialization)
	h.metrics.Observe("add_doctor", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDoctorResponse(*d))
}

func (h *Handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := appointment.ListFilter{Query: q.Get("q")}

	var err error
	if f.DoctorID, err = queryInt(q.Get("doctor_id")); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "doctor_id must be an integer")
		return
	}
	if f.PatientID, err = queryInt(q.Get("patient_id")); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "patient_id must be an integer")
		return
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
		return
	}
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "offset must be an integer")
		return
	}
	f.Limit, f.Offset = int(limit), int(offset)

	if raw := q.Get("date"); raw != "" {
		d, err := appointment.ParseDate(raw)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		f.Date = &d
	}

	start := time.Now()
	appointments, err := h.svc.ListAppointments(r.Context(), f)
	h.metrics.Observe("list_appointments", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]AppointmentResponse, 0, len(appointments))
	for _, a := range appointments {
		resp = append(resp, toDetailResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req BookAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	date, tm, err := parseSlotFields(req.Date, req.Time)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	var status appointment.AppointmentStatus
	if req.Status != "" {
		if status, err = appointment.ParseStatus(req.Status); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}

	start := time.Now()
	appt, err := h.svc.BookAppointment(r.Context(), appointment.BookRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Time:      tm,
		Status:    status,
	})
	h.metrics.Observe("book", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	doctorID, err := queryInt(q.Get("doctor_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "doctor_id must be an integer")
		return
	}
	excludeID, err := queryInt(q.Get("exclude_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "exclude_id must be an integer")
		return
	}
	date, tm, err := parseSlotFields(q.Get("date"), q.Get("time"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	start := time.Now()
	free, err := h.svc.CheckAvailability(r.Context(), doctorID, date, tm, excludeID)
	h.metrics.Observe("check_availability", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID:  doctorID,
		Date:      date.String(),
		Time:      tm.String(),
		Available: free,
	})
}

func (h *Handler) statusSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sum, err := h.svc.StatusSummary(r.Context())
	h.metrics.Observe("status_summary", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	counts := make(map[string]int, len(sum.Counts))
	for st, n := range sum.Counts {
		counts[string(st)] = n
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		Counts:         counts,
		Total:          sum.Total,
		CompletionRate: sum.CompletionRate,
	})
}

func (h *Handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	start := time.Now()
	detail, err := h.svc.GetAppointment(r.Context(), id)
	h.metrics.Observe("get_appointment", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toDetailResponse(*detail))
}

func (h *Handler) updateAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	date, tm, err := parseSlotFields(req.Date, req.Time)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status, err := appointment.ParseStatus(req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	start := time.Now()
	appt, err := h.svc.UpdateAppointment(r.Context(), id, appointment.UpdateRequest{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Time:      tm,
		Status:    status,
	})
	h.metrics.Observe("update", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
}

func (h *Handler) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	start := time.Now()
	cancelled, err := h.svc.CancelAppointment(r.Context(), id)
	h.metrics.Observe("cancel", start, err)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, CancelResponse{Cancelled: cancelled})
}

// decode parses and shape-checks the JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			writeError(w, http.StatusBadRequest, "validation_error",
				fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
			return false
		}
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return false
	}
	return true
}

// writeServiceError maps scheduler errors onto the HTTP error envelope.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrSchedulingConflict):
		writeError(w, http.StatusConflict, "scheduling_conflict", conflictDetails(err))
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	default:
		h.log.Error().
			Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Msg("scheduler persistence failure")
		writeError(w, http.StatusInternalServerError, "persistence_error", "the appointment store is unavailable, please try again")
	}
}

func conflictDetails(err error) string {
	if errors.Is(err, appointment.ErrSlotBeingBooked) {
		return "slot is currently being booked, please retry shortly"
	}
	return "doctor is not available at this date and time"
}

func parseSlotFields(rawDate, rawTime string) (appointment.Date, appointment.ClockTime, error) {
	date, err := appointment.ParseDate(rawDate)
	if err != nil {
		return appointment.Date{}, appointment.ClockTime{}, err
	}
	tm, err := appointment.ParseClockTime(rawTime)
	if err != nil {
		return appointment.Date{}, appointment.ClockTime{}, err
	}
	return date, tm, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter; empty is zero.
func queryInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
