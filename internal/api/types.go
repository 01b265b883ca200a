package api

import (
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// Ids of zero mean "not selected" and are rejected by the scheduler with a
// domain message, so the tags only check shape.
type BookAppointmentRequest struct {
	PatientID int64  `json:"patient_id" validate:"gte=0"`
	DoctorID  int64  `json:"doctor_id" validate:"gte=0"`
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	Status    string `json:"status" validate:"omitempty,max=32"`
}

type UpdateAppointmentRequest struct {
	PatientID int64  `json:"patient_id" validate:"gte=0"`
	DoctorID  int64  `json:"doctor_id" validate:"gte=0"`
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	Status    string `json:"status" validate:"required,max=32"`
}

type CreatePatientRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type CreateDoctorRequest struct {
	Name           string `json:"name" validate:"required,max=200"`
	Specialization string `json:"specialization" validate:"max=200"`
}

type PatientResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type DoctorResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

type AppointmentResponse struct {
	ID        int64            `json:"id"`
	PatientID int64            `json:"patient_id"`
	DoctorID  int64            `json:"doctor_id"`
	Date      string           `json:"date"`
	Time      string           `json:"time"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Patient   *PatientResponse `json:"patient,omitempty"`
	Doctor    *DoctorResponse  `json:"doctor,omitempty"`
}

type AvailabilityResponse struct {
	DoctorID  int64  `json:"doctor_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type SummaryResponse struct {
	Counts         map[string]int `json:"counts"`
	Total          int            `json:"total"`
	CompletionRate float64        `json:"completion_rate"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toPatientResponse(p appointment.Patient) PatientResponse {
	return PatientResponse{ID: p.ID, Name: p.Name}
}

func toDoctorResponse(d appointment.Doctor) DoctorResponse {
	return DoctorResponse{ID: d.ID, Name: d.Name, Specialization: d.Specialization}
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      a.Date.String(),
		Time:      a.Time.String(),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toDetailResponse(d appointment.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(d.Appointment)
	if d.Patient != nil {
		p := toPatientResponse(*d.Patient)
		resp.Patient = &p
	}
	if d.Doctor != nil {
		doc := toDoctorResponse(*d.Doctor)
		resp.Doctor = &doc
	}
	return resp
}
