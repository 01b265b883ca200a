package appointment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrSchedulingConflict = errors.New("scheduling conflict")
	ErrPersistence        = errors.New("persistence error")

	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

var (
	ErrPatientNotSelected     = fmt.Errorf("%w: please select a patient", ErrValidation)
	ErrDoctorNotSelected      = fmt.Errorf("%w: please select a doctor", ErrValidation)
	ErrAppointmentNotSelected = fmt.Errorf("%w: please select an appointment", ErrValidation)
	ErrInvalidDate            = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidTime            = fmt.Errorf("%w: invalid time", ErrValidation)
	ErrInvalidStatus          = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrNameRequired           = fmt.Errorf("%w: name is required", ErrValidation)
	ErrCancelThroughUpdate    = fmt.Errorf("%w: use cancel to cancel an appointment", ErrValidation)

	ErrDoctorUnavailable = fmt.Errorf("%w: doctor is not available at this date and time", ErrSchedulingConflict)
	ErrSlotBeingBooked   = fmt.Errorf("%w: slot is currently being booked, please retry", ErrSchedulingConflict)
)

// Repository contains all DB interactions needed by the service.
// Implementations report a unique-slot violation as ErrSchedulingConflict
// and missing rows with the not-found errors above.
type Repository interface {
	GetPatientByID(ctx context.Context, id int64) (*Patient, error)
	GetDoctorByID(ctx context.Context, id int64) (*Doctor, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	CreatePatient(ctx context.Context, name string) (*Patient, error)
	CreateDoctor(ctx context.Context, name, specialization string) (*Doctor, error)

	// For conflict checks
	CountSlotConflicts(ctx context.Context, slot Slot, excludeID int64) (int, error)

	GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error)
	CountByStatus(ctx context.Context) (map[AppointmentStatus]int, error)

	// Mutations write ev in the same transaction.
	CreateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus, ev EventLog) (*Appointment, error)
}
