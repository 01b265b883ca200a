package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentUpdated   = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// BookRequest carries the form fields of a new appointment. Zero ids are
// the "not selected" sentinel.
type BookRequest struct {
	PatientID int64
	DoctorID  int64
	Date      Date
	Time      ClockTime
	// Status defaults to StatusScheduled.
	Status AppointmentStatus
}

type UpdateRequest struct {
	PatientID int64
	DoctorID  int64
	Date      Date
	Time      ClockTime
	Status    AppointmentStatus
}

// Service mediates creation, modification and cancellation of
// appointments while keeping at most one active appointment per slot.
// It never logs; every failure is returned wrapped in ErrValidation,
// ErrSchedulingConflict, ErrPersistence or ErrAppointmentNotFound.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		now:    time.Now,
	}
}

// CheckAvailability reports whether no non-cancelled appointment other
// than excludeID occupies the slot.
func (s *Service) CheckAvailability(ctx context.Context, doctorID int64, date Date, tm ClockTime, excludeID int64) (bool, error) {
	if doctorID == 0 {
		return false, ErrDoctorNotSelected
	}
	if err := validateSlotFields(date, tm); err != nil {
		return false, err
	}
	if err := s.resolveDoctor(ctx, doctorID); err != nil {
		return false, err
	}
	return s.slotFree(ctx, Slot{DoctorID: doctorID, Date: date, Time: tm}, excludeID)
}

// BookAppointment inserts a new appointment after the slot passes the
// availability check. The store's unique index on active slots backs the
// check up when two bookings race.
func (s *Service) BookAppointment(ctx context.Context, req BookRequest) (*Appointment, error) {
	if req.Status == "" {
		req.Status = StatusScheduled
	}
	if err := validateForm(req.PatientID, req.DoctorID, req.Date, req.Time, req.Status); err != nil {
		return nil, err
	}
	if req.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: cannot book a cancelled appointment", ErrInvalidStatus)
	}

	if err := s.resolvePatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if err := s.resolveDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	appt := Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Time:      req.Time,
		Status:    req.Status,
	}

	var created *Appointment
	err := s.withSlotLock(ctx, appt.Slot(), func(lockCtx context.Context) error {
		free, err := s.slotFree(lockCtx, appt.Slot(), 0)
		if err != nil {
			return err
		}
		if !free {
			return ErrDoctorUnavailable
		}

		ev := s.event(EventAppointmentBooked, nil, map[string]any{
			"patient_id": appt.PatientID,
			"doctor_id":  appt.DoctorID,
			"date":       appt.Date.String(),
			"time":       appt.Time.String(),
			"status":     appt.Status,
		})
		created, err = s.repo.CreateAppointment(lockCtx, appt, ev)
		if err != nil {
			return storeErr("book appointment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateAppointment rewrites every field of an appointment. The slot is
// re-validated, excluding the appointment itself, when doctor, date or
// time change or when a cancelled appointment is reinstated.
func (s *Service) UpdateAppointment(ctx context.Context, id int64, req UpdateRequest) (*Appointment, error) {
	if id == 0 {
		return nil, ErrAppointmentNotSelected
	}
	if err := validateForm(req.PatientID, req.DoctorID, req.Date, req.Time, req.Status); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storeErr("load appointment", err)
	}

	if req.Status == StatusCancelled && existing.Status != StatusCancelled {
		return nil, ErrCancelThroughUpdate
	}

	if err := s.resolvePatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if err := s.resolveDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	next := *existing
	next.PatientID = req.PatientID
	next.DoctorID = req.DoctorID
	next.Date = req.Date
	next.Time = req.Time
	next.Status = req.Status

	slotChanged := next.Slot() != existing.Slot()
	reinstated := !existing.Status.OccupiesSlot() && next.Status.OccupiesSlot()

	ev := s.event(EventAppointmentUpdated, &id, map[string]any{
		"from": map[string]any{
			"patient_id": existing.PatientID,
			"doctor_id":  existing.DoctorID,
			"date":       existing.Date.String(),
			"time":       existing.Time.String(),
			"status":     existing.Status,
		},
		"to": map[string]any{
			"patient_id": next.PatientID,
			"doctor_id":  next.DoctorID,
			"date":       next.Date.String(),
			"time":       next.Time.String(),
			"status":     next.Status,
		},
	})

	if !next.Status.OccupiesSlot() || (!slotChanged && !reinstated) {
		updated, err := s.repo.UpdateAppointment(ctx, next, ev)
		if err != nil {
			return nil, storeErr("update appointment", err)
		}
		return updated, nil
	}

	var updated *Appointment
	err = s.withSlotLock(ctx, next.Slot(), func(lockCtx context.Context) error {
		free, err := s.slotFree(lockCtx, next.Slot(), id)
		if err != nil {
			return err
		}
		if !free {
			return ErrDoctorUnavailable
		}

		updated, err = s.repo.UpdateAppointment(lockCtx, next, ev)
		if err != nil {
			return storeErr("update appointment", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CancelAppointment moves an appointment to StatusCancelled, which frees
// its slot. It returns false when there is nothing to cancel: the id is
// unknown or the appointment is already cancelled.
func (s *Service) CancelAppointment(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, ErrAppointmentNotSelected
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, storeErr("load appointment", err)
	}
	if appt.Status == StatusCancelled {
		return false, nil
	}

	ev := s.event(EventAppointmentCancelled, &id, map[string]any{
		"previous_status": appt.Status,
	})
	_, err = s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCancelled, ev)
	if err != nil {
		// Changed or removed between the read and the conditional update.
		if errors.Is(err, ErrAppointmentNotFound) {
			return false, nil
		}
		return false, storeErr("cancel appointment", err)
	}

	return true, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id int64) (*AppointmentDetail, error) {
	if id == 0 {
		return nil, ErrAppointmentNotSelected
	}
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, storeErr("get appointment", err)
	}
	return detail, nil
}

// ListAppointments returns appointments ordered by date descending, then
// time ascending.
func (s *Service) ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Query = strings.TrimSpace(f.Query)
	if f.Date != nil && !f.Date.Valid() {
		return nil, ErrInvalidDate
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, storeErr("list appointments", err)
	}
	return appointments, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, storeErr("list patients", err)
	}
	return patients, nil
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, storeErr("list doctors", err)
	}
	return doctors, nil
}

func (s *Service) AddPatient(ctx context.Context, name string) (*Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	p, err := s.repo.CreatePatient(ctx, name)
	if err != nil {
		return nil, storeErr("add patient", err)
	}
	return p, nil
}

func (s *Service) AddDoctor(ctx context.Context, name, specialization string) (*Doctor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	d, err := s.repo.CreateDoctor(ctx, name, strings.TrimSpace(specialization))
	if err != nil {
		return nil, storeErr("add doctor", err)
	}
	return d, nil
}

// StatusSummary counts appointments per status.
func (s *Service) StatusSummary(ctx context.Context) (StatusSummary, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return StatusSummary{}, storeErr("count appointments", err)
	}

	sum := StatusSummary{Counts: make(map[AppointmentStatus]int, len(Statuses))}
	for _, st := range Statuses {
		sum.Counts[st] = counts[st]
	}
	for _, n := range counts {
		sum.Total += n
	}
	if sum.Total > 0 {
		sum.CompletionRate = float64(sum.Counts[StatusCompleted]) * 100 / float64(sum.Total)
	}
	return sum, nil
}

func validateForm(patientID, doctorID int64, date Date, tm ClockTime, status AppointmentStatus) error {
	if patientID == 0 {
		return ErrPatientNotSelected
	}
	if doctorID == 0 {
		return ErrDoctorNotSelected
	}
	if err := validateSlotFields(date, tm); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return nil
}

func validateSlotFields(date Date, tm ClockTime) error {
	if !date.Valid() {
		return ErrInvalidDate
	}
	if !tm.Valid() {
		return ErrInvalidTime
	}
	return nil
}

func (s *Service) resolvePatient(ctx context.Context, id int64) error {
	if _, err := s.repo.GetPatientByID(ctx, id); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return storeErr("load patient", err)
	}
	return nil
}

func (s *Service) resolveDoctor(ctx context.Context, id int64) error {
	if _, err := s.repo.GetDoctorByID(ctx, id); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return storeErr("load doctor", err)
	}
	return nil
}

func (s *Service) slotFree(ctx context.Context, slot Slot, excludeID int64) (bool, error) {
	n, err := s.repo.CountSlotConflicts(ctx, slot, excludeID)
	if err != nil {
		return false, storeErr("check availability", err)
	}
	return n == 0, nil
}

func (s *Service) withSlotLock(ctx context.Context, slot Slot, fn func(ctx context.Context) error) error {
	err := s.locker.WithSlotLock(ctx, slot.Key(), fn)
	if err == nil {
		return nil
	}
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSlotBeingBooked
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrSchedulingConflict) ||
		errors.Is(err, ErrPersistence) || errors.Is(err, ErrAppointmentNotFound) {
		return err
	}
	// Lock backend failure.
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func (s *Service) event(eventType string, appointmentID *int64, payload map[string]any) EventLog {
	// Payloads hold only strings, ints and statuses.
	data, _ := json.Marshal(payload)
	return EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
}

// storeErr passes classified errors through and wraps everything else as
// a persistence failure.
func storeErr(op string, err error) error {
	if errors.Is(err, ErrSchedulingConflict) || errors.Is(err, ErrAppointmentNotFound) ||
		errors.Is(err, ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
