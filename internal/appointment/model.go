package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "Scheduled"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
	StatusNoShow    AppointmentStatus = "No Show"
)

// Statuses lists every status in display order.
var Statuses = []AppointmentStatus{StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow}

// ParseStatus accepts the stored labels case-insensitively, plus "NoShow"
// for the no-show status.
func ParseStatus(s string) (AppointmentStatus, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(s), ""))
	switch norm {
	case "scheduled":
		return StatusScheduled, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	case "noshow", "no-show", "no_show":
		return StatusNoShow, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// OccupiesSlot reports whether an appointment in this status takes its slot.
func (s AppointmentStatus) OccupiesSlot() bool {
	return s != StatusCancelled
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Date is a calendar date on the clinic's wall clock.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Valid reports whether d names a real calendar day.
func (d Date) Valid() bool {
	if d.IsZero() {
		return false
	}
	return DateOf(d.Time()) == d
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ClockTime is a time of day with minute granularity.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime accepts "HH:MM", or "HH:MM:SS" with zero seconds.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		if len(p) != 2 {
			return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		nums[i] = n
	}
	if len(nums) == 3 && nums[2] != 0 {
		return ClockTime{}, fmt.Errorf("%w: %q has seconds", ErrInvalidTime, s)
	}

	c := ClockTime{Hour: nums[0], Minute: nums[1]}
	if !c.Valid() {
		return ClockTime{}, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return c, nil
}

// ClockTimeFromMinutes builds a ClockTime from minutes since midnight.
func ClockTimeFromMinutes(m int) ClockTime {
	return ClockTime{Hour: m / 60, Minute: m % 60}
}

func (c ClockTime) Valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// Minutes returns minutes since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Slot is the (doctor, date, time) triple an appointment occupies.
type Slot struct {
	DoctorID int64
	Date     Date
	Time     ClockTime
}

// Key names the slot for locking.
func (s Slot) Key() string {
	return fmt.Sprintf("doctor:%d:%sT%s", s.DoctorID, s.Date, s.Time)
}

type Patient struct {
	ID   int64
	Name string
}

type Doctor struct {
	ID             int64
	Name           string
	Specialization string
}

type Appointment struct {
	ID        int64
	PatientID int64
	DoctorID  int64
	Date      Date
	Time      ClockTime
	Status    AppointmentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Appointment) Slot() Slot {
	return Slot{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

type AppointmentDetail struct {
	Appointment
	Patient *Patient
	Doctor  *Doctor
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *int64
	Payload       []byte
	CreatedAt     time.Time
}

// ListFilter narrows ListAppointments. Zero fields do not filter.
type ListFilter struct {
	// Query is matched case-insensitively against patient name, doctor
	// name and status.
	Query     string
	DoctorID  int64
	PatientID int64
	Date      *Date
	Limit     int
	Offset    int
}

type StatusSummary struct {
	Counts         map[AppointmentStatus]int
	Total          int
	CompletionRate float64
}
