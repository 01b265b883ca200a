package appointment

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_BookScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := f.doctors[0].ID
	date := mustDate(t, "2025-03-01")

	first, err := f.svc.BookAppointment(ctx, BookRequest{
		PatientID: f.patients[0].ID, DoctorID: doctor, Date: date, Time: mustTime(t, "09:00"),
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, StatusScheduled, first.Status)
	assert.Equal(t, date, first.Date)
	assert.Equal(t, mustTime(t, "09:00"), first.Time)

	_, err = f.svc.BookAppointment(ctx, BookRequest{
		PatientID: f.patients[1].ID, DoctorID: doctor, Date: date, Time: mustTime(t, "09:00"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchedulingConflict)
	assert.ErrorIs(t, err, ErrDoctorUnavailable)

	second, err := f.svc.BookAppointment(ctx, BookRequest{
		PatientID: f.patients[1].ID, DoctorID: doctor, Date: date, Time: mustTime(t, "09:30"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	cancelled, err := f.svc.CancelAppointment(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)

	rebooked, err := f.svc.BookAppointment(ctx, BookRequest{
		PatientID: f.patients[2].ID, DoctorID: doctor, Date: date, Time: mustTime(t, "09:00"),
	})
	require.NoError(t, err, "cancellation frees the slot")

	f.repo.reset()
	completed, err := f.svc.UpdateAppointment(ctx, rebooked.ID, UpdateRequest{
		PatientID: rebooked.PatientID, DoctorID: doctor, Date: date, Time: rebooked.Time, Status: StatusCompleted,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Zero(t, f.repo.conflictChecks, "status-only update skips the availability check")
}

func TestService_CheckAvailability_IsExact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := f.doctors[0].ID
	date := mustDate(t, "2025-03-01")
	at := mustTime(t, "10:15")

	_, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: doctor, Date: date, Time: at})
	require.NoError(t, err)

	tests := []struct {
		name     string
		doctorID int64
		date     Date
		time     ClockTime
		want     bool
	}{
		{name: "same slot", doctorID: doctor, date: date, time: at, want: false},
		{name: "one minute later", doctorID: doctor, date: date, time: mustTime(t, "10:16"), want: true},
		{name: "one minute earlier", doctorID: doctor, date: date, time: mustTime(t, "10:14"), want: true},
		{name: "next day", doctorID: doctor, date: date.AddDays(1), time: at, want: true},
		{name: "previous day", doctorID: doctor, date: date.AddDays(-1), time: at, want: true},
		{name: "other doctor", doctorID: f.doctors[1].ID, date: date, time: at, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.CheckAvailability(ctx, tt.doctorID, tt.date, tt.time, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_CheckAvailability_ExcludesNamedAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-04-02")
	at := mustTime(t, "11:00")

	appt, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: date, Time: at})
	require.NoError(t, err)

	free, err := f.svc.CheckAvailability(ctx, f.doctors[0].ID, date, at, appt.ID)
	require.NoError(t, err)
	assert.True(t, free)
}

func TestService_CheckAvailability_IgnoresCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-04-02")
	at := mustTime(t, "11:00")

	appt, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: date, Time: at})
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)

	free, err := f.svc.CheckAvailability(ctx, f.doctors[0].ID, date, at, 0)
	require.NoError(t, err)
	assert.True(t, free)
}

func TestService_CheckAvailability_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-04-02")

	_, err := f.svc.CheckAvailability(ctx, 0, date, mustTime(t, "09:00"), 0)
	assert.ErrorIs(t, err, ErrDoctorNotSelected)

	_, err = f.svc.CheckAvailability(ctx, 999, date, mustTime(t, "09:00"), 0)
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	_, err = f.svc.CheckAvailability(ctx, f.doctors[0].ID, Date{}, mustTime(t, "09:00"), 0)
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = f.svc.CheckAvailability(ctx, f.doctors[0].ID, date, ClockTime{Hour: 25}, 0)
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestService_Book_UnselectedNeverTouchesStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-03-01")

	_, err := f.svc.BookAppointment(ctx, BookRequest{DoctorID: f.doctors[0].ID, Date: date, Time: mustTime(t, "09:00")})
	assert.ErrorIs(t, err, ErrPatientNotSelected)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, Date: date, Time: mustTime(t, "09:00")})
	assert.ErrorIs(t, err, ErrDoctorNotSelected)

	assert.Zero(t, f.repo.calls)
	assert.Zero(t, f.repo.writes)
}

func TestService_Book_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-03-01")

	_, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: 404, DoctorID: f.doctors[0].ID, Date: date, Time: mustTime(t, "09:00")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrPatientNotFound)

	_, err = f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: 404, Date: date, Time: mustTime(t, "09:00")})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	assert.Zero(t, f.repo.writes)
}

func TestService_Book_RejectsCancelledAndUnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00")}

	req.Status = StatusCancelled
	_, err := f.svc.BookAppointment(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	req.Status = "Pending"
	_, err = f.svc.BookAppointment(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	req.Status = StatusCompleted
	appt, err := f.svc.BookAppointment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, appt.Status)
}

func TestService_Book_AcceptsPastDates(t *testing.T) {
	f := newFixture(t)

	appt, err := f.svc.BookAppointment(context.Background(), BookRequest{
		PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "1999-12-31"), Time: mustTime(t, "23:59"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1999-12-31", appt.Date.String())
}

func TestService_Book_UniqueIndexCatchesStaleCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00")}

	_, err := f.svc.BookAppointment(ctx, req)
	require.NoError(t, err)

	// Another writer booked between our check and insert.
	f.repo.staleAvailCheck = true
	req.PatientID = f.patients[1].ID
	_, err = f.svc.BookAppointment(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchedulingConflict)
	assert.NotErrorIs(t, err, ErrPersistence)
}

func TestService_Book_SlotLockedElsewhere(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.repo, busyLocker{})

	_, err := svc.BookAppointment(context.Background(), BookRequest{
		PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00"),
	})
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
	assert.ErrorIs(t, err, ErrSchedulingConflict)
	assert.Zero(t, f.repo.writes)
}

func TestService_Update_MoveIntoOccupiedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-03-01")
	doctor := f.doctors[0].ID

	_, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: doctor, Date: date, Time: mustTime(t, "09:00")})
	require.NoError(t, err)
	other, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[1].ID, DoctorID: doctor, Date: date, Time: mustTime(t, "10:00")})
	require.NoError(t, err)

	_, err = f.svc.UpdateAppointment(ctx, other.ID, UpdateRequest{
		PatientID: other.PatientID, DoctorID: doctor, Date: date, Time: mustTime(t, "09:00"), Status: StatusScheduled,
	})
	assert.ErrorIs(t, err, ErrDoctorUnavailable)

	stored, err := f.repo.GetAppointmentByID(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", stored.Time.String(), "failed update leaves the record untouched")

	moved, err := f.svc.UpdateAppointment(ctx, other.ID, UpdateRequest{
		PatientID: other.PatientID, DoctorID: f.doctors[1].ID, Date: date, Time: mustTime(t, "09:00"), Status: StatusScheduled,
	})
	require.NoError(t, err)
	assert.Equal(t, f.doctors[1].ID, moved.DoctorID)
}

func TestService_Update_SameSlotNeverConflictsWithItself(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-03-01")

	appt, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: date, Time: mustTime(t, "09:00")})
	require.NoError(t, err)

	for _, st := range []AppointmentStatus{StatusCompleted, StatusNoShow, StatusScheduled} {
		updated, err := f.svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{
			PatientID: f.patients[1].ID, DoctorID: appt.DoctorID, Date: appt.Date, Time: appt.Time, Status: st,
		})
		require.NoError(t, err, st)
		assert.Equal(t, st, updated.Status)
		assert.Equal(t, f.patients[1].ID, updated.PatientID)
	}
}

func TestService_Update_RejectsCancelStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00")})
	require.NoError(t, err)

	_, err = f.svc.UpdateAppointment(ctx, appt.ID, UpdateRequest{
		PatientID: appt.PatientID, DoctorID: appt.DoctorID, Date: appt.Date, Time: appt.Time, Status: StatusCancelled,
	})
	assert.ErrorIs(t, err, ErrCancelThroughUpdate)
}

func TestService_Update_ReinstateChecksSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00")}

	old, err := f.svc.BookAppointment(ctx, req)
	require.NoError(t, err)
	_, err = f.svc.CancelAppointment(ctx, old.ID)
	require.NoError(t, err)

	req.PatientID = f.patients[1].ID
	_, err = f.svc.BookAppointment(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.UpdateAppointment(ctx, old.ID, UpdateRequest{
		PatientID: old.PatientID, DoctorID: old.DoctorID, Date: old.Date, Time: old.Time, Status: StatusScheduled,
	})
	assert.ErrorIs(t, err, ErrSchedulingConflict)

	// Reinstating onto a free slot works.
	reinstated, err := f.svc.UpdateAppointment(ctx, old.ID, UpdateRequest{
		PatientID: old.PatientID, DoctorID: old.DoctorID, Date: old.Date, Time: mustTime(t, "09:15"), Status: StatusScheduled,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, reinstated.Status)
}

func TestService_Update_NotFoundAndUnselected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := UpdateRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00"), Status: StatusScheduled}

	_, err := f.svc.UpdateAppointment(ctx, 0, req)
	assert.ErrorIs(t, err, ErrAppointmentNotSelected)

	_, err = f.svc.UpdateAppointment(ctx, 12345, req)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	req.PatientID = 0
	_, err = f.svc.UpdateAppointment(ctx, 12345, req)
	assert.ErrorIs(t, err, ErrPatientNotSelected)
}

func TestService_Cancel_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00")})
	require.NoError(t, err)

	ok, err := f.svc.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.CancelAppointment(ctx, 987654)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := f.repo.GetAppointmentByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status, "cancellation keeps the record")
}

func TestService_NoDoubleBookingUnderRandomOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	dates := []Date{mustDate(t, "2025-05-01"), mustDate(t, "2025-05-02")}
	times := []ClockTime{mustTime(t, "09:00"), mustTime(t, "09:30"), mustTime(t, "10:00")}
	statuses := []AppointmentStatus{StatusScheduled, StatusCompleted, StatusNoShow}

	var ids []int64
	for i := 0; i < 300; i++ {
		doctor := f.doctors[rng.Intn(len(f.doctors))].ID
		patient := f.patients[rng.Intn(len(f.patients))].ID
		date := dates[rng.Intn(len(dates))]
		tm := times[rng.Intn(len(times))]
		st := statuses[rng.Intn(len(statuses))]

		switch op := rng.Intn(3); {
		case op == 0 || len(ids) == 0:
			appt, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: patient, DoctorID: doctor, Date: date, Time: tm, Status: st})
			if err == nil {
				ids = append(ids, appt.ID)
			} else {
				require.ErrorIs(t, err, ErrSchedulingConflict)
			}
		case op == 1:
			id := ids[rng.Intn(len(ids))]
			_, err := f.svc.UpdateAppointment(ctx, id, UpdateRequest{PatientID: patient, DoctorID: doctor, Date: date, Time: tm, Status: st})
			if err != nil {
				require.ErrorIs(t, err, ErrSchedulingConflict)
			}
		default:
			_, err := f.svc.CancelAppointment(ctx, ids[rng.Intn(len(ids))])
			require.NoError(t, err)
		}
	}

	all, err := f.svc.ListAppointments(ctx, ListFilter{Limit: maxListLimit})
	require.NoError(t, err)

	seen := make(map[Slot]int64)
	for _, a := range all {
		if !a.Status.OccupiesSlot() {
			continue
		}
		if prev, dup := seen[a.Slot()]; dup {
			t.Fatalf("slot %s held by appointments %d and %d", a.Slot().Key(), prev, a.ID)
		}
		seen[a.Slot()] = a.ID
	}
}

func TestService_ListAppointments_OrderAndFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ito, moreau := f.doctors[0].ID, f.doctors[1].ID

	book := func(patient, doctor int64, date, tm string) *Appointment {
		a, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: patient, DoctorID: doctor, Date: mustDate(t, date), Time: mustTime(t, tm)})
		require.NoError(t, err)
		return a
	}
	a1 := book(f.patients[0].ID, ito, "2025-03-01", "14:00")
	a2 := book(f.patients[1].ID, ito, "2025-03-01", "09:00")
	a3 := book(f.patients[2].ID, moreau, "2025-03-02", "16:00")
	a4 := book(f.patients[0].ID, moreau, "2025-02-28", "08:00")
	_, err := f.svc.CancelAppointment(ctx, a4.ID)
	require.NoError(t, err)

	all, err := f.svc.ListAppointments(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	got := []int64{all[0].ID, all[1].ID, all[2].ID, all[3].ID}
	assert.Equal(t, []int64{a3.ID, a2.ID, a1.ID, a4.ID}, got, "date descending, then time ascending")

	assert.Equal(t, "Chen Wei", all[0].Patient.Name)
	assert.Equal(t, "Dr. Moreau", all[0].Doctor.Name)
	assert.Equal(t, "ENT", all[0].Doctor.Specialization)

	byDoctorName, err := f.svc.ListAppointments(ctx, ListFilter{Query: "ITO"})
	require.NoError(t, err)
	assert.Len(t, byDoctorName, 2)

	byPatientName, err := f.svc.ListAppointments(ctx, ListFilter{Query: "ann"})
	require.NoError(t, err)
	assert.Len(t, byPatientName, 2)

	byStatus, err := f.svc.ListAppointments(ctx, ListFilter{Query: "cancel"})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, a4.ID, byStatus[0].ID)

	day := mustDate(t, "2025-03-01")
	byDate, err := f.svc.ListAppointments(ctx, ListFilter{Date: &day, DoctorID: ito})
	require.NoError(t, err)
	assert.Len(t, byDate, 2)

	byPatient, err := f.svc.ListAppointments(ctx, ListFilter{PatientID: f.patients[2].ID})
	require.NoError(t, err)
	require.Len(t, byPatient, 1)
	assert.Equal(t, a3.ID, byPatient[0].ID)

	page, err := f.svc.ListAppointments(ctx, ListFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, a2.ID, page[0].ID)
}

func TestService_GetAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	appt, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[1].ID, DoctorID: f.doctors[1].ID, Date: mustDate(t, "2025-03-01"), Time: mustTime(t, "09:00")})
	require.NoError(t, err)

	detail, err := f.svc.GetAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, detail.ID)
	assert.Equal(t, "Bob Otieno", detail.Patient.Name)
	assert.Equal(t, "Dr. Moreau", detail.Doctor.Name)

	_, err = f.svc.GetAppointment(ctx, appt.ID+100)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestService_StatusSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := mustDate(t, "2025-03-01")

	for i, tm := range []string{"09:00", "09:30", "10:00", "10:30"} {
		a, err := f.svc.BookAppointment(ctx, BookRequest{PatientID: f.patients[0].ID, DoctorID: f.doctors[0].ID, Date: date, Time: mustTime(t, tm)})
		require.NoError(t, err)
		switch i {
		case 0:
			_, err = f.svc.UpdateAppointment(ctx, a.ID, UpdateRequest{PatientID: a.PatientID, DoctorID: a.DoctorID, Date: a.Date, Time: a.Time, Status: StatusCompleted})
		case 1:
			_, err = f.svc.CancelAppointment(ctx, a.ID)
		}
		require.NoError(t, err)
	}

	sum, err := f.svc.StatusSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Counts[StatusScheduled])
	assert.Equal(t, 1, sum.Counts[StatusCompleted])
	assert.Equal(t, 1, sum.Counts[StatusCancelled])
	assert.Equal(t, 0, sum.Counts[StatusNoShow])
	assert.InDelta(t, 25.0, sum.CompletionRate, 0.001)
}

func TestService_Directory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddPatient(ctx, "   ")
	assert.ErrorIs(t, err, ErrNameRequired)

	p, err := f.svc.AddPatient(ctx, " Aaron Zed ")
	require.NoError(t, err)
	assert.Equal(t, "Aaron Zed", p.Name)

	patients, err := f.svc.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 4)
	assert.Equal(t, "Aaron Zed", patients[0].Name, "ordered by name")

	d, err := f.svc.AddDoctor(ctx, "Dr. Adams", "Pediatrics")
	require.NoError(t, err)
	doctors, err := f.svc.ListDoctors(ctx)
	require.NoError(t, err)
	require.Len(t, doctors, 3)
	assert.Equal(t, d.ID, doctors[0].ID)
	assert.Equal(t, "Pediatrics", doctors[0].Specialization)
}

// failingRepo fails every call with a driver error.
type failingRepo struct {
	Repository
	err error
}

func (r failingRepo) GetPatientByID(context.Context, int64) (*Patient, error) { return nil, r.err }
func (r failingRepo) GetDoctorByID(context.Context, int64) (*Doctor, error)   { return nil, r.err }
func (r failingRepo) CountSlotConflicts(context.Context, Slot, int64) (int, error) {
	return 0, r.err
}
func (r failingRepo) GetAppointmentByID(context.Context, int64) (*Appointment, error) {
	return nil, r.err
}
func (r failingRepo) ListAppointments(context.Context, ListFilter) ([]AppointmentDetail, error) {
	return nil, r.err
}

func TestService_PersistenceFailuresAreWrapped(t *testing.T) {
	driverErr := errors.New("connection refused")
	svc := NewService(failingRepo{err: driverErr}, busyLocker{})
	ctx := context.Background()
	date := Date{Year: 2025, Month: 3, Day: 1}
	at := ClockTime{Hour: 9}

	_, err := svc.CheckAvailability(ctx, 1, date, at, 0)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, driverErr)

	_, err = svc.BookAppointment(ctx, BookRequest{PatientID: 1, DoctorID: 1, Date: date, Time: at})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrValidation)

	_, err = svc.CancelAppointment(ctx, 1)
	assert.ErrorIs(t, err, ErrPersistence)

	_, err = svc.ListAppointments(ctx, ListFilter{})
	assert.ErrorIs(t, err, ErrPersistence)
}
