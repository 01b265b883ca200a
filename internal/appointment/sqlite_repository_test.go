package appointment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSQLite(t *testing.T, repo *SQLiteRepository) (*Patient, *Doctor) {
	t.Helper()
	ctx := context.Background()

	p, err := repo.CreatePatient(ctx, "Dana Scully")
	require.NoError(t, err)
	d, err := repo.CreateDoctor(ctx, "Dr. Mulder", "Radiology")
	require.NoError(t, err)
	return p, d
}

func TestSQLiteRepository_CreateWritesEventInSameTx(t *testing.T) {
	repo := newSQLiteRepo(t)
	p, d := seedSQLite(t, repo)
	ctx := context.Background()

	appt, err := repo.CreateAppointment(ctx, Appointment{
		PatientID: p.ID, DoctorID: d.ID, Date: mustDate(t, "2025-06-01"), Time: mustTime(t, "08:45"), Status: StatusScheduled,
	}, EventLog{EventType: EventAppointmentBooked, Payload: []byte(`{"k":"v"}`)})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", appt.Date.String())
	assert.Equal(t, "08:45", appt.Time.String())
	assert.False(t, appt.CreatedAt.IsZero())

	var events []struct {
		EventType     string `db:"event_type"`
		AppointmentID int64  `db:"appointment_id"`
		Payload       string `db:"payload"`
	}
	require.NoError(t, repo.db.SelectContext(ctx, &events, `SELECT event_type, appointment_id, payload FROM appointment_events`))
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentBooked, events[0].EventType)
	assert.Equal(t, appt.ID, events[0].AppointmentID)
	assert.JSONEq(t, `{"k":"v"}`, events[0].Payload)
}

func TestSQLiteRepository_FailedInsertRollsBackEvent(t *testing.T) {
	repo := newSQLiteRepo(t)
	p, d := seedSQLite(t, repo)
	ctx := context.Background()
	a := Appointment{PatientID: p.ID, DoctorID: d.ID, Date: mustDate(t, "2025-06-01"), Time: mustTime(t, "08:45"), Status: StatusScheduled}

	_, err := repo.CreateAppointment(ctx, a, EventLog{EventType: EventAppointmentBooked})
	require.NoError(t, err)

	_, err = repo.CreateAppointment(ctx, a, EventLog{EventType: EventAppointmentBooked})
	assert.ErrorIs(t, err, ErrDoctorUnavailable)

	var n int
	require.NoError(t, repo.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM appointment_events`))
	assert.Equal(t, 1, n)
}

func TestSQLiteRepository_UnknownReferenceIsValidation(t *testing.T) {
	repo := newSQLiteRepo(t)
	_, d := seedSQLite(t, repo)

	_, err := repo.CreateAppointment(context.Background(), Appointment{
		PatientID: 9999, DoctorID: d.ID, Date: mustDate(t, "2025-06-01"), Time: mustTime(t, "08:45"), Status: StatusScheduled,
	}, EventLog{EventType: EventAppointmentBooked})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSQLiteRepository_UpdateStatusIsConditional(t *testing.T) {
	repo := newSQLiteRepo(t)
	p, d := seedSQLite(t, repo)
	ctx := context.Background()

	appt, err := repo.CreateAppointment(ctx, Appointment{
		PatientID: p.ID, DoctorID: d.ID, Date: mustDate(t, "2025-06-01"), Time: mustTime(t, "08:45"), Status: StatusScheduled,
	}, EventLog{EventType: EventAppointmentBooked})
	require.NoError(t, err)

	_, err = repo.UpdateAppointmentStatus(ctx, appt.ID, StatusCompleted, StatusCancelled, EventLog{EventType: EventAppointmentCancelled})
	assert.ErrorIs(t, err, ErrAppointmentNotFound, "status moved on since it was read")

	updated, err := repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelled, EventLog{EventType: EventAppointmentCancelled})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)

	n, err := repo.CountSlotConflicts(ctx, appt.Slot(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteRepository_UpdateMissingAppointment(t *testing.T) {
	repo := newSQLiteRepo(t)
	p, d := seedSQLite(t, repo)

	_, err := repo.UpdateAppointment(context.Background(), Appointment{
		ID: 77, PatientID: p.ID, DoctorID: d.ID, Date: mustDate(t, "2025-06-01"), Time: mustTime(t, "08:45"), Status: StatusScheduled,
	}, EventLog{EventType: EventAppointmentUpdated})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestSQLiteRepository_NotFound(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.GetPatientByID(ctx, 1)
	assert.ErrorIs(t, err, ErrPatientNotFound)
	_, err = repo.GetDoctorByID(ctx, 1)
	assert.ErrorIs(t, err, ErrDoctorNotFound)
	_, err = repo.GetAppointmentByID(ctx, 1)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = repo.GetAppointmentDetail(ctx, 1)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestSQLiteRepository_CountByStatus(t *testing.T) {
	repo := newSQLiteRepo(t)
	p, d := seedSQLite(t, repo)
	ctx := context.Background()

	for i, st := range []AppointmentStatus{StatusScheduled, StatusNoShow, StatusNoShow} {
		_, err := repo.CreateAppointment(ctx, Appointment{
			PatientID: p.ID, DoctorID: d.ID, Date: mustDate(t, "2025-06-01"), Time: ClockTimeFromMinutes(9*60 + i*15), Status: st,
		}, EventLog{EventType: EventAppointmentBooked})
		require.NoError(t, err)
	}

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[AppointmentStatus]int{StatusScheduled: 1, StatusNoShow: 2}, counts)
}
