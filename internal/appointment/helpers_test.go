package appointment

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

func newSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.MigrateSQLite(ctx, sqlDB))
	return NewSQLiteRepository(sqlDB)
}

type fixture struct {
	svc      *Service
	repo     *spyRepo
	patients []Patient
	doctors  []Doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	spy := &spyRepo{Repository: newSQLiteRepo(t)}
	f := &fixture{
		svc:  NewService(spy, redisclient.NewLocalSlotLocker()),
		repo: spy,
	}

	for _, name := range []string{"Ann Patel", "Bob Otieno", "Chen Wei"} {
		p, err := spy.CreatePatient(ctx, name)
		require.NoError(t, err)
		f.patients = append(f.patients, *p)
	}
	for _, d := range []Doctor{{Name: "Dr. Ito", Specialization: "Cardiology"}, {Name: "Dr. Moreau", Specialization: "ENT"}} {
		created, err := spy.CreateDoctor(ctx, d.Name, d.Specialization)
		require.NoError(t, err)
		f.doctors = append(f.doctors, *created)
	}
	spy.reset()

	return f
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustTime(t *testing.T, s string) ClockTime {
	t.Helper()
	c, err := ParseClockTime(s)
	require.NoError(t, err)
	return c
}

// spyRepo counts calls so tests can assert which statements ran.
type spyRepo struct {
	Repository

	mu              sync.Mutex
	calls           int
	writes          int
	conflictChecks  int
	staleAvailCheck bool
}

func (s *spyRepo) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls, s.writes, s.conflictChecks = 0, 0, 0
}

func (s *spyRepo) record(write bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if write {
		s.writes++
	}
}

func (s *spyRepo) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	s.record(false)
	return s.Repository.GetPatientByID(ctx, id)
}

func (s *spyRepo) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	s.record(false)
	return s.Repository.GetDoctorByID(ctx, id)
}

func (s *spyRepo) CountSlotConflicts(ctx context.Context, slot Slot, excludeID int64) (int, error) {
	s.record(false)
	s.mu.Lock()
	s.conflictChecks++
	stale := s.staleAvailCheck
	s.mu.Unlock()
	if stale {
		return 0, nil
	}
	return s.Repository.CountSlotConflicts(ctx, slot, excludeID)
}

func (s *spyRepo) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	s.record(false)
	return s.Repository.GetAppointmentByID(ctx, id)
}

func (s *spyRepo) CreatePatient(ctx context.Context, name string) (*Patient, error) {
	s.record(true)
	return s.Repository.CreatePatient(ctx, name)
}

func (s *spyRepo) CreateDoctor(ctx context.Context, name, specialization string) (*Doctor, error) {
	s.record(true)
	return s.Repository.CreateDoctor(ctx, name, specialization)
}

func (s *spyRepo) CreateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error) {
	s.record(true)
	return s.Repository.CreateAppointment(ctx, a, ev)
}

func (s *spyRepo) UpdateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error) {
	s.record(true)
	return s.Repository.UpdateAppointment(ctx, a, ev)
}

func (s *spyRepo) UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus, ev EventLog) (*Appointment, error) {
	s.record(true)
	return s.Repository.UpdateAppointmentStatus(ctx, id, from, to, ev)
}

// busyLocker simulates another process holding every slot.
type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}
