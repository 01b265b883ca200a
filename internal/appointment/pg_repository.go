package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const pgAppointmentColumns = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time, a.status, a.created_at, a.updated_at`

const pgDetailSelect = `
	SELECT ` + pgAppointmentColumns + `, p.name, d.name, d.specialization
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
`

// Helpers

func pgDate(d Date) time.Time {
	return d.Time()
}

func pgClock(c ClockTime) pgtype.Time {
	return pgtype.Time{Microseconds: int64(c.Minutes()) * int64(time.Minute/time.Microsecond), Valid: true}
}

func clockFromPg(t pgtype.Time) ClockTime {
	return ClockTimeFromMinutes(int(t.Microseconds / int64(time.Minute/time.Microsecond)))
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var date time.Time
	var tm pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&tm,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(date)
	a.Time = clockFromPg(tm)
	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var a Appointment
	var date time.Time
	var tm pgtype.Time
	var p Patient
	var d Doctor
	var specialization *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&tm,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&p.Name,
		&d.Name,
		&specialization,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(date)
	a.Time = clockFromPg(tm)
	p.ID = a.PatientID
	d.ID = a.DoctorID
	if specialization != nil {
		d.Specialization = *specialization
	}
	return &AppointmentDetail{Appointment: a, Patient: &p, Doctor: &d}, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %w", ErrDoctorUnavailable, err)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return err
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id, name
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	var d Doctor
	var specialization *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, specialization
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &specialization)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	if specialization != nil {
		d.Specialization = *specialization
	}
	return &d, nil
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM patients ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(specialization, '') FROM doctors ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreatePatient(ctx context.Context, name string) (*Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (name) VALUES ($1)
		RETURNING id, name
	`, name).Scan(&p.ID, &p.Name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) CreateDoctor(ctx context.Context, name, specialization string) (*Doctor, error) {
	var d Doctor
	err := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (name, specialization) VALUES ($1, $2)
		RETURNING id, name, specialization
	`, name, specialization).Scan(&d.ID, &d.Name, &d.Specialization)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PgRepository) CountSlotConflicts(ctx context.Context, slot Slot, excludeID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND appointment_time = $3
		  AND status <> $4
		  AND id <> $5
	`, slot.DoctorID, pgDate(slot.Date), pgClock(slot.Time), StatusCancelled, excludeID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+pgAppointmentColumns+`
		FROM appointments a
		WHERE a.id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, pgDetailSelect+` WHERE a.id = $1`, id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		p := arg("%" + strings.ToLower(f.Query) + "%")
		where = append(where, fmt.Sprintf("(LOWER(p.name) LIKE %s OR LOWER(d.name) LIKE %s OR LOWER(a.status) LIKE %s)", p, p, p))
	}
	if f.DoctorID != 0 {
		where = append(where, "a.doctor_id = "+arg(f.DoctorID))
	}
	if f.PatientID != 0 {
		where = append(where, "a.patient_id = "+arg(f.PatientID))
	}
	if f.Date != nil {
		where = append(where, "a.appointment_date = "+arg(pgDate(*f.Date)))
	}

	query := pgDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.appointment_date DESC, a.appointment_time ASC, a.id ASC"
	query += " LIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) CountByStatus(ctx context.Context) (map[AppointmentStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[AppointmentStatus]int)
	for rows.Next() {
		var st AppointmentStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error) {
	var created *Appointment

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO appointments AS a (patient_id, doctor_id, appointment_date, appointment_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			RETURNING `+pgAppointmentColumns+`
		`, a.PatientID, a.DoctorID, pgDate(a.Date), pgClock(a.Time), a.Status)

		var err error
		created, err = scanAppointment(row)
		if err != nil {
			return err
		}

		if ev.AppointmentID == nil {
			ev.AppointmentID = &created.ID
		}
		return insertEvent(ctx, tx, ev)
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error) {
	var updated *Appointment

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments AS a
			SET patient_id = $2,
			    doctor_id = $3,
			    appointment_date = $4,
			    appointment_time = $5,
			    status = $6,
			    updated_at = now()
			WHERE a.id = $1
			RETURNING `+pgAppointmentColumns+`
		`, a.ID, a.PatientID, a.DoctorID, pgDate(a.Date), pgClock(a.Time), a.Status)

		var err error
		updated, err = scanAppointment(row)
		if err != nil {
			return err
		}
		return insertEvent(ctx, tx, ev)
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	return updated, nil
}

// UpdateAppointmentStatus changes the status only if it is still from.
func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus, ev EventLog) (*Appointment, error) {
	var updated *Appointment

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments AS a
			SET status = $2,
			    updated_at = now()
			WHERE a.id = $1
			  AND a.status = $3
			RETURNING `+pgAppointmentColumns+`
		`, id, to, from)

		var err error
		updated, err = scanAppointment(row)
		if err != nil {
			return err
		}
		return insertEvent(ctx, tx, ev)
	})
	if err != nil {
		return nil, mapPgError(err)
	}

	return updated, nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev EventLog) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
