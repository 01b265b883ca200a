package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteRepository stores the clinic in a single SQLite file. Dates and
// times are kept as canonical "YYYY-MM-DD" and "HH:MM" text.
type SQLiteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(db *sqlx.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type sqliteAppointmentRow struct {
	ID        int64  `db:"id"`
	PatientID int64  `db:"patient_id"`
	DoctorID  int64  `db:"doctor_id"`
	Date      string `db:"appointment_date"`
	Time      string `db:"appointment_time"`
	Status    string `db:"status"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

type sqliteDetailRow struct {
	sqliteAppointmentRow
	PatientName          string `db:"patient_name"`
	DoctorName           string `db:"doctor_name"`
	DoctorSpecialization string `db:"doctor_specialization"`
}

const sqliteAppointmentColumns = `a.id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time, a.status, a.created_at, a.updated_at`

const sqliteDetailSelect = `
	SELECT ` + sqliteAppointmentColumns + `,
	       p.name AS patient_name, d.name AS doctor_name, d.specialization AS doctor_specialization
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN doctors d ON d.id = a.doctor_id
`

func (r sqliteAppointmentRow) toAppointment() (*Appointment, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return nil, fmt.Errorf("appointment %d: %w", r.ID, err)
	}
	tm, err := ParseClockTime(r.Time)
	if err != nil {
		return nil, fmt.Errorf("appointment %d: %w", r.ID, err)
	}
	created, _ := time.Parse(time.RFC3339Nano, r.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, r.UpdatedAt)

	return &Appointment{
		ID:        r.ID,
		PatientID: r.PatientID,
		DoctorID:  r.DoctorID,
		Date:      date,
		Time:      tm,
		Status:    AppointmentStatus(r.Status),
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func (r sqliteDetailRow) toDetail() (*AppointmentDetail, error) {
	a, err := r.toAppointment()
	if err != nil {
		return nil, err
	}
	return &AppointmentDetail{
		Appointment: *a,
		Patient:     &Patient{ID: a.PatientID, Name: r.PatientName},
		Doctor:      &Doctor{ID: a.DoctorID, Name: r.DoctorName, Specialization: r.DoctorSpecialization},
	}, nil
}

func sqliteNow() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func mapSQLiteError(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return fmt.Errorf("%w: %w", ErrDoctorUnavailable, err)
		case strings.Contains(msg, "FOREIGN KEY"):
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	return err
}

func (r *SQLiteRepository) GetPatientByID(ctx context.Context, id int64) (*Patient, error) {
	var p Patient
	err := r.db.QueryRowxContext(ctx, `SELECT id, name FROM patients WHERE id = ?`, id).Scan(&p.ID, &p.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *SQLiteRepository) GetDoctorByID(ctx context.Context, id int64) (*Doctor, error) {
	var d Doctor
	err := r.db.QueryRowxContext(ctx, `SELECT id, name, specialization FROM doctors WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Specialization)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *SQLiteRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	var rows []struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name FROM patients ORDER BY name, id`); err != nil {
		return nil, err
	}

	result := make([]Patient, 0, len(rows))
	for _, row := range rows {
		result = append(result, Patient{ID: row.ID, Name: row.Name})
	}
	return result, nil
}

func (r *SQLiteRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	var rows []struct {
		ID             int64  `db:"id"`
		Name           string `db:"name"`
		Specialization string `db:"specialization"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, name, specialization FROM doctors ORDER BY name, id`); err != nil {
		return nil, err
	}

	result := make([]Doctor, 0, len(rows))
	for _, row := range rows {
		result = append(result, Doctor{ID: row.ID, Name: row.Name, Specialization: row.Specialization})
	}
	return result, nil
}

func (r *SQLiteRepository) CreatePatient(ctx context.Context, name string) (*Patient, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO patients (name) VALUES (?)`, name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Patient{ID: id, Name: name}, nil
}

func (r *SQLiteRepository) CreateDoctor(ctx context.Context, name, specialization string) (*Doctor, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO doctors (name, specialization) VALUES (?, ?)`, name, specialization)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Doctor{ID: id, Name: name, Specialization: specialization}, nil
}

func (r *SQLiteRepository) CountSlotConflicts(ctx context.Context, slot Slot, excludeID int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*)
		FROM appointments
		WHERE doctor_id = ?
		  AND appointment_date = ?
		  AND appointment_time = ?
		  AND status <> ?
		  AND id <> ?
	`, slot.DoctorID, slot.Date.String(), slot.Time.String(), string(StatusCancelled), excludeID)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteRepository) GetAppointmentByID(ctx context.Context, id int64) (*Appointment, error) {
	return getSQLiteAppointment(ctx, r.db, id)
}

func getSQLiteAppointment(ctx context.Context, q sqlx.QueryerContext, id int64) (*Appointment, error) {
	var row sqliteAppointmentRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+sqliteAppointmentColumns+` FROM appointments a WHERE a.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return row.toAppointment()
}

func (r *SQLiteRepository) GetAppointmentDetail(ctx context.Context, id int64) (*AppointmentDetail, error) {
	var row sqliteDetailRow
	if err := r.db.GetContext(ctx, &row, sqliteDetailSelect+` WHERE a.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return row.toDetail()
}

func (r *SQLiteRepository) ListAppointments(ctx context.Context, f ListFilter) ([]AppointmentDetail, error) {
	var (
		where []string
		args  []any
	)

	if f.Query != "" {
		p := "%" + strings.ToLower(f.Query) + "%"
		where = append(where, "(LOWER(p.name) LIKE ? OR LOWER(d.name) LIKE ? OR LOWER(a.status) LIKE ?)")
		args = append(args, p, p, p)
	}
	if f.DoctorID != 0 {
		where = append(where, "a.doctor_id = ?")
		args = append(args, f.DoctorID)
	}
	if f.PatientID != 0 {
		where = append(where, "a.patient_id = ?")
		args = append(args, f.PatientID)
	}
	if f.Date != nil {
		where = append(where, "a.appointment_date = ?")
		args = append(args, f.Date.String())
	}

	query := sqliteDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.appointment_date DESC, a.appointment_time ASC, a.id ASC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []sqliteDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	result := make([]AppointmentDetail, 0, len(rows))
	for _, row := range rows {
		d, err := row.toDetail()
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, nil
}

func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[AppointmentStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM appointments GROUP BY status`); err != nil {
		return nil, err
	}

	counts := make(map[AppointmentStatus]int, len(rows))
	for _, row := range rows {
		counts[AppointmentStatus(row.Status)] = row.N
	}
	return counts, nil
}

func (r *SQLiteRepository) CreateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error) {
	var created *Appointment

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		now := sqliteNow()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO appointments (patient_id, doctor_id, appointment_date, appointment_time, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, a.PatientID, a.DoctorID, a.Date.String(), a.Time.String(), string(a.Status), now, now)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		if ev.AppointmentID == nil {
			ev.AppointmentID = &id
		}
		if err := insertSQLiteEvent(ctx, tx, ev); err != nil {
			return err
		}

		created, err = getSQLiteAppointment(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, mapSQLiteError(err)
	}

	return created, nil
}

func (r *SQLiteRepository) UpdateAppointment(ctx context.Context, a Appointment, ev EventLog) (*Appointment, error) {
	var updated *Appointment

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET patient_id = ?,
			    doctor_id = ?,
			    appointment_date = ?,
			    appointment_time = ?,
			    status = ?,
			    updated_at = ?
			WHERE id = ?
		`, a.PatientID, a.DoctorID, a.Date.String(), a.Time.String(), string(a.Status), sqliteNow(), a.ID)
		if err != nil {
			return err
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
		if err := insertSQLiteEvent(ctx, tx, ev); err != nil {
			return err
		}

		updated, err = getSQLiteAppointment(ctx, tx, a.ID)
		return err
	})
	if err != nil {
		return nil, mapSQLiteError(err)
	}

	return updated, nil
}

// UpdateAppointmentStatus changes the status only if it is still from.
func (r *SQLiteRepository) UpdateAppointmentStatus(ctx context.Context, id int64, from, to AppointmentStatus, ev EventLog) (*Appointment, error) {
	var updated *Appointment

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE appointments
			SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, string(to), sqliteNow(), id, string(from))
		if err != nil {
			return err
		}
		if err := expectOneRow(res); err != nil {
			return err
		}
		if err := insertSQLiteEvent(ctx, tx, ev); err != nil {
			return err
		}

		updated, err = getSQLiteAppointment(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, mapSQLiteError(err)
	}

	return updated, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func insertSQLiteEvent(ctx context.Context, tx *sqlx.Tx, ev EventLog) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var payload *string
	if ev.Payload != nil {
		s := string(ev.Payload)
		payload = &s
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, ev.EventType, ev.AppointmentID, payload, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
