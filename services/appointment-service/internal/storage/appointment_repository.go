package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/appointly/appointly/libs/db"
	"github.com/appointly/appointly/services/appointment-service/internal/model"
)

const apptColumns = `id, user_id, name, email, appointment_date::text, appointment_time,
	duration_minutes, COALESCE(appointment_type, ''), COALESCE(location, ''), COALESCE(notes, ''),
	status, reminder_24h_sent, reminder_1h_sent, created_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	return tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, user_id, name, email, appointment_date, appointment_time, duration_minutes,
			appointment_type, location, notes, status)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, appt.ID, appt.UserID, appt.Name, appt.Email, appt.Date, appt.TimeOfDay, appt.DurationMinutes,
		appt.Type, appt.Location, appt.Notes, appt.Status).Scan(&appt.CreatedAt)
}

// Update rewrites the editable fields. Reminder flags are deliberately
// untouched: rescheduling keeps any already-sent reminders sent.
func (r *AppointmentRepository) Update(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET name = $3,
			email = $4,
			appointment_date = $5::date,
			appointment_time = $6,
			duration_minutes = $7,
			appointment_type = $8,
			location = $9,
			notes = $10
		WHERE id = $1 AND user_id = $2
	`, appt.ID, appt.UserID, appt.Name, appt.Email, appt.Date, appt.TimeOfDay, appt.DurationMinutes,
		appt.Type, appt.Location, appt.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) Cancel(ctx context.Context, tx pgx.Tx, userID, id string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled'
		WHERE id = $1 AND user_id = $2
		RETURNING now()
	`, id, userID).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, userID, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, id, userID)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Get(ctx context.Context, userID, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	return scanAppointment(row)
}

// ListByUser returns every row the user owns, cancelled included;
// filtering and sorting happen in memory afterwards.
func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY appointment_date, appointment_time
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

type Stats struct {
	Total     int `json:"total"`
	Upcoming  int `json:"upcoming"`
	Today     int `json:"today"`
	Cancelled int `json:"cancelled"`
}

func (r *AppointmentRepository) StatsByUser(ctx context.Context, userID string, today string) (Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT count(*),
			count(*) FILTER (WHERE status <> 'cancelled' AND appointment_date >= $2::date),
			count(*) FILTER (WHERE status <> 'cancelled' AND appointment_date = $2::date),
			count(*) FILTER (WHERE status = 'cancelled')
		FROM appointments
		WHERE user_id = $1
	`, userID, today).Scan(&s.Total, &s.Upcoming, &s.Today, &s.Cancelled)
	return s, err
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.UserID,
		&appt.Name,
		&appt.Email,
		&appt.Date,
		&appt.TimeOfDay,
		&appt.DurationMinutes,
		&appt.Type,
		&appt.Location,
		&appt.Notes,
		&appt.Status,
		&appt.Reminder24hSent,
		&appt.Reminder1hSent,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
