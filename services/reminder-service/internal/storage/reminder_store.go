package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/appointly/appointly/libs/db"
	"github.com/appointly/appointly/libs/outbox"
	"github.com/appointly/appointly/services/reminder-service/internal/reminder"
)

// ReminderStore is the Postgres-backed reminder.Store. The flag write,
// the notification log row and the outbox event share one transaction.
type ReminderStore struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewReminderStore(pool *db.Pool, outboxRepo *outbox.Repository) *ReminderStore {
	return &ReminderStore{pool: pool, outboxRepo: outboxRepo}
}

func (s *ReminderStore) ListUpcoming(ctx context.Context, today string) ([]reminder.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, appointment_date::text, appointment_time,
			COALESCE(notes, ''), status, reminder_24h_sent, reminder_1h_sent
		FROM appointments
		WHERE status <> 'cancelled'
			AND appointment_date >= $1::date
		ORDER BY appointment_date, appointment_time
	`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []reminder.Appointment
	for rows.Next() {
		var appt reminder.Appointment
		if err := rows.Scan(
			&appt.ID,
			&appt.Name,
			&appt.Email,
			&appt.Date,
			&appt.TimeOfDay,
			&appt.Notes,
			&appt.Status,
			&appt.Reminder24hSent,
			&appt.Reminder1hSent,
		); err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (s *ReminderStore) MarkReminderSent(ctx context.Context, appt reminder.Appointment, window string) error {
	var column string
	switch window {
	case "24h":
		column = "reminder_24h_sent"
	case "1h":
		column = "reminder_1h_sent"
	default:
		return fmt.Errorf("unknown reminder window %q", window)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		UPDATE appointments
		SET `+column+` = true
		WHERE id = $1
	`, appt.ID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO notifications (appointment_id, channel, recipient, reminder_window)
		VALUES ($1, 'email', $2, $3)
	`, appt.ID, appt.Email, window)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"recipient":      appt.Email,
		"window":         window,
		"sent_at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := s.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "reminder.sent.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
