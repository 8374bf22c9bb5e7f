package model

import "time"

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Appointment keeps the calendar date and local time-of-day as the
// user entered them; Instant combines them for window arithmetic.
type Appointment struct {
	ID              string
	UserID          string
	Name            string
	Email           string
	Date            string // YYYY-MM-DD
	TimeOfDay       string // HH:MM
	DurationMinutes int
	Type            string
	Location        string
	Notes           string
	Status          string
	Reminder24hSent bool
	Reminder1hSent  bool
	CreatedAt       time.Time
}

func (a Appointment) Instant(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.TimeOfDay, loc)
}

// Cancelled reports whether the appointment was soft-cancelled.
// An empty or unknown status counts as confirmed.
func (a Appointment) Cancelled() bool {
	return a.Status == StatusCancelled
}
