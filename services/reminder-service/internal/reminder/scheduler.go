package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Window is a closed interval on the lead time (appointment instant
// minus now) that makes an appointment eligible for one reminder class.
type Window struct {
	Name string
	Min  time.Duration
	Max  time.Duration
}

var (
	Window24h = Window{Name: "24h", Min: 23 * time.Hour, Max: 25 * time.Hour}
	Window1h  = Window{Name: "1h", Min: 50 * time.Minute, Max: 70 * time.Minute}
)

func (w Window) Contains(lead time.Duration) bool {
	return lead >= w.Min && lead <= w.Max
}

// Appointment carries only the fields the scheduler reads.
type Appointment struct {
	ID              string
	Name            string
	Email           string
	Date            string // YYYY-MM-DD
	TimeOfDay       string // HH:MM
	Notes           string
	Status          string
	Reminder24hSent bool
	Reminder1hSent  bool
}

func (a Appointment) Instant(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", a.Date+" "+a.TimeOfDay, loc)
}

type Store interface {
	// ListUpcoming returns non-cancelled appointments on or after the
	// given date (YYYY-MM-DD).
	ListUpcoming(ctx context.Context, today string) ([]Appointment, error)
	// MarkReminderSent sets the flag for the named window. Flags are
	// monotonic: a set flag is never cleared.
	MarkReminderSent(ctx context.Context, appt Appointment, window string) error
}

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Summary struct {
	Reminder24h int    `json:"reminder24h"`
	Reminder1h  int    `json:"reminder1h"`
	Sent        int    `json:"sent"`
	Note        string `json:"note,omitempty"`
}

// Scheduler scans upcoming appointments and sends at most one reminder
// per appointment per window. All state lives in the store; each run is
// independent and uses a single now for every window check.
type Scheduler struct {
	store  Store
	sender Sender
	logger *slog.Logger
	loc    *time.Location
}

// NewScheduler accepts a nil sender: the scan still runs and the
// summary carries a note instead of sends.
func NewScheduler(store Store, sender Sender, logger *slog.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		store:  store,
		sender: sender,
		logger: logger,
		loc:    loc,
	}
}

func (s *Scheduler) Run(ctx context.Context, now time.Time) (Summary, error) {
	today := now.In(s.loc).Format("2006-01-02")
	appts, err := s.store.ListUpcoming(ctx, today)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch upcoming appointments: %w", err)
	}

	var due24h, due1h []Appointment
	for _, appt := range appts {
		if appt.Status == "cancelled" {
			continue
		}
		instant, err := appt.Instant(s.loc)
		if err != nil {
			s.logger.Warn("skipping appointment with unparseable date/time",
				"appointment_id", appt.ID, "date", appt.Date, "time", appt.TimeOfDay)
			continue
		}
		lead := instant.Sub(now)
		if !appt.Reminder24hSent && Window24h.Contains(lead) {
			due24h = append(due24h, appt)
		}
		if !appt.Reminder1hSent && Window1h.Contains(lead) {
			due1h = append(due1h, appt)
		}
	}

	summary := Summary{
		Reminder24h: len(due24h),
		Reminder1h:  len(due1h),
	}
	if s.sender == nil {
		summary.Note = "no email sender configured; scan only"
		return summary, nil
	}

	for _, appt := range due24h {
		if s.sendAndMark(ctx, appt, Window24h) {
			summary.Sent++
		}
	}
	for _, appt := range due1h {
		if s.sendAndMark(ctx, appt, Window1h) {
			summary.Sent++
		}
	}
	return summary, nil
}

// sendAndMark is not transactional: a crash between the send and the
// flag write duplicates at most one email on the next run.
func (s *Scheduler) sendAndMark(ctx context.Context, appt Appointment, w Window) bool {
	subject, body := renderTemplate(appt, w)
	if err := s.sender.Send(ctx, appt.Email, subject, body); err != nil {
		s.logger.Error("reminder send failed",
			"appointment_id", appt.ID, "window", w.Name, "err", err)
		return false
	}
	if err := s.store.MarkReminderSent(ctx, appt, w.Name); err != nil {
		s.logger.Error("reminder flag write failed",
			"appointment_id", appt.ID, "window", w.Name, "err", err)
		return false
	}
	return true
}

func renderTemplate(appt Appointment, w Window) (string, string) {
	if w.Name == Window1h.Name {
		subject := fmt.Sprintf("Reminder: your appointment at %s is in about an hour", appt.TimeOfDay)
		body := fmt.Sprintf(
			"Hi %s,\n\nThis is a reminder that your appointment is coming up on %s at %s.\n\nSee you soon!",
			appt.Name, appt.Date, appt.TimeOfDay,
		)
		return subject, body
	}
	subject := fmt.Sprintf("Reminder: appointment on %s at %s", appt.Date, appt.TimeOfDay)
	body := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder that you have an appointment tomorrow, %s at %s.",
		appt.Name, appt.Date, appt.TimeOfDay,
	)
	if appt.Notes != "" {
		body += "\n\nNotes: " + appt.Notes
	}
	return subject, body
}
