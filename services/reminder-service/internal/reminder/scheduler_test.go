package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

var runNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	appts    map[string]*Appointment
	listErr  error
	markErr  error
	markLog  []string
	listDate string
}

func newFakeStore(appts ...Appointment) *fakeStore {
	s := &fakeStore{appts: map[string]*Appointment{}}
	for i := range appts {
		a := appts[i]
		s.appts[a.ID] = &a
	}
	return s
}

func (s *fakeStore) ListUpcoming(_ context.Context, today string) ([]Appointment, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.listDate = today
	var out []Appointment
	for _, a := range s.appts {
		if a.Status != "cancelled" && a.Date >= today {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkReminderSent(_ context.Context, appt Appointment, window string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.markLog = append(s.markLog, appt.ID+"/"+window)
	stored := s.appts[appt.ID]
	switch window {
	case "24h":
		stored.Reminder24hSent = true
	case "1h":
		stored.Reminder1hSent = true
	}
	return nil
}

type fakeSender struct {
	sent []string
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, subject, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, to+": "+subject)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(offset time.Duration) (string, string) {
	instant := runNow.Add(offset)
	return instant.Format("2006-01-02"), instant.Format("15:04")
}

func apptAt(id string, offset time.Duration) Appointment {
	date, tod := at(offset)
	return Appointment{ID: id, Name: "Ann", Email: "ann@example.com", Date: date, TimeOfDay: tod, Status: "confirmed"}
}

func TestWindowBoundaries24h(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"exactly 24h", 24 * time.Hour, 1},
		{"lower edge 23h", 23 * time.Hour, 1},
		{"upper edge 25h", 25 * time.Hour, 1},
		{"just under at 22h59m", 22*time.Hour + 59*time.Minute, 0},
		{"just over at 25h1m", 25*time.Hour + time.Minute, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(apptAt("a", tc.offset))
			sched := NewScheduler(store, &fakeSender{}, testLogger(), time.UTC)
			summary, err := sched.Run(context.Background(), runNow)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if summary.Reminder24h != tc.want {
				t.Fatalf("reminder24h = %d, want %d", summary.Reminder24h, tc.want)
			}
		})
	}
}

func TestWindowBoundaries1h(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		want   int
	}{
		{"exactly 1h", time.Hour, 1},
		{"lower edge 50m", 50 * time.Minute, 1},
		{"upper edge 70m", 70 * time.Minute, 1},
		{"just under at 49m", 49 * time.Minute, 0},
		{"just over at 71m", 71 * time.Minute, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(apptAt("a", tc.offset))
			sched := NewScheduler(store, &fakeSender{}, testLogger(), time.UTC)
			summary, err := sched.Run(context.Background(), runNow)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if summary.Reminder1h != tc.want {
				t.Fatalf("reminder1h = %d, want %d", summary.Reminder1h, tc.want)
			}
		})
	}
}

func TestSecondRunFindsNoCandidates(t *testing.T) {
	store := newFakeStore(apptAt("a", 24*time.Hour), apptAt("b", time.Hour))
	sender := &fakeSender{}
	sched := NewScheduler(store, sender, testLogger(), time.UTC)

	first, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Reminder24h != 1 || first.Reminder1h != 1 || first.Sent != 2 {
		t.Fatalf("first run summary = %+v", first)
	}

	second, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Reminder24h != 0 || second.Reminder1h != 0 || second.Sent != 0 {
		t.Fatalf("second run summary = %+v, want all zero", second)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d emails across both runs, want 2", len(sender.sent))
	}
}

func TestCancelledAppointmentsExcluded(t *testing.T) {
	appt := apptAt("a", 24*time.Hour)
	appt.Status = "cancelled"
	store := newFakeStore(appt)
	sched := NewScheduler(store, &fakeSender{}, testLogger(), time.UTC)
	summary, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Reminder24h != 0 || summary.Reminder1h != 0 || summary.Sent != 0 {
		t.Fatalf("summary = %+v, want all zero", summary)
	}
}

func TestAlreadySentFlagNotACandidate(t *testing.T) {
	appt := apptAt("a", time.Hour)
	appt.Reminder1hSent = true
	store := newFakeStore(appt)
	sender := &fakeSender{}
	sched := NewScheduler(store, sender, testLogger(), time.UTC)
	summary, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Reminder1h != 0 || summary.Sent != 0 || len(sender.sent) != 0 {
		t.Fatalf("summary = %+v, sent = %v; flagged appointment must not resend", summary, sender.sent)
	}
}

func TestBothWindowsIndependent(t *testing.T) {
	// 1h flag set, instant inside both windows is impossible; instead
	// verify the flags are tracked per window on separate appointments.
	a := apptAt("a", 24*time.Hour)
	a.Reminder24hSent = true
	b := apptAt("b", time.Hour)
	store := newFakeStore(a, b)
	sched := NewScheduler(store, &fakeSender{}, testLogger(), time.UTC)
	summary, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Reminder24h != 0 || summary.Reminder1h != 1 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestNoSenderScanStillRuns(t *testing.T) {
	store := newFakeStore(apptAt("a", 24*time.Hour))
	sched := NewScheduler(store, nil, testLogger(), time.UTC)
	summary, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Reminder24h != 1 || summary.Sent != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Note == "" {
		t.Fatal("expected explanatory note when no sender is configured")
	}
	if len(store.markLog) != 0 {
		t.Fatalf("flags written without a sender: %v", store.markLog)
	}
}

func TestSendFailureLeavesFlagFalse(t *testing.T) {
	store := newFakeStore(apptAt("a", 24*time.Hour))
	sender := &fakeSender{err: errors.New("smtp down")}
	sched := NewScheduler(store, sender, testLogger(), time.UTC)
	summary, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Reminder24h != 1 || summary.Sent != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if store.appts["a"].Reminder24hSent {
		t.Fatal("flag must stay false after a failed send")
	}

	// Sender recovers: the appointment is still a candidate next run.
	sender.err = nil
	summary, err = sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("retry run failed: %v", err)
	}
	if summary.Sent != 1 || !store.appts["a"].Reminder24hSent {
		t.Fatalf("retry summary = %+v, flag = %v", summary, store.appts["a"].Reminder24hSent)
	}
}

func TestStoreFetchFailureFailsRun(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db unavailable")
	sched := NewScheduler(store, &fakeSender{}, testLogger(), time.UTC)
	if _, err := sched.Run(context.Background(), runNow); err == nil {
		t.Fatal("expected error when the store fetch fails")
	}
}

func TestFlagWriteFailureNotCountedAsSent(t *testing.T) {
	store := newFakeStore(apptAt("a", time.Hour))
	store.markErr = errors.New("write failed")
	sender := &fakeSender{}
	sched := NewScheduler(store, sender, testLogger(), time.UTC)
	summary, err := sched.Run(context.Background(), runNow)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Sent != 0 {
		t.Fatalf("sent = %d, want 0 when the flag write fails", summary.Sent)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("email should still have gone out once, got %d", len(sender.sent))
	}
}

func TestRunUsesConfiguredLocationForToday(t *testing.T) {
	store := newFakeStore()
	sched := NewScheduler(store, &fakeSender{}, testLogger(), time.UTC)
	if _, err := sched.Run(context.Background(), runNow); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if store.listDate != "2025-03-10" {
		t.Fatalf("list date = %q", store.listDate)
	}
}
