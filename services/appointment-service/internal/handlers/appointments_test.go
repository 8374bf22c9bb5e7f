package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/appointly/appointly/services/appointment-service/internal/listview"
)

func TestValidateRequiredFields(t *testing.T) {
	h := &AppointmentHandler{}
	cases := []struct {
		name string
		req  appointmentRequest
	}{
		{"missing name", appointmentRequest{Email: "a@b.com", Date: "2025-03-10", Time: "14:00"}},
		{"missing email", appointmentRequest{Name: "Ann", Date: "2025-03-10", Time: "14:00"}},
		{"missing date", appointmentRequest{Name: "Ann", Email: "a@b.com", Time: "14:00"}},
		{"missing time", appointmentRequest{Name: "Ann", Email: "a@b.com", Date: "2025-03-10"}},
		{"bad date format", appointmentRequest{Name: "Ann", Email: "a@b.com", Date: "10/03/2025", Time: "14:00"}},
		{"bad time format", appointmentRequest{Name: "Ann", Email: "a@b.com", Date: "2025-03-10", Time: "2pm"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, msg := h.validate(tc.req); msg == "" {
				t.Fatalf("expected validation error for %+v", tc.req)
			}
		})
	}
}

func TestValidateDefaultsDuration(t *testing.T) {
	h := &AppointmentHandler{}
	appt, msg := h.validate(appointmentRequest{
		Name:  "  Ann  ",
		Email: "ann@example.com",
		Date:  "2025-03-10",
		Time:  "14:00",
	})
	if msg != "" {
		t.Fatalf("unexpected validation error: %s", msg)
	}
	if appt.DurationMinutes != 30 {
		t.Fatalf("duration = %d, want default 30", appt.DurationMinutes)
	}
	if appt.Name != "Ann" {
		t.Fatalf("name not trimmed: %q", appt.Name)
	}
}

func TestQueryFromRequestDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/appointments?q=ann&range=bogus&sort=bogus", nil)
	q := queryFromRequest(r)
	if q.Search != "ann" {
		t.Fatalf("search = %q", q.Search)
	}
	if q.Range != listview.RangeAll {
		t.Fatalf("range = %q, want all", q.Range)
	}
	if q.Sort != listview.SortDateAsc {
		t.Fatalf("sort = %q, want date-asc", q.Sort)
	}
}
