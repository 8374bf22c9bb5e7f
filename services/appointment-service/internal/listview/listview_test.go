package listview

import (
	"testing"
	"time"

	"github.com/appointly/appointly/services/appointment-service/internal/model"
)

var testNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func sampleAppointments() []model.Appointment {
	return []model.Appointment{
		{ID: "a", Name: "Bob", Email: "bob@example.com", Date: "2025-03-10", TimeOfDay: "14:00"},
		{ID: "b", Name: "Ann", Email: "ann@example.com", Date: "2025-03-11", TimeOfDay: "09:00", Notes: "bring x-rays"},
	}
}

func ids(appts []model.Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, a := range appts {
		out = append(out, a.ID)
	}
	return out
}

func assertOrder(t *testing.T, got []model.Appointment, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("got %v, want %v", gotIDs, want)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("got %v, want %v", gotIDs, want)
		}
	}
}

func TestSortNameAscending(t *testing.T) {
	got := Apply(sampleAppointments(), Query{Sort: SortNameAsc}, testNow)
	assertOrder(t, got, "b", "a") // Ann before Bob
}

func TestSortDateAscending(t *testing.T) {
	got := Apply(sampleAppointments(), Query{Sort: SortDateAsc}, testNow)
	assertOrder(t, got, "a", "b")
}

func TestSortDateAscendingBreaksTiesByTime(t *testing.T) {
	appts := []model.Appointment{
		{ID: "late", Date: "2025-03-10", TimeOfDay: "16:30"},
		{ID: "early", Date: "2025-03-10", TimeOfDay: "08:15"},
	}
	got := Apply(appts, Query{Sort: SortDateAsc}, testNow)
	assertOrder(t, got, "early", "late")
}

func TestSearchMatchesNotesOnly(t *testing.T) {
	got := Apply(sampleAppointments(), Query{Search: "x-rays"}, testNow)
	assertOrder(t, got, "b")
}

func TestSearchIsCaseInsensitiveAcrossFields(t *testing.T) {
	appts := []model.Appointment{
		{ID: "a", Name: "Bob", Location: "Main Street Clinic", Date: "2025-03-10", TimeOfDay: "10:00"},
		{ID: "b", Name: "Ann", Type: "Checkup", Date: "2025-03-11", TimeOfDay: "10:00"},
	}
	got := Apply(appts, Query{Search: "CLINIC"}, testNow)
	assertOrder(t, got, "a")

	got = Apply(appts, Query{Search: "checkup"}, testNow)
	assertOrder(t, got, "b")
}

func TestRangeToday(t *testing.T) {
	got := Apply(sampleAppointments(), Query{Range: RangeToday}, testNow)
	assertOrder(t, got, "a")
}

func TestRangeNext7DaysInclusiveBounds(t *testing.T) {
	appts := []model.Appointment{
		{ID: "past", Date: "2025-03-09", TimeOfDay: "10:00"},
		{ID: "today", Date: "2025-03-10", TimeOfDay: "10:00"},
		{ID: "edge", Date: "2025-03-17", TimeOfDay: "10:00"},
		{ID: "beyond", Date: "2025-03-18", TimeOfDay: "10:00"},
	}
	got := Apply(appts, Query{Range: RangeNext7Days}, testNow)
	assertOrder(t, got, "today", "edge")
}

func TestRangeRestOfMonth(t *testing.T) {
	appts := []model.Appointment{
		{ID: "today", Date: "2025-03-10", TimeOfDay: "10:00"},
		{ID: "monthEnd", Date: "2025-03-31", TimeOfDay: "10:00"},
		{ID: "nextMonth", Date: "2025-04-01", TimeOfDay: "10:00"},
	}
	got := Apply(appts, Query{Range: RangeRestOfMonth}, testNow)
	assertOrder(t, got, "today", "monthEnd")
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	appts := sampleAppointments()
	_ = Apply(appts, Query{Sort: SortNameAsc}, testNow)
	if appts[0].ID != "a" || appts[1].ID != "b" {
		t.Fatal("input slice order changed")
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	appts := sampleAppointments()
	first := ids(Apply(appts, Query{Search: "example.com", Sort: SortNameDesc}, testNow))
	second := ids(Apply(appts, Query{Search: "example.com", Sort: SortNameDesc}, testNow))
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("non-deterministic output: %v vs %v", first, second)
		}
	}
}
