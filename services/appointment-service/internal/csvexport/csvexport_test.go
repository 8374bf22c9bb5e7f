package csvexport

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/appointly/appointly/services/appointment-service/internal/model"
)

func TestWriteQuotesSpecialCharacters(t *testing.T) {
	appts := []model.Appointment{
		{Name: `O'Brien, "Jo"`, Email: "jo@example.com", Date: "2025-03-10", TimeOfDay: "14:00", DurationMinutes: 30, Status: "confirmed"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, appts); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"O'Brien, ""Jo"""`) {
		t.Fatalf("name field not quoted as expected:\n%s", out)
	}

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("exported CSV does not parse: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}
	if records[1][0] != `O'Brien, "Jo"` {
		t.Fatalf("round-trip mismatch: %q", records[1][0])
	}
}

func TestWriteHeaderAndFieldOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got := strings.TrimSpace(buf.String())
	want := "name,email,date,time,duration,type,location,notes,status"
	if got != want {
		t.Fatalf("header = %q, want %q", got, want)
	}
}

func TestWriteExcludesCancelled(t *testing.T) {
	appts := []model.Appointment{
		{Name: "Ann", Email: "ann@example.com", Date: "2025-03-10", TimeOfDay: "09:00", Status: "confirmed"},
		{Name: "Bob", Email: "bob@example.com", Date: "2025-03-11", TimeOfDay: "10:00", Status: "cancelled"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, appts); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "Bob") {
		t.Fatalf("cancelled row exported:\n%s", out)
	}
	if !strings.Contains(out, "Ann") {
		t.Fatalf("confirmed row missing:\n%s", out)
	}
}

func TestWriteDefaultsEmptyStatusToConfirmed(t *testing.T) {
	appts := []model.Appointment{
		{Name: "Ann", Email: "ann@example.com", Date: "2025-03-10", TimeOfDay: "09:00"},
	}
	var buf bytes.Buffer
	if err := Write(&buf, appts); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("exported CSV does not parse: %v", err)
	}
	if got := records[1][8]; got != "confirmed" {
		t.Fatalf("status = %q, want confirmed", got)
	}
}
