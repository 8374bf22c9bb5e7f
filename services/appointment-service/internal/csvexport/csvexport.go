package csvexport

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/appointly/appointly/services/appointment-service/internal/model"
)

var header = []string{"name", "email", "date", "time", "duration", "type", "location", "notes", "status"}

// Write renders appointments as CSV. Cancelled rows are excluded; an
// empty status is exported as confirmed.
func Write(w io.Writer, appts []model.Appointment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, appt := range appts {
		if appt.Cancelled() {
			continue
		}
		status := appt.Status
		if status == "" {
			status = model.StatusConfirmed
		}
		record := []string{
			appt.Name,
			appt.Email,
			appt.Date,
			appt.TimeOfDay,
			strconv.Itoa(appt.DurationMinutes),
			appt.Type,
			appt.Location,
			appt.Notes,
			status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
