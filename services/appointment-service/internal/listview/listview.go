package listview

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/appointly/appointly/services/appointment-service/internal/model"
)

type Range string

const (
	RangeAll         Range = "all"
	RangeToday       Range = "today"
	RangeNext7Days   Range = "next-7-days"
	RangeRestOfMonth Range = "rest-of-month"
)

type Sort string

const (
	SortDateAsc  Sort = "date-asc"
	SortDateDesc Sort = "date-desc"
	SortNameAsc  Sort = "name-asc"
	SortNameDesc Sort = "name-desc"
)

type Query struct {
	Search string
	Range  Range
	Sort   Sort
}

func ParseRange(raw string) Range {
	switch Range(raw) {
	case RangeToday, RangeNext7Days, RangeRestOfMonth:
		return Range(raw)
	default:
		return RangeAll
	}
}

func ParseSort(raw string) Sort {
	switch Sort(raw) {
	case SortDateDesc, SortNameAsc, SortNameDesc:
		return Sort(raw)
	default:
		return SortDateAsc
	}
}

// Apply filters and sorts in memory. Pure: the input slice is not
// modified and the result is deterministic for a given now.
func Apply(appts []model.Appointment, q Query, now time.Time) []model.Appointment {
	out := make([]model.Appointment, 0, len(appts))
	search := strings.ToLower(strings.TrimSpace(q.Search))
	lower, upper := rangeBounds(q.Range, now)
	for _, appt := range appts {
		if search != "" && !matchesSearch(appt, search) {
			continue
		}
		if lower != "" && (appt.Date < lower || appt.Date > upper) {
			continue
		}
		out = append(out, appt)
	}
	sortAppointments(out, q.Sort)
	return out
}

func matchesSearch(appt model.Appointment, search string) bool {
	for _, field := range []string{appt.Name, appt.Email, appt.Notes, appt.Location, appt.Type} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

// rangeBounds returns inclusive YYYY-MM-DD bounds, or empty strings for
// the unbounded "all" range. Lexicographic comparison matches
// chronological order for this format.
func rangeBounds(r Range, now time.Time) (string, string) {
	today := now.Format("2006-01-02")
	switch r {
	case RangeToday:
		return today, today
	case RangeNext7Days:
		return today, now.AddDate(0, 0, 7).Format("2006-01-02")
	case RangeRestOfMonth:
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		lastOfMonth := firstOfMonth.AddDate(0, 1, -1)
		return today, lastOfMonth.Format("2006-01-02")
	default:
		return "", ""
	}
}

func sortAppointments(appts []model.Appointment, s Sort) {
	switch s {
	case SortDateDesc:
		sort.SliceStable(appts, func(i, j int) bool {
			if appts[i].Date != appts[j].Date {
				return appts[i].Date > appts[j].Date
			}
			return appts[i].TimeOfDay > appts[j].TimeOfDay
		})
	case SortNameAsc:
		c := nameCollator()
		sort.SliceStable(appts, func(i, j int) bool {
			return c.CompareString(appts[i].Name, appts[j].Name) < 0
		})
	case SortNameDesc:
		c := nameCollator()
		sort.SliceStable(appts, func(i, j int) bool {
			return c.CompareString(appts[i].Name, appts[j].Name) > 0
		})
	default:
		sort.SliceStable(appts, func(i, j int) bool {
			if appts[i].Date != appts[j].Date {
				return appts[i].Date < appts[j].Date
			}
			return appts[i].TimeOfDay < appts[j].TimeOfDay
		})
	}
}

func nameCollator() *collate.Collator {
	return collate.New(language.English, collate.Loose)
}
