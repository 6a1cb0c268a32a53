package tender

import (
	"strings"
	"time"
)

// CanonicalLayout is ISO-8601 with microsecond precision and a numeric offset.
// UTC renders as "+00:00", never "Z".
const CanonicalLayout = "2006-01-02T15:04:05.999999-07:00"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02Z07:00",
	"2006-01-02",
}

// NormalizeDate resolves a raw date field to its canonical form.
// Unparsable input, wrong types and missing values all yield nil.
// Values without an offset are taken as UTC.
func NormalizeDate(raw any) *string {
	t, ok := parseDate(raw)
	if !ok {
		return nil
	}
	return strPtr(t.Format(CanonicalLayout))
}

func parseDate(raw any) (time.Time, bool) {
	s, ok := Extract(raw, nil).(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysUntil returns the signed number of whole days from now until the
// canonical instant, floored (one hour past a deadline is -1).
func DaysUntil(canonical *string, now time.Time) *int {
	if canonical == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *canonical)
	if err != nil {
		return nil
	}
	diff := t.Sub(now)
	days := int(diff / (24 * time.Hour))
	if diff < 0 && diff%(24*time.Hour) != 0 {
		days--
	}
	return &days
}

// firstDate returns the first non-nil canonical date, in argument order.
func firstDate(dates ...*string) *string {
	for _, d := range dates {
		if d != nil {
			return d
		}
	}
	return nil
}
