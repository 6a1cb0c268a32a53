package ted

import (
	"fmt"
	"strings"
)

// DefaultNoticeTypes are the notice types that open a competition.
var DefaultNoticeTypes = []string{"cn-standard", "cn-social", "pin-cfc-standard", "pin-cfc-social"}

// Query selects open notices published in the last LookbackDays by buyers in Countries.
type Query struct {
	NoticeTypes  []string
	Countries    []string
	LookbackDays int
}

// String renders the expert-search query string.
func (q Query) String() string {
	types := q.NoticeTypes
	if len(types) == 0 {
		types = DefaultNoticeTypes
	}
	countries := make([]string, len(q.Countries))
	for i, c := range q.Countries {
		countries[i] = fmt.Sprintf("%q", strings.ToUpper(strings.TrimSpace(c)))
	}

	parts := []string{fmt.Sprintf("notice-type IN (%s)", strings.Join(types, ", "))}
	if len(countries) > 0 {
		parts = append(parts, fmt.Sprintf("buyer-country IN (%s)", strings.Join(countries, ", ")))
	}
	if q.LookbackDays > 0 {
		parts = append(parts, fmt.Sprintf("publication-date = (today(-%d) <> today(0))", q.LookbackDays))
	}
	return strings.Join(parts, " AND ")
}
