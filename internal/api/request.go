package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tenderwatch/ted-adapter/internal/tender"
	"github.com/tenderwatch/ted-adapter/pkg/model"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

var (
	knownUrgency = map[string]bool{
		tender.UrgencyCritical: true,
		tender.UrgencyUrgent:   true,
		tender.UrgencyModerate: true,
		tender.UrgencyNormal:   true,
		tender.UrgencyUnknown:  true,
	}
	knownBrackets = map[string]bool{
		tender.BracketMicro:  true,
		tender.BracketSmall:  true,
		tender.BracketMedium: true,
		tender.BracketLarge:  true,
		tender.BracketMega:   true,
	}
)

// TenderQuery filters GET /api/v1/tenders. Empty fields match everything.
type TenderQuery struct {
	Urgency  []string
	Bracket  []string
	Country  string
	CPV      string
	MultiLot *bool
	SME      *bool
	Limit    int
	Offset   int
}

func parseTenderQuery(c *fiber.Ctx) (TenderQuery, error) {
	q := TenderQuery{
		Urgency: splitUpper(c.Query("urgency")),
		Bracket: splitUpper(c.Query("bracket")),
		Country: strings.ToUpper(strings.TrimSpace(c.Query("country"))),
		CPV:     strings.TrimSpace(c.Query("cpv")),
		Limit:   defaultPageSize,
	}

	var err error
	if q.MultiLot, err = optionalBool(c.Query("multi_lot")); err != nil {
		return q, fmt.Errorf("multi_lot: %w", err)
	}
	if q.SME, err = optionalBool(c.Query("sme")); err != nil {
		return q, fmt.Errorf("sme: %w", err)
	}
	if v := c.Query("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return q, fmt.Errorf("limit must be an integer")
		}
	}
	if v := c.Query("offset"); v != "" {
		if q.Offset, err = strconv.Atoi(v); err != nil {
			return q, fmt.Errorf("offset must be an integer")
		}
	}
	return q, q.Validate()
}

func (q TenderQuery) Validate() error {
	for _, u := range q.Urgency {
		if !knownUrgency[u] {
			return fmt.Errorf("unknown urgency %q", u)
		}
	}
	for _, b := range q.Bracket {
		if !knownBrackets[b] {
			return fmt.Errorf("unknown bracket %q", b)
		}
	}
	if q.Limit <= 0 || q.Limit > maxPageSize {
		return fmt.Errorf("limit must be between 1 and %d", maxPageSize)
	}
	if q.Offset < 0 {
		return fmt.Errorf("offset must not be negative")
	}
	return nil
}

// Match reports whether t passes every filter.
func (q TenderQuery) Match(t model.Tender) bool {
	if len(q.Urgency) > 0 && !contains(q.Urgency, t.Dates.UrgencyLevel) {
		return false
	}
	if len(q.Bracket) > 0 {
		if t.Financial.ValueCategory == nil || !contains(q.Bracket, *t.Financial.ValueCategory) {
			return false
		}
	}
	if q.Country != "" && (t.Buyer.Country == nil || !strings.EqualFold(*t.Buyer.Country, q.Country)) {
		return false
	}
	if q.CPV != "" && (t.Classification.CPVCode == nil || !strings.HasPrefix(*t.Classification.CPVCode, q.CPV)) {
		return false
	}
	if q.MultiLot != nil && t.Strategic.IsMultiLot != *q.MultiLot {
		return false
	}
	if q.SME != nil && t.Strategic.IsSMEAccessible != *q.SME {
		return false
	}
	return true
}

func splitUpper(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func optionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, fmt.Errorf("must be true or false")
	}
	return &b, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
