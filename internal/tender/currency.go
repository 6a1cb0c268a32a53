package tender

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultReferenceCurrency is the unit all amounts are normalized into.
const DefaultReferenceCurrency = "EUR"

// DefaultRates are multipliers against EUR.
var DefaultRates = map[string]float64{
	"EUR": 1.0,
	"DKK": 0.134,
	"NOK": 0.084,
	"SEK": 0.089,
	"USD": 0.95,
	"GBP": 1.17,
}

// RateTable is an immutable currency-code to multiplier mapping.
// Construct it once and share it; nothing mutates it after NewRateTable.
type RateTable struct {
	reference string
	rates     map[string]decimal.Decimal
}

// NewRateTable copies rates into a new table. Codes are matched case-insensitively.
func NewRateTable(reference string, rates map[string]float64) RateTable {
	ref := strings.ToUpper(strings.TrimSpace(reference))
	if ref == "" {
		ref = DefaultReferenceCurrency
	}
	t := RateTable{reference: ref, rates: make(map[string]decimal.Decimal, len(rates)+1)}
	for code, r := range rates {
		t.rates[strings.ToUpper(strings.TrimSpace(code))] = decimal.NewFromFloat(r)
	}
	if _, ok := t.rates[ref]; !ok {
		t.rates[ref] = decimal.NewFromInt(1)
	}
	return t
}

// DefaultRateTable returns the built-in EUR table.
func DefaultRateTable() RateTable {
	return NewRateTable(DefaultReferenceCurrency, DefaultRates)
}

// WithOverrides returns a copy of t with the given rates replaced or added.
func (t RateTable) WithOverrides(overrides map[string]float64) RateTable {
	merged := make(map[string]float64, len(t.rates)+len(overrides))
	for code, r := range t.rates {
		merged[code] = r.InexactFloat64()
	}
	for code, r := range overrides {
		merged[strings.ToUpper(code)] = r
	}
	return NewRateTable(t.reference, merged)
}

// Reference returns the reference currency code.
func (t RateTable) Reference() string {
	if t.reference == "" {
		return DefaultReferenceCurrency
	}
	return t.reference
}

// Rate returns the multiplier for code; unknown codes convert at 1.0.
func (t RateTable) Rate(code string) decimal.Decimal {
	if r, ok := t.rates[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// Convert returns amount expressed in the reference currency, or nil when the
// amount is missing or not numeric. It never panics.
func (t RateTable) Convert(amount any, code string) *float64 {
	d, ok := parseAmount(amount)
	if !ok {
		return nil
	}
	v := d.Mul(t.Rate(code)).InexactFloat64()
	return &v
}

func parseAmount(amount any) (decimal.Decimal, bool) {
	switch a := amount.(type) {
	case nil, bool:
		return decimal.Decimal{}, false
	case float64:
		return decimal.NewFromFloat(a), true
	case float32:
		return decimal.NewFromFloat32(a), true
	case int:
		return decimal.NewFromInt(int64(a)), true
	case int64:
		return decimal.NewFromInt(a), true
	case json.Number:
		d, err := decimal.NewFromString(a.String())
		return d, err == nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(a), ",", "")
		s = strings.ReplaceAll(s, " ", "")
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// ParseRates parses "DKK=0.134,NOK=0.084" into a rate map.
func ParseRates(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		code, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid rate entry %q: expected CODE=RATE", part)
		}
		r, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = r
	}
	return out, nil
}
