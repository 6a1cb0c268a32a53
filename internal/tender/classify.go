package tender

import "strings"

// Urgency labels.
const (
	UrgencyExpired  = "EXPIRED"
	UrgencyCritical = "CRITICAL"
	UrgencyUrgent   = "URGENT"
	UrgencyModerate = "MODERATE"
	UrgencyNormal   = "NORMAL"
	UrgencyUnknown  = "UNKNOWN"
)

// UrgencyBand labels every day count up to and including MaxDays.
type UrgencyBand struct {
	MaxDays int
	Label   string
}

// UrgencyProfile is an ascending list of bands. Counts above the last band are NORMAL.
type UrgencyProfile []UrgencyBand

var (
	// StandardUrgency: EXPIRED <0, CRITICAL 0-7, MODERATE 8-14, NORMAL >14.
	StandardUrgency = UrgencyProfile{
		{MaxDays: -1, Label: UrgencyExpired},
		{MaxDays: 7, Label: UrgencyCritical},
		{MaxDays: 14, Label: UrgencyModerate},
	}

	// FineUrgency splits the first week into CRITICAL 0-3 and URGENT 4-7.
	FineUrgency = UrgencyProfile{
		{MaxDays: -1, Label: UrgencyExpired},
		{MaxDays: 3, Label: UrgencyCritical},
		{MaxDays: 7, Label: UrgencyUrgent},
		{MaxDays: 14, Label: UrgencyModerate},
	}
)

// UrgencyProfileByName maps a config value to a profile; unknown names get StandardUrgency.
func UrgencyProfileByName(name string) UrgencyProfile {
	if strings.EqualFold(strings.TrimSpace(name), "fine") {
		return FineUrgency
	}
	return StandardUrgency
}

// Classify returns the urgency label for a day offset; nil means UNKNOWN.
func (p UrgencyProfile) Classify(days *int) string {
	if days == nil {
		return UrgencyUnknown
	}
	for _, b := range p {
		if *days <= b.MaxDays {
			return b.Label
		}
	}
	return UrgencyNormal
}

// Value brackets.
const (
	BracketMicro  = "MICRO"
	BracketSmall  = "SMALL"
	BracketMedium = "MEDIUM"
	BracketLarge  = "LARGE"
	BracketMega   = "MEGA"
)

var valueBrackets = []struct {
	below float64
	label string
}{
	{50_000, BracketMicro},
	{500_000, BracketSmall},
	{5_000_000, BracketMedium},
	{50_000_000, BracketLarge},
}

// ValueBracket classifies a reference-currency amount. Nil and zero have no bracket.
func ValueBracket(amount *float64) *string {
	if amount == nil || *amount == 0 {
		return nil
	}
	for _, b := range valueBrackets {
		if *amount < b.below {
			return strPtr(b.label)
		}
	}
	return strPtr(BracketMega)
}

// Complexity levels.
const (
	ComplexitySimple   = "SIMPLE"
	ComplexityModerate = "MODERATE"
	ComplexityComplex  = "COMPLEX"
)

// ComplexityInput is the subset of a tender the complexity rules look at.
type ComplexityInput struct {
	SecurityClearance        bool
	GuaranteeRequired        bool
	SubcontractingObligatory bool
	ProcedureType            string
}

// ComplexityRule adds Points when Applies holds.
type ComplexityRule struct {
	Name    string
	Points  int
	Applies func(ComplexityInput) bool
}

// RestrictiveProcedures are procedure types that limit who may bid.
var RestrictiveProcedures = map[string]bool{
	"restricted": true,
	"comp-dial":  true,
	"neg-w-call": true,
	"innovation": true,
}

// DefaultComplexityRules is the additive scoring table.
var DefaultComplexityRules = []ComplexityRule{
	{Name: "security_clearance", Points: 20, Applies: func(in ComplexityInput) bool { return in.SecurityClearance }},
	{Name: "guarantee_required", Points: 10, Applies: func(in ComplexityInput) bool { return in.GuaranteeRequired }},
	{Name: "restrictive_procedure", Points: 20, Applies: func(in ComplexityInput) bool {
		return RestrictiveProcedures[strings.ToLower(strings.TrimSpace(in.ProcedureType))]
	}},
	{Name: "subcontracting_obligatory", Points: 15, Applies: func(in ComplexityInput) bool { return in.SubcontractingObligatory }},
}

// ComplexityScore sums the points of every rule that applies.
func ComplexityScore(in ComplexityInput, rules []ComplexityRule) int {
	score := 0
	for _, r := range rules {
		if r.Applies(in) {
			score += r.Points
		}
	}
	return score
}

// ComplexityLevel maps a score to COMPLEX (>=30), MODERATE (>=15) or SIMPLE.
func ComplexityLevel(score int) string {
	switch {
	case score >= 30:
		return ComplexityComplex
	case score >= 15:
		return ComplexityModerate
	default:
		return ComplexitySimple
	}
}

// RegionalClusters groups buyer countries (ISO 3166 alpha-3).
var RegionalClusters = map[string][]string{
	"NORDIC":   {"DNK", "SWE", "NOR", "FIN", "ISL"},
	"BALTIC":   {"EST", "LVA", "LTU"},
	"WESTERN":  {"DEU", "FRA", "AUT"},
	"SOUTHERN": {"ITA", "ESP", "PRT"},
	"EASTERN":  {"POL", "CZE", "HUN"},
}

func clusterIndex(clusters map[string][]string) map[string]string {
	idx := make(map[string]string)
	for name, countries := range clusters {
		for _, c := range countries {
			idx[strings.ToUpper(c)] = name
		}
	}
	return idx
}
