package tender

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tenderwatch/ted-adapter/pkg/model"
)

// APIVersion is the upstream search API version the field names belong to.
const APIVersion = "v3"

const tedBaseURL = "https://ted.europa.eu/en/notice"

// expiringSoonDays is the upper bound (inclusive) for is_expiring_soon.
const expiringSoonDays = 14

// smeAccessibleBelow is the reference-currency value under which a tender
// counts as SME-accessible even without the SME flag.
const smeAccessibleBelow = 500_000

// Normalizer turns one representative raw record into a Tender.
type Normalizer struct {
	rates    RateTable
	urgency  UrgencyProfile
	rules    []ComplexityRule
	clusters map[string]string
}

// NormalizerOption customises a Normalizer.
type NormalizerOption func(*Normalizer)

// WithUrgencyProfile overrides the urgency bands.
func WithUrgencyProfile(p UrgencyProfile) NormalizerOption {
	return func(n *Normalizer) { n.urgency = p }
}

// WithComplexityRules overrides the complexity scoring table.
func WithComplexityRules(rules []ComplexityRule) NormalizerOption {
	return func(n *Normalizer) { n.rules = rules }
}

// WithRegionalClusters overrides the buyer-country clusters.
func WithRegionalClusters(clusters map[string][]string) NormalizerOption {
	return func(n *Normalizer) { n.clusters = clusterIndex(clusters) }
}

// NewNormalizer builds a Normalizer around an immutable rate table.
func NewNormalizer(rates RateTable, opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		rates:    rates,
		urgency:  StandardUrgency,
		rules:    DefaultComplexityRules,
		clusters: clusterIndex(RegionalClusters),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize maps rec to a Tender and stamps it with the group's lot identity.
// It reads nothing but its arguments.
func (n *Normalizer) Normalize(rec RawRecord, lots LotIdentity, now time.Time) model.Tender {
	key, _ := ProcurementKey(rec)
	pubNumber := ExtractString(rec["publication-number"])

	t := model.Tender{
		NoticeIdentifier:  key,
		PublicationNumber: pubNumber,
		NoticeType:        ExtractString(rec["notice-type"]),
		Title:             ExtractStringOr(rec["notice-title"], ExtractStringOr(rec["title-lot"], "No title")),
		Description:       ExtractStringOr(rec["description-lot"], ""),
	}

	t.Dates = n.dates(rec, now)
	t.Buyer = model.Buyer{
		Name:       ExtractStringOr(rec["buyer-name"], "Unknown"),
		Country:    ExtractString(rec["buyer-country"]),
		City:       ExtractString(rec["buyer-city"]),
		Email:      ExtractString(rec["buyer-email"]),
		ProfileURL: ExtractString(rec["buyer-profile"]),
		LegalType:  ExtractString(rec["buyer-legal-type"]),
	}
	t.Financial = n.financial(rec)
	t.Classification = classification(rec)
	t.Location = n.location(rec, t.Buyer.Country)

	t.Strategic = model.Strategic{
		IsSME:         ResolveFlag(rec["sme-lot"]),
		IsFramework:   ResolveFlag(rec["framework-agreement-lot"]),
		IsDPS:         ResolveFlag(rec["dps-usage-lot"]),
		IsInnovative:  ResolveFlag(rec["innovative-acquisition-lot"]),
		IsSocial:      ResolveFlag(rec["social-objective-lot"]),
		IsReserved:    ResolveFlag(rec["reserved-procurement-lot"]),
		LotIdentifier: ExtractString(rec[FieldLotIdentifier]),
	}
	value := t.Financial.ValueReference
	t.Strategic.IsSMEAccessible = t.Strategic.IsSME || (value != nil && *value != 0 && *value < smeAccessibleBelow)

	t.Requirements = model.Requirements{
		SecurityClearance:        ResolveFlag(rec["security-clearance-lot"]),
		GuaranteeRequired:        ResolveFlag(rec["guarantee-required-lot"]),
		GuaranteeDescription:     ExtractString(rec["guarantee-required-description-lot"]),
		ElectronicSubmission:     ResolveFlag(rec["electronic-submission-lot"]),
		SubcontractingObligatory: ResolveFlag(rec["subcontracting-obligation-lot"]),
	}
	procType := ""
	if t.Classification.ProcedureType != nil {
		procType = *t.Classification.ProcedureType
	}
	t.Requirements.ComplexityScore = ComplexityScore(ComplexityInput{
		SecurityClearance:        t.Requirements.SecurityClearance,
		GuaranteeRequired:        t.Requirements.GuaranteeRequired,
		SubcontractingObligatory: t.Requirements.SubcontractingObligatory,
		ProcedureType:            procType,
	}, n.rules)
	t.Requirements.ComplexityLevel = ComplexityLevel(t.Requirements.ComplexityScore)

	t.AwardCriteria = model.AwardCriteria{
		Type:        ExtractString(rec["award-criterion-type-lot"]),
		Name:        ExtractString(rec["award-criterion-name-lot"]),
		Description: ExtractString(rec["award-criterion-description-lot"]),
	}
	t.Contract = model.Contract{
		Duration:  contractDuration(rec["contract-duration-period-lot"]),
		StartDate: NormalizeDate(rec["contract-duration-start-date-lot"]),
		EndDate:   NormalizeDate(rec["contract-duration-end-date-lot"]),
	}
	t.Procedure = model.Procedure{
		VariantAllowed:    ResolveFlag(rec["variant-allowed-lot"]),
		ElectronicAuction: ResolveFlag(rec["electronic-auction-lot"]),
		IsRecurrent:       ResolveFlag(rec["recurrence-lot"]),
		MinimumCandidates: ExtractInt(rec["minimum-candidate-lot"]),
		MaximumCandidates: ExtractInt(rec["maximum-candidates-lot"]),
	}
	t.URLs = model.URLs{
		SubmissionURL: ExtractString(rec["submission-url-lot"]),
		DocumentURL:   ExtractString(rec["document-url-lot"]),
	}
	if pubNumber != nil && *pubNumber != "" {
		t.URLs.TEDNoticeURL = strPtr(fmt.Sprintf("%s/-/detail/%s", tedBaseURL, *pubNumber))
		t.URLs.TEDPDFURL = strPtr(fmt.Sprintf("%s/%s/pdf", tedBaseURL, *pubNumber))
	}
	t.Additional = model.Additional{
		GPACovered:     ResolveFlag(rec["gpa-lot"]),
		AdditionalInfo: ExtractString(rec["additional-information-lot"]),
	}
	t.Metadata = model.Metadata{
		FetchedAt:  now.Format(CanonicalLayout),
		APIVersion: APIVersion,
	}

	ApplyLotIdentity(&t, lots)
	return t
}

// ApplyLotIdentity overwrites the tender's lot fields with the group-level view.
func ApplyLotIdentity(t *model.Tender, lots LotIdentity) {
	t.Strategic.IsMultiLot = lots.IsMultiLot
	t.Strategic.TotalLots = lots.TotalLots
	if t.Strategic.TotalLots < 1 {
		t.Strategic.TotalLots = 1
	}
	t.Strategic.LotIdentifiers = append([]string(nil), lots.Identifiers...)
	t.Strategic.LotCountSource = lots.Source
}

func (n *Normalizer) dates(rec RawRecord, now time.Time) model.Dates {
	d := model.Dates{
		PublicationDate: NormalizeDate(rec["publication-date"]),
		DeadlineTender:  NormalizeDate(rec["deadline-receipt-tender-date-lot"]),
		DeadlineRequest: NormalizeDate(rec["deadline-receipt-request-date-lot"]),
		DeadlineEOI:     NormalizeDate(rec["deadline-receipt-expressions-date-lot"]),
	}
	d.DeadlineMain = firstDate(d.DeadlineTender, d.DeadlineRequest, d.DeadlineEOI)
	d.DaysUntilDeadline = DaysUntil(d.DeadlineMain, now)
	d.UrgencyLevel = n.urgency.Classify(d.DaysUntilDeadline)
	if days := d.DaysUntilDeadline; days != nil {
		d.IsExpired = *days < 0
		d.IsExpiringSoon = *days >= 0 && *days <= expiringSoonDays
	}
	return d
}

// financial reads the currency-tagged amount first, then the plain amount.
// The plain amount is always in the reference currency unless it carries its
// own currency; a bare code in the tagged field is not an amount and is ignored.
func (n *Normalizer) financial(rec RawRecord) model.Financial {
	f := model.Financial{ReferenceCurrency: n.rates.Reference()}

	switch v := firstOf(rec["estimated-value-cur-lot"]).(type) {
	case map[string]any:
		if amount := v["amount"]; truthy(amount) {
			cur := currencyOr(v["currency"], n.rates.Reference())
			n.setAmount(&f, amount, cur)
		}
	case nil:
	default:
		if truthy(v) {
			n.setAmount(&f, v, n.rates.Reference())
		}
	}
	if f.ValueReference != nil {
		f.ValueCategory = ValueBracket(f.ValueReference)
		return f
	}

	switch v := firstOf(rec["estimated-value-lot"]).(type) {
	case map[string]any:
		amount := v["amount"]
		if !truthy(amount) {
			amount = v["value"]
		}
		if truthy(amount) {
			n.setAmount(&f, amount, currencyOr(v["currency"], n.rates.Reference()))
		}
	case nil:
	default:
		if truthy(v) {
			n.setAmount(&f, v, n.rates.Reference())
		}
	}
	f.ValueCategory = ValueBracket(f.ValueReference)
	return f
}

func (n *Normalizer) setAmount(f *model.Financial, amount any, currency string) {
	orig, ok := parseAmount(amount)
	if !ok {
		return
	}
	ref := n.rates.Convert(amount, currency)
	if ref == nil {
		return
	}
	f.ValueOriginal = floatPtr(orig.InexactFloat64())
	f.Currency = strPtr(strings.ToUpper(currency))
	f.ValueReference = ref
}

func firstOf(raw any) any {
	if list, ok := raw.([]any); ok {
		if len(list) == 0 {
			return nil
		}
		return list[0]
	}
	return raw
}

func currencyOr(raw any, def string) string {
	if s, ok := Extract(raw, nil).(string); ok && strings.TrimSpace(s) != "" {
		return strings.ToUpper(strings.TrimSpace(s))
	}
	return def
}

func classification(rec RawRecord) model.Classification {
	c := model.Classification{
		ContractNature: ExtractString(rec["contract-nature"]),
		ProcedureType:  ExtractString(rec["procedure-type"]),
	}
	cpv := flattenStrings(rec["classification-cpv"])
	if len(cpv) > 0 {
		c.CPVCode = strPtr(cpv[0])
		cpv = cpv[1:]
	}
	extra := append(cpv, flattenStrings(rec["additional-classification-lot"])...)
	seen := make(map[string]struct{}, len(extra))
	c.CPVCodesAdditional = []string{}
	for _, code := range extra {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		c.CPVCodesAdditional = append(c.CPVCodesAdditional, code)
	}
	sort.Strings(c.CPVCodesAdditional)
	return c
}

func (n *Normalizer) location(rec RawRecord, buyerCountry *string) model.Location {
	loc := model.Location{
		PerformanceCountry: ExtractString(rec["place-of-performance-country-lot"]),
		PerformanceCity:    ExtractString(rec["place-of-performance-city-lot"]),
	}
	if buyerCountry != nil && loc.PerformanceCountry != nil {
		loc.IsCrossBorder = *buyerCountry != *loc.PerformanceCountry
	}
	if buyerCountry != nil {
		if name, ok := n.clusters[strings.ToUpper(*buyerCountry)]; ok {
			loc.RegionalCluster = strPtr(name)
		}
	}
	return loc
}

func contractDuration(raw any) *model.Duration {
	m, ok := firstOf(raw).(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	d := &model.Duration{
		Unit:  ExtractStringOr(m["unit"], ""),
		Value: ExtractStringOr(m["value"], ""),
	}
	if d.Unit == "" && d.Value == "" {
		return nil
	}
	return d
}

func floatPtr(f float64) *float64 { return &f }
