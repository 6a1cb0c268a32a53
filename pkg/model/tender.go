package model

// Tender is the normalized, enriched view of one procurement notice.
// Exactly one Tender exists per notice identifier after aggregation,
// regardless of how many lot records the upstream search returned.
type Tender struct {
	NoticeIdentifier  string  `json:"notice_identifier"`
	PublicationNumber *string `json:"publication_number"`
	NoticeType        *string `json:"notice_type"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`

	Dates          Dates          `json:"dates"`
	Buyer          Buyer          `json:"buyer"`
	Financial      Financial      `json:"financial"`
	Classification Classification `json:"classification"`
	Location       Location       `json:"location"`
	Strategic      Strategic      `json:"strategic"`
	Requirements   Requirements   `json:"requirements"`
	AwardCriteria  AwardCriteria  `json:"award_criteria"`
	Contract       Contract       `json:"contract"`
	Procedure      Procedure      `json:"procedure"`
	URLs           URLs           `json:"urls"`
	Additional     Additional     `json:"additional"`
	Metadata       Metadata       `json:"metadata"`
}

// Dates holds canonical ISO-8601 instants (always with a numeric offset).
type Dates struct {
	PublicationDate   *string `json:"publication_date"`
	DeadlineTender    *string `json:"deadline_tender"`
	DeadlineRequest   *string `json:"deadline_request"`
	DeadlineEOI       *string `json:"deadline_eoi"`
	DeadlineMain      *string `json:"deadline_main"`
	DaysUntilDeadline *int    `json:"days_until_deadline"`
	UrgencyLevel      string  `json:"urgency_level"`
	IsExpired         bool    `json:"is_expired"`
	IsExpiringSoon    bool    `json:"is_expiring_soon"`
}

type Buyer struct {
	Name       string  `json:"name"`
	Country    *string `json:"country"`
	City       *string `json:"city"`
	Email      *string `json:"email"`
	ProfileURL *string `json:"profile_url"`
	LegalType  *string `json:"legal_type"`
}

// Financial carries the original amount and its reference-currency equivalent.
type Financial struct {
	ValueOriginal     *float64 `json:"value_original"`
	Currency          *string  `json:"currency"`
	ValueReference    *float64 `json:"value_reference"`
	ReferenceCurrency string   `json:"reference_currency"`
	ValueCategory     *string  `json:"value_category"`
}

type Classification struct {
	CPVCode            *string  `json:"cpv_code"`
	CPVCodesAdditional []string `json:"cpv_codes_additional"`
	ContractNature     *string  `json:"contract_nature"`
	ProcedureType      *string  `json:"procedure_type"`
}

type Location struct {
	PerformanceCountry *string `json:"performance_country"`
	PerformanceCity    *string `json:"performance_city"`
	IsCrossBorder      bool    `json:"is_cross_border"`
	RegionalCluster    *string `json:"regional_cluster"`
}

// Strategic holds business flags plus the group-level lot identity.
type Strategic struct {
	IsSME           bool     `json:"is_sme"`
	IsSMEAccessible bool     `json:"is_sme_accessible"`
	IsFramework     bool     `json:"is_framework"`
	IsDPS           bool     `json:"is_dps"`
	IsInnovative    bool     `json:"is_innovative"`
	IsSocial        bool     `json:"is_social"`
	IsReserved      bool     `json:"is_reserved"`
	IsMultiLot      bool     `json:"is_multi_lot"`
	TotalLots       int      `json:"total_lots"`
	LotIdentifier   *string  `json:"lot_identifier"`
	LotIdentifiers  []string `json:"lot_identifiers"`
	LotCountSource  string   `json:"lot_count_source"`
}

type Requirements struct {
	SecurityClearance        bool    `json:"security_clearance"`
	GuaranteeRequired        bool    `json:"guarantee_required"`
	GuaranteeDescription     *string `json:"guarantee_description"`
	ElectronicSubmission     bool    `json:"electronic_submission"`
	SubcontractingObligatory bool    `json:"subcontracting_obligatory"`
	ComplexityScore          int     `json:"complexity_score"`
	ComplexityLevel          string  `json:"complexity_level"`
}

type AwardCriteria struct {
	Type        *string `json:"type"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type Contract struct {
	Duration  *Duration `json:"duration"`
	StartDate *string   `json:"start_date"`
	EndDate   *string   `json:"end_date"`
}

// Duration mirrors the upstream {"unit": "MONTH", "value": "24"} shape.
type Duration struct {
	Unit  string `json:"unit"`
	Value string `json:"value"`
}

type Procedure struct {
	VariantAllowed    bool `json:"variant_allowed"`
	ElectronicAuction bool `json:"electronic_auction"`
	IsRecurrent       bool `json:"is_recurrent"`
	MinimumCandidates *int `json:"minimum_candidates"`
	MaximumCandidates *int `json:"maximum_candidates"`
}

type URLs struct {
	SubmissionURL *string `json:"submission_url"`
	DocumentURL   *string `json:"document_url"`
	TEDNoticeURL  *string `json:"ted_notice_url"`
	TEDPDFURL     *string `json:"ted_pdf_url"`
}

type Additional struct {
	GPACovered     bool    `json:"gpa_covered"`
	AdditionalInfo *string `json:"additional_info"`
}

type Metadata struct {
	FetchedAt  string `json:"fetched_at"`
	APIVersion string `json:"api_version"`
}

// HasBarrier reports whether the tender carries at least one entry barrier.
func (t Tender) HasBarrier() bool {
	return t.Requirements.SecurityClearance || t.Requirements.GuaranteeRequired
}
