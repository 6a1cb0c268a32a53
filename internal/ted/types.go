package ted

import "github.com/tenderwatch/ted-adapter/internal/tender"

// SearchRequest is the body of POST /v3/notices/search.
type SearchRequest struct {
	Query              string   `json:"query"`
	Fields             []string `json:"fields"`
	Page               int      `json:"page"`
	Limit              int      `json:"limit"`
	Scope              string   `json:"scope"`
	PaginationMode     string   `json:"paginationMode"`
	OnlyLatestVersions bool     `json:"onlyLatestVersions"`
}

// SearchResponse is one page of search results. Each notice is one lot record;
// non-object notices decode to nil records and are skipped downstream.
type SearchResponse struct {
	Notices          tender.Records `json:"notices"`
	TotalNoticeCount int            `json:"totalNoticeCount"`
	Hits             int            `json:"hits"`
}

// Available is the upstream's count of matching records across all pages.
func (r *SearchResponse) Available() int {
	if r.TotalNoticeCount > 0 {
		return r.TotalNoticeCount
	}
	return r.Hits
}

// Search API constants.
const (
	ScopeActive          = "ACTIVE"
	PaginationPageNumber = "PAGE_NUMBER"
)

// CoreFields are always supported by the search API.
var CoreFields = []string{
	"notice-identifier",
	"publication-number",
	"notice-type",
	"notice-title",
	"title-lot",
	"description-lot",
	"publication-date",
	"deadline-receipt-tender-date-lot",
	"deadline-receipt-request-date-lot",
	"deadline-receipt-expressions-date-lot",
	"classification-cpv",
	"contract-nature",
	"procedure-type",
	"buyer-name",
	"buyer-country",
	"buyer-city",
	"estimated-value-lot",
	"estimated-value-cur-lot",
	"place-of-performance-country-lot",
	"place-of-performance-city-lot",
	"identifier-lot",
	"sme-lot",
	"framework-agreement-lot",
	"submission-url-lot",
}

// ExtendedFields enrich the tender but may be rejected by some API versions.
var ExtendedFields = []string{
	"buyer-email",
	"buyer-profile",
	"buyer-legal-type",
	"dps-usage-lot",
	"innovative-acquisition-lot",
	"social-objective-lot",
	"reserved-procurement-lot",
	"security-clearance-lot",
	"guarantee-required-lot",
	"guarantee-required-description-lot",
	"electronic-submission-lot",
	"subcontracting-obligation-lot",
	"award-criterion-type-lot",
	"award-criterion-name-lot",
	"award-criterion-description-lot",
	"document-url-lot",
	"contract-duration-period-lot",
	"contract-duration-start-date-lot",
	"contract-duration-end-date-lot",
	"additional-classification-lot",
	"variant-allowed-lot",
	"electronic-auction-lot",
	"recurrence-lot",
	"minimum-candidate-lot",
	"maximum-candidates-lot",
	"gpa-lot",
	"additional-information-lot",
	"description-proc",
}

// DefaultFields is CoreFields followed by ExtendedFields.
func DefaultFields() []string {
	out := make([]string, 0, len(CoreFields)+len(ExtendedFields))
	out = append(out, CoreFields...)
	return append(out, ExtendedFields...)
}
