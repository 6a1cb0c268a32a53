package ted

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/metrics"
	"github.com/tenderwatch/ted-adapter/internal/tender"
)

// Searcher fetches one page of search results.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// Result is every lot record of one fetch, flattened across pages.
type Result struct {
	Query     string
	Records   []tender.RawRecord
	Available int
	Pages     int
	Fields    []string
	// Truncated is set when the page cap or a mid-run failure stopped the
	// fetch before Available records were read.
	Truncated bool
}

// Fetcher paginates a query to completion.
type Fetcher struct {
	logger    *zap.Logger
	searcher  Searcher
	pageLimit int
	maxPages  int
	fields    []string
}

// NewFetcher builds a fetcher. fields defaults to DefaultFields().
func NewFetcher(logger *zap.Logger, searcher Searcher, pageLimit, maxPages int, fields []string) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		fields = DefaultFields()
	}
	return &Fetcher{logger: logger, searcher: searcher, pageLimit: pageLimit, maxPages: maxPages, fields: fields}
}

// Fetch reads pages until the available count is reached, a page comes back
// short or empty, or maxPages is hit. If the API rejects the field list, the
// fetch restarts once with CoreFields.
func (f *Fetcher) Fetch(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.PipelineDuration, start, "fetch")

	res, err := f.fetch(ctx, q, f.fields)
	if errors.Is(err, ErrUnsupportedFields) && len(f.fields) > len(CoreFields) {
		f.logger.Warn("ted.fields_rejected_retrying_core",
			zap.Int("requested", len(f.fields)),
			zap.Int("core", len(CoreFields)))
		res, err = f.fetch(ctx, q, CoreFields)
	}
	if err != nil {
		metrics.IncError("ted", "fetch_failed")
		return nil, err
	}
	metrics.FetchedRecords.Add(float64(len(res.Records)))
	return res, nil
}

func (f *Fetcher) fetch(ctx context.Context, q Query, fields []string) (*Result, error) {
	res := &Result{Query: q.String(), Fields: fields}

	for page := 1; page <= f.maxPages; page++ {
		resp, err := f.searcher.Search(ctx, SearchRequest{
			Query:              res.Query,
			Fields:             fields,
			Page:               page,
			Limit:              f.pageLimit,
			Scope:              ScopeActive,
			PaginationMode:     PaginationPageNumber,
			OnlyLatestVersions: true,
		})
		if err != nil {
			if page == 1 || errors.Is(err, ErrUnsupportedFields) || ctx.Err() != nil {
				return nil, fmt.Errorf("fetch %q: %w", res.Query, err)
			}
			f.logger.Warn("ted.page_failed_keeping_partial",
				zap.Int("page", page),
				zap.Int("records", len(res.Records)),
				zap.Error(err))
			res.Truncated = true
			return res, nil
		}
		res.Pages = page

		if page == 1 {
			res.Available = resp.Available()
			f.logger.Info("ted.fetch_started",
				zap.String("query", res.Query),
				zap.Int("available", res.Available),
				zap.Int("fields", len(fields)))
		}
		f.logger.Debug("ted.fetch_page",
			zap.Int("page", page),
			zap.Int("notices", len(resp.Notices)),
			zap.Int("malformed", resp.Notices.Malformed()))

		if len(resp.Notices) == 0 {
			break
		}
		res.Records = append(res.Records, resp.Notices...)

		if res.Available > 0 && len(res.Records) >= res.Available {
			break
		}
		if len(resp.Notices) < f.pageLimit {
			break
		}
		if page == f.maxPages {
			res.Truncated = true
			f.logger.Warn("ted.page_cap_reached",
				zap.Int("max_pages", f.maxPages),
				zap.Int("records", len(res.Records)),
				zap.Int("available", res.Available))
		}
	}

	f.logger.Info("ted.fetch_complete",
		zap.Int("records", len(res.Records)),
		zap.Int("pages", res.Pages),
		zap.Bool("truncated", res.Truncated))
	return res, nil
}
