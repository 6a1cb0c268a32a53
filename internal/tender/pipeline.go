package tender

import (
	"time"

	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/pkg/model"
)

// Pipeline turns a flat batch of lot records into one tender per procurement.
// It holds no mutable state and may be shared between goroutines.
type Pipeline struct {
	grouper    *LotGrouper
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewPipeline wires a pipeline from its two stages.
func NewPipeline(logger *zap.Logger, grouper *LotGrouper, normalizer *Normalizer) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{grouper: grouper, normalizer: normalizer, logger: logger}
}

// Run groups, normalizes, drops expired tenders and computes statistics.
// The same records and now always produce the same output.
func (p *Pipeline) Run(records []RawRecord, now time.Time) ([]model.Tender, model.Stats) {
	groups, skipped := GroupRecords(records)

	tenders := make([]model.Tender, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	expired := 0
	for _, g := range groups {
		lots := p.grouper.Identify(g.Records)
		t := p.normalizer.Normalize(g.Records[0], lots, now)

		if d := t.Dates.DaysUntilDeadline; d != nil && *d < 0 {
			expired++
			continue
		}
		if _, dup := seen[t.NoticeIdentifier]; dup {
			continue
		}
		seen[t.NoticeIdentifier] = struct{}{}
		tenders = append(tenders, t)
	}

	stats := ComputeStats(tenders)
	stats.RecordsIn = len(records)
	stats.RecordsSkipped = skipped
	stats.ExpiredRemoved = expired

	p.logger.Info("pipeline.run_complete",
		zap.Int("records", len(records)),
		zap.Int("groups", len(groups)),
		zap.Int("skipped", skipped),
		zap.Int("expired", expired),
		zap.Int("tenders", len(tenders)))

	return tenders, stats
}

// ComputeStats counts tenders by urgency, value bracket and business flags.
func ComputeStats(tenders []model.Tender) model.Stats {
	s := model.Stats{
		Total:   len(tenders),
		Urgency: make(map[string]int),
		Value:   make(map[string]int),
	}
	for _, t := range tenders {
		s.Urgency[t.Dates.UrgencyLevel]++
		if t.Financial.ValueCategory != nil {
			s.Value[*t.Financial.ValueCategory]++
		}
		if t.Strategic.IsSMEAccessible {
			s.SME++
		}
		if t.Strategic.IsInnovative {
			s.Innovative++
		}
		if t.Strategic.IsFramework {
			s.Framework++
		}
		if t.Strategic.IsMultiLot {
			s.MultiLot++
		}
		if t.Buyer.Email != nil && *t.Buyer.Email != "" {
			s.WithEmail++
		}
		if t.HasBarrier() {
			s.WithBarriers++
		}
	}
	return s
}
