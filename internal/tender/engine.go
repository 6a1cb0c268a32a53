package tender

import (
	"fmt"

	"go.uber.org/zap"
)

// EngineOptions are the runtime knobs of the aggregation engine.
type EngineOptions struct {
	ReferenceCurrency string
	// RateOverrides is "CODE=RATE,..." applied on top of DefaultRates.
	RateOverrides  string
	UrgencyProfile string
	// LexiconPath replaces the embedded lot lexicon when set.
	LexiconPath string
}

// NewEngine wires a Pipeline from opts.
func NewEngine(logger *zap.Logger, opts EngineOptions) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	overrides, err := ParseRates(opts.RateOverrides)
	if err != nil {
		return nil, fmt.Errorf("exchange rates: %w", err)
	}
	rates := NewRateTable(opts.ReferenceCurrency, DefaultRates).WithOverrides(overrides)

	lex := DefaultLexicon()
	if opts.LexiconPath != "" {
		if lex, err = LoadLexicon(opts.LexiconPath); err != nil {
			return nil, err
		}
	}

	normalizer := NewNormalizer(rates, WithUrgencyProfile(UrgencyProfileByName(opts.UrgencyProfile)))
	grouper := NewLotGrouper(logger.Named("lots"), lex)

	logger.Info("engine.ready",
		zap.String("reference_currency", rates.Reference()),
		zap.Int("rate_overrides", len(overrides)),
		zap.String("urgency_profile", opts.UrgencyProfile),
		zap.String("lexicon", lexiconSource(opts.LexiconPath)))
	return NewPipeline(logger.Named("pipeline"), grouper, normalizer), nil
}

func lexiconSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
