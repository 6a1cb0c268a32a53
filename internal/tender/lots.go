package tender

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Upstream field names the lot logic reads.
const (
	FieldNoticeIdentifier = "notice-identifier"
	FieldLotIdentifier    = "identifier-lot"
)

// NoLotSentinel is the lot identifier meaning "not subdivided into lots".
const NoLotSentinel = "LOT-0000"

// Lot count sources, recorded on the tender for traceability.
const (
	LotSourceIdentifiers = "identifiers"
	LotSourceSingle      = "single"
)

// DefaultLotTextFields are the prose fields scanned for lot-count cues.
var DefaultLotTextFields = []string{
	"notice-title",
	"title-lot",
	"description-lot",
	"description-proc",
	"additional-information-lot",
}

// LotIdentity is the group-level lot picture of one procurement.
type LotIdentity struct {
	Identifiers []string
	TotalLots   int
	IsMultiLot  bool
	Source      string
}

// Group is every record sharing one procurement key, in input order.
type Group struct {
	Key     string
	Records []RawRecord
}

// ProcurementKey returns the notice identifier of rec, if it has one.
func ProcurementKey(rec RawRecord) (string, bool) {
	if rec == nil {
		return "", false
	}
	s := ExtractString(rec[FieldNoticeIdentifier])
	if s == nil {
		return "", false
	}
	key := strings.TrimSpace(*s)
	return key, key != ""
}

// GroupRecords partitions records by procurement key, preserving the order in
// which keys first appear. Records without a key are dropped and counted.
func GroupRecords(records []RawRecord) (groups []Group, skipped int) {
	pos := make(map[string]int)
	for _, rec := range records {
		key, ok := ProcurementKey(rec)
		if !ok {
			skipped++
			continue
		}
		i, seen := pos[key]
		if !seen {
			i = len(groups)
			pos[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups, skipped
}

// TextSample is one piece of prose with its language code ("" when untagged).
type TextSample struct {
	Lang string
	Text string
}

// LotCountMatcher infers a lot count from prose. ok=false means no signal.
type LotCountMatcher interface {
	Name() string
	Match(samples []TextSample) (count int, ok bool)
}

// LotGrouper derives LotIdentity for a group of records.
type LotGrouper struct {
	logger     *zap.Logger
	textFields []string
	matchers   []LotCountMatcher
}

// NewLotGrouper builds a grouper whose inference runs, in order: numeric
// phrases, number words, then lot-number mentions.
func NewLotGrouper(logger *zap.Logger, lex *Lexicon) *LotGrouper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lex == nil {
		lex = DefaultLexicon()
	}
	idx := lex.index()
	return &LotGrouper{
		logger:     logger,
		textFields: DefaultLotTextFields,
		matchers: []LotCountMatcher{
			numericPhraseMatcher{idx: idx},
			numberWordMatcher{idx: idx},
			lotMentionMatcher{idx: idx},
		},
	}
}

// WithMatchers returns a copy of g using the given matcher chain.
func (g *LotGrouper) WithMatchers(matchers ...LotCountMatcher) *LotGrouper {
	cp := *g
	cp.matchers = matchers
	return &cp
}

// Identify computes the lot identity of one group.
//
//  1. Two or more distinct real lot identifiers: multi-lot, one lot per identifier.
//  2. Exactly one identifier: the first matcher with a signal decides; a count
//     above one makes the group multi-lot.
//  3. No identifiers: single lot.
func (g *LotGrouper) Identify(records []RawRecord) LotIdentity {
	ids := lotIdentifiers(records)

	switch {
	case len(ids) >= 2:
		return LotIdentity{Identifiers: ids, TotalLots: len(ids), IsMultiLot: true, Source: LotSourceIdentifiers}
	case len(ids) == 0:
		return LotIdentity{TotalLots: 1, Source: LotSourceSingle}
	}

	samples := g.textSamples(records)
	for _, m := range g.matchers {
		n, ok := m.Match(samples)
		if !ok {
			continue
		}
		g.logger.Debug("lots.inferred",
			zap.String("matcher", m.Name()),
			zap.String("lot", ids[0]),
			zap.Int("count", n))
		if n > 1 {
			return LotIdentity{Identifiers: ids, TotalLots: n, IsMultiLot: true, Source: "text:" + m.Name()}
		}
		break
	}
	return LotIdentity{Identifiers: ids, TotalLots: 1, Source: LotSourceSingle}
}

func lotIdentifiers(records []RawRecord) []string {
	set := make(map[string]struct{})
	for _, rec := range records {
		for _, id := range flattenStrings(rec[FieldLotIdentifier]) {
			if strings.EqualFold(id, NoLotSentinel) {
				continue
			}
			set[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *LotGrouper) textSamples(records []RawRecord) []TextSample {
	var out []TextSample
	seen := make(map[TextSample]struct{})
	add := func(lang string, v any) {
		for _, s := range flattenStrings(v) {
			ts := TextSample{Lang: lang, Text: s}
			if _, dup := seen[ts]; dup {
				continue
			}
			seen[ts] = struct{}{}
			out = append(out, ts)
		}
	}
	for _, rec := range records {
		for _, field := range g.textFields {
			switch v := rec[field].(type) {
			case map[string]any:
				langs := make([]string, 0, len(v))
				for lang := range v {
					langs = append(langs, lang)
				}
				sort.Strings(langs)
				for _, lang := range langs {
					add(lang, v[lang])
				}
			default:
				add("", v)
			}
		}
	}
	return out
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// tokenize composes combining marks first so "fu\u0308nf" yields one token.
func tokenize(text string) []string {
	return tokenPattern.FindAllString(foldWord(text), -1)
}

func foldWord(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

func parseCount(tok string) (int, bool) {
	if len(tok) == 0 || len(tok) > 4 {
		return 0, false
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// numericPhraseMatcher finds "<digits> <lot noun>", e.g. "divided into 4 lots".
type numericPhraseMatcher struct{ idx *lexiconIndex }

func (numericPhraseMatcher) Name() string { return "numeric-phrase" }

func (m numericPhraseMatcher) Match(samples []TextSample) (int, bool) {
	best, found := 0, false
	for _, s := range samples {
		toks := tokenize(s.Text)
		for i := 0; i+1 < len(toks); i++ {
			n, ok := parseCount(toks[i])
			if !ok || !m.idx.nouns.has(toks[i+1]) {
				continue
			}
			if n > best {
				best = n
			}
			found = true
		}
	}
	return best, found
}

// numberWordMatcher finds "<number word> <lot noun>" in the notice's source
// language. Number words are short and collide across languages (Danish "to"
// is 2), so untagged text in a notice with no language tags is not scanned.
type numberWordMatcher struct{ idx *lexiconIndex }

func (numberWordMatcher) Name() string { return "number-word" }

func (m numberWordMatcher) Match(samples []TextSample) (int, bool) {
	best, found := 0, false
	source := m.idx.sourceLanguages(samples)
	for _, s := range samples {
		toks := tokenize(s.Text)
		for _, lang := range m.idx.languagesFor(s.Lang, source) {
			for i := 0; i+1 < len(toks); i++ {
				n, ok := lang.numbers[toks[i]]
				if !ok || !lang.nouns.has(toks[i+1]) {
					continue
				}
				if n > best {
					best = n
				}
				found = true
			}
		}
	}
	return best, found
}

// lotMentionMatcher finds "<lot marker> [nr.] <digits>" and reports the
// highest lot number referenced, e.g. "Lot 3" or "LOT-0005".
type lotMentionMatcher struct{ idx *lexiconIndex }

func (lotMentionMatcher) Name() string { return "lot-mention" }

func (m lotMentionMatcher) Match(samples []TextSample) (int, bool) {
	best, found := 0, false
	for _, s := range samples {
		toks := tokenize(s.Text)
		for i := 0; i < len(toks); i++ {
			if !m.idx.markers.has(toks[i]) {
				continue
			}
			j := i + 1
			for j < len(toks) && m.idx.connectors.has(toks[j]) {
				j++
			}
			if j >= len(toks) {
				continue
			}
			n, ok := parseCount(toks[j])
			if !ok {
				continue
			}
			if n > best {
				best = n
			}
			found = true
		}
	}
	return best, found
}
