package tender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGrouper() *LotGrouper {
	return NewLotGrouper(zap.NewNop(), nil)
}

func lotRecord(notice, lot string, extra obj) RawRecord {
	rec := RawRecord{FieldNoticeIdentifier: notice, FieldLotIdentifier: arr{lot}}
	for k, v := range extra {
		rec[k] = v
	}
	return rec
}

// ─── Grouping ─────────────────────────────────────────────────────────────────

func TestGroupRecords_FirstSeenOrderAndSkips(t *testing.T) {
	records := []RawRecord{
		lotRecord("B", "LOT-0001", nil),
		lotRecord("A", "LOT-0001", nil),
		nil,
		{"title-lot": "orphan"},
		lotRecord("B", "LOT-0002", nil),
		{FieldNoticeIdentifier: "   "},
	}
	groups, skipped := GroupRecords(records)

	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].Key)
	assert.Len(t, groups[0].Records, 2)
	assert.Equal(t, "A", groups[1].Key)
	assert.Equal(t, 3, skipped)
}

func TestProcurementKey_Multilingual(t *testing.T) {
	key, ok := ProcurementKey(RawRecord{FieldNoticeIdentifier: arr{" 4f2c-77 "}})
	assert.True(t, ok)
	assert.Equal(t, "4f2c-77", key)
}

// ─── Identifier rules ─────────────────────────────────────────────────────────

func TestIdentify_DistinctIdentifiers(t *testing.T) {
	records := []RawRecord{
		lotRecord("P1", "LOT-0001", nil),
		lotRecord("P1", "LOT-0002", nil),
		lotRecord("P1", "LOT-0003", nil),
	}
	id := newGrouper().Identify(records)

	assert.True(t, id.IsMultiLot)
	assert.Equal(t, 3, id.TotalLots)
	assert.Equal(t, []string{"LOT-0001", "LOT-0002", "LOT-0003"}, id.Identifiers)
	assert.Equal(t, LotSourceIdentifiers, id.Source)
}

func TestIdentify_DuplicatesAndSentinelIgnored(t *testing.T) {
	records := []RawRecord{
		lotRecord("P1", "LOT-0002", nil),
		lotRecord("P1", "LOT-0002", nil),
		lotRecord("P1", "lot-0000", nil),
		{FieldNoticeIdentifier: "P1", FieldLotIdentifier: arr{"LOT-0001", "LOT-0002"}},
	}
	id := newGrouper().Identify(records)

	assert.True(t, id.IsMultiLot)
	assert.Equal(t, 2, id.TotalLots)
}

func TestIdentify_SentinelOnlyIsSingle(t *testing.T) {
	id := newGrouper().Identify([]RawRecord{
		lotRecord("P2", NoLotSentinel, obj{"notice-title": obj{"eng": "Office furniture"}}),
	})

	assert.False(t, id.IsMultiLot)
	assert.Equal(t, 1, id.TotalLots)
	assert.Empty(t, id.Identifiers)
	assert.Equal(t, LotSourceSingle, id.Source)
}

func TestIdentify_NoIdentifierField(t *testing.T) {
	id := newGrouper().Identify([]RawRecord{{FieldNoticeIdentifier: "P3", "description-lot": "Split into 9 lots"}})
	assert.False(t, id.IsMultiLot, "text is only consulted when exactly one identifier exists")
	assert.Equal(t, 1, id.TotalLots)
}

// ─── Free-text inference ──────────────────────────────────────────────────────

func TestIdentify_TextInference(t *testing.T) {
	cases := []struct {
		name   string
		extra  obj
		multi  bool
		total  int
		source string
	}{
		{
			name:   "numeric phrase",
			extra:  obj{"notice-title": obj{"eng": "Framework agreement divided into 4 lots"}},
			multi:  true,
			total:  4,
			source: "text:numeric-phrase",
		},
		{
			name:   "danish number word",
			extra:  obj{"description-lot": obj{"dan": "Udbuddet er opdelt i tre delaftaler."}},
			multi:  true,
			total:  3,
			source: "text:number-word",
		},
		{
			name:   "german number word with umlaut",
			extra:  obj{"description-proc": obj{"deu": "Die Vergabe erfolgt in fünf Lose."}},
			multi:  true,
			total:  5,
			source: "text:number-word",
		},
		{
			name:   "decomposed umlaut",
			extra:  obj{"description-proc": obj{"deu": "Die Vergabe erfolgt in fu\u0308nf Lose."}},
			multi:  true,
			total:  5,
			source: "text:number-word",
		},
		{
			name:   "lot mentions take the highest number",
			extra:  obj{"description-lot": "Lot 2: cleaning. Lot nr. 5: windows."},
			multi:  true,
			total:  5,
			source: "text:lot-mention",
		},
		{
			name:   "numeric phrase outranks mentions",
			extra:  obj{"title-lot": "3 lots in total", "description-lot": "See Lot 7 for details"},
			multi:  true,
			total:  3,
			source: "text:numeric-phrase",
		},
		{
			name:   "mention of lot 1 only",
			extra:  obj{"title-lot": "Lot 1 - catering"},
			multi:  false,
			total:  1,
			source: LotSourceSingle,
		},
		{
			name:   "no cues",
			extra:  obj{"notice-title": "Road maintenance 2025"},
			multi:  false,
			total:  1,
			source: LotSourceSingle,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := newGrouper().Identify([]RawRecord{lotRecord("P9", "LOT-0001", tc.extra)})
			assert.Equal(t, tc.multi, id.IsMultiLot)
			assert.Equal(t, tc.total, id.TotalLots)
			assert.Equal(t, tc.source, id.Source)
			assert.Equal(t, []string{"LOT-0001"}, id.Identifiers)
		})
	}
}

func TestIdentify_SentinelPlusOneIdentifierUsesText(t *testing.T) {
	id := newGrouper().Identify([]RawRecord{
		lotRecord("P4", NoLotSentinel, nil),
		lotRecord("P4", "LOT-0003", obj{"title-lot": obj{"eng": "Two lots for ICT"}}),
	})
	assert.True(t, id.IsMultiLot)
	assert.Equal(t, 2, id.TotalLots)
}

func TestIdentify_UntaggedTextNumberWords(t *testing.T) {
	cases := []struct {
		name   string
		extra  obj
		multi  bool
		total  int
		source string
	}{
		{
			name:   "english prose is not read as danish",
			extra:  obj{"description-lot": "Requirements apply to lots delivered to the site."},
			multi:  false,
			total:  1,
			source: LotSourceSingle,
		},
		{
			name:   "untagged number word without source language",
			extra:  obj{"title-lot": "Two lots for ICT"},
			multi:  false,
			total:  1,
			source: LotSourceSingle,
		},
		{
			name: "untagged text takes the notice language",
			extra: obj{
				"notice-title":    obj{"dan": "Rengøring af skoler"},
				"description-lot": "Opgaven er delt i to delaftaler.",
			},
			multi:  true,
			total:  2,
			source: "text:number-word",
		},
		{
			name: "english notice ignores danish number words",
			extra: obj{
				"notice-title":    obj{"eng": "School cleaning"},
				"description-lot": "Requirements apply to lots delivered to the site.",
			},
			multi:  false,
			total:  1,
			source: LotSourceSingle,
		},
		{
			name:   "untagged digits still count",
			extra:  obj{"description-lot": "Split into 6 lots"},
			multi:  true,
			total:  6,
			source: "text:numeric-phrase",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := newGrouper().Identify([]RawRecord{lotRecord("P1", "LOT-0001", tc.extra)})
			assert.Equal(t, tc.multi, id.IsMultiLot)
			assert.Equal(t, tc.total, id.TotalLots)
			assert.Equal(t, tc.source, id.Source)
		})
	}
}

type fixedMatcher struct {
	n  int
	ok bool
}

func (fixedMatcher) Name() string                     { return "fixed" }
func (m fixedMatcher) Match([]TextSample) (int, bool) { return m.n, m.ok }

func TestIdentify_CustomMatcherChain(t *testing.T) {
	g := newGrouper().WithMatchers(fixedMatcher{ok: false}, fixedMatcher{n: 6, ok: true}, fixedMatcher{n: 9, ok: true})
	id := g.Identify([]RawRecord{lotRecord("P5", "LOT-0001", nil)})

	assert.True(t, id.IsMultiLot)
	assert.Equal(t, 6, id.TotalLots)
	assert.Equal(t, "text:fixed", id.Source)
}

func TestIdentify_FirstSignalDecidesEvenWhenSingle(t *testing.T) {
	g := newGrouper().WithMatchers(fixedMatcher{n: 1, ok: true}, fixedMatcher{n: 8, ok: true})
	id := g.Identify([]RawRecord{lotRecord("P6", "LOT-0001", nil)})

	assert.False(t, id.IsMultiLot)
	assert.Equal(t, 1, id.TotalLots)
}

// ─── Lexicon ──────────────────────────────────────────────────────────────────

func TestParseLexicon_CustomLanguage(t *testing.T) {
	lex, err := ParseLexicon([]byte(`
connectors: [nr]
languages:
  - code: fin
    lot_nouns: [osaa]
    lot_markers: [osa]
    number_words: {kolme: 3}
`))
	require.NoError(t, err)

	g := NewLotGrouper(zap.NewNop(), lex)
	id := g.Identify([]RawRecord{lotRecord("F1", "LOT-0001", obj{"title-lot": obj{"fin": "Hankinta jaetaan kolme osaa"}})})
	assert.Equal(t, 3, id.TotalLots)

	_, err = ParseLexicon([]byte(`connectors: [nr]`))
	assert.Error(t, err)
	_, err = ParseLexicon([]byte(`languages: [`))
	assert.Error(t, err)
}

func TestDefaultLexicon_CoversPriorityLanguages(t *testing.T) {
	idx := DefaultLexicon().index()
	for _, lang := range LanguagePriority {
		li, ok := idx.languages[lang]
		require.True(t, ok, lang)
		assert.NotEmpty(t, li.numbers, lang)
		assert.NotEmpty(t, li.nouns, lang)
	}
}
