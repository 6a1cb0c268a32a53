package tender

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultLexiconYAML []byte

// Lexicon is the language data behind free-text lot-count inference.
type Lexicon struct {
	Connectors []string        `yaml:"connectors"`
	Languages  []LanguageEntry `yaml:"languages"`
}

// LanguageEntry holds one language's lot vocabulary.
type LanguageEntry struct {
	Code        string         `yaml:"code"`
	LotNouns    []string       `yaml:"lot_nouns"`
	LotMarkers  []string       `yaml:"lot_markers"`
	NumberWords map[string]int `yaml:"number_words"`
}

// ParseLexicon decodes a YAML lexicon.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(lex.Languages) == 0 {
		return nil, fmt.Errorf("parse lexicon: no languages defined")
	}
	return &lex, nil
}

// LoadLexicon reads a YAML lexicon from disk.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return ParseLexicon(data)
}

// DefaultLexicon returns the embedded lexicon.
func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexiconYAML)
	if err != nil {
		panic("embedded lexicon is invalid: " + err.Error())
	}
	return lex
}

type wordSet map[string]struct{}

func newWordSet(words ...[]string) wordSet {
	s := make(wordSet)
	for _, list := range words {
		for _, w := range list {
			s[foldWord(w)] = struct{}{}
		}
	}
	return s
}

func (s wordSet) has(w string) bool {
	_, ok := s[w]
	return ok
}

type languageIndex struct {
	nouns   wordSet
	markers wordSet
	numbers map[string]int
}

// lexiconIndex is the lookup form of a Lexicon.
type lexiconIndex struct {
	connectors wordSet
	nouns      wordSet
	markers    wordSet
	languages  map[string]*languageIndex
	order      []string
}

func (l *Lexicon) index() *lexiconIndex {
	idx := &lexiconIndex{
		connectors: newWordSet(l.Connectors),
		nouns:      make(wordSet),
		markers:    make(wordSet),
		languages:  make(map[string]*languageIndex, len(l.Languages)),
	}
	for _, lang := range l.Languages {
		li := &languageIndex{
			nouns:   newWordSet(lang.LotNouns),
			markers: newWordSet(lang.LotMarkers),
			numbers: make(map[string]int, len(lang.NumberWords)),
		}
		for w, n := range lang.NumberWords {
			li.numbers[foldWord(w)] = n
		}
		for w := range li.nouns {
			idx.nouns[w] = struct{}{}
		}
		for w := range li.markers {
			idx.markers[w] = struct{}{}
		}
		code := strings.ToLower(lang.Code)
		idx.languages[code] = li
		idx.order = append(idx.order, code)
	}
	return idx
}

// languagesFor returns the language tables to apply to text tagged lang.
// Untagged text takes the source languages, the known tags found elsewhere
// in the same group; with none it gets no tables at all.
func (idx *lexiconIndex) languagesFor(lang string, source []string) []*languageIndex {
	if li, ok := idx.languages[strings.ToLower(lang)]; ok {
		return []*languageIndex{li}
	}
	if lang != "" {
		return nil
	}
	out := make([]*languageIndex, 0, len(source))
	for _, code := range source {
		out = append(out, idx.languages[code])
	}
	return out
}

// sourceLanguages lists the known language tags of samples in lexicon order.
func (idx *lexiconIndex) sourceLanguages(samples []TextSample) []string {
	tagged := make(map[string]struct{})
	for _, s := range samples {
		if s.Lang != "" {
			tagged[strings.ToLower(s.Lang)] = struct{}{}
		}
	}
	var out []string
	for _, code := range idx.order {
		if _, ok := tagged[code]; ok {
			out = append(out, code)
		}
	}
	return out
}
