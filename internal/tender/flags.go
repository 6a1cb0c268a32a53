package tender

import "strings"

// FlagKind tags how a business flag arrived upstream.
type FlagKind int

const (
	FlagAbsent FlagKind = iota
	FlagBoolean
	FlagRawString
)

// Flag is a business flag before it is collapsed to a bool.
type Flag struct {
	Kind    FlagKind
	Boolean bool
	Raw     string
}

// falseStrings are raw values that mean "no", compared case-insensitively
// after trimming.
var falseStrings = map[string]struct{}{
	"":            {},
	"false":       {},
	"none":        {},
	"no":          {},
	"not-allowed": {},
}

// ParseFlag classifies a raw field value. Falsy values (see Extract) are Absent.
func ParseFlag(raw any) Flag {
	v := Extract(raw, nil)
	switch t := v.(type) {
	case nil:
		return Flag{Kind: FlagAbsent}
	case bool:
		return Flag{Kind: FlagBoolean, Boolean: t}
	default:
		return Flag{Kind: FlagRawString, Raw: scalarString(t)}
	}
}

// Value collapses the flag: booleans pass through, absent is false, and raw
// strings are true unless they appear in the false stoplist.
func (f Flag) Value() bool {
	switch f.Kind {
	case FlagBoolean:
		return f.Boolean
	case FlagRawString:
		_, isFalse := falseStrings[strings.ToLower(strings.TrimSpace(f.Raw))]
		return !isFalse
	default:
		return false
	}
}

// ResolveFlag is ParseFlag(raw).Value().
func ResolveFlag(raw any) bool {
	return ParseFlag(raw).Value()
}
