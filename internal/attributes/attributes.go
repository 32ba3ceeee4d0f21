package attributes

import (
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformed is reported when a stored attribute field has a type that is
// neither a delimited string nor a list of strings.
var ErrMalformed = errors.New("malformed attribute field")

// cutset is stripped from both ends of every token.
const cutset = " []'\""

type rawKind int

const (
	kindNone rawKind = iota
	kindText
	kindList
)

// Raw is a detected-object field as it arrives from the catalog: either a
// single delimited string or a list of delimited strings.
type Raw struct {
	kind rawKind
	text string
	list []string
}

// Text wraps a single comma-delimited string.
func Text(s string) Raw {
	return Raw{kind: kindText, text: s}
}

// List wraps a sequence of strings, each of which may itself be delimited.
func List(items ...string) Raw {
	return Raw{kind: kindList, list: items}
}

// ParseRaw decodes a stored detected-object column. JSON arrays become a List
// (non-string members are skipped), JSON strings and non-JSON text become a
// Text. Any other JSON type yields an empty Raw and ErrMalformed.
func ParseRaw(field string) (Raw, error) {
	if strings.TrimSpace(field) == "" {
		return Raw{}, nil
	}
	if !gjson.Valid(field) {
		return Text(field), nil
	}

	res := gjson.Parse(field)
	switch {
	case res.IsArray():
		var items []string
		res.ForEach(func(_, value gjson.Result) bool {
			if value.Type == gjson.String {
				items = append(items, value.Str)
			}
			return true
		})
		return List(items...), nil
	case res.Type == gjson.String:
		return Text(res.Str), nil
	case res.Type == gjson.Null:
		return Raw{}, nil
	default:
		return Raw{}, ErrMalformed
	}
}

// Set is a sorted, duplicate-free list of clean tokens.
type Set []string

// Normalize flattens r into a Set. Every string is split on commas, each piece
// is trimmed of spaces, brackets and quotes, and empty pieces are dropped.
func Normalize(r Raw) Set {
	var parts []string
	switch r.kind {
	case kindText:
		parts = []string{r.text}
	case kindList:
		parts = r.list
	default:
		return Set{}
	}

	seen := make(map[string]struct{})
	out := Set{}
	for _, p := range parts {
		for _, tok := range strings.Split(p, ",") {
			tok = strings.Trim(tok, cutset)
			if tok == "" {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

// Tokens normalizes a list of user-supplied tokens.
func Tokens(items ...string) Set {
	return Normalize(List(items...))
}

// Raw returns the set as a List so it can be normalized again.
func (s Set) Raw() Raw {
	return List(s...)
}

// Contains reports whether tok is in the set.
func (s Set) Contains(tok string) bool {
	i := sort.SearchStrings(s, tok)
	return i < len(s) && s[i] == tok
}

// ContainsAll reports whether every token of other is in s.
func (s Set) ContainsAll(other Set) bool {
	for _, tok := range other {
		if !s.Contains(tok) {
			return false
		}
	}
	return true
}

// Union merges sets into a new sorted Set.
func Union(sets ...Set) Set {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return Normalize(List(all...))
}

// UnmarshalJSON accepts either raw encoding of a detected-object field. A
// field of any other type decodes to an empty set.
func (s *Set) UnmarshalJSON(data []byte) error {
	raw, err := ParseRaw(string(data))
	if err != nil {
		*s = Set{}
		return nil
	}
	*s = Normalize(raw)
	return nil
}
