package headers

import (
	"strings"

	"github.com/crosswise/cors/internal/util"
)

const (
	MaxOWSBytes      = 1  // number of leading/trailing OWS bytes tolerated
	MaxEmptyElements = 16 // number of empty list elements tolerated
)

// A TokenSet represents a set of header names, matched
// ASCII-case-insensitively. The zero value represents an empty set.
type TokenSet struct {
	m      map[string]struct{} // invariant: keys are byte-lowercase
	maxLen int
}

// NewTokenSet returns a TokenSet that contains all of names
// (modulo ASCII case) but no other names.
func NewTokenSet(names ...string) TokenSet {
	m := make(map[string]struct{}, len(names))
	var maxLen int
	for _, name := range names {
		name = util.ByteLowercase(name)
		maxLen = max(maxLen, len(name))
		m[name] = struct{}{}
	}
	return TokenSet{
		m:      m,
		maxLen: maxLen,
	}
}

// Size returns the cardinality of set.
func (set TokenSet) Size() int {
	return len(set.m)
}

// Contains reports whether name (modulo ASCII case) is an element of set.
func (set TokenSet) Contains(name string) bool {
	if len(name) > set.maxLen {
		return false
	}
	_, found := set.m[util.ByteLowercase(name)]
	return found
}

// AcceptsAll reports whether values is a sequence of [list-based field
// values] whose elements are all members of set (modulo ASCII case).
// A single element that isn't a member voids the whole check.
//
// This method's parameter is a slice of strings rather than just a string
// because, although [the Fetch standard] requires browsers to include at
// most one ACRH field line in CORS-preflight requests, some intermediaries
// may well (and [some reportedly do]) split it into multiple ACRH field
// lines.
//
// Although [the Fetch standard] requires browsers to omit any whitespace
// in the value of the ACRH field, some intermediaries may well alter this
// list-based field's value by sprinkling optional whitespace (OWS) around
// the value's elements.
// [RFC 9110] (section 5.6.1.2) requires recipients to tolerate arbitrary
// long OWS around elements of a list-based field value,
// but adherence to this requirement leads to non-negligible performance
// degradation in CORS middleware in the face of adversarial (spoofed)
// CORS-preflight requests.
// Therefore, this method only tolerates a small number (1) of OWS bytes
// before and/or after each element. It also tolerates a small number (16)
// of empty list elements, in accordance with [RFC 9110]'s recommendation.
//
// [RFC 9110]: https://httpwg.org/specs/rfc9110.html
// [list-based field values]: https://httpwg.org/specs/rfc9110.html#abnf.extension
// [some reportedly do]: https://github.com/rs/cors/issues/184
// [the Fetch standard]: https://fetch.spec.whatwg.org
func (set TokenSet) AcceptsAll(values []string) bool {
	// effectively constant
	maxLen := MaxOWSBytes + set.maxLen + MaxOWSBytes + 1 // +1 for comma
	var (
		name          string
		commaFound    bool
		emptyElements int
		ok            bool
	)
	for _, s := range values {
		for {
			// As a defense against maliciously long names in s, we process
			// only a small number of s's leading bytes per iteration.
			name, s, commaFound = cutAtComma(s, maxLen)
			name, ok = TrimOWS(name, MaxOWSBytes)
			if !ok {
				return false
			}
			if name == "" {
				// RFC 9110 requires recipients to tolerate
				// "a reasonable number of empty list elements"; see
				// https://httpwg.org/specs/rfc9110.html#abnf.extension.recipient.
				emptyElements++
				if emptyElements > MaxEmptyElements {
					return false
				}
				if !commaFound { // We have now exhausted the names in s.
					break
				}
				continue
			}
			if !set.Contains(name) {
				return false
			}
			if !commaFound { // We have now exhausted the names in s.
				break
			}
		}
	}
	return true
}

// cutAtComma slices s around the first comma that appears among (up to) the
// first n bytes of s, returning the parts of s before and after the comma.
// The found result reports whether a comma appears in that portion of s.
// If no comma appears in that portion of s, cutAtComma returns s, "", false.
func cutAtComma(s string, n int) (before, after string, found bool) {
	// Note: this implementation draws inspiration from strings.Cut's.
	end := min(len(s), n)
	if i := strings.IndexByte(s[:end], ','); i >= 0 {
		after = s[i+1:] // deal with this first to save one bounds check
		return s[:i], after, true
	}
	return s, "", false
}
