package headers

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// header names in canonical format
const (
	// common request headers
	Origin = "Origin"

	// preflight-only request headers
	ACRM = "Access-Control-Request-Method"
	ACRH = "Access-Control-Request-Headers"

	// common response headers
	ACAO = "Access-Control-Allow-Origin"
	ACAC = "Access-Control-Allow-Credentials"

	// preflight-only response headers
	ACAM = "Access-Control-Allow-Methods"
	ACAH = "Access-Control-Allow-Headers"
	ACMA = "Access-Control-Max-Age"

	// actual-only response headers
	ACEH = "Access-Control-Expose-Headers"

	Vary = "Vary"
)

const (
	ValueTrue     = "true"
	ValueWildcard = "*"
	ValueSep      = ","
)

var ( // each of them an effective constant wrapped in a (singleton) slice
	TrueSgl     = []string{ValueTrue}
	WildcardSgl = []string{ValueWildcard}
)

// IsValid reports whether name is a valid header name,
// [per the Fetch standard].
//
// [per the Fetch standard]: https://fetch.spec.whatwg.org/#header-name
func IsValid(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// First, if k is present in hdrs, returns the value associated to k in hdrs,
// a singleton slice containing that value, and true;
// otherwise, First returns "", nil, false.
// Precondition: k is in canonical format (see [http.CanonicalHeaderKey]).
//
// First is useful because
//   - contrary to [http.Header.Get], it returns a slice that can be reused,
//     which saves a heap allocation in client code;
//   - it returns the value both as a scalar and as a singleton slice,
//     which saves a bounds check in client code.
func First(hdrs http.Header, k string) (string, []string, bool) {
	v, found := hdrs[k]
	if !found || len(v) == 0 {
		return "", nil, false
	}
	return v[0], v[:1], true
}

// AddVaryOrigin merges "Origin" into resHdrs's Vary field value, if needed:
// if no existing Vary field line already lists Origin among its elements,
// AddVaryOrigin adds a new Vary field line, preserving the prior lines.
// It must add rather than set, because outer middleware may already have
// added or set a Vary header, which we wouldn't want to clobber.
// AddVaryOrigin is idempotent.
func AddVaryOrigin(resHdrs http.Header) {
	for _, value := range resHdrs[Vary] {
		if varyListsOrigin(value) {
			return
		}
	}
	resHdrs.Add(Vary, Origin)
}

// varyListsOrigin reports whether "Origin" occurs
// (ASCII-case-insensitively) among the elements of
// list-based field value.
func varyListsOrigin(value string) bool {
	for {
		elem, rest, found := strings.Cut(value, ValueSep)
		if strings.EqualFold(strings.TrimSpace(elem), Origin) {
			return true
		}
		if !found {
			return false
		}
		value = rest
	}
}
