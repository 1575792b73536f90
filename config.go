package cors

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/crosswise/cors/cfgerrors"
	"github.com/crosswise/cors/internal/headers"
	"github.com/crosswise/cors/internal/methods"
	"github.com/crosswise/cors/internal/origins"
	"github.com/crosswise/cors/internal/util"
)

// A Config configures a Middleware. The mechanics of and interplay between
// this type's various fields are explained below. Attempts to use settings
// described as "prohibited" result in a failure to build the desired
// middleware.
//
// # Origins
//
// Origins configures a CORS middleware to allow access from any of the
// specified [Web origins]:
//
//	Origins: []string{
//	  "https://example.com",
//	  "http://localhost:9090",
//	},
//
// Origins are compared per [RFC 6454]: scheme and host
// case-insensitively, port numerically. Neither the case of a configured
// origin nor a stray trailing slash breaks a match, and an explicit
// default port (e.g. 443 for https) equals an elided one.
//
// The literal entry "null" allows the [null origin], which sandboxed
// documents and some non-browser contexts send. Because serving
// cross-origin content to the null origin is [fundamentally unsafe],
// it is never allowed implicitly: a policy must list "null" to
// authorize it, and the exact-origin rule alone never does.
//
// A single asterisk denotes all origins:
//
//	Origins: []string{"*"},
//
// and results in a literal "*" in the Access-Control-Allow-Origin header
// of responses. Because [the CORS protocol forbids] that literal wildcard
// in credentialed contexts, combining it with the Credentialed field is
// prohibited; to allow all origins together with credentialed access,
// reflect the request's origin via the OriginPredicate field instead
// (e.g. with [AllowAnyOrigin]).
//
// # OriginPredicate
//
// OriginPredicate configures a custom origin rule: it is consulted with
// the request's raw Origin header value, but only when the request's
// origin matches none of the entries of the Origins field. When the
// predicate authorizes an origin, that origin is echoed in the
// Access-Control-Allow-Origin header; no wildcard is ever emitted on the
// predicate's behalf.
//
// The predicate must be safe for concurrent use and should be a pure
// function of its argument.
//
// # Credentialed
//
// Credentialed, when set, configures a CORS middleware to allow
// [credentialed access] (e.g. with [cookies]) in addition to anonymous
// access. Successful responses then carry an
// Access-Control-Allow-Credentials: true header, and the request's origin
// is always echoed rather than replaced by a wildcard.
//
// # Methods
//
// Methods configures a CORS middleware to allow any of the specified
// HTTP methods during preflight:
//
//	Methods: []string{
//	  http.MethodGet,
//	  http.MethodPut,
//	  "PURGE",
//	}
//
// Method names are normalized to upper case and compared
// case-insensitively; successful preflight responses list the full
// configured set (in configured order) in Access-Control-Allow-Methods,
// which lets browsers cache the whole policy for the max-age window.
// A preflight whose requested method is not in the set fails.
//
// A single asterisk denotes all methods:
//
//	Methods: []string{"*"},
//
// The CORS protocol forbids the use of some method names (CONNECT,
// TRACE, TRACK); specifying one of those is prohibited.
//
// # RequestHeaders
//
// RequestHeaders configures a CORS middleware to allow any of the
// specified request headers during preflight. Header names are
// case-insensitive:
//
//	RequestHeaders: []string{"Content-Type", "X-Requested-With"},
//
// A preflight is all-or-nothing: a single requested header name outside
// the set voids the preflight entirely; no partial allowance is ever
// granted. Successful preflight responses list the full configured set
// (in configured order and casing) in Access-Control-Allow-Headers.
//
// A single asterisk lifts the restriction entirely:
//
//	RequestHeaders: []string{"*"},
//
// When credentialed access is enabled, the wildcard is never emitted
// literally; the requested header names are echoed instead.
//
// # MaxAgeInSeconds
//
// MaxAgeInSeconds configures a CORS middleware to instruct browsers,
// via the Access-Control-Max-Age header, to cache preflight responses
// for a duration no longer than the specified number of seconds.
//
// The zero value leaves the header unset, in which case browsers apply
// a [default max-age value] of five seconds. To instruct browsers to
// eschew caching of preflight responses altogether, specify a value of
// -1. No other negative value is permitted, and because modern browsers
// cap the max-age value, specifying a value larger than 86400 is
// prohibited.
//
// # ResponseHeaders
//
// ResponseHeaders configures a CORS middleware to expose the specified
// response headers to clients, beyond the CORS safelist, via the
// Access-Control-Expose-Headers header. Order and casing are preserved:
//
//	ResponseHeaders: []string{"X-Response-Time"},
//
// [AllowAnyOrigin]: https://pkg.go.dev/github.com/crosswise/cors#AllowAnyOrigin
// [RFC 6454]: https://www.rfc-editor.org/rfc/rfc6454.html
// [Web origins]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
// [cookies]: https://developer.mozilla.org/en-US/docs/Web/HTTP/Cookies
// [credentialed access]: https://fetch.spec.whatwg.org/#concept-request-credentials-mode
// [default max-age value]: https://fetch.spec.whatwg.org/#http-access-control-max-age
// [fundamentally unsafe]: https://portswigger.net/research/exploiting-cors-misconfigurations-for-bitcoins-and-bounties
// [null origin]: https://fetch.spec.whatwg.org/#append-a-request-origin-header
// [the CORS protocol forbids]: https://fetch.spec.whatwg.org/#cors-protocol-and-credentials
type Config struct {
	// Precludes comparability, unkeyed struct literals, and conversion to
	// and from third-party types.
	_ [0]func()

	Origins         []string
	OriginPredicate func(origin string) bool
	Credentialed    bool
	Methods         []string
	RequestHeaders  []string
	MaxAgeInSeconds int
	ResponseHeaders []string
}

// AllowAnyOrigin is an origin predicate that authorizes every origin.
// Contrary to the wildcard entry in [Config.Origins], it causes the
// request's origin to be echoed in the Access-Control-Allow-Origin
// header, which makes it suitable for policies that also enable
// credentialed access.
func AllowAnyOrigin(string) bool { return true }

// PermissiveConfig returns the zero-configuration policy: all origins
// allowed (with a literal wildcard), all standard methods allowed, no
// request-header restriction, no credentials, no exposed headers, and no
// explicit max-age.
func PermissiveConfig() *Config {
	return &Config{
		Origins: []string{headers.ValueWildcard},
		Methods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		RequestHeaders: []string{headers.ValueWildcard},
	}
}

type internalConfig struct {
	originSet       origins.Set // non-empty => !allowAnyOrigin
	originPredicate func(string) bool
	credentialed    bool
	allowAnyOrigin  bool // allowAnyOrigin => !credentialed
	allowAnyMethod  bool
	allowedMethods  util.Set         // elements normalized to upper case
	anyReqHdrs      bool             // request-header restriction lifted
	allowedReqHdrs  headers.TokenSet // matched ASCII-case-insensitively
	acam            []string         // full configured method list, joined
	acah            []string         // full configured header list, joined
	aceh            string
	acma            []string

	// normalized copies of the configured lists, for (*Middleware).Config
	originsCfg []string
	methodsCfg []string
	reqHdrsCfg []string
}

func newInternalConfig(cfg *Config) (*internalConfig, error) {
	if cfg == nil {
		return nil, nil
	}
	icfg := internalConfig{
		credentialed:    cfg.Credentialed,
		originPredicate: cfg.OriginPredicate,
	}

	// Accumulate errors in a slice so as to call errors.Join at most once.
	errs := icfg.validateOrigins(cfg.Origins)
	errs = icfg.validateMethods(errs, cfg.Methods)
	errs = icfg.validateRequestHeaders(errs, cfg.RequestHeaders)
	errs = icfg.validateMaxAge(errs, cfg.MaxAgeInSeconds)
	errs = icfg.validateResponseHeaders(errs, cfg.ResponseHeaders)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &icfg, nil
}

func (icfg *internalConfig) validateOrigins(rawOrigins []string) []error {
	if len(rawOrigins) == 0 && icfg.originPredicate == nil {
		err := &cfgerrors.UnacceptableOriginError{
			Reason: "missing",
		}
		return []error{err}
	}
	var errs []error
	set := origins.NewSet()
	for _, raw := range rawOrigins {
		if raw == headers.ValueWildcard {
			if icfg.credentialed {
				errs = append(errs, new(cfgerrors.IncompatibleWildcardOriginError))
				continue
			}
			icfg.allowAnyOrigin = true
			continue
		}
		o, ok := origins.Parse(raw)
		if !ok {
			err := &cfgerrors.UnacceptableOriginError{
				Value:  raw,
				Reason: "invalid",
			}
			errs = append(errs, err)
			continue
		}
		if set.Contains(o) {
			continue
		}
		set.Add(o)
		icfg.originsCfg = append(icfg.originsCfg, o.String())
	}
	if icfg.allowAnyOrigin {
		// The wildcard rule subsumes any exact entries;
		// no wildcard-plus-exact merge takes place.
		icfg.originsCfg = []string{headers.ValueWildcard}
		return errs
	}
	if set.Size() > 0 {
		icfg.originSet = set
	}
	return errs
}

func (icfg *internalConfig) validateMethods(errs []error, names []string) []error {
	allowed := util.NewSet()
	for _, name := range names {
		if name == headers.ValueWildcard {
			icfg.allowAnyMethod = true
			continue
		}
		if !methods.IsValid(name) {
			err := &cfgerrors.UnacceptableMethodError{
				Value:  name,
				Reason: "invalid",
			}
			errs = append(errs, err)
			continue
		}
		// Allowed methods are stored in upper case and requested methods
		// are compared likewise; the emitted header carries this
		// canonical casing.
		normalized := methods.Normalize(name)
		if methods.IsForbidden(normalized) {
			err := &cfgerrors.UnacceptableMethodError{
				Value:  name,
				Reason: "forbidden",
			}
			errs = append(errs, err)
			continue
		}
		if allowed.Contains(normalized) {
			continue
		}
		allowed.Add(normalized)
		icfg.methodsCfg = append(icfg.methodsCfg, normalized)
	}
	if icfg.allowAnyMethod {
		icfg.methodsCfg = []string{headers.ValueWildcard}
		return errs
	}
	if allowed.Size() > 0 {
		icfg.allowedMethods = allowed
		// The elements of a header-field value may be separated simply by
		// commas; since whitespace is optional, let's not use any.
		icfg.acam = []string{strings.Join(icfg.methodsCfg, headers.ValueSep)}
	}
	return errs
}

func (icfg *internalConfig) validateRequestHeaders(errs []error, names []string) []error {
	if len(names) == 0 {
		return errs
	}
	var (
		allowed  []string // configured casing and order
		seen     = util.NewSet()
		nbErrors = len(errs)
	)
	for _, name := range names {
		if name == headers.ValueWildcard {
			icfg.anyReqHdrs = true
			continue
		}
		if !headers.IsValid(name) {
			err := &cfgerrors.UnacceptableHeaderNameError{
				Value: name,
				Type:  "request",
			}
			errs = append(errs, err)
			continue
		}
		normalized := util.ByteLowercase(name)
		if seen.Contains(normalized) {
			continue
		}
		seen.Add(normalized)
		allowed = append(allowed, name)
	}
	if len(errs) > nbErrors {
		return errs
	}
	switch {
	case icfg.anyReqHdrs:
		icfg.reqHdrsCfg = []string{headers.ValueWildcard}
		if !icfg.credentialed {
			icfg.acah = headers.WildcardSgl
		}
		// In the credentialed case, no ACAH value can be precomputed:
		// the literal wildcard is off limits, so the requested header
		// names get echoed at request time instead.
	case len(allowed) > 0:
		icfg.allowedReqHdrs = headers.NewTokenSet(allowed...)
		icfg.reqHdrsCfg = allowed
		icfg.acah = []string{strings.Join(allowed, headers.ValueSep)}
	}
	return errs
}

func (icfg *internalConfig) validateMaxAge(errs []error, delta int) []error {
	const (
		// see https://fetch.spec.whatwg.org/#cors-preflight-fetch-0, step 7.9
		defaultMaxAge = 5
		// Current upper bounds:
		//  - Firefox: 86400 (24h)
		//  - Chromium: 7200 (2h)
		//  - WebKit/Safari: 600 (10m)
		upperBound = 86400
		// sentinel value for disabling preflight caching
		disableCaching = -1
	)
	switch {
	case delta < disableCaching || upperBound < delta:
		err := &cfgerrors.MaxAgeOutOfBoundsError{
			Value:   delta,
			Default: defaultMaxAge,
			Max:     upperBound,
			Disable: disableCaching,
		}
		return append(errs, err)
	case delta == disableCaching:
		icfg.acma = []string{"0"}
		return errs
	case delta == 0:
		return errs
	default:
		icfg.acma = []string{strconv.Itoa(delta)}
		return errs
	}
}

func (icfg *internalConfig) validateResponseHeaders(errs []error, names []string) []error {
	if len(names) == 0 {
		return errs
	}
	var (
		exposed  []string // configured casing and order
		seen     = util.NewSet()
		nbErrors = len(errs)
	)
	for _, name := range names {
		if !headers.IsValid(name) {
			err := &cfgerrors.UnacceptableHeaderNameError{
				Value: name,
				Type:  "response",
			}
			errs = append(errs, err)
			continue
		}
		normalized := util.ByteLowercase(name)
		if seen.Contains(normalized) {
			continue
		}
		seen.Add(normalized)
		exposed = append(exposed, name)
	}
	if len(errs) > nbErrors {
		return errs
	}
	// The elements of a header-field value may be separated simply by
	// commas; since whitespace is optional, let's not use any.
	icfg.aceh = strings.Join(exposed, headers.ValueSep)
	return errs
}

const (
	// According to the Fetch standard, any 2xx status code is acceptable
	// to mark a preflight response as successful; however, some rare
	// non-compliant user agents fail preflight when the preflight response
	// has a status code other than 200.
	preflightOKStatus   = http.StatusOK
	preflightFailStatus = http.StatusForbidden
)

// newConfig returns a Config on the basis of icfg.
// The soundness of the result is guaranteed only if icfg is the result of
// a previous call to newInternalConfig.
func newConfig(icfg *internalConfig) *Config {
	if icfg == nil {
		return nil
	}

	cfg := Config{
		Credentialed:    icfg.credentialed,
		OriginPredicate: icfg.originPredicate,
	}

	// Note: do not hold (in cfg) any references to mutable fields of icfg;
	// use defensive copying if required.
	cfg.Origins = slices.Clone(icfg.originsCfg)
	cfg.Methods = slices.Clone(icfg.methodsCfg)
	cfg.RequestHeaders = slices.Clone(icfg.reqHdrsCfg)
	if icfg.aceh != "" {
		cfg.ResponseHeaders = strings.Split(icfg.aceh, headers.ValueSep)
	}
	if icfg.acma != nil {
		maxAge, _ := strconv.Atoi(icfg.acma[0]) // safe, by construction
		if maxAge != 0 {
			cfg.MaxAgeInSeconds = maxAge
		} else {
			cfg.MaxAgeInSeconds = -1
		}
	}
	return &cfg
}
