package cors

import (
	"maps"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/crosswise/cors/internal/headers"
	"github.com/crosswise/cors/internal/methods"
	"github.com/crosswise/cors/internal/origins"
)

// A Middleware is a CORS middleware.
// Call its [*Middleware.Wrap] method to apply it to a [http.Handler].
//
// The zero value is ready to use but is a mere "passthrough" middleware,
// i.e. a middleware that simply delegates to the handler(s) it wraps.
// To obtain a proper CORS middleware, you should call [NewMiddleware]
// and pass it a valid [Config].
//
// A Middleware is an advisory gate, not a server-side access-control
// mechanism: it either authorizes a cross-origin request by adding the
// relevant response headers or withholds those headers and lets the
// browser do the blocking. In particular, a non-preflight request whose
// origin fails the policy still reaches the wrapped handler; only
// preflight requests ever get short-circuited.
//
// A Middleware must not be copied after first use.
//
// Middleware are safe for concurrent use by multiple goroutines.
// Therefore, you are free to expose some or all of their methods
// so you can exercise them without having to restart your server;
// however, if you do expose those methods, you should only do so on some
// internal or authorized endpoints, for security reasons.
type Middleware struct {
	icfg   atomic.Pointer[internalConfig]
	logger atomic.Pointer[zap.Logger]
}

// NewMiddleware creates a CORS middleware that behaves in accordance with
// cfg. If cfg is invalid, it returns a nil [*Middleware] and some non-nil
// error. Otherwise, it returns a pointer to a CORS [Middleware] and a nil
// error.
//
// Mutating the fields of cfg after NewMiddleware has returned a
// functioning middleware does not alter the latter's behavior.
// However, you can reconfigure a [Middleware] via its
// [*Middleware.Reconfigure] method.
//
// If you need to programmatically handle the configuration errors
// constitutive of the resulting error, rely on package
// [github.com/crosswise/cors/cfgerrors].
func NewMiddleware(cfg Config) (*Middleware, error) {
	icfg, err := newInternalConfig(&cfg)
	if err != nil {
		return nil, err
	}
	var m Middleware
	m.icfg.Store(icfg)
	return &m, nil
}

// Reconfigure reconfigures m in accordance with cfg.
// If cfg is nil, it turns m into a passthrough middleware.
// If *cfg is invalid, it leaves m unchanged and returns some non-nil
// error. Otherwise, it successfully reconfigures m and returns a nil
// error.
//
// You can safely reconfigure a middleware
// even as it's concurrently processing requests;
// in-flight requests are handled by exactly one of the old or the new
// configuration, never a mix of both.
//
// Mutating the fields of cfg after Reconfigure has returned does not
// alter m's behavior.
func (m *Middleware) Reconfigure(cfg *Config) error {
	// Rather than attempt to diff the new config against the current one,
	// we simply start from scratch; for common configurations, doing so
	// indeed is performant enough.
	icfg, err := newInternalConfig(cfg)
	if err != nil {
		return err
	}
	m.icfg.Store(icfg)
	return nil
}

// SetLogger sets the logger to which m reports rejected preflight
// requests, at info level. A nil logger (the default) keeps m silent.
// Rejections are normal, expected outcomes; they are never escalated
// beyond this informational channel.
func (m *Middleware) SetLogger(logger *zap.Logger) {
	m.logger.Store(logger)
}

// Config returns a pointer to a deep copy of m's current configuration;
// if m is a passthrough middleware, it simply returns nil.
// The result may differ from the [Config] with which m was created or
// last reconfigured, but reconfiguring m with it is guaranteed to be a
// no-op (albeit a relatively expensive one).
//
// Mutating the fields of the result does not alter m's behavior.
func (m *Middleware) Config() *Config {
	return newConfig(m.icfg.Load())
}

// Wrap applies the CORS middleware to the specified handler.
func (m *Middleware) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		icfg := m.icfg.Load()
		if icfg == nil { // passthrough middleware
			h.ServeHTTP(w, r)
			return
		}
		// Fetch-compliant browsers send at most one Origin header;
		// see https://fetch.spec.whatwg.org/#http-network-or-cache-fetch
		// (step 12).
		origin, originSgl, found := headers.First(r.Header, headers.Origin)
		if !found {
			// r is NOT a CORS request;
			// see https://fetch.spec.whatwg.org/#cors-request.
			// It passes through entirely untouched.
			h.ServeHTTP(w, r)
			return
		}
		// r is a CORS request (and possibly a CORS-preflight request);
		// see https://fetch.spec.whatwg.org/#cors-request.

		// Fetch-compliant browsers send at most one ACRM header;
		// see https://fetch.spec.whatwg.org/#cors-preflight-fetch (step 3).
		acrm, acrmSgl, found := headers.First(r.Header, headers.ACRM)
		if r.Method == http.MethodOptions && found {
			// r is a CORS-preflight request;
			// see https://fetch.spec.whatwg.org/#cors-preflight-request.
			icfg.handleCORSPreflight(w, r.Header, origin, originSgl, acrm, acrmSgl, m.logger.Load())
			return
		}
		// r is an "actual" (i.e. non-preflight) CORS request.
		// Note that an OPTIONS request that carries an Origin header but no
		// Access-Control-Request-Method header falls in this bucket too:
		// it's a legitimate non-CORS use of the OPTIONS method, and the
		// wrapped handler gets to answer it.
		icfg.handleCORSActual(w.Header(), origin, originSgl)
		h.ServeHTTP(w, r)
	})
}

// handleCORSPreflight responds to a CORS-preflight request on the policy's
// behalf; the wrapped handler is never invoked for such requests,
// regardless of the outcome.
func (icfg *internalConfig) handleCORSPreflight(
	w http.ResponseWriter,
	reqHdrs http.Header,
	origin string,
	originSgl []string,
	acrm string,
	acrmSgl []string,
	logger *zap.Logger,
) {
	resHdrs := w.Header()
	// The outcome hinges on the request's origin, even when preflight
	// fails; caching intermediaries need to know as much.
	headers.AddVaryOrigin(resHdrs)

	// Upon failure of any of the following checks, all CORS headers are
	// withheld from the response and browsers fail the CORS-preflight
	// fetch; see https://fetch.spec.whatwg.org/#cors-preflight-fetch-0,
	// step 7.
	//
	// Populating a small (8 keys or fewer) local map incurs 0 heap
	// allocations on average; see https://go.dev/play/p/RQdNE-pPCQq.
	// Therefore, using a different data structure for accumulating response
	// headers provides no performance advantage; a simple http.Header will
	// do.
	buf := make(http.Header)

	if !icfg.processOriginForPreflight(buf, origin, originSgl) {
		logPreflightRejection(logger, origin, acrm, "origin not allowed")
		w.WriteHeader(preflightFailStatus)
		return
	}
	if !icfg.processACRM(buf, acrm, acrmSgl) {
		logPreflightRejection(logger, origin, acrm, "method not allowed")
		w.WriteHeader(preflightFailStatus)
		return
	}
	if !icfg.processACRH(buf, reqHdrs) {
		logPreflightRejection(logger, origin, acrm, "request headers not allowed")
		w.WriteHeader(preflightFailStatus)
		return
	}
	// Preflight was successful. Because the wrapped handler is not called,
	// we can safely rely, for performance, on some precomputed slices for
	// adding/setting headers.
	maps.Copy(resHdrs, buf)
	if icfg.acma != nil {
		resHdrs[headers.ACMA] = icfg.acma
	}
	w.WriteHeader(preflightOKStatus)
}

// originAllowed reports whether origin is authorized under the policy's
// origin rule. The exact-origin set takes precedence; the predicate (if
// any) is consulted only on a miss.
func (icfg *internalConfig) originAllowed(origin string) bool {
	if icfg.allowAnyOrigin {
		return true
	}
	if icfg.originSet != nil {
		if o, ok := origins.Parse(origin); ok && icfg.originSet.Contains(o) {
			return true
		}
	}
	return icfg.originPredicate != nil && icfg.originPredicate(origin)
}

func (icfg *internalConfig) processOriginForPreflight(
	buf http.Header,
	origin string,
	originSgl []string,
) bool {
	if !icfg.originAllowed(origin) {
		return false
	}
	if icfg.allowAnyOrigin && !icfg.credentialed {
		buf[headers.ACAO] = headers.WildcardSgl
	} else {
		buf[headers.ACAO] = originSgl
	}
	if icfg.credentialed {
		// We make no attempt to infer whether the request is credentialed,
		// simply because preflight requests don't carry credentials;
		// see https://fetch.spec.whatwg.org/#example-xhr-credentials.
		buf[headers.ACAC] = headers.TrueSgl
	}
	return true
}

func (icfg *internalConfig) processACRM(
	buf http.Header,
	acrm string,
	acrmSgl []string,
) bool {
	if icfg.allowAnyMethod {
		if !icfg.credentialed {
			buf[headers.ACAM] = headers.WildcardSgl
		} else {
			// The literal wildcard is off limits in credentialed contexts;
			// echo the requested method instead.
			buf[headers.ACAM] = acrmSgl
		}
		return true
	}
	if icfg.allowedMethods.Contains(methods.Normalize(acrm)) {
		// The full configured list (not just the requested method) gets
		// emitted, in its canonical casing: the CORS protocol permits
		// browsers to cache the whole policy for the max-age window.
		buf[headers.ACAM] = icfg.acam
		return true
	}
	return false
}

func (icfg *internalConfig) processACRH(
	buf http.Header,
	reqHdrs http.Header,
) bool {
	// Fetch-compliant browsers send at most one ACRH field line, but some
	// intermediaries may split it into multiple field lines; see
	// https://github.com/rs/cors/issues/184.
	acrh, found := reqHdrs[headers.ACRH]
	if icfg.anyReqHdrs {
		if !icfg.credentialed {
			buf[headers.ACAH] = headers.WildcardSgl
		} else if found {
			// The literal wildcard is off limits in credentialed contexts.
			// We can simply reflect all the ACRH field lines as ACAH field
			// lines, because the Fetch standard requires browsers to
			// handle multiple ACAH field lines; see
			// https://fetch.spec.whatwg.org/#cors-preflight-fetch-0.
			buf[headers.ACAH] = acrh
		}
		return true
	}
	if found && !icfg.allowedReqHdrs.AcceptsAll(acrh) {
		// All-or-nothing: a single disallowed header name voids the
		// preflight, and no partial allowance is ever granted.
		return false
	}
	if icfg.acah != nil {
		buf[headers.ACAH] = icfg.acah
	}
	return true
}

// handleCORSActual decorates the response headers of a non-preflight CORS
// request. The wrapped handler always gets to run afterwards: CORS
// authorization is advisory to browsers, and an unauthorized origin
// merely leads to the permission headers being withheld.
func (icfg *internalConfig) handleCORSActual(
	resHdrs http.Header,
	origin string,
	originSgl []string,
) {
	// See https://fetch.spec.whatwg.org/#cors-protocol-and-http-caches.
	// Note that we must merge rather than set the Vary header, because
	// outer middleware may have already added/set a Vary header, which we
	// wouldn't want to clobber.
	headers.AddVaryOrigin(resHdrs)
	if !icfg.originAllowed(origin) {
		return
	}
	// It's tempting to rely (for performance) on some precomputed slices
	// for the response headers we add/set here, as we do in
	// handleCORSPreflight. However, doing so here is fraught with peril,
	// because it would provide the wrapped handler an undesirable
	// affordance: mutation of those slices.
	// See https://github.com/rs/cors/issues/198.
	if icfg.allowAnyOrigin && !icfg.credentialed {
		resHdrs.Set(headers.ACAO, headers.ValueWildcard)
	} else {
		resHdrs[headers.ACAO] = originSgl
	}
	if icfg.credentialed {
		// We make no attempt to infer whether the request is credentialed;
		// in fact, a request's credentials mode is not necessarily
		// observable on the server. Instead, we systematically include
		// "ACAC: true" if credentialed access is enabled and the request's
		// origin is allowed.
		resHdrs.Set(headers.ACAC, headers.ValueTrue)
	}
	if icfg.aceh != "" {
		resHdrs.Set(headers.ACEH, icfg.aceh)
	}
}

func logPreflightRejection(logger *zap.Logger, origin, acrm, reason string) {
	if logger == nil {
		return
	}
	logger.Info("cors: preflight rejected",
		zap.String("origin", origin),
		zap.String("requested_method", acrm),
		zap.String("reason", reason),
	)
}
