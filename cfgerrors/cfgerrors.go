/*
Package cfgerrors provides functionalities for programmatically handling
configuration errors produced by package [github.com/crosswise/cors].

Most users of package [github.com/crosswise/cors] have no use for this
package. However, services that let their operators or tenants configure
CORS (e.g. via some Web portal or some command-line interface) may find it
useful: it allows them to surface CORS-configuration mistakes via custom,
human-friendly error messages.
*/
package cfgerrors

import (
	"fmt"
	"iter"
)

// An UnacceptableOriginError indicates an unacceptable origin.
// The Reason field may take one of two values:
//   - "missing": no origin rule (exact origin or predicate) was specified;
//   - "invalid": the origin is not a valid ASCII serialization of a
//     Web origin.
//
// For more details, see [github.com/crosswise/cors.Config.Origins].
type UnacceptableOriginError struct {
	Value  string // the unacceptable value that was specified
	Reason string // missing | invalid
}

func (err *UnacceptableOriginError) Error() string {
	if err.Reason == "missing" {
		return "cors: at least one origin rule is required"
	}
	const tmpl = "cors: %s origin %q"
	return fmt.Sprintf(tmpl, err.Reason, err.Value)
}

// An IncompatibleWildcardOriginError indicates an attempt to both allow
// all origins with a literal wildcard and enable credentialed access.
// The CORS protocol forbids the literal "*" in
// Access-Control-Allow-Origin when credentials are involved; policies
// that need both must reflect the request's origin instead
// (see [github.com/crosswise/cors.AllowAnyOrigin]).
type IncompatibleWildcardOriginError struct{}

func (*IncompatibleWildcardOriginError) Error() string {
	return "cors: for security reasons, you cannot both allow all origins " +
		"with a literal wildcard and enable credentialed access; " +
		"reflect the request's origin instead"
}

// An UnacceptableMethodError indicates an unacceptable method.
// The Reason field may take one of two values:
//   - "invalid": the method is invalid;
//   - "forbidden": the method is forbidden by [the Fetch standard].
//
// For more details, see [github.com/crosswise/cors.Config.Methods].
//
// [the Fetch standard]: https://fetch.spec.whatwg.org
type UnacceptableMethodError struct {
	Value  string // the unacceptable value that was specified
	Reason string // invalid | forbidden
}

func (err *UnacceptableMethodError) Error() string {
	const tmpl = "cors: %s method %q"
	return fmt.Sprintf(tmpl, err.Reason, err.Value)
}

// An UnacceptableHeaderNameError indicates an unacceptable header name.
// The Type field may take one of two values:
//   - "request";
//   - "response".
//
// For more details, see [github.com/crosswise/cors.Config.RequestHeaders]
// and [github.com/crosswise/cors.Config.ResponseHeaders].
type UnacceptableHeaderNameError struct {
	Value string // the unacceptable value that was specified
	Type  string // request | response
}

func (err *UnacceptableHeaderNameError) Error() string {
	const tmpl = "cors: invalid %s-header name %q"
	return fmt.Sprintf(tmpl, err.Type, err.Value)
}

// A MaxAgeOutOfBoundsError indicates a max-age value that's either too low
// or too high.
//
// For more details, see
// [github.com/crosswise/cors.Config.MaxAgeInSeconds].
type MaxAgeOutOfBoundsError struct {
	Value   int // the unacceptable value that was specified
	Default int // max-age value used by browsers if MaxAgeInSeconds is 0
	Max     int // maximum max-age value permitted by this library
	Disable int // sentinel value for disabling preflight caching
}

func (err *MaxAgeOutOfBoundsError) Error() string {
	const tmpl = "cors: out-of-bounds max-age value %d (default: %d; max: %d; disable caching: %d)"
	return fmt.Sprintf(tmpl, err.Value, err.Default, err.Max, err.Disable)
}

// All returns an iterator over the CORS-configuration errors contained in
// err's error tree. The order is unspecified and may change from one
// release to the next. All only supports error values returned by
// [github.com/crosswise/cors.NewMiddleware] and
// [github.com/crosswise/cors.Middleware.Reconfigure]; it should not be
// called on any other error value.
func All(err error) iter.Seq[error] {
	return func(yield func(error) bool) {
		every(err, yield)
	}
}

func every(err error, f func(error) bool) bool {
	switch err := err.(type) {
	// Note that there's no need for any "interface { Unwrap() error }" case
	// because nowhere do we "wrap" errors; we only ever "join" them.
	case interface{ Unwrap() []error }:
		for _, err := range err.Unwrap() {
			if !every(err, f) {
				return false
			}
		}
		return true
	default:
		return f(err)
	}
}
