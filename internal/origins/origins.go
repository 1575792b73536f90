package origins

import (
	"strconv"
	"strings"

	"github.com/crosswise/cors/internal/util"
)

const (
	schemeHostSep = "://"     // scheme-host separator
	hostPortSep   = ':'       // host-port separator
	labelSep      = '.'       // DNS-label separator
	pathSep       = '/'       // start of an (ignored) path component
	maxUint16     = 1<<16 - 1 // maximum value for uint16 type
)

const (
	// maxHostLen is the maximum length of a host, which is dominated by
	// the maximum length of an (absolute) domain name (253);
	// see https://devblogs.microsoft.com/oldnewthing/20120412-00/?p=7873.
	maxHostLen = 253
	// maxSchemeLen is the maximum tolerated length for schemes.
	// Its value is somewhat arbitrary but chosen so as to cover the great
	// majority of commonly used schemes.
	maxSchemeLen = 64
	// maxPortLen is the maximum length of a port's decimal representation.
	maxPortLen = len("65535")
	// maxHostPortLen is the maximum length of an origin's host-port part.
	maxHostPortLen = maxHostLen + 1 + maxPortLen // 1 for colon character
)

// Null is the serialization of the null origin,
// which sandboxed and opaque contexts send [per RFC 6454].
//
// [per RFC 6454]: https://www.rfc-editor.org/rfc/rfc6454.html#section-6
const Null = "null"

// Origin represents a (tuple) [Web origin] in normalized form:
// its scheme and host are byte-lowercase, and its port is resolved
// (see [Parse]). Two origins are equal, per RFC 6454, exactly when
// their Origin values are equal.
//
// [Web origin]: https://developer.mozilla.org/en-US/docs/Glossary/Origin
type Origin struct {
	// Scheme is the origin's scheme.
	Scheme string
	// Host is the origin's host.
	Host string
	// Port is the origin's resolved port: the explicit port if one was
	// specified, the scheme's default port otherwise.
	// The zero value marks the absence of both.
	Port int
	// Null marks the null origin, which compares equal only to itself.
	Null bool
}

var zeroOrigin Origin

// defaultPort returns the default port associated with scheme
// (0 if scheme has none). The set of known schemes deliberately
// remains small.
func defaultPort(scheme string) int {
	switch scheme {
	case "http", "ws":
		return 80
	case "https", "wss":
		return 443
	case "ftp":
		return 21
	default:
		return 0
	}
}

// Parse parses str into an [Origin] structure, normalizing as it goes:
// ASCII-uppercase bytes in the scheme and host are lowercased, an elided
// port resolves to the scheme's default port (if any), and a trailing
// path component (e.g. a stray slash) is tolerated and ignored.
// The literal string "null" (in any ASCII case) parses to the null origin.
// Parse is lenient insofar as the resulting host is not guaranteed to be
// a valid domain or IP address; it performs just enough validation for
// origin comparison to be meaningful.
func Parse(str string) (Origin, bool) {
	const maxOriginLen = maxSchemeLen + len(schemeHostSep) + maxHostPortLen
	if len(str) > maxOriginLen {
		return zeroOrigin, false
	}
	if strings.EqualFold(str, Null) {
		return Origin{Null: true}, true
	}
	scheme, str, ok := parseScheme(str)
	if !ok {
		return zeroOrigin, false
	}
	str, ok = strings.CutPrefix(str, schemeHostSep)
	if !ok {
		return zeroOrigin, false
	}
	host, str, ok := parseHost(str)
	if !ok {
		return zeroOrigin, false
	}
	var port int // assume no explicit port at first
	if len(str) > 0 && str[0] == hostPortSep {
		port, str, ok = parsePort(str[1:])
		if !ok {
			return zeroOrigin, false
		}
	}
	if len(str) > 0 && str[0] != pathSep {
		return zeroOrigin, false
	}
	if port == 0 {
		port = defaultPort(scheme)
	}
	o := Origin{
		Scheme: scheme,
		Host:   host,
		Port:   port,
	}
	return o, true
}

// String returns the ASCII serialization of o,
// eliding o's port if it is the default port for o's scheme.
func (o Origin) String() string {
	if o.Null {
		return Null
	}
	if o.Port == 0 || o.Port == defaultPort(o.Scheme) {
		return o.Scheme + schemeHostSep + o.Host
	}
	return o.Scheme + schemeHostSep + o.Host +
		string(hostPortSep) + strconv.Itoa(o.Port)
}

// parseHost parses a raw host, byte-lowercasing it along the way.
// It returns the parsed host, the unconsumed part of the input string,
// and a bool that indicates success or failure.
// parseHost is lenient insofar as the resulting host is
// not guaranteed to be valid.
func parseHost(str string) (string, string, bool) {
	const (
		minIPv6HostLen = len("[::]")
	)
	if len(str) >= minIPv6HostLen && str[0] == '[' { // looks like an IPv6 address
		end := strings.IndexByte(str, ']')
		if end == -1 { // unmatched left bracket
			return "", str, false
		}
		host := util.ByteLowercase(str[:end+1])
		return host, str[end+1:], true
	}
	// host can neither be empty nor start with a DNS-label separator
	if len(str) == 0 || str[0] == labelSep {
		return "", str, false
	}
	var previousByteWasLabelSep bool
	var i int
	for ; i < len(str); i++ {
		if str[i] == labelSep {
			if previousByteWasLabelSep {
				// "empty" label, which can only occur at the end,
				// in case of an absolute domain name (e.g. "example.com.");
				// see https://www.rfc-editor.org/rfc/rfc1034.html#section-3.1
				return "", "", false
			}
			previousByteWasLabelSep = true
			continue
		}
		if !isLabelByte(str[i]) {
			break
		}
		previousByteWasLabelSep = false
	}
	if i == 0 || i > maxHostLen {
		return "", str, false
	}
	return util.ByteLowercase(str[:i]), str[i:], true
}

// parseScheme parses a URI scheme, byte-lowercasing it along the way.
// If successful, it returns the scheme, the unconsumed part of str,
// and true; otherwise, it returns "", "", false.
func parseScheme(str string) (_ string, _ string, _ bool) {
	// See https://www.rfc-editor.org/rfc/rfc3986.html#section-3.1.
	if len(str) == 0 || !isAlpha(str[0]) {
		return
	}
	i := 1
	for end := min(maxSchemeLen, len(str)); i < end && isSubsequentSchemeByte(str[i]); i++ {
		// deliberately empty body
	}
	return util.ByteLowercase(str[:i]), str[i:], true
}

func isAlpha(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

func isSubsequentSchemeByte(b byte) bool {
	return isAlpha(b) || isDigit(b) || b == '+' || b == '-' || b == '.'
}

// isLabelByte reports whether b is an (ASCII) letter, digit,
// hyphen (0x2D), or underscore (0x5F).
func isLabelByte(b byte) bool {
	return isAlpha(b) || isDigit(b) || b == '-' || b == '_'
}

// parsePort parses a port number. It returns the port number, the unconsumed
// part of the input string, and a bool that indicates success or failure.
func parsePort(str string) (int, string, bool) {
	const base = 10
	if len(str) == 0 || !isNonZeroDigit(str[0]) {
		return 0, str, false
	}
	port := intFromDigit(str[0])
	i := 1
	end := min(len(str), maxPortLen)
	for ; i < end; i++ {
		if !isDigit(str[i]) {
			break
		}
		port = base*port + intFromDigit(str[i])
	}
	if port > maxUint16 {
		return 0, str, false
	}
	return port, str[i:], true
}

// intFromDigit returns the numerical value of ASCII digit b.
// For instance, if b is '9', the result is 9.
func intFromDigit(b byte) int {
	return int(b) - '0'
}

func isDigit(b byte) bool {
	return '0' <= b && b <= '9'
}

func isNonZeroDigit(b byte) bool {
	return '1' <= b && b <= '9'
}
