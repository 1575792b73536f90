package headers

// TrimOWS trims up to n bytes of [optional whitespace (OWS)]
// from the start of and/or the end of s.
// If no more than n bytes of OWS are found at the start of s
// and no more than n bytes of OWS are found at the end of s,
// it returns the trimmed result and true.
// Otherwise, it returns the original string and false.
//
// [optional whitespace (OWS)]: https://httpwg.org/specs/rfc9110.html#whitespace
func TrimOWS(s string, n int) (trimmed string, ok bool) {
	if s == "" {
		return s, true
	}
	trimmed, ok = trimRightOWS(s, n)
	if !ok {
		return s, false
	}
	trimmed, ok = trimLeftOWS(trimmed, n)
	if !ok {
		return s, false
	}
	return trimmed, true
}

func trimLeftOWS(s string, n int) (string, bool) {
	var i int
	for ; i < len(s) && isOWS(s[i]); i++ {
		if i == n {
			return s, false
		}
	}
	return s[i:], true
}

func trimRightOWS(s string, n int) (string, bool) {
	end := len(s)
	for ; end > 0 && isOWS(s[end-1]); end-- {
		if len(s)-end == n {
			return s, false
		}
	}
	return s[:end], true
}

// isOWS reports whether b is an OWS byte;
// see https://httpwg.org/specs/rfc9110.html#whitespace.
func isOWS(b byte) bool {
	return b == '\t' || b == ' '
}
