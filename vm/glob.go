package vm

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

// globMatch reports whether s matches a glob pattern: * matches any run,
// ? any single character, [...] a character set or range, and a backslash
// quotes the next character.
func globMatch(pattern, s string, nocase bool) bool {
	if nocase {
		pattern, s = strings.ToLower(pattern), strings.ToLower(s)
	}
	return globAt(pattern, s)
}

func globAt(p, s string) bool {
	for len(p) > 0 {
		switch p[0] {
		case '*':
			for len(p) > 0 && p[0] == '*' {
				p = p[1:]
			}
			if p == "" {
				return true
			}
			for i := 0; i <= len(s); {
				if globAt(p, s[i:]) {
					return true
				}
				if i == len(s) {
					break
				}
				_, w := utf8.DecodeRuneInString(s[i:])
				i += w
			}
			return false
		case '?':
			if s == "" {
				return false
			}
			_, w := utf8.DecodeRuneInString(s)
			p, s = p[1:], s[w:]
		case '[':
			if s == "" {
				return false
			}
			r, w := utf8.DecodeRuneInString(s)
			rest, ok := matchClass(p[1:], r)
			if !ok {
				return false
			}
			p, s = rest, s[w:]
		default:
			if p[0] == '\\' && len(p) > 1 {
				p = p[1:]
			}
			pr, pw := utf8.DecodeRuneInString(p)
			if s == "" {
				return false
			}
			sr, sw := utf8.DecodeRuneInString(s)
			if pr != sr {
				return false
			}
			p, s = p[pw:], s[sw:]
		}
	}
	return s == ""
}

// matchClass matches r against the set that starts after '['. It returns
// the pattern after the closing ']'.
func matchClass(p string, r rune) (string, bool) {
	matched := false
	for {
		if p == "" {
			return "", false
		}
		if p[0] == ']' {
			return p[1:], matched
		}
		if p[0] == '\\' && len(p) > 1 {
			p = p[1:]
		}
		lo, w := utf8.DecodeRuneInString(p)
		p = p[w:]
		hi := lo
		if len(p) > 1 && p[0] == '-' && p[1] != ']' {
			p = p[1:]
			if p[0] == '\\' && len(p) > 1 {
				p = p[1:]
			}
			hi, w = utf8.DecodeRuneInString(p)
			p = p[w:]
			if hi < lo {
				lo, hi = hi, lo
			}
		}
		if r >= lo && r <= hi {
			matched = true
		}
	}
}

// ---------------------------------------------------------------------------
// Regular expressions
// ---------------------------------------------------------------------------

var (
	reMu    sync.Mutex
	reCache = map[string]*regexp.Regexp{}
)

// compileRegexp compiles and memoizes a pattern.
func compileRegexp(pattern string, nocase bool) (*regexp.Regexp, error) {
	if nocase {
		pattern = "(?i)" + pattern
	}
	reMu.Lock()
	defer reMu.Unlock()
	if re, ok := reCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errorf("couldn't compile regular expression pattern: %s", err.Error())
	}
	reCache[pattern] = re
	return re, nil
}

func regexpMatch(pattern, s string, nocase bool) (bool, error) {
	re, err := compileRegexp(pattern, nocase)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}
