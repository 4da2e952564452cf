package parser

import (
	"unicode/utf8"
)

// decodeBackslash decodes the escape sequence starting at src[pos] (which
// must be a backslash) and returns the decoded text plus the number of
// source bytes consumed.
func decodeBackslash(src string, pos, end int) (string, int, error) {
	if pos+1 >= end {
		return "\\", 1, nil
	}
	c := src[pos+1]
	switch c {
	case 'a':
		return "\a", 2, nil
	case 'b':
		return "\b", 2, nil
	case 'f':
		return "\f", 2, nil
	case 'n':
		return "\n", 2, nil
	case 'r':
		return "\r", 2, nil
	case 't':
		return "\t", 2, nil
	case 'v':
		return "\v", 2, nil
	case '\n':
		n := 2
		for pos+n < end && (src[pos+n] == ' ' || src[pos+n] == '\t') {
			n++
		}
		return " ", n, nil
	case 'x':
		v, digits := scanHex(src, pos+2, end, 2)
		if digits == 0 {
			return "x", 2, nil
		}
		return string(rune(v)), 2 + digits, nil
	case 'u':
		v, digits := scanHex(src, pos+2, end, 4)
		if digits == 0 {
			return "u", 2, nil
		}
		return encodeRune(pos, v, 2+digits)
	case 'U':
		v, digits := scanHexLimited(src, pos+2, end, 8, utf8.MaxRune)
		if digits == 0 {
			return "U", 2, nil
		}
		return encodeRune(pos, v, 2+digits)
	}
	if c >= '0' && c <= '7' {
		v := int(c - '0')
		n := 2
		if pos+n < end && isOctal(src[pos+n]) {
			v = v*8 + int(src[pos+n]-'0')
			n++
			if c <= '3' && pos+n < end && isOctal(src[pos+n]) {
				v = v*8 + int(src[pos+n]-'0')
				n++
			}
		}
		return string(rune(v)), n, nil
	}
	r, size := utf8.DecodeRuneInString(src[pos+1 : end])
	return string(r), 1 + size, nil
}

func encodeRune(pos int, v rune, n int) (string, int, error) {
	if v >= 0xD800 && v <= 0xDFFF {
		return "", n, &ParseError{Kind: ErrBadEscape, Offset: pos,
			Msg: "escape decodes to a surrogate half"}
	}
	return string(v), n, nil
}

func scanHex(src string, pos, end, max int) (rune, int) {
	return scanHexLimited(src, pos, end, max, -1)
}

// scanHexLimited reads up to max hex digits, stopping early if the next
// digit would push the value past limit (when limit >= 0).
func scanHexLimited(src string, pos, end, max int, limit rune) (rune, int) {
	var v rune
	n := 0
	for n < max && pos+n < end {
		d, ok := hexValue(src[pos+n])
		if !ok {
			break
		}
		next := v<<4 | rune(d)
		if limit >= 0 && next > limit {
			break
		}
		v = next
		n++
	}
	return v, n
}

func hexValue(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}

// Unescape applies backslash substitution to s, as a list element or a
// quoted word without other substitutions would be interpreted.
func Unescape(s string) (string, error) {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if s[i] != '\\' {
			buf = append(buf, s[i])
			i++
			continue
		}
		dec, n, err := decodeBackslash(s, i, len(s))
		if err != nil {
			return "", err
		}
		buf = append(buf, dec...)
		i += n
	}
	return string(buf), nil
}
