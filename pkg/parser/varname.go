package parser

import (
	"unicode"
	"unicode/utf8"
)

// parseVarName scans a variable substitution starting at the dollar sign.
// A dollar sign not followed by a name becomes a one-byte text token.
func (s *scanner) parseVarName(pos, end int, buf *[]Token) (int, error) {
	start := pos
	varIndex := len(*buf)
	*buf = append(*buf, Token{Type: TokenVariable, Start: start})
	pos++

	if pos < end && s.src[pos] == '{' {
		open := pos
		pos++
		nameStart := pos
		for pos < end && s.src[pos] != '}' {
			pos++
		}
		if pos >= end {
			*buf = (*buf)[:varIndex]
			return end, &ParseError{Kind: ErrMissingVarBrace, Offset: open, Incomplete: true}
		}
		*buf = append(*buf, Token{Type: TokenText, Start: nameStart, Size: pos - nameStart})
		pos++
	} else {
		nameStart := pos
		pos = scanVarName(s.src, pos, end)
		if pos == nameStart {
			(*buf)[varIndex] = Token{Type: TokenText, Start: start, Size: 1}
			return start + 1, nil
		}
		*buf = append(*buf, Token{Type: TokenText, Start: nameStart, Size: pos - nameStart})

		if pos < end && s.src[pos] == '(' {
			open := pos
			next, err := s.parseTokens(pos+1, end, typeCloseParen, buf)
			if err != nil {
				return next, err
			}
			if next >= end || s.src[next] != ')' {
				return end, &ParseError{Kind: ErrMissingParen, Offset: open, Incomplete: true}
			}
			pos = next + 1
		}
	}

	tokens := *buf
	tokens[varIndex].Size = pos - start
	tokens[varIndex].NumComponents = len(tokens) - varIndex - 1
	countChildren(tokens, varIndex)
	return pos, nil
}

// scanVarName returns the end of the bare variable name starting at pos.
// Names are letters, digits, underscores and runs of two or more colons.
func scanVarName(src string, pos, end int) int {
	for pos < end {
		c := src[pos]
		if c < utf8.RuneSelf {
			if isWordByte(c) {
				pos++
				continue
			}
			if c == ':' && pos+1 < end && src[pos+1] == ':' {
				pos += 2
				for pos < end && src[pos] == ':' {
					pos++
				}
				continue
			}
			break
		}
		r, size := utf8.DecodeRuneInString(src[pos:end])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		pos += size
	}
	return pos
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// SplitVarName splits a literal variable reference of the form name(index)
// into its name and index. ok is false when name has no index part.
func SplitVarName(name string) (base, index string, ok bool) {
	if len(name) < 3 || name[len(name)-1] != ')' {
		return name, "", false
	}
	for i := 0; i < len(name)-1; i++ {
		if name[i] == '(' {
			if i == 0 {
				return name, "", false
			}
			return name[:i], name[i+1 : len(name)-1], true
		}
	}
	return name, "", false
}

// IsQualified reports whether a variable name contains a namespace
// separator.
func IsQualified(name string) bool {
	for i := 0; i+1 < len(name); i++ {
		if name[i] == ':' && name[i+1] == ':' {
			return true
		}
	}
	return false
}
