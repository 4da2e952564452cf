package parser

import (
	"fmt"
	"strings"
)

// Element locates one list element inside a string.
type Element struct {
	Start, Size               int // whole element including braces or quotes
	ContentStart, ContentSize int // text between the delimiters
	// Literal is set when the content needs no backslash substitution.
	Literal bool
	Braced  bool
}

// ListError reports malformed list text.
type ListError struct {
	Offset int
	Msg    string
}

func (e *ListError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Msg, e.Offset)
}

// FindElement locates the first list element in s[start:end]. It returns
// the element, the offset where scanning should resume and whether an
// element was found at all.
func FindElement(s string, start, end int) (Element, int, bool, error) {
	pos := start
	for pos < end && isListSpace(s[pos]) {
		pos++
	}
	if pos >= end {
		return Element{}, end, false, nil
	}

	el := Element{Start: pos, Literal: true}
	switch s[pos] {
	case '{':
		el.Braced = true
		level := 1
		p := pos + 1
		for ; p < end; p++ {
			switch s[p] {
			case '{':
				level++
			case '}':
				level--
			case '\\':
				p++
				continue
			}
			if level == 0 {
				break
			}
		}
		if p >= end {
			return el, end, false, &ListError{Offset: pos, Msg: "unmatched open brace in list"}
		}
		if p+1 < end && !isListSpace(s[p+1]) {
			return el, end, false, &ListError{Offset: p + 1,
				Msg: fmt.Sprintf("list element in braces followed by %q instead of space", s[p+1])}
		}
		el.ContentStart, el.ContentSize = pos+1, p-pos-1
		el.Size = p + 1 - pos

	case '"':
		p := pos + 1
		for ; p < end && s[p] != '"'; p++ {
			if s[p] == '\\' {
				el.Literal = false
				p++
			}
		}
		if p >= end {
			return el, end, false, &ListError{Offset: pos, Msg: "unmatched open quote in list"}
		}
		if p+1 < end && !isListSpace(s[p+1]) {
			return el, end, false, &ListError{Offset: p + 1,
				Msg: fmt.Sprintf("list element in quotes followed by %q instead of space", s[p+1])}
		}
		el.ContentStart, el.ContentSize = pos+1, p-pos-1
		el.Size = p + 1 - pos

	default:
		p := pos
		for p < end && !isListSpace(s[p]) {
			if s[p] == '\\' {
				el.Literal = false
				p++
			}
			p++
		}
		if p > end {
			p = end
		}
		el.ContentStart, el.ContentSize = pos, p-pos
		el.Size = p - pos
	}
	return el, el.Start + el.Size, true, nil
}

// Value returns the decoded value of el within s.
func (el Element) Value(s string) (string, error) {
	content := s[el.ContentStart : el.ContentStart+el.ContentSize]
	if el.Literal {
		return content, nil
	}
	return Unescape(content)
}

// literalElements splits s[start:end] and reports ok only when every element
// is usable verbatim.
func literalElements(s string, start, end int) ([]Element, bool) {
	var out []Element
	pos := start
	for {
		el, next, found, err := FindElement(s, pos, end)
		if err != nil {
			return nil, false
		}
		if !found {
			return out, true
		}
		if !el.Literal {
			return nil, false
		}
		out = append(out, el)
		pos = next
	}
}

// SplitList splits list text into its element values.
func SplitList(s string) ([]string, error) {
	var out []string
	pos := 0
	for {
		el, next, found, err := FindElement(s, pos, len(s))
		if err != nil {
			return nil, err
		}
		if !found {
			return out, nil
		}
		v, err := el.Value(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		pos = next
	}
}

// MergeList joins values into canonical list text that SplitList turns back
// into the same values.
func MergeList(elems []string) string {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(QuoteElement(e, i == 0))
	}
	return sb.String()
}

// QuoteElement renders one value as a list element. first marks the leading
// element, where a '#' would otherwise read as a comment.
func QuoteElement(s string, first bool) string {
	if s == "" {
		return "{}"
	}
	needQuote := s[0] == '{' || s[0] == '"' || (first && s[0] == '#')
	braceOK := true
	level := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case ' ', '\t', '\n', '\v', '\f', '\r', ';', '[', ']', '$', '"':
			needQuote = true
		case '{':
			needQuote = true
			level++
		case '}':
			needQuote = true
			level--
			if level < 0 {
				braceOK = false
			}
		case '\\':
			needQuote = true
			if i+1 == len(s) || s[i+1] == '\n' {
				braceOK = false
			}
		}
	}
	if level != 0 {
		braceOK = false
	}
	if !needQuote {
		return s
	}
	if braceOK {
		return "{" + s + "}"
	}
	return escapeElement(s)
}

func escapeElement(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\v':
			sb.WriteString(`\v`)
		case '\f':
			sb.WriteString(`\f`)
		case '\r':
			sb.WriteString(`\r`)
		case ' ', ';', '[', ']', '$', '"', '{', '}', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			if i == 0 && c == '#' {
				sb.WriteByte('\\')
			}
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
