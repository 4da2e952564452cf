package parser

// Character classes driving the scanner. A byte may belong to more than one.
const (
	typeNormal     = 0
	typeSpace      = 1 << 0 // word separator (newline excluded)
	typeCommandEnd = 1 << 1 // newline, semicolon
	typeSubs       = 1 << 2 // $ [ \ start a substitution
	typeQuote      = 1 << 3 // "
	typeCloseParen = 1 << 4 // )
	typeCloseBrack = 1 << 5 // ]
	typeBrace      = 1 << 6 // { }
)

var charTypes [256]uint8

func init() {
	for _, c := range " \t\v\f\r" {
		charTypes[c] |= typeSpace
	}
	charTypes['\n'] |= typeCommandEnd
	charTypes[';'] |= typeCommandEnd
	charTypes['$'] |= typeSubs
	charTypes['['] |= typeSubs
	charTypes['\\'] |= typeSubs
	charTypes['"'] |= typeQuote
	charTypes[')'] |= typeCloseParen
	charTypes[']'] |= typeCloseBrack
	charTypes['{'] |= typeBrace
	charTypes['}'] |= typeBrace
}

func charType(c byte) uint8 {
	return charTypes[c]
}

// isListSpace reports whether c separates list elements.
func isListSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
