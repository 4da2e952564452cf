package parser

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType identifies the kind of a token in a token tree.
type TokenType int

const (
	// TokenWord is a composite word made of text, escape, variable and
	// command-substitution components.
	TokenWord TokenType = iota + 1

	// TokenSimpleWord is a word reducible to exactly one TokenText child.
	TokenSimpleWord

	// TokenExpandWord is a word prefixed by the list-expansion marker whose
	// value is only known at run time.
	TokenExpandWord

	// TokenText is literal text with no substitutions.
	TokenText

	// TokenBackslash is one backslash escape sequence; it decodes to a
	// single value regardless of its source length.
	TokenBackslash

	// TokenCommandSubst is a bracketed command substitution, brackets
	// included. It has no components; the enclosed script is re-tokenized
	// when compiled.
	TokenCommandSubst

	// TokenVariable is a variable substitution. Its first child is the
	// TokenText name; any further children form the array index.
	TokenVariable

	// TokenSubExpr is an expression node produced in expression mode.
	TokenSubExpr

	// TokenOperator is the operator (or function name) of a TokenSubExpr.
	TokenOperator

	// TokenCommand is one command; its children are its words.
	TokenCommand

	// TokenScript is the root of a script tree; its children are commands.
	TokenScript

	// TokenError marks the place where tokenizing stopped.
	TokenError
)

var tokenTypeNames = map[TokenType]string{
	TokenWord:         "WORD",
	TokenSimpleWord:   "SIMPLE_WORD",
	TokenExpandWord:   "EXPAND_WORD",
	TokenText:         "TEXT",
	TokenBackslash:    "BS",
	TokenCommandSubst: "COMMAND",
	TokenVariable:     "VARIABLE",
	TokenSubExpr:      "SUB_EXPR",
	TokenOperator:     "OPERATOR",
	TokenCommand:      "CMD",
	TokenScript:       "SCRIPT",
	TokenError:        "ERROR",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// IsWord reports whether t is one of the word token types.
func (t TokenType) IsWord() bool {
	return t == TokenWord || t == TokenSimpleWord || t == TokenExpandWord
}

// Token is one node of a flat token tree. A token's subtree is the token
// itself followed by the next NumComponents tokens of the array.
type Token struct {
	Type          TokenType
	Start         int // byte offset into the source string
	Size          int // length in bytes
	NumComponents int // tokens in the subtree after this one
	NumChildren   int // direct children

	// Kind is set on TokenError tokens only.
	Kind ErrorKind
}

// End returns the offset just past the token's span.
func (t Token) End() int {
	return t.Start + t.Size
}

// Text returns the token's span within src.
func (t Token) Text(src string) string {
	return src[t.Start : t.Start+t.Size]
}

func (t Token) String() string {
	return fmt.Sprintf("%s[%d:%d]+%d", t.Type, t.Start, t.Start+t.Size, t.NumComponents)
}

// ---------------------------------------------------------------------------
// Token array helpers
// ---------------------------------------------------------------------------

// Subtree returns the contiguous slice holding tokens[i] and its subtree.
func Subtree(tokens []Token, i int) []Token {
	return tokens[i : i+1+tokens[i].NumComponents]
}

// Children returns the indices of the direct children of tokens[i].
func Children(tokens []Token, i int) []int {
	var out []int
	end := i + 1 + tokens[i].NumComponents
	for j := i + 1; j < end; j += tokens[j].NumComponents + 1 {
		out = append(out, j)
	}
	return out
}

// Next returns the index of the token following tokens[i]'s subtree.
func Next(tokens []Token, i int) int {
	return i + 1 + tokens[i].NumComponents
}

// countChildren fills NumChildren for tokens[i] from its component range.
func countChildren(tokens []Token, i int) {
	n := 0
	end := i + 1 + tokens[i].NumComponents
	for j := i + 1; j < end; j += tokens[j].NumComponents + 1 {
		n++
	}
	tokens[i].NumChildren = n
}

// IsSimpleWord reports whether the word at tokens[i] is pure literal text.
func IsSimpleWord(tokens []Token, i int) bool {
	return tokens[i].Type == TokenSimpleWord
}

// LiteralValue returns the compile-time value of the word at tokens[i] if it
// consists only of text and backslash escapes.
func LiteralValue(src string, tokens []Token, i int) (string, bool) {
	t := tokens[i]
	if !t.Type.IsWord() || t.Type == TokenExpandWord {
		return "", false
	}
	if t.Type == TokenSimpleWord {
		return tokens[i+1].Text(src), true
	}
	var buf []byte
	for j := i + 1; j <= i+t.NumComponents; j++ {
		c := tokens[j]
		switch c.Type {
		case TokenText:
			buf = append(buf, c.Text(src)...)
		case TokenBackslash:
			s, _, err := decodeBackslash(src, c.Start, c.End())
			if err != nil {
				return "", false
			}
			buf = append(buf, s...)
		default:
			return "", false
		}
	}
	return string(buf), true
}
