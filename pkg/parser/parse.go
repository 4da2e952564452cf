package parser

import (
	"errors"
)

// DefaultMaxDepth bounds how deeply command substitutions and expressions
// may nest before tokenizing fails with ErrNestingTooDeep.
const DefaultMaxDepth = 1000

// Parser carries tokenizer settings. The zero value uses DefaultMaxDepth.
type Parser struct {
	MaxDepth int
}

// Default is the parser used by the package-level functions.
var Default = &Parser{MaxDepth: DefaultMaxDepth}

// New returns a parser with the given nesting limit.
func New(maxDepth int) *Parser {
	return &Parser{MaxDepth: maxDepth}
}

func (p *Parser) scanner(src string) *scanner {
	max := p.MaxDepth
	if max <= 0 {
		max = DefaultMaxDepth
	}
	return &scanner{src: src, maxDepth: max}
}

// Command is the result of tokenizing a single command.
type Command struct {
	Source string

	// CommentStart is -1 when no comment preceded the command.
	CommentStart int
	CommentSize  int

	CommandStart int
	// CommandSize includes the terminating character, if there was one.
	CommandSize int

	NumWords int
	// Tokens holds the command's words, each followed by its subtree.
	Tokens []Token

	// Term is the offset of the character that ended the command, or the
	// offset where an error was found.
	Term       int
	Incomplete bool

	wordsEnd  int
	hadWords  bool
	hasExpand bool
}

// Next returns the offset where the following command begins.
func (c *Command) Next() int {
	return c.CommandStart + c.CommandSize
}

// ---------------------------------------------------------------------------
// Scanner
// ---------------------------------------------------------------------------

type scanner struct {
	src      string
	maxDepth int
	depth    int
}

func (s *scanner) enter(pos int) error {
	s.depth++
	if s.depth > s.maxDepth {
		return &ParseError{Kind: ErrNestingTooDeep, Offset: pos}
	}
	return nil
}

func (s *scanner) leave() {
	s.depth--
}

// ParseCommand tokenizes the first command in src[start:end]. When nested is
// set a close bracket also terminates the command.
func (p *Parser) ParseCommand(src string, start, end int, nested bool) (*Command, error) {
	return p.scanner(src).parseCommand(start, end, nested)
}

// ParseCommand tokenizes one command using the default parser.
func ParseCommand(src string, start, end int, nested bool) (*Command, error) {
	return Default.ParseCommand(src, start, end, nested)
}

func (s *scanner) parseCommand(start, end int, nested bool) (*Command, error) {
	cmd := &Command{Source: s.src, CommentStart: -1, Term: end}
	terminators := uint8(typeCommandEnd)
	if nested {
		terminators |= typeCloseBrack
	}

	pos := s.parseComment(start, end, cmd)
	cmd.CommandStart = pos
	cmd.wordsEnd = pos
	for {
		pos = s.skipSpace(pos, end)
		if pos >= end {
			cmd.Term = end
			break
		}
		if charType(s.src[pos])&terminators != 0 {
			cmd.Term = pos
			pos++
			break
		}

		wordIndex := len(cmd.Tokens)
		next, err := s.parseWord(pos, end, terminators, &cmd.Tokens)
		if err != nil {
			cmd.Tokens = cmd.Tokens[:wordIndex]
			cmd.CommandSize = next - cmd.CommandStart
			return cmd, cmd.fail(err)
		}
		if cmd.Tokens[wordIndex].Type == TokenExpandWord {
			cmd.hasExpand = true
		}
		cmd.NumWords++
		cmd.hadWords = true
		cmd.wordsEnd = next
		pos = next
	}
	cmd.CommandSize = pos - cmd.CommandStart
	if cmd.hasExpand {
		s.expandLiterals(cmd)
	}
	return cmd, nil
}

func (c *Command) fail(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		c.Term = pe.Offset
		c.Incomplete = pe.Incomplete
		c.Tokens = append(c.Tokens, Token{Type: TokenError, Start: pe.Offset, Kind: pe.Kind})
	}
	return err
}

// parseComment skips blank space, blank lines and comments that precede a
// command, recording the comment span on cmd.
func (s *scanner) parseComment(pos, end int, cmd *Command) int {
	for pos < end {
		pos = s.skipSpace(pos, end)
		if pos < end && s.src[pos] == '\n' {
			pos++
			continue
		}
		if pos >= end || s.src[pos] != '#' {
			break
		}
		if cmd.CommentStart < 0 {
			cmd.CommentStart = pos
		}
		for pos < end {
			c := s.src[pos]
			if c == '\\' {
				pos += 2
				continue
			}
			pos++
			if c == '\n' {
				break
			}
		}
		if pos > end {
			pos = end
		}
		cmd.CommentSize = pos - cmd.CommentStart
	}
	return pos
}

// skipSpace skips word separators, treating backslash-newline as one.
func (s *scanner) skipSpace(pos, end int) int {
	for pos < end {
		c := s.src[pos]
		if charType(c)&typeSpace != 0 {
			pos++
			continue
		}
		if c == '\\' && pos+1 < end && s.src[pos+1] == '\n' {
			pos += 2
			continue
		}
		break
	}
	return pos
}

func (s *scanner) atWordBoundary(pos, end int, terminators uint8) bool {
	if pos >= end {
		return true
	}
	c := s.src[pos]
	if charType(c)&(typeSpace|terminators) != 0 {
		return true
	}
	return c == '\\' && pos+1 < end && s.src[pos+1] == '\n'
}

// expansionPrefix returns the length of a list-expansion marker at pos, or 0.
func (s *scanner) expansionPrefix(pos, end int, terminators uint8) int {
	if pos+3 >= end {
		return 0
	}
	marker := s.src[pos : pos+3]
	if marker != "{*}" && marker != `"*"` {
		return 0
	}
	if s.atWordBoundary(pos+3, end, terminators) {
		return 0
	}
	return 3
}

// ---------------------------------------------------------------------------
// Words
// ---------------------------------------------------------------------------

func (s *scanner) parseWord(pos, end int, terminators uint8, buf *[]Token) (int, error) {
	start := pos
	wordIndex := len(*buf)
	*buf = append(*buf, Token{Type: TokenWord, Start: start})

	expand := false
	if n := s.expansionPrefix(pos, end, terminators); n > 0 {
		expand = true
		pos += n
	}

	var next int
	var err error
	switch s.src[pos] {
	case '"':
		next, err = s.parseQuoted(pos, end, buf)
		if err == nil && !s.atWordBoundary(next, end, terminators) {
			err = &ParseError{Kind: ErrExtraAfterQuote, Offset: next}
		}
	case '{':
		next, err = s.parseBraces(pos, end, buf)
		if err == nil && !s.atWordBoundary(next, end, terminators) {
			err = &ParseError{Kind: ErrExtraAfterBrace, Offset: next}
		}
	default:
		next, err = s.parseTokens(pos, end, typeSpace|terminators, buf)
	}
	if err != nil {
		return next, err
	}

	tokens := *buf
	tokens[wordIndex].Size = next - start
	tokens[wordIndex].NumComponents = len(tokens) - wordIndex - 1
	countChildren(tokens, wordIndex)
	switch {
	case expand:
		tokens[wordIndex].Type = TokenExpandWord
	case tokens[wordIndex].NumComponents == 1 && tokens[wordIndex+1].Type == TokenText:
		tokens[wordIndex].Type = TokenSimpleWord
	}
	return next, nil
}

// parseTokens scans text, escapes and substitutions up to the first byte
// whose class is in mask, appending one token per piece.
func (s *scanner) parseTokens(pos, end int, mask uint8, buf *[]Token) (int, error) {
	startCount := len(*buf)
loop:
	for pos < end {
		c := s.src[pos]
		t := charType(c)
		if t&mask != 0 {
			break
		}
		switch {
		case t&typeSubs == 0:
			run := pos + 1
			for run < end && charType(s.src[run])&(mask|typeSubs) == 0 {
				run++
			}
			*buf = append(*buf, Token{Type: TokenText, Start: pos, Size: run - pos})
			pos = run

		case c == '$':
			next, err := s.parseVarName(pos, end, buf)
			if err != nil {
				return next, err
			}
			pos = next

		case c == '[':
			next, err := s.parseCommandSubst(pos, end, buf)
			if err != nil {
				return next, err
			}
			pos = next

		default: // backslash
			if pos+1 < end && s.src[pos+1] == '\n' && mask&typeSpace != 0 {
				break loop
			}
			_, n, err := decodeBackslash(s.src, pos, end)
			if err != nil {
				return pos, err
			}
			*buf = append(*buf, Token{Type: TokenBackslash, Start: pos, Size: n})
			pos += n
		}
	}
	if len(*buf) == startCount {
		*buf = append(*buf, Token{Type: TokenText, Start: pos})
	}
	return pos, nil
}

// parseCommandSubst scans a bracketed command substitution starting at the
// open bracket. The enclosed commands are validated and discarded.
func (s *scanner) parseCommandSubst(pos, end int, buf *[]Token) (int, error) {
	open := pos
	if err := s.enter(open); err != nil {
		return pos, err
	}
	defer s.leave()

	pos++
	for {
		cmd, err := s.parseCommand(pos, end, true)
		if err != nil {
			return cmd.Term, err
		}
		pos = cmd.Next()
		if cmd.Term < end && s.src[cmd.Term] == ']' {
			break
		}
		if pos >= end {
			return end, &ParseError{Kind: ErrMissingBracket, Offset: open, Incomplete: true}
		}
	}
	*buf = append(*buf, Token{Type: TokenCommandSubst, Start: open, Size: pos - open})
	return pos, nil
}

// parseBraces scans a braced word starting at the open brace. The content is
// literal except that backslash-newline becomes its own escape token.
func (s *scanner) parseBraces(pos, end int, buf *[]Token) (int, error) {
	open := pos
	startCount := len(*buf)
	level := 1
	pos++
	textStart := pos
	for pos < end {
		switch s.src[pos] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				if pos > textStart || len(*buf) == startCount {
					*buf = append(*buf, Token{Type: TokenText, Start: textStart, Size: pos - textStart})
				}
				return pos + 1, nil
			}
		case '\\':
			if pos+1 < end && s.src[pos+1] == '\n' {
				if pos > textStart {
					*buf = append(*buf, Token{Type: TokenText, Start: textStart, Size: pos - textStart})
				}
				_, n, _ := decodeBackslash(s.src, pos, end)
				*buf = append(*buf, Token{Type: TokenBackslash, Start: pos, Size: n})
				pos += n
				textStart = pos
				continue
			}
			pos += 2
			continue
		}
		pos++
	}
	return end, &ParseError{Kind: ErrMissingBrace, Offset: open, Incomplete: true}
}

// parseQuoted scans a quoted word starting at the open quote.
func (s *scanner) parseQuoted(pos, end int, buf *[]Token) (int, error) {
	open := pos
	next, err := s.parseTokens(pos+1, end, typeQuote, buf)
	if err != nil {
		return next, err
	}
	if next >= end || s.src[next] != '"' {
		return end, &ParseError{Kind: ErrMissingQuote, Offset: open, Incomplete: true}
	}
	return next + 1, nil
}

// expandLiterals replaces every expansion word whose value is a literal list
// with one simple word per element.
func (s *scanner) expandLiterals(cmd *Command) {
	var out []Token
	words := 0
	for i := 0; i < len(cmd.Tokens); i = Next(cmd.Tokens, i) {
		t := cmd.Tokens[i]
		if t.Type != TokenExpandWord || t.NumComponents != 1 || cmd.Tokens[i+1].Type != TokenText {
			out = append(out, Subtree(cmd.Tokens, i)...)
			words++
			continue
		}
		text := cmd.Tokens[i+1]
		elems, ok := literalElements(s.src, text.Start, text.End())
		if !ok {
			out = append(out, Subtree(cmd.Tokens, i)...)
			words++
			continue
		}
		for _, e := range elems {
			out = append(out,
				Token{Type: TokenSimpleWord, Start: e.Start, Size: e.Size, NumComponents: 1, NumChildren: 1},
				Token{Type: TokenText, Start: e.ContentStart, Size: e.ContentSize})
			words++
		}
	}
	cmd.Tokens = out
	cmd.NumWords = words
}

// ---------------------------------------------------------------------------
// Exported single-construct entry points
// ---------------------------------------------------------------------------

// ParseWord tokenizes the word starting at src[start] and returns the word
// token with its subtree plus the offset just past the word.
func ParseWord(src string, start, end int, nested bool) ([]Token, int, error) {
	s := Default.scanner(src)
	terminators := uint8(typeCommandEnd)
	if nested {
		terminators |= typeCloseBrack
	}
	var buf []Token
	next, err := s.parseWord(start, end, terminators, &buf)
	return buf, next, err
}

// ParseVarName tokenizes the variable substitution starting at the dollar
// sign src[start].
func ParseVarName(src string, start, end int) ([]Token, int, error) {
	var buf []Token
	next, err := Default.scanner(src).parseVarName(start, end, &buf)
	return buf, next, err
}

// ParseBraces tokenizes the braced text starting at the open brace
// src[start]. The returned tokens are the brace contents.
func ParseBraces(src string, start, end int) ([]Token, int, error) {
	var buf []Token
	next, err := Default.scanner(src).parseBraces(start, end, &buf)
	return buf, next, err
}

// ParseQuotedString tokenizes the quoted text starting at the open quote
// src[start]. The returned tokens are the pieces between the quotes.
func ParseQuotedString(src string, start, end int) ([]Token, int, error) {
	var buf []Token
	next, err := Default.scanner(src).parseQuoted(start, end, &buf)
	return buf, next, err
}
