package parser

import (
	"errors"
	"fmt"
)

// Mode selects the termination rules used when tokenizing.
type Mode int

const (
	// ModeScript tokenizes a whole script up to the end of input.
	ModeScript Mode = iota
	// ModeNested tokenizes a script that also stops at an unmatched close
	// bracket, as inside a command substitution.
	ModeNested
	// ModeQuoted tokenizes text with the substitution rules of a quoted
	// word; the result is a single word.
	ModeQuoted
	// ModeExpr tokenizes an expression.
	ModeExpr
)

func (m Mode) String() string {
	switch m {
	case ModeScript:
		return "script"
	case ModeNested:
		return "nested"
	case ModeQuoted:
		return "quoted"
	case ModeExpr:
		return "expr"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Tree is a flat token tree over Source. Token spans are only meaningful
// against that exact string.
type Tree struct {
	Source string
	Tokens []Token

	// Term is where tokenizing stopped: the end of the range, the closing
	// bracket in nested mode, or the error location.
	Term int
	Err  *ParseError
}

// Incomplete reports whether tokenizing failed only for lack of input.
func (t *Tree) Incomplete() bool {
	return t.Err != nil && t.Err.Incomplete
}

// Commands returns the token indices of the script's commands.
func (t *Tree) Commands() []int {
	var out []int
	for _, i := range Children(t.Tokens, 0) {
		if t.Tokens[i].Type == TokenCommand {
			out = append(out, i)
		}
	}
	return out
}

// Words returns the token indices of the words of the command at index i.
func (t *Tree) Words(i int) []int {
	return Children(t.Tokens, i)
}

// Text returns the source span of the token at index i.
func (t *Tree) Text(i int) string {
	return t.Tokens[i].Text(t.Source)
}

// ParseScript tokenizes src[start:end] in the given mode.
func (p *Parser) ParseScript(src string, start, end int, mode Mode) (*Tree, error) {
	s := p.scanner(src)
	switch mode {
	case ModeExpr:
		return s.exprTree(start, end)
	case ModeQuoted:
		return s.quotedTree(start, end)
	}
	return s.scriptTree(start, end, mode == ModeNested)
}

// ParseScript tokenizes src[start:end] using the default parser.
func ParseScript(src string, start, end int, mode Mode) (*Tree, error) {
	return Default.ParseScript(src, start, end, mode)
}

// Tokenize tokenizes the whole of src in the given mode.
func Tokenize(src string, mode Mode) (*Tree, error) {
	return Default.ParseScript(src, 0, len(src), mode)
}

// IsComplete reports whether src is a script that needs no more input. A
// script with a genuine syntax error is complete: more text cannot fix it.
func IsComplete(src string) bool {
	_, err := Tokenize(src, ModeScript)
	return !IsIncomplete(err)
}

func (s *scanner) scriptTree(start, end int, nested bool) (*Tree, error) {
	tree := &Tree{Source: s.src, Term: end}
	tree.Tokens = append(tree.Tokens, Token{Type: TokenScript, Start: start})
	stop := end
	pos := start
	var err error
	for pos < end {
		cmd, cerr := s.parseCommand(pos, end, nested)
		if cerr != nil {
			tree.fail(cerr)
			err = cerr
			break
		}
		if cmd.hadWords {
			tree.Tokens = append(tree.Tokens, Token{
				Type:          TokenCommand,
				Start:         cmd.CommandStart,
				Size:          cmd.wordsEnd - cmd.CommandStart,
				NumComponents: len(cmd.Tokens),
				NumChildren:   cmd.NumWords,
			})
			tree.Tokens = append(tree.Tokens, cmd.Tokens...)
		}
		pos = cmd.Next()
		stop = pos
		if nested && cmd.Term < end && s.src[cmd.Term] == ']' {
			tree.Term = cmd.Term
			stop = cmd.Term
			break
		}
	}
	if err != nil {
		stop = end
	}
	tree.Tokens[0].Size = stop - start
	tree.Tokens[0].NumComponents = len(tree.Tokens) - 1
	countChildren(tree.Tokens, 0)
	return tree, err
}

func (s *scanner) quotedTree(start, end int) (*Tree, error) {
	tree := &Tree{Source: s.src, Term: end}
	tree.Tokens = append(tree.Tokens, Token{Type: TokenWord, Start: start, Size: end - start})
	_, err := s.parseTokens(start, end, 0, &tree.Tokens)
	if err != nil {
		tree.Tokens = tree.Tokens[:1]
		tree.fail(err)
	}
	tree.Tokens[0].NumComponents = len(tree.Tokens) - 1
	countChildren(tree.Tokens, 0)
	if err == nil && tree.Tokens[0].NumComponents == 1 && tree.Tokens[1].Type == TokenText {
		tree.Tokens[0].Type = TokenSimpleWord
	}
	return tree, err
}

func (s *scanner) exprTree(start, end int) (*Tree, error) {
	tree := &Tree{Source: s.src, Term: end}
	tokens, err := s.parseExpr(start, end)
	if err != nil {
		tree.Tokens = []Token{{Type: TokenSubExpr, Start: start, Size: end - start}}
		tree.fail(err)
		tree.Tokens[0].NumComponents = len(tree.Tokens) - 1
		countChildren(tree.Tokens, 0)
		return tree, err
	}
	tree.Tokens = tokens
	return tree, nil
}

func (t *Tree) fail(err error) {
	var pe *ParseError
	if !errors.As(err, &pe) {
		pe = &ParseError{Kind: ErrExprSyntax, Offset: t.Term, Msg: err.Error()}
	}
	t.Err = pe
	t.Term = pe.Offset
	t.Tokens = append(t.Tokens, Token{Type: TokenError, Start: pe.Offset, Kind: pe.Kind})
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks the structural invariants of the tree: spans lie inside
// the source and inside their parent, component counts add up and word
// shapes are consistent.
func (t *Tree) Validate() error {
	if len(t.Tokens) == 0 {
		return errors.New("empty token tree")
	}
	end, err := t.validate(0, 0, len(t.Source))
	if err != nil {
		return err
	}
	if end != len(t.Tokens) {
		return fmt.Errorf("root subtree covers %d of %d tokens", end, len(t.Tokens))
	}
	return nil
}

func (t *Tree) validate(i, lo, hi int) (int, error) {
	if i >= len(t.Tokens) {
		return i, fmt.Errorf("token %d: index out of range", i)
	}
	tok := t.Tokens[i]
	if tok.Start < lo || tok.Size < 0 || tok.End() > hi {
		return i, fmt.Errorf("token %d (%s): span [%d,%d) outside parent [%d,%d)",
			i, tok, tok.Start, tok.End(), lo, hi)
	}
	end := i + 1 + tok.NumComponents
	if end > len(t.Tokens) {
		return i, fmt.Errorf("token %d (%s): subtree runs past the array", i, tok)
	}
	children := 0
	for j := i + 1; j < end; {
		next, err := t.validate(j, tok.Start, tok.End())
		if err != nil {
			return i, err
		}
		j = next
		children++
		if j > end {
			return i, fmt.Errorf("token %d (%s): child subtree overruns parent", i, tok)
		}
	}
	if children != tok.NumChildren {
		return i, fmt.Errorf("token %d (%s): %d children, NumChildren=%d", i, tok, children, tok.NumChildren)
	}
	switch tok.Type {
	case TokenSimpleWord:
		if tok.NumComponents != 1 || t.Tokens[i+1].Type != TokenText {
			return i, fmt.Errorf("token %d: simple word must have one text child", i)
		}
	case TokenVariable:
		if tok.NumComponents < 1 || t.Tokens[i+1].Type != TokenText {
			return i, fmt.Errorf("token %d: variable must start with a name", i)
		}
	case TokenText, TokenBackslash, TokenCommandSubst, TokenError, TokenOperator:
		if tok.NumComponents != 0 {
			return i, fmt.Errorf("token %d (%s): leaf token has components", i, tok)
		}
	}
	return end, nil
}
