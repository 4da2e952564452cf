package parser

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Expression lexemes
// ---------------------------------------------------------------------------

type lexKind int

const (
	lexEnd lexKind = iota
	lexOperand
	lexOperator
	lexFunc
	lexOpenParen
	lexCloseParen
	lexComma
	lexBareword
)

type lexeme struct {
	kind       lexKind
	start, end int
	text       string
	pieces     []Token // operand tokens
}

// binaryPrec gives the binding power of each binary operator. Higher binds
// tighter; the ternary sits below all of them.
var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6, "eq": 6, "ne": 6, "in": 6, "ni": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
	"**": 11,
}

var wordOperators = map[string]bool{"eq": true, "ne": true, "in": true, "ni": true}

var booleanWords = map[string]bool{
	"true": true, "false": true, "yes": true, "no": true, "on": true, "off": true,
}

var numberWords = map[string]bool{"inf": true, "infinity": true, "nan": true}

// IsBooleanWord reports whether s spells a boolean literal.
func IsBooleanWord(s string) bool {
	return booleanWords[strings.ToLower(s)]
}

// IsExprOperator reports whether s is a binary or unary operator symbol.
func IsExprOperator(s string) bool {
	if _, ok := binaryPrec[s]; ok {
		return true
	}
	switch s {
	case "!", "~", "?":
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Expression tree under construction
// ---------------------------------------------------------------------------

type exprNode struct {
	start, end     int
	op             string // empty for a primary
	opStart, opEnd int
	operands       []*exprNode
	pieces         []Token
}

type exprParser struct {
	s   *scanner
	end int
	pos int
	cur lexeme
}

// ParseExpr tokenizes src[start:end] as an expression. The root of the
// returned tree is a TokenSubExpr.
func (p *Parser) ParseExpr(src string, start, end int) (*Tree, error) {
	return p.scanner(src).exprTree(start, end)
}

// ParseExpr tokenizes an expression using the default parser.
func ParseExpr(src string, start, end int) (*Tree, error) {
	return Default.ParseExpr(src, start, end)
}

func (s *scanner) parseExpr(start, end int) ([]Token, error) {
	if err := s.enter(start); err != nil {
		return nil, err
	}
	defer s.leave()

	e := &exprParser{s: s, end: end, pos: start}
	if err := e.advance(); err != nil {
		return nil, err
	}
	if e.cur.kind == lexEnd {
		return nil, e.syntax(start, "empty expression")
	}
	root, err := e.parseTernary()
	if err != nil {
		return nil, err
	}
	switch e.cur.kind {
	case lexEnd:
	case lexCloseParen:
		return nil, e.syntax(e.cur.start, "unbalanced close paren")
	default:
		return nil, e.syntax(e.cur.start, "missing operator")
	}
	var out []Token
	flatten(root, &out)
	return out, nil
}

func (e *exprParser) syntax(offset int, format string, args ...any) error {
	return &ParseError{Kind: ErrExprSyntax, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func flatten(n *exprNode, out *[]Token) {
	idx := len(*out)
	*out = append(*out, Token{Type: TokenSubExpr, Start: n.start, Size: n.end - n.start})
	if n.op == "" {
		*out = append(*out, n.pieces...)
	} else {
		*out = append(*out, Token{Type: TokenOperator, Start: n.opStart, Size: n.opEnd - n.opStart})
		for _, o := range n.operands {
			flatten(o, out)
		}
	}
	(*out)[idx].NumComponents = len(*out) - idx - 1
	countChildren(*out, idx)
}

// ---------------------------------------------------------------------------
// Grammar
// ---------------------------------------------------------------------------

func (e *exprParser) parseTernary() (*exprNode, error) {
	if err := e.s.enter(e.cur.start); err != nil {
		return nil, err
	}
	defer e.s.leave()

	cond, err := e.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if e.cur.kind != lexOperator || e.cur.text != "?" {
		return cond, nil
	}
	q := e.cur
	if err := e.advance(); err != nil {
		return nil, err
	}
	then, err := e.parseTernary()
	if err != nil {
		return nil, err
	}
	if e.cur.kind != lexOperator || e.cur.text != ":" {
		return nil, e.syntax(e.cur.start, "missing \":\" in ternary conditional")
	}
	if err := e.advance(); err != nil {
		return nil, err
	}
	els, err := e.parseTernary()
	if err != nil {
		return nil, err
	}
	return &exprNode{
		start: cond.start, end: els.end,
		op: "?", opStart: q.start, opEnd: q.end,
		operands: []*exprNode{cond, then, els},
	}, nil
}

func (e *exprParser) parseBinary(minPrec int) (*exprNode, error) {
	left, err := e.parseUnary()
	if err != nil {
		return nil, err
	}
	for e.cur.kind == lexOperator {
		prec, ok := binaryPrec[e.cur.text]
		if !ok || prec < minPrec {
			break
		}
		op := e.cur
		if err := e.advance(); err != nil {
			return nil, err
		}
		next := prec + 1
		if op.text == "**" {
			next = prec
		}
		right, err := e.parseBinary(next)
		if err != nil {
			return nil, err
		}
		left = &exprNode{
			start: left.start, end: right.end,
			op: op.text, opStart: op.start, opEnd: op.end,
			operands: []*exprNode{left, right},
		}
	}
	return left, nil
}

func (e *exprParser) parseUnary() (*exprNode, error) {
	if e.cur.kind == lexOperator {
		switch e.cur.text {
		case "-", "+", "!", "~":
			op := e.cur
			if err := e.s.enter(op.start); err != nil {
				return nil, err
			}
			defer e.s.leave()
			if err := e.advance(); err != nil {
				return nil, err
			}
			operand, err := e.parseUnary()
			if err != nil {
				return nil, err
			}
			return &exprNode{
				start: op.start, end: operand.end,
				op: op.text, opStart: op.start, opEnd: op.end,
				operands: []*exprNode{operand},
			}, nil
		}
	}
	return e.parsePrimary()
}

func (e *exprParser) parsePrimary() (*exprNode, error) {
	tok := e.cur
	switch tok.kind {
	case lexOperand:
		if err := e.advance(); err != nil {
			return nil, err
		}
		return &exprNode{start: tok.start, end: tok.end, pieces: tok.pieces}, nil

	case lexOpenParen:
		if err := e.advance(); err != nil {
			return nil, err
		}
		inner, err := e.parseTernary()
		if err != nil {
			return nil, err
		}
		if e.cur.kind != lexCloseParen {
			return nil, e.syntax(tok.start, "unbalanced open paren")
		}
		inner.start, inner.end = tok.start, e.cur.end
		if err := e.advance(); err != nil {
			return nil, err
		}
		return inner, nil

	case lexFunc:
		return e.parseCall()

	case lexBareword:
		return nil, e.syntax(tok.start, "invalid bareword %q", tok.text)

	case lexEnd:
		return nil, e.syntax(tok.start, "missing operand")
	}
	return nil, e.syntax(tok.start, "missing operand before %q", tok.text)
}

// parseCall parses name(arg, ...). The current lexeme is the name.
func (e *exprParser) parseCall() (*exprNode, error) {
	name := e.cur
	if err := e.advance(); err != nil {
		return nil, err
	}
	if e.cur.kind != lexOpenParen {
		return nil, e.syntax(name.start, "expected \"(\" after function name %q", name.text)
	}
	open := e.cur
	if err := e.advance(); err != nil {
		return nil, err
	}
	n := &exprNode{start: name.start, op: name.text, opStart: name.start, opEnd: name.end}
	if e.cur.kind != lexCloseParen {
		for {
			arg, err := e.parseTernary()
			if err != nil {
				return nil, err
			}
			n.operands = append(n.operands, arg)
			if e.cur.kind == lexComma {
				if err := e.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if e.cur.kind != lexCloseParen {
		return nil, e.syntax(open.start, "missing close paren in call to %q", name.text)
	}
	n.end = e.cur.end
	if err := e.advance(); err != nil {
		return nil, err
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

var symbolOperators = []string{
	"**", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+", "-", "*", "/", "%", "<", ">", "&", "|", "^", "!", "~", "?", ":",
}

func (e *exprParser) skipSpace() {
	src := e.s.src
	for e.pos < e.end {
		c := src[e.pos]
		switch {
		case isListSpace(c):
			e.pos++
		case c == '\\' && e.pos+1 < e.end && src[e.pos+1] == '\n':
			e.pos += 2
		case c == '#':
			for e.pos < e.end && src[e.pos] != '\n' {
				e.pos++
			}
		default:
			return
		}
	}
}

func (e *exprParser) advance() error {
	e.skipSpace()
	src := e.s.src
	start := e.pos
	if start >= e.end {
		e.cur = lexeme{kind: lexEnd, start: e.end, end: e.end}
		return nil
	}
	c := src[start]
	switch c {
	case '(':
		e.pos++
		e.cur = lexeme{kind: lexOpenParen, start: start, end: e.pos, text: "("}
		return nil
	case ')':
		e.pos++
		e.cur = lexeme{kind: lexCloseParen, start: start, end: e.pos, text: ")"}
		return nil
	case ',':
		e.pos++
		e.cur = lexeme{kind: lexComma, start: start, end: e.pos, text: ","}
		return nil
	case '$':
		return e.operand(start, func(buf *[]Token) (int, error) {
			return e.s.parseVarName(start, e.end, buf)
		})
	case '[':
		return e.operand(start, func(buf *[]Token) (int, error) {
			return e.s.parseCommandSubst(start, e.end, buf)
		})
	case '"':
		return e.operand(start, func(buf *[]Token) (int, error) {
			return e.s.parseQuoted(start, e.end, buf)
		})
	case '{':
		return e.operand(start, func(buf *[]Token) (int, error) {
			return e.s.parseBraces(start, e.end, buf)
		})
	}

	if isDigit(c) || (c == '.' && start+1 < e.end && isDigit(src[start+1])) {
		end, err := e.scanNumber(start)
		if err != nil {
			return err
		}
		e.pos = end
		e.cur = lexeme{kind: lexOperand, start: start, end: end, text: src[start:end],
			pieces: []Token{{Type: TokenText, Start: start, Size: end - start}}}
		return nil
	}

	if isWordByte(c) || e.colonPair(start) {
		end := start
		for end < e.end {
			if isWordByte(src[end]) {
				end++
			} else if e.colonPair(end) {
				end += 2
			} else {
				break
			}
		}
		word := src[start:end]
		e.pos = end
		switch {
		case wordOperators[word]:
			e.cur = lexeme{kind: lexOperator, start: start, end: end, text: word}
		case e.peekOpenParen():
			e.cur = lexeme{kind: lexFunc, start: start, end: end, text: word}
		case IsBooleanWord(word) || numberWords[strings.ToLower(word)]:
			e.cur = lexeme{kind: lexOperand, start: start, end: end, text: word,
				pieces: []Token{{Type: TokenText, Start: start, Size: end - start}}}
		default:
			e.cur = lexeme{kind: lexBareword, start: start, end: end, text: word}
		}
		return nil
	}

	for _, op := range symbolOperators {
		if strings.HasPrefix(src[start:e.end], op) {
			e.pos += len(op)
			e.cur = lexeme{kind: lexOperator, start: start, end: e.pos, text: op}
			return nil
		}
	}
	return e.syntax(start, "unexpected character %q", c)
}

func (e *exprParser) operand(start int, scan func(buf *[]Token) (int, error)) error {
	var buf []Token
	next, err := scan(&buf)
	if err != nil {
		return err
	}
	e.pos = next
	e.cur = lexeme{kind: lexOperand, start: start, end: next, text: e.s.src[start:next], pieces: buf}
	return nil
}

func (e *exprParser) colonPair(p int) bool {
	return p+1 < e.end && e.s.src[p] == ':' && e.s.src[p+1] == ':'
}

func (e *exprParser) peekOpenParen() bool {
	p := e.pos
	for p < e.end && isListSpace(e.s.src[p]) {
		p++
	}
	return p < e.end && e.s.src[p] == '('
}

// IsNumber reports whether s is exactly one numeric literal as expressions
// read it, without sign or surrounding space.
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	if !isDigit(s[0]) && !(s[0] == '.' && len(s) > 1 && isDigit(s[1])) {
		return false
	}
	e := &exprParser{s: &scanner{src: s}, end: len(s)}
	end, err := e.scanNumber(0)
	return err == nil && end == len(s)
}

// scanNumber returns the end of the numeric literal at start.
func (e *exprParser) scanNumber(start int) (int, error) {
	src := e.s.src
	p := start
	if src[p] == '0' && p+1 < e.end {
		var digit func(byte) bool
		switch src[p+1] {
		case 'x', 'X':
			digit = func(c byte) bool { _, ok := hexValue(c); return ok }
		case 'o', 'O':
			digit = isOctal
		case 'b', 'B':
			digit = func(c byte) bool { return c == '0' || c == '1' }
		}
		if digit != nil {
			p += 2
			first := p
			for p < e.end && digit(src[p]) {
				p++
			}
			if p == first {
				return p, e.syntax(start, "invalid number %q", src[start:p])
			}
			return e.checkNumberEnd(start, p)
		}
	}
	for p < e.end && isDigit(src[p]) {
		p++
	}
	if p < e.end && src[p] == '.' {
		p++
		for p < e.end && isDigit(src[p]) {
			p++
		}
	}
	if p < e.end && (src[p] == 'e' || src[p] == 'E') {
		q := p + 1
		if q < e.end && (src[q] == '+' || src[q] == '-') {
			q++
		}
		if q < e.end && isDigit(src[q]) {
			p = q
			for p < e.end && isDigit(src[p]) {
				p++
			}
		}
	}
	return e.checkNumberEnd(start, p)
}

func (e *exprParser) checkNumberEnd(start, p int) (int, error) {
	if p < e.end && (isWordByte(e.s.src[p]) || e.s.src[p] == '.') {
		q := p
		for q < e.end && (isWordByte(e.s.src[q]) || e.s.src[q] == '.') {
			q++
		}
		return p, e.syntax(start, "invalid number %q", e.s.src[start:q])
	}
	return p, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
