package compiler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

// command is one parsed command handed to a command compiler. Word 0 is the
// command name.
type command struct {
	text  scriptText
	tree  *parser.Tree
	index int
	words []int
}

func (cmd *command) numArgs() int { return len(cmd.words) - 1 }

func (cmd *command) tokens() []parser.Token { return cmd.tree.Tokens }

// literal returns the compile-time value of word i.
func (cmd *command) literal(i int) (string, bool) {
	return parser.LiteralValue(cmd.tree.Source, cmd.tree.Tokens, cmd.words[i])
}

// script returns literal word i as script text. Simple words keep pointing
// into the parsed source.
func (cmd *command) script(i int) (scriptText, bool) {
	wi := cmd.words[i]
	if parser.IsSimpleWord(cmd.tree.Tokens, wi) {
		tx := cmd.tree.Tokens[wi+1]
		return scriptText{src: cmd.tree.Source, start: tx.Start, end: tx.End(), tracked: cmd.text.tracked}, true
	}
	v, ok := cmd.literal(i)
	if !ok {
		return scriptText{}, false
	}
	return decodedText(v), true
}

func (cmd *command) hasExpansion() bool {
	for _, wi := range cmd.words {
		if cmd.tree.Tokens[wi].Type == parser.TokenExpandWord {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Words
// ---------------------------------------------------------------------------

// piece is a fragment of a word: literal text, or a token to substitute.
type piece struct {
	lit string
	tok int // -1 for literal text
}

func tokenPieces(idx []int) []piece {
	out := make([]piece, len(idx))
	for i, j := range idx {
		out[i] = piece{tok: j}
	}
	return out
}

func literalPiece(s string) piece { return piece{lit: s, tok: -1} }

// compileWord pushes the value of word i.
func (c *Compiler) compileWord(cmd *command, i int) error {
	return c.compileWordAt(cmd.text, cmd.tree.Tokens, cmd.words[i])
}

func (c *Compiler) compileWordAt(t scriptText, tokens []parser.Token, wi int) error {
	if tokens[wi].Type == parser.TokenSimpleWord {
		c.env.PushLiteral(tokens[wi+1].Text(t.src))
		return nil
	}
	return c.pushPieces(t, tokens, tokenPieces(parser.Children(tokens, wi)))
}

// pushPieces pushes the concatenation of pieces as one value. Runs of text
// and escapes become a single literal.
func (c *Compiler) pushPieces(t scriptText, tokens []parser.Token, pieces []piece) error {
	n := 0
	var buf strings.Builder
	pending := false
	flush := func() {
		if pending {
			c.env.PushLiteral(buf.String())
			buf.Reset()
			pending = false
			n++
		}
	}
	for _, p := range pieces {
		if p.tok < 0 {
			if p.lit != "" {
				buf.WriteString(p.lit)
				pending = true
			}
			continue
		}
		tk := tokens[p.tok]
		switch tk.Type {
		case parser.TokenText:
			buf.WriteString(tk.Text(t.src))
			pending = true
		case parser.TokenBackslash:
			s, err := parser.Unescape(tk.Text(t.src))
			if err != nil {
				return sourceError(t.src, err)
			}
			buf.WriteString(s)
			pending = true
		case parser.TokenVariable:
			flush()
			if err := c.compileVarRead(t, tokens, p.tok); err != nil {
				return err
			}
			n++
		case parser.TokenCommandSubst:
			flush()
			if err := c.compileSubst(t, tk); err != nil {
				return err
			}
			n++
		default:
			return fmt.Errorf("compiler: unexpected %s token in word at offset %d", tk.Type, tk.Start)
		}
	}
	flush()
	if n == 0 {
		c.env.PushLiteral("")
		return nil
	}
	c.env.EmitConcat(n)
	return nil
}

// compileSubst compiles a bracketed command substitution inline.
func (c *Compiler) compileSubst(t scriptText, tk parser.Token) error {
	inner := scriptText{src: t.src, start: tk.Start + 1, end: tk.End() - 1, tracked: t.tracked}
	tree, err := c.parser.ParseScript(t.src, inner.start, inner.end, parser.ModeScript)
	if err != nil {
		return sourceError(t.src, err)
	}
	return c.compileTree(inner, tree)
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

type varKind int

const (
	localScalar varKind = iota
	localArray
	namedScalar
	namedArray
	// namedAny is a runtime name that may carry its own (index) part.
	namedAny
)

// varRef says how a variable reference was resolved and what was pushed
// for it: nothing for a local scalar, the index for a local array element,
// the name (and index) otherwise.
type varRef struct {
	kind varKind
	slot int
}

// varOps is one operation in each addressing mode. Local forms are the
// 1-byte members of their width family.
type varOps struct {
	localScalar, localArray, namedScalar, namedArray, namedAny bytecode.Opcode
}

var (
	loadOps = varOps{
		bytecode.OpLoadScalar1, bytecode.OpLoadArray1,
		bytecode.OpLoadScalarStk, bytecode.OpLoadArrayStk, bytecode.OpLoadStk,
	}
	storeOps = varOps{
		bytecode.OpStoreScalar1, bytecode.OpStoreArray1,
		bytecode.OpStoreScalarStk, bytecode.OpStoreArrayStk, bytecode.OpStoreStk,
	}
	incrOps = varOps{
		bytecode.OpIncrScalar1, bytecode.OpIncrArray1,
		bytecode.OpIncrScalarStk, bytecode.OpIncrArrayStk, bytecode.OpIncrStk,
	}
	appendOps = varOps{
		bytecode.OpAppendScalar1, bytecode.OpAppendArray1,
		bytecode.OpAppendStk, bytecode.OpAppendArrayStk, bytecode.OpAppendStk,
	}
	lappendOps = varOps{
		bytecode.OpLappendScalar1, bytecode.OpLappendArray1,
		bytecode.OpLappendStk, bytecode.OpLappendArrayStk, bytecode.OpLappendStk,
	}
)

func (c *Compiler) emitVarOp(ops varOps, ref varRef) {
	switch ref.kind {
	case localScalar:
		c.env.EmitSized(ops.localScalar, ref.slot)
	case localArray:
		c.env.EmitSized(ops.localArray, ref.slot)
	case namedScalar:
		c.env.Emit(ops.namedScalar)
	case namedArray:
		c.env.Emit(ops.namedArray)
	default:
		c.env.Emit(ops.namedAny)
	}
}

// pushVarRef pushes what a variable operation needs for name, with an
// optional element index.
func (c *Compiler) pushVarRef(t scriptText, tokens []parser.Token, name string, index []piece, isArray bool) (varRef, error) {
	slot, local := c.localSlot(name)
	if !local {
		c.env.PushLiteral(name)
	}
	if isArray {
		if err := c.pushPieces(t, tokens, index); err != nil {
			return varRef{}, err
		}
	}
	switch {
	case local && isArray:
		return varRef{kind: localArray, slot: slot}, nil
	case local:
		return varRef{kind: localScalar, slot: slot}, nil
	case isArray:
		return varRef{kind: namedArray}, nil
	}
	return varRef{kind: namedScalar}, nil
}

// compileVarRead pushes the value of a $ substitution.
func (c *Compiler) compileVarRead(t scriptText, tokens []parser.Token, vi int) error {
	kids := parser.Children(tokens, vi)
	name := tokens[kids[0]].Text(t.src)
	var ref varRef
	var err error
	if len(kids) > 1 {
		ref, err = c.pushVarRef(t, tokens, name, tokenPieces(kids[1:]), true)
	} else if base, idx, ok := parser.SplitVarName(name); ok {
		ref, err = c.pushVarRef(t, tokens, base, []piece{literalPiece(idx)}, true)
	} else {
		ref, err = c.pushVarRef(t, tokens, name, nil, false)
	}
	if err != nil {
		return err
	}
	c.emitVarOp(loadOps, ref)
	return nil
}

// pushVarName resolves word i of cmd as the target of a variable operation.
// A word with substitutions only in its index still addresses an array
// element directly; anything else falls back to a runtime name.
func (c *Compiler) pushVarName(cmd *command, i int) (varRef, error) {
	tokens := cmd.tokens()
	t := cmd.text
	if name, ok := cmd.literal(i); ok {
		if base, idx, isArr := parser.SplitVarName(name); isArr {
			return c.pushVarRef(t, tokens, base, []piece{literalPiece(idx)}, true)
		}
		return c.pushVarRef(t, tokens, name, nil, false)
	}

	wi := cmd.words[i]
	kids := parser.Children(tokens, wi)
	if len(kids) >= 2 {
		first, last := tokens[kids[0]], tokens[kids[len(kids)-1]]
		if first.Type == parser.TokenText && last.Type == parser.TokenText {
			ft, lt := first.Text(t.src), last.Text(t.src)
			p := strings.IndexByte(ft, '(')
			if p > 0 && strings.HasSuffix(lt, ")") && !strings.ContainsAny(ft[p+1:], "()") {
				index := []piece{literalPiece(ft[p+1:])}
				index = append(index, tokenPieces(kids[1:len(kids)-1])...)
				index = append(index, literalPiece(lt[:len(lt)-1]))
				return c.pushVarRef(t, tokens, ft[:p], index, true)
			}
		}
	}
	if err := c.compileWord(cmd, i); err != nil {
		return varRef{}, err
	}
	return varRef{kind: namedAny}, nil
}

// plainLocalName reports whether name can be bound directly to a frame slot
// by constructs that assign whole scalars.
func (c *Compiler) plainLocalName(name string) bool {
	if !c.procScope() || name == "" || parser.IsQualified(name) {
		return false
	}
	_, _, isArr := parser.SplitVarName(name)
	return !isArr
}

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// constantBool returns the truth value of a literal condition that needs no
// evaluation: a boolean word or one optionally signed number that the
// expression lexer accepts. Anything else is left to the expression compiler.
func constantBool(s string) (bool, bool) {
	s = strings.Trim(s, " \t\n\v\f\r")
	if parser.IsBooleanWord(s) {
		switch strings.ToLower(s) {
		case "true", "yes", "on":
			return true, true
		}
		return false, true
	}
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if !parser.IsNumber(s) {
		return false, false
	}
	// Decimal integers with a leading zero and out-of-range values are
	// left to run time.
	if len(s) > 1 && s[0] == '0' && isDigitByte(s[1]) {
		return false, false
	}
	if i, err := strconv.ParseInt(s, 0, 64); err == nil {
		return i != 0, true
	}
	if strings.ContainsAny(s, "xXoObB") {
		return false, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) {
		return f != 0, true
	}
	return false, false
}

func isDigitByte(c byte) bool {
	return c >= '0' && c <= '9'
}

// immediateInt parses a literal that fits a signed 1-byte operand.
func immediateInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < -128 || n > 127 {
		return 0, false
	}
	return n, true
}

// completionCode parses a literal completion code name or number.
func completionCode(s string) (int, bool) {
	switch s {
	case "ok":
		return 0, true
	case "error":
		return 1, true
	case "return":
		return 2, true
	case "break":
		return 3, true
	case "continue":
		return 4, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// globQuote escapes the glob metacharacters of s.
func globQuote(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
