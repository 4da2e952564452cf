package compiler

import (
	"errors"
	"sync"

	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Operator table
// ---------------------------------------------------------------------------

type opKey struct {
	symbol string
	arity  int
}

var (
	opTableOnce sync.Once
	opTable     map[opKey]bytecode.Opcode
)

// operatorTable maps operator symbols and arity to their instruction. The
// logical and ternary operators compile to branches and are not listed.
func operatorTable() map[opKey]bytecode.Opcode {
	opTableOnce.Do(func() {
		opTable = map[opKey]bytecode.Opcode{
			{"*", 2}:  bytecode.OpMult,
			{"/", 2}:  bytecode.OpDiv,
			{"%", 2}:  bytecode.OpMod,
			{"+", 2}:  bytecode.OpAdd,
			{"-", 2}:  bytecode.OpSub,
			{"**", 2}: bytecode.OpExpon,
			{"<<", 2}: bytecode.OpLshift,
			{">>", 2}: bytecode.OpRshift,
			{"<", 2}:  bytecode.OpLt,
			{">", 2}:  bytecode.OpGt,
			{"<=", 2}: bytecode.OpLe,
			{">=", 2}: bytecode.OpGe,
			{"==", 2}: bytecode.OpEq,
			{"!=", 2}: bytecode.OpNeq,
			{"eq", 2}: bytecode.OpStrEq,
			{"ne", 2}: bytecode.OpStrNeq,
			{"in", 2}: bytecode.OpListIn,
			{"ni", 2}: bytecode.OpListNotIn,
			{"&", 2}:  bytecode.OpBitAnd,
			{"^", 2}:  bytecode.OpBitXor,
			{"|", 2}:  bytecode.OpBitOr,
			{"-", 1}:  bytecode.OpUminus,
			{"+", 1}:  bytecode.OpUplus,
			{"!", 1}:  bytecode.OpNot,
			{"~", 1}:  bytecode.OpBitNot,
		}
	})
	return opTable
}

// mathfuncNamespace prefixes the command that implements an expression
// function call.
const mathfuncNamespace = "tcl::mathfunc::"

// ---------------------------------------------------------------------------
// Expression compilation
// ---------------------------------------------------------------------------

// compileExprTree compiles a parsed expression rooted at tree.Tokens[0].
func (c *Compiler) compileExprTree(t scriptText, tree *parser.Tree) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	if err := c.compileSubExpr(t, tree.Tokens, 0); err != nil {
		return err
	}
	if isPrimary(tree.Tokens, 0) {
		c.env.Emit(bytecode.OpTryCvtToNumeric)
	}
	return nil
}

// compileExprText parses and compiles literal expression text. Text that
// does not parse compiles to code raising the parse error.
func (c *Compiler) compileExprText(t scriptText) error {
	tree, err := c.parser.ParseExpr(t.src, t.start, t.end)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) && pe.Kind == parser.ErrNestingTooDeep {
			return sourceError(t.src, err)
		}
		c.emitRuntimeError(exprErrorMessage(t.String(), err))
		return nil
	}
	return c.compileExprTree(t, tree)
}

// compileExprWord compiles word i of cmd as an expression: through the
// expression compiler when literal, as a runtime expr otherwise.
func (c *Compiler) compileExprWord(cmd *command, i int) error {
	if t, ok := cmd.script(i); ok {
		return c.compileExprText(t)
	}
	if err := c.compileWord(cmd, i); err != nil {
		return err
	}
	c.env.Emit(bytecode.OpExprStk)
	return nil
}

func isPrimary(tokens []parser.Token, i int) bool {
	if tokens[i].NumChildren == 0 {
		return true
	}
	return tokens[i+1].Type != parser.TokenOperator
}

func (c *Compiler) compileSubExpr(t scriptText, tokens []parser.Token, i int) error {
	kids := parser.Children(tokens, i)
	if isPrimary(tokens, i) {
		return c.pushPieces(t, tokens, tokenPieces(kids))
	}
	symbol := tokens[kids[0]].Text(t.src)
	operands := kids[1:]

	switch {
	case (symbol == "&&" || symbol == "||") && len(operands) == 2:
		return c.compileLogical(t, tokens, symbol == "&&", operands)
	case symbol == "?" && len(operands) == 3:
		return c.compileTernary(t, tokens, operands)
	}

	op, ok := operatorTable()[opKey{symbol, len(operands)}]
	if !ok {
		return c.compileCall(t, tokens, symbol, operands)
	}
	for _, o := range operands {
		if err := c.compileSubExpr(t, tokens, o); err != nil {
			return err
		}
	}
	c.env.Emit(op)
	return nil
}

// compileLogical emits the short-circuit shape shared by && and ||. Both
// operand tests branch to the same label, which pushes the short-circuit
// value; falling through both pushes the other.
func (c *Compiler) compileLogical(t scriptText, tokens []parser.Token, and bool, operands []int) error {
	branch, short, long := bytecode.OpJumpTrue1, "1", "0"
	if and {
		branch, short, long = bytecode.OpJumpFalse1, "0", "1"
	}
	d0 := c.env.Depth()
	shortCircuit := c.env.NewLabel()
	for _, o := range operands {
		if err := c.compileSubExpr(t, tokens, o); err != nil {
			return err
		}
		c.env.EmitJumpTo(branch, shortCircuit)
	}
	c.env.PushLiteral(long)
	end := c.env.EmitForwardJump(bytecode.OpJump1)
	c.env.Mark(shortCircuit)
	c.env.SetDepth(d0)
	c.env.PushLiteral(short)
	c.env.ResolveHere(end)
	return nil
}

func (c *Compiler) compileTernary(t scriptText, tokens []parser.Token, operands []int) error {
	if err := c.compileSubExpr(t, tokens, operands[0]); err != nil {
		return err
	}
	toElse := c.env.EmitForwardJump(bytecode.OpJumpFalse1)
	d := c.env.Depth()
	if err := c.compileBranch(t, tokens, operands[1]); err != nil {
		return err
	}
	end := c.env.EmitForwardJump(bytecode.OpJump1)
	c.env.ResolveHere(toElse)
	c.env.SetDepth(d)
	if err := c.compileBranch(t, tokens, operands[2]); err != nil {
		return err
	}
	c.env.ResolveHere(end)
	return nil
}

// compileBranch compiles a ternary arm. A bare operand is converted to a
// number when it looks like one, as it would be at top level.
func (c *Compiler) compileBranch(t scriptText, tokens []parser.Token, i int) error {
	if err := c.compileSubExpr(t, tokens, i); err != nil {
		return err
	}
	if isPrimary(tokens, i) {
		c.env.Emit(bytecode.OpTryCvtToNumeric)
	}
	return nil
}

// compileCall invokes tcl::mathfunc::name with the compiled arguments.
func (c *Compiler) compileCall(t scriptText, tokens []parser.Token, name string, args []int) error {
	c.env.PushLiteral(mathfuncNamespace + name)
	for _, a := range args {
		if err := c.compileSubExpr(t, tokens, a); err != nil {
			return err
		}
	}
	c.env.EmitInvoke(len(args) + 1)
	return nil
}

// ---------------------------------------------------------------------------
// expr command
// ---------------------------------------------------------------------------

func init() {
	register("expr", compileExprCmd)
}

// compileExprCmd compiles a single literal argument through the expression
// compiler. Other shapes concatenate their words with spaces and evaluate
// the result at run time.
func compileExprCmd(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n == 0 {
		return Declined, nil
	}
	if n == 1 {
		if err := c.compileExprWord(cmd, 1); err != nil {
			return Declined, err
		}
		return Specialized, nil
	}
	for i := 1; i <= n; i++ {
		if i > 1 {
			c.env.PushLiteral(" ")
		}
		if err := c.compileWord(cmd, i); err != nil {
			return Declined, err
		}
	}
	c.env.EmitConcat(2*n - 1)
	c.env.Emit(bytecode.OpExprStk)
	return Specialized, nil
}
