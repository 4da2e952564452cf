package compiler

import (
	"github.com/chazu/tickle/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// tcl::mathop commands
// ---------------------------------------------------------------------------

const mathopNamespace = "tcl::mathop::"

// foldOp describes an operator command that folds its arguments left to
// right with one binary instruction.
type foldOp struct {
	op bytecode.Opcode
	// identity is pushed for zero arguments; empty declines.
	identity string
	// unary is applied to a single argument; OpNop declines.
	unary bytecode.Opcode
}

var foldOps = map[string]foldOp{
	"+": {bytecode.OpAdd, "0", bytecode.OpUplus},
	"*": {bytecode.OpMult, "1", bytecode.OpUplus},
	"-": {bytecode.OpSub, "", bytecode.OpUminus},
	"&": {bytecode.OpBitAnd, "-1", bytecode.OpNop},
	"|": {bytecode.OpBitOr, "0", bytecode.OpNop},
	"^": {bytecode.OpBitXor, "0", bytecode.OpNop},
}

var binaryOps = map[string]bytecode.Opcode{
	"%":  bytecode.OpMod,
	"<<": bytecode.OpLshift,
	">>": bytecode.OpRshift,
	"!=": bytecode.OpNeq,
	"ne": bytecode.OpStrNeq,
	"in": bytecode.OpListIn,
	"ni": bytecode.OpListNotIn,
}

var unaryOps = map[string]bytecode.Opcode{
	"!": bytecode.OpNot,
	"~": bytecode.OpBitNot,
}

var compareOps = map[string]bytecode.Opcode{
	"==": bytecode.OpEq,
	"<":  bytecode.OpLt,
	"<=": bytecode.OpLe,
	">":  bytecode.OpGt,
	">=": bytecode.OpGe,
	"eq": bytecode.OpStrEq,
}

func init() {
	for sym, f := range foldOps {
		f := f
		register(mathopNamespace+sym, func(c *Compiler, cmd *command) (Result, error) {
			return c.compileFold(cmd, f)
		})
	}
	for sym, op := range binaryOps {
		op := op
		register(mathopNamespace+sym, func(c *Compiler, cmd *command) (Result, error) {
			return c.compileFixedOp(cmd, op, 2)
		})
	}
	for sym, op := range unaryOps {
		op := op
		register(mathopNamespace+sym, func(c *Compiler, cmd *command) (Result, error) {
			return c.compileFixedOp(cmd, op, 1)
		})
	}
	for sym, op := range compareOps {
		op := op
		register(mathopNamespace+sym, func(c *Compiler, cmd *command) (Result, error) {
			return c.compileCompare(cmd, op)
		})
	}
	register(mathopNamespace+"/", compileDivide)
	register(mathopNamespace+"**", compilePower)
}

func (c *Compiler) pushArgs(cmd *command) error {
	for i := 1; i <= cmd.numArgs(); i++ {
		if err := c.compileWord(cmd, i); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileFold(cmd *command, f foldOp) (Result, error) {
	switch n := cmd.numArgs(); {
	case n == 0:
		if f.identity == "" {
			return Declined, nil
		}
		c.env.PushLiteral(f.identity)
		return Specialized, nil
	case n == 1:
		if f.unary == bytecode.OpNop {
			return Declined, nil
		}
		if err := c.compileWord(cmd, 1); err != nil {
			return Declined, err
		}
		c.env.Emit(f.unary)
		return Specialized, nil
	default:
		for i := 1; i <= n; i++ {
			if err := c.compileWord(cmd, i); err != nil {
				return Declined, err
			}
			if i > 1 {
				c.env.Emit(f.op)
			}
		}
		return Specialized, nil
	}
}

func (c *Compiler) compileFixedOp(cmd *command, op bytecode.Opcode, arity int) (Result, error) {
	if cmd.numArgs() != arity {
		return Declined, nil
	}
	if err := c.pushArgs(cmd); err != nil {
		return Declined, err
	}
	c.env.Emit(op)
	return Specialized, nil
}

// compileCompare handles the comparison commands. With fewer than two
// arguments the comparison is vacuously true, though the arguments are
// still evaluated.
func (c *Compiler) compileCompare(cmd *command, op bytecode.Opcode) (Result, error) {
	n := cmd.numArgs()
	if n > 2 {
		return Declined, nil
	}
	if err := c.pushArgs(cmd); err != nil {
		return Declined, err
	}
	if n == 2 {
		c.env.Emit(op)
		return Specialized, nil
	}
	for i := 0; i < n; i++ {
		c.env.Emit(bytecode.OpPop)
	}
	c.env.PushLiteral("1")
	return Specialized, nil
}

// compileDivide folds left; a single argument is its reciprocal.
func compileDivide(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	switch n {
	case 0:
		return Declined, nil
	case 1:
		c.env.PushLiteral("1.0")
		if err := c.compileWord(cmd, 1); err != nil {
			return Declined, err
		}
		c.env.Emit(bytecode.OpDiv)
		return Specialized, nil
	}
	return c.compileFold(cmd, foldOp{op: bytecode.OpDiv})
}

// compilePower associates to the right: every argument is pushed before
// the first exponentiation.
func compilePower(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	switch n {
	case 0:
		c.env.PushLiteral("1")
		return Specialized, nil
	case 1:
		if err := c.compileWord(cmd, 1); err != nil {
			return Declined, err
		}
		c.env.Emit(bytecode.OpUplus)
		return Specialized, nil
	}
	if err := c.pushArgs(cmd); err != nil {
		return Declined, err
	}
	for i := 1; i < n; i++ {
		c.env.Emit(bytecode.OpExpon)
	}
	return Specialized, nil
}
