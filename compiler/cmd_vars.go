package compiler

import (
	"github.com/chazu/tickle/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Variable commands: set, incr, append, lappend, unset
// ---------------------------------------------------------------------------

func init() {
	register("set", compileSet)
	register("incr", compileIncr)
	register("append", compileAppend)
	register("lappend", compileLappend)
	register("unset", compileUnset)
}

func compileSet(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n != 1 && n != 2 {
		return Declined, nil
	}
	ref, err := c.pushVarName(cmd, 1)
	if err != nil {
		return Declined, err
	}
	if n == 1 {
		c.emitVarOp(loadOps, ref)
		return Specialized, nil
	}
	if err := c.compileWord(cmd, 2); err != nil {
		return Declined, err
	}
	c.emitVarOp(storeOps, ref)
	return Specialized, nil
}

func compileIncr(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n != 1 && n != 2 {
		return Declined, nil
	}
	ref, err := c.pushVarName(cmd, 1)
	if err != nil {
		return Declined, err
	}

	amount, imm := 1, true
	if n == 2 {
		lit, ok := cmd.literal(2)
		if ok {
			amount, imm = immediateInt(lit)
		} else {
			imm = false
		}
	}

	if imm {
		switch {
		case ref.kind == localScalar && ref.slot <= 0xFF:
			c.env.Emit(bytecode.OpIncrScalar1Imm, ref.slot, amount)
			return Specialized, nil
		case ref.kind == localArray && ref.slot <= 0xFF:
			c.env.Emit(bytecode.OpIncrArray1Imm, ref.slot, amount)
			return Specialized, nil
		case ref.kind == namedScalar:
			c.env.Emit(bytecode.OpIncrScalarStkImm, amount)
			return Specialized, nil
		case ref.kind == namedArray:
			c.env.Emit(bytecode.OpIncrArrayStkImm, amount)
			return Specialized, nil
		case ref.kind == namedAny:
			c.env.Emit(bytecode.OpIncrStkImm, amount)
			return Specialized, nil
		}
	}

	if n == 2 {
		if err := c.compileWord(cmd, 2); err != nil {
			return Declined, err
		}
	} else {
		c.env.PushLiteral("1")
	}
	c.emitVarOp(incrOps, ref)
	return Specialized, nil
}

// compileAppend concatenates every value and appends the result once.
// append with no values reads the variable.
func compileAppend(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n < 1 {
		return Declined, nil
	}
	ref, err := c.pushVarName(cmd, 1)
	if err != nil {
		return Declined, err
	}
	if n == 1 {
		c.emitVarOp(loadOps, ref)
		return Specialized, nil
	}
	for i := 2; i <= n; i++ {
		if err := c.compileWord(cmd, i); err != nil {
			return Declined, err
		}
	}
	c.env.EmitConcat(n - 1)
	c.emitVarOp(appendOps, ref)
	return Specialized, nil
}

func compileLappend(c *Compiler, cmd *command) (Result, error) {
	if cmd.numArgs() != 2 {
		return Declined, nil
	}
	ref, err := c.pushVarName(cmd, 1)
	if err != nil {
		return Declined, err
	}
	if err := c.compileWord(cmd, 2); err != nil {
		return Declined, err
	}
	c.emitVarOp(lappendOps, ref)
	return Specialized, nil
}

// unsetNoComplain is the flag operand that suppresses missing-variable errors.
const unsetNoComplain = 1

func compileUnset(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	i, flags := 1, 0
	for i <= n {
		lit, ok := cmd.literal(i)
		if !ok {
			// A computed word here could still spell an option.
			return Declined, nil
		}
		if lit == "-nocomplain" && i == 1 {
			flags = unsetNoComplain
			i++
			continue
		}
		if lit == "--" {
			i++
		}
		break
	}

	for ; i <= n; i++ {
		ref, err := c.pushVarName(cmd, i)
		if err != nil {
			return Declined, err
		}
		switch ref.kind {
		case localScalar:
			c.env.Emit(bytecode.OpUnsetScalar4, flags, ref.slot)
		case localArray:
			c.env.Emit(bytecode.OpUnsetArray4, flags, ref.slot)
		case namedArray:
			c.env.Emit(bytecode.OpUnsetArrayStk, flags)
		default:
			c.env.Emit(bytecode.OpUnsetStk, flags)
		}
	}
	c.env.PushLiteral("")
	return Specialized, nil
}
