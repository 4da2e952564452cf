package compiler

import (
	"github.com/chazu/tickle/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Conditionals and loops
// ---------------------------------------------------------------------------

func init() {
	register("if", compileIf)
	register("while", compileWhile)
	register("for", compileFor)
	register("break", compileBreak)
	register("continue", compileContinue)
}

type ifClause struct {
	cond int // word index; -1 for else
	body scriptText
}

// parseIfClauses checks the keyword structure of an if command. Keywords
// and bodies must be literal.
func parseIfClauses(cmd *command) ([]ifClause, bool) {
	n := len(cmd.words)
	var clauses []ifClause
	i := 1
	for {
		if i >= n {
			return nil, false
		}
		cond := i
		i++
		if i < n {
			kw, ok := cmd.literal(i)
			if !ok && i < n-1 {
				return nil, false
			}
			if kw == "then" {
				i++
			}
		}
		if i >= n {
			return nil, false
		}
		body, ok := cmd.script(i)
		if !ok {
			return nil, false
		}
		clauses = append(clauses, ifClause{cond: cond, body: body})
		i++
		if i >= n {
			return clauses, true
		}

		kw, ok := cmd.literal(i)
		if !ok {
			return nil, false
		}
		switch {
		case kw == "elseif":
			i++
			continue
		case kw == "else":
			i++
			if i != n-1 {
				return nil, false
			}
		case i != n-1:
			return nil, false
		}
		body, ok = cmd.script(i)
		if !ok {
			return nil, false
		}
		return append(clauses, ifClause{cond: -1, body: body}), true
	}
}

// compileIf emits one test and branch per clause. A condition that is a
// literal boolean drops the clauses it makes unreachable.
func compileIf(c *Compiler, cmd *command) (Result, error) {
	clauses, ok := parseIfClauses(cmd)
	if !ok {
		return Declined, nil
	}

	d0 := c.env.Depth()
	var ends []*bytecode.Fixup
	haveElse := false
	for _, cl := range clauses {
		if cl.cond < 0 {
			if err := c.compileBody(cl.body); err != nil {
				return Declined, err
			}
			haveElse = true
			break
		}
		if lit, ok := cmd.literal(cl.cond); ok {
			if v, isConst := constantBool(lit); isConst {
				if !v {
					continue
				}
				if err := c.compileBody(cl.body); err != nil {
					return Declined, err
				}
				haveElse = true
				break
			}
		}

		if err := c.compileExprWord(cmd, cl.cond); err != nil {
			return Declined, err
		}
		next := c.env.EmitForwardJump(bytecode.OpJumpFalse1)
		c.env.SetDepth(d0)
		if err := c.compileBody(cl.body); err != nil {
			return Declined, err
		}
		ends = append(ends, c.env.EmitForwardJump(bytecode.OpJump1))
		c.env.ResolveHere(next)
		c.env.SetDepth(d0)
	}
	if !haveElse {
		c.env.PushLiteral("")
	}
	for _, f := range ends {
		c.env.ResolveHere(f)
	}
	c.env.SetDepth(d0 + 1)
	return Specialized, nil
}

// beginLoopBody opens a loop range and marks the top of its body.
func (c *Compiler) beginLoopBody() (int, bytecode.Label) {
	h := c.env.DeclareRange(bytecode.LoopRange)
	top := c.env.MarkHere()
	c.env.BeginRange(h)
	c.loopBase[h] = c.env.Depth()
	c.loopExpand[h] = c.expanding
	return h, top
}

// compileLoopBody compiles a loop body and discards its value.
func (c *Compiler) compileLoopBody(h int, body scriptText) error {
	if err := c.compileBody(body); err != nil {
		return err
	}
	c.env.Emit(bytecode.OpPop)
	c.env.EndRange(h)
	return nil
}

// compileWhile emits the rotated loop: a jump to the test, the body, then
// the test branching back to the body.
func compileWhile(c *Compiler, cmd *command) (Result, error) {
	if cmd.numArgs() != 2 {
		return Declined, nil
	}
	test, ok := cmd.script(1)
	if !ok {
		return Declined, nil
	}
	body, ok := cmd.script(2)
	if !ok {
		return Declined, nil
	}

	d0 := c.env.Depth()
	v, isConst := constantBool(test.String())
	if isConst && !v {
		c.env.PushLiteral("")
		return Specialized, nil
	}
	var toTest *bytecode.Fixup
	if !isConst {
		toTest = c.env.EmitForwardJump(bytecode.OpJump1)
	}
	h, top := c.beginLoopBody()
	if err := c.compileLoopBody(h, body); err != nil {
		return Declined, err
	}
	c.env.Mark(c.env.ContinueLabel(h))
	if isConst {
		c.env.EmitJumpBack(bytecode.OpJump1, top)
	} else {
		c.env.ResolveHere(toTest)
		if err := c.compileExprText(test); err != nil {
			return Declined, err
		}
		c.env.EmitJumpBack(bytecode.OpJumpTrue1, top)
	}
	c.env.Mark(c.env.BreakLabel(h))
	c.env.CloseRange(h)
	c.env.SetDepth(d0)
	c.env.PushLiteral("")
	return Specialized, nil
}

// compileFor runs start once, then the rotated loop. The next script sits
// in its own loop range, where break ends the loop and continue is an
// error.
func compileFor(c *Compiler, cmd *command) (Result, error) {
	if cmd.numArgs() != 4 {
		return Declined, nil
	}
	var parts [4]scriptText
	for i := range parts {
		t, ok := cmd.script(i + 1)
		if !ok {
			return Declined, nil
		}
		parts[i] = t
	}
	start, test, next, body := parts[0], parts[1], parts[2], parts[3]

	if err := c.compileBody(start); err != nil {
		return Declined, err
	}
	c.env.Emit(bytecode.OpPop)

	d0 := c.env.Depth()
	v, isConst := constantBool(test.String())
	if isConst && !v {
		c.env.PushLiteral("")
		return Specialized, nil
	}
	var toTest *bytecode.Fixup
	if !isConst {
		toTest = c.env.EmitForwardJump(bytecode.OpJump1)
	}

	h, top := c.beginLoopBody()
	if err := c.compileLoopBody(h, body); err != nil {
		return Declined, err
	}
	c.env.CloseRange(h)
	c.env.Mark(c.env.ContinueLabel(h))

	hn := c.env.DeclareRange(bytecode.LoopRange)
	c.noContinue[hn] = true
	c.env.BeginRange(hn)
	c.loopBase[hn] = c.env.Depth()
	c.loopExpand[hn] = c.expanding
	if err := c.compileLoopBody(hn, next); err != nil {
		return Declined, err
	}
	c.env.CloseRange(hn)

	if isConst {
		c.env.EmitJumpBack(bytecode.OpJump1, top)
	} else {
		c.env.ResolveHere(toTest)
		if err := c.compileExprText(test); err != nil {
			return Declined, err
		}
		c.env.EmitJumpBack(bytecode.OpJumpTrue1, top)
	}
	c.env.Mark(c.env.BreakLabel(h))
	c.env.Mark(c.env.BreakLabel(hn))
	c.env.SetDepth(d0)
	c.env.PushLiteral("")
	return Specialized, nil
}

// ---------------------------------------------------------------------------
// break / continue
// ---------------------------------------------------------------------------

func compileBreak(c *Compiler, cmd *command) (Result, error) {
	return c.compileLoopExit(cmd, "break", true)
}

func compileContinue(c *Compiler, cmd *command) (Result, error) {
	return c.compileLoopExit(cmd, "continue", false)
}

// compileLoopExit jumps straight to the loop target when the innermost open
// range is a loop of this unit. Inside a catch range, outside any loop, or
// inside an expanded invocation opened in the loop body, the exception is
// raised at run time instead so that unwinding also drops expansion marks.
func (c *Compiler) compileLoopExit(cmd *command, name string, isBreak bool) (Result, error) {
	if cmd.numArgs() != 0 {
		c.emitRuntimeError("wrong # args: should be \"" + name + "\"")
		return Specialized, nil
	}
	d := c.env.Depth()
	h, ok := c.env.InnermostRange()
	direct := ok && c.env.RangeKindOf(h) == bytecode.LoopRange && c.expanding == c.loopExpand[h]
	if direct && (isBreak || !c.noContinue[h]) {
		for i := c.loopBase[h]; i < d; i++ {
			c.env.Emit(bytecode.OpPop)
		}
		target := c.env.ContinueLabel(h)
		if isBreak {
			target = c.env.BreakLabel(h)
		}
		c.env.EmitJumpTo(bytecode.OpJump1, target)
		c.env.SetDepth(d + 1)
		return Specialized, nil
	}
	if isBreak {
		c.env.Emit(bytecode.OpBreak)
	} else {
		c.env.Emit(bytecode.OpContinue)
	}
	c.env.AdjustDepth(1)
	return Specialized, nil
}
