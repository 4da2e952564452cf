package compiler

import (
	"strconv"

	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Exceptions: catch, try, return, error
// ---------------------------------------------------------------------------

func init() {
	register("catch", compileCatch)
	register("try", compileTry)
	register("return", compileReturn)
	register("error", compileError)
}

// okOptions is the options dictionary of a normal completion.
const okOptions = "-code 0 -level 0"

// beginCatch opens a catch range around the code that follows.
func (c *Compiler) beginCatch() int {
	h := c.env.DeclareRange(bytecode.CatchRange)
	c.env.Emit(bytecode.OpBeginCatch4, h)
	c.env.BeginRange(h)
	return h
}

// endCatch closes range h. On the normal path the protected value stays on
// the stack; on the exception path the interpreter result replaces it.
func (c *Compiler) endCatch(h, d0 int) {
	c.env.EndRange(h)
	c.env.Emit(bytecode.OpEndCatch)
	done := c.env.EmitForwardJump(bytecode.OpJump1)
	c.env.Mark(c.env.CatchLabel(h))
	c.env.CloseRange(h)
	c.env.SetDepth(d0)
	c.env.Emit(bytecode.OpPushResult)
	c.env.ResolveHere(done)
}

func (c *Compiler) storeLocal(slot int) {
	c.env.EmitSized(bytecode.OpStoreScalar1, slot)
}

func (c *Compiler) loadLocal(slot int) {
	c.env.EmitSized(bytecode.OpLoadScalar1, slot)
}

// catchVar resolves an optional catch/try variable word to a frame slot.
func (c *Compiler) catchVar(cmd *command, i int) (int, bool) {
	name, ok := cmd.literal(i)
	if !ok || !c.plainLocalName(name) {
		return 0, false
	}
	return c.env.Locals.Find(name), true
}

func compileCatch(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n < 1 || n > 3 {
		return Declined, nil
	}
	body, ok := cmd.script(1)
	if !ok {
		return Declined, nil
	}
	slots := make([]int, 0, 2)
	for i := 2; i <= n; i++ {
		slot, ok := c.catchVar(cmd, i)
		if !ok {
			return Declined, nil
		}
		slots = append(slots, slot)
	}

	d0 := c.env.Depth()
	h := c.beginCatch()
	if err := c.compileBody(body); err != nil {
		return Declined, err
	}
	c.endCatch(h, d0)
	if len(slots) > 0 {
		c.storeLocal(slots[0])
	}
	c.env.Emit(bytecode.OpPop)
	if len(slots) > 1 {
		c.env.Emit(bytecode.OpPushReturnOptions)
		c.storeLocal(slots[1])
		c.env.Emit(bytecode.OpPop)
	}
	c.env.Emit(bytecode.OpPushReturnCode)
	return Specialized, nil
}

// ---------------------------------------------------------------------------
// try
// ---------------------------------------------------------------------------

type tryHandler struct {
	trap    bool
	code    int      // on: completion code
	pattern []string // trap: errorcode prefix
	vars    []int
	body    scriptText
	fall    bool
}

func parseTry(c *Compiler, cmd *command) (handlers []tryHandler, finally *scriptText, ok bool) {
	n := len(cmd.words)
	i := 2
	for i < n {
		kw, isLit := cmd.literal(i)
		if !isLit {
			return nil, nil, false
		}
		switch kw {
		case "on", "trap":
			if i+3 >= n {
				return nil, nil, false
			}
			h := tryHandler{trap: kw == "trap"}
			arg, isLit := cmd.literal(i + 1)
			if !isLit {
				return nil, nil, false
			}
			if h.trap {
				pat, err := parser.SplitList(arg)
				if err != nil {
					return nil, nil, false
				}
				h.pattern = pat
				h.code = 1
			} else {
				code, ok := completionCode(arg)
				if !ok {
					return nil, nil, false
				}
				h.code = code
			}
			varList, isLit := cmd.literal(i + 2)
			if !isLit {
				return nil, nil, false
			}
			names, err := parser.SplitList(varList)
			if err != nil || len(names) > 2 {
				return nil, nil, false
			}
			body, isLit := cmd.script(i + 3)
			if !isLit {
				return nil, nil, false
			}
			h.body = body
			h.fall = body.String() == "-"
			if h.fall && len(names) > 0 {
				return nil, nil, false
			}
			for _, name := range names {
				if !c.plainLocalName(name) {
					return nil, nil, false
				}
				h.vars = append(h.vars, c.env.Locals.Find(name))
			}
			handlers = append(handlers, h)
			i += 4
		case "finally":
			if i+2 != n {
				return nil, nil, false
			}
			body, isLit := cmd.script(i + 1)
			if !isLit {
				return nil, nil, false
			}
			finally = &body
			i += 2
		default:
			return nil, nil, false
		}
	}
	if len(handlers) > 0 && handlers[len(handlers)-1].fall {
		return nil, nil, false
	}
	return handlers, finally, true
}

// compileTry stores the body's result and options in temporaries, then
// tests each handler against the completion code. With a finally script the
// handlers run inside a second catch range, so every path reaches the
// finally script before the saved outcome is returned or re-raised.
func compileTry(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n < 1 {
		return Declined, nil
	}
	body, ok := cmd.script(1)
	if !ok {
		return Declined, nil
	}
	if n == 1 {
		if err := c.compileBody(body); err != nil {
			return Declined, err
		}
		return Specialized, nil
	}
	if !c.procScope() {
		return Declined, nil
	}
	handlers, finally, ok := parseTry(c, cmd)
	if !ok {
		return Declined, nil
	}

	resTmp := c.env.Locals.NewTemp()
	optTmp := c.env.Locals.NewTemp()
	d0 := c.env.Depth()

	h := c.beginCatch()
	if err := c.compileBody(body); err != nil {
		return Declined, err
	}
	c.endCatch(h, d0)
	c.storeLocal(resTmp)
	c.env.Emit(bytecode.OpPop)
	c.env.Emit(bytecode.OpPushReturnOptions)
	c.storeLocal(optTmp)
	c.env.Emit(bytecode.OpPop)

	if finally == nil {
		if err := c.tryHandlers(handlers, resTmp, optTmp, d0, false); err != nil {
			return Declined, err
		}
		return Specialized, nil
	}

	// An exception raised by a handler replaces the saved outcome.
	h2 := c.beginCatch()
	if err := c.tryHandlers(handlers, resTmp, optTmp, d0, true); err != nil {
		return Declined, err
	}
	c.env.EndRange(h2)
	c.env.Emit(bytecode.OpEndCatch)
	done := c.env.EmitForwardJump(bytecode.OpJump1)
	c.env.Mark(c.env.CatchLabel(h2))
	c.env.CloseRange(h2)
	c.env.SetDepth(d0)
	c.env.Emit(bytecode.OpPushResult)
	c.storeLocal(resTmp)
	c.env.Emit(bytecode.OpPop)
	c.env.Emit(bytecode.OpPushReturnOptions)
	c.storeLocal(optTmp)
	c.env.Emit(bytecode.OpPop)
	c.env.ResolveHere(done)

	if err := c.compileBody(*finally); err != nil {
		return Declined, err
	}
	c.env.Emit(bytecode.OpPop)
	c.loadLocal(optTmp)
	c.loadLocal(resTmp)
	c.env.Emit(bytecode.OpReturnStk)
	return Specialized, nil
}

// tryHandlers dispatches on the completion code. Without a finally script
// an unmatched outcome is returned or re-raised directly and a handler's
// value is the result. With one, every path leaves the stack at d0 and a
// handler's outcome is saved for the finally script.
func (c *Compiler) tryHandlers(handlers []tryHandler, resTmp, optTmp, d0 int, saveOutcome bool) error {
	labels := make([]bytecode.Label, len(handlers))
	var cur bytecode.Label
	for k := len(handlers) - 1; k >= 0; k-- {
		if !handlers[k].fall {
			cur = c.env.NewLabel()
		}
		labels[k] = cur
	}

	var ends []*bytecode.Fixup
	c.env.Emit(bytecode.OpPushReturnCode)
	for k, hd := range handlers {
		c.env.SetDepth(d0 + 1)
		c.env.Emit(bytecode.OpDup)
		c.env.PushLiteral(strconv.Itoa(hd.code))
		c.env.Emit(bytecode.OpEq)
		next := c.env.EmitForwardJump(bytecode.OpJumpFalse1)
		var nextTrap *bytecode.Fixup
		if hd.trap && len(hd.pattern) > 0 {
			c.loadLocal(optTmp)
			c.env.PushLiteral("-errorcode")
			c.env.Emit(bytecode.OpDictGet, 1)
			c.env.Emit(bytecode.OpListRangeImm, 0, len(hd.pattern)-1)
			c.env.PushLiteral(parser.MergeList(hd.pattern))
			c.env.Emit(bytecode.OpStrEq)
			nextTrap = c.env.EmitForwardJump(bytecode.OpJumpFalse1)
		}
		c.env.Emit(bytecode.OpPop)
		// The matching handler binds its own variables, even when it falls
		// through to the next body.
		for v, slot := range hd.vars {
			if v == 0 {
				c.loadLocal(resTmp)
			} else {
				c.loadLocal(optTmp)
			}
			c.storeLocal(slot)
			c.env.Emit(bytecode.OpPop)
		}
		if hd.fall {
			c.env.EmitJumpTo(bytecode.OpJump1, labels[k])
		} else {
			c.env.Mark(labels[k])
			if err := c.compileBody(hd.body); err != nil {
				return err
			}
			if saveOutcome {
				c.storeLocal(resTmp)
				c.env.Emit(bytecode.OpPop)
				c.env.PushLiteral(okOptions)
				c.storeLocal(optTmp)
				c.env.Emit(bytecode.OpPop)
			}
			ends = append(ends, c.env.EmitForwardJump(bytecode.OpJump1))
		}
		c.env.ResolveHere(next)
		if nextTrap != nil {
			c.env.ResolveHere(nextTrap)
		}
	}

	// No handler matched.
	c.env.SetDepth(d0 + 1)
	c.env.Emit(bytecode.OpPop)
	if !saveOutcome {
		c.loadLocal(optTmp)
		c.loadLocal(resTmp)
		c.env.Emit(bytecode.OpReturnStk)
	}
	for _, f := range ends {
		c.env.ResolveHere(f)
	}
	if saveOutcome {
		c.env.SetDepth(d0)
	} else {
		c.env.SetDepth(d0 + 1)
	}
	return nil
}

// ---------------------------------------------------------------------------
// return / error
// ---------------------------------------------------------------------------

// compileReturn handles literal options. -code and -level become immediate
// operands; every option is also kept in the options dictionary.
func compileReturn(c *Compiler, cmd *command) (Result, error) {
	args := cmd.words[1:]
	nOpts := len(args)
	hasValue := len(args)%2 == 1
	if hasValue {
		nOpts--
	}
	code, level := 0, 1
	var extra []string
	for i := 1; i <= nOpts; i += 2 {
		key, ok := cmd.literal(i)
		if !ok {
			return Declined, nil
		}
		val, ok := cmd.literal(i + 1)
		if !ok {
			return Declined, nil
		}
		switch key {
		case "-code":
			v, ok := completionCode(val)
			if !ok {
				return Declined, nil
			}
			code = v
		case "-level":
			v, err := strconv.Atoi(val)
			if err != nil || v < 0 {
				return Declined, nil
			}
			level = v
		case "-options":
			return Declined, nil
		default:
			extra = append(extra, key, val)
		}
	}

	opts := append([]string{"-code", strconv.Itoa(code), "-level", strconv.Itoa(level)}, extra...)
	c.env.PushLiteral(parser.MergeList(opts))
	if hasValue {
		if err := c.compileWord(cmd, len(cmd.words)-1); err != nil {
			return Declined, err
		}
	} else {
		c.env.PushLiteral("")
	}
	c.env.Emit(bytecode.OpReturnImm, code, level)
	return Specialized, nil
}

func compileError(c *Compiler, cmd *command) (Result, error) {
	if cmd.numArgs() != 1 {
		return Declined, nil
	}
	c.env.PushLiteral("-code 1 -level 0")
	if err := c.compileWord(cmd, 1); err != nil {
		return Declined, err
	}
	c.env.Emit(bytecode.OpReturnImm, 1, 0)
	return Specialized, nil
}
