package compiler

import (
	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

func init() {
	register("foreach", compileForeach)
}

// compileForeach compiles foreach in procedure scope. Each value list is
// evaluated once into a temporary; the step instruction assigns the next
// values and reports whether any list still had elements.
func compileForeach(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if !c.procScope() || n < 3 || n%2 == 0 {
		return Declined, nil
	}
	body, ok := cmd.script(n)
	if !ok {
		return Declined, nil
	}

	var varLists [][]string
	for i := 1; i < n; i += 2 {
		lit, ok := cmd.literal(i)
		if !ok {
			return Declined, nil
		}
		names, err := parser.SplitList(lit)
		if err != nil || len(names) == 0 {
			return Declined, nil
		}
		for _, name := range names {
			if !c.plainLocalName(name) {
				return Declined, nil
			}
		}
		varLists = append(varLists, names)
	}

	info := &bytecode.ForeachInfo{}
	for i := 2; i < n; i += 2 {
		if err := c.compileWord(cmd, i); err != nil {
			return Declined, err
		}
		tmp := c.env.Locals.NewTemp()
		c.env.EmitSized(bytecode.OpStoreScalar1, tmp)
		c.env.Emit(bytecode.OpPop)
		info.ListTemps = append(info.ListTemps, tmp)
	}
	info.CounterTemp = c.env.Locals.NewTemp()
	for _, names := range varLists {
		slots := make([]int, len(names))
		for k, name := range names {
			slots[k] = c.env.Locals.Find(name)
		}
		info.VarSlots = append(info.VarSlots, slots)
	}
	aux := c.env.AddForeach(info)

	c.env.Emit(bytecode.OpForeachStart4, aux)
	d0 := c.env.Depth()
	toStep := c.env.EmitForwardJump(bytecode.OpJump1)
	h, top := c.beginLoopBody()
	if err := c.compileLoopBody(h, body); err != nil {
		return Declined, err
	}
	c.env.Mark(c.env.ContinueLabel(h))
	c.env.ResolveHere(toStep)
	c.env.Emit(bytecode.OpForeachStep4, aux)
	c.env.EmitJumpBack(bytecode.OpJumpTrue1, top)
	c.env.Mark(c.env.BreakLabel(h))
	c.env.CloseRange(h)
	c.env.SetDepth(d0)
	c.env.PushLiteral("")
	return Specialized, nil
}
