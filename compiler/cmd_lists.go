package compiler

import (
	"github.com/chazu/tickle/pkg/bytecode"
)

func init() {
	register("list", compileList)
	register("llength", compileLlength)
	register("lindex", compileLindex)
}

func compileList(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n == 0 {
		c.env.PushLiteral("")
		return Specialized, nil
	}
	for i := 1; i <= n; i++ {
		if err := c.compileWord(cmd, i); err != nil {
			return Declined, err
		}
	}
	c.env.Emit(bytecode.OpList, n)
	return Specialized, nil
}

func compileLlength(c *Compiler, cmd *command) (Result, error) {
	if cmd.numArgs() != 1 {
		return Declined, nil
	}
	if err := c.compileWord(cmd, 1); err != nil {
		return Declined, err
	}
	c.env.Emit(bytecode.OpListLength)
	return Specialized, nil
}

// compileLindex handles the list-only and single-index forms. Nested index
// paths go through the command.
func compileLindex(c *Compiler, cmd *command) (Result, error) {
	n := cmd.numArgs()
	if n != 1 && n != 2 {
		return Declined, nil
	}
	for i := 1; i <= n; i++ {
		if err := c.compileWord(cmd, i); err != nil {
			return Declined, err
		}
	}
	if n == 2 {
		c.env.Emit(bytecode.OpListIndex)
	}
	return Specialized, nil
}
