package compiler

import (
	"strings"

	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

func init() {
	register("switch", compileSwitch)
}

type matchMode int

const (
	matchExact matchMode = iota
	matchGlob
	matchRegexp
)

type switchArm struct {
	pattern string
	patWord int // word index of a computed pattern, -1 when literal
	body    scriptText
	// fallthrough arms run the body of the next arm
	fall bool
}

func (a switchArm) literal() bool { return a.patWord < 0 }

// parseSwitchOptions consumes leading options while at least a value and
// an arm list remain. A computed word ends the options and is taken as the
// value.
func parseSwitchOptions(cmd *command) (mode matchMode, nocase bool, next int, ok bool) {
	n := len(cmd.words)
	i := 1
	for ; i < n-2; i++ {
		lit, isLit := cmd.literal(i)
		if !isLit || !strings.HasPrefix(lit, "-") {
			break
		}
		switch lit {
		case "-exact":
			mode = matchExact
		case "-glob":
			mode = matchGlob
		case "-regexp":
			mode = matchRegexp
		case "-nocase":
			nocase = true
		case "--":
			return mode, nocase, i + 1, true
		default:
			return mode, nocase, 0, false
		}
	}
	return mode, nocase, i, true
}

// parseSwitchArms reads the arms either from one braced list word or from
// separate pattern and body words.
func parseSwitchArms(cmd *command, first int) ([]switchArm, bool) {
	var arms []switchArm
	n := len(cmd.words)
	switch {
	case n-first == 1:
		list, ok := cmd.script(first)
		if !ok {
			return nil, false
		}
		var elems []scriptText
		pos := list.start
		for {
			el, next, found, err := parser.FindElement(list.src, pos, list.end)
			if err != nil {
				return nil, false
			}
			if !found {
				break
			}
			t := scriptText{src: list.src, start: el.ContentStart, end: el.ContentStart + el.ContentSize, tracked: list.tracked}
			if !el.Literal {
				v, err := el.Value(list.src)
				if err != nil {
					return nil, false
				}
				t = decodedText(v)
			}
			elems = append(elems, t)
			pos = next
		}
		if len(elems) == 0 || len(elems)%2 != 0 {
			return nil, false
		}
		for k := 0; k < len(elems); k += 2 {
			body := elems[k+1]
			arms = append(arms, switchArm{pattern: elems[k].String(), patWord: -1, body: body, fall: body.String() == "-"})
		}

	case n-first >= 2 && (n-first)%2 == 0:
		for k := first; k < n; k += 2 {
			arm := switchArm{patWord: -1}
			if lit, ok := cmd.literal(k); ok {
				arm.pattern = lit
			} else {
				arm.patWord = k
			}
			body, ok := cmd.script(k + 1)
			if !ok {
				return nil, false
			}
			arm.body = body
			arm.fall = body.String() == "-"
			arms = append(arms, arm)
		}

	default:
		return nil, false
	}
	if arms[len(arms)-1].fall {
		return nil, false
	}
	return arms, true
}

// compileSwitch dispatches through a jump table when every arm is an exact,
// case-sensitive literal and there are enough of them, and through a chain
// of compare-and-branch tests otherwise.
func compileSwitch(c *Compiler, cmd *command) (Result, error) {
	if cmd.numArgs() < 2 {
		return Declined, nil
	}
	mode, nocase, valueWord, ok := parseSwitchOptions(cmd)
	if !ok || valueWord >= len(cmd.words)-1 {
		return Declined, nil
	}
	arms, ok := parseSwitchArms(cmd, valueWord+1)
	if !ok {
		return Declined, nil
	}

	def := -1
	last := arms[len(arms)-1]
	if last.literal() && last.pattern == "default" {
		def = len(arms) - 1
	}
	allLiteral := true
	for _, a := range arms {
		if !a.literal() {
			allLiteral = false
		}
	}
	if mode == matchExact && nocase && !allLiteral {
		return Declined, nil
	}

	// Fallthrough arms share the label of the next arm with a body.
	labels := make([]bytecode.Label, len(arms))
	var cur bytecode.Label
	for k := len(arms) - 1; k >= 0; k-- {
		if !arms[k].fall {
			cur = c.env.NewLabel()
		}
		labels[k] = cur
	}

	d0 := c.env.Depth()
	if err := c.compileWord(cmd, valueWord); err != nil {
		return Declined, err
	}
	tested := len(arms)
	if def >= 0 {
		tested--
	}

	useTable := mode == matchExact && !nocase && allLiteral && tested >= c.cfg.JumpTableMinArms
	var err error
	if useTable {
		err = c.switchJumpTable(arms, labels, def, d0)
	} else {
		err = c.switchChain(cmd, arms, labels, def, d0, mode, nocase)
	}
	if err != nil {
		return Declined, err
	}
	return Specialized, nil
}

func (c *Compiler) switchJumpTable(arms []switchArm, labels []bytecode.Label, def, d0 int) error {
	tbl := c.env.NewJumpTable()
	for k, a := range arms {
		if k == def {
			continue
		}
		c.env.AddJumpTableEntry(tbl, a.pattern, labels[k])
	}
	c.env.EmitJumpTable(tbl)

	var noMatch *bytecode.Fixup
	if def >= 0 {
		c.env.EmitJumpTo(bytecode.OpJump1, labels[def])
	} else {
		noMatch = c.env.EmitForwardJump(bytecode.OpJump1)
	}
	ends, err := c.switchBodies(arms, labels, d0, false)
	if err != nil {
		return err
	}
	if noMatch != nil {
		ends = append(ends, c.env.EmitForwardJump(bytecode.OpJump1))
		c.env.ResolveHere(noMatch)
		c.env.SetDepth(d0)
		c.env.PushLiteral("")
	}
	for _, f := range ends {
		c.env.ResolveHere(f)
	}
	c.env.SetDepth(d0 + 1)
	return nil
}

func (c *Compiler) switchChain(cmd *command, arms []switchArm, labels []bytecode.Label, def, d0 int, mode matchMode, nocase bool) error {
	flag := 0
	if nocase {
		flag = 1
	}
	for k, a := range arms {
		if k == def {
			continue
		}
		c.env.Emit(bytecode.OpDup)
		if a.literal() {
			pattern := a.pattern
			if mode == matchExact && nocase {
				pattern = globQuote(pattern)
			}
			c.env.PushLiteral(pattern)
		} else if err := c.compileWord(cmd, a.patWord); err != nil {
			return err
		}
		switch {
		case mode == matchExact && !nocase:
			c.env.Emit(bytecode.OpStrEq)
		case mode == matchRegexp:
			c.env.Emit(bytecode.OpRegexp, flag)
		default:
			c.env.Emit(bytecode.OpStrMatch, flag)
		}
		c.env.EmitJumpTo(bytecode.OpJumpTrue1, labels[k])
	}

	var noMatch *bytecode.Fixup
	if def >= 0 {
		c.env.EmitJumpTo(bytecode.OpJump1, labels[def])
	} else {
		noMatch = c.env.EmitForwardJump(bytecode.OpJump1)
	}
	ends, err := c.switchBodies(arms, labels, d0+1, true)
	if err != nil {
		return err
	}
	if noMatch != nil {
		ends = append(ends, c.env.EmitForwardJump(bytecode.OpJump1))
		c.env.ResolveHere(noMatch)
		c.env.SetDepth(d0 + 1)
		c.env.Emit(bytecode.OpPop)
		c.env.PushLiteral("")
	}
	for _, f := range ends {
		c.env.ResolveHere(f)
	}
	c.env.SetDepth(d0 + 1)
	return nil
}

// switchBodies emits every arm with a body at its label. When popValue is
// set the switch value is still on the stack on entry.
func (c *Compiler) switchBodies(arms []switchArm, labels []bytecode.Label, depth int, popValue bool) ([]*bytecode.Fixup, error) {
	var ends []*bytecode.Fixup
	lastBody := len(arms) - 1
	for k, a := range arms {
		if a.fall {
			continue
		}
		c.env.Mark(labels[k])
		c.env.SetDepth(depth)
		if popValue {
			c.env.Emit(bytecode.OpPop)
		}
		if err := c.compileBody(a.body); err != nil {
			return nil, err
		}
		if k != lastBody {
			ends = append(ends, c.env.EmitForwardJump(bytecode.OpJump1))
		}
	}
	return ends, nil
}
