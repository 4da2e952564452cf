package vm

import (
	"strconv"
	"strings"

	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

const okOptions = "-code 0 -level 0"

// execState is one activation of a compiled unit.
type execState struct {
	in    *Interp
	bc    *bytecode.ByteCode
	frame *Frame
	stack []string
	temps []*Var

	// range index -> stack depth when execution last reached its start
	base   []int
	starts map[int][]int
	// stack depths of open expanded invocations
	expand []int
	// parsed value lists of running foreach loops, by aux index
	lists map[int][][]string

	// outcome of the last caught exception
	result  string
	code    int
	options string
}

// exec runs bc with frame as the current variable scope.
func (in *Interp) exec(bc *bytecode.ByteCode, frame *Frame) (string, error) {
	saved := in.frame
	in.frame = frame
	defer func() { in.frame = saved }()

	st := &execState{
		in:      in,
		bc:      bc,
		frame:   frame,
		stack:   make([]string, 0, bc.MaxStackDepth),
		temps:   make([]*Var, len(bc.Locals)),
		base:    make([]int, len(bc.ExceptRanges)),
		options: okOptions,
	}
	if len(bc.ExceptRanges) > 0 {
		st.starts = make(map[int][]int)
		for i, r := range bc.ExceptRanges {
			st.starts[r.CodeOffset] = append(st.starts[r.CodeOffset], i)
		}
	}
	return st.run()
}

func (st *execState) run() (string, error) {
	pc := 0
	for {
		if rs, ok := st.starts[pc]; ok {
			for _, r := range rs {
				st.base[r] = len(st.stack)
			}
		}
		ins, err := bytecode.Decode(st.bc.Code, pc)
		if err != nil {
			return "", errorf("%s", err.Error())
		}
		if ins.Op == bytecode.OpDone {
			return st.pop(), nil
		}
		next, err := st.step(ins, pc+ins.Size)
		if err != nil {
			next, err = st.handle(pc, err)
			if err != nil {
				st.addErrorInfo(err, pc)
				return "", err
			}
		}
		pc = next
	}
}

// ---------------------------------------------------------------------------
// Stack
// ---------------------------------------------------------------------------

func (st *execState) push(s string) { st.stack = append(st.stack, s) }

func (st *execState) pop() string {
	n := len(st.stack) - 1
	s := st.stack[n]
	st.stack = st.stack[:n]
	return s
}

func (st *execState) popN(n int) []string {
	k := len(st.stack) - n
	out := append([]string(nil), st.stack[k:]...)
	st.stack = st.stack[:k]
	return out
}

// pushResult pushes s or passes err on.
func (st *execState) pushResult(s string, err error) error {
	if err != nil {
		return err
	}
	st.push(s)
	return nil
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func (st *execState) slot(i int) varRef {
	lv := st.bc.Locals[i]
	if lv.IsTemp {
		if st.temps[i] == nil {
			st.temps[i] = &Var{}
		}
		return varRef{v: st.temps[i]}
	}
	return varRef{v: st.in.resolve(st.frame, lv.Name), name: lv.Name}
}

func (st *execState) slotElem(i int, index string) varRef {
	r := st.slot(i)
	r.index, r.elem = index, true
	return r
}

func (st *execState) named(name string) varRef {
	return varRef{v: st.in.resolve(st.frame, name), name: name}
}

func (st *execState) namedElem(name, index string) varRef {
	return st.in.element(st.frame, name, index)
}

func (st *execState) namedAny(name string) varRef {
	return st.in.lookup(st.frame, name)
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// step executes one instruction and returns the next pc.
func (st *execState) step(ins bytecode.Instruction, next int) (int, error) {
	op := ins.Op
	var a0 int
	if len(ins.Operands) > 0 {
		a0 = ins.Operands[0]
	}
	var err error

	switch op {
	case bytecode.OpNop, bytecode.OpBeginCatch4:

	case bytecode.OpPush1, bytecode.OpPush4:
		st.push(st.bc.Literals[a0])
	case bytecode.OpPop:
		st.pop()
	case bytecode.OpDup:
		st.push(st.stack[len(st.stack)-1])
	case bytecode.OpConcat1:
		st.push(strings.Join(st.popN(a0), ""))

	// Invocation
	case bytecode.OpInvokeStk1, bytecode.OpInvokeStk4:
		err = st.pushResult(st.in.invoke(st.popN(a0)))
	case bytecode.OpEvalStk:
		err = st.pushResult(st.in.evalScript(st.pop()))
	case bytecode.OpExprStk:
		err = st.pushResult(st.in.evalExpr(st.pop()))
	case bytecode.OpExpandStart:
		st.expand = append(st.expand, len(st.stack))
	case bytecode.OpExpandStkTop:
		var elems []string
		elems, err = splitList(st.pop())
		if err == nil {
			st.stack = append(st.stack, elems...)
		}
	case bytecode.OpInvokeExpanded:
		mark := st.expand[len(st.expand)-1]
		st.expand = st.expand[:len(st.expand)-1]
		err = st.pushResult(st.in.invoke(st.popN(len(st.stack) - mark)))

	// Local slots
	case bytecode.OpLoadScalar1, bytecode.OpLoadScalar4:
		err = st.pushResult(st.slot(a0).get())
	case bytecode.OpLoadArray1, bytecode.OpLoadArray4:
		err = st.pushResult(st.slotElem(a0, st.pop()).get())
	case bytecode.OpStoreScalar1, bytecode.OpStoreScalar4:
		err = st.pushResult(st.slot(a0).set(st.pop()))
	case bytecode.OpStoreArray1, bytecode.OpStoreArray4:
		val := st.pop()
		err = st.pushResult(st.slotElem(a0, st.pop()).set(val))
	case bytecode.OpIncrScalar1, bytecode.OpIncrScalar4:
		err = st.pushResult(st.slot(a0).incr(st.pop()))
	case bytecode.OpIncrScalar1Imm:
		err = st.pushResult(st.slot(a0).incr(strconv.Itoa(ins.Operands[1])))
	case bytecode.OpIncrArray1, bytecode.OpIncrArray4:
		amount := st.pop()
		err = st.pushResult(st.slotElem(a0, st.pop()).incr(amount))
	case bytecode.OpIncrArray1Imm:
		err = st.pushResult(st.slotElem(a0, st.pop()).incr(strconv.Itoa(ins.Operands[1])))
	case bytecode.OpAppendScalar1, bytecode.OpAppendScalar4:
		err = st.pushResult(st.slot(a0).appendString(st.pop()))
	case bytecode.OpAppendArray1, bytecode.OpAppendArray4:
		val := st.pop()
		err = st.pushResult(st.slotElem(a0, st.pop()).appendString(val))
	case bytecode.OpLappendScalar1, bytecode.OpLappendScalar4:
		err = st.pushResult(st.slot(a0).lappend(st.pop()))
	case bytecode.OpLappendArray1, bytecode.OpLappendArray4:
		val := st.pop()
		err = st.pushResult(st.slotElem(a0, st.pop()).lappend(val))
	case bytecode.OpUnsetScalar4:
		err = st.slot(ins.Operands[1]).unset(a0 == 0)
	case bytecode.OpUnsetArray4:
		err = st.slotElem(ins.Operands[1], st.pop()).unset(a0 == 0)

	// Named variables
	case bytecode.OpLoadScalarStk:
		err = st.pushResult(st.named(st.pop()).get())
	case bytecode.OpLoadArrayStk:
		idx := st.pop()
		err = st.pushResult(st.namedElem(st.pop(), idx).get())
	case bytecode.OpLoadStk:
		err = st.pushResult(st.namedAny(st.pop()).get())
	case bytecode.OpStoreScalarStk:
		val := st.pop()
		err = st.pushResult(st.named(st.pop()).set(val))
	case bytecode.OpStoreArrayStk:
		val, idx := st.pop(), st.pop()
		err = st.pushResult(st.namedElem(st.pop(), idx).set(val))
	case bytecode.OpStoreStk:
		val := st.pop()
		err = st.pushResult(st.namedAny(st.pop()).set(val))
	case bytecode.OpIncrScalarStk:
		amount := st.pop()
		err = st.pushResult(st.named(st.pop()).incr(amount))
	case bytecode.OpIncrScalarStkImm:
		err = st.pushResult(st.named(st.pop()).incr(strconv.Itoa(a0)))
	case bytecode.OpIncrArrayStk:
		amount, idx := st.pop(), st.pop()
		err = st.pushResult(st.namedElem(st.pop(), idx).incr(amount))
	case bytecode.OpIncrArrayStkImm:
		idx := st.pop()
		err = st.pushResult(st.namedElem(st.pop(), idx).incr(strconv.Itoa(a0)))
	case bytecode.OpIncrStk:
		amount := st.pop()
		err = st.pushResult(st.namedAny(st.pop()).incr(amount))
	case bytecode.OpIncrStkImm:
		err = st.pushResult(st.namedAny(st.pop()).incr(strconv.Itoa(a0)))
	case bytecode.OpAppendArrayStk:
		val, idx := st.pop(), st.pop()
		err = st.pushResult(st.namedElem(st.pop(), idx).appendString(val))
	case bytecode.OpAppendStk:
		val := st.pop()
		err = st.pushResult(st.namedAny(st.pop()).appendString(val))
	case bytecode.OpLappendArrayStk:
		val, idx := st.pop(), st.pop()
		err = st.pushResult(st.namedElem(st.pop(), idx).lappend(val))
	case bytecode.OpLappendStk:
		val := st.pop()
		err = st.pushResult(st.namedAny(st.pop()).lappend(val))
	case bytecode.OpUnsetArrayStk:
		idx := st.pop()
		err = st.namedElem(st.pop(), idx).unset(a0 == 0)
	case bytecode.OpUnsetStk:
		err = st.namedAny(st.pop()).unset(a0 == 0)

	// Jumps
	case bytecode.OpJump1, bytecode.OpJump4:
		return ins.Target(), nil
	case bytecode.OpJumpTrue1, bytecode.OpJumpTrue4, bytecode.OpJumpFalse1, bytecode.OpJumpFalse4:
		b, err := expectBool(st.pop())
		if err != nil {
			return 0, err
		}
		onTrue := op == bytecode.OpJumpTrue1 || op == bytecode.OpJumpTrue4
		if b == onTrue {
			return ins.Target(), nil
		}
	case bytecode.OpJumpTable:
		if d, ok := st.bc.AuxData[a0].JumpTable.Lookup(st.pop()); ok {
			return ins.Offset + d, nil
		}

	// Operators
	case bytecode.OpStrMatch:
		pattern := st.pop()
		st.push(boolString(globMatch(pattern, st.pop(), a0 != 0)))
	case bytecode.OpRegexp:
		pattern := st.pop()
		var ok bool
		ok, err = regexpMatch(pattern, st.pop(), a0 != 0)
		if err == nil {
			st.push(boolString(ok))
		}
	case bytecode.OpUplus, bytecode.OpUminus, bytecode.OpBitNot, bytecode.OpNot, bytecode.OpTryCvtToNumeric:
		err = st.pushResult(unaryOp(op, st.pop()))

	// Exceptions
	case bytecode.OpBreak:
		return 0, &Exception{Code: CodeBreak, Options: "-code 3 -level 0"}
	case bytecode.OpContinue:
		return 0, &Exception{Code: CodeContinue, Options: "-code 4 -level 0"}
	case bytecode.OpEndCatch:
		st.code, st.options = CodeOK, okOptions
	case bytecode.OpPushResult:
		st.push(st.result)
	case bytecode.OpPushReturnCode:
		st.push(strconv.Itoa(st.code))
	case bytecode.OpPushReturnOptions:
		st.push(st.options)
	case bytecode.OpReturnImm:
		result, options := st.pop(), st.pop()
		err = st.pushResult(completeReturn(a0, ins.Operands[1], result, options))
	case bytecode.OpReturnStk:
		result, options := st.pop(), st.pop()
		code, level, perr := parseReturnOptions(options)
		if perr != nil {
			return 0, perr
		}
		err = st.pushResult(completeReturn(code, level, result, options))
	case bytecode.OpSyntax:
		return 0, errorf("%s", st.pop())

	// Lists
	case bytecode.OpList:
		st.push(parser.MergeList(st.popN(a0)))
	case bytecode.OpListLength:
		var elems []string
		elems, err = splitList(st.pop())
		if err == nil {
			st.push(strconv.Itoa(len(elems)))
		}
	case bytecode.OpListIndex:
		idx := st.pop()
		err = st.pushResult(listIndex(st.pop(), idx))
	case bytecode.OpListRangeImm:
		err = st.pushResult(listRange(st.pop(), a0, ins.Operands[1]))
	case bytecode.OpDictGet:
		keys := st.popN(a0)
		err = st.pushResult(dictGet(st.pop(), keys))

	// Iteration
	case bytecode.OpForeachStart4:
		err = st.foreachStart(a0)
	case bytecode.OpForeachStep4:
		err = st.pushResult(st.foreachStep(a0))

	case bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpBitAnd,
		bytecode.OpEq, bytecode.OpNeq, bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe,
		bytecode.OpLshift, bytecode.OpRshift,
		bytecode.OpAdd, bytecode.OpSub, bytecode.OpMult, bytecode.OpDiv, bytecode.OpMod, bytecode.OpExpon,
		bytecode.OpStrEq, bytecode.OpStrNeq, bytecode.OpListIn, bytecode.OpListNotIn:
		b := st.pop()
		err = st.pushResult(binaryOp(op, st.pop(), b))

	default:
		return 0, errorf("unsupported instruction %s at %d", op, ins.Offset)
	}
	if err != nil {
		return 0, err
	}
	return next, nil
}

// completeReturn finishes a return: a plain value at level 0, the given
// completion at level 0, a return in flight otherwise.
func completeReturn(code, level int, result, options string) (string, error) {
	switch {
	case level == 0 && code == CodeOK:
		return result, nil
	case level == 0:
		return "", raise(code, result, options)
	}
	return "", &Exception{Code: CodeReturn, Result: result, Options: options, ReturnCode: code, Level: level}
}

// parseReturnOptions reads -code and -level from a return options
// dictionary. Other keys are carried along untouched.
func parseReturnOptions(options string) (code, level int, err error) {
	elems, err := splitList(options)
	if err != nil {
		return 0, 0, err
	}
	if len(elems)%2 != 0 {
		return 0, 0, errorf("missing value to go with key")
	}
	level = 1
	for i := 0; i < len(elems); i += 2 {
		switch elems[i] {
		case "-code":
			c, ok := parseCompletionCode(elems[i+1])
			if !ok {
				return 0, 0, errorf("bad completion code %q: must be ok, error, return, break, continue, or an integer", elems[i+1])
			}
			code = c
		case "-level":
			l, ok := parseInt(elems[i+1])
			if !ok || l < 0 {
				return 0, 0, errorf("bad -level value: expected non-negative integer but got %q", elems[i+1])
			}
			level = int(l)
		}
	}
	return code, level, nil
}

func parseCompletionCode(s string) (int, bool) {
	switch s {
	case "ok":
		return CodeOK, true
	case "error":
		return CodeError, true
	case "return":
		return CodeReturn, true
	case "break":
		return CodeBreak, true
	case "continue":
		return CodeContinue, true
	}
	n, ok := parseInt(s)
	return int(n), ok
}

func listRange(list string, from, to int) (string, error) {
	elems, err := splitList(list)
	if err != nil {
		return "", err
	}
	if to < 0 || to >= len(elems) {
		to = len(elems) - 1
	}
	if from < 0 {
		from = 0
	}
	if from > to {
		return "", nil
	}
	return parser.MergeList(elems[from : to+1]), nil
}

// ---------------------------------------------------------------------------
// foreach
// ---------------------------------------------------------------------------

func (st *execState) foreachStart(aux int) error {
	info := st.bc.AuxData[aux].Foreach
	lists := make([][]string, len(info.ListTemps))
	for k, tmp := range info.ListTemps {
		v, err := st.slot(tmp).get()
		if err != nil {
			return err
		}
		if lists[k], err = splitList(v); err != nil {
			return err
		}
	}
	if st.lists == nil {
		st.lists = make(map[int][][]string)
	}
	st.lists[aux] = lists
	_, err := st.slot(info.CounterTemp).set("0")
	return err
}

// foreachStep assigns the values of the next iteration and reports
// whether there was one.
func (st *execState) foreachStep(aux int) (string, error) {
	info := st.bc.AuxData[aux].Foreach
	cv, err := st.slot(info.CounterTemp).get()
	if err != nil {
		return "", err
	}
	n, _ := strconv.Atoi(cv)
	lists := st.lists[aux]
	more := false
	for k, list := range lists {
		if n*len(info.VarSlots[k]) < len(list) {
			more = true
		}
	}
	if !more {
		return "0", nil
	}
	for k, list := range lists {
		per := len(info.VarSlots[k])
		for j, slot := range info.VarSlots[k] {
			val := ""
			if i := n*per + j; i < len(list) {
				val = list[i]
			}
			if _, err := st.slot(slot).set(val); err != nil {
				return "", errorf("couldn't set loop variable: %q", st.bc.Locals[slot].Name)
			}
		}
	}
	if _, err := st.slot(info.CounterTemp).set(strconv.Itoa(n + 1)); err != nil {
		return "", err
	}
	return "1", nil
}

// ---------------------------------------------------------------------------
// Exception ranges
// ---------------------------------------------------------------------------

// handle routes an exception raised at pc to the innermost range that
// takes it and returns the pc to resume at.
func (st *execState) handle(pc int, err error) (int, error) {
	exc := asException(err)
	for {
		r := st.findRange(pc, exc.Code)
		if r < 0 {
			return 0, exc
		}
		rng := st.bc.ExceptRanges[r]
		if rng.Kind == bytecode.LoopRange {
			target := rng.BreakOffset
			if exc.Code == CodeContinue {
				target = rng.ContinueOffset
			}
			if target < 0 {
				exc = errorf(`invoked "continue" outside of a loop`)
				continue
			}
			st.unwind(r)
			return target, nil
		}
		st.unwind(r)
		st.result, st.code, st.options = exc.Result, exc.Code, exc.Options
		if st.options == "" {
			st.options = "-code " + strconv.Itoa(exc.Code) + " -level 0"
		}
		return rng.CatchOffset, nil
	}
}

// findRange picks the innermost range around pc that accepts code. Loop
// ranges only take break and continue.
func (st *execState) findRange(pc, code int) int {
	best := -1
	loopOK := code == CodeBreak || code == CodeContinue
	for i, r := range st.bc.ExceptRanges {
		if !r.Contains(pc) || (r.Kind == bytecode.LoopRange && !loopOK) {
			continue
		}
		if best < 0 || r.NestingLevel > st.bc.ExceptRanges[best].NestingLevel {
			best = i
		}
	}
	return best
}

// unwind drops what range r's body left on the stack.
func (st *execState) unwind(r int) {
	depth := st.base[r]
	st.stack = st.stack[:depth]
	for len(st.expand) > 0 && st.expand[len(st.expand)-1] > depth {
		st.expand = st.expand[:len(st.expand)-1]
	}
}

// addErrorInfo records the command that raised an uncaught error.
func (st *execState) addErrorInfo(err error, pc int) {
	exc, ok := err.(*Exception)
	if !ok || exc.Code != CodeError || st.bc.Source == "" {
		return
	}
	loc, ok := st.bc.CommandAt(pc)
	if !ok {
		return
	}
	end := loc.SrcOffset + loc.SrcLen
	if loc.SrcOffset < 0 || end > len(st.bc.Source) {
		return
	}
	text := st.bc.Source[loc.SrcOffset:end]
	if len(text) > 150 {
		text = text[:150] + "..."
	}
	if exc.ErrorInfo == "" {
		exc.ErrorInfo = exc.Result + "\n    while executing\n\"" + text + "\""
	} else {
		exc.ErrorInfo += "\n    invoked from within\n\"" + text + "\""
	}
}
