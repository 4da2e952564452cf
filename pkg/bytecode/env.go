package bytecode

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// DefaultNarrowJumpLimit is the largest forward distance encoded in a 1-byte
// jump operand.
const DefaultNarrowJumpLimit = 127

// Env is the compile environment: an append-only code buffer plus the
// literal pool, local slots, stack depth tracking, labels, exception ranges
// and aux data that instructions refer to.
//
// Offsets that must survive jump widening are never stored as ints. They are
// kept as Labels, which the environment shifts whenever it grows the buffer.
type Env struct {
	// NarrowJumpLimit bounds 1-byte jump distances. Values above 127 are
	// clamped; 0 forces nearly every jump into its 4-byte form.
	NarrowJumpLimit int

	// Strict panics on negative stack depth instead of clamping.
	Strict bool

	// Locals is nil outside procedure scope.
	Locals *LocalTable

	Log commonlog.Logger

	code     []byte
	depth    int
	maxDepth int

	literals []string
	litRefs  []int
	litIndex map[string]int
	litLog   []int

	labels   []int
	bindLog  []Label
	jumps    []*Fixup
	resolved []*Fixup

	ranges     []*rangeState
	openRanges []int
	closed     int

	aux     []AuxData
	auxMeta []*jumpTableState

	cmds []cmdState
}

// NewEnv creates an empty environment. locals may be nil.
func NewEnv(locals *LocalTable) *Env {
	return &Env{
		NarrowJumpLimit: DefaultNarrowJumpLimit,
		Locals:          locals,
		litIndex:        make(map[string]int),
	}
}

// Offset returns the current end of the code buffer.
func (e *Env) Offset() int { return len(e.code) }

// Code returns the code buffer. The slice is invalidated by later emits.
func (e *Env) Code() []byte { return e.code }

// ---------------------------------------------------------------------------
// Stack depth
// ---------------------------------------------------------------------------

// Depth returns the tracked operand stack depth.
func (e *Env) Depth() int { return e.depth }

// MaxDepth returns the largest depth seen so far.
func (e *Env) MaxDepth() int { return e.maxDepth }

// SetDepth resets the tracked depth, used before each alternative of a branch.
func (e *Env) SetDepth(d int) {
	e.depth = d
	if d > e.maxDepth {
		e.maxDepth = d
	}
}

// AdjustDepth applies a stack effect not captured by the opcode table.
func (e *Env) AdjustDepth(delta int) {
	e.depth += delta
	if e.depth < 0 {
		if e.Strict {
			panic(fmt.Sprintf("bytecode: negative stack depth %d at offset %d", e.depth, len(e.code)))
		}
		e.depth = 0
	}
	if e.depth > e.maxDepth {
		e.maxDepth = e.depth
	}
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// Emit appends op with the given operands and applies its stack effect.
// It returns the offset of the opcode byte.
func (e *Env) Emit(op Opcode, operands ...int) int {
	info := GetOpcodeInfo(op)
	if len(operands) != len(info.Operands) {
		panic(fmt.Sprintf("bytecode: %s takes %d operands, got %d", info.Name, len(info.Operands), len(operands)))
	}
	at := len(e.code)
	e.code = append(e.code, byte(op))
	for i, k := range info.Operands {
		var buf [4]byte
		putOperand(buf[:], k, operands[i])
		e.code = append(e.code, buf[:k.Width()]...)
	}
	count := 0
	if len(operands) > 0 {
		count = operands[0]
	}
	e.AdjustDepth(StackEffect(op, count))
	return at
}

// EmitSized picks the 1-byte form of op when operand fits in a byte and the
// 4-byte form otherwise. op must be the 1-byte member of a width family.
func (e *Env) EmitSized(op Opcode, operand int) int {
	if operand >= 0 && operand <= 0xFF {
		return e.Emit(op, operand)
	}
	return e.Emit(op.Wide(), operand)
}

// EmitInvoke emits an invocation of the top n stack values.
func (e *Env) EmitInvoke(n int) int {
	return e.EmitSized(OpInvokeStk1, n)
}

// EmitConcat concatenates the top n values. Runs longer than 255 are joined
// in chunks.
func (e *Env) EmitConcat(n int) {
	for n > 255 {
		e.Emit(OpConcat1, 255)
		n -= 254
	}
	if n > 1 {
		e.Emit(OpConcat1, n)
	}
}

// ---------------------------------------------------------------------------
// Literal pool
// ---------------------------------------------------------------------------

// AddLiteral registers s, reusing an existing entry with the same bytes.
func (e *Env) AddLiteral(s string) int {
	if idx, ok := e.litIndex[s]; ok {
		return idx
	}
	idx := len(e.literals)
	e.literals = append(e.literals, s)
	e.litRefs = append(e.litRefs, 0)
	e.litIndex[s] = idx
	return idx
}

// PushLiteral emits a push of s and counts the reference.
func (e *Env) PushLiteral(s string) int {
	idx := e.AddLiteral(s)
	e.litRefs[idx]++
	e.litLog = append(e.litLog, idx)
	return e.EmitSized(OpPush1, idx)
}

// Literal returns the pool entry at idx.
func (e *Env) Literal(idx int) string { return e.literals[idx] }

// NumLiterals returns the pool size.
func (e *Env) NumLiterals() int { return len(e.literals) }

// LiteralRefs returns the push count of the entry at idx.
func (e *Env) LiteralRefs(idx int) int { return e.litRefs[idx] }

// ---------------------------------------------------------------------------
// Command locations
// ---------------------------------------------------------------------------

type cmdState struct {
	start, end       Label
	srcStart, srcLen int
}

// BeginCommand records the start of code for the command at the given
// source span and returns a handle for EndCommand.
func (e *Env) BeginCommand(srcStart, srcLen int) int {
	e.cmds = append(e.cmds, cmdState{start: e.MarkHere(), end: noLabel, srcStart: srcStart, srcLen: srcLen})
	return len(e.cmds) - 1
}

// EndCommand closes a command location.
func (e *Env) EndCommand(h int) {
	e.cmds[h].end = e.MarkHere()
}

// ---------------------------------------------------------------------------
// Checkpoint / Rollback
// ---------------------------------------------------------------------------

// Checkpoint captures enough state to undo everything emitted after it.
type Checkpoint struct {
	codeLen, depth, maxDepth int
	numLiterals, litLog      int
	numLabels, bindLog       int
	numJumps, resolved       int
	numRanges, closed        int
	openRanges               []int
	numAux, numCmds          int
	numLocals                int
}

// Checkpoint records the current state.
func (e *Env) Checkpoint() Checkpoint {
	cp := Checkpoint{
		codeLen:     len(e.code),
		depth:       e.depth,
		maxDepth:    e.maxDepth,
		numLiterals: len(e.literals),
		litLog:      len(e.litLog),
		numLabels:   len(e.labels),
		bindLog:     len(e.bindLog),
		numJumps:    len(e.jumps),
		resolved:    len(e.resolved),
		numRanges:   len(e.ranges),
		closed:      e.closed,
		openRanges:  append([]int(nil), e.openRanges...),
		numAux:      len(e.aux),
		numCmds:     len(e.cmds),
		numLocals:   -1,
	}
	if e.Locals != nil {
		cp.numLocals = e.Locals.Len()
	}
	return cp
}

// Rollback discards everything emitted since cp. It fails if a jump
// emitted before cp was widened since, because the bytes it inserted lie
// below the checkpoint.
func (e *Env) Rollback(cp Checkpoint) error {
	for _, j := range e.resolved[cp.resolved:] {
		if j.index < cp.numJumps && j.Width != 1 && j.origWidth == 1 {
			return fmt.Errorf("bytecode: cannot roll back past widened jump at %d", j.Offset)
		}
	}
	for _, j := range e.resolved[cp.resolved:] {
		if j.index < cp.numJumps {
			j.resolved = false
			putOperand(e.code[j.Offset+1:], j.kind(), 0)
		}
	}
	e.resolved = e.resolved[:cp.resolved]
	e.code = e.code[:cp.codeLen]
	e.depth = cp.depth
	e.maxDepth = cp.maxDepth

	for _, idx := range e.litLog[cp.litLog:] {
		e.litRefs[idx]--
	}
	e.litLog = e.litLog[:cp.litLog]
	for _, s := range e.literals[cp.numLiterals:] {
		delete(e.litIndex, s)
	}
	e.literals = e.literals[:cp.numLiterals]
	e.litRefs = e.litRefs[:cp.numLiterals]

	for _, l := range e.bindLog[cp.bindLog:] {
		if int(l) < cp.numLabels {
			e.labels[l] = -1
		}
	}
	e.bindLog = e.bindLog[:cp.bindLog]
	e.labels = e.labels[:cp.numLabels]
	e.jumps = e.jumps[:cp.numJumps]

	e.ranges = e.ranges[:cp.numRanges]
	for _, r := range e.ranges {
		r.open = false
	}
	for _, h := range cp.openRanges {
		e.ranges[h].open = true
	}
	e.openRanges = append(e.openRanges[:0], cp.openRanges...)
	e.closed = cp.closed

	e.aux = e.aux[:cp.numAux]
	e.auxMeta = e.auxMeta[:cp.numAux]
	e.cmds = e.cmds[:cp.numCmds]
	if e.Locals != nil && cp.numLocals >= 0 {
		e.Locals.truncate(cp.numLocals)
	}
	return nil
}
