package bytecode

import "fmt"

// Label names a code position. Labels are indices into the environment's
// label table, so they stay valid when widening moves code.
type Label int

const noLabel Label = -1

// Fixup is a jump whose distance is written once its target label is bound.
// Offset always holds the current position of the jump opcode.
type Fixup struct {
	Offset int
	Width  int

	target    Label
	resolved  bool
	index     int
	origWidth int
}

// Target returns the label the jump goes to.
func (f *Fixup) Target() Label { return f.target }

// Resolved reports whether the target has been bound.
func (f *Fixup) Resolved() bool { return f.resolved }

func (f *Fixup) kind() OperandKind {
	if f.Width == 1 {
		return OperandOffset1
	}
	return OperandOffset4
}

// NewLabel allocates an unbound label.
func (e *Env) NewLabel() Label {
	e.labels = append(e.labels, -1)
	return Label(len(e.labels) - 1)
}

// MarkHere allocates a label bound to the current offset.
func (e *Env) MarkHere() Label {
	l := e.NewLabel()
	e.Mark(l)
	return l
}

// Mark binds l to the current offset and resolves every jump waiting on it.
func (e *Env) Mark(l Label) {
	if e.labels[l] >= 0 {
		panic(fmt.Sprintf("bytecode: label %d bound twice", l))
	}
	e.labels[l] = len(e.code)
	e.bindLog = append(e.bindLog, l)
	waiting := false
	for _, j := range e.jumps {
		if !j.resolved && j.target == l {
			j.resolved = true
			e.resolved = append(e.resolved, j)
			waiting = true
		}
	}
	if waiting {
		e.settle()
	}
}

// LabelOffset returns the bound offset of l, or -1.
func (e *Env) LabelOffset(l Label) int {
	if l < 0 {
		return -1
	}
	return e.labels[l]
}

// IsBound reports whether l has been marked.
func (e *Env) IsBound(l Label) bool { return e.LabelOffset(l) >= 0 }

// EmitForwardJump emits the 1-byte form of a jump to a fresh label. The
// returned fixup is resolved by ResolveHere.
func (e *Env) EmitForwardJump(op Opcode) *Fixup {
	return e.EmitJumpTo(op, e.NewLabel())
}

// ResolveHere binds the fixup's target to the current offset.
func (e *Env) ResolveHere(f *Fixup) {
	e.Mark(f.target)
}

// EmitJumpBack emits a jump to an already bound label.
func (e *Env) EmitJumpBack(op Opcode, l Label) *Fixup {
	if !e.IsBound(l) {
		panic(fmt.Sprintf("bytecode: backward jump to unbound label %d", l))
	}
	return e.EmitJumpTo(op, l)
}

// EmitJumpTo emits a jump to l. If l is bound the distance is written now,
// otherwise when l is marked.
func (e *Env) EmitJumpTo(op Opcode, l Label) *Fixup {
	if !op.IsJump() {
		panic(fmt.Sprintf("bytecode: %s is not a jump", op))
	}
	narrow := narrowJump(op)
	at := len(e.code)
	width := 1
	if e.IsBound(l) && !e.fitsNarrow(e.labels[l]-at) {
		width = 4
	}
	op = narrow
	if width == 4 {
		op = narrow.Wide()
	}
	e.Emit(op, 0)
	f := &Fixup{Offset: at, Width: width, target: l, index: len(e.jumps), origWidth: width}
	e.jumps = append(e.jumps, f)
	if e.IsBound(l) {
		f.resolved = true
		e.resolved = append(e.resolved, f)
		e.settle()
	}
	return f
}

func narrowJump(op Opcode) Opcode {
	switch op {
	case OpJump4:
		return OpJump1
	case OpJumpTrue4:
		return OpJumpTrue1
	case OpJumpFalse4:
		return OpJumpFalse1
	}
	return op
}

func (e *Env) fitsNarrow(d int) bool {
	lim := e.NarrowJumpLimit
	if lim > 127 {
		lim = 127
	}
	if lim < 0 {
		lim = 0
	}
	return d >= -lim-1 && d <= lim
}

// settle writes the distance of every resolved jump, widening any that no
// longer fits. Each widening moves later code, so the pass repeats until
// nothing changes.
func (e *Env) settle() {
	for {
		widened := false
		for _, j := range e.jumps {
			if !j.resolved {
				continue
			}
			d := e.labels[j.target] - j.Offset
			if j.Width == 1 && !e.fitsNarrow(d) {
				e.widen(j)
				widened = true
				break
			}
			putOperand(e.code[j.Offset+1:], j.kind(), d)
		}
		if !widened {
			return
		}
	}
}

// widen rewrites j to its 4-byte form. Three bytes are inserted after the
// opcode, and every label and jump located after the opcode moves with them.
func (e *Env) widen(j *Fixup) {
	const delta = 3
	p := j.Offset
	op := Opcode(e.code[p])
	e.code = append(e.code, make([]byte, delta)...)
	copy(e.code[p+2+delta:], e.code[p+2:len(e.code)-delta])
	e.code[p] = byte(op.Wide())
	j.Width = 4
	for i, off := range e.labels {
		if off > p {
			e.labels[i] = off + delta
		}
	}
	for _, k := range e.jumps {
		if k.Offset > p {
			k.Offset += delta
		}
	}
	if e.Log != nil {
		e.Log.Debugf("widened %s at %d", op, p)
	}
}
