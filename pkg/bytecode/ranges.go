package bytecode

import "fmt"

// RangeKind distinguishes loop ranges from catch ranges.
type RangeKind int

const (
	LoopRange RangeKind = iota
	CatchRange
)

func (k RangeKind) String() string {
	switch k {
	case LoopRange:
		return "loop"
	case CatchRange:
		return "catch"
	}
	return fmt.Sprintf("RangeKind(%d)", int(k))
}

// ExceptRange is the frozen form of an exception range. Offsets not used by
// the range kind are -1.
type ExceptRange struct {
	Kind           RangeKind `cbor:"1,keyasint"`
	NestingLevel   int       `cbor:"2,keyasint"`
	CodeOffset     int       `cbor:"3,keyasint"`
	NumCodeBytes   int       `cbor:"4,keyasint"`
	BreakOffset    int       `cbor:"5,keyasint"`
	ContinueOffset int       `cbor:"6,keyasint"`
	CatchOffset    int       `cbor:"7,keyasint"`
}

// Contains reports whether pc lies in the range body.
func (r ExceptRange) Contains(pc int) bool {
	return pc >= r.CodeOffset && pc < r.CodeOffset+r.NumCodeBytes
}

type rangeState struct {
	kind             RangeKind
	level            int
	start, end       Label
	brk, cont, catch Label
	open             bool
}

// DeclareRange opens a new exception range nested inside the current ones
// and returns its handle. Break, continue and catch labels are allocated
// unbound; the construct compiler marks the ones it uses.
func (e *Env) DeclareRange(kind RangeKind) int {
	r := &rangeState{
		kind:  kind,
		level: len(e.openRanges),
		start: e.NewLabel(),
		end:   e.NewLabel(),
		brk:   e.NewLabel(),
		cont:  e.NewLabel(),
		catch: e.NewLabel(),
		open:  true,
	}
	e.ranges = append(e.ranges, r)
	h := len(e.ranges) - 1
	e.openRanges = append(e.openRanges, h)
	return h
}

// BeginRange marks the start of the range body.
func (e *Env) BeginRange(h int) { e.Mark(e.ranges[h].start) }

// EndRange marks the end of the range body.
func (e *Env) EndRange(h int) { e.Mark(e.ranges[h].end) }

// CloseRange pops h, which must be the innermost open range.
func (e *Env) CloseRange(h int) {
	n := len(e.openRanges)
	if n == 0 || e.openRanges[n-1] != h {
		panic(fmt.Sprintf("bytecode: closing range %d out of order", h))
	}
	e.openRanges = e.openRanges[:n-1]
	e.ranges[h].open = false
	e.closed++
}

// BreakLabel returns the label a break in range h jumps to.
func (e *Env) BreakLabel(h int) Label { return e.ranges[h].brk }

// ContinueLabel returns the label a continue in range h jumps to.
func (e *Env) ContinueLabel(h int) Label { return e.ranges[h].cont }

// CatchLabel returns the label of the handler for range h.
func (e *Env) CatchLabel(h int) Label { return e.ranges[h].catch }

// RangeKindOf returns the kind of range h.
func (e *Env) RangeKindOf(h int) RangeKind { return e.ranges[h].kind }

// InnermostRange returns the innermost open range.
func (e *Env) InnermostRange() (int, bool) {
	if len(e.openRanges) == 0 {
		return -1, false
	}
	return e.openRanges[len(e.openRanges)-1], true
}

// OpenRanges returns the number of open ranges.
func (e *Env) OpenRanges() int { return len(e.openRanges) }

// RangeCounts returns how many ranges were declared and closed.
func (e *Env) RangeCounts() (declared, closed int) {
	return len(e.ranges), e.closed
}

// Range returns the current offsets of range h.
func (e *Env) Range(h int) ExceptRange {
	r := e.ranges[h]
	start := e.LabelOffset(r.start)
	end := e.LabelOffset(r.end)
	n := -1
	if start >= 0 && end >= 0 {
		n = end - start
	}
	er := ExceptRange{
		Kind:           r.kind,
		NestingLevel:   r.level,
		CodeOffset:     start,
		NumCodeBytes:   n,
		BreakOffset:    e.LabelOffset(r.brk),
		ContinueOffset: e.LabelOffset(r.cont),
		CatchOffset:    e.LabelOffset(r.catch),
	}
	if r.kind == CatchRange {
		er.BreakOffset, er.ContinueOffset = -1, -1
	} else {
		er.CatchOffset = -1
	}
	return er
}
