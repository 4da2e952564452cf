package bytecode

import (
	"fmt"

	"github.com/google/uuid"
)

// FormatVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const FormatVersion uint16 = 1

// CmdLocation maps a range of code to the source command that produced it.
type CmdLocation struct {
	CodeOffset   int `cbor:"1,keyasint"`
	NumCodeBytes int `cbor:"2,keyasint"`
	SrcOffset    int `cbor:"3,keyasint"`
	SrcLen       int `cbor:"4,keyasint"`
}

// ByteCode is the frozen result of a compilation. It is the unit that the
// executor runs, the cache stores and the wire format carries.
type ByteCode struct {
	Version uint16    `cbor:"1,keyasint"`
	ID      uuid.UUID `cbor:"2,keyasint"`

	// Code section
	Code []byte `cbor:"3,keyasint"`

	// Literal pool and push counts per entry
	Literals    []string `cbor:"4,keyasint"`
	LiteralRefs []int    `cbor:"5,keyasint"`

	// Frame layout; empty outside procedure scope
	Locals  []LocalVar `cbor:"6,keyasint,omitempty"`
	NumArgs int        `cbor:"7,keyasint,omitempty"`

	MaxStackDepth int `cbor:"8,keyasint"`

	ExceptRanges []ExceptRange `cbor:"9,keyasint,omitempty"`
	AuxData      []AuxData     `cbor:"10,keyasint,omitempty"`
	CmdLocations []CmdLocation `cbor:"11,keyasint,omitempty"`

	// Source is the text the code was compiled from.
	Source string `cbor:"12,keyasint,omitempty"`
}

// Build freezes the environment. Every open range must be closed and every
// jump resolved.
func (e *Env) Build() (*ByteCode, error) {
	if n := len(e.openRanges); n > 0 {
		return nil, fmt.Errorf("bytecode: %d exception ranges still open", n)
	}
	for _, j := range e.jumps {
		if !j.resolved {
			return nil, fmt.Errorf("bytecode: unresolved jump at %d", j.Offset)
		}
	}
	aux, err := e.frozenAux()
	if err != nil {
		return nil, err
	}
	bc := &ByteCode{
		Version:       FormatVersion,
		ID:            uuid.New(),
		Code:          append([]byte(nil), e.code...),
		Literals:      append([]string(nil), e.literals...),
		LiteralRefs:   append([]int(nil), e.litRefs...),
		MaxStackDepth: e.maxDepth,
		AuxData:       aux,
	}
	if e.Locals != nil {
		bc.Locals = e.Locals.Vars()
		for _, v := range bc.Locals {
			if v.IsArg {
				bc.NumArgs++
			}
		}
	}
	for h := range e.ranges {
		bc.ExceptRanges = append(bc.ExceptRanges, e.Range(h))
	}
	for _, c := range e.cmds {
		start, end := e.LabelOffset(c.start), e.LabelOffset(c.end)
		if end < 0 {
			end = start
		}
		bc.CmdLocations = append(bc.CmdLocations, CmdLocation{
			CodeOffset:   start,
			NumCodeBytes: end - start,
			SrcOffset:    c.srcStart,
			SrcLen:       c.srcLen,
		})
	}
	if err := bc.Verify(); err != nil {
		return nil, err
	}
	return bc, nil
}

// Verify checks that the code decodes cleanly and that every recorded
// offset points at an instruction boundary.
func (bc *ByteCode) Verify() error {
	starts := make(map[int]bool)
	var jumps []Instruction
	var tables []Instruction
	err := Walk(bc.Code, func(in Instruction) error {
		starts[in.Offset] = true
		switch {
		case in.Op.IsJump():
			jumps = append(jumps, in)
		case in.Op == OpJumpTable:
			tables = append(tables, in)
		}
		return bc.checkOperands(in)
	})
	if err != nil {
		return err
	}
	starts[len(bc.Code)] = true
	for _, in := range jumps {
		if !starts[in.Target()] {
			return fmt.Errorf("bytecode: %s at %d targets %d, not an instruction", in.Op, in.Offset, in.Target())
		}
	}
	for _, in := range tables {
		jt := bc.AuxData[in.Operands[0]].JumpTable
		for i, d := range jt.Offsets {
			if !starts[in.Offset+d] {
				return fmt.Errorf("bytecode: jump table entry %q lands at %d, not an instruction", jt.Keys[i], in.Offset+d)
			}
		}
	}
	for i, r := range bc.ExceptRanges {
		if r.NumCodeBytes < 0 || !starts[r.CodeOffset] || !starts[r.CodeOffset+r.NumCodeBytes] {
			return fmt.Errorf("bytecode: exception range %d has bad bounds %d+%d", i, r.CodeOffset, r.NumCodeBytes)
		}
		for _, off := range []int{r.BreakOffset, r.ContinueOffset, r.CatchOffset} {
			if off >= 0 && !starts[off] {
				return fmt.Errorf("bytecode: exception range %d target %d is not an instruction", i, off)
			}
		}
	}
	return nil
}

func (bc *ByteCode) checkOperands(in Instruction) error {
	info := GetOpcodeInfo(in.Op)
	for i, k := range info.Operands {
		v := in.Operands[i]
		switch k {
		case OperandLit1, OperandLit4:
			if v >= len(bc.Literals) {
				return fmt.Errorf("bytecode: %s at %d: literal %d out of range", in.Op, in.Offset, v)
			}
		case OperandLocal1, OperandLocal4:
			if v >= len(bc.Locals) {
				return fmt.Errorf("bytecode: %s at %d: slot %d out of range", in.Op, in.Offset, v)
			}
		case OperandAux4:
			if v >= len(bc.AuxData) {
				return fmt.Errorf("bytecode: %s at %d: aux %d out of range", in.Op, in.Offset, v)
			}
			want := AuxForeach
			if in.Op == OpJumpTable {
				want = AuxJumpTable
			}
			if bc.AuxData[v].Kind != want {
				return fmt.Errorf("bytecode: %s at %d: aux %d is %s", in.Op, in.Offset, v, bc.AuxData[v].Kind)
			}
		case OperandRange4:
			if v >= len(bc.ExceptRanges) {
				return fmt.Errorf("bytecode: %s at %d: range %d out of range", in.Op, in.Offset, v)
			}
		}
	}
	return nil
}

// CommandAt returns the innermost command location covering pc.
func (bc *ByteCode) CommandAt(pc int) (CmdLocation, bool) {
	best, found := CmdLocation{}, false
	for _, c := range bc.CmdLocations {
		if pc >= c.CodeOffset && pc < c.CodeOffset+c.NumCodeBytes {
			if !found || c.NumCodeBytes <= best.NumCodeBytes {
				best, found = c, true
			}
		}
	}
	return best, found
}
