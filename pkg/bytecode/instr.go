package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset   int
	Op       Opcode
	Operands []int
	Size     int
}

// Decode reads the instruction at pc.
func Decode(code []byte, pc int) (Instruction, error) {
	if pc < 0 || pc >= len(code) {
		return Instruction{}, fmt.Errorf("bytecode: pc %d out of range", pc)
	}
	op := Opcode(code[pc])
	info, ok := opcodeInfoTable[op]
	if !ok {
		return Instruction{}, fmt.Errorf("bytecode: unknown opcode 0x%02X at %d", byte(op), pc)
	}
	in := Instruction{Offset: pc, Op: op, Size: info.Size()}
	if pc+in.Size > len(code) {
		return Instruction{}, fmt.Errorf("bytecode: truncated %s at %d", info.Name, pc)
	}
	pos := pc + 1
	for _, k := range info.Operands {
		in.Operands = append(in.Operands, readOperand(code, pos, k))
		pos += k.Width()
	}
	return in, nil
}

// Target returns the absolute jump target for a jump instruction.
func (in Instruction) Target() int {
	return in.Offset + in.Operands[0]
}

func readOperand(code []byte, pos int, k OperandKind) int {
	if k.Width() == 1 {
		if k.Signed() {
			return int(int8(code[pos]))
		}
		return int(code[pos])
	}
	v := binary.BigEndian.Uint32(code[pos:])
	if k.Signed() {
		return int(int32(v))
	}
	return int(v)
}

func putOperand(dst []byte, k OperandKind, v int) {
	if k.Width() == 1 {
		dst[0] = byte(v)
		return
	}
	binary.BigEndian.PutUint32(dst, uint32(int32(v)))
}

// Walk decodes every instruction in code in order.
func Walk(code []byte, fn func(Instruction) error) error {
	for pc := 0; pc < len(code); {
		in, err := Decode(code, pc)
		if err != nil {
			return err
		}
		if err := fn(in); err != nil {
			return err
		}
		pc += in.Size
	}
	return nil
}
