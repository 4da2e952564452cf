package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing.
func (bc *ByteCode) Disassemble() string {
	return bc.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (bc *ByteCode) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; tickle bytecode v%d, %d bytes, max stack %d\n",
		bc.Version, len(bc.Code), bc.MaxStackDepth))

	// Locals
	if len(bc.Locals) > 0 {
		sb.WriteString(fmt.Sprintf("; Locals (%d, %d args):\n", len(bc.Locals), bc.NumArgs))
		for i, v := range bc.Locals {
			switch {
			case v.IsTemp:
				sb.WriteString(fmt.Sprintf(";   %%%d <temp>\n", i))
			case v.IsArg:
				sb.WriteString(fmt.Sprintf(";   %%%d %s (arg)\n", i, v.Name))
			default:
				sb.WriteString(fmt.Sprintf(";   %%%d %s\n", i, v.Name))
			}
		}
	}
	sb.WriteString("\n")

	// Literals
	if len(bc.Literals) > 0 {
		sb.WriteString("; Literals:\n")
		for i, s := range bc.Literals {
			refs := 0
			if i < len(bc.LiteralRefs) {
				refs = bc.LiteralRefs[i]
			}
			sb.WriteString(fmt.Sprintf(";   [%3d] %q refs=%d\n", i, displayLiteral(s), refs))
		}
		sb.WriteString("\n")
	}

	// Exception ranges
	if len(bc.ExceptRanges) > 0 {
		sb.WriteString("; Exception ranges:\n")
		for i, r := range bc.ExceptRanges {
			sb.WriteString(fmt.Sprintf(";   [%d] %s level=%d code=%04X-%04X",
				i, r.Kind, r.NestingLevel, r.CodeOffset, r.CodeOffset+r.NumCodeBytes))
			if r.Kind == LoopRange {
				sb.WriteString(fmt.Sprintf(" break=%s continue=%s", hexOrNone(r.BreakOffset), hexOrNone(r.ContinueOffset)))
			} else {
				sb.WriteString(fmt.Sprintf(" catch=%s", hexOrNone(r.CatchOffset)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	// Aux data
	if len(bc.AuxData) > 0 {
		sb.WriteString("; Aux data:\n")
		for i, a := range bc.AuxData {
			switch a.Kind {
			case AuxJumpTable:
				sb.WriteString(fmt.Sprintf(";   [%d] jumptable", i))
				for k, key := range a.JumpTable.Keys {
					sb.WriteString(fmt.Sprintf(" %q=>%+d", displayLiteral(key), a.JumpTable.Offsets[k]))
				}
			case AuxForeach:
				sb.WriteString(fmt.Sprintf(";   [%d] foreach counter=%%%d lists=%v vars=%v",
					i, a.Foreach.CounterTemp, a.Foreach.ListTemps, a.Foreach.VarSlots))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	// Code section
	sb.WriteString("; Code:\n")
	offset := 0
	for offset < len(bc.Code) {
		line, size := bc.disassembleInstruction(offset)
		sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		if size == 0 {
			break
		}
		offset += size
	}

	return sb.String()
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (bc *ByteCode) disassembleInstruction(offset int) (string, int) {
	in, err := Decode(bc.Code, offset)
	if err != nil {
		return fmt.Sprintf("<%v>", err), 0
	}
	info := GetOpcodeInfo(in.Op)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-18s", info.Name))
	for i, k := range info.Operands {
		v := in.Operands[i]
		if i > 0 {
			sb.WriteString(" ")
		}
		switch k {
		case OperandOffset1, OperandOffset4:
			sb.WriteString(fmt.Sprintf("%+d -> %04X", v, offset+v))
		case OperandLit1, OperandLit4:
			sb.WriteString(fmt.Sprintf("%d", v))
			if v < len(bc.Literals) {
				sb.WriteString(fmt.Sprintf(" ; %q", displayLiteral(bc.Literals[v])))
			}
		case OperandLocal1, OperandLocal4:
			sb.WriteString(fmt.Sprintf("%%%d", v))
			if v < len(bc.Locals) && bc.Locals[v].Name != "" {
				sb.WriteString(fmt.Sprintf(" ; %s", bc.Locals[v].Name))
			}
		case OperandAux4:
			sb.WriteString(fmt.Sprintf("aux%d", v))
		case OperandRange4:
			sb.WriteString(fmt.Sprintf("range%d", v))
		default:
			sb.WriteString(fmt.Sprintf("%d", v))
		}
	}
	return strings.TrimRight(sb.String(), " "), in.Size
}

func displayLiteral(s string) string {
	// Truncate long strings for readability
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}

func hexOrNone(off int) string {
	if off < 0 {
		return "-"
	}
	return fmt.Sprintf("%04X", off)
}
