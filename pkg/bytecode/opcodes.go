package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack and literals (0x00-0x0F)
	// ========================================================================

	OpNop     Opcode = 0x00 // No operation
	OpDone    Opcode = 0x01 // Pop the result and finish the unit
	OpPush1   Opcode = 0x02 // Push literal: OpPush1 <lit:u8>
	OpPush4   Opcode = 0x03 // Push literal: OpPush4 <lit:u32>
	OpPop     Opcode = 0x04 // Pop top of stack
	OpDup     Opcode = 0x05 // Duplicate top of stack
	OpConcat1 Opcode = 0x06 // Pop n values, push their concatenation: <n:u8>

	// ========================================================================
	// Invocation (0x10-0x1F)
	// ========================================================================

	OpInvokeStk1     Opcode = 0x10 // Pop n words, invoke word 0: <n:u8>
	OpInvokeStk4     Opcode = 0x11 // Pop n words, invoke word 0: <n:u32>
	OpEvalStk        Opcode = 0x12 // Pop a script and evaluate it
	OpExprStk        Opcode = 0x13 // Pop an expression and evaluate it
	OpExpandStart    Opcode = 0x14 // Mark the stack for an expanded invocation
	OpExpandStkTop   Opcode = 0x15 // Replace TOS with its list elements: <depth:u32>
	OpInvokeExpanded Opcode = 0x16 // Invoke everything pushed since OpExpandStart

	// ========================================================================
	// Local-slot variables (0x20-0x3F)
	// ========================================================================

	OpLoadScalar1     Opcode = 0x20 // Push local: <slot:u8>
	OpLoadScalar4     Opcode = 0x21 // Push local: <slot:u32>
	OpLoadArray1      Opcode = 0x22 // Pop index, push element: <slot:u8>
	OpLoadArray4      Opcode = 0x23 // Pop index, push element: <slot:u32>
	OpStoreScalar1    Opcode = 0x24 // Store TOS (kept): <slot:u8>
	OpStoreScalar4    Opcode = 0x25 // Store TOS (kept): <slot:u32>
	OpStoreArray1     Opcode = 0x26 // Pop value and index, store, push value: <slot:u8>
	OpStoreArray4     Opcode = 0x27 // Pop value and index, store, push value: <slot:u32>
	OpIncrScalar1     Opcode = 0x28 // Pop amount, increment, push result: <slot:u8>
	OpIncrScalar4     Opcode = 0x29 // Pop amount, increment, push result: <slot:u32>
	OpIncrScalar1Imm  Opcode = 0x2A // Increment by immediate: <slot:u8> <amount:i8>
	OpIncrArray1      Opcode = 0x2B // Pop amount and index: <slot:u8>
	OpIncrArray4      Opcode = 0x2C // Pop amount and index: <slot:u32>
	OpIncrArray1Imm   Opcode = 0x2D // Pop index, increment by immediate: <slot:u8> <amount:i8>
	OpAppendScalar1   Opcode = 0x2E // Pop value, append: <slot:u8>
	OpAppendScalar4   Opcode = 0x2F // Pop value, append: <slot:u32>
	OpAppendArray1    Opcode = 0x30 // Pop value and index, append: <slot:u8>
	OpAppendArray4    Opcode = 0x31 // Pop value and index, append: <slot:u32>
	OpLappendScalar1  Opcode = 0x32 // Pop value, list-append: <slot:u8>
	OpLappendScalar4  Opcode = 0x33 // Pop value, list-append: <slot:u32>
	OpLappendArray1   Opcode = 0x34 // Pop value and index, list-append: <slot:u8>
	OpLappendArray4   Opcode = 0x35 // Pop value and index, list-append: <slot:u32>
	OpUnsetScalar4   Opcode = 0x36 // Unset local: <flags:u8> <slot:u32>
	OpUnsetArray4    Opcode = 0x37 // Pop index, unset element: <flags:u8> <slot:u32>

	// ========================================================================
	// Named variables (0x40-0x5F): names are runtime values on the stack
	// ========================================================================

	OpLoadScalarStk    Opcode = 0x40 // Pop name, push value
	OpLoadArrayStk     Opcode = 0x41 // Pop index and name, push element
	OpLoadStk          Opcode = 0x42 // Pop name (possibly name(index)), push value
	OpStoreScalarStk   Opcode = 0x43 // Pop value and name, store, push value
	OpStoreArrayStk    Opcode = 0x44 // Pop value, index and name, store, push value
	OpStoreStk         Opcode = 0x45 // Pop value and name(index), store, push value
	OpIncrScalarStk    Opcode = 0x46 // Pop amount and name, push result
	OpIncrScalarStkImm Opcode = 0x47 // Pop name, push result: <amount:i8>
	OpIncrArrayStk     Opcode = 0x48 // Pop amount, index and name, push result
	OpIncrArrayStkImm  Opcode = 0x49 // Pop index and name, push result: <amount:i8>
	OpIncrStk          Opcode = 0x4A // Pop amount and name(index), push result
	OpIncrStkImm       Opcode = 0x4B // Pop name(index), push result: <amount:i8>
	OpAppendArrayStk   Opcode = 0x4C // Pop value, index and name, push result
	OpAppendStk        Opcode = 0x4D // Pop value and name(index), push result
	OpLappendArrayStk  Opcode = 0x4E // Pop value, index and name, push result
	OpLappendStk       Opcode = 0x4F // Pop value and name(index), push result
	OpUnsetArrayStk    Opcode = 0x50 // Pop index and name, unset: <flags:u8>
	OpUnsetStk         Opcode = 0x51 // Pop name(index), unset: <flags:u8>

	// ========================================================================
	// Jumps (0x60-0x6F): distances are relative to the jump opcode
	// ========================================================================

	OpJump1      Opcode = 0x60 // <dist:i8>
	OpJump4      Opcode = 0x61 // <dist:i32>
	OpJumpTrue1  Opcode = 0x62 // Pop, jump if true: <dist:i8>
	OpJumpTrue4  Opcode = 0x63 // Pop, jump if true: <dist:i32>
	OpJumpFalse1 Opcode = 0x64 // Pop, jump if false: <dist:i8>
	OpJumpFalse4 Opcode = 0x65 // Pop, jump if false: <dist:i32>
	OpJumpTable  Opcode = 0x66 // Pop key, jump via table or fall through: <aux:u32>

	// ========================================================================
	// Binary operators (0x70-0x8F)
	// ========================================================================

	OpBitOr     Opcode = 0x70
	OpBitXor    Opcode = 0x71
	OpBitAnd    Opcode = 0x72
	OpEq        Opcode = 0x73
	OpNeq       Opcode = 0x74
	OpLt        Opcode = 0x75
	OpGt        Opcode = 0x76
	OpLe        Opcode = 0x77
	OpGe        Opcode = 0x78
	OpLshift    Opcode = 0x79
	OpRshift    Opcode = 0x7A
	OpAdd       Opcode = 0x7B
	OpSub       Opcode = 0x7C
	OpMult      Opcode = 0x7D
	OpDiv       Opcode = 0x7E
	OpMod       Opcode = 0x7F
	OpExpon     Opcode = 0x80
	OpStrEq     Opcode = 0x81
	OpStrNeq    Opcode = 0x82
	OpStrMatch  Opcode = 0x83 // Pop pattern, then string: <nocase:u8>
	OpRegexp    Opcode = 0x84 // Pop pattern, then string: <nocase:u8>
	OpListIn    Opcode = 0x85
	OpListNotIn Opcode = 0x86

	// ========================================================================
	// Unary operators (0x90-0x9F)
	// ========================================================================

	OpUplus           Opcode = 0x90
	OpUminus          Opcode = 0x91
	OpBitNot          Opcode = 0x92
	OpNot             Opcode = 0x93
	OpTryCvtToNumeric Opcode = 0x94 // Convert TOS to a number when it looks like one

	// ========================================================================
	// Exceptions and returns (0xA0-0xAF)
	// ========================================================================

	OpBreak             Opcode = 0xA0
	OpContinue          Opcode = 0xA1
	OpBeginCatch4       Opcode = 0xA2 // Enter a catch range: <range:u32>
	OpEndCatch          Opcode = 0xA3 // Leave the innermost catch range
	OpPushResult        Opcode = 0xA4 // Push the interpreter result
	OpPushReturnCode    Opcode = 0xA5 // Push the last completion code
	OpPushReturnOptions Opcode = 0xA6 // Push the return options dictionary
	OpReturnImm         Opcode = 0xA7 // Pop options and result: <code:i32> <level:u32>
	OpReturnStk         Opcode = 0xA8 // Pop options and result
	OpSyntax            Opcode = 0xA9 // Pop message and raise it as an error

	// ========================================================================
	// Lists and dictionaries (0xB0-0xBF)
	// ========================================================================

	OpList         Opcode = 0xB0 // Pop n values, push a list: <n:u32>
	OpListLength   Opcode = 0xB1
	OpListIndex    Opcode = 0xB2 // Pop index and list, push element
	OpListRangeImm Opcode = 0xB3 // <from:i32> <to:i32>; -1 as "to" means end
	OpDictGet      Opcode = 0xB4 // Pop n keys and a dict, push value: <n:u32>

	// ========================================================================
	// Iteration (0xC0-0xCF)
	// ========================================================================

	OpForeachStart4 Opcode = 0xC0 // Reset the iteration counter: <aux:u32>
	OpForeachStep4  Opcode = 0xC1 // Assign next values, push 1 or 0: <aux:u32>
)

// OperandKind describes how one operand is encoded.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandInt1             // signed 8-bit
	OperandInt4             // signed 32-bit
	OperandUint1            // unsigned 8-bit count or flag
	OperandUint4            // unsigned 32-bit count
	OperandOffset1          // signed 8-bit jump distance
	OperandOffset4          // signed 32-bit jump distance
	OperandLit1             // literal index, 8-bit
	OperandLit4             // literal index, 32-bit
	OperandLocal1           // local slot, 8-bit
	OperandLocal4           // local slot, 32-bit
	OperandAux4             // aux data index
	OperandRange4           // exception range index
)

// Width returns the encoded size of the operand in bytes.
func (k OperandKind) Width() int {
	switch k {
	case OperandInt1, OperandUint1, OperandOffset1, OperandLit1, OperandLocal1:
		return 1
	case OperandNone:
		return 0
	}
	return 4
}

// Signed reports whether the operand is a two's-complement value.
func (k OperandKind) Signed() bool {
	switch k {
	case OperandInt1, OperandInt4, OperandOffset1, OperandOffset4:
		return true
	}
	return false
}

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string        // Human-readable name
	Operands  []OperandKind // Operand encodings, in order
	StackPop  int           // Values popped (-1 = depends on the first operand)
	StackPush int           // Values pushed
}

// Size returns the total instruction size in bytes.
func (info OpcodeInfo) Size() int {
	n := 1
	for _, k := range info.Operands {
		n += k.Width()
	}
	return n
}

type ops = []OperandKind

var (
	noOps    = ops{}
	lit1     = ops{OperandLit1}
	lit4     = ops{OperandLit4}
	local1   = ops{OperandLocal1}
	local4   = ops{OperandLocal4}
	count1   = ops{OperandUint1}
	count4   = ops{OperandUint4}
	offset1  = ops{OperandOffset1}
	offset4  = ops{OperandOffset4}
	aux4     = ops{OperandAux4}
	imm1     = ops{OperandInt1}
	localImm = ops{OperandLocal1, OperandInt1}
	unset4   = ops{OperandUint1, OperandLocal4}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack and literals
	OpNop:     {"nop", noOps, 0, 0},
	OpDone:    {"done", noOps, 1, 0},
	OpPush1:   {"push1", lit1, 0, 1},
	OpPush4:   {"push4", lit4, 0, 1},
	OpPop:     {"pop", noOps, 1, 0},
	OpDup:     {"dup", noOps, 1, 2},
	OpConcat1: {"concat1", count1, -1, 1},

	// Invocation
	OpInvokeStk1:     {"invokeStk1", count1, -1, 1},
	OpInvokeStk4:     {"invokeStk4", count4, -1, 1},
	OpEvalStk:        {"evalStk", noOps, 1, 1},
	OpExprStk:        {"exprStk", noOps, 1, 1},
	OpExpandStart:    {"expandStart", noOps, 0, 0},
	OpExpandStkTop:   {"expandStkTop", count4, 1, 1},
	OpInvokeExpanded: {"invokeExpanded", noOps, 0, 1},

	// Local-slot variables
	OpLoadScalar1:    {"loadScalar1", local1, 0, 1},
	OpLoadScalar4:    {"loadScalar4", local4, 0, 1},
	OpLoadArray1:     {"loadArray1", local1, 1, 1},
	OpLoadArray4:     {"loadArray4", local4, 1, 1},
	OpStoreScalar1:   {"storeScalar1", local1, 1, 1},
	OpStoreScalar4:   {"storeScalar4", local4, 1, 1},
	OpStoreArray1:    {"storeArray1", local1, 2, 1},
	OpStoreArray4:    {"storeArray4", local4, 2, 1},
	OpIncrScalar1:    {"incrScalar1", local1, 1, 1},
	OpIncrScalar4:    {"incrScalar4", local4, 1, 1},
	OpIncrScalar1Imm: {"incrScalar1Imm", localImm, 0, 1},
	OpIncrArray1:     {"incrArray1", local1, 2, 1},
	OpIncrArray4:     {"incrArray4", local4, 2, 1},
	OpIncrArray1Imm:  {"incrArray1Imm", localImm, 1, 1},
	OpAppendScalar1:  {"appendScalar1", local1, 1, 1},
	OpAppendScalar4:  {"appendScalar4", local4, 1, 1},
	OpAppendArray1:   {"appendArray1", local1, 2, 1},
	OpAppendArray4:   {"appendArray4", local4, 2, 1},
	OpLappendScalar1: {"lappendScalar1", local1, 1, 1},
	OpLappendScalar4: {"lappendScalar4", local4, 1, 1},
	OpLappendArray1:  {"lappendArray1", local1, 2, 1},
	OpLappendArray4:  {"lappendArray4", local4, 2, 1},
	OpUnsetScalar4:   {"unsetScalar4", unset4, 0, 0},
	OpUnsetArray4:    {"unsetArray4", unset4, 1, 0},

	// Named variables
	OpLoadScalarStk:    {"loadScalarStk", noOps, 1, 1},
	OpLoadArrayStk:     {"loadArrayStk", noOps, 2, 1},
	OpLoadStk:          {"loadStk", noOps, 1, 1},
	OpStoreScalarStk:   {"storeScalarStk", noOps, 2, 1},
	OpStoreArrayStk:    {"storeArrayStk", noOps, 3, 1},
	OpStoreStk:         {"storeStk", noOps, 2, 1},
	OpIncrScalarStk:    {"incrScalarStk", noOps, 2, 1},
	OpIncrScalarStkImm: {"incrScalarStkImm", imm1, 1, 1},
	OpIncrArrayStk:     {"incrArrayStk", noOps, 3, 1},
	OpIncrArrayStkImm:  {"incrArrayStkImm", imm1, 2, 1},
	OpIncrStk:          {"incrStk", noOps, 2, 1},
	OpIncrStkImm:       {"incrStkImm", imm1, 1, 1},
	OpAppendArrayStk:   {"appendArrayStk", noOps, 3, 1},
	OpAppendStk:        {"appendStk", noOps, 2, 1},
	OpLappendArrayStk:  {"lappendArrayStk", noOps, 3, 1},
	OpLappendStk:       {"lappendStk", noOps, 2, 1},
	OpUnsetArrayStk:    {"unsetArrayStk", count1, 2, 0},
	OpUnsetStk:         {"unsetStk", count1, 1, 0},

	// Jumps
	OpJump1:      {"jump1", offset1, 0, 0},
	OpJump4:      {"jump4", offset4, 0, 0},
	OpJumpTrue1:  {"jumpTrue1", offset1, 1, 0},
	OpJumpTrue4:  {"jumpTrue4", offset4, 1, 0},
	OpJumpFalse1: {"jumpFalse1", offset1, 1, 0},
	OpJumpFalse4: {"jumpFalse4", offset4, 1, 0},
	OpJumpTable:  {"jumpTable", aux4, 1, 0},

	// Binary operators
	OpBitOr:     {"bitor", noOps, 2, 1},
	OpBitXor:    {"bitxor", noOps, 2, 1},
	OpBitAnd:    {"bitand", noOps, 2, 1},
	OpEq:        {"eq", noOps, 2, 1},
	OpNeq:       {"neq", noOps, 2, 1},
	OpLt:        {"lt", noOps, 2, 1},
	OpGt:        {"gt", noOps, 2, 1},
	OpLe:        {"le", noOps, 2, 1},
	OpGe:        {"ge", noOps, 2, 1},
	OpLshift:    {"lshift", noOps, 2, 1},
	OpRshift:    {"rshift", noOps, 2, 1},
	OpAdd:       {"add", noOps, 2, 1},
	OpSub:       {"sub", noOps, 2, 1},
	OpMult:      {"mult", noOps, 2, 1},
	OpDiv:       {"div", noOps, 2, 1},
	OpMod:       {"mod", noOps, 2, 1},
	OpExpon:     {"expon", noOps, 2, 1},
	OpStrEq:     {"streq", noOps, 2, 1},
	OpStrNeq:    {"strneq", noOps, 2, 1},
	OpStrMatch:  {"strmatch", count1, 2, 1},
	OpRegexp:    {"regexp", count1, 2, 1},
	OpListIn:    {"listIn", noOps, 2, 1},
	OpListNotIn: {"listNotIn", noOps, 2, 1},

	// Unary operators
	OpUplus:           {"uplus", noOps, 1, 1},
	OpUminus:          {"uminus", noOps, 1, 1},
	OpBitNot:          {"bitnot", noOps, 1, 1},
	OpNot:             {"not", noOps, 1, 1},
	OpTryCvtToNumeric: {"tryCvtToNumeric", noOps, 1, 1},

	// Exceptions and returns
	OpBreak:             {"break", noOps, 0, 0},
	OpContinue:          {"continue", noOps, 0, 0},
	OpBeginCatch4:       {"beginCatch4", ops{OperandRange4}, 0, 0},
	OpEndCatch:          {"endCatch", noOps, 0, 0},
	OpPushResult:        {"pushResult", noOps, 0, 1},
	OpPushReturnCode:    {"pushReturnCode", noOps, 0, 1},
	OpPushReturnOptions: {"pushReturnOptions", noOps, 0, 1},
	OpReturnImm:         {"returnImm", ops{OperandInt4, OperandUint4}, 2, 1},
	OpReturnStk:         {"returnStk", noOps, 2, 1},
	OpSyntax:            {"syntax", noOps, 1, 1},

	// Lists and dictionaries
	OpList:         {"list", count4, -1, 1},
	OpListLength:   {"listLength", noOps, 1, 1},
	OpListIndex:    {"listIndex", noOps, 2, 1},
	OpListRangeImm: {"listRangeImm", ops{OperandInt4, OperandInt4}, 1, 1},
	OpDictGet:      {"dictGet", count4, -1, 1},

	// Iteration
	OpForeachStart4: {"foreach_start4", aux4, 0, 0},
	OpForeachStep4:  {"foreach_step4", aux4, 0, 1},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), Operands: noOps}
}

// IsValid reports whether op is a known opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// StackEffect returns the net change in stack depth caused by op. For
// variable-effect opcodes, operand is the count encoded in the instruction.
func StackEffect(op Opcode, operand int) int {
	info := GetOpcodeInfo(op)
	pop := info.StackPop
	if pop < 0 {
		pop = operand
		if op == OpDictGet {
			pop = operand + 1
		}
	}
	return info.StackPush - pop
}

// ---------------------------------------------------------------------------
// Width families
// ---------------------------------------------------------------------------

var wideForms = map[Opcode]Opcode{
	OpJump1:          OpJump4,
	OpJumpTrue1:      OpJumpTrue4,
	OpJumpFalse1:     OpJumpFalse4,
	OpPush1:          OpPush4,
	OpInvokeStk1:     OpInvokeStk4,
	OpLoadScalar1:    OpLoadScalar4,
	OpLoadArray1:     OpLoadArray4,
	OpStoreScalar1:   OpStoreScalar4,
	OpStoreArray1:    OpStoreArray4,
	OpIncrScalar1:    OpIncrScalar4,
	OpIncrArray1:     OpIncrArray4,
	OpAppendScalar1:  OpAppendScalar4,
	OpAppendArray1:   OpAppendArray4,
	OpLappendScalar1: OpLappendScalar4,
	OpLappendArray1:  OpLappendArray4,
}

// Wide returns the 4-byte form of a 1-byte opcode, or op itself.
func (op Opcode) Wide() Opcode {
	if w, ok := wideForms[op]; ok {
		return w
	}
	return op
}

// IsJump reports whether op is a relative jump.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJump1, OpJump4, OpJumpTrue1, OpJumpTrue4, OpJumpFalse1, OpJumpFalse4:
		return true
	}
	return false
}
