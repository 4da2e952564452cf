package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mustCompile(t *testing.T, src string, opts ...Option) *bytecode.ByteCode {
	t.Helper()
	bc, err := Compile(src, opts...)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", src, err)
	}
	return bc
}

func mustCompileProc(t *testing.T, src string, params ...string) *bytecode.ByteCode {
	t.Helper()
	bc, err := CompileProcBody(src, params)
	if err != nil {
		t.Fatalf("CompileProcBody(%q) error: %v", src, err)
	}
	return bc
}

func instructions(t *testing.T, bc *bytecode.ByteCode) []bytecode.Instruction {
	t.Helper()
	var out []bytecode.Instruction
	err := bytecode.Walk(bc.Code, func(in bytecode.Instruction) error {
		out = append(out, in)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk error: %v", err)
	}
	return out
}

func opcodes(t *testing.T, bc *bytecode.ByteCode) []bytecode.Opcode {
	t.Helper()
	var out []bytecode.Opcode
	for _, in := range instructions(t, bc) {
		out = append(out, in.Op)
	}
	return out
}

func countOp(t *testing.T, bc *bytecode.ByteCode, op bytecode.Opcode) int {
	t.Helper()
	n := 0
	for _, o := range opcodes(t, bc) {
		if o == op {
			n++
		}
	}
	return n
}

func expectOps(t *testing.T, bc *bytecode.ByteCode, want ...bytecode.Opcode) {
	t.Helper()
	got := opcodes(t, bc)
	if len(got) != len(want) {
		t.Fatalf("Expected %d instructions, got %d\n%s", len(want), len(got), bc.Disassemble())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %s, want %s\n%s", i, got[i], want[i], bc.Disassemble())
		}
	}
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func TestCompileSetNamed(t *testing.T) {
	bc := mustCompile(t, "set x 5")
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpPush1, bytecode.OpStoreScalarStk, bytecode.OpDone)
	if bc.MaxStackDepth != 2 {
		t.Errorf("MaxStackDepth = %d, want 2", bc.MaxStackDepth)
	}
}

func TestCompileSetExprLocal(t *testing.T) {
	bc := mustCompileProc(t, "set x [expr {1+2}]")
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpPush1, bytecode.OpAdd,
		bytecode.OpStoreScalar1, bytecode.OpDone)
	if len(bc.Locals) != 1 || bc.Locals[0].Name != "x" {
		t.Errorf("Expected one local named x, got %+v", bc.Locals)
	}
}

func TestCompileSetExprNamed(t *testing.T) {
	bc := mustCompile(t, "set x [expr {1+2}]")
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpPush1, bytecode.OpPush1, bytecode.OpAdd,
		bytecode.OpStoreScalarStk, bytecode.OpDone)
}

func TestCompileQualifiedNameStaysNamed(t *testing.T) {
	bc := mustCompileProc(t, "set ::g 1")
	if countOp(t, bc, bytecode.OpStoreScalarStk) != 1 {
		t.Errorf("Expected storeScalarStk for a qualified name\n%s", bc.Disassemble())
	}
	if len(bc.Locals) != 0 {
		t.Errorf("Expected no locals, got %+v", bc.Locals)
	}
}

func TestCompileIncrImmediate(t *testing.T) {
	bc := mustCompileProc(t, "incr i 2", "i")
	in := instructions(t, bc)
	if in[0].Op != bytecode.OpIncrScalar1Imm {
		t.Fatalf("Expected incrScalar1Imm, got %s", in[0].Op)
	}
	if in[0].Operands[0] != 0 || in[0].Operands[1] != 2 {
		t.Errorf("Expected operands [0 2], got %v", in[0].Operands)
	}

	bc = mustCompileProc(t, "incr i 1000", "i")
	if countOp(t, bc, bytecode.OpIncrScalar1) != 1 {
		t.Errorf("Expected incrScalar1 for a large amount\n%s", bc.Disassemble())
	}
}

func TestCompileArrayElement(t *testing.T) {
	bc := mustCompileProc(t, "set a(k) v")
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpPush1, bytecode.OpStoreArray1, bytecode.OpDone)

	bc = mustCompileProc(t, "set a($i) v")
	if countOp(t, bc, bytecode.OpStoreArray1) != 1 {
		t.Errorf("Expected storeArray1 for a computed index\n%s", bc.Disassemble())
	}
}

func TestCompileUnset(t *testing.T) {
	bc := mustCompileProc(t, "unset -nocomplain x")
	in := instructions(t, bc)
	if in[0].Op != bytecode.OpUnsetScalar4 || in[0].Operands[0] != unsetNoComplain {
		t.Errorf("Expected unsetScalar4 with nocomplain, got %s %v", in[0].Op, in[0].Operands)
	}

	bc = mustCompile(t, "unset $opt x")
	if countOp(t, bc, bytecode.OpInvokeStk1) != 1 {
		t.Errorf("Expected a computed option word to decline\n%s", bc.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// Generic invocation and declines
// ---------------------------------------------------------------------------

func TestCompileGeneric(t *testing.T) {
	bc := mustCompile(t, "set x 1", WithGeneric())
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpPush1, bytecode.OpPush1,
		bytecode.OpInvokeStk1, bytecode.OpDone)
	in := instructions(t, bc)
	if in[3].Operands[0] != 3 {
		t.Errorf("invoke count = %d, want 3", in[3].Operands[0])
	}
}

func TestDeclinedShapesInvoke(t *testing.T) {
	tests := []string{
		"set",
		"set a b c",
		"incr",
		"lindex $l 1 2",
		"expr",
		"foreach x {1 2} {puts $x}", // global scope
		"while {$x}",
		"switch $x",
		"tcl::mathop::- ",
		"tcl::mathop::< 1 2 3",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			bc := mustCompile(t, src)
			if countOp(t, bc, bytecode.OpInvokeStk1) == 0 {
				t.Errorf("Expected a generic invocation\n%s", bc.Disassemble())
			}
		})
	}
}

func TestDeclinedForeachLeavesNoRecords(t *testing.T) {
	bc := mustCompileProc(t, "foreach {a(1)} $l {set y 1}")
	if len(bc.ExceptRanges) != 0 {
		t.Errorf("Expected no ranges after a decline, got %d", len(bc.ExceptRanges))
	}
	if len(bc.AuxData) != 0 {
		t.Errorf("Expected no aux data after a decline, got %d", len(bc.AuxData))
	}
}

func TestExpansionInvokesExpanded(t *testing.T) {
	bc := mustCompile(t, "set {*}$args")
	if countOp(t, bc, bytecode.OpExpandStart) != 1 || countOp(t, bc, bytecode.OpInvokeExpanded) != 1 {
		t.Errorf("Expected an expanded invocation\n%s", bc.Disassemble())
	}
	if countOp(t, bc, bytecode.OpStoreScalarStk) != 0 {
		t.Errorf("Expected no specialized set\n%s", bc.Disassemble())
	}
}

func TestEmptyLiteralExpansion(t *testing.T) {
	tests := []struct {
		src     string
		invokes int
	}{
		{"{*}{}", 0},
		{"{*}{}; set x 1", 0},
		{"foo a {*}{} b", 1},
		{"foo {*}{} {*}{}", 1},
	}
	for _, tt := range tests {
		bc := mustCompile(t, tt.src)
		if got := countOp(t, bc, bytecode.OpInvokeStk1); got != tt.invokes {
			t.Errorf("%q: invokeStk1 count = %d, want %d\n%s", tt.src, got, tt.invokes, bc.Disassemble())
		}
		if countOp(t, bc, bytecode.OpExpandStart) != 0 {
			t.Errorf("%q: literal expansion should not expand at run time\n%s", tt.src, bc.Disassemble())
		}
	}

	bc := mustCompile(t, "{*}{}")
	expectOps(t, bc, bytecode.OpPush1, bytecode.OpDone)
}

func TestBreakInsideExpansionRaises(t *testing.T) {
	bc := mustCompile(t, "while 1 {lappend r {*}[break]}")
	if countOp(t, bc, bytecode.OpBreak) != 1 {
		t.Errorf("Expected break inside an expanded word to raise\n%s", bc.Disassemble())
	}
	bc = mustCompile(t, "while 1 {lappend r {*}[while 1 {break}]}")
	if countOp(t, bc, bytecode.OpBreak) != 0 {
		t.Errorf("Expected a loop opened inside the expansion to jump\n%s", bc.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func TestCompileExprPrecedence(t *testing.T) {
	bc, err := CompileExpr("2 + 3 * 4")
	if err != nil {
		t.Fatalf("CompileExpr error: %v", err)
	}
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpPush1, bytecode.OpPush1,
		bytecode.OpMult, bytecode.OpAdd, bytecode.OpDone)
}

func TestCompileExprPrimaryConverts(t *testing.T) {
	bc, err := CompileExpr("$x")
	if err != nil {
		t.Fatalf("CompileExpr error: %v", err)
	}
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpLoadScalarStk, bytecode.OpTryCvtToNumeric, bytecode.OpDone)
}

func TestCompileExprShortCircuit(t *testing.T) {
	bc, err := CompileExpr("$a && $b")
	if err != nil {
		t.Fatalf("CompileExpr error: %v", err)
	}
	if n := countOp(t, bc, bytecode.OpJumpFalse1); n != 2 {
		t.Errorf("Expected 2 jumpFalse1, got %d\n%s", n, bc.Disassemble())
	}
	if countOp(t, bc, bytecode.OpBitAnd) != 0 {
		t.Errorf("Expected no bitand\n%s", bc.Disassemble())
	}
}

func TestCompileExprFunctionCall(t *testing.T) {
	bc, err := CompileExpr("max(1, 2)")
	if err != nil {
		t.Fatalf("CompileExpr error: %v", err)
	}
	if bc.Literals[0] != mathfuncNamespace+"max" {
		t.Errorf("Expected first literal %q, got %q", mathfuncNamespace+"max", bc.Literals[0])
	}
	if countOp(t, bc, bytecode.OpInvokeStk1) != 1 {
		t.Errorf("Expected one invocation\n%s", bc.Disassemble())
	}
}

func TestCompileExprRuntimeSyntaxError(t *testing.T) {
	bc := mustCompile(t, "expr {1 +}")
	if countOp(t, bc, bytecode.OpSyntax) != 1 {
		t.Fatalf("Expected a syntax instruction\n%s", bc.Disassemble())
	}
	found := false
	for _, lit := range bc.Literals {
		if strings.HasPrefix(lit, "syntax error in expression") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an expression syntax message in %q", bc.Literals)
	}
}

func TestCompileExprMultipleWords(t *testing.T) {
	bc := mustCompile(t, "expr 1 + $x")
	if countOp(t, bc, bytecode.OpExprStk) != 1 {
		t.Errorf("Expected exprStk\n%s", bc.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestCompileIfConstantPruning(t *testing.T) {
	bc := mustCompile(t, "if 0 {a} else {b}")
	expectOps(t, bc, bytecode.OpPush1, bytecode.OpInvokeStk1, bytecode.OpDone)
	if bc.Literals[0] != "b" {
		t.Errorf("Expected the else body, got %q", bc.Literals)
	}
}

func TestConstantConditionFollowsNumberSyntax(t *testing.T) {
	tests := []struct {
		cond  string
		value bool
		ok    bool
	}{
		{"1", true, true},
		{" 0 ", false, true},
		{"0x10", true, true},
		{"0b0", false, true},
		{"0o7", true, true},
		{"-2.5", true, true},
		{"1e3", true, true},
		{"0.0", false, true},
		{"Yes", true, true},
		{"off", false, true},
		{"1_000", false, false},
		{"0x1p4", false, false},
		{"0x", false, false},
		{"1.5.2", false, false},
		{"08", false, false},
		{"nan", false, false},
		{"$x", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		v, ok := constantBool(tt.cond)
		if v != tt.value || ok != tt.ok {
			t.Errorf("constantBool(%q) = (%v, %v), want (%v, %v)", tt.cond, v, ok, tt.value, tt.ok)
		}
	}

	bc := mustCompile(t, "if {1_000} {a}")
	if countOp(t, bc, bytecode.OpSyntax) != 1 {
		t.Errorf("Expected a malformed number to raise at run time\n%s", bc.Disassemble())
	}
}

func TestCompileIfWithoutElsePushesEmpty(t *testing.T) {
	bc := mustCompile(t, "if {$x} then {set y 1}")
	if countOp(t, bc, bytecode.OpJumpFalse1) != 1 {
		t.Errorf("Expected one conditional branch\n%s", bc.Disassemble())
	}
	if bc.MaxStackDepth > 3 {
		t.Errorf("MaxStackDepth = %d, want at most 3", bc.MaxStackDepth)
	}
}

func TestCompileWhileRotated(t *testing.T) {
	bc := mustCompile(t, "while {$i < 3} {incr i}")
	in := instructions(t, bc)
	if in[0].Op != bytecode.OpJump1 {
		t.Fatalf("Expected the loop to open with jump1, got %s", in[0].Op)
	}
	var back *bytecode.Instruction
	for k := range in {
		if in[k].Op == bytecode.OpJumpTrue1 {
			back = &in[k]
		}
	}
	if back == nil {
		t.Fatalf("Expected a jumpTrue1 back to the body\n%s", bc.Disassemble())
	}
	if back.Target() != in[1].Offset {
		t.Errorf("Expected the test to branch to %d, got %d", in[1].Offset, back.Target())
	}
	if len(bc.ExceptRanges) != 1 || bc.ExceptRanges[0].Kind != bytecode.LoopRange {
		t.Errorf("Expected one loop range, got %+v", bc.ExceptRanges)
	}
}

func TestCompileWhileConstant(t *testing.T) {
	bc := mustCompile(t, "while 0 {incr i}")
	expectOps(t, bc, bytecode.OpPush1, bytecode.OpDone)

	bc = mustCompile(t, "while 1 {break}")
	if countOp(t, bc, bytecode.OpJumpTrue1) != 0 {
		t.Errorf("Expected an unconditional loop\n%s", bc.Disassemble())
	}
	if countOp(t, bc, bytecode.OpBreak) != 0 {
		t.Errorf("Expected break to compile to a jump\n%s", bc.Disassemble())
	}
}

func TestCompileForRanges(t *testing.T) {
	bc := mustCompile(t, "for {set i 0} {$i < 3} {incr i} {set y $i}")
	if len(bc.ExceptRanges) != 2 {
		t.Fatalf("Expected 2 ranges, got %d", len(bc.ExceptRanges))
	}
	body, next := bc.ExceptRanges[0], bc.ExceptRanges[1]
	if body.ContinueOffset != next.CodeOffset {
		t.Errorf("Expected continue to reach the next script at %d, got %d", next.CodeOffset, body.ContinueOffset)
	}
	if next.ContinueOffset != -1 {
		t.Errorf("Expected the next script to reject continue, got offset %d", next.ContinueOffset)
	}
	if body.BreakOffset != next.BreakOffset {
		t.Errorf("Expected a shared break target, got %d and %d", body.BreakOffset, next.BreakOffset)
	}
}

func TestBreakOutsideLoopRaises(t *testing.T) {
	bc := mustCompile(t, "break")
	expectOps(t, bc, bytecode.OpBreak, bytecode.OpDone)

	bc = mustCompile(t, "break now")
	if countOp(t, bc, bytecode.OpSyntax) != 1 {
		t.Errorf("Expected a wrong # args error\n%s", bc.Disassemble())
	}
}

func TestBreakInsideCatchRaises(t *testing.T) {
	bc := mustCompile(t, "while 1 {catch {break}}")
	if countOp(t, bc, bytecode.OpBreak) != 1 {
		t.Errorf("Expected break inside catch to raise\n%s", bc.Disassemble())
	}
}

func TestCompileForeach(t *testing.T) {
	bc := mustCompileProc(t, "foreach {a b} $pairs x $xs {set s $a}", "pairs", "xs")
	if len(bc.AuxData) != 1 || bc.AuxData[0].Kind != bytecode.AuxForeach {
		t.Fatalf("Expected one foreach aux record, got %+v", bc.AuxData)
	}
	info := bc.AuxData[0].Foreach
	if len(info.ListTemps) != 2 {
		t.Errorf("Expected 2 list temps, got %d", len(info.ListTemps))
	}
	if len(info.VarSlots) != 2 || len(info.VarSlots[0]) != 2 || len(info.VarSlots[1]) != 1 {
		t.Errorf("Unexpected var slots %v", info.VarSlots)
	}
	if countOp(t, bc, bytecode.OpForeachStep4) != 1 {
		t.Errorf("Expected one step instruction\n%s", bc.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// switch
// ---------------------------------------------------------------------------

const switchSrc = "switch $x {a {set y 1} b {set y 2} default {set y 3}}"

func TestCompileSwitchJumpTable(t *testing.T) {
	bc := mustCompile(t, switchSrc)
	if countOp(t, bc, bytecode.OpJumpTable) != 1 {
		t.Fatalf("Expected a jump table\n%s", bc.Disassemble())
	}
	tbl := bc.AuxData[0].JumpTable
	if len(tbl.Keys) != 2 || tbl.Keys[0] != "a" || tbl.Keys[1] != "b" {
		t.Errorf("Expected keys [a b], got %v", tbl.Keys)
	}
}

func TestCompileSwitchChain(t *testing.T) {
	bc := mustCompile(t, switchSrc, WithJumpTableMinArms(3))
	if countOp(t, bc, bytecode.OpJumpTable) != 0 {
		t.Errorf("Expected no jump table\n%s", bc.Disassemble())
	}
	if n := countOp(t, bc, bytecode.OpStrEq); n != 2 {
		t.Errorf("Expected 2 streq tests, got %d", n)
	}
}

func TestCompileSwitchModes(t *testing.T) {
	tests := []struct {
		src string
		op  bytecode.Opcode
	}{
		{"switch -glob $x {a* {set y 1} default {}}", bytecode.OpStrMatch},
		{"switch -regexp -- $x {^a {set y 1}}", bytecode.OpRegexp},
		{"switch -nocase $x A {set y 1}", bytecode.OpStrMatch},
		{"switch $x $p {set y 1}", bytecode.OpStrEq},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			bc := mustCompile(t, tt.src)
			if countOp(t, bc, tt.op) != 1 {
				t.Errorf("Expected one %s\n%s", tt.op, bc.Disassemble())
			}
			if countOp(t, bc, bytecode.OpInvokeStk1) != 0 {
				t.Errorf("Expected no generic invocation\n%s", bc.Disassemble())
			}
		})
	}
}

func TestCompileSwitchFallthrough(t *testing.T) {
	bc := mustCompile(t, "switch $x {a - b {set y 1}}")
	tbl := bc.AuxData[0].JumpTable
	if len(tbl.Keys) != 2 {
		t.Fatalf("Expected 2 keys, got %v", tbl.Keys)
	}
	if tbl.Offsets[0] != tbl.Offsets[1] {
		t.Errorf("Expected fallthrough arms to share a target, got %v", tbl.Offsets)
	}

	bc = mustCompile(t, "switch $x {a {set y 1} b -}")
	if countOp(t, bc, bytecode.OpJumpTable) != 0 {
		t.Errorf("Expected a trailing fallthrough to decline\n%s", bc.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// Jump widths
// ---------------------------------------------------------------------------

func TestForcedWideJumps(t *testing.T) {
	src := "if {$x} {set y 1} else {set y 2}"
	bc := mustCompile(t, src, WithNarrowJumpLimit(0))
	for _, in := range instructions(t, bc) {
		switch in.Op {
		case bytecode.OpJump1, bytecode.OpJumpTrue1, bytecode.OpJumpFalse1:
			t.Errorf("Expected only wide jumps, got %s at %d", in.Op, in.Offset)
		}
	}
	narrow := mustCompile(t, src)
	if len(bc.Code) != len(narrow.Code)+6 {
		t.Errorf("Expected 2 widened jumps (%d bytes), got %d", len(narrow.Code)+6, len(bc.Code))
	}
}

func TestLongBodyWidensJump(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("if {$x} {")
	for i := 0; i < 100; i++ {
		sb.WriteString("set y 1; ")
	}
	sb.WriteString("}")
	bc := mustCompile(t, sb.String())
	if countOp(t, bc, bytecode.OpJumpFalse4) != 1 {
		t.Errorf("Expected the branch over a long body to widen\n%s", bc.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func TestCompileCatch(t *testing.T) {
	bc := mustCompileProc(t, "catch {error boom} msg opts")
	for _, op := range []bytecode.Opcode{
		bytecode.OpBeginCatch4, bytecode.OpEndCatch, bytecode.OpPushResult,
		bytecode.OpPushReturnOptions, bytecode.OpPushReturnCode,
	} {
		if countOp(t, bc, op) != 1 {
			t.Errorf("Expected one %s\n%s", op, bc.Disassemble())
		}
	}
	if len(bc.ExceptRanges) != 1 || bc.ExceptRanges[0].Kind != bytecode.CatchRange {
		t.Errorf("Expected one catch range, got %+v", bc.ExceptRanges)
	}
	if bc.ExceptRanges[0].CatchOffset < 0 {
		t.Errorf("Expected a bound catch offset")
	}

	bc = mustCompile(t, "catch {error boom} msg")
	if countOp(t, bc, bytecode.OpBeginCatch4) != 0 {
		t.Errorf("Expected catch with a variable to decline at global scope\n%s", bc.Disassemble())
	}
}

func TestCompileTry(t *testing.T) {
	src := "try {error boom} on error {m o} {set r $m} trap {POSIX ENOENT} {} {set r 2} finally {set done 1}"
	bc := mustCompileProc(t, src)
	if n := countOp(t, bc, bytecode.OpBeginCatch4); n != 2 {
		t.Errorf("Expected 2 catch ranges, got %d\n%s", n, bc.Disassemble())
	}
	if countOp(t, bc, bytecode.OpDictGet) != 1 {
		t.Errorf("Expected the trap handler to read -errorcode\n%s", bc.Disassemble())
	}
	if countOp(t, bc, bytecode.OpReturnStk) != 1 {
		t.Errorf("Expected one returnStk\n%s", bc.Disassemble())
	}
	if countOp(t, bc, bytecode.OpInvokeStk1) != 0 {
		t.Errorf("Expected no generic invocation\n%s", bc.Disassemble())
	}
}

func TestCompileTryBodyOnly(t *testing.T) {
	bc := mustCompile(t, "try {set x 1}")
	expectOps(t, bc,
		bytecode.OpPush1, bytecode.OpPush1, bytecode.OpStoreScalarStk, bytecode.OpDone)
}

func TestCompileReturn(t *testing.T) {
	tests := []struct {
		src         string
		code, level int
	}{
		{"return", 0, 1},
		{"return $x", 0, 1},
		{"return -code error oops", 1, 1},
		{"return -level 0 -code break", 3, 0},
		{"error boom", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			bc := mustCompileProc(t, tt.src, "x")
			var ret *bytecode.Instruction
			in := instructions(t, bc)
			for k := range in {
				if in[k].Op == bytecode.OpReturnImm {
					ret = &in[k]
				}
			}
			if ret == nil {
				t.Fatalf("Expected returnImm\n%s", bc.Disassemble())
			}
			if ret.Operands[0] != tt.code || ret.Operands[1] != tt.level {
				t.Errorf("Expected code %d level %d, got %v", tt.code, tt.level, ret.Operands)
			}
		})
	}
}

func TestCompileReturnOptionsDict(t *testing.T) {
	bc := mustCompileProc(t, "return -code error -errorcode {MY CODE} oops")
	want := "-code 1 -level 1 -errorcode {MY CODE}"
	if bc.Literals[0] != want {
		t.Errorf("Expected options %q, got %q", want, bc.Literals[0])
	}
}

// ---------------------------------------------------------------------------
// mathop
// ---------------------------------------------------------------------------

func TestCompileMathop(t *testing.T) {
	tests := []struct {
		src  string
		want []bytecode.Opcode
	}{
		{"tcl::mathop::+", []bytecode.Opcode{bytecode.OpPush1}},
		{"tcl::mathop::+ 1 2 3", []bytecode.Opcode{
			bytecode.OpPush1, bytecode.OpPush1, bytecode.OpAdd, bytecode.OpPush1, bytecode.OpAdd}},
		{"::tcl::mathop::** 2 3 2", []bytecode.Opcode{
			bytecode.OpPush1, bytecode.OpPush1, bytecode.OpPush1, bytecode.OpExpon, bytecode.OpExpon}},
		{"tcl::mathop::- 5", []bytecode.Opcode{bytecode.OpPush1, bytecode.OpUminus}},
		{"tcl::mathop::/ 4", []bytecode.Opcode{bytecode.OpPush1, bytecode.OpPush1, bytecode.OpDiv}},
		{"tcl::mathop::< 1", []bytecode.Opcode{bytecode.OpPush1, bytecode.OpPop, bytecode.OpPush1}},
		{"tcl::mathop::! 0", []bytecode.Opcode{bytecode.OpPush1, bytecode.OpNot}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			bc := mustCompile(t, tt.src)
			expectOps(t, bc, append(tt.want, bytecode.OpDone)...)
		})
	}
}

// ---------------------------------------------------------------------------
// Locations and errors
// ---------------------------------------------------------------------------

func TestCmdLocations(t *testing.T) {
	src := "set a 1; set b [list 2]"
	bc := mustCompile(t, src)
	if len(bc.CmdLocations) != 3 {
		t.Fatalf("Expected 3 command locations, got %d", len(bc.CmdLocations))
	}
	for _, loc := range bc.CmdLocations {
		if loc.NumCodeBytes <= 0 {
			t.Errorf("Expected code for command at %d", loc.SrcOffset)
		}
	}
	if !strings.HasPrefix(src[bc.CmdLocations[1].SrcOffset:], "set b") {
		t.Errorf("Expected the second location at \"set b\", got offset %d", bc.CmdLocations[1].SrcOffset)
	}
	if got, ok := bc.CommandAt(bc.CmdLocations[0].CodeOffset); !ok || got.SrcOffset != 0 {
		t.Errorf("CommandAt(0) = %+v, %v", got, ok)
	}
}

func TestParseErrorPosition(t *testing.T) {
	tests := []struct {
		src        string
		line       int
		incomplete bool
	}{
		{"set x {abc", 1, true},
		{"puts a\nset x \"abc", 2, true},
		{"set x {a}b", 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Compile(tt.src)
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("Expected *Error, got %v", err)
			}
			if ce.Line != tt.line {
				t.Errorf("Line = %d, want %d", ce.Line, tt.line)
			}
			if ce.Incomplete != tt.incomplete {
				t.Errorf("Incomplete = %v, want %v", ce.Incomplete, tt.incomplete)
			}
		})
	}
}

func TestBodyParseErrorRaisedAtRunTime(t *testing.T) {
	bc := mustCompile(t, "if {$x} \"set y {\"")
	if countOp(t, bc, bytecode.OpSyntax) != 1 {
		t.Errorf("Expected the body error to compile to a syntax instruction\n%s", bc.Disassemble())
	}
}

func TestNestingLimit(t *testing.T) {
	cfg := config.DefaultCompiler()
	cfg.MaxNestingDepth = 4
	src := strings.Repeat("if 1 {", 8) + strings.Repeat("}", 8)
	_, err := Compile(src, WithConfig(cfg))
	if err == nil {
		t.Fatal("Expected a nesting error")
	}
	var ce *Error
	if !errors.Is(err, ErrTooDeep) && !(errors.As(err, &ce) && ce.Kind == parser.ErrNestingTooDeep) {
		t.Errorf("Expected a nesting error, got %v", err)
	}
}

func TestSpecializedCommands(t *testing.T) {
	for _, name := range []string{"set", "::if", "tcl::mathop::+", "switch", "try"} {
		if !IsSpecialized(name) {
			t.Errorf("IsSpecialized(%q) = false, want true", name)
		}
	}
	if IsSpecialized("puts") {
		t.Error("IsSpecialized(puts) = true, want false")
	}
	if len(SpecializedCommands()) < 20 {
		t.Errorf("Expected at least 20 specialized commands, got %d", len(SpecializedCommands()))
	}
}

// ---------------------------------------------------------------------------
// Fuzz
// ---------------------------------------------------------------------------

func FuzzCompile(f *testing.F) {
	seeds := []string{
		"set x 1",
		switchSrc,
		"for {set i 0} {$i < 3} {incr i} {if {$i == 1} continue}",
		"while 1 {catch {break}}",
		"try {error x} on error m {set y $m} finally {}",
		"expr {$a ? [f] : 2**3}",
		"foreach {a b} {1 2 3} {lappend l $a}",
		"set {*}$x",
		"return -code error -level 2 x",
		"switch -glob -- $v {a* - b* {} default {x}}",
		"unset -nocomplain a(1) b",
		"{*}{}",
		"{*}{a b}; list x {*}{} y",
		"while 1 {lappend r {*}[break]}",
		"if {0x1p4} {a}",
		"try {error x} on error {} - trap {} {m} {set m}",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, src string) {
		for _, params := range [][]string{nil, {"a", "b"}} {
			var bc *bytecode.ByteCode
			var err error
			if params == nil {
				bc, err = Compile(src)
			} else {
				bc, err = CompileProcBody(src, params)
			}
			if err != nil {
				continue
			}
			if err := bc.Verify(); err != nil {
				t.Fatalf("Verify(%q) error: %v", src, err)
			}
		}
	})
}
