package vm

import (
	"testing"

	"github.com/chazu/tickle/pkg/bytecode"
)

func TestBinaryOp(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		a, b string
		want string
	}{
		{bytecode.OpAdd, "1", "2", "3"},
		{bytecode.OpAdd, "1", "2.5", "3.5"},
		{bytecode.OpAdd, " 7 ", "0x1", "8"},
		{bytecode.OpSub, "1", "3", "-2"},
		{bytecode.OpMult, "6", "7", "42"},
		{bytecode.OpDiv, "7", "2", "3"},
		{bytecode.OpDiv, "-7", "2", "-4"},
		{bytecode.OpDiv, "7", "-2", "-4"},
		{bytecode.OpDiv, "6", "3", "2"},
		{bytecode.OpDiv, "1", "4.0", "0.25"},
		{bytecode.OpMod, "7", "3", "1"},
		{bytecode.OpMod, "-7", "3", "2"},
		{bytecode.OpMod, "7", "-3", "-2"},
		{bytecode.OpExpon, "2", "10", "1024"},
		{bytecode.OpExpon, "2", "-1", "0"},
		{bytecode.OpExpon, "-1", "-3", "-1"},
		{bytecode.OpExpon, "2.0", "3", "8.0"},
		{bytecode.OpBitAnd, "12", "10", "8"},
		{bytecode.OpBitOr, "12", "10", "14"},
		{bytecode.OpBitXor, "12", "10", "6"},
		{bytecode.OpLshift, "1", "4", "16"},
		{bytecode.OpRshift, "-16", "2", "-4"},
		{bytecode.OpEq, "1", "1.0", "1"},
		{bytecode.OpEq, "0x10", "16", "1"},
		{bytecode.OpEq, "abc", "abc", "1"},
		{bytecode.OpNeq, "a", "b", "1"},
		{bytecode.OpLt, "2", "10", "1"},
		{bytecode.OpLt, "b", "a", "0"},
		{bytecode.OpGe, "10", "10", "1"},
		{bytecode.OpStrEq, "1", "1.0", "0"},
		{bytecode.OpStrNeq, "1", "1.0", "1"},
		{bytecode.OpListIn, "b", "a b c", "1"},
		{bytecode.OpListNotIn, "b", "a b c", "0"},
	}
	for _, tt := range tests {
		got, err := binaryOp(tt.op, tt.a, tt.b)
		if err != nil {
			t.Errorf("%s(%q, %q) error: %v", tt.op, tt.a, tt.b, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s(%q, %q) = %q, want %q", tt.op, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBinaryOpErrors(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		a, b string
		want string
	}{
		{bytecode.OpDiv, "1", "0", "divide by zero"},
		{bytecode.OpMod, "1", "0", "divide by zero"},
		{bytecode.OpAdd, "x", "1", `can't use non-numeric string as operand of "+"`},
		{bytecode.OpMod, "1.5", "2", `can't use floating-point value as operand of "%"`},
		{bytecode.OpLshift, "1", "-1", "negative shift argument"},
		{bytecode.OpExpon, "0", "-1", "exponentiation of zero by negative power"},
		{bytecode.OpExpon, "-8", "0.5", "domain error: argument not in valid range"},
	}
	for _, tt := range tests {
		_, err := binaryOp(tt.op, tt.a, tt.b)
		if err == nil {
			t.Errorf("%s(%q, %q): expected error %q", tt.op, tt.a, tt.b, tt.want)
			continue
		}
		if err.Error() != tt.want {
			t.Errorf("%s(%q, %q) error = %q, want %q", tt.op, tt.a, tt.b, err.Error(), tt.want)
		}
	}
}

func TestUnaryOp(t *testing.T) {
	tests := []struct {
		op   bytecode.Opcode
		a    string
		want string
	}{
		{bytecode.OpUminus, "5", "-5"},
		{bytecode.OpUminus, "2.5", "-2.5"},
		{bytecode.OpUplus, "0x1f", "31"},
		{bytecode.OpBitNot, "0", "-1"},
		{bytecode.OpNot, "yes", "0"},
		{bytecode.OpNot, "0.0", "1"},
		{bytecode.OpTryCvtToNumeric, "0b101", "5"},
		{bytecode.OpTryCvtToNumeric, "1.50", "1.50"},
		{bytecode.OpTryCvtToNumeric, "word", "word"},
	}
	for _, tt := range tests {
		got, err := unaryOp(tt.op, tt.a)
		if err != nil {
			t.Errorf("%s(%q) error: %v", tt.op, tt.a, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s(%q) = %q, want %q", tt.op, tt.a, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"42", "42", true},
		{"-0x10", "-16", true},
		{"0o17", "15", true},
		{"007", "7", true},
		{"1e3", "1000.0", true},
		{".5", "0.5", true},
		{"Inf", "Inf", true},
		{"NaN", "", false},
		{"1_000", "", false},
		{"0x", "", false},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		n, ok := parseNumber(tt.in)
		if ok != tt.wantOK {
			t.Errorf("parseNumber(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && n.String() != tt.want {
			t.Errorf("parseNumber(%q) = %q, want %q", tt.in, n.String(), tt.want)
		}
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want int
	}{
		{"0", 5, 0},
		{"end", 5, 4},
		{"end-1", 5, 3},
		{"end+1", 5, 5},
		{"2+1", 5, 3},
		{"3-1", 5, 2},
		{"-1", 5, -1},
		{"end", 0, -1},
	}
	for _, tt := range tests {
		got, err := parseIndex(tt.in, tt.n)
		if err != nil {
			t.Errorf("parseIndex(%q, %d) error: %v", tt.in, tt.n, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseIndex(%q, %d) = %d, want %d", tt.in, tt.n, got, tt.want)
		}
	}
	for _, bad := range []string{"x", "end-", "end*2", "1.5"} {
		if _, err := parseIndex(bad, 3); err == nil {
			t.Errorf("parseIndex(%q): expected error", bad)
		}
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern, s string
		nocase     bool
		want       bool
	}{
		{"*", "", false, true},
		{"a*", "abc", false, true},
		{"a*c", "abbbc", false, true},
		{"a*c", "abbbd", false, false},
		{"?b?", "abc", false, true},
		{"?", "", false, false},
		{"[a-c]x", "bx", false, true},
		{"[a-c]x", "dx", false, false},
		{"[xyz]", "y", false, true},
		{`\*`, "*", false, true},
		{`\*`, "a", false, false},
		{"ABC", "abc", true, true},
		{"ABC", "abc", false, false},
		{"*.go", "main.go", false, true},
		{"h?llo*", "héllo world", false, true},
		{"[a-", "a", false, false},
	}
	for _, tt := range tests {
		if got := globMatch(tt.pattern, tt.s, tt.nocase); got != tt.want {
			t.Errorf("globMatch(%q, %q, %v) = %v, want %v", tt.pattern, tt.s, tt.nocase, got, tt.want)
		}
	}
}

func TestRegexpMatch(t *testing.T) {
	ok, err := regexpMatch(`^a+b$`, "aaab", false)
	if err != nil || !ok {
		t.Errorf("regexpMatch = (%v, %v), want true", ok, err)
	}
	ok, err = regexpMatch(`^AB$`, "ab", true)
	if err != nil || !ok {
		t.Errorf("regexpMatch nocase = (%v, %v), want true", ok, err)
	}
	if _, err := regexpMatch(`(`, "x", false); err == nil {
		t.Error("Expected an error for a bad pattern")
	}
}

func FuzzBinaryOp(f *testing.F) {
	f.Add("1", "2")
	f.Add("-7", "0")
	f.Add("0x7fffffffffffffff", "-1")
	f.Add("1.5e308", "1e308")
	f.Add("abc", "{")
	f.Fuzz(func(t *testing.T, a, b string) {
		for op := range opSymbols {
			if op == bytecode.OpUplus || op == bytecode.OpUminus || op == bytecode.OpBitNot || op == bytecode.OpNot {
				continue
			}
			binaryOp(op, a, b)
		}
		for _, op := range []bytecode.Opcode{bytecode.OpEq, bytecode.OpLt, bytecode.OpStrEq, bytecode.OpListIn} {
			binaryOp(op, a, b)
		}
	})
}
