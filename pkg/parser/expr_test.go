package parser

import (
	"errors"
	"strings"
	"testing"
)

// sexpr renders an expression tree in prefix form, primaries as source text.
func sexpr(tr *Tree, i int) string {
	kids := Children(tr.Tokens, i)
	if len(kids) > 0 && tr.Tokens[kids[0]].Type == TokenOperator {
		parts := []string{tr.Text(kids[0])}
		for _, k := range kids[1:] {
			parts = append(parts, sexpr(tr, k))
		}
		return "(" + strings.Join(parts, " ") + ")"
	}
	return tr.Text(i)
}

func TestExprPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"2 + 3 * 4", "(+ 2 (* 3 4))"},
		{"2 ** 3 ** 2", "(** 2 (** 3 2))"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"-2 ** 2", "(** (- 2) 2)"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"1 << 2 + 3", "(<< 1 (+ 2 3))"},
		{"1 < 2 == 1", "(== (< 1 2) 1)"},
		{"5 & 3 | 4 ^ 1", "(| (& 5 3) (^ 4 1))"},
		{"!$a && $b || $c", "(|| (&& (! $a) $b) $c)"},
		{"1 ? 2 : 3 ? 4 : 5", "(? 1 2 (? 3 4 5))"},
		{"$x eq {abc}", "(eq $x {abc})"},
		{"$x in {a b}", "(in $x {a b})"},
		{"max(1, 2+3)", "(max 1 (+ 2 3))"},
		{"rand()", "(rand)"},
		{"::tcl::mathfunc::abs(-1)", "(::tcl::mathfunc::abs (- 1))"},
		{"1?true:false", "(? 1 true false)"},
		{"[llength $l] > 0x10", "(> [llength $l] 0x10)"},
		{"\"a$b\" ne 1.5e3", "(ne \"a$b\" 1.5e3)"},
		{"~0b101 % 0o7", "(% (~ 0b101) 0o7)"},
		{"Inf > NaN", "(> Inf NaN)"},
		{"$a(i) * .5", "(* $a(i) .5)"},
		{"1 +\n  2 # trailing comment", "(+ 1 2)"},
	}
	for _, tt := range tests {
		tr, err := Tokenize(tt.src, ModeExpr)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.src, err)
			continue
		}
		if err := tr.Validate(); err != nil {
			t.Errorf("%q: Validate: %v", tt.src, err)
			continue
		}
		if tr.Tokens[0].Type != TokenSubExpr {
			t.Errorf("%q: root is %s", tt.src, tr.Tokens[0].Type)
		}
		if got := sexpr(tr, 0); got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.src, tt.want, got)
		}
	}
}

func TestExprTokenLayout(t *testing.T) {
	tr, err := ParseExpr("2 + 3 * 4", 0, 9)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []TokenType{
		TokenSubExpr, TokenOperator,
		TokenSubExpr, TokenText,
		TokenSubExpr, TokenOperator,
		TokenSubExpr, TokenText,
		TokenSubExpr, TokenText,
	}
	if len(tr.Tokens) != len(want) {
		t.Fatalf("Expected %d tokens, got %d", len(want), len(tr.Tokens))
	}
	for i, typ := range want {
		if tr.Tokens[i].Type != typ {
			t.Errorf("token %d: expected %s, got %s", i, typ, tr.Tokens[i].Type)
		}
	}
	if tr.Tokens[0].NumComponents != 9 || tr.Tokens[0].NumChildren != 3 {
		t.Errorf("Unexpected root counts %v", tr.Tokens[0])
	}
	if tr.Tokens[4].NumComponents != 5 {
		t.Errorf("Expected product subtree of 5, got %d", tr.Tokens[4].NumComponents)
	}
}

func TestExprErrors(t *testing.T) {
	tests := []struct {
		src    string
		offset int
		msg    string
	}{
		{"", 0, "empty expression"},
		{"   ", 0, "empty expression"},
		{"1 +", 3, "missing operand"},
		{"(1", 0, "unbalanced open paren"},
		{"1)", 1, "unbalanced close paren"},
		{"1 2", 2, "missing operator"},
		{"foo", 0, "invalid bareword"},
		{"0x", 0, "invalid number"},
		{"1a", 0, "invalid number"},
		{"1_000", 0, "invalid number"},
		{"0x1p4", 0, "invalid number"},
		{"1 ? 2", 5, "missing \":\""},
		{"max(1", 3, "missing close paren"},
		{"1 @ 2", 2, "unexpected character"},
	}
	for _, tt := range tests {
		_, err := Tokenize(tt.src, ModeExpr)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("%q: expected parse error, got %v", tt.src, err)
			continue
		}
		if pe.Kind != ErrExprSyntax {
			t.Errorf("%q: expected expression syntax error, got %s", tt.src, pe.Kind)
		}
		if pe.Offset != tt.offset {
			t.Errorf("%q: expected offset %d, got %d", tt.src, tt.offset, pe.Offset)
		}
		if !strings.Contains(pe.Msg, tt.msg) {
			t.Errorf("%q: expected message containing %q, got %q", tt.src, tt.msg, pe.Msg)
		}
	}
}

func TestIsNumber(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"0", true},
		{"42", true},
		{"3.25", true},
		{".5", true},
		{"1.", true},
		{"2e10", true},
		{"2E-3", true},
		{"0x1F", true},
		{"0o17", true},
		{"0b101", true},
		{"", false},
		{"-1", false},
		{" 1", false},
		{"1_000", false},
		{"0x1p4", false},
		{"0x", false},
		{"1e", false},
		{"1.2.3", false},
		{"inf", false},
		{"true", false},
	}
	for _, tt := range tests {
		if got := IsNumber(tt.s); got != tt.want {
			t.Errorf("IsNumber(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestExprIncompleteOperand(t *testing.T) {
	_, err := Tokenize("$x + {abc", ModeExpr)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != ErrMissingBrace || !pe.Incomplete {
		t.Fatalf("Expected incomplete missing brace, got %v", err)
	}
	if pe.Offset != 5 {
		t.Errorf("Expected offset 5, got %d", pe.Offset)
	}
}

func TestExprNestingLimit(t *testing.T) {
	src := strings.Repeat("(", 40) + "1" + strings.Repeat(")", 40)
	_, err := New(20).ParseExpr(src, 0, len(src))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != ErrNestingTooDeep {
		t.Fatalf("Expected nesting error, got %v", err)
	}
	if _, err := ParseExpr(src, 0, len(src)); err != nil {
		t.Errorf("Default limit should accept: %v", err)
	}
}
