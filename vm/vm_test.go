package vm

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/tickle/config"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type mode struct {
	name string
	cfg  config.Compiler
}

// modes are the compiler settings every script must agree under. None of
// them may change what a script computes.
func modes() []mode {
	generic := config.DefaultCompiler()
	generic.Specialize = false
	wide := config.DefaultCompiler()
	wide.NarrowJumpLimit = 0
	chained := config.DefaultCompiler()
	chained.JumpTableMinArms = 1 << 20
	return []mode{
		{"specialized", config.DefaultCompiler()},
		{"generic", generic},
		{"wide", wide},
		{"chained", chained},
	}
}

func eval(t *testing.T, cfg config.Compiler, src string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	in := New(WithCompilerConfig(cfg), WithOutput(&out))
	return in.Eval(src)
}

// evalAll runs src under every mode, fails on any disagreement and returns
// the common outcome.
func evalAll(t *testing.T, src string) (string, error) {
	t.Helper()
	var (
		first    string
		firstErr error
	)
	for i, m := range modes() {
		got, err := eval(t, m.cfg, src)
		if i == 0 {
			first, firstErr = got, err
			continue
		}
		if got != first || errText(err) != errText(firstErr) {
			t.Errorf("%s: %q disagrees with specialized: got (%q, %v), want (%q, %v)",
				m.name, src, got, err, first, firstErr)
		}
	}
	return first, firstErr
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type evalCase struct {
	src     string
	want    string
	wantErr string
}

func runCases(t *testing.T, cases []evalCase) {
	t.Helper()
	for _, tc := range cases {
		got, err := evalAll(t, tc.src)
		if tc.wantErr != "" {
			if err == nil {
				t.Errorf("%q: expected error %q, got result %q", tc.src, tc.wantErr, got)
			} else if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("%q: error = %q, want %q", tc.src, err.Error(), tc.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.src, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q = %q, want %q", tc.src, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Variables and basic commands
// ---------------------------------------------------------------------------

func TestVariables(t *testing.T) {
	runCases(t, []evalCase{
		{src: "set x 5; incr x 3", want: "8"},
		{src: "set x 5; incr x", want: "6"},
		{src: "set x 5; incr x -10", want: "-5"},
		{src: "set s a; append s b c; set s", want: "abc"},
		{src: "set l {}; lappend l a b; llength $l", want: "2"},
		{src: "lappend fresh x", want: "x"},
		{src: "set u 1; unset u; info exists u", want: "0"},
		{src: "unset -nocomplain never; set ok 1", want: "1"},
		{src: "set a(x) 1; set a(y) 2; lsort [array names a]", want: "x y"},
		{src: "set a(x) 1; set a(y) 2; array size a", want: "2"},
		{src: "set k y; set a(y) 7; set a($k)", want: "7"},
		{src: "set nope", wantErr: `can't read "nope": no such variable`},
		{src: "set x 1; set x(1) 2", wantErr: `variable isn't array`},
		{src: "set x abc; incr x", wantErr: `expected integer but got "abc"`},
		{src: "set g 1; proc bump {} {global g; incr g}; bump; bump; set g", want: "3"},
		{src: "proc setit {name v} {upvar 1 $name x; set x $v}; setit y 42; set y", want: "42"},
		{src: "set ::q 9; proc rd {} {set ::q}; rd", want: "9"},
	})
}

func TestSubstitution(t *testing.T) {
	runCases(t, []evalCase{
		{src: "set x [string length [list a b]]", want: "3"},
		{src: `set a 1; set b "$a+$a"`, want: "1+1"},
		{src: `set b {$a}`, want: "$a"},
		{src: `set t "a\tb"; string length $t`, want: "3"},
		{src: "set l {1 2 3}; tcl::mathop::+ {*}$l", want: "6"},
		{src: "set l {b c}; list a {*}$l d", want: "a b c d"},
		{src: "", want: ""},
		{src: "# only a comment", want: ""},
		{src: "undefined_cmd 1 2", wantErr: `invalid command name "undefined_cmd"`},
	})
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func TestExpressions(t *testing.T) {
	runCases(t, []evalCase{
		{src: "expr {2 + 3 * 4}", want: "14"},
		{src: "expr {2 ** 3 ** 2}", want: "512"},
		{src: "expr {(2 + 3) * 4}", want: "20"},
		{src: "expr {7 / 2}", want: "3"},
		{src: "expr {-7 / 2}", want: "-4"},
		{src: "expr {-7 % 3}", want: "2"},
		{src: "expr {1 / 2.0}", want: "0.5"},
		{src: "expr {1.0 + 1}", want: "2.0"},
		{src: "expr {0x10 + 0b11}", want: "19"},
		{src: "expr {0x10}", want: "16"},
		{src: "expr {1 << 4 | 1}", want: "17"},
		{src: "expr {~0}", want: "-1"},
		{src: "expr {!0}", want: "1"},
		{src: "expr {3 > 2 && 2 > 1}", want: "1"},
		{src: "expr {0 && [error never]}", want: "0"},
		{src: "expr {1 || [error never]}", want: "1"},
		{src: `expr {1 ? "yes" : "no"}`, want: "yes"},
		{src: `expr {0 ? "yes" : "no"}`, want: "no"},
		{src: `expr {"abc" eq "abc"}`, want: "1"},
		{src: `expr {"abc" ne "abd"}`, want: "1"},
		{src: "expr {3 in {1 2 3}}", want: "1"},
		{src: "expr {4 ni {1 2 3}}", want: "1"},
		{src: "set x 4; expr {$x * $x}", want: "16"},
		{src: "expr {[llength {a b c}] + 1}", want: "4"},
		{src: "expr 1 + 2", want: "3"},
		{src: "expr {max(3, 7, 5)}", want: "7"},
		{src: "expr {min(3, 7, 5)}", want: "3"},
		{src: "expr {abs(-4)}", want: "4"},
		{src: "expr {int(3.7)}", want: "3"},
		{src: "expr {round(2.5)}", want: "3"},
		{src: "expr {sqrt(16)}", want: "4.0"},
		{src: "expr {pow(2, 10)}", want: "1024.0"},
		{src: "expr {double(3)}", want: "3.0"},
		{src: "expr {1 / 0}", wantErr: "divide by zero"},
		{src: `expr {"a" + 1}`, wantErr: "can't use non-numeric string"},
		{src: "expr {1.5 % 2}", wantErr: "can't use floating-point value"},
		{src: "expr {sqrt()}", wantErr: `not enough arguments for math function "sqrt"`},
	})
}

func TestMathop(t *testing.T) {
	runCases(t, []evalCase{
		{src: "tcl::mathop::+ 1 2 3", want: "6"},
		{src: "tcl::mathop::+", want: "0"},
		{src: "::tcl::mathop::*", want: "1"},
		{src: "tcl::mathop::- 5", want: "-5"},
		{src: "tcl::mathop::- 10 3 2", want: "5"},
		{src: "tcl::mathop::/ 2", want: "0.5"},
		{src: "tcl::mathop::** 2 3 2", want: "512"},
		{src: "tcl::mathop::** ", want: "1"},
		{src: "tcl::mathop::< 1 2 3", want: "1"},
		{src: "tcl::mathop::< 1 3 2", want: "0"},
		{src: "tcl::mathop::== 1", want: "1"},
		{src: "tcl::mathop::& ", want: "-1"},
		{src: "tcl::mathop::% 7", wantErr: "wrong # args"},
		{src: "tcl::mathop::!", wantErr: "wrong # args"},
	})
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestControlFlow(t *testing.T) {
	runCases(t, []evalCase{
		{src: "if {0} {set a 1} elseif {1} {set a 2} else {set a 3}", want: "2"},
		{src: "if 1 then {set a yes}", want: "yes"},
		{src: "if {0} {set a 1}", want: ""},
		{src: "set i 0; while {$i < 5} {incr i}; set i", want: "5"},
		{src: "set n 0; for {set i 0} {$i < 10} {incr i} {incr n $i}; set n", want: "45"},
		{src: "set r {}; for {set i 0} {$i < 10} {incr i} {if {$i == 5} break; if {$i % 2} continue; lappend r $i}; set r", want: "0 2 4"},
		{src: "set s {}; foreach i {1 2 3} {append s $i}; set s", want: "123"},
		{src: "set r {}; foreach {a b} {1 2 3 4} {lappend r $b $a}; set r", want: "2 1 4 3"},
		{src: "set r {}; foreach a {1 2} b {x y} {lappend r $a$b}; set r", want: "1x 2y"},
		{src: "set i 0; while 1 {incr i; if {$i > 3} break}; set i", want: "4"},
		{src: "break", wantErr: `invoked "break" outside of a loop`},
		{src: "continue", wantErr: `invoked "continue" outside of a loop`},
		{src: "break extra", wantErr: "wrong # args"},
		{src: "while {$undefined} {}", wantErr: `can't read "undefined"`},
		{src: "set i 0; set r {}; while 1 {incr i; lappend r {*}[if {$i > 2} break; list $i]}; set r", want: "1 2"},
		{src: "set r {}; foreach i {1 2 3 4} {lappend r {*}[if {$i % 2} continue; list $i $i]}; set r", want: "2 2 4 4"},
		{src: "proc p {} {set r {}; while 1 {lappend r {*}[break]}; return $r}; p", want: ""},
	})
}

func TestConstantConditions(t *testing.T) {
	runCases(t, []evalCase{
		{src: "if {0x10} {set a hex} else {set a no}", want: "hex"},
		{src: "if {0b0} {set a yes} else {set a no}", want: "no"},
		{src: "if { -0.0 } {set a yes} else {set a no}", want: "no"},
		{src: "if {1e2} {set a yes}", want: "yes"},
		{src: "if {off} {set a yes} else {set a no}", want: "no"},
		{src: "set i 0; while {0o0} {incr i}; set i", want: "0"},
		{src: "if {1_000} {set a yes}", wantErr: "invalid number"},
		{src: "if {0x1p4} {set a yes} else {set a no}", wantErr: "invalid number"},
		{src: "while {0x1p0} {break}", wantErr: "invalid number"},
		{src: "for {} {1_0} {} {break}", wantErr: "invalid number"},
	})
}

func TestEmptyExpansion(t *testing.T) {
	runCases(t, []evalCase{
		{src: "{*}{}", want: ""},
		{src: `{*}""`, want: ""},
		{src: "list a {*}{} b", want: "a b"},
		{src: "{*}{}; set x 1", want: "1"},
		{src: "set x 1; {*}{}", want: ""},
		{src: "proc p {} {{*}{}}; p", want: ""},
		{src: "{*}{set y} 3", want: "3"},
	})
}

func TestSwitch(t *testing.T) {
	runCases(t, []evalCase{
		{src: "switch b {a {set r A} b {set r B} default {set r D}}", want: "B"},
		{src: "switch z {a {set r A} b {set r B} default {set r D}}", want: "D"},
		{src: "switch z {a {set r A}}", want: ""},
		{src: "switch a {a - b {set r AB} default {set r D}}", want: "AB"},
		{src: "switch -glob foo {f* {set r F} default {set r D}}", want: "F"},
		{src: "switch -regexp abc123 {{^[a-z]+$} {set r alpha} {[0-9]} {set r digit}}", want: "digit"},
		{src: "switch -nocase ABC {abc {set r lower}}", want: "lower"},
		{src: "switch -exact -- -x {-x {set r dash}}", want: "dash"},
		{src: "switch b a {set r A} b {set r B}", want: "B"},
		{src: "set v 2; switch $v {1 {set r one} 2 {set r two}}", want: "two"},
		{src: "switch a {a}", wantErr: "extra switch pattern with no body"},
		{src: "switch a {a -}", wantErr: `no body specified for pattern "a"`},
	})
}

func TestProcs(t *testing.T) {
	runCases(t, []evalCase{
		{src: "proc add {a {b 10}} {expr {$a + $b}}; list [add 1] [add 1 2]", want: "11 3"},
		{src: "proc f {a args} {llength $args}; f 1 2 3 4", want: "3"},
		{src: "proc f {a args} {set args}; f 1", want: ""},
		{src: "proc fact n {if {$n <= 1} {return 1}; expr {$n * [fact [expr {$n - 1}]]}}; fact 10", want: "3628800"},
		{src: "proc sum l {set s 0; foreach x $l {incr s $x}; return $s}; sum {1 2 3 4}", want: "10"},
		{src: `proc pairs {} {set r {}; foreach {a b} {1 2 3 4 5} {lappend r "$a:$b"}; return $r}; pairs`, want: "1:2 3:4 5:"},
		{src: "proc loop {} {set n 0; for {set i 0} {$i < 100} {incr i} {if {$i == 50} {break}; incr n}; return $n}; loop", want: "50"},
		{src: "proc sw x {switch $x {a {return 1} b {return 2} default {return 0}}}; list [sw a] [sw b] [sw c]", want: "1 2 0"},
		{src: "proc two {a b} {}; two 1", wantErr: `wrong # args: should be "two a b"`},
		{src: "proc two {a b} {}; two 1 2 3", wantErr: `wrong # args: should be "two a b"`},
		{src: "proc opt {a {b x}} {}; opt", wantErr: `wrong # args: should be "opt a ?b?"`},
		{src: "proc q {a b} {}; info args q", want: "a b"},
		{src: "proc q {} {return [info level]}; q", want: "1"},
		{src: "proc q {} {}; rename q r; r", want: ""},
		{src: "proc q {} {}; rename q {}; info procs q", want: ""},
		{src: "proc inf {} {inf}; inf", wantErr: "too many nested evaluations"},
	})
}

func TestReturnLevels(t *testing.T) {
	runCases(t, []evalCase{
		{src: "return done", want: "done"},
		{src: "proc inner {} {return -level 2 deep}; proc outer {} {inner; return shallow}; outer", want: "deep"},
		{src: "proc p {} {return -code error oops}; p", wantErr: "oops"},
		{src: "proc p {} {return -code break}; set i 0; while 1 {incr i; if {$i > 3} {p}}; set i", want: "4"},
		{src: "proc p {} {return -code continue}; set n 0; foreach i {1 2 3} {p; incr n}; set n", want: "0"},
		{src: "proc p {} {catch {return -code error inner} m; return $m}; p", want: "inner"},
		{src: "proc p {} {return -level 0 -code ok fine}; p", want: "fine"},
		{src: "return -code bogus x", wantErr: `bad completion code "bogus"`},
		{src: "return -level -1 x", wantErr: "bad -level value"},
	})
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

func TestCatchAndTry(t *testing.T) {
	runCases(t, []evalCase{
		{src: "catch {error boom}", want: "1"},
		{src: "catch {set x 1}", want: "0"},
		{src: "catch {error boom} msg; set msg", want: "boom"},
		{src: "catch {break}", want: "3"},
		{src: "catch {continue}", want: "4"},
		{src: "catch {return r}", want: "2"},
		{src: "catch {error m info CODE} r o; dict get $o -errorcode", want: "CODE"},
		{src: "catch {error m} r o; dict get $o -code", want: "1"},
		{src: "proc p {} {set c [catch {error oops} m]; list $c $m}; p", want: "1 oops"},
		{src: "proc p {} {set r {}; foreach x {1 2 3} {lappend r [catch {if {$x == 2} {error e}}]}; return $r}; p", want: "0 1 0"},
		{src: "try {error bad} on error {m} {set r \"caught $m\"}", want: "caught bad"},
		{src: "try {set x ok}", want: "ok"},
		{src: "try {set x ok} on ok {v} {set r got-$v}", want: "got-ok"},
		{src: "set log {}; try {lappend log body} finally {lappend log fin}; set log", want: "body fin"},
		{src: "set log {}; catch {try {error x} finally {lappend log fin}}; set log", want: "fin"},
		{src: "try {error bad {} {A B}} trap {A} {m} {set r trapped}", want: "trapped"},
		{src: "catch {try {error bad {} {A B}} trap {C} {m} {set r trapped}} m; set m", want: "bad"},
		{src: "try {error x} on error {} - on break {} {set r shared}", want: "shared"},
		{src: "proc p {} {try {error x} on error {} - trap {} {m} {info exists m}}; p", want: "0"},
		{src: "proc p {} {try {break} on break {} - on error {m} {info exists m}}; p", want: "0"},
		{src: "proc p {} {try {error x} on break {} - on error {m} {set m}}; p", want: "x"},
		{src: "try {error first} finally {error second}", wantErr: "second"},
		{src: "proc p {} {try {error e {} X} on error {m o} {return [dict get $o -errorcode]}}; p", want: "X"},
		{src: "error message", wantErr: "message"},
	})
}

func TestErrorInfo(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	_, err := in.Eval("proc f {} {error deep}\nproc g {} {f}\ng")
	if err == nil {
		t.Fatal("Expected an error")
	}
	var exc *Exception
	if !errors.As(err, &exc) {
		t.Fatalf("Expected *Exception, got %T", err)
	}
	if exc.Code != CodeError {
		t.Errorf("Code = %d, want %d", exc.Code, CodeError)
	}
	for _, want := range []string{"deep", "while executing", "invoked from within", "\"g\""} {
		if !strings.Contains(exc.ErrorInfo, want) {
			t.Errorf("ErrorInfo %q does not contain %q", exc.ErrorInfo, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Lists, strings and dictionaries
// ---------------------------------------------------------------------------

func TestListCommands(t *testing.T) {
	runCases(t, []evalCase{
		{src: "list a {b c} d", want: "a {b c} d"},
		{src: "list {}", want: "{}"},
		{src: "llength {a {b c} d}", want: "3"},
		{src: "lindex {a {b c} d} 1", want: "b c"},
		{src: "lindex {a {b c} d} 1 0", want: "b"},
		{src: "lindex {a b c} end", want: "c"},
		{src: "lindex {a b c} 5", want: ""},
		{src: "lindex {a b c}", want: "a b c"},
		{src: "lrange {a b c d e} 1 end-1", want: "b c d"},
		{src: "linsert {a b} 1 x", want: "a x b"},
		{src: "linsert {a b} end x", want: "a b x"},
		{src: "lreplace {a b c} 1 1 X Y", want: "a X Y c"},
		{src: "lsort -integer {10 2 33 4}", want: "2 4 10 33"},
		{src: "lsort -decreasing {b a c}", want: "c b a"},
		{src: "lsort -unique {b a b c a}", want: "a b c"},
		{src: "lsearch {a b c} c", want: "2"},
		{src: "lsearch -all {a b a} a", want: "0 2"},
		{src: "lsearch {a b c} z", want: "-1"},
		{src: "lreverse {1 2 3}", want: "3 2 1"},
		{src: "lrepeat 2 a b", want: "a b a b"},
		{src: "concat {a b} {c}", want: "a b c"},
		{src: "join {a b c} -", want: "a-b-c"},
		{src: "split a,b,c ,", want: "a b c"},
		{src: `set l "a \{b"; lindex $l 0`, wantErr: "unmatched open brace in list"},
		{src: "lindex {a b} x", wantErr: `bad index "x"`},
	})
}

func TestStringCommands(t *testing.T) {
	runCases(t, []evalCase{
		{src: "string length hello", want: "5"},
		{src: "string toupper abc", want: "ABC"},
		{src: "string totitle hELLO", want: "Hello"},
		{src: "string range hello 1 3", want: "ell"},
		{src: "string index hello end", want: "o"},
		{src: "string first l hello", want: "2"},
		{src: "string last l hello", want: "3"},
		{src: "string equal -nocase ABC abc", want: "1"},
		{src: "string compare a b", want: "-1"},
		{src: "string match {h*o} hello", want: "1"},
		{src: "string map {a 1 b 2} abc", want: "12c"},
		{src: "string trim {  x  }", want: "x"},
		{src: "string repeat ab 3", want: "ababab"},
		{src: "string reverse abc", want: "cba"},
		{src: "string is integer 0x1F", want: "1"},
		{src: "string is double abc", want: "0"},
		{src: "string bogus x", wantErr: `unknown or ambiguous subcommand "bogus"`},
		{src: "format %05.1f 3.14159", want: "003.1"},
		{src: "format %x 255", want: "ff"},
		{src: "format {%s-%d} a 5", want: "a-5"},
		{src: "format %d", wantErr: "not enough arguments"},
	})
}

func TestDictCommands(t *testing.T) {
	runCases(t, []evalCase{
		{src: "dict get [dict create a 1 b 2] b", want: "2"},
		{src: "dict get {a {b c}} a b", want: "c"},
		{src: "set d {}; dict set d k v; dict get $d k", want: "v"},
		{src: "dict exists {a 1} a", want: "1"},
		{src: "dict exists {a 1} b", want: "0"},
		{src: "dict keys {a 1 b 2}", want: "a b"},
		{src: "dict values {a 1 b 2}", want: "1 2"},
		{src: "dict size {a 1 b 2}", want: "2"},
		{src: "dict create a 1 a 2", want: "a 2"},
		{src: "dict get {a 1} z", wantErr: `key "z" not known in dictionary`},
	})
}

// ---------------------------------------------------------------------------
// Interpreter surface
// ---------------------------------------------------------------------------

func TestPuts(t *testing.T) {
	var out bytes.Buffer
	in := New(WithOutput(&out))
	if _, err := in.Eval("puts hello; puts -nonewline world"); err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if got := out.String(); got != "hello\nworld" {
		t.Errorf("output = %q, want %q", got, "hello\nworld")
	}
}

func TestRegister(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	in.Register("double", func(in *Interp, args []string) (string, error) {
		if len(args) != 2 {
			return "", fmt.Errorf("wrong # args")
		}
		return args[1] + args[1], nil
	})
	got, err := in.Eval("double [double ab]")
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if got != "abababab" {
		t.Errorf("Expected abababab, got %q", got)
	}
	if _, err := in.Eval("double"); err == nil || err.Error() != "wrong # args" {
		t.Errorf("Expected plain Go errors to surface unchanged, got %v", err)
	}
}

func TestInvokeAndEvalExpr(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	if _, err := in.Eval("set base 10"); err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	got, err := in.EvalExpr("$base * 2")
	if err != nil || got != "20" {
		t.Errorf("EvalExpr = (%q, %v), want 20", got, err)
	}
	got, err = in.Invoke("string", "toupper", "x")
	if err != nil || got != "X" {
		t.Errorf("Invoke = (%q, %v), want X", got, err)
	}
}

func TestCompileCacheReuse(t *testing.T) {
	in := New(WithOutput(&bytes.Buffer{}))
	src := "proc sq x {expr {$x * $x}}; set t 0; foreach i {1 2 3} {incr t [sq $i]}; set t"
	got, err := in.Eval(src)
	if err != nil || got != "14" {
		t.Fatalf("Eval = (%q, %v), want 14", got, err)
	}
	st := in.Cache().Stats()
	if st.Hits == 0 {
		t.Errorf("Expected the proc body to be reused from the cache, stats %+v", st)
	}
}

// A loop body long enough that its jumps need the 4-byte forms under the
// default limit.
func TestLongBodiesWiden(t *testing.T) {
	body := strings.Repeat("incr n\n", 100)
	src := "set n 0; set i 0; while {$i < 3} {incr i\n" + body + "}; set n"
	got, err := evalAll(t, src)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if got != "300" {
		t.Errorf("Expected 300, got %q", got)
	}

	proc := "proc big {} {set n 0; foreach x {a b c d} {switch $x {a {" + body + "} b {incr n 1000} default {incr n -1}}}; return $n}; big"
	got, err = evalAll(t, proc)
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	if got != "1098" {
		t.Errorf("Expected 1098, got %q", got)
	}
}
