package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCLI runs the CLI in dir and returns its exit code and output.
func runCLI(t *testing.T, dir string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(""), &stdout, &stderr)
	a.dir = dir
	code := a.run(args)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path
}

func TestRun_Inline(t *testing.T) {
	code, out, errOut := runCLI(t, t.TempDir(), "run", "-e", "puts [llength $argv]; puts [lindex $argv end]", "a", "b c")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, errOut)
	}
	if out != "2\nb c\n" {
		t.Errorf("stdout = %q, want %q", out, "2\nb c\n")
	}
}

func TestRun_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hello.tcl", "proc greet {who} {return \"hello, $who\"}\nputs [greet $argv]\nputs $argv0\n")
	code, out, errOut := runCLI(t, dir, "run", path, "world")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, errOut)
	}
	if want := "hello, world\n" + path + "\n"; out != want {
		t.Errorf("stdout = %q, want %q", out, want)
	}
}

func TestRun_ErrorShowsTrace(t *testing.T) {
	code, _, errOut := runCLI(t, t.TempDir(), "run", "-e", "proc f {} {error boom}\nf")
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	for _, want := range []string{"boom", "while executing"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("stderr = %q, want it to contain %q", errOut, want)
		}
	}
}

func TestRun_MissingScript(t *testing.T) {
	code, _, errOut := runCLI(t, t.TempDir(), "run")
	if code != 1 || !strings.Contains(errOut, "no script given") {
		t.Errorf("run without a script = (%d, %q)", code, errOut)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.tcl", "set x {a b}\n")
	bad := writeFile(t, dir, "bad.tcl", "set x {a b\n")

	if code, _, errOut := runCLI(t, dir, "check", good); code != 0 {
		t.Errorf("check good.tcl = %d, stderr = %q", code, errOut)
	}
	code, _, errOut := runCLI(t, dir, "check", good, bad)
	if code != 1 {
		t.Errorf("check bad.tcl = %d, want 1", code)
	}
	if want := bad + ":1:7: missing close-brace"; !strings.HasPrefix(errOut, want) {
		t.Errorf("stderr = %q, want prefix %q", errOut, want)
	}
}

func TestDisasm(t *testing.T) {
	code, out, errOut := runCLI(t, t.TempDir(), "disasm", "-e", "set x 1; incr x")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %q", code, errOut)
	}
	for _, want := range []string{"; === -e ===", "tickle bytecode v"} {
		if !strings.Contains(out, want) {
			t.Errorf("disasm = %q, want it to contain %q", out, want)
		}
	}
	_, generic, _ := runCLI(t, t.TempDir(), "disasm", "-generic", "-e", "set x 1; incr x")
	if generic == out {
		t.Error("generic disassembly should differ from the specialized one")
	}
}

func TestCompileThenRun(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "loop.tcl", "set s 0\nforeach i {1 2 3 4} {incr s $i}\nputs $s\n")
	code, out, errOut := runCLI(t, dir, "compile", src)
	if code != 0 {
		t.Fatalf("compile exit code = %d, stderr = %q", code, errOut)
	}
	tbc := filepath.Join(dir, "loop.tbc")
	if !strings.Contains(out, tbc) {
		t.Errorf("compile output = %q, want it to name %s", out, tbc)
	}

	code, out, errOut = runCLI(t, dir, "run", tbc)
	if code != 0 {
		t.Fatalf("run exit code = %d, stderr = %q", code, errOut)
	}
	if out != "10\n" {
		t.Errorf("stdout = %q, want %q", out, "10\n")
	}

	code, out, _ = runCLI(t, dir, "disasm", tbc)
	if code != 0 || !strings.Contains(out, "loop.tbc") {
		t.Errorf("disasm of compiled file = (%d, %q)", code, out)
	}
}

func TestRun_CorruptCompiledFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "junk.tbc", "not cbor")
	if code, _, _ := runCLI(t, dir, "run", path); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tickle.toml", "[cache]\nenabled = true\npath = \"units.db\"\n")

	if code, _, errOut := runCLI(t, dir, "run", "-e", "set x 1"); code != 0 {
		t.Fatalf("run exit code = %d, stderr = %q", code, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "units.db")); err != nil {
		t.Fatalf("cache database should exist: %v", err)
	}

	code, out, _ := runCLI(t, dir, "cache", "stats")
	if code != 0 || !strings.Contains(out, "units.db") || strings.Contains(out, "Units: 0") {
		t.Errorf("cache stats = (%d, %q)", code, out)
	}
	if code, out, _ = runCLI(t, dir, "cache", "purge"); code != 0 || !strings.Contains(out, "Purged") {
		t.Errorf("cache purge = (%d, %q)", code, out)
	}
	if _, out, _ = runCLI(t, dir, "cache", "stats"); !strings.Contains(out, "Units: 0") {
		t.Errorf("cache stats after purge = %q", out)
	}
}

func TestBadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tickle.toml", "[compiler]\nnarrow-jump-limit = 500\n")
	code, _, errOut := runCLI(t, dir, "version")
	if code != 1 || !strings.Contains(errOut, "narrow-jump-limit") {
		t.Errorf("bad config = (%d, %q)", code, errOut)
	}
}

func TestUsage(t *testing.T) {
	if code, _, errOut := runCLI(t, t.TempDir()); code != 2 || !strings.Contains(errOut, "Usage:") {
		t.Errorf("no args = (%d, %q)", code, errOut)
	}
	if code, _, errOut := runCLI(t, t.TempDir(), "frob"); code != 2 || !strings.Contains(errOut, `unknown command "frob"`) {
		t.Errorf("unknown command = (%d, %q)", code, errOut)
	}
	if code, out, _ := runCLI(t, t.TempDir(), "-vv", "version"); code != 0 || out != version+"\n" {
		t.Errorf("version = (%d, %q)", code, out)
	}
}

// ---------------------------------------------------------------------------
// REPL
// ---------------------------------------------------------------------------

func fakePrompt(lines ...string) func(string) (string, error) {
	return func(string) (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		return line, nil
	}
}

func TestReadScript(t *testing.T) {
	prompt := fakePrompt("set x 1", "proc f {} {", "  return 2", "}")
	got, ok := readScript(prompt)
	if !ok || got != "set x 1" {
		t.Errorf("readScript = (%q, %v), want (%q, true)", got, ok, "set x 1")
	}
	got, ok = readScript(prompt)
	if want := "proc f {} {\n  return 2\n}"; !ok || got != want {
		t.Errorf("readScript = (%q, %v), want (%q, true)", got, ok, want)
	}
	if _, ok = readScript(prompt); ok {
		t.Error("readScript at EOF should return false")
	}
}

func TestEvalLine(t *testing.T) {
	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(""), &stdout, &stderr)
	a.dir = t.TempDir()
	if code := a.run([]string{"version"}); code != 0 {
		t.Fatalf("version exit code = %d", code)
	}
	stdout.Reset()

	in, closeCache, err := a.newInterp(&stdout)
	if err != nil {
		t.Fatalf("newInterp error: %v", err)
	}
	defer closeCache()

	if a.evalLine(in, "set x 5") {
		t.Error("evalLine should not quit")
	}
	if stdout.String() != "5\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "5\n")
	}

	stdout.Reset()
	if a.evalLine(in, "{*}{}"); stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("empty expansion printed (%q, %q)", stdout.String(), stderr.String())
	}

	a.evalLine(in, "nosuchcommand")
	if !strings.Contains(stderr.String(), `invalid command name "nosuchcommand"`) {
		t.Errorf("stderr = %q", stderr.String())
	}

	stdout.Reset()
	a.evalLine(in, ":disasm set y 2")
	if !strings.Contains(stdout.String(), "tickle bytecode") {
		t.Errorf(":disasm output = %q", stdout.String())
	}

	stdout.Reset()
	a.evalLine(in, ":cache")
	if !strings.HasPrefix(stdout.String(), "units ") {
		t.Errorf(":cache output = %q", stdout.String())
	}

	if !a.evalLine(in, ":quit") {
		t.Error(":quit should end the session")
	}
}

func TestCompleteLine(t *testing.T) {
	commands := []string{"lappend", "lindex", "list", "puts"}
	tests := []struct {
		line string
		want []string
	}{
		{"li", []string{"lindex", "list"}},
		{"set x [lin", []string{"set x [lindex"}},
		{"p", []string{"puts"}},
		{"set x ", nil},
		{"zz", nil},
	}
	for _, tt := range tests {
		got := completeLine(tt.line, commands)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("completeLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}
