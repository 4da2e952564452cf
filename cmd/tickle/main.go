// tickle CLI - compile, disassemble and run tickle scripts
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/tickle/cache"
	"github.com/chazu/tickle/compiler"
	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
	"github.com/chazu/tickle/server"
	"github.com/chazu/tickle/vm"

	_ "github.com/tliron/commonlog/simple"
)

const version = "0.1.0"

// compiledExt marks a file holding serialized bytecode.
const compiledExt = ".tbc"

func main() {
	os.Exit(newApp(os.Stdin, os.Stdout, os.Stderr).run(os.Args[1:]))
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	dir    string // where the tickle.toml search starts
	cfg    *config.Config
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{stdin: stdin, stdout: stdout, stderr: stderr, dir: "."}
}

func (a *app) usage() {
	fmt.Fprintf(a.stderr, "Usage: tickle <command> [options] [args...]\n\n")
	fmt.Fprintf(a.stderr, "Commands:\n")
	fmt.Fprintf(a.stderr, "  run      Run a script or a compiled %s file\n", compiledExt)
	fmt.Fprintf(a.stderr, "  repl     Start an interactive session\n")
	fmt.Fprintf(a.stderr, "  check    Report syntax errors without running\n")
	fmt.Fprintf(a.stderr, "  disasm   Print the bytecode of a script\n")
	fmt.Fprintf(a.stderr, "  compile  Write the bytecode of a script to a %s file\n", compiledExt)
	fmt.Fprintf(a.stderr, "  cache    Show or purge the compile cache (stats, purge)\n")
	fmt.Fprintf(a.stderr, "  lsp      Start the language server on stdio\n")
	fmt.Fprintf(a.stderr, "  version  Print the version\n")
	fmt.Fprintf(a.stderr, "\nGlobal options (before the command):\n")
	fmt.Fprintf(a.stderr, "  -v       Increase log verbosity (repeatable)\n")
	fmt.Fprintf(a.stderr, "\nExamples:\n")
	fmt.Fprintf(a.stderr, "  tickle run script.tcl a b    # argv is {a b}\n")
	fmt.Fprintf(a.stderr, "  tickle disasm -e 'expr {1+2}'\n")
	fmt.Fprintf(a.stderr, "  tickle compile -o out.tbc script.tcl && tickle run out.tbc\n")
}

func (a *app) run(args []string) int {
	verbosity := 0
	for len(args) > 0 && strings.HasPrefix(args[0], "-v") && strings.Trim(args[0][1:], "v") == "" {
		verbosity += len(args[0]) - 1
		args = args[1:]
	}
	if len(args) == 0 {
		a.usage()
		return 2
	}

	cfg, err := config.FindAndLoad(a.dir)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	a.cfg = cfg
	if verbosity < cfg.Log.Verbosity {
		verbosity = cfg.Log.Verbosity
	}
	commonlog.Configure(verbosity, cfg.LogFile())

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "run":
		return a.cmdRun(rest)
	case "repl":
		return a.cmdRepl(rest)
	case "check":
		return a.cmdCheck(rest)
	case "disasm":
		return a.cmdDisasm(rest)
	case "compile":
		return a.cmdCompile(rest)
	case "cache":
		return a.cmdCache(rest)
	case "lsp":
		return a.cmdLSP(rest)
	case "version":
		fmt.Fprintln(a.stdout, version)
		return 0
	case "-h", "--help", "help":
		a.usage()
		return 0
	default:
		fmt.Fprintf(a.stderr, "unknown command %q\n\n", cmd)
		a.usage()
		return 2
	}
}

// newInterp creates an interpreter that writes to out and uses the
// configured cache. The returned function closes the cache.
func (a *app) newInterp(out io.Writer) (*vm.Interp, func(), error) {
	c, err := cache.FromConfig(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	in := vm.New(
		vm.WithOutput(out),
		vm.WithCache(c),
		vm.WithCompilerConfig(a.cfg.Compiler),
	)
	return in, func() { c.Close() }, nil
}

// readSource returns the text of a script given with -e or as a path.
// A path of "-" reads stdin.
func (a *app) readSource(inline string, fs *flag.FlagSet) (name, src string, err error) {
	if inline != "" {
		return "-e", inline, nil
	}
	if fs.NArg() == 0 {
		return "", "", errors.New("no script given")
	}
	name = fs.Arg(0)
	var data []byte
	if name == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", "", err
	}
	return name, string(data), nil
}

// reportError prints err, locating compile errors in name.
func (a *app) reportError(name string, err error) {
	var ce *compiler.Error
	if errors.As(err, &ce) {
		fmt.Fprintf(a.stderr, "%s:%d:%d: %s\n", name, ce.Line, ce.Column, ce.Msg)
		return
	}
	var exc *vm.Exception
	if errors.As(err, &exc) && exc.ErrorInfo != "" {
		fmt.Fprintf(a.stderr, "Error: %s\n", exc.ErrorInfo)
		return
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
}

func (a *app) compilerOptions(generic bool) []compiler.Option {
	opts := []compiler.Option{
		compiler.WithConfig(a.cfg.Compiler),
		compiler.WithLogger(commonlog.GetLogger("tickle.compiler")),
	}
	if generic {
		opts = append(opts, compiler.WithGeneric())
	}
	return opts
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func (a *app) cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	inline := fs.String("e", "", "script text to run instead of a file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	in, closeCache, err := a.newInterp(a.stdout)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	defer closeCache()

	var scriptArgs []string
	if *inline != "" {
		scriptArgs = fs.Args()
	} else if fs.NArg() > 1 {
		scriptArgs = fs.Args()[1:]
	}
	if _, err := in.Invoke("set", "argv", parser.MergeList(scriptArgs)); err != nil {
		a.reportError("-", err)
		return 1
	}

	if *inline == "" && filepath.Ext(fs.Arg(0)) == compiledExt {
		return a.runCompiled(in, fs.Arg(0))
	}

	name, src, err := a.readSource(*inline, fs)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := in.Invoke("set", "argv0", name); err != nil {
		a.reportError(name, err)
		return 1
	}
	if _, err := in.Eval(src); err != nil {
		a.reportError(name, err)
		return 1
	}
	return 0
}

func (a *app) runCompiled(in *vm.Interp, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	bc, err := bytecode.Unmarshal(data)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %s: %v\n", path, err)
		return 1
	}
	if _, err := in.Run(bc); err != nil {
		a.reportError(path, err)
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

func (a *app) cmdCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	expr := fs.Bool("expr", false, "check files as expressions")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(a.stderr, "Error: no files given")
		return 2
	}

	failed := 0
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			failed++
			continue
		}
		if *expr {
			_, err = compiler.CompileExpr(string(data), a.compilerOptions(false)...)
		} else {
			_, err = compiler.Compile(string(data), a.compilerOptions(false)...)
		}
		if err != nil {
			a.reportError(path, err)
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// disasm / compile
// ---------------------------------------------------------------------------

func (a *app) cmdDisasm(args []string) int {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	inline := fs.String("e", "", "script text to disassemble instead of a file")
	expr := fs.Bool("expr", false, "compile the source as an expression")
	generic := fs.Bool("generic", false, "invoke every command instead of compiling it inline")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var bc *bytecode.ByteCode
	var name string
	if *inline == "" && filepath.Ext(fs.Arg(0)) == compiledExt {
		name = fs.Arg(0)
		data, err := os.ReadFile(name)
		if err == nil {
			bc, err = bytecode.Unmarshal(data)
		}
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
	} else {
		var src string
		var err error
		name, src, err = a.readSource(*inline, fs)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		bc, err = a.compile(src, *expr, *generic)
		if err != nil {
			a.reportError(name, err)
			return 1
		}
	}
	fmt.Fprint(a.stdout, bc.DisassembleWithName(name))
	return 0
}

func (a *app) compile(src string, expr, generic bool) (*bytecode.ByteCode, error) {
	if expr {
		return compiler.CompileExpr(src, a.compilerOptions(generic)...)
	}
	return compiler.Compile(src, a.compilerOptions(generic)...)
}

func (a *app) cmdCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	out := fs.String("o", "", "output file (default: input with "+compiledExt+")")
	generic := fs.Bool("generic", false, "invoke every command instead of compiling it inline")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	name, src, err := a.readSource("", fs)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	bc, err := a.compile(src, false, *generic)
	if err != nil {
		a.reportError(name, err)
		return 1
	}
	data, err := bytecode.Marshal(bc)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	path := *out
	if path == "" {
		if name == "-" {
			fmt.Fprintln(a.stderr, "Error: -o is required when reading stdin")
			return 2
		}
		path = strings.TrimSuffix(name, filepath.Ext(name)) + compiledExt
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(a.stdout, "Wrote %s (%d bytes of code, %d literals)\n", path, len(bc.Code), len(bc.Literals))
	return 0
}

// ---------------------------------------------------------------------------
// cache
// ---------------------------------------------------------------------------

func (a *app) cmdCache(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.stderr, "Usage: tickle cache stats|purge")
		return 2
	}
	c, err := cache.FromConfig(a.cfg)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	defer c.Close()

	path := c.Path()
	if path == "" {
		path = "(memory only; set cache.enabled in " + config.FileName + ")"
	}
	n, err := c.Stored()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	switch args[0] {
	case "stats":
		fmt.Fprintf(a.stdout, "Path:  %s\n", path)
		fmt.Fprintf(a.stdout, "Units: %d\n", n)
		return 0
	case "purge":
		if err := c.Purge(); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(a.stdout, "Purged %d units from %s\n", n, path)
		return 0
	default:
		fmt.Fprintf(a.stderr, "unknown cache command %q\n", args[0])
		return 2
	}
}

// ---------------------------------------------------------------------------
// lsp
// ---------------------------------------------------------------------------

func (a *app) cmdLSP(_ []string) int {
	// stdout carries the protocol.
	in, closeCache, err := a.newInterp(a.stderr)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	defer closeCache()

	if err := server.NewLSP(in, a.cfg.Compiler).Run(); err != nil {
		fmt.Fprintf(a.stderr, "LSP error: %v\n", err)
		return 1
	}
	return 0
}
