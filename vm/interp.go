// Package vm is the reference executor for compiled tickle units. It runs
// bytecode produced by the compiler against an interpreter holding the
// command table, the procedures and the variable frames.
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/tickle/cache"
	"github.com/chazu/tickle/compiler"
	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

// Completion codes.
const (
	CodeOK       = 0
	CodeError    = 1
	CodeReturn   = 2
	CodeBreak    = 3
	CodeContinue = 4
)

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// Exception is a non-ok completion travelling up the Go call stack.
type Exception struct {
	Code    int
	Result  string
	Options string
	// ReturnCode and Level are the -code and -level of a return in
	// flight (Code == CodeReturn).
	ReturnCode int
	Level      int
	// ErrorInfo traces the commands an uncaught error passed through.
	ErrorInfo string
}

func (e *Exception) Error() string {
	switch e.Code {
	case CodeError:
		return e.Result
	case CodeBreak:
		return `invoked "break" outside of a loop`
	case CodeContinue:
		return `invoked "continue" outside of a loop`
	}
	return fmt.Sprintf("completion code %d: %s", e.Code, e.Result)
}

func errorf(format string, args ...any) *Exception {
	return &Exception{
		Code:    CodeError,
		Result:  fmt.Sprintf(format, args...),
		Options: "-code 1 -level 0 -errorcode NONE",
	}
}

// raise builds the exception for a completion with an options dictionary.
func raise(code int, result, options string) *Exception {
	if code == CodeError && !strings.Contains(options, "-errorcode") {
		options = strings.TrimSpace(options + " -errorcode NONE")
	}
	return &Exception{Code: code, Result: result, Options: options}
}

// asException converts any Go error into an error completion.
func asException(err error) *Exception {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	var ce *compiler.Error
	if errors.As(err, &ce) {
		return errorf("%s", ce.Msg)
	}
	return errorf("%s", err.Error())
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Command implements a command invoked by name. args[0] is the name.
type Command func(in *Interp, args []string) (string, error)

// Interp holds the state shared by every unit it runs. An Interp is not
// safe for concurrent use.
type Interp struct {
	global   *Frame
	frame    *Frame
	commands map[string]Command
	procs    map[string]*procedure
	cache    *cache.Cache
	cfg      config.Compiler
	opts     []compiler.Option
	out      io.Writer
	log      commonlog.Logger
	depth    int
	maxDepth int
}

// Option configures an Interp.
type Option func(*Interp)

// WithOutput sets where puts writes.
func WithOutput(w io.Writer) Option {
	return func(in *Interp) { in.out = w }
}

// WithCache shares a compile cache between interpreters.
func WithCache(c *cache.Cache) Option {
	return func(in *Interp) { in.cache = c }
}

// WithCompilerConfig sets the compiler settings used for every unit.
func WithCompilerConfig(cfg config.Compiler) Option {
	return func(in *Interp) { in.cfg = cfg }
}

// WithLogger sets the interpreter logger.
func WithLogger(log commonlog.Logger) Option {
	return func(in *Interp) { in.log = log }
}

// New creates an interpreter with the builtin commands.
func New(opts ...Option) *Interp {
	in := &Interp{
		global:   newFrame(nil, 0),
		commands: make(map[string]Command),
		procs:    make(map[string]*procedure),
		cfg:      config.DefaultCompiler(),
		out:      os.Stdout,
		log:      commonlog.GetLogger("tickle.vm"),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.cache == nil {
		in.cache = cache.New()
	}
	in.frame = in.global
	in.maxDepth = in.cfg.MaxNestingDepth
	if in.maxDepth <= 0 {
		in.maxDepth = 1000
	}
	in.opts = []compiler.Option{compiler.WithConfig(in.cfg)}
	registerBuiltins(in)
	return in
}

// Register adds or replaces a command.
func (in *Interp) Register(name string, cmd Command) {
	in.commands[name] = cmd
}

// Commands returns the sorted names of every command.
func (in *Interp) Commands() []string {
	names := make([]string, 0, len(in.commands))
	for name := range in.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cache returns the compile cache.
func (in *Interp) Cache() *cache.Cache { return in.cache }

// Eval compiles and runs a script at global level. A return at top level
// ends the script with its value; break and continue are errors.
func (in *Interp) Eval(src string) (string, error) {
	saved := in.frame
	in.frame = in.global
	defer func() { in.frame = saved }()
	return topLevel(in.evalScript(src))
}

// Run executes an already compiled unit at global level, with the same
// completion rules as Eval.
func (in *Interp) Run(bc *bytecode.ByteCode) (string, error) {
	saved := in.frame
	in.frame = in.global
	defer func() { in.frame = saved }()
	return topLevel(in.exec(bc, in.global))
}

func topLevel(res string, err error) (string, error) {
	if err == nil {
		return res, nil
	}
	exc := asException(err)
	if exc.Code == CodeReturn {
		exc = unwindReturn(exc)
	}
	switch exc.Code {
	case CodeOK, CodeReturn:
		return exc.Result, nil
	case CodeError:
		return "", exc
	case CodeBreak, CodeContinue:
		return "", errorf("%s", exc.Error())
	}
	return "", errorf("command returned bad code: %d", exc.Code)
}

// unwindReturn lowers the level of a return in flight by one. At level
// zero the return's own code takes effect.
func unwindReturn(exc *Exception) *Exception {
	level := exc.Level - 1
	if level > 0 {
		return &Exception{Code: CodeReturn, Result: exc.Result, Options: exc.Options, ReturnCode: exc.ReturnCode, Level: level}
	}
	if exc.ReturnCode == CodeOK {
		return &Exception{Code: CodeOK, Result: exc.Result}
	}
	return raise(exc.ReturnCode, exc.Result, exc.Options)
}

// ---------------------------------------------------------------------------
// Compilation
// ---------------------------------------------------------------------------

func (in *Interp) compileScript(src string) (*bytecode.ByteCode, error) {
	key := cache.Key(cache.KindScript, src, nil, in.cfg)
	return in.cache.GetOrCompile(key, func() (*bytecode.ByteCode, error) {
		return compiler.Compile(src, in.opts...)
	})
}

func (in *Interp) compileExpr(src string) (*bytecode.ByteCode, error) {
	key := cache.Key(cache.KindExpr, src, nil, in.cfg)
	return in.cache.GetOrCompile(key, func() (*bytecode.ByteCode, error) {
		return compiler.CompileExpr(src, in.opts...)
	})
}

func (in *Interp) compileProc(body string, params []string) (*bytecode.ByteCode, error) {
	key := cache.Key(cache.KindProc, body, params, in.cfg)
	return in.cache.GetOrCompile(key, func() (*bytecode.ByteCode, error) {
		return compiler.CompileProcBody(body, params, in.opts...)
	})
}

// evalScript runs src in the current frame and passes every completion
// through unchanged.
func (in *Interp) evalScript(src string) (string, error) {
	bc, err := in.compileScript(src)
	if err != nil {
		return "", asException(err)
	}
	return in.exec(bc, in.frame)
}

// evalExpr evaluates an expression in the current frame.
func (in *Interp) evalExpr(src string) (string, error) {
	bc, err := in.compileExpr(src)
	if err != nil {
		return "", asException(err)
	}
	return in.exec(bc, in.frame)
}

// EvalExpr evaluates an expression at global level.
func (in *Interp) EvalExpr(src string) (string, error) {
	saved := in.frame
	in.frame = in.global
	defer func() { in.frame = saved }()
	return in.evalExpr(src)
}

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// invoke runs the command named by words[0].
func (in *Interp) invoke(words []string) (string, error) {
	if len(words) == 0 {
		return "", nil
	}
	name := words[0]
	cmd, ok := in.commands[name]
	if !ok {
		cmd, ok = in.commands[strings.TrimPrefix(name, "::")]
	}
	if !ok {
		return "", errorf("invalid command name %q", name)
	}
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > in.maxDepth {
		return "", errorf("too many nested evaluations (infinite loop?)")
	}
	res, err := cmd(in, words)
	if err != nil {
		return "", asException(err)
	}
	return res, nil
}

// Invoke runs a command with already substituted words.
func (in *Interp) Invoke(words ...string) (string, error) {
	return in.invoke(words)
}

// ---------------------------------------------------------------------------
// Procedures
// ---------------------------------------------------------------------------

type param struct {
	name   string
	def    string
	hasDef bool
}

type procedure struct {
	name   string
	params []param
	args   string
	body   string
}

func (p *procedure) paramNames() []string {
	names := make([]string, len(p.params))
	for i, a := range p.params {
		names[i] = a.name
	}
	return names
}

func (p *procedure) usage() string {
	var sb strings.Builder
	sb.WriteString(p.name)
	for i, a := range p.params {
		switch {
		case a.name == "args" && i == len(p.params)-1:
			sb.WriteString(" ?arg ...?")
		case a.hasDef:
			sb.WriteString(" ?" + a.name + "?")
		default:
			sb.WriteString(" " + a.name)
		}
	}
	return fmt.Sprintf("wrong # args: should be %q", sb.String())
}

func parseParams(spec string) ([]param, error) {
	elems, err := splitList(spec)
	if err != nil {
		return nil, err
	}
	params := make([]param, 0, len(elems))
	for _, e := range elems {
		parts, err := splitList(e)
		if err != nil {
			return nil, err
		}
		switch len(parts) {
		case 1:
			params = append(params, param{name: parts[0]})
		case 2:
			params = append(params, param{name: parts[0], def: parts[1], hasDef: true})
		default:
			if len(parts) == 0 {
				return nil, errorf("argument with no name")
			}
			return nil, errorf("too many fields in argument specifier %q", e)
		}
	}
	return params, nil
}

// defineProc registers a procedure under name.
func (in *Interp) defineProc(name, args, body string) error {
	params, err := parseParams(args)
	if err != nil {
		return err
	}
	p := &procedure{name: strings.TrimPrefix(name, "::"), params: params, args: args, body: body}
	in.procs[p.name] = p
	in.commands[p.name] = func(in *Interp, words []string) (string, error) {
		return in.callProc(p, words)
	}
	in.log.Debugf("defined proc %s", p.name)
	return nil
}

// callProc binds the arguments in a fresh frame and runs the body.
func (in *Interp) callProc(p *procedure, words []string) (string, error) {
	frame := newFrame(in.frame, in.frame.level+1)
	frame.words = words
	args := words[1:]
	for i, a := range p.params {
		switch {
		case a.name == "args" && i == len(p.params)-1:
			rest := []string{}
			if i < len(args) {
				rest = args[i:]
			}
			frame.local(a.name).setScalar(parser.MergeList(rest))
			args = nil
		case i < len(args):
			frame.local(a.name).setScalar(args[i])
		case a.hasDef:
			frame.local(a.name).setScalar(a.def)
		default:
			return "", errorf("%s", p.usage())
		}
	}
	if len(args) > len(p.params) {
		return "", errorf("%s", p.usage())
	}

	bc, err := in.compileProc(p.body, p.paramNames())
	if err != nil {
		return "", asException(err)
	}
	saved := in.frame
	in.frame = frame
	defer func() { in.frame = saved }()

	res, err := in.exec(bc, frame)
	if err == nil {
		return res, nil
	}
	exc := asException(err)
	switch exc.Code {
	case CodeReturn:
		exc = unwindReturn(exc)
		if exc.Code == CodeOK {
			return exc.Result, nil
		}
		return "", exc
	case CodeBreak, CodeContinue:
		return "", errorf("%s", exc.Error())
	}
	return "", exc
}
