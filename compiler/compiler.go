package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/bytecode"
	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Results and registry
// ---------------------------------------------------------------------------

// Result is the outcome of a command compiler that did not fail.
type Result int

const (
	// Declined means the call shape cannot be specialized; the driver emits
	// a generic invocation instead.
	Declined Result = iota
	// Specialized means the command compiled to inline bytecode.
	Specialized
)

func (r Result) String() string {
	if r == Specialized {
		return "specialized"
	}
	return "declined"
}

// cmdCompiler compiles one command. It leaves exactly one value on the stack
// when it returns Specialized. It may emit before declining; the driver
// rolls the environment back.
type cmdCompiler func(c *Compiler, cmd *command) (Result, error)

var commandCompilers = map[string]cmdCompiler{}

func register(name string, fn cmdCompiler) {
	commandCompilers[name] = fn
}

func lookupCommand(name string) cmdCompiler {
	return commandCompilers[strings.TrimPrefix(name, "::")]
}

// IsSpecialized reports whether name has a command compiler.
func IsSpecialized(name string) bool {
	return lookupCommand(name) != nil
}

// SpecializedCommands returns the names with a command compiler.
func SpecializedCommands() []string {
	names := make([]string, 0, len(commandCompilers))
	for name := range commandCompilers {
		names = append(names, name)
	}
	return names
}

// ---------------------------------------------------------------------------
// Compiler
// ---------------------------------------------------------------------------

// Compiler turns tickle source into bytecode. A Compiler is single-use and
// not safe for concurrent use.
type Compiler struct {
	env    *bytecode.Env
	cfg    config.Compiler
	log    commonlog.Logger
	parser *parser.Parser
	source string
	depth  int

	// loop range handle -> stack depth at the start of its body
	loopBase map[int]int

	// loop ranges that do not accept continue
	noContinue map[int]bool

	// open expanded invocations, now and at the start of each loop body
	expanding  int
	loopExpand map[int]int

	specialized, declined int
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithConfig applies the compiler section of a tickle.toml.
func WithConfig(cfg config.Compiler) Option {
	return func(c *Compiler) { c.cfg = cfg }
}

// WithLogger sets the logger used for decline and widening events.
func WithLogger(log commonlog.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// WithLocals compiles in procedure scope with the given frame layout.
func WithLocals(locals *bytecode.LocalTable) Option {
	return func(c *Compiler) { c.env.Locals = locals }
}

// WithGeneric disables every command compiler, so each command compiles to
// a generic invocation.
func WithGeneric() Option {
	return func(c *Compiler) { c.cfg.Specialize = false }
}

// WithNarrowJumpLimit overrides the largest distance of a 1-byte jump.
func WithNarrowJumpLimit(n int) Option {
	return func(c *Compiler) { c.cfg.NarrowJumpLimit = n }
}

// WithJumpTableMinArms sets how many literal arms a switch needs before it
// compiles to a jump table.
func WithJumpTableMinArms(n int) Option {
	return func(c *Compiler) { c.cfg.JumpTableMinArms = n }
}

func newCompiler(src string, opts ...Option) *Compiler {
	c := &Compiler{
		env:        bytecode.NewEnv(nil),
		cfg:        config.DefaultCompiler(),
		log:        commonlog.GetLogger("tickle.compiler"),
		source:     src,
		loopBase:   make(map[int]int),
		noContinue: make(map[int]bool),
		loopExpand: make(map[int]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.MaxNestingDepth <= 0 {
		c.cfg.MaxNestingDepth = parser.DefaultMaxDepth
	}
	c.env.NarrowJumpLimit = c.cfg.NarrowJumpLimit
	c.env.Log = c.log
	c.parser = parser.New(c.cfg.MaxNestingDepth)
	return c
}

// Compile compiles a script at global scope.
func Compile(src string, opts ...Option) (*bytecode.ByteCode, error) {
	c := newCompiler(src, opts...)
	if err := c.compileTopLevel(); err != nil {
		return nil, err
	}
	return c.finish()
}

// CompileProcBody compiles a procedure body whose frame starts with params.
func CompileProcBody(src string, params []string, opts ...Option) (*bytecode.ByteCode, error) {
	opts = append([]Option{WithLocals(bytecode.NewLocalTable(params...))}, opts...)
	return Compile(src, opts...)
}

// CompileExpr compiles a standalone expression. Text that does not parse
// compiles to code raising the syntax error.
func CompileExpr(src string, opts ...Option) (*bytecode.ByteCode, error) {
	c := newCompiler(src, opts...)
	if err := c.compileExprText(scriptText{src: src, end: len(src), tracked: true}); err != nil {
		return nil, err
	}
	return c.finish()
}

func (c *Compiler) compileTopLevel() error {
	tree, err := c.parser.ParseScript(c.source, 0, len(c.source), parser.ModeScript)
	if err != nil {
		return sourceError(c.source, err)
	}
	return c.compileTree(scriptText{src: c.source, end: len(c.source), tracked: true}, tree)
}

func (c *Compiler) finish() (*bytecode.ByteCode, error) {
	c.env.Emit(bytecode.OpDone)
	bc, err := c.env.Build()
	if err != nil {
		return nil, fmt.Errorf("compiler: %w", err)
	}
	bc.Source = c.source
	c.log.Debugf("compiled %d bytes: %d specialized, %d declined", len(bc.Code), c.specialized, c.declined)
	return bc, nil
}

// Env exposes the compile environment, mostly for tests.
func (c *Compiler) Env() *bytecode.Env { return c.env }

// procScope reports whether variables resolve to frame slots.
func (c *Compiler) procScope() bool { return c.env.Locals != nil }

// localSlot returns the frame slot for name, allocating one if needed.
func (c *Compiler) localSlot(name string) (int, bool) {
	if !c.procScope() || parser.IsQualified(name) {
		return 0, false
	}
	return c.env.Locals.Find(name), true
}

// ---------------------------------------------------------------------------
// Script text
// ---------------------------------------------------------------------------

// scriptText is a span of script to compile. Spans of the unit's own source
// are tracked, so command locations can be recorded for them; text that had
// to be decoded first is not.
type scriptText struct {
	src        string
	start, end int
	tracked    bool
}

func decodedText(s string) scriptText {
	return scriptText{src: s, end: len(s)}
}

func (t scriptText) String() string { return t.src[t.start:t.end] }

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

func (c *Compiler) enter() error {
	c.depth++
	if c.depth > c.cfg.MaxNestingDepth {
		return ErrTooDeep
	}
	return nil
}

func (c *Compiler) leave() { c.depth-- }

// compileTree compiles every command of a parsed script, leaving the value
// of the last one on the stack.
func (c *Compiler) compileTree(t scriptText, tree *parser.Tree) error {
	if err := c.enter(); err != nil {
		return err
	}
	defer c.leave()

	cmds := tree.Commands()
	if len(cmds) == 0 {
		c.env.PushLiteral("")
		return nil
	}
	for i, ci := range cmds {
		if i > 0 {
			c.env.Emit(bytecode.OpPop)
		}
		if err := c.compileCommand(t, tree, ci); err != nil {
			return err
		}
	}
	return nil
}

// compileBody compiles a script that was a literal word of an enclosing
// command. A body that fails to parse raises its parse error when reached.
func (c *Compiler) compileBody(t scriptText) error {
	tree, err := c.parser.ParseScript(t.src, t.start, t.end, parser.ModeScript)
	if err != nil {
		var pe *parser.ParseError
		if errors.As(err, &pe) && pe.Kind == parser.ErrNestingTooDeep {
			return sourceError(t.src, err)
		}
		c.emitRuntimeError(sourceError(t.src, err).Msg)
		return nil
	}
	return c.compileTree(t, tree)
}

// emitRuntimeError compiles code that raises msg when executed.
func (c *Compiler) emitRuntimeError(msg string) {
	c.env.PushLiteral(msg)
	c.env.Emit(bytecode.OpSyntax)
}

func (c *Compiler) compileCommand(t scriptText, tree *parser.Tree, ci int) error {
	tok := tree.Tokens[ci]
	h := -1
	if t.tracked {
		h = c.env.BeginCommand(tok.Start, tok.Size)
	}
	cmd := &command{text: t, tree: tree, index: ci, words: tree.Words(ci)}
	if len(cmd.words) == 0 {
		// Only empty literal expansions: the command does nothing.
		c.env.PushLiteral("")
	} else if err := c.dispatch(cmd); err != nil {
		return err
	}
	if h >= 0 {
		c.env.EndCommand(h)
	}
	return nil
}

func (c *Compiler) dispatch(cmd *command) error {
	if cmd.hasExpansion() {
		return c.compileExpanded(cmd)
	}
	if c.cfg.Specialize {
		if name, ok := cmd.literal(0); ok {
			if fn := lookupCommand(name); fn != nil {
				cp := c.env.Checkpoint()
				res, err := fn(c, cmd)
				if err != nil {
					return err
				}
				if res == Specialized {
					c.specialized++
					return nil
				}
				if err := c.env.Rollback(cp); err != nil {
					return fmt.Errorf("compiler: %w", err)
				}
				c.declined++
				c.log.Debugf("declined %s at offset %d", name, cmd.tree.Tokens[cmd.index].Start)
			}
		}
	}
	return c.compileGeneric(cmd)
}

// compileGeneric pushes every word and invokes the command by name.
func (c *Compiler) compileGeneric(cmd *command) error {
	for i := range cmd.words {
		if err := c.compileWord(cmd, i); err != nil {
			return err
		}
	}
	c.env.EmitInvoke(len(cmd.words))
	return nil
}

// compileExpanded invokes a command with at least one word whose list value
// is spliced into the arguments at run time.
func (c *Compiler) compileExpanded(cmd *command) error {
	c.env.Emit(bytecode.OpExpandStart)
	c.expanding++
	defer func() { c.expanding-- }()
	for i, wi := range cmd.words {
		if cmd.tree.Tokens[wi].Type != parser.TokenExpandWord {
			if err := c.compileWord(cmd, i); err != nil {
				return err
			}
			continue
		}
		pieces := parser.Children(cmd.tree.Tokens, wi)
		if err := c.pushPieces(cmd.text, cmd.tree.Tokens, tokenPieces(pieces)); err != nil {
			return err
		}
		c.env.Emit(bytecode.OpExpandStkTop, i+1)
	}
	c.env.Emit(bytecode.OpInvokeExpanded)
	c.env.AdjustDepth(-len(cmd.words))
	return nil
}
