package server

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chazu/tickle/compiler"
	"github.com/chazu/tickle/config"
	"github.com/chazu/tickle/pkg/parser"
)

// Severity of a Problem.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

// Problem is a diagnostic located in a document.
type Problem struct {
	Severity Severity
	Offset   int
	Size     int
	Message  string
}

// ProcDef is a procedure defined at the top level of a document.
type ProcDef struct {
	Name   string
	Args   string
	Body   string
	Offset int // start of the proc command
	Size   int
	// BodyOffset is where the body text starts in the document.
	BodyOffset int
}

// Analysis is what the server knows about one document.
type Analysis struct {
	Source   string
	Procs    map[string]*ProcDef
	Problems []Problem
}

// Analyze tokenizes and compiles src. Known holds the names of commands
// that exist without being defined in the document. A nil known disables
// the unknown-command check.
func Analyze(src string, cfg config.Compiler, known map[string]bool) *Analysis {
	a := &Analysis{Source: src, Procs: make(map[string]*ProcDef)}

	tree, _ := parser.New(cfg.MaxNestingDepth).ParseScript(src, 0, len(src), parser.ModeScript)
	for _, cmd := range tree.Commands() {
		if def := procDef(tree, cmd); def != nil {
			a.Procs[def.Name] = def
		}
	}

	opts := []compiler.Option{compiler.WithConfig(cfg)}
	if _, err := compiler.Compile(src, opts...); err != nil {
		a.addCompileError(err, 0)
	}
	for _, def := range a.sortedProcs() {
		params, err := procParams(def.Args)
		if err != nil {
			a.Problems = append(a.Problems, Problem{
				Severity: SeverityError,
				Offset:   def.Offset,
				Size:     len("proc"),
				Message:  fmt.Sprintf("bad argument list for %q: %v", def.Name, err),
			})
			continue
		}
		if _, err := compiler.CompileProcBody(def.Body, params, opts...); err != nil {
			a.addCompileError(err, def.BodyOffset)
		}
	}

	if known != nil {
		a.checkCommands(tree, known)
	}
	sort.SliceStable(a.Problems, func(i, j int) bool {
		return a.Problems[i].Offset < a.Problems[j].Offset
	})
	return a
}

func (a *Analysis) addCompileError(err error, base int) {
	p := Problem{Severity: SeverityError, Offset: base, Message: err.Error()}
	var ce *compiler.Error
	if errors.As(err, &ce) {
		p.Offset = base + ce.Offset
		p.Message = ce.Msg
		p.Size = 1
	}
	a.Problems = append(a.Problems, p)
}

func (a *Analysis) sortedProcs() []*ProcDef {
	defs := make([]*ProcDef, 0, len(a.Procs))
	for _, def := range a.Procs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Offset < defs[j].Offset })
	return defs
}

// checkCommands warns about top-level commands whose literal name is
// neither known nor defined in the document.
func (a *Analysis) checkCommands(tree *parser.Tree, known map[string]bool) {
	for _, cmd := range tree.Commands() {
		words := tree.Words(cmd)
		if len(words) == 0 {
			continue
		}
		name, ok := literalWord(tree, words[0])
		if !ok {
			continue
		}
		if known[name] || known[trimGlobal(name)] || a.Procs[trimGlobal(name)] != nil {
			continue
		}
		tok := tree.Tokens[words[0]]
		a.Problems = append(a.Problems, Problem{
			Severity: SeverityWarning,
			Offset:   tok.Start,
			Size:     tok.Size,
			Message:  fmt.Sprintf("unknown command %q", name),
		})
	}
}

// ---------------------------------------------------------------------------
// Tree helpers
// ---------------------------------------------------------------------------

// literalWord returns the value of a word that needs no substitution.
func literalWord(tree *parser.Tree, i int) (string, bool) {
	tok := tree.Tokens[i]
	if tok.Type != parser.TokenSimpleWord {
		return "", false
	}
	return tree.Text(i + 1), true
}

// procDef recognizes "proc name args body" with literal words.
func procDef(tree *parser.Tree, cmd int) *ProcDef {
	words := tree.Words(cmd)
	if len(words) != 4 {
		return nil
	}
	var lit [4]string
	for k, w := range words {
		s, ok := literalWord(tree, w)
		if !ok {
			return nil
		}
		lit[k] = s
	}
	if trimGlobal(lit[0]) != "proc" {
		return nil
	}
	tok := tree.Tokens[cmd]
	return &ProcDef{
		Name:       trimGlobal(lit[1]),
		Args:       lit[2],
		Body:       lit[3],
		Offset:     tok.Start,
		Size:       tok.Size,
		BodyOffset: tree.Tokens[words[3]+1].Start,
	}
}

func procParams(args string) ([]string, error) {
	elems, err := parser.SplitList(args)
	if err != nil {
		return nil, err
	}
	params := make([]string, 0, len(elems))
	for _, e := range elems {
		parts, err := parser.SplitList(e)
		if err != nil {
			return nil, err
		}
		if len(parts) == 0 || len(parts) > 2 {
			return nil, fmt.Errorf("bad argument specifier %q", e)
		}
		params = append(params, parts[0])
	}
	return params, nil
}

func trimGlobal(name string) string {
	if len(name) > 2 && name[:2] == "::" {
		return name[2:]
	}
	return name
}

// References returns the offsets of every command named name in src,
// including commands inside braced words that parse as scripts.
func References(src, name string) []int {
	var out []int
	var walk func(start, end int, depth int)
	walk = func(start, end int, depth int) {
		if depth > parser.DefaultMaxDepth {
			return
		}
		tree, _ := parser.ParseScript(src, start, end, parser.ModeScript)
		for _, cmd := range tree.Commands() {
			for k, w := range tree.Words(cmd) {
				lit, ok := literalWord(tree, w)
				if !ok {
					continue
				}
				if k == 0 && trimGlobal(lit) == name {
					out = append(out, tree.Tokens[w].Start)
				}
				text := tree.Tokens[w+1]
				if text.Start > tree.Tokens[w].Start {
					walk(text.Start, text.End(), depth+1)
				}
			}
		}
	}
	walk(0, len(src), 0)
	return out
}
