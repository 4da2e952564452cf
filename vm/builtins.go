package vm

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chazu/tickle/pkg/parser"
)

func registerBuiltins(in *Interp) {
	for name, cmd := range map[string]Command{
		// variables
		"set":     cmdSet,
		"incr":    cmdIncr,
		"append":  cmdAppend,
		"lappend": cmdLappend,
		"unset":   cmdUnset,
		"global":  cmdGlobal,
		"upvar":   cmdUpvar,
		"array":   cmdArray,

		// procedures and evaluation
		"proc":    cmdProc,
		"rename":  cmdRename,
		"eval":    cmdEval,
		"uplevel": cmdUplevel,
		"expr":    cmdExpr,
		"source":  cmdSource,
		"info":    cmdInfo,
		"puts":    cmdPuts,

		// control
		"if":       cmdIf,
		"while":    cmdWhile,
		"for":      cmdFor,
		"foreach":  cmdForeach,
		"switch":   cmdSwitch,
		"break":    cmdBreak,
		"continue": cmdContinue,
		"catch":    cmdCatch,
		"try":      cmdTry,
		"return":   cmdReturn,
		"error":    cmdError,

		// lists and dictionaries
		"list":     cmdList,
		"llength":  cmdLlength,
		"lindex":   cmdLindex,
		"lrange":   cmdLrange,
		"linsert":  cmdLinsert,
		"lreplace": cmdLreplace,
		"lsearch":  cmdLsearch,
		"lsort":    cmdLsort,
		"lreverse": cmdLreverse,
		"lrepeat":  cmdLrepeat,
		"concat":   cmdConcat,
		"join":     cmdJoin,
		"split":    cmdSplit,
		"dict":     cmdDict,

		// strings
		"string": cmdString,
		"format": cmdFormat,
	} {
		in.commands[name] = cmd
	}
	registerMath(in)
}

// arity checks the argument count of args against min and max (max < 0
// means unbounded).
func arity(args []string, min, max int, usage string) error {
	n := len(args) - 1
	if n < min || (max >= 0 && n > max) {
		return wrongArgs(args[0], usage)
	}
	return nil
}

func wrongArgs(name, usage string) *Exception {
	if usage == "" {
		return errorf("wrong # args: should be %q", name)
	}
	return errorf("wrong # args: should be %q", name+" "+usage)
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

func cmdSet(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 2, "varName ?newValue?"); err != nil {
		return "", err
	}
	r := in.lookup(in.frame, args[1])
	if len(args) == 2 {
		return r.get()
	}
	return r.set(args[2])
}

func cmdIncr(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 2, "varName ?increment?"); err != nil {
		return "", err
	}
	amount := "1"
	if len(args) == 3 {
		amount = args[2]
	}
	return in.lookup(in.frame, args[1]).incr(amount)
}

func cmdAppend(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "varName ?value ...?"); err != nil {
		return "", err
	}
	r := in.lookup(in.frame, args[1])
	if len(args) == 2 {
		return r.get()
	}
	return r.appendString(strings.Join(args[2:], ""))
}

func cmdLappend(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "varName ?value ...?"); err != nil {
		return "", err
	}
	r := in.lookup(in.frame, args[1])
	if len(args) == 2 {
		return r.getOr("")
	}
	return r.lappend(args[2:]...)
}

func cmdUnset(in *Interp, args []string) (string, error) {
	complain := true
	i := 1
	if i < len(args) && args[i] == "-nocomplain" {
		complain = false
		i++
	}
	if i < len(args) && args[i] == "--" {
		i++
	}
	for ; i < len(args); i++ {
		if err := in.lookup(in.frame, args[i]).unset(complain); err != nil {
			return "", err
		}
	}
	return "", nil
}

func cmdGlobal(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "varName ?varName ...?"); err != nil {
		return "", err
	}
	if in.frame == in.global {
		return "", nil
	}
	for _, name := range args[1:] {
		local := name
		if i := strings.LastIndex(name, "::"); i >= 0 {
			local = name[i+2:]
		}
		in.frame.link(local, in.resolve(in.global, strings.TrimLeft(name, ":")))
	}
	return "", nil
}

// frameAt resolves a level argument: #n is absolute, n is relative to the
// current frame.
func (in *Interp) frameAt(level string) (*Frame, bool) {
	target := -1
	if strings.HasPrefix(level, "#") {
		n, ok := parseInt(level[1:])
		if !ok {
			return nil, false
		}
		target = int(n)
	} else {
		n, ok := parseInt(level)
		if !ok || n < 0 {
			return nil, false
		}
		target = in.frame.level - int(n)
	}
	for f := in.frame; f != nil; f = f.caller {
		if f.level == target {
			return f, true
		}
	}
	return nil, false
}

// levelArg splits an optional leading level argument off args.
func (in *Interp) levelArg(args []string, min int) (*Frame, []string, error) {
	if len(args) > min {
		first := args[0]
		if strings.HasPrefix(first, "#") || (len(first) > 0 && first[0] >= '0' && first[0] <= '9') {
			f, ok := in.frameAt(first)
			if !ok {
				return nil, nil, errorf("bad level %q", first)
			}
			return f, args[1:], nil
		}
	}
	f, ok := in.frameAt("1")
	if !ok {
		return nil, nil, errorf("bad level %q", "1")
	}
	return f, args, nil
}

func cmdUpvar(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, -1, "?level? otherVar localVar ?otherVar localVar ...?"); err != nil {
		return "", err
	}
	f, rest, err := in.levelArg(args[1:], 2)
	if err != nil {
		return "", err
	}
	if len(rest) == 0 || len(rest)%2 != 0 {
		return "", wrongArgs(args[0], "?level? otherVar localVar ?otherVar localVar ...?")
	}
	for i := 0; i < len(rest); i += 2 {
		if _, _, isElem := parser.SplitVarName(rest[i]); isElem {
			return "", errorf("bad variable name %q: can't link to an array element", rest[i])
		}
		in.frame.link(rest[i+1], in.resolve(f, rest[i]))
	}
	return "", nil
}

func cmdArray(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, 3, "subcommand arrayName ?arg ...?"); err != nil {
		return "", err
	}
	v := in.resolve(in.frame, args[2])
	switch args[1] {
	case "exists":
		return boolString(v.isArray()), nil
	case "size":
		if !v.isArray() {
			return "0", nil
		}
		return fmt.Sprint(len(v.elems)), nil
	case "names":
		pattern := ""
		if len(args) == 4 {
			pattern = args[3]
		}
		return parser.MergeList(arrayKeys(v, pattern)), nil
	case "get":
		var out []string
		for _, k := range arrayKeys(v, "") {
			out = append(out, k, v.elems[k])
		}
		return parser.MergeList(out), nil
	case "set":
		if len(args) != 4 {
			return "", wrongArgs("array set", "arrayName list")
		}
		elems, err := splitList(args[3])
		if err != nil {
			return "", err
		}
		if len(elems)%2 != 0 {
			return "", errorf("list must have an even number of elements")
		}
		if v.defined && !v.isArray() {
			return "", errorf("can't set %q: variable isn't array", args[2])
		}
		for i := 0; i < len(elems); i += 2 {
			if _, err := in.element(in.frame, args[2], elems[i]).set(elems[i+1]); err != nil {
				return "", err
			}
		}
		if !v.defined {
			v.elems, v.defined = make(map[string]string), true
		}
		return "", nil
	case "unset":
		if len(args) == 4 {
			if v.isArray() {
				for _, k := range arrayKeys(v, args[3]) {
					delete(v.elems, k)
				}
			}
			return "", nil
		}
		return "", varRef{v: v, name: args[2]}.unset(false)
	}
	return "", errorf("unknown or ambiguous subcommand %q: must be exists, get, names, set, size, or unset", args[1])
}

func arrayKeys(v *Var, pattern string) []string {
	if !v.isArray() {
		return nil
	}
	var keys []string
	for k := range v.elems {
		if pattern == "" || globMatch(pattern, k, false) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// Procedures and evaluation
// ---------------------------------------------------------------------------

func cmdProc(in *Interp, args []string) (string, error) {
	if err := arity(args, 3, 3, "name args body"); err != nil {
		return "", err
	}
	return "", in.defineProc(args[1], args[2], args[3])
}

func cmdRename(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, 2, "oldName newName"); err != nil {
		return "", err
	}
	from := strings.TrimPrefix(args[1], "::")
	to := strings.TrimPrefix(args[2], "::")
	cmd, ok := in.commands[from]
	if !ok {
		return "", errorf("can't rename %q: command doesn't exist", args[1])
	}
	if to != "" {
		if _, exists := in.commands[to]; exists {
			return "", errorf("can't rename to %q: command already exists", args[2])
		}
		in.commands[to] = cmd
		if p, ok := in.procs[from]; ok {
			in.procs[to] = p
		}
	}
	delete(in.commands, from)
	delete(in.procs, from)
	return "", nil
}

// concat joins words the way the concat command does: each is trimmed and
// empty ones are dropped.
func concat(words []string) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if t := strings.TrimSpace(w); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func cmdEval(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "arg ?arg ...?"); err != nil {
		return "", err
	}
	return in.evalScript(concat(args[1:]))
}

func cmdUplevel(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "?level? command ?arg ...?"); err != nil {
		return "", err
	}
	f, rest, err := in.levelArg(args[1:], 1)
	if err != nil {
		return "", err
	}
	if len(rest) == 0 {
		return "", wrongArgs(args[0], "?level? command ?arg ...?")
	}
	saved := in.frame
	in.frame = f
	defer func() { in.frame = saved }()
	return in.evalScript(concat(rest))
}

func cmdExpr(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "arg ?arg ...?"); err != nil {
		return "", err
	}
	return in.evalExpr(strings.Join(args[1:], " "))
}

func cmdSource(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 1, "fileName"); err != nil {
		return "", err
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return "", errorf("couldn't read file %q: %s", args[1], err.Error())
	}
	return in.evalScript(string(data))
}

func cmdPuts(in *Interp, args []string) (string, error) {
	rest := args[1:]
	newline := true
	if len(rest) > 0 && rest[0] == "-nonewline" {
		newline = false
		rest = rest[1:]
	}
	out := in.out
	switch len(rest) {
	case 1:
	case 2:
		switch rest[0] {
		case "stdout":
		case "stderr":
			out = os.Stderr
		default:
			return "", errorf("can not find channel named %q", rest[0])
		}
		rest = rest[1:]
	default:
		return "", wrongArgs(args[0], "?-nonewline? ?channelId? string")
	}
	s := rest[0]
	if newline {
		s += "\n"
	}
	if _, err := io.WriteString(out, s); err != nil {
		return "", errorf("error writing: %s", err.Error())
	}
	return "", nil
}

// ---------------------------------------------------------------------------
// info
// ---------------------------------------------------------------------------

func cmdInfo(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "subcommand ?arg ...?"); err != nil {
		return "", err
	}
	pattern := func() string {
		if len(args) > 2 {
			return args[2]
		}
		return ""
	}
	switch args[1] {
	case "exists":
		if len(args) != 3 {
			return "", wrongArgs("info exists", "varName")
		}
		return boolString(in.lookup(in.frame, args[2]).exists()), nil
	case "commands":
		var out []string
		for _, name := range in.Commands() {
			if p := pattern(); p == "" || globMatch(p, name, false) {
				out = append(out, name)
			}
		}
		return parser.MergeList(out), nil
	case "procs":
		var out []string
		for name := range in.procs {
			if p := pattern(); p == "" || globMatch(p, name, false) {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return parser.MergeList(out), nil
	case "args", "body":
		if len(args) != 3 {
			return "", wrongArgs("info "+args[1], "procname")
		}
		p, ok := in.procs[strings.TrimPrefix(args[2], "::")]
		if !ok {
			return "", errorf("%q isn't a procedure", args[2])
		}
		if args[1] == "body" {
			return p.body, nil
		}
		return parser.MergeList(p.paramNames()), nil
	case "level":
		if len(args) == 2 {
			return fmt.Sprint(in.frame.level), nil
		}
		f, ok := in.frameAt(args[2])
		if !ok || f.level == 0 {
			if args[2] == "0" || args[2] == "#0" {
				return "", nil
			}
			return "", errorf("bad level %q", args[2])
		}
		return parser.MergeList(f.words), nil
	case "vars", "locals":
		return parser.MergeList(in.frame.names(pattern())), nil
	case "globals":
		return parser.MergeList(in.global.names(pattern())), nil
	case "complete":
		if len(args) != 3 {
			return "", wrongArgs("info complete", "command")
		}
		return boolString(parser.IsComplete(args[2])), nil
	}
	return "", errorf("unknown or ambiguous subcommand %q: must be args, body, commands, complete, exists, globals, level, locals, procs, or vars", args[1])
}
