package vm

import (
	"strconv"
	"strings"

	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Generic control commands
//
// These run when a control command could not be compiled inline. Bodies are
// compiled on first use and run in the caller's frame.
// ---------------------------------------------------------------------------

func (in *Interp) condition(expr string) (bool, error) {
	v, err := in.evalExpr(expr)
	if err != nil {
		return false, err
	}
	return expectBool(v)
}

// loopOutcome classifies a body completion: stop is set for break, and a
// non-nil error is passed on.
func loopOutcome(err error) (stop bool, _ error) {
	if err == nil {
		return false, nil
	}
	exc := asException(err)
	switch exc.Code {
	case CodeBreak:
		return true, nil
	case CodeContinue:
		return false, nil
	}
	return false, exc
}

func cmdIf(in *Interp, args []string) (string, error) {
	n := len(args)
	i := 1
	for {
		if i >= n {
			return "", errorf("wrong # args: no expression after %q argument", args[i-1])
		}
		ok, err := in.condition(args[i])
		if err != nil {
			return "", err
		}
		i++
		if i < n && args[i] == "then" {
			i++
		}
		if i >= n {
			return "", errorf("wrong # args: no script following %q argument", args[i-1])
		}
		if ok {
			return in.evalScript(args[i])
		}
		i++
		if i >= n {
			return "", nil
		}
		switch args[i] {
		case "elseif":
			i++
			continue
		case "else":
			i++
			if i >= n {
				return "", errorf("wrong # args: no script following %q argument", "else")
			}
		}
		if i != n-1 {
			return "", errorf("wrong # args: extra words after \"else\" clause in \"if\" command")
		}
		return in.evalScript(args[i])
	}
}

func cmdWhile(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, 2, "test command"); err != nil {
		return "", err
	}
	for {
		ok, err := in.condition(args[1])
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		_, err = in.evalScript(args[2])
		stop, err := loopOutcome(err)
		if err != nil {
			return "", err
		}
		if stop {
			return "", nil
		}
	}
}

func cmdFor(in *Interp, args []string) (string, error) {
	if err := arity(args, 4, 4, "start test next command"); err != nil {
		return "", err
	}
	if _, err := in.evalScript(args[1]); err != nil {
		return "", err
	}
	for {
		ok, err := in.condition(args[2])
		if err != nil {
			return "", err
		}
		if !ok {
			return "", nil
		}
		_, err = in.evalScript(args[4])
		stop, err := loopOutcome(err)
		if err != nil {
			return "", err
		}
		if stop {
			return "", nil
		}
		if _, err := in.evalScript(args[3]); err != nil {
			exc := asException(err)
			switch exc.Code {
			case CodeBreak:
				return "", nil
			case CodeContinue:
				return "", errorf(`invoked "continue" outside of a loop`)
			}
			return "", exc
		}
	}
}

func cmdForeach(in *Interp, args []string) (string, error) {
	if len(args) < 4 || len(args)%2 != 0 {
		return "", wrongArgs(args[0], "varList list ?varList list ...? command")
	}
	body := args[len(args)-1]
	var names, lists [][]string
	iters := 0
	for i := 1; i < len(args)-1; i += 2 {
		vars, err := splitList(args[i])
		if err != nil {
			return "", err
		}
		if len(vars) == 0 {
			return "", errorf("foreach varlist is empty")
		}
		list, err := splitList(args[i+1])
		if err != nil {
			return "", err
		}
		names = append(names, vars)
		lists = append(lists, list)
		if n := (len(list) + len(vars) - 1) / len(vars); n > iters {
			iters = n
		}
	}
	for it := 0; it < iters; it++ {
		for k, vars := range names {
			for j, name := range vars {
				val := ""
				if idx := it*len(vars) + j; idx < len(lists[k]) {
					val = lists[k][idx]
				}
				if _, err := in.lookup(in.frame, name).set(val); err != nil {
					return "", errorf("couldn't set loop variable: %q", name)
				}
			}
		}
		_, err := in.evalScript(body)
		stop, err := loopOutcome(err)
		if err != nil {
			return "", err
		}
		if stop {
			break
		}
	}
	return "", nil
}

func cmdSwitch(in *Interp, args []string) (string, error) {
	n := len(args)
	mode, nocase := "-exact", false
	i := 1
options:
	for ; i < n-2; i++ {
		if !strings.HasPrefix(args[i], "-") {
			break
		}
		switch args[i] {
		case "-exact", "-glob", "-regexp":
			mode = args[i]
		case "-nocase":
			nocase = true
		case "--":
			i++
			break options
		default:
			return "", errorf("bad option %q: must be -exact, -glob, -nocase, -regexp, or --", args[i])
		}
	}
	if n-i < 2 {
		return "", wrongArgs(args[0], "?-option ...? string ?pattern body ...? ?default body?")
	}
	value := args[i]
	arms := args[i+1:]
	if len(arms) == 1 {
		var err error
		if arms, err = splitList(arms[0]); err != nil {
			return "", err
		}
	}
	if len(arms) == 0 || len(arms)%2 != 0 {
		return "", errorf("extra switch pattern with no body")
	}
	if arms[len(arms)-1] == "-" {
		return "", errorf("no body specified for pattern %q", arms[len(arms)-2])
	}

	for k := 0; k < len(arms); k += 2 {
		pattern := arms[k]
		matched := k == len(arms)-2 && pattern == "default"
		if !matched {
			var err error
			if matched, err = switchMatch(mode, nocase, pattern, value); err != nil {
				return "", err
			}
		}
		if !matched {
			continue
		}
		for arms[k+1] == "-" {
			k += 2
		}
		return in.evalScript(arms[k+1])
	}
	return "", nil
}

func switchMatch(mode string, nocase bool, pattern, value string) (bool, error) {
	switch mode {
	case "-glob":
		return globMatch(pattern, value, nocase), nil
	case "-regexp":
		return regexpMatch(pattern, value, nocase)
	}
	if nocase {
		return strings.EqualFold(pattern, value), nil
	}
	return pattern == value, nil
}

func cmdBreak(in *Interp, args []string) (string, error) {
	if err := arity(args, 0, 0, ""); err != nil {
		return "", err
	}
	return "", &Exception{Code: CodeBreak, Options: "-code 3 -level 0"}
}

func cmdContinue(in *Interp, args []string) (string, error) {
	if err := arity(args, 0, 0, ""); err != nil {
		return "", err
	}
	return "", &Exception{Code: CodeContinue, Options: "-code 4 -level 0"}
}

// ---------------------------------------------------------------------------
// Exceptions
// ---------------------------------------------------------------------------

// outcome is a completed evaluation in (code, result, options) form.
type outcome struct {
	code    int
	result  string
	options string
	err     error
}

func outcomeOf(res string, err error) outcome {
	if err == nil {
		return outcome{code: CodeOK, result: res, options: okOptions}
	}
	exc := asException(err)
	opts := exc.Options
	if opts == "" {
		opts = "-code " + strconv.Itoa(exc.Code) + " -level 0"
	}
	return outcome{code: exc.Code, result: exc.Result, options: opts, err: exc}
}

func (o outcome) values() (string, error) {
	if o.err != nil {
		return "", o.err
	}
	return o.result, nil
}

func cmdCatch(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 3, "script ?resultVarName? ?optionVarName?"); err != nil {
		return "", err
	}
	o := outcomeOf(in.evalScript(args[1]))
	if len(args) > 2 {
		if _, err := in.lookup(in.frame, args[2]).set(o.result); err != nil {
			return "", errorf("couldn't save command result in variable")
		}
	}
	if len(args) > 3 {
		if _, err := in.lookup(in.frame, args[3]).set(o.options); err != nil {
			return "", errorf("couldn't save return options in variable")
		}
	}
	return strconv.Itoa(o.code), nil
}

type tryClause struct {
	trap    bool
	code    int
	pattern []string
	vars    []string
	body    string
}

func parseTryClauses(args []string) ([]tryClause, string, bool, error) {
	var clauses []tryClause
	finally, hasFinally := "", false
	for i := 2; i < len(args); {
		switch args[i] {
		case "on", "trap":
			if i+3 >= len(args) {
				return nil, "", false, errorf("wrong # args to %s clause: must be \"... %s pattern variableList script\"", args[i], args[i])
			}
			cl := tryClause{trap: args[i] == "trap", body: args[i+3]}
			if cl.trap {
				p, err := splitList(args[i+1])
				if err != nil {
					return nil, "", false, err
				}
				cl.code, cl.pattern = CodeError, p
			} else {
				c, ok := parseCompletionCode(args[i+1])
				if !ok {
					return nil, "", false, errorf("bad completion code %q: must be ok, error, return, break, continue, or an integer", args[i+1])
				}
				cl.code = c
			}
			vars, err := splitList(args[i+2])
			if err != nil {
				return nil, "", false, err
			}
			if len(vars) > 2 {
				return nil, "", false, errorf("wrong # args: should be \"try body ?handler ...? ?finally script?\"")
			}
			cl.vars = vars
			clauses = append(clauses, cl)
			i += 4
		case "finally":
			if i != len(args)-2 {
				return nil, "", false, errorf("finally clause must be last")
			}
			finally, hasFinally = args[i+1], true
			i += 2
		default:
			return nil, "", false, errorf("bad handler %q: must be finally, on, or trap", args[i])
		}
	}
	if n := len(clauses); n > 0 && clauses[n-1].body == "-" {
		return nil, "", false, errorf("last non-finally clause must not have a body of \"-\"")
	}
	return clauses, finally, hasFinally, nil
}

func (cl tryClause) matches(in *Interp, o outcome) bool {
	if o.code != cl.code {
		return false
	}
	if !cl.trap {
		return true
	}
	code, err := dictGet(o.options, []string{"-errorcode"})
	if err != nil {
		return len(cl.pattern) == 0
	}
	elems, err := splitList(code)
	if err != nil || len(elems) < len(cl.pattern) {
		return false
	}
	for k, p := range cl.pattern {
		if elems[k] != p {
			return false
		}
	}
	return true
}

func cmdTry(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "body ?handler ...? ?finally script?"); err != nil {
		return "", err
	}
	clauses, finally, hasFinally, err := parseTryClauses(args)
	if err != nil {
		return "", err
	}
	o := outcomeOf(in.evalScript(args[1]))
	for k, cl := range clauses {
		if !cl.matches(in, o) {
			continue
		}
		body := k
		for clauses[body].body == "-" {
			body++
		}
		if len(cl.vars) > 0 {
			if _, err := in.lookup(in.frame, cl.vars[0]).set(o.result); err != nil {
				return "", err
			}
		}
		if len(cl.vars) > 1 {
			if _, err := in.lookup(in.frame, cl.vars[1]).set(o.options); err != nil {
				return "", err
			}
		}
		o = outcomeOf(in.evalScript(clauses[body].body))
		break
	}
	if hasFinally {
		if f := outcomeOf(in.evalScript(finally)); f.code != CodeOK {
			return f.values()
		}
	}
	return o.values()
}

func cmdReturn(in *Interp, args []string) (string, error) {
	rest := args[1:]
	result := ""
	if len(rest)%2 == 1 {
		result = rest[len(rest)-1]
		rest = rest[:len(rest)-1]
	}
	code, level := CodeOK, 1
	var extra []string
	for i := 0; i < len(rest); i += 2 {
		key, val := rest[i], rest[i+1]
		switch key {
		case "-code":
			c, ok := parseCompletionCode(val)
			if !ok {
				return "", errorf("bad completion code %q: must be ok, error, return, break, continue, or an integer", val)
			}
			code = c
		case "-level":
			l, ok := parseInt(val)
			if !ok || l < 0 {
				return "", errorf("bad -level value: expected non-negative integer but got %q", val)
			}
			level = int(l)
		case "-options":
			c, l, err := parseReturnOptions(val)
			if err != nil {
				return "", err
			}
			code, level = c, l
			elems, _ := splitList(val)
			for k := 0; k+1 < len(elems); k += 2 {
				if elems[k] != "-code" && elems[k] != "-level" {
					extra = append(extra, elems[k], elems[k+1])
				}
			}
		default:
			extra = append(extra, key, val)
		}
	}
	options := parser.MergeList(append([]string{"-code", strconv.Itoa(code), "-level", strconv.Itoa(level)}, extra...))
	return completeReturn(code, level, result, options)
}

func cmdError(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 3, "message ?errorInfo? ?errorCode?"); err != nil {
		return "", err
	}
	code := "NONE"
	if len(args) > 3 {
		code = args[3]
	}
	exc := raise(CodeError, args[1], parser.MergeList([]string{"-code", "1", "-level", "0", "-errorcode", code}))
	if len(args) > 2 && args[2] != "" {
		exc.ErrorInfo = args[2]
	}
	return "", exc
}
