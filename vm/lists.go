package vm

import (
	"sort"
	"strconv"
	"strings"

	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

func cmdList(in *Interp, args []string) (string, error) {
	return parser.MergeList(args[1:]), nil
}

func cmdLlength(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 1, "list"); err != nil {
		return "", err
	}
	elems, err := splitList(args[1])
	if err != nil {
		return "", err
	}
	return strconv.Itoa(len(elems)), nil
}

func cmdLindex(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "list ?index ...?"); err != nil {
		return "", err
	}
	cur := args[1]
	for _, ix := range args[2:] {
		var err error
		if cur, err = listIndex(cur, ix); err != nil {
			return "", err
		}
	}
	return cur, nil
}

// bounds resolves first and last against a list of length n, clamped to
// the list.
func bounds(first, last string, n int) (int, int, error) {
	from, err := parseIndex(first, n)
	if err != nil {
		return 0, 0, err
	}
	to, err := parseIndex(last, n)
	if err != nil {
		return 0, 0, err
	}
	if from < 0 {
		from = 0
	}
	if to >= n {
		to = n - 1
	}
	return from, to, nil
}

func cmdLrange(in *Interp, args []string) (string, error) {
	if err := arity(args, 3, 3, "list first last"); err != nil {
		return "", err
	}
	elems, err := splitList(args[1])
	if err != nil {
		return "", err
	}
	from, to, err := bounds(args[2], args[3], len(elems))
	if err != nil {
		return "", err
	}
	if from > to {
		return "", nil
	}
	return parser.MergeList(elems[from : to+1]), nil
}

func cmdLinsert(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, -1, "list index ?element ...?"); err != nil {
		return "", err
	}
	elems, err := splitList(args[1])
	if err != nil {
		return "", err
	}
	at, err := parseIndex(args[2], len(elems))
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(strings.TrimSpace(args[2]), "end") {
		at++
	}
	if at < 0 {
		at = 0
	}
	if at > len(elems) {
		at = len(elems)
	}
	out := append(append(append([]string(nil), elems[:at]...), args[3:]...), elems[at:]...)
	return parser.MergeList(out), nil
}

func cmdLreplace(in *Interp, args []string) (string, error) {
	if err := arity(args, 3, -1, "list first last ?element ...?"); err != nil {
		return "", err
	}
	elems, err := splitList(args[1])
	if err != nil {
		return "", err
	}
	from, to, err := bounds(args[2], args[3], len(elems))
	if err != nil {
		return "", err
	}
	if from > len(elems) {
		from = len(elems)
	}
	if to < from-1 {
		to = from - 1
	}
	out := append(append(append([]string(nil), elems[:from]...), args[4:]...), elems[to+1:]...)
	return parser.MergeList(out), nil
}

func cmdLsearch(in *Interp, args []string) (string, error) {
	if err := arity(args, 2, -1, "?-option value ...? list pattern"); err != nil {
		return "", err
	}
	mode, all, nocase := "-glob", false, false
	for _, opt := range args[1 : len(args)-2] {
		switch opt {
		case "-exact", "-glob", "-regexp":
			mode = opt
		case "-all":
			all = true
		case "-nocase":
			nocase = true
		default:
			return "", errorf("bad option %q: must be -all, -exact, -glob, -nocase, or -regexp", opt)
		}
	}
	elems, err := splitList(args[len(args)-2])
	if err != nil {
		return "", err
	}
	pattern := args[len(args)-1]
	var hits []string
	for i, e := range elems {
		ok, err := switchMatch(mode, nocase, pattern, e)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		if !all {
			return strconv.Itoa(i), nil
		}
		hits = append(hits, strconv.Itoa(i))
	}
	if !all {
		return "-1", nil
	}
	return parser.MergeList(hits), nil
}

func cmdLsort(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "?-option value ...? list"); err != nil {
		return "", err
	}
	kind, decreasing, unique := "-ascii", false, false
	for _, opt := range args[1 : len(args)-1] {
		switch opt {
		case "-ascii", "-integer", "-real", "-dictionary":
			kind = opt
		case "-increasing":
			decreasing = false
		case "-decreasing":
			decreasing = true
		case "-unique":
			unique = true
		default:
			return "", errorf("bad option %q: must be -ascii, -decreasing, -dictionary, -increasing, -integer, -real, or -unique", opt)
		}
	}
	elems, err := splitList(args[len(args)-1])
	if err != nil {
		return "", err
	}
	var convErr error
	less := func(a, b string) bool {
		switch kind {
		case "-integer":
			x, err1 := expectInt(a)
			y, err2 := expectInt(b)
			if err1 != nil || err2 != nil {
				if convErr == nil {
					convErr = firstErr(err1, err2)
				}
				return false
			}
			return x < y
		case "-real":
			x, ok1 := parseNumber(a)
			y, ok2 := parseNumber(b)
			if !ok1 || !ok2 {
				if convErr == nil {
					bad := a
					if ok1 {
						bad = b
					}
					convErr = errorf("expected floating-point number but got %q", bad)
				}
				return false
			}
			return x.float() < y.float()
		case "-dictionary":
			return strings.ToLower(a) < strings.ToLower(b)
		}
		return a < b
	}
	sort.SliceStable(elems, func(i, j int) bool {
		if decreasing {
			return less(elems[j], elems[i])
		}
		return less(elems[i], elems[j])
	})
	if convErr != nil {
		return "", convErr
	}
	if unique {
		out := elems[:0]
		for i, e := range elems {
			if i > 0 && e == out[len(out)-1] {
				continue
			}
			out = append(out, e)
		}
		elems = out
	}
	return parser.MergeList(elems), nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func cmdLreverse(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 1, "list"); err != nil {
		return "", err
	}
	elems, err := splitList(args[1])
	if err != nil {
		return "", err
	}
	for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
		elems[i], elems[j] = elems[j], elems[i]
	}
	return parser.MergeList(elems), nil
}

func cmdLrepeat(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "count ?value ...?"); err != nil {
		return "", err
	}
	n, err := expectInt(args[1])
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", errorf("bad count %q: must be integer >= 0", args[1])
	}
	var out []string
	for i := int64(0); i < n; i++ {
		out = append(out, args[2:]...)
	}
	return parser.MergeList(out), nil
}

func cmdConcat(in *Interp, args []string) (string, error) {
	return concat(args[1:]), nil
}

func cmdJoin(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 2, "list ?joinString?"); err != nil {
		return "", err
	}
	sep := " "
	if len(args) == 3 {
		sep = args[2]
	}
	elems, err := splitList(args[1])
	if err != nil {
		return "", err
	}
	return strings.Join(elems, sep), nil
}

func cmdSplit(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, 2, "string ?splitChars?"); err != nil {
		return "", err
	}
	s, chars := args[1], " \t\n\r"
	if len(args) == 3 {
		chars = args[2]
	}
	if s == "" {
		return "", nil
	}
	var parts []string
	if chars == "" {
		for _, r := range s {
			parts = append(parts, string(r))
		}
		return parser.MergeList(parts), nil
	}
	start := 0
	for i, r := range s {
		if strings.ContainsRune(chars, r) {
			parts = append(parts, s[start:i])
			start = i + len(string(r))
		}
	}
	parts = append(parts, s[start:])
	return parser.MergeList(parts), nil
}

// ---------------------------------------------------------------------------
// Dictionaries
// ---------------------------------------------------------------------------

func dictPairs(d string) ([]string, error) {
	elems, err := splitList(d)
	if err != nil {
		return nil, err
	}
	if len(elems)%2 != 0 {
		return nil, errorf("missing value to go with key")
	}
	return elems, nil
}

// dictPut sets key in the pairs, keeping the position of an existing key.
func dictPut(pairs []string, key, val string) []string {
	for i := 0; i < len(pairs); i += 2 {
		if pairs[i] == key {
			pairs[i+1] = val
			return pairs
		}
	}
	return append(pairs, key, val)
}

func cmdDict(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "subcommand ?arg ...?"); err != nil {
		return "", err
	}
	rest := args[2:]
	switch args[1] {
	case "create":
		if len(rest)%2 != 0 {
			return "", wrongArgs("dict create", "?key value ...?")
		}
		var pairs []string
		for i := 0; i < len(rest); i += 2 {
			pairs = dictPut(pairs, rest[i], rest[i+1])
		}
		return parser.MergeList(pairs), nil
	case "get":
		if len(rest) < 1 {
			return "", wrongArgs("dict get", "dictionary ?key ...?")
		}
		return dictGet(rest[0], rest[1:])
	case "exists":
		if len(rest) < 2 {
			return "", wrongArgs("dict exists", "dictionary key ?key ...?")
		}
		_, err := dictGet(rest[0], rest[1:])
		return boolString(err == nil), nil
	case "set":
		if len(rest) != 3 {
			return "", wrongArgs("dict set", "dictVarName key value")
		}
		r := in.lookup(in.frame, rest[0])
		cur, err := r.getOr("")
		if err != nil {
			return "", err
		}
		pairs, err := dictPairs(cur)
		if err != nil {
			return "", err
		}
		return r.set(parser.MergeList(dictPut(pairs, rest[1], rest[2])))
	case "keys", "values":
		if len(rest) < 1 || len(rest) > 2 {
			return "", wrongArgs("dict "+args[1], "dictionary ?globPattern?")
		}
		pairs, err := dictPairs(rest[0])
		if err != nil {
			return "", err
		}
		off := 0
		if args[1] == "values" {
			off = 1
		}
		var out []string
		for i := 0; i < len(pairs); i += 2 {
			if len(rest) == 2 && !globMatch(rest[1], pairs[i+off], false) {
				continue
			}
			out = append(out, pairs[i+off])
		}
		return parser.MergeList(out), nil
	case "size":
		if len(rest) != 1 {
			return "", wrongArgs("dict size", "dictionary")
		}
		pairs, err := dictPairs(rest[0])
		if err != nil {
			return "", err
		}
		return strconv.Itoa(len(pairs) / 2), nil
	}
	return "", errorf("unknown or ambiguous subcommand %q: must be create, exists, get, keys, set, size, or values", args[1])
}
