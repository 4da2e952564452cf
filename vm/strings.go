package vm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// string
// ---------------------------------------------------------------------------

type stringCmd struct {
	usage    string
	min, max int
	fn       func(args []string) (string, error)
}

var stringCmds map[string]stringCmd

func init() {
	stringCmds = map[string]stringCmd{
		"length":    {"string", 1, 1, strLength},
		"index":     {"string charIndex", 2, 2, strIndex},
		"range":     {"string first last", 3, 3, strRange},
		"equal":     {"?-nocase? string1 string2", 2, 3, strEqual},
		"compare":   {"?-nocase? string1 string2", 2, 3, strCompare},
		"match":     {"?-nocase? pattern string", 2, 3, strMatch},
		"first":     {"needleString haystackString ?startIndex?", 2, 3, strFirst},
		"last":      {"needleString haystackString ?lastIndex?", 2, 3, strLast},
		"toupper":   {"string", 1, 1, mapString(strings.ToUpper)},
		"tolower":   {"string", 1, 1, mapString(strings.ToLower)},
		"totitle":   {"string", 1, 1, mapString(toTitle)},
		"trim":      {"string ?chars?", 1, 2, trimmer(strings.Trim)},
		"trimleft":  {"string ?chars?", 1, 2, trimmer(strings.TrimLeft)},
		"trimright": {"string ?chars?", 1, 2, trimmer(strings.TrimRight)},
		"repeat":    {"string count", 2, 2, strRepeat},
		"reverse":   {"string", 1, 1, strReverse},
		"cat":       {"?string ...?", 0, -1, strCat},
		"map":       {"?-nocase? charMap string", 2, 3, strMap},
		"is":        {"class ?-strict? string", 2, 3, strIs},
	}
}

func cmdString(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "subcommand ?arg ...?"); err != nil {
		return "", err
	}
	sc, ok := stringCmds[args[1]]
	if !ok {
		return "", errorf("unknown or ambiguous subcommand %q: must be cat, compare, equal, first, index, is, last, length, map, match, range, repeat, reverse, tolower, totitle, toupper, trim, trimleft, or trimright", args[1])
	}
	rest := args[2:]
	if len(rest) < sc.min || (sc.max >= 0 && len(rest) > sc.max) {
		return "", wrongArgs("string "+args[1], sc.usage)
	}
	return sc.fn(rest)
}

// nocaseFlag strips a leading -nocase from args that take two operands.
func nocaseFlag(args []string) ([]string, bool, error) {
	if len(args) == 3 {
		if args[0] != "-nocase" {
			return nil, false, errorf("bad option %q: must be -nocase", args[0])
		}
		return args[1:], true, nil
	}
	return args, false, nil
}

func strLength(args []string) (string, error) {
	return strconv.Itoa(len([]rune(args[0]))), nil
}

func strIndex(args []string) (string, error) {
	r := []rune(args[0])
	i, err := parseIndex(args[1], len(r))
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(r) {
		return "", nil
	}
	return string(r[i]), nil
}

func strRange(args []string) (string, error) {
	r := []rune(args[0])
	from, to, err := bounds(args[1], args[2], len(r))
	if err != nil {
		return "", err
	}
	if from > to {
		return "", nil
	}
	return string(r[from : to+1]), nil
}

func strEqual(args []string) (string, error) {
	args, nocase, err := nocaseFlag(args)
	if err != nil {
		return "", err
	}
	if nocase {
		return boolString(strings.EqualFold(args[0], args[1])), nil
	}
	return boolString(args[0] == args[1]), nil
}

func strCompare(args []string) (string, error) {
	args, nocase, err := nocaseFlag(args)
	if err != nil {
		return "", err
	}
	a, b := args[0], args[1]
	if nocase {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	return strconv.Itoa(strings.Compare(a, b)), nil
}

func strMatch(args []string) (string, error) {
	args, nocase, err := nocaseFlag(args)
	if err != nil {
		return "", err
	}
	return boolString(globMatch(args[0], args[1], nocase)), nil
}

func strFirst(args []string) (string, error) {
	hay := []rune(args[1])
	start := 0
	if len(args) == 3 {
		i, err := parseIndex(args[2], len(hay))
		if err != nil {
			return "", err
		}
		if i > 0 {
			start = i
		}
	}
	if start > len(hay) {
		return "-1", nil
	}
	i := strings.Index(string(hay[start:]), args[0])
	if i < 0 || args[0] == "" {
		return "-1", nil
	}
	return strconv.Itoa(start + len([]rune(string(hay[start:])[:i]))), nil
}

func strLast(args []string) (string, error) {
	hay := []rune(args[1])
	end := len(hay)
	if len(args) == 3 {
		i, err := parseIndex(args[2], len(hay))
		if err != nil {
			return "", err
		}
		if i+1 < end {
			end = i + 1
		}
	}
	if end < 0 || args[0] == "" {
		return "-1", nil
	}
	s := string(hay[:end])
	i := strings.LastIndex(s, args[0])
	if i < 0 {
		return "-1", nil
	}
	return strconv.Itoa(len([]rune(s[:i]))), nil
}

func mapString(fn func(string) string) func([]string) (string, error) {
	return func(args []string) (string, error) { return fn(args[0]), nil }
}

func toTitle(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) > 0 {
		r[0] = unicode.ToTitle(r[0])
	}
	return string(r)
}

func trimmer(fn func(string, string) string) func([]string) (string, error) {
	return func(args []string) (string, error) {
		chars := " \t\n\r\v\f"
		if len(args) == 2 {
			chars = args[1]
		}
		return fn(args[0], chars), nil
	}
}

func strRepeat(args []string) (string, error) {
	n, err := expectInt(args[1])
	if err != nil {
		return "", err
	}
	if n <= 0 {
		return "", nil
	}
	return strings.Repeat(args[0], int(n)), nil
}

func strReverse(args []string) (string, error) {
	r := []rune(args[0])
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r), nil
}

func strCat(args []string) (string, error) {
	return strings.Join(args, ""), nil
}

func strMap(args []string) (string, error) {
	args, nocase, err := nocaseFlag(args)
	if err != nil {
		return "", err
	}
	pairs, err := splitList(args[0])
	if err != nil {
		return "", err
	}
	if len(pairs)%2 != 0 {
		return "", errorf("char map list unbalanced")
	}
	s := args[1]
	var sb strings.Builder
	for i := 0; i < len(s); {
		matched := false
		for k := 0; k < len(pairs); k += 2 {
			key := pairs[k]
			if key == "" || len(s)-i < len(key) {
				continue
			}
			part := s[i : i+len(key)]
			if part == key || (nocase && strings.EqualFold(part, key)) {
				sb.WriteString(pairs[k+1])
				i += len(key)
				matched = true
				break
			}
		}
		if !matched {
			sb.WriteByte(s[i])
			i++
		}
	}
	return sb.String(), nil
}

func strIs(args []string) (string, error) {
	class, s := args[0], args[len(args)-1]
	strict := len(args) == 3
	if strict && args[1] != "-strict" {
		return "", errorf("bad option %q: must be -strict", args[1])
	}
	if s == "" {
		return boolString(!strict), nil
	}
	every := func(pred func(rune) bool) string {
		for _, r := range s {
			if !pred(r) {
				return "0"
			}
		}
		return "1"
	}
	switch class {
	case "integer", "entier", "wide":
		_, ok := parseInt(s)
		return boolString(ok), nil
	case "double":
		_, ok := parseNumber(s)
		return boolString(ok), nil
	case "boolean":
		_, ok := parseBool(s)
		return boolString(ok), nil
	case "true", "false":
		b, ok := parseBool(s)
		return boolString(ok && b == (class == "true")), nil
	case "list":
		_, err := splitList(s)
		return boolString(err == nil), nil
	case "digit":
		return every(unicode.IsDigit), nil
	case "alpha":
		return every(unicode.IsLetter), nil
	case "alnum":
		return every(func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }), nil
	case "space":
		return every(unicode.IsSpace), nil
	case "upper":
		return every(unicode.IsUpper), nil
	case "lower":
		return every(unicode.IsLower), nil
	}
	return "", errorf("bad class %q: must be alnum, alpha, boolean, digit, double, entier, false, integer, list, lower, space, true, upper, or wide", class)
}

// ---------------------------------------------------------------------------
// format
// ---------------------------------------------------------------------------

func cmdFormat(in *Interp, args []string) (string, error) {
	if err := arity(args, 1, -1, "formatString ?arg ...?"); err != nil {
		return "", err
	}
	f, vals := args[1], args[2:]
	var sb strings.Builder
	next := 0
	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			sb.WriteByte(f[i])
			continue
		}
		j := i + 1
		for j < len(f) && strings.IndexByte("-+ #0123456789.", f[j]) >= 0 {
			j++
		}
		if j >= len(f) {
			return "", errorf("format string ended in middle of field specifier")
		}
		spec, verb := f[i:j], f[j]
		i = j
		if verb == '%' {
			sb.WriteByte('%')
			continue
		}
		if next >= len(vals) {
			return "", errorf("not enough arguments for all format specifiers")
		}
		arg := vals[next]
		next++
		switch verb {
		case 'd', 'i', 'x', 'X', 'o', 'b', 'c':
			n, err := expectInt(arg)
			if err != nil {
				return "", err
			}
			switch verb {
			case 'i':
				verb = 'd'
			case 'c':
				sb.WriteString(fmt.Sprintf(spec+"c", rune(n)))
				continue
			}
			sb.WriteString(fmt.Sprintf(spec+string(verb), n))
		case 'f', 'e', 'E', 'g', 'G':
			n, ok := parseNumber(arg)
			if !ok {
				return "", errorf("expected floating-point number but got %q", arg)
			}
			sb.WriteString(fmt.Sprintf(spec+string(verb), n.float()))
		case 's':
			sb.WriteString(fmt.Sprintf(spec+"s", arg))
		default:
			return "", errorf("bad field specifier %q", string(verb))
		}
	}
	return sb.String(), nil
}
