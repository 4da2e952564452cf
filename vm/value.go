package vm

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/tickle/pkg/parser"
)

// ---------------------------------------------------------------------------
// Numbers
// ---------------------------------------------------------------------------

// number is the numeric interpretation of a string value.
type number struct {
	isFloat bool
	i       int64
	f       float64
}

func intNum(i int64) number     { return number{i: i} }
func floatNum(f float64) number { return number{isFloat: true, f: f} }

func (n number) float() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n number) String() string {
	if n.isFloat {
		return formatFloat(n.f)
	}
	return strconv.FormatInt(n.i, 10)
}

// parseInt accepts decimal, 0x, 0o and 0b integers with an optional sign
// and surrounding whitespace. Leading zeros are decimal.
func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base, s = 16, s[2:]
		case 'o', 'O':
			base, s = 8, s[2:]
		case 'b', 'B':
			base, s = 2, s[2:]
		}
	}
	if s == "" || s[0] == '+' || s[0] == '-' || strings.Contains(s, "_") {
		return 0, false
	}
	u, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		return -int64(u), true
	}
	return int64(u), true
}

// parseNumber interprets s as an integer or a float. NaN is not a number.
func parseNumber(s string) (number, bool) {
	if i, ok := parseInt(s); ok {
		return intNum(i), true
	}
	t := strings.TrimSpace(s)
	if t == "" || strings.ContainsAny(t, "_xXpP") {
		return number{}, false
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil && !isRangeErr(err) {
		return number{}, false
	}
	if math.IsNaN(f) {
		return number{}, false
	}
	return floatNum(f), true
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// formatFloat renders f in the shortest form that reads back exactly. A
// float with an integral value keeps a ".0" so it stays a float.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// ---------------------------------------------------------------------------
// Booleans
// ---------------------------------------------------------------------------

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on":
		return true, true
	case "false", "no", "off":
		return false, true
	}
	if n, ok := parseNumber(s); ok {
		return n.float() != 0, true
	}
	return false, false
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func expectBool(s string) (bool, error) {
	b, ok := parseBool(s)
	if !ok {
		return false, errorf("expected boolean value but got %q", s)
	}
	return b, nil
}

func expectInt(s string) (int64, error) {
	i, ok := parseInt(s)
	if !ok {
		return 0, errorf("expected integer but got %q", s)
	}
	return i, nil
}

// ---------------------------------------------------------------------------
// List indices
// ---------------------------------------------------------------------------

// parseIndex resolves an index such as 3, end, end-1 or 2+1 against a list
// of length n. The result may be out of range.
func parseIndex(s string, n int) (int, error) {
	t := strings.TrimSpace(s)
	base := 0
	if strings.HasPrefix(t, "end") {
		base = n - 1
		t = t[3:]
		if t == "" {
			return base, nil
		}
	}
	if i, ok := parseInt(t); ok && (base == 0 || t[0] == '+' || t[0] == '-') {
		return base + int(i), nil
	}
	if base == 0 {
		for k := 1; k < len(t); k++ {
			if t[k] != '+' && t[k] != '-' {
				continue
			}
			a, okA := parseInt(t[:k])
			b, okB := parseInt(t[k+1:])
			if okA && okB {
				if t[k] == '+' {
					return int(a + b), nil
				}
				return int(a - b), nil
			}
		}
	}
	return 0, errorf("bad index %q: must be integer?[+-]integer? or end?[+-]integer?", s)
}

func splitList(s string) ([]string, error) {
	elems, err := parser.SplitList(s)
	if err != nil {
		return nil, errorf("%s", listError(err))
	}
	return elems, nil
}

func listError(err error) string {
	var le *parser.ListError
	if errors.As(err, &le) {
		return le.Msg
	}
	return err.Error()
}

// listIndex applies an index, or a list of indices for nested lists.
func listIndex(list, index string) (string, error) {
	path, err := splitList(index)
	if err != nil {
		return "", err
	}
	if len(path) == 0 {
		return list, nil
	}
	cur := list
	for _, ix := range path {
		elems, err := splitList(cur)
		if err != nil {
			return "", err
		}
		i, err := parseIndex(ix, len(elems))
		if err != nil {
			return "", err
		}
		if i < 0 || i >= len(elems) {
			return "", nil
		}
		cur = elems[i]
	}
	return cur, nil
}

// dictGet follows keys through nested dictionaries.
func dictGet(dict string, keys []string) (string, error) {
	cur := dict
	for _, k := range keys {
		elems, err := splitList(cur)
		if err != nil {
			return "", err
		}
		if len(elems)%2 != 0 {
			return "", errorf("missing value to go with key")
		}
		found := false
		for i := len(elems) - 2; i >= 0; i -= 2 {
			if elems[i] == k {
				cur, found = elems[i+1], true
				break
			}
		}
		if !found {
			return "", errorf("key %q not known in dictionary", k)
		}
	}
	return cur, nil
}
