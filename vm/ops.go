package vm

import (
	"math"
	"strings"

	"github.com/chazu/tickle/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// opSymbols names operators in error messages.
var opSymbols = map[bytecode.Opcode]string{
	bytecode.OpBitOr:   "|",
	bytecode.OpBitXor:  "^",
	bytecode.OpBitAnd:  "&",
	bytecode.OpLshift:  "<<",
	bytecode.OpRshift:  ">>",
	bytecode.OpAdd:     "+",
	bytecode.OpSub:     "-",
	bytecode.OpMult:    "*",
	bytecode.OpDiv:     "/",
	bytecode.OpMod:     "%",
	bytecode.OpExpon:   "**",
	bytecode.OpUplus:   "+",
	bytecode.OpUminus:  "-",
	bytecode.OpBitNot:  "~",
	bytecode.OpNot:     "!",
}

func operands(op bytecode.Opcode, a, b string) (number, number, error) {
	x, okA := parseNumber(a)
	y, okB := parseNumber(b)
	if !okA || !okB {
		return x, y, errorf("can't use non-numeric string as operand of %q", opSymbols[op])
	}
	return x, y, nil
}

func intOperands(op bytecode.Opcode, a, b string) (int64, int64, error) {
	x, y, err := operands(op, a, b)
	if err != nil {
		return 0, 0, err
	}
	if x.isFloat || y.isFloat {
		return 0, 0, errorf("can't use floating-point value as operand of %q", opSymbols[op])
	}
	return x.i, y.i, nil
}

// binaryOp applies a two-operand instruction to a and b, where b was on top
// of the stack.
func binaryOp(op bytecode.Opcode, a, b string) (string, error) {
	switch op {
	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMult, bytecode.OpDiv, bytecode.OpExpon:
		x, y, err := operands(op, a, b)
		if err != nil {
			return "", err
		}
		n, err := arith(op, x, y)
		if err != nil {
			return "", err
		}
		return n.String(), nil

	case bytecode.OpMod:
		x, y, err := intOperands(op, a, b)
		if err != nil {
			return "", err
		}
		if y == 0 {
			return "", errorf("divide by zero")
		}
		r := x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
		return intNum(r).String(), nil

	case bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpLshift, bytecode.OpRshift:
		x, y, err := intOperands(op, a, b)
		if err != nil {
			return "", err
		}
		switch op {
		case bytecode.OpBitAnd:
			return intNum(x & y).String(), nil
		case bytecode.OpBitOr:
			return intNum(x | y).String(), nil
		case bytecode.OpBitXor:
			return intNum(x ^ y).String(), nil
		}
		if y < 0 {
			return "", errorf("negative shift argument")
		}
		if y > 63 {
			y = 63
		}
		if op == bytecode.OpLshift {
			return intNum(x << uint(y)).String(), nil
		}
		return intNum(x >> uint(y)).String(), nil

	case bytecode.OpEq, bytecode.OpNeq, bytecode.OpLt, bytecode.OpGt, bytecode.OpLe, bytecode.OpGe:
		return boolString(compare(op, a, b)), nil

	case bytecode.OpStrEq:
		return boolString(a == b), nil
	case bytecode.OpStrNeq:
		return boolString(a != b), nil

	case bytecode.OpListIn, bytecode.OpListNotIn:
		elems, err := splitList(b)
		if err != nil {
			return "", err
		}
		found := false
		for _, e := range elems {
			if e == a {
				found = true
				break
			}
		}
		return boolString(found == (op == bytecode.OpListIn)), nil
	}
	return "", errorf("unsupported operator %s", op)
}

func arith(op bytecode.Opcode, x, y number) (number, error) {
	if !x.isFloat && !y.isFloat {
		a, b := x.i, y.i
		switch op {
		case bytecode.OpAdd:
			return intNum(a + b), nil
		case bytecode.OpSub:
			return intNum(a - b), nil
		case bytecode.OpMult:
			return intNum(a * b), nil
		case bytecode.OpDiv:
			if b == 0 {
				return number{}, errorf("divide by zero")
			}
			q := a / b
			if a%b != 0 && (a < 0) != (b < 0) {
				q--
			}
			return intNum(q), nil
		case bytecode.OpExpon:
			return intPow(a, b)
		}
	}
	a, b := x.float(), y.float()
	switch op {
	case bytecode.OpAdd:
		return floatNum(a + b), nil
	case bytecode.OpSub:
		return floatNum(a - b), nil
	case bytecode.OpMult:
		return floatNum(a * b), nil
	case bytecode.OpDiv:
		return floatNum(a / b), nil
	}
	r := math.Pow(a, b)
	if math.IsNaN(r) {
		return number{}, errorf("domain error: argument not in valid range")
	}
	return floatNum(r), nil
}

func intPow(a, b int64) (number, error) {
	if b < 0 {
		switch a {
		case 0:
			return number{}, errorf("exponentiation of zero by negative power")
		case 1:
			return intNum(1), nil
		case -1:
			if b%2 == 0 {
				return intNum(1), nil
			}
			return intNum(-1), nil
		}
		return intNum(0), nil
	}
	r := int64(1)
	for b > 0 {
		if b&1 == 1 {
			r *= a
		}
		a *= a
		b >>= 1
	}
	return intNum(r), nil
}

// compare orders numerically when both sides are numbers and by string
// otherwise.
func compare(op bytecode.Opcode, a, b string) bool {
	c := 0
	x, okA := parseNumber(a)
	y, okB := parseNumber(b)
	switch {
	case okA && okB && !x.isFloat && !y.isFloat:
		c = cmpInt(x.i, y.i)
	case okA && okB:
		c = cmpFloat(x.float(), y.float())
	default:
		c = strings.Compare(a, b)
	}
	switch op {
	case bytecode.OpEq:
		return c == 0
	case bytecode.OpNeq:
		return c != 0
	case bytecode.OpLt:
		return c < 0
	case bytecode.OpGt:
		return c > 0
	case bytecode.OpLe:
		return c <= 0
	}
	return c >= 0
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func unaryOp(op bytecode.Opcode, a string) (string, error) {
	switch op {
	case bytecode.OpNot:
		b, ok := parseBool(a)
		if !ok {
			return "", errorf("can't use non-numeric string as operand of %q", "!")
		}
		return boolString(!b), nil
	case bytecode.OpTryCvtToNumeric:
		if n, ok := parseNumber(a); ok && !n.isFloat {
			return n.String(), nil
		}
		return a, nil
	}
	n, ok := parseNumber(a)
	if !ok {
		return "", errorf("can't use non-numeric string as operand of %q", opSymbols[op])
	}
	switch op {
	case bytecode.OpUminus:
		if n.isFloat {
			return floatNum(-n.f).String(), nil
		}
		return intNum(-n.i).String(), nil
	case bytecode.OpBitNot:
		if n.isFloat {
			return "", errorf("can't use floating-point value as operand of %q", "~")
		}
		return intNum(^n.i).String(), nil
	}
	return n.String(), nil
}
