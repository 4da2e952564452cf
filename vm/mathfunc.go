package vm

import (
	"math"
	"math/rand"

	"github.com/chazu/tickle/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// tcl::mathop
// ---------------------------------------------------------------------------

const (
	mathopPrefix   = "tcl::mathop::"
	mathfuncPrefix = "tcl::mathfunc::"
)

var mathopFolds = map[string]struct {
	op       bytecode.Opcode
	identity string
}{
	"+": {bytecode.OpAdd, "0"},
	"*": {bytecode.OpMult, "1"},
	"&": {bytecode.OpBitAnd, "-1"},
	"|": {bytecode.OpBitOr, "0"},
	"^": {bytecode.OpBitXor, "0"},
}

var mathopBinary = map[string]bytecode.Opcode{
	"%":  bytecode.OpMod,
	"<<": bytecode.OpLshift,
	">>": bytecode.OpRshift,
	"!=": bytecode.OpNeq,
	"ne": bytecode.OpStrNeq,
	"in": bytecode.OpListIn,
	"ni": bytecode.OpListNotIn,
}

var mathopCompare = map[string]bytecode.Opcode{
	"==": bytecode.OpEq,
	"<":  bytecode.OpLt,
	"<=": bytecode.OpLe,
	">":  bytecode.OpGt,
	">=": bytecode.OpGe,
	"eq": bytecode.OpStrEq,
}

func registerMath(in *Interp) {
	for sym, f := range mathopFolds {
		f := f
		in.commands[mathopPrefix+sym] = func(in *Interp, args []string) (string, error) {
			acc := f.identity
			for _, a := range args[1:] {
				var err error
				if acc, err = binaryOp(f.op, acc, a); err != nil {
					return "", err
				}
			}
			return acc, nil
		}
	}
	for sym, op := range mathopBinary {
		op := op
		in.commands[mathopPrefix+sym] = func(in *Interp, args []string) (string, error) {
			if len(args) != 3 {
				return "", wrongArgs(args[0], "value value")
			}
			return binaryOp(op, args[1], args[2])
		}
	}
	for sym, op := range mathopCompare {
		op := op
		in.commands[mathopPrefix+sym] = func(in *Interp, args []string) (string, error) {
			for i := 1; i+1 < len(args); i++ {
				ok, err := binaryOp(op, args[i], args[i+1])
				if err != nil || ok == "0" {
					return ok, err
				}
			}
			return "1", nil
		}
	}
	in.commands[mathopPrefix+"!"] = mathopUnary(bytecode.OpNot)
	in.commands[mathopPrefix+"~"] = mathopUnary(bytecode.OpBitNot)
	in.commands[mathopPrefix+"-"] = mathopMinus
	in.commands[mathopPrefix+"/"] = mathopDivide
	in.commands[mathopPrefix+"**"] = mathopPower

	for name, fn := range mathFuncs {
		fn := fn
		name := name
		in.commands[mathfuncPrefix+name] = func(in *Interp, args []string) (string, error) {
			n := len(args) - 1
			switch {
			case n < fn.min:
				return "", errorf("not enough arguments for math function %q", name)
			case fn.max >= 0 && n > fn.max:
				return "", errorf("too many arguments for math function %q", name)
			}
			return fn.call(args[1:])
		}
	}
}

func mathopUnary(op bytecode.Opcode) Command {
	return func(in *Interp, args []string) (string, error) {
		if len(args) != 2 {
			return "", wrongArgs(args[0], "value")
		}
		return unaryOp(op, args[1])
	}
}

func mathopMinus(in *Interp, args []string) (string, error) {
	if len(args) < 2 {
		return "", wrongArgs(args[0], "value ?value ...?")
	}
	if len(args) == 2 {
		return unaryOp(bytecode.OpUminus, args[1])
	}
	return foldFrom(bytecode.OpSub, args[1], args[2:])
}

func mathopDivide(in *Interp, args []string) (string, error) {
	if len(args) < 2 {
		return "", wrongArgs(args[0], "value ?value ...?")
	}
	if len(args) == 2 {
		return binaryOp(bytecode.OpDiv, "1.0", args[1])
	}
	return foldFrom(bytecode.OpDiv, args[1], args[2:])
}

// mathopPower is right-associative.
func mathopPower(in *Interp, args []string) (string, error) {
	if len(args) == 1 {
		return "1", nil
	}
	acc, err := unaryOp(bytecode.OpUplus, args[len(args)-1])
	if err != nil {
		return "", err
	}
	for i := len(args) - 2; i >= 1; i-- {
		if acc, err = binaryOp(bytecode.OpExpon, args[i], acc); err != nil {
			return "", err
		}
	}
	return acc, nil
}

func foldFrom(op bytecode.Opcode, acc string, rest []string) (string, error) {
	for _, a := range rest {
		var err error
		if acc, err = binaryOp(op, acc, a); err != nil {
			return "", err
		}
	}
	return acc, nil
}

// ---------------------------------------------------------------------------
// tcl::mathfunc
// ---------------------------------------------------------------------------

type mathFunc struct {
	min, max int
	call     func(args []string) (string, error)
}

func numArg(s string) (number, error) {
	n, ok := parseNumber(s)
	if !ok {
		return number{}, errorf("expected floating-point number but got %q", s)
	}
	return n, nil
}

// floatFunc lifts a float function of one argument.
func floatFunc(fn func(float64) float64) mathFunc {
	return mathFunc{1, 1, func(args []string) (string, error) {
		n, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		r := fn(n.float())
		if math.IsNaN(r) {
			return "", errorf("domain error: argument not in valid range")
		}
		return floatNum(r).String(), nil
	}}
}

// floatFunc2 lifts a float function of two arguments.
func floatFunc2(fn func(float64, float64) float64) mathFunc {
	return mathFunc{2, 2, func(args []string) (string, error) {
		x, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		y, err := numArg(args[1])
		if err != nil {
			return "", err
		}
		r := fn(x.float(), y.float())
		if math.IsNaN(r) {
			return "", errorf("domain error: argument not in valid range")
		}
		return floatNum(r).String(), nil
	}}
}

func toInt(f float64) (string, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", errorf("integer value too large to represent")
	}
	return intNum(int64(f)).String(), nil
}

func extremum(max bool) mathFunc {
	return mathFunc{1, -1, func(args []string) (string, error) {
		best, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		for _, a := range args[1:] {
			n, err := numArg(a)
			if err != nil {
				return "", err
			}
			if (n.float() > best.float()) == max && n.float() != best.float() {
				best = n
			}
		}
		return best.String(), nil
	}}
}

var mathFuncs = map[string]mathFunc{
	"abs": {1, 1, func(args []string) (string, error) {
		n, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		if n.isFloat {
			return floatNum(math.Abs(n.f)).String(), nil
		}
		if n.i < 0 {
			return intNum(-n.i).String(), nil
		}
		return n.String(), nil
	}},
	"int": {1, 1, func(args []string) (string, error) {
		n, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		if !n.isFloat {
			return n.String(), nil
		}
		return toInt(math.Trunc(n.f))
	}},
	"double": {1, 1, func(args []string) (string, error) {
		n, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		return floatNum(n.float()).String(), nil
	}},
	"round": {1, 1, func(args []string) (string, error) {
		n, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		if !n.isFloat {
			return n.String(), nil
		}
		return toInt(math.Round(n.f))
	}},
	"bool": {1, 1, func(args []string) (string, error) {
		b, err := expectBool(args[0])
		if err != nil {
			return "", err
		}
		return boolString(b), nil
	}},
	"isqrt": {1, 1, func(args []string) (string, error) {
		n, err := numArg(args[0])
		if err != nil {
			return "", err
		}
		if n.float() < 0 {
			return "", errorf("square root of negative argument")
		}
		return toInt(math.Floor(math.Sqrt(n.float())))
	}},
	"rand": {0, 0, func(args []string) (string, error) {
		return floatNum(rand.Float64()).String(), nil
	}},
	"max":   extremum(true),
	"min":   extremum(false),
	"sqrt":  floatFunc(math.Sqrt),
	"exp":   floatFunc(math.Exp),
	"log":   floatFunc(math.Log),
	"log10": floatFunc(math.Log10),
	"sin":   floatFunc(math.Sin),
	"cos":   floatFunc(math.Cos),
	"tan":   floatFunc(math.Tan),
	"asin":  floatFunc(math.Asin),
	"acos":  floatFunc(math.Acos),
	"atan":  floatFunc(math.Atan),
	"sinh":  floatFunc(math.Sinh),
	"cosh":  floatFunc(math.Cosh),
	"tanh":  floatFunc(math.Tanh),
	"floor": floatFunc(math.Floor),
	"ceil":  floatFunc(math.Ceil),
	"pow":   floatFunc2(math.Pow),
	"atan2": floatFunc2(math.Atan2),
	"fmod":  floatFunc2(math.Mod),
	"hypot": floatFunc2(math.Hypot),
}

func init() {
	mathFuncs["wide"] = mathFuncs["int"]
	mathFuncs["entier"] = mathFuncs["int"]
}
