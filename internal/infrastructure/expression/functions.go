package expression

import (
	"math"
	"strconv"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/env"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// conditionLibrary is the standard library with the helpers rule authors call:
// abs, min, max, round, len, str, float, bool on numbers and collections, and
// a modulo that accepts the double-typed transaction variables.
func conditionLibrary() []cel.EnvOption {
	// The standard modulo is a single binding over int and uint only, so it is
	// replaced rather than extended.
	stdlib := env.NewLibrarySubset().AddExcludedFunctions(env.NewFunction(operators.Modulo))

	return []cel.EnvOption{
		cel.StdLib(cel.StdLibSubset(stdlib)),
		cel.Function(operators.Modulo,
			cel.Overload("modulo_number", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
				cel.BinaryBinding(modulo))),
		cel.Function("abs",
			cel.Overload("abs_number", []*cel.Type{cel.DynType}, cel.DynType,
				cel.UnaryBinding(absolute))),
		cel.Function("min",
			cel.Overload("min_list", []*cel.Type{cel.ListType(cel.DynType)}, cel.DynType,
				cel.UnaryBinding(func(list ref.Val) ref.Val { return extremeOfList(list, -1) })),
			cel.Overload("min_2", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val { return extreme(-1, a, b) })),
			cel.Overload("min_3", []*cel.Type{cel.DynType, cel.DynType, cel.DynType}, cel.DynType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val { return extreme(-1, args...) }))),
		cel.Function("max",
			cel.Overload("max_list", []*cel.Type{cel.ListType(cel.DynType)}, cel.DynType,
				cel.UnaryBinding(func(list ref.Val) ref.Val { return extremeOfList(list, 1) })),
			cel.Overload("max_2", []*cel.Type{cel.DynType, cel.DynType}, cel.DynType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val { return extreme(1, a, b) })),
			cel.Overload("max_3", []*cel.Type{cel.DynType, cel.DynType, cel.DynType}, cel.DynType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val { return extreme(1, args...) }))),
		cel.Function("round",
			cel.Overload("round_number", []*cel.Type{cel.DynType}, cel.DoubleType,
				cel.UnaryBinding(func(v ref.Val) ref.Val { return roundTo(v, types.IntZero) })),
			cel.Overload("round_number_digits", []*cel.Type{cel.DynType, cel.DynType}, cel.DoubleType,
				cel.BinaryBinding(roundTo))),
		cel.Function("len",
			cel.Overload("len_sizer", []*cel.Type{cel.DynType}, cel.DoubleType,
				cel.UnaryBinding(length))),
		cel.Function("str",
			cel.Overload("str_any", []*cel.Type{cel.DynType}, cel.StringType,
				cel.UnaryBinding(toString))),
		cel.Function("float",
			cel.Overload("float_any", []*cel.Type{cel.DynType}, cel.DoubleType,
				cel.UnaryBinding(toFloat))),
		// bool(bool) and bool(string) come from the standard library
		cel.Function("bool",
			cel.Overload("double_to_bool", []*cel.Type{cel.DoubleType}, cel.BoolType,
				cel.UnaryBinding(truthy)),
			cel.Overload("int_to_bool", []*cel.Type{cel.IntType}, cel.BoolType,
				cel.UnaryBinding(truthy)),
			cel.Overload("list_to_bool", []*cel.Type{cel.ListType(cel.DynType)}, cel.BoolType,
				cel.UnaryBinding(truthy)),
			cel.Overload("map_to_bool", []*cel.Type{cel.MapType(cel.DynType, cel.DynType)}, cel.BoolType,
				cel.UnaryBinding(truthy))),
	}
}

func number(v ref.Val) (float64, bool) {
	switch n := v.(type) {
	case types.Double:
		return float64(n), true
	case types.Int:
		return float64(n), true
	case types.Uint:
		return float64(n), true
	}
	return 0, false
}

// modulo keeps integer semantics for two integers. Any other pair of numbers
// is taken as doubles and the result carries the sign of the divisor.
func modulo(a, b ref.Val) ref.Val {
	if m, ok := a.(traits.Modder); ok && a.Type() == b.Type() {
		return m.Modulo(b)
	}
	x, okA := number(a)
	y, okB := number(b)
	if !okA || !okB {
		return types.NewErr("no such overload: %s %% %s", a.Type().TypeName(), b.Type().TypeName())
	}
	if y == 0 {
		return types.NewErr("modulus by zero")
	}
	r := math.Mod(x, y)
	if r != 0 && (r < 0) != (y < 0) {
		r += y
	}
	return types.Double(r)
}

func absolute(v ref.Val) ref.Val {
	switch n := v.(type) {
	case types.Int:
		if n == math.MinInt64 {
			return types.NewErr("integer overflow")
		}
		if n < 0 {
			return -n
		}
		return n
	case types.Uint:
		return n
	case types.Double:
		return types.Double(math.Abs(float64(n)))
	}
	return types.NewErr("no such overload: abs(%s)", v.Type().TypeName())
}

// extreme returns the smallest (sign -1) or largest (sign 1) of vals
func extreme(sign int64, vals ...ref.Val) ref.Val {
	if len(vals) == 0 {
		return types.NewErr("expected at least one value")
	}
	best := vals[0]
	for _, v := range vals[1:] {
		cmp, ok := best.(traits.Comparer)
		if !ok {
			return types.NewErr("no such overload: %s is not comparable", best.Type().TypeName())
		}
		out := cmp.Compare(v)
		order, ok := out.(types.Int)
		if !ok {
			return out
		}
		if int64(order) == -sign {
			best = v
		}
	}
	return best
}

func extremeOfList(list ref.Val, sign int64) ref.Val {
	lister, ok := list.(traits.Lister)
	if !ok {
		return types.NewErr("no such overload: expected a list")
	}
	var vals []ref.Val
	for it := lister.Iterator(); it.HasNext() == types.True; {
		vals = append(vals, it.Next())
	}
	if len(vals) == 0 {
		return types.NewErr("min/max of an empty list")
	}
	return extreme(sign, vals...)
}

// roundTo rounds half to even, as the condition language has always done
func roundTo(v, digits ref.Val) ref.Val {
	x, ok := number(v)
	if !ok {
		return types.NewErr("no such overload: round(%s)", v.Type().TypeName())
	}
	d, ok := number(digits)
	if !ok || d != math.Trunc(d) {
		return types.NewErr("round digits must be a whole number")
	}
	scale := math.Pow(10, d)
	return types.Double(math.RoundToEven(x*scale) / scale)
}

func length(v ref.Val) ref.Val {
	sizer, ok := v.(traits.Sizer)
	if !ok {
		return types.NewErr("no such overload: len(%s)", v.Type().TypeName())
	}
	size, ok := sizer.Size().(types.Int)
	if !ok {
		return types.NewErr("no size for %s", v.Type().TypeName())
	}
	return types.Double(size)
}

func toString(v ref.Val) ref.Val {
	switch x := v.(type) {
	case types.String:
		return x
	case types.Double:
		return types.String(strconv.FormatFloat(float64(x), 'f', -1, 64))
	case types.Bool:
		if x {
			return types.String("True")
		}
		return types.String("False")
	case types.Null:
		return types.String("None")
	}
	return v.ConvertToType(types.StringType)
}

func toFloat(v ref.Val) ref.Val {
	if f, ok := number(v); ok {
		return types.Double(f)
	}
	switch x := v.(type) {
	case types.String:
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return types.NewErr("cannot convert %q to float", string(x))
		}
		return types.Double(f)
	case types.Bool:
		if x {
			return types.Double(1)
		}
		return types.Double(0)
	}
	return types.NewErr("no such overload: float(%s)", v.Type().TypeName())
}

func truthy(v ref.Val) ref.Val {
	if f, ok := number(v); ok {
		return types.Bool(f != 0)
	}
	if sizer, ok := v.(traits.Sizer); ok {
		return types.Bool(sizer.Size() != types.IntZero)
	}
	return types.NewErr("no such overload: bool(%s)", v.Type().TypeName())
}
