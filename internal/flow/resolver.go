package flow

import (
	"strconv"
	"strings"

	"ixode.dev/core/internal/apperr"
)

// ResolveRefData implements spec §4.I's resolve_ref_data: look the name up
// in the store if RefVar, else take the literal, then coerce to Rtype.
func ResolveRefData(ref RefData, store *DefinitionStore, at int) (Value, error) {
	var raw Value
	if ref.RefVar {
		v, ok := store.GetRefIndex(ref.Data, at)
		if !ok {
			raw = Undefined()
		} else {
			raw = v
		}
	} else {
		raw = Str(ref.Data)
	}
	return coerce(raw, ref.Rtype)
}

// coerce implements the per-target-type rules of spec §4.I. KindData
// stands in for the source's "OTHER" rtype: passthrough only if the value
// is already a structured (DATA) value.
func coerce(v Value, target ValueKind) (Value, error) {
	switch target {
	case KindBoolean:
		return Bool(v.asBool()), nil
	case KindFloat:
		return Float(asFloat(v)), nil
	case KindInteger:
		return Int(asInt(v)), nil
	case KindString:
		return Str(v.asString()), nil
	case KindData:
		if v.Kind == KindData {
			return v, nil
		}
		return Value{}, apperr.BadInputf("Error: value is not a structured value")
	default:
		return v, nil
	}
}

func asFloat(v Value) float64 {
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInteger:
		return float64(v.Int)
	case KindBoolean:
		if v.Bool {
			return 1
		}
		return 0
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

func asInt(v Value) int64 {
	switch v.Kind {
	case KindInteger:
		return v.Int
	case KindFloat:
		return int64(v.Float)
	case KindBoolean:
		if v.Bool {
			return 1
		}
		return 0
	case KindString:
		i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err == nil {
			return i
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// ResolveConditions implements spec §4.I's resolve_conditions: an empty
// list is true; otherwise a strictly left-to-right fold with no operator
// precedence, each condition's Next dictating how it combines with the
// running result.
func ResolveConditions(conditions []Condition, store *DefinitionStore, at int) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}

	result := true
	first := true
	for _, cond := range conditions {
		local, err := evalCondition(cond, store, at)
		if err != nil {
			return false, err
		}
		if cond.Not {
			local = !local
		}
		if first {
			result = local
			first = false
			continue
		}
		switch cond.Next {
		case NextAnd:
			result = result && local
		case NextOr:
			result = result || local
		default:
			result = local
		}
	}
	return result, nil
}

func evalCondition(cond Condition, store *DefinitionStore, at int) (bool, error) {
	left, err := ResolveRefData(cond.Left, store, at)
	if err != nil {
		return false, err
	}
	right, err := ResolveRefData(cond.Right, store, at)
	if err != nil {
		return false, err
	}
	return compare(left, right, cond.Operator)
}

func compare(left, right Value, op ConditionType) (bool, error) {
	numeric := left.Kind == KindInteger || left.Kind == KindFloat
	numericR := right.Kind == KindInteger || right.Kind == KindFloat

	switch op {
	case EqualTo:
		return valuesEqual(left, right), nil
	case NotEqualTo:
		return !valuesEqual(left, right), nil
	case Includes:
		return strings.Contains(left.asString(), right.asString()), nil
	}

	// Ordering comparisons: numeric-vs-numeric compares by value; any
	// comparison touching a string falls back to length-based comparison
	// (spec §4.I: "length-based comparison is used when comparing a
	// string to a number").
	var l, r float64
	if numeric && numericR {
		l, r = asFloat(left), asFloat(right)
	} else if left.Kind == KindString || right.Kind == KindString {
		l, r = float64(left.length()), float64(right.length())
	} else {
		return false, apperr.Internalf("Error: unsupported condition operand types")
	}

	switch op {
	case GreaterThan:
		return l > r, nil
	case GreaterThanOrEqualTo:
		return l >= r, nil
	case LessThan:
		return l < r, nil
	case LessThanOrEqualTo:
		return l <= r, nil
	default:
		return false, apperr.Internalf("Error: unsupported condition operator")
	}
}

func valuesEqual(left, right Value) bool {
	numeric := left.Kind == KindInteger || left.Kind == KindFloat
	numericR := right.Kind == KindInteger || right.Kind == KindFloat
	if numeric && numericR {
		return asFloat(left) == asFloat(right)
	}
	if left.Kind == KindBoolean || right.Kind == KindBoolean {
		return left.asBool() == right.asBool()
	}
	return left.asString() == right.asString()
}

// ResolveOperations implements spec §4.I's resolve_operations: same
// left-to-right fold, but producing a Value instead of a bool. NONE means
// "prefer left if non-null/undefined else right"; arithmetic between int
// and float promotes to float; '+' on strings concatenates.
func ResolveOperations(operations []Operation, store *DefinitionStore, at int) (Value, error) {
	if len(operations) == 0 {
		return Null(), nil
	}

	var result Value
	var boolAcc bool
	boolAccValid := false
	first := true

	for _, op := range operations {
		local, err := evalOperation(op, store, at)
		if err != nil {
			return Value{}, err
		}
		if first {
			result = local
			if local.Kind == KindBoolean {
				boolAcc = local.Bool
				boolAccValid = true
			}
			first = false
			continue
		}
		if local.Kind == KindBoolean && boolAccValid {
			switch op.Next {
			case NextAnd:
				boolAcc = boolAcc && local.Bool
			case NextOr:
				boolAcc = boolAcc || local.Bool
			default:
				boolAcc = local.Bool
			}
			result = Bool(boolAcc)
		} else {
			result = local
			boolAccValid = false
		}
	}
	return result, nil
}

func evalOperation(op Operation, store *DefinitionStore, at int) (Value, error) {
	left, err := ResolveRefData(op.Left, store, at)
	if err != nil {
		return Value{}, err
	}
	right, err := ResolveRefData(op.Right, store, at)
	if err != nil {
		return Value{}, err
	}

	switch op.Operator {
	case OpNone:
		if left.Kind != KindNull && left.Kind != KindUndefined {
			return left, nil
		}
		return right, nil
	case OpIncludes:
		return Bool(strings.Contains(left.asString(), right.asString())), nil
	case OpAddition:
		if left.Kind == KindString || right.Kind == KindString {
			return Str(left.asString() + right.asString()), nil
		}
		return arith(left, right, func(a, b float64) float64 { return a + b }, func(a, b int64) int64 { return a + b }), nil
	case OpSubtraction:
		return arith(left, right, func(a, b float64) float64 { return a - b }, func(a, b int64) int64 { return a - b }), nil
	case OpMultiplication:
		return arith(left, right, func(a, b float64) float64 { return a * b }, func(a, b int64) int64 { return a * b }), nil
	case OpDivision:
		if asFloat(right) == 0 {
			return Value{}, apperr.BadInputf("Error: division by zero")
		}
		return arith(left, right, func(a, b float64) float64 { return a / b }, func(a, b int64) int64 { return a / b }), nil
	case OpModulo:
		if asFloat(right) == 0 {
			return Value{}, apperr.BadInputf("Error: modulo by zero")
		}
		return arith(left, right, func(a, b float64) float64 { return float64(int64(a) % int64(b)) }, func(a, b int64) int64 { return a % b }), nil
	default:
		return Value{}, apperr.Internalf("Error: unsupported operation")
	}
}

// arith promotes to float whenever either operand is a FLOAT, otherwise
// stays integer (spec §4.I: "Arithmetic between int and float promotes to
// float").
func arith(left, right Value, ffn func(a, b float64) float64, ifn func(a, b int64) int64) Value {
	if left.Kind == KindFloat || right.Kind == KindFloat {
		return Float(ffn(asFloat(left), asFloat(right)))
	}
	return Int(ifn(asInt(left), asInt(right)))
}
