// Package flow implements the request-scoped interpreter: the definition
// store and block order (spec §4.H), the resolver (§4.I), and the flow
// interpreter itself (§4.J).
package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind is the closed set DefinitionData ranges over (spec §3).
type ValueKind string

const (
	KindNull      ValueKind = "NULL"
	KindUndefined ValueKind = "UNDEFINED"
	KindBoolean   ValueKind = "BOOLEAN"
	KindInteger   ValueKind = "INTEGER"
	KindFloat     ValueKind = "FLOAT"
	KindString    ValueKind = "STRING"
	KindData      ValueKind = "DATA"
)

// Value is a DefinitionStore entry's payload: a tagged union over
// NULL/UNDEFINED/BOOLEAN/INTEGER/FLOAT/STRING/DATA.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Data  any
}

func Null() Value      { return Value{Kind: KindNull} }
func Undefined() Value { return Value{Kind: KindUndefined} }
func Bool(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }
func Int(i int64) Value { return Value{Kind: KindInteger, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func Str(s string) Value { return Value{Kind: KindString, Str: s} }
func Data(v any) Value   { return Value{Kind: KindData, Data: v} }

// RefData is a reference to a prior definition, or a literal to be
// coerced to Rtype (spec §3/§4.I).
type RefData struct {
	Data   string
	RefVar bool
	Rtype  ValueKind
}

// ConditionType enumerates the comparison operators Condition/Filter use.
type ConditionType string

const (
	EqualTo              ConditionType = "EQUAL_TO"
	NotEqualTo           ConditionType = "NOT_EQUAL_TO"
	GreaterThan          ConditionType = "GREATER_THAN"
	GreaterThanOrEqualTo ConditionType = "GREATER_THAN_OR_EQUAL_TO"
	LessThan             ConditionType = "LESS_THAN"
	LessThanOrEqualTo    ConditionType = "LESS_THAN_OR_EQUAL_TO"
	Includes             ConditionType = "INCLUDES"
)

// NextConditionType dictates how the preceding Condition/Operation folds
// into the running result (spec §4.I).
type NextConditionType string

const (
	NextNone NextConditionType = "NONE"
	NextAnd  NextConditionType = "AND"
	NextOr   NextConditionType = "OR"
)

// Condition is one term of a resolve_conditions fold.
type Condition struct {
	Left     RefData
	Right    RefData
	Operator ConditionType
	Not      bool
	Next     NextConditionType
}

// OperationType enumerates the arithmetic/string operators
// resolve_operations folds over (spec §4.I).
type OperationType string

const (
	OpAddition       OperationType = "ADDITION"
	OpSubtraction    OperationType = "SUBSTRACTION"
	OpMultiplication OperationType = "MULTIPLICATION"
	OpDivision       OperationType = "DIVISION"
	OpModulo         OperationType = "MODULO"
	OpIncludes       OperationType = "INCLUDES"
	OpNone           OperationType = "NONE"
)

// Operation is one term of a resolve_operations fold.
type Operation struct {
	Left     RefData
	Right    RefData
	Operator OperationType
	Next     NextConditionType
}

func (v Value) asBool() bool {
	switch v.Kind {
	case KindBoolean:
		return v.Bool
	case KindInteger:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	case KindString:
		return strings.EqualFold(v.Str, "true")
	case KindNull, KindUndefined:
		return false
	default:
		return true
	}
}

func (v Value) asString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindNull:
		return ""
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// length supports the length-based cross-type comparisons
// resolve_conditions uses when comparing a string to a number.
func (v Value) length() int {
	return len([]rune(v.asString()))
}
