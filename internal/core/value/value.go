package value

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind discriminates the variants of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindStringVector
)

var kindNames = map[Kind]string{
	KindNull:         "null",
	KindString:       "string",
	KindInt:          "int",
	KindFloat:        "float",
	KindBool:         "bool",
	KindStringVector: "string_vector",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Value is a tagged union over the scalar and vector types a log message
// field or a query result cell can hold. A Value is immutable once built.
//
// The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	i    int64
	f    float64
	b    bool
	vec  []string
}

func Null() Value                 { return Value{} }
func String(s string) Value       { return Value{kind: KindString, str: s} }
func Int(i int64) Value           { return Value{kind: KindInt, i: i} }
func Float(f float64) Value       { return Value{kind: KindFloat, f: f} }
func Bool(b bool) Value           { return Value{kind: KindBool, b: b} }
func StringVector(v []string) Value {
	cp := make([]string, len(v))
	copy(cp, v)
	return Value{kind: KindStringVector, vec: cp}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) numeric() bool { return v.kind == KindInt || v.kind == KindFloat }

func (v Value) Str() (string, bool)   { return v.str, v.kind == KindString }
func (v Value) Int() (int64, bool)    { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Bool() (bool, bool)    { return v.b, v.kind == KindBool }

func (v Value) Vector() ([]string, bool) {
	if v.kind != KindStringVector {
		return nil, false
	}
	cp := make([]string, len(v.vec))
	copy(cp, v.vec)
	return cp, true
}

// Decimal converts a numeric Value to an exact decimal for aggregation
// arithmetic. Numeric strings are accepted too, matching how ingested JSON
// payloads often carry numbers. Returns false for everything else.
func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.kind {
	case KindInt:
		return decimal.NewFromInt(v.i), true
	case KindFloat:
		return decimal.NewFromFloat(v.f), true
	case KindString:
		d, err := decimal.NewFromString(v.str)
		if err == nil {
			return d, true
		}
	}
	return decimal.Decimal{}, false
}

// FromDecimal converts an aggregate result back into a Value. Integral
// results come back as Int so counts and integer sums round-trip exactly.
func FromDecimal(d decimal.Decimal) Value {
	if d.IsInteger() {
		return Int(d.IntPart())
	}
	f, _ := d.Float64()
	return Float(f)
}

// Equal reports deep equality of kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == other.str
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindBool:
		return v.b == other.b
	case KindStringVector:
		if len(v.vec) != len(other.vec) {
			return false
		}
		for i := range v.vec {
			if v.vec[i] != other.vec[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Key returns a stable encoding of the Value usable as a map key component.
// Distinct values of distinct kinds never collide (the kind is part of the
// encoding), so Int(1) and String("1") key differently. String payloads are
// length-prefixed, so an encoding never extends into a neighbouring key
// component: concatenations of distinct key tuples stay distinct no matter
// what bytes the stored strings contain.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "n:"
	case KindString:
		return fmt.Sprintf("s:%d;%s", len(v.str), v.str)
	case KindInt:
		return fmt.Sprintf("i:%d", v.i)
	case KindFloat:
		return fmt.Sprintf("f:%g", v.f)
	case KindBool:
		return fmt.Sprintf("b:%t", v.b)
	case KindStringVector:
		var sb strings.Builder
		sb.WriteString("v:")
		for _, s := range v.vec {
			fmt.Fprintf(&sb, "%d;%s", len(s), s)
		}
		return sb.String()
	}
	return "?"
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindStringVector:
		return "[" + strings.Join(v.vec, ",") + "]"
	}
	return "invalid"
}

// wireValue is the tagged JSON shape. Carrying the type tag keeps ints exact
// across tiers instead of collapsing everything to float64.
type wireValue struct {
	Type   string   `json:"type"`
	Str    *string  `json:"string,omitempty"`
	Int    *int64   `json:"int,omitempty"`
	Float  *float64 `json:"float,omitempty"`
	Bool   *bool    `json:"bool,omitempty"`
	Vector []string `json:"string_vector,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Type: v.kind.String()}
	switch v.kind {
	case KindString:
		w.Str = &v.str
	case KindInt:
		w.Int = &v.i
	case KindFloat:
		w.Float = &v.f
	case KindBool:
		w.Bool = &v.b
	case KindStringVector:
		w.Vector = v.vec
		if w.Vector == nil {
			w.Vector = []string{}
		}
	}
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "null", "":
		*v = Null()
	case "string":
		if w.Str == nil {
			return fmt.Errorf("value: string variant missing payload")
		}
		*v = String(*w.Str)
	case "int":
		if w.Int == nil {
			return fmt.Errorf("value: int variant missing payload")
		}
		*v = Int(*w.Int)
	case "float":
		if w.Float == nil {
			return fmt.Errorf("value: float variant missing payload")
		}
		*v = Float(*w.Float)
	case "bool":
		if w.Bool == nil {
			return fmt.Errorf("value: bool variant missing payload")
		}
		*v = Bool(*w.Bool)
	case "string_vector":
		*v = StringVector(w.Vector)
	default:
		return fmt.Errorf("value: unknown variant %q", w.Type)
	}
	return nil
}

// Compare orders two values of the same comparable kind.
// Returns (ordering, ok); ok is false for mismatched or unordered kinds.
// Only Int and Float order numerically against each other; numeric-looking
// strings stay strings and order lexically, so ordering agrees with Equal's
// byte equality on any string pair ("1" and "1.0" are neither equal nor
// ordered as the same number).
func Compare(a, b Value) (int, bool) {
	if a.numeric() && b.numeric() {
		da, _ := a.Decimal()
		db, _ := b.Decimal()
		return da.Cmp(db), true
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.str, b.str), true
	case KindBool:
		switch {
		case a.b == b.b:
			return 0, true
		case !a.b:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}
