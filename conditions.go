package ability

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/oarkflow/date"
)

// ============================================================================
// CONDITION VALUES
// ============================================================================

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a closed JSON-shaped variant: Null, Bool, Number, String, Array
// or Object. Condition trees are built from Values so that operator
// recognition happens structurally on object keys instead of through
// dynamic casts on raw any payloads.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []Value
	obj  map[string]Value
}

func Null() Value            { return Value{kind: KindNull} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }
func Int(n int) Value        { return Value{kind: KindNumber, num: float64(n)} }
func String(s string) Value  { return Value{kind: KindString, str: s} }

func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }

func Object(fields map[string]Value) Value { return Value{kind: KindObject, obj: fields} }

// FromAny converts a decoded JSON/YAML value (bool, numeric, string, []any,
// map[string]any or nil) into a Value. Unrecognized types become Null.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(t)
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case []any:
		items := make([]Value, 0, len(t))
		for _, it := range t {
			items = append(items, FromAny(it))
		}
		return Value{kind: KindArray, arr: items}
	case []string:
		items := make([]Value, 0, len(t))
		for _, it := range t {
			items = append(items, String(it))
		}
		return Value{kind: KindArray, arr: items}
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, it := range t {
			fields[k] = FromAny(it)
		}
		return Value{kind: KindObject, obj: fields}
	case map[string]Value:
		return Object(t)
	}
	return Null()
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

func (v Value) AsObject() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Interface returns the plain Go representation (nil, bool, float64, string,
// []any or map[string]any), suitable for encoding/json and yaml.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, it := range v.arr {
			out = append(out, it.Interface())
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, it := range v.obj {
			out[k] = it.Interface()
		}
		return out
	}
	return nil
}

// Equal reports deep equality. Numbers compare numerically, everything else
// requires matching kinds.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, it := range v.obj {
			ot, ok := o.obj[k]
			if !ok || !it.Equal(ot) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// ============================================================================
// CONDITION TREES
// ============================================================================

// Conditions is the root of a condition tree: an object whose keys are
// instance field names, nested sub-objects, operator objects or the
// $and/$or/$not combinators. A nil Conditions means "unconditional"; an
// empty one matches everything.
type Conditions map[string]Value

const (
	opGt  = "$gt"
	opGte = "$gte"
	opLt  = "$lt"
	opLte = "$lte"
	opNe  = "$ne"
	opIn  = "$in"
	opNin = "$nin"
	opAnd = "$and"
	opOr  = "$or"
	opNot = "$not"
)

var comparisonOps = map[string]struct{}{
	opGt: {}, opGte: {}, opLt: {}, opLte: {}, opNe: {}, opIn: {}, opNin: {},
}

// ConditionsFromAny builds a Conditions tree from a decoded JSON/YAML object.
func ConditionsFromAny(m map[string]any) Conditions {
	if m == nil {
		return nil
	}
	c := make(Conditions, len(m))
	for k, v := range m {
		c[k] = FromAny(v)
	}
	return c
}

// Interface returns the plain Go representation of the tree.
func (c Conditions) Interface() map[string]any {
	if c == nil {
		return nil
	}
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v.Interface()
	}
	return out
}

// Equal reports deep equality of two condition trees.
func (c Conditions) Equal(o Conditions) bool {
	if (c == nil) != (o == nil) {
		return false
	}
	return Object(map[string]Value(c)).Equal(Object(map[string]Value(o)))
}

// isOperatorObject reports whether v is an object whose keys are all
// comparison operators, e.g. {"$gt": 18}.
func isOperatorObject(v Value) bool {
	obj, ok := v.AsObject()
	if !ok || len(obj) == 0 {
		return false
	}
	for k := range obj {
		if _, found := comparisonOps[k]; !found {
			return false
		}
	}
	return true
}

func conditionsFromValue(v Value) (Conditions, bool) {
	obj, ok := v.AsObject()
	if !ok {
		return nil, false
	}
	return Conditions(obj), true
}

// ============================================================================
// MATCHING
// ============================================================================

// Matches reports whether a dictionary-shaped instance satisfies the
// condition tree. It is the map convenience form of MatchesValue.
func Matches(object map[string]any, conds Conditions) bool {
	return MatchesValue(FromAny(object), conds)
}

// MatchesValue reports whether obj satisfies conds. Every key in the tree
// must match (conjunction). An empty tree matches everything.
func MatchesValue(obj Value, conds Conditions) bool {
	for key, want := range conds {
		switch key {
		case opAnd:
			subs, ok := want.AsArray()
			if !ok {
				return false
			}
			for _, sub := range subs {
				c, ok := conditionsFromValue(sub)
				if !ok || !MatchesValue(obj, c) {
					return false
				}
			}
		case opOr:
			subs, ok := want.AsArray()
			if !ok {
				return false
			}
			matched := false
			for _, sub := range subs {
				c, ok := conditionsFromValue(sub)
				if ok && MatchesValue(obj, c) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case opNot:
			c, ok := conditionsFromValue(want)
			if !ok || MatchesValue(obj, c) {
				return false
			}
		default:
			if !matchKey(obj, key, want) {
				return false
			}
		}
	}
	return true
}

func matchKey(obj Value, key string, want Value) bool {
	fields, ok := obj.AsObject()
	if !ok {
		return false
	}
	got, present := fields[key]

	if isOperatorObject(want) {
		if !present {
			return false
		}
		for op, operand := range want.obj {
			if !applyOperator(op, got, operand) {
				return false
			}
		}
		return true
	}

	// Nested condition object: recurse into the instance sub-object.
	if want.Kind() == KindObject {
		if !present {
			return false
		}
		sub, _ := conditionsFromValue(want)
		return MatchesValue(got, sub)
	}

	// Literal equality. A null condition value matches only an explicit
	// null, never a missing key.
	if want.IsNull() {
		return present && got.IsNull()
	}
	return present && got.Equal(want)
}

func applyOperator(op string, got, operand Value) bool {
	switch op {
	case opNe:
		return !got.Equal(operand)
	case opIn:
		return membership(got, operand)
	case opNin:
		return !membership(got, operand)
	case opGt, opGte, opLt, opLte:
		cmp, ok := compareValues(got, operand)
		if !ok {
			return false
		}
		switch op {
		case opGt:
			return cmp > 0
		case opGte:
			return cmp >= 0
		case opLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	}
	return false
}

// membership tests got against the operand array. An array-valued instance
// field matches when any of its elements is a member.
func membership(got, operand Value) bool {
	set, ok := operand.AsArray()
	if !ok {
		return false
	}
	if elems, isArr := got.AsArray(); isArr {
		for _, el := range elems {
			for _, m := range set {
				if el.Equal(m) {
					return true
				}
			}
		}
		return false
	}
	for _, m := range set {
		if got.Equal(m) {
			return true
		}
	}
	return false
}

// compareValues orders two scalar values. Numbers compare numerically,
// strings lexicographically unless both parse as dates, in which case they
// compare temporally.
func compareValues(a, b Value) (int, bool) {
	if an, ok := a.AsNumber(); ok {
		bn, ok := b.AsNumber()
		if !ok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		}
		return 0, true
	}
	as, ok := a.AsString()
	if !ok {
		return 0, false
	}
	bs, ok := b.AsString()
	if !ok {
		return 0, false
	}
	if looksTemporal(as) && looksTemporal(bs) {
		at, errA := date.Parse(as)
		bt, errB := date.Parse(bs)
		if errA == nil && errB == nil {
			switch {
			case at.Before(bt):
				return -1, true
			case at.After(bt):
				return 1, true
			}
			return 0, true
		}
	}
	return strings.Compare(as, bs), true
}

// looksTemporal is a cheap filter so ordinary strings never go through the
// flexible date parser.
func looksTemporal(s string) bool {
	if len(s) < 8 {
		return false
	}
	return strings.ContainsAny(s, "-/:")
}

// ============================================================================
// FIELD EXTRACTION
// ============================================================================

// ConditionFields enumerates every instance field path referenced by the
// condition tree, including paths inside $and/$or/$not and nested
// sub-objects (joined with dots). The result is deduplicated and sorted.
func ConditionFields(conds Conditions) []string {
	seen := make(map[string]struct{})
	collectFields(conds, "", seen)
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func collectFields(conds Conditions, prefix string, seen map[string]struct{}) {
	for key, want := range conds {
		switch key {
		case opAnd, opOr:
			if subs, ok := want.AsArray(); ok {
				for _, sub := range subs {
					if c, ok := conditionsFromValue(sub); ok {
						collectFields(c, prefix, seen)
					}
				}
			}
		case opNot:
			if c, ok := conditionsFromValue(want); ok {
				collectFields(c, prefix, seen)
			}
		default:
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			if !isOperatorObject(want) && want.Kind() == KindObject {
				if c, ok := conditionsFromValue(want); ok {
					collectFields(c, path, seen)
				}
				continue
			}
			seen[path] = struct{}{}
		}
	}
}

// ============================================================================
// EVALUATORS
// ============================================================================

// ConditionEvaluator evaluates a condition tree against a subject's
// representation. Implementations are pluggable per subject shape.
type ConditionEvaluator interface {
	Evaluate(conds Conditions, subject Subject) bool
}

// DefaultEvaluator handles subjects that expose an attribute map. Subjects
// without instance data never satisfy a conditioned rule.
type DefaultEvaluator struct{}

func (DefaultEvaluator) Evaluate(conds Conditions, subject Subject) bool {
	if attrs, ok := subject.(AttributeSubject); ok {
		return Matches(attrs.Attributes(), conds)
	}
	return false
}
