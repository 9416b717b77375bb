// Package metadata models the nested key/value document attached to a case
// as an explicit tree of typed values, so that merge semantics are enforced
// by construction instead of by convention over map[string]any.
package metadata

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Kind discriminates the value variants a metadata tree may hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is one node of a metadata tree. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	l    []Value
	m    Tree
}

// Tree is a map-typed metadata node keyed by string.
type Tree map[string]Value

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func List(vs ...Value) Value    { return Value{kind: KindList, l: vs} }
func Map(t Tree) Value          { return Value{kind: KindMap, m: t} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) Bool() bool      { return v.b }
func (v Value) Number() float64 { return v.n }
func (v Value) String() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}
func (v Value) List() []Value { return v.l }
func (v Value) Map() Tree     { return v.m }

// NumberOK returns the numeric payload and whether the value is a number.
func (v Value) NumberOK() (float64, bool) {
	return v.n, v.kind == KindNumber
}

// Get walks the tree along the given keys and reports whether every hop
// traversed a map node holding the key.
func (t Tree) Get(keys ...string) (Value, bool) {
	cur := Map(t)
	for _, k := range keys {
		if cur.kind != KindMap {
			return Value{}, false
		}
		next, ok := cur.m[k]
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// FromAny converts a decoded JSON value into a typed Value. Numeric Go types
// beyond float64 are accepted so callers can build trees from literals.
func FromAny(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case float64:
		return Number(v), nil
	case float32:
		return Number(float64(v)), nil
	case int:
		return Number(float64(v)), nil
	case int64:
		return Number(float64(v)), nil
	case string:
		return String(v), nil
	case []any:
		items := make([]Value, 0, len(v))
		for _, item := range v {
			conv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, conv)
		}
		return List(items...), nil
	case map[string]any:
		tree := make(Tree, len(v))
		for k, item := range v {
			conv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			tree[k] = conv
		}
		return Map(tree), nil
	default:
		return Value{}, fmt.Errorf("metadata: unsupported value type %T", raw)
	}
}

// ToAny converts a Value back into plain Go types suitable for JSON encoding.
func (v Value) ToAny() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.l))
		for i, item := range v.l {
			out[i] = item.ToAny()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToAny()
		}
		return out
	default:
		return nil
	}
}

// Decode parses a JSON object into a Tree. Empty or "null" input yields an
// empty tree so jsonb columns can round-trip without special casing.
func Decode(data []byte) (Tree, error) {
	if len(data) == 0 {
		return Tree{}, nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("metadata: decode: %w", err)
	}
	if raw == nil {
		return Tree{}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("metadata: document root must be an object, got %T", raw)
	}
	v, err := FromAny(obj)
	if err != nil {
		return nil, err
	}
	return v.Map(), nil
}

// Encode serializes a Tree to JSON for a jsonb column.
func Encode(t Tree) ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(Map(t).ToAny())
	if err != nil {
		return nil, fmt.Errorf("metadata: encode: %w", err)
	}
	return b, nil
}
