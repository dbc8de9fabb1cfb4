// Package rawjson decodes arbitrary JSON into a tagged union so callers can read
// loosely-typed upstream payloads with explicit kind checks instead of struct tags.
package rawjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindMissing Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is one decoded JSON value. The zero Value is KindMissing, which is what
// lookups return for absent keys and out-of-range indexes, so chains like
// v.Get("main").Get("temp") never need intermediate checks.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []Value
	obj  map[string]Value
}

// Decode parses data into a Value.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Value{}, fmt.Errorf("decode json: %w", err)
	}
	return FromInterface(v), nil
}

// FromInterface converts the output of encoding/json (with or without UseNumber)
// into a Value. Unsupported Go types become KindMissing.
func FromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{kind: KindNull}
	case bool:
		return Value{kind: KindBool, b: t}
	case json.Number:
		f, err := t.Float64()
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return Value{kind: KindString, str: t.String()}
		}
		// Overflowing numbers stay numeric with the ±Inf ParseFloat yields.
		return Value{kind: KindNumber, num: f}
	case float64:
		return Value{kind: KindNumber, num: t}
	case int:
		return Value{kind: KindNumber, num: float64(t)}
	case string:
		return Value{kind: KindString, str: t}
	case []interface{}:
		arr := make([]Value, len(t))
		for i, e := range t {
			arr[i] = FromInterface(e)
		}
		return Value{kind: KindArray, arr: arr}
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			obj[k] = FromInterface(e)
		}
		return Value{kind: KindObject, obj: obj}
	default:
		return Value{}
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Exists reports whether v was present in the source document.
func (v Value) Exists() bool { return v.kind != KindMissing }

// Get returns the member named key, or a missing Value when v is not an object
// or has no such member.
func (v Value) Get(key string) Value {
	if v.kind != KindObject {
		return Value{}
	}
	return v.obj[key]
}

// Index returns element i, or a missing Value when v is not an array or i is out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Value{}
	}
	return v.arr[i]
}

// Array returns the elements of v and true when v is an array.
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Float returns the number held by v. ok is false for every non-number kind;
// numeric strings are not coerced.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Len returns the number of elements or members; 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	}
	return 0
}
