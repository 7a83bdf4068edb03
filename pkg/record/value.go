// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the runtime type of a Value.
type Kind string

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

const (
	KindNull   Kind = "null"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindList   Kind = "list"
)

// AllowedScalar is a constraint (compile-time) for what a record may hold.
type AllowedScalar interface {
	~int64 | ~float64 | ~string
}

// Value is a *runtime* interface so records can hold mixed column types.
type Value interface {
	isValue()
	Kind() Kind
	Any() any
	String() string

	json.Marshaler
	yaml.Marshaler
}

// Scalar wraps an allowed scalar type.
type Scalar[T AllowedScalar] struct {
	V T
}

func (Scalar[T]) isValue() {}

// Kind reports the kind of the wrapped scalar.
func (s Scalar[T]) Kind() Kind {
	switch any(s.V).(type) {
	case int64:
		return KindInt
	case float64:
		return KindFloat
	default:
		return KindString
	}
}

func (s Scalar[T]) Any() any { return s.V }

// String returns the string representation of the underlying scalar value.
func (s Scalar[T]) String() string {
	return fmt.Sprintf("%v", s.V)
}

// MarshalJSON makes the JSON value be the underlying scalar (not an object wrapper).
// Floats always carry a fraction or exponent so they decode back as floats.
func (s Scalar[T]) MarshalJSON() ([]byte, error) {
	if f, ok := any(s.V).(float64); ok {
		return marshalFloat(f)
	}
	return json.Marshal(s.V)
}

// MarshalYAML makes the YAML value be the underlying scalar (not an object wrapper).
func (s Scalar[T]) MarshalYAML() (any, error) {
	return s.V, nil
}

func marshalFloat(f float64) ([]byte, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	if !strings.ContainsAny(string(b), ".eE") {
		b = append(b, '.', '0')
	}
	return b, nil
}

// List is an ordered sequence of values from a one-to-many column.
type List []Value

func (List) isValue() {}

// Kind returns KindList.
func (List) Kind() Kind { return KindList }

// Any returns the list elements as plain Go values.
func (l List) Any() any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = v.Any()
	}
	return out
}

// String returns the elements in brackets.
func (l List) String() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// MarshalJSON encodes the list as a JSON array, never null.
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Value(l))
}

// MarshalYAML encodes the list as a YAML sequence.
func (l List) MarshalYAML() (any, error) {
	if l == nil {
		return []Value{}, nil
	}
	return []Value(l), nil
}

// UnmarshalJSON decodes a JSON array, keeping integer and float kinds
// apart. A JSON null decodes to an empty list.
func (l *List) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(List, len(raw))
	for i, r := range raw {
		v, err := DecodeValue(r)
		if err != nil {
			return fmt.Errorf("list element %d: %w", i, err)
		}
		out[i] = v
	}
	*l = out
	return nil
}

// UnmarshalYAML decodes a YAML sequence.
func (l *List) UnmarshalYAML(node *yaml.Node) error {
	var raw []any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(List, len(raw))
	for i, e := range raw {
		out[i] = ToValue(e)
	}
	*l = out
	return nil
}

type null struct{}

func (null) isValue()       {}
func (null) Kind() Kind     { return KindNull }
func (null) Any() any       { return nil }
func (null) String() string { return "" }

func (null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }
func (null) MarshalYAML() (any, error)    { return nil, nil }

// Null is the placeholder for a column that has no value for a device.
var Null Value = null{}

// Convenience constructors for each allowed value type.
func Int(v int64) Value      { return Scalar[int64]{V: v} }
func Float(v float64) Value  { return Scalar[float64]{V: v} }
func Str(v string) Value     { return Scalar[string]{V: v} }
func ListOf(v ...Value) List { return append(List{}, v...) }

// IsNull reports whether v is absent or the null placeholder.
func IsNull(v Value) bool {
	return v == nil || v.Kind() == KindNull
}

// ToValue converts a decoded JSON or YAML value into a Value. Numbers decoded
// with json.Decoder.UseNumber keep their integer or float kind.
func ToValue(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null
	case Value:
		return val
	case int:
		return Int(int64(val))
	case int64:
		return Int(val)
	case float64:
		return Float(val)
	case string:
		return Str(val)
	case json.Number:
		s := val.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, 64); err == nil {
				return Int(i)
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Float(f)
		}
		return Str(s)
	case []any:
		l := make(List, len(val))
		for i, e := range val {
			l[i] = ToValue(e)
		}
		return l
	default:
		return Str(fmt.Sprintf("%v", val))
	}
}

// DecodeValue parses one JSON value into a Value.
func DecodeValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return ToValue(v), nil
}
