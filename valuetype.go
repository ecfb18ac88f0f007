// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aggregators

import (
	"fmt"
	"strings"
)

// valuetype.go describes the shape of values being aggregated, separate from
// the runtime values themselves. Every operator validates runtime values
// against a declared ValueType before acting on them.

// ElementKind is the element type of a leaf tensor.
type ElementKind int8

const (
	Float32 ElementKind = iota + 1
	Float64
	Int32
	Int64
)

func (k ElementKind) String() string {
	switch k {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return fmt.Sprintf("ElementKind(%d)", int8(k))
	}
}

// Field is one component of a structured ValueType. The name is optional;
// unnamed fields are addressed positionally.
type Field struct {
	Name string
	Type ValueType
}

// NamedField pairs a name with a component type.
func NamedField(name string, t ValueType) Field {
	return Field{Name: name, Type: t}
}

// FieldOf is a positional, unnamed component type.
func FieldOf(t ValueType) Field {
	return Field{Type: t}
}

// ValueType describes the shape of a value being aggregated: either a leaf
// tensor (element kind plus dimensions, scalar when zero dimensional), or a
// structure of ordered, optionally named component types.
//
// ValueTypes are immutable once constructed, and compare structurally.
type ValueType struct {
	kind     ElementKind // zero for structures.
	shape    []int
	isStruct bool
	fields   []Field
}

// TensorOf returns a leaf ValueType with the given element kind and
// dimensions. No dimensions means a scalar.
func TensorOf(kind ElementKind, dims ...int) ValueType {
	shape := make([]int, len(dims))
	copy(shape, dims)
	return ValueType{kind: kind, shape: shape}
}

// ScalarOf returns a zero dimensional leaf ValueType.
func ScalarOf(kind ElementKind) ValueType {
	return TensorOf(kind)
}

// StructOf returns a structured ValueType with the given ordered fields.
// Named fields must not repeat a name, which panics as a programming error.
func StructOf(fields ...Field) ValueType {
	seen := map[string]bool{}
	fs := make([]Field, len(fields))
	copy(fs, fields)
	for _, f := range fs {
		if f.Name == "" {
			continue
		}
		if seen[f.Name] {
			panic(fmt.Sprintf("StructOf: duplicate field name %q", f.Name))
		}
		seen[f.Name] = true
	}
	return ValueType{isStruct: true, fields: fs}
}

// IsStruct reports whether t is a structure rather than a leaf tensor.
func (t ValueType) IsStruct() bool {
	return t.isStruct
}

// Kind returns the element kind of a leaf. Zero for structures.
func (t ValueType) Kind() ElementKind {
	return t.kind
}

// Shape returns a copy of the leaf dimensions. Empty for scalars.
func (t ValueType) Shape() []int {
	s := make([]int, len(t.shape))
	copy(s, t.shape)
	return s
}

// NumFields returns the number of component fields of a structure.
func (t ValueType) NumFields() int {
	return len(t.fields)
}

// Field returns the i'th component of a structure.
func (t ValueType) Field(i int) Field {
	return t.fields[i]
}

// FieldIndex returns the position of the named component, or -1.
func (t ValueType) FieldIndex(name string) int {
	for i, f := range t.fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two ValueTypes are structurally identical, including
// field names and ordering.
func (t ValueType) Equal(o ValueType) bool {
	if t.isStruct != o.isStruct {
		return false
	}
	if !t.isStruct {
		if t.kind != o.kind || len(t.shape) != len(o.shape) {
			return false
		}
		for i, d := range t.shape {
			if o.shape[i] != d {
				return false
			}
		}
		return true
	}
	if len(t.fields) != len(o.fields) {
		return false
	}
	for i, f := range t.fields {
		if f.Name != o.fields[i].Name || !f.Type.Equal(o.fields[i].Type) {
			return false
		}
	}
	return true
}

// numElements is the flattened element count of a leaf tensor.
func (t ValueType) numElements() int {
	n := 1
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// valid reports a reason the type cannot describe a concrete value, such as
// a non-positive dimension or a zero element kind.
func (t ValueType) valid() error {
	if t.isStruct {
		for i, f := range t.fields {
			if err := f.Type.valid(); err != nil {
				return fmt.Errorf("field %d: %w", i, err)
			}
		}
		return nil
	}
	switch t.kind {
	case Float32, Float64, Int32, Int64:
	default:
		return fmt.Errorf("unknown element kind %v", t.kind)
	}
	for _, d := range t.shape {
		if d <= 0 {
			return fmt.Errorf("non-positive dimension %d in shape %v", d, t.shape)
		}
	}
	return nil
}

func (t ValueType) String() string {
	var sb strings.Builder
	t.render(&sb)
	return sb.String()
}

func (t ValueType) render(sb *strings.Builder) {
	if !t.isStruct {
		sb.WriteString(t.kind.String())
		if len(t.shape) > 0 {
			sb.WriteByte('[')
			for i, d := range t.shape {
				if i > 0 {
					sb.WriteByte(',')
				}
				fmt.Fprintf(sb, "%d", d)
			}
			sb.WriteByte(']')
		}
		return
	}
	sb.WriteByte('<')
	for i, f := range t.fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		if f.Name != "" {
			sb.WriteString(f.Name)
			sb.WriteByte('=')
		}
		f.Type.render(sb)
	}
	sb.WriteByte('>')
}
