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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Value is a concrete runtime value mirroring a [ValueType]: a leaf tensor
// with flat element storage, or a structure of ordered child values.
//
// Leaf elements are held as float64 regardless of the declared element kind;
// the kind participates in type equality only. Values are treated as
// immutable: every transform produces a fresh Value.
type Value struct {
	typ    ValueType
	elems  []float64
	fields []Value
}

// Number constrains the element types accepted by tensor constructors.
type Number interface {
	constraints.Integer | constraints.Float
}

// Scalar returns a zero dimensional leaf Value.
func Scalar(kind ElementKind, v float64) Value {
	return Value{typ: ScalarOf(kind), elems: []float64{v}}
}

// Tensor returns a leaf Value of the given kind and dimensions from a flat
// element slice. The element count must match the shape.
func Tensor[E Number](kind ElementKind, data []E, dims ...int) (Value, error) {
	t := TensorOf(kind, dims...)
	if len(data) != t.numElements() {
		return Value{}, errors.Wrapf(ErrShapeMismatch,
			"tensor of type %v needs %d elements, got %d", t, t.numElements(), len(data))
	}
	elems := make([]float64, len(data))
	for i, e := range data {
		elems[i] = float64(e)
	}
	return Value{typ: t, elems: elems}, nil
}

// ValueField names a child value of a structured Value.
type ValueField struct {
	Name  string
	Value Value
}

// Struct returns a structured Value with the given ordered children. The
// resulting type is derived from the children; Struct() is the empty value
// used for empty states and empty measurements.
func Struct(fields ...ValueField) Value {
	tfs := make([]Field, len(fields))
	vfs := make([]Value, len(fields))
	for i, f := range fields {
		tfs[i] = Field{Name: f.Name, Type: f.Value.typ}
		vfs[i] = f.Value
	}
	return Value{typ: StructOf(tfs...), fields: vfs}
}

// ZeroOf returns the all-zeros Value of the given type.
func ZeroOf(t ValueType) Value {
	if t.IsStruct() {
		fields := make([]Value, t.NumFields())
		for i := range fields {
			fields[i] = ZeroOf(t.Field(i).Type)
		}
		return Value{typ: t, fields: fields}
	}
	return Value{typ: t, elems: make([]float64, t.numElements())}
}

// Type returns the ValueType describing v.
func (v Value) Type() ValueType {
	return v.typ
}

// Float64 returns the single element of a scalar leaf. It panics on
// structures and non-scalar tensors, as reading one is a programming error.
func (v Value) Float64() float64 {
	if v.typ.IsStruct() || len(v.elems) != 1 {
		panic(fmt.Sprintf("Float64 called on non-scalar value of type %v", v.typ))
	}
	return v.elems[0]
}

// Elements returns a copy of a leaf's flattened elements.
func (v Value) Elements() []float64 {
	out := make([]float64, len(v.elems))
	copy(out, v.elems)
	return out
}

// NumFields returns the number of children of a structured value.
func (v Value) NumFields() int {
	return len(v.fields)
}

// FieldAt returns the i'th child of a structured value.
func (v Value) FieldAt(i int) Value {
	return v.fields[i]
}

// FieldNamed returns the named child of a structured value.
func (v Value) FieldNamed(name string) (Value, bool) {
	i := v.typ.FieldIndex(name)
	if i < 0 {
		return Value{}, false
	}
	return v.fields[i], true
}

// Conforms validates v's runtime shape against the declared type t,
// recursively. It reports [ErrShapeMismatch] describing the first
// disagreement found.
func (v Value) Conforms(t ValueType) error {
	if !v.typ.Equal(t) {
		return errors.Wrapf(ErrShapeMismatch, "value of type %v does not conform to %v", v.typ, t)
	}
	return v.wellFormed()
}

// wellFormed checks the storage matches the carried type.
func (v Value) wellFormed() error {
	if v.typ.IsStruct() {
		if len(v.fields) != v.typ.NumFields() {
			return errors.Wrapf(ErrShapeMismatch,
				"structure of type %v has %d children, want %d", v.typ, len(v.fields), v.typ.NumFields())
		}
		for i, f := range v.fields {
			if !f.typ.Equal(v.typ.Field(i).Type) {
				return errors.Wrapf(ErrShapeMismatch,
					"child %d has type %v, want %v", i, f.typ, v.typ.Field(i).Type)
			}
			if err := f.wellFormed(); err != nil {
				return err
			}
		}
		return nil
	}
	if got, want := len(v.elems), v.typ.numElements(); got != want {
		return errors.Wrapf(ErrShapeMismatch,
			"tensor of type %v has %d elements, want %d", v.typ, got, want)
	}
	return nil
}

// MapStructure applies fn to every leaf tensor of a possibly nested value,
// preserving the structure shape. Contributor side transforms use it so the
// same logic acts uniformly on a single scalar or a nested collection of
// tensors. fn must return a leaf of the same type it was given.
func MapStructure(fn func(leaf Value) (Value, error), v Value) (Value, error) {
	if !v.typ.IsStruct() {
		out, err := fn(v)
		if err != nil {
			return Value{}, err
		}
		if err := out.Conforms(v.typ); err != nil {
			return Value{}, errors.Wrap(err, "leaf transform changed the leaf type")
		}
		return out, nil
	}
	fields := make([]Value, len(v.fields))
	for i, f := range v.fields {
		out, err := MapStructure(fn, f)
		if err != nil {
			return Value{}, err
		}
		fields[i] = out
	}
	return Value{typ: v.typ, fields: fields}, nil
}

// MapStructure2 applies fn pairwise to the leaves of two values of identical
// type, preserving structure.
func MapStructure2(fn func(a, b Value) (Value, error), a, b Value) (Value, error) {
	if !a.typ.Equal(b.typ) {
		return Value{}, errors.Wrapf(ErrShapeMismatch,
			"cannot combine values of types %v and %v", a.typ, b.typ)
	}
	if !a.typ.IsStruct() {
		out, err := fn(a, b)
		if err != nil {
			return Value{}, err
		}
		if err := out.Conforms(a.typ); err != nil {
			return Value{}, errors.Wrap(err, "leaf transform changed the leaf type")
		}
		return out, nil
	}
	fields := make([]Value, len(a.fields))
	for i := range a.fields {
		out, err := MapStructure2(fn, a.fields[i], b.fields[i])
		if err != nil {
			return Value{}, err
		}
		fields[i] = out
	}
	return Value{typ: a.typ, fields: fields}, nil
}

// String renders the value for diagnostics: scalars bare, tensors as an
// element list, structures in angle brackets with field names.
func (v Value) String() string {
	if v.typ.IsStruct() {
		var sb strings.Builder
		sb.WriteByte('<')
		for i, f := range v.fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			if name := v.typ.Field(i).Name; name != "" {
				sb.WriteString(name)
				sb.WriteByte('=')
			}
			sb.WriteString(f.String())
		}
		sb.WriteByte('>')
		return sb.String()
	}
	if len(v.typ.shape) == 0 && len(v.elems) == 1 {
		return strconv.FormatFloat(v.elems[0], 'g', -1, 64)
	}
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range v.elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(e, 'g', -1, 64))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Add combines two values of identical type by elementwise addition. It is
// commutative and associative, and serves as the reduce combiner for sums.
func Add(a, b Value) (Value, error) {
	return MapStructure2(func(x, y Value) (Value, error) {
		elems := make([]float64, len(x.elems))
		for i := range x.elems {
			elems[i] = x.elems[i] + y.elems[i]
		}
		return Value{typ: x.typ, elems: elems}, nil
	}, a, b)
}

// Scale multiplies every element of every leaf by factor.
func Scale(v Value, factor float64) (Value, error) {
	return MapStructure(func(x Value) (Value, error) {
		elems := make([]float64, len(x.elems))
		for i, e := range x.elems {
			elems[i] = e * factor
		}
		return Value{typ: x.typ, elems: elems}, nil
	}, v)
}

// Div divides every element of every leaf by divisor.
func Div(v Value, divisor float64) (Value, error) {
	return MapStructure(func(x Value) (Value, error) {
		elems := make([]float64, len(x.elems))
		for i, e := range x.elems {
			elems[i] = e / divisor
		}
		return Value{typ: x.typ, elems: elems}, nil
	}, v)
}
