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
	"github.com/go-json-experiment/json"
	"github.com/pkg/errors"
)

// The round loop owns state persistence between rounds. MarshalState and
// UnmarshalState supply the serialization half: a reloaded state is
// indistinguishable from the live one under the process type contract.

type stateDoc struct {
	Type  typeDoc  `json:"type"`
	Value valueDoc `json:"value"`
}

// typeDoc is a leaf when Leaf is set, a structure otherwise.
type typeDoc struct {
	Leaf   *leafDoc   `json:"leaf,omitempty"`
	Struct []fieldDoc `json:"struct,omitempty"`
}

type leafDoc struct {
	Kind  string `json:"kind"`
	Shape []int  `json:"shape,omitempty"`
}

type fieldDoc struct {
	Name string  `json:"name,omitempty"`
	Type typeDoc `json:"type"`
}

type valueDoc struct {
	Elems  []float64  `json:"elems,omitempty"`
	Fields []valueDoc `json:"fields,omitempty"`
}

// MarshalState encodes a state, including its type descriptor, for durable
// persistence between rounds.
func MarshalState(s State) ([]byte, error) {
	doc := stateDoc{
		Type:  typeToDoc(s.typ),
		Value: valueToDoc(s.value),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encoding state")
	}
	return data, nil
}

// UnmarshalState decodes a state previously produced by [MarshalState]. The
// decoded value is validated against the decoded type before use.
func UnmarshalState(data []byte) (State, error) {
	var doc stateDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return State{}, errors.Wrap(err, "decoding state")
	}
	t, err := typeFromDoc(doc.Type)
	if err != nil {
		return State{}, err
	}
	v, err := valueFromDoc(doc.Value, t)
	if err != nil {
		return State{}, err
	}
	if err := v.Conforms(t); err != nil {
		return State{}, errors.Wrap(err, "decoded state")
	}
	return State{typ: t, value: v}, nil
}

func typeToDoc(t ValueType) typeDoc {
	if !t.IsStruct() {
		return typeDoc{Leaf: &leafDoc{Kind: t.Kind().String(), Shape: t.Shape()}}
	}
	fields := make([]fieldDoc, t.NumFields())
	for i := range fields {
		f := t.Field(i)
		fields[i] = fieldDoc{Name: f.Name, Type: typeToDoc(f.Type)}
	}
	return typeDoc{Struct: fields}
}

func typeFromDoc(doc typeDoc) (ValueType, error) {
	if doc.Leaf != nil {
		kind, err := kindFromString(doc.Leaf.Kind)
		if err != nil {
			return ValueType{}, err
		}
		return TensorOf(kind, doc.Leaf.Shape...), nil
	}
	fields := make([]Field, len(doc.Struct))
	for i, f := range doc.Struct {
		ft, err := typeFromDoc(f.Type)
		if err != nil {
			return ValueType{}, err
		}
		fields[i] = Field{Name: f.Name, Type: ft}
	}
	return StructOf(fields...), nil
}

func valueToDoc(v Value) valueDoc {
	if !v.Type().IsStruct() {
		return valueDoc{Elems: v.Elements()}
	}
	fields := make([]valueDoc, v.NumFields())
	for i := range fields {
		fields[i] = valueToDoc(v.FieldAt(i))
	}
	return valueDoc{Fields: fields}
}

func valueFromDoc(doc valueDoc, t ValueType) (Value, error) {
	if !t.IsStruct() {
		if len(doc.Elems) != t.numElements() {
			return Value{}, errors.Wrapf(ErrShapeMismatch,
				"decoded tensor has %d elements, type %v wants %d", len(doc.Elems), t, t.numElements())
		}
		elems := make([]float64, len(doc.Elems))
		copy(elems, doc.Elems)
		return Value{typ: t, elems: elems}, nil
	}
	if len(doc.Fields) != t.NumFields() {
		return Value{}, errors.Wrapf(ErrShapeMismatch,
			"decoded structure has %d children, type %v wants %d", len(doc.Fields), t, t.NumFields())
	}
	fields := make([]Value, len(doc.Fields))
	for i, fd := range doc.Fields {
		f, err := valueFromDoc(fd, t.Field(i).Type)
		if err != nil {
			return Value{}, err
		}
		fields[i] = f
	}
	return Value{typ: t, fields: fields}, nil
}

func kindFromString(s string) (ElementKind, error) {
	for _, k := range []ElementKind{Float32, Float64, Int32, Int64} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, errors.Wrapf(ErrShapeMismatch, "unknown element kind %q", s)
}
