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
	"context"

	"github.com/pkg/errors"
)

// SumFactory builds processes that sum contributor values elementwise. It is
// the base case of composition: it has no inner factory, carries no state,
// and reports no measurements.
type SumFactory struct{}

var _ UnweightedFactory = SumFactory{}

// Create returns a summing process for values of type t.
func (SumFactory) Create(t ValueType, opts ...Options) (*Process, error) {
	if err := t.valid(); err != nil {
		return nil, errors.Wrapf(ErrComposition, "sum of %v: %v", t, err)
	}
	empty := StructOf()
	p := &Process{
		processCore: newProcessCore(t, empty, t, empty, opts),
	}
	p.initFn = func(context.Context) (Value, error) {
		return Struct(), nil
	}
	p.nextFn = func(ctx context.Context, state Value, value *Federated) (Value, Value, Value, error) {
		summed, err := Reduce(ctx, value, ZeroOf(t), Add)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		result, err := summed.Single()
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		return state, result, Struct(), nil
	}
	return p, nil
}
