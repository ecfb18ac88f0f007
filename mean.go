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

const (
	meanValueKey  = "mean_value"
	meanWeightKey = "mean_weight"
)

// MeanFactory builds weighted-mean processes. Each contributor's value is
// multiplied elementwise by its scalar weight; the weighted values and the
// weights are then summed by two independent inner delegations, and the
// coordinator divides the two sums.
//
// Either summation may be replaced with any [UnweightedFactory], so the
// movement of values can be swapped out without touching the mean logic.
type MeanFactory struct {
	// ValueSum aggregates the weighted values. Nil means [SumFactory].
	ValueSum UnweightedFactory
	// WeightSum aggregates the weights. Nil means [SumFactory].
	WeightSum UnweightedFactory
}

var _ WeightedFactory = MeanFactory{}

// Create returns a weighted-mean process for the given value and weight
// types. The weight must be a scalar.
func (f MeanFactory) Create(valueType, weightType ValueType, opts ...Options) (*WeightedProcess, error) {
	if err := valueType.valid(); err != nil {
		return nil, errors.Wrapf(ErrComposition, "mean of %v: %v", valueType, err)
	}
	if weightType.IsStruct() || len(weightType.Shape()) != 0 {
		return nil, errors.Wrapf(ErrComposition, "mean weight must be a scalar, got %v", weightType)
	}
	valueSum, err := innerOrSum(f.ValueSum).Create(valueType, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "value sum factory for %v", valueType)
	}
	weightSum, err := innerOrSum(f.WeightSum).Create(weightType, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "weight sum factory for %v", weightType)
	}

	p := &WeightedProcess{
		processCore: newProcessCore(valueType,
			pairStateType(valueSum.StateType(), weightSum.StateType()),
			valueType,
			StructOf(
				NamedField(meanValueKey, valueSum.MeasurementsType()),
				NamedField(meanWeightKey, weightSum.MeasurementsType()),
			),
			opts),
		weightType: weightType,
	}
	p.initFn = func(ctx context.Context) (Value, error) {
		vs, err := valueSum.Initialize(ctx)
		if err != nil {
			return Value{}, err
		}
		ws, err := weightSum.Initialize(ctx)
		if err != nil {
			return Value{}, err
		}
		zipped, err := Zip(AtCoordinator(vs.value), AtCoordinator(ws.value))
		if err != nil {
			return Value{}, err
		}
		return zipped.Single()
	}
	p.nextFn = func(ctx context.Context, state Value, value, weight *Federated) (Value, Value, Value, error) {
		vsState, wsState := state.FieldAt(0), state.FieldAt(1)

		weighted, err := MapEach2(ctx, value, weight, func(v, w Value) (Value, error) {
			return Scale(v, w.Float64())
		}, opts...)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		valueOut, err := valueSum.Next(ctx, State{typ: valueSum.StateType(), value: vsState}, weighted)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		weightOut, err := weightSum.Next(ctx, State{typ: weightSum.StateType(), value: wsState}, weight)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		// A zero weight sum divides through as IEEE 754 does; the caller
		// decides whether an all-zero round is meaningful.
		result, err := Div(valueOut.Result, weightOut.Result.Float64())
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}

		newState, err := Zip(AtCoordinator(valueOut.State.value), AtCoordinator(weightOut.State.value))
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		stateVal, err := newState.Single()
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		meas, err := ZipNamed(
			ZipField{Name: meanValueKey, Value: AtCoordinator(valueOut.Measurements)},
			ZipField{Name: meanWeightKey, Value: AtCoordinator(weightOut.Measurements)},
		)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		measVal, err := meas.Single()
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		return stateVal, result, measVal, nil
	}
	return p, nil
}
