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

// scaling.go holds the two wrapping factories: a fixed-factor scaler and a
// round-counter scaler. Both follow the composition pattern: scale at the
// contributors, delegate the cross-contributor combination to an inner
// process, undo the scaling at the coordinator, and pair their own state and
// measurements with the inner layer's.

const (
	// scaledSumKey names the wrapping layer's own measurement: the inner
	// result before unscaling.
	scaledSumKey = "scaled_sum"
	// defaultInnerKey nests the inner layer's whole measurement value.
	defaultInnerKey = "inner"
)

// ScalingFactory wraps an inner factory, multiplying each contributor's
// value by Factor before the inner aggregation and dividing the aggregate by
// Factor afterward. The result is therefore identical to the inner
// aggregation alone; the intermediate scaled sum is reported as a
// measurement.
type ScalingFactory struct {
	// Factor is the contributor-side multiplier. Must be non-zero.
	Factor float64
	// Inner performs the cross-contributor combination. Nil means
	// [SumFactory].
	Inner UnweightedFactory
	// InnerKey names the inner layer's measurements in this layer's
	// measurement structure. Defaults to "inner".
	InnerKey string
}

var _ UnweightedFactory = ScalingFactory{}

// Create returns a scale/aggregate/unscale process for values of type t.
func (f ScalingFactory) Create(t ValueType, opts ...Options) (*Process, error) {
	if f.Factor == 0 {
		return nil, errors.Wrap(ErrComposition, "scaling factor must be non-zero")
	}
	innerKey, err := innerMeasurementKey(f.InnerKey)
	if err != nil {
		return nil, err
	}
	inner, err := innerOrSum(f.Inner).Create(t, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "inner factory for %v", t)
	}

	// Own state is empty; scaling by a constant needs no round memory.
	p := &Process{
		processCore: newProcessCore(t,
			pairStateType(StructOf(), inner.StateType()),
			t,
			wrapMeasurementType(inner, innerKey),
			opts),
	}
	p.initFn = func(ctx context.Context) (Value, error) {
		return pairedInit(ctx, Struct(), inner)
	}
	p.nextFn = func(ctx context.Context, state Value, value *Federated) (Value, Value, Value, error) {
		own, innerState := state.FieldAt(0), state.FieldAt(1)

		scaled, err := scaleAtContributors(ctx, value, Scalar(Float64, f.Factor), opts)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		innerOut, err := inner.Next(ctx, State{typ: inner.StateType(), value: innerState}, scaled)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		result, err := Div(innerOut.Result, f.Factor)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		return composeWrapped(own, innerOut, result, innerKey)
	}
	return p, nil
}

// RoundScalingFactory wraps an inner factory, multiplying each contributor's
// value by the round ordinal before the inner aggregation and dividing the
// aggregate by it afterward. The ordinal is carried as this layer's state: a
// counter starting at zero, incremented before use each round.
//
// Nesting one RoundScalingFactory inside another compounds the intermediate
// scaling multiplicatively, while the outermost result stays equal to the
// inner aggregation alone at every depth.
type RoundScalingFactory struct {
	// Inner performs the cross-contributor combination. Nil means
	// [SumFactory].
	Inner UnweightedFactory
	// InnerKey names the inner layer's measurements. Defaults to "inner".
	InnerKey string
}

var _ UnweightedFactory = RoundScalingFactory{}

// Create returns a round-counter scaling process for values of type t.
func (f RoundScalingFactory) Create(t ValueType, opts ...Options) (*Process, error) {
	innerKey, err := innerMeasurementKey(f.InnerKey)
	if err != nil {
		return nil, err
	}
	inner, err := innerOrSum(f.Inner).Create(t, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "inner factory for %v", t)
	}

	counterType := ScalarOf(Float64)
	p := &Process{
		processCore: newProcessCore(t,
			pairStateType(counterType, inner.StateType()),
			t,
			wrapMeasurementType(inner, innerKey),
			opts),
	}
	p.initFn = func(ctx context.Context) (Value, error) {
		return pairedInit(ctx, Scalar(Float64, 0), inner)
	}
	p.nextFn = func(ctx context.Context, state Value, value *Federated) (Value, Value, Value, error) {
		counter, innerState := state.FieldAt(0), state.FieldAt(1)

		// Increment before use: round 1 scales by 1.
		bumped, err := MapEach(ctx, AtCoordinator(counter), func(v Value) (Value, error) {
			return Scalar(Float64, v.Float64()+1), nil
		})
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		newCounter, err := bumped.Single()
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}

		scaled, err := scaleAtContributors(ctx, value, newCounter, opts)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		innerOut, err := inner.Next(ctx, State{typ: inner.StateType(), value: innerState}, scaled)
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		result, err := Div(innerOut.Result, newCounter.Float64())
		if err != nil {
			return Value{}, Value{}, Value{}, err
		}
		return composeWrapped(newCounter, innerOut, result, innerKey)
	}
	return p, nil
}

func innerOrSum(f UnweightedFactory) UnweightedFactory {
	if f == nil {
		return SumFactory{}
	}
	return f
}

func innerMeasurementKey(key string) (string, error) {
	if key == "" {
		return defaultInnerKey, nil
	}
	if key == scaledSumKey {
		return "", errors.Wrapf(ErrComposition,
			"inner measurement key %q collides with a reserved key", key)
	}
	return key, nil
}

func pairStateType(own, inner ValueType) ValueType {
	return StructOf(FieldOf(own), FieldOf(inner))
}

func wrapMeasurementType(inner *Process, innerKey string) ValueType {
	return StructOf(
		NamedField(scaledSumKey, inner.ResultType()),
		NamedField(innerKey, inner.MeasurementsType()),
	)
}

// pairedInit zips this layer's initial state with the inner process's, so
// the composed state stays a single coordinator value.
func pairedInit(ctx context.Context, own Value, inner *Process) (Value, error) {
	innerState, err := inner.Initialize(ctx)
	if err != nil {
		return Value{}, err
	}
	zipped, err := Zip(AtCoordinator(own), AtCoordinator(innerState.value))
	if err != nil {
		return Value{}, err
	}
	return zipped.Single()
}

// scaleAtContributors broadcasts a coordinator-held scalar factor and
// multiplies each contributor's value by it, elementwise over every leaf.
func scaleAtContributors(ctx context.Context, value *Federated, factor Value, opts []Options) (*Federated, error) {
	bcast, err := Broadcast(AtCoordinator(factor))
	if err != nil {
		return nil, err
	}
	return MapEach2(ctx, value, bcast, func(v, k Value) (Value, error) {
		return Scale(v, k.Float64())
	}, opts...)
}

// composeWrapped assembles a wrapping layer's outputs: state pairs with the
// inner state, and measurements take this layer's named entry plus the inner
// layer's whole measurement value under its own key.
func composeWrapped(ownState Value, innerOut Output, result Value, innerKey string) (Value, Value, Value, error) {
	newState, err := Zip(AtCoordinator(ownState), AtCoordinator(innerOut.State.value))
	if err != nil {
		return Value{}, Value{}, Value{}, err
	}
	stateVal, err := newState.Single()
	if err != nil {
		return Value{}, Value{}, Value{}, err
	}
	meas, err := ZipNamed(
		ZipField{Name: scaledSumKey, Value: AtCoordinator(innerOut.Result)},
		ZipField{Name: innerKey, Value: AtCoordinator(innerOut.Measurements)},
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
