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

package aggregators_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	agg "github.com/luke-who/TFF"
)

func contributors(t *testing.T, vals ...float64) *agg.Federated {
	t.Helper()
	members := make([]agg.Value, len(vals))
	for i, v := range vals {
		members[i] = agg.Scalar(agg.Float64, v)
	}
	fv, err := agg.AtContributors(members...)
	if err != nil {
		t.Fatalf("AtContributors failed: %v", err)
	}
	return fv
}

func measurement(t *testing.T, meas agg.Value, path ...string) agg.Value {
	t.Helper()
	v := meas
	for _, name := range path {
		child, ok := v.FieldNamed(name)
		if !ok {
			t.Fatalf("measurements %v have no entry %q (path %v)", meas, name, path)
		}
		v = child
	}
	return v
}

func TestSumProcess(t *testing.T) {
	ctx := context.Background()
	proc, err := agg.SumFactory{}.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	out, err := proc.Next(ctx, state, contributors(t, 1, 2, 5))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got, want := out.Result.Float64(), 8.0; got != want {
		t.Errorf("result = %v, want %v", got, want)
	}
	if got := out.Measurements.NumFields(); got != 0 {
		t.Errorf("sum measurements have %d entries, want none", got)
	}
}

// Omitting any one contributor must change the sum by exactly that
// contributor's value, and must not error.
func TestSumPartialParticipation(t *testing.T) {
	ctx := context.Background()
	vals := []float64{1, 2, 5}
	proc, err := agg.SumFactory{}.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	for drop := range vals {
		var remaining []float64
		for i, v := range vals {
			if i != drop {
				remaining = append(remaining, v)
			}
		}
		out, err := proc.Next(ctx, state, contributors(t, remaining...))
		if err != nil {
			t.Fatalf("Next with contributor %d dropped failed: %v", drop, err)
		}
		if got, want := out.Result.Float64(), 8.0-vals[drop]; got != want {
			t.Errorf("dropped contributor %d: result = %v, want %v", drop, got, want)
		}
		state = out.State
	}

	// Zero participants is a legal round: the sum of nothing.
	out, err := proc.Next(ctx, state, contributors(t))
	if err != nil {
		t.Fatalf("Next with empty cohort failed: %v", err)
	}
	if got := out.Result.Float64(); got != 0 {
		t.Errorf("empty cohort result = %v, want 0", got)
	}
}

// Scaling by a constant at the contributors and unscaling at the coordinator
// must round-trip: the result equals the plain sum.
func TestScalingRoundTrip(t *testing.T) {
	ctx := context.Background()
	proc, err := agg.ScalingFactory{Factor: 2}.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	out, err := proc.Next(ctx, state, contributors(t, 1, 2, 5))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got, want := out.Result.Float64(), 8.0; got != want {
		t.Errorf("result = %v, want %v", got, want)
	}
	if got, want := measurement(t, out.Measurements, "scaled_sum").Float64(), 16.0; got != want {
		t.Errorf("scaled_sum = %v, want %v", got, want)
	}
}

func TestRoundScalingCounter(t *testing.T) {
	ctx := context.Background()
	proc, err := agg.RoundScalingFactory{}.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	wantScaled := []float64{8, 16, 24}
	for round, want := range wantScaled {
		out, err := proc.Next(ctx, state, contributors(t, 1, 2, 5))
		if err != nil {
			t.Fatalf("round %d failed: %v", round+1, err)
		}
		if got := out.Result.Float64(); got != 8 {
			t.Errorf("round %d: result = %v, want 8", round+1, got)
		}
		if got := measurement(t, out.Measurements, "scaled_sum").Float64(); got != want {
			t.Errorf("round %d: scaled_sum = %v, want %v", round+1, got, want)
		}
		state = out.State
	}
}

// Two counter layers compound their intermediate scalings multiplicatively,
// while every layer exactly undoes its own scaling, so the outermost result
// stays the plain sum at any depth.
func TestComposedRoundScaling(t *testing.T) {
	ctx := context.Background()
	factory := agg.RoundScalingFactory{Inner: agg.RoundScalingFactory{}}
	proc, err := factory.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	// Round 1: both counters are 1, so the inner layer sums values scaled
	// by 1x1. Round 2: both counters are 2, compounding to 4.
	wantInnerScaled := []float64{8, 32}
	for round, want := range wantInnerScaled {
		out, err := proc.Next(ctx, state, contributors(t, 1, 2, 5))
		if err != nil {
			t.Fatalf("round %d failed: %v", round+1, err)
		}
		if got := out.Result.Float64(); got != 8 {
			t.Errorf("round %d: result = %v, want 8", round+1, got)
		}
		if got := measurement(t, out.Measurements, "inner", "scaled_sum").Float64(); got != want {
			t.Errorf("round %d: inner scaled_sum = %v, want %v", round+1, got, want)
		}
		state = out.State
	}
}

// Each wrapping layer contributes its own named entry and nests the inner
// layer's whole measurement value under one key, so deep compositions never
// flatten into colliding names.
func TestMeasurementNamespacing(t *testing.T) {
	ctx := context.Background()
	factory := agg.RoundScalingFactory{Inner: agg.RoundScalingFactory{InnerKey: "delegate"}}
	proc, err := factory.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	out, err := proc.Next(ctx, state, contributors(t, 1, 2, 5))
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	wantType := agg.StructOf(
		agg.NamedField("scaled_sum", agg.ScalarOf(agg.Float64)),
		agg.NamedField("inner", agg.StructOf(
			agg.NamedField("scaled_sum", agg.ScalarOf(agg.Float64)),
			agg.NamedField("delegate", agg.StructOf()),
		)),
	)
	if got := out.Measurements.Type(); !got.Equal(wantType) {
		t.Errorf("measurements type = %v, want %v", got, wantType)
	}
	// Both layers report under the same leaf name, at distinct paths.
	measurement(t, out.Measurements, "scaled_sum")
	measurement(t, out.Measurements, "inner", "scaled_sum")
}

func TestStructuredValues(t *testing.T) {
	ctx := context.Background()
	vt := agg.StructOf(
		agg.FieldOf(agg.TensorOf(agg.Float32, 2)),
		agg.FieldOf(agg.TensorOf(agg.Float32, 3)),
	)
	proc, err := agg.RoundScalingFactory{}.Create(vt)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	mkMember := func(a []float64, b []float64) agg.Value {
		t.Helper()
		wa, err := agg.Tensor(agg.Float32, a, 2)
		if err != nil {
			t.Fatalf("Tensor failed: %v", err)
		}
		wb, err := agg.Tensor(agg.Float32, b, 3)
		if err != nil {
			t.Fatalf("Tensor failed: %v", err)
		}
		return agg.Struct(agg.ValueField{Value: wa}, agg.ValueField{Value: wb})
	}
	value, err := agg.AtContributors(
		mkMember([]float64{1, 2}, []float64{3, 4, 5}),
		mkMember([]float64{1, 1}, []float64{3, 0, -5}),
	)
	if err != nil {
		t.Fatalf("AtContributors failed: %v", err)
	}

	out, err := proc.Next(ctx, state, value)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if d := cmp.Diff([]float64{2, 3}, out.Result.FieldAt(0).Elements()); d != "" {
		t.Errorf("first leaf (-want, +got):\n%v", d)
	}
	if d := cmp.Diff([]float64{6, 4, 0}, out.Result.FieldAt(1).Elements()); d != "" {
		t.Errorf("second leaf (-want, +got):\n%v", d)
	}
}

func TestTypeContractEnforcement(t *testing.T) {
	ctx := context.Background()
	sum, err := agg.SumFactory{}.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("zero state", func(t *testing.T) {
		if _, err := sum.Next(ctx, agg.State{}, contributors(t, 1)); !errors.Is(err, agg.ErrTypeContract) {
			t.Errorf("Next with zero state: got %v, want ErrTypeContract", err)
		}
	})

	t.Run("state from a differently typed process", func(t *testing.T) {
		other, err := agg.RoundScalingFactory{}.Create(agg.ScalarOf(agg.Float64))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		otherState, err := other.Initialize(ctx)
		if err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		if _, err := sum.Next(ctx, otherState, contributors(t, 1)); !errors.Is(err, agg.ErrTypeContract) {
			t.Errorf("Next with foreign state: got %v, want ErrTypeContract", err)
		}
	})

	t.Run("mistyped value", func(t *testing.T) {
		state, err := sum.Initialize(ctx)
		if err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		v, err := agg.Tensor(agg.Float64, []float64{1, 2}, 2)
		if err != nil {
			t.Fatalf("Tensor failed: %v", err)
		}
		fv, err := agg.AtContributors(v)
		if err != nil {
			t.Fatalf("AtContributors failed: %v", err)
		}
		if _, err := sum.Next(ctx, state, fv); !errors.Is(err, agg.ErrTypeContract) {
			t.Errorf("Next with mistyped value: got %v, want ErrTypeContract", err)
		}
	})

	t.Run("coordinator-placed value", func(t *testing.T) {
		state, err := sum.Initialize(ctx)
		if err != nil {
			t.Fatalf("Initialize failed: %v", err)
		}
		fv := agg.AtCoordinator(agg.Scalar(agg.Float64, 1))
		if _, err := sum.Next(ctx, state, fv); !errors.Is(err, agg.ErrPlacementViolation) {
			t.Errorf("Next with coordinator value: got %v, want ErrPlacementViolation", err)
		}
	})
}

func TestCompositionErrorsSurfaceAtCreate(t *testing.T) {
	t.Run("zero scale factor", func(t *testing.T) {
		if _, err := (agg.ScalingFactory{}).Create(agg.ScalarOf(agg.Float64)); !errors.Is(err, agg.ErrComposition) {
			t.Errorf("zero factor: got %v, want ErrComposition", err)
		}
	})
	t.Run("reserved measurement key", func(t *testing.T) {
		f := agg.RoundScalingFactory{InnerKey: "scaled_sum"}
		if _, err := f.Create(agg.ScalarOf(agg.Float64)); !errors.Is(err, agg.ErrComposition) {
			t.Errorf("colliding inner key: got %v, want ErrComposition", err)
		}
	})
	t.Run("inner rejection propagates", func(t *testing.T) {
		f := agg.RoundScalingFactory{Inner: agg.ScalingFactory{}} // zero factor inside
		if _, err := f.Create(agg.ScalarOf(agg.Float64)); !errors.Is(err, agg.ErrComposition) {
			t.Errorf("inner rejection: got %v, want ErrComposition", err)
		}
	})
}

// One factory instance serves multiple distinct value types, each producing
// an independently stateful process.
func TestFactoryReuseAcrossTypes(t *testing.T) {
	ctx := context.Background()
	factory := agg.RoundScalingFactory{}

	scalarProc, err := factory.Create(agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create scalar failed: %v", err)
	}
	vecType := agg.TensorOf(agg.Float64, 2)
	vecProc, err := factory.Create(vecType)
	if err != nil {
		t.Fatalf("Create vector failed: %v", err)
	}

	sState, err := scalarProc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	// Advance only the scalar process; the vector process must still start
	// at round one.
	for round := 0; round < 2; round++ {
		out, err := scalarProc.Next(ctx, sState, contributors(t, 1, 2, 5))
		if err != nil {
			t.Fatalf("scalar round failed: %v", err)
		}
		sState = out.State
	}

	vState, err := vecProc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	v1, _ := agg.Tensor(agg.Float64, []float64{1, 2}, 2)
	v2, _ := agg.Tensor(agg.Float64, []float64{3, 4}, 2)
	fv, err := agg.AtContributors(v1, v2)
	if err != nil {
		t.Fatalf("AtContributors failed: %v", err)
	}
	out, err := vecProc.Next(ctx, vState, fv)
	if err != nil {
		t.Fatalf("vector round failed: %v", err)
	}
	// Counter is 1 on the vector process's first round, so scaled_sum is the
	// plain sum.
	got, _ := out.Measurements.FieldNamed("scaled_sum")
	if d := cmp.Diff([]float64{4, 6}, got.Elements()); d != "" {
		t.Errorf("first vector round scaled_sum (-want, +got):\n%v", d)
	}
}
