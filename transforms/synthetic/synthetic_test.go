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

package synthetic_test

import (
	"context"
	"testing"

	agg "github.com/luke-who/TFF"
	"github.com/luke-who/TFF/transforms/synthetic"
)

func TestNextRoundShapes(t *testing.T) {
	src := synthetic.NewSource(synthetic.Config{
		Contributors: 10,
		Mean:         1,
		StdDev:       0.5,
		Seed:         42,
	})
	vt := agg.StructOf(
		agg.NamedField("w", agg.TensorOf(agg.Float32, 2, 3)),
		agg.NamedField("b", agg.ScalarOf(agg.Float32)),
	)
	values, weights, err := src.NextRound(vt)
	if err != nil {
		t.Fatalf("NextRound failed: %v", err)
	}
	if got, want := values.NumMembers(), 10; got != want {
		t.Errorf("cohort size = %v, want %v without drops", got, want)
	}
	if got, want := weights.NumMembers(), values.NumMembers(); got != want {
		t.Errorf("%d weights for %d values", got, want)
	}
	for i := 0; i < values.NumMembers(); i++ {
		if err := values.Member(i).Conforms(vt); err != nil {
			t.Errorf("member %d does not conform: %v", i, err)
		}
		if w := weights.Member(i).Float64(); w <= 0 {
			t.Errorf("weight %d = %v, want positive", i, w)
		}
	}
}

func TestSeededSourcesAgree(t *testing.T) {
	cfg := synthetic.Config{Contributors: 5, DropRatio: 0.3, Mean: 2, StdDev: 1, Seed: 7}
	vt := agg.ScalarOf(agg.Float64)

	a, _, err := synthetic.NewSource(cfg).NextRound(vt)
	if err != nil {
		t.Fatalf("NextRound failed: %v", err)
	}
	b, _, err := synthetic.NewSource(cfg).NextRound(vt)
	if err != nil {
		t.Fatalf("NextRound failed: %v", err)
	}
	if a.NumMembers() != b.NumMembers() {
		t.Fatalf("cohort sizes differ: %d vs %d", a.NumMembers(), b.NumMembers())
	}
	for i := 0; i < a.NumMembers(); i++ {
		if a.Member(i).Float64() != b.Member(i).Float64() {
			t.Errorf("member %d differs: %v vs %v", i, a.Member(i), b.Member(i))
		}
	}
}

// Generated cohorts must be directly consumable by an aggregation process.
func TestGeneratedCohortAggregates(t *testing.T) {
	ctx := context.Background()
	src := synthetic.NewSource(synthetic.Config{Contributors: 8, Mean: 1, StdDev: 0.1, Seed: 3})
	vt := agg.ScalarOf(agg.Float64)

	proc, err := agg.MeanFactory{}.Create(vt, agg.ScalarOf(agg.Float64))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	state, err := proc.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	values, weights, err := src.NextRound(vt)
	if err != nil {
		t.Fatalf("NextRound failed: %v", err)
	}
	out, err := proc.Next(ctx, state, values, weights)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	// Weights are positive and values hover near the mean, so the weighted
	// mean must land in the drawn range.
	var lo, hi float64
	for i := 0; i < values.NumMembers(); i++ {
		v := values.Member(i).Float64()
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	if got := out.Result.Float64(); got < lo || got > hi {
		t.Errorf("mean %v outside contributor range [%v, %v]", got, lo, hi)
	}
}
