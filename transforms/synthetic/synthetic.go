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

// Package synthetic generates contributor cohorts with prespecified
// parameters, for exercising aggregation processes without a real
// contributor population.
package synthetic

import (
	"math/rand/v2"

	"github.com/pkg/errors"

	agg "github.com/luke-who/TFF"
)

// Config controls cohort generation.
type Config struct {
	// Contributors is the nominal cohort size per round.
	Contributors int
	// DropRatio is the probability each contributor sits a round out,
	// simulating partial participation.
	DropRatio float64
	// Mean and StdDev parameterize the normal distribution every leaf
	// element is drawn from.
	Mean, StdDev float64
	// Seed fixes the generated sequence. Zero seeds from entropy.
	Seed uint64
}

// Source produces per-round contributor cohorts. Successive calls model
// successive rounds of the same shifting population.
type Source struct {
	cfg Config
	rng *rand.Rand
}

// NewSource returns a cohort source for the given configuration.
func NewSource(cfg Config) *Source {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Source{cfg: cfg, rng: rand.New(rand.NewPCG(seed, seed))}
}

// NextRound generates one round's contributor values of the given type,
// along with a matching scalar weight per participating contributor.
// The cohort size varies round to round under DropRatio and may be zero.
func (s *Source) NextRound(t agg.ValueType) (values, weights *agg.Federated, err error) {
	var vals, wts []agg.Value
	for i := 0; i < s.cfg.Contributors; i++ {
		if s.cfg.DropRatio > 0 && s.rng.Float64() < s.cfg.DropRatio {
			continue
		}
		v, err := s.randomValue(t)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "contributor %d", i)
		}
		vals = append(vals, v)
		// Weights model dataset sizes: positive, spread around 1.
		wts = append(wts, agg.Scalar(agg.Float64, 1+s.rng.Float64()))
	}
	values, err = agg.AtContributors(vals...)
	if err != nil {
		return nil, nil, err
	}
	weights, err = agg.AtContributors(wts...)
	if err != nil {
		return nil, nil, err
	}
	return values, weights, nil
}

// randomValue fills every leaf of t with normal draws.
func (s *Source) randomValue(t agg.ValueType) (agg.Value, error) {
	return agg.MapStructure(func(leaf agg.Value) (agg.Value, error) {
		lt := leaf.Type()
		data := make([]float64, len(leaf.Elements()))
		for i := range data {
			data[i] = s.cfg.Mean + s.cfg.StdDev*s.rng.NormFloat64()
		}
		return agg.Tensor(lt.Kind(), data, lt.Shape()...)
	}, agg.ZeroOf(t))
}
