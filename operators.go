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
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/luke-who/TFF/internal/aggopts"
)

// operators.go holds the four primitive transformations every aggregation
// stage is built from: per-member map, coordinator-to-contributor broadcast,
// contributor-to-coordinator reduce, and coordinator-side zip.

// MapEach applies fn independently to the value at each location of the
// input's placement. Placement never changes; no member observes another
// member's data. Contributor-side applications run concurrently, bounded by
// the [Parallelism] option.
func MapEach(ctx context.Context, fv *Federated, fn func(Value) (Value, error), opts ...Options) (*Federated, error) {
	if fv == nil {
		return nil, errors.Wrap(ErrPlacementViolation, "MapEach on a missing value")
	}
	out := &Federated{placement: fv.placement, identical: fv.identical}
	out.members = make([]Value, len(fv.members))

	if fv.placement == Contributors && len(fv.members) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallelism(opts))
		for i, m := range fv.members {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				v, err := fn(m)
				if err != nil {
					return errors.Wrapf(err, "contributor %d", i)
				}
				out.members[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, m := range fv.members {
			v, err := fn(m)
			if err != nil {
				return nil, err
			}
			out.members[i] = v
		}
	}

	if len(out.members) == 0 {
		return out, nil
	}
	out.typ = out.members[0].Type()
	for i, m := range out.members {
		if err := m.Conforms(out.typ); err != nil {
			return nil, errors.Wrapf(err, "map output for member %d", i)
		}
	}
	return out, nil
}

// MapEach2 applies fn pairwise to two placed values of the same placement.
// A broadcast value zips against any contributor cardinality; otherwise the
// member counts must agree.
func MapEach2(ctx context.Context, a, b *Federated, fn func(x, y Value) (Value, error), opts ...Options) (*Federated, error) {
	if a == nil || b == nil {
		return nil, errors.Wrap(ErrPlacementViolation, "MapEach2 on a missing value")
	}
	if a.placement != b.placement {
		return nil, errors.Wrapf(ErrPlacementViolation,
			"MapEach2 inputs placed at %v and %v", a.placement, b.placement)
	}
	pick := func(fv *Federated, i int) Value {
		if fv.identical {
			return fv.members[0]
		}
		return fv.members[i]
	}
	n := len(a.members)
	if a.identical {
		n = len(b.members)
	}
	if !a.identical && !b.identical && len(a.members) != len(b.members) {
		return nil, errors.Wrapf(ErrPlacementViolation,
			"MapEach2 inputs have %d and %d members", len(a.members), len(b.members))
	}

	paired := &Federated{placement: a.placement, identical: a.identical && b.identical, members: make([]Value, n)}
	for i := range paired.members {
		paired.members[i] = Struct(
			ValueField{Value: pick(a, i)},
			ValueField{Value: pick(b, i)},
		)
	}
	return MapEach(ctx, paired, func(pair Value) (Value, error) {
		return fn(pair.FieldAt(0), pair.FieldAt(1))
	}, opts...)
}

// Broadcast moves a coordinator value to the contributors: every contributor
// receives an identical copy. Delivery is logically instantaneous and
// lossless within a round; the surrounding transport owns anything weaker.
func Broadcast(fv *Federated) (*Federated, error) {
	if fv == nil || fv.placement != Coordinator {
		return nil, errors.Wrap(ErrPlacementViolation, "Broadcast requires a coordinator value")
	}
	return &Federated{
		placement: Contributors,
		typ:       fv.typ,
		members:   []Value{fv.members[0]},
		identical: true,
	}, nil
}

// Reduce combines the contributor-placed members into one coordinator value,
// folding combine over the members starting from zero. combine must be
// commutative and associative so the result does not depend on contributor
// arrival order; dropped contributors simply do not contribute a term, and
// an empty contributor set reduces to zero.
//
// The fold order across contributors is unspecified, so floating point
// results are not guaranteed bit-identical across execution strategies.
func Reduce(ctx context.Context, fv *Federated, zero Value, combine func(a, b Value) (Value, error)) (*Federated, error) {
	if fv == nil || fv.placement != Contributors {
		return nil, errors.Wrap(ErrPlacementViolation, "Reduce requires contributor-placed values")
	}
	if fv.identical {
		return nil, errors.Wrap(ErrPlacementViolation,
			"Reduce on a broadcast value, whose contributor cardinality is unknown")
	}
	acc := zero
	for i, m := range fv.members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.Conforms(zero.Type()); err != nil {
			return nil, errors.Wrapf(err, "contributor %d", i)
		}
		next, err := combine(acc, m)
		if err != nil {
			return nil, errors.Wrapf(err, "combining contributor %d", i)
		}
		acc = next
	}
	return AtCoordinator(acc), nil
}

// ZipField names one input of a named zip.
type ZipField struct {
	Name  string
	Value *Federated
}

// ZipNamed merges several coordinator values into a single structured
// coordinator value with named fields. It is a pure relabeling with no
// communication; measurement composition uses it so each layer's entries
// stay retrievable by a distinct path.
func ZipNamed(fields ...ZipField) (*Federated, error) {
	vfs := make([]ValueField, len(fields))
	for i, f := range fields {
		if f.Value == nil || f.Value.placement != Coordinator {
			return nil, errors.Wrapf(ErrPlacementViolation, "Zip input %d is not a coordinator value", i)
		}
		vfs[i] = ValueField{Name: f.Name, Value: f.Value.members[0]}
	}
	return AtCoordinator(Struct(vfs...)), nil
}

// Zip merges several coordinator values positionally. State composition uses
// it so a process's external state stays a single coordinator value rather
// than a nested tuple of placed values.
func Zip(vs ...*Federated) (*Federated, error) {
	fields := make([]ZipField, len(vs))
	for i, v := range vs {
		fields[i] = ZipField{Value: v}
	}
	return ZipNamed(fields...)
}

func parallelism(opts []Options) int {
	var opt aggopts.Struct
	opt.Join(opts...)
	if opt.Parallelism > 0 {
		return opt.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}
