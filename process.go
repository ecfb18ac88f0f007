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
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/luke-who/TFF/internal/aggopts"
)

// State is the opaque round-to-round state of one process, placed at the
// coordinator. Its type is fixed for the life of the process; its concrete
// encoding is private to the factory layers that built the process.
//
// The caller owns the state thread exclusively: each Next call consumes the
// previous call's returned state, and two rounds must never execute
// concurrently against one process instance.
type State struct {
	typ   ValueType
	value Value
}

// Type returns the state's fixed ValueType.
func (s State) Type() ValueType {
	return s.typ
}

// Output is the coordinator-placed outcome of one aggregation round.
type Output struct {
	// State must be threaded into the following Next call.
	State State
	// Result is the aggregate value, of the type fixed at creation.
	Result Value
	// Measurements is a round-scoped observability value. It must never be
	// fed back as an input to a later round.
	Measurements Value
}

// processCore carries the identity and type contract shared by the weighted
// and unweighted process variants.
type processCore struct {
	id   string
	name string
	log  *slog.Logger

	valueType        ValueType
	stateType        ValueType
	resultType       ValueType
	measurementsType ValueType
}

func newProcessCore(valueType, stateType, resultType, measurementsType ValueType, opts []Options) processCore {
	var opt aggopts.Struct
	opt.Join(opts...)
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}
	return processCore{
		id:               uuid.NewString(),
		name:             opt.Name,
		log:              log,
		valueType:        valueType,
		stateType:        stateType,
		resultType:       resultType,
		measurementsType: measurementsType,
	}
}

// ID returns the unique instance ID of the process.
func (p *processCore) ID() string { return p.id }

// ValueType returns the type the process was created for.
func (p *processCore) ValueType() ValueType { return p.valueType }

// StateType returns the fixed type of the process state.
func (p *processCore) StateType() ValueType { return p.stateType }

// ResultType returns the fixed type of each round's result.
func (p *processCore) ResultType() ValueType { return p.resultType }

// MeasurementsType returns the fixed type of each round's measurements.
func (p *processCore) MeasurementsType() ValueType { return p.measurementsType }

func (p *processCore) logAttrs() []any {
	attrs := []any{slog.String("process", p.id)}
	if p.name != "" {
		attrs = append(attrs, slog.String("name", p.name))
	}
	return attrs
}

func (p *processCore) checkState(s State) error {
	if !s.typ.Equal(p.stateType) {
		return errors.Wrapf(ErrTypeContract,
			"state of type %v, process expects %v", s.typ, p.stateType)
	}
	return nil
}

// checkInput validates one contributor-placed round input against the type
// fixed at creation.
func (p *processCore) checkInput(fv *Federated, want ValueType, label string) error {
	if fv == nil {
		return errors.Wrapf(ErrTypeContract, "missing %s", label)
	}
	if fv.Placement() != Contributors {
		return errors.Wrapf(ErrPlacementViolation,
			"%s placed at %v, want %v", label, fv.Placement(), Contributors)
	}
	if fv.NumMembers() > 0 && !fv.MemberType().Equal(want) {
		return errors.Wrapf(ErrTypeContract,
			"%s of type %v, process expects %v", label, fv.MemberType(), want)
	}
	for i := 0; i < fv.NumMembers(); i++ {
		if err := fv.Member(i).Conforms(want); err != nil {
			return errors.Wrapf(err, "%s from contributor %d", label, i)
		}
	}
	return nil
}

// checkOutput holds a factory implementation to the output types it declared
// at creation time.
func (p *processCore) checkOutput(state, result, meas Value) error {
	if err := state.Conforms(p.stateType); err != nil {
		return errors.Wrap(err, "produced state")
	}
	if err := result.Conforms(p.resultType); err != nil {
		return errors.Wrap(err, "produced result")
	}
	if err := meas.Conforms(p.measurementsType); err != nil {
		return errors.Wrap(err, "produced measurements")
	}
	return nil
}

// Process aggregates one contributor-placed value per round. Instances are
// created by an [UnweightedFactory], bound to one ValueType.
type Process struct {
	processCore

	initFn func(context.Context) (Value, error)
	nextFn func(ctx context.Context, state Value, value *Federated) (newState, result, measurements Value, err error)
}

// Initialize returns the round-zero state. The type of the returned state is
// fixed for the life of the process. Re-initializing is permitted, and is
// the recovery path after a failed round.
func (p *Process) Initialize(ctx context.Context) (State, error) {
	v, err := p.initFn(ctx)
	if err != nil {
		return State{}, err
	}
	if err := v.Conforms(p.stateType); err != nil {
		return State{}, errors.Wrap(err, "initial state")
	}
	p.log.DebugContext(ctx, "aggregation process initialized", p.logAttrs()...)
	return State{typ: p.stateType, value: v}, nil
}

// Next executes one aggregation round: it consumes the previous round's
// state and the per-contributor values, and returns the new state, the
// aggregate result and this round's measurements.
//
// On error the state is unspecified; the caller must not reuse it and should
// re-Initialize if recovery is desired.
func (p *Process) Next(ctx context.Context, state State, value *Federated) (Output, error) {
	if err := p.checkState(state); err != nil {
		return Output{}, err
	}
	if err := p.checkInput(value, p.valueType, "value"); err != nil {
		return Output{}, err
	}
	newState, result, meas, err := p.nextFn(ctx, state.value, value)
	if err != nil {
		return Output{}, err
	}
	if err := p.checkOutput(newState, result, meas); err != nil {
		return Output{}, err
	}
	p.log.DebugContext(ctx, "aggregation round executed",
		append(p.logAttrs(), slog.Int("contributors", value.NumMembers()))...)
	return Output{
		State:        State{typ: p.stateType, value: newState},
		Result:       result,
		Measurements: meas,
	}, nil
}

// WeightedProcess aggregates a contributor-placed value and an accompanying
// per-contributor weight each round. Instances are created by a
// [WeightedFactory], bound to one value type and one weight type.
type WeightedProcess struct {
	processCore

	weightType ValueType

	initFn func(context.Context) (Value, error)
	nextFn func(ctx context.Context, state Value, value, weight *Federated) (newState, result, measurements Value, err error)
}

// WeightType returns the weight type fixed at creation.
func (p *WeightedProcess) WeightType() ValueType { return p.weightType }

// Initialize returns the round-zero state, as for [Process.Initialize].
func (p *WeightedProcess) Initialize(ctx context.Context) (State, error) {
	v, err := p.initFn(ctx)
	if err != nil {
		return State{}, err
	}
	if err := v.Conforms(p.stateType); err != nil {
		return State{}, errors.Wrap(err, "initial state")
	}
	p.log.DebugContext(ctx, "aggregation process initialized", p.logAttrs()...)
	return State{typ: p.stateType, value: v}, nil
}

// Next executes one weighted aggregation round. The weight must accompany
// every call, with one member per value member.
func (p *WeightedProcess) Next(ctx context.Context, state State, value, weight *Federated) (Output, error) {
	if err := p.checkState(state); err != nil {
		return Output{}, err
	}
	if err := p.checkInput(value, p.valueType, "value"); err != nil {
		return Output{}, err
	}
	if err := p.checkInput(weight, p.weightType, "weight"); err != nil {
		return Output{}, err
	}
	if value.NumMembers() != weight.NumMembers() {
		return Output{}, errors.Wrapf(ErrPlacementViolation,
			"%d values but %d weights", value.NumMembers(), weight.NumMembers())
	}
	newState, result, meas, err := p.nextFn(ctx, state.value, value, weight)
	if err != nil {
		return Output{}, err
	}
	if err := p.checkOutput(newState, result, meas); err != nil {
		return Output{}, err
	}
	p.log.DebugContext(ctx, "aggregation round executed",
		append(p.logAttrs(), slog.Int("contributors", value.NumMembers()))...)
	return Output{
		State:        State{typ: p.stateType, value: newState},
		Result:       result,
		Measurements: meas,
	}, nil
}
