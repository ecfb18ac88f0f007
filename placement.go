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

	"github.com/pkg/errors"
)

// Placement classifies where a value logically resides. A value's placement
// never changes except through [Broadcast] or [Reduce].
type Placement int8

const (
	// Contributors places one value at each of zero or more contributors.
	// The cardinality is not known until a round executes.
	Contributors Placement = iota + 1
	// Coordinator places exactly one value at the coordinator.
	Coordinator
)

func (p Placement) String() string {
	switch p {
	case Contributors:
		return "contributors"
	case Coordinator:
		return "coordinator"
	default:
		return fmt.Sprintf("Placement(%d)", int8(p))
	}
}

// Federated is a placed value: the member values together with the placement
// tag all operators consult before acting.
//
// A Contributors placement holds one member per participating contributor.
// A value produced by [Broadcast] instead records a single member known to
// be identical at every contributor, so downstream operators never need the
// contributor cardinality ahead of a reduce.
type Federated struct {
	placement Placement
	typ       ValueType
	members   []Value
	identical bool
}

// AtContributors places one value at each participating contributor.
// All members must share one type; the empty set is a legal round input
// under partial participation.
func AtContributors(members ...Value) (*Federated, error) {
	fv := &Federated{placement: Contributors, members: members}
	if len(members) == 0 {
		return fv, nil
	}
	fv.typ = members[0].Type()
	for i, m := range members {
		if err := m.Conforms(fv.typ); err != nil {
			return nil, errors.Wrapf(err, "contributor %d", i)
		}
	}
	return fv, nil
}

// AtCoordinator places a single value at the coordinator.
func AtCoordinator(v Value) *Federated {
	return &Federated{placement: Coordinator, typ: v.Type(), members: []Value{v}}
}

// Placement returns where the value resides.
func (fv *Federated) Placement() Placement {
	return fv.placement
}

// MemberType returns the common type of the members. Meaningless when an
// empty contributor set carries no members.
func (fv *Federated) MemberType() ValueType {
	return fv.typ
}

// NumMembers returns the member count. A broadcast value reports 1
// regardless of how many contributors will observe it.
func (fv *Federated) NumMembers() int {
	return len(fv.members)
}

// Member returns the i'th member value.
func (fv *Federated) Member(i int) Value {
	return fv.members[i]
}

// Single returns the coordinator's one value. It fails with
// [ErrPlacementViolation] on contributor-placed values.
func (fv *Federated) Single() (Value, error) {
	if fv.placement != Coordinator {
		return Value{}, errors.Wrapf(ErrPlacementViolation,
			"Single requires a coordinator value, got placement %v", fv.placement)
	}
	return fv.members[0], nil
}
