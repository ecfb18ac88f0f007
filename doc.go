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

// Package aggregators provides composable, stateful aggregation of values
// held by a dynamic set of contributors into a single value held by a
// coordinator, executed over discrete rounds.
//
// The unit of execution is a [Process] (or [WeightedProcess]): a two-method
// state machine created by a factory for one concrete [ValueType]. Calling
// code invokes Initialize once to obtain round-zero state, then repeatedly
// invokes Next, threading each returned state into the following call. The
// state is opaque to the caller, placed at the coordinator, and its type
// never changes for the life of the process.
//
// Factories are small single-purpose building blocks. A leaf factory such as
// [SumFactory] performs the actual cross-contributor reduction. A wrapping
// factory such as [ScalingFactory] or [RoundScalingFactory] holds an inner
// factory and delegates the reduction to it, composing state by pairing and
// measurements by disjoint-named union so that arbitrarily deep compositions
// stay well-typed and every reported metric stays traceable to the layer
// that produced it.
//
// Values flowing through a process are placed: either held independently by
// each contributor, or held once by the coordinator. The four core operators
// ([MapEach], [Broadcast], [Reduce] and [Zip]) are the only ways placement
// changes, and Reduce is the only operator that combines across the
// contributor set. Its combining function must be commutative and
// associative; the fold order over contributors is unspecified, so bit-exact
// floating point reproducibility across execution strategies is explicitly
// not guaranteed.
//
// The library does not schedule contributors, move bytes over a network, or
// retry failed rounds. Those belong to the surrounding orchestration, which
// supplies per-round contributor values and persists state between rounds.
package aggregators
