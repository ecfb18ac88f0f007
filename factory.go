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

// Factories bind an abstract pipeline description to a concrete value type,
// producing a committed process. A factory holds configuration only, such as
// a reference to an inner factory; it is immutable after construction, and
// each Create call produces an independently stateful process. One factory
// instance may be used for any number of distinct value types.

// UnweightedFactory builds processes that take one contributor-placed value
// per round.
type UnweightedFactory interface {
	// Create returns a process aggregating values of the given type, or
	// fails with [ErrComposition] when the factory cannot handle the type.
	Create(valueType ValueType, opts ...Options) (*Process, error)
}

// WeightedFactory builds processes that additionally take a per-contributor
// weight each round, with the weight type fixed at creation.
type WeightedFactory interface {
	Create(valueType, weightType ValueType, opts ...Options) (*WeightedProcess, error)
}
