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

import "github.com/pkg/errors"

// Errors fall into two classes. Composition-time errors surface from a
// factory's Create call and are never deferred to round execution.
// Round-execution errors surface synchronously from Initialize or Next;
// after one, the process state is unspecified and the caller must
// re-Initialize before continuing.
var (
	// ErrComposition reports that a factory could not be instantiated for
	// the type it was handed, or that a wrapping layer's measurement keys
	// would collide with its inner layer's.
	ErrComposition = errors.New("composition type error")

	// ErrTypeContract reports a round input whose type does not match the
	// contract fixed when the process was created: drifted state, or a
	// value or weight of the wrong type.
	ErrTypeContract = errors.New("type contract violation")

	// ErrPlacementViolation reports a value supplied at the wrong placement,
	// such as a coordinator value where per-contributor values are required.
	ErrPlacementViolation = errors.New("placement violation")

	// ErrShapeMismatch reports a concrete value that does not conform to
	// its declared ValueType.
	ErrShapeMismatch = errors.New("shape mismatch")
)
