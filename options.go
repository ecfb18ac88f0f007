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
	"log/slog"

	"github.com/luke-who/TFF/internal/aggopts"
)

// Options configure factory Create calls and the core operators. Each
// function takes a variadic list of options, where properties set in later
// options override the value of previously set properties.
type Options = aggopts.Options

// Name sets the name of the process in question, typically to make its log
// output easier to attribute.
func Name(name string) Options {
	return &aggopts.Struct{
		Name: name,
	}
}

// Parallelism bounds concurrent contributor-side work in [MapEach]. The
// default is the runtime's processor count.
func Parallelism(n int) Options {
	return &aggopts.Struct{
		Parallelism: n,
	}
}

// Logger directs a process's round execution logging. The default is
// [slog.Default].
func Logger(l *slog.Logger) Options {
	return &aggopts.Struct{
		Logger: l,
	}
}
