// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package weaver

import (
	"github.com/callweave/callweave/pkg/binmod"
)

// Counter locates one counter field together with the helper type holding it
// and the module both are declared in.
type Counter struct {
	// Module declaring the helper type.
	Module *binmod.Module
	// Helper is the holder type.
	Helper binmod.TypeID
	// Field is the counter field itself.
	Field binmod.FieldID
}

// CallSite records one call instruction targeting a caller-side instrumented
// method, discovered during the site scan.
type CallSite struct {
	// Caller is the method whose body contains the call.
	Caller binmod.MethodID
	// Index of the call instruction within the caller's body at discovery
	// time.
	Index int
	// Callee is the canonical signature the call resolved to.
	Callee string
}

// Session bundles the mutable state of one weave run: the target image, the
// helper type index and the caller-side instrumentation context.  A session
// is created by the orchestrator, threaded through every component, and
// discarded after save.
type Session struct {
	// Config of this run.
	Config *Config
	// Image is the target module under instrumentation.
	Image *binmod.Image
	// Filter applied throughout this run.
	Filter *Filter
	// Helpers maps fully-qualified helper names to their types, so repeated
	// lookups return the same helper.
	Helpers map[string]binmod.TypeID
	// Counters maps canonical callee signatures to their pre-allocated
	// counters (the caller-side instrumentation context).
	Counters map[string]Counter
	// Sites maps canonical callee signatures to the call sites discovered
	// for them.
	Sites map[string][]CallSite
	// Result accumulates the run summary.
	Result Result
}

// Result summarises one weave run.
type Result struct {
	// Skipped indicates the module was already instrumented and left
	// untouched.
	Skipped bool
	// TypesVisited counts the eligible types walked.
	TypesVisited int
	// HelpersCreated counts the helper types synthesized.
	HelpersCreated int
	// MethodsInstrumented counts the method bodies given an entry prelude.
	MethodsInstrumented int
	// CallSitesSpliced counts the call sites given a prelude.
	CallSitesSpliced int
}

// NewSession constructs the session for one weave run over a loaded image.
func NewSession(config *Config, image *binmod.Image) *Session {
	return &Session{
		Config:   config,
		Image:    image,
		Filter:   NewFilter(config),
		Helpers:  make(map[string]binmod.TypeID),
		Counters: make(map[string]Counter),
		Sites:    make(map[string][]CallSite),
	}
}

// Module returns the target module of this session.
func (p *Session) Module() *binmod.Module {
	return p.Image.Module
}
