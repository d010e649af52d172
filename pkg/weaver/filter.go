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
	"strings"

	"github.com/callweave/callweave/pkg/binmod"
)

// CompilerGeneratedAttribute is the custom attribute the source compiler
// attaches to synthesized types and methods.
const CompilerGeneratedAttribute = "CompilerGenerated"

// Filter decides, per type and per method, whether an item is eligible for
// instrumentation.
type Filter struct {
	config *Config
}

// NewFilter constructs a filter for a given configuration.
func NewFilter(config *Config) *Filter {
	return &Filter{config}
}

// TypeEligible determines whether a type's methods may be instrumented at
// all, based on the namespace include/exclude lists and the
// compiler-generated heuristic.  Matching is by prefix against the fully
// qualified type name; nested types inherit their enclosing type's position
// in the namespace tree by construction of the full name.
func (p *Filter) TypeEligible(module *binmod.Module, id binmod.TypeID) bool {
	var (
		def = module.Type(id)
		fqn = module.FullName(id)
	)
	//
	if !p.config.InstrumentCompilerGenerated && generated(def.Name, def.Attributes) {
		return false
	}
	// Exclusion takes precedence over inclusion
	for _, ns := range p.config.Excludes {
		if matchesNamespace(fqn, ns) {
			return false
		}
	}
	// Empty include list means "all not excluded"
	if len(p.config.Includes) == 0 {
		return true
	}
	//
	for _, ns := range p.config.Includes {
		if matchesNamespace(fqn, ns) {
			return true
		}
	}
	//
	return false
}

// BodyEligible determines whether a method is instrumented at its entry:
// it must have a body, must not be abstract, and must not be
// compiler-generated.  Property accessors receive no special treatment.
func (p *Filter) BodyEligible(m *binmod.MethodDef) bool {
	if m.Body == nil || m.Flags&binmod.MethodAbstract != 0 {
		return false
	}
	//
	return p.config.InstrumentCompilerGenerated || !generated(m.Name, m.Attributes)
}

// CallerSideEligible determines whether a method is counted at its call
// sites instead: abstract methods and methods without a body (interface
// members, native imports).
func (p *Filter) CallerSideEligible(m *binmod.MethodDef) bool {
	if m.Flags&binmod.MethodAbstract == 0 && m.Body != nil {
		return false
	}
	//
	return p.config.InstrumentCompilerGenerated || !generated(m.Name, m.Attributes)
}

// generated applies the compiler-generated heuristic: a name containing the
// synthesized-member delimiters, or an explicit attribute.
func generated(name string, attributes []string) bool {
	if strings.ContainsAny(name, "<>") {
		return true
	}
	//
	for _, attr := range attributes {
		if attr == CompilerGeneratedAttribute {
			return true
		}
	}
	//
	return false
}

// matchesNamespace reports whether a fully qualified type name falls under a
// namespace prefix.  "Demo.Keep" matches "Demo.Keep.A" and "Demo.Keep" but
// not "Demo.Keeper".
func matchesNamespace(fqn, ns string) bool {
	if !strings.HasPrefix(fqn, ns) {
		return false
	}
	//
	rest := fqn[len(ns):]
	//
	return rest == "" || rest[0] == '.' || rest[0] == '/'
}
