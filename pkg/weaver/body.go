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
	"fmt"

	"github.com/callweave/callweave/pkg/binmod"
	log "github.com/sirupsen/logrus"
)

// PreludeLength is the number of instructions in the counter-increment
// sequence.
const PreludeLength = 4

// Prelude builds the four-instruction counter-increment sequence against a
// given field handle: load the counter, load 1, add, store the counter back.
// Both field instructions reference the same handle.
func Prelude(counter binmod.MemberHandle) []binmod.Instruction {
	return []binmod.Instruction{
		binmod.FieldInstr(binmod.LDSFLD, counter),
		binmod.IntInstr(binmod.LDC_I4, 1),
		binmod.Instr(binmod.ADD),
		binmod.FieldInstr(binmod.STSFLD, counter),
	}
}

// InstrumentBody splices the counter-increment prelude at the entry of a
// given method, then re-compacts the instruction stream.  The prelude
// becomes the first executable code of the method; any prologue synthesized
// by the source compiler stays in place behind it.  Constructors receive no
// special treatment.
func InstrumentBody(session *Session, method binmod.MethodID) error {
	var (
		module = session.Module()
		m      = module.Method(method)
	)
	// Degenerate case: a method with a body always ends in at least a
	// return, so an empty stream signals a malformed input.
	if m.Body.Len() == 0 {
		return fmt.Errorf("%s: empty body, skipping", module.MethodKey(method))
	}
	//
	counter := GetOrCreateCounter(session, module, method)
	//
	splicePrelude(session, method, 0, counter)
	m.Body.Compact()
	//
	session.Result.MethodsInstrumented++
	//
	return nil
}

// splicePrelude inserts the increment sequence for a counter before the
// instruction at a given index of a method's body, importing the counter
// field into the method's module when it is declared elsewhere.  Sequence
// points of the spliced method are shifted alongside their instructions.
// The caller remains responsible for re-compacting the body.
func splicePrelude(session *Session, method binmod.MethodID, at int, counter Counter) {
	var (
		module = session.Module()
		m      = module.Method(method)
		handle binmod.MemberHandle
	)
	// Counter fields declared in another module must be referenced through
	// the caller module's reference table.
	if counter.Module == module {
		handle = binmod.DefFieldHandle(counter.Field)
	} else {
		handle = module.ImportField(counter.Module, counter.Field)
	}
	//
	m.Body.Insert(at, Prelude(handle)...)
	//
	if session.Image.Symbols != nil {
		session.Image.Symbols.Shift(module.MethodKey(method), at, PreludeLength)
	}
	//
	log.Debugf("spliced counter %s into %s at %d",
		counter.Module.Field(counter.Field).Name, module.MethodKey(method), at)
}
