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
package binmod

import (
	"fmt"
	"io"
)

// Dump writes a human-readable listing of a module's metadata graph and
// instruction streams.
func Dump(w io.Writer, module *Module) {
	fmt.Fprintf(w, "module %s\n", module.Name)
	//
	for _, req := range module.Requires {
		fmt.Fprintf(w, "requires %s\n", req)
	}
	//
	for _, id := range module.TopLevel {
		dumpType(w, module, id, "")
	}
}

func dumpType(w io.Writer, module *Module, id TypeID, indent string) {
	var def = module.Type(id)
	//
	fmt.Fprintf(w, "%stype %s%s\n", indent, module.FullName(id), typeQualifiers(def))
	//
	for _, fid := range def.Fields {
		f := module.Field(fid)
		qualifier := ""
		//
		if f.Static {
			qualifier = "static "
		}
		//
		fmt.Fprintf(w, "%s  field %s%s %s = %d\n", indent, qualifier, f.Type, f.Name, f.Value)
	}
	//
	for _, mid := range def.Methods {
		dumpMethod(w, module, mid, indent+"  ")
	}
	//
	for _, nested := range def.Nested {
		dumpType(w, module, nested, indent+"  ")
	}
}

func dumpMethod(w io.Writer, module *Module, id MethodID, indent string) {
	var m = module.Method(id)
	//
	fmt.Fprintf(w, "%smethod %s %s%s", indent, m.Return, m.Name, SignatureOf(m.Params))
	//
	if m.Body == nil {
		fmt.Fprintf(w, " (no body)\n")
		return
	}
	//
	fmt.Fprintln(w)
	//
	for i := range m.Body.Instructions {
		instr := &m.Body.Instructions[i]
		fmt.Fprintf(w, "%s  %04x: %s%s\n", indent, instr.Offset, instr.Opcode, operandString(module, instr))
	}
	//
	for _, h := range m.Body.Handlers {
		fmt.Fprintf(w, "%s  handler [%d,%d) -> [%d,%d)\n", indent, h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd)
	}
}

func operandString(module *Module, instr *Instruction) string {
	switch instr.Operand.Kind {
	case OperandNone:
		return ""
	case OperandInt, OperandVar:
		return fmt.Sprintf(" %d", instr.Operand.Int)
	case OperandBranch:
		return fmt.Sprintf(" @%d", instr.Operand.Int)
	case OperandField:
		return " " + module.FieldKeyOf(instr.Operand.Member)
	case OperandMethod:
		return " " + module.MethodKeyOf(instr.Operand.Member)
	}
	//
	return " ???"
}

func typeQualifiers(def *TypeDef) string {
	var s string
	//
	if def.Flags&TypeInterface != 0 {
		s += " interface"
	}
	//
	if def.Flags&TypeAbstract != 0 {
		s += " abstract"
	}
	//
	if def.Flags&TypeSealed != 0 {
		s += " sealed"
	}
	//
	return s
}
