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
package interp

import (
	"fmt"
	"strings"

	"github.com/callweave/callweave/pkg/binmod"
)

// DefaultStepLimit bounds the number of instructions one invocation may
// execute before being aborted.
const DefaultStepLimit = 1 << 20

// Machine executes method bodies of a loaded module.  Static field slots are
// read from and written back to the metadata graph itself, so a module saved
// after execution is a stopped-machine image whose counter values the
// collector can read.  Execution is single-threaded and increments are not
// atomic, matching the weaver's documented counter semantics.
type Machine struct {
	image *binmod.Image
	// StepLimit bounds instructions per invocation (DefaultStepLimit when 0).
	StepLimit int
	steps     int
}

// New constructs a machine over a loaded image.
func New(image *binmod.Image) *Machine {
	return &Machine{image: image}
}

// FindMethod locates a method by "Namespace.Type::Method" name within the
// machine's module, returning false when absent.  When overloads exist the
// first in declaration order wins.
func (p *Machine) FindMethod(name string) (binmod.MethodID, bool) {
	var module = p.image.Module
	//
	for mid := range module.Methods {
		key := module.MethodKey(binmod.MethodID(mid))
		//
		if key == name || strings.HasPrefix(key, name+"(") {
			return binmod.MethodID(mid), true
		}
	}
	//
	return 0, false
}

// Invoke executes a method with the given arguments, returning its result
// (zero for void methods).
func (p *Machine) Invoke(method binmod.MethodID, args []uint64) (uint64, error) {
	p.steps = 0
	//
	return p.call(p.image.Module, method, args)
}

// call runs one method body to completion.
func (p *Machine) call(module *binmod.Module, method binmod.MethodID, args []uint64) (uint64, error) {
	var (
		m     = module.Method(method)
		stack []uint64
	)
	// Bodyless methods execute as native no-ops
	if m.Body == nil {
		return 0, nil
	}
	//
	locals := make([]uint64, len(m.Body.Locals))
	instrs := m.Body.Instructions
	//
	pop := func() uint64 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		//
		return v
	}
	//
	for pc := 0; pc < len(instrs); pc++ {
		limit := p.StepLimit
		//
		if limit == 0 {
			limit = DefaultStepLimit
		}
		//
		if p.steps++; p.steps > limit {
			return 0, fmt.Errorf("%s: step limit exceeded", module.MethodKey(method))
		}
		//
		instr := &instrs[pc]
		//
		switch instr.Opcode {
		case binmod.NOP:
			// skip
		case binmod.RET:
			if m.Return != binmod.Void {
				return pop(), nil
			}
			//
			return 0, nil
		case binmod.LDC_I4, binmod.LDC_I4_S:
			stack = append(stack, uint64(instr.Operand.Int))
		case binmod.ADD:
			rhs := pop()
			stack[len(stack)-1] += rhs
		case binmod.SUB:
			rhs := pop()
			stack[len(stack)-1] -= rhs
		case binmod.MUL:
			rhs := pop()
			stack[len(stack)-1] *= rhs
		case binmod.DUP:
			stack = append(stack, stack[len(stack)-1])
		case binmod.POP:
			pop()
		case binmod.LDLOC:
			stack = append(stack, locals[instr.Operand.Int])
		case binmod.STLOC:
			locals[instr.Operand.Int] = pop()
		case binmod.LDARG:
			stack = append(stack, args[instr.Operand.Int])
		case binmod.LDSFLD:
			value, err := p.loadStatic(module, instr.Operand.Member)
			//
			if err != nil {
				return 0, err
			}
			//
			stack = append(stack, value)
		case binmod.STSFLD:
			if err := p.storeStatic(module, instr.Operand.Member, pop()); err != nil {
				return 0, err
			}
		case binmod.CALL, binmod.CALLVIRT:
			result, err := p.dispatch(module, instr.Operand.Member, &stack)
			//
			if err != nil {
				return 0, err
			}
			//
			if result != nil {
				stack = append(stack, *result)
			}
		case binmod.BR, binmod.BR_S:
			pc = int(instr.Operand.Int) - 1
		case binmod.BRTRUE, binmod.BRTRUE_S:
			if pop() != 0 {
				pc = int(instr.Operand.Int) - 1
			}
		case binmod.BRFALSE, binmod.BRFALSE_S:
			if pop() == 0 {
				pc = int(instr.Operand.Int) - 1
			}
		case binmod.CEQ:
			rhs, lhs := pop(), pop()
			stack = append(stack, boolBit(lhs == rhs))
		case binmod.CLT:
			rhs, lhs := pop(), pop()
			stack = append(stack, boolBit(lhs < rhs))
		default:
			return 0, fmt.Errorf("%s: unsupported opcode %s", module.MethodKey(method), instr.Opcode)
		}
	}
	//
	return 0, fmt.Errorf("%s: control fell off the end of the body", module.MethodKey(method))
}

// dispatch invokes a call instruction's target, popping arguments from the
// caller's stack.  The returned pointer is nil for void callees.
func (p *Machine) dispatch(module *binmod.Module, h binmod.MemberHandle, stack *[]uint64) (*uint64, error) {
	target, targetModule, err := p.resolveMethod(module, h)
	//
	if err != nil {
		return nil, err
	}
	//
	m := targetModule.Method(target)
	args := make([]uint64, len(m.Params))
	// Arguments were pushed left to right
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]
	}
	//
	result, err := p.call(targetModule, target, args)
	//
	if err != nil {
		return nil, err
	}
	//
	if m.Return == binmod.Void {
		return nil, nil
	}
	//
	return &result, nil
}

// resolveMethod maps a method handle to a definition, following external
// references through the resolver.
func (p *Machine) resolveMethod(module *binmod.Module, h binmod.MemberHandle) (binmod.MethodID, *binmod.Module, error) {
	if !h.External {
		return binmod.MethodID(h.Index), module, nil
	}
	//
	ref := &module.MethodRefs[h.Index]
	//
	dep, err := p.resolve(ref.Module)
	//
	if err != nil {
		return 0, nil, err
	}
	//
	t, ok := lookupByFullName(dep, ref.DeclaringType)
	//
	if !ok {
		return 0, nil, fmt.Errorf("unresolvable type %s in %s", ref.DeclaringType, ref.Module)
	}
	//
	mid, ok := dep.LookupMethod(t, ref.Name, ref.Params)
	//
	if !ok {
		return 0, nil, fmt.Errorf("unresolvable method %s", ref.RefKey())
	}
	//
	return mid, dep, nil
}

// loadStatic reads a static field slot through a handle.
func (p *Machine) loadStatic(module *binmod.Module, h binmod.MemberHandle) (uint64, error) {
	field, fieldModule, err := p.resolveField(module, h)
	//
	if err != nil {
		return 0, err
	}
	//
	return fieldModule.Field(field).Value, nil
}

// storeStatic writes a static field slot through a handle, truncating the
// value to the field's width.
func (p *Machine) storeStatic(module *binmod.Module, h binmod.MemberHandle, value uint64) error {
	field, fieldModule, err := p.resolveField(module, h)
	//
	if err != nil {
		return err
	}
	//
	def := fieldModule.Field(field)
	//
	switch def.Type {
	case binmod.U32, binmod.I32:
		def.Value = value & 0xffffffff
	default:
		def.Value = value
	}
	//
	return nil
}

// resolveField maps a field handle to a definition, following external
// references through the resolver.
func (p *Machine) resolveField(module *binmod.Module, h binmod.MemberHandle) (binmod.FieldID, *binmod.Module, error) {
	if !h.External {
		return binmod.FieldID(h.Index), module, nil
	}
	//
	ref := &module.FieldRefs[h.Index]
	//
	dep, err := p.resolve(ref.Module)
	//
	if err != nil {
		return 0, nil, err
	}
	//
	t, ok := lookupByFullName(dep, ref.DeclaringType)
	//
	if !ok {
		return 0, nil, fmt.Errorf("unresolvable type %s in %s", ref.DeclaringType, ref.Module)
	}
	//
	fid, ok := dep.LookupField(t, ref.Name)
	//
	if !ok {
		return 0, nil, fmt.Errorf("unresolvable field %s::%s", ref.DeclaringType, ref.Name)
	}
	//
	return fid, dep, nil
}

// resolve loads a referenced module, or the machine's own module when the
// name matches.
func (p *Machine) resolve(name string) (*binmod.Module, error) {
	if name == p.image.Module.Name {
		return p.image.Module, nil
	}
	//
	if p.image.Resolver == nil {
		return nil, fmt.Errorf("no resolver for module %q", name)
	}
	//
	dep, err := p.image.Resolver.Resolve(name)
	//
	if err != nil {
		return nil, err
	}
	//
	return dep.Module, nil
}

// lookupByFullName finds any type (top-level or nested) by its fully
// qualified name.
func lookupByFullName(module *binmod.Module, fqn string) (binmod.TypeID, bool) {
	for id := range module.Types {
		if module.FullName(binmod.TypeID(id)) == fqn {
			return binmod.TypeID(id), true
		}
	}
	//
	return binmod.NoType, false
}

// boolBit maps a condition onto the VM's integer truth values.
func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	//
	return 0
}
