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
	"math"
)

// HandlerKind enumerates the kinds of exception handler region.
type HandlerKind uint8

const (
	// HandlerCatch runs the handler when an exception escapes the try region.
	HandlerCatch HandlerKind = iota
	// HandlerFinally runs the handler on every exit from the try region.
	HandlerFinally
)

// Handler is an exception handler region within a body.  Region boundaries
// are instruction indices; end boundaries are exclusive.
type Handler struct {
	// Kind of this handler.
	Kind HandlerKind
	// TryStart is the index of the first protected instruction.
	TryStart uint32
	// TryEnd is the index one past the last protected instruction.
	TryEnd uint32
	// HandlerStart is the index of the first handler instruction.
	HandlerStart uint32
	// HandlerEnd is the index one past the last handler instruction.
	HandlerEnd uint32
}

// Body is the implementation of one method: an ordered instruction stream, a
// local variable table and an exception handler table.
type Body struct {
	// Instructions in execution order.
	Instructions []Instruction
	// Locals declares the local variable types.
	Locals []ValueType
	// Handlers is the exception handler table.
	Handlers []Handler
}

// Len returns the number of instructions in the body.
func (p *Body) Len() int {
	return len(p.Instructions)
}

// Insert splices the given instructions into the body immediately before the
// instruction at a given index.  Branch targets and handler boundaries
// strictly beyond the insertion point are shifted to keep referring to the
// same instruction; targets and boundaries exactly at the insertion point
// are left alone, so they resolve to the first spliced instruction.  In
// particular, a branch to the old anchor instruction lands on the splice, and
// a protected region beginning at the anchor grows to cover it.
func (p *Body) Insert(at int, instrs ...Instruction) {
	var n = int64(len(instrs))
	//
	if n == 0 {
		return
	}
	// Splice instruction stream
	tail := make([]Instruction, 0, len(p.Instructions)+len(instrs))
	tail = append(tail, p.Instructions[:at]...)
	tail = append(tail, instrs...)
	tail = append(tail, p.Instructions[at:]...)
	p.Instructions = tail
	// Retarget branches
	for i := range p.Instructions {
		instr := &p.Instructions[i]
		//
		if instr.Operand.Kind == OperandBranch && instr.Operand.Int > int64(at) {
			instr.Operand.Int += n
		}
	}
	// Adjust handler regions
	for i := range p.Handlers {
		h := &p.Handlers[i]
		//
		if h.TryStart > uint32(at) {
			h.TryStart += uint32(n)
		}
		//
		if h.TryEnd > uint32(at) {
			h.TryEnd += uint32(n)
		}
		//
		if h.HandlerStart > uint32(at) {
			h.HandlerStart += uint32(n)
		}
		//
		if h.HandlerEnd > uint32(at) {
			h.HandlerEnd += uint32(n)
		}
	}
}

// Compact normalises the instruction stream: every instruction with both a
// short and a long encoding is given the shortest legal form, and byte
// offsets are recomputed.  Constant loads pick their form from the operand
// value alone; branch forms depend on the encoded displacement, which itself
// depends on the chosen forms, so selection iterates to a fixed point.
// Widening never enables further shortening, hence termination.
func (p *Body) Compact() {
	// Normalise constant loads up front
	for i := range p.Instructions {
		instr := &p.Instructions[i]
		//
		if instr.Opcode.OperandKind() == OperandInt {
			instr.Opcode = instr.Opcode.LongForm()
			//
			if fitsInt8(instr.Operand.Int) {
				instr.Opcode = instr.Opcode.ShortForm()
			}
		}
	}
	// Optimistically shorten all branches
	for i := range p.Instructions {
		instr := &p.Instructions[i]
		//
		if instr.Opcode.IsBranch() {
			instr.Opcode = instr.Opcode.ShortForm()
		}
	}
	// Iterate branch form selection to a fixed point
	for changed := true; changed; {
		changed = false
		//
		p.assignOffsets()
		//
		for i := range p.Instructions {
			instr := &p.Instructions[i]
			//
			if !instr.Opcode.IsBranch() || instr.Opcode == instr.Opcode.LongForm() {
				continue
			}
			//
			if !fitsInt8(p.displacement(i)) {
				instr.Opcode = instr.Opcode.LongForm()
				changed = true
			}
		}
	}
	//
	p.assignOffsets()
}

// displacement computes the encoded branch displacement of the instruction at
// a given index: the distance in bytes from the end of the branch instruction
// to its target.
func (p *Body) displacement(i int) int64 {
	var (
		instr  = &p.Instructions[i]
		target = p.Instructions[instr.Operand.Int].Offset
		next   = instr.Offset + instr.Size()
	)
	//
	return int64(target) - int64(next)
}

// assignOffsets recomputes the byte offset of every instruction from the
// current encoding forms.
func (p *Body) assignOffsets() {
	var offset uint32
	//
	for i := range p.Instructions {
		p.Instructions[i].Offset = offset
		offset += p.Instructions[i].Size()
	}
}

// fitsInt8 reports whether a value is representable as a signed 8-bit
// integer.
func fitsInt8(v int64) bool {
	return v >= math.MinInt8 && v <= math.MaxInt8
}
