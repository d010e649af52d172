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

import "fmt"

// Opcode identifies a virtual machine instruction.
type Opcode uint8

const (
	// NOP does nothing.
	NOP Opcode = iota
	// RET returns from the current method, popping the return value (if any).
	RET
	// LDC_I4 pushes a 32-bit integer constant (long form, 4-byte operand).
	LDC_I4
	// LDC_I4_S pushes a 32-bit integer constant (short form, 1-byte operand).
	LDC_I4_S
	// ADD pops two values and pushes their sum.
	ADD
	// SUB pops two values and pushes their difference.
	SUB
	// MUL pops two values and pushes their product.
	MUL
	// DUP duplicates the top of stack.
	DUP
	// POP discards the top of stack.
	POP
	// LDLOC pushes the value of a local variable.
	LDLOC
	// STLOC pops the top of stack into a local variable.
	STLOC
	// LDARG pushes the value of an argument.
	LDARG
	// LDSFLD pushes the value of a static field.
	LDSFLD
	// STSFLD pops the top of stack into a static field.
	STSFLD
	// CALL invokes a method non-virtually.
	CALL
	// CALLVIRT invokes a method via its virtual slot.
	CALLVIRT
	// BR branches unconditionally (long form, 4-byte displacement).
	BR
	// BR_S branches unconditionally (short form, 1-byte displacement).
	BR_S
	// BRTRUE branches when the popped value is non-zero (long form).
	BRTRUE
	// BRTRUE_S branches when the popped value is non-zero (short form).
	BRTRUE_S
	// BRFALSE branches when the popped value is zero (long form).
	BRFALSE
	// BRFALSE_S branches when the popped value is zero (short form).
	BRFALSE_S
	// CEQ pops two values and pushes 1 if they are equal, 0 otherwise.
	CEQ
	// CLT pops two values and pushes 1 if the first is less than the second.
	CLT
)

// OperandKind discriminates the operand variants an instruction may carry.
type OperandKind uint8

const (
	// OperandNone marks an instruction without an operand.
	OperandNone OperandKind = iota
	// OperandInt marks an integer constant operand.
	OperandInt
	// OperandVar marks a local variable or argument index operand.
	OperandVar
	// OperandBranch marks a branch target operand, held as the index of the
	// target instruction within the owning body.
	OperandBranch
	// OperandField marks a field handle operand.
	OperandField
	// OperandMethod marks a method handle operand.
	OperandMethod
)

// MemberHandle refers to a field or method, either as a definition in the
// current module (External false, Index a FieldID / MethodID) or as an entry
// in the module's imported reference tables (External true).
type MemberHandle struct {
	// External indicates the handle indexes a reference table rather than a
	// definition arena.
	External bool
	// Index into the appropriate arena or reference table.
	Index uint32
}

// Operand is the tagged operand variant carried by an instruction.  Exactly
// one of its payload fields is meaningful, as determined by Kind.
type Operand struct {
	// Kind discriminates the payload.
	Kind OperandKind
	// Int holds integer constants, variable indices and branch targets
	// (as instruction indices).
	Int int64
	// Member holds field and method handles.
	Member MemberHandle
}

// Instruction is a single instruction within a method body.  Offset is the
// byte offset of the instruction within its body's encoded stream; it is
// recomputed by Body.Compact and is not meaningful between mutation and
// compaction.
type Instruction struct {
	// Opcode of this instruction.
	Opcode Opcode
	// Operand of this instruction (OperandNone when the opcode takes none).
	Operand Operand
	// Offset is the byte offset within the encoded instruction stream.
	Offset uint32
}

// opcodeInfo describes the static properties of one opcode.
type opcodeInfo struct {
	// name is the printable mnemonic.
	name string
	// operand is the operand kind this opcode requires.
	operand OperandKind
	// width is the encoded operand size in bytes.
	width uint32
	// long / short identify the counterpart encoding for opcodes which have
	// both forms, or the opcode itself otherwise.
	long  Opcode
	short Opcode
}

// opcodes is the static opcode property table.
var opcodes = [...]opcodeInfo{
	NOP:       {"nop", OperandNone, 0, NOP, NOP},
	RET:       {"ret", OperandNone, 0, RET, RET},
	LDC_I4:    {"ldc.i4", OperandInt, 4, LDC_I4, LDC_I4_S},
	LDC_I4_S:  {"ldc.i4.s", OperandInt, 1, LDC_I4, LDC_I4_S},
	ADD:       {"add", OperandNone, 0, ADD, ADD},
	SUB:       {"sub", OperandNone, 0, SUB, SUB},
	MUL:       {"mul", OperandNone, 0, MUL, MUL},
	DUP:       {"dup", OperandNone, 0, DUP, DUP},
	POP:       {"pop", OperandNone, 0, POP, POP},
	LDLOC:     {"ldloc", OperandVar, 2, LDLOC, LDLOC},
	STLOC:     {"stloc", OperandVar, 2, STLOC, STLOC},
	LDARG:     {"ldarg", OperandVar, 2, LDARG, LDARG},
	LDSFLD:    {"ldsfld", OperandField, 4, LDSFLD, LDSFLD},
	STSFLD:    {"stsfld", OperandField, 4, STSFLD, STSFLD},
	CALL:      {"call", OperandMethod, 4, CALL, CALL},
	CALLVIRT:  {"callvirt", OperandMethod, 4, CALLVIRT, CALLVIRT},
	BR:        {"br", OperandBranch, 4, BR, BR_S},
	BR_S:      {"br.s", OperandBranch, 1, BR, BR_S},
	BRTRUE:    {"brtrue", OperandBranch, 4, BRTRUE, BRTRUE_S},
	BRTRUE_S:  {"brtrue.s", OperandBranch, 1, BRTRUE, BRTRUE_S},
	BRFALSE:   {"brfalse", OperandBranch, 4, BRFALSE, BRFALSE_S},
	BRFALSE_S: {"brfalse.s", OperandBranch, 1, BRFALSE, BRFALSE_S},
	CEQ:       {"ceq", OperandNone, 0, CEQ, CEQ},
	CLT:       {"clt", OperandNone, 0, CLT, CLT},
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	if int(op) < len(opcodes) {
		return opcodes[op].name
	}
	//
	return fmt.Sprintf("op?%d", uint8(op))
}

// OperandKind returns the operand kind required by an opcode.
func (op Opcode) OperandKind() OperandKind {
	return opcodes[op].operand
}

// IsBranch reports whether an opcode is a branch (of either form).
func (op Opcode) IsBranch() bool {
	return opcodes[op].operand == OperandBranch
}

// IsCall reports whether an opcode is a static or virtual call.
func (op Opcode) IsCall() bool {
	return op == CALL || op == CALLVIRT
}

// LongForm returns the long-form counterpart of an opcode (the opcode itself
// if it has no short form).
func (op Opcode) LongForm() Opcode {
	return opcodes[op].long
}

// ShortForm returns the short-form counterpart of an opcode (the opcode
// itself if it has no short form).
func (op Opcode) ShortForm() Opcode {
	return opcodes[op].short
}

// Size returns the encoded size of an instruction in bytes (one opcode byte
// plus the operand width of its current form).
func (p *Instruction) Size() uint32 {
	return 1 + opcodes[p.Opcode].width
}

// Instr constructs an instruction taking no operand.
func Instr(op Opcode) Instruction {
	return Instruction{Opcode: op}
}

// IntInstr constructs an instruction taking an integer constant operand.
func IntInstr(op Opcode, value int64) Instruction {
	return Instruction{Opcode: op, Operand: Operand{Kind: OperandInt, Int: value}}
}

// VarInstr constructs an instruction taking a local / argument index operand.
func VarInstr(op Opcode, index uint) Instruction {
	return Instruction{Opcode: op, Operand: Operand{Kind: OperandVar, Int: int64(index)}}
}

// BranchInstr constructs a branch instruction targeting a given instruction
// index.
func BranchInstr(op Opcode, target int) Instruction {
	return Instruction{Opcode: op, Operand: Operand{Kind: OperandBranch, Int: int64(target)}}
}

// FieldInstr constructs an instruction taking a field handle operand.
func FieldInstr(op Opcode, h MemberHandle) Instruction {
	return Instruction{Opcode: op, Operand: Operand{Kind: OperandField, Member: h}}
}

// MethodInstr constructs an instruction taking a method handle operand.
func MethodInstr(op Opcode, h MemberHandle) Instruction {
	return Instruction{Opcode: op, Operand: Operand{Kind: OperandMethod, Member: h}}
}

// DefFieldHandle returns a handle for a field defined in the current module.
func DefFieldHandle(id FieldID) MemberHandle {
	return MemberHandle{Index: uint32(id)}
}

// DefMethodHandle returns a handle for a method defined in the current
// module.
func DefMethodHandle(id MethodID) MemberHandle {
	return MemberHandle{Index: uint32(id)}
}
