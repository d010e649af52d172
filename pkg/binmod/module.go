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
	"strings"
)

// TypeID identifies a type definition within its owning module.  Identifiers
// are indices into the module's type arena and remain stable across mutation,
// since definitions are only ever appended.
type TypeID uint32

// FieldID identifies a field definition within its owning module.
type FieldID uint32

// MethodID identifies a method definition within its owning module.
type MethodID uint32

// NoType is the sentinel used where a type reference is absent (e.g. the
// enclosing type of a top-level type).
const NoType TypeID = 0xffffffff

// ValueType enumerates the primitive value types understood by the virtual
// machine.  Counter fields are always U32.
type ValueType uint8

const (
	// Void marks the absence of a return value.
	Void ValueType = iota
	// U32 is the unsigned 32-bit integer type.
	U32
	// I32 is the signed 32-bit integer type.
	I32
	// I64 is the signed 64-bit integer type.
	I64
	// F64 is the 64-bit floating point type.
	F64
	// Object is an opaque reference type.
	Object
)

// String returns the signature mnemonic for this value type.
func (t ValueType) String() string {
	switch t {
	case Void:
		return "void"
	case U32:
		return "u32"
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F64:
		return "f64"
	case Object:
		return "object"
	}
	//
	return fmt.Sprintf("?%d", uint8(t))
}

// TypeFlags capture the declaration attributes of a type.
type TypeFlags uint8

const (
	// TypeInterface marks an interface declaration.
	TypeInterface TypeFlags = 1 << iota
	// TypeAbstract marks a type which cannot be instantiated directly.
	TypeAbstract
	// TypeSealed marks a type which cannot be derived from.
	TypeSealed
	// TypeValue marks a value-type declaration.
	TypeValue
	// TypePublic marks an externally visible type.
	TypePublic
)

// MethodFlags capture the declaration attributes of a method.
type MethodFlags uint8

const (
	// MethodAbstract marks a method declared without an implementation in an
	// abstract type or interface.
	MethodAbstract MethodFlags = 1 << iota
	// MethodExtern marks a method whose implementation lives outside the
	// module (e.g. a native import).
	MethodExtern
	// MethodStatic marks a method with no receiver.
	MethodStatic
	// MethodPublic marks an externally visible method.
	MethodPublic
)

// Module is the in-memory metadata graph of one binary module.  Type, field
// and method definitions live in flat arenas and refer to each other by
// index, so the graph is acyclic from the encoder's point of view even though
// the metadata itself is mutually referential.
type Module struct {
	// Name of this module, as used by other modules to refer to it.
	Name string
	// Types holds every type definition (top-level and nested).
	Types []TypeDef
	// TopLevel lists top-level types in declaration order.
	TopLevel []TypeID
	// Fields holds every field definition.
	Fields []FieldDef
	// Methods holds every method definition.
	Methods []MethodDef
	// Requires lists the names of modules this module references.
	Requires []string
	// TypeRefs is the table of imported type references.
	TypeRefs []TypeRef
	// FieldRefs is the table of imported field references.
	FieldRefs []FieldRef
	// MethodRefs is the table of imported method references.
	MethodRefs []MethodRef
}

// TypeDef is a single type declaration.
type TypeDef struct {
	// Namespace containing this type (empty for the global namespace).
	// Nested types carry the namespace of their outermost enclosing type.
	Namespace string
	// Name is the simple name, excluding namespace and generic arity.
	Name string
	// Arity is the number of generic parameters (0 for non-generic types).
	Arity uint
	// Flags hold the declaration attributes.
	Flags TypeFlags
	// Enclosing identifies the enclosing type, or NoType for top-level types.
	Enclosing TypeID
	// Nested lists directly nested types in declaration order.
	Nested []TypeID
	// Fields lists fields declared by this type in declaration order.
	Fields []FieldID
	// Methods lists methods declared by this type in declaration order.
	Methods []MethodID
	// Attributes names the custom attributes attached to this type.
	Attributes []string
}

// FieldDef is a single field declaration.  For static fields of primitive
// type, Value holds the raw bits of the field's slot as persisted in a saved
// module image.
type FieldDef struct {
	// Declaring identifies the type declaring this field.
	Declaring TypeID
	// Name is the field's simple name.
	Name string
	// Type of the field.
	Type ValueType
	// Static indicates a per-type (rather than per-instance) field.
	Static bool
	// Public indicates an externally visible field.
	Public bool
	// Value is the persisted static slot (raw bits).
	Value uint64
}

// MethodDef is a single method declaration.  Body is nil for bodyless
// methods (abstract, interface slots, native imports).
type MethodDef struct {
	// Declaring identifies the type declaring this method.
	Declaring TypeID
	// Name is the method's simple name.
	Name string
	// Arity is the number of generic parameters of the method itself.
	Arity uint
	// Params is the parameter signature.
	Params []ValueType
	// Return is the return type (Void for none).
	Return ValueType
	// Flags hold the declaration attributes.
	Flags MethodFlags
	// Attributes names the custom attributes attached to this method.
	Attributes []string
	// Body holds the implementation, or nil if the method has none.
	Body *Body
}

// TypeRef is a reference to a type declared in another module.
type TypeRef struct {
	// Module names the declaring module.
	Module string
	// FullName is the fully qualified name of the referenced type.
	FullName string
}

// FieldRef is a reference to a field declared in another module.
type FieldRef struct {
	// Module names the declaring module.
	Module string
	// DeclaringType is the fully qualified name of the declaring type.
	DeclaringType string
	// Name is the field's simple name.
	Name string
	// Type of the referenced field.
	Type ValueType
}

// MethodRef is a reference to a method declared in another module.
type MethodRef struct {
	// Module names the declaring module.
	Module string
	// DeclaringType is the fully qualified name of the declaring type.
	DeclaringType string
	// Name is the method's simple name.
	Name string
	// Params is the parameter signature.
	Params []ValueType
	// Return is the return type.
	Return ValueType
}

// NewModule constructs an empty module with a given name.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// Type returns the definition for a given type identifier.
func (p *Module) Type(id TypeID) *TypeDef {
	return &p.Types[id]
}

// Field returns the definition for a given field identifier.
func (p *Module) Field(id FieldID) *FieldDef {
	return &p.Fields[id]
}

// Method returns the definition for a given method identifier.
func (p *Module) Method(id MethodID) *MethodDef {
	return &p.Methods[id]
}

// AddType appends a new top-level type and returns its identifier.
func (p *Module) AddType(def TypeDef) TypeID {
	var id = TypeID(len(p.Types))
	//
	def.Enclosing = NoType
	p.Types = append(p.Types, def)
	p.TopLevel = append(p.TopLevel, id)
	//
	return id
}

// AddNestedType appends a new type nested within an existing type and returns
// its identifier.  The nested type inherits the namespace of its enclosing
// type.
func (p *Module) AddNestedType(enclosing TypeID, def TypeDef) TypeID {
	var id = TypeID(len(p.Types))
	//
	def.Enclosing = enclosing
	def.Namespace = p.Types[enclosing].Namespace
	p.Types = append(p.Types, def)
	p.Types[enclosing].Nested = append(p.Types[enclosing].Nested, id)
	//
	return id
}

// AddField appends a new field to a given type and returns its identifier.
func (p *Module) AddField(declaring TypeID, def FieldDef) FieldID {
	var id = FieldID(len(p.Fields))
	//
	def.Declaring = declaring
	p.Fields = append(p.Fields, def)
	p.Types[declaring].Fields = append(p.Types[declaring].Fields, id)
	//
	return id
}

// AddMethod appends a new method to a given type and returns its identifier.
func (p *Module) AddMethod(declaring TypeID, def MethodDef) MethodID {
	var id = MethodID(len(p.Methods))
	//
	def.Declaring = declaring
	p.Methods = append(p.Methods, def)
	p.Types[declaring].Methods = append(p.Types[declaring].Methods, id)
	//
	return id
}

// MangledName returns the simple name of a type with its generic arity
// delimiter attached (e.g. "Box`1"), or just the simple name for non-generic
// types.
func (p *TypeDef) MangledName() string {
	if p.Arity == 0 {
		return p.Name
	}
	//
	return fmt.Sprintf("%s`%d", p.Name, p.Arity)
}

// FullName returns the fully qualified name of a type, including namespace,
// generic arity delimiters and (for nested types) every enclosing type
// separated by "/".
func (p *Module) FullName(id TypeID) string {
	var (
		def  = &p.Types[id]
		name = def.MangledName()
	)
	// Walk enclosing chain
	for def.Enclosing != NoType {
		def = &p.Types[def.Enclosing]
		name = def.MangledName() + "/" + name
	}
	//
	if def.Namespace == "" {
		return name
	}
	//
	return def.Namespace + "." + name
}

// SignatureOf returns the printable parameter signature of a method, as used
// in canonical callee signatures (e.g. "(i32,object)").
func SignatureOf(params []ValueType) string {
	var builder strings.Builder
	//
	builder.WriteString("(")
	//
	for i, p := range params {
		if i != 0 {
			builder.WriteString(",")
		}
		//
		builder.WriteString(p.String())
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

// MethodKey returns the canonical signature of a method definition: the fully
// qualified declaring type, the simple name and the parameter signature.
// This is sufficient to match call-site references against definitions
// regardless of which module the reference originated in.
func (p *Module) MethodKey(id MethodID) string {
	var m = &p.Methods[id]
	//
	return p.FullName(m.Declaring) + "::" + m.Name + SignatureOf(m.Params)
}

// RefKey returns the canonical signature of a method reference, matching the
// format of MethodKey.
func (p *MethodRef) RefKey() string {
	return p.DeclaringType + "::" + p.Name + SignatureOf(p.Params)
}

// LookupType finds a top-level type by namespace and mangled simple name,
// returning its identifier or (NoType, false) when absent.
func (p *Module) LookupType(namespace, name string) (TypeID, bool) {
	for _, id := range p.TopLevel {
		def := &p.Types[id]
		//
		if def.Namespace == namespace && def.MangledName() == name {
			return id, true
		}
	}
	//
	return NoType, false
}

// LookupField finds a field of a given type by name, returning its identifier
// or false when absent.
func (p *Module) LookupField(t TypeID, name string) (FieldID, bool) {
	for _, fid := range p.Types[t].Fields {
		if p.Fields[fid].Name == name {
			return fid, true
		}
	}
	//
	return 0, false
}

// LookupMethod finds a method of a given type by name and parameter
// signature, returning its identifier or false when absent.
func (p *Module) LookupMethod(t TypeID, name string, params []ValueType) (MethodID, bool) {
	sig := SignatureOf(params)
	//
	for _, mid := range p.Types[t].Methods {
		m := &p.Methods[mid]
		//
		if m.Name == name && SignatureOf(m.Params) == sig {
			return mid, true
		}
	}
	//
	return 0, false
}

// Require records a dependency upon another module, returning silently if the
// dependency is already recorded.
func (p *Module) Require(module string) {
	for _, r := range p.Requires {
		if r == module {
			return
		}
	}
	//
	p.Requires = append(p.Requires, module)
}

// ImportType imports a reference to a type declared in another module into
// this module's reference table, returning the index of the (possibly
// pre-existing) reference.
func (p *Module) ImportType(from *Module, id TypeID) uint32 {
	var ref = TypeRef{Module: from.Name, FullName: from.FullName(id)}
	// Check for existing reference
	for i, r := range p.TypeRefs {
		if r == ref {
			return uint32(i)
		}
	}
	//
	p.Require(from.Name)
	p.TypeRefs = append(p.TypeRefs, ref)
	//
	return uint32(len(p.TypeRefs) - 1)
}

// ImportField imports a reference to a field declared in another module into
// this module's reference table, returning a handle bound to the imported
// reference.  The declaring type is imported as well.
func (p *Module) ImportField(from *Module, id FieldID) MemberHandle {
	var (
		f   = from.Field(id)
		ref = FieldRef{
			Module:        from.Name,
			DeclaringType: from.FullName(f.Declaring),
			Name:          f.Name,
			Type:          f.Type,
		}
	)
	// Check for existing reference
	for i, r := range p.FieldRefs {
		if r == ref {
			return MemberHandle{External: true, Index: uint32(i)}
		}
	}
	//
	p.ImportType(from, f.Declaring)
	p.FieldRefs = append(p.FieldRefs, ref)
	//
	return MemberHandle{External: true, Index: uint32(len(p.FieldRefs) - 1)}
}

// ImportMethod imports a reference to a method declared in another module
// into this module's reference table, returning a handle bound to the
// imported reference.
func (p *Module) ImportMethod(from *Module, id MethodID) MemberHandle {
	var (
		m   = from.Method(id)
		ref = MethodRef{
			Module:        from.Name,
			DeclaringType: from.FullName(m.Declaring),
			Name:          m.Name,
			Params:        m.Params,
			Return:        m.Return,
		}
	)
	// Check for existing reference
	for i, r := range p.MethodRefs {
		if r.Module == ref.Module && r.RefKey() == ref.RefKey() {
			return MemberHandle{External: true, Index: uint32(i)}
		}
	}
	//
	p.Require(from.Name)
	p.MethodRefs = append(p.MethodRefs, ref)
	//
	return MemberHandle{External: true, Index: uint32(len(p.MethodRefs) - 1)}
}

// FieldKeyOf returns the canonical key of the field a handle resolves to
// within this module, regardless of whether the handle is a definition or an
// imported reference.
func (p *Module) FieldKeyOf(h MemberHandle) string {
	if h.External {
		ref := &p.FieldRefs[h.Index]
		return ref.DeclaringType + "::" + ref.Name
	}
	//
	f := p.Field(FieldID(h.Index))
	//
	return p.FullName(f.Declaring) + "::" + f.Name
}

// MethodKeyOf returns the canonical signature of the method a handle resolves
// to within this module, regardless of whether the handle is a definition or
// an imported reference.
func (p *Module) MethodKeyOf(h MemberHandle) string {
	if h.External {
		return p.MethodRefs[h.Index].RefKey()
	}
	//
	return p.MethodKey(MethodID(h.Index))
}

// TopLevelSnapshot returns a copy of the current top-level type list.  Walks
// which append helper types to the module mid-iteration use this snapshot so
// the iteration is not invalidated.
func (p *Module) TopLevelSnapshot() []TypeID {
	var snapshot = make([]TypeID, len(p.TopLevel))
	//
	copy(snapshot, p.TopLevel)
	//
	return snapshot
}
