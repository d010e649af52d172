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
	"bytes"
	"hash/fnv"
)

// SequencePoint associates one instruction with a location in source code.
type SequencePoint struct {
	// Instruction index within the owning method's body.
	Instruction uint32
	// File is the source file path.
	File string
	// Line is the 1-based source line.
	Line uint32
	// Column is the 1-based source column.
	Column uint32
}

// MethodSymbols carries the sequence points of one method, keyed by the
// method's canonical signature.
type MethodSymbols struct {
	// Method is the canonical signature of the method these symbols describe.
	Method string
	// Points are the sequence points, ordered by instruction index.
	Points []SequencePoint
}

// SymbolFile is the debug-symbol companion of a module: per-method sequence
// points plus a fingerprint of the module the symbols were produced against.
type SymbolFile struct {
	// ModuleName names the module these symbols describe.
	ModuleName string
	// Checksum is the fingerprint of the described module, used to detect
	// symbols which no longer match their binary.
	Checksum uint64
	// Methods carries the per-method sequence points.
	Methods []MethodSymbols
}

// NewSymbolFile constructs an empty symbol file fingerprinted against a given
// module.
func NewSymbolFile(module *Module) *SymbolFile {
	return &SymbolFile{
		ModuleName: module.Name,
		Checksum:   Fingerprint(module),
	}
}

// Matches reports whether this symbol file describes the given module.
func (p *SymbolFile) Matches(module *Module) bool {
	return p.ModuleName == module.Name && p.Checksum == Fingerprint(module)
}

// Restamp refreshes the fingerprint after the described module has been
// mutated.
func (p *SymbolFile) Restamp(module *Module) {
	p.ModuleName = module.Name
	p.Checksum = Fingerprint(module)
}

// MethodSymbols returns the symbols of a given method, or nil when the method
// has none.
func (p *SymbolFile) MethodSymbols(key string) *MethodSymbols {
	for i := range p.Methods {
		if p.Methods[i].Method == key {
			return &p.Methods[i]
		}
	}
	//
	return nil
}

// AddMethod appends (or replaces) the symbols of a given method.
func (p *SymbolFile) AddMethod(key string, points []SequencePoint) {
	if existing := p.MethodSymbols(key); existing != nil {
		existing.Points = points
		return
	}
	//
	p.Methods = append(p.Methods, MethodSymbols{Method: key, Points: points})
}

// Shift adjusts the sequence points of a given method after n instructions
// were spliced into its body at a given index.  Sequence points describe the
// instruction they are attached to, so every point at or beyond the splice
// index moves with its instruction; the spliced instructions carry no source
// location.
func (p *SymbolFile) Shift(key string, at int, n int) {
	var symbols = p.MethodSymbols(key)
	//
	if symbols == nil {
		return
	}
	//
	for i := range symbols.Points {
		if symbols.Points[i].Instruction >= uint32(at) {
			symbols.Points[i].Instruction += uint32(n)
		}
	}
}

// Fingerprint computes the module fingerprint recorded in symbol files: a
// hash over the module name and, per type, its full name together with the
// name and body length of each of its methods.
func Fingerprint(module *Module) uint64 {
	var (
		hasher = fnv.New64a()
		buf    [4]byte
	)
	//
	hasher.Write([]byte(module.Name))
	//
	for id := range module.Types {
		hasher.Write([]byte(module.FullName(TypeID(id))))
		//
		for _, mid := range module.Types[id].Methods {
			m := module.Method(mid)
			hasher.Write([]byte(m.Name))
			//
			n := 0
			if m.Body != nil {
				n = m.Body.Len()
			}
			//
			buf[0] = byte(n)
			buf[1] = byte(n >> 8)
			buf[2] = byte(n >> 16)
			buf[3] = byte(n >> 24)
			hasher.Write(buf[:])
		}
	}
	//
	return hasher.Sum64()
}

// SymbolContainer is the on-disk representation of a symbol file: a container
// Header followed by the gob-encoded symbols.
type SymbolContainer struct {
	// Header holds the magic identifier, version numbers and metadata.
	Header Header
	// Symbols is the symbol payload itself.
	Symbols SymbolFile
}

// NewSymbolContainer wraps a symbol file in a container stamped at the
// current version.
func NewSymbolContainer(symbols *SymbolFile) *SymbolContainer {
	return &SymbolContainer{NewHeader(SYMBOL_MAGIC), *symbols}
}

// IsSymbolFile checks whether the given data begins with the symbol magic
// identifier.
func IsSymbolFile(data []byte) bool {
	return bytes.HasPrefix(data, SYMBOL_MAGIC[:])
}

// MarshalBinary converts the SymbolContainer into a sequence of bytes.
func (p *SymbolContainer) MarshalBinary() ([]byte, error) {
	return marshalContainer(&p.Header, &p.Symbols)
}

// UnmarshalBinary initialises this SymbolContainer from a given set of data
// bytes.  This should match exactly the encoding above.
func (p *SymbolContainer) UnmarshalBinary(data []byte) error {
	return unmarshalContainer(data, SYMBOL_MAGIC, &p.Header, &p.Symbols)
}
