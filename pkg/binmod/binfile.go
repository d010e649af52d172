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
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
)

// ============================================================================
// Binary Container Format
// ============================================================================

// MODULE_MAGIC is the file identifier of module files.  This just helps us
// distinguish actual module files from corrupted files.
var MODULE_MAGIC = [8]byte{'c', 'a', 'l', 'l', 'b', 'i', 'n', 'm'}

// SYMBOL_MAGIC is the file identifier of symbol files.
var SYMBOL_MAGIC = [8]byte{'c', 'a', 'l', 'l', 'b', 's', 'y', 'm'}

// CONTAINER_MAJOR_VERSION is the major version of the container format.
// Regardless of version, a file always begins with its magic identifier
// followed by a hand-rolled binary Header; the encoding of everything after
// the header is determined by the major version.
const CONTAINER_MAJOR_VERSION uint16 = 1

// CONTAINER_MINOR_VERSION is the minor version of the container format.
// Files with a lower minor version remain readable by this implementation.
const CONTAINER_MINOR_VERSION uint16 = 0

// Header is the fixed-layout prefix of every module and symbol file.  It is
// serialised using a hand-rolled big-endian encoding (not gob) so that the
// magic identifier and version numbers can be read without a full decode.
type Header struct {
	// Identifier is the 8-byte magic constant marking the file type.
	Identifier [8]byte
	// MajorVersion must match CONTAINER_MAJOR_VERSION exactly for the file to
	// be considered compatible.
	MajorVersion uint16
	// MinorVersion must be ≤ CONTAINER_MINOR_VERSION for the file to be
	// considered compatible.
	MinorVersion uint16
	// MetaData is an optional JSON blob carrying key/value pairs (e.g. the
	// weaving tool name and run identifier).
	MetaData []byte
}

// NewHeader constructs a header stamped at the current version.
func NewHeader(magic [8]byte) Header {
	return Header{magic, CONTAINER_MAJOR_VERSION, CONTAINER_MINOR_VERSION, nil}
}

// GetMetaData parses the metadata bytes as a JSON string map.  If there are
// no metadata bytes, an empty map is returned.
func (p *Header) GetMetaData() (map[string]string, error) {
	var metadata map[string]string
	// Check for empty metadata
	if len(p.MetaData) == 0 {
		return map[string]string{}, nil
	}
	//
	if err := json.Unmarshal(p.MetaData, &metadata); err != nil {
		return nil, err
	}
	//
	return metadata, nil
}

// SetMetaData sets the metadata bytes for this header from a JSON encoding of
// the given map.  On failure the metadata bytes are unaffected.
func (p *Header) SetMetaData(metadata map[string]string) error {
	bytes, err := json.Marshal(metadata)
	// Check for error
	if err != nil {
		return err
	}
	//
	p.MetaData = bytes
	//
	return nil
}

// IsCompatible reports whether this header can be decoded by the current
// implementation: the expected magic identifier, an exact match on the major
// version, and a minor version no greater than the current minor version.
func (p *Header) IsCompatible(magic [8]byte) bool {
	return p.Identifier == magic &&
		p.MajorVersion == CONTAINER_MAJOR_VERSION &&
		p.MinorVersion <= CONTAINER_MINOR_VERSION
}

// MarshalBinary converts the Header into a sequence of bytes.  Observe that
// we don't use gob here, so the prefix can be inspected without committing to
// that encoding scheme.
func (p *Header) MarshalBinary() ([]byte, error) {
	var (
		buffer     bytes.Buffer
		majorBytes [2]byte
		minorBytes [2]byte
		metaLength [4]byte
	)
	// Marshall version numbers
	binary.BigEndian.PutUint16(majorBytes[:], p.MajorVersion)
	binary.BigEndian.PutUint16(minorBytes[:], p.MinorVersion)
	binary.BigEndian.PutUint32(metaLength[:], uint32(len(p.MetaData)))
	// Write identifier
	buffer.Write(p.Identifier[:])
	// Write version numbers
	buffer.Write(majorBytes[:])
	buffer.Write(minorBytes[:])
	// Write metadata length, then the metadata itself
	buffer.Write(metaLength[:])
	buffer.Write(p.MetaData)
	// Done
	return buffer.Bytes(), nil
}

// UnmarshalBinary initialises this Header from a given buffer.  This should
// match exactly the encoding above.
func (p *Header) UnmarshalBinary(buffer *bytes.Buffer) error {
	var (
		majorBytes      [2]byte
		minorBytes      [2]byte
		metaLengthBytes [4]byte
	)
	// Read identifier
	if n, err := buffer.Read(p.Identifier[:]); err != nil {
		return err
	} else if n != 8 {
		return errors.New("malformed container file")
	}
	// Read version numbers
	if n, err := buffer.Read(majorBytes[:]); err != nil {
		return err
	} else if n != len(majorBytes) {
		return errors.New("malformed container file")
	}
	//
	if n, err := buffer.Read(minorBytes[:]); err != nil {
		return err
	} else if n != len(minorBytes) {
		return errors.New("malformed container file")
	}
	// Read metadata length
	if n, err := buffer.Read(metaLengthBytes[:]); err != nil {
		return err
	} else if n != len(metaLengthBytes) {
		return errors.New("malformed container file")
	}
	// Make space for the metadata
	var (
		metaLength = binary.BigEndian.Uint32(metaLengthBytes[:])
		metaBytes  = make([]byte, metaLength)
	)
	// Read metadata itself
	if metaLength > 0 {
		if n, err := buffer.Read(metaBytes); err != nil {
			return err
		} else if n != len(metaBytes) {
			return errors.New("malformed container file")
		}
	}
	// Finally assign everything over
	p.MajorVersion = binary.BigEndian.Uint16(majorBytes[:])
	p.MinorVersion = binary.BigEndian.Uint16(minorBytes[:])
	p.MetaData = metaBytes
	// Done
	return nil
}

// ModuleFile is the on-disk representation of a module: a container Header
// followed by the gob-encoded metadata graph.
type ModuleFile struct {
	// Header holds the magic identifier, version numbers and metadata.
	Header Header
	// Module is the metadata graph itself.
	Module Module
}

// NewModuleFile wraps a module in a container stamped at the current version.
func NewModuleFile(module *Module) *ModuleFile {
	return &ModuleFile{NewHeader(MODULE_MAGIC), *module}
}

// IsModuleFile checks whether the given data begins with the module magic
// identifier.
func IsModuleFile(data []byte) bool {
	return bytes.HasPrefix(data, MODULE_MAGIC[:])
}

// MarshalBinary converts the ModuleFile into a sequence of bytes.
func (p *ModuleFile) MarshalBinary() ([]byte, error) {
	return marshalContainer(&p.Header, &p.Module)
}

// UnmarshalBinary initialises this ModuleFile from a given set of data bytes.
// This should match exactly the encoding above.
func (p *ModuleFile) UnmarshalBinary(data []byte) error {
	return unmarshalContainer(data, MODULE_MAGIC, &p.Header, &p.Module)
}

// marshalContainer encodes a header followed by a gob-encoded payload.
func marshalContainer(header *Header, payload any) ([]byte, error) {
	var buffer bytes.Buffer
	// Encode header
	headerBytes, err := header.MarshalBinary()
	//
	if err != nil {
		return nil, err
	}
	//
	buffer.Write(headerBytes)
	// Encode payload
	if err := gob.NewEncoder(&buffer).Encode(payload); err != nil {
		return nil, err
	}
	// Done
	return buffer.Bytes(), nil
}

// unmarshalContainer decodes a header, checks compatibility against the
// expected magic, and decodes the gob-encoded payload.
func unmarshalContainer(data []byte, magic [8]byte, header *Header, payload any) error {
	var buffer = bytes.NewBuffer(data)
	// Read header
	if err := header.UnmarshalBinary(buffer); err != nil {
		return err
	}
	// Sanity check compatibility
	if !header.IsCompatible(magic) {
		return fmt.Errorf("incompatible container file (was v%d.%d, but expected v%d.%d)",
			header.MajorVersion, header.MinorVersion, CONTAINER_MAJOR_VERSION, CONTAINER_MINOR_VERSION)
	}
	// Decode payload
	return gob.NewDecoder(buffer).Decode(payload)
}
