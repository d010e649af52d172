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
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// SymbolExtension is the file extension of symbol files.
const SymbolExtension = ".sym"

// Image is one module loaded from disk, together with its symbols (when
// present and matching), the header metadata and the paths involved.  The
// Image is the unit the weaver mutates and saves.
type Image struct {
	// Module is the loaded metadata graph.
	Module *Module
	// Symbols holds the loaded debug symbols, or nil when the module was
	// loaded without symbols (absent or mismatched).
	Symbols *SymbolFile
	// Metadata is the container header metadata, carried through to save.
	Metadata map[string]string
	// Path the module was loaded from.
	Path string
	// SymbolPath is the symbol file the symbols were loaded from ("" if
	// none was found).
	SymbolPath string
	// ShortSymbols indicates the detected symbol file used the short naming
	// convention ("<base>.sym" rather than "<base>.<ext>.sym").
	ShortSymbols bool
	// Resolver satisfies references to other modules, or nil when reference
	// resolution is not configured.
	Resolver *Resolver
}

// LongSymbolPath returns the long-convention symbol path of a module path:
// the full module filename with the symbol extension appended.
func LongSymbolPath(modulePath string) string {
	return modulePath + SymbolExtension
}

// ShortSymbolPath returns the short-convention symbol path of a module path:
// the module filename with its extension replaced by the symbol extension.
func ShortSymbolPath(modulePath string) string {
	ext := filepath.Ext(modulePath)
	//
	return strings.TrimSuffix(modulePath, ext) + SymbolExtension
}

// Load reads a module from disk, probing both symbol naming conventions for
// a matching symbol file.  Symbols which are present but do not match the
// binary are dropped with a warning, and the module is loaded as if no
// symbols existed.  A nil resolver disables reference resolution.
func Load(path string, resolver *Resolver) (*Image, error) {
	var container ModuleFile
	//
	data, err := os.ReadFile(path)
	//
	if err != nil {
		return nil, err
	}
	//
	if !IsModuleFile(data) {
		return nil, fmt.Errorf("%s: not a module file", path)
	}
	//
	if err := container.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	//
	metadata, err := container.Header.GetMetaData()
	//
	if err != nil {
		return nil, fmt.Errorf("%s: malformed header metadata: %w", path, err)
	}
	//
	image := &Image{
		Module:   &container.Module,
		Metadata: metadata,
		Path:     path,
		Resolver: resolver,
	}
	//
	image.loadSymbols()
	//
	return image, nil
}

// loadSymbols probes the two symbol naming conventions and attaches the
// symbols when they match the loaded module.
func (p *Image) loadSymbols() {
	candidates := []struct {
		path  string
		short bool
	}{
		{LongSymbolPath(p.Path), false},
		{ShortSymbolPath(p.Path), true},
	}
	//
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate.path)
		//
		if err != nil || !IsSymbolFile(data) {
			continue
		}
		//
		var container SymbolContainer
		//
		if err := container.UnmarshalBinary(data); err != nil {
			log.Warnf("%s: unreadable symbol file ignored: %v", candidate.path, err)
			continue
		}
		//
		p.SymbolPath = candidate.path
		p.ShortSymbols = candidate.short
		// Check the symbols actually describe this binary
		if !container.Symbols.Matches(p.Module) {
			log.Warnf("%s: symbols do not match %s, loading without symbols", candidate.path, p.Path)
			return
		}
		//
		p.Symbols = &container.Symbols
		//
		return
	}
}

// Save writes the module (and its symbols, when loaded) to a given path,
// returning the path the symbol file was written to ("" when no symbols were
// written).  The symbol file is always emitted under the long naming
// convention; reconciling it against the originally detected convention is
// the caller's concern.
func (p *Image) Save(path string) (string, error) {
	container := NewModuleFile(p.Module)
	//
	if len(p.Metadata) > 0 {
		if err := container.Header.SetMetaData(p.Metadata); err != nil {
			return "", err
		}
	}
	//
	data, err := container.MarshalBinary()
	//
	if err != nil {
		return "", err
	}
	//
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	// Skip symbol writing when none were loaded
	if p.Symbols == nil {
		return "", nil
	}
	// Refresh fingerprint against the (possibly mutated) module
	p.Symbols.Restamp(p.Module)
	//
	symContainer := NewSymbolContainer(p.Symbols)
	//
	symData, err := symContainer.MarshalBinary()
	//
	if err != nil {
		return "", err
	}
	//
	symPath := LongSymbolPath(path)
	//
	if err := os.WriteFile(symPath, symData, 0644); err != nil {
		return "", err
	}
	//
	return symPath, nil
}

// Resolver satisfies references to other modules by probing a sequence of
// search directories.  Resolved images are cached, so repeated resolution of
// the same module name yields the same Image.
type Resolver struct {
	dirs  []string
	cache map[string]*Image
}

// NewResolver constructs a resolver over the given search directories, in
// priority order.
func NewResolver(dirs ...string) *Resolver {
	return &Resolver{dirs: dirs, cache: make(map[string]*Image)}
}

// AddSearchDirectory appends a directory to the search list.
func (p *Resolver) AddSearchDirectory(dir string) {
	p.dirs = append(p.dirs, dir)
}

// Resolve locates and loads the module with a given name, or returns an
// error when no search directory contains it.  Resolution failures do not
// poison the cache, so a module which later appears can still be resolved.
func (p *Resolver) Resolve(name string) (*Image, error) {
	if image, ok := p.cache[name]; ok {
		return image, nil
	}
	//
	for _, dir := range p.dirs {
		for _, filename := range []string{name, name + ".bin"} {
			path := filepath.Join(dir, filename)
			//
			if _, err := os.Stat(path); err != nil {
				continue
			}
			//
			image, err := Load(path, p)
			//
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", name, err)
			}
			//
			p.cache[name] = image
			//
			return image, nil
		}
	}
	//
	return nil, fmt.Errorf("cannot resolve module %q", name)
}
