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
	"os"

	"github.com/BurntSushi/toml"
)

// DefaultPrefix is the default name prefix of counter fields.  The presence
// of any field with this prefix also serves as the marker that a module has
// already been instrumented.
const DefaultPrefix = "_invokeCount_"

// HelperSuffix is the name suffix of synthesized counter holder types.
const HelperSuffix = "_InvokeCounters"

// DefaultExcludes lists the namespaces excluded from instrumentation unless
// overridden: the runtime and tooling namespaces of the host platform.
var DefaultExcludes = []string{"System", "Std", "Runtime"}

// Config collects everything one weave run needs to know.
type Config struct {
	// ModulePath is the target module to instrument.
	ModulePath string
	// Prefix of counter field names.
	Prefix string
	// Includes lists namespace prefixes to instrument; empty means
	// "everything not excluded".
	Includes []string
	// Excludes lists namespace prefixes to skip.  Exclusion takes precedence
	// over inclusion.
	Excludes []string
	// Output is the path to write the instrumented module to; empty means
	// overwrite the input in place.
	Output string
	// Backup enables copying the input (and its symbols) aside before
	// weaving.
	Backup bool
	// BackupDir is the directory backups are written to; empty means the
	// input module's directory.
	BackupDir string
	// SearchDirs lists extra directories for reference resolution, beyond
	// the input module's own directory.
	SearchDirs []string
	// InstrumentCompilerGenerated includes compiler-synthesized types and
	// methods, which are skipped by default.
	InstrumentCompilerGenerated bool
}

// NewConfig returns the configuration for a given target module with every
// option at its default.
func NewConfig(modulePath string) Config {
	return Config{
		ModulePath: modulePath,
		Prefix:     DefaultPrefix,
		Excludes:   append([]string{}, DefaultExcludes...),
		Backup:     true,
	}
}

// fileConfig is the TOML schema of an on-disk configuration file.  Every
// field is optional.
type fileConfig struct {
	Prefix                      string   `toml:"prefix"`
	Include                     []string `toml:"include"`
	Exclude                     []string `toml:"exclude"`
	Output                      string   `toml:"output"`
	NoBackup                    bool     `toml:"no-backup"`
	BackupDir                   string   `toml:"backup-dir"`
	SearchDirs                  []string `toml:"search-dirs"`
	InstrumentCompilerGenerated bool     `toml:"instrument-compiler-generated"`
}

// ApplyFile merges a TOML configuration file into this configuration.
// Scalars set in the file replace the current values; list entries are
// appended.
func (p *Config) ApplyFile(path string) error {
	var file fileConfig
	//
	data, err := os.ReadFile(path)
	//
	if err != nil {
		return err
	}
	//
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	//
	if file.Prefix != "" {
		p.Prefix = file.Prefix
	}
	//
	if file.Output != "" {
		p.Output = file.Output
	}
	//
	if file.NoBackup {
		p.Backup = false
	}
	//
	if file.BackupDir != "" {
		p.BackupDir = file.BackupDir
	}
	//
	if file.InstrumentCompilerGenerated {
		p.InstrumentCompilerGenerated = true
	}
	//
	p.Includes = append(p.Includes, file.Include...)
	p.Excludes = append(p.Excludes, file.Exclude...)
	p.SearchDirs = append(p.SearchDirs, file.SearchDirs...)
	//
	return nil
}
