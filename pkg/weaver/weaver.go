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
	"path/filepath"

	"github.com/callweave/callweave/pkg/binmod"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Weave runs one complete weave over the configured target module: load,
// idempotence check, backup, caller-side discovery, body instrumentation,
// call-site scan and splice, save, symbol reconciliation.  Per-method and
// per-site failures are logged and skipped; only file-level I/O errors
// abort the run.
func Weave(config Config) (*Result, error) {
	resolver := binmod.NewResolver(
		append([]string{filepath.Dir(config.ModulePath)}, config.SearchDirs...)...)
	//
	image, err := binmod.Load(config.ModulePath, resolver)
	//
	if err != nil {
		return nil, err
	}
	//
	session := NewSession(&config, image)
	// Bail out cleanly when a previous run already instrumented the module
	if AlreadyInstrumented(image, config.Prefix) {
		log.Infof("%s: already instrumented, nothing to do", config.ModulePath)
		session.Result.Skipped = true
		//
		return &session.Result, nil
	}
	//
	if config.Backup {
		if err := CreateBackups(session); err != nil {
			return nil, err
		}
	}
	// Snapshot the top-level type list once, before any helper is created,
	// so appended helpers never enter the walks below.
	types := image.Module.TopLevelSnapshot()
	// Pass A: register bodyless methods and pre-allocate their counters
	DiscoverTargets(session, types)
	// Instrument method bodies before scanning for call sites, so recorded
	// site indices are not invalidated by entry splices.
	instrumentBodies(session, types)
	// Pass B: locate call sites of the registered targets, then splice
	ScanSites(session)
	SpliceSites(session)
	//
	stampMetadata(session)
	//
	output := config.Output
	//
	if output == "" {
		output = image.Path
	}
	//
	symbols, err := image.Save(output)
	//
	if err != nil {
		return nil, err
	}
	//
	if err := ReconcileSymbolName(session, symbols); err != nil {
		return nil, err
	}
	//
	return &session.Result, nil
}

// instrumentBodies walks the eligible types of the target module and splices
// the entry prelude into every body-eligible method.  The walk iterates the
// pre-instrumentation snapshot of the top-level type list, so helper types
// appended mid-walk do not invalidate (or extend) the iteration.
func instrumentBodies(session *Session, types []binmod.TypeID) {
	for _, id := range types {
		instrumentType(session, id)
	}
}

// instrumentType processes one type depth-first: nested types are processed
// recursively before the methods of the enclosing type.
func instrumentType(session *Session, id binmod.TypeID) {
	var module = session.Module()
	//
	if !session.Filter.TypeEligible(module, id) {
		return
	}
	//
	session.Result.TypesVisited++
	//
	for _, nested := range module.Type(id).Nested {
		instrumentType(session, nested)
	}
	// Snapshot the method list before instrumenting
	methods := append([]binmod.MethodID{}, module.Type(id).Methods...)
	//
	for _, mid := range methods {
		if !session.Filter.BodyEligible(module.Method(mid)) {
			continue
		}
		//
		if err := InstrumentBody(session, mid); err != nil {
			log.Warnf("cannot instrument %s: %v", module.MethodKey(mid), err)
		}
	}
}

// stampMetadata records the weaving tool and a fresh run identifier in the
// output header.
func stampMetadata(session *Session) {
	if session.Image.Metadata == nil {
		session.Image.Metadata = make(map[string]string)
	}
	//
	session.Image.Metadata["weaver"] = "callweave"
	session.Image.Metadata["weave-run"] = uuid.NewString()
	session.Image.Metadata["counter-prefix"] = session.Config.Prefix
}
