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
	"strings"

	"github.com/callweave/callweave/pkg/binmod"
	log "github.com/sirupsen/logrus"
)

// AlreadyInstrumented detects prior instrumentation: a field whose name
// begins with the counter prefix, on any top-level type of the target module
// or of any resolvable dependency.  This marker is sufficient even when the
// prior run was aborted midway.  Dependencies which cannot be resolved are
// skipped with a warning and do not block the check.
func AlreadyInstrumented(image *binmod.Image, prefix string) bool {
	if moduleInstrumented(image.Module, prefix) {
		return true
	}
	//
	if image.Resolver == nil {
		return false
	}
	//
	for _, name := range image.Module.Requires {
		dep, err := image.Resolver.Resolve(name)
		//
		if err != nil {
			log.Warnf("cannot scan types of dependency %s: %v", name, err)
			continue
		}
		//
		if moduleInstrumented(dep.Module, prefix) {
			return true
		}
	}
	//
	return false
}

// moduleInstrumented scans the top-level types of one module for a
// prefix-named field.
func moduleInstrumented(module *binmod.Module, prefix string) bool {
	for _, id := range module.TopLevel {
		for _, fid := range module.Type(id).Fields {
			if strings.HasPrefix(module.Field(fid).Name, prefix) {
				return true
			}
		}
	}
	//
	return false
}
