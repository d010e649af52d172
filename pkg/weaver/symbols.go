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
	"os"

	"github.com/callweave/callweave/pkg/binmod"
	log "github.com/sirupsen/logrus"
)

// ReconcileSymbolName renames the symbol file emitted by the writer to match
// the naming convention detected at load time.  The writer always emits the
// long convention ("<base>.<ext>.sym"); when the input used the short
// convention ("<base>.sym"), downstream loaders probing only that convention
// would miss the fresh symbols, so any stale short-convention file is
// removed and the long one renamed over it.
func ReconcileSymbolName(session *Session, written string) error {
	if written == "" || !session.Image.ShortSymbols {
		return nil
	}
	//
	short := binmod.ShortSymbolPath(trimSymbolExtension(written))
	//
	if short == written {
		return nil
	}
	//
	if err := os.Remove(short); err != nil && !os.IsNotExist(err) {
		return err
	}
	//
	log.Debugf("renaming symbols %s -> %s", written, short)
	//
	return os.Rename(written, short)
}

// trimSymbolExtension strips the trailing symbol extension from a
// long-convention symbol path, recovering the module path it was derived
// from.
func trimSymbolExtension(path string) string {
	return path[:len(path)-len(binmod.SymbolExtension)]
}
