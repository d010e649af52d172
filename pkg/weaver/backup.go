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
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// BackupExtension is appended to a file's name to form its backup name.
const BackupExtension = ".bak"

// PathRecordExtension is appended to a backup's name to form the sidecar
// recording where the original lives.  The sidecar makes restoration work
// when the backup directory is not the original directory.
const PathRecordExtension = ".path"

// CreateBackups copies the target module, and its symbol file when one was
// detected, into the backup directory, writing a path-record sidecar next to
// each copy.
func CreateBackups(session *Session) error {
	var (
		dir   = session.Config.BackupDir
		image = session.Image
	)
	//
	if dir == "" {
		dir = filepath.Dir(image.Path)
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	//
	if err := backupFile(image.Path, dir); err != nil {
		return err
	}
	//
	if image.SymbolPath != "" {
		return backupFile(image.SymbolPath, dir)
	}
	//
	return nil
}

// backupFile copies one file to "<dir>/<filename>.bak" and writes the
// "<dir>/<filename>.bak.path" sidecar holding the original absolute path.
func backupFile(path, dir string) error {
	abs, err := filepath.Abs(path)
	//
	if err != nil {
		return err
	}
	//
	data, err := os.ReadFile(path)
	//
	if err != nil {
		return err
	}
	//
	backup := filepath.Join(dir, filepath.Base(path)+BackupExtension)
	//
	if err := os.WriteFile(backup, data, 0644); err != nil {
		return err
	}
	//
	return os.WriteFile(backup+PathRecordExtension, []byte(abs), 0644)
}

// RestoreBackups copies every backup in a given directory back to the
// location its path-record sidecar names.  Backups without a sidecar are
// skipped with a warning.  Restoration is a host-collaborator operation; the
// weaver itself only creates backups.
func RestoreBackups(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	//
	if err != nil {
		return 0, err
	}
	//
	restored := 0
	//
	for _, entry := range entries {
		name := entry.Name()
		//
		if entry.IsDir() || !strings.HasSuffix(name, BackupExtension) {
			continue
		}
		//
		backup := filepath.Join(dir, name)
		//
		record, err := os.ReadFile(backup + PathRecordExtension)
		//
		if err != nil {
			log.Warnf("%s: no path record, skipping", backup)
			continue
		}
		//
		data, err := os.ReadFile(backup)
		//
		if err != nil {
			return restored, err
		}
		//
		original := strings.TrimSpace(string(record))
		//
		if err := os.WriteFile(original, data, 0644); err != nil {
			return restored, fmt.Errorf("restoring %s: %w", original, err)
		}
		//
		restored++
	}
	//
	return restored, nil
}
