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
package collect

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/callweave/callweave/pkg/binmod"
)

// Entry reports the invocation count credited to one method, recovered from
// a counter field of a helper type.
type Entry struct {
	// Namespace of the instrumented type.
	Namespace string
	// TypeName is the instrumented type's simple name (arity stripped).
	TypeName string
	// Arity is the generic arity recovered from the sanitized helper name.
	Arity uint
	// Method is the instrumented method's sanitized name.
	Method string
	// Count is the recorded number of invocations.
	Count uint32
}

// TypeKey returns the display name of the instrumented type, re-attaching
// the recovered generic arity.
func (p *Entry) TypeKey() string {
	var name = p.TypeName
	//
	if p.Arity > 0 {
		name = fmt.Sprintf("%s<%d>", name, p.Arity)
	}
	//
	if p.Namespace == "" {
		return name
	}
	//
	return p.Namespace + "." + name
}

// Collect walks a stopped-machine image and reads every counter out of it:
// for each type whose simple name ends in the helper suffix, every public
// static u32 field whose name begins with the counter prefix yields an
// entry.  The method is identified by stripping the prefix from the field
// name and the suffix from the type name; generic arity is recovered by
// parsing the trailing "_<digits>" of the sanitized name.  Counters which
// were never hit (value zero) are suppressed.
func Collect(module *binmod.Module, prefix, suffix string) []Entry {
	var entries []Entry
	//
	for id := range module.Types {
		def := module.Type(binmod.TypeID(id))
		//
		if !strings.HasSuffix(def.Name, suffix) {
			continue
		}
		//
		base, arity := splitArity(strings.TrimSuffix(def.Name, suffix))
		//
		for _, fid := range def.Fields {
			field := module.Field(fid)
			//
			if !field.Static || !field.Public || field.Type != binmod.U32 {
				continue
			}
			//
			if !strings.HasPrefix(field.Name, prefix) || field.Value == 0 {
				continue
			}
			//
			entries = append(entries, Entry{
				Namespace: def.Namespace,
				TypeName:  base,
				Arity:     arity,
				Method:    strings.TrimPrefix(field.Name, prefix),
				Count:     uint32(field.Value),
			})
		}
	}
	//
	return entries
}

// splitArity parses the trailing "_<digits>" of a sanitized type name back
// into a simple name and a generic arity.
func splitArity(name string) (string, uint) {
	i := strings.LastIndex(name, "_")
	//
	if i < 0 || i == len(name)-1 {
		return name, 0
	}
	//
	arity, err := strconv.ParseUint(name[i+1:], 10, 32)
	//
	if err != nil {
		return name, 0
	}
	//
	return name[:i], uint(arity)
}

// Report writes a grouped, column-aligned listing of collected entries.
// Entries are grouped by instrumented type (alphabetically), with methods
// ordered by descending count.  The width bounds each output line; overlong
// method names are truncated with an ellipsis.
func Report(w io.Writer, entries []Entry, width int) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no invocations recorded")
		return
	}
	//
	if width < 20 {
		width = 20
	}
	//
	groups := make(map[string][]Entry)
	//
	for _, e := range entries {
		groups[e.TypeKey()] = append(groups[e.TypeKey()], e)
	}
	//
	keys := make([]string, 0, len(groups))
	//
	for key := range groups {
		keys = append(keys, key)
	}
	//
	sort.Strings(keys)
	//
	for _, key := range keys {
		group := groups[key]
		//
		sort.Slice(group, func(i, j int) bool {
			if group[i].Count != group[j].Count {
				return group[i].Count > group[j].Count
			}
			//
			return group[i].Method < group[j].Method
		})
		//
		fmt.Fprintf(w, "%s\n", key)
		//
		for _, e := range group {
			name := e.Method
			// Reserve room for indent, count column and a space
			limit := width - 14
			//
			if len(name) > limit {
				name = name[:limit-1] + "…"
			}
			//
			fmt.Fprintf(w, "  %-*s %10d\n", limit, name, e.Count)
		}
	}
}
