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
	"sort"

	"github.com/callweave/callweave/pkg/binmod"
	log "github.com/sirupsen/logrus"
)

// Abstract, interface and external methods have no body to instrument.  To
// still count their invocations, the weaver increments their counter at
// every call site targeting them, across the entire module.  This runs in
// two passes: discovery registers every bodyless eligible method and
// pre-allocates its counter; the site scan then matches call instructions
// against the registered signatures.  Discovery completes entirely before
// the scan begins.

// DiscoverTargets is pass A: walk all eligible types depth-first, and for
// each bodyless eligible method, pre-allocate its helper type and counter
// field and register it in the instrumentation context under its canonical
// signature.  The walk covers the given snapshot of the top-level type list,
// so helper types created along the way stay out of the iteration.
func DiscoverTargets(session *Session, types []binmod.TypeID) {
	for _, id := range types {
		discoverInType(session, session.Module(), id)
	}
}

// discoverInType processes one type and, recursively, its nested types.
func discoverInType(session *Session, module *binmod.Module, id binmod.TypeID) {
	if !session.Filter.TypeEligible(module, id) {
		return
	}
	// Nested types first (depth-first pre-order over the declaration tree)
	for _, nested := range module.Type(id).Nested {
		discoverInType(session, module, nested)
	}
	//
	for _, mid := range module.Type(id).Methods {
		if !session.Filter.CallerSideEligible(module.Method(mid)) {
			continue
		}
		//
		key := module.MethodKey(mid)
		//
		if _, ok := session.Counters[key]; ok {
			continue
		}
		//
		session.Counters[key] = GetOrCreateCounter(session, module, mid)
		//
		log.Debugf("caller-side target %s", key)
	}
}

// ScanSites is pass B: walk every method body in the module and record each
// static or virtual call instruction whose callee's canonical signature was
// registered during discovery.  Calls to anything outside the registered set
// are left untouched.  The filter governs which callees are counted, not
// which callers are scanned.
func ScanSites(session *Session) {
	var module = session.Module()
	//
	for mid := range module.Methods {
		var (
			method = binmod.MethodID(mid)
			m      = module.Method(method)
		)
		//
		if m.Body == nil {
			continue
		}
		//
		for i := range m.Body.Instructions {
			instr := &m.Body.Instructions[i]
			//
			if !instr.Opcode.IsCall() {
				continue
			}
			//
			key := module.MethodKeyOf(instr.Operand.Member)
			//
			if _, ok := session.Counters[key]; !ok {
				continue
			}
			//
			session.Sites[key] = append(session.Sites[key], CallSite{
				Caller: method,
				Index:  i,
				Callee: key,
			})
		}
	}
}

// SpliceSites splices the increment sequence immediately before each
// discovered call site, in discovery order: methods in declaration order,
// sites within a method by ascending instruction index.  Earlier splices
// into the same body shift the recorded indices of later sites, which is
// accounted for by a running offset; processing in ascending index order
// keeps that accounting correct.  A failure at one site is logged and does
// not prevent the remaining sites from being spliced.
func SpliceSites(session *Session) {
	var (
		module   = session.Module()
		byCaller = make(map[binmod.MethodID][]CallSite)
	)
	//
	for _, sites := range session.Sites {
		for _, site := range sites {
			byCaller[site.Caller] = append(byCaller[site.Caller], site)
		}
	}
	//
	for mid := range module.Methods {
		var (
			method  = binmod.MethodID(mid)
			sites   = byCaller[method]
			shifted = 0
		)
		//
		if len(sites) == 0 {
			continue
		}
		//
		sort.Slice(sites, func(i, j int) bool { return sites[i].Index < sites[j].Index })
		//
		for _, site := range sites {
			counter, ok := session.Counters[site.Callee]
			//
			if !ok {
				log.Warnf("no counter for call site %s in %s, skipping",
					site.Callee, module.MethodKey(site.Caller))
				continue
			}
			//
			splicePrelude(session, site.Caller, site.Index+shifted, counter)
			//
			shifted += PreludeLength
			session.Result.CallSitesSpliced++
		}
		//
		module.Method(method).Body.Compact()
	}
}
