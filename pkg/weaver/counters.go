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
	"strings"

	"github.com/callweave/callweave/pkg/binmod"
)

// Counters live on a separate non-generic helper type rather than on the
// instrumented type itself: statics of a generic type are duplicated per
// closed instantiation, which would fragment counts across instantiations
// the collector cannot enumerate.  A single non-generic holder gives one
// counter per method definition.

// SanitizeTypeName flattens a type's mangled name into an identifier-safe
// form, replacing the generic arity delimiter with "_".  The arity is kept
// in the name, so "Box" and "Box`1" never collapse onto each other.
func SanitizeTypeName(def *binmod.TypeDef) string {
	if def.Arity == 0 {
		return def.Name
	}
	//
	return fmt.Sprintf("%s_%d", def.Name, def.Arity)
}

// SanitizeMethodName flattens a method name into an identifier-safe form.
// Note that overloads differing only in the replaced characters receive the
// same counter field and are silently merged.
func SanitizeMethodName(name string) string {
	return strings.NewReplacer("<", "_", ">", "_", ".", "_", "|", "_").Replace(name)
}

// HelperName returns the helper type name of a given target type.
func HelperName(def *binmod.TypeDef) string {
	return SanitizeTypeName(def) + HelperSuffix
}

// CounterName returns the counter field name of a given method, under the
// configured prefix.
func CounterName(prefix, methodName string) string {
	return prefix + SanitizeMethodName(methodName)
}

// GetOrCreateHelper returns the helper type of a given target type, creating
// it when necessary.  Lookup proceeds through the session index first, then
// the module's existing top-level types; only if both miss is a new helper
// created: a public sealed abstract class in the target's namespace,
// appended as a top-level type of the target's module.  The helper is
// non-generic regardless of the target's arity.
func GetOrCreateHelper(session *Session, module *binmod.Module, target binmod.TypeID) binmod.TypeID {
	var (
		def  = module.Type(target)
		name = HelperName(def)
		fqn  = qualify(def.Namespace, name)
	)
	//
	if helper, ok := session.Helpers[fqn]; ok {
		return helper
	}
	//
	if helper, ok := module.LookupType(def.Namespace, name); ok {
		session.Helpers[fqn] = helper
		return helper
	}
	//
	helper := module.AddType(binmod.TypeDef{
		Namespace: def.Namespace,
		Name:      name,
		Flags:     binmod.TypePublic | binmod.TypeSealed | binmod.TypeAbstract,
	})
	//
	session.Helpers[fqn] = helper
	session.Result.HelpersCreated++
	//
	return helper
}

// GetOrCreateCounterField returns the counter field of a given method name on
// a helper type, creating a public static u32 field when absent.
func GetOrCreateCounterField(session *Session, module *binmod.Module, helper binmod.TypeID,
	methodName string) binmod.FieldID {
	//
	var name = CounterName(session.Config.Prefix, methodName)
	//
	if field, ok := module.LookupField(helper, name); ok {
		return field
	}
	//
	return module.AddField(helper, binmod.FieldDef{
		Name:   name,
		Type:   binmod.U32,
		Static: true,
		Public: true,
	})
}

// GetOrCreateCounter resolves the counter of a given method: its helper type
// and counter field, both created on demand in the method's declaring
// module.
func GetOrCreateCounter(session *Session, module *binmod.Module, method binmod.MethodID) Counter {
	var (
		m      = module.Method(method)
		helper = GetOrCreateHelper(session, module, m.Declaring)
		field  = GetOrCreateCounterField(session, module, helper, m.Name)
	)
	//
	return Counter{Module: module, Helper: helper, Field: field}
}

// qualify joins a namespace and a simple name.
func qualify(namespace, name string) string {
	if namespace == "" {
		return name
	}
	//
	return namespace + "." + name
}
