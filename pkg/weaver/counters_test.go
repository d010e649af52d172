package weaver

import (
	"testing"

	"github.com/callweave/callweave/pkg/binmod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionOver(module *binmod.Module) *Session {
	config := NewConfig("app.bin")
	//
	return NewSession(&config, &binmod.Image{Module: module})
}

func TestSanitizeMethodName(t *testing.T) {
	assert.Equal(t, "Bar", SanitizeMethodName("Bar"))
	assert.Equal(t, "_ctor", SanitizeMethodName(".ctor"))
	assert.Equal(t, "_Main_b__0", SanitizeMethodName("<Main>b__0"))
	assert.Equal(t, "a_b", SanitizeMethodName("a|b"))
}

func TestHelperNamePreservesArity(t *testing.T) {
	assert.Equal(t, "Foo_InvokeCounters", HelperName(&binmod.TypeDef{Name: "Foo"}))
	assert.Equal(t, "Box_1_InvokeCounters", HelperName(&binmod.TypeDef{Name: "Box", Arity: 1}))
	// Distinct arities never share a helper
	assert.NotEqual(t,
		HelperName(&binmod.TypeDef{Name: "Box"}),
		HelperName(&binmod.TypeDef{Name: "Box", Arity: 1}))
}

func TestGetOrCreateHelperIsIdempotent(t *testing.T) {
	module := simpleModule()
	session := sessionOver(module)
	//
	h1 := GetOrCreateHelper(session, module, 0)
	h2 := GetOrCreateHelper(session, module, 0)
	//
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, session.Result.HelpersCreated)
	// Helper is top-level, in the target's namespace
	def := module.Type(h1)
	assert.Equal(t, binmod.NoType, def.Enclosing)
	assert.Equal(t, "Demo", def.Namespace)
}

func TestGetOrCreateHelperAdoptsExistingType(t *testing.T) {
	module := simpleModule()
	existing := module.AddType(binmod.TypeDef{
		Namespace: "Demo", Name: "Foo_InvokeCounters",
		Flags: binmod.TypePublic | binmod.TypeSealed | binmod.TypeAbstract,
	})
	// A fresh session finds the module's pre-existing helper rather than
	// creating a second one
	session := sessionOver(module)
	//
	assert.Equal(t, existing, GetOrCreateHelper(session, module, 0))
	assert.Zero(t, session.Result.HelpersCreated)
}

func TestGetOrCreateCounterFieldReused(t *testing.T) {
	module := simpleModule()
	session := sessionOver(module)
	helper := GetOrCreateHelper(session, module, 0)
	//
	f1 := GetOrCreateCounterField(session, module, helper, "Bar")
	f2 := GetOrCreateCounterField(session, module, helper, "Bar")
	//
	assert.Equal(t, f1, f2)
	require.Len(t, module.Type(helper).Fields, 1)
}

func TestSanitizationCollisionsMergeCounters(t *testing.T) {
	// Names differing only in replaced characters collapse onto one field;
	// their counts merge silently.
	module := simpleModule()
	session := sessionOver(module)
	helper := GetOrCreateHelper(session, module, 0)
	//
	f1 := GetOrCreateCounterField(session, module, helper, "a.b")
	f2 := GetOrCreateCounterField(session, module, helper, "a|b")
	//
	assert.Equal(t, f1, f2)
}
