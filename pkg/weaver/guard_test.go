package weaver

import (
	"testing"

	"github.com/callweave/callweave/pkg/binmod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardDetectsPrefixField(t *testing.T) {
	module := simpleModule()
	image := &binmod.Image{Module: module}
	//
	assert.False(t, AlreadyInstrumented(image, DefaultPrefix))
	// Any prefix-named field on a top-level type is a sufficient marker,
	// even from an aborted run
	module.AddField(0, binmod.FieldDef{Name: "_invokeCount_Bar", Type: binmod.U32, Static: true})
	assert.True(t, AlreadyInstrumented(image, DefaultPrefix))
}

func TestGuardHonoursConfiguredPrefix(t *testing.T) {
	module := simpleModule()
	module.AddField(0, binmod.FieldDef{Name: "_hits_Bar", Type: binmod.U32, Static: true})
	image := &binmod.Image{Module: module}
	//
	assert.False(t, AlreadyInstrumented(image, DefaultPrefix))
	assert.True(t, AlreadyInstrumented(image, "_hits_"))
}

func TestGuardScansResolvableDependencies(t *testing.T) {
	var (
		dir = t.TempDir()
		lib = binmod.NewModule("lib")
	)
	//
	holder := lib.AddType(binmod.TypeDef{Namespace: "Lib", Name: "Api_InvokeCounters"})
	lib.AddField(holder, binmod.FieldDef{Name: "_invokeCount_Call", Type: binmod.U32, Static: true})
	saveModule(t, dir, "lib.bin", lib, nil)
	//
	module := simpleModule()
	module.Require("lib")
	//
	image := &binmod.Image{Module: module, Resolver: binmod.NewResolver(dir)}
	assert.True(t, AlreadyInstrumented(image, DefaultPrefix))
}

func TestGuardSkipsUnresolvableDependencies(t *testing.T) {
	module := simpleModule()
	module.Require("nowhere")
	// An unresolvable dependency is skipped with a warning, not fatal
	image := &binmod.Image{Module: module, Resolver: binmod.NewResolver(t.TempDir())}
	assert.False(t, AlreadyInstrumented(image, DefaultPrefix))
}

func TestGuardIgnoresNestedTypeFields(t *testing.T) {
	// The marker scan covers top-level types only
	module := binmod.NewModule("app")
	outer := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Outer"})
	inner := module.AddNestedType(outer, binmod.TypeDef{Name: "Inner"})
	module.AddField(inner, binmod.FieldDef{Name: "_invokeCount_X", Type: binmod.U32, Static: true})
	//
	image := &binmod.Image{Module: module}
	require.False(t, AlreadyInstrumented(image, DefaultPrefix))
}
