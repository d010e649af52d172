package binmod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFullNameOfNestedGenericType(t *testing.T) {
	module := NewModule("app")
	outer := module.AddType(TypeDef{Namespace: "Demo", Name: "Outer"})
	inner := module.AddNestedType(outer, TypeDef{Name: "Inner", Arity: 2})
	//
	assert.Equal(t, "Demo.Outer", module.FullName(outer))
	assert.Equal(t, "Demo.Outer/Inner`2", module.FullName(inner))
	// Nested types inherit the enclosing namespace
	assert.Equal(t, "Demo", module.Type(inner).Namespace)
}

func TestMethodKeyIncludesSignature(t *testing.T) {
	module := NewModule("app")
	foo := module.AddType(TypeDef{Namespace: "Demo", Name: "Foo"})
	bar := module.AddMethod(foo, MethodDef{Name: "Bar", Params: []ValueType{I32, Object}})
	//
	assert.Equal(t, "Demo.Foo::Bar(i32,object)", module.MethodKey(bar))
}

func TestLookupTypeByMangledName(t *testing.T) {
	module := NewModule("app")
	module.AddType(TypeDef{Namespace: "Demo", Name: "Box", Arity: 1})
	//
	_, ok := module.LookupType("Demo", "Box`1")
	assert.True(t, ok)
	//
	_, ok = module.LookupType("Demo", "Box")
	assert.False(t, ok)
}

func TestImportFieldDeduplicates(t *testing.T) {
	var (
		lib = NewModule("lib")
		app = NewModule("app")
	)
	//
	holder := lib.AddType(TypeDef{Namespace: "Lib", Name: "Holder"})
	field := lib.AddField(holder, FieldDef{Name: "count", Type: U32, Static: true})
	//
	h1 := app.ImportField(lib, field)
	h2 := app.ImportField(lib, field)
	//
	require.True(t, h1.External)
	assert.Equal(t, h1, h2)
	assert.Len(t, app.FieldRefs, 1)
	// The declaring type was imported alongside the field
	assert.Len(t, app.TypeRefs, 1)
	assert.Equal(t, []string{"lib"}, app.Requires)
}

func TestFieldKeyOfExternalMatchesDefinition(t *testing.T) {
	var (
		lib = NewModule("lib")
		app = NewModule("app")
	)
	//
	holder := lib.AddType(TypeDef{Namespace: "Lib", Name: "Holder"})
	field := lib.AddField(holder, FieldDef{Name: "count", Type: U32, Static: true})
	handle := app.ImportField(lib, field)
	//
	assert.Equal(t, "Lib.Holder::count", app.FieldKeyOf(handle))
	assert.Equal(t, "Lib.Holder::count", lib.FieldKeyOf(DefFieldHandle(field)))
}

func TestTopLevelSnapshotUnaffectedByAppend(t *testing.T) {
	module := NewModule("app")
	module.AddType(TypeDef{Namespace: "Demo", Name: "A"})
	//
	snapshot := module.TopLevelSnapshot()
	module.AddType(TypeDef{Namespace: "Demo", Name: "B"})
	//
	assert.Len(t, snapshot, 1)
	assert.Len(t, module.TopLevel, 2)
}
