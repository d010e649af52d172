package weaver

import (
	"testing"

	"github.com/callweave/callweave/pkg/binmod"
	"github.com/stretchr/testify/assert"
)

func filterOver(includes, excludes []string) (*Filter, *Config) {
	config := NewConfig("app.bin")
	config.Includes = includes
	config.Excludes = excludes
	//
	return NewFilter(&config), &config
}

func TestTypeEligibleEmptyIncludeMeansAll(t *testing.T) {
	filter, _ := filterOver(nil, nil)
	module := simpleModule()
	//
	assert.True(t, filter.TypeEligible(module, 0))
}

func TestTypeEligibleExcludeTakesPrecedence(t *testing.T) {
	filter, _ := filterOver([]string{"Demo"}, []string{"Demo"})
	module := simpleModule()
	//
	assert.False(t, filter.TypeEligible(module, 0))
}

func TestTypeEligiblePrefixIsSegmentAware(t *testing.T) {
	module := binmod.NewModule("app")
	module.AddType(binmod.TypeDef{Namespace: "Demo.Keeper", Name: "A"})
	// "Demo.Keep" must not match namespace "Demo.Keeper"
	filter, _ := filterOver([]string{"Demo.Keep"}, nil)
	//
	assert.False(t, filter.TypeEligible(module, 0))
}

func TestTypeEligibleSkipsGeneratedNames(t *testing.T) {
	module := binmod.NewModule("app")
	module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "<Closure>d__0"})
	//
	filter, config := filterOver(nil, nil)
	assert.False(t, filter.TypeEligible(module, 0))
	// Unless synthesized members were explicitly requested
	config.InstrumentCompilerGenerated = true
	assert.True(t, filter.TypeEligible(module, 0))
}

func TestTypeEligibleSkipsGeneratedAttribute(t *testing.T) {
	module := binmod.NewModule("app")
	module.AddType(binmod.TypeDef{
		Namespace: "Demo", Name: "Lifted",
		Attributes: []string{CompilerGeneratedAttribute},
	})
	//
	filter, _ := filterOver(nil, nil)
	assert.False(t, filter.TypeEligible(module, 0))
}

func TestTypeEligibleNestedInheritsNamespacePosition(t *testing.T) {
	module := binmod.NewModule("app")
	outer := module.AddType(binmod.TypeDef{Namespace: "Demo.Keep", Name: "Outer"})
	inner := module.AddNestedType(outer, binmod.TypeDef{Name: "Inner"})
	//
	filter, _ := filterOver([]string{"Demo.Keep"}, nil)
	assert.True(t, filter.TypeEligible(module, inner))
	//
	filter, _ = filterOver(nil, []string{"Demo.Keep"})
	assert.False(t, filter.TypeEligible(module, inner))
}

func TestBodyEligible(t *testing.T) {
	filter, config := filterOver(nil, nil)
	body := &binmod.Body{Instructions: []binmod.Instruction{binmod.Instr(binmod.RET)}}
	//
	assert.True(t, filter.BodyEligible(&binmod.MethodDef{Name: "Plain", Body: body}))
	// Property accessors receive no special treatment
	assert.True(t, filter.BodyEligible(&binmod.MethodDef{Name: "get_Size", Body: body}))
	//
	assert.False(t, filter.BodyEligible(&binmod.MethodDef{Name: "NoBody"}))
	assert.False(t, filter.BodyEligible(&binmod.MethodDef{Name: "Virt", Body: body, Flags: binmod.MethodAbstract}))
	assert.False(t, filter.BodyEligible(&binmod.MethodDef{Name: "<Main>b__0", Body: body}))
	//
	config.InstrumentCompilerGenerated = true
	assert.True(t, filter.BodyEligible(&binmod.MethodDef{Name: "<Main>b__0", Body: body}))
}

func TestCallerSideEligible(t *testing.T) {
	filter, _ := filterOver(nil, nil)
	body := &binmod.Body{Instructions: []binmod.Instruction{binmod.Instr(binmod.RET)}}
	//
	assert.True(t, filter.CallerSideEligible(&binmod.MethodDef{Name: "Abstract", Flags: binmod.MethodAbstract}))
	assert.True(t, filter.CallerSideEligible(&binmod.MethodDef{Name: "Native", Flags: binmod.MethodExtern}))
	assert.True(t, filter.CallerSideEligible(&binmod.MethodDef{Name: "Slot"}))
	//
	assert.False(t, filter.CallerSideEligible(&binmod.MethodDef{Name: "Concrete", Body: body}))
	assert.False(t, filter.CallerSideEligible(&binmod.MethodDef{Name: "<Gen>d"}))
}
