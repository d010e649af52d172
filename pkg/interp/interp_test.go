package interp

import (
	"testing"

	"github.com/callweave/callweave/pkg/binmod"
	"github.com/callweave/callweave/pkg/weaver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func image(module *binmod.Module) *binmod.Image {
	return &binmod.Image{Module: module}
}

func TestInvokeArithmetic(t *testing.T) {
	module := binmod.NewModule("app")
	foo := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Foo"})
	sum := module.AddMethod(foo, binmod.MethodDef{
		Name: "Sum", Return: binmod.I32,
		Body: &binmod.Body{Instructions: []binmod.Instruction{
			binmod.IntInstr(binmod.LDC_I4, 2),
			binmod.IntInstr(binmod.LDC_I4, 3),
			binmod.Instr(binmod.ADD),
			binmod.Instr(binmod.RET),
		}},
	})
	//
	result, err := New(image(module)).Invoke(sum, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), result)
}

func TestInvokeDispatchesCalls(t *testing.T) {
	module := binmod.NewModule("app")
	foo := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Foo"})
	inc := module.AddMethod(foo, binmod.MethodDef{
		Name: "Inc", Params: []binmod.ValueType{binmod.I32}, Return: binmod.I32,
		Flags: binmod.MethodStatic,
		Body: &binmod.Body{Instructions: []binmod.Instruction{
			binmod.VarInstr(binmod.LDARG, 0),
			binmod.IntInstr(binmod.LDC_I4, 1),
			binmod.Instr(binmod.ADD),
			binmod.Instr(binmod.RET),
		}},
	})
	main := module.AddMethod(foo, binmod.MethodDef{
		Name: "Main", Return: binmod.I32,
		Body: &binmod.Body{Instructions: []binmod.Instruction{
			binmod.IntInstr(binmod.LDC_I4, 41),
			binmod.MethodInstr(binmod.CALL, binmod.DefMethodHandle(inc)),
			binmod.Instr(binmod.RET),
		}},
	})
	//
	result, err := New(image(module)).Invoke(main, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), result)
}

func TestInvokeLoopWithBranches(t *testing.T) {
	// Sum 1..n by counting a local down to zero.
	module := binmod.NewModule("app")
	foo := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Foo"})
	sum := module.AddMethod(foo, binmod.MethodDef{
		Name: "Triangle", Params: []binmod.ValueType{binmod.I32}, Return: binmod.I32,
		Body: &binmod.Body{
			Instructions: []binmod.Instruction{
				binmod.VarInstr(binmod.LDARG, 0),     // 0: n
				binmod.VarInstr(binmod.STLOC, 0),     // 1: i = n
				binmod.IntInstr(binmod.LDC_I4, 0),    // 2: acc
				binmod.VarInstr(binmod.STLOC, 1),     // 3
				binmod.VarInstr(binmod.LDLOC, 0),     // 4: loop head
				binmod.BranchInstr(binmod.BRFALSE, 15), // 5: done when i == 0
				binmod.VarInstr(binmod.LDLOC, 1),     // 6
				binmod.VarInstr(binmod.LDLOC, 0),     // 7
				binmod.Instr(binmod.ADD),             // 8: acc += i
				binmod.VarInstr(binmod.STLOC, 1),     // 9
				binmod.VarInstr(binmod.LDLOC, 0),     // 10
				binmod.IntInstr(binmod.LDC_I4, 1),    // 11
				binmod.Instr(binmod.SUB),             // 12: i -= 1
				binmod.VarInstr(binmod.STLOC, 0),     // 13
				binmod.BranchInstr(binmod.BR, 4),     // 14
				binmod.VarInstr(binmod.LDLOC, 1),     // 15
				binmod.Instr(binmod.RET),             // 16
			},
			Locals: []binmod.ValueType{binmod.I32, binmod.I32},
		},
	})
	//
	result, err := New(image(module)).Invoke(sum, []uint64{10})
	require.NoError(t, err)
	assert.Equal(t, uint64(55), result)
}

func TestWovenCounterAdvances(t *testing.T) {
	module := binmod.NewModule("app")
	foo := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Foo", Flags: binmod.TypePublic})
	bar := module.AddMethod(foo, binmod.MethodDef{
		Name: "Bar", Return: binmod.Void,
		Body: &binmod.Body{Instructions: []binmod.Instruction{binmod.Instr(binmod.RET)}},
	})
	// Weave the entry prelude in memory, then execute it
	config := weaver.NewConfig("app.bin")
	session := weaver.NewSession(&config, image(module))
	require.NoError(t, weaver.InstrumentBody(session, bar))
	//
	machine := New(image(module))
	//
	for i := 0; i < 3; i++ {
		_, err := machine.Invoke(bar, nil)
		require.NoError(t, err)
	}
	//
	helper, ok := module.LookupType("Demo", "Foo_InvokeCounters")
	require.True(t, ok)
	counter, ok := module.LookupField(helper, "_invokeCount_Bar")
	require.True(t, ok)
	assert.Equal(t, uint64(3), module.Field(counter).Value)
}

func TestWovenCallSiteCounterAdvances(t *testing.T) {
	module := binmod.NewModule("app")
	natives := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Natives", Flags: binmod.TypePublic})
	ping := module.AddMethod(natives, binmod.MethodDef{
		Name: "Ping", Return: binmod.Void, Flags: binmod.MethodStatic | binmod.MethodExtern,
	})
	app := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "App", Flags: binmod.TypePublic})
	main := module.AddMethod(app, binmod.MethodDef{
		Name: "Main", Return: binmod.Void,
		Body: &binmod.Body{Instructions: []binmod.Instruction{
			binmod.MethodInstr(binmod.CALL, binmod.DefMethodHandle(ping)),
			binmod.MethodInstr(binmod.CALL, binmod.DefMethodHandle(ping)),
			binmod.Instr(binmod.RET),
		}},
	})
	//
	config := weaver.NewConfig("app.bin")
	session := weaver.NewSession(&config, image(module))
	weaver.DiscoverTargets(session, module.TopLevelSnapshot())
	weaver.ScanSites(session)
	weaver.SpliceSites(session)
	//
	_, err := New(image(module)).Invoke(main, nil)
	require.NoError(t, err)
	//
	helper, ok := module.LookupType("Demo", "Natives_InvokeCounters")
	require.True(t, ok)
	counter, ok := module.LookupField(helper, "_invokeCount_Ping")
	require.True(t, ok)
	// Both call sites were executed once each
	assert.Equal(t, uint64(2), module.Field(counter).Value)
}

func TestFindMethod(t *testing.T) {
	module := binmod.NewModule("app")
	foo := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Foo"})
	module.AddMethod(foo, binmod.MethodDef{Name: "Bar", Return: binmod.Void})
	//
	machine := New(image(module))
	//
	_, ok := machine.FindMethod("Demo.Foo::Bar")
	assert.True(t, ok)
	_, ok = machine.FindMethod("Demo.Foo::Barn")
	assert.False(t, ok)
}

func TestStepLimitAborts(t *testing.T) {
	module := binmod.NewModule("app")
	foo := module.AddType(binmod.TypeDef{Namespace: "Demo", Name: "Foo"})
	spin := module.AddMethod(foo, binmod.MethodDef{
		Name: "Spin", Return: binmod.Void,
		Body: &binmod.Body{Instructions: []binmod.Instruction{
			binmod.BranchInstr(binmod.BR, 0),
			binmod.Instr(binmod.RET),
		}},
	})
	//
	machine := New(image(module))
	machine.StepLimit = 1000
	//
	_, err := machine.Invoke(spin, nil)
	assert.Error(t, err)
}
