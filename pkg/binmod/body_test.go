package binmod

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertShiftsLaterBranchTargets(t *testing.T) {
	body := &Body{Instructions: []Instruction{
		Instr(NOP),              // 0
		BranchInstr(BR, 3),      // 1
		BranchInstr(BRTRUE, 0),  // 2
		Instr(RET),              // 3
	}}
	//
	body.Insert(2, Instr(NOP), Instr(NOP))
	//
	require.Equal(t, 6, body.Len())
	// Target beyond the splice moves with its instruction
	assert.Equal(t, int64(5), body.Instructions[1].Operand.Int)
	// Target before the splice is untouched
	assert.Equal(t, int64(0), body.Instructions[4].Operand.Int)
}

func TestInsertKeepsBranchToAnchor(t *testing.T) {
	// A branch to the anchor instruction must land on the splice, so a
	// retried call passes through the spliced code again.
	body := &Body{Instructions: []Instruction{
		BranchInstr(BR, 1), // 0
		Instr(NOP),         // 1 (anchor)
		Instr(RET),         // 2
	}}
	//
	body.Insert(1, Instr(POP))
	//
	assert.Equal(t, int64(1), body.Instructions[0].Operand.Int)
	assert.Equal(t, POP, body.Instructions[1].Opcode)
	assert.Equal(t, NOP, body.Instructions[2].Opcode)
}

func TestInsertAdjustsHandlerRegions(t *testing.T) {
	body := &Body{
		Instructions: []Instruction{
			Instr(NOP), // 0
			Instr(NOP), // 1
			Instr(NOP), // 2
			Instr(RET), // 3
		},
		Handlers: []Handler{
			{Kind: HandlerCatch, TryStart: 0, TryEnd: 2, HandlerStart: 2, HandlerEnd: 3},
		},
	}
	//
	body.Insert(0, Instr(NOP), Instr(NOP), Instr(NOP), Instr(NOP))
	//
	h := body.Handlers[0]
	// A region starting at the splice point grows to cover it
	assert.Equal(t, uint32(0), h.TryStart)
	assert.Equal(t, uint32(6), h.TryEnd)
	assert.Equal(t, uint32(6), h.HandlerStart)
	assert.Equal(t, uint32(7), h.HandlerEnd)
}

func TestCompactSelectsShortConstantForm(t *testing.T) {
	body := &Body{Instructions: []Instruction{
		IntInstr(LDC_I4, 1),
		IntInstr(LDC_I4, 1000),
		IntInstr(LDC_I4_S, -120),
		Instr(RET),
	}}
	//
	body.Compact()
	//
	assert.Equal(t, LDC_I4_S, body.Instructions[0].Opcode)
	assert.Equal(t, LDC_I4, body.Instructions[1].Opcode)
	assert.Equal(t, LDC_I4_S, body.Instructions[2].Opcode)
}

func TestCompactShortensNearBranch(t *testing.T) {
	body := &Body{Instructions: []Instruction{
		BranchInstr(BR, 2),
		Instr(NOP),
		Instr(RET),
	}}
	//
	body.Compact()
	//
	assert.Equal(t, BR_S, body.Instructions[0].Opcode)
}

func TestCompactWidensFarBranch(t *testing.T) {
	instrs := []Instruction{BranchInstr(BR_S, 41)}
	// 40 long constants give 200 bytes of distance, beyond a short branch
	for i := 0; i < 40; i++ {
		instrs = append(instrs, IntInstr(LDC_I4, 1000))
	}
	//
	instrs = append(instrs, Instr(RET))
	body := &Body{Instructions: instrs}
	//
	body.Compact()
	//
	assert.Equal(t, BR, body.Instructions[0].Opcode)
}

func TestCompactAssignsOffsets(t *testing.T) {
	body := &Body{Instructions: []Instruction{
		IntInstr(LDC_I4, 1), // short => 2 bytes
		Instr(ADD),          // 1 byte
		Instr(RET),
	}}
	//
	body.Compact()
	//
	assert.Equal(t, uint32(0), body.Instructions[0].Offset)
	assert.Equal(t, uint32(2), body.Instructions[1].Offset)
	assert.Equal(t, uint32(3), body.Instructions[2].Offset)
}

func TestCompactBackwardBranch(t *testing.T) {
	body := &Body{Instructions: []Instruction{
		Instr(NOP),
		BranchInstr(BRFALSE, 0),
		Instr(RET),
	}}
	//
	body.Compact()
	//
	assert.Equal(t, BRFALSE_S, body.Instructions[1].Opcode)
}
