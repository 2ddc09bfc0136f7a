package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/asm"
	"tigerc/internal/frame"
	"tigerc/internal/temp"
)

func Test_Color_TwoInterferingTempsGetDistinctRegisters(t *testing.T) {
	g := temp.NewGensym(frame.FirstFreeTemp)
	a, b := g.NewTemp(), g.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Op("mov 'd0, 2", []temp.Temp{b}, nil),
		asm.Op("use 's0, 's1", nil, []temp.Temp{a, b}),
	}
	ig := BuildInterferenceGraph(BuildFlowGraph(instrs))

	result := Color(ig, []temp.Temp{a, b}, frame.ConvAMD64)
	require.Empty(t, result.Spills)
	require.Contains(t, result.Allocation, a)
	require.Contains(t, result.Allocation, b)
	assert.NotEqual(t, result.Allocation[a], result.Allocation[b])
}

func Test_Color_CoalescesAMoveBetweenNonInterferingTemps(t *testing.T) {
	g := temp.NewGensym(frame.FirstFreeTemp)
	a, b := g.NewTemp(), g.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Mov("mov 'd0, 's0", b, a),
		asm.Op("use 's0", nil, []temp.Temp{b}),
	}
	ig := BuildInterferenceGraph(BuildFlowGraph(instrs))

	result := Color(ig, []temp.Temp{a, b}, frame.ConvAMD64)
	require.Empty(t, result.Spills)
	assert.Equal(t, result.Allocation[a], result.Allocation[b])
}

func Test_Color_PrecoloredSetCoversEveryMachineRegisterRole(t *testing.T) {
	set := PrecoloredSet(frame.ConvAMD64)
	assert.True(t, set[frame.ConvAMD64.ReturnValue()])
	assert.True(t, set[frame.ConvAMD64.FramePointer()])
	assert.True(t, set[frame.ConvAMD64.StackPointer()])
	for _, r := range frame.ConvAMD64.ArgRegisters() {
		assert.True(t, set[r])
	}
	for _, r := range frame.ConvAMD64.CalleeSaved() {
		assert.True(t, set[r])
	}
}

func Test_Color_MoreLiveTempsThanRegistersForcesASpill(t *testing.T) {
	g := temp.NewGensym(frame.FirstFreeTemp)
	n := len(frame.ConvAMD64.Registers()) + 1
	temps := make([]temp.Temp, n)
	var instrs []asm.Instruction
	for i := range temps {
		temps[i] = g.NewTemp()
		instrs = append(instrs, asm.Op("mov 'd0, 1", []temp.Temp{temps[i]}, nil))
	}
	instrs = append(instrs, asm.Op("use all", nil, temps))
	ig := BuildInterferenceGraph(BuildFlowGraph(instrs))

	result := Color(ig, temps, frame.ConvAMD64)
	assert.NotEmpty(t, result.Spills)
}
