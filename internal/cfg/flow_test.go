package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/asm"
	"tigerc/internal/temp"
)

func Test_BuildFlowGraph_FallsThroughToNextInstructionByDefault(t *testing.T) {
	g := temp.NewGensym(0)
	a, b := g.NewTemp(), g.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Op("mov 'd0, 's0", []temp.Temp{b}, []temp.Temp{a}),
	}

	flow := BuildFlowGraph(instrs)
	require.Equal(t, 2, flow.Len())
	assert.Equal(t, []NodeID{1}, flow.Successors(NodeID(0)))
	assert.Empty(t, flow.Successors(NodeID(1)))
}

func Test_BuildFlowGraph_JumpTargetsExactlyItsLabels(t *testing.T) {
	g := temp.NewGensym(0)
	l := g.NewLabel()
	instrs := []asm.Instruction{
		asm.Jmp("jmp 'j0", []temp.Label{l}),
		asm.Op("mov 'd0, 1", []temp.Temp{g.NewTemp()}, nil), // dead code after an unconditional jump
		asm.Lbl("'j0:", l),
	}

	flow := BuildFlowGraph(instrs)
	assert.Equal(t, []NodeID{2}, flow.Successors(NodeID(0)))
}

func Test_BuildFlowGraph_LabelNodeCarriesNoDefinesOrUses(t *testing.T) {
	g := temp.NewGensym(0)
	l := g.NewLabel()
	instrs := []asm.Instruction{asm.Lbl("'j0:", l)}

	flow := BuildFlowGraph(instrs)
	node := flow.Value(NodeID(0))
	assert.Empty(t, node.Defines)
	assert.Empty(t, node.Uses)
}

func Test_BuildFlowGraph_CondJumpHasTwoSuccessors(t *testing.T) {
	g := temp.NewGensym(0)
	trueLbl, falseLbl := g.NewLabel(), g.NewLabel()
	instrs := []asm.Instruction{
		asm.Jmp("jcc 'j0, 'j1", []temp.Label{trueLbl, falseLbl}),
		asm.Lbl("'j0:", trueLbl),
		asm.Lbl("'j1:", falseLbl),
	}

	flow := BuildFlowGraph(instrs)
	assert.ElementsMatch(t, []NodeID{1, 2}, flow.Successors(NodeID(0)))
}
