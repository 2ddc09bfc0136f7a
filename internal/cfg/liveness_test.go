package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/asm"
	"tigerc/internal/temp"
)

// a := 1; b := a; use(b) — a and b never interfere since a dies at the
// move into b (the classic move-coalescing exception, spec.md §4.4).
func Test_BuildInterferenceGraph_MoveSourceAndDestDoNotInterfere(t *testing.T) {
	g := temp.NewGensym(0)
	a, b := g.NewTemp(), g.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Mov("mov 'd0, 's0", b, a),
		asm.Op("use 's0", nil, []temp.Temp{b}),
	}

	ig := BuildInterferenceGraph(BuildFlowGraph(instrs))
	na, aok := ig.NodeFor(a)
	nb, bok := ig.NodeFor(b)
	require.True(t, aok)
	require.True(t, bok)
	assert.NotContains(t, ig.Successors(na), nb)
}

// a := 1; b := 2; use(a); use(b) — both simultaneously live across the
// second definition, so they must interfere.
func Test_BuildInterferenceGraph_SimultaneouslyLiveTempsInterfere(t *testing.T) {
	g := temp.NewGensym(0)
	a, b := g.NewTemp(), g.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Op("mov 'd0, 2", []temp.Temp{b}, nil),
		asm.Op("use 's0, 's1", nil, []temp.Temp{a, b}),
	}

	ig := BuildInterferenceGraph(BuildFlowGraph(instrs))
	na, _ := ig.NodeFor(a)
	nb, _ := ig.NodeFor(b)
	assert.Contains(t, ig.Successors(na), nb)
	assert.Contains(t, ig.Successors(nb), na)
}

func Test_BuildInterferenceGraph_MoveInstructionPopulatesWorklist(t *testing.T) {
	g := temp.NewGensym(0)
	a, b := g.NewTemp(), g.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Mov("mov 'd0, 's0", b, a),
		asm.Op("use 's0", nil, []temp.Temp{b}),
	}

	ig := BuildInterferenceGraph(BuildFlowGraph(instrs))
	assert.True(t, ig.WorklistMoves[[2]temp.Temp{b, a}])
	assert.NotEmpty(t, ig.MoveList[a])
	assert.NotEmpty(t, ig.MoveList[b])
}

// a loops back to its own definition across a backward jump, so a must
// be live across the whole loop body, including through c which is
// defined in between.
func Test_BuildInterferenceGraph_BackEdgeKeepsLoopCarriedTempLive(t *testing.T) {
	g := temp.NewGensym(0)
	top := g.NewLabel()
	a, c := g.NewTemp(), g.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 0", []temp.Temp{a}, nil),
		asm.Lbl("'j0:", top),
		asm.Op("mov 'd0, 1", []temp.Temp{c}, nil),
		asm.Op("use 's0, 's1", nil, []temp.Temp{a, c}),
		asm.Jmp("jmp 'j0", []temp.Label{top}),
	}

	ig := BuildInterferenceGraph(BuildFlowGraph(instrs))
	na, _ := ig.NodeFor(a)
	nc, _ := ig.NodeFor(c)
	assert.Contains(t, ig.Successors(na), nc)
}
