package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/asm"
	"tigerc/internal/cfgtest"
	"tigerc/internal/frame"
	"tigerc/internal/temp"
)

// Test_Color_AllocationIsDeterministicAcrossRuns guards the allocator's
// determinism: the same interference graph must color to the same
// Allocation every time, so any accidental map-iteration-order
// dependence inside Color would show up here as a non-empty diff
// between two independent runs' structural dumps.
func Test_Color_AllocationIsDeterministicAcrossRuns(t *testing.T) {
	run := func() Allocation {
		g := temp.NewGensym(frame.FirstFreeTemp)
		a, b, c := g.NewTemp(), g.NewTemp(), g.NewTemp()
		instrs := []asm.Instruction{
			asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
			asm.Op("mov 'd0, 2", []temp.Temp{b}, nil),
			asm.Op("mov 'd0, 3", []temp.Temp{c}, nil),
			asm.Op("use 's0, 's1, 's2", nil, []temp.Temp{a, b, c}),
		}
		ig := BuildInterferenceGraph(BuildFlowGraph(instrs))
		return Color(ig, []temp.Temp{a, b, c}, frame.ConvAMD64).Allocation
	}

	dumpA := cfgtest.Sdump(run())
	dumpB := cfgtest.Sdump(run())

	diff, err := cfgtest.Diff("allocation", dumpA, dumpB)
	require.NoError(t, err)
	assert.Empty(t, diff, "Color produced a different allocation across identical runs:\n%s", diff)
}
