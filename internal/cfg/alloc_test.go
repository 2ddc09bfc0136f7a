package cfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/asm"
	"tigerc/internal/frame"
	"tigerc/internal/temp"
)

func Test_Allocate_EveryOperandEndsUpAMachineRegister(t *testing.T) {
	gensym := temp.NewGensym(frame.FirstFreeTemp)
	fr := frame.NewX86_64(temp.NamedLabel("f"), nil, gensym)
	a, b := gensym.NewTemp(), gensym.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Op("mov 'd0, 2", []temp.Temp{b}, nil),
		asm.Op("use 's0, 's1", nil, []temp.Temp{a, b}),
	}

	out, alloc := Allocate(instrs, fr, frame.ConvAMD64, gensym)
	require.NotEmpty(t, out)

	registers := map[temp.Temp]bool{}
	for _, r := range frame.ConvAMD64.Registers() {
		registers[r] = true
	}
	for _, in := range out {
		for _, d := range in.Destination {
			assert.True(t, registers[d] || isPrecoloredOnly(d, alloc, registers))
		}
		for _, s := range in.Source {
			assert.True(t, registers[s] || isPrecoloredOnly(s, alloc, registers))
		}
	}
}

func isPrecoloredOnly(t temp.Temp, alloc Allocation, registers map[temp.Temp]bool) bool {
	if registers[t] {
		return true
	}
	c, ok := alloc[t]
	return ok && registers[c]
}

func Test_Allocate_SpillForcesAFrameSlotLoadAndStore(t *testing.T) {
	gensym := temp.NewGensym(frame.FirstFreeTemp)
	fr := frame.NewX86_64(temp.NamedLabel("f"), nil, gensym)

	n := len(frame.ConvAMD64.Registers()) + 2
	temps := make([]temp.Temp, n)
	var instrs []asm.Instruction
	for i := range temps {
		temps[i] = gensym.NewTemp()
		instrs = append(instrs, asm.Op("mov 'd0, 1", []temp.Temp{temps[i]}, nil))
	}
	for _, tmp := range temps {
		instrs = append(instrs, asm.Op("use 's0", nil, []temp.Temp{tmp}))
	}

	out, alloc := Allocate(instrs, fr, frame.ConvAMD64, gensym)
	require.NotEmpty(t, out)
	require.NotEmpty(t, alloc)

	sawStackLoad, sawStackStore := false, false
	for _, in := range out {
		if in.Assembly == "" {
			continue
		}
		if len(in.Destination) == 1 && len(in.Source) == 1 && strings.HasPrefix(in.Assembly, "mov 'd0, ['s0") {
			sawStackLoad = true
		}
		if len(in.Destination) == 0 && len(in.Source) == 2 && strings.HasPrefix(in.Assembly, "mov ['s0") {
			sawStackStore = true
		}
	}
	assert.True(t, sawStackLoad)
	assert.True(t, sawStackStore)
}
