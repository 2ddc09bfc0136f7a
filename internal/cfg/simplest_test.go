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

func Test_SimplestAllocate_SpillsEveryNonPrecoloredTemp(t *testing.T) {
	gensym := temp.NewGensym(frame.FirstFreeTemp)
	fr := frame.NewX86_64(temp.NamedLabel("f"), nil, gensym)
	a, b := gensym.NewTemp(), gensym.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Op("mov 'd0, 's0", []temp.Temp{b}, []temp.Temp{a}),
	}

	out := SimplestAllocate(instrs, fr, frame.ConvAMD64)
	require.NotEmpty(t, out)

	precolored := PrecoloredSet(frame.ConvAMD64)
	for _, in := range out {
		for _, d := range in.Destination {
			assert.True(t, precolored[d] || isScratch(d, frame.ConvAMD64))
		}
		for _, s := range in.Source {
			assert.True(t, precolored[s] || isScratch(s, frame.ConvAMD64))
		}
	}
}

func isScratch(t temp.Temp, conv frame.CallingConvention) bool {
	for _, r := range conv.CallerSaved() {
		if r == t {
			return true
		}
	}
	return false
}

func Test_SimplestAllocate_ReusesSameSlotAcrossRepeatedUses(t *testing.T) {
	gensym := temp.NewGensym(frame.FirstFreeTemp)
	fr := frame.NewX86_64(temp.NamedLabel("f"), nil, gensym)
	a := gensym.NewTemp()
	instrs := []asm.Instruction{
		asm.Op("mov 'd0, 1", []temp.Temp{a}, nil),
		asm.Op("use 's0", nil, []temp.Temp{a}),
		asm.Op("use 's0", nil, []temp.Temp{a}),
	}

	out := SimplestAllocate(instrs, fr, frame.ConvAMD64)
	assert.True(t, len(out) > len(instrs))

	var loads []string
	for _, in := range out {
		if strings.HasPrefix(in.Assembly, "mov 'd0, ['s0") {
			loads = append(loads, in.Assembly)
		}
	}
	require.Len(t, loads, 2)
	assert.Equal(t, loads[0], loads[1])
}
