package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tigerc/internal/asm"
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

func Test_NewX86_64_EscapingFormalGetsFrameSlot(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	f := NewX86_64(temp.NamedLabel("f"), []bool{true, false}, g)

	require.Len(t, f.Formals(), 2)
	assert.False(t, f.Formals()[0].InRegister)
	assert.Equal(t, int64(-WordSize), f.Formals()[0].Offset)
	assert.True(t, f.Formals()[1].InRegister)
}

func Test_AllocLocal_EachEscapingSlotGetsADistinctOffset(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	f := NewX86_64(temp.NamedLabel("f"), nil, g)

	a := f.AllocLocal(true)
	b := f.AllocLocal(true)
	assert.NotEqual(t, a.Offset, b.Offset)
	assert.False(t, a.InRegister)
	assert.False(t, b.InRegister)
}

func Test_Exp_RegisterAccessIgnoresFramePointer(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	f := NewX86_64(temp.NamedLabel("f"), nil, g)
	acc := f.AllocLocal(false)

	e := f.Exp(acc, ir.TempExp{Temp: RBP})
	te, ok := e.(ir.TempExp)
	require.True(t, ok)
	assert.Equal(t, acc.Reg, te.Temp)
}

func Test_Exp_FrameAccessAddsOffsetToFramePointer(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	f := NewX86_64(temp.NamedLabel("f"), nil, g)
	acc := f.AllocLocal(true)

	e := f.Exp(acc, ir.TempExp{Temp: RBP})
	mem, ok := e.(ir.Mem)
	require.True(t, ok)
	bin, ok := mem.Addr.(ir.BinOpExp)
	require.True(t, ok)
	assert.Equal(t, ir.Plus, bin.Op)
	c, ok := bin.Right.(ir.Const)
	require.True(t, ok)
	assert.Equal(t, acc.Offset, c.Value)
}

// flattenSeq lists the statements of a nested ir.Sequence in order.
func flattenSeq(s ir.Statement) []ir.Statement {
	if seq, ok := s.(ir.Sequence); ok {
		return append(flattenSeq(seq.First), flattenSeq(seq.Second)...)
	}
	return []ir.Statement{s}
}

func Test_ProcEntryExit1_SavesAndRestoresEveryCalleeSavedRegister(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	f := NewX86_64(temp.NamedLabel("f"), nil, g)

	wrapped := f.ProcEntryExit1(ir.ExpStatement{Exp: ir.Const{Value: 0}})
	seq, ok := wrapped.(ir.Sequence)
	require.True(t, ok)

	saves, restores := 0, 0
	for _, s := range flattenSeq(seq) {
		mv, ok := s.(ir.Move)
		if !ok {
			continue
		}
		if src, ok := mv.Src.(ir.TempExp); ok {
			for _, reg := range ConvAMD64.CalleeSaved() {
				if src.Temp == reg {
					saves++
				}
			}
		}
		if dst, ok := mv.Dst.(ir.TempExp); ok {
			for _, reg := range ConvAMD64.CalleeSaved() {
				if dst.Temp == reg {
					restores++
				}
			}
		}
	}
	assert.Equal(t, len(ConvAMD64.CalleeSaved()), saves)
	assert.Equal(t, len(ConvAMD64.CalleeSaved()), restores)
}

func Test_ProcEntryExit1_StackPassedFormalLoadsFromPositiveOffset(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	// seven formals, all escaping: the seventh spills past the six
	// argument registers onto the stack.
	escapes := make([]bool, 7)
	for i := range escapes {
		escapes[i] = true
	}
	f := NewX86_64(temp.NamedLabel("f"), escapes, g)

	wrapped := f.ProcEntryExit1(ir.ExpStatement{Exp: ir.Const{Value: 0}})
	seq, ok := wrapped.(ir.Sequence)
	require.True(t, ok)

	sawStackLoad := false
	for _, s := range flattenSeq(seq) {
		mv, ok := s.(ir.Move)
		if !ok {
			continue
		}
		mem, ok := mv.Src.(ir.Mem)
		if !ok {
			continue
		}
		bin, ok := mem.Addr.(ir.BinOpExp)
		require.True(t, ok)
		c, ok := bin.Right.(ir.Const)
		require.True(t, ok)
		if c.Value > 0 {
			sawStackLoad = true
		}
	}
	assert.True(t, sawStackLoad)
}

func Test_ProcEntryExit2_KeepsSpecialRegistersLive(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	f := NewX86_64(temp.NamedLabel("f"), nil, g)

	out := f.ProcEntryExit2([]asm.Instruction{asm.Op("nop", nil, nil)})
	require.Len(t, out, 2)
	sink := out[len(out)-1]
	assert.Contains(t, sink.Source, ConvAMD64.FramePointer())
	assert.Contains(t, sink.Source, ConvAMD64.StackPointer())
	assert.Contains(t, sink.Source, ConvAMD64.ReturnValue())
	for _, reg := range ConvAMD64.CalleeSaved() {
		assert.Contains(t, sink.Source, reg)
	}
}

func Test_ProcEntryExit3_StackSizeIsSixteenByteAligned(t *testing.T) {
	g := temp.NewGensym(FirstFreeTemp)
	f := NewX86_64(temp.NamedLabel("f"), nil, g)
	f.AllocLocal(true)

	sub := f.ProcEntryExit3(nil)
	assert.Contains(t, sub.Prolog, "push rbp")
	assert.Contains(t, sub.Prolog, "mov rbp, rsp")
	assert.Contains(t, sub.Prolog, "sub rsp, 16")
	assert.Contains(t, sub.Epilog, "leave")
	assert.Contains(t, sub.Epilog, "ret")
}

func Test_ConvAMD64_RegistersExcludeFrameAndStackPointer(t *testing.T) {
	for _, r := range ConvAMD64.Registers() {
		assert.NotEqual(t, ConvAMD64.FramePointer(), r)
		assert.NotEqual(t, ConvAMD64.StackPointer(), r)
	}
}
