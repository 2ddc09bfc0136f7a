package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

func Test_Linearize_HoistsExpSequence(t *testing.T) {
	g := temp.NewGensym(0)
	t1 := g.NewTemp()
	inner := ir.ExpSequence{
		Stmt: ir.Move{Dst: ir.TempExp{Temp: t1}, Src: ir.Const{Value: 1}},
		Exp:  ir.TempExp{Temp: t1},
	}
	body := ir.ExpStatement{Exp: ir.BinOpExp{Op: ir.Plus, Left: inner, Right: ir.Const{Value: 2}}}

	out := Linearize(body, g)
	for _, s := range out {
		assertNoSequence(t, s)
	}
	last, ok := out[len(out)-1].(ir.ExpStatement)
	assert.True(t, ok)
	bin, ok := last.Exp.(ir.BinOpExp)
	assert.True(t, ok)
	assert.Equal(t, ir.Plus, bin.Op)
}

func Test_Linearize_HoistsNestedCallToTemp(t *testing.T) {
	g := temp.NewGensym(0)
	call := ir.Call{Func: ir.Name{Label: temp.NamedLabel("f")}, Args: nil}
	body := ir.ExpStatement{Exp: ir.BinOpExp{Op: ir.Plus, Left: call, Right: ir.Const{Value: 1}}}

	out := Linearize(body, g)
	// the call must appear as the direct RHS of some Move(Temp,_), never
	// nested inside another expression.
	sawCallMove := false
	for _, s := range out {
		if mv, ok := s.(ir.Move); ok {
			if _, ok := mv.Src.(ir.Call); ok {
				sawCallMove = true
				_, isTemp := mv.Dst.(ir.TempExp)
				assert.True(t, isTemp)
			}
		}
		assertNoNestedCall(t, s)
	}
	assert.True(t, sawCallMove)
}

func Test_BasicBlocks_EachEndsInBranch(t *testing.T) {
	g := temp.NewGensym(0)
	l1, l2 := g.NewLabel(), g.NewLabel()
	stmts := []ir.Statement{
		ir.LabelStatement{Label: l1},
		ir.Move{Dst: ir.TempExp{Temp: g.NewTemp()}, Src: ir.Const{Value: 1}},
		ir.LabelStatement{Label: l2},
		ir.Jump{Target: ir.Name{Label: l1}, Possible: []temp.Label{l1}},
	}
	blocks, done := BasicBlocks(stmts, g)
	assert.NotEqual(t, temp.Label{}, done)
	for _, b := range blocks {
		_, labelOk := b[0].(ir.LabelStatement)
		assert.True(t, labelOk)
		assert.True(t, isBranch(b[len(b)-1]))
	}
}

func Test_TraceSchedule_CondJumpFalseFallsThrough(t *testing.T) {
	g := temp.NewGensym(0)
	trueLbl, falseLbl, entry := g.NewLabel(), g.NewLabel(), g.NewLabel()
	stmts := []ir.Statement{
		ir.LabelStatement{Label: entry},
		ir.CondJump{Op: ir.Equal, Left: ir.Const{Value: 0}, Right: ir.Const{Value: 0}, True: trueLbl, False: falseLbl},
		ir.LabelStatement{Label: trueLbl},
		ir.Jump{Target: ir.Name{Label: falseLbl}, Possible: []temp.Label{falseLbl}},
		ir.LabelStatement{Label: falseLbl},
	}
	blocks, done := BasicBlocks(stmts, g)
	scheduled := TraceSchedule(blocks, done, g)

	for i, s := range scheduled {
		cj, ok := s.(ir.CondJump)
		if !ok {
			continue
		}
		assert.Less(t, i+1, len(scheduled))
		lbl, ok := scheduled[i+1].(ir.LabelStatement)
		assert.True(t, ok)
		assert.Equal(t, cj.False, lbl.Label)
	}
}

func assertNoSequence(t *testing.T, s ir.Statement) {
	t.Helper()
	switch n := s.(type) {
	case ir.Sequence:
		t.Fatalf("unexpected Sequence after linearize")
	case ir.Move:
		assertNoSequenceExp(t, n.Src)
		assertNoSequenceExp(t, n.Dst)
	case ir.ExpStatement:
		assertNoSequenceExp(t, n.Exp)
	}
}

func assertNoSequenceExp(t *testing.T, e ir.Exp) {
	t.Helper()
	if _, ok := e.(ir.ExpSequence); ok {
		t.Fatalf("unexpected ExpSequence after linearize")
	}
}

func assertNoNestedCall(t *testing.T, s ir.Statement) {
	t.Helper()
	mv, ok := s.(ir.Move)
	if !ok {
		return
	}
	if bin, ok := mv.Src.(ir.BinOpExp); ok {
		_, leftIsCall := bin.Left.(ir.Call)
		_, rightIsCall := bin.Right.(ir.Call)
		assert.False(t, leftIsCall)
		assert.False(t, rightIsCall)
	}
}
