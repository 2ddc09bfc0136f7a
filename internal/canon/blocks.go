package canon

import (
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

// BasicBlocks splits a linearized statement list into single-entry,
// single-exit blocks: each begins with a Label and ends with exactly one
// Jump or CondJump. Per spec.md §4.1 Stage B, a block missing its
// leading Label gets a fresh one, and a block that does not already end
// in a branch is given a Jump to the next block's label (or to
// doneLabel, for the very last block).
func BasicBlocks(stmts []ir.Statement, gensym *temp.Gensym) (blocks [][]ir.Statement, doneLabel temp.Label) {
	doneLabel = gensym.NewLabel()
	var cur []ir.Statement

	closeBlock := func(fallThrough temp.Label) {
		if len(cur) == 0 {
			return
		}
		if last := cur[len(cur)-1]; !isBranch(last) {
			cur = append(cur, ir.Jump{Target: ir.Name{Label: fallThrough}, Possible: []temp.Label{fallThrough}})
		}
		blocks = append(blocks, cur)
		cur = nil
	}

	for _, s := range stmts {
		if lbl, ok := s.(ir.LabelStatement); ok {
			closeBlock(lbl.Label)
			cur = append(cur, s)
			continue
		}
		if len(cur) == 0 {
			cur = append(cur, ir.LabelStatement{Label: gensym.NewLabel()})
		}
		cur = append(cur, s)
		if isBranch(s) {
			blocks = append(blocks, cur)
			cur = nil
		}
	}
	closeBlock(doneLabel)
	return blocks, doneLabel
}

func isBranch(s ir.Statement) bool {
	switch s.(type) {
	case ir.Jump, ir.CondJump:
		return true
	default:
		return false
	}
}

// blockLabel returns the Label a block begins with.
func blockLabel(b []ir.Statement) temp.Label {
	return b[0].(ir.LabelStatement).Label
}

// blockExit returns the Jump/CondJump a block ends with.
func blockExit(b []ir.Statement) ir.Statement {
	return b[len(b)-1]
}
