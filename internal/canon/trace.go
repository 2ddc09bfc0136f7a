package canon

import (
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

// TraceSchedule orders blocks into traces so that every CondJump's false
// label is the label immediately following it in the output stream,
// eliminating redundant unconditional jumps where possible. Grounded on
// spec.md §4.1 Stage C's chase-successors algorithm; doneLabel is
// appended as a trailing Label once every block has been placed.
func TraceSchedule(blocks [][]ir.Statement, doneLabel temp.Label, gensym *temp.Gensym) []ir.Statement {
	index := make(map[temp.Label]int, len(blocks))
	for i, b := range blocks {
		index[blockLabel(b)] = i
	}
	marked := make([]bool, len(blocks))

	var out []ir.Statement
	for start := 0; start < len(blocks); start++ {
		if marked[start] {
			continue
		}
		cur := start
		for !marked[cur] {
			marked[cur] = true
			b := blocks[cur]
			next := cur
			switch exit := blockExit(b).(type) {
			case ir.Jump:
				if len(exit.Possible) == 1 {
					if idx, ok := index[exit.Possible[0]]; ok && !marked[idx] {
						next = idx
						b = b[:len(b)-1]
					}
				}
			case ir.CondJump:
				if idx, ok := index[exit.False]; ok && !marked[idx] {
					next = idx
				} else if idx, ok := index[exit.True]; ok && !marked[idx] {
					b[len(b)-1] = ir.CondJump{Op: ir.NotRel(exit.Op), Left: exit.Left, Right: exit.Right, True: exit.False, False: exit.True}
					next = idx
				} else {
					fresh := gensym.NewLabel()
					b[len(b)-1] = ir.CondJump{Op: exit.Op, Left: exit.Left, Right: exit.Right, True: exit.True, False: fresh}
					b = append(b, ir.LabelStatement{Label: fresh})
					b = append(b, ir.Jump{Target: ir.Name{Label: exit.False}, Possible: []temp.Label{exit.False}})
				}
			}
			out = append(out, b...)
			cur = next
		}
	}
	out = append(out, ir.LabelStatement{Label: doneLabel})
	return out
}
