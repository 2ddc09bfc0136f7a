package canon

import (
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

// Canonicalize runs all three stages over one function body, returning a
// trace-scheduled statement list ready for instruction selection and the
// function's done label, the single exit point whose Label statement
// TraceSchedule already places at the end of that list.
func Canonicalize(body ir.Statement, gensym *temp.Gensym) ([]ir.Statement, temp.Label) {
	linear := Linearize(body, gensym)
	blocks, done := BasicBlocks(linear, gensym)
	return TraceSchedule(blocks, done, gensym), done
}
