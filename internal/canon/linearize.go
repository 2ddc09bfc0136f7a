// Package canon rewrites one function's IR tree into a form the
// instruction selector can consume directly: no Sequence/ExpSequence
// anywhere, every Call at statement level, split into single-entry/
// single-exit basic blocks, and trace-scheduled so CondJump false labels
// fall through. No linearize.rs equivalent was retrieved at file
// granularity in original_source, so this package follows spec.md §4.1's
// algorithmic prose directly, laid out in the teacher's one-file-per-
// stage style (compiler/cfg).
package canon

import (
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

// Linearize rewrites body into a flat statement list free of Sequence and
// ExpSequence, with every Call a direct Move(Temp,_) or ExpStatement.
func Linearize(body ir.Statement, gensym *temp.Gensym) []ir.Statement {
	return linStmt(body, gensym)
}

func linStmt(s ir.Statement, g *temp.Gensym) []ir.Statement {
	switch n := s.(type) {
	case ir.Sequence:
		return append(linStmt(n.First, g), linStmt(n.Second, g)...)
	case ir.Move:
		return linMove(n, g)
	case ir.ExpStatement:
		if call, ok := n.Exp.(ir.Call); ok {
			pre, callExp := doCall(call, g)
			return append(pre, ir.ExpStatement{Exp: callExp})
		}
		pre, e := doExp(n.Exp, g)
		return append(pre, ir.ExpStatement{Exp: e})
	case ir.CondJump:
		pre, vals := reorderList([]ir.Exp{n.Left, n.Right}, g)
		return append(pre, ir.CondJump{Op: n.Op, Left: vals[0], Right: vals[1], True: n.True, False: n.False})
	case ir.Jump:
		pre, target := doExp(n.Target, g)
		return append(pre, ir.Jump{Target: target, Possible: n.Possible})
	case ir.LabelStatement, nil:
		return []ir.Statement{s}
	default:
		return []ir.Statement{s}
	}
}

func linMove(n ir.Move, g *temp.Gensym) []ir.Statement {
	switch dst := n.Dst.(type) {
	case ir.TempExp:
		if call, ok := n.Src.(ir.Call); ok {
			pre, callExp := doCall(call, g)
			return append(pre, ir.Move{Dst: dst, Src: callExp})
		}
		pre, src := doExp(n.Src, g)
		return append(pre, ir.Move{Dst: dst, Src: src})
	case ir.Mem:
		pre, vals := reorderList([]ir.Exp{dst.Addr, n.Src}, g)
		return append(pre, ir.Move{Dst: ir.Mem{Addr: vals[0]}, Src: vals[1]})
	default:
		pre, src := doExp(n.Src, g)
		return append(pre, ir.Move{Dst: n.Dst, Src: src})
	}
}

// doExp returns the statement prelude that must run before e's value is
// available, and a prelude-free replacement expression. A Call found
// nested inside a larger expression is pre-evaluated into a fresh Temp
// per spec.md §4.1, so the only Calls doExp's caller ever sees again are
// TempExp reads.
func doExp(e ir.Exp, g *temp.Gensym) ([]ir.Statement, ir.Exp) {
	switch n := e.(type) {
	case ir.Const, ir.Name, ir.TempExp, ir.Error:
		return nil, e
	case ir.BinOpExp:
		pre, vals := reorderList([]ir.Exp{n.Left, n.Right}, g)
		return pre, ir.BinOpExp{Op: n.Op, Left: vals[0], Right: vals[1]}
	case ir.Mem:
		pre, addr := doExp(n.Addr, g)
		return pre, ir.Mem{Addr: addr}
	case ir.Call:
		t := g.NewTemp()
		pre, callExp := doCall(n, g)
		pre = append(pre, ir.Move{Dst: ir.TempExp{Temp: t}, Src: callExp})
		return pre, ir.TempExp{Temp: t}
	case ir.ExpSequence:
		pre := linStmt(n.Stmt, g)
		inner, val := doExp(n.Exp, g)
		return append(pre, inner...), val
	default:
		return nil, e
	}
}

func doCall(n ir.Call, g *temp.Gensym) ([]ir.Statement, ir.Exp) {
	all := append([]ir.Exp{n.Func}, n.Args...)
	pre, vals := reorderList(all, g)
	return pre, ir.Call{Func: vals[0], Args: vals[1:]}
}

// reorderList evaluates each expression in exps in order, returning the
// combined statement prelude and a same-length list of prelude-free
// replacement expressions. Each value is protected against clobbering by
// every expression evaluated after it: processed right-to-left, a value
// that does not commute with the (already-reordered) tail's prelude is
// stashed into a fresh Temp immediately, which trivially commutes with
// anything from then on — the standard canonicalization trick for
// turning a single pairwise commutativity check into an n-ary one.
func reorderList(exps []ir.Exp, g *temp.Gensym) ([]ir.Statement, []ir.Exp) {
	if len(exps) == 0 {
		return nil, nil
	}
	headPre, headVal := doExp(exps[0], g)
	tailPre, tailVals := reorderList(exps[1:], g)

	if commutes(headVal) || len(tailPre) == 0 {
		pre := append(headPre, tailPre...)
		return pre, append([]ir.Exp{headVal}, tailVals...)
	}
	t := g.NewTemp()
	pre := append(headPre, ir.Move{Dst: ir.TempExp{Temp: t}, Src: headVal})
	pre = append(pre, tailPre...)
	return pre, append([]ir.Exp{ir.TempExp{Temp: t}}, tailVals...)
}

// commutes reports whether e is safe to evaluate either before or after
// an arbitrary statement without changing its value: true only for
// constants, names, and bare temp reads (spec.md §4.1's conservative
// rule — anything else, notably Mem and Call, does not commute).
func commutes(e ir.Exp) bool {
	switch e.(type) {
	case ir.Const, ir.Name, ir.TempExp:
		return true
	default:
		return false
	}
}
