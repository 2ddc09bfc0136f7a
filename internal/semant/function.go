package semant

import (
	"tigerc/internal/ast"
	"tigerc/internal/frame"
	"tigerc/internal/ir"
	"tigerc/internal/temp"
	"tigerc/internal/types"
)

// transFunctionGroup type-checks and lowers one maximal group of mutually
// recursive `function` declarations. Every sibling's signature is entered
// into venv before any body is translated so recursive and forward calls
// within the group resolve; each function gets its own Level (and so its
// own frame and static-link formal) chained to the enclosing level.
func (t *translator) transFunctionGroup(level *Level, venv venvT, tenv tenvT, group ast.FunctionDecGroup) venvT {
	newVenv := copyVenv(venv)
	levels := make([]*Level, len(group.Functions))

	for i, fn := range group.Functions {
		formals := make([]types.TypeID, len(fn.Params))
		formalsEscape := make([]bool, len(fn.Params))
		for j, p := range fn.Params {
			ft, ok := tenv[p.Type]
			if !ok {
				t.errorf(p.Pos, "undefined type %s", p.Type)
				ft = types.Int
			}
			formals[j] = ft
			formalsEscape[j] = p.Escape != nil && *p.Escape
		}
		result := types.Unit
		if fn.HasResult {
			want, ok := tenv[fn.Result]
			if !ok {
				t.errorf(fn.Pos(), "undefined type %s", fn.Result)
			} else {
				result = want
			}
		}

		// Entry labels carry the Tiger name, plus a gensym suffix so that
		// same-named functions in different scopes stay distinct.
		label := temp.NamedLabel(fn.Name.String() + "_" + t.gensym.NewLabel().String())
		lvl := NewLevel(level, label, formalsEscape, t.gensym)
		levels[i] = lvl

		newVenv[fn.Name] = envEntry{isFun: true, f: funEntry{
			level: lvl, label: label, formals: formals, result: result,
		}}
	}

	for i, fn := range group.Functions {
		lvl := levels[i]
		bodyVenv := copyVenv(newVenv)
		for j, p := range fn.Params {
			access := Access{Level: lvl, Access: lvl.Formals()[j]}
			bodyVenv[p.Name] = envEntry{v: varEntry{access: access, ty: newVenv[fn.Name].f.formals[j]}}
		}

		bodyExp, bodyTy := t.transExp(lvl, bodyVenv, tenv, fn.Body)
		declared := newVenv[fn.Name].f.result
		if declared == types.Unit && !fn.HasResult {
			// procedure: body's value is discarded regardless of type
		} else if !t.arena.Eq(bodyTy, declared) {
			t.errorf(fn.Pos(), "function %s returns %s, expected %s", fn.Name, t.arena.Name(bodyTy), t.arena.Name(declared))
		}

		var bodyStmt ir.Statement
		if declared == types.Unit {
			bodyStmt = ir.ExpStatement{Exp: bodyExp}
		} else {
			bodyStmt = ir.Move{Dst: ir.TempExp{Temp: frame.ConvAMD64.ReturnValue()}, Src: bodyExp}
		}
		procBody := lvl.Frame.ProcEntryExit1(bodyStmt)
		t.fragments = append(t.fragments, frame.FunctionFragment{Body: procBody, Frame: lvl.Frame})
	}

	return newVenv
}
