package semant

import (
	"tigerc/internal/ast"
	"tigerc/internal/frame"
	"tigerc/internal/ir"
	"tigerc/internal/symbol"
	"tigerc/internal/types"
)

func (t *translator) transLet(level *Level, venv venvT, tenv tenvT, n ast.LetExp) (ir.Exp, types.TypeID) {
	venv, tenv = copyVenv(venv), copyTenv(tenv)
	var inits []ir.Statement
	for _, dec := range n.Decs {
		var initStmt ir.Statement
		venv, tenv, initStmt = t.transDec(level, venv, tenv, dec)
		if initStmt != nil {
			inits = append(inits, initStmt)
		}
	}
	bodyExp, bodyTy := t.transExp(level, venv, tenv, n.Body)
	if len(inits) == 0 {
		return bodyExp, bodyTy
	}
	return ir.ExpSequence{Stmt: ir.Seq(inits...), Exp: bodyExp}, bodyTy
}

// transDec translates one declaration, returning the venv/tenv the
// remainder of the let-body should see and (for a VarDec) the
// initializing Move statement to run before the body.
func (t *translator) transDec(level *Level, venv venvT, tenv tenvT, dec ast.Dec) (venvT, tenvT, ir.Statement) {
	switch n := dec.(type) {
	case *ast.VarDec:
		initExp, initTy := t.transExp(level, venv, tenv, n.Init)
		declaredTy := initTy
		if n.HasType {
			want, ok := tenv[n.Type]
			if !ok {
				t.errorf(n.Pos(), "undefined type %s", n.Type)
			} else {
				declaredTy = want
				if !t.arena.Eq(initTy, want) {
					t.errorf(n.Pos(), "%s's initializer has type %s, expected %s", n.Name, t.arena.Name(initTy), t.arena.Name(want))
				}
			}
		} else if t.arena.Actual(initTy) == types.Nil {
			t.errorf(n.Pos(), "%s must have an explicit record type when initialized to nil", n.Name)
		}

		escapes := n.Escape != nil && *n.Escape
		access := level.Frame.AllocLocal(escapes)
		newVenv := copyVenv(venv)
		newVenv[n.Name] = envEntry{v: varEntry{access: Access{Level: level, Access: access}, ty: declaredTy}}
		dst := level.Frame.Exp(access, ir.TempExp{Temp: frame.ConvAMD64.FramePointer()})
		return newVenv, tenv, ir.Move{Dst: dst, Src: initExp}

	case ast.TypeDecGroup:
		return venv, t.transTypeGroup(tenv, n), nil

	case ast.FunctionDecGroup:
		return t.transFunctionGroup(level, venv, tenv, n), tenv, nil
	}
	panic("semant: unhandled Dec node")
}

// resolveType converts an ast.Type syntax node into a TypeID, allocating
// a fresh nominal record/array type for RecordType/ArrayType nodes (even
// if structurally identical to another declared type, matching Tiger's
// nominal-typing rule) and looking up NameType against tenv.
func (t *translator) resolveType(tenv tenvT, ty ast.Type) types.TypeID {
	switch n := ty.(type) {
	case ast.NameType:
		if id, ok := tenv[n.Name]; ok {
			return id
		}
		t.errorf(n.Pos(), "undefined type %s", n.Name)
		return types.Int
	case ast.RecordType:
		var fields []types.RecordField
		for _, f := range n.Fields {
			ft, ok := tenv[f.Type]
			if !ok {
				t.errorf(f.Pos, "undefined type %s", f.Type)
				ft = types.Int
			}
			fields = append(fields, types.RecordField{Name: f.Name, Type: ft})
		}
		return t.arena.NewRecord(symbol.Symbol{}, fields)
	case ast.ArrayType:
		elem, ok := tenv[n.Element]
		if !ok {
			t.errorf(n.Pos(), "undefined type %s", n.Element)
			elem = types.Int
		}
		return t.arena.NewArray(symbol.Symbol{}, elem)
	}
	panic("semant: unhandled Type node")
}

// transTypeGroup resolves one maximal group of mutually recursive `type`
// declarations: reserve a Name slot for each, then patch every slot once
// every sibling's right-hand side can be resolved.
func (t *translator) transTypeGroup(tenv tenvT, group ast.TypeDecGroup) tenvT {
	newTenv := copyTenv(tenv)
	ids := make([]types.TypeID, len(group.Types))
	for i, td := range group.Types {
		ids[i] = t.arena.NewName(td.Name)
		newTenv[td.Name] = ids[i]
	}
	for i, td := range group.Types {
		resolved := t.resolveType(newTenv, td.Type)
		t.arena.Patch(ids[i], resolved)
	}
	for _, td := range group.Types {
		if cyclic(t.arena, newTenv[td.Name], map[types.TypeID]bool{}) {
			t.errorf(td.Pos, "type %s forms an illegal cycle with no record/array indirection", td.Name)
		}
	}
	return newTenv
}

func cyclic(arena *types.Arena, id types.TypeID, seen map[types.TypeID]bool) bool {
	if seen[id] {
		return true
	}
	if arena.Get(id).Kind != types.KindName {
		return false
	}
	seen[id] = true
	next := arena.Get(id).Resolved
	if next < 0 {
		return false
	}
	return cyclic(arena, next, seen)
}
