// Package semant type-checks a Tiger AST and lowers it to IR fragments in
// the same pass, following chapter06's Level/Access-threading translate
// design referenced in spec.md §3-4 (Frame/Access, Fragment). Type errors
// are accumulated rather than raised; a failing check substitutes the
// nearest sensible placeholder type (usually types.Int or the expected
// type) so checking can continue and report more than one error per run.
package semant

import (
	"tigerc/internal/ast"
	"tigerc/internal/diagnostics"
	"tigerc/internal/frame"
	"tigerc/internal/ir"
	"tigerc/internal/symbol"
	"tigerc/internal/temp"
	"tigerc/internal/types"
)

type varEntry struct {
	access Access
	ty     types.TypeID
}

type funEntry struct {
	level   *Level
	label   temp.Label
	formals []types.TypeID
	result  types.TypeID
	// external is true for runtime-library functions: calls bypass the
	// static-link machinery entirely (they take no Tiger closure context).
	external bool
}

type envEntry struct {
	isFun bool
	v     varEntry
	f     funEntry
}

type venvT = map[symbol.Symbol]envEntry
type tenvT = map[symbol.Symbol]types.TypeID

// translator carries the state threaded through every transExp/transVar/
// transDec call: the type arena, the gensym, the diagnostics sink, and
// the growing fragment list every translated function body is appended
// to as it is finished.
type translator struct {
	arena     *types.Arena
	gensym    *temp.Gensym
	sym       *symbol.Table
	diags     []*diagnostics.Diagnostic
	fragments []frame.Fragment
	breakStack []temp.Label
}

// Result is everything a successful (or best-effort) translation of one
// compilation unit produces.
type Result struct {
	Fragments []frame.Fragment
	Diags     []*diagnostics.Diagnostic
}

// Translate type-checks exp and lowers it (wrapped as the body of a
// function named "main") into Fragments, one FunctionFragment per Tiger
// function plus one StringFragment per string literal.
func Translate(exp ast.Exp, arena *types.Arena, gensym *temp.Gensym, sym *symbol.Table) Result {
	t := &translator{arena: arena, gensym: gensym, sym: sym}
	venv, tenv := t.baseEnv()
	mainLevel := Outermost(gensym)

	bodyExp, _ := t.transExp(mainLevel, venv, tenv, exp)
	body := mainLevel.Frame.ProcEntryExit1(ir.Move{Dst: ir.TempExp{Temp: frame.ConvAMD64.ReturnValue()}, Src: bodyExp})
	t.fragments = append(t.fragments, frame.FunctionFragment{Body: body, Frame: mainLevel.Frame})

	return Result{Fragments: t.fragments, Diags: t.diags}
}

func (t *translator) errorf(pos diagnostics.Pos, format string, args ...any) {
	t.diags = append(t.diags, diagnostics.New(diagnostics.PhaseSemant, pos, format, args...))
}

// baseEnv seeds tenv with int, string and the predeclared array-of-int
// type initArray, and venv with the runtime ABI functions spec.md §6
// requires, each bound to its C-compatible name so Call lowering needs no
// further special-casing.
func (t *translator) baseEnv() (venvT, tenvT) {
	venv := venvT{}
	tenv := tenvT{
		t.sym.Symbol("int"):    types.Int,
		t.sym.Symbol("string"): types.String,
		t.sym.Symbol("initArray"): t.arena.NewArray(t.sym.Symbol("initArray"), types.Int),
	}

	lib := []struct {
		name    string
		formals []types.TypeID
		result  types.TypeID
	}{
		{"print", []types.TypeID{types.String}, types.Unit},
		{"printi", []types.TypeID{types.Int}, types.Unit},
		{"flush", nil, types.Unit},
		{"getchar", nil, types.String},
		{"ord", []types.TypeID{types.String}, types.Int},
		{"chr", []types.TypeID{types.Int}, types.String},
		{"size", []types.TypeID{types.String}, types.Int},
		{"substring", []types.TypeID{types.String, types.Int, types.Int}, types.String},
		{"concat", []types.TypeID{types.String, types.String}, types.String},
		{"not", []types.TypeID{types.Int}, types.Int},
		{"exit", []types.TypeID{types.Int}, types.Unit},
	}
	for _, f := range lib {
		venv[t.sym.Symbol(f.name)] = envEntry{isFun: true, f: funEntry{
			label: temp.NamedLabel(f.name), formals: f.formals, result: f.result, external: true,
		}}
	}
	return venv, tenv
}

// ---- expressions -------------------------------------------------------

// transExp returns the IR for e and e's static type.
func (t *translator) transExp(level *Level, venv venvT, tenv tenvT, e ast.Exp) (ir.Exp, types.TypeID) {
	switch n := e.(type) {
	case ast.NilExp:
		return ir.Const{Value: 0}, types.Nil
	case ast.IntExp:
		return ir.Const{Value: n.Value}, types.Int
	case ast.StringExp:
		label := t.gensym.NewLabel()
		t.fragments = append(t.fragments, frame.StringFragment{Label: label, Value: n.Value})
		return ir.Name{Label: label}, types.String
	case ast.BreakExp:
		if len(t.breakStack) == 0 {
			t.errorf(n.Pos(), "break outside of a loop")
			return ir.Const{Value: 0}, types.Unit
		}
		target := t.breakStack[len(t.breakStack)-1]
		return ir.ExpSequence{Stmt: ir.Jump{Target: ir.Name{Label: target}, Possible: []temp.Label{target}}, Exp: ir.Const{Value: 0}}, types.Unit
	case ast.SimpleVar, ast.FieldVar, ast.SubscriptVar:
		return t.transVar(level, venv, tenv, n.(ast.Var))
	case ast.CallExp:
		return t.transCall(level, venv, tenv, n)
	case ast.OpExp:
		return t.transOp(level, venv, tenv, n)
	case ast.RecordExp:
		return t.transRecord(level, venv, tenv, n)
	case ast.SeqExp:
		return t.transSeq(level, venv, tenv, n)
	case ast.AssignExp:
		return t.transAssign(level, venv, tenv, n)
	case ast.IfExp:
		return t.transIf(level, venv, tenv, n)
	case ast.WhileExp:
		return t.transWhile(level, venv, tenv, n)
	case *ast.ForExp:
		return t.transFor(level, venv, tenv, n)
	case ast.LetExp:
		return t.transLet(level, venv, tenv, n)
	case ast.ArrayExp:
		return t.transArray(level, venv, tenv, n)
	default:
		t.errorf(e.Pos(), "internal: unhandled expression node %T", e)
		return ir.Error{}, types.Int
	}
}

func (t *translator) transVar(level *Level, venv venvT, tenv tenvT, v ast.Var) (ir.Exp, types.TypeID) {
	switch n := v.(type) {
	case ast.SimpleVar:
		entry, ok := venv[n.Name]
		if !ok || entry.isFun {
			t.errorf(n.Pos(), "undefined variable %s", n.Name)
			return ir.Error{}, types.Int
		}
		fp := FramePointerExp(level, entry.v.access.Level)
		return entry.v.access.Level.Frame.Exp(entry.v.access.Access, fp), entry.v.ty
	case ast.FieldVar:
		baseExp, baseTy := t.transVar(level, venv, tenv, n.Var)
		actual := t.arena.Get(t.arena.Actual(baseTy))
		if actual.Kind != types.KindRecord {
			t.errorf(n.Pos(), "%s is not a record", t.arena.Name(baseTy))
			return ir.Error{}, types.Int
		}
		for i, f := range actual.Fields {
			if f.Name.Equal(n.Field) {
				offset := int64(i) * frame.WordSize
				addr := ir.Exp(baseExp)
				if offset != 0 {
					addr = ir.BinOpExp{Op: ir.Plus, Left: addr, Right: ir.Const{Value: offset}}
				}
				return ir.Mem{Addr: addr}, f.Type
			}
		}
		t.errorf(n.Pos(), "record type %s has no field %s", t.arena.Name(baseTy), n.Field)
		return ir.Error{}, types.Int
	case ast.SubscriptVar:
		baseExp, baseTy := t.transVar(level, venv, tenv, n.Var)
		actual := t.arena.Get(t.arena.Actual(baseTy))
		if actual.Kind != types.KindArray {
			t.errorf(n.Pos(), "%s is not an array", t.arena.Name(baseTy))
			return ir.Error{}, types.Int
		}
		indexExp, indexTy := t.transExp(level, venv, tenv, n.Index)
		if !t.arena.Eq(indexTy, types.Int) {
			t.errorf(n.Index.Pos(), "array index must be int")
		}
		addr := ir.BinOpExp{Op: ir.Plus, Left: baseExp, Right: ir.BinOpExp{Op: ir.Mul, Left: indexExp, Right: ir.Const{Value: frame.WordSize}}}
		return ir.Mem{Addr: addr}, actual.Elem
	}
	panic("semant: unhandled Var node")
}

func (t *translator) transCall(level *Level, venv venvT, tenv tenvT, n ast.CallExp) (ir.Exp, types.TypeID) {
	entry, ok := venv[n.Func]
	if !ok || !entry.isFun {
		t.errorf(n.Pos(), "undefined function %s", n.Func)
		return ir.Error{}, types.Int
	}
	if len(n.Args) != len(entry.f.formals) {
		t.errorf(n.Pos(), "%s expects %d arguments, got %d", n.Func, len(entry.f.formals), len(n.Args))
	}
	var args []ir.Exp
	for i, a := range n.Args {
		argExp, argTy := t.transExp(level, venv, tenv, a)
		if i < len(entry.f.formals) && !t.arena.Eq(argTy, entry.f.formals[i]) {
			t.errorf(a.Pos(), "argument %d to %s: expected %s, got %s", i+1, n.Func, t.arena.Name(entry.f.formals[i]), t.arena.Name(argTy))
		}
		args = append(args, argExp)
	}
	if !entry.f.external {
		link := FramePointerExp(level, entry.f.level.Parent)
		args = append([]ir.Exp{link}, args...)
	}
	return ir.Call{Func: ir.Name{Label: entry.f.label}, Args: args}, entry.f.result
}

var arithOps = map[ast.Oper]ir.BinOp{ast.PlusOp: ir.Plus, ast.MinusOp: ir.Minus, ast.TimesOp: ir.Mul, ast.DivideOp: ir.Div}
var relOps = map[ast.Oper]ir.RelOp{
	ast.EqOp: ir.Equal, ast.NeqOp: ir.NotEqual, ast.LtOp: ir.LesserThan,
	ast.LeOp: ir.LesserOrEqual, ast.GtOp: ir.GreaterThan, ast.GeOp: ir.GreaterOrEqual,
}

func (t *translator) transOp(level *Level, venv venvT, tenv tenvT, n ast.OpExp) (ir.Exp, types.TypeID) {
	left, leftTy := t.transExp(level, venv, tenv, n.Left)
	right, rightTy := t.transExp(level, venv, tenv, n.Right)

	if op, ok := arithOps[n.Op]; ok {
		if !t.arena.Eq(leftTy, types.Int) || !t.arena.Eq(rightTy, types.Int) {
			t.errorf(n.Pos(), "arithmetic operator requires int operands")
		}
		return ir.BinOpExp{Op: op, Left: left, Right: right}, types.Int
	}

	relOp := relOps[n.Op]
	if t.arena.Eq(leftTy, types.String) && t.arena.Eq(rightTy, types.String) && (n.Op == ast.EqOp || n.Op == ast.NeqOp) {
		call := ir.Call{Func: ir.Name{Label: temp.NamedLabel("stringEqual")}, Args: []ir.Exp{left, right}}
		if n.Op == ast.NeqOp {
			return t.boolExp(ir.Equal, call, ir.Const{Value: 0}), types.Int
		}
		return t.boolExp(ir.NotEqual, call, ir.Const{Value: 0}), types.Int
	}
	if !t.arena.Eq(leftTy, rightTy) {
		t.errorf(n.Pos(), "comparison operands must have the same type (got %s and %s)", t.arena.Name(leftTy), t.arena.Name(rightTy))
	}
	return t.boolExp(relOp, left, right), types.Int
}

// boolExp lowers a comparison into a 0/1 integer value via a conditional
// jump and two one-instruction stores, the classic CondJump-to-value
// idiom that lets canonicalization handle the branch normally.
func (t *translator) boolExp(op ir.RelOp, left, right ir.Exp) ir.Exp {
	result := t.gensym.NewTemp()
	trueLabel, falseLabel, doneLabel := t.gensym.NewLabel(), t.gensym.NewLabel(), t.gensym.NewLabel()
	stmt := ir.Seq(
		ir.CondJump{Op: op, Left: left, Right: right, True: trueLabel, False: falseLabel},
		ir.LabelStatement{Label: trueLabel},
		ir.Move{Dst: ir.TempExp{Temp: result}, Src: ir.Const{Value: 1}},
		ir.Jump{Target: ir.Name{Label: doneLabel}, Possible: []temp.Label{doneLabel}},
		ir.LabelStatement{Label: falseLabel},
		ir.Move{Dst: ir.TempExp{Temp: result}, Src: ir.Const{Value: 0}},
		ir.LabelStatement{Label: doneLabel},
	)
	return ir.ExpSequence{Stmt: stmt, Exp: ir.TempExp{Temp: result}}
}

func (t *translator) transRecord(level *Level, venv venvT, tenv tenvT, n ast.RecordExp) (ir.Exp, types.TypeID) {
	ty, ok := tenv[n.Type]
	if !ok {
		t.errorf(n.Pos(), "undefined type %s", n.Type)
		return ir.Error{}, types.Int
	}
	actual := t.arena.Get(t.arena.Actual(ty))
	if actual.Kind != types.KindRecord {
		t.errorf(n.Pos(), "%s is not a record type", n.Type)
		return ir.Error{}, types.Int
	}

	ptr := t.gensym.NewTemp()
	size := int64(len(actual.Fields)) * frame.WordSize
	alloc := ir.Move{Dst: ir.TempExp{Temp: ptr}, Src: ir.Call{Func: ir.Name{Label: temp.NamedLabel("malloc")}, Args: []ir.Exp{ir.Const{Value: size}}}}
	stmts := []ir.Statement{alloc}

	for _, fld := range n.Fields {
		idx := fieldIndex(actual.Fields, fld.Name)
		if idx < 0 {
			t.errorf(n.Pos(), "record type %s has no field %s", n.Type, fld.Name)
			continue
		}
		valExp, valTy := t.transExp(level, venv, tenv, fld.Exp)
		if declared := actual.Fields[idx].Type; !t.arena.Eq(valTy, declared) {
			t.errorf(fld.Exp.Pos(), "field %s of %s: expected %s, got %s", fld.Name, n.Type, t.arena.Name(declared), t.arena.Name(valTy))
		}
		addr := ir.Exp(ir.TempExp{Temp: ptr})
		if idx != 0 {
			addr = ir.BinOpExp{Op: ir.Plus, Left: addr, Right: ir.Const{Value: int64(idx) * frame.WordSize}}
		}
		stmts = append(stmts, ir.Move{Dst: ir.Mem{Addr: addr}, Src: valExp})
	}
	return ir.ExpSequence{Stmt: ir.Seq(stmts...), Exp: ir.TempExp{Temp: ptr}}, ty
}

func fieldIndex(fields []types.RecordField, name symbol.Symbol) int {
	for i, f := range fields {
		if f.Name.Equal(name) {
			return i
		}
	}
	return -1
}

func (t *translator) transSeq(level *Level, venv venvT, tenv tenvT, n ast.SeqExp) (ir.Exp, types.TypeID) {
	if len(n.Exps) == 0 {
		return ir.Const{Value: 0}, types.Unit
	}
	var ty types.TypeID
	var stmts []ir.Statement
	var last ir.Exp
	for i, sub := range n.Exps {
		exp, subTy := t.transExp(level, venv, tenv, sub)
		if i == len(n.Exps)-1 {
			last = exp
			ty = subTy
		} else {
			stmts = append(stmts, ir.ExpStatement{Exp: exp})
		}
	}
	if len(stmts) == 0 {
		return last, ty
	}
	return ir.ExpSequence{Stmt: ir.Seq(stmts...), Exp: last}, ty
}

func (t *translator) transAssign(level *Level, venv venvT, tenv tenvT, n ast.AssignExp) (ir.Exp, types.TypeID) {
	dst, _ := t.transVar(level, venv, tenv, n.Var)
	src, _ := t.transExp(level, venv, tenv, n.Exp)
	return ir.ExpSequence{Stmt: ir.Move{Dst: dst, Src: src}, Exp: ir.Const{Value: 0}}, types.Unit
}

func (t *translator) transIf(level *Level, venv venvT, tenv tenvT, n ast.IfExp) (ir.Exp, types.TypeID) {
	testExp, testTy := t.transExp(level, venv, tenv, n.Test)
	if !t.arena.Eq(testTy, types.Int) {
		t.errorf(n.Test.Pos(), "if condition must be int")
	}
	thenExp, thenTy := t.transExp(level, venv, tenv, n.Then)

	trueLabel, falseLabel, doneLabel := t.gensym.NewLabel(), t.gensym.NewLabel(), t.gensym.NewLabel()
	test := ir.CondJump{Op: ir.NotEqual, Left: testExp, Right: ir.Const{Value: 0}, True: trueLabel, False: falseLabel}

	if n.Else == nil {
		stmt := ir.Seq(
			test,
			ir.LabelStatement{Label: trueLabel},
			ir.ExpStatement{Exp: thenExp},
			ir.LabelStatement{Label: falseLabel},
		)
		return ir.ExpSequence{Stmt: stmt, Exp: ir.Const{Value: 0}}, types.Unit
	}

	elseExp, elseTy := t.transExp(level, venv, tenv, n.Else)
	if !t.arena.Eq(thenTy, elseTy) {
		t.errorf(n.Pos(), "then/else branches must agree in type (got %s and %s)", t.arena.Name(thenTy), t.arena.Name(elseTy))
	}
	result := t.gensym.NewTemp()
	stmt := ir.Seq(
		test,
		ir.LabelStatement{Label: trueLabel},
		ir.Move{Dst: ir.TempExp{Temp: result}, Src: thenExp},
		ir.Jump{Target: ir.Name{Label: doneLabel}, Possible: []temp.Label{doneLabel}},
		ir.LabelStatement{Label: falseLabel},
		ir.Move{Dst: ir.TempExp{Temp: result}, Src: elseExp},
		ir.LabelStatement{Label: doneLabel},
	)
	return ir.ExpSequence{Stmt: stmt, Exp: ir.TempExp{Temp: result}}, thenTy
}

func (t *translator) transWhile(level *Level, venv venvT, tenv tenvT, n ast.WhileExp) (ir.Exp, types.TypeID) {
	testExp, testTy := t.transExp(level, venv, tenv, n.Test)
	if !t.arena.Eq(testTy, types.Int) {
		t.errorf(n.Test.Pos(), "while condition must be int")
	}
	testLabel, bodyLabel, doneLabel := t.gensym.NewLabel(), t.gensym.NewLabel(), t.gensym.NewLabel()

	t.breakStack = append(t.breakStack, doneLabel)
	bodyExp, bodyTy := t.transExp(level, venv, tenv, n.Body)
	t.breakStack = t.breakStack[:len(t.breakStack)-1]
	if !t.arena.Eq(bodyTy, types.Unit) {
		t.errorf(n.Body.Pos(), "while body must produce no value")
	}

	stmt := ir.Seq(
		ir.LabelStatement{Label: testLabel},
		ir.CondJump{Op: ir.NotEqual, Left: testExp, Right: ir.Const{Value: 0}, True: bodyLabel, False: doneLabel},
		ir.LabelStatement{Label: bodyLabel},
		ir.ExpStatement{Exp: bodyExp},
		ir.Jump{Target: ir.Name{Label: testLabel}, Possible: []temp.Label{testLabel}},
		ir.LabelStatement{Label: doneLabel},
	)
	return ir.ExpSequence{Stmt: stmt, Exp: ir.Const{Value: 0}}, types.Unit
}

func (t *translator) transFor(level *Level, venv venvT, tenv tenvT, n *ast.ForExp) (ir.Exp, types.TypeID) {
	loExp, loTy := t.transExp(level, venv, tenv, n.Lo)
	hiExp, hiTy := t.transExp(level, venv, tenv, n.Hi)
	if !t.arena.Eq(loTy, types.Int) || !t.arena.Eq(hiTy, types.Int) {
		t.errorf(n.Pos(), "for bounds must be int")
	}

	escapes := n.Escape != nil && *n.Escape
	access := level.Frame.AllocLocal(escapes)
	indexAccess := Access{Level: level, Access: access}
	newVenv := copyVenv(venv)
	newVenv[n.Var] = envEntry{v: varEntry{access: indexAccess, ty: types.Int}}
	indexExp := level.Frame.Exp(access, ir.TempExp{Temp: frame.ConvAMD64.FramePointer()})

	hi := t.gensym.NewTemp()
	testLabel, bodyLabel, doneLabel, incrLabel := t.gensym.NewLabel(), t.gensym.NewLabel(), t.gensym.NewLabel(), t.gensym.NewLabel()

	t.breakStack = append(t.breakStack, doneLabel)
	bodyExp, _ := t.transExp(level, newVenv, tenv, n.Body)
	t.breakStack = t.breakStack[:len(t.breakStack)-1]

	stmt := ir.Seq(
		ir.Move{Dst: indexExp, Src: loExp},
		ir.Move{Dst: ir.TempExp{Temp: hi}, Src: hiExp},
		ir.LabelStatement{Label: testLabel},
		ir.CondJump{Op: ir.LesserOrEqual, Left: indexExp, Right: ir.TempExp{Temp: hi}, True: bodyLabel, False: doneLabel},
		ir.LabelStatement{Label: bodyLabel},
		ir.ExpStatement{Exp: bodyExp},
		ir.CondJump{Op: ir.LesserThan, Left: indexExp, Right: ir.TempExp{Temp: hi}, True: incrLabel, False: doneLabel},
		ir.LabelStatement{Label: incrLabel},
		ir.Move{Dst: indexExp, Src: ir.BinOpExp{Op: ir.Plus, Left: indexExp, Right: ir.Const{Value: 1}}},
		ir.Jump{Target: ir.Name{Label: testLabel}, Possible: []temp.Label{testLabel}},
		ir.LabelStatement{Label: doneLabel},
	)
	return ir.ExpSequence{Stmt: stmt, Exp: ir.Const{Value: 0}}, types.Unit
}

func (t *translator) transArray(level *Level, venv venvT, tenv tenvT, n ast.ArrayExp) (ir.Exp, types.TypeID) {
	ty, ok := tenv[n.Type]
	if !ok {
		t.errorf(n.Pos(), "undefined type %s", n.Type)
		return ir.Error{}, types.Int
	}
	actual := t.arena.Get(t.arena.Actual(ty))
	if actual.Kind != types.KindArray {
		t.errorf(n.Pos(), "%s is not an array type", n.Type)
		return ir.Error{}, types.Int
	}
	sizeExp, sizeTy := t.transExp(level, venv, tenv, n.Size)
	if !t.arena.Eq(sizeTy, types.Int) {
		t.errorf(n.Size.Pos(), "array size must be int")
	}
	initExp, _ := t.transExp(level, venv, tenv, n.Init)
	call := ir.Call{Func: ir.Name{Label: temp.NamedLabel("initArray")}, Args: []ir.Exp{sizeExp, initExp}}
	return call, ty
}

func copyVenv(v venvT) venvT {
	c := make(venvT, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

func copyTenv(v tenvT) tenvT {
	c := make(tenvT, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}
