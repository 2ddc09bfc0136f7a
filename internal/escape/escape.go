// Package escape marks every variable, for-loop index, and function
// parameter that is referenced from a nested function deeper than the one
// that declares it. internal/semant consults these marks to choose
// frame.Access's InFrame over InReg: only a variable a closure can capture
// needs a stable address.
package escape

import "tigerc/internal/ast"

// Analyze walks exp in-place, setting every *bool escape slot the parser
// attached to a VarDec/ForExp/Field. A variable escapes iff some Exp that
// references it sits at a greater function-nesting depth than the
// declaration.
func Analyze(exp ast.Exp) {
	analyzeExp(0, map[string]*depthEntry{}, exp)
}

type depthEntry struct {
	depth  int
	escape *bool
}

type scope = map[string]*depthEntry

func child(parent scope) scope {
	c := make(scope, len(parent))
	for k, v := range parent {
		c[k] = v
	}
	return c
}

func mark(env scope, name string, useDepth int) {
	if e, ok := env[name]; ok && useDepth > e.depth {
		*e.escape = true
	}
}

func analyzeExp(depth int, env scope, e ast.Exp) {
	switch n := e.(type) {
	case ast.VarExp:
		analyzeVar(depth, env, n.Var)
	case ast.Var:
		analyzeVar(depth, env, n)
	case ast.NilExp, ast.IntExp, ast.StringExp, ast.BreakExp:
		// no subexpressions
	case ast.CallExp:
		for _, a := range n.Args {
			analyzeExp(depth, env, a)
		}
	case ast.OpExp:
		analyzeExp(depth, env, n.Left)
		analyzeExp(depth, env, n.Right)
	case ast.RecordExp:
		for _, f := range n.Fields {
			analyzeExp(depth, env, f.Exp)
		}
	case ast.SeqExp:
		for _, sub := range n.Exps {
			analyzeExp(depth, env, sub)
		}
	case ast.AssignExp:
		analyzeVar(depth, env, n.Var)
		analyzeExp(depth, env, n.Exp)
	case ast.IfExp:
		analyzeExp(depth, env, n.Test)
		analyzeExp(depth, env, n.Then)
		if n.Else != nil {
			analyzeExp(depth, env, n.Else)
		}
	case ast.WhileExp:
		analyzeExp(depth, env, n.Test)
		analyzeExp(depth, env, n.Body)
	case *ast.ForExp:
		analyzeExp(depth, env, n.Lo)
		analyzeExp(depth, env, n.Hi)
		if n.Escape == nil {
			n.Escape = new(bool)
		}
		*n.Escape = false
		inner := child(env)
		inner[n.Var.String()] = &depthEntry{depth: depth, escape: n.Escape}
		analyzeExp(depth, inner, n.Body)
	case ast.LetExp:
		letEnv := env
		for _, dec := range n.Decs {
			letEnv = analyzeDec(depth, letEnv, dec)
		}
		analyzeExp(depth, letEnv, n.Body)
	case ast.ArrayExp:
		analyzeExp(depth, env, n.Size)
		analyzeExp(depth, env, n.Init)
	}
}

func analyzeVar(depth int, env scope, v ast.Var) {
	switch n := v.(type) {
	case ast.SimpleVar:
		mark(env, n.Name.String(), depth)
	case ast.FieldVar:
		analyzeVar(depth, env, n.Var)
	case ast.SubscriptVar:
		analyzeVar(depth, env, n.Var)
		analyzeExp(depth, env, n.Index)
	}
}

// analyzeDec processes one declaration in a let's declaration list,
// returning the scope subsequent declarations and the let body should see.
func analyzeDec(depth int, env scope, dec ast.Dec) scope {
	switch n := dec.(type) {
	case *ast.VarDec:
		analyzeExp(depth, env, n.Init)
		if n.Escape == nil {
			n.Escape = new(bool)
		}
		*n.Escape = false
		next := child(env)
		next[n.Name.String()] = &depthEntry{depth: depth, escape: n.Escape}
		return next
	case ast.FunctionDecGroup:
		for i := range n.Functions {
			fn := &n.Functions[i]
			bodyEnv := child(env)
			for j := range fn.Params {
				p := &fn.Params[j]
				if p.Escape == nil {
					p.Escape = new(bool)
				}
				*p.Escape = false
				bodyEnv[p.Name.String()] = &depthEntry{depth: depth + 1, escape: p.Escape}
			}
			analyzeExp(depth+1, bodyEnv, fn.Body)
		}
		return env
	case ast.TypeDecGroup:
		return env
	}
	return env
}
