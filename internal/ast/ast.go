// Package ast defines Tiger's expression/declaration tree, the parser's
// output and the escape pass's and semant's shared input.
package ast

import (
	"tigerc/internal/diagnostics"
	"tigerc/internal/symbol"
)

// Exp is any Tiger expression node.
type Exp interface {
	Pos() diagnostics.Pos
}

// Var is an lvalue: a bare identifier, a field projection, or a
// subscript, each possibly chained onto another Var.
type Var interface {
	Exp
	varNode()
}

type Base struct{ P diagnostics.Pos }

func (b Base) Pos() diagnostics.Pos { return b.P }

// SimpleVar is a bare identifier reference.
type SimpleVar struct {
	Base
	Name symbol.Symbol
}

// FieldVar is `v.Field`.
type FieldVar struct {
	Base
	Var   Var
	Field symbol.Symbol
}

// SubscriptVar is `v[Index]`.
type SubscriptVar struct {
	Base
	Var   Var
	Index Exp
}

func (SimpleVar) varNode()    {}
func (FieldVar) varNode()     {}
func (SubscriptVar) varNode() {}

// VarExp lifts a Var into an Exp position.
type VarExp struct {
	Base
	Var Var
}

// NilExp is the `nil` literal.
type NilExp struct{ Base }

// IntExp is an integer literal.
type IntExp struct {
	Base
	Value int64
}

// StringExp is a string literal.
type StringExp struct {
	Base
	Value string
}

// CallExp invokes Func with Args.
type CallExp struct {
	Base
	Func symbol.Symbol
	Args []Exp
}

// Oper enumerates Tiger's binary operators (arithmetic and comparison).
type Oper int

const (
	PlusOp Oper = iota
	MinusOp
	TimesOp
	DivideOp
	EqOp
	NeqOp
	LtOp
	LeOp
	GtOp
	GeOp
)

// OpExp is a binary operator application.
type OpExp struct {
	Base
	Op          Oper
	Left, Right Exp
}

// RecordField is one `name = value` pair in a record literal.
type RecordField struct {
	Name symbol.Symbol
	Exp  Exp
}

// RecordExp constructs a value of the named record type.
type RecordExp struct {
	Base
	Type   symbol.Symbol
	Fields []RecordField
}

// SeqExp is a `(e1; e2; ...)` sequence; an empty sequence is Tiger's unit
// value.
type SeqExp struct {
	Base
	Exps []Exp
}

// AssignExp is `var := exp`.
type AssignExp struct {
	Base
	Var Var
	Exp Exp
}

// IfExp is `if Test then Then [else Else]`.
type IfExp struct {
	Base
	Test, Then Exp
	Else       Exp // nil when there is no else branch
}

// WhileExp is `while Test do Body`.
type WhileExp struct {
	Base
	Test, Body Exp
}

// ForExp is `for Var := Lo to Hi do Body`; Escape is filled in by the
// escape-analysis pass.
type ForExp struct {
	Base
	Var        symbol.Symbol
	Escape     *bool
	Lo, Hi     Exp
	Body       Exp
}

// BreakExp is `break`.
type BreakExp struct{ Base }

// LetExp is `let Decs in Body end`.
type LetExp struct {
	Base
	Decs []Dec
	Body Exp
}

// ArrayExp constructs an array of the named element type.
type ArrayExp struct {
	Base
	Type symbol.Symbol
	Size Exp
	Init Exp
}

// Dec is any top-level or let-bound declaration.
type Dec interface {
	Pos() diagnostics.Pos
	decNode()
}

// FunctionDec is one function in a mutually-recursive group of
// consecutive `function` declarations.
type FunctionDec struct {
	Base
	Name    symbol.Symbol
	Params  []Field
	Result  symbol.Symbol // meaningful only when HasResult is set (false for a procedure)
	HasResult bool
	Body    Exp
}

// Field is one `name : type` pair, used for both function parameters and
// record fields.
type Field struct {
	Pos    diagnostics.Pos
	Name   symbol.Symbol
	Type   symbol.Symbol
	Escape *bool // filled in by escape analysis; nil until then
}

// FunctionDecGroup is a maximal run of consecutive function declarations,
// mutually recursive with one another.
type FunctionDecGroup struct {
	Base
	Functions []FunctionDec
}

// VarDec is `var Name [: Type] := Init`.
type VarDec struct {
	Base
	Name      symbol.Symbol
	Type      symbol.Symbol
	HasType   bool
	Escape    *bool
	Init      Exp
}

// TypeDecGroup is a maximal run of consecutive type declarations, mutually
// recursive with one another.
type TypeDecGroup struct {
	Base
	Types []TypeDec
}

// TypeDec is `type Name = Type`.
type TypeDec struct {
	Pos  diagnostics.Pos
	Name symbol.Symbol
	Type Type
}

// VarDec implements Dec via a pointer receiver (unlike every other node)
// because escape analysis mutates its Escape field in place, so it is
// always constructed and passed around as a pointer. ForExp keeps value
// receivers, but the parser builds it as *ForExp and later passes match
// on that pointer type.
func (*VarDec) decNode()          {}
func (FunctionDecGroup) decNode() {}
func (TypeDecGroup) decNode()     {}

// Type is a type expression on the right-hand side of a `type`
// declaration.
type Type interface {
	Pos() diagnostics.Pos
	typeNode()
}

// NameType is a reference to another named type.
type NameType struct {
	Base
	Name symbol.Symbol
}

// RecordType lists a record type's fields.
type RecordType struct {
	Base
	Fields []Field
}

// ArrayType names the element type of an array type.
type ArrayType struct {
	Base
	Element symbol.Symbol
}

func (NameType) typeNode()   {}
func (RecordType) typeNode() {}
func (ArrayType) typeNode()  {}
