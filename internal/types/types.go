// Package types models Tiger's nominal type system as an arena of Type
// nodes addressed by small integer TypeIDs, per spec.md §9's redesign
// note: the original's Rc<RefCell<Option<Type>>> cyclic representation
// (needed for mutually recursive records in a borrow-checked language) is
// replaced by an arena plus a second patching pass, which is the natural
// idiom once recursion no longer needs interior mutability to type-check.
package types

import "tigerc/internal/symbol"

// TypeID addresses one Type node in an Arena.
type TypeID int

// Kind discriminates an arena entry's shape.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindRecord
	KindArray
	KindNil
	KindUnit
	KindName // a forward-declared name, patched to resolve to another TypeID
)

// RecordField is one field of a record type: its name and declared type.
// Its position in the record's Fields slice gives its word offset.
type RecordField struct {
	Name symbol.Symbol
	Type TypeID
}

// Type is one arena entry. Name is meaningful for KindRecord/KindArray/
// KindName (so error messages can name the declared type); Resolved is meaningful
// only for KindName, and is filled in once the declaration group's second
// pass patches forward references.
type Type struct {
	Kind     Kind
	Name     symbol.Symbol
	Fields   []RecordField // KindRecord
	Elem     TypeID        // KindArray
	Resolved TypeID        // KindName, -1 until patched
	unique   int           // distinguishes two structurally-identical record/array decls
}

// Arena owns every Type value allocated during one compilation.
type Arena struct {
	types  []Type
	unique int
}

// NewArena returns an Arena pre-populated with the four builtin types
// at fixed, well-known ids.
func NewArena() *Arena {
	a := &Arena{}
	a.types = append(a.types, Type{Kind: KindInt})
	a.types = append(a.types, Type{Kind: KindString})
	a.types = append(a.types, Type{Kind: KindNil})
	a.types = append(a.types, Type{Kind: KindUnit})
	return a
}

const (
	Int    TypeID = 0
	String TypeID = 1
	Nil    TypeID = 2
	Unit   TypeID = 3
)

func (a *Arena) Get(id TypeID) *Type { return &a.types[id] }

// NewName reserves an unresolved KindName entry for a type declared in the
// current group, to be patched by Patch once every sibling's shape is
// known.
func (a *Arena) NewName(name symbol.Symbol) TypeID {
	a.types = append(a.types, Type{Kind: KindName, Name: name, Resolved: -1})
	return TypeID(len(a.types) - 1)
}

// Patch fills in a previously reserved KindName entry's target.
func (a *Arena) Patch(id TypeID, target TypeID) {
	a.types[id].Resolved = target
}

// NewRecord allocates a fresh, nominally distinct record type.
func (a *Arena) NewRecord(name symbol.Symbol, fields []RecordField) TypeID {
	a.unique++
	a.types = append(a.types, Type{Kind: KindRecord, Name: name, Fields: fields, unique: a.unique})
	return TypeID(len(a.types) - 1)
}

// NewArray allocates a fresh, nominally distinct array type.
func (a *Arena) NewArray(name symbol.Symbol, elem TypeID) TypeID {
	a.unique++
	a.types = append(a.types, Type{Kind: KindArray, Name: name, Elem: elem, unique: a.unique})
	return TypeID(len(a.types) - 1)
}

// Actual follows a chain of KindName entries to the underlying
// record/array/int/string/nil/unit type it ultimately names.
func (a *Arena) Actual(id TypeID) TypeID {
	for a.types[id].Kind == KindName {
		next := a.types[id].Resolved
		if next < 0 || next == id {
			return id // unresolved or self-referential: let the caller report the cycle
		}
		id = next
	}
	return id
}

// Eq reports whether x and y name the same type for Tiger's assignability
// rules: structural equality for Nil/Unit/Int/String, nominal (arena
// identity) equality for Record/Array, and Nil is compatible with any
// Record.
func (a *Arena) Eq(x, y TypeID) bool {
	x, y = a.Actual(x), a.Actual(y)
	if x == y {
		return true
	}
	xk, yk := a.types[x].Kind, a.types[y].Kind
	if xk == KindNil && yk == KindRecord {
		return true
	}
	if yk == KindNil && xk == KindRecord {
		return true
	}
	return false
}

func (a *Arena) Name(id TypeID) string {
	t := &a.types[id]
	switch t.Kind {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindNil:
		return "nil"
	case KindUnit:
		return "unit"
	default:
		if t.Name.String() != "" {
			return t.Name.String()
		}
		return "<anonymous>"
	}
}
