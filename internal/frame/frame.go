// Package frame abstracts the target machine's calling convention and
// stack-frame layout behind a capability-set interface, with a single
// concrete implementation for x86-64 System V. Spec note: the interface is
// deliberately not generic over "any Frame implementation" the way
// tiger-rust's `Frame` trait is; this repository targets one architecture,
// so Frame is modeled as a plain interface owned for the duration of one
// function's compilation, matching the teacher's calling-convention
// capability-set pattern.
package frame

import (
	"tigerc/internal/asm"
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

// Access describes where one local variable or formal parameter lives:
// either a fixed offset from the frame pointer, or a register that holds
// it directly. Exactly one of the two fields is meaningful, selected by
// InRegister.
type Access struct {
	InRegister bool
	Reg        temp.Temp // valid when InRegister
	Offset     int64     // valid when !InRegister: byte offset from the frame pointer
}

// Frame is the capability set a Frame implementation exposes to the
// canonicalizer, instruction selector, and register allocator. There is
// one concrete implementation, X86_64.
type Frame interface {
	// Name returns the function's entry label.
	Name() temp.Label

	// Formals returns the Access for each formal parameter, in source
	// order (the leading static-link formal, when present, is formal 0).
	Formals() []Access

	// AllocLocal reserves storage for one more local variable. escape
	// forces the variable into the frame rather than a register.
	AllocLocal(escape bool) Access

	// Exp produces the IR expression that reads/writes the variable
	// described by access, given an expression for the frame pointer of
	// the frame that access belongs to (TempExp{FramePointer()} for the
	// current frame, or a chased static link for an enclosing one).
	Exp(access Access, framePtr ir.Exp) ir.Exp

	// ProcEntryExit1 wraps a function's translated body with the
	// callee-saved-register save/restore sequence and the
	// register-to-formal moves the calling convention requires.
	ProcEntryExit1(body ir.Statement) ir.Statement

	// ProcEntryExit2 appends a sink instruction that keeps the
	// callee-saved and special registers visible to the CFG built over
	// the function's instructions, so the allocator never frees them
	// early.
	ProcEntryExit2(instrs []asm.Instruction) []asm.Instruction

	// ProcEntryExit3 wraps the allocated instruction list with the
	// prologue/epilogue text once the frame's final size is known.
	ProcEntryExit3(body []asm.Instruction) asm.Subroutine
}

// CallingConvention exposes the register classes a Frame's architecture
// assigns specific roles to; the allocator and instruction selector
// consult it without needing to know the concrete Frame type.
type CallingConvention interface {
	ArgRegisters() []temp.Temp
	CalleeSaved() []temp.Temp
	CallerSaved() []temp.Temp
	ReturnValue() temp.Temp
	FramePointer() temp.Temp
	StackPointer() temp.Temp
	// Registers lists every machine register available to the
	// allocator, in a fixed, deterministic order.
	Registers() []temp.Temp
	// TempName returns the assembly-syntax name of a pre-colored
	// machine-register Temp, or "" if t is not a machine register.
	TempName(t temp.Temp) string
}

// Fragment is one unit of a compiled program: a function body together
// with the Frame it was translated against, or a string literal awaiting
// emission into the .data section.
type Fragment interface {
	fragmentNode()
}

// FunctionFragment is a translated function body paired with its Frame.
type FunctionFragment struct {
	Body  ir.Statement
	Frame Frame
}

// StringFragment is a string literal that must be emitted into .data
// under Label.
type StringFragment struct {
	Label temp.Label
	Value string
}

func (FunctionFragment) fragmentNode() {}
func (StringFragment) fragmentNode()   {}
