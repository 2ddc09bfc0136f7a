package frame

import (
	"fmt"

	"tigerc/internal/asm"
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

// Pre-colored machine-register Temps for x86-64 System V. These occupy the
// low end of the Temp numbering space; a Gensym created with
// FirstFreeTemp hands out Temps above them.
const (
	RAX temp.Temp = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	numMachineRegisters
)

var registerNames = map[temp.Temp]string{
	RAX: "rax", RBX: "rbx", RCX: "rcx", RDX: "rdx",
	RSI: "rsi", RDI: "rdi", RBP: "rbp", RSP: "rsp",
	R8: "r8", R9: "r9", R10: "r10", R11: "r11",
	R12: "r12", R13: "r13", R14: "r14", R15: "r15",
}

// WordSize is the size in bytes of one machine word on x86-64.
const WordSize = 8

// FirstFreeTemp is the Temp id a Gensym must start handing out fresh
// virtual registers from, so they never collide with a pre-colored
// machine register.
const FirstFreeTemp = uint32(numMachineRegisters)

// x86CallingConvention implements CallingConvention for the System V
// AMD64 ABI: six integer argument registers, rax for the return value,
// rbx/rbp/r12-r15 callee-saved, r10/r11 caller-saved (beyond the argument
// registers, which are caller-saved by virtue of carrying live arguments
// across no call).
type x86CallingConvention struct{}

// ConvAMD64 is the sole x86-64 System V calling-convention value; callers
// never need more than one instance since it is stateless.
var ConvAMD64 CallingConvention = x86CallingConvention{}

func (x86CallingConvention) ArgRegisters() []temp.Temp {
	return []temp.Temp{RDI, RSI, RDX, RCX, R8, R9}
}

func (x86CallingConvention) CalleeSaved() []temp.Temp {
	return []temp.Temp{RBX, RBP, R12, R13, R14, R15}
}

func (x86CallingConvention) CallerSaved() []temp.Temp {
	return []temp.Temp{R10, R11}
}

func (x86CallingConvention) ReturnValue() temp.Temp { return RAX }
func (x86CallingConvention) FramePointer() temp.Temp { return RBP }
func (x86CallingConvention) StackPointer() temp.Temp { return RSP }

// Registers lists the registers the allocator may color with: every
// general-purpose register except rsp and rbp, which are reserved for the
// frame-pointer/stack-pointer roles and never appear as allocator
// candidates. Its length is K in spec.md's sense.
func (x86CallingConvention) Registers() []temp.Temp {
	return []temp.Temp{RAX, RBX, RCX, RDX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15}
}

func (x86CallingConvention) TempName(t temp.Temp) string {
	return registerNames[t]
}

// X86_64 is the concrete Frame implementation: a function's formal layout
// and a running watermark of local-variable storage. One X86_64 value is
// created per function being translated and lives for that function's
// entire pass through canon/select/alloc.
type X86_64 struct {
	label      temp.Label
	formals    []Access
	pointer    int64 // next free InFrame offset, counts down from 0
	gensym     *temp.Gensym
	calleeTemp map[temp.Temp]temp.Temp // callee-saved register -> its save slot, filled by ProcEntryExit1
}

// NewX86_64 builds the Frame for a function named label whose formals
// escape according to formalsEscape (in source order). gensym supplies
// fresh Temps for non-escaping formals and for the callee-saved
// save/restore temporaries ProcEntryExit1 introduces.
func NewX86_64(label temp.Label, formalsEscape []bool, gensym *temp.Gensym) *X86_64 {
	f := &X86_64{label: label, gensym: gensym}
	for _, escapes := range formalsEscape {
		f.formals = append(f.formals, f.allocate(escapes))
	}
	return f
}

func (f *X86_64) allocate(escape bool) Access {
	if escape {
		f.pointer -= WordSize
		return Access{Offset: f.pointer}
	}
	return Access{InRegister: true, Reg: f.gensym.NewTemp()}
}

func (f *X86_64) Name() temp.Label    { return f.label }
func (f *X86_64) Formals() []Access   { return f.formals }
func (f *X86_64) AllocLocal(escape bool) Access {
	return f.allocate(escape)
}

func (f *X86_64) Exp(access Access, framePtr ir.Exp) ir.Exp {
	if access.InRegister {
		return ir.TempExp{Temp: access.Reg}
	}
	addr := ir.Exp(framePtr)
	if access.Offset != 0 {
		addr = ir.BinOpExp{Op: ir.Plus, Left: addr, Right: ir.Const{Value: access.Offset}}
	}
	return ir.Mem{Addr: addr}
}

// ProcEntryExit1 prepends the save of every callee-saved register into a
// fresh temp (coalescing removes the move if the body never touches that
// register) and the moves from incoming argument registers into the
// formals' Access locations, then appends the matching restores.
func (f *X86_64) ProcEntryExit1(body ir.Statement) ir.Statement {
	var prologue, epilogue []ir.Statement

	f.calleeTemp = make(map[temp.Temp]temp.Temp)
	for _, reg := range ConvAMD64.CalleeSaved() {
		save := f.gensym.NewTemp()
		f.calleeTemp[reg] = save
		prologue = append(prologue, ir.Move{Dst: ir.TempExp{Temp: save}, Src: ir.TempExp{Temp: reg}})
		epilogue = append(epilogue, ir.Move{Dst: ir.TempExp{Temp: reg}, Src: ir.TempExp{Temp: save}})
	}

	argRegs := ConvAMD64.ArgRegisters()
	fp := ir.TempExp{Temp: ConvAMD64.FramePointer()}
	for i, formal := range f.formals {
		dst := f.Exp(formal, fp)
		switch {
		case i < len(argRegs):
			prologue = append(prologue, ir.Move{Dst: dst, Src: ir.TempExp{Temp: argRegs[i]}})
		default:
			// Stack-passed formal: [rbp + 8*(i - len(argRegs) + 2)], the
			// "+2" skipping the saved rbp and the return address.
			stackIndex := int64(i-len(argRegs)) + 2
			src := ir.Mem{Addr: ir.BinOpExp{Op: ir.Plus, Left: fp, Right: ir.Const{Value: stackIndex * WordSize}}}
			prologue = append(prologue, ir.Move{Dst: dst, Src: src})
		}
	}

	return ir.Seq(append(append(prologue, body), epilogue...)...)
}

// ProcEntryExit2 appends a sink Operation whose Source lists every
// register that must still be considered live at the function's return,
// so the liveness pass never frees a callee-saved register (or rsp/rbp)
// before the epilogue reads it back.
func (f *X86_64) ProcEntryExit2(instrs []asm.Instruction) []asm.Instruction {
	sink := append([]temp.Temp{ConvAMD64.FramePointer(), ConvAMD64.StackPointer(), ConvAMD64.ReturnValue()}, ConvAMD64.CalleeSaved()...)
	return append(instrs, asm.Instruction{Kind: asm.KindOperation, Assembly: "", Source: sink, HasJump: true, Jump: []temp.Label{}})
}

// ProcEntryExit3 renders the textual prologue/epilogue once spilling has
// fixed the frame's final size. Stack size is -pointer rounded up to a
// multiple of 16, matching the ABI's 16-byte stack alignment requirement
// at a call boundary.
func (f *X86_64) ProcEntryExit3(body []asm.Instruction) asm.Subroutine {
	size := -f.pointer
	if rem := size % 16; rem != 0 {
		size += 16 - rem
	}
	prolog := fmt.Sprintf("%s:\n\tpush rbp\n\tmov rbp, rsp\n\tsub rsp, %d\n", f.label, size)
	epilog := "\tleave\n\tret\n"
	return asm.Subroutine{Prolog: prolog, Body: body, Epilog: epilog}
}
