package cfg

import (
	"fmt"

	"tigerc/internal/asm"
	"tigerc/internal/frame"
	"tigerc/internal/ir"
	"tigerc/internal/temp"
)

// Select runs maximal-munch instruction selection over one function's
// canonicalized statement list, producing the abstract-assembly
// instructions the flow graph, liveness, and allocator passes consume.
// No Gen/munch_statement source survived into this repository's reference
// material (original_source/tiger/src/main.rs calls it but the crate that
// defines it was not part of the retrieved pack), so the patterns below
// are grounded directly on the System V AMD64 ABI x86-64 frame already
// implements (internal/frame/x86_64.go) and on spec.md's own description
// of the x86-64 instruction set a Tiger compiler targets.
type Selector struct {
	gensym *temp.Gensym
	instrs []asm.Instruction
}

// NewSelector creates a Selector that mints fresh Temps from gensym for
// every intermediate result maximal munch needs.
func NewSelector(gensym *temp.Gensym) *Selector {
	return &Selector{gensym: gensym}
}

// Select munches every statement in stmts in order and returns the
// accumulated instruction list.
func Select(stmts []ir.Statement, gensym *temp.Gensym) []asm.Instruction {
	s := NewSelector(gensym)
	for _, st := range stmts {
		s.munchStm(st)
	}
	return s.instrs
}

func (s *Selector) emit(i asm.Instruction) { s.instrs = append(s.instrs, i) }

func (s *Selector) munchStm(st ir.Statement) {
	switch n := st.(type) {
	case ir.LabelStatement:
		s.emit(asm.Lbl(n.Label.String()+":", n.Label))

	case ir.Jump:
		name, ok := n.Target.(ir.Name)
		if !ok {
			panic("cfg: Jump to a computed address is not supported")
		}
		s.emit(asm.Jmp(fmt.Sprintf("jmp %s", name.Label), []temp.Label{name.Label}))

	case ir.CondJump:
		left := s.munchExp(n.Left)
		right := s.munchExp(n.Right)
		s.emit(asm.Op("cmp 's0, 's1", nil, []temp.Temp{left, right}))
		s.emit(asm.Jmp(fmt.Sprintf("%s %s", jccMnemonic(n.Op), n.True), []temp.Label{n.True, n.False}))

	case ir.Move:
		s.munchMove(n)

	case ir.ExpStatement:
		if call, ok := n.Exp.(ir.Call); ok {
			s.munchCall(call)
			return
		}
		s.munchExp(n.Exp)

	case ir.Sequence:
		s.munchStm(n.First)
		s.munchStm(n.Second)

	default:
		panic("cfg: unhandled Statement in instruction selection")
	}
}

func (s *Selector) munchMove(n ir.Move) {
	switch dst := n.Dst.(type) {
	case ir.Mem:
		operand, addrRegs := s.munchAddr(dst.Addr)
		src := s.munchExp(n.Src)
		s.emit(asm.Op(fmt.Sprintf("mov %s, 's%d", operand, len(addrRegs)), nil, append(addrRegs, src)))

	case ir.TempExp:
		switch src := n.Src.(type) {
		case ir.Const:
			s.emit(asm.Op(fmt.Sprintf("mov 'd0, %d", src.Value), []temp.Temp{dst.Temp}, nil))
		case ir.Mem:
			operand, addrRegs := s.munchAddr(src.Addr)
			s.emit(asm.Op(fmt.Sprintf("mov 'd0, %s", operand), []temp.Temp{dst.Temp}, addrRegs))
		case ir.Call:
			s.munchCall(src)
			s.emit(asm.Mov("mov 'd0, 's0", dst.Temp, frame.ConvAMD64.ReturnValue()))
		default:
			r := s.munchExp(n.Src)
			s.emit(asm.Mov("mov 'd0, 's0", dst.Temp, r))
		}

	default:
		panic("cfg: Move destination must be a Mem or TempExp")
	}
}

// munchAddr recognizes base+displacement addressing so a single load or
// store instruction computes the address, instead of materializing it
// into a Temp first.
func (s *Selector) munchAddr(addr ir.Exp) (operand string, regs []temp.Temp) {
	switch e := addr.(type) {
	case ir.BinOpExp:
		if e.Op == ir.Plus {
			if c, ok := e.Right.(ir.Const); ok {
				base := s.munchExp(e.Left)
				return fmt.Sprintf("['s0+%d]", c.Value), []temp.Temp{base}
			}
			if c, ok := e.Left.(ir.Const); ok {
				base := s.munchExp(e.Right)
				return fmt.Sprintf("['s0+%d]", c.Value), []temp.Temp{base}
			}
		}
	case ir.Const:
		return fmt.Sprintf("[%d]", e.Value), nil
	}
	base := s.munchExp(addr)
	return "['s0]", []temp.Temp{base}
}

func (s *Selector) munchCall(n ir.Call) {
	name, ok := n.Func.(ir.Name)
	if !ok {
		panic("cfg: indirect calls are not supported")
	}
	argRegs := frame.ConvAMD64.ArgRegisters()
	if len(n.Args) > len(argRegs) {
		panic("cfg: more than six call arguments is not supported")
	}
	for i, arg := range n.Args {
		v := s.munchExp(arg)
		s.emit(asm.Mov("mov 'd0, 's0", argRegs[i], v))
	}
	var uses []temp.Temp
	uses = append(uses, argRegs[:len(n.Args)]...)
	uses = append(uses, frame.ConvAMD64.CallerSaved()...)
	// A call clobbers the return-value register, the caller-saved
	// scratch registers, and every argument register (spec.md §4.2's
	// Call tile: destination clobbers = caller-saved ∪ argument regs ∪
	// return-value) — not just the ones this particular call happens to
	// pass, since any Temp the allocator has colored to an unused
	// argument register is equally clobbered by the callee.
	clobbers := append([]temp.Temp{frame.ConvAMD64.ReturnValue()}, frame.ConvAMD64.CallerSaved()...)
	clobbers = append(clobbers, frame.ConvAMD64.ArgRegisters()...)
	s.emit(asm.Instruction{
		Kind:        asm.KindOperation,
		Assembly:    fmt.Sprintf("call %s", name.Label),
		Source:      uses,
		Destination: clobbers,
	})
}

func (s *Selector) munchExp(e ir.Exp) temp.Temp {
	switch n := e.(type) {
	case ir.TempExp:
		return n.Temp

	case ir.Const:
		t := s.gensym.NewTemp()
		s.emit(asm.Op(fmt.Sprintf("mov 'd0, %d", n.Value), []temp.Temp{t}, nil))
		return t

	case ir.Name:
		t := s.gensym.NewTemp()
		s.emit(asm.Op(fmt.Sprintf("lea 'd0, [rel %s]", n.Label), []temp.Temp{t}, nil))
		return t

	case ir.Mem:
		operand, addrRegs := s.munchAddr(n.Addr)
		t := s.gensym.NewTemp()
		s.emit(asm.Op(fmt.Sprintf("mov 'd0, %s", operand), []temp.Temp{t}, addrRegs))
		return t

	case ir.BinOpExp:
		return s.munchBinOp(n)

	case ir.Call:
		s.munchCall(n)
		t := s.gensym.NewTemp()
		s.emit(asm.Mov("mov 'd0, 's0", t, frame.ConvAMD64.ReturnValue()))
		return t

	default:
		panic("cfg: unhandled Exp in instruction selection")
	}
}

func (s *Selector) munchBinOp(n ir.BinOpExp) temp.Temp {
	switch n.Op {
	case ir.Div:
		return s.munchDivMod(n, frame.RAX)
	case ir.ShiftLeft, ir.ShiftRight, ir.ArithmeticShiftRight:
		return s.munchShift(n)
	}

	left := s.munchExp(n.Left)
	right := s.munchExp(n.Right)
	t := s.gensym.NewTemp()
	s.emit(asm.Mov("mov 'd0, 's0", t, left))
	s.emit(asm.Op(fmt.Sprintf("%s 'd0, 's1", binMnemonic(n.Op)), []temp.Temp{t}, []temp.Temp{t, right}))
	return t
}

// munchDivMod lowers integer division: the dividend goes through
// rax:rdx, the quotient comes out of rax. resultReg selects rax (Div); a
// future Mod operator would select rdx the same way.
func (s *Selector) munchDivMod(n ir.BinOpExp, resultReg temp.Temp) temp.Temp {
	left := s.munchExp(n.Left)
	right := s.munchExp(n.Right)
	s.emit(asm.Mov("mov 'd0, 's0", frame.RAX, left))
	s.emit(asm.Op("cqo", []temp.Temp{frame.RDX}, []temp.Temp{frame.RAX}))
	s.emit(asm.Op("idiv 's0", []temp.Temp{frame.RAX, frame.RDX}, []temp.Temp{frame.RAX, frame.RDX, right}))
	t := s.gensym.NewTemp()
	s.emit(asm.Mov("mov 'd0, 's0", t, resultReg))
	return t
}

// munchShift lowers a variable shift count through cl, the only operand
// x86-64 accepts for a shift instruction's count.
func (s *Selector) munchShift(n ir.BinOpExp) temp.Temp {
	left := s.munchExp(n.Left)
	count := s.munchExp(n.Right)
	t := s.gensym.NewTemp()
	s.emit(asm.Mov("mov 'd0, 's0", t, left))
	s.emit(asm.Mov("mov 'd0, 's0", frame.RCX, count))
	s.emit(asm.Op(fmt.Sprintf("%s 'd0, cl", shiftMnemonic(n.Op)), []temp.Temp{t}, []temp.Temp{t, frame.RCX}))
	return t
}

func binMnemonic(op ir.BinOp) string {
	switch op {
	case ir.Plus:
		return "add"
	case ir.Minus:
		return "sub"
	case ir.Mul:
		return "imul"
	case ir.And:
		return "and"
	case ir.Or:
		return "or"
	case ir.Xor:
		return "xor"
	default:
		panic("cfg: unhandled BinOp in instruction selection")
	}
}

func shiftMnemonic(op ir.BinOp) string {
	switch op {
	case ir.ShiftLeft:
		return "shl"
	case ir.ShiftRight:
		return "shr"
	case ir.ArithmeticShiftRight:
		return "sar"
	default:
		panic("cfg: unhandled shift BinOp in instruction selection")
	}
}

func jccMnemonic(op ir.RelOp) string {
	switch op {
	case ir.Equal:
		return "je"
	case ir.NotEqual:
		return "jne"
	case ir.LesserThan:
		return "jl"
	case ir.GreaterThan:
		return "jg"
	case ir.LesserOrEqual:
		return "jle"
	case ir.GreaterOrEqual:
		return "jge"
	case ir.UnsignedLesserThan:
		return "jb"
	case ir.UnsignedLesserOrEqual:
		return "jbe"
	case ir.UnsignedGreaterThan:
		return "ja"
	case ir.UnsignedGreaterOrEqual:
		return "jae"
	default:
		panic("cfg: unhandled RelOp in instruction selection")
	}
}
