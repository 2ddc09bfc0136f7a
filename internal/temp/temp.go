// Package temp provides the gensym facilities shared by the whole
// compiler: machine-independent pseudo-registers (Temp) and symbolic
// jump targets (Label).
package temp

import "fmt"

// Temp names a value that will eventually live in a register or a stack
// slot. Low-numbered Temps are reserved for pre-colored machine registers;
// a Frame implementation declares those as constants (see
// frame.FirstFreeTemp).
type Temp uint32

// String renders a Temp as a debug name. Callers that need the
// machine-register name for a pre-colored Temp should consult
// frame.CallingConvention.TempName instead; String is only for dumps and
// error text.
func (t Temp) String() string {
	return fmt.Sprintf("t%d", uint32(t))
}

// Label names a position in the generated assembly: a jump target, a
// function entry point, or a data fragment.
type Label struct {
	name string
	num  uint32
}

// String renders a Label as NASM-legal assembly text.
func (l Label) String() string {
	if l.name != "" {
		return l.name
	}
	return fmt.Sprintf("L%d", l.num)
}

// Gensym is the generator of fresh Temps and Labels for one compilation.
// Spec note: the original tiger-rust implementation keeps the counters as
// process-wide `static mut` globals; this type makes the counters explicit
// state threaded through the pipeline instead, so that running the
// compiler on several files in one process (or in parallel) never shares
// mutable generator state.
type Gensym struct {
	nextTemp  uint32
	nextLabel uint32
}

// NewGensym returns a Gensym whose Temp counter starts at firstFreeTemp;
// passing frame.FirstFreeTemp keeps fresh Temps above the pre-colored
// machine-register range.
func NewGensym(firstFreeTemp uint32) *Gensym {
	return &Gensym{nextTemp: firstFreeTemp}
}

// NewTemp returns a fresh, never-before-seen Temp.
func (g *Gensym) NewTemp() Temp {
	t := Temp(g.nextTemp)
	g.nextTemp++
	return t
}

// NewLabel returns a fresh, anonymous Label, e.g. "L12".
func (g *Gensym) NewLabel() Label {
	l := Label{num: g.nextLabel}
	g.nextLabel++
	return l
}

// NamedLabel returns a Label that prints as the given name verbatim, used
// for function entry points and other symbols the linker must see by name.
func NamedLabel(name string) Label {
	return Label{name: name}
}
