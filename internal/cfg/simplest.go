package cfg

import (
	"fmt"

	"tigerc/internal/asm"
	"tigerc/internal/frame"
	"tigerc/internal/temp"
)

// SimplestAllocate is spec.md §4.6's baseline allocator: every Temp that
// is not one of conv's pre-colored machine registers is spilled to a
// frame slot unconditionally, with loads/stores staged through conv's
// two caller-saved scratch registers. It exists as a didactic
// cross-check against the iterated-coalescing allocator in alloc.go/
// color.go, selected by the CLI's --simplealloc flag. Grounded on
// original_source/tiger/src/simplest_reg_alloc.rs.
func SimplestAllocate(instrs []asm.Instruction, fr frame.Frame, conv frame.CallingConvention) []asm.Instruction {
	precolored := PrecoloredSet(conv)
	scratch := conv.CallerSaved()
	if len(scratch) < 2 {
		panic("cfg: simplest allocator needs at least two scratch registers")
	}
	a, b := scratch[0], scratch[1]

	slots := map[temp.Temp]frame.Access{}
	slotFor := func(t temp.Temp) frame.Access {
		if acc, ok := slots[t]; ok {
			return acc
		}
		acc := fr.AllocLocal(true)
		slots[t] = acc
		return acc
	}

	fp := conv.FramePointer()
	out := make([]asm.Instruction, 0, len(instrs))
	for _, in := range instrs {
		if in.IsLabel() {
			out = append(out, in)
			continue
		}

		assigned := map[temp.Temp]temp.Temp{}
		var pre, post []asm.Instruction

		load := func(t temp.Temp) temp.Temp {
			if precolored[t] {
				return t
			}
			if r, ok := assigned[t]; ok {
				return r
			}
			var r temp.Temp
			switch {
			case !inUse(assigned, a):
				r = a
			case !inUse(assigned, b):
				r = b
			default:
				panic("cfg: simplest allocator supports at most two spilled sources per instruction")
			}
			assigned[t] = r
			acc := slotFor(t)
			pre = append(pre, asm.Op(fmt.Sprintf("mov 'd0, ['s0%+d]", acc.Offset), []temp.Temp{r}, []temp.Temp{fp}))
			return r
		}

		newSrc := make([]temp.Temp, len(in.Source))
		for i, t := range in.Source {
			newSrc[i] = load(t)
		}

		store := func(t temp.Temp) temp.Temp {
			if precolored[t] {
				return t
			}
			if r, ok := assigned[t]; ok {
				acc := slotFor(t)
				post = append(post, asm.Op(fmt.Sprintf("mov ['s0%+d], 's1", acc.Offset), nil, []temp.Temp{fp, r}))
				return r
			}
			var r temp.Temp
			switch {
			case !inUse(assigned, b):
				r = b
			case !inUse(assigned, a):
				r = a
			default:
				panic("cfg: simplest allocator supports only one spilled destination per instruction")
			}
			assigned[t] = r
			acc := slotFor(t)
			post = append(post, asm.Op(fmt.Sprintf("mov ['s0%+d], 's1", acc.Offset), nil, []temp.Temp{fp, r}))
			return r
		}

		newDst := make([]temp.Temp, len(in.Destination))
		for i, t := range in.Destination {
			newDst[i] = store(t)
		}

		rewritten := in
		rewritten.Source = newSrc
		rewritten.Destination = newDst
		out = append(out, pre...)
		out = append(out, rewritten)
		out = append(out, post...)
	}
	return out
}

func inUse(assigned map[temp.Temp]temp.Temp, reg temp.Temp) bool {
	for _, r := range assigned {
		if r == reg {
			return true
		}
	}
	return false
}
