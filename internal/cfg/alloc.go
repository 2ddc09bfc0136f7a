package cfg

import (
	"fmt"
	"sort"

	"tigerc/internal/asm"
	"tigerc/internal/frame"
	"tigerc/internal/temp"
)

// Allocate runs Color to a fixed point over instrs, rewriting the
// instruction stream around every spilled Temp and re-running build ->
// coloring each time a round produces a non-empty spill list. Grounded
// on original_source/tiger/src/reg_alloc.rs's replace_allocation driver:
// each iteration allocates one fresh frame slot per spilled Temp, then
// inserts a load before every use and a store after every def, feeding
// the resulting stream (with its newly minted Temps) back into Color.
// Termination follows spec.md §8 property 4 for any stream in which no
// single instruction names more Temps than conv has allocatable
// registers: a Temp spilled this round is replaced by fresh Temps with
// strictly smaller live ranges (one instruction each), so the set of
// Temps still requiring a register shrinks every round until none do.
// An instruction that names more Temps than that can never be colored,
// and for such a stream the loop does not end.
func Allocate(instrs []asm.Instruction, fr frame.Frame, conv frame.CallingConvention, gensym *temp.Gensym) ([]asm.Instruction, Allocation) {
	for {
		flow := BuildFlowGraph(instrs)
		ig := BuildInterferenceGraph(flow)
		initial := collectInitial(instrs, conv)

		result := Color(ig, initial, conv)
		if len(result.Spills) == 0 {
			return finalize(instrs, result.Allocation), result.Allocation
		}
		instrs = rewriteSpills(instrs, result.Spills, fr, conv, gensym)
	}
}

// collectInitial returns every non-precolored Temp appearing in instrs'
// operand lists, in ascending Temp-identity order, matching spec.md §5's
// determinism requirement for worklist seeding.
func collectInitial(instrs []asm.Instruction, conv frame.CallingConvention) []temp.Temp {
	precolored := PrecoloredSet(conv)
	seen := map[temp.Temp]bool{}
	var result []temp.Temp
	note := func(t temp.Temp) {
		if precolored[t] || seen[t] {
			return
		}
		seen[t] = true
		result = append(result, t)
	}
	for _, in := range instrs {
		for _, t := range in.Destination {
			note(t)
		}
		for _, t := range in.Source {
			note(t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// rewriteSpills allocates one frame slot per Temp in spills, then walks
// instrs inserting a load into a fresh Temp before every use of a
// spilled Temp and a store from a fresh Temp after every def, so the
// next round's Color sees only short, easily colorable live ranges for
// the fresh Temps.
func rewriteSpills(instrs []asm.Instruction, spills []temp.Temp, fr frame.Frame, conv frame.CallingConvention, gensym *temp.Gensym) []asm.Instruction {
	slots := map[temp.Temp]frame.Access{}
	spilled := map[temp.Temp]bool{}
	for _, t := range spills {
		slots[t] = fr.AllocLocal(true)
		spilled[t] = true
	}

	fp := conv.FramePointer()
	out := make([]asm.Instruction, 0, len(instrs))
	for _, in := range instrs {
		if in.IsLabel() {
			out = append(out, in)
			continue
		}

		var pre, post []asm.Instruction

		newSrc := make([]temp.Temp, len(in.Source))
		for i, t := range in.Source {
			if !spilled[t] {
				newSrc[i] = t
				continue
			}
			fresh := gensym.NewTemp()
			acc := slots[t]
			pre = append(pre, asm.Op(fmt.Sprintf("mov 'd0, ['s0%+d]", acc.Offset), []temp.Temp{fresh}, []temp.Temp{fp}))
			newSrc[i] = fresh
		}

		newDst := make([]temp.Temp, len(in.Destination))
		for i, t := range in.Destination {
			if !spilled[t] {
				newDst[i] = t
				continue
			}
			fresh := gensym.NewTemp()
			acc := slots[t]
			post = append(post, asm.Op(fmt.Sprintf("mov ['s0%+d], 's1", acc.Offset), nil, []temp.Temp{fp, fresh}))
			newDst[i] = fresh
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

// finalize substitutes every Temp in instrs' operand lists with its
// assigned color, then drops any Move whose resolved destination equals
// its resolved source (coalescing plus self-move elimination, spec.md
// §4.5's last step).
func finalize(instrs []asm.Instruction, alloc Allocation) []asm.Instruction {
	out := make([]asm.Instruction, 0, len(instrs))
	for _, in := range instrs {
		resolved := in
		resolved.Destination = colorTemps(in.Destination, alloc)
		resolved.Source = colorTemps(in.Source, alloc)
		if resolved.IsMove() && len(resolved.Destination) == 1 && len(resolved.Source) == 1 &&
			resolved.Destination[0] == resolved.Source[0] {
			continue
		}
		out = append(out, resolved)
	}
	return out
}

func colorTemps(ts []temp.Temp, alloc Allocation) []temp.Temp {
	if ts == nil {
		return nil
	}
	out := make([]temp.Temp, len(ts))
	for i, t := range ts {
		if c, ok := alloc[t]; ok {
			out[i] = c
		} else {
			out[i] = t
		}
	}
	return out
}
