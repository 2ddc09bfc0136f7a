package cfg

import (
	"tigerc/internal/asm"
	"tigerc/internal/temp"
)

// FlowNode is one instruction's contribution to the control-flow graph:
// the Temps it reads and writes, and whether it is a Move (the allocator
// may coalesce a Move's source and destination onto the same register).
type FlowNode struct {
	Defines []temp.Temp
	Uses    []temp.Temp
	IsMove  bool
}

// FlowGraph is the control-flow graph over one function's instruction
// list, one node per instruction in order.
type FlowGraph struct {
	*Graph[FlowNode]
}

// BuildFlowGraph constructs the CFG over instrs: an instruction with
// HasJump set transfers control to exactly the labels listed in Jump
// (the instruction selector lists both branch targets of a conditional
// jump explicitly, since trace scheduling already placed the false
// target as the physically next label — no separate fall-through
// bookkeeping is needed); every other instruction falls through to the
// next index. Grounded on original_source/tiger/src/flow.rs's
// instructions_to_graph, simplified from its visited-DFS walk to a
// direct pass over every instruction index, since an explicit Jump list
// already names every real successor.
func BuildFlowGraph(instrs []asm.Instruction) *FlowGraph {
	labelIndex := make(map[temp.Label]int, len(instrs))
	for i, in := range instrs {
		if in.IsLabel() {
			labelIndex[in.Label] = i
		}
	}

	g := NewGraph[FlowNode]()
	ids := make([]NodeID, len(instrs))
	for i, in := range instrs {
		n := FlowNode{IsMove: in.IsMove()}
		if !in.IsLabel() {
			n.Defines = append(n.Defines, in.Destination...)
			n.Uses = append(n.Uses, in.Source...)
		}
		ids[i] = g.Insert(n)
	}

	for i, in := range instrs {
		if in.HasJump {
			for _, lbl := range in.Jump {
				if target, ok := labelIndex[lbl]; ok {
					g.Link(ids[i], ids[target])
				}
			}
			continue
		}
		if i+1 < len(instrs) {
			g.Link(ids[i], ids[i+1])
		}
	}

	return &FlowGraph{Graph: g}
}
