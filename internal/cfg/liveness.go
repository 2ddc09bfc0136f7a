package cfg

import "tigerc/internal/temp"

// InterferenceGraph is the graph of Temps that may not share a register,
// together with the move-related bookkeeping the allocator's coalescing
// passes need.
type InterferenceGraph struct {
	*Graph[temp.Temp]
	nodeOf map[temp.Temp]NodeID

	// MoveList maps a Temp to every move-instruction pair (dst, src) it
	// participates in.
	MoveList map[temp.Temp]map[[2]temp.Temp]bool
	// WorklistMoves is every move-instruction pair still a coalescing
	// candidate.
	WorklistMoves map[[2]temp.Temp]bool
}

func (ig *InterferenceGraph) NodeFor(t temp.Temp) (NodeID, bool) {
	id, ok := ig.nodeOf[t]
	return id, ok
}

func (ig *InterferenceGraph) nodeFor(t temp.Temp) NodeID {
	if id, ok := ig.nodeOf[t]; ok {
		return id
	}
	id := ig.Insert(t)
	ig.nodeOf[t] = id
	return id
}

// BuildInterferenceGraph runs backward fixed-point liveness over flow,
// then derives interference edges and the move worklist from live-out
// sets. Grounded on original_source/tiger/src/liveness.rs's
// interference_graph: in[n] = use[n] ∪ (out[n] - def[n]), out[n] =
// union of in[s] over every successor s, iterated to a fixed point, then
// one pass adding a define×live-out edge per instruction (skipping, for
// a Move, the edge between its own destination and source — spec.md
// §4.4's named exception, not present as a distinct special case in
// either reference source).
func BuildInterferenceGraph(flow *FlowGraph) *InterferenceGraph {
	n := flow.Len()
	liveIn := make([]map[temp.Temp]bool, n)
	liveOut := make([]map[temp.Temp]bool, n)
	for i := 0; i < n; i++ {
		liveIn[i] = map[temp.Temp]bool{}
		liveOut[i] = map[temp.Temp]bool{}
	}

	for {
		changed := false
		for i := n - 1; i >= 0; i-- {
			node := flow.Value(NodeID(i))

			newOut := map[temp.Temp]bool{}
			for _, succ := range flow.Successors(NodeID(i)) {
				for t := range liveIn[succ] {
					newOut[t] = true
				}
			}

			newIn := map[temp.Temp]bool{}
			for _, t := range node.Uses {
				newIn[t] = true
			}
			for t := range newOut {
				if !containsTemp(node.Defines, t) {
					newIn[t] = true
				}
			}

			if !sameSet(newIn, liveIn[i]) || !sameSet(newOut, liveOut[i]) {
				changed = true
			}
			liveIn[i] = newIn
			liveOut[i] = newOut
		}
		if !changed {
			break
		}
	}

	ig := &InterferenceGraph{
		Graph:         NewGraph[temp.Temp](),
		nodeOf:        map[temp.Temp]NodeID{},
		MoveList:      map[temp.Temp]map[[2]temp.Temp]bool{},
		WorklistMoves: map[[2]temp.Temp]bool{},
	}

	for i := 0; i < n; i++ {
		node := flow.Value(NodeID(i))
		for _, d := range node.Defines {
			ig.nodeFor(d)
			for t := range liveOut[i] {
				if node.IsMove && len(node.Uses) == 1 && t == node.Uses[0] {
					continue
				}
				ig.nodeFor(t)
				addInterferenceEdge(ig, d, t)
			}
		}
		if node.IsMove && len(node.Defines) == 1 && len(node.Uses) == 1 {
			pair := [2]temp.Temp{node.Defines[0], node.Uses[0]}
			ig.WorklistMoves[pair] = true
			for _, t := range []temp.Temp{pair[0], pair[1]} {
				if ig.MoveList[t] == nil {
					ig.MoveList[t] = map[[2]temp.Temp]bool{}
				}
				ig.MoveList[t][pair] = true
			}
		}
	}

	return ig
}

func addInterferenceEdge(ig *InterferenceGraph, a, b temp.Temp) {
	if a == b {
		return
	}
	u, v := ig.nodeFor(a), ig.nodeFor(b)
	for _, s := range ig.Successors(u) {
		if s == v {
			return
		}
	}
	ig.Link(u, v)
	ig.Link(v, u)
}

func containsTemp(ts []temp.Temp, t temp.Temp) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

func sameSet(a, b map[temp.Temp]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
