package datastructure

const (
	white uint8 = iota
	grey
	black
)

// FindNextHopCycles. every edge has at most one successor, edge (skipTarget, nextHop), so the next hop
// chains form a functional graph and each of its non-trivial strongly connected components is a simple cycle.
// returns the edge keys of each cycle, each cycle starting from its smallest key.
func (et *EdgeTable) FindNextHopCycles() [][]EdgeKey {
	m := len(et.edges)
	color := make([]uint8, m)
	cycles := make([][]EdgeKey, 0)

	successor := func(i Index) (Index, bool) {
		e := et.edges[i]
		if e.GetNextHop() <= 0 {
			return 0, false
		}
		next, ok := et.index[e.GetDownstreamKey()]
		return next, ok
	}

	for start := Index(0); start < Index(m); start++ {
		if color[start] != white {
			continue
		}

		// walk the chain until it leaves the graph, hits a finished edge, or closes on itself.
		path := make([]Index, 0, 8)
		curr := start
		for {
			color[curr] = grey
			path = append(path, curr)
			next, ok := successor(curr)
			if !ok || color[next] == black {
				break
			}
			if color[next] == grey {
				cycles = append(cycles, et.cycleFrom(path, next))
				break
			}
			curr = next
		}

		for _, i := range path {
			color[i] = black
		}
	}
	return cycles
}

func (et *EdgeTable) cycleFrom(path []Index, entry Index) []EdgeKey {
	pos := 0
	for i, idx := range path {
		if idx == entry {
			pos = i
			break
		}
	}
	members := path[pos:]

	smallest := 0
	for i := range members {
		if et.edges[members[i]].GetKey().Less(et.edges[members[smallest]].GetKey()) {
			smallest = i
		}
	}

	cycle := make([]EdgeKey, 0, len(members))
	for i := 0; i < len(members); i++ {
		cycle = append(cycle, et.edges[members[(smallest+i)%len(members)]].GetKey())
	}
	return cycle
}
