package graph

import (
	"sort"

	"github.com/vk/notegrid/internal/node"
)

// Cycles runs a strongly-connected-component scan over the graph and
// returns every component of size greater than one, each sorted by id, with
// the components themselves sorted by their first member. Nodes in a
// returned component form a true dependency cycle.
//
// The scan is Tarjan's algorithm in iterative form, linear in nodes plus
// edges.
func (g *Graph) Cycles() [][]node.ID {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Deterministic visit order keeps component output stable across runs.
	ids := make([]node.ID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	index := make(map[node.ID]int, len(g.nodes))
	lowlink := make(map[node.ID]int, len(g.nodes))
	onStack := make(map[node.ID]bool, len(g.nodes))
	var stack []node.ID
	next := 0

	var components [][]node.ID

	type frame struct {
		id    node.ID
		succs []node.ID
		pos   int
	}

	successors := func(id node.ID) []node.ID {
		v := g.nodes[id]
		succs := make([]node.ID, 0, len(v.dependants))
		for s := range v.dependants {
			succs = append(succs, s)
		}
		sort.Slice(succs, func(i, j int) bool { return succs[i] < succs[j] })
		return succs
	}

	for _, root := range ids {
		if _, visited := index[root]; visited {
			continue
		}

		frames := []frame{{id: root, succs: successors(root)}}
		index[root] = next
		lowlink[root] = next
		next++
		stack = append(stack, root)
		onStack[root] = true

		for len(frames) > 0 {
			f := &frames[len(frames)-1]

			if f.pos < len(f.succs) {
				succ := f.succs[f.pos]
				f.pos++
				if _, visited := index[succ]; !visited {
					index[succ] = next
					lowlink[succ] = next
					next++
					stack = append(stack, succ)
					onStack[succ] = true
					frames = append(frames, frame{id: succ, succs: successors(succ)})
				} else if onStack[succ] {
					if index[succ] < lowlink[f.id] {
						lowlink[f.id] = index[succ]
					}
				}
				continue
			}

			// Frame exhausted: pop a component if this is a root.
			if lowlink[f.id] == index[f.id] {
				var component []node.ID
				for {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[top] = false
					component = append(component, top)
					if top == f.id {
						break
					}
				}
				if len(component) > 1 {
					sort.Slice(component, func(i, j int) bool { return component[i] < component[j] })
					components = append(components, component)
				}
			}

			done := f.id
			frames = frames[:len(frames)-1]
			if len(frames) > 0 {
				parent := &frames[len(frames)-1]
				if lowlink[done] < lowlink[parent.id] {
					lowlink[parent.id] = lowlink[done]
				}
			}
		}
	}

	sort.Slice(components, func(i, j int) bool { return components[i][0] < components[j][0] })
	return components
}
