package autodiff

// Backward seeds root.Grad = 1 and accumulates gradients through the graph
// in reverse topological order. The traversal is iterative; batched losses
// can reach millions of nodes and must not be bounded by stack depth.
func Backward(root *Value) {
	topo := topoSort(root)
	root.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		v := topo[i]
		for j, p := range v.parents {
			p.Grad += v.locals[j] * v.Grad
		}
	}
}

// topoSort returns every node reachable from root, parents before children.
func topoSort(root *Value) []*Value {
	type frame struct {
		node *Value
		next int
	}
	visited := make(map[*Value]bool)
	var topo []*Value
	stack := []frame{{node: root}}
	visited[root] = true
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.parents) {
			p := top.node.parents[top.next]
			top.next++
			if !visited[p] {
				visited[p] = true
				stack = append(stack, frame{node: p})
			}
			continue
		}
		topo = append(topo, top.node)
		stack = stack[:len(stack)-1]
	}
	return topo
}

// ZeroGrad clears accumulated gradients on the given leaves. Interior nodes
// are rebuilt every step and never need clearing.
func ZeroGrad(params []*Value) {
	for _, p := range params {
		p.Grad = 0
	}
}
