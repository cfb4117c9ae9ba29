package render

import "sync"

// Graph is the in-process Scene used by the software raster.
type Graph struct {
	mu    sync.Mutex
	nodes []Node
	env   *Environment
}

func NewGraph() *Graph { return &Graph{} }

func (g *Graph) Add(n Node) {
	if n == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, x := range g.nodes {
		if x == n {
			return
		}
	}
	g.nodes = append(g.nodes, n)
}

func (g *Graph) Remove(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, x := range g.nodes {
		if x == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			return
		}
	}
}

func (g *Graph) SetEnvironment(env *Environment) {
	g.mu.Lock()
	g.env = env
	g.mu.Unlock()
}

func (g *Graph) Environment() *Environment {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.env
}

func (g *Graph) Nodes() []Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

func (g *Graph) Contains(n Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, x := range g.nodes {
		if x == n {
			return true
		}
	}
	return false
}
