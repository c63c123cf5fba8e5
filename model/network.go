package model

import (
	"errors"
	"fmt"
	"math"

	"bitbucket.org/Davydov/gonuts/dist"
	"bitbucket.org/Davydov/gonuts/mcmc"
)

// ErrImpossible is returned if no state with non-zero probability
// could be found.
var ErrImpossible = errors.New("network is in an impossible state")

// Factor is an additional log-density term over several vertices.
type Factor interface {
	// Vertices returns the vertices the factor depends on.
	Vertices() []*Vertex
	// LogProb returns the log-density at the current values.
	LogProb() float64
	// Gradient stores derivatives of LogProb with respect to the
	// vertices in dst.
	Gradient(dst []float64)
	// copyFor returns a copy of the factor over other vertices.
	copyFor(vs []*Vertex) Factor
}

// Network is a Bayesian network. It implements mcmc.Model.
type Network struct {
	// vertices in topological order
	vertices []*Vertex
	pos      map[*Vertex]int
	byID     map[mcmc.VariableID]*Vertex
	byName   map[string]*Vertex
	children [][]int
	latents  []mcmc.VariableID
	// cascade stores for every latent the positions of the
	// deterministic vertices depending on it, in topological order.
	cascade map[mcmc.VariableID][]int
	factors []Factor

	adj    []float64
	mark   []bool
	buf    []float64
	dparam []float64
}

// NewNetwork creates a network from the given vertices and all their
// ancestors.
func NewNetwork(vs ...*Vertex) (*Network, error) {
	n := &Network{
		pos:     make(map[*Vertex]int),
		byID:    make(map[mcmc.VariableID]*Vertex),
		byName:  make(map[string]*Vertex),
		cascade: make(map[mcmc.VariableID][]int),
	}
	for _, v := range vs {
		if err := n.visit(v, make(map[*Vertex]bool)); err != nil {
			return nil, err
		}
	}
	n.index()
	log.Debugf("Network: %d vertices, %d latent", len(n.vertices), len(n.latents))
	for _, v := range n.vertices {
		log.Debugf("%s: %s=%v", v.Name(), v.Kind(), v.value)
	}
	return n, nil
}

// visit adds v after all of its ancestors.
func (n *Network) visit(v *Vertex, path map[*Vertex]bool) error {
	if _, ok := n.pos[v]; ok {
		return nil
	}
	if path[v] {
		return fmt.Errorf("cycle at vertex %s", v.Name())
	}
	path[v] = true
	for _, p := range v.parents {
		if err := n.visit(p, path); err != nil {
			return err
		}
	}
	delete(path, v)
	if v.name != "" {
		if _, ok := n.byName[v.name]; ok {
			return fmt.Errorf("duplicate vertex name %s", v.name)
		}
		n.byName[v.name] = v
	}
	n.pos[v] = len(n.vertices)
	n.byID[v.id] = v
	n.vertices = append(n.vertices, v)
	return nil
}

// index builds children lists, the latent set and the cascade cache.
func (n *Network) index() {
	n.children = make([][]int, len(n.vertices))
	maxParents := 0
	n.latents = n.latents[:0]
	for i, v := range n.vertices {
		for _, p := range v.parents {
			pi := n.pos[p]
			n.children[pi] = append(n.children[pi], i)
		}
		if len(v.parents) > maxParents {
			maxParents = len(v.parents)
		}
		if v.Latent() {
			n.latents = append(n.latents, v.id)
		}
	}
	n.adj = make([]float64, len(n.vertices))
	n.mark = make([]bool, len(n.vertices))
	n.buf = make([]float64, 0, maxParents)
	n.dparam = make([]float64, maxParents)

	for _, id := range n.latents {
		n.cascade[id] = n.deterministicDescendants(n.pos[n.byID[id]])
	}
}

// deterministicDescendants returns positions of deterministic vertices
// reachable from i through deterministic vertices only.
func (n *Network) deterministicDescendants(i int) (res []int) {
	seen := make([]bool, len(n.vertices))
	stack := []int{i}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range n.children[j] {
			if seen[c] || n.vertices[c].op == nil {
				continue
			}
			seen[c] = true
			stack = append(stack, c)
		}
	}
	for j, ok := range seen {
		if ok {
			res = append(res, j)
		}
	}
	return
}

// AddFactor adds a log-density term. All the factor vertices must
// belong to the network.
func (n *Network) AddFactor(f Factor) error {
	for _, v := range f.Vertices() {
		if _, ok := n.pos[v]; !ok {
			return fmt.Errorf("factor vertex %s is not in the network", v.Name())
		}
	}
	n.factors = append(n.factors, f)
	return nil
}

// Vertices returns all vertices in topological order.
func (n *Network) Vertices() []*Vertex {
	return n.vertices
}

// Vertex returns a vertex by name or nil.
func (n *Network) Vertex(name string) *Vertex {
	return n.byName[name]
}

// ByID returns a vertex by id or nil.
func (n *Network) ByID(id mcmc.VariableID) *Vertex {
	return n.byID[id]
}

// Latents returns ids of the latent vertices.
func (n *Network) Latents() []mcmc.VariableID {
	return n.latents
}

// Name returns the name of a vertex.
func (n *Network) Name(id mcmc.VariableID) string {
	if v := n.byID[id]; v != nil {
		return v.Name()
	}
	return "v" + id.String()
}

// Value returns the value of a vertex.
func (n *Network) Value(id mcmc.VariableID) float64 {
	return n.byID[id].value
}

// SetValue sets the value of a latent vertex.
func (n *Network) SetValue(id mcmc.VariableID, val float64) {
	n.byID[id].SetValue(val)
}

// Propagate updates the deterministic vertices depending on ids.
func (n *Network) Propagate(ids []mcmc.VariableID) {
	if len(ids) == 1 {
		for _, i := range n.cascade[ids[0]] {
			n.vertices[i].update(n.buf)
		}
		return
	}
	lo := len(n.vertices)
	for _, id := range ids {
		for _, i := range n.cascade[id] {
			n.mark[i] = true
			if i < lo {
				lo = i
			}
		}
	}
	for i := lo; i < len(n.vertices); i++ {
		if n.mark[i] {
			n.vertices[i].update(n.buf)
			n.mark[i] = false
		}
	}
}

// LogProb returns the joint log-probability of all random vertices and
// factors.
func (n *Network) LogProb() float64 {
	var l float64
	for _, v := range n.vertices {
		if v.density != nil {
			l += v.logProb(n.buf)
		}
	}
	for _, f := range n.factors {
		l += f.LogProb()
	}
	return l
}

// Gradient computes the derivatives of LogProb with respect to ids by
// reverse accumulation through the deterministic vertices.
func (n *Network) Gradient(ids []mcmc.VariableID, dst []float64) {
	for i := range n.adj {
		n.adj[i] = 0
	}
	for i, v := range n.vertices {
		if v.density == nil {
			continue
		}
		params := v.parentValues(n.buf)
		dparams := n.dparam[:len(params)]
		n.adj[i] += v.density.DLogPdf(v.value, params, dparams)
		for j, p := range v.parents {
			n.adj[n.pos[p]] += dparams[j]
		}
	}
	for _, f := range n.factors {
		fv := f.Vertices()
		g := make([]float64, len(fv))
		f.Gradient(g)
		for j, v := range fv {
			n.adj[n.pos[v]] += g[j]
		}
	}
	for i := len(n.vertices) - 1; i >= 0; i-- {
		v := n.vertices[i]
		if v.op == nil || n.adj[i] == 0 {
			continue
		}
		args := v.parentValues(n.buf)
		partials := n.dparam[:len(args)]
		v.op.partials(args, partials)
		for j, p := range v.parents {
			n.adj[n.pos[p]] += n.adj[i] * partials[j]
		}
	}
	for i, id := range ids {
		dst[i] = n.adj[n.pos[n.byID[id]]]
	}
}

// ProbeForNonZeroProbability draws the latent vertices from their
// priors until the network has non-zero probability.
func (n *Network) ProbeForNonZeroProbability(attempts int, src dist.Source) error {
	l := n.LogProb()
	for i := 0; i < attempts; i++ {
		if !math.IsInf(l, -1) && !math.IsNaN(l) {
			if i > 0 {
				log.Infof("Found non-zero probability state after %d attempts", i)
			}
			return nil
		}
		for _, v := range n.vertices {
			switch {
			case v.Latent():
				v.value = v.density.Sample(src, v.parentValues(n.buf))
			case v.op != nil:
				v.update(n.buf)
			}
		}
		l = n.LogProb()
	}
	if math.IsInf(l, -1) || math.IsNaN(l) {
		return fmt.Errorf("%w after %d attempts", ErrImpossible, attempts)
	}
	return nil
}

// Copy returns an independent copy of the network with the same
// vertex ids, to be used by another chain.
func (n *Network) Copy() *Network {
	vs := make([]*Vertex, len(n.vertices))
	for i, v := range n.vertices {
		c := *v
		c.parents = make([]*Vertex, len(v.parents))
		for j, p := range v.parents {
			c.parents[j] = vs[n.pos[p]]
		}
		vs[i] = &c
	}
	cn := &Network{
		vertices: vs,
		pos:      make(map[*Vertex]int, len(vs)),
		byID:     make(map[mcmc.VariableID]*Vertex, len(vs)),
		byName:   make(map[string]*Vertex, len(n.byName)),
		cascade:  make(map[mcmc.VariableID][]int, len(n.latents)),
	}
	for i, v := range vs {
		cn.pos[v] = i
		cn.byID[v.id] = v
		if v.name != "" {
			cn.byName[v.name] = v
		}
	}
	cn.index()
	for _, f := range n.factors {
		fv := f.Vertices()
		cv := make([]*Vertex, len(fv))
		for j, v := range fv {
			cv[j] = vs[n.pos[v]]
		}
		cn.factors = append(cn.factors, f.copyFor(cv))
	}
	return cn
}
