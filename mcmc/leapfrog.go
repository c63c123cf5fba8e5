package mcmc

// Endpoint is a point of a simulated trajectory.
type Endpoint struct {
	Position StateVector
	Gradient StateVector
	Momentum StateVector
}

// leapfrog performs one Störmer-Verlet step of size eps. The model is
// left at the new position.
func leapfrog(m Model, e Endpoint, eps float64) Endpoint {
	half := eps / 2
	p := e.Momentum.AddScaled(half, e.Gradient)
	q := e.Position.AddScaled(eps, p)
	setPosition(m, q)
	g := gradient(m, q.keys)
	p = p.AddScaled(half, g)
	return Endpoint{Position: q, Gradient: g, Momentum: p}
}

// negH returns the negative Hamiltonian for identity mass matrix.
func negH(logP float64, p StateVector) float64 {
	return logP - 0.5*p.SquaredNorm()
}
