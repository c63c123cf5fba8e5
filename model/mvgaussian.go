package model

import (
	"errors"
	"math"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
)

// MvGaussian is a multivariate normal density over scalar vertices.
type MvGaussian struct {
	vertices []*Vertex
	mean     []float64
	cov      *mat64.SymDense
	chol     mat64.Cholesky
	// norm is the log of the normalizing constant.
	norm float64

	d    []float64
	y    []float64
	dVec *mat64.Vector
	yVec *mat64.Vector
}

// NewMvGaussian creates a multivariate normal factor with mean and
// covariance cov (row-major n×n) over vs.
func NewMvGaussian(vs []*Vertex, mean []float64, cov []float64) (*MvGaussian, error) {
	n := len(vs)
	if n == 0 {
		return nil, errors.New("multivariate gaussian needs at least one vertex")
	}
	if len(mean) != n || len(cov) != n*n {
		return nil, errors.New("multivariate gaussian dimensions don't match")
	}
	m := &MvGaussian{
		vertices: vs,
		mean:     append([]float64(nil), mean...),
		cov:      mat64.NewSymDense(n, append([]float64(nil), cov...)),
	}
	if !m.chol.Factorize(m.cov) {
		return nil, errors.New("covariance matrix is not positive definite")
	}
	m.norm = -0.5*float64(n)*math.Log(2*math.Pi) - 0.5*m.chol.LogDet()
	m.d = make([]float64, n)
	m.y = make([]float64, n)
	m.dVec = mat64.NewVector(n, m.d)
	m.yVec = mat64.NewVector(n, m.y)
	return m, nil
}

// Vertices returns the vertices of the factor.
func (m *MvGaussian) Vertices() []*Vertex {
	return m.vertices
}

// solve computes d = x - mean and y = cov^-1 d.
func (m *MvGaussian) solve() {
	for i, v := range m.vertices {
		m.d[i] = v.value - m.mean[i]
	}
	if err := m.yVec.SolveCholeskyVec(&m.chol, m.dVec); err != nil {
		log.Warningf("Ill-conditioned covariance: %v", err)
	}
}

// LogProb returns the log-density.
func (m *MvGaussian) LogProb() float64 {
	m.solve()
	return m.norm - 0.5*floats.Dot(m.d, m.y)
}

// Gradient stores the derivatives with respect to the vertices in dst.
func (m *MvGaussian) Gradient(dst []float64) {
	m.solve()
	for i := range dst {
		dst[i] = -m.y[i]
	}
}

func (m *MvGaussian) copyFor(vs []*Vertex) Factor {
	c, err := NewMvGaussian(vs, m.mean, m.cov.RawSymmetric().Data)
	if err != nil {
		panic(err)
	}
	return c
}
