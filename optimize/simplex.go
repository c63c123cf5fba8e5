package optimize

import (
	"math"

	"bitbucket.org/Davydov/gonuts/mcmc"
)

const (
	TINY  = 1e-10
	SMALL = 1e-6
)

// DS is the downhill simplex method. It doesn't use gradients.
type DS struct {
	BaseOptimizer
	delta  float64
	ftol   float64
	repeat bool
	oldL   float64
	points [][]float64
	psum   []float64
	l      []float64
	newPar []float64
}

// NewDS creates a downhill simplex optimizer for m.
func NewDS(m mcmc.Model) (ds *DS) {
	ds = &DS{
		BaseOptimizer: newBaseOptimizer(m),
		delta:         1,
		ftol:          TINY,
	}
	return
}

func (ds *DS) createSimplex(start []float64, delta float64) {
	ds.points = make([][]float64, len(start)+1)
	ds.l = make([]float64, len(ds.points))
	for i := range ds.points {
		ds.points[i] = append([]float64(nil), start...)
		if i > 0 {
			ds.points[i][i-1] += delta
		}
		ds.l[i] = ds.logProb(ds.points[i])
	}
}

// amotry extrapolates by factor fac throught the face of the simplex accros from
// the low point, tries it, and replaces the low point if the new point is better.
func (ds *DS) amotry(ilo int, fac float64) float64 {
	if ds.newPar == nil {
		ds.newPar = make([]float64, len(ds.ids))
	}
	ds.calcPsum()
	ndim := len(ds.newPar)
	fac1 := (1 - fac) / float64(ndim)
	fac2 := fac1 - fac
	for j := 0; j < ndim; j++ {
		ds.newPar[j] = ds.psum[j]*fac1 - ds.points[ilo][j]*fac2
	}
	l := ds.logProb(ds.newPar)
	if l > ds.l[ilo] {
		ds.points[ilo], ds.newPar = ds.newPar, ds.points[ilo]
		ds.l[ilo] = l
	}
	return l
}

func (ds *DS) calcPsum() {
	if ds.psum == nil {
		ds.psum = make([]float64, len(ds.ids))
	}
	for i := range ds.psum {
		ds.psum[i] = 0
		for _, point := range ds.points {
			ds.psum[i] += point[i]
		}
	}
}

// Run starts the optimization from the current model state. The model
// is left at the best point found.
func (ds *DS) Run(iterations int) error {
	if err := ds.check(); err != nil {
		return err
	}
	start := ds.values(nil)
	if l0 := ds.logProb(start); math.IsInf(l0, -1) {
		return mcmc.ErrZeroProbability
	}
	ds.createSimplex(start, ds.delta)

	// Lowest (worst), next-lowest and highest points
	var ilo, inlo, ihi int
	var llo, lnlo, lhi float64
	ds.PrintHeader()
Iter:
	for ds.i = 1; ds.i <= iterations; ds.i++ {
		if ds.l[0] < ds.l[1] {
			ilo = 0
			inlo = 1
			ihi = 1
		} else {
			ilo = 1
			inlo = 0
			ihi = 0
		}
		llo = ds.l[ilo]
		lnlo = ds.l[inlo]
		lhi = ds.l[ihi]
		for i := 2; i < len(ds.points); i++ {
			if ds.l[i] >= lhi {
				lhi = ds.l[i]
				ihi = i
			}
			if ds.l[i] < llo {
				lnlo = llo
				inlo = ilo
				llo = ds.l[i]
				ilo = i
			} else if ds.l[i] < lnlo {
				lnlo = ds.l[i]
				inlo = i
			}
		}
		ds.BaseOptimizer.l = lhi
		if ds.repPeriod > 0 && ds.i%ds.repPeriod == 0 {
			log.Debugf("%d: L=%f (%f)", ds.i, lhi, lhi-llo)
			ds.PrintLine(ds.points[ihi], lhi)
		}
		rtol := 2 * math.Abs(lhi-llo) / (math.Abs(llo) + math.Abs(lhi) + TINY)
		if rtol < ds.ftol {
			if ds.repeat && math.Abs(ds.oldL-lhi) < SMALL {
				break Iter
			}
			ds.repeat = true
			ds.oldL = lhi
			log.Infof("converged. retrying")
			ds.createSimplex(append([]float64(nil), ds.points[ihi]...), ds.delta)
			continue
		}
		l := ds.amotry(ilo, -1)
		switch {
		case l >= lhi:
			ds.amotry(ilo, 2)
		case l <= lnlo:
			lsave := llo
			l := ds.amotry(ilo, 0.5)
			if l <= lsave {
				for i, point := range ds.points {
					if i == ihi {
						continue
					}
					for j := range point {
						point[j] = 0.5 * (point[j] + ds.points[ihi][j])
					}
					ds.l[i] = ds.logProb(point)
				}
			}
		}
		if ds.signalled() {
			break Iter
		}
	}
	if ds.i > iterations {
		log.Warningf("Iterations exceeded (%d)", iterations)
	}

	ds.restoreMax()
	ds.BaseOptimizer.l = ds.maxL
	log.Info("Finished downhill simplex")
	ds.PrintFinal()
	return nil
}

// Summary returns the optimization summary.
func (ds *DS) Summary() Summary {
	return ds.summary("simplex")
}
