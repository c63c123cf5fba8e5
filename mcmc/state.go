package mcmc

import (
	"sort"
	"strconv"

	"github.com/gonum/blas/blas64"
	"github.com/gonum/floats"
)

// VariableID identifies a variable of the model. Identifiers are only
// compared for equality; the ordering is used for deterministic
// iteration.
type VariableID int64

// String returns the decimal representation of the id.
func (id VariableID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// KeySet is an ordered set of variable ids. All the state vectors of
// a sampling run share the same key set.
type KeySet struct {
	ids   []VariableID
	index map[VariableID]int
}

// NewKeySet creates a key set from ids. Duplicate ids are removed
// and the result is sorted.
func NewKeySet(ids []VariableID) *KeySet {
	ks := &KeySet{
		ids:   make([]VariableID, 0, len(ids)),
		index: make(map[VariableID]int, len(ids)),
	}
	sorted := append([]VariableID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		if _, ok := ks.index[id]; ok {
			continue
		}
		ks.index[id] = len(ks.ids)
		ks.ids = append(ks.ids, id)
	}
	return ks
}

// Len returns the number of ids.
func (ks *KeySet) Len() int {
	return len(ks.ids)
}

// IDs returns the ids in order. The slice must not be modified.
func (ks *KeySet) IDs() []VariableID {
	return ks.ids
}

// Index returns the position of id in the set.
func (ks *KeySet) Index(id VariableID) (int, bool) {
	i, ok := ks.index[id]
	return i, ok
}

// same reports whether two key sets contain exactly the same ids.
func (ks *KeySet) same(o *KeySet) bool {
	if ks == o {
		return true
	}
	if ks == nil || o == nil || len(ks.ids) != len(o.ids) {
		return false
	}
	for i, id := range ks.ids {
		if o.ids[i] != id {
			return false
		}
	}
	return true
}

// StateVector maps every id of a key set to a real value. It is used
// for positions, momenta and gradients. Operations never modify the
// receiver, they return a new vector.
type StateVector struct {
	keys *KeySet
	vals []float64
}

// NewStateVector creates a zero vector over keys.
func NewStateVector(keys *KeySet) StateVector {
	return StateVector{keys: keys, vals: make([]float64, keys.Len())}
}

// NewStateVectorFrom creates a vector over keys from values given in
// the key order. The values are copied.
func NewStateVectorFrom(keys *KeySet, vals []float64) StateVector {
	if len(vals) != keys.Len() {
		panic("number of values doesn't match number of keys")
	}
	return StateVector{keys: keys, vals: append([]float64(nil), vals...)}
}

// Keys returns the key set.
func (v StateVector) Keys() *KeySet {
	return v.keys
}

// Len returns the number of components.
func (v StateVector) Len() int {
	return len(v.vals)
}

// At returns i-th component in the key order.
func (v StateVector) At(i int) float64 {
	return v.vals[i]
}

// Get returns a component by variable id.
func (v StateVector) Get(id VariableID) (float64, bool) {
	i, ok := v.keys.Index(id)
	if !ok {
		return 0, false
	}
	return v.vals[i], true
}

// Values returns a copy of the values in the key order.
func (v StateVector) Values() []float64 {
	return append([]float64(nil), v.vals...)
}

// Map returns the vector as a map.
func (v StateVector) Map() map[VariableID]float64 {
	m := make(map[VariableID]float64, len(v.vals))
	for i, id := range v.keys.ids {
		m[id] = v.vals[i]
	}
	return m
}

func (v StateVector) mustMatch(o StateVector) {
	if !v.keys.same(o.keys) {
		panic("state vectors have different key sets")
	}
}

func (v StateVector) blas() blas64.Vector {
	return blas64.Vector{Inc: 1, Data: v.vals}
}

// Dot returns the dot product of two vectors.
func (v StateVector) Dot(o StateVector) float64 {
	v.mustMatch(o)
	return blas64.Dot(len(v.vals), v.blas(), o.blas())
}

// SquaredNorm returns v·v.
func (v StateVector) SquaredNorm() float64 {
	return blas64.Dot(len(v.vals), v.blas(), v.blas())
}

// Sub returns v-o.
func (v StateVector) Sub(o StateVector) StateVector {
	v.mustMatch(o)
	res := StateVector{keys: v.keys, vals: make([]float64, len(v.vals))}
	floats.SubTo(res.vals, v.vals, o.vals)
	return res
}

// AddScaled returns v+alpha*o.
func (v StateVector) AddScaled(alpha float64, o StateVector) StateVector {
	v.mustMatch(o)
	res := NewStateVectorFrom(v.keys, v.vals)
	blas64.Axpy(len(v.vals), alpha, o.blas(), res.blas())
	return res
}
