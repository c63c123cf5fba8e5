package mcmc

import (
	"math"
	"testing"
)

func TestKeySetSorted(tst *testing.T) {
	ks := NewKeySet([]VariableID{3, 1, 3, 2})
	if ks.Len() != 3 {
		tst.Fatal("Expected 3 keys, got", ks.Len())
	}
	for i, id := range ks.IDs() {
		if id != VariableID(i+1) {
			tst.Error("Keys are not sorted:", ks.IDs())
		}
	}
	if i, ok := ks.Index(3); !ok || i != 2 {
		tst.Error("Incorrect index of 3:", i, ok)
	}
	if _, ok := ks.Index(4); ok {
		tst.Error("Found missing key")
	}
}

func TestStateVectorArithmetic(tst *testing.T) {
	ks := NewKeySet([]VariableID{1, 2})
	v := NewStateVectorFrom(ks, []float64{1, 2})
	o := NewStateVectorFrom(ks, []float64{3, 4})

	if d := v.Dot(o); math.Abs(d-11) > smallDiff {
		tst.Error("Expected dot product 11, got", d)
	}
	if n := v.SquaredNorm(); math.Abs(n-5) > smallDiff {
		tst.Error("Expected squared norm 5, got", n)
	}

	d := o.Sub(v)
	if d.At(0) != 2 || d.At(1) != 2 {
		tst.Error("Incorrect difference", d.Values())
	}

	s := v.AddScaled(0.5, o)
	if s.At(0) != 2.5 || s.At(1) != 4 {
		tst.Error("Incorrect scaled sum", s.Values())
	}
	if v.At(0) != 1 || v.At(1) != 2 {
		tst.Error("AddScaled modified the receiver")
	}

	if x, ok := s.Get(2); !ok || x != 4 {
		tst.Error("Incorrect value by id:", x, ok)
	}
	if m := s.Map(); m[1] != 2.5 || len(m) != 2 {
		tst.Error("Incorrect map", m)
	}
}

func TestStateVectorCopiesValues(tst *testing.T) {
	ks := NewKeySet([]VariableID{1})
	vals := []float64{1}
	v := NewStateVectorFrom(ks, vals)
	vals[0] = 2
	if v.At(0) != 1 {
		tst.Error("vector shares values with the caller")
	}
	out := v.Values()
	out[0] = 3
	if v.At(0) != 1 {
		tst.Error("Values doesn't return a copy")
	}
}

func TestStateVectorKeyMismatch(tst *testing.T) {
	v := NewStateVector(NewKeySet([]VariableID{1, 2}))
	o := NewStateVector(NewKeySet([]VariableID{1, 3}))
	defer func() {
		if recover() == nil {
			tst.Error("Expected panic for different key sets")
		}
	}()
	v.Dot(o)
}

func TestStateVectorEqualKeySets(tst *testing.T) {
	// equal but distinct key sets are compatible
	v := NewStateVectorFrom(NewKeySet([]VariableID{1, 2}), []float64{1, 1})
	o := NewStateVectorFrom(NewKeySet([]VariableID{2, 1}), []float64{1, 1})
	if d := v.Dot(o); d != 2 {
		tst.Error("Expected 2, got", d)
	}
}
