package mcmc

import "testing"

func endpoint1(keys *KeySet, q, p float64) Endpoint {
	return Endpoint{
		Position: NewStateVectorFrom(keys, []float64{q}),
		Momentum: NewStateVectorFrom(keys, []float64{p}),
	}
}

func TestNotUTurning(tst *testing.T) {
	keys := NewKeySet([]VariableID{1})

	if !notUTurning(endpoint1(keys, 0, 1), endpoint1(keys, 0, -1)) {
		tst.Error("Degenerate trajectory must continue")
	}
	if !notUTurning(endpoint1(keys, 1, 1), endpoint1(keys, 0, 1)) {
		tst.Error("Straight trajectory must continue")
	}
	if notUTurning(endpoint1(keys, 1, -1), endpoint1(keys, 0, 1)) {
		tst.Error("Forward end turned back")
	}
	if notUTurning(endpoint1(keys, 1, 1), endpoint1(keys, 0, -1)) {
		tst.Error("Backward end turned back")
	}
	if !notUTurning(endpoint1(keys, 1, 0), endpoint1(keys, 0, 0)) {
		tst.Error("Zero momentum is on the boundary and must continue")
	}
}
