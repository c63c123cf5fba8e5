package mcmc

// notUTurning returns true if the trajectory between backward and
// forward hasn't started to turn back on itself.
func notUTurning(forward, backward Endpoint) bool {
	dq := forward.Position.Sub(backward.Position)
	return dq.Dot(forward.Momentum) >= 0 && dq.Dot(backward.Momentum) >= 0
}
