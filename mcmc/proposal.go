package mcmc

// NormalProposal returns normal proposal function.
func NormalProposal(src Source, sd float64) func(float64) float64 {
	if sd <= 0 {
		panic("sd should be positive")
	}
	return func(x float64) float64 {
		return x + src.NormFloat64()*sd
	}
}
