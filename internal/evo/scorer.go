package evo

// Scorer maps a genetic code to a fitness score. Higher is better.
//
// A scorer is only ever called from the worker that owns the run, so it needs
// no locking of its own, but it must not retain or modify code.
type Scorer interface {
	Evaluate(code []byte) float64
}

type ScorerFunc func(code []byte) float64

func (f ScorerFunc) Evaluate(code []byte) float64 {
	return f(code)
}
