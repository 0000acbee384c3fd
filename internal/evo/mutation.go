package evo

import "math"

const (
	geneMutationThreshold  = 0.99
	largeMutationThreshold = 0.999
	smallMutationRange     = 50.0
	largeMutationRange     = 250.0
)

// Mutate gives every individual a chance to be perturbed. A perturbed
// individual has each gene shifted with probability 1%, usually within a
// window of 50 and rarely within 250.
func (e *Engine) Mutate() {
	for _, id := range e.population.IDs() {
		if !e.shouldMutate(e.rng.Float64()) {
			continue
		}
		code := e.population[id].GeneticCode
		for i := range code {
			if e.rng.Float64() <= geneMutationThreshold {
				continue
			}
			width := smallMutationRange
			if e.rng.Float64() > largeMutationThreshold {
				width = largeMutationRange
			}
			code[i] = mutateGene(code[i], width, e.rng.Float64())
		}
	}
}

func (e *Engine) shouldMutate(draw float64) bool {
	if e.cfg.MutationGate == MutationGateAbove {
		return draw > e.cfg.MutationChancePercent
	}
	return draw <= e.cfg.MutationChancePercent
}

// mutateGene moves gene to a point of a window of the given width centred on
// it, clamped to the byte domain.
func mutateGene(gene byte, width, multiplier float64) byte {
	v := math.Floor(float64(gene) - width/2 + multiplier*width)
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	}
	return byte(v)
}
