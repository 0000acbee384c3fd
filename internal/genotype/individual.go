package genotype

import (
	"errors"
	"fmt"
)

var ErrInvalidGeneticCodeLength = errors.New("genetic code length mismatch")

// Individual is one candidate solution. Score is only meaningful for the
// generation in which it was evaluated.
type Individual struct {
	ID          uint64
	GeneticCode []byte
	Score       float64
}

func NewIndividual(id uint64, code []byte) *Individual {
	return &Individual{ID: id, GeneticCode: code}
}

// Combine performs single-point crossover at len/2: the head comes from a and
// the tail from b. The returned slice never aliases either parent.
func Combine(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d != %d", ErrInvalidGeneticCodeLength, len(a), len(b))
	}
	pivot := len(a) / 2
	out := make([]byte, 0, len(a))
	out = append(out, a[:pivot]...)
	out = append(out, b[pivot:]...)
	return out, nil
}

func (i *Individual) Breed(other *Individual) ([]byte, error) {
	return Combine(i.GeneticCode, other.GeneticCode)
}

func CloneCode(code []byte) []byte {
	return append([]byte(nil), code...)
}
