package genotype

import (
	"fmt"
	"math/rand"
	"sort"
)

// Population indexes individuals by id. Removing and inserting during a
// generation never invalidates other entries.
type Population map[uint64]*Individual

func (p Population) IDs() []uint64 {
	ids := make([]uint64, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p Population) Insert(ind *Individual) error {
	if ind == nil {
		return fmt.Errorf("individual is required")
	}
	if _, exists := p[ind.ID]; exists {
		return fmt.Errorf("duplicate individual id: %d", ind.ID)
	}
	p[ind.ID] = ind
	return nil
}

// RandomCode draws length uniformly random bytes from rng.
func RandomCode(rng *rand.Rand, length int) []byte {
	code := make([]byte, length)
	for i := range code {
		code[i] = byte(rng.Intn(256))
	}
	return code
}

// NewRandomPopulation builds size individuals with sequential ids starting at
// firstID and returns the next free id.
func NewRandomPopulation(rng *rand.Rand, size, codeLength int, firstID uint64) (Population, uint64, error) {
	if rng == nil {
		return nil, firstID, fmt.Errorf("random source is required")
	}
	if size <= 0 {
		return nil, firstID, fmt.Errorf("population size must be > 0")
	}
	if codeLength <= 0 {
		return nil, firstID, fmt.Errorf("genetic code length must be > 0")
	}

	population := make(Population, size)
	nextID := firstID
	for i := 0; i < size; i++ {
		population[nextID] = NewIndividual(nextID, RandomCode(rng, codeLength))
		nextID++
	}
	return population, nextID, nil
}
