package evo

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultPopulationSize        = 100
	DefaultGeneticCodeLength     = 10
	DefaultKeepThreshold         = 0.5
	DefaultMutationChancePercent = 0.01
	DefaultEmitResultEvery       = 1000
	DefaultSnapshotBuffer        = 64
)

var (
	ErrInvalidConfig         = errors.New("invalid evolution config")
	ErrInsufficientSurvivors = errors.New("fewer than two survivors to breed from")
)

// MutationGate decides which side of MutationChancePercent a draw must land
// on for an individual to be mutated.
type MutationGate string

const (
	// MutationGateBelow mutates when the draw is below the chance.
	MutationGateBelow MutationGate = "below"
	// MutationGateAbove mutates when the draw exceeds the chance. Kept for
	// runs that need the legacy gating.
	MutationGateAbove MutationGate = "above"
)

// Config holds the parameters of a single run. It is copied into the engine
// when the run starts and never changes afterwards.
type Config struct {
	PopulationSize        int
	GeneticCodeLength     int
	KeepThreshold         float64
	MutationChancePercent float64
	// EmitResultEvery is the number of generations between snapshots.
	// Generation 0 is always emitted.
	EmitResultEvery int
	MutationGate    MutationGate
	// MaxGenerations bounds the run; 0 runs until stopped.
	MaxGenerations int
	SnapshotBuffer int
	// Seed initialises the worker's random source; 0 seeds from the clock.
	Seed   int64
	Scorer Scorer
}

func DefaultConfig(scorer Scorer) Config {
	return Config{
		PopulationSize:        DefaultPopulationSize,
		GeneticCodeLength:     DefaultGeneticCodeLength,
		KeepThreshold:         DefaultKeepThreshold,
		MutationChancePercent: DefaultMutationChancePercent,
		EmitResultEvery:       DefaultEmitResultEvery,
		MutationGate:          MutationGateBelow,
		SnapshotBuffer:        DefaultSnapshotBuffer,
		Scorer:                scorer,
	}
}

func (c Config) WithPopulationSize(size int) Config {
	c.PopulationSize = size
	return c
}

func (c Config) WithGeneticCodeLength(length int) Config {
	c.GeneticCodeLength = length
	return c
}

func (c Config) WithKeepThreshold(threshold float64) Config {
	c.KeepThreshold = threshold
	return c
}

func (c Config) WithMutationChancePercent(chance float64) Config {
	c.MutationChancePercent = chance
	return c
}

func (c Config) WithEmitResultEvery(every int) Config {
	c.EmitResultEvery = every
	return c
}

func (c Config) WithMutationGate(gate MutationGate) Config {
	c.MutationGate = gate
	return c
}

func (c Config) WithMaxGenerations(max int) Config {
	c.MaxGenerations = max
	return c
}

func (c Config) WithSeed(seed int64) Config {
	c.Seed = seed
	return c
}

// Normalize fills zero-valued optional fields with their defaults.
func (c Config) Normalize() Config {
	if c.MutationGate == "" {
		c.MutationGate = MutationGateBelow
	}
	if c.SnapshotBuffer <= 0 {
		c.SnapshotBuffer = DefaultSnapshotBuffer
	}
	return c
}

func (c Config) Validate() error {
	if c.Scorer == nil {
		return fmt.Errorf("%w: scorer is required", ErrInvalidConfig)
	}
	if c.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	}
	if c.GeneticCodeLength <= 0 {
		return fmt.Errorf("%w: genetic code length must be > 0", ErrInvalidConfig)
	}
	if !inUnitInterval(c.KeepThreshold) {
		return fmt.Errorf("%w: keep threshold must be in [0, 1]: %v", ErrInvalidConfig, c.KeepThreshold)
	}
	if !inUnitInterval(c.MutationChancePercent) {
		return fmt.Errorf("%w: mutation chance must be in [0, 1]: %v", ErrInvalidConfig, c.MutationChancePercent)
	}
	if c.EmitResultEvery <= 0 {
		return fmt.Errorf("%w: emit interval must be > 0", ErrInvalidConfig)
	}
	if c.MaxGenerations < 0 {
		return fmt.Errorf("%w: max generations must be >= 0", ErrInvalidConfig)
	}
	if c.SnapshotBuffer < 0 {
		return fmt.Errorf("%w: snapshot buffer must be >= 0", ErrInvalidConfig)
	}
	switch c.MutationGate {
	case "", MutationGateBelow, MutationGateAbove:
	default:
		return fmt.Errorf("%w: unsupported mutation gate: %s", ErrInvalidConfig, c.MutationGate)
	}
	if survivors := c.PopulationSize - TrimCount(c.PopulationSize, c.KeepThreshold); survivors < 2 {
		return fmt.Errorf("%w: population size %d with keep threshold %v leaves %d survivors: %w",
			ErrInvalidConfig, c.PopulationSize, c.KeepThreshold, survivors, ErrInsufficientSurvivors)
	}
	return nil
}

// TrimCount is the number of individuals truncation selection removes from a
// population of n: floor(n * (1 - keep)), but never less than one.
func TrimCount(n int, keep float64) int {
	trim := int(float64(n) * (1 - keep))
	if trim < 1 {
		trim = 1
	}
	if trim > n {
		trim = n
	}
	return trim
}

func inUnitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
