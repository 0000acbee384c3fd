package evo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"gene/internal/genotype"
)

// Snapshot is an independent copy of a generation's best individual.
type Snapshot struct {
	RunID      string
	Generation int
	Genes      []byte
	Score      float64
}

func (s Snapshot) Clone() Snapshot {
	s.Genes = genotype.CloneCode(s.Genes)
	return s
}

// Engine owns a population and advances it one generation at a time. It is
// not safe for concurrent use; a run's worker is its only caller.
type Engine struct {
	cfg        Config
	rng        *rand.Rand
	runID      string
	onSnapshot func(Snapshot)

	population genotype.Population
	nextID     uint64
	generation int
}

type EngineOption func(*Engine)

// WithRand replaces the engine's random source.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithRunID tags every emitted snapshot.
func WithRunID(runID string) EngineOption {
	return func(e *Engine) {
		e.runID = runID
	}
}

// WithSnapshotHook registers fn to see every snapshot Run delivers.
func WithSnapshotHook(fn func(Snapshot)) EngineOption {
	return func(e *Engine) {
		e.onSnapshot = fn
	}
}

func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) Generation() int {
	return e.generation
}

func (e *Engine) Population() genotype.Population {
	return e.population
}

// Populate replaces the current population with PopulationSize random
// individuals. Ids keep counting from the engine's counter, so they are never
// reused within the engine's lifetime.
func (e *Engine) Populate() error {
	population, nextID, err := genotype.NewRandomPopulation(e.rng, e.cfg.PopulationSize, e.cfg.GeneticCodeLength, e.nextID)
	if err != nil {
		return err
	}
	e.population = population
	e.nextID = nextID
	e.generation = 0
	return nil
}

func (e *Engine) Evaluate() {
	for _, ind := range e.population {
		ind.Score = e.cfg.Scorer.Evaluate(ind.GeneticCode)
	}
}

// Select applies truncation selection and returns the id of the best
// individual, which always survives.
func (e *Engine) Select() (uint64, error) {
	if len(e.population) == 0 {
		return 0, fmt.Errorf("population is empty")
	}

	ranked := make([]*genotype.Individual, 0, len(e.population))
	for _, ind := range e.population {
		ranked = append(ranked, ind)
	}
	sort.Slice(ranked, func(i, j int) bool {
		return scoreLess(ranked[i], ranked[j])
	})
	bestID := ranked[len(ranked)-1].ID

	trim := TrimCount(len(ranked), e.cfg.KeepThreshold)
	if trim >= len(ranked) {
		trim = len(ranked) - 1
	}
	for _, ind := range ranked[:trim] {
		delete(e.population, ind.ID)
	}
	return bestID, nil
}

// Breed refills the population to PopulationSize with crossover children of
// uniformly chosen, distinct survivor pairs.
func (e *Engine) Breed() error {
	missing := e.cfg.PopulationSize - len(e.population)
	if missing <= 0 {
		return nil
	}
	parents := e.population.IDs()
	if len(parents) < 2 {
		return fmt.Errorf("breed %d children from %d survivors: %w", missing, len(parents), ErrInsufficientSurvivors)
	}

	for i := 0; i < missing; i++ {
		first := e.rng.Intn(len(parents))
		second := e.rng.Intn(len(parents) - 1)
		if second >= first {
			second++
		}
		code, err := e.population[parents[first]].Breed(e.population[parents[second]])
		if err != nil {
			return fmt.Errorf("breed %d x %d: %w", parents[first], parents[second], err)
		}
		if err := e.population.Insert(genotype.NewIndividual(e.nextID, code)); err != nil {
			return fmt.Errorf("breed child %d: %w", e.nextID, err)
		}
		e.nextID++
	}
	return nil
}

// Step runs evaluate, select, breed and mutate once and returns a snapshot of
// the generation's best individual as scored before breeding.
func (e *Engine) Step() (Snapshot, error) {
	snapshot, _, err := e.step(true)
	return snapshot, err
}

func (e *Engine) step(capture bool) (Snapshot, bool, error) {
	if e.population == nil {
		if err := e.Populate(); err != nil {
			return Snapshot{}, false, err
		}
	}

	e.Evaluate()
	bestID, err := e.Select()
	if err != nil {
		return Snapshot{}, false, err
	}

	var snapshot Snapshot
	if capture {
		best := e.population[bestID]
		snapshot = Snapshot{
			RunID:      e.runID,
			Generation: e.generation,
			Genes:      genotype.CloneCode(best.GeneticCode),
			Score:      best.Score,
		}
	}

	if err := e.Breed(); err != nil {
		return Snapshot{}, false, err
	}
	e.Mutate()
	e.generation++
	return snapshot, capture, nil
}

// scoreLess orders NaN below every number and breaks ties by id.
func scoreLess(a, b *genotype.Individual) bool {
	aNaN, bNaN := math.IsNaN(a.Score), math.IsNaN(b.Score)
	switch {
	case aNaN && !bNaN:
		return true
	case !aNaN && bNaN:
		return false
	case !aNaN && a.Score != b.Score:
		return a.Score < b.Score
	}
	return a.ID < b.ID
}
