// Package scorer provides built-in fitness functions addressable by name.
package scorer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gene/internal/evo"
)

var ErrUnknownScorer = errors.New("unknown scorer")

// Params carries the optional inputs a named scorer may need.
type Params struct {
	// Target is the byte string the target scorer measures distance to.
	Target []byte
}

// Named is a scorer that reports its registry name.
type Named interface {
	evo.Scorer
	Name() string
}

// Sum rewards large byte values. The best score for length L is 255*L.
type Sum struct{}

func (Sum) Name() string { return "sum" }

func (Sum) Evaluate(code []byte) float64 {
	total := 0
	for _, b := range code {
		total += int(b)
	}
	return float64(total)
}

// Target scores a code by its negative absolute distance to a fixed byte
// string, so an exact match scores 0. Positions past the end of either
// slice count as a full 255 miss.
type Target struct {
	Want []byte
}

func (Target) Name() string { return "target" }

func (t Target) Evaluate(code []byte) float64 {
	n := len(code)
	if len(t.Want) > n {
		n = len(t.Want)
	}
	distance := 0
	for i := 0; i < n; i++ {
		if i >= len(code) || i >= len(t.Want) {
			distance += 255
			continue
		}
		d := int(code[i]) - int(t.Want[i])
		if d < 0 {
			d = -d
		}
		distance += d
	}
	return -float64(distance)
}

// Alternating rewards codes whose bytes swing between high and low values.
// Each adjacent pair contributes the size of the swing when its direction
// flips relative to the previous pair.
type Alternating struct{}

func (Alternating) Name() string { return "alternating" }

func (Alternating) Evaluate(code []byte) float64 {
	score := 0
	prevDir := 0
	for i := 1; i < len(code); i++ {
		d := int(code[i]) - int(code[i-1])
		dir := 0
		switch {
		case d > 0:
			dir = 1
		case d < 0:
			dir = -1
			d = -d
		}
		if dir != 0 && dir != prevDir {
			score += d
		}
		prevDir = dir
	}
	return float64(score)
}

type factory func(Params) (Named, error)

var registry = map[string]factory{
	"sum": func(Params) (Named, error) { return Sum{}, nil },
	"target": func(p Params) (Named, error) {
		if len(p.Target) == 0 {
			return nil, errors.New("target scorer requires a target")
		}
		return Target{Want: append([]byte(nil), p.Target...)}, nil
	},
	"alternating": func(Params) (Named, error) { return Alternating{}, nil },
}

// Resolve returns the scorer registered under name. Names are matched
// case-insensitively.
func Resolve(name string, params Params) (Named, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	build, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScorer, name)
	}
	s, err := build(params)
	if err != nil {
		return nil, fmt.Errorf("scorer %s: %w", key, err)
	}
	return s, nil
}

// Names lists the registered scorer names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
