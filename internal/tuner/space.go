// Package tuner searches a strategy's parameter space by scheduling one
// backtest run per candidate and ranking the outcomes under an objective.
package tuner

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/stratforge/backtest/pkg/errors"
)

// Dimension is one tunable parameter and the values it may take.
type Dimension struct {
	Name   string    `yaml:"name" json:"name" validate:"required"`
	Values []float64 `yaml:"values" json:"values" validate:"required,min=1"`
}

// Space is the set of dimensions the search covers.
type Space struct {
	Dimensions []Dimension `yaml:"dimensions" json:"dimensions"`
}

// Size returns the number of candidates in the full grid.
func (s Space) Size() int {
	if len(s.Dimensions) == 0 {
		return 0
	}

	size := 1
	for _, dim := range s.Dimensions {
		size *= len(dim.Values)
	}

	return size
}

// Validate checks that the space is non-empty and every dimension has values.
func (s Space) Validate() error {
	if len(s.Dimensions) == 0 {
		return errors.New(errors.ErrCodeEmptySpace, "parameter space has no dimensions")
	}

	for _, dim := range s.Dimensions {
		if dim.Name == "" {
			return errors.New(errors.ErrCodeInvalidParameter, "dimension name must not be empty")
		}

		if len(dim.Values) == 0 {
			return errors.Newf(errors.ErrCodeEmptySpace, "dimension %q has no values", dim.Name)
		}
	}

	return nil
}

// Candidate is one assignment of values to every dimension.
type Candidate map[string]float64

// Label returns the canonical text form of a candidate: parameters sorted by
// name. It is stable across runs and usable as a map key or report label.
func (c Candidate) Label() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%g", name, c[name]))
	}

	return strings.Join(parts, ",")
}

// Grid enumerates every candidate in the space, varying the last dimension
// fastest. The order is deterministic.
func Grid(space Space) ([]Candidate, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, space.Size())
	current := make(Candidate, len(space.Dimensions))

	var expand func(depth int)

	expand = func(depth int) {
		if depth == len(space.Dimensions) {
			snapshot := make(Candidate, len(current))
			for name, value := range current {
				snapshot[name] = value
			}

			candidates = append(candidates, snapshot)

			return
		}

		dim := space.Dimensions[depth]
		for _, value := range dim.Values {
			current[dim.Name] = value
			expand(depth + 1)
		}
	}

	expand(0)

	return candidates, nil
}

// Random draws n candidates uniformly from the space using the given seed.
// Duplicates are collapsed, so fewer than n candidates can come back when the
// space is small. The same seed always yields the same candidates.
func Random(space Space, n int, seed int64) ([]Candidate, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}

	if n <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "sample count must be positive, got %d", n)
	}

	rng := rand.New(rand.NewSource(seed))
	seen := make(map[string]struct{}, n)
	candidates := make([]Candidate, 0, n)

	// Cap the draw attempts so a tiny space cannot loop forever.
	for attempts := 0; len(candidates) < n && attempts < n*20; attempts++ {
		candidate := make(Candidate, len(space.Dimensions))
		for _, dim := range space.Dimensions {
			candidate[dim.Name] = dim.Values[rng.Intn(len(dim.Values))]
		}

		label := candidate.Label()
		if _, ok := seen[label]; ok {
			continue
		}

		seen[label] = struct{}{}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
