/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package risk

import (
	"errors"
	"fmt"
	"math"
)

// Kind identifies the family of a scoring backend.
type Kind string

const (
	// KindScikitLike is a forest of decision trees with probability leaves.
	KindScikitLike Kind = "scikit"
	// KindTorchLike is a feed-forward network with a logit output.
	KindTorchLike Kind = "torch"
	// KindKerasLike is a single dense layer with a sigmoid output.
	KindKerasLike Kind = "keras"
)

var (
	// ErrModelUnavailable is returned when no model could be loaded.
	ErrModelUnavailable = errors.New("risk model unavailable")
	// ErrExplainerUnavailable is returned when no explanation can be produced.
	ErrExplainerUnavailable = errors.New("risk explainer unavailable")
)

// Model maps an ordered feature vector to the probability that it is risky.
// Implementations are read-only after construction and safe for concurrent use.
type Model interface {
	Kind() Kind
	NumFeatures() int
	Score(x []float64) (float64, error)
}

func checkInput(m Model, x []float64) error {
	if len(x) != m.NumFeatures() {
		return fmt.Errorf("%s model expects %d features, got %d", m.Kind(), m.NumFeatures(), len(x))
	}
	return nil
}

func checkProbability(p float64) (float64, error) {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("model produced a non-finite score %v", p)
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("model produced a score outside [0,1]: %v", p)
	}
	return p, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// Scaler standardises inputs before they reach a dense model.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *Scaler) validate(n int) error {
	if s == nil {
		return nil
	}
	if len(s.Mean) != n || len(s.Scale) != n {
		return fmt.Errorf("scaler expects %d means and scales", n)
	}
	for i, v := range s.Scale {
		if v == 0 {
			return fmt.Errorf("scaler has zero scale for feature %d", i)
		}
	}
	return nil
}

func (s *Scaler) apply(x []float64) []float64 {
	if s == nil {
		return x
	}
	out := make([]float64, len(x))
	for i := range x {
		out[i] = (x[i] - s.Mean[i]) / s.Scale[i]
	}
	return out
}
