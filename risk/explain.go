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
)

// Attribution explains one model output as a baseline plus per-feature contributions.
type Attribution struct {
	BaseValue     float64   `json:"base_value"`
	Values        []float64 `json:"shap_values"`
	FeatureNames  []string  `json:"feature_names"`
	FeatureValues []float64 `json:"feature_values"`
}

// Sum returns BaseValue plus every attribution.
func (a *Attribution) Sum() float64 {
	total := a.BaseValue
	for _, v := range a.Values {
		total += v
	}
	return total
}

// Explainer attributes a model's output for x to each feature of x.
type Explainer interface {
	Explain(x []float64) (*Attribution, error)
}

// ExplainerOptions tunes the coalition search.
type ExplainerOptions struct {
	// MaxExactFeatures is the largest feature count explained by full enumeration.
	MaxExactFeatures int `json:"max_exact_features"`
	// Permutations is the number of sampled orderings beyond MaxExactFeatures.
	Permutations int `json:"permutations"`
	// Seed makes sampled explanations reproducible.
	Seed int64 `json:"seed"`
}

// maxExactFeatures caps full enumeration, which evaluates 2^n coalitions.
const maxExactFeatures = 20

func (o ExplainerOptions) withDefaults() ExplainerOptions {
	if o.MaxExactFeatures <= 0 {
		o.MaxExactFeatures = 12
	}
	if o.MaxExactFeatures > maxExactFeatures {
		o.MaxExactFeatures = maxExactFeatures
	}
	if o.Permutations <= 0 {
		o.Permutations = 256
	}
	return o
}

func (o ExplainerOptions) shapley(n int, value coalitionValue) (float64, []float64, error) {
	if n <= o.MaxExactFeatures {
		return exactShapley(n, value)
	}
	return sampledShapley(n, o.Permutations, o.Seed, value)
}

func newAttribution(base float64, phi, x []float64) *Attribution {
	names := FeatureNames
	if len(x) != len(FeatureNames) {
		names = make([]string, len(x))
		for i := range names {
			names[i] = fmt.Sprintf("f%d", i)
		}
	}
	return &Attribution{
		BaseValue:     base,
		Values:        phi,
		FeatureNames:  append([]string(nil), names...),
		FeatureValues: append([]float64(nil), x...),
	}
}

// TreeExplainer computes path-dependent attributions from the structure of a tree
// ensemble: a coalition's value is the expected output when unknown features are
// marginalised according to the training covers recorded in each node.
type TreeExplainer struct {
	model   *TreeEnsemble
	options ExplainerOptions
}

// NewTreeExplainer builds a structural explainer for a tree ensemble.
func NewTreeExplainer(m *TreeEnsemble, opts ExplainerOptions) *TreeExplainer {
	return &TreeExplainer{model: m, options: opts.withDefaults()}
}

// ExpectedValue is the cover-weighted mean output of the ensemble.
func (t *TreeExplainer) ExpectedValue() float64 {
	return t.model.expectation(nil, make([]bool, t.model.Features))
}

func (t *TreeExplainer) Explain(x []float64) (*Attribution, error) {
	if err := checkInput(t.model, x); err != nil {
		return nil, err
	}
	base, phi, err := t.options.shapley(len(x), func(known []bool) (float64, error) {
		return t.model.expectation(x, known), nil
	})
	if err != nil {
		return nil, err
	}
	return newAttribution(base, phi, x), nil
}

// BackgroundExplainer computes interventional attributions for any model by
// substituting unknown features with rows from a background reference sample.
type BackgroundExplainer struct {
	model      Model
	background [][]float64
	options    ExplainerOptions
}

// NewBackgroundExplainer builds a sampling explainer over the given reference rows.
func NewBackgroundExplainer(m Model, background [][]float64, opts ExplainerOptions) (*BackgroundExplainer, error) {
	if len(background) == 0 {
		return nil, errors.New("background explainer needs at least one reference row")
	}
	for i, row := range background {
		if len(row) != m.NumFeatures() {
			return nil, fmt.Errorf("background row %d has %d features, want %d", i, len(row), m.NumFeatures())
		}
	}
	return &BackgroundExplainer{model: m, background: background, options: opts.withDefaults()}, nil
}

// ExpectedValue is the mean model output over the background sample.
func (b *BackgroundExplainer) ExpectedValue() (float64, error) {
	return b.value(nil, make([]bool, b.model.NumFeatures()))
}

func (b *BackgroundExplainer) value(x []float64, known []bool) (float64, error) {
	z := make([]float64, len(known))
	var sum float64
	for _, row := range b.background {
		for i := range z {
			if known[i] {
				z[i] = x[i]
			} else {
				z[i] = row[i]
			}
		}
		p, err := b.model.Score(z)
		if err != nil {
			return 0, err
		}
		sum += p
	}
	return sum / float64(len(b.background)), nil
}

func (b *BackgroundExplainer) Explain(x []float64) (*Attribution, error) {
	if err := checkInput(b.model, x); err != nil {
		return nil, err
	}
	base, phi, err := b.options.shapley(len(x), func(known []bool) (float64, error) {
		return b.value(x, known)
	})
	if err != nil {
		return nil, err
	}
	return newAttribution(base, phi, x), nil
}
