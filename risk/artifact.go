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
	"encoding/json"
	"fmt"
)

// Artifact is the serialised form of a trained model. Only the fields relevant
// to Kind are read.
type Artifact struct {
	Kind     Kind `json:"kind"`
	Features int  `json:"features,omitempty"`

	Trees []Tree `json:"trees,omitempty"`

	Layers []Layer `json:"layers,omitempty"`

	Weights []float64 `json:"weights,omitempty"`
	Bias    float64   `json:"bias,omitempty"`

	Scaler     *Scaler          `json:"scaler,omitempty"`
	Background [][]float64      `json:"background,omitempty"`
	Explainer  ExplainerOptions `json:"explainer,omitempty"`
}

// ParseArtifact decodes an artifact document.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}
	if a.Features == 0 {
		a.Features = NumFeatures
	}
	return &a, nil
}

// Build constructs the model and the explainer that suits it. A nil explainer
// with a nil error means the model can score but not be explained.
func (a *Artifact) Build() (Model, Explainer, error) {
	if a.Features != NumFeatures {
		return nil, nil, fmt.Errorf("artifact declares %d features, transactions produce %d", a.Features, NumFeatures)
	}

	switch a.Kind {
	case KindScikitLike:
		m, err := NewTreeEnsemble(a.Trees, a.Features)
		if err != nil {
			return nil, nil, err
		}
		return m, NewTreeExplainer(m, a.Explainer), nil

	case KindTorchLike:
		m, err := NewFeedForward(a.Layers, a.Scaler, a.Features)
		if err != nil {
			return nil, nil, err
		}
		background := a.Background
		if len(background) == 0 {
			background = [][]float64{make([]float64, a.Features)}
		}
		ex, err := NewBackgroundExplainer(m, background, a.Explainer)
		if err != nil {
			return nil, nil, err
		}
		return m, ex, nil

	case KindKerasLike:
		m, err := NewLogistic(a.Weights, a.Bias, a.Scaler, a.Features)
		if err != nil {
			return nil, nil, err
		}
		if len(a.Background) == 0 {
			return m, nil, nil
		}
		ex, err := NewBackgroundExplainer(m, a.Background, a.Explainer)
		if err != nil {
			return nil, nil, err
		}
		return m, ex, nil
	}
	return nil, nil, fmt.Errorf("unknown model kind %q", a.Kind)
}
