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

// Layer is a fully connected layer; Weights is indexed [output][input].
type Layer struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

func (l Layer) inputs() int {
	if len(l.Weights) == 0 {
		return 0
	}
	return len(l.Weights[0])
}

func (l Layer) forward(x []float64, relu bool) []float64 {
	out := make([]float64, len(l.Weights))
	for o, row := range l.Weights {
		z := l.Bias[o]
		for i, w := range row {
			z += w * x[i]
		}
		if relu && z < 0 {
			z = 0
		}
		out[o] = z
	}
	return out
}

// FeedForward is a multilayer perceptron with ReLU hidden layers and a single
// logit output squashed by a sigmoid.
type FeedForward struct {
	Layers []Layer
	Scaler *Scaler
}

// NewFeedForward checks that consecutive layers line up and end in one output.
func NewFeedForward(layers []Layer, scaler *Scaler, features int) (*FeedForward, error) {
	if len(layers) == 0 {
		return nil, errors.New("network has no layers")
	}
	width := features
	for i, l := range layers {
		if len(l.Weights) == 0 || len(l.Bias) != len(l.Weights) {
			return nil, fmt.Errorf("layer %d has mismatched weights and bias", i)
		}
		for _, row := range l.Weights {
			if len(row) != width {
				return nil, fmt.Errorf("layer %d expects %d inputs, got a row of %d", i, width, len(row))
			}
		}
		width = len(l.Weights)
	}
	if width != 1 {
		return nil, fmt.Errorf("network must end in a single output, got %d", width)
	}
	if err := scaler.validate(features); err != nil {
		return nil, err
	}
	return &FeedForward{Layers: layers, Scaler: scaler}, nil
}

func (f *FeedForward) Kind() Kind { return KindTorchLike }

func (f *FeedForward) NumFeatures() int { return f.Layers[0].inputs() }

func (f *FeedForward) Score(x []float64) (float64, error) {
	if err := checkInput(f, x); err != nil {
		return 0, err
	}
	h := f.Scaler.apply(x)
	last := len(f.Layers) - 1
	for i, l := range f.Layers {
		h = l.forward(h, i != last)
	}
	return checkProbability(sigmoid(h[0]))
}

// Logistic is a linear model with a sigmoid output.
type Logistic struct {
	Weights []float64
	Bias    float64
	Scaler  *Scaler
}

// NewLogistic validates the weight vector against the feature count.
func NewLogistic(weights []float64, bias float64, scaler *Scaler, features int) (*Logistic, error) {
	if len(weights) != features {
		return nil, fmt.Errorf("logistic model expects %d weights, got %d", features, len(weights))
	}
	if err := scaler.validate(features); err != nil {
		return nil, err
	}
	return &Logistic{Weights: weights, Bias: bias, Scaler: scaler}, nil
}

func (l *Logistic) Kind() Kind { return KindKerasLike }

func (l *Logistic) NumFeatures() int { return len(l.Weights) }

func (l *Logistic) Score(x []float64) (float64, error) {
	if err := checkInput(l, x); err != nil {
		return 0, err
	}
	z := l.Bias
	for i, v := range l.Scaler.apply(x) {
		z += l.Weights[i] * v
	}
	return checkProbability(sigmoid(z))
}
