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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactBuild_Kinds(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		kind        Kind
		explainable bool
	}{
		{"forest uses structural explainer", forestArtifact, KindScikitLike, true},
		{"network falls back to a zero reference", networkArtifact, KindTorchLike, true},
		{"logistic without background has no explainer", logisticArtifact, KindKerasLike, false},
		{"logistic with background", logisticWithBackgroundArtifact, KindKerasLike, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ex := buildArtifact(t, tt.doc)
			assert.Equal(t, tt.kind, m.Kind())
			assert.Equal(t, NumFeatures, m.NumFeatures())
			assert.Equal(t, tt.explainable, ex != nil)

			p, err := m.Score([]float64{5000, 2, 10, 0})
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		})
	}
}

func TestArtifactBuild_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", `{"kind": "xgboost"}`},
		{"declared width differs from the feature vector", `{"kind": "keras", "features": 5, "weights": [1, 1, 1, 1, 1], "bias": 0}`},
		{"forest over three features", `{"kind": "scikit", "features": 3, "trees": [{"nodes": [{"left": -1, "right": -1, "value": 0.5}]}]}`},
		{"forest without trees", `{"kind": "scikit"}`},
		{"leaf missing its marker", `{"kind": "scikit", "trees": [{"nodes": [{"feature": 0, "value": 0.5}]}]}`},
		{"leaf outside unit interval", `{"kind": "scikit", "trees": [{"nodes": [{"left": -1, "right": -1, "value": 1.5}]}]}`},
		{"split on unknown feature", `{"kind": "scikit", "trees": [{"nodes": [{"feature": 9, "left": 1, "right": 2}, {"left": -1}, {"left": -1}]}]}`},
		{"network with two outputs", `{"kind": "torch", "layers": [{"weights": [[1,0,0,0],[0,1,0,0]], "bias": [0,0]}]}`},
		{"network with ragged layer", `{"kind": "torch", "layers": [{"weights": [[1,0,0]], "bias": [0]}]}`},
		{"logistic with wrong width", `{"kind": "keras", "weights": [1, 2], "bias": 0}`},
		{"zero scale", `{"kind": "keras", "weights": [1,1,1,1], "scaler": {"mean": [0,0,0,0], "scale": [1,0,1,1]}}`},
		{"background with wrong width", `{"kind": "keras", "weights": [1,1,1,1], "background": [[1,2]]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseArtifact([]byte(tt.doc))
			require.NoError(t, err)
			_, _, err = a.Build()
			assert.Error(t, err)
		})
	}
}

func TestParseArtifact_Malformed(t *testing.T) {
	_, err := ParseArtifact([]byte("{not json"))
	assert.Error(t, err)
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("/var/models/risk.json", S3Options{})
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "/var/models/risk.json"}, src)

	src, err = ParseSource("file:///var/models/risk.json", S3Options{})
	require.NoError(t, err)
	assert.Equal(t, "/var/models/risk.json", src.String())

	src, err = ParseSource("s3://models/prod/risk.json", S3Options{Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Equal(t, "s3://models/prod/risk.json", src.String())

	_, err = ParseSource("s3://models", S3Options{})
	assert.Error(t, err)

	_, err = ParseSource("  ", S3Options{})
	assert.ErrorIs(t, err, ErrNoArtifact)
}
