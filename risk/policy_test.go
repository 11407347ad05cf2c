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

	"github.com/blnkfinance/qercas/model"
	"github.com/stretchr/testify/assert"
)

func TestDecide_Thresholds(t *testing.T) {
	wire := FeatureVector{Amount: 5000, DayOfWeek: 2, HourOfDay: 10}

	tests := []struct {
		name        string
		probability float64
		status      model.Status
		label       int
	}{
		{"zero", 0.0, model.StatusCompliant, 0},
		{"exactly high risk threshold stays compliant", 0.5, model.StatusCompliant, 0},
		{"just above high risk threshold", 0.50001, model.StatusHighRisk, 1},
		{"mid band", 0.65, model.StatusHighRisk, 1},
		{"exactly block threshold stays high risk", 0.8, model.StatusHighRisk, 1},
		{"just above block threshold", 0.80001, model.StatusBlocked, 1},
		{"certain", 1.0, model.StatusBlocked, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(wire, tt.probability)
			assert.Equal(t, tt.status, d.Status)
			assert.Equal(t, tt.probability, d.Probability)
			assert.Equal(t, tt.label, d.RawLabel)
			assert.False(t, d.Override)
		})
	}
}

func TestDecide_HardOverride(t *testing.T) {
	crypto := FeatureVector{Amount: 250000, DayOfWeek: 4, HourOfDay: 2, IsCrypto: 1}
	for _, p := range []float64{0, 0.3, 0.7, 0.99} {
		d := Decide(crypto, p)
		assert.Equal(t, model.StatusBlocked, d.Status)
		assert.Equal(t, 1.0, d.Probability)
		assert.Equal(t, 1, d.RawLabel)
		assert.True(t, d.Override)
	}
}

func TestHardOverride_Boundaries(t *testing.T) {
	assert.False(t, HardOverride(FeatureVector{Amount: 100000.00, IsCrypto: 1}))
	assert.True(t, HardOverride(FeatureVector{Amount: 100000.01, IsCrypto: 1}))
	assert.False(t, HardOverride(FeatureVector{Amount: 500000, IsCrypto: 0}))
}

func TestUnavailable(t *testing.T) {
	d := Unavailable()
	assert.Equal(t, model.StatusPending, d.Status)
	assert.Equal(t, 0.0, d.Probability)
	assert.Equal(t, 0, d.RawLabel)
}
