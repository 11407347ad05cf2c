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

package model

import (
	"errors"
	"time"
)

// Explanation attributes a risky decision to the features that produced it.
// It is created at most once per transaction and never mutated.
type Explanation struct {
	TransactionID string    `json:"-"`
	BaseValue     *float64  `json:"base_value"`
	ShapValues    []float64 `json:"shap_values"`
	FeatureNames  []string  `json:"feature_names"`
	FeatureValues []float64 `json:"feature_values"`
	CreatedAt     time.Time `json:"created_at"`
}

// Output returns base value plus the sum of attributions, which equals the
// model output the explanation was computed for.
func (e *Explanation) Output() float64 {
	var total float64
	if e.BaseValue != nil {
		total = *e.BaseValue
	}
	for _, v := range e.ShapValues {
		total += v
	}
	return total
}

// Validate checks the explanation's vectors are aligned.
func (e *Explanation) Validate() error {
	if e.TransactionID == "" {
		return errors.New("explanation is missing its transaction")
	}
	if e.BaseValue == nil {
		return errors.New("explanation is missing its base value")
	}
	if len(e.ShapValues) != len(e.FeatureNames) || len(e.FeatureValues) != len(e.FeatureNames) {
		return errors.New("explanation vectors are not aligned with feature names")
	}
	return nil
}

// DashboardSummary holds the counters shown on the compliance dashboard.
type DashboardSummary struct {
	RealTimeAlerts      int64 `json:"real_time_alerts"`
	PendingExplanations int64 `json:"pending_explanations"`
	ActiveQuantumTasks  int   `json:"active_quantum_tasks"`
	RegulatoryUpdates   int   `json:"regulatory_updates"`
}
