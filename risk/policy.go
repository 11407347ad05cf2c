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

import "github.com/blnkfinance/qercas/model"

const (
	// CryptoBlockAmount is the amount above which crypto transactions are blocked outright.
	CryptoBlockAmount = 100000.00
	// BlockThreshold is the probability above which a transaction is blocked.
	BlockThreshold = 0.8
	// HighRiskThreshold is the probability above which a transaction is high risk.
	HighRiskThreshold = 0.5
)

// Decision is the outcome of the decision policy for one feature vector.
type Decision struct {
	Status      model.Status `json:"status"`
	Probability float64      `json:"probability"`
	RawLabel    int          `json:"raw_label"`
	// Override is set when a business rule decided without the model.
	Override bool `json:"override"`
}

// HardOverride reports whether a business rule blocks the vector regardless of the model.
func HardOverride(fv FeatureVector) bool {
	return fv.IsCrypto == 1 && fv.Amount > CryptoBlockAmount
}

// Decide applies the business rules and then thresholds the model probability.
// Upper bounds are inclusive on the lower band: 0.8 is HIGH_RISK and 0.5 is COMPLIANT.
func Decide(fv FeatureVector, probability float64) Decision {
	if HardOverride(fv) {
		return Decision{Status: model.StatusBlocked, Probability: 1.0, RawLabel: 1, Override: true}
	}

	d := Decision{Probability: probability, RawLabel: Label(probability)}
	switch {
	case probability > BlockThreshold:
		d.Status = model.StatusBlocked
	case probability > HighRiskThreshold:
		d.Status = model.StatusHighRisk
	default:
		d.Status = model.StatusCompliant
	}
	return d
}

// Unavailable is the degraded decision used when no model can be consulted.
func Unavailable() Decision {
	return Decision{Status: model.StatusPending, Probability: 0.0, RawLabel: 0}
}

// Label converts a probability into the binary class the model would predict.
func Label(probability float64) int {
	if probability > 0.5 {
		return 1
	}
	return 0
}
