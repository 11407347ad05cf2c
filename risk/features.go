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
	"fmt"
	"time"

	"github.com/blnkfinance/qercas/model"
)

// FeatureNames is the fixed order in which features are fed to models and explainers.
var FeatureNames = []string{"amount", "day_of_week", "hour_of_day", "is_crypto"}

// NumFeatures is the length of every feature vector.
const NumFeatures = 4

// FeatureVector is the numeric encoding of a transaction used for scoring.
type FeatureVector struct {
	Amount    float64 `json:"amount"`
	DayOfWeek int     `json:"day_of_week"`
	HourOfDay int     `json:"hour_of_day"`
	IsCrypto  int     `json:"is_crypto"`
}

// Extract derives the feature vector of a transaction.
//
// Calendar features are taken in UTC so the same transaction yields the same
// vector regardless of the host timezone. Days are numbered Monday=0 to Sunday=6.
func Extract(txn *model.Transaction) FeatureVector {
	ts := txn.Timestamp.UTC()
	isCrypto := 0
	if txn.Type == model.TypeCrypto {
		isCrypto = 1
	}
	return FeatureVector{
		Amount:    txn.Amount.InexactFloat64(),
		DayOfWeek: mondayFirst(ts.Weekday()),
		HourOfDay: ts.Hour(),
		IsCrypto:  isCrypto,
	}
}

func mondayFirst(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Values returns the vector in FeatureNames order.
func (fv FeatureVector) Values() []float64 {
	return []float64{fv.Amount, float64(fv.DayOfWeek), float64(fv.HourOfDay), float64(fv.IsCrypto)}
}

// FeatureVectorFromValues is the inverse of Values.
func FeatureVectorFromValues(values []float64) (FeatureVector, error) {
	if len(values) != NumFeatures {
		return FeatureVector{}, fmt.Errorf("expected %d feature values, got %d", NumFeatures, len(values))
	}
	return FeatureVector{
		Amount:    values[0],
		DayOfWeek: int(values[1]),
		HourOfDay: int(values[2]),
		IsCrypto:  int(values[3]),
	}, nil
}
