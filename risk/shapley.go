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
	"math/bits"
	"math/rand"
)

// coalitionValue returns the model output when only the features in known are
// taken from the explained sample.
type coalitionValue func(known []bool) (float64, error)

func maskToKnown(mask uint64, n int, known []bool) []bool {
	for i := 0; i < n; i++ {
		known[i] = mask&(1<<uint(i)) != 0
	}
	return known
}

// exactShapley enumerates every coalition of n features. It returns the value of
// the empty coalition (the baseline) and one attribution per feature; the
// attributions sum to v(all) - v(empty).
func exactShapley(n int, value coalitionValue) (float64, []float64, error) {
	size := uint64(1) << uint(n)
	values := make([]float64, size)
	known := make([]bool, n)
	for mask := uint64(0); mask < size; mask++ {
		v, err := value(maskToKnown(mask, n, known))
		if err != nil {
			return 0, nil, err
		}
		values[mask] = v
	}

	// weight[s] = s!(n-s-1)!/n!
	weight := make([]float64, n)
	for s := 0; s < n; s++ {
		w := 1.0
		for k := 1; k <= s; k++ {
			w *= float64(k)
		}
		for k := 1; k <= n-s-1; k++ {
			w *= float64(k)
		}
		for k := 1; k <= n; k++ {
			w /= float64(k)
		}
		weight[s] = w
	}

	phi := make([]float64, n)
	for i := 0; i < n; i++ {
		bit := uint64(1) << uint(i)
		for mask := uint64(0); mask < size; mask++ {
			if mask&bit != 0 {
				continue
			}
			phi[i] += weight[bits.OnesCount64(mask)] * (values[mask|bit] - values[mask])
		}
	}
	return values[0], phi, nil
}

// sampledShapley averages marginal contributions over random feature orderings.
// Each ordering telescopes from v(empty) to v(all), so the estimate keeps the
// attributions summing exactly to v(all) - v(empty).
func sampledShapley(n, permutations int, seed int64, value coalitionValue) (float64, []float64, error) {
	rng := rand.New(rand.NewSource(seed))
	known := make([]bool, n)
	base, err := value(known)
	if err != nil {
		return 0, nil, err
	}

	phi := make([]float64, n)
	for p := 0; p < permutations; p++ {
		for i := range known {
			known[i] = false
		}
		prev := base
		for _, feature := range rng.Perm(n) {
			known[feature] = true
			v, err := value(known)
			if err != nil {
				return 0, nil, err
			}
			phi[feature] += v - prev
			prev = v
		}
	}
	for i := range phi {
		phi[i] /= float64(permutations)
	}
	return base, phi, nil
}
