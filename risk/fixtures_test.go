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
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const forestArtifact = `{
  "kind": "scikit",
  "trees": [
    {"nodes": [
      {"feature": 3, "threshold": 0.5, "left": 1, "right": 2, "cover": 100},
      {"left": -1, "right": -1, "value": 0.1, "cover": 80},
      {"feature": 0, "threshold": 50000, "left": 3, "right": 4, "cover": 20},
      {"left": -1, "right": -1, "value": 0.6, "cover": 10},
      {"left": -1, "right": -1, "value": 0.9, "cover": 10}
    ]},
    {"nodes": [
      {"feature": 2, "threshold": 6, "left": 1, "right": 2, "cover": 100},
      {"left": -1, "right": -1, "value": 0.7, "cover": 30},
      {"left": -1, "right": -1, "value": 0.2, "cover": 70}
    ]}
  ]
}`

const networkArtifact = `{
  "kind": "torch",
  "layers": [
    {"weights": [[0.00001, 0, 0, 1], [0, 0.2, 0.1, 0]], "bias": [0, -0.5]},
    {"weights": [[1.5, 0.8]], "bias": [-2]}
  ]
}`

const logisticArtifact = `{
  "kind": "keras",
  "weights": [0.00002, 0.1, -0.05, 1.2],
  "bias": -1.5
}`

const logisticWithBackgroundArtifact = `{
  "kind": "keras",
  "weights": [0.5, 0.1, -0.05, 1.2],
  "bias": -1.5,
  "scaler": {"mean": [20000, 3, 12, 0.2], "scale": [40000, 2, 6, 0.4]},
  "background": [[1000, 0, 9, 0], [25000, 4, 15, 0], [300000, 6, 2, 1]]
}`

func buildArtifact(t *testing.T, doc string) (Model, Explainer) {
	t.Helper()
	a, err := ParseArtifact([]byte(doc))
	require.NoError(t, err)
	m, ex, err := a.Build()
	require.NoError(t, err)
	return m, ex
}

func writeArtifact(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return path
}

// countingSource records how many times the artifact was fetched.
type countingSource struct {
	data  []byte
	err   error
	calls int32
}

func (c *countingSource) Fetch(_ context.Context) ([]byte, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.err != nil {
		return nil, c.err
	}
	return c.data, nil
}

func (c *countingSource) String() string { return "counting" }

func (c *countingSource) Calls() int { return int(atomic.LoadInt32(&c.calls)) }

var errFetch = errors.New("bucket unreachable")
