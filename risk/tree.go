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

// TreeNode is one node of a binary decision tree. A node with Left < 0 is a leaf.
// Samples with x[Feature] <= Threshold go left.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	// Value is the positive-class probability at a leaf.
	Value float64 `json:"value"`
	// Cover is the number of training samples that reached the node.
	Cover float64 `json:"cover"`
}

func (n TreeNode) leaf() bool {
	return n.Left < 0
}

// Tree is a decision tree stored as a flat node array rooted at index 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeEnsemble averages the leaf probabilities of its trees.
type TreeEnsemble struct {
	Trees    []Tree
	Features int
}

// NewTreeEnsemble validates the trees and returns the ensemble.
func NewTreeEnsemble(trees []Tree, features int) (*TreeEnsemble, error) {
	if len(trees) == 0 {
		return nil, errors.New("tree ensemble has no trees")
	}
	for i := range trees {
		if err := trees[i].validate(features); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &TreeEnsemble{Trees: trees, Features: features}, nil
}

func (t *Tree) validate(features int) error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.Cover < 0 {
			return fmt.Errorf("node %d has negative cover", i)
		}
		if n.leaf() {
			if n.Value < 0 || n.Value > 1 {
				return fmt.Errorf("leaf %d value %v is not a probability", i, n.Value)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d splits on unknown feature %d", i, n.Feature)
		}
		// children after parents keeps the structure acyclic
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.leaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// expectation returns E[f(x) | x_known] following the training covers through
// every split on an unknown feature.
func (t *Tree) expectation(x []float64, known []bool, i int) float64 {
	n := t.Nodes[i]
	if n.leaf() {
		return n.Value
	}
	if known[n.Feature] {
		if x[n.Feature] <= n.Threshold {
			return t.expectation(x, known, n.Left)
		}
		return t.expectation(x, known, n.Right)
	}
	lc, rc := t.Nodes[n.Left].Cover, t.Nodes[n.Right].Cover
	left, right := t.expectation(x, known, n.Left), t.expectation(x, known, n.Right)
	if lc+rc == 0 {
		return (left + right) / 2
	}
	return (lc*left + rc*right) / (lc + rc)
}

func (e *TreeEnsemble) Kind() Kind { return KindScikitLike }

func (e *TreeEnsemble) NumFeatures() int { return e.Features }

func (e *TreeEnsemble) Score(x []float64) (float64, error) {
	if err := checkInput(e, x); err != nil {
		return 0, err
	}
	return checkProbability(e.predict(x))
}

func (e *TreeEnsemble) predict(x []float64) float64 {
	var sum float64
	for i := range e.Trees {
		sum += e.Trees[i].predict(x)
	}
	return sum / float64(len(e.Trees))
}

func (e *TreeEnsemble) expectation(x []float64, known []bool) float64 {
	var sum float64
	for i := range e.Trees {
		sum += e.Trees[i].expectation(x, known, 0)
	}
	return sum / float64(len(e.Trees))
}
