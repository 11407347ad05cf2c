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

// Package graph renders the account linkage around a flagged transaction.
package graph

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/blnkfinance/qercas/model"
	"github.com/fogleman/gg"
)

const (
	canvasSize   = 800
	nodeRadius   = 22.0
	layoutRadius = 290.0
)

// ErrNoGraph is returned when no snapshot exists for a transaction.
var ErrNoGraph = errors.New("graph not generated")

// Edge is one transaction drawn between two accounts.
type Edge struct {
	From, To string
	Label    string
	Focus    bool
}

// Graph is the account linkage of a transaction and its neighbours.
type Graph struct {
	Title    string
	Accounts []string
	Edges    []Edge
}

// Build links the focal transaction and its related transactions by account.
// Accounts are sorted so the same inputs always produce the same picture.
func Build(txn *model.Transaction, related []model.Transaction) Graph {
	seen := map[string]struct{}{}
	var edges []Edge

	add := func(t *model.Transaction, focus bool) {
		seen[t.SourceAccount] = struct{}{}
		seen[t.DestinationAccount] = struct{}{}
		edges = append(edges, Edge{
			From:  t.SourceAccount,
			To:    t.DestinationAccount,
			Label: t.Amount.StringFixed(0) + " " + t.Currency,
			Focus: focus,
		})
	}

	add(txn, true)
	for i := range related {
		if related[i].ID == txn.ID {
			continue
		}
		add(&related[i], false)
	}

	accounts := make([]string, 0, len(seen))
	for a := range seen {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)

	return Graph{
		Title:    fmt.Sprintf("%s  %s", txn.TransactionIDStr, txn.Status),
		Accounts: accounts,
		Edges:    edges,
	}
}

// Renderer writes PNG snapshots into Dir, one file per transaction id.
type Renderer struct {
	Dir string
}

func NewRenderer(dir string) *Renderer {
	return &Renderer{Dir: dir}
}

// Path is where the snapshot of a transaction lives.
func (r *Renderer) Path(transactionID string) string {
	return filepath.Join(r.Dir, filepath.Base(transactionID)+".png")
}

// Exists reports whether a snapshot was already rendered.
func (r *Renderer) Exists(transactionID string) bool {
	info, err := os.Stat(r.Path(transactionID))
	return err == nil && !info.IsDir()
}

// Lookup returns the snapshot path or ErrNoGraph.
func (r *Renderer) Lookup(transactionID string) (string, error) {
	if !r.Exists(transactionID) {
		return "", ErrNoGraph
	}
	return r.Path(transactionID), nil
}

// Render draws the graph of txn unless a snapshot already exists. It reports
// whether a new file was written.
func (r *Renderer) Render(txn *model.Transaction, related []model.Transaction) (string, bool, error) {
	path := r.Path(txn.ID)
	if r.Exists(txn.ID) {
		return path, false, nil
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", false, err
	}

	dc := draw(Build(txn, related))

	tmp := path + ".tmp"
	if err := dc.SavePNG(tmp); err != nil {
		_ = os.Remove(tmp)
		return "", false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", false, err
	}
	return path, true, nil
}

func layout(accounts []string) map[string][2]float64 {
	centre := canvasSize / 2.0
	pos := make(map[string][2]float64, len(accounts))
	if len(accounts) == 1 {
		pos[accounts[0]] = [2]float64{centre, centre}
		return pos
	}
	for i, a := range accounts {
		angle := 2*math.Pi*float64(i)/float64(len(accounts)) - math.Pi/2
		pos[a] = [2]float64{centre + layoutRadius*math.Cos(angle), centre + layoutRadius*math.Sin(angle)}
	}
	return pos
}

func draw(g Graph) *gg.Context {
	dc := gg.NewContext(canvasSize, canvasSize)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	pos := layout(g.Accounts)

	// background edges first so the focal edge stays on top
	for _, focus := range []bool{false, true} {
		for _, e := range g.Edges {
			if e.Focus != focus {
				continue
			}
			from, to := pos[e.From], pos[e.To]
			if focus {
				dc.SetRGB(0.85, 0.1, 0.1)
				dc.SetLineWidth(4)
			} else {
				dc.SetRGBA(0.3, 0.3, 0.3, 0.6)
				dc.SetLineWidth(1.5)
			}
			dc.DrawLine(from[0], from[1], to[0], to[1])
			dc.Stroke()
			drawArrowHead(dc, from, to)

			dc.SetRGB(0.1, 0.1, 0.1)
			dc.DrawStringAnchored(e.Label, (from[0]+to[0])/2, (from[1]+to[1])/2-8, 0.5, 0.5)
		}
	}

	for _, a := range g.Accounts {
		p := pos[a]
		dc.SetRGB(0.53, 0.81, 0.92)
		dc.DrawCircle(p[0], p[1], nodeRadius)
		dc.Fill()
		dc.SetRGB(0.1, 0.1, 0.1)
		dc.DrawStringAnchored(a, p[0], p[1]+nodeRadius+12, 0.5, 0.5)
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(g.Title, canvasSize/2.0, 24, 0.5, 0.5)
	return dc
}

func drawArrowHead(dc *gg.Context, from, to [2]float64) {
	dx, dy := to[0]-from[0], to[1]-from[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length
	tipX, tipY := to[0]-ux*nodeRadius, to[1]-uy*nodeRadius
	const size = 10.0
	dc.MoveTo(tipX, tipY)
	dc.LineTo(tipX-ux*size-uy*size/2, tipY-uy*size+ux*size/2)
	dc.LineTo(tipX-ux*size+uy*size/2, tipY-uy*size-ux*size/2)
	dc.ClosePath()
	dc.Fill()
}
