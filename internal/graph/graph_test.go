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

package graph

import (
	"os"
	"testing"
	"time"

	"github.com/blnkfinance/qercas/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func txn(id, from, to string, amount int64) model.Transaction {
	return model.Transaction{
		ID:                 id,
		TransactionIDStr:   "TXN-" + id,
		Type:               model.TypeCrypto,
		Amount:             decimal.NewFromInt(amount),
		Currency:           "USD",
		SourceAccount:      from,
		DestinationAccount: to,
		Status:             model.StatusBlocked,
		Timestamp:          time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestBuild(t *testing.T) {
	focal := txn("a", "ACC-1", "ACC-2", 250000)
	related := []model.Transaction{
		txn("b", "ACC-2", "ACC-3", 1200),
		txn("c", "ACC-4", "ACC-1", 800),
		focal,
	}

	g := Build(&focal, related)
	assert.Equal(t, []string{"ACC-1", "ACC-2", "ACC-3", "ACC-4"}, g.Accounts)
	require.Len(t, g.Edges, 3, "the focal transaction is drawn once")
	assert.True(t, g.Edges[0].Focus)
	assert.Equal(t, "250000 USD", g.Edges[0].Label)
	assert.Contains(t, g.Title, "TXN-a")
}

func TestRenderer_RenderOnce(t *testing.T) {
	r := NewRenderer(t.TempDir() + "/graphs")
	focal := txn("f0c4", "ACC-1", "ACC-2", 150000)

	assert.False(t, r.Exists(focal.ID))
	_, err := r.Lookup(focal.ID)
	assert.ErrorIs(t, err, ErrNoGraph)

	path, created, err := r.Render(&focal, []model.Transaction{txn("n1", "ACC-2", "ACC-9", 10)})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, r.Path(focal.ID), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	_, created, err = r.Render(&focal, nil)
	require.NoError(t, err)
	assert.False(t, created, "an existing snapshot is reused")

	found, err := r.Lookup(focal.ID)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestRenderer_SelfTransfer(t *testing.T) {
	r := NewRenderer(t.TempDir())
	focal := txn("self", "ACC-1", "ACC-1", 5)

	_, created, err := r.Render(&focal, nil)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRenderer_PathStaysInDir(t *testing.T) {
	r := NewRenderer("/tmp/graphs")
	assert.Equal(t, "/tmp/graphs/passwd.png", r.Path("../../etc/passwd"))
}
