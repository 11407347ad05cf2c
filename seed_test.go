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

package qercas

import (
	"context"
	"errors"
	"testing"

	"github.com/blnkfinance/qercas/model"
	"github.com/blnkfinance/qercas/risk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedFixture() []SeedTransaction {
	sample := func(id string, typ model.TransactionType, amount string, status model.Status) SeedTransaction {
		return SeedTransaction{
			TransactionIDStr:   id,
			Type:               typ,
			Amount:             decimal.RequireFromString(amount),
			ClientName:         "Acme Holdings",
			SourceAccount:      "ACC10001",
			DestinationAccount: "ACC20002",
			Status:             status,
		}
	}
	return []SeedTransaction{
		sample("TXN789012", model.TypeWireTransfer, "550000.00", model.StatusBlocked),
		sample("TXN123456", model.TypeFxSpot, "75000.00", model.StatusCompliant),
		sample("TXN987654", model.TypeCrypto, "15000.50", model.StatusHighRisk),
	}
}

// recordSeeded makes the mocked store echo recorded transactions and keeps a copy of each.
func recordSeeded(env *testEnv) *[]model.Transaction {
	recorded := &[]model.Transaction{}
	stored := &model.Transaction{}
	env.ds.On("RecordTransaction", mock.Anything, mock.AnythingOfType("*model.Transaction")).
		Run(func(args mock.Arguments) {
			*stored = *args.Get(1).(*model.Transaction)
			*recorded = append(*recorded, *stored)
		}).
		Return(stored, nil)
	return recorded
}

func TestSeed_ReplacesDataAndExplainsRiskySamples(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact))
	env.ds.On("DeleteAllTransactions", mock.Anything).Return(int64(12), nil)
	recorded := recordSeeded(env)
	env.ds.On("RecordExplanation", mock.Anything, mock.MatchedBy(func(e *model.Explanation) bool {
		return len(e.ShapValues) == risk.NumFeatures && e.Validate() == nil
	})).Return(nil)

	result, err := env.q.Seed(context.Background(), seedFixture())
	require.NoError(t, err)

	assert.Equal(t, &SeedResult{Cleared: 12, Transactions: 3, Explanations: 2}, result)
	env.ds.AssertNumberOfCalls(t, "RecordExplanation", 2)

	require.Len(t, *recorded, 3)
	for i, txn := range *recorded {
		assert.NotEmpty(t, txn.ID)
		assert.Equal(t, "USD", txn.Currency)
		assert.Equal(t, seedFixture()[i].Status, txn.Status, "preset statuses are stored as given")
		assert.Equal(t, seedFixture()[i].TransactionIDStr, txn.TransactionIDStr)
	}

	_, found := env.q.queue.AnalysisState((*recorded)[0].ID)
	assert.False(t, found, "seeded transactions are not queued for analysis")
}

func TestSeed_WithoutExplainerStillSeeds(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, logisticArtifact))
	env.ds.On("DeleteAllTransactions", mock.Anything).Return(int64(0), nil)
	recordSeeded(env)

	result, err := env.q.Seed(context.Background(), seedFixture())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Transactions)
	assert.Equal(t, 0, result.Explanations)
	env.ds.AssertNotCalled(t, "RecordExplanation", mock.Anything, mock.Anything)
}

func TestSeed_Failures(t *testing.T) {
	t.Run("invalid status is rejected before clearing", func(t *testing.T) {
		env := newTestEnv(t, artifactEngine(t, forestArtifact))
		samples := seedFixture()
		samples[1].Status = "UNKNOWN"

		_, err := env.q.Seed(context.Background(), samples)
		assert.Error(t, err)
		env.ds.AssertNotCalled(t, "DeleteAllTransactions", mock.Anything)
	})

	t.Run("clear failure stops the seed", func(t *testing.T) {
		env := newTestEnv(t, artifactEngine(t, forestArtifact))
		env.ds.On("DeleteAllTransactions", mock.Anything).Return(int64(0), errors.New("connection reset"))

		_, err := env.q.Seed(context.Background(), seedFixture())
		assert.Error(t, err)
		env.ds.AssertNotCalled(t, "RecordTransaction", mock.Anything, mock.Anything)
	})
}
