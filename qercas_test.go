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
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/database/mocks"
	"github.com/blnkfinance/qercas/internal/apierror"
	"github.com/blnkfinance/qercas/internal/graph"
	redlock "github.com/blnkfinance/qercas/internal/lock"
	"github.com/blnkfinance/qercas/model"
	"github.com/blnkfinance/qercas/risk"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
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

// logistic model without a background set, so it cannot be explained
const logisticArtifact = `{
  "kind": "keras",
  "weights": [0.00002, 0.1, -0.05, 1.2],
  "bias": -1.5
}`

type testEnv struct {
	q      *Qercas
	ds     *mocks.MockDataSource
	mr     *miniredis.Miniredis
	cfg    *config.Configuration
	asynqO asynq.RedisClientOpt
}

func artifactEngine(t *testing.T, doc string) *risk.Engine {
	t.Helper()
	a, err := risk.ParseArtifact([]byte(doc))
	require.NoError(t, err)
	m, ex, err := a.Build()
	require.NoError(t, err)
	return risk.NewStaticEngine(m, ex)
}

func newTestEnv(t *testing.T, engine *risk.Engine, configure ...func(*config.Configuration)) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := &config.Configuration{
		Redis:      config.RedisConfig{Dns: mr.Addr()},
		DataSource: config.DataSourceConfig{Dns: "postgres://qercas@localhost/qercas"},
		Queue:      config.QueueConfig{}.Resolved(),
		Graph:      config.GraphConfig{OutputDir: t.TempDir()},
	}
	for _, c := range configure {
		c(cfg)
	}
	config.MockConfig(cfg)

	ds := new(mocks.MockDataSource)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q, err := NewQercas(ds, WithEngine(engine), WithRedis(client), WithGraphRenderer(graph.NewRenderer(cfg.Graph.OutputDir)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })

	return &testEnv{q: q, ds: ds, mr: mr, cfg: cfg, asynqO: asynq.RedisClientOpt{Addr: mr.Addr()}}
}

func fixtureTransaction(id string, typ model.TransactionType, amount int64, at time.Time) *model.Transaction {
	return &model.Transaction{
		ID:                 id,
		TransactionIDStr:   "TXN-" + id[:4],
		Type:               typ,
		Amount:             decimal.NewFromInt(amount),
		Currency:           "USD",
		ClientName:         "Acme Holdings",
		SourceAccount:      "ACC-100",
		DestinationAccount: "ACC-200",
		Status:             model.StatusPending,
		Timestamp:          at,
	}
}

var mondayMorning = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func TestAnalyzeTransactionRisk_CompliantWire(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact))
	txn := fixtureTransaction("a1b2c3d4", model.TypeWireTransfer, 15000, mondayMorning)

	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusCompliant).Return(nil)

	result, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompliant, result.Status)
	assert.InDelta(t, 0.15, result.Probability, 1e-9)
	assert.Equal(t, 0, result.RawLabel)
	assert.Equal(t, model.StageDecided, result.Stage)
	assert.False(t, result.HasExplanation)
	env.ds.AssertNotCalled(t, "RecordExplanation", mock.Anything, mock.Anything)
	env.ds.AssertExpectations(t)

	assert.False(t, env.mr.Exists(analysisLockPrefix+txn.ID), "lock is released after the cycle")
}

// fixedModel scores every transaction with the same probability.
type fixedModel struct {
	p float64
}

func (m fixedModel) Kind() risk.Kind                    { return risk.KindTorchLike }
func (m fixedModel) NumFeatures() int                   { return risk.NumFeatures }
func (m fixedModel) Score(_ []float64) (float64, error) { return m.p, nil }

func TestAnalyzeTransactionRisk_WireScoredCompliant(t *testing.T) {
	env := newTestEnv(t, risk.NewStaticEngine(fixedModel{p: 0.3}, nil))
	txn := fixtureTransaction("0a1b2c3d", model.TypeWireTransfer, 5200, mondayMorning)

	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusCompliant).Return(nil)

	result, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompliant, result.Status)
	assert.Equal(t, 0.3, result.Probability)
	assert.Equal(t, 0, result.RawLabel)
	assert.Equal(t, model.StageDecided, result.Stage)
	assert.False(t, result.HasExplanation)
	env.ds.AssertNotCalled(t, "RecordExplanation", mock.Anything, mock.Anything)
	env.ds.AssertExpectations(t)
}

func TestAnalyzeTransactionRisk_LargeCryptoBlockedAndExplained(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact), func(c *config.Configuration) {
		c.Graph.Enabled = true
		c.Vault.Enabled = true
		c.Vault.PostQuantum = true
	})
	txn := fixtureTransaction("b2c3d4e5", model.TypeCrypto, 250000, mondayMorning)

	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusBlocked).Return(nil)
	env.ds.On("RecordExplanation", mock.Anything, mock.MatchedBy(func(e *model.Explanation) bool {
		return e.TransactionID == txn.ID && len(e.ShapValues) == 4 && e.Validate() == nil
	})).Return(nil)
	env.ds.On("GetRelatedTransactions", mock.Anything, txn.ID, []string{"ACC-100", "ACC-200"}, relatedTransactionLimit).
		Return([]model.Transaction{*fixtureTransaction("c3d4e5f6", model.TypeWireTransfer, 900, mondayMorning)}, nil)

	result, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusBlocked, result.Status)
	assert.Equal(t, 1.0, result.Probability)
	assert.Equal(t, 1, result.RawLabel)
	assert.Equal(t, model.StageExplained, result.Stage)
	assert.True(t, result.HasExplanation)
	env.ds.AssertExpectations(t)

	path, err := env.q.graphs.Lookup(txn.ID)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestAnalyzeTransactionRisk_HighRiskWithoutExplainer(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, logisticArtifact))
	txn := fixtureTransaction("d4e5f6a7", model.TypeCrypto, 80000, time.Date(2024, 1, 17, 3, 0, 0, 0, time.UTC))

	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusHighRisk).Return(nil)

	result, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusHighRisk, result.Status)
	assert.Equal(t, model.StageExplainedSkipped, result.Stage)
	assert.False(t, result.HasExplanation)
	env.ds.AssertNotCalled(t, "RecordExplanation", mock.Anything, mock.Anything)
}

func TestAnalyzeTransactionRisk_ModelUnavailable(t *testing.T) {
	env := newTestEnv(t, risk.NewStaticEngine(nil, nil))
	txn := fixtureTransaction("e5f6a7b8", model.TypeCrypto, 250000, mondayMorning)

	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusPending).Return(nil)

	result, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, result.Status)
	assert.Equal(t, 0.0, result.Probability)
	assert.Equal(t, model.StageDecided, result.Stage)
	env.ds.AssertNotCalled(t, "RecordExplanation", mock.Anything, mock.Anything)
}

func TestAnalyzeTransactionRisk_NotFound(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact))

	env.ds.On("GetTransaction", mock.Anything, "missing").
		Return(nil, apierror.NewAPIError(apierror.ErrNotFound, "transaction not found", nil))

	result, err := env.q.AnalyzeTransactionRisk(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, model.StageNotFound, result.Stage)
	env.ds.AssertNotCalled(t, "UpdateTransactionStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyzeTransactionRisk_HeldLockIsRetried(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact))
	txn := fixtureTransaction("e5f6a7b8", model.TypeWireTransfer, 1000, mondayMorning)

	require.NoError(t, env.mr.Set(analysisLockPrefix+txn.ID, "stale-worker"))
	env.mr.SetTTL(analysisLockPrefix+txn.ID, time.Minute)

	result, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	assert.ErrorIs(t, err, redlock.ErrLockHeld)
	assert.Nil(t, result)
	env.ds.AssertNotCalled(t, "GetTransaction", mock.Anything, mock.Anything)

	payload, err := json.Marshal(AnalysisPayload{TransactionID: txn.ID})
	require.NoError(t, err)
	err = env.q.ProcessAnalysis(context.Background(), asynq.NewTask(TaskAnalyzeTransaction, payload))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "a held lock must leave the task retryable")

	got, err := env.mr.Get(analysisLockPrefix + txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "stale-worker", got, "another holder's lock is left alone")

	env.mr.FastForward(2 * time.Minute)
	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusCompliant).Return(nil)

	require.NoError(t, env.q.ProcessAnalysis(context.Background(), asynq.NewTask(TaskAnalyzeTransaction, payload)))
	env.ds.AssertExpectations(t)
	assert.False(t, env.mr.Exists(analysisLockPrefix+txn.ID))
}

func TestAnalyzeTransactionRisk_StatusWriteFails(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact))
	txn := fixtureTransaction("f6a7b8c9", model.TypeWireTransfer, 1000, mondayMorning)

	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusCompliant).Return(errors.New("connection reset"))

	_, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	assert.Error(t, err)
	assert.False(t, env.mr.Exists(analysisLockPrefix+txn.ID))
}

func TestAnalyzeTransactionRisk_PublishesDecisionWebhook(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact), func(c *config.Configuration) {
		c.Notification.Webhook.Url = "https://hooks.example.com/qercas"
	})
	txn := fixtureTransaction("a7b8c9d0", model.TypeWireTransfer, 1000, mondayMorning)

	env.ds.On("GetTransaction", mock.Anything, txn.ID).Return(txn, nil)
	env.ds.On("UpdateTransactionStatus", mock.Anything, txn.ID, model.StatusCompliant).Return(nil)

	_, err := env.q.AnalyzeTransactionRisk(context.Background(), txn.ID)
	require.NoError(t, err)

	inspector := asynq.NewInspector(env.asynqO)
	defer inspector.Close()
	tasks, err := inspector.ListPendingTasks(env.cfg.Queue.WebhookQueue)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, TaskSendWebhook, tasks[0].Type)
	assert.Contains(t, string(tasks[0].Payload), `"event":"transaction.compliant"`)
}

func TestRunDecisionHook_RecoversPanic(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact))
	txn := fixtureTransaction("b8c9d0e1", model.TypeCrypto, 250000, mondayMorning)

	hook := decisionHook{
		name: "broken",
		run: func(context.Context, *model.Transaction, risk.Decision) error {
			panic("renderer crashed")
		},
	}
	assert.NotPanics(t, func() {
		env.q.runDecisionHook(context.Background(), hook, txn, risk.Decision{Status: model.StatusBlocked})
	})
}

func TestProcessAnalysis_InvalidPayload(t *testing.T) {
	env := newTestEnv(t, artifactEngine(t, forestArtifact))

	err := env.q.ProcessAnalysis(context.Background(), asynq.NewTask(TaskAnalyzeTransaction, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = env.q.ProcessAnalysis(context.Background(), asynq.NewTask(TaskAnalyzeTransaction, []byte(`{}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEventFromStatus(t *testing.T) {
	assert.Equal(t, "transaction.high_risk", eventFromStatus(model.StatusHighRisk))
	assert.Equal(t, "transaction.blocked", eventFromStatus(model.StatusBlocked))
	assert.Equal(t, "transaction.compliant", eventFromStatus(model.StatusCompliant))
}
