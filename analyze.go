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
	"fmt"
	"time"

	"github.com/blnkfinance/qercas/internal/apierror"
	redlock "github.com/blnkfinance/qercas/internal/lock"
	"github.com/blnkfinance/qercas/internal/notification"
	"github.com/blnkfinance/qercas/model"
	"github.com/blnkfinance/qercas/risk"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const analysisLockPrefix = "qercas:analysis:"

// AnalyzeTransactionRisk runs one decision cycle for a transaction: extract
// features, score, persist the status and, for risky outcomes, persist an
// explanation. Graph, audit and webhook hooks run afterwards and never fail
// the cycle.
//
// A missing transaction is not an error. When another cycle holds the
// transaction's lock the call fails with redlock.ErrLockHeld so the queue
// retries it once the lock is released or expires.
func (q *Qercas) AnalyzeTransactionRisk(ctx context.Context, transactionID string) (*model.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "Analyzing Transaction Risk")
	defer span.End()

	logger := logrus.WithField("transaction_id", transactionID)

	locker := redlock.NewLocker(q.redis, analysisLockPrefix+transactionID, model.GenerateUUIDWithSuffix("analysis"))
	if err := locker.Lock(ctx, q.queue.conf.TaskTimeout()); err != nil {
		span.RecordError(err)
		if errors.Is(err, redlock.ErrLockHeld) {
			logger.Info("analysis lock is held, pushing to retry queue")
			return nil, fmt.Errorf("analysis of %s is locked: %w", transactionID, err)
		}
		return nil, fmt.Errorf("failed to acquire analysis lock: %w", err)
	}
	defer func() {
		if err := locker.Unlock(context.Background()); err != nil {
			logger.Warnf("failed to release analysis lock: %v", err)
		}
	}()

	txn, err := q.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		if apierror.IsNotFound(err) {
			logger.Warn("transaction not found, nothing to analyze")
			return &model.AnalysisResult{TransactionID: transactionID, Stage: model.StageNotFound}, nil
		}
		span.RecordError(err)
		return nil, err
	}

	fv := risk.Extract(txn)
	decision := q.engine.Predict(ctx, fv)

	if err := q.datasource.UpdateTransactionStatus(ctx, txn.ID, decision.Status); err != nil {
		span.RecordError(err)
		notification.NotifyError(fmt.Errorf("failed to persist decision for %s: %w", txn.TransactionIDStr, err))
		return nil, err
	}
	txn.Status = decision.Status

	result := &model.AnalysisResult{
		TransactionID: txn.ID,
		Status:        decision.Status,
		Probability:   decision.Probability,
		RawLabel:      decision.RawLabel,
		Stage:         model.StageDecided,
	}

	logger = logger.WithFields(logrus.Fields{"status": decision.Status, "probability": decision.Probability})
	if decision.Status == model.StatusPending {
		logger.Warnf("risk model unavailable, transaction left pending: %v", q.engine.Err())
	} else {
		logger.Info("decision recorded")
	}

	if decision.Status.IsRisky() {
		if q.explainDecision(ctx, txn, fv) {
			result.Stage = model.StageExplained
			result.HasExplanation = true
		} else {
			result.Stage = model.StageExplainedSkipped
		}
	}

	q.runDecisionHooks(ctx, txn, decision)
	return result, nil
}

// explainDecision stores the attribution of a risky decision. It reports
// whether an explanation was persisted.
func (q *Qercas) explainDecision(ctx context.Context, txn *model.Transaction, fv risk.FeatureVector) bool {
	ctx, span := tracer.Start(ctx, "Explaining Decision")
	defer span.End()

	logger := logrus.WithField("transaction_id", txn.ID)

	attribution, err := q.engine.Explain(ctx, fv)
	if err != nil {
		if risk.IsUnavailable(err) {
			logger.Warnf("no explanation generated: %v", err)
		} else {
			span.RecordError(err)
			logger.Errorf("explanation failed: %v", err)
		}
		return false
	}

	base := attribution.BaseValue
	explanation := &model.Explanation{
		TransactionID: txn.ID,
		BaseValue:     &base,
		ShapValues:    attribution.Values,
		FeatureNames:  attribution.FeatureNames,
		FeatureValues: attribution.FeatureValues,
		CreatedAt:     time.Now().UTC(),
	}
	if err := q.datasource.RecordExplanation(ctx, explanation); err != nil {
		span.RecordError(err)
		logger.Errorf("failed to store explanation: %v", err)
		return false
	}
	return true
}

// ProcessAnalysis is the worker handler for TaskAnalyzeTransaction.
func (q *Qercas) ProcessAnalysis(ctx context.Context, task *asynq.Task) error {
	var payload AnalysisPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid analysis payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TransactionID == "" {
		return fmt.Errorf("analysis payload has no transaction id: %w", asynq.SkipRetry)
	}

	result, err := q.AnalyzeTransactionRisk(ctx, payload.TransactionID)
	if err != nil {
		logrus.Errorf("analysis of %s failed: %v", payload.TransactionID, err)
		return err
	}
	logrus.WithFields(logrus.Fields{
		"transaction_id": result.TransactionID,
		"stage":          result.Stage,
	}).Debug("analysis task done")
	return nil
}
