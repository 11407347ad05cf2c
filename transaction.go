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
	"fmt"
	"strings"
	"time"

	"github.com/blnkfinance/qercas/internal/notification"
	"github.com/blnkfinance/qercas/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// RecordTransaction stores a new transaction as PENDING and schedules its
// decision cycle. A failure to schedule is reported but does not undo the
// ingestion; the transaction stays PENDING.
func (q *Qercas) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Recording Transaction")
	defer span.End()

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.TransactionIDStr == "" {
		txn.TransactionIDStr = model.GenerateTransactionIDStr("TXN")
	}
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now()
	}
	txn.Timestamp = txn.Timestamp.UTC()
	txn.Currency = strings.ToUpper(txn.Currency)
	txn.Status = model.StatusPending

	recorded, err := q.datasource.RecordTransaction(ctx, txn)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := q.queue.EnqueueAnalysis(ctx, recorded.ID); err != nil {
		span.RecordError(err)
		notification.NotifyError(fmt.Errorf("failed to schedule analysis for %s: %w", recorded.TransactionIDStr, err))
	} else {
		logrus.WithField("transaction_id", recorded.ID).Info("transaction recorded and queued for analysis")
	}
	return recorded, nil
}

// GetTransaction returns one transaction by id.
func (q *Qercas) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Fetching Transaction")
	defer span.End()
	return q.datasource.GetTransaction(ctx, id)
}

// GetAllTransactions lists transactions newest first. Out-of-range paging
// values are clamped.
func (q *Qercas) GetAllTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Listing Transactions")
	defer span.End()

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return q.datasource.GetAllTransactions(ctx, limit, offset)
}

// GetExplanation returns the explanation of a transaction.
func (q *Qercas) GetExplanation(ctx context.Context, transactionID string) (*model.Explanation, error) {
	ctx, span := tracer.Start(ctx, "Fetching Explanation")
	defer span.End()
	return q.datasource.GetExplanation(ctx, transactionID)
}

// GetTransactionGraph returns the path of a transaction's network snapshot.
func (q *Qercas) GetTransactionGraph(ctx context.Context, transactionID string) (string, error) {
	if _, err := q.GetTransaction(ctx, transactionID); err != nil {
		return "", err
	}
	return q.graphs.Lookup(transactionID)
}
