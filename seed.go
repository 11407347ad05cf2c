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

	"github.com/blnkfinance/qercas/model"
	"github.com/blnkfinance/qercas/risk"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SeedTransaction is one preset row of a development data set. Its status is
// stored as given instead of being decided.
type SeedTransaction struct {
	TransactionIDStr   string
	Type               model.TransactionType
	Amount             decimal.Decimal
	Currency           string
	ClientName         string
	SourceAccount      string
	DestinationAccount string
	Status             model.Status
}

// SeedResult counts what Seed removed and stored.
type SeedResult struct {
	Cleared      int64 `json:"cleared"`
	Transactions int   `json:"transactions"`
	Explanations int   `json:"explanations"`
}

// Seed replaces every stored transaction with samples. HIGH_RISK and BLOCKED
// samples get an explanation from the loaded model when one can be produced;
// a missing explanation is logged and does not fail the seed.
func (q *Qercas) Seed(ctx context.Context, samples []SeedTransaction) (*SeedResult, error) {
	ctx, span := tracer.Start(ctx, "Seeding Transactions")
	defer span.End()

	for _, s := range samples {
		if !s.Status.Valid() {
			return nil, fmt.Errorf("seed transaction %s has invalid status %q", s.TransactionIDStr, s.Status)
		}
	}

	cleared, err := q.datasource.DeleteAllTransactions(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	logrus.Infof("cleared %d existing transactions", cleared)

	result := &SeedResult{Cleared: cleared}
	now := time.Now().UTC()
	for _, s := range samples {
		currency := s.Currency
		if currency == "" {
			currency = "USD"
		}
		txn := &model.Transaction{
			ID:                 uuid.NewString(),
			TransactionIDStr:   s.TransactionIDStr,
			Type:               s.Type,
			Amount:             s.Amount,
			Currency:           strings.ToUpper(currency),
			ClientName:         s.ClientName,
			SourceAccount:      s.SourceAccount,
			DestinationAccount: s.DestinationAccount,
			Status:             s.Status,
			Timestamp:          now,
		}
		if txn.TransactionIDStr == "" {
			txn.TransactionIDStr = model.GenerateTransactionIDStr("TXN")
		}

		stored, err := q.datasource.RecordTransaction(ctx, txn)
		if err != nil {
			span.RecordError(err)
			return result, fmt.Errorf("failed to seed %s: %w", txn.TransactionIDStr, err)
		}
		result.Transactions++

		if stored.Status.IsRisky() && q.explainDecision(ctx, stored, risk.Extract(stored)) {
			result.Explanations++
		}
	}

	return result, nil
}
