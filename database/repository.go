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

package database

import (
	"context"

	"github.com/blnkfinance/qercas/model"
)

// IDataSource groups the storage operations of the risk pipeline.
type IDataSource interface {
	transaction
	explanation
	dashboard
}

type transaction interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetAllTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error)
	// UpdateTransactionStatus is the only write a decision cycle makes to a transaction.
	UpdateTransactionStatus(ctx context.Context, id string, status model.Status) error
	// GetRelatedTransactions returns transactions other than id that touch any of accounts, newest first.
	GetRelatedTransactions(ctx context.Context, id string, accounts []string, limit int) ([]model.Transaction, error)
	// DeleteAllTransactions removes every transaction and, through the foreign key, every explanation.
	DeleteAllTransactions(ctx context.Context) (int64, error)
}

type explanation interface {
	// RecordExplanation stores the first explanation for a transaction; later ones are ignored.
	RecordExplanation(ctx context.Context, exp *model.Explanation) error
	GetExplanation(ctx context.Context, transactionID string) (*model.Explanation, error)
}

type dashboard interface {
	// GetDashboardCounts fills the alert and pending-explanation counters.
	GetDashboardCounts(ctx context.Context) (*model.DashboardSummary, error)
}
