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
	"database/sql"
	"errors"
	"fmt"

	"github.com/blnkfinance/qercas/internal/apierror"
	"github.com/blnkfinance/qercas/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
)

const transactionColumns = `id, transaction_id_str, transaction_type, amount, currency, client_name, source_account, destination_account, status, timestamp`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner, txn *model.Transaction) error {
	return row.Scan(
		&txn.ID,
		&txn.TransactionIDStr,
		&txn.Type,
		&txn.Amount,
		&txn.Currency,
		&txn.ClientName,
		&txn.SourceAccount,
		&txn.DestinationAccount,
		&txn.Status,
		&txn.Timestamp,
	)
}

func (d Datasource) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := otel.Tracer("Transaction store").Start(ctx, "Saving transaction to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO qercas.transactions(`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		txn.ID, txn.TransactionIDStr, txn.Type, txn.Amount, txn.Currency, txn.ClientName, txn.SourceAccount, txn.DestinationAccount, txn.Status, txn.Timestamp,
	)
	if err != nil {
		span.RecordError(err)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Transaction '%s' already exists", txn.TransactionIDStr), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	ctx, span := otel.Tracer("Transaction store").Start(ctx, "Fetching transaction from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM qercas.transactions WHERE id = $1`, id)

	txn := &model.Transaction{}
	err := scanTransaction(row, txn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetAllTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error) {
	ctx, span := otel.Tracer("Transaction store").Start(ctx, "Listing transactions from db")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM qercas.transactions ORDER BY timestamp DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	transactions := []model.Transaction{}
	for rows.Next() {
		txn := model.Transaction{}
		if err := scanTransaction(rows, &txn); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction data", err)
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over transactions", err)
	}
	return transactions, nil
}

func (d Datasource) UpdateTransactionStatus(ctx context.Context, id string, status model.Status) error {
	ctx, span := otel.Tracer("Transaction store").Start(ctx, "Updating transaction status")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE qercas.transactions
		SET status = $2
		WHERE id = $1
	`, id, status)
	if err != nil {
		span.RecordError(err)
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}

	return nil
}

func (d Datasource) GetRelatedTransactions(ctx context.Context, id string, accounts []string, limit int) ([]model.Transaction, error) {
	ctx, span := otel.Tracer("Transaction store").Start(ctx, "Fetching related transactions")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM qercas.transactions
		WHERE id <> $1 AND (source_account = ANY($2) OR destination_account = ANY($2))
		ORDER BY timestamp DESC
		LIMIT $3
	`, id, pq.Array(accounts), limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve related transactions", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (d Datasource) DeleteAllTransactions(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("Transaction store").Start(ctx, "Deleting all transactions")
	defer span.End()

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM qercas.transactions`)
	if err != nil {
		span.RecordError(err)
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete transactions", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	return deleted, nil
}
