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

package model

import (
	"time"

	"github.com/blnkfinance/qercas/model"
	"github.com/shopspring/decimal"
)

// RecordTransaction is the ingestion request body.
type RecordTransaction struct {
	TransactionIDStr   string          `json:"transaction_id_str"`
	TransactionType    string          `json:"transaction_type"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	ClientName         string          `json:"client_name"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Timestamp          string          `json:"timestamp,omitempty"`
}

// ToTransaction converts the request into a transaction ready to be recorded.
// A missing timestamp means now.
func (t *RecordTransaction) ToTransaction() (*model.Transaction, error) {
	var ts time.Time
	if t.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, t.Timestamp)
		if err != nil {
			return nil, err
		}
		ts = parsed.UTC()
	}
	return &model.Transaction{
		TransactionIDStr:   t.TransactionIDStr,
		Type:               model.TransactionType(t.TransactionType),
		Amount:             t.Amount,
		Currency:           t.Currency,
		ClientName:         t.ClientName,
		SourceAccount:      t.SourceAccount,
		DestinationAccount: t.DestinationAccount,
		Timestamp:          ts,
	}, nil
}
