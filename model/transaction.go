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
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the compliance disposition of a transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompliant Status = "COMPLIANT"
	StatusHighRisk  Status = "HIGH_RISK"
	StatusBlocked   Status = "BLOCKED"
)

// IsRisky reports whether the status requires an explanation.
func (s Status) IsRisky() bool {
	return s == StatusHighRisk || s == StatusBlocked
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompliant, StatusHighRisk, StatusBlocked:
		return true
	}
	return false
}

// TransactionType is the instrument class of a transaction.
type TransactionType string

const (
	TypeWireTransfer TransactionType = "WIRE"
	TypeEquityTrade  TransactionType = "EQUITY"
	TypeFxSpot       TransactionType = "FX"
	TypeCrypto       TransactionType = "CRYPTO"
)

// TransactionTypes lists every accepted transaction type.
var TransactionTypes = []TransactionType{TypeWireTransfer, TypeEquityTrade, TypeFxSpot, TypeCrypto}

// Label returns the display name of the transaction type.
func (t TransactionType) Label() string {
	switch t {
	case TypeWireTransfer:
		return "Wire Transfer"
	case TypeEquityTrade:
		return "Equity Trade"
	case TypeFxSpot:
		return "FX Spot"
	case TypeCrypto:
		return "Crypto Trade"
	default:
		return string(t)
	}
}

// Transaction is an ingested financial transaction awaiting or holding a compliance decision.
// Everything except Status is immutable once recorded.
type Transaction struct {
	ID                 string          `json:"id"`
	TransactionIDStr   string          `json:"transaction_id_str"`
	Type               TransactionType `json:"transaction_type"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	ClientName         string          `json:"client_name"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Status             Status          `json:"status"`
	Timestamp          time.Time       `json:"timestamp"`
}

func (transaction *Transaction) String() string {
	return fmt.Sprintf("%s - %s %s [%s]", transaction.TransactionIDStr, transaction.Amount.StringFixed(2), transaction.Currency, transaction.Status)
}

// ToJSON serializes the transaction.
func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// Accounts returns the source and destination accounts of the transaction.
func (transaction *Transaction) Accounts() []string {
	return []string{transaction.SourceAccount, transaction.DestinationAccount}
}
