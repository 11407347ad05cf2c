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
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/blnkfinance/qercas/model"
	"github.com/shopspring/decimal"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var currencyCode = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Amounts are stored as NUMERIC(19, 4).
const (
	amountScale         = 4
	amountIntegerDigits = 15
)

var maxAmount = decimal.New(1, amountIntegerDigits)

func transactionTypes() []interface{} {
	types := make([]interface{}, 0, len(model.TransactionTypes))
	for _, t := range model.TransactionTypes {
		types = append(types, string(t))
	}
	return types
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid amount")
	}
	if !amount.IsPositive() {
		return errors.New("must be greater than zero")
	}
	return nil
}

func amountFitsStorage(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("invalid amount")
	}
	if !amount.Equal(amount.Round(amountScale)) {
		return fmt.Errorf("must have at most %d decimal places", amountScale)
	}
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("must have at most %d digits before the decimal point", amountIntegerDigits)
	}
	return nil
}

func validateDateFormat(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		return errors.New("please format the timestamp as 'YYYY-MM-DDTHH:MM:SS+00:00' (e.g., 2024-04-22T15:28:03+00:00)")
	}
	return nil
}

func (t *RecordTransaction) ValidateRecordTransaction() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.TransactionType, validation.Required, validation.In(transactionTypes()...)),
		validation.Field(&t.Amount, validation.By(positiveAmount), validation.By(amountFitsStorage)),
		validation.Field(&t.Currency, validation.Required, validation.Match(currencyCode)),
		validation.Field(&t.ClientName, validation.Length(0, 255)),
		validation.Field(&t.SourceAccount, validation.Required, validation.Length(1, 64)),
		validation.Field(&t.DestinationAccount, validation.Required, validation.Length(1, 64)),
		validation.Field(&t.TransactionIDStr, validation.Length(0, 64)),
		validation.Field(&t.Timestamp, validation.By(validateDateFormat)),
	)
}
