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

package main

import (
	"context"
	"fmt"
	"log"

	"github.com/blnkfinance/qercas"
	"github.com/blnkfinance/qercas/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// seedSamples is the development data set: one sample per status band across
// every transaction type. Accounts are drawn from faker.
func seedSamples(faker *gofakeit.Faker) []qercas.SeedTransaction {
	account := func() string { return fmt.Sprintf("ACC%05d", faker.Number(10000, 99999)) }
	sample := func(id string, typ model.TransactionType, amount, client string, status model.Status) qercas.SeedTransaction {
		return qercas.SeedTransaction{
			TransactionIDStr:   id,
			Type:               typ,
			Amount:             decimal.RequireFromString(amount),
			Currency:           "USD",
			ClientName:         client,
			SourceAccount:      account(),
			DestinationAccount: account(),
			Status:             status,
		}
	}

	return []qercas.SeedTransaction{
		sample("TXN789012", model.TypeWireTransfer, "550000.00", "Global Innovations Inc.", model.StatusBlocked),
		sample("TXN456789", model.TypeEquityTrade, "1200000.00", "Quantum Dynamics Ltd.", model.StatusHighRisk),
		sample("TXN123456", model.TypeFxSpot, "75000.00", "Secure Holdings Co.", model.StatusCompliant),
		sample("TXN987654", model.TypeCrypto, "15000.50", "Crypto Ventures", model.StatusHighRisk),
		sample("TXN321654", model.TypeWireTransfer, "5200.00", "Local Goods LLC", model.StatusCompliant),
	}
}

func seedCommands(q *qercasInstance) *cobra.Command {
	var seed int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "replace stored transactions with a development data set",
		Run: func(cmd *cobra.Command, args []string) {
			defer q.qercas.Close()

			result, err := q.qercas.Seed(context.Background(), seedSamples(gofakeit.New(seed)))
			if err != nil {
				log.Fatal(err)
			}
			logrus.Infof("created %d transactions and %d explanations", result.Transactions, result.Explanations)
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed for account numbers, 0 for random accounts")
	return cmd
}
