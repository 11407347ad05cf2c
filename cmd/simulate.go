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
	"net/http"
	"os/signal"
	"syscall"
	"time"

	apimodel "github.com/blnkfinance/qercas/api/model"
	"github.com/blnkfinance/qercas/api/middleware"
	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/internal/request"
	"github.com/blnkfinance/qercas/model"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const cryptoShare = 0.2

// simulatedTransaction draws one transaction of the synthetic stream: mostly
// modest wire transfers and occasionally a large crypto trade.
func simulatedTransaction(faker *gofakeit.Faker, now time.Time) apimodel.RecordTransaction {
	txnType, amount := model.TypeWireTransfer, faker.Float64Range(500, 15000)
	if faker.Float64() < cryptoShare {
		txnType, amount = model.TypeCrypto, faker.Float64Range(50000, 750000)
	}

	return apimodel.RecordTransaction{
		TransactionType:    string(txnType),
		Amount:             decimal.NewFromFloat(amount).Round(2),
		Currency:           "USD",
		ClientName:         faker.Company(),
		SourceAccount:      fmt.Sprintf("ACC-%06d", faker.Number(1, 999999)),
		DestinationAccount: fmt.Sprintf("ACC-%06d", faker.Number(1, 999999)),
		Timestamp:          now.UTC().Format(time.RFC3339),
	}
}

func postTransaction(ctx context.Context, baseURL, key string, txn apimodel.RecordTransaction) (*model.Transaction, error) {
	body, err := request.ToJsonReq(txn)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/transactions", body)
	if err != nil {
		return nil, err
	}
	if key != "" {
		req.Header.Set(middleware.KeyHeader, key)
	}

	var created model.Transaction
	if _, err := request.Call(req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func simulateCommands(_ *qercasInstance) *cobra.Command {
	var (
		target   string
		interval time.Duration
		count    int
		seed     int64
	)

	cmd := &cobra.Command{
		Use:         "simulate",
		Short:       "stream synthetic transactions into a running qercas server",
		Annotations: map[string]string{standalone: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}
			if target == "" {
				target = "http://localhost:" + cfg.Server.Port
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			faker := gofakeit.New(seed)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			for sent := 0; count == 0 || sent < count; sent++ {
				created, err := postTransaction(ctx, target, cfg.Server.SecretKey, simulatedTransaction(faker, time.Now()))
				if err != nil {
					logrus.Errorf("failed to submit transaction: %v", err)
				} else {
					logrus.Infof("submitted %s %s %s", created.TransactionIDStr, created.Type, created.Amount.StringFixed(2))
				}

				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVar(&target, "url", "", "base URL of the qercas API (defaults to the configured port on localhost)")
	cmd.Flags().DurationVar(&interval, "interval", 3*time.Second, "delay between transactions")
	cmd.Flags().IntVar(&count, "count", 0, "number of transactions to send, 0 for no limit")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed, 0 for a random stream")
	return cmd
}
