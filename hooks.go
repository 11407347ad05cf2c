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

	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/model"
	"github.com/blnkfinance/qercas/risk"
	"github.com/sirupsen/logrus"
)

// relatedTransactionLimit caps how many neighbours a network snapshot shows.
const relatedTransactionLimit = 10

// decisionHook is a best-effort side effect of a finished decision.
type decisionHook struct {
	name string
	when func(cfg *config.Configuration, status model.Status) bool
	run  func(ctx context.Context, txn *model.Transaction, decision risk.Decision) error
}

// DecisionEvent is the webhook payload sent after every decision.
type DecisionEvent struct {
	Transaction *model.Transaction `json:"transaction"`
	Probability float64            `json:"probability"`
	RawLabel    int                `json:"raw_label"`
	Override    bool               `json:"override"`
}

func (q *Qercas) decisionHooks() []decisionHook {
	return []decisionHook{
		{
			name: "graph",
			when: func(cfg *config.Configuration, status model.Status) bool {
				return cfg.Graph.Enabled && status.IsRisky()
			},
			run: q.renderNetworkGraph,
		},
		{
			name: "vault",
			when: func(cfg *config.Configuration, status model.Status) bool {
				return cfg.Vault.Enabled && status == model.StatusBlocked
			},
			run: q.sealAuditNote,
		},
		{
			name: "webhook",
			when: func(*config.Configuration, model.Status) bool { return true },
			run: q.publishDecision,
		},
	}
}

func (q *Qercas) runDecisionHooks(ctx context.Context, txn *model.Transaction, decision risk.Decision) {
	cfg, err := config.Fetch()
	if err != nil {
		logrus.Warnf("skipping decision hooks: %v", err)
		return
	}
	for _, hook := range q.decisionHooks() {
		if hook.when(cfg, decision.Status) {
			q.runDecisionHook(ctx, hook, txn, decision)
		}
	}
}

func (q *Qercas) runDecisionHook(ctx context.Context, hook decisionHook, txn *model.Transaction, decision risk.Decision) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("%s hook panicked for %s: %v", hook.name, txn.ID, r)
		}
	}()
	if err := hook.run(ctx, txn, decision); err != nil {
		logrus.Warnf("%s hook failed for %s: %v", hook.name, txn.ID, err)
	}
}

func (q *Qercas) renderNetworkGraph(ctx context.Context, txn *model.Transaction, _ risk.Decision) error {
	ctx, span := tracer.Start(ctx, "Rendering Network Graph")
	defer span.End()

	related, err := q.datasource.GetRelatedTransactions(ctx, txn.ID, txn.Accounts(), relatedTransactionLimit)
	if err != nil {
		return err
	}
	path, created, err := q.graphs.Render(txn, related)
	if err != nil {
		return err
	}
	if created {
		logrus.Infof("network graph for %s written to %s", txn.TransactionIDStr, path)
	}
	return nil
}

func (q *Qercas) sealAuditNote(_ context.Context, txn *model.Transaction, decision risk.Decision) error {
	note := fmt.Sprintf("%s blocked at %s with probability %.4f (override=%t)",
		txn.TransactionIDStr, txn.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), decision.Probability, decision.Override)

	scheme, ciphertext, err := q.vault.SealNote(note)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.ID,
		"scheme":         scheme,
		"bytes":          len(ciphertext),
	}).Info("audit note sealed")
	return nil
}

func (q *Qercas) publishDecision(_ context.Context, txn *model.Transaction, decision risk.Decision) error {
	return q.SendWebhook(NewWebhook{
		Event: eventFromStatus(decision.Status),
		Payload: DecisionEvent{
			Transaction: txn,
			Probability: decision.Probability,
			RawLabel:    decision.RawLabel,
			Override:    decision.Override,
		},
	})
}

// eventFromStatus maps a decision status to its webhook event name.
func eventFromStatus(status model.Status) string {
	return "transaction." + strings.ToLower(string(status))
}
