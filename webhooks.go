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
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/internal/request"
	"github.com/cenkalti/backoff/v4"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// NewWebhook represents the structure of a webhook notification.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// webhookBackOff bounds in-task delivery attempts; the queue retries after that.
var webhookBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 30 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// processHTTP posts one webhook to the configured endpoint. Client errors are
// not retried.
func processHTTP(ctx context.Context, conf *config.Configuration, data NewWebhook) error {
	operation := func() error {
		body, err := request.ToJsonReq(data)
		if err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, conf.Notification.Webhook.Url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		for key, value := range conf.Notification.Webhook.Headers {
			req.Header.Set(key, value)
		}

		resp, err := request.Call(req, nil)
		if err != nil && resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logrus.Warnf("webhook %s failed, retrying in %s: %v", data.Event, wait, err)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(webhookBackOff(), ctx), notify)
}

// SendWebhook enqueues a webhook notification task. It is a no-op when no
// webhook endpoint is configured.
func (q *Qercas) SendWebhook(newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		return err
	}
	return q.queue.enqueueWebhook(context.Background(), payload)
}

// ProcessWebhook is the worker handler for TaskSendWebhook.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid webhook payload: %v: %w", err, asynq.SkipRetry)
	}
	logrus.Debugf("Processing webhook: %s", payload.Event)
	return processHTTP(ctx, conf, payload)
}
