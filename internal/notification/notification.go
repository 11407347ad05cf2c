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

package notification

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/internal/request"
	"github.com/sirupsen/logrus"
)

// WebhookSender forwards a system event to the configured webhook endpoint.
type WebhookSender func(event string, payload interface{}) error

var (
	senderMu      sync.RWMutex
	webhookSender WebhookSender
)

// RegisterWebhookSender installs the function used to publish system.error events.
func RegisterWebhookSender(sender WebhookSender) {
	senderMu.Lock()
	defer senderMu.Unlock()
	webhookSender = sender
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func slackPayload(systemError error, at time.Time) slackMessage {
	return slackMessage{Blocks: []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "Error From Qercas 🐞", Emoji: true}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Error:*\n%v", systemError)}}},
		{Type: "section", Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*Time:*\n%s", at.Format(time.RFC822))}}},
	}}
}

// SlackNotification posts systemError to the Slack webhook.
func SlackNotification(webhookURL string, systemError error) error {
	payload, err := request.ToJsonReq(slackPayload(systemError, time.Now()))
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, webhookURL, payload)
	if err != nil {
		return err
	}
	_, err = request.Call(req, nil)
	return err
}

func notify(systemError error) {
	logrus.Error(systemError)

	conf, err := config.Fetch()
	if err != nil {
		logrus.Error(err)
		return
	}

	if conf.Notification.Slack.WebhookUrl != "" {
		if err := SlackNotification(conf.Notification.Slack.WebhookUrl, systemError); err != nil {
			logrus.Errorf("slack notification failed: %v", err)
		}
	}

	senderMu.RLock()
	sender := webhookSender
	senderMu.RUnlock()
	if sender != nil {
		payload := map[string]interface{}{"error": systemError.Error(), "time": time.Now().UTC()}
		if err := sender("system.error", payload); err != nil {
			logrus.Errorf("system error webhook failed: %v", err)
		}
	}
}

// NotifyError reports a system error in the background.
func NotifyError(systemError error) {
	if systemError == nil {
		return
	}
	go notify(systemError)
}
