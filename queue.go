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
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/blnkfinance/qercas/config"
	redlock "github.com/blnkfinance/qercas/internal/lock"
	redis_db "github.com/blnkfinance/qercas/internal/redis-db"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

const (
	// TaskAnalyzeTransaction runs one decision cycle for a transaction.
	TaskAnalyzeTransaction = "transaction:analyze"
	// TaskSendWebhook delivers one webhook event.
	TaskSendWebhook = "webhook:send"
)

// Queue represents the task queue decision cycles and webhooks are scheduled on.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	conf      config.QueueConfig
}

// AnalysisPayload is the body of an analysis task.
type AnalysisPayload struct {
	TransactionID string `json:"transaction_id"`
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis url: %w", err)
	}
	return &Queue{
		Client:    asynq.NewClient(opt),
		Inspector: asynq.NewInspector(opt),
		conf:      conf.Queue.Resolved(),
	}, nil
}

// EnqueueAnalysis schedules a decision cycle for the transaction.
//
// The transaction id is the task id, so a transaction already waiting in the
// queue is not scheduled twice.
func (q *Queue) EnqueueAnalysis(ctx context.Context, transactionID string) error {
	ctx, span := tracer.Start(ctx, "Adding Transaction To Analysis Queue")
	defer span.End()

	payload, err := json.Marshal(AnalysisPayload{TransactionID: transactionID})
	if err != nil {
		return err
	}

	info, err := q.Client.EnqueueContext(ctx, q.analysisTask(transactionID, payload))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logrus.Infof("analysis for %s is already queued", transactionID)
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return err
	}
	logrus.Debugf(" [*] Successfully enqueued analysis: %s on %s", transactionID, info.Queue)
	return nil
}

// analysisTask spreads transactions over NumberOfQueues queues by hashing the id.
func (q *Queue) analysisTask(transactionID string, payload []byte) *asynq.Task {
	queueName := AnalysisQueueName(q.conf, hashTransactionID(transactionID)%q.conf.NumberOfQueues)

	return asynq.NewTask(TaskAnalyzeTransaction, payload,
		asynq.TaskID(transactionID),
		asynq.Queue(queueName),
		asynq.MaxRetry(q.conf.MaxRetries),
		asynq.Timeout(q.conf.TaskTimeout()),
	)
}

// enqueueWebhook schedules delivery of one webhook event.
func (q *Queue) enqueueWebhook(ctx context.Context, payload []byte) error {
	task := asynq.NewTask(TaskSendWebhook, payload,
		asynq.Queue(q.conf.WebhookQueue),
		asynq.MaxRetry(q.conf.MaxRetries),
	)
	_, err := q.Client.EnqueueContext(ctx, task)
	return err
}

// AnalysisState reports where a queued analysis is, if it is still in the queue.
func (q *Queue) AnalysisState(transactionID string) (asynq.TaskState, bool) {
	queueName := AnalysisQueueName(q.conf, hashTransactionID(transactionID)%q.conf.NumberOfQueues)
	info, err := q.Inspector.GetTaskInfo(queueName, transactionID)
	if err != nil {
		return 0, false
	}
	return info.State, true
}

// Close releases the queue's redis connections.
func (q *Queue) Close() error {
	return errors.Join(q.Client.Close(), q.Inspector.Close())
}

// AnalysisQueueName is the name of the i-th (zero-based) analysis queue.
func AnalysisQueueName(conf config.QueueConfig, i int) string {
	return fmt.Sprintf("%s_%d", conf.TransactionQueue, i+1)
}

// Queues lists every queue a worker should consume with its priority.
func Queues(conf config.QueueConfig) map[string]int {
	conf = conf.Resolved()
	queues := map[string]int{conf.WebhookQueue: 1}
	for i := 0; i < conf.NumberOfQueues; i++ {
		queues[AnalysisQueueName(conf, i)] = 3
	}
	return queues
}

// RetryDelay schedules retries of failed tasks. A cycle that found its lock
// held waits one task timeout, the lock's TTL, so a lock left by a dead worker
// has expired by the next attempt.
func RetryDelay(conf config.QueueConfig) asynq.RetryDelayFunc {
	lockTTL := conf.Resolved().TaskTimeout()
	return func(n int, err error, task *asynq.Task) time.Duration {
		if errors.Is(err, redlock.ErrLockHeld) {
			return lockTTL
		}
		return asynq.DefaultRetryDelayFunc(n, err, task)
	}
}

// hashTransactionID returns a consistent hash value for a transaction id.
func hashTransactionID(transactionID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(transactionID))
	return int(hasher.Sum32())
}
