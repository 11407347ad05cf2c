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

	"github.com/blnkfinance/qercas"
	"github.com/blnkfinance/qercas/config"
	redis_db "github.com/blnkfinance/qercas/internal/redis-db"
	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	queueConf := conf.Queue.Resolved()
	return asynq.NewServer(opt, asynq.Config{
		Concurrency:    queueConf.WorkerConcurrency,
		Queues:         qercas.Queues(queueConf),
		RetryDelayFunc: qercas.RetryDelay(queueConf),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				logrus.Errorf("task %s exhausted its retries: %v", task.Type(), err)
			}
		}),
	}), nil
}

func initializeTaskHandlers(q *qercas.Qercas, mux *asynq.ServeMux) {
	mux.HandleFunc(qercas.TaskAnalyzeTransaction, q.ProcessAnalysis)
	mux.HandleFunc(qercas.TaskSendWebhook, qercas.ProcessWebhook)
}

func startMonitoring(conf *config.Configuration) error {
	opt, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return err
	}
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: opt,
	})

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, h); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
	return nil
}

// workerCommands defines the "workers" command. Workers run decision cycles
// and deliver webhooks.
func workerCommands(q *qercasInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start qercas workers",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			defer q.qercas.Close()

			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			phClient, shutdown, err := initializeObservability(ctx, conf, "workers")
			if err != nil {
				log.Fatal(err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}
			if phClient != nil {
				defer phClient.Close()
			}

			// load the model before the first task arrives
			if err := q.qercas.Engine().Err(); err != nil {
				logrus.Warnf("risk model unavailable, transactions will stay pending: %v", err)
			} else {
				logrus.Infof("risk model loaded (%s)", q.qercas.Engine().Kind())
			}

			srv, err := initializeWorkerServer(conf)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(q.qercas, mux)

			if err := startMonitoring(conf); err != nil {
				log.Fatal(err)
			}

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
