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
	"embed"
	"fmt"

	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/database"
	"github.com/blnkfinance/qercas/internal/graph"
	"github.com/blnkfinance/qercas/internal/notification"
	redis_db "github.com/blnkfinance/qercas/internal/redis-db"
	"github.com/blnkfinance/qercas/internal/vault"
	"github.com/blnkfinance/qercas/risk"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("Qercas")

// Qercas wires the stores, queue and risk engine of the compliance pipeline.
type Qercas struct {
	queue      *Queue
	redis      redis.UniversalClient
	datasource database.IDataSource
	engine     *risk.Engine
	graphs     *graph.Renderer
	vault      *vault.Vault
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// Option overrides a collaborator built from configuration.
type Option func(*Qercas)

// WithEngine replaces the configured risk engine.
func WithEngine(engine *risk.Engine) Option {
	return func(q *Qercas) { q.engine = engine }
}

// WithRedis replaces the redis client used for analysis locks.
func WithRedis(client redis.UniversalClient) Option {
	return func(q *Qercas) { q.redis = client }
}

// WithGraphRenderer replaces the renderer used for network snapshots.
func WithGraphRenderer(r *graph.Renderer) Option {
	return func(q *Qercas) { q.graphs = r }
}

// NewQercas builds the pipeline from the loaded configuration.
//
// The risk engine is shared by every instance in the process so the model
// artifact is fetched at most once.
func NewQercas(db database.IDataSource, opts ...Option) (*Qercas, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	q := &Qercas{
		datasource: db,
		graphs:     graph.NewRenderer(configuration.Graph.OutputDir),
		vault:      vault.New(configuration.Vault.PostQuantum),
	}
	for _, opt := range opts {
		opt(q)
	}

	if q.redis == nil {
		redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		q.redis = redisClient.Client()
	}

	q.queue, err = NewQueue(configuration)
	if err != nil {
		return nil, err
	}

	if q.engine == nil {
		m := configuration.Model
		q.engine = risk.SharedEngine(m.ArtifactURI, risk.S3Options{
			Region:          m.S3Region,
			Endpoint:        m.S3Endpoint,
			AccessKeyID:     m.AwsAccessKeyId,
			SecretAccessKey: m.AwsSecretAccessKey,
		}, m.LoadTimeout())
	}

	notification.RegisterWebhookSender(func(event string, payload interface{}) error {
		return q.SendWebhook(NewWebhook{Event: event, Payload: payload})
	})

	return q, nil
}

// Engine returns the risk engine the pipeline scores with.
func (q *Qercas) Engine() *risk.Engine {
	return q.engine
}

// Close releases the queue client.
func (q *Qercas) Close() error {
	return q.queue.Close()
}
