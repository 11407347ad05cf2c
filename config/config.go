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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	DEFAULT_TRANSACTION_QUEUE = "analyze_transaction_queue"
	DEFAULT_WEBHOOK_QUEUE     = "webhook_queue"
	DEFAULT_NUMBER_OF_QUEUES  = 5
	DEFAULT_MONITORING_PORT   = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"QERCAS_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"QERCAS_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"QERCAS_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"QERCAS_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"QERCAS_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"QERCAS_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"QERCAS_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"QERCAS_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"QERCAS_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	TransactionQueue  string `json:"transaction_queue" envconfig:"QERCAS_QUEUE_TRANSACTION"`
	WebhookQueue      string `json:"webhook_queue" envconfig:"QERCAS_QUEUE_WEBHOOK"`
	NumberOfQueues    int    `json:"number_of_queues" envconfig:"QERCAS_QUEUE_NUMBER_OF_QUEUES"`
	WorkerConcurrency int    `json:"worker_concurrency" envconfig:"QERCAS_QUEUE_WORKER_CONCURRENCY"`
	MaxRetries        int    `json:"max_retries" envconfig:"QERCAS_QUEUE_MAX_RETRIES"`
	// TaskTimeoutSec bounds one decision cycle, lock included.
	TaskTimeoutSec int    `json:"task_timeout_sec" envconfig:"QERCAS_QUEUE_TASK_TIMEOUT_SEC"`
	MonitoringPort string `json:"monitoring_port" envconfig:"QERCAS_QUEUE_MONITORING_PORT"`
}

// ModelConfig locates the risk model artifact. ArtifactURI is a local path or s3://bucket/key.
type ModelConfig struct {
	ArtifactURI        string `json:"artifact_uri" envconfig:"QERCAS_MODEL_ARTIFACT_URI"`
	LoadTimeoutSec     int    `json:"load_timeout_sec" envconfig:"QERCAS_MODEL_LOAD_TIMEOUT_SEC"`
	S3Region           string `json:"s3_region" envconfig:"QERCAS_MODEL_S3_REGION"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"QERCAS_MODEL_S3_ENDPOINT"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"QERCAS_MODEL_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"QERCAS_MODEL_AWS_SECRET_ACCESS_KEY"`
}

type GraphConfig struct {
	Enabled   bool   `json:"enabled" envconfig:"QERCAS_GRAPH_ENABLED"`
	OutputDir string `json:"output_dir" envconfig:"QERCAS_GRAPH_OUTPUT_DIR"`
}

type VaultConfig struct {
	Enabled bool `json:"enabled" envconfig:"QERCAS_VAULT_ENABLED"`
	// PostQuantum selects ML-KEM key encapsulation; when false the symmetric scheme is used.
	PostQuantum bool `json:"post_quantum" envconfig:"QERCAS_VAULT_POST_QUANTUM"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"QERCAS_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"QERCAS_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"QERCAS_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"QERCAS_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url" envconfig:"QERCAS_WEBHOOK_URL"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

// DashboardConfig holds counters that are reported as-is on the dashboard summary.
type DashboardConfig struct {
	ActiveQuantumTasks int `json:"active_quantum_tasks" envconfig:"QERCAS_DASHBOARD_ACTIVE_QUANTUM_TASKS"`
	RegulatoryUpdates  int `json:"regulatory_updates" envconfig:"QERCAS_DASHBOARD_REGULATORY_UPDATES"`
}

type TelemetryConfig struct {
	EnableTracing bool   `json:"enable_tracing" envconfig:"QERCAS_ENABLE_TRACING"`
	OtlpEndpoint  string `json:"otlp_endpoint" envconfig:"QERCAS_OTLP_ENDPOINT"`
	PosthogKey    string `json:"posthog_key" envconfig:"QERCAS_POSTHOG_KEY"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"QERCAS_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Model        ModelConfig      `json:"model"`
	Graph        GraphConfig      `json:"graph"`
	Vault        VaultConfig      `json:"vault"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Dashboard    DashboardConfig  `json:"dashboard"`
	Telemetry    TelemetryConfig  `json:"telemetry"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("qercas", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called qercas.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Qercas Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Model.ArtifactURI = strings.TrimSpace(cnf.Model.ArtifactURI)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.Queue.addDefaults()

	if cnf.Model.ArtifactURI == "" {
		log.Println("Warning: Model artifact not specified. Transactions will stay PENDING until one is configured.")
	}
	if cnf.Model.LoadTimeoutSec <= 0 {
		cnf.Model.LoadTimeoutSec = 30
	}

	if cnf.Graph.OutputDir == "" {
		cnf.Graph.OutputDir = "static/graphs"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

func (q *QueueConfig) addDefaults() {
	if q.TransactionQueue == "" {
		q.TransactionQueue = DEFAULT_TRANSACTION_QUEUE
	}
	if q.WebhookQueue == "" {
		q.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if q.NumberOfQueues <= 0 {
		q.NumberOfQueues = DEFAULT_NUMBER_OF_QUEUES
	}
	if q.WorkerConcurrency <= 0 {
		q.WorkerConcurrency = 10
	}
	if q.MaxRetries <= 0 {
		q.MaxRetries = 3
	}
	if q.TaskTimeoutSec <= 0 {
		q.TaskTimeoutSec = 60
	}
	if q.MonitoringPort == "" {
		q.MonitoringPort = DEFAULT_MONITORING_PORT
	}
}

// TaskTimeout is the time budget of one decision cycle.
func (q QueueConfig) TaskTimeout() time.Duration {
	return time.Duration(q.TaskTimeoutSec) * time.Second
}

// LoadTimeout is the time budget for fetching the model artifact.
func (m ModelConfig) LoadTimeout() time.Duration {
	return time.Duration(m.LoadTimeoutSec) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}

// Resolved returns a copy of the queue settings with defaults filled in.
func (q QueueConfig) Resolved() QueueConfig {
	q.addDefaults()
	return q
}
