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
	"time"

	"github.com/blnkfinance/qercas/api"
	"github.com/blnkfinance/qercas/config"
	trace "github.com/blnkfinance/qercas/internal/traces"
	"github.com/caddyserver/certmagic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"
)

const heartbeatInterval = 5 * time.Minute

/*
serveTLS starts an HTTPS server with TLS enabled using CertMagic for automatic certificate management.
If no domain is specified, the server will default to running on localhost.
*/
func serveTLS(r *gin.Engine, conf config.ServerConfig) error {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = conf.Email
	cfg := certmagic.NewDefault()
	cfg.Storage = &certmagic.FileStorage{Path: "certmagic"}

	domains := []string{conf.Domain}
	if conf.Domain == "" {
		log.Println("No domain specified, defaulting to localhost")
		domains = []string{"localhost"}
	}

	if err := cfg.ManageSync(context.Background(), domains); err != nil {
		return err
	}

	server := &http.Server{
		Addr:      ":" + conf.Port,
		Handler:   r,
		TLSConfig: cfg.TLSConfig(),
	}

	log.Printf("Starting HTTPS server on %s\n", conf.Port)
	if err := server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// sendHeartbeat reports liveness to PostHog until the client is closed.
func sendHeartbeat(client posthog.Client, heartbeatID, component string) {
	ticker := time.NewTicker(heartbeatInterval)
	go func() {
		for range ticker.C {
			if err := client.Enqueue(posthog.Capture{
				DistinctId: heartbeatID,
				Event:      "server_heartbeat",
				Properties: posthog.NewProperties().
					Set("component", component).
					Set("timestamp", time.Now().UTC()),
			}); err != nil {
				log.Printf("Failed to send heartbeat: %v", err)
			}
		}
	}()
}

func initializePostHog(key, component string) (posthog.Client, error) {
	client, err := posthog.NewWithConfig(key, posthog.Config{Endpoint: "https://us.i.posthog.com"})
	if err != nil {
		return nil, err
	}
	sendHeartbeat(client, uuid.New().String(), component)
	return client, nil
}

func initializeTracing(ctx context.Context, cfg *config.Configuration) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, cfg.ProjectName, cfg.Telemetry.OtlpEndpoint)
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

// initializeObservability starts tracing and the PostHog heartbeat when they
// are configured. Both return values may be nil.
func initializeObservability(ctx context.Context, cfg *config.Configuration, component string) (posthog.Client, func(context.Context) error, error) {
	var shutdown func(context.Context) error
	if cfg.Telemetry.EnableTracing {
		var err error
		shutdown, err = initializeTracing(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	if cfg.Telemetry.PosthogKey == "" {
		return nil, shutdown, nil
	}
	phClient, err := initializePostHog(cfg.Telemetry.PosthogKey, component)
	if err != nil {
		log.Printf("PostHog disabled: %v", err)
		return nil, shutdown, nil
	}
	return phClient, shutdown, nil
}

func startServer(router *gin.Engine, cfg config.ServerConfig) error {
	if cfg.SSL {
		return serveTLS(router, cfg)
	}
	log.Printf("Starting server on http://localhost:%s", cfg.Port)
	return router.Run(":" + cfg.Port)
}

/*
serverCommands returns the Cobra command responsible for starting the HTTP API.
*/
func serverCommands(q *qercasInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start qercas server",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			defer q.qercas.Close()

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			phClient, shutdown, err := initializeObservability(ctx, cfg, "server")
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

			router := api.NewAPI(q.qercas).Router()
			if err := startServer(router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
