package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/blnkfinance/qercas/config"
	"github.com/spf13/cobra"
)

const redacted = "********"

// redactConfig returns a copy of cfg that is safe to print.
func redactConfig(cfg *config.Configuration) config.Configuration {
	out := *cfg
	if out.Server.SecretKey != "" {
		out.Server.SecretKey = redacted
	}
	if out.Model.AwsSecretAccessKey != "" {
		out.Model.AwsSecretAccessKey = redacted
	}
	if out.Telemetry.PosthogKey != "" {
		out.Telemetry.PosthogKey = redacted
	}
	return out
}

func configCommands(_ *qercasInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "config outputs your instances computed configuration",
		Annotations: map[string]string{standalone: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatalf("Error getting config: %v\n", err)
			}

			data, err := json.MarshalIndent(redactConfig(cfg), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
