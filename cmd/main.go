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
	"fmt"
	"log"
	"os"

	"github.com/blnkfinance/qercas"
	"github.com/blnkfinance/qercas/config"
	"github.com/blnkfinance/qercas/database"
	"github.com/blnkfinance/qercas/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// standalone marks commands that only need configuration, not a running pipeline.
const standalone = "standalone"

// Qercas represents the CLI application, encapsulating the root Cobra command.
type Qercas struct {
	cmd *cobra.Command
}

// qercasInstance holds the pipeline and its configuration for the commands.
type qercasInstance struct {
	qercas *qercas.Qercas
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and, unless the command is standalone, builds the pipeline.
func preRun(app *qercasInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config ", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		if _, ok := cmd.Annotations[standalone]; ok {
			return nil
		}

		newQercas, err := setupQercas(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.qercas = newQercas
		return nil
	}
}

// setupQercas connects the datasource and builds the pipeline on top of it.
func setupQercas(cfg *config.Configuration) (*qercas.Qercas, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newQercas, err := qercas.NewQercas(db)
	if err != nil {
		return nil, fmt.Errorf("error creating qercas: %v", err)
	}
	return newQercas, nil
}

// NewCLI creates the command-line interface of the service.
func NewCLI() *Qercas {
	var configFile string
	q := &qercasInstance{}

	var rootCmd = &cobra.Command{
		Use:   "qercas",
		Short: "Real-time transaction risk scoring",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./qercas.json", "Configuration file for qercas")
	rootCmd.PersistentPreRunE = preRun(q, &configFile)

	rootCmd.AddCommand(serverCommands(q))
	rootCmd.AddCommand(workerCommands(q))
	rootCmd.AddCommand(migrateCommands(q))
	rootCmd.AddCommand(simulateCommands(q))
	rootCmd.AddCommand(seedCommands(q))
	rootCmd.AddCommand(configCommands(q))

	return &Qercas{cmd: rootCmd}
}

func (w Qercas) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
