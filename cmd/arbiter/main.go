// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Command arbiter runs the dispute adjudication daemon with an in-process
// ledger and a static inference network. Production deployments replace
// both collaborators with their RPC-backed clients at this composition
// root.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/spf13/cobra"

	"github.com/luxfi/arbiter"
	"github.com/luxfi/arbiter/inference"
	"github.com/luxfi/arbiter/ledger"
)

func main() {
	if err := command().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "arbiter",
		Short: "Runs the dispute adjudication daemon",
		RunE: func(*cobra.Command, []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file")
	return cmd
}

func run(configPath string) error {
	var raw []byte
	if configPath != "" {
		var err error
		if raw, err = os.ReadFile(configPath); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := arbiter.ParseConfig(raw)
	if err != nil {
		return err
	}

	logger := log.NewLogger("arbiter")

	a, err := arbiter.New(
		cfg,
		logger,
		metric.NewRegistry(),
		ledger.NewMemory(),
		inference.NewStatic(nil, nil),
		memdb.New(),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Shutdown()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
