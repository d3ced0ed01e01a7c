package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmtech/fieldsync/internal/engine"
	"github.com/pmtech/fieldsync/internal/observability"
)

var (
	traceEnabled  bool
	traceEndpoint string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the pending mutation queue and evidence outbox once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		shutdown, err := observability.InitTracing(traceEnabled, traceEndpoint)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		defer shutdown(ctx)

		report, err := a.engine.RunSync(ctx)
		if err != nil {
			if errors.Is(err, engine.ErrSyncInFlight) {
				return fmt.Errorf("another sync is already running")
			}
			return err
		}
		return printReport(report)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch connectivity and sync automatically on reconnect",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		shutdown, err := observability.InitTracing(traceEnabled, traceEndpoint)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		defer shutdown(context.Background())

		interval := time.Duration(a.cfg.Sync.ProbeIntervalSeconds) * time.Second
		prober := engine.NewHTTPProber(a.resolver.BaseURL)
		watcher := engine.NewWatcher(prober, interval)
		sub := watcher.Subscribe()
		defer sub.Close()

		go watcher.Run(ctx)

		fmt.Println("watching for connectivity, Ctrl-C to stop")
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-sub.C:
				report, err := a.engine.RunSync(ctx)
				if err != nil {
					if errors.Is(err, engine.ErrSyncInFlight) {
						continue
					}
					return err
				}
				if err := printReport(report); err != nil {
					return err
				}
			}
		}
	},
}

func printReport(report engine.SyncReport) error {
	if outputJSON {
		return printJSON(report)
	}
	fmt.Printf("mutations: %d sent, %d failed, %d conflicted, %d remaining\n",
		report.Mutations.Processed, report.Mutations.Failed, report.Mutations.Conflicted, report.Mutations.Remaining)
	fmt.Printf("evidence:  %d sent, %d failed, %d conflicted, %d skipped, %d remaining\n",
		report.Evidence.Processed, report.Evidence.Failed, report.Evidence.Conflicted, report.Evidence.Skipped, report.Evidence.Remaining)
	return nil
}

func init() {
	for _, cmd := range []*cobra.Command{syncCmd, watchCmd} {
		cmd.Flags().BoolVar(&traceEnabled, "trace", false, "Enable OpenTelemetry tracing for sync runs")
		cmd.Flags().StringVar(&traceEndpoint, "trace-endpoint", "", "OTLP HTTP endpoint (host:port) for traces; if empty uses stdout exporter")
	}
	addOutputFlags(syncCmd, watchCmd)
	rootCmd.AddCommand(syncCmd, watchCmd)
}
