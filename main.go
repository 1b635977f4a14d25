// Command gwtunnel runs either end of a TCP reverse tunnel. "gwtunnel far" runs on a
// public host and accepts clients on a job port; "gwtunnel near" runs beside a
// private service, holds the control connection to the far end, and connects each
// tunneled client to the service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sammck-go/gwtunnel/share"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gwtunnel",
		Short:         "TCP reverse tunnel over a single multiplexed control connection",
		SilenceUsage: true,
	}
	cmd.AddCommand(newNearCommand(), newFarCommand())
	return cmd
}

func addLogFlags(cmd *cobra.Command, config *gwshare.LogConfig) {
	cmd.Flags().BoolVarP(&config.Debug, "debug", "v", false, "enable debug logging")
	cmd.Flags().StringVar(&config.Name, "log-name", "", "append the log to <log-dir>/log-<name>-<pid>.log instead of stderr")
	cmd.Flags().StringVar(&config.Dir, "log-dir", ".", "directory for the log file")
	cmd.Flags().BoolVar(&config.Stderr, "log-stderr", false, "copy the log file to stderr")
	cmd.Flags().StringVar(&config.DebugFlagFile, "debug-flag-file", "", "debug logging is on while this file exists")
}

// broker is the part of a near or far broker the command runner needs
type broker interface {
	gwshare.StatsSource
	Run(ctx context.Context) error
	Status() string
}

// commonOptions are the flags shared by both commands
type commonOptions struct {
	log           gwshare.LogConfig
	metricsListen string
}

func addCommonFlags(cmd *cobra.Command, opts *commonOptions) {
	addLogFlags(cmd, &opts.log)
	cmd.Flags().StringVar(&opts.metricsListen, "metrics-listen", "", "serve Prometheus metrics at http://<addr>/metrics")
}

// runBroker sets up logging, metrics and signal handling, builds a broker, and runs
// it until it fails or a termination signal arrives. SIGHUP logs broker status.
func runBroker(ctx context.Context, role string, opts *commonOptions,
	build func(logger gwshare.Logger) (broker, error)) error {
	logConfig := &opts.log
	session := uuid.New().String()[:8]
	logger, logCloser, err := gwshare.OpenLogger(fmt.Sprintf("%s[%s]", role, session), logConfig)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if logConfig.DebugFlagFile != "" {
		if err := gwshare.WatchDebugFlagFile(ctx, logger, logConfig.DebugFlagFile); err != nil {
			logger.WLogf("%s", err)
		}
	}

	b, err := build(logger)
	if err != nil {
		logger.ELogf("%s", err)
		return err
	}

	if opts.metricsListen != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(gwshare.NewStatsCollector(role, b))
		if _, err := gwshare.ServeMetrics(ctx, logger, opts.metricsListen, registry); err != nil {
			logger.ELogf("%s", err)
			return err
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)
	go func() {
		for {
			select {
			case sig := <-sigs:
				if sig == syscall.SIGHUP {
					logger.ILogf("Status: %s", b.Status())
					continue
				}
				logger.ILogf("Received %s, shutting down", sig)
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.ILogf("Starting")
	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.ILogf("Stopped: %s", b.Status())
		return nil
	}
	logger.ELogf("Terminated: %s", err)
	return err
}
