package main

import (
	"github.com/sammck-go/gwtunnel/share"
	"github.com/spf13/cobra"
)

func newNearCommand() *cobra.Command {
	config := &gwshare.NearConfig{}
	var opts commonOptions
	cmd := &cobra.Command{
		Use:   "near <control-address> <control-port> <job-port>",
		Short: "Run the device-side broker beside the private service",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			config.ControlAddress = args[0]
			if err := parsePort(args[1], &config.ControlPort); err != nil {
				return err
			}
			if err := parsePort(args[2], &config.JobPort); err != nil {
				return err
			}
			config.Log = opts.log
			return runBroker(cmd.Context(), "near", &opts, func(logger gwshare.Logger) (broker, error) {
				b, err := gwshare.NewNearBroker(logger, config)
				if err != nil {
					return nil, err
				}
				return b, nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&config.BackendAddress, "backend", gwshare.DefaultBackendAddress, "address of the private service")
	f.StringVar(&config.Transport, "transport", gwshare.TransportTCP, "control channel transport (tcp or websocket)")
	f.IntVar(&config.ChunkSize, "chunk-size", gwshare.DefaultNearChunkSize, "largest read from a backend connection")
	f.DurationVar(&config.PollInterval, "poll-interval", gwshare.DefaultPollInterval, "longest wait for readiness")
	f.DurationVar(&config.DialTimeout, "dial-timeout", gwshare.DefaultDialTimeout, "timeout for control and backend connects")
	f.DurationVar(&config.FrameReadTimeout, "frame-read-timeout", 0, "timeout for reading one control frame (0 disables)")
	f.DurationVar(&config.Backoff.Min, "retry-interval", gwshare.DefaultRetryInterval, "wait before the first control reconnect")
	f.DurationVar(&config.Backoff.Max, "retry-max-interval", 0, "longest wait between control reconnects (default retry-interval)")
	f.Float64Var(&config.Backoff.Factor, "retry-factor", 2, "growth of the wait between control reconnects")
	f.BoolVar(&config.Backoff.Jitter, "retry-jitter", false, "randomize the wait between control reconnects")
	f.IntVar(&config.Backoff.MaxAttempts, "retry-max-attempts", 0, "give up after this many control connect failures (0 retries forever)")
	addCommonFlags(cmd, &opts)
	return cmd
}
