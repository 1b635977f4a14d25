package main

import (
	"fmt"
	"strconv"

	"github.com/sammck-go/gwtunnel/share"
	"github.com/spf13/cobra"
)

func newFarCommand() *cobra.Command {
	config := &gwshare.FarConfig{}
	var opts commonOptions
	cmd := &cobra.Command{
		Use:   "far <control-port> <job-port>",
		Short: "Run the internet-facing broker",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := parsePort(args[0], &config.ControlPort); err != nil {
				return err
			}
			if err := parsePort(args[1], &config.JobPort); err != nil {
				return err
			}
			config.Log = opts.log
			return runBroker(cmd.Context(), "far", &opts, func(logger gwshare.Logger) (broker, error) {
				b, err := gwshare.NewFarBroker(logger, config)
				if err != nil {
					return nil, err
				}
				return b, nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&config.ControlBind, "control-bind", "0.0.0.0", "bind address for the control listener")
	f.StringVar(&config.JobBind, "job-bind", "0.0.0.0", "bind address for the job listener")
	f.StringVar(&config.Transport, "transport", gwshare.TransportTCP, "control channel transport (tcp or websocket)")
	f.IntVar(&config.ChunkSize, "chunk-size", gwshare.DefaultFarChunkSize, "largest read from a public connection")
	f.DurationVar(&config.PollInterval, "poll-interval", gwshare.DefaultPollInterval, "longest wait for readiness")
	f.DurationVar(&config.FrameReadTimeout, "frame-read-timeout", 0, "timeout for reading one control frame (0 disables)")
	addCommonFlags(cmd, &opts)
	return cmd
}

func parsePort(s string, port *int) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid port \"%s\"", s)
	}
	*port = n
	return nil
}
