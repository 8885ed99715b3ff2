package cmd

import (
	"errors"
	"fmt"
	"io"
	"node_starter/internal/broadcast"
	"node_starter/internal/config"
	"node_starter/internal/dataType"
	"node_starter/internal/utils"
	"os"

	"github.com/spf13/cobra"
)

// ErrUsage is returned for a wrong argument count or an unparsable node count.
var ErrUsage = errors.New("usage error")

const usageLine = "usage: node_starter <# PARTICIPANTS>"

// NewRootCmd builds the coordinator command: node_starter [--prefix DIR] <N>.
func NewRootCmd(out io.Writer) *cobra.Command {
	var prefix string

	root := &cobra.Command{
		Use:           "node_starter <# PARTICIPANTS>",
		Short:         "Broadcast a shared start time to running nodes",
		Long:          "Sends every node on localhost:8081..8080+N the same start time, five seconds in the future, and waits for all of them to answer.",
		Version:       dataType.NodeStarterVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				fmt.Fprintln(cmd.OutOrStdout(), "Incorrect number of arguments.")
				fmt.Fprintln(cmd.OutOrStdout(), usageLine)
				return ErrUsage
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := utils.ParseNodeCount(args[0])
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Invalid number of participants: %q\n", args[0])
				fmt.Fprintln(cmd.OutOrStdout(), usageLine)
				return ErrUsage
			}

			cfg, err := config.LoadMainConfig(prefix)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}

			logger := utils.NewLogx(cmd.OutOrStdout(), cfg.LogPath, cfg.Debug)
			defer func() {
				_ = logger.Close()
			}()

			// Partial failures are reported line by line; the exit status stays zero.
			broadcast.NewCoordinator(cfg, logger).Run(n)
			return nil
		},
	}
	root.SetOut(out)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintln(cmd.OutOrStdout(), err)
		fmt.Fprintln(cmd.OutOrStdout(), usageLine)
		return ErrUsage
	})
	root.PersistentFlags().StringVar(&prefix, "prefix", "", "Config file base path")

	root.AddCommand(newNodeCmd(&prefix))
	return root
}

// Execute runs the CLI and exits non-zero on usage or startup errors.
func Execute() {
	err := NewRootCmd(os.Stdout).Execute()
	if err == nil {
		return
	}
	if !errors.Is(err, ErrUsage) {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
