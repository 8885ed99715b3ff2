package cmd

import (
	"fmt"
	"node_starter/internal/config"
	"node_starter/internal/server"
	"node_starter/internal/utils"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

// newNodeCmd runs a stub node that accepts a start time on localhost:base_port+id+1.
func newNodeCmd(prefix *string) *cobra.Command {
	return &cobra.Command{
		Use:   "node <id>",
		Short: "Run a stub node control endpoint for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id < 0 {
				return fmt.Errorf("invalid node id %q", args[0])
			}

			cfg, err := config.LoadMainConfig(*prefix)
			if err != nil {
				return fmt.Errorf("load config failed: %w", err)
			}

			logger := utils.NewLogx(cmd.OutOrStdout(), cfg.LogPath, cfg.Debug)
			defer func() {
				_ = logger.Close()
			}()

			node := server.NewNode(id, cfg, logger)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(stop)

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- node.StartServer()
			}()

			select {
			case <-stop:
				logger.Infof("Stopping node %d...", id)
				if err := node.Shutdown(); err != nil {
					return err
				}
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("failed to start node %d: %w", id, err)
				}
			}

			logger.Infof("Node %d stopped", id)
			return nil
		},
	}
}
