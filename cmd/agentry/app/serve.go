package app

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loopwork/agentry/pkg/auth/handler"
	"github.com/loopwork/agentry/pkg/auth/manager"
	"github.com/loopwork/agentry/pkg/config"
	"github.com/loopwork/agentry/pkg/host"
	"github.com/loopwork/agentry/pkg/logger"
)

var (
	serveAddress string
	serveConfig  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured agents over HTTP",
	Long: `Serve loads an agent configuration file and exposes the agents behind
a streaming HTTP endpoint. Runs that need user authorization emit an
auth_required event and resume after the OAuth callback fires.`,
	RunE: serveCmdFunc,
}

var validateCmd = &cobra.Command{
	Use:   "validate [config-file]",
	Short: "Validate an agent configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := config.Load(args[0])
		if err != nil {
			return err
		}
		total := 0
		for _, a := range f.Agents {
			total += len(a.Tools)
		}
		cmd.Printf("%s: %d agent(s), %d tool(s)\n", args[0], len(f.Agents), total)
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "127.0.0.1:8080", "Address to listen on")
	serveCmd.Flags().StringVar(&serveConfig, "config", "agentry.yaml", "Agent configuration file")
}

func serveCmdFunc(cmd *cobra.Command, _ []string) error {
	f, err := config.Load(serveConfig)
	if err != nil {
		return err
	}

	h := handler.New(manager.New())
	agents, err := f.Build(h)
	if err != nil {
		return fmt.Errorf("building agents: %w", err)
	}
	for _, a := range agents {
		logger.Infof("loaded agent %q with tools %v", a.Name(), a.ToolNames())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return host.NewServer(serveAddress, agents...).ListenAndServe(ctx)
}
