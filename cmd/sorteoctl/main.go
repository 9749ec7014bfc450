package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sorteos-backend/internal/app"
	"sorteos-backend/internal/common/auth"
	"sorteos-backend/internal/common/config"
	"sorteos-backend/internal/common/logger"
)

// operator acts on behalf of whoever runs the CLI.
var operator = auth.Principal{Name: "sorteoctl", Role: auth.RoleAdmin}

type cli struct {
	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "sorteoctl",
		Short:         "Operator tooling for the sorteos backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Init(logger.Options{Service: cfg.ServiceName + "-ctl", Debug: cfg.Debug, JSON: cfg.LogJSON})
			c.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		c.migrateCmd(),
		c.createAdminCmd(),
		c.tokenCmd(),
		c.ticketsCmd(),
		c.drawCmd(),
	)
	return root
}

// withApp runs fn against a fully wired application.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
