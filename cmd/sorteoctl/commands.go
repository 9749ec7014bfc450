package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sorteos-backend/internal/app"
	"sorteos-backend/internal/common/auth"
	usermodels "sorteos-backend/internal/features/user/models"
	"sorteos-backend/internal/platform/database"
	"sorteos-backend/internal/platform/migrations"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbCfg := c.cfg.Database
			dbCfg.AutoMigrate = false
			store, err := database.Open(cmd.Context(), dbCfg)
			if err != nil {
				return err
			}
			defer store.Close()
			return database.Migrate(store.DB())
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return fmt.Errorf("--steps must be positive")
			}
			dbCfg := c.cfg.Database
			dbCfg.AutoMigrate = false
			store, err := database.Open(cmd.Context(), dbCfg)
			if err != nil {
				return err
			}
			defer store.Close()

			db := store.DB()
			if err := migrations.Down(db.SQL(), db.Dialect().Name(), steps); err != nil {
				return err
			}
			version, dirty, err := migrations.Version(db.SQL(), db.Dialect().Name())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(down)

	return cmd
}

func (c *cli) createAdminCmd() *cobra.Command {
	var req usermodels.RegisterRequest

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				user, err := a.Users.CreateUser(cmd.Context(), req, usermodels.RoleAdmin)
				if err != nil {
					return err
				}
				return printJSON(cmd, user)
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Admin email (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Admin password (required)")
	cmd.Flags().StringVar(&req.Name, "name", "Administrador", "Display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				user, err := a.Users.GetUser(cmd.Context(), userID)
				if err != nil {
					return err
				}
				token, err := a.Tokens().Issue(auth.Principal{UserID: user.ID, Name: user.Name, Role: user.Role})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "User ID (required)")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func (c *cli) ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Ticket inventory",
	}

	var (
		raffleID int64
		count    int
		price    int64
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Mint tickets for the current month",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Inventory.Generate(cmd.Context(), operator, raffleID, count, price)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	generate.Flags().Int64Var(&raffleID, "raffle", 0, "Raffle ID (required)")
	generate.Flags().IntVar(&count, "count", 0, "Number of tickets (required)")
	generate.Flags().Int64Var(&price, "price", 0, "Ticket price in minor units")
	_ = generate.MarkFlagRequired("raffle")
	_ = generate.MarkFlagRequired("count")
	cmd.AddCommand(generate)

	return cmd
}

func (c *cli) drawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Winner draws",
	}

	var raffleID int64
	run := &cobra.Command{
		Use:   "run",
		Short: "Award one winner per prize and finalize the raffle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Tombola.Run(cmd.Context(), operator, raffleID)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
	run.Flags().Int64Var(&raffleID, "raffle", 0, "Raffle ID (required)")
	_ = run.MarkFlagRequired("raffle")
	cmd.AddCommand(run)

	return cmd
}
