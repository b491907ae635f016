package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/signflow/signflow-server/internal/config"
	"github.com/signflow/signflow-server/internal/database"
	"github.com/signflow/signflow-server/internal/document/repository"
	"github.com/signflow/signflow-server/internal/document/service"
	"github.com/signflow/signflow-server/internal/models"
	"github.com/signflow/signflow-server/internal/notify"
	"github.com/signflow/signflow-server/internal/users"
)

// cliAdmin is the identity used for imports run from the command line.
var cliAdmin = &models.User{ID: "signflowctl", Email: "signflowctl@localhost", Role: models.RoleAdmin, Active: true}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "signflowctl",
		Short:        "Maintenance commands for the signflow document store",
		SilenceUsage: true,
	}
	root.AddCommand(newImportCmd(), newSeedAdminCmd())
	return root
}

func connect(ctx context.Context) (*config.Config, *mongo.Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

func newImportCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "import <file.json>",
		Short: "Upsert documents from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			items, err := service.DecodeImport(f)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			cfg, client, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect(context.Background()) }()

			repo := repository.NewMongoRepo(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.DocsCollection))
			svc := service.New(repo, nil, notify.LogNotifier{}, service.Options{FrontendURL: cfg.Server.FrontendURL})
			results, err := svc.Import(ctx, cliAdmin, items)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printResults(w io.Writer, results []service.ImportResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tOUTCOME\tERROR")
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Outcome]++
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ItemID, r.Outcome, r.Error)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "created=%d updated=%d skipped=%d failed=%d\n",
		counts[service.OutcomeCreated], counts[service.OutcomeUpdated], counts[service.OutcomeSkipped], counts[service.OutcomeFailed])
	return err
}

func newSeedAdminCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the admin account when no users exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, client, err := connect(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect(context.Background()) }()
			if email == "" {
				email = cfg.Admin.Email
			}
			if password == "" {
				password = cfg.Admin.Password
			}
			repo := users.NewMongoUserRepository(client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.UsersCollection))
			if err := repo.EnsureIndexes(ctx); err != nil {
				return err
			}
			created, err := users.NewService(repo).EnsureDefaultAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s\n", email)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "users already exist; nothing to do")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email (default ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (default ADMIN_PASSWORD)")
	return cmd
}
