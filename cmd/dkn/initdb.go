package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ghuser/dkn/pkg/app"
	"github.com/ghuser/dkn/pkg/migrator"
	"github.com/ghuser/dkn/services"
	authsvcs "github.com/ghuser/dkn/services/auth/application/services"
)

type initDBOptions struct {
	adminUser     string
	adminEmail    string
	adminPassword string
}

func newInitDBCmd(root *rootOptions) *cobra.Command {
	opts := &initDBOptions{}
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create all database tables; optionally seed the first admin",
		Long: "Builds the application and creates every table that does not exist yet.\n" +
			"Existing tables and rows are left untouched, so running it again is safe.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInitDB(cmd, root.env, opts)
		},
	}
	cmd.Flags().StringVar(&opts.adminUser, "admin-user", "", "username of the admin to create when no user exists")
	cmd.Flags().StringVar(&opts.adminEmail, "admin-email", "", "email of the seeded admin")
	cmd.Flags().StringVar(&opts.adminPassword, "admin-password", "", "password of the seeded admin")
	return cmd
}

func runInitDB(cmd *cobra.Command, env string, opts *initDBOptions) error {
	seed := opts.adminUser != "" || opts.adminEmail != "" || opts.adminPassword != ""
	if seed && (opts.adminUser == "" || opts.adminEmail == "" || opts.adminPassword == "") {
		return errors.New("--admin-user, --admin-email and --admin-password must be given together")
	}

	ctx := cmd.Context()
	a, err := app.New(ctx, app.Options{Environment: env, RouteGroups: services.RouteGroups()})
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.Close() //nolint:errcheck

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Creating database tables...")
	if err := migrator.CreateAll(ctx, a.Db); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	fmt.Fprintln(out, "Database initialized successfully!")

	if !seed {
		return nil
	}
	created, err := authsvcs.New(a).Users.SeedAdmin(ctx, opts.adminUser, opts.adminEmail, opts.adminPassword)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		fmt.Fprintf(out, "Admin user %q created.\n", opts.adminUser)
	} else {
		fmt.Fprintln(out, "Users already exist; admin not created.")
	}
	return nil
}
