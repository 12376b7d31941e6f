package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/server"
)

// withApp opens the service for the duration of fn.
func withApp(cmd *cobra.Command, configPath string, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the planner HTTP API",
		Long: `Initializes the store (schema, rule catalog, administrator) and serves the
HTTP API until interrupted. In-flight requests are drained on shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return server.Start(ctx, server.Options{
					Auth:            a.auth,
					Users:           a.users,
					Fleet:           a.planner,
					Log:             a.log,
					Port:            a.cfg.Server.Port,
					ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
					RateLimit:       a.cfg.Server.RateLimit,
				})
			})
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and seed the rule catalog and administrator",
		Long: `Creates or updates the store schema, upserts the rule catalog by name and
creates the administrator account when missing.

Safe to run multiple times (idempotent).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Store %s is migrated and seeded.\n", a.cfg.Store.Driver)
				return nil
			})
		},
	}
}

func newPlanCmd(configPath *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "plan [car-id...]",
		Short: "Plan the preventive maintenance that is due",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("plan: give car ids or --all")
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				ids := args
				if all {
					cars, err := a.store.ListCars(ctx, db.CarFilter{})
					if err != nil {
						return err
					}
					ids = make([]string, 0, len(cars))
					for _, car := range cars {
						ids = append(ids, car.ID)
					}
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CAR\tRULE\tDUE MILEAGE\tSTATUS")
				total := 0
				for _, id := range ids {
					planned, err := a.planner.PlanDue(ctx, id)
					if err != nil {
						return err
					}
					for _, rec := range planned {
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", rec.CarID, rec.Description, rec.RecordedMileage, rec.Status)
					}
					total += len(planned)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Planned %d maintenance record(s) for %d car(s).\n", total, len(ids))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "plan every car")
	return cmd
}

func newRulesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the maintenance rule catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				rules, err := a.planner.Rules(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tINTERVAL (KM)")
				for _, r := range rules {
					fmt.Fprintf(w, "%s\t%d\n", r.Name, r.MileageInterval)
				}
				return w.Flush()
			})
		},
	}
}

func newZoneCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zone",
		Short: "Manage fleet zones",
	}

	var name, chefEmail string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a zone managed by a fleet manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				chef, err := a.users.FindUserByEmail(ctx, strings.ToLower(chefEmail))
				if err != nil {
					return fmt.Errorf("zone: find fleet manager %s: %w", chefEmail, err)
				}
				if chef.Role != models.RoleChefPark {
					return fmt.Errorf("zone: %s has role %s, want %s", chefEmail, chef.Role, models.RoleChefPark)
				}
				zone := &models.Zone{Name: name, ChefParkID: chef.ID}
				if err := a.store.InsertZone(ctx, zone); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created zone %s (%s)\n", zone.Name, zone.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "zone name")
	create.Flags().StringVar(&chefEmail, "chef", "", "email of the fleet manager")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("chef")

	cmd.AddCommand(create)
	return cmd
}

func newUserCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var email, password, role, firstName, lastName string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.IsValidRole(models.Role(role)) {
				return fmt.Errorf("user: role %q is not one of admin, chef_park, owner", role)
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app) error {
				if err := a.auth.ValidatePassword(password); err != nil {
					return fmt.Errorf("user: %w", err)
				}
				hash, err := a.auth.HashPassword(password)
				if err != nil {
					return err
				}
				user := &models.User{
					Email:        strings.ToLower(strings.TrimSpace(email)),
					PasswordHash: hash,
					Role:         models.Role(role),
					FirstName:    firstName,
					LastName:     lastName,
				}
				if err := a.users.InsertUser(ctx, user); err != nil {
					if errors.Is(err, db.ErrDuplicate) {
						return fmt.Errorf("user: %s already exists", user.Email)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (%s)\n", user.Role, user.Email, user.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().StringVar(&role, "role", string(models.RoleOwner), "admin, chef_park or owner")
	create.Flags().StringVar(&firstName, "first-name", "", "first name")
	create.Flags().StringVar(&lastName, "last-name", "", "last name")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
