package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/saferides/escort-dispatch/internal/config"
	"github.com/saferides/escort-dispatch/pkg/cache"
	"github.com/saferides/escort-dispatch/pkg/clients/sheetsclient"
	"github.com/saferides/escort-dispatch/pkg/core/rotation"
	"github.com/saferides/escort-dispatch/pkg/core/schedule"
	"github.com/saferides/escort-dispatch/pkg/core/services"
	"github.com/saferides/escort-dispatch/pkg/core/status"
	"github.com/saferides/escort-dispatch/pkg/db"
	"github.com/saferides/escort-dispatch/pkg/tablestore"
	"github.com/saferides/escort-dispatch/pkg/utils/logging"
)

// App holds the application dependencies
type App struct {
	cfg       *config.Config
	database  *db.DB
	rotation  *rotation.Manager
	checker   *schedule.Checker
	processor *services.Processor
	logger    *zap.Logger
	ctx       context.Context
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Escort dispatch CLI - Manage rider assignments and rotation",
		Long:  `A CLI tool for assigning escort riders to transportation requests, maintaining the fairness rotation, and checking rider availability.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				app.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(processAssignmentCmd())
	rootCmd.AddCommand(requestDetailsCmd())
	rootCmd.AddCommand(applyStatusCmd())
	rootCmd.AddCommand(rotationCmd())
	rootCmd.AddCommand(checkRiderCmd())
	rootCmd.AddCommand(listRidersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, clients, store, and services
func initApp() error {
	var err error
	app = &App{
		ctx: context.Background(),
	}

	app.logger, err = logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.logger.Info("Starting application", zap.String("environment", env))

	app.cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.logger.Debug("Configuration loaded successfully")

	app.logger.Info("Initializing sheets client")
	client, err := sheetsclient.NewClient(app.ctx, app.cfg.CredentialsFile, app.cfg.TokenFile)
	if err != nil {
		return fmt.Errorf("failed to create sheets client: %w", err)
	}
	app.logger.Debug("Sheets client initialized successfully")

	store := tablestore.NewSheets(client, app.cfg.DatabaseSheetID, app.cfg.PropertiesTab)
	app.database = db.NewDB(store, cache.New())
	app.rotation = rotation.NewManager(store, app.database, app.logger)
	app.checker = schedule.NewChecker(app.database, app.logger, app.cfg.BlackoutRules)
	app.processor = services.NewProcessor(
		app.database,
		app.rotation,
		app.checker,
		nil, // notification transport is wired by the hosting deployment
		app.logger,
		time.Duration(app.cfg.WriteDelayMS)*time.Millisecond,
	)
	app.logger.Info("Services initialized", zap.String("spreadsheet_id", app.cfg.DatabaseSheetID))

	return nil
}

// Command definitions

func processAssignmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processAssignment <request_id> <rider>[,<rider>...]",
		Short: "Replace a request's assignments with the given riders",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			noPriority, _ := cmd.Flags().GetBool("no-priority")
			checkAvailability, _ := cmd.Flags().GetBool("check-availability")

			riders := strings.Split(args[1], ",")
			opts := services.DefaultOptions()
			opts.UsePriority = !noPriority
			opts.CheckAvailability = checkAvailability

			result, err := app.processor.ProcessAssignment(app.ctx, args[0], riders, opts)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Assignment processed (batch %s)\n\n", result.BatchID)
			fmt.Printf("Request:   %s\n", result.RequestID)
			fmt.Printf("Status:    %s\n", result.Status)
			fmt.Printf("Assigned:  %d, failed: %d\n", result.SuccessCount, result.FailCount)
			if len(result.RemovedRiders) > 0 {
				fmt.Printf("Replaced:  %s\n", strings.Join(result.RemovedRiders, ", "))
			}
			for _, outcome := range result.PerRider {
				if outcome.Status == services.OutcomeFailed {
					fmt.Printf("  ✗ %s: %s\n", outcome.RiderName, outcome.Error)
				} else {
					fmt.Printf("  ✓ %s\n", outcome.RiderName)
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().Bool("no-priority", false, "Do not advance the rotation for assigned riders")
	cmd.Flags().Bool("check-availability", false, "Fail riders that are unavailable or conflicting")

	return cmd
}

func requestDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requestDetails <request_id>",
		Short: "Show a request's current snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := services.GetRequestDetails(app.ctx, app.database, args[0])
			if err != nil {
				return err
			}
			if req == nil {
				fmt.Printf("Request %s not found.\n", args[0])
				return nil
			}

			fmt.Printf("\nRequest %s\n", req.ID)
			fmt.Printf("  Date:      %s %s - %s\n", req.EventDate, req.StartTime, req.EndTime)
			fmt.Printf("  Route:     %s -> %s\n", req.StartLocation, req.EndLocation)
			if req.SecondaryLocation != "" {
				fmt.Printf("  Via:       %s\n", req.SecondaryLocation)
			}
			fmt.Printf("  Needed:    %d\n", req.RidersNeeded)
			fmt.Printf("  Riders:    %s\n", req.AssignedRiders)
			fmt.Printf("  Status:    %s\n\n", req.Status)
			return nil
		},
	}
}

func applyStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "applyStatus <request_id>",
		Short: "Recompute and persist a request's fulfillment status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newStatus, err := status.Apply(app.ctx, app.database, app.logger, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Request %s status: %s\n", args[0], newStatus)
			return nil
		},
	}
}

func rotationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotation",
		Short: "Show the rider rotation order (front = next pick)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := app.rotation.GetOrder(app.ctx)
			if err != nil {
				return err
			}
			fmt.Printf("\nRotation order (%d riders):\n", len(order))
			for i, name := range order {
				fmt.Printf("  %2d. %s\n", i+1, name)
			}
			fmt.Println()
			return nil
		},
	}
}

func checkRiderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkRider <rider_name> <date> <start_time>",
		Short: "Check whether a rider is free of conflicts and available",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			available := app.checker.IsRiderAvailable(app.ctx, args[0], args[1], args[2])
			if available {
				fmt.Printf("✓ %s is available on %s at %s\n", args[0], args[1], args[2])
			} else {
				fmt.Printf("✗ %s is NOT available on %s at %s\n", args[0], args[1], args[2])
			}
			return nil
		},
	}
}

func listRidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listRiders",
		Short: "List all riders from the rider table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			riders, err := app.database.Riders(app.ctx)
			if err != nil {
				return fmt.Errorf("failed to list riders: %w", err)
			}

			app.logger.Info("Riders fetched successfully", zap.Int("count", len(riders)))

			fmt.Printf("\nFound %d riders:\n\n", len(riders))
			for _, r := range riders {
				partTime := ""
				if r.PartTime {
					partTime = " [part-time]"
				}
				fmt.Printf("- %s (%s) - %s - %s%s\n", r.Name, r.ID, r.Status, r.Email, partTime)
			}

			return nil
		},
	}
}
