package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"extgov/config"
	"extgov/core/appmeta"
	"extgov/core/governance"
	"extgov/core/simulator"
	"extgov/core/store"
	"extgov/core/stress"
	"extgov/core/utils"
	"github.com/spf13/cobra"
)

const defaultActor = "cli"

type options struct {
	configPath string
	actor      string
}

type runtime struct {
	cfg    *config.AppConfig
	db     *sql.DB
	svc    *governance.Service
	logger *utils.Logger
}

func (r *runtime) Close() {
	if r != nil && r.db != nil {
		_ = r.db.Close()
	}
}

// Run executes the command line and exits non-zero on failure.
func Run() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "extgov",
		Short:        "Extension governance: scan, analyze, stress test and gate installs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (overrides APP_CONFIG)")
	root.PersistentFlags().StringVar(&opts.actor, "actor", defaultActor, "actor recorded in the audit log")

	root.AddCommand(
		newScanCommand(opts),
		newListCommand(opts),
		newConflictsCommand(opts),
		newAnalyzeCommand(opts),
		newStressCommand(opts),
		newRiskCommand(opts),
		newGuardCommand(opts),
		newStatusCommand(opts, "activate", "Activate an extension once the installation guard admits it", store.StatusActive),
		newStatusCommand(opts, "disable", "Disable an extension", store.StatusDisabled),
		newSimulateCommand(opts),
		newAuditCommand(opts),
		newMigrateStatusCommand(opts),
		newVersionCommand(),
	)
	return root
}

func openDB(opts *options) (*config.AppConfig, *sql.DB, *utils.Logger, error) {
	if p := strings.TrimSpace(opts.configPath); p != "" {
		if err := os.Setenv("APP_CONFIG", p); err != nil {
			return nil, nil, nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config load failed: %w", err)
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db: %w", err)
	}
	return cfg, db, logger, nil
}

func openRuntime(ctx context.Context, opts *options) (*runtime, error) {
	cfg, db, logger, err := openDB(opts)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	svc, err := governance.Build(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &runtime{cfg: cfg, db: db, svc: svc, logger: logger}, nil
}

// withRuntime opens the database and service for the lifetime of one command.
func withRuntime(opts *options, fn func(cmd *cobra.Command, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd.Context(), opts)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd, rt, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Discover extension manifests under the scanner root and register them",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			res, err := rt.svc.Scan(cmd.Context(), opts.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func newListCommand(opts *options) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered extensions",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			items, err := rt.svc.ListExtensions(cmd.Context(), store.ExtensionStatus(strings.TrimSpace(status)))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, pending_review, disabled)")
	return cmd
}

func newConflictsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "Detect route, component and global state conflicts across active extensions",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			rep, err := rt.svc.ConflictCheck(cmd.Context(), opts.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		}),
	}
}

func newAnalyzeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <extension-id>",
		Short: "Compute security, stability, performance and compatibility scores",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			res, err := rt.svc.Analyze(cmd.Context(), opts.actor, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func newStressCommand(opts *options) *cobra.Command {
	var testTypes, devices, networks []string
	cmd := &cobra.Command{
		Use:   "stress <extension-id>",
		Short: "Run the stress scenario matrix for an extension",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			var matrix *stress.MatrixConfig
			if len(testTypes)+len(devices)+len(networks) > 0 {
				m, err := stress.ParseMatrix(testTypes, devices, networks)
				if err != nil {
					return err
				}
				matrix = &m
			}
			rep, err := rt.svc.StressTest(cmd.Context(), opts.actor, args[0], matrix)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		}),
	}
	cmd.Flags().StringSliceVar(&testTypes, "types", nil, "test types (load, ui, mobile, network)")
	cmd.Flags().StringSliceVar(&devices, "devices", nil, "devices (desktop, mobile, tablet)")
	cmd.Flags().StringSliceVar(&networks, "networks", nil, "network profiles (3g, 4g, 5g, wifi)")
	return cmd
}

func newRiskCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "risk <extension-id>",
		Short: "Assess overall risk and apply the installation guard",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			res, err := rt.svc.RiskAssess(cmd.Context(), opts.actor, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func newGuardCommand(opts *options) *cobra.Command {
	var evaluate bool
	cmd := &cobra.Command{
		Use:   "guard <extension-id>",
		Short: "Show the installation guard record, or re-evaluate it with --evaluate",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			if evaluate {
				res, err := rt.svc.Evaluate(cmd.Context(), opts.actor, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			rec, err := rt.svc.GuardRecord(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		}),
	}
	cmd.Flags().BoolVar(&evaluate, "evaluate", false, "re-evaluate against the latest assessment")
	return cmd
}

func newStatusCommand(opts *options, use, short string, status store.ExtensionStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <extension-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, args []string) error {
			ext, err := rt.svc.SetExtensionStatus(cmd.Context(), opts.actor, args[0], status)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ext)
		}),
	}
}

func newSimulateCommand(opts *options) *cobra.Command {
	var (
		pathFile    string
		device      string
		network     string
		extensionID string
		seed        int64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a user path on a simulated device",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			steps, err := readSteps(cmd.InOrStdin(), pathFile)
			if err != nil {
				return err
			}
			req := governance.SimulationRequest{
				ExtensionID: extensionID,
				Path:        steps,
				Device:      device,
				Network:     network,
			}
			if cmd.Flags().Changed("seed") {
				req.Config = &governance.SimulationConfig{Seed: &seed}
			}
			res, err := rt.svc.RunSimulation(cmd.Context(), opts.actor, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
	cmd.Flags().StringVar(&pathFile, "path", "-", "JSON file with the user path steps, - for stdin")
	cmd.Flags().StringVar(&device, "device", "desktop", "device profile (desktop, mobile, tablet)")
	cmd.Flags().StringVar(&network, "network", "", "network profile (3g, 4g, 5g, wifi)")
	cmd.Flags().StringVar(&extensionID, "extension", "", "extension the run is attributed to")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for reproducible delays")
	return cmd
}

func readSteps(stdin io.Reader, path string) ([]simulator.Step, error) {
	var r io.Reader = stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var steps []simulator.Step
	if err := json.NewDecoder(r).Decode(&steps); err != nil {
		return nil, fmt.Errorf("decode user path: %w", err)
	}
	return steps, nil
}

func newAuditCommand(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent governance audit records",
		Args:  cobra.NoArgs,
		RunE: withRuntime(opts, func(cmd *cobra.Command, rt *runtime, _ []string) error {
			items, err := rt.svc.AuditLog(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of records")
	return cmd
}

func newMigrateStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-status",
		Short: "Report the schema version against the embedded migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, _, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()
			st, err := store.GetMigrationStatus(cmd.Context(), db)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), appmeta.Build())
		},
	}
}
