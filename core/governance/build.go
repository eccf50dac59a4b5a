package governance

import (
	"database/sql"
	"io/fs"

	"extgov/config"
	"extgov/core/conflicts"
	"extgov/core/guard"
	"extgov/core/registry"
	"extgov/core/risk"
	"extgov/core/scanner"
	"extgov/core/security"
	"extgov/core/simulator"
	"extgov/core/store"
	"extgov/core/stress"
	"extgov/core/utils"
)

// Build wires every governance component from a normalized config.
func Build(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*Service, error) {
	g := cfg.Governance
	extStore := store.NewExtensionsStore(db)
	stressStore := store.NewStressStore(db)
	assessments := store.NewAssessmentsStore(db)

	reg := registry.New(extStore, logger)
	var (
		scan   *scanner.Scanner
		source fs.FS
	)
	if cfg.Scanner.Root != "" {
		scan = scanner.New(cfg.Scanner.Root, cfg.Scanner.Patterns, reg, logger)
		source = scan.FS()
	}

	random := simulator.NewRandomSource()
	if g.SimulationSeed != 0 {
		random = simulator.NewSeededSource(g.SimulationSeed)
	}
	delays := simulator.DelayBoundsFromConfig(g.Delays)
	var sleeper simulator.Sleeper = simulator.NoopSleeper{}
	if g.Delays.RealTime {
		sleeper = simulator.RealSleeper{}
	}
	sim := simulator.New(simulator.Options{Delays: delays, Random: random, Sleeper: sleeper})
	// Matrix cells replay paths on virtual time.
	stressSim := simulator.New(simulator.Options{Delays: delays, Random: random, Sleeper: simulator.NoopSleeper{}})

	matrix, err := stress.MatrixFromConfig(g.Matrix)
	if err != nil {
		return nil, err
	}
	runner := stress.NewRunner(
		stress.NewSyntheticExecutor(stressSim, random),
		stressStore,
		stress.Options{Parallelism: g.Parallelism, Timeout: g.ScenarioTimeout()},
		logger,
	)

	patterns, err := security.DefaultPatterns()
	if err != nil {
		return nil, err
	}
	egress, err := security.NewEgressPolicy(g.Security.AllowedEgress)
	if err != nil {
		return nil, err
	}
	analyzer := security.NewAnalyzer(source, patterns, egress, g.Security.MaxFileBytes, logger)

	conflictSvc := conflicts.NewService(reg, store.NewConflictsStore(db), logger)
	scorer := risk.NewScorer(risk.Deps{
		Extensions:  reg,
		Security:    analyzer,
		Conflicts:   conflictSvc,
		Stress:      stressStore,
		Assessments: assessments,
	}, g.HostPackages, logger)

	return New(Components{
		Registry:    reg,
		Scanner:     scan,
		Conflicts:   conflictSvc,
		Stress:      runner,
		Matrix:      matrix,
		Scorer:      scorer,
		Guard:       guard.New(assessments, store.NewGuardStore(db), g.Threshold(), logger),
		Simulator:   sim,
		SimDelays:   g.Delays,
		SimRandom:   random,
		Simulations: store.NewSimulationsStore(db),
		Audit:       store.NewAuditStore(db),
	}, logger), nil
}
