package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	_ "github.com/3frameslab/kgrecon/pkg/adapters/datasource/mssql"    // register mssql, compiled in with -tags mssql/all_adapters
	_ "github.com/3frameslab/kgrecon/pkg/adapters/datasource/postgres" // register postgres, compiled in with -tags postgres/all_adapters
	"github.com/3frameslab/kgrecon/pkg/extract"
	"github.com/3frameslab/kgrecon/pkg/landing"
	"github.com/3frameslab/kgrecon/pkg/recon"
)

// sideFlags is one side's connection details, turned into the generic
// map[string]any every registered adapter's FromMap expects.
type sideFlags struct {
	dsType   string
	host     string
	port     int
	user     string
	password string
	database string
	table    string
}

func (s sideFlags) config() map[string]any {
	return map[string]any{
		"host":     s.host,
		"port":     float64(s.port), // adapters expect JSON-shaped numbers
		"user":     s.user,
		"password": s.password,
		"database": s.database,
	}
}

func (s sideFlags) reader(cmd *cobra.Command) (extract.SourceReader, error) {
	factory := datasource.GetQueryExecutorFactory(s.dsType)
	if factory == nil {
		return nil, fmt.Errorf("no registered adapter for datasource type %q (build with -tags all_adapters or -tags %s)", s.dsType, s.dsType)
	}
	runner, err := factory(cmd.Context(), s.config(), nil, uuid.Nil, uuid.Nil, "enginectl")
	if err != nil {
		return nil, fmt.Errorf("connect to %s source: %w", s.dsType, err)
	}
	return extract.NewQueryExecutorReader(runner, s.table), nil
}

func registerSideFlags(cmd *cobra.Command, prefix string, f *sideFlags) {
	cmd.Flags().StringVar(&f.dsType, prefix+"-type", "postgres", "adapter type (postgres, mssql)")
	cmd.Flags().StringVar(&f.host, prefix+"-host", "", "host")
	cmd.Flags().IntVar(&f.port, prefix+"-port", 5432, "port")
	cmd.Flags().StringVar(&f.user, prefix+"-user", "", "user")
	cmd.Flags().StringVar(&f.password, prefix+"-password", "", "password")
	cmd.Flags().StringVar(&f.database, prefix+"-database", "", "database name")
	cmd.Flags().StringVar(&f.table, prefix+"-table", "", "table to extract")
}

func newReconCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recon",
		Short: "Run a reconciliation ruleset end-to-end against a source/target pair",
	}

	var (
		rulesetID            string
		executionID          string
		limit                int
		keepStaging          bool
		inactivePredicateSQL string
		source, target       sideFlags
	)

	run := &cobra.Command{
		Use:   "run",
		Short: "Extract both sides into staging tables, match, and report KPIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if executionID == "" {
				executionID = uuid.NewString()
			}

			db, err := a.landingConn(ctx)
			if err != nil {
				return err
			}

			landingMgr := landing.NewPostgresManager(db, time.Duration(a.cfg.Staging.TTLHours)*time.Hour, a.logger)
			bulkLoader := extract.NewBulkLoader(db, a.logger)
			extractor := extract.NewExtractor(landingMgr, bulkLoader, a.logger)
			rulesStore, err := a.rulesStore(ctx, true)
			if err != nil {
				return err
			}
			executor := recon.NewExecutor(rulesStore, landingMgr, extractor, db, recon.NewMemoryStore(), a.logger)

			sourceReader, err := source.reader(cmd)
			if err != nil {
				return err
			}
			targetReader, err := target.reader(cmd)
			if err != nil {
				return err
			}

			record, err := executor.Execute(ctx, recon.ExecutionRequest{
				ExecutionID:          executionID,
				RulesetID:            rulesetID,
				Limit:                limit,
				KeepStaging:          keepStaging,
				InactivePredicateSQL: inactivePredicateSQL,
			}, sourceReader, targetReader)
			if err != nil && record == nil {
				return err
			}

			fmt.Printf("execution %s: %s\n", record.ExecutionID, record.Status)
			if record.ErrorMessage != "" {
				fmt.Printf("  error: %s\n", record.ErrorMessage)
			}
			fmt.Printf("  source=%s (%d rows) target=%s (%d rows)\n",
				record.SourceTable, record.TotalSourceCount, record.TargetTable, record.TotalTargetCount)
			fmt.Printf("  RCR=%.3f (%s) DQCS=%.3f (%s) REI=%.3f (%s) IRR=%.3f (%s)\n",
				record.KPIs.RCR, record.KPIs.RCRStatus,
				record.KPIs.DQCS, record.KPIs.DQCSStatus,
				record.KPIs.REI, record.KPIs.REIStatus,
				record.KPIs.IRR, record.KPIs.IRRStatus)
			return nil
		},
	}
	run.Flags().StringVar(&rulesetID, "ruleset-id", "", "ruleset to execute (required)")
	run.Flags().StringVar(&executionID, "execution-id", "", "execution id (generated if omitted)")
	run.Flags().IntVar(&limit, "limit", 0, "cap on matched rows returned (0 = engine default)")
	run.Flags().BoolVar(&keepStaging, "keep-staging", false, "keep staging tables after the run instead of dropping them")
	run.Flags().StringVar(&inactivePredicateSQL, "inactive-predicate", "", "boolean SQL fragment over the source staging table defining inactive rows")
	registerSideFlags(run, "source", &source)
	registerSideFlags(run, "target", &target)
	_ = run.MarkFlagRequired("ruleset-id")
	_ = run.MarkFlagRequired("source-table")
	_ = run.MarkFlagRequired("target-table")
	cmd.AddCommand(run)

	return cmd
}
