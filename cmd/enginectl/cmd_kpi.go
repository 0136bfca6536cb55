package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/kpi"
	"github.com/3frameslab/kgrecon/pkg/nlsql"
	"github.com/3frameslab/kgrecon/pkg/recon"
	"github.com/3frameslab/kgrecon/pkg/rules"
)

// kpiService builds a kpi.Service, persisting KPIs/executions in the
// landing database when storePostgres is set, or in-memory otherwise.
func (a *app) kpiService(ctx context.Context, storePostgres bool) (kpi.Service, error) {
	var (
		store      kpi.Store
		reconStore recon.Store
		rulesStore rules.Store
	)
	if storePostgres {
		db, err := a.landingConn(ctx)
		if err != nil {
			return nil, err
		}
		store = kpi.NewPostgresStore(db)
		reconStore = recon.NewPostgresStore(db)
		rulesStore = rules.NewPostgresStore(db)
	} else {
		store = kpi.NewMemoryStore()
		reconStore = recon.NewMemoryStore()
		rulesStore = rules.NewMemoryStore()
	}

	kgStore, err := a.kgStore(ctx, storePostgres)
	if err != nil {
		return nil, err
	}
	parser := nlsql.NewParser(kgStore, a.llmClient(), a.logger)
	nlsqlExec := nlsql.NewExecutor(parser, a.logger)

	return kpi.NewService(store, nlsqlExec, reconStore, rulesStore, a.logger), nil
}

func newKPICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kpi",
		Short: "Manage saved KPI definitions and their execution history",
	}

	var storePostgres bool
	cmd.PersistentFlags().BoolVar(&storePostgres, "postgres", false, "persist KPIs/executions in the landing database instead of in-memory")

	var name, groupName, definition, kgName, metricType string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a KPI definition",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.kpiService(cmd.Context(), storePostgres)
			if err != nil {
				return err
			}
			k := &kpi.KPI{
				Name:       name,
				GroupName:  groupName,
				Definition: definition,
				KGName:     kgName,
				MetricType: kpi.MetricType(metricType),
			}
			created, err := svc.Create(cmd.Context(), k)
			if err != nil {
				return err
			}
			fmt.Println(created.ID)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "KPI name (required)")
	create.Flags().StringVar(&groupName, "group", "", "dashboard group name")
	create.Flags().StringVar(&definition, "definition", "", "free-text query definition (required)")
	create.Flags().StringVar(&kgName, "kg-name", "", "knowledge graph to resolve against (required)")
	create.Flags().StringVar(&metricType, "metric-type", string(kpi.MetricMatchRate), "metric category")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("definition")
	_ = create.MarkFlagRequired("kg-name")
	cmd.AddCommand(create)

	list := &cobra.Command{
		Use:   "list",
		Short: "List KPIs, optionally filtered by group",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.kpiService(cmd.Context(), storePostgres)
			if err != nil {
				return err
			}
			kpis, err := svc.List(cmd.Context(), groupName)
			if err != nil {
				return err
			}
			for _, k := range kpis {
				fmt.Printf("%s\t%s\t%s\n", k.ID, k.Name, k.MetricType)
			}
			return nil
		},
	}
	list.Flags().StringVar(&groupName, "group", "", "filter by group name")
	cmd.AddCommand(list)

	var (
		useLLM     bool
		limit      int
		target     sideFlags
		paramsJSON string
	)
	execute := &cobra.Command{
		Use:   "execute <kpi-id>",
		Short: "Execute a KPI against a target data source and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.kpiService(ctx, storePostgres)
			if err != nil {
				return err
			}

			factory := datasource.GetQueryExecutorFactory(target.dsType)
			if factory == nil {
				return fmt.Errorf("no registered adapter for datasource type %q", target.dsType)
			}
			runner, err := factory(ctx, target.config(), nil, uuid.Nil, uuid.Nil, "enginectl")
			if err != nil {
				return fmt.Errorf("connect to %s target: %w", target.dsType, err)
			}
			defer runner.Close()

			var params map[string]any
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parse --params as JSON: %w", err)
				}
			}

			exec, err := svc.Execute(ctx, args[0], kpi.ExecuteParams{
				Limit:  limit,
				UseLLM: useLLM,
				Params: params,
			}, runner)
			if err != nil {
				return err
			}
			fmt.Printf("execution %s: %s (%d records, %dms, confidence %.2f)\n",
				exec.ExecutionID, exec.Status, exec.NumberOfRecords, exec.ExecutionTimeMS, exec.ConfidenceScore)
			if exec.ErrorMessage != "" {
				fmt.Printf("  error: %s\n", exec.ErrorMessage)
			}
			return nil
		},
	}
	execute.Flags().BoolVar(&useLLM, "use-llm", false, "compile with the configured LLM instead of rule-based generation")
	execute.Flags().IntVar(&limit, "limit", 0, "row limit (0 = engine default)")
	execute.Flags().StringVar(&paramsJSON, "params", "", `JSON object binding {{param}} placeholders for a cached KPI, e.g. '{"customer_id":"..."}'`)
	registerSideFlags(execute, "target", &target)
	cmd.AddCommand(execute)

	cmd.AddCommand(&cobra.Command{
		Use:   "set-cache <kpi-id>",
		Short: "Accept a KPI and mark its most recent successful SQL as cached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.kpiService(cmd.Context(), storePostgres)
			if err != nil {
				return err
			}
			k, err := svc.SetCacheFlags(cmd.Context(), args[0], true, true)
			if err != nil {
				return err
			}
			fmt.Printf("%s: is_accept=%v is_sql_cached=%v\n", k.ID, k.IsAccept, k.IsSQLCached)
			return nil
		},
	})

	return cmd
}
