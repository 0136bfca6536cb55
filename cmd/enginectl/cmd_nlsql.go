package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/nlsql"
)

func newNLSQLCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nlsql",
		Short: "Compile and run free-text query definitions against a knowledge graph",
	}

	var (
		kgName        string
		definition    string
		dialect       string
		limit         int
		useLLM        bool
		storePostgres bool
		run           bool
		target        sideFlags
	)

	compile := &cobra.Command{
		Use:   "compile",
		Short: "Compile a free-text definition to SQL, optionally executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kgStore, err := a.kgStore(ctx, storePostgres)
			if err != nil {
				return err
			}
			parser := nlsql.NewParser(kgStore, a.llmClient(), a.logger)
			executor := nlsql.NewExecutor(parser, a.logger)

			req := nlsql.CompileRequest{
				KGName:     kgName,
				Definition: definition,
				Dialect:    nlsql.Dialect(dialect),
				Limit:      limit,
				UseLLM:     useLLM,
			}

			if !run {
				compiled, err := executor.Compile(ctx, req)
				if err != nil {
					return err
				}
				fmt.Printf("dialect=%s confidence=%.2f\n%s\n", compiled.Dialect, compiled.Intent.Confidence, compiled.SQL)
				return nil
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

			result, err := executor.Run(ctx, req, runner)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n%d records in %dms (confidence %.2f)\n", result.SQL, result.RecordCount, result.ElapsedMS, result.Confidence)
			return nil
		},
	}
	compile.Flags().StringVar(&kgName, "kg-name", "", "knowledge graph to resolve entities against (required)")
	compile.Flags().StringVar(&definition, "definition", "", "free-text query definition (required)")
	compile.Flags().StringVar(&dialect, "dialect", string(nlsql.DialectPostgreSQL), "SQL dialect to generate")
	compile.Flags().IntVar(&limit, "limit", 0, "row limit (0 = engine default)")
	compile.Flags().BoolVar(&useLLM, "use-llm", false, "use the configured LLM for classification and entity resolution")
	compile.Flags().BoolVar(&storePostgres, "postgres", false, "read the knowledge graph from the landing database instead of in-memory")
	compile.Flags().BoolVar(&run, "run", false, "execute the compiled SQL against --target-* instead of only printing it")
	registerSideFlags(compile, "target", &target)
	_ = compile.MarkFlagRequired("kg-name")
	_ = compile.MarkFlagRequired("definition")
	cmd.AddCommand(compile)

	return cmd
}
