package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/3frameslab/kgrecon/pkg/graphstore"
	"github.com/3frameslab/kgrecon/pkg/kg"
	"github.com/3frameslab/kgrecon/pkg/schema"
)

// kgStore builds a kg.Store over a graphstore backend: an in-memory one by
// default, or a PostgresStore against the landing database when
// storePostgres is set.
func (a *app) kgStore(ctx context.Context, storePostgres bool) (kg.Store, error) {
	var backend graphstore.Store
	if storePostgres {
		db, err := a.landingConn(ctx)
		if err != nil {
			return nil, err
		}
		backend = graphstore.NewPostgresStore(db)
	} else {
		backend = graphstore.NewMemoryStore()
	}
	return kg.NewStore(backend), nil
}

func newKGCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kg",
		Short: "Build and inspect knowledge graphs",
	}

	var (
		schemaDir     string
		kgName        string
		schemaNames   string
		useLLM        bool
		minConfidence float64
		storePostgres bool
	)

	build := &cobra.Command{
		Use:   "build",
		Short: "Build a knowledge graph from one or more schema descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			schemas := schema.NewFileStore(schemaDir)
			store, err := a.kgStore(ctx, storePostgres)
			if err != nil {
				return err
			}
			builder := kg.NewBuilder(schemas, store, a.llmClient(), a.logger)

			names := splitCSV(schemaNames)
			if len(names) == 0 {
				return fmt.Errorf("--schemas is required (comma-separated schema names)")
			}

			graph, metrics, err := builder.Build(ctx, kg.BuildRequest{
				KGName:        kgName,
				Schemas:       names,
				UseLLM:        useLLM,
				MinConfidence: minConfidence,
			})
			if err != nil {
				return err
			}

			fmt.Printf("built %q: %d nodes, %d relationship types, %d llm calls (%d failed), %d aliases learned\n",
				graph.Name, len(graph.Nodes), len(metrics.EdgesByType), metrics.LLMCallsMade, metrics.LLMCallsFailed, metrics.AliasesLearned)
			return nil
		},
	}
	build.Flags().StringVar(&schemaDir, "schema-dir", "./schemas", "directory holding *.schema.json files")
	build.Flags().StringVar(&kgName, "kg-name", "", "name to save the built graph under (required)")
	build.Flags().StringVar(&schemaNames, "schemas", "", "comma-separated schema names to include (required)")
	build.Flags().BoolVar(&useLLM, "use-llm", false, "enhance relationship inference with the configured LLM")
	build.Flags().Float64Var(&minConfidence, "min-confidence", 0.6, "minimum confidence for LLM-suggested relationships")
	build.Flags().BoolVar(&storePostgres, "postgres", false, "persist the graph in the landing database instead of in-memory")
	_ = build.MarkFlagRequired("kg-name")
	_ = build.MarkFlagRequired("schemas")
	cmd.AddCommand(build)

	show := &cobra.Command{
		Use:   "show <kg-name>",
		Short: "Print a saved knowledge graph as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.kgStore(cmd.Context(), storePostgres)
			if err != nil {
				return err
			}
			graph, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(graph, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	show.Flags().BoolVar(&storePostgres, "postgres", false, "read from the landing database instead of in-memory")
	cmd.AddCommand(show)

	return cmd
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
