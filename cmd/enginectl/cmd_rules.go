package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/3frameslab/kgrecon/pkg/rules"
	"github.com/3frameslab/kgrecon/pkg/schema"
)

// rulesStore builds a rules.Store: in-memory by default, or a PostgresStore
// against the landing database when storePostgres is set.
func (a *app) rulesStore(ctx context.Context, storePostgres bool) (rules.Store, error) {
	if storePostgres {
		db, err := a.landingConn(ctx)
		if err != nil {
			return nil, err
		}
		return rules.NewPostgresStore(db), nil
	}
	return rules.NewMemoryStore(), nil
}

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Generate and inspect reconciliation rulesets",
	}

	var (
		schemaDir     string
		kgName        string
		schemaNames   string
		rulesetName   string
		useLLM        bool
		minConfidence float64
		storePostgres bool
	)

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a ruleset from a previously built knowledge graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kgStore, err := a.kgStore(ctx, storePostgres)
			if err != nil {
				return err
			}
			store, err := a.rulesStore(ctx, storePostgres)
			if err != nil {
				return err
			}
			generator := rules.NewGenerator(kgStore, schema.NewFileStore(schemaDir), store, a.llmClient(), a.logger)

			names := splitCSV(schemaNames)
			if len(names) == 0 {
				return fmt.Errorf("--schemas is required (comma-separated schema names)")
			}

			ruleset, metrics, err := generator.Generate(ctx, rules.GenerateRequest{
				RulesetID:     uuid.NewString(),
				RulesetName:   rulesetName,
				KGName:        kgName,
				Schemas:       names,
				MinConfidence: minConfidence,
				UseLLM:        useLLM,
			})
			if err != nil {
				return err
			}

			fmt.Printf("generated ruleset %s (%s): %d rules, %d pattern-derived, %d llm-added, %d filtered\n",
				ruleset.RulesetID, ruleset.RulesetName, len(ruleset.Rules),
				metrics.PatternRules, metrics.LLMRulesAdded, metrics.FilteredRules)
			return nil
		},
	}
	generate.Flags().StringVar(&schemaDir, "schema-dir", "./schemas", "directory holding *.schema.json files")
	generate.Flags().StringVar(&kgName, "kg-name", "", "knowledge graph to generate rules from (required)")
	generate.Flags().StringVar(&schemaNames, "schemas", "", "comma-separated schema names to include (required)")
	generate.Flags().StringVar(&rulesetName, "name", "", "name for the generated ruleset")
	generate.Flags().BoolVar(&useLLM, "use-llm", false, "suggest additional rules with the configured LLM")
	generate.Flags().Float64Var(&minConfidence, "min-confidence", 0.6, "minimum confidence for LLM-suggested rules")
	generate.Flags().BoolVar(&storePostgres, "postgres", false, "persist the KG and ruleset in the landing database instead of in-memory")
	_ = generate.MarkFlagRequired("kg-name")
	_ = generate.MarkFlagRequired("schemas")
	cmd.AddCommand(generate)

	show := &cobra.Command{
		Use:   "show <ruleset-id>",
		Short: "Print a saved ruleset as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.rulesStore(cmd.Context(), storePostgres)
			if err != nil {
				return err
			}
			ruleset, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(ruleset, "", "  ")
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
