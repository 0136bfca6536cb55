package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/config"
	"github.com/3frameslab/kgrecon/pkg/database"
	"github.com/3frameslab/kgrecon/pkg/llm"
)

// app holds shared, lazily-built dependencies for every subcommand. Fields
// are built on first use so a command that only needs a schema store
// (e.g. "schema list") never pays for a landing database connection.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	landingDB *database.DB
	llm       llm.LLMClient
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "enginectl",
		Short:         "Exercise the knowledge-graph reconciliation engine's components locally",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(Version)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg

			var logger *zap.Logger
			if cfg.Env == "local" {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.logger = logger
			return nil
		},
	}

	root.AddCommand(
		newSchemaCmd(a),
		newKGCmd(a),
		newRulesCmd(a),
		newLandingCmd(a),
		newReconCmd(a),
		newNLSQLCmd(a),
		newKPICmd(a),
	)

	return root
}

// landingConn lazily connects to the landing database, shared by every
// command that needs it (landing, recon, kpi against PostgresStore).
func (a *app) landingConn(ctx context.Context) (*database.DB, error) {
	if a.landingDB != nil {
		return a.landingDB, nil
	}
	db, err := database.NewConnection(ctx, &database.Config{
		URL:            a.cfg.LandingDB.ConnectionString(),
		MaxConnections: a.cfg.LandingDB.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to landing database: %w", err)
	}
	a.landingDB = db
	return db, nil
}

// llmClient lazily builds the configured LLM client, or returns nil when
// the configuration is incomplete. Callers pass nil straight through to
// component constructors, which fall back to rule-based logic.
func (a *app) llmClient() llm.LLMClient {
	if a.llm != nil {
		return a.llm
	}
	if !a.cfg.LLM.IsConfigured() {
		return nil
	}
	factory := llm.NewClientFactory(a.logger)
	client, err := factory.CreateClient(llm.FactoryConfig{
		Provider: llm.Provider(a.cfg.LLM.Provider),
		Endpoint: a.cfg.LLM.Endpoint,
		Model:    a.cfg.LLM.Model,
		APIKey:   a.cfg.LLM.APIKey,
	})
	if err != nil {
		a.logger.Warn("failed to build configured llm client, continuing without one", zap.Error(err))
		return nil
	}
	a.llm = client
	return client
}
