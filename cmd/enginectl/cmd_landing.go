package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/3frameslab/kgrecon/pkg/landing"
)

func newLandingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "landing",
		Short: "Manage the landing database's staging-table lifecycle",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "bootstrap",
		Short: "Create the landing database's own bookkeeping tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.landingConn(cmd.Context())
			if err != nil {
				return err
			}
			mgr := landing.NewPostgresManager(db, time.Duration(a.cfg.Staging.TTLHours)*time.Hour, a.logger)
			if err := mgr.Bootstrap(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("landing database bootstrapped")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Drop every staging table past its TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.landingConn(cmd.Context())
			if err != nil {
				return err
			}
			mgr := landing.NewPostgresManager(db, time.Duration(a.cfg.Staging.TTLHours)*time.Hour, a.logger)
			n, err := mgr.CleanupExpired(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("dropped %d expired staging table(s)\n", n)
			return nil
		},
	})

	return cmd
}
