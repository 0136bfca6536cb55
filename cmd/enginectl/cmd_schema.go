package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/3frameslab/kgrecon/pkg/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect *.schema.json descriptors from a directory",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "./schemas", "directory holding *.schema.json files")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the schema names available in --dir",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := schema.NewFileStore(dir)
			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print one schema descriptor as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := schema.NewFileStore(dir)
			desc, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(desc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	})

	return cmd
}
