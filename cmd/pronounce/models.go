package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the supported model names",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			catalog := cfg.Catalog()
			for _, m := range catalog.Models() {
				marker := " "
				if m.Name == catalog.DefaultModel() {
					marker = "*"
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %-40s %s\n", marker, m.Name, m.Provider); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
