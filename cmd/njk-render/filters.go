package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-assemble-njk/pkg/config"
	"github.com/goliatone/go-assemble-njk/pkg/njk"
)

func newFiltersCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "List the compatibility filters the engine adds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			options, err := config.Load(config.WithFiles(global.configs...))
			if err != nil {
				return err
			}
			cfg, err := njk.DecodeConfig(njk.DefaultConfig(), options)
			if err != nil {
				return err
			}

			names := njk.BuiltinFilters()
			if cfg.Sanitize {
				names = append(names, "sanitize")
				sort.Strings(names)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
