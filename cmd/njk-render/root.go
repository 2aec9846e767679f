package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-assemble-njk/pkg/logging"
)

type globalFlags struct {
	logLevel  string
	logFormat string
	configs   []string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "njk-render",
		Short:         "Render njk templates through an assemble host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", string(logging.FormatConsole), "log format (console, json)")
	pf.StringSliceVarP(&flags.configs, "config", "c", nil, "option file (yaml, toml or json); repeatable")

	cmd.AddCommand(newRenderCmd(flags))
	cmd.AddCommand(newFiltersCmd(flags))
	return cmd
}

func (f *globalFlags) logger(cmd *cobra.Command) (zerolog.Logger, error) {
	logger, err := logging.New(f.logLevel, logging.Format(f.logFormat), cmd.ErrOrStderr())
	if err != nil {
		return logger, err
	}
	return logging.Component(logger, "njk-render"), nil
}
