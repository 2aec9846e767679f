package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	assemblenjk "github.com/goliatone/go-assemble-njk"
	"github.com/goliatone/go-assemble-njk/pkg/app"
	"github.com/goliatone/go-assemble-njk/pkg/config"
	"github.com/goliatone/go-assemble-njk/pkg/registrar"
)

type renderFlags struct {
	data   string
	layout string
	output string
}

func newRenderCmd(global *globalFlags) *cobra.Command {
	flags := &renderFlags{}

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, global, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "yaml or json file with template locals")
	cmd.Flags().StringVarP(&flags.layout, "layout", "l", "", "layout file wrapping the template at {% body %}")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (stdout if empty)")
	return cmd
}

func runRender(cmd *cobra.Command, global *globalFlags, flags *renderFlags, template string) error {
	logger, err := global.logger(cmd)
	if err != nil {
		return err
	}

	options, err := config.Load(config.WithFiles(global.configs...))
	if err != nil {
		return err
	}

	site, err := assemblenjk.NewApp(app.WithOptions(options), app.WithLogger(logger))
	if err != nil {
		return err
	}
	if site.OptionValue(app.OptionEngine) == nil {
		site.Option(app.OptionEngine, "njk")
	}
	if site.OptionValue("searchPaths") == nil {
		site.Option("searchPaths", []any{filepath.Dir(template)})
	}

	if err := site.Use(assemblenjk.Plugin(nil, registrar.WithStrict())); err != nil {
		return err
	}

	content, err := os.ReadFile(template)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	view := &app.View{Path: filepath.Base(template), Content: string(content)}

	if flags.layout != "" {
		layout, err := os.ReadFile(flags.layout)
		if err != nil {
			return fmt.Errorf("read layout: %w", err)
		}
		layouts, err := site.Collection(assemblenjk.CollectionLayouts)
		if err != nil {
			return err
		}
		added, err := layouts.Add(&app.View{Path: filepath.Base(flags.layout), Content: string(layout)})
		if err != nil {
			return err
		}
		view.Layout = added.Stem()
	}

	locals, err := readData(flags.data)
	if err != nil {
		return err
	}

	logger.Debug().Str("template", template).Str("layout", view.Layout).Msg("rendering")

	res, err := site.Render(cmd.Context(), view, locals)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), flags.output, res.Content)
}

func readData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return data, nil
}

func writeOutput(stdout io.Writer, path, content string) error {
	if path == "" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
