package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/inkwell/pkg/config"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/model"
	"github.com/odvcencio/inkwell/pkg/prompts"
	"github.com/odvcencio/inkwell/pkg/terminal"
)

func newModelsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List providers and their models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// Persisted settings decide the active marker when the database
			// is reachable; a missing database is not an error here.
			if db, err := openDatabase(cfg.Storage.Path); err == nil {
				if settings, err := db.GetSettings(config.SettingKeys); err == nil {
					cfg.ApplySettings(settings)
				}
				_ = db.Close()
			}
			active := cfg.Resolve()

			out := terminal.NewWithOutput(cmd.OutOrStdout())
			table := terminal.Table{
				Headers: []string{"", "PROVIDER", "MODEL", "DESCRIPTION"},
				Width:   terminal.Width(),
			}
			for _, p := range model.Catalog() {
				for _, m := range p.Models {
					marker := ""
					if p.ID == active.Provider && m.ID == active.Model {
						marker = "*"
					}
					table.Rows = append(table.Rows, []string{marker, p.ID, m.ID, m.Label})
				}
			}
			out.Println("%s", table.Render())
			out.Dim("Active: %s / %s", active.Provider, active.Model)
			return nil
		},
	}
}

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "List writing templates for generate --template",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := terminal.Table{
				Headers: []string{"ID", "LABEL", "DESCRIPTION"},
				Width:   terminal.Width(),
			}
			for _, t := range prompts.Templates() {
				table.Rows = append(table.Rows, []string{t.ID, t.Label, t.Description})
			}
			terminal.NewWithOutput(cmd.OutOrStdout()).Println("%s", table.Render())
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a template prompt and its placeholders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := prompts.LookupTemplate(args[0])
			if !ok {
				return apperrors.New(apperrors.ErrCodeInvalidInput, "unknown template").
					WithUserMessage(fmt.Sprintf("Unknown template %q. Run `inkwell templates` to list them.", args[0]))
			}
			out := terminal.NewWithOutput(cmd.OutOrStdout())
			out.Header(t.Label)
			out.Dim("%s", t.Description)
			out.Println("%s", t.Prompt)
			if ph := t.Placeholders(); len(ph) > 0 {
				out.Dim("Placeholders: %s", strings.Join(ph, ", "))
			}
			return nil
		},
	})
	return cmd
}
