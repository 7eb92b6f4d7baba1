package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/inkwell/pkg/content"
	"github.com/odvcencio/inkwell/pkg/document"
	"github.com/odvcencio/inkwell/pkg/terminal"
)

const timeLayout = "2006-01-02 15:04"

func newNewCmd(opts *rootOptions) *cobra.Command {
	var title, body, file string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := readInput(cmd, file)
				if err != nil {
					return withExitCode(err, exitUsage)
				}
				body = data
			}

			a, err := openApp(cmd, opts, "new")
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.openSession(a.completionClient())
			if err != nil {
				return err
			}
			doc := s.New()
			s.SetTitle(title)
			s.SetBody(body)
			if doc = s.Active(); doc.IsEmpty() {
				if _, err := a.docs.Save(doc); err != nil {
					return err
				}
			}
			if err := s.Close(); err != nil {
				return err
			}
			a.out.Success("Created %s", doc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Document title")
	cmd.Flags().StringVar(&body, "body", "", "Document body (HTML)")
	cmd.Flags().StringVar(&file, "file", "", "Read the body from a file, or - for stdin")
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent documents, most recently saved first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, "list")
			if err != nil {
				return err
			}
			defer a.Close()

			recents := a.docs.ListRecents()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(recents)
			}
			if len(recents) == 0 {
				a.out.Dim("No documents yet. Create one with `inkwell new` or `inkwell generate`.")
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), recentsTable(recents, terminal.Width()).Render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the index as JSON")
	return cmd
}

func recentsTable(recents []document.Metadata, width int) terminal.Table {
	rows := make([][]string, 0, len(recents))
	for _, m := range recents {
		rows = append(rows, []string{m.ID, m.LastModified.Local().Format(timeLayout), m.Title, m.Preview})
	}
	return terminal.Table{
		Headers: []string{"ID", "UPDATED", "TITLE", "PREVIEW"},
		Rows:    rows,
		Width:   width,
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var plain, asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, "show")
			if err != nil {
				return err
			}
			defer a.Close()

			doc, err := a.docs.Load(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			}
			a.out.Header(doc.Title)
			a.out.Dim("%s · %s", doc.ID, doc.LastModified.Local().Format(timeLayout))
			if plain {
				a.out.Println("%s", content.PlainText(doc.Body))
			} else {
				a.out.Println("%s", doc.Body)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&plain, "text", false, "Print the body as plain text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the stored record as JSON")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete documents",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, "delete")
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.openSession(a.completionClient())
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range args {
				if err := s.Delete(id); err != nil {
					return err
				}
				a.out.Success("Deleted %s", id)
			}
			if active := s.Active(); !active.IsEmpty() {
				a.out.Dim("Most recent document is now %s (%s)", active.ID, active.Title)
			}
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Convert a legacy single-document record into a regular document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, "migrate")
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			doc, err := a.docs.MigrateLegacy()
			if err != nil {
				return err
			}
			if doc == nil {
				a.out.Dim("Nothing to migrate.")
				return nil
			}
			a.out.Success("Migrated %q as %s in %s", doc.Title, doc.ID, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
