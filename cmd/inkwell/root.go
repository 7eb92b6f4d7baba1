package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	verbose    bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "inkwell",
		Short: "AI-assisted writing from the terminal",
		Long: `Inkwell keeps a local library of HTML documents and drafts, rewrites
and translates them with a streaming language model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(err, exitUsage)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a config file (default: ~/.inkwell/config.yaml and ./.inkwell/config.yaml)")
	flags.StringVar(&opts.dbPath, "db", "", "Path to the document database")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug events to stderr")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(
		newNewCmd(opts),
		newListCmd(opts),
		newShowCmd(opts),
		newDeleteCmd(opts),
		newMigrateCmd(opts),
		newGenerateCmd(opts),
		newRewriteCmd(opts),
		newTranslateCmd(opts),
		newEditCmd(opts),
		newModelsCmd(opts),
		newTemplatesCmd(),
		newPromptsCmd(),
		newSettingsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}
