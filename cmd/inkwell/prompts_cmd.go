package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/prompts"
	"github.com/odvcencio/inkwell/pkg/terminal"
)

func newPromptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect and override system prompts",
		Long: `System prompts for generate, rewrite and translate can be overridden with
a file under $INKWELL_HOME/prompts/<kind>.md, or with INKWELL_PROMPT_<KIND>
(or INKWELL_PROMPT_<KIND>_FILE). The marker {{DEFAULT_PROMPT}} inside an
override expands to the built-in prompt.`,
	}
	cmd.AddCommand(newPromptsListCmd(), newPromptsShowCmd(), newPromptsSetCmd(), newPromptsResetCmd())
	return cmd
}

func newPromptsListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompt kinds and whether they are overridden",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos := prompts.ListPromptInfo()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			table := terminal.Table{Headers: []string{"KIND", "SOURCE", "PROMPT"}, Width: terminal.Width()}
			for _, info := range infos {
				source := "default"
				if info.Overridden {
					source = "override"
				}
				table.Rows = append(table.Rows, []string{info.Kind, source, info.Effective})
			}
			terminal.NewWithOutput(cmd.OutOrStdout()).Println("%s", table.Render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newPromptsShowCmd() *cobra.Command {
	var showDefault bool
	cmd := &cobra.Command{
		Use:   "show <kind>",
		Short: "Print the effective prompt for a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := promptInfo(args[0])
			if err != nil {
				return err
			}
			out := terminal.NewWithOutput(cmd.OutOrStdout())
			if showDefault {
				out.Println("%s", info.Default)
				return nil
			}
			out.Println("%s", info.Effective)
			if info.Overridden {
				out.Dim("(overridden; `inkwell prompts reset %s` restores the default)", info.Kind)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDefault, "default", false, "Print the built-in prompt instead")
	return cmd
}

func newPromptsSetCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set <kind> [text]",
		Short: "Override a system prompt",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := promptInfo(args[0])
			if err != nil {
				return err
			}
			var content string
			switch {
			case file != "":
				content, err = readInput(cmd, file)
				if err != nil {
					return err
				}
			case len(args) == 2:
				content = args[1]
			default:
				content, err = readInput(cmd, "-")
				if err != nil {
					return err
				}
			}
			if strings.TrimSpace(content) == "" {
				return apperrors.New(apperrors.ErrCodeInvalidInput, "empty prompt override").
					WithUserMessage("The override is empty. Use `inkwell prompts reset` to restore the default.")
			}
			if err := prompts.SaveOverride(info.Kind, content); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "save prompt override")
			}
			terminal.NewWithOutput(cmd.OutOrStdout()).Success("Overrode %s prompt", info.Kind)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Read the override from a file (- for stdin)")
	return cmd
}

func newPromptsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <kind>",
		Short: "Remove a stored prompt override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := promptInfo(args[0])
			if err != nil {
				return err
			}
			if err := prompts.DeleteOverride(info.Kind); err != nil {
				return apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "delete prompt override")
			}
			terminal.NewWithOutput(cmd.OutOrStdout()).Success("Restored default %s prompt", info.Kind)
			return nil
		},
	}
}

func promptInfo(kind string) (prompts.PromptInfo, error) {
	info, err := prompts.PromptInfoFor(strings.ToLower(strings.TrimSpace(kind)))
	if err != nil {
		return prompts.PromptInfo{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "unknown prompt kind").
			WithUserMessage("Unknown prompt kind " + kind + ". Valid kinds: " + strings.Join(promptKinds(), ", ") + ".")
	}
	return info, nil
}

func promptKinds() []string {
	var kinds []string
	for _, info := range prompts.ListPromptInfo() {
		kinds = append(kinds, info.Kind)
	}
	return kinds
}
