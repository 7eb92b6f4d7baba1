package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/odvcencio/inkwell/pkg/completion"
	"github.com/odvcencio/inkwell/pkg/content"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/model"
	"github.com/odvcencio/inkwell/pkg/paths"
	"github.com/odvcencio/inkwell/pkg/prompts"
	"github.com/odvcencio/inkwell/pkg/rewrite"
	"github.com/odvcencio/inkwell/pkg/session"
	"github.com/odvcencio/inkwell/pkg/terminal"
)

// streamPrinter shows a spinner until the first fragment arrives, then
// echoes fragments as they stream.
type streamPrinter struct {
	out     *terminal.Writer
	spinner *terminal.Spinner
	once    sync.Once
	quiet   bool
}

func newStreamPrinter(cmd *cobra.Command, out *terminal.Writer, message string, quiet bool) *streamPrinter {
	p := &streamPrinter{out: out, quiet: quiet}
	if terminal.IsInteractive() {
		p.spinner = terminal.NewSpinner(cmd.ErrOrStderr(), message)
		p.spinner.Start()
	}
	return p
}

func (p *streamPrinter) fragment(s string) {
	p.stopSpinner()
	if !p.quiet {
		p.out.Stream(s)
	}
}

func (p *streamPrinter) finish(printed bool) {
	p.stopSpinner()
	if printed && !p.quiet {
		p.out.StreamEnd()
	}
}

func (p *streamPrinter) stopSpinner() {
	p.once.Do(func() {
		if p.spinner != nil {
			p.spinner.Stop()
		}
	})
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

// buildPrompt returns the generation prompt from a template or the free
// text arguments.
func buildPrompt(args []string, templateID string, values map[string]string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if templateID == "" {
		return text, nil
	}
	tpl, ok := prompts.LookupTemplate(templateID)
	if !ok {
		ids := make([]string, 0)
		for _, t := range prompts.Templates() {
			ids = append(ids, t.ID)
		}
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "unknown template").
			WithUserMessage(fmt.Sprintf("Unknown template %q (available: %s).", templateID, strings.Join(ids, ", ")))
	}
	filled := make(map[string]string, len(values)+1)
	for k, v := range values {
		filled[k] = v
	}
	if _, ok := filled["TOPIC"]; !ok && text != "" {
		filled["TOPIC"] = text
	}
	return tpl.Fill(filled), nil
}

func loadAttachments(files []string) ([]model.Attachment, error) {
	out := make([]model.Attachment, 0, len(files))
	for _, f := range files {
		path := paths.ExpandHome(f)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "read attachment").
				WithUserMessage(fmt.Sprintf("Could not read attachment %s.", f))
		}
		mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = strings.TrimSpace(mimeType[:i])
		}
		out = append(out, model.Attachment{Name: filepath.Base(path), MIMEType: mimeType, Data: data})
	}
	return out, nil
}

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var (
		templateID string
		values     map[string]string
		attach     []string
		quiet      bool
	)
	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Draft a new document from a prompt",
		Long: `Generate streams a new draft into a document. When the most recent
document already has content, a new document is started.

Templates fill their [PLACEHOLDERS] from --set KEY=VALUE; the free text
arguments fill [TOPIC].`,
		Example: `  inkwell generate "a short essay on tide pools"
  inkwell generate --template poem "autumn in Lisbon"
  inkwell generate --template nyt --set TOPIC="urban beekeeping" --attach hive.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := buildPrompt(args, templateID, values)
			if err != nil {
				return err
			}
			attachments, err := loadAttachments(attach)
			if err != nil {
				return err
			}

			a, err := openApp(cmd, opts, "generate")
			if err != nil {
				return err
			}
			defer a.Close()

			client := a.completionClient()
			defer client.Close()
			s, err := a.openSession(client)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signalContext(cmd)
			defer stop()

			printer := newStreamPrinter(cmd, a.out, "Drafting", quiet)
			printed := false
			doc, genErr := s.Generate(ctx, completion.GenerateRequest{Prompt: prompt, Attachments: attachments}, func(f string) {
				printed = true
				printer.fragment(f)
			})
			printer.finish(printed)

			if err := s.Flush(); err != nil {
				a.out.Warn("could not save the draft: %s", friendlyError(err))
			}
			if genErr != nil {
				if doc.Body != "" {
					a.out.Warn("Generation stopped early; the partial draft was kept in %s.", doc.ID)
				}
				return genErr
			}
			a.out.Success("Saved %q as %s", doc.Title, doc.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&templateID, "template", "t", "", "Start from a prompt template (see `inkwell templates`)")
	cmd.Flags().StringToStringVar(&values, "set", nil, "Template placeholder values, e.g. --set TOPIC=tides")
	cmd.Flags().StringSliceVar(&attach, "attach", nil, "Files to send with the prompt (images are analysed by Gemini only)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo the draft while it streams")
	return cmd
}

func newRewriteCmd(opts *rootOptions) *cobra.Command {
	var (
		selection  string
		occurrence int
		modeName   string
		custom     string
	)
	modes := make([]string, 0, len(rewrite.Modes))
	for _, m := range rewrite.Modes {
		modes = append(modes, string(m))
	}
	sort.Strings(modes)

	cmd := &cobra.Command{
		Use:   "rewrite [id]",
		Short: "Rewrite a passage of a document in place",
		Long: `Rewrite replaces the selected text with a streamed rewrite. If the
stream fails, the original text is restored and the document is unchanged.

Modes: ` + strings.Join(modes, ", "),
		Example: `  inkwell rewrite 01J9Z... --select "It was a dark and stormy night" --mode shorten
  inkwell rewrite --select "teh results" --mode custom --instruction "Fix the typo only"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := rewrite.ParseMode(modeName)
			if err != nil {
				return withExitCode(err, exitUsage)
			}
			if custom != "" && modeName == string(rewrite.ModeImprove) && !cmd.Flags().Changed("mode") {
				mode = rewrite.ModeCustom
			}

			a, err := openApp(cmd, opts, "rewrite")
			if err != nil {
				return err
			}
			defer a.Close()

			client := a.completionClient()
			defer client.Close()
			s, err := a.openSession(client)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := focus(s, argOrEmpty(args))
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			printer := newStreamPrinter(cmd, a.out, "Rewriting", true)
			res, err := s.Rewrite(ctx, session.RewriteRequest{
				Selection: content.Selection{Text: selection, Occurrence: occurrence},
				Mode:      mode,
				Custom:    custom,
				OnProgress: func(string) {
					printer.fragment("")
				},
			})
			printer.finish(false)
			if err != nil {
				if res.State == rewrite.StateFallback {
					a.out.Warn("Rewrite failed; the original text was restored.")
				}
				return err
			}
			if err := s.Flush(); err != nil {
				return err
			}

			a.out.Dim("- %s", content.PlainText(res.Original))
			a.out.Info("+ %s", content.PlainText(res.Replacement))
			a.out.Success("Rewrote %d characters in %s", len([]rune(res.Original)), doc.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&selection, "select", "s", "", "Exact text to rewrite (required)")
	cmd.Flags().IntVar(&occurrence, "occurrence", 0, "Which match of --select to use, counting from 0")
	cmd.Flags().StringVarP(&modeName, "mode", "m", string(rewrite.ModeImprove), "Rewrite mode")
	cmd.Flags().StringVarP(&custom, "instruction", "i", "", "Instruction for custom mode")
	_ = cmd.MarkFlagRequired("select")
	return cmd
}

func newTranslateCmd(opts *rootOptions) *cobra.Command {
	var (
		language string
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:     "translate [id]",
		Short:   "Translate a whole document, keeping its HTML structure",
		Example: `  inkwell translate 01J9Z... --to Spanish`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, "translate")
			if err != nil {
				return err
			}
			defer a.Close()

			client := a.completionClient()
			defer client.Close()
			s, err := a.openSession(client)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := focus(s, argOrEmpty(args)); err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			printer := newStreamPrinter(cmd, a.out, "Translating into "+language, quiet)
			printed := false
			doc, err := s.Translate(ctx, language, func(f string) {
				printed = true
				printer.fragment(f)
			})
			printer.finish(printed)
			if err != nil {
				return err
			}
			if err := s.Flush(); err != nil {
				return err
			}
			a.out.Success("Translated %s into %s", doc.ID, language)
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "to", "", "Target language (required)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not echo the translation while it streams")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
