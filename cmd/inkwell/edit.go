package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/inkwell/pkg/autosave"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/session"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

const metricsShutdownTimeout = 2 * time.Second

type editOptions struct {
	file        string
	title       string
	editor      string
	metricsAddr string
	keep        bool
}

func newEditCmd(opts *rootOptions) *cobra.Command {
	eo := &editOptions{}
	cmd := &cobra.Command{
		Use:   "edit [id]",
		Short: "Edit a document in an external editor with autosave",
		Long: `Edit writes the document body to an HTML file and watches it. Every
write is fed to the session, which saves after the autosave debounce.

If --editor (or $VISUAL / $EDITOR) is set, the editor is launched and the
session ends when it exits; otherwise edit until Ctrl-C. Pending changes
are saved on exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, "edit")
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.openSession(a.completionClient(), autosave.WithStatusListener(func(st autosave.SaveStatus) {
				a.out.SaveStatus(string(st))
			}))
			if err != nil {
				return err
			}
			if _, err := focus(s, argOrEmpty(args)); err != nil {
				_ = s.Close()
				return err
			}
			if eo.title != "" {
				s.SetTitle(eo.title)
			}
			eo.editor = firstNonEmpty(eo.editor, os.Getenv("VISUAL"), os.Getenv("EDITOR"))
			if eo.metricsAddr == "" {
				eo.metricsAddr = a.cfg.Diagnostics.MetricsAddr
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			runErr := runEdit(ctx, a, s, eo)
			if err := s.Close(); err != nil {
				a.out.Warn("final save failed: %s", friendlyError(err))
			}
			if runErr != nil {
				return runErr
			}
			a.out.Success("Saved %s", s.Active().ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&eo.file, "file", "", "Working file (default: a temp file named after the document)")
	cmd.Flags().StringVar(&eo.title, "title", "", "Set the document title")
	cmd.Flags().StringVar(&eo.editor, "editor", "", "Editor command to launch")
	cmd.Flags().StringVar(&eo.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address while editing")
	cmd.Flags().BoolVar(&eo.keep, "keep", false, "Keep the working file after exit")
	return cmd
}

func runEdit(ctx context.Context, a *app, s *session.Session, eo *editOptions) error {
	doc := s.Active()
	path := eo.file
	if path == "" {
		path = filepath.Join(os.TempDir(), "inkwell-"+doc.ID+".html")
	}
	if err := os.WriteFile(path, []byte(doc.Body), 0o600); err != nil {
		return err
	}
	if !eo.keep && eo.file == "" {
		defer os.Remove(path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Watch the directory: many editors save by renaming a new file over
	// the old one.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	a.out.Info("Editing %s (%s)", doc.ID, path)
	if eo.editor == "" {
		a.out.Dim("Press Ctrl-C to finish.")
	}

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error {
		return watchFile(ctx, watcher, path, s, a.logger)
	})

	if eo.metricsAddr != "" {
		metrics := telemetry.NewMetrics()
		g.Go(func() error {
			metrics.Run(ctx, a.hub)
			return nil
		})
		g.Go(func() error {
			return serveMetrics(ctx, eo.metricsAddr, metrics, a)
		})
	}

	if eo.editor != "" {
		g.Go(func() error {
			defer cancel()
			c, err := editorCommand(ctx, eo.editor, path)
			if err != nil {
				return err
			}
			c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
			if err := c.Run(); err != nil && ctx.Err() == nil {
				return err
			}
			// Pick up the editor's final write before the watcher stops.
			return syncFile(path, s)
		})
	}

	return g.Wait()
}

func watchFile(ctx context.Context, watcher *fsnotify.Watcher, path string, s *session.Session, logger *logging.Logger) error {
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := syncFile(path, s); err != nil {
				logger.Debug(logging.CategorySession, "edit.read_failed", err.Error(), map[string]any{"path": path})
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn(logging.CategorySession, "edit.watch_error", err.Error(), nil)
		}
	}
}

// syncFile feeds the file contents to the session when they differ from
// the working copy.
func syncFile(path string, s *session.Session) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if body := string(data); body != s.Active().Body {
		s.SetBody(body)
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, metrics *telemetry.Metrics, a *app) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.out.Dim("Metrics on http://%s/metrics", ln.Addr())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// editorCommand builds the editor invocation for path. The editor value may
// carry arguments, as in "code --wait".
func editorCommand(ctx context.Context, editor, path string) (*exec.Cmd, error) {
	fields := strings.Fields(editor)
	if len(fields) == 0 {
		return nil, withExitCode(apperrors.New(apperrors.ErrCodeInvalidInput, "editor command is empty"), exitUsage)
	}
	return exec.CommandContext(ctx, fields[0], append(fields[1:], path)...), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
