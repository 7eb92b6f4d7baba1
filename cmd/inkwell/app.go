package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/inkwell/pkg/autosave"
	"github.com/odvcencio/inkwell/pkg/completion"
	"github.com/odvcencio/inkwell/pkg/config"
	"github.com/odvcencio/inkwell/pkg/document"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/model"
	"github.com/odvcencio/inkwell/pkg/paths"
	"github.com/odvcencio/inkwell/pkg/session"
	"github.com/odvcencio/inkwell/pkg/storage"
	"github.com/odvcencio/inkwell/pkg/telemetry"
	"github.com/odvcencio/inkwell/pkg/terminal"
)

// app holds the process-wide dependencies of a command invocation.
type app struct {
	cfg       *config.Config
	db        *storage.Store
	docs      *document.Store
	logger    *logging.Logger
	hub       *telemetry.Hub
	out       *terminal.Writer
	sessionID string
}

func loadConfig(opts *rootOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(paths.ExpandHome(opts.configPath))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "load config").
			WithUserMessage(err.Error())
	}
	if opts.dbPath != "" {
		cfg.Storage.Path = opts.dbPath
	}
	cfg.Storage.Path = paths.ExpandHome(cfg.Storage.Path)
	return cfg, nil
}

func openDatabase(path string) (*storage.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "create data directory")
	}
	db, err := storage.New(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "open database").
			WithUserMessage(fmt.Sprintf("Could not open the document database at %s.", path))
	}
	return db, nil
}

// openApp loads configuration, opens the database and overlays persisted
// settings. base prefixes the session id used for the session log.
func openApp(cmd *cobra.Command, opts *rootOptions, base string) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	settings, err := db.GetSettings(config.SettingKeys)
	if err != nil {
		_ = db.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "read settings")
	}
	cfg.ApplySettings(settings)

	sessionID := session.GenerateSessionID(base)
	level := logging.ParseLevel(cfg.Logging.Level)
	var console io.Writer
	if opts.verbose {
		level = logging.LevelDebug
		console = cmd.ErrOrStderr()
	} else if cfg.Logging.Console {
		console = cmd.ErrOrStderr()
	}
	logger, err := logging.New(logging.Config{
		Level:     level,
		Pretty:    cfg.Logging.Pretty || (console != nil && terminal.IsInteractive()),
		Output:    console,
		Dir:       paths.ExpandHome(cfg.Logging.Dir),
		SessionID: sessionID,
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, warning := range cfg.ValidationWarnings() {
		logger.Warn(logging.CategoryConfig, "config.warning", warning, nil)
	}

	hub := telemetry.NewHub()
	db.AddObserver(session.StorageBridge(hub))
	docs := document.NewStore(db,
		document.WithLogger(logger),
		document.WithHub(hub),
		document.WithPreviewLength(cfg.Storage.PreviewLength),
	)

	return &app{
		cfg:       cfg,
		db:        db,
		docs:      docs,
		logger:    logger,
		hub:       hub,
		out:       terminal.NewWithOutput(cmd.OutOrStdout()),
		sessionID: sessionID,
	}, nil
}

func (a *app) Close() error {
	if n := a.hub.Dropped(); n > 0 {
		a.logger.Debug(logging.CategorySession, "telemetry.dropped", "telemetry events dropped", map[string]any{"count": n})
	}
	a.hub.Close()
	return errors.Join(a.logger.Close(), a.db.Close())
}

func (a *app) completionClient() *completion.Client {
	return completion.NewClient(a.cfg.Resolve(),
		completion.WithLogger(a.logger),
		completion.WithHub(a.hub),
		completion.WithRewriteContextLimit(a.cfg.Rewrite.ContextLimit),
		completion.WithProviderOptions(model.Options{
			Logger:             a.logger,
			NetworkLogsEnabled: a.cfg.Diagnostics.NetworkLogsEnabled,
			LogDir:             paths.ExpandHome(a.cfg.Logging.Dir),
		}),
	)
}

func (a *app) openSession(client session.Completer, extra ...autosave.Option) (*session.Session, error) {
	asOpts := append([]autosave.Option{autosave.WithDelay(a.cfg.Autosave.Debounce)}, extra...)
	return session.Open(a.docs, client,
		session.WithID(a.sessionID),
		session.WithLogger(a.logger),
		session.WithHub(a.hub),
		session.WithAutosave(asOpts...),
	)
}

// focus switches s to id, or keeps the startup document when id is empty.
func focus(s *session.Session, id string) (document.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.Active(), nil
	}
	return s.Switch(id)
}

// readInput returns the contents of path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(paths.ExpandHome(path))
	return string(data), err
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
