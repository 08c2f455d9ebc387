package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/chainfile/internal/config"
	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
	"github.com/roach88/chainfile/internal/retrieve"
	"github.com/roach88/chainfile/internal/store"
)

// session is the per-invocation wiring shared by the commands: resolved
// configuration, logger, metrics and, on demand, the ledger and database.
type session struct {
	opts    *RootOptions
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	out     *OutputFormatter
	source  ledger.Source
	db      *store.Store
}

// openSession loads configuration and applies flag overrides. Flags win
// over the environment, which wins over the config file.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	var envFiles []string
	if opts.EnvFile != "" {
		envFiles = []string{opts.EnvFile}
	}
	cfg, err := config.Load(opts.ConfigPath, envFiles...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Chain != "" {
		cfg.Chain = opts.Chain
	}
	if opts.NodeURL != "" {
		cfg.NodeURL = opts.NodeURL
	}
	if opts.WorkDir != "" {
		cfg.WorkDir = opts.WorkDir
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.MetricsFile != "" {
		cfg.MetricsFile = opts.MetricsFile
	}
	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logWriter := opts.LogWriter
	if logWriter == nil {
		logWriter = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: logLevel}))

	s := &session{
		opts:    opts,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		out: &OutputFormatter{
			Format:  opts.Format,
			Writer:  cmd.OutOrStdout(),
			Verbose: opts.Verbose,
		},
	}
	return s, nil
}

// Close releases the database and writes the metrics textfile.
func (s *session) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("error closing database", "error", err)
		}
	}
	if s.cfg.MetricsFile != "" {
		if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
			s.logger.Error("error writing metrics", "path", s.cfg.MetricsFile, "error", err)
		}
	}
}

// ledger returns the injected source or connects to the configured node.
func (s *session) ledger() (ledger.Source, error) {
	if s.source != nil {
		return s.source, nil
	}
	if s.opts.Source != nil {
		s.source = s.opts.Source
		return s.source, nil
	}
	client, err := newNodeClient(s.cfg, s.logger, s.metrics)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure node client", err)
	}
	s.source = client
	return client, nil
}

// database opens the provenance store when one is configured.
func (s *session) database() (*store.Store, error) {
	if s.db != nil || s.cfg.Database == "" {
		return s.db, nil
	}
	s.logger.Debug("opening database", "path", s.cfg.Database)
	db, err := store.Open(s.cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	s.db = db
	return db, nil
}

// service builds a retrieval service. online selects whether the ledger is
// connected.
func (s *session) service(online, refetch bool, outputDir string) (*retrieve.Service, error) {
	var source ledger.Source
	if online {
		var err error
		if source, err = s.ledger(); err != nil {
			return nil, err
		}
	}
	db, err := s.database()
	if err != nil {
		return nil, err
	}
	if outputDir == "" {
		outputDir = s.cfg.Output()
	}

	opts := retrieve.Options{
		Chain:       s.cfg.Chain,
		WorkDir:     s.cfg.WorkDir,
		OutputDir:   outputDir,
		Concurrency: s.cfg.Concurrency,
		Refetch:     refetch,
		Logger:      s.logger,
		Metrics:     s.metrics,
	}
	// A typed nil would make a non-nil Recorder.
	if db != nil {
		opts.Recorder = db
	}
	svc, err := retrieve.New(source, opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open work directory", err)
	}
	return svc, nil
}

// startID resolves the root identifier from args or the configured default.
func (s *session) startID(args []string) (model.Identifier, error) {
	raw := s.cfg.StartID
	if len(args) > 0 {
		raw = args[0]
	}
	if raw == "" {
		return model.Identifier{}, NewExitError(ExitCommandError,
			"no start id: pass one or set CHAINFILE_START_ID")
	}
	id, err := model.ParseIdentifier(raw)
	if err != nil {
		return model.Identifier{}, WrapExitError(ExitCommandError, "invalid start id", err)
	}
	return id, nil
}

// signalContext derives a context cancelled on SIGINT or SIGTERM. The
// command's own context is used as parent so tests can cancel it.
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// fail converts a command failure into an exit error and, in JSON mode,
// reports it with its failure class.
func (s *session) fail(message string, err error) error {
	cerr := commandError(message, err)
	var exitErr *ExitError
	if s.out.Format == "json" && errors.As(cerr, &exitErr) && exitErr.Kind != "" {
		if outErr := s.out.Error(exitErr.Kind, exitErr.Error(), nil); outErr != nil {
			return outErr
		}
	}
	return cerr
}
