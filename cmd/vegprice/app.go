package main

import (
	"fmt"

	"github.com/rewired-gh/vegprice/internal/api"
	"github.com/rewired-gh/vegprice/internal/config"
	"github.com/rewired-gh/vegprice/internal/ingest"
	"github.com/rewired-gh/vegprice/internal/logger"
	"github.com/rewired-gh/vegprice/internal/provider"
	"github.com/rewired-gh/vegprice/internal/storage"
	"github.com/rewired-gh/vegprice/internal/telegram"
	"github.com/rewired-gh/vegprice/internal/vfpck"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg      *config.Config
	files    *storage.Files
	client   *vfpck.Client
	journal  *storage.Journal
	telegram *telegram.Client
}

// options selects the optional components a command needs.
type options struct {
	journal  bool
	telegram bool
}

func newApp(opts options) (*app, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %q", *configPath)

	a := &app{
		cfg:   cfg,
		files: storage.NewFiles(cfg.Storage.DataDir),
		client: vfpck.NewClient(cfg.Source.BaseURL, vfpck.NewHTTPFetcher(vfpck.ClientConfig{
			Timeout:         cfg.Source.Timeout,
			RequestInterval: cfg.Source.RequestInterval,
			UserAgent:       cfg.Source.UserAgent,
		})),
	}

	logger.Debug("Data directory: %s", a.files.Dir())

	if opts.journal && cfg.Storage.DBPath != "" {
		a.journal, err = storage.OpenJournal(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run journal: %w", err)
		}
	}

	if opts.telegram && cfg.Telegram.Enabled {
		a.telegram, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else if opts.telegram {
		logger.Debug("Telegram notifications disabled")
	}

	return a, nil
}

func (a *app) Close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		logger.Error("Failed to close run journal: %v", err)
	}
}

func (a *app) pipeline() *ingest.Pipeline {
	var opts ingest.Options
	if a.journal != nil {
		opts.Journal = a.journal
	}
	if a.telegram != nil {
		opts.Notifier = a.telegram
	}
	return ingest.New(a.client, a.files, opts)
}

func (a *app) provider() (provider.Provider, error) {
	return provider.New(a.cfg.Provider.Mode, a.files, a.client)
}

func (a *app) handler() (*api.Handler, error) {
	p, err := a.provider()
	if err != nil {
		return nil, err
	}
	if a.journal != nil {
		return api.NewHandler(p, a.journal), nil
	}
	return api.NewHandler(p, nil), nil
}
