package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/qualgate/internal/catalog"
	"github.com/ShayCichocki/qualgate/internal/config"
	"github.com/ShayCichocki/qualgate/internal/escalation"
	"github.com/ShayCichocki/qualgate/internal/executor"
	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/internal/pipeline"
	"github.com/ShayCichocki/qualgate/internal/responsibility"
	"github.com/ShayCichocki/qualgate/internal/state"
	"github.com/ShayCichocki/qualgate/internal/validator"
)

// app holds everything a command needs, opened from configuration.
type app struct {
	cfg      *config.Config
	db       *state.DB
	logger   *logging.DebugLogger
	audit    *logging.AuditLog
	events   *executor.EventEmitter
	pipeline *pipeline.Pipeline
}

type appOptions struct {
	// events enables the executor event stream for the progress view.
	events bool
}

// loadConfig loads configuration for the --repo/--config flags.
func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		cfg, err := config.LoadFromPath(path)
		if err != nil {
			return nil, err
		}
		if repo := viper.GetString("repo"); repo != "" {
			cfg.Root = repo
		}
		return cfg, nil
	}

	repo := viper.GetString("repo")
	if repo == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		repo = cwd
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return nil, fmt.Errorf("resolve repo path: %w", err)
	}
	return config.LoadFrom(abs)
}

func openApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{cfg: cfg}

	if viper.GetBool("verbose") {
		a.logger = logging.NewWriterLogger(os.Stderr)
	} else if a.logger, err = logging.NewDebugLogger(cfg.LogPath()); err != nil {
		return nil, err
	}

	a.audit, err = logging.OpenAuditLog(filepath.Join(cfg.Root, ".qualgate", "logs", "audit.log"))
	if err != nil {
		a.close()
		return nil, err
	}

	a.db, err = state.Open(cfg.StatePath())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open state: %w", err)
	}
	if err := a.db.Migrate(); err != nil {
		a.close()
		return nil, fmt.Errorf("migrate state: %w", err)
	}

	pipeOpts := pipeline.Options{
		Store:            a.db,
		Auditor:          a.audit,
		Logger:           a.logger,
		CriterionTimeout: cfg.Execution.CriterionTimeout,
		ReviewTTL:        cfg.Execution.ManualTimeout,
		PassThreshold:    cfg.Execution.PassThreshold,
	}

	if cfg.Catalog.Path != "" {
		if pipeOpts.Catalog, err = catalog.LoadFile(cfg.Resolve(cfg.Catalog.Path)); err != nil {
			a.close()
			return nil, err
		}
	}
	if cfg.Directory.Path != "" {
		dir, err := responsibility.LoadDirectory(cfg.Resolve(cfg.Directory.Path))
		if err != nil {
			a.close()
			return nil, err
		}
		pipeOpts.Directory = dir
	}

	notifiers := escalation.MultiNotifier{escalation.NewLogNotifier(a.logger)}
	if cfg.Notify.Dir != "" {
		fn, err := escalation.NewFileNotifier(cfg.Resolve(cfg.Notify.Dir))
		if err != nil {
			a.close()
			return nil, err
		}
		notifiers = append(notifiers, fn)
	}
	pipeOpts.Notifier = notifiers

	if cfg.Recommender.Enabled {
		rec, err := newRecommender(ctx, cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		pipeOpts.Recommender = rec
	}

	if opts.events {
		a.events = executor.NewEventEmitter(100, a.logger)
		pipeOpts.Events = a.events
	}

	a.pipeline, err = pipeline.New(ctx, pipeOpts)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func newRecommender(ctx context.Context, cfg *config.Config) (*validator.AnthropicRecommender, error) {
	rc := validator.RecommenderConfig{
		Model:         cfg.Recommender.Model,
		UseAWSBedrock: cfg.Recommender.UseBedrock,
		AWSRegion:     cfg.Recommender.AWSRegion,
		AWSProfile:    cfg.Recommender.AWSProfile,
	}
	if !rc.UseAWSBedrock {
		key, err := config.GetAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("recommender: %w", err)
		}
		if err := config.ValidateAPIKey(key); err != nil {
			return nil, fmt.Errorf("recommender: %w", err)
		}
		rc.APIKey = key
	}
	return validator.NewAnthropicRecommender(ctx, rc)
}

func (a *app) close() {
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.audit != nil {
		a.audit.Close()
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
