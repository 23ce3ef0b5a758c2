package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"MediaSentiment/internal/config"
	"MediaSentiment/internal/forecast"
	"MediaSentiment/internal/metrics"
	"MediaSentiment/internal/notifier"
	"MediaSentiment/internal/pipeline"
	"MediaSentiment/internal/recorder"
	"MediaSentiment/internal/scheduler"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "sentiment-forecast",
		Short:         "Forecast the news sentiment index from macro series",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultPath, "path to the YAML config")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the forecast once and write the output CSV",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOnce(cmd.Context(), cfgPath)
			},
		},
		&cobra.Command{
			Use:   "schedule",
			Short: "Run the forecast on the configured cron schedule",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runScheduled(cmd.Context(), cfgPath)
			},
		},
	)
	return root
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Log.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}
}

// app holds everything a run needs plus the resources to release.
type app struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	notifier *notifier.TelegramNotifier
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}
}

func build(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.LoadCredential(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	log.Info().Str("config", cfgPath).Str("data_dir", cfg.DataDir).Str("order", cfg.Model.Order.String()).Msg("configuration loaded")

	a := &app{cfg: cfg}
	p := pipeline.New(cfg, pipeline.Bindings(cfg), forecast.NewARIMAX())

	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			p.Recorder = recorder.NewNoopRecorder()
		} else {
			p.Recorder = sr
			a.closers = append(a.closers, sr.Close)
		}
	} else {
		p.Recorder = recorder.NewNoopRecorder()
	}

	p.Metrics = metrics.New()
	p.PushgatewayURL = cfg.Metrics.PushgatewayURL

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		a.notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		p.Notifier = a.notifier
	}

	a.pipeline = p
	return a, nil
}

func runOnce(ctx context.Context, cfgPath string) error {
	a, err := build(cfgPath)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = a.pipeline.Run(ctx)
	return err
}

func runScheduled(ctx context.Context, cfgPath string) error {
	a, err := build(cfgPath)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := scheduler.NewScheduler(ctx, a.pipeline)
	if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	if a.notifier != nil {
		go a.notifier.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, running the forecast now")
		go sched.RunNow()
	}

	log.Info().Str("cron", a.cfg.Schedule.Cron).Msg("sentiment forecast is running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, stopping")
	cancel()
	return nil
}
