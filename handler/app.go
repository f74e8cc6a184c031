package handler

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pyama86/dispatchd/calendar"
	"github.com/pyama86/dispatchd/domain/repository"
	"github.com/pyama86/dispatchd/duty"
	"github.com/pyama86/dispatchd/incident"
	"github.com/pyama86/dispatchd/notifier"
	"github.com/slack-go/slack"
)

// App はサーバーと CLI で共有する依存関係
type App struct {
	Config     *repository.Config
	Repo       repository.Repository
	Duties     *duty.Service
	Scheduler  *duty.Scheduler
	Monitor    *duty.Monitor
	Coverage   *duty.Coverage
	Transfer   *duty.Transfer
	Incidents  *incident.Engine
	Dispatcher *notifier.Dispatcher
	Exporter   repository.ReportExporter

	closers []func()
}

func NewApp(cfg *repository.Config, store repository.Store, channels ...notifier.Channel) (*App, error) {
	cal, err := calendar.New(cfg.Location(), cfg.Calendar.ExtraHolidays, cfg.Calendar.ExtraWorkdays)
	if err != nil {
		return nil, err
	}
	repo := repository.NewRepository(store, cfg)
	dispatcher := notifier.NewDispatcher(repo, repo, notifier.Options{
		RatePerSec: cfg.Notifier.RatePerSec,
		QueueSize:  cfg.Notifier.QueueSize,
	}, channels...)

	svc := duty.NewService(repo, cal)
	return &App{
		Config:     cfg,
		Repo:       repo,
		Duties:     svc,
		Scheduler:  duty.NewScheduler(svc, dispatcher),
		Monitor:    duty.NewMonitor(svc, dispatcher, duty.MonitorOptions(cfg.Monitor)),
		Coverage:   duty.NewCoverage(svc, dispatcher, duty.CoverageOptions(cfg.Coverage)),
		Transfer:   duty.NewTransfer(svc, dispatcher),
		Incidents:  incident.NewEngine(svc, dispatcher),
		Dispatcher: dispatcher,
		closers:    []func(){func() { _ = store.Close() }},
	}, nil
}

// OpenApp は設定ファイルと環境変数から App を組み立てる
func OpenApp(configPath string) (*App, error) {
	cfg, err := repository.NewConfigRepository(configPath)
	if err != nil {
		return nil, err
	}
	store, err := repository.OpenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	var (
		channels []notifier.Channel
		closers  []func()
	)
	if token := os.Getenv("SLACK_BOT_TOKEN"); token != "" {
		slackRepository := repository.NewSlackRepository(slack.New(token))
		channels = append(channels, notifier.NewSlackChannel(slackRepository))
		closers = append(closers, slackRepository.Stop)
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		telegramRepository, err := repository.NewTelegramRepository(token)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		channels = append(channels, notifier.NewTelegramChannel(telegramRepository))
	}
	if len(channels) == 0 {
		slog.Warn("No notification channel is configured. Notifications are only stored.")
	}

	app, err := NewApp(cfg, store, channels...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	app.closers = append(app.closers, closers...)

	if os.Getenv("CONFLUENCE_USERNAME") != "" && os.Getenv("CONFLUENCE_PASSWORD") != "" && cfg.Confluence.Domain != "" {
		r, err := repository.NewConfluenceRepository(
			cfg.Confluence.Domain,
			os.Getenv("CONFLUENCE_USERNAME"),
			os.Getenv("CONFLUENCE_PASSWORD"),
			cfg.Confluence.Space,
			cfg.Confluence.AncestorID,
		)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to setup confluence: %w", err)
		}
		app.Exporter = r
	}
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
