package app

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/dig"

	"github.com/pfrederiksen/umami-report/internal/config"
	"github.com/pfrederiksen/umami-report/internal/logger"
	"github.com/pfrederiksen/umami-report/internal/metrics"
	"github.com/pfrederiksen/umami-report/internal/notifier"
	"github.com/pfrederiksen/umami-report/internal/telegram"
	"github.com/pfrederiksen/umami-report/internal/umami"
)

// DryRunOutput is where the dry-run notifier prints the digest.
type DryRunOutput struct {
	io.Writer
}

func provideLogger(cfg *config.Config) (*logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logger.New(level, logger.Format(cfg.Log.Format), nil), nil
}

func provideUmamiClient(cfg *config.Config) (*umami.Client, error) {
	return umami.NewClient(cfg.Umami.APIURL, cfg.Umami.Timeout, nil)
}

func provideNotifier(cfg *config.Config, out DryRunOutput) (notifier.Notifier, error) {
	if cfg.Report.DryRun {
		return notifier.NewDryRunNotifier(out), nil
	}
	client, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.APIURL, nil)
	if err != nil {
		return nil, err
	}
	return notifier.NewTelegramNotifier(client), nil
}

func provideReporter(cfg *config.Config, client *umami.Client, n notifier.Notifier, m *metrics.Metrics, log *logger.Logger) (*Reporter, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return NewReporter(client, n, m, log, Options{
		Sites:          cfg.Umami.Sites,
		Credentials:    cfg.Credentials(),
		StartAt:        cfg.Umami.StartAt,
		EndAt:          cfg.Umami.EndAt,
		Concurrency:    cfg.Umami.Concurrency,
		Title:          cfg.Report.Title,
		Location:       loc,
		ResolveNames:   cfg.Report.ResolveNames,
		PushgatewayURL: cfg.PushgatewayURL,
	}), nil
}

// NewContainer wires every component of a report run from cfg. Dry-run
// digests are written to out, or stdout when out is nil.
func NewContainer(cfg *config.Config, out io.Writer) (*dig.Container, error) {
	if out == nil {
		out = os.Stdout
	}

	container := dig.New()

	if err := container.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, fmt.Errorf("failed to provide config: %w", err)
	}

	if err := container.Provide(func() DryRunOutput { return DryRunOutput{out} }); err != nil {
		return nil, fmt.Errorf("failed to provide output: %w", err)
	}

	if err := container.Provide(provideLogger); err != nil {
		return nil, fmt.Errorf("failed to provide logger: %w", err)
	}

	if err := container.Provide(metrics.New); err != nil {
		return nil, fmt.Errorf("failed to provide metrics: %w", err)
	}

	if err := container.Provide(provideUmamiClient); err != nil {
		return nil, fmt.Errorf("failed to provide umami client: %w", err)
	}

	if err := container.Provide(provideNotifier); err != nil {
		return nil, fmt.Errorf("failed to provide notifier: %w", err)
	}

	if err := container.Provide(provideReporter); err != nil {
		return nil, fmt.Errorf("failed to provide reporter: %w", err)
	}

	return container, nil
}
