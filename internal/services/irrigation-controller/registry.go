package irrigation_controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/config"
	"github.com/apogeecmb/smartSprinkler/internal/services/aggregator"
	"github.com/apogeecmb/smartSprinkler/internal/services/forecast"
	"github.com/apogeecmb/smartSprinkler/internal/services/notify"
	"github.com/apogeecmb/smartSprinkler/internal/services/persistence"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
	"github.com/apogeecmb/smartSprinkler/pkg/rabbitmq"
)

// Factories are keyed by the type tag from the config file. "none" is handled by
// Build and never reaches a factory.
type (
	rainfallFactory func(ctx context.Context, cfg *config.Config, log logx.Logger) (aggregator.RainfallSource, io.Closer, error)
	forecastFactory func(ctx context.Context, cfg *config.Config, log logx.Logger) (forecast.Source, error)
	notifierFactory func(ctx context.Context, cfg *config.Config, log logx.Logger) (notify.Sink, io.Closer, error)
	storeFactory    func(ctx context.Context, cfg *config.Config, log logx.Logger) (StatusStore, io.Closer, error)
)

var rainfallFactories = map[string]rainfallFactory{
	config.RainfallWeeWX: func(_ context.Context, cfg *config.Config, log logx.Logger) (aggregator.RainfallSource, io.Closer, error) {
		w, err := persistence.OpenWeeWX(cfg.Rainfall.WeeWX.Path, log)
		if err != nil {
			return nil, nil, err
		}
		return w, w, nil
	},
	config.RainfallInflux: func(_ context.Context, cfg *config.Config, log logx.Logger) (aggregator.RainfallSource, io.Closer, error) {
		r, err := persistence.NewInfluxRain(influxOptions(cfg.Rainfall.Influx), log)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	},
}

var forecastFactories = map[string]forecastFactory{
	config.ForecastOpenWeather: func(_ context.Context, cfg *config.Config, _ logx.Logger) (forecast.Source, error) {
		o := cfg.Forecast.OpenWeather
		return forecast.NewOpenWeather(forecast.OpenWeatherOptions{
			APIKey:       o.APIKey,
			BaseURL:      o.BaseURL,
			Timeout:      config.Duration(o.Timeout, 10*time.Second),
			MaxFailures:  o.MaxFailures,
			BreakerReset: config.Duration(o.BreakerReset, 5*time.Minute),
		}), nil
	},
}

var notifierFactories = map[string]notifierFactory{
	config.NotifierMQTT: func(ctx context.Context, cfg *config.Config, log logx.Logger) (notify.Sink, io.Closer, error) {
		m := cfg.Notifier.MQTT
		client, err := rabbitmq.NewRabbitMQConn(ctx, &rabbitmq.RabbitMQConfig{
			Host:     m.Host,
			Port:     m.Port,
			User:     m.User,
			Password: m.Password,
			ClientID: m.ClientID,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		pub := rabbitmq.NewPublisher(client, m.Topic, 1)
		return notify.NewMQTTSink(pub, m.Topic), closerFunc(func() error { pub.Close(); return nil }), nil
	},
	config.NotifierWebhook: func(_ context.Context, cfg *config.Config, _ logx.Logger) (notify.Sink, io.Closer, error) {
		w := cfg.Notifier.Webhook
		return notify.NewWebhookSink(notify.WebhookOptions{
			URL:        w.URL,
			Key:        w.Key,
			RatePerSec: w.RatePerSec,
			Timeout:    config.Duration(w.Timeout, 10*time.Second),
		}), nil, nil
	},
}

var storeFactories = map[string]storeFactory{
	config.StoreFile: func(_ context.Context, cfg *config.Config, _ logx.Logger) (StatusStore, io.Closer, error) {
		s, err := persistence.NewFileStore(cfg.StatusStore.File.Dir)
		return s, nil, err
	},
	config.StoreInflux: func(_ context.Context, cfg *config.Config, log logx.Logger) (StatusStore, io.Closer, error) {
		s, err := persistence.NewInfluxStatus(influxOptions(cfg.StatusStore.Influx), log)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	},
	config.StoreS3: func(ctx context.Context, cfg *config.Config, _ logx.Logger) (StatusStore, io.Closer, error) {
		o := cfg.StatusStore.S3
		s, err := persistence.NewS3Store(ctx, persistence.S3Options{
			Bucket:          o.Bucket,
			Region:          o.Region,
			Endpoint:        o.Endpoint,
			Prefix:          o.Prefix,
			PathStyle:       o.PathStyle,
			AccessKeyID:     o.AccessKeyID,
			SecretAccessKey: o.SecretAccessKey,
		})
		return s, nil, err
	},
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func influxOptions(c config.InfluxConfig) persistence.InfluxOptions {
	return persistence.InfluxOptions{
		URL:         c.URL,
		Token:       c.Token,
		Org:         c.Org,
		Bucket:      c.Bucket,
		Measurement: c.Measurement,
		Field:       c.Field,
	}
}

// Built holds the collaborators created by Build and whatever must be closed on shutdown.
type Built struct {
	Collaborators
	closers []io.Closer
}

// Close releases every collaborator in reverse creation order.
func (b *Built) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Built) keep(c io.Closer) {
	if c != nil {
		b.closers = append(b.closers, c)
	}
}

// Build creates the collaborators named by cfg. On error everything created so far
// is closed.
func Build(ctx context.Context, cfg *config.Config, log logx.Logger) (_ *Built, err error) {
	b := &Built{}
	defer func() {
		if err != nil {
			if cerr := b.Close(); cerr != nil {
				log.Warn("close after failed build", logx.Err(cerr))
			}
		}
	}()

	if _, bad := ParseAnchors(cfg.RunTimes); len(bad) > 0 {
		for _, e := range bad {
			log.Warn("run time ignored", logx.Err(e))
		}
	}

	switch cfg.Controller.Type {
	case config.ControllerGRPC:
		dc, err := DialDevice(cfg.Controller.Address, config.Duration(cfg.Controller.Timeout, 10*time.Second), log)
		if err != nil {
			return nil, err
		}
		b.keep(dc)
		b.Device = dc
		b.History = dc
	default:
		log.Warn("no controller configured, running dry")
		b.Device = dryRunController{log: log.With(logx.String("component", "device"))}
	}

	if t := cfg.Rainfall.Type; t != config.TypeNone {
		f, ok := rainfallFactories[t]
		if !ok {
			return nil, fmt.Errorf("rainfall: unknown type %q", t)
		}
		src, c, err := f(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("rainfall %s: %w", t, err)
		}
		b.keep(c)
		b.Rainfall = src
	}

	if t := cfg.Forecast.Type; t != config.TypeNone {
		f, ok := forecastFactories[t]
		if !ok {
			return nil, fmt.Errorf("forecast: unknown type %q", t)
		}
		src, err := f(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("forecast %s: %w", t, err)
		}
		b.Forecast = src
	}

	if t := cfg.Notifier.Type; t != config.TypeNone {
		f, ok := notifierFactories[t]
		if !ok {
			return nil, fmt.Errorf("notifier: unknown type %q", t)
		}
		sink, c, err := f(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("notifier %s: %w", t, err)
		}
		b.keep(c)
		b.Notifier = notify.New(sink, config.Duration(cfg.Notifier.DedupTTL, time.Hour), log)
	}

	if t := cfg.StatusStore.Type; t != config.TypeNone {
		f, ok := storeFactories[t]
		if !ok {
			return nil, fmt.Errorf("status store: unknown type %q", t)
		}
		s, c, err := f(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("status store %s: %w", t, err)
		}
		b.keep(c)
		b.Store = s
	}

	log.Info("collaborators ready",
		logx.String("rainfall", cfg.Rainfall.Type),
		logx.String("forecast", cfg.Forecast.Type),
		logx.String("controller", cfg.Controller.Type),
		logx.String("notifier", cfg.Notifier.Type),
		logx.String("status_store", cfg.StatusStore.Type))
	return b, nil
}
