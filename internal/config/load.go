package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apogeecmb/smartSprinkler/internal/fault"
	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
)

const (
	defaultPeriodDays   = 7
	defaultMaxDays      = 3
	defaultMinProb      = 50
	defaultSchedule     = "@hourly"
	defaultHTTPAddr     = ":8080"
	defaultMQTTPort     = 1883
	defaultMQTTTopic    = "sprinkler/notifications"
	defaultStoreDir     = "/var/lib/smartSprinkler"
	defaultWebhookRate  = 1
	defaultCtrlTimeout  = "10s"
	defaultOWMTimeout   = "10s"
	defaultRainMeasure  = "rain"
	defaultRainField    = "sum"
	defaultNotifDedup   = "1h"
	defaultBreakerReset = "5m"
)

// Load reads a YAML or JSON config file, applies defaults and env overrides, and validates it.
// Every failure is fatal for the cycle.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fault.New(fault.Fatal, "config.load", err)
	}
	return Parse(path, b)
}

func Parse(path string, data []byte) (*Config, error) {
	jb, _, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, fault.New(fault.Fatal, "config.parse", err)
	}
	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fault.New(fault.Fatal, "config.parse", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data")
		}
		return nil, fault.New(fault.Fatal, "config.parse", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.PeriodDays <= 0 {
		c.PeriodDays = defaultPeriodDays
	}
	if c.MaxDaysBetweenWater <= 0 {
		c.MaxDaysBetweenWater = defaultMaxDays
	}
	if c.MinPrecipProbability <= 0 {
		c.MinPrecipProbability = defaultMinProb
	}
	if strings.TrimSpace(c.Schedule) == "" {
		c.Schedule = defaultSchedule
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = defaultHTTPAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Rainfall.Influx.Measurement == "" {
		c.Rainfall.Influx.Measurement = defaultRainMeasure
	}
	if c.Rainfall.Influx.Field == "" {
		c.Rainfall.Influx.Field = defaultRainField
	}
	if c.StatusStore.Influx.Measurement == "" {
		c.StatusStore.Influx.Measurement = "sprinkler_status"
	}
	if c.StatusStore.File.Dir == "" {
		c.StatusStore.File.Dir = defaultStoreDir
	}
	if c.Forecast.OpenWeather.Timeout == "" {
		c.Forecast.OpenWeather.Timeout = defaultOWMTimeout
	}
	if c.Forecast.OpenWeather.BreakerReset == "" {
		c.Forecast.OpenWeather.BreakerReset = defaultBreakerReset
	}
	if c.Forecast.OpenWeather.MaxFailures == 0 {
		c.Forecast.OpenWeather.MaxFailures = 3
	}
	if c.Controller.Timeout == "" {
		c.Controller.Timeout = defaultCtrlTimeout
	}
	if c.Notifier.MQTT.Port == 0 {
		c.Notifier.MQTT.Port = defaultMQTTPort
	}
	if c.Notifier.MQTT.Topic == "" {
		c.Notifier.MQTT.Topic = defaultMQTTTopic
	}
	if c.Notifier.MQTT.ClientID == "" {
		c.Notifier.MQTT.ClientID = "smartSprinkler-" + env("HOSTNAME", "local")
	}
	if c.Notifier.Webhook.RatePerSec <= 0 {
		c.Notifier.Webhook.RatePerSec = defaultWebhookRate
	}
	if c.Notifier.DedupTTL == "" {
		c.Notifier.DedupTTL = defaultNotifDedup
	}
	for _, t := range []*string{&c.Rainfall.Type, &c.Forecast.Type, &c.Controller.Type, &c.Notifier.Type, &c.StatusStore.Type} {
		*t = strings.ToLower(strings.TrimSpace(*t))
		if *t == "" {
			*t = TypeNone
		}
	}
}

// applyEnv lets secrets and deployment specifics come from the environment.
func (c *Config) applyEnv() {
	c.Forecast.OpenWeather.APIKey = env("OWM_API_KEY", c.Forecast.OpenWeather.APIKey)
	c.Rainfall.Influx.Token = env("INFLUX_TOKEN", c.Rainfall.Influx.Token)
	c.StatusStore.Influx.Token = env("INFLUX_TOKEN", c.StatusStore.Influx.Token)
	c.Notifier.MQTT.Host = env("RABBITMQ_HOST", c.Notifier.MQTT.Host)
	c.Notifier.MQTT.Port = envInt("RABBITMQ_PORT", c.Notifier.MQTT.Port)
	c.Notifier.MQTT.User = env("RABBITMQ_USER", c.Notifier.MQTT.User)
	c.Notifier.MQTT.Password = env("RABBITMQ_PASSWORD", c.Notifier.MQTT.Password)
	c.Notifier.Webhook.Key = env("WEBHOOK_KEY", c.Notifier.Webhook.Key)
	c.Controller.Address = env("DEVICE_GRPC_ADDR", c.Controller.Address)
	if v := strings.TrimSpace(os.Getenv("SPRINKLER_ENABLED")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = &b
		}
	}
}

// Validate checks the whole config and resolves zones. Problems are collected and
// returned as a single fatal error.
func (c *Config) Validate() error {
	var errs []error

	lvl, err := ParseReportLevel(c.Report)
	if err != nil {
		errs = append(errs, err)
	}
	c.report = lvl

	if c.MinRainAmount < 0 {
		errs = append(errs, errors.New("min_rain_amount must be >= 0"))
	}
	if c.MinPrecipProbability > 100 {
		errs = append(errs, errors.New("min_precip_probability must be <= 100"))
	}
	if len(c.RunTimes) == 0 {
		errs = append(errs, errors.New("run_times: at least one anchor time is required"))
	}
	if c.Location.Latitude < -90 || c.Location.Latitude > 90 || c.Location.Longitude < -180 || c.Location.Longitude > 180 {
		errs = append(errs, fmt.Errorf("location: invalid coordinates %f,%f", c.Location.Latitude, c.Location.Longitude))
	}
	if _, err := c.Location.Load(); err != nil {
		errs = append(errs, fmt.Errorf("location.timezone: %w", err))
	}

	c.zones = c.zones[:0]
	seen := map[int]bool{}
	if len(c.Zones) == 0 {
		errs = append(errs, errors.New("zones: at least one zone is required"))
	}
	for i, zc := range c.Zones {
		path := fmt.Sprintf("zones[%d]", i)
		if seen[zc.ID] {
			errs = append(errs, fmt.Errorf("%s: duplicate id %d", path, zc.ID))
		}
		seen[zc.ID] = true
		if zc.WeeklyRequirement < 0 || zc.DailyRequirement < 0 {
			errs = append(errs, fmt.Errorf("%s: requirements must be >= 0", path))
		}
		minRun, err := ParseDurationField(path+".min_run", zc.MinRun)
		if err != nil {
			errs = append(errs, err)
		}
		maxRun, err := ParseDurationField(path+".max_run", zc.MaxRun)
		if err != nil {
			errs = append(errs, err)
		}
		if maxRun > 0 && maxRun < minRun {
			errs = append(errs, fmt.Errorf("%s: max_run shorter than min_run", path))
		}
		c.zones = append(c.zones, entities.Zone{
			ID:                zc.ID,
			Name:              zc.Name,
			WateringRate:      zc.WateringRate,
			WeeklyRequirement: zc.WeeklyRequirement,
			MinRun:            minRun,
			MaxRun:            maxRun,
			DailyRequirement:  zc.DailyRequirement,
		})
	}

	durations := map[string]string{
		"forecast.openweather.timeout":       c.Forecast.OpenWeather.Timeout,
		"forecast.openweather.breaker_reset": c.Forecast.OpenWeather.BreakerReset,
		"controller.timeout":                 c.Controller.Timeout,
		"notifier.dedup_ttl":                 c.Notifier.DedupTTL,
		"notifier.webhook.timeout":           c.Notifier.Webhook.Timeout,
	}
	for path, raw := range durations {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, c.validateTypes()...)

	if len(errs) > 0 {
		return fault.New(fault.Fatal, "config.validate", errors.Join(errs...))
	}
	return nil
}

func (c *Config) validateTypes() []error {
	var errs []error
	check := func(path, got string, allowed ...string) {
		for _, a := range append(allowed, TypeNone) {
			if got == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown type %q", path, got))
	}
	check("rainfall.type", c.Rainfall.Type, RainfallWeeWX, RainfallInflux)
	check("forecast.type", c.Forecast.Type, ForecastOpenWeather)
	check("controller.type", c.Controller.Type, ControllerGRPC)
	check("notifier.type", c.Notifier.Type, NotifierMQTT, NotifierWebhook)
	check("status_store.type", c.StatusStore.Type, StoreFile, StoreInflux, StoreS3)

	if c.Rainfall.Type == RainfallWeeWX && c.Rainfall.WeeWX.Path == "" {
		errs = append(errs, errors.New("rainfall.weewx.path is required"))
	}
	if c.Rainfall.Type == RainfallInflux && (c.Rainfall.Influx.URL == "" || c.Rainfall.Influx.Bucket == "") {
		errs = append(errs, errors.New("rainfall.influx: url and bucket are required"))
	}
	if c.Controller.Type == ControllerGRPC && c.Controller.Address == "" {
		errs = append(errs, errors.New("controller.address is required"))
	}
	if c.Notifier.Type == NotifierWebhook && c.Notifier.Webhook.URL == "" {
		errs = append(errs, errors.New("notifier.webhook.url is required"))
	}
	if c.Notifier.Type == NotifierMQTT && c.Notifier.MQTT.Host == "" {
		errs = append(errs, errors.New("notifier.mqtt.host is required"))
	}
	if c.StatusStore.Type == StoreS3 && c.StatusStore.S3.Bucket == "" {
		errs = append(errs, errors.New("status_store.s3.bucket is required"))
	}
	if c.StatusStore.Type == StoreInflux && (c.StatusStore.Influx.URL == "" || c.StatusStore.Influx.Bucket == "") {
		errs = append(errs, errors.New("status_store.influx: url and bucket are required"))
	}
	return errs
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
