package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/apogeecmb/smartSprinkler/internal/model/entities"
	"github.com/apogeecmb/smartSprinkler/pkg/logx"
)

// Collaborator type tags.
const (
	TypeNone = "none"

	RainfallWeeWX  = "weewx"
	RainfallInflux = "influx"

	ForecastOpenWeather = "openweather"

	ControllerGRPC = "grpc"

	NotifierMQTT    = "mqtt"
	NotifierWebhook = "webhook"

	StoreFile   = "file"
	StoreInflux = "influx"
	StoreS3     = "s3"
)

type ReportLevel int

const (
	ReportDisabled ReportLevel = iota
	ReportErrorsOnly
	ReportErrorsAndStatus
)

func ParseReportLevel(s string) (ReportLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "disable":
		return ReportDisabled, nil
	case "errors_only", "error_only":
		return ReportErrorsOnly, nil
	case "errors_and_status", "error_and_status":
		return ReportErrorsAndStatus, nil
	default:
		return ReportDisabled, fmt.Errorf("unknown report level %q", s)
	}
}

func (r ReportLevel) String() string {
	switch r {
	case ReportErrorsOnly:
		return "errors_only"
	case ReportErrorsAndStatus:
		return "errors_and_status"
	default:
		return "disabled"
	}
}

// Config is loaded once at the start of every cycle and never mutated afterwards.
type Config struct {
	Enabled              *bool             `json:"enabled"`
	Report               string            `json:"report"`
	RolloverExcess       bool              `json:"rollover_excess"`
	RolloverDeficit      bool              `json:"rollover_deficit"`
	MinRainAmount        float64           `json:"min_rain_amount"`
	MinPrecipProbability int               `json:"min_precip_probability"`
	MaxDaysBetweenWater  int               `json:"max_days_between_water"`
	RunTimes             []string          `json:"run_times"`
	PeriodDays           int               `json:"period_days"`
	Schedule             string            `json:"schedule"`
	Location             entities.Location `json:"location"`
	Zones                []ZoneConfig      `json:"zones"`

	Logging     logx.Config      `json:"logging"`
	HTTP        HTTPConfig       `json:"http"`
	Rainfall    RainfallConfig   `json:"rainfall"`
	Forecast    ForecastConfig   `json:"forecast"`
	Controller  ControllerConfig `json:"controller"`
	Notifier    NotifierConfig   `json:"notifier"`
	StatusStore StoreConfig      `json:"status_store"`

	zones  []entities.Zone
	report ReportLevel
}

type ZoneConfig struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	WateringRate      float64 `json:"watering_rate"`
	WeeklyRequirement float64 `json:"weekly_requirement"`
	MinRun            string  `json:"min_run"`
	MaxRun            string  `json:"max_run"`
	DailyRequirement  float64 `json:"daily_requirement"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type InfluxConfig struct {
	URL         string `json:"url"`
	Token       string `json:"token"`
	Org         string `json:"org"`
	Bucket      string `json:"bucket"`
	Measurement string `json:"measurement"`
	Field       string `json:"field"`
}

type RainfallConfig struct {
	Type   string       `json:"type"`
	WeeWX  WeeWXConfig  `json:"weewx"`
	Influx InfluxConfig `json:"influx"`
}

type WeeWXConfig struct {
	Path string `json:"path"`
}

type ForecastConfig struct {
	Type        string            `json:"type"`
	OpenWeather OpenWeatherConfig `json:"openweather"`
}

type OpenWeatherConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	Timeout      string `json:"timeout"`
	MaxFailures  uint32 `json:"max_failures"`
	BreakerReset string `json:"breaker_reset"`
}

type ControllerConfig struct {
	Type    string `json:"type"`
	Address string `json:"address"`
	Timeout string `json:"timeout"`
}

type NotifierConfig struct {
	Type     string        `json:"type"`
	DedupTTL string        `json:"dedup_ttl"`
	MQTT     MQTTConfig    `json:"mqtt"`
	Webhook  WebhookConfig `json:"webhook"`
}

type MQTTConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	ClientID string `json:"client_id"`
	Topic    string `json:"topic"`
}

type WebhookConfig struct {
	URL        string `json:"url"`
	Key        string `json:"key"`
	RatePerSec int    `json:"rate_per_sec"`
	Timeout    string `json:"timeout"`
}

type StoreConfig struct {
	Type   string       `json:"type"`
	File   FileConfig   `json:"file"`
	Influx InfluxConfig `json:"influx"`
	S3     S3Config     `json:"s3"`
}

type FileConfig struct {
	Dir string `json:"dir"`
}

type S3Config struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	Prefix          string `json:"prefix"`
	PathStyle       bool   `json:"path_style"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

func (c *Config) IsEnabled() bool { return c.Enabled == nil || *c.Enabled }

// ZoneList returns the validated zones.
func (c *Config) ZoneList() []entities.Zone {
	out := make([]entities.Zone, len(c.zones))
	copy(out, c.zones)
	return out
}

func (c *Config) ReportLevel() ReportLevel { return c.report }

func (c *Config) Period() time.Duration {
	return time.Duration(c.PeriodDays) * 24 * time.Hour
}
