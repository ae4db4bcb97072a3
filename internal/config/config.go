package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"closer/internal/freeslot"
)

// Config is the application's configuration model: who the user is, when
// they are callable, where busy data comes from, and where state lives.
type Config struct {
	Account  AccountConfig  `yaml:"account"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Calendar CalendarConfig `yaml:"calendar"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
}

type AccountConfig struct {
	Name string `yaml:"name"`
	// Timezone is the caller's home IANA zone, used for manual busy
	// blocks and display. Empty means the process-local zone.
	Timezone string `yaml:"timezone" validate:"omitempty,timezone"`
}

type ScheduleConfig struct {
	// WorkWindow bounds each day's callable hours in the caller's zone.
	WorkWindow freeslot.WorkWindow `yaml:"workWindow"`
	// HorizonDays is how far ahead free slots are computed.
	HorizonDays int `yaml:"horizonDays"`
	// MinSlotMinutes drops free fragments shorter than this.
	MinSlotMinutes int `yaml:"minSlotMinutes"`
	// MaxSuggestions caps how many suggestions are shown; display only.
	MaxSuggestions int `yaml:"maxSuggestions"`
	// RefreshCron schedules periodic refresh in serve mode.
	RefreshCron string `yaml:"refreshCron"`
}

type CalendarConfig struct {
	// FreeBusy, if configured, queries a Google-style free/busy endpoint.
	FreeBusy FreeBusyConfig `yaml:"freebusy"`
	// ICS lists calendar subscriptions merged into the busy set.
	ICS []ICSSourceConfig `yaml:"ics"`
}

type FreeBusyConfig struct {
	URL        string `yaml:"url"`
	CalendarID string `yaml:"calendarId"`
	// AccessToken for the endpoint. If empty, read from env CLOSER_CALENDAR_TOKEN.
	AccessToken string `yaml:"accessToken"`
}

type ICSSourceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type StorageConfig struct {
	DBPath string `yaml:"dbPath"`
}

type ServerConfig struct {
	Listen      string `yaml:"listen"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Default returns a sensible default configuration.
func Default() Config {
	return Config{
		Account: AccountConfig{Name: "", Timezone: ""},
		Schedule: ScheduleConfig{
			WorkWindow:     freeslot.WorkWindow{StartHour: 9, EndHour: 21},
			HorizonDays:    7,
			MinSlotMinutes: 30,
			MaxSuggestions: 5,
			RefreshCron:    "*/15 * * * *",
		},
		Calendar: CalendarConfig{FreeBusy: FreeBusyConfig{
			URL:        "https://www.googleapis.com/calendar/v3/freeBusy",
			CalendarID: "primary",
		}},
		Storage: StorageConfig{DBPath: "./closer.db"},
		Server:  ServerConfig{Listen: "127.0.0.1:8645", MetricsAddr: ""},
	}
}

// Normalize fills missing or zero values with defaults so partially
// written configs from older versions still behave.
func (c *Config) Normalize() {
	def := Default()
	if c.Schedule.WorkWindow.StartHour == 0 && c.Schedule.WorkWindow.EndHour == 0 {
		c.Schedule.WorkWindow = def.Schedule.WorkWindow
	}
	if c.Schedule.HorizonDays <= 0 {
		c.Schedule.HorizonDays = def.Schedule.HorizonDays
	}
	if c.Schedule.MinSlotMinutes <= 0 {
		c.Schedule.MinSlotMinutes = def.Schedule.MinSlotMinutes
	}
	if c.Schedule.MaxSuggestions <= 0 {
		c.Schedule.MaxSuggestions = def.Schedule.MaxSuggestions
	}
	if c.Schedule.RefreshCron == "" {
		c.Schedule.RefreshCron = def.Schedule.RefreshCron
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = def.Storage.DBPath
	}
	if c.Server.Listen == "" {
		c.Server.Listen = def.Server.Listen
	}
}

// ResolveEnv fills credentials from environment variables if not set.
func (c *Config) ResolveEnv() {
	if c.Calendar.FreeBusy.AccessToken == "" {
		c.Calendar.FreeBusy.AccessToken = os.Getenv("CLOSER_CALENDAR_TOKEN")
	}
}

// Validate rejects configurations that would make the engine produce
// silently wrong output. Missing values are normalized first; this only
// fails on explicit bad input.
func (c *Config) Validate() error {
	if err := c.Schedule.WorkWindow.Validate(); err != nil {
		return err
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads YAML config from path, resolving env credentials and
// normalizing defaults.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.Normalize()
	cfg.ResolveEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes YAML config to path, creating directories as needed.
func Save(path string, cfg Config) error {
	if path == "" {
		return errors.New("empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
