// File: internal/config/config.go
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"medication-reminder-bot/internal/domain"
	"medication-reminder-bot/internal/infra/scheduler"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string `yaml:"token"`
	Mode     string `yaml:"mode"` // polling | noop
	Workers  int    `yaml:"workers"`
	Language string `yaml:"language"` // pt | en
	// RateLimitPerMinute caps commands per user; 0 disables the limiter.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type ScheduleConfig struct {
	DailyTime      string        `yaml:"daily_time"` // HH:MM
	Timezone       string        `yaml:"timezone"`
	Tick           time.Duration `yaml:"tick"`
	SupervisorTick time.Duration `yaml:"supervisor_tick"`
	MaxRestarts    int           `yaml:"max_restarts"` // 0 = unlimited
	CloseAfter     time.Duration `yaml:"close_after"`
	FollowUpAfter  time.Duration `yaml:"follow_up_after"`

	location *time.Location
	daily    scheduler.Daily
}

// Location returns the parsed timezone. Valid only after LoadConfig.
func (s ScheduleConfig) Location() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// Daily returns the parsed dispatch trigger. Valid only after LoadConfig.
func (s ScheduleConfig) Daily() scheduler.Daily { return s.daily }

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int    `yaml:"port"` // 0 disables the admin server
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // sqlite | postgres
	URL      string `yaml:"url"`    // postgres DSN
	Path     string `yaml:"path"`   // sqlite file
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.URL) != "" }

type Config struct {
	Bot          BotConfig      `yaml:"bot"`
	Destinations []int64        `yaml:"destinations"`
	Schedule     ScheduleConfig `yaml:"schedule"`
	Log          LogConfig      `yaml:"log"`
	Admin        AdminConfig    `yaml:"admin"`
	Database     DatabaseConfig `yaml:"database"`
	Redis        RedisConfig    `yaml:"redis"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path (a missing file is allowed when the
// environment provides everything), applies env overrides and defaults, and
// validates. Errors wrap domain.ErrConfiguration.
func LoadConfig(path string, dev bool) (*Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("%w: parse config: %v", domain.ErrConfiguration, err)
			}
		case os.IsNotExist(err):
			// env-only deployment
		default:
			return nil, fmt.Errorf("%w: read config: %v", domain.ErrConfiguration, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("TOKEN")); v != "" {
		cfg.Bot.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("CHAT_IDS")); v != "" {
		ids, err := ParseChatIDs(v)
		if err != nil {
			return fmt.Errorf("%w: CHAT_IDS: %v", domain.ErrConfiguration, err)
		}
		cfg.Destinations = ids
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.URL = v
		if cfg.Database.Driver == "" {
			cfg.Database.Driver = "postgres"
		}
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.Redis.URL = v
	}
	return nil
}

// ParseChatIDs decodes a JSON array of chat ids. Elements may be numbers or
// numeric strings, e.g. ["1980190204", -100123].
func ParseChatIDs(raw string) ([]int64, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(items))
	for _, it := range items {
		var s string
		switch v := it.(type) {
		case json.Number:
			s = v.String()
		case string:
			s = strings.TrimSpace(v)
		default:
			return nil, fmt.Errorf("unsupported chat id %v", it)
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chat id %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "pt"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Schedule.DailyTime == "" {
		cfg.Schedule.DailyTime = "07:00"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "America/Sao_Paulo"
	}
	if cfg.Schedule.Tick <= 0 {
		cfg.Schedule.Tick = 30 * time.Second
	}
	if cfg.Schedule.SupervisorTick <= 0 {
		cfg.Schedule.SupervisorTick = time.Minute
	}
	if cfg.Schedule.CloseAfter <= 0 {
		cfg.Schedule.CloseAfter = 24 * time.Hour
	}
	if cfg.Schedule.FollowUpAfter <= 0 {
		cfg.Schedule.FollowUpAfter = time.Hour
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "bot_data.db"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
}

func validate(cfg *Config) error {
	if cfg.Bot.Token == "" && !cfg.Runtime.Dev {
		return fmt.Errorf("%w: bot.token (or TOKEN) is required", domain.ErrConfiguration)
	}
	if len(cfg.Destinations) == 0 {
		return fmt.Errorf("%w: at least one destination (or CHAT_IDS) is required", domain.ErrConfiguration)
	}
	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return fmt.Errorf("%w: schedule.timezone: %v", domain.ErrConfiguration, err)
	}
	daily, err := scheduler.ParseDaily(cfg.Schedule.DailyTime, loc)
	if err != nil {
		return fmt.Errorf("%w: schedule.daily_time: %w", domain.ErrConfiguration, err)
	}
	cfg.Schedule.location = loc
	cfg.Schedule.daily = daily

	switch cfg.Database.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for postgres", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown database.driver %q", domain.ErrConfiguration, cfg.Database.Driver)
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Minute
	}
	return d
}
