package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/loykin/cronreg/internal/logger"
	"github.com/loykin/cronreg/internal/registrar"
)

// FileConfig represents the top-level TOML structure. Every key is optional;
// missing keys keep the built-in defaults.
//
//	[job]
//	schedule = "0 */3 * * *"
//	interpreter = "/usr/bin/python3"
//	script = "/home/ec2-user/used-car-scraper/run_all.py"
//	args = []
//	log_path = "/var/log/usedcar.log"
//
//	[crontab]
//	binary = "crontab"
//	user = ""
//
//	[log]
//	level = "warn"
//	format = "text"
//
//	[history]
//	dsn = "sqlite:///var/lib/cronreg/history.db"
//	mirrors = ["opensearch://search:9200/cronreg-history"]
//
//	[metrics]
//	textfile = "/var/lib/node_exporter/textfile/cronreg.prom"
type FileConfig struct {
	Job     JobConfig     `toml:"job" mapstructure:"job"`
	Crontab CrontabConfig `toml:"crontab" mapstructure:"crontab"`
	Log     LogConfig     `toml:"log" mapstructure:"log"`
	History HistoryConfig `toml:"history" mapstructure:"history"`
	Metrics MetricsConfig `toml:"metrics" mapstructure:"metrics"`
}

type JobConfig struct {
	Schedule    string   `toml:"schedule" mapstructure:"schedule"`
	Interpreter string   `toml:"interpreter" mapstructure:"interpreter"`
	Script      string   `toml:"script" mapstructure:"script"`
	Args        []string `toml:"args" mapstructure:"args"`
	LogPath     string   `toml:"log_path" mapstructure:"log_path"`
}

type CrontabConfig struct {
	Binary string `toml:"binary" mapstructure:"binary"`
	User   string `toml:"user" mapstructure:"user"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Format     string `toml:"format" mapstructure:"format"`
	Color      bool   `toml:"color" mapstructure:"color"`
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// HistoryConfig selects the audit sinks. DSN is the primary store and the one
// "cronreg history" queries; every event is also sent to each Mirrors entry.
// An empty DSN with no mirrors disables history.
type HistoryConfig struct {
	DSN     string   `toml:"dsn" mapstructure:"dsn"`
	Mirrors []string `toml:"mirrors" mapstructure:"mirrors"`
}

// DSNs returns the non-empty DSNs, primary first.
func (h HistoryConfig) DSNs() []string {
	var out []string
	for _, d := range append([]string{h.DSN}, h.Mirrors...) {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// MetricsConfig enables writing a node_exporter textfile after each run.
type MetricsConfig struct {
	Textfile string `toml:"textfile" mapstructure:"textfile"`
}

// Default returns the configuration used when no file is given.
func Default() FileConfig {
	return FileConfig{
		Job: JobConfig{
			Schedule:    registrar.DefaultSchedule,
			Interpreter: registrar.DefaultInterpreter,
			Script:      registrar.DefaultScript,
			LogPath:     registrar.DefaultLogPath,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("job.schedule", d.Job.Schedule)
	v.SetDefault("job.interpreter", d.Job.Interpreter)
	v.SetDefault("job.script", d.Job.Script)
	v.SetDefault("job.log_path", d.Job.LogPath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads a TOML file over the defaults. An empty path returns Default().
func Load(path string) (FileConfig, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Clean(path))
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := fc.Validate(); err != nil {
		return FileConfig{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return fc, nil
}

// Validate checks fields that would make every run fail.
func (c FileConfig) Validate() error {
	if err := c.JobSpec().Validate(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if strings.ContainsAny(c.Crontab.User, " \t\r\n") {
		return errors.New("crontab user must not contain whitespace")
	}
	return nil
}

// JobSpec converts the [job] section into a registrar.Job.
func (c FileConfig) JobSpec() registrar.Job {
	return registrar.Job{
		Schedule:    c.Job.Schedule,
		Interpreter: c.Job.Interpreter,
		Script:      c.Job.Script,
		Args:        c.Job.Args,
		LogPath:     c.Job.LogPath,
	}
}

// LoggerConfig converts the [log] section into a logger.Config.
func (c FileConfig) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Color:      c.Log.Color,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
