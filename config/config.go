// Package config loads migration settings from a TOML file.
package config

import (
	"time"

	"github.com/evergreen-ci/utility"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mongodb/docshift"
	"github.com/mongodb/docshift/db"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

var logLevels = []string{"emergency", "alert", "critical", "error", "warning", "notice", "info", "debug", "trace"}

type Config struct {
	Source      Endpoint  `koanf:"source"`
	Destination Endpoint  `koanf:"destination"`
	Migration   Migration `koanf:"migration"`
	Output      Output    `koanf:"output"`
	Telemetry   Telemetry `koanf:"telemetry"`
}

// Endpoint names a collection on a deployment.
type Endpoint struct {
	URI        string `koanf:"uri"`
	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`
}

func (e Endpoint) Namespace() db.Namespace {
	return db.Namespace{DB: e.Database, Collection: e.Collection}
}

type Migration struct {
	BatchSize        int           `koanf:"batch_size"`
	InsertRetries    int           `koanf:"insert_retries"`
	MinWait          time.Duration `koanf:"min_wait"`
	MaxWait          time.Duration `koanf:"max_wait"`
	MaxFetchRetries  int           `koanf:"max_fetch_retries"`
	MaxConcurrency   int           `koanf:"max_concurrency"`
	ThrottleCodes    []int         `koanf:"throttle_codes"`
	ThrottleMessages []string      `koanf:"throttle_messages"`
}

type Output struct {
	FailedDocsPath     string `koanf:"failed_docs_path"`
	RedisURL           string `koanf:"redis_url"`
	RedisKey           string `koanf:"redis_key"`
	MetadataCollection string `koanf:"metadata_collection"`
}

type Telemetry struct {
	MetricsAddr string        `koanf:"metrics_addr"`
	APMInterval time.Duration `koanf:"apm_interval"`
	Tracing     bool          `koanf:"tracing"`
	LogLevel    string        `koanf:"log_level"`
}

// Default returns the settings used for anything a file leaves out.
func Default() *Config {
	return &Config{
		Migration: Migration{
			BatchSize:     docshift.DefaultBatchSize,
			InsertRetries: docshift.DefaultMaxAttempts,
			MinWait:       docshift.DefaultMinWait,
			MaxWait:       docshift.DefaultMaxWait,
		},
		Output: Output{
			FailedDocsPath: "failed.json",
			RedisKey:       "docshift:failed",
		},
		Telemetry: Telemetry{
			LogLevel: "info",
		},
	}
}

// Load reads the TOML file at path over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "problem reading config file '%s'", path)
	}

	conf := Default()
	if err := k.Unmarshal("", conf); err != nil {
		return nil, errors.Wrapf(err, "problem parsing config file '%s'", path)
	}

	if len(conf.Migration.ThrottleCodes) == 0 {
		conf.Migration.ThrottleCodes = []int{docshift.ThrottleCode}
	}
	if len(conf.Migration.ThrottleMessages) == 0 {
		conf.Migration.ThrottleMessages = []string{docshift.ThrottleSignature}
	}

	return conf, nil
}

func (c *Config) Validate() error {
	catcher := grip.NewCatcher()

	catcher.NewWhen(c.Source.URI == "", "source uri must be set")
	catcher.NewWhen(!c.Source.Namespace().IsValid(), "source database and collection must be set")
	catcher.NewWhen(c.Destination.URI == "", "destination uri must be set")
	catcher.NewWhen(!c.Destination.Namespace().IsValid(), "destination database and collection must be set")
	catcher.NewWhen(c.Output.FailedDocsPath == "", "failed document path must be set")
	catcher.NewWhen(c.Migration.MinWait == 0 && c.Migration.MaxWait == 0,
		"min_wait and max_wait cannot both be zero; omit them to use the default pause")
	catcher.NewWhen(c.Telemetry.APMInterval < 0, "apm interval cannot be negative")
	catcher.ErrorfWhen(!utility.StringSliceContains(logLevels, c.Telemetry.LogLevel),
		"'%s' is not a valid log level", c.Telemetry.LogLevel)
	opts := c.MigrationOptions()
	catcher.Add(opts.Validate())

	return errors.Wrap(catcher.Resolve(), "invalid configuration")
}

// MigrationOptions converts the [migration] section. The classifier
// matches any configured code or message.
func (c *Config) MigrationOptions() docshift.Options {
	m := c.Migration

	return docshift.Options{
		BatchSize:       m.BatchSize,
		MaxAttempts:     m.InsertRetries,
		MinWait:         m.MinWait,
		MaxWait:         m.MaxWait,
		MaxFetchRetries: m.MaxFetchRetries,
		MaxConcurrency:  m.MaxConcurrency,
		Classifier: docshift.AnyClassifier{
			docshift.CodeClassifier{Codes: m.ThrottleCodes},
			docshift.MessageClassifier{Signatures: m.ThrottleMessages},
		},
	}
}
