package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/newthinker/lasr-archive/archive"
	"github.com/spf13/viper"
)

type Config struct {
	Archive ArchiveConfig `mapstructure:"archive"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// ArchiveConfig selects and addresses the archive backend.
type ArchiveConfig struct {
	Backend        string        `mapstructure:"backend"` // mongodb, sql, s3, localfs, memory
	URI            string        `mapstructure:"uri"`
	Datastore      string        `mapstructure:"datastore"`
	Policy         string        `mapstructure:"policy"` // per_call or pooled
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Stdout      bool   `mapstructure:"stdout"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults seeds viper with Defaults so env overrides work for keys the file omits.
func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("archive.backend", d.Archive.Backend)
	v.SetDefault("archive.uri", d.Archive.URI)
	v.SetDefault("archive.datastore", d.Archive.Datastore)
	v.SetDefault("archive.policy", d.Archive.Policy)
	v.SetDefault("archive.connect_timeout", d.Archive.ConnectTimeout)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.stdout", d.Tracing.Stdout)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Archive: ArchiveConfig{
			Backend:        string(archive.KindMongoDB),
			URI:            "mongodb://localhost:27017",
			Datastore:      "lasr_archive",
			Policy:         string(archive.PolicyPerCall),
			ConnectTimeout: archive.DefaultConnectTimeout,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			ServiceName: "lasr-archive",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var missing []string
	if c.Archive.Backend == "" {
		missing = append(missing, "archive.backend")
	}
	if c.Archive.Datastore == "" {
		missing = append(missing, "archive.datastore")
	}
	if len(missing) > 0 {
		return archive.WrapError(archive.ErrConfigMissing,
			fmt.Errorf("%s required", strings.Join(missing, ", ")))
	}

	if _, err := archive.ParseKind(c.Archive.Backend); err != nil {
		return err
	}
	if _, err := archive.ParseConnectionPolicy(c.Archive.Policy); err != nil {
		return err
	}
	if c.Archive.ConnectTimeout < 0 {
		return archive.WrapError(archive.ErrConfigInvalid,
			fmt.Errorf("connect_timeout cannot be negative, got %s", c.Archive.ConnectTimeout))
	}

	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		return archive.WrapError(archive.ErrConfigMissing,
			fmt.Errorf("tracing service_name required when tracing is enabled"))
	}

	return nil
}

// StoreBuilder returns a builder populated from the archive section. Unset backend
// and datastore are left unset so Build reports them.
func (c *Config) StoreBuilder() (*archive.Builder, error) {
	b := archive.NewBuilder().URI(c.Archive.URI)

	if c.Archive.Backend != "" {
		kind, err := archive.ParseKind(c.Archive.Backend)
		if err != nil {
			return nil, err
		}
		b.Backend(kind)
	}
	if c.Archive.Datastore != "" {
		b.Datastore(c.Archive.Datastore)
	}

	policy, err := archive.ParseConnectionPolicy(c.Archive.Policy)
	if err != nil {
		return nil, err
	}
	b.Policy(policy)

	if c.Archive.ConnectTimeout > 0 {
		b.ConnectTimeout(c.Archive.ConnectTimeout)
	}
	return b, nil
}
