package defs

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "CGMQ"

	DefaultDB         = "devicecgm"
	DefaultStrategy   = "eager"
	DefaultCacheSize  = 64
	DefaultHTTPAddr   = ":4242"
	DefaultBufferSize = 64 * 1024
)

// Clinical thresholds used by reports, in mg/dL.
const (
	DefaultLow  = 70
	DefaultHigh = 180
)

type Config struct {
	Source   SourceConfig  `yaml:"source"`
	Index    IndexConfig   `yaml:"index"`
	Query    QueryConfig   `yaml:"query"`
	Glucose  GlucoseConfig `yaml:"glucose"`
	Mongo    MongoConfig   `yaml:"mongo"`
	HTTP     HTTPConfig    `yaml:"http"`
	Log      LogConfig     `yaml:"log"`
	Timezone string        `yaml:"timezone"`
	Logger   *zap.Logger   `yaml:"-" ignored:"true"`
}

type SourceConfig struct {
	Path       string `yaml:"path"`
	BufferSize int    `yaml:"bufferSize" split_words:"true"`
}

type IndexConfig struct {
	Strategy        string          `yaml:"strategy"`
	TimestampPolicy TimestampPolicy `yaml:"timestampPolicy" split_words:"true"`
}

type QueryConfig struct {
	CacheSize int `yaml:"cacheSize" split_words:"true"`
}

type GlucoseConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type LogConfig struct {
	Production bool   `yaml:"production"`
	Level      string `yaml:"level"`
}

func DefaultConfig() Config {
	return Config{
		Source:  SourceConfig{BufferSize: DefaultBufferSize},
		Index:   IndexConfig{Strategy: DefaultStrategy, TimestampPolicy: Strict},
		Query:   QueryConfig{CacheSize: DefaultCacheSize},
		Glucose: GlucoseConfig{Low: DefaultLow, High: DefaultHigh},
		Mongo:   MongoConfig{Database: DefaultDB},
		HTTP:    HTTPConfig{Address: DefaultHTTPAddr},
		Log:     LogConfig{Level: "debug"},
	}
}

// LoadConfig reads the yaml file at path on top of the defaults, then applies
// CGMQ_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("unable to read config file: %w", err)
		}
		if err = yaml.Unmarshal(file, &config); err != nil {
			return Config{}, fmt.Errorf("unable to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return Config{}, fmt.Errorf("unable to read environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	switch c.Index.TimestampPolicy {
	case Strict, Drop:
	default:
		return fmt.Errorf("unknown timestamp policy: %q", c.Index.TimestampPolicy)
	}
	if c.Glucose.Low >= c.Glucose.High {
		return fmt.Errorf("glucose low %.1f must be below high %.1f", c.Glucose.Low, c.Glucose.High)
	}
	if c.Query.CacheSize < 0 {
		return fmt.Errorf("negative cache size: %d", c.Query.CacheSize)
	}
	return nil
}
