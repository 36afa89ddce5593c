package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath = "shapegen.yaml"
	EnvPrefix         = "SHAPEGEN_"
)

type Documents struct {
	// Dir is searched recursively for .graphql and .gql files.
	Dir     string   `yaml:"dir" envDefault:"." env:"DIR" validate:"required"`
	Exclude []string `yaml:"exclude,omitempty" env:"EXCLUDE" envSeparator:","`
}

type Compile struct {
	Concurrency int  `yaml:"concurrency" envDefault:"0" env:"CONCURRENCY" validate:"min=0"`
	Validate    bool `yaml:"validate" envDefault:"false" env:"VALIDATE"`
	Pretty      bool `yaml:"pretty" envDefault:"false" env:"PRETTY"`
}

type Server struct {
	ListenAddr   string        `yaml:"listen_addr" envDefault:"localhost:8080" env:"LISTEN_ADDR" validate:"hostname_port"`
	Timeout      time.Duration `yaml:"timeout" envDefault:"10s" env:"TIMEOUT" validate:"min=0"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" envDefault:"1048576" env:"MAX_BODY_BYTES" validate:"min=0"`
	CacheSize    int           `yaml:"cache_size" envDefault:"256" env:"CACHE_SIZE" validate:"min=0"`
	CORSOrigins  []string      `yaml:"cors_origins,omitempty" env:"CORS_ORIGINS" envSeparator:","`
}

type Telemetry struct {
	// OTLPEndpoint enables trace export when set.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" env:"OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name" envDefault:"shapegen" env:"SERVICE_NAME"`
}

type Config struct {
	Schema    string    `yaml:"schema" env:"SCHEMA" validate:"required"`
	Documents Documents `yaml:"documents,omitempty" envPrefix:"DOCUMENTS_"`
	Compile   Compile   `yaml:"compile,omitempty" envPrefix:"COMPILE_"`
	Server    Server    `yaml:"server,omitempty" envPrefix:"SERVER_"`
	Telemetry Telemetry `yaml:"telemetry,omitempty" envPrefix:"TELEMETRY_"`

	LogLevel        string `yaml:"log_level" envDefault:"info" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	JSONLog         bool   `yaml:"json_log" envDefault:"true" env:"JSON_LOG"`
	DevelopmentMode bool   `yaml:"dev_mode" envDefault:"false" env:"DEV_MODE"`
}

type LoadResult struct {
	Config Config
	// DefaultLoaded is false when the default config file does not exist.
	DefaultLoaded bool
}

// LoadConfig reads the environment and then the YAML file at configFilePath,
// which overrides it. An empty path falls back to SHAPEGEN_CONFIG_PATH and
// then DefaultConfigPath; only a missing default file is tolerated.
func LoadConfig(configFilePath string) (*LoadResult, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := &LoadResult{DefaultLoaded: true}
	if err := env.ParseWithOptions(&cfg.Config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, err
	}

	if configFilePath == "" {
		configFilePath = os.Getenv(EnvPrefix + "CONFIG_PATH")
		if configFilePath == "" {
			configFilePath = DefaultConfigPath
		}
	}
	configFileBytes, err := os.ReadFile(configFilePath)
	if err != nil {
		if configFilePath != DefaultConfigPath {
			return nil, fmt.Errorf("could not read custom config file %s: %w", configFilePath, err)
		}
		cfg.DefaultLoaded = false
	}
	if configFileBytes != nil {
		configYamlData := os.ExpandEnv(string(configFileBytes))
		if err := yaml.UnmarshalWithOptions([]byte(configYamlData), &cfg.Config, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config %s: %w", configFilePath, err)
		}
	}

	if cfg.Config.DevelopmentMode {
		cfg.Config.JSONLog = false
		cfg.Config.LogLevel = "debug"
	}
	return cfg, nil
}

// Validate checks c after flags have been applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}
	return nil
}
