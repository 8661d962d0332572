package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Submit RateLimitBucketConfig `yaml:"submit"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Port          int            `yaml:"port"`
	StoreProvider string         `yaml:"storeProvider"`
	StoreConfig   map[string]any `yaml:"storeConfig"`
	RedisAddr     string         `yaml:"redisAddr"`
	RedisPassword string         `yaml:"redisPassword"`
	LogLevel      string         `yaml:"logLevel"`
	LogFormat     string         `yaml:"logFormat"`
	Env           string         `yaml:"env"`

	// Simulated work bounds per agent step, in milliseconds. Min == Max == 0
	// runs with no delay (useful for tests and demos).
	StepDelayMinMs int `yaml:"stepDelayMinMs"`
	StepDelayMaxMs int `yaml:"stepDelayMaxMs"`

	// DefaultFailureRate applies when the stream request carries no
	// failureRate override.
	DefaultFailureRate float64 `yaml:"defaultFailureRate"`

	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfigOptional loads the file when a path is given, otherwise builds a
// config from environment variables and defaults alone.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) != "" {
		return LoadConfig(filePath)
	}
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("STORE_PROVIDER"); v != "" {
		c.StoreProvider = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("STEP_DELAY_MIN_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StepDelayMinMs = n
		}
	}
	if v := os.Getenv("STEP_DELAY_MAX_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StepDelayMaxMs = n
		}
	}
	if v := os.Getenv("DEFAULT_FAILURE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.DefaultFailureRate = f
		}
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = v == "true" || v == "1"
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.StoreProvider == "" {
		c.StoreProvider = "memory"
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.StepDelayMinMs == 0 && c.StepDelayMaxMs == 0 {
		c.StepDelayMinMs = 300
		c.StepDelayMaxMs = 800
	}
}

func (c *Config) Validate() error {
	var errs []string

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, "port must be in [0, 65535]")
	}
	switch c.StoreProvider {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Sprintf("unknown storeProvider %q", c.StoreProvider))
	}
	if c.StoreProvider == "redis" && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, "redisAddr is required for the redis store provider")
	}
	if c.StepDelayMinMs < 0 || c.StepDelayMaxMs < 0 {
		errs = append(errs, "step delays must not be negative")
	}
	if c.StepDelayMaxMs < c.StepDelayMinMs {
		errs = append(errs, "stepDelayMaxMs must be >= stepDelayMinMs")
	}
	if c.DefaultFailureRate < 0 || c.DefaultFailureRate > 1 {
		errs = append(errs, "defaultFailureRate must be in [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
