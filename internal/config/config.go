package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	HTTP          HTTPConfig          `mapstructure:"http"`
	RuleEngine    RuleEngineConfig    `mapstructure:"rule_engine"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// HTTPConfig contains the admin/data-receive HTTP server settings.
// Respects Go stdlib net/http defaults where appropriate.
type HTTPConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds, default 30
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds, default 30
	IdleTimeout     int `mapstructure:"idle_timeout"`     // seconds, default 120
	MaxHeaderBytes  int `mapstructure:"max_header_bytes"` // bytes, default 32768 (stdlib default is 1MB)
	MaxBodyBytes    int `mapstructure:"max_body_bytes"`   // bytes, NO stdlib default! bounds receive-data payload size
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds, default 10
}

// RuleEngineConfig contains rule-engine-specific settings: where rules live
// on disk, how dispatch timing is bounded, and how action/query commands
// are invoked.
type RuleEngineConfig struct {
	RulesRoot             string `mapstructure:"rules_root"`              // directory holding <applicationName>/<ruleName>.xml files
	MinTriggerIntervalSec int    `mapstructure:"min_trigger_interval"`    // seconds; floor on poll re-arm delay
	SiteEnvironmentScript string `mapstructure:"site_environment_script"` // sourced before every query/action command
	MaxRules              int    `mapstructure:"max_rules"`               // registry capacity
	ReceiveQueueCapacity  int    `mapstructure:"receive_queue_capacity"`  // backlog shared by all applications before data is rejected
	CommandTimeoutSec     int    `mapstructure:"command_timeout"`         // seconds; bounds query/action subprocess execution
}

// ObservabilityConfig contains tracing and metrics exporter settings.
type ObservabilityConfig struct {
	ServiceName     string `mapstructure:"service_name"`
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	PrometheusPort  int    `mapstructure:"prometheus_port"`
	PrometheusPath  string `mapstructure:"prometheus_path"`
}

// Load reads configuration from file and environment variables.
// Priority: env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override everything:
	// POLICYENGINE_HTTP_PORT, POLICYENGINE_RULE_ENGINE_RULES_ROOT, etc.
	v.SetEnvPrefix("POLICYENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 12011)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.idle_timeout", 120)
	v.SetDefault("http.max_header_bytes", 32768)
	v.SetDefault("http.max_body_bytes", 10485760) // 10MB; bounds base64 application-data payloads
	v.SetDefault("http.shutdown_timeout", 10)

	v.SetDefault("rule_engine.rules_root", "/etc/policyengine/rules")
	v.SetDefault("rule_engine.min_trigger_interval", 30)
	v.SetDefault("rule_engine.site_environment_script", "/etc/policyengine/env.sh")
	v.SetDefault("rule_engine.max_rules", 100000)
	v.SetDefault("rule_engine.receive_queue_capacity", 1000)
	v.SetDefault("rule_engine.command_timeout", 60)

	v.SetDefault("observability.service_name", "policyengine")
	v.SetDefault("observability.otlp_endpoint", "localhost:4317")
	v.SetDefault("observability.prometheus_port", 9464)
	v.SetDefault("observability.prometheus_path", "/metrics")
}
