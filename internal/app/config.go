package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (NEST_ prefix), flags, or YAML config files.
type Config struct {
	Addr     string `default:"0.0.0.0:8080" usage:"probe server listen address"`
	MongoURL string `usage:"MongoDB connection URL (NEST_MONGO_URL or MONGO_URL)" flag:"mongo-url"`
	Database string `default:"fashionnest" usage:"MongoDB database name"`
	Payment  PaymentConfig
	Graceful GracefulConfig
}

// PaymentConfig configures the injected payment gateway.
type PaymentConfig struct {
	Currency string        `default:"USD" usage:"Charge currency"`
	Timeout  time.Duration `default:"10s" usage:"Gateway round-trip timeout"`
	// SandboxLatency simulates provider latency in the sandbox gateway.
	SandboxLatency time.Duration `default:"50ms" usage:"Sandbox gateway simulated latency" flag:"sandbox-latency"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, applying platform defaults for MONGO_URL and PORT.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "NEST",
		Files:     []string{"config.yaml", "/etc/fashionnest/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.MongoURL == "" {
		return nil, errors.New("mongo URL is required: set NEST_MONGO_URL or MONGO_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like MONGO_URL and PORT to the NEST_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.MongoURL == "" {
		if v := os.Getenv("MONGO_URL"); v != "" {
			c.MongoURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
