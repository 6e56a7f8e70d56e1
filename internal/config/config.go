// Package config loads agent configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all agent configuration.
type Config struct {
	// APIBaseURL is the emergency reporting backend.
	APIBaseURL string `mapstructure:"api_base_url"`

	// GeocodeBaseURL is the reverse geocoding service.
	GeocodeBaseURL string `mapstructure:"geocode_base_url"`

	// ListenAddr is the local status server bind address.
	ListenAddr string `mapstructure:"listen_addr"`

	// QueuePath is the SQLite file backing the offline outbox. Empty
	// selects the in-memory store.
	QueuePath string `mapstructure:"queue_path"`

	// ProfilePath is the JSON file holding the registered user identity.
	ProfilePath string `mapstructure:"profile_path"`

	// EmergencyNumbers offered by the panic call prompt.
	EmergencyNumbers []string `mapstructure:"emergency_numbers"`

	// AutoSendDelay is the internal panic countdown before auto-send.
	AutoSendDelay time.Duration `mapstructure:"auto_send_delay"`

	// AutoCallDelay is the pause between auto-send and the call prompt.
	AutoCallDelay time.Duration `mapstructure:"auto_call_delay"`

	// MotionThreshold is the acceleration magnitude that triggers panic
	// mode, in g.
	MotionThreshold float64 `mapstructure:"motion_threshold"`

	// SampleInterval is the accelerometer polling interval.
	SampleInterval time.Duration `mapstructure:"sample_interval"`

	// LocationTimeout bounds a location fix end to end.
	LocationTimeout time.Duration `mapstructure:"location_timeout"`

	// ProbeURL is the endpoint used to measure reachability.
	ProbeURL string `mapstructure:"probe_url"`

	// ProbeInterval is the reachability probe cadence.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`

	// Static position reported by the agent's fixed position source.
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`

	LogLevel string `mapstructure:"log_level"`

	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
}

// Load reads configuration from the optional firealert.yaml in the working
// directory and from FIREALERT_* environment variables, with environment
// taking precedence.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("api_base_url", "https://bombeiro.visionmoz.online/api")
	v.SetDefault("geocode_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("listen_addr", ":8090")
	v.SetDefault("queue_path", "firealert-outbox.db")
	v.SetDefault("profile_path", "firealert-profile.json")
	v.SetDefault("emergency_numbers", []string{"193", "112"})
	v.SetDefault("auto_send_delay", 3*time.Second)
	v.SetDefault("auto_call_delay", 2*time.Second)
	v.SetDefault("motion_threshold", 2.5)
	v.SetDefault("sample_interval", 100*time.Millisecond)
	v.SetDefault("location_timeout", 10*time.Second)
	v.SetDefault("probe_url", "https://bombeiro.visionmoz.online/api/health")
	v.SetDefault("probe_interval", 5*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.environment", "development")

	v.SetConfigName("firealert")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FIREALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
