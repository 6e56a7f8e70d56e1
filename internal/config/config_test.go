package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firealert/firealert/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://bombeiro.visionmoz.online/api", cfg.APIBaseURL)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.GeocodeBaseURL)
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, []string{"193", "112"}, cfg.EmergencyNumbers)
	assert.Equal(t, 3*time.Second, cfg.AutoSendDelay)
	assert.Equal(t, 2*time.Second, cfg.AutoCallDelay)
	assert.Equal(t, 2.5, cfg.MotionThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.SampleInterval)
	assert.Equal(t, 10*time.Second, cfg.LocationTimeout)
	assert.Equal(t, 5*time.Second, cfg.ProbeInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FIREALERT_API_BASE_URL", "http://localhost:9999/api")
	t.Setenv("FIREALERT_AUTO_SEND_DELAY", "7s")
	t.Setenv("FIREALERT_MOTION_THRESHOLD", "3.5")
	t.Setenv("FIREALERT_EMERGENCY_NUMBERS", "911")
	t.Setenv("FIREALERT_TELEMETRY_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999/api", cfg.APIBaseURL)
	assert.Equal(t, 7*time.Second, cfg.AutoSendDelay)
	assert.Equal(t, 3.5, cfg.MotionThreshold)
	assert.Equal(t, []string{"911"}, cfg.EmergencyNumbers)
	assert.True(t, cfg.Telemetry.Enabled)
}
