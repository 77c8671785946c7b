package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "./output", cfg.Paths.OutputDir)
	assert.Equal(t, "wan2.1-i2v-turbo", cfg.Synthesis.Model)
	assert.Equal(t, "720P", cfg.Synthesis.Resolution)
	assert.Equal(t, 30*time.Second, cfg.Synthesis.PollInterval)
	assert.Equal(t, 300, cfg.Synthesis.PollMaxAttempts)
	assert.Equal(t, time.Hour, cfg.Jobs.Retention)
}

func TestLoadRequiresSynthesisKey(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DASHSCOPE_API_KEY")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")
	t.Setenv("PROMOREEL_PORT", "8081")
	t.Setenv("SYNTHESIS_POLL_INTERVAL", "5s")
	t.Setenv("SYNTHESIS_POLL_MAX_ATTEMPTS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Synthesis.PollInterval)
	assert.Equal(t, 10, cfg.Synthesis.PollMaxAttempts)
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")
	t.Setenv("PROMOREEL_PORT", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROMOREEL_PORT")
}

func TestHasOSS(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "sk-test")
	t.Setenv("OSS_ACCESS_KEY_ID", "id")
	t.Setenv("OSS_ACCESS_KEY_SECRET", "secret")
	t.Setenv("OSS_BUCKET", "bucket")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.HasOSS())

	cfg.OSS.Bucket = ""
	assert.False(t, cfg.HasOSS())
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")
	t.Setenv("SOME_DURATION", "soon")
	t.Setenv("SOME_FLOAT", "eleven")

	assert.Equal(t, 7, envInt("SOME_INT", 7))
	assert.Equal(t, time.Minute, envDuration("SOME_DURATION", time.Minute))
	assert.Equal(t, 1.5, envFloat("SOME_FLOAT", 1.5))
}
