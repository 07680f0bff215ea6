package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPTION_TOKEN_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Minute, cfg.OptionTokenTTL)
	assert.Equal(t, 5, cfg.SlotIntervalMinutes)
	assert.Equal(t, 20, cfg.OptionsLimit)
	assert.Equal(t, 30*time.Minute, cfg.CancelWindow)
	assert.Equal(t, "America/Bogota", cfg.ShopTimezone)
	assert.Equal(t, "America/Bogota", cfg.Location().String())
	assert.Equal(t, 100*time.Millisecond, cfg.OutboxPollInterval)
	assert.True(t, cfg.OutboxProcessorEnabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPTION_TOKEN_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("OPTION_TOKEN_TTL_SECONDS", "120")
	t.Setenv("SLOT_INTERVAL_MINUTES", "15")
	t.Setenv("CANCEL_WINDOW_MINUTES", "60")
	t.Setenv("SHOP_TIMEZONE", "UTC")
	t.Setenv("OUTBOX_POLL_INTERVAL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 2*time.Minute, cfg.OptionTokenTTL)
	assert.Equal(t, 15, cfg.SlotIntervalMinutes)
	assert.Equal(t, time.Hour, cfg.CancelWindow)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing token secret", func(t *testing.T) {
		t.Setenv("OPTION_TOKEN_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad slot interval", func(t *testing.T) {
		t.Setenv("OPTION_TOKEN_SECRET", "s3cret")
		t.Setenv("SLOT_INTERVAL_MINUTES", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		t.Setenv("OPTION_TOKEN_SECRET", "s3cret")
		t.Setenv("SHOP_TIMEZONE", "Mars/Olympus")
		_, err := Load()
		assert.Error(t, err)
	})
}
