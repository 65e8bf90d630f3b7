package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENGRAMA_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "sliding_window", cfg.RateLimitAlgorithm)
	assert.Equal(t, "sha256", cfg.KeyHashAlgorithm)
	assert.Equal(t, 16, cfg.StorePoolSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_ProductionRequiresAdminToken(t *testing.T) {
	t.Setenv("ENGRAMA_ENV", "production")
	t.Setenv("ENGRAMA_ADMIN_TOKEN", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrAdminTokenRequired)
}

func TestLoad_ProductionWithAdminToken(t *testing.T) {
	t.Setenv("ENGRAMA_ENV", "production")
	t.Setenv("ENGRAMA_ADMIN_TOKEN", "s3cr3t")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.AdminToken)
}

func TestValidate_Posture(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "development tolerates missing admin token",
			cfg:  Config{Environment: EnvDevelopment},
		},
		{
			name: "test tolerates missing admin token",
			cfg:  Config{Environment: EnvTest},
		},
		{
			name:    "unknown environment is treated as production",
			cfg:     Config{Environment: "staging"},
			wantErr: true,
		},
		{
			name:    "negative rate limit rejected",
			cfg:     Config{Environment: EnvDevelopment, RateLimit: -1},
			wantErr: true,
		},
		{
			name:    "positive limit needs a positive window",
			cfg:     Config{Environment: EnvDevelopment, RateLimit: 10},
			wantErr: true,
		},
		{
			name: "positive limit with window",
			cfg:  Config{Environment: EnvDevelopment, RateLimit: 10, RateLimitWindow: time.Minute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
