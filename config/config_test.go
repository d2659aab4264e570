package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_EXPIRE_HOURS", "")
	t.Setenv("DEFAULT_EVENT_CAPACITY", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 720, cfg.JWT.ExpireHours)
	assert.Equal(t, devJWTSecret, cfg.JWT.Secret)
	assert.Equal(t, 10, cfg.OTP.ExpireMinutes)
	assert.Equal(t, 50, cfg.Events.Capacity)
	assert.Equal(t, "Technical", cfg.Events.Category)
	assert.Equal(t, "14:30", cfg.Events.Time)
	assert.False(t, cfg.IsProduction())
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoadRejectsZeroDefaultCapacity(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("DEFAULT_EVENT_CAPACITY", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  DatabaseConfig
		want string
	}{
		{
			name: "url wins",
			cfg:  DatabaseConfig{URL: "postgres://x/y", Host: "ignored"},
			want: "postgres://x/y",
		},
		{
			name: "built from parts",
			cfg:  DatabaseConfig{User: "u", Password: "p", Host: "h", Port: "5432", DBName: "campus", SSLMode: "disable"},
			want: "postgres://u:p@h:5432/campus?sslmode=disable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	s := ServerConfig{CORSAllowedOrigins: " http://a.test , ,http://b.test"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, s.AllowedOrigins())
}
