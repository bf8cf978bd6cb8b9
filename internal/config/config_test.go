package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `{
	"db_path": "broker.db",
	"encryption_key": "0123456789abcdef0123456789abcdef",
	"auth": {
		"issuer": "https://issuer.example.com",
		"client_id": "client-id",
		"client_secret": "client-secret",
		"scopes": ["openid", "profile"]
	}
}`

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "broker.db", cfg.DBPath)
	assert.Equal(t, "https://issuer.example.com", cfg.Auth.Issuer)
	assert.Equal(t, "client-id", cfg.Auth.ClientID)
	assert.Equal(t, []string{"openid", "profile"}, cfg.Auth.Scopes)

	// Defaults fill in everything the file left unset.
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout.Duration)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval.Duration)
	assert.Equal(t, 15*time.Minute, cfg.Sweeper.Retention.Duration)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	t.Setenv("AUTH_ISSUER", "https://other.example.com")
	t.Setenv("AUTH_CLIENT_ID", "env-client")
	t.Setenv("AUTH_CLIENT_SECRET", "env-secret")
	t.Setenv("HTTP_PORT", "8181")
	t.Setenv("METRICS_PORT", "9191")
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("ENCRYPTION_KEY", "ffffffffffffffffffffffffffffffff")
	t.Setenv("HTTP_TIMEOUT", "10s")
	t.Setenv("SWEEP_INTERVAL", "2m")
	t.Setenv("SWEEP_RETENTION", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://other.example.com", cfg.Auth.Issuer)
	assert.Equal(t, "env-client", cfg.Auth.ClientID)
	assert.Equal(t, "env-secret", cfg.Auth.ClientSecret)
	assert.Equal(t, 8181, cfg.HTTPPort)
	assert.Equal(t, 9191, cfg.MetricsPort)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
	assert.Equal(t, "ffffffffffffffffffffffffffffffff", cfg.EncryptionKey)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout.Duration)
	assert.Equal(t, 2*time.Minute, cfg.Sweeper.Interval.Duration)
	assert.Equal(t, 30*time.Minute, cfg.Sweeper.Retention.Duration)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: `{not json`},
		{name: "missing db path", content: `{
			"encryption_key": "0123456789abcdef0123456789abcdef",
			"auth": {"issuer": "https://i.example.com", "client_id": "c", "client_secret": "s"}
		}`},
		{name: "short encryption key", content: `{
			"db_path": "broker.db",
			"encryption_key": "too-short",
			"auth": {"issuer": "https://i.example.com", "client_id": "c", "client_secret": "s"}
		}`},
		{name: "missing issuer", content: `{
			"db_path": "broker.db",
			"encryption_key": "0123456789abcdef0123456789abcdef",
			"auth": {"client_id": "c", "client_secret": "s"}
		}`},
		{name: "issuer not a url", content: `{
			"db_path": "broker.db",
			"encryption_key": "0123456789abcdef0123456789abcdef",
			"auth": {"issuer": "not-a-url", "client_id": "c", "client_secret": "s"}
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfigFile(t, tt.content))
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_InvalidEnvValues(t *testing.T) {
	path := writeConfigFile(t, validConfig)

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad http port", key: "HTTP_PORT", value: "not-a-number"},
		{name: "bad metrics port", key: "METRICS_PORT", value: "9.5"},
		{name: "bad http timeout", key: "HTTP_TIMEOUT", value: "fast"},
		{name: "bad sweep interval", key: "SWEEP_INTERVAL", value: "soon"},
		{name: "bad sweep retention", key: "SWEEP_RETENTION", value: "forever"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg, err := Load(path)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{name: "string duration", input: `"5s"`, want: 5 * time.Second},
		{name: "compound duration", input: `"1h30m"`, want: 90 * time.Minute},
		{name: "numeric nanoseconds", input: `1000000000`, want: time.Second},
		{name: "invalid string", input: `"fast"`, wantErr: true},
		{name: "invalid type", input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{90 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}
