package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("json document", func(t *testing.T) {
		path := writeFile(t, "config.json", `{
			"token": "abc",
			"start_date": "2024-01-01T00:00:00Z",
			"streams": ["landings", "answers"],
			"request_interval": "2s",
			"sink": {"type": "jsonl", "options": {"dir": "/tmp/out"}}
		}`)

		cfg, err := Load(path)
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())

		assert.Equal(t, "abc", cfg.Token)
		assert.Equal(t, []string{"landings", "answers"}, cfg.Streams)
		assert.Equal(t, 2*time.Second, cfg.RequestInterval)
		assert.Equal(t, DefaultResponsesPageSize, cfg.ResponsesPageSize)
		assert.Equal(t, "jsonl", cfg.Sink.Type)
		assert.Equal(t, "/tmp/out", cfg.Sink.Option("dir", ""))
		assert.Equal(t, "file", cfg.State.Type)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartTime(time.Now()))
	})

	t.Run("yaml with env substitution", func(t *testing.T) {
		t.Setenv("FORMTAP_TEST_TOKEN", "from-env")
		path := writeFile(t, "config.yaml", "token: ${FORMTAP_TEST_TOKEN}\nhard_retry:\n  interval: 30s\n")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Token)
		assert.Equal(t, 30*time.Second, cfg.HardRetry.Interval)
		assert.Equal(t, 5, cfg.HardRetry.MaxAttempts)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})

	t.Run("malformed", func(t *testing.T) {
		path := writeFile(t, "bad.json", `{"token": [`)
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*TapConfig)
		wantErr  bool
		errorMsg string
	}{
		{name: "valid", mutate: func(c *TapConfig) {}},
		{name: "missing token", mutate: func(c *TapConfig) { c.Token = " " }, wantErr: true, errorMsg: "token is required"},
		{name: "bad start date", mutate: func(c *TapConfig) { c.StartDate = "yesterday" }, wantErr: true, errorMsg: "invalid start_date"},
		{name: "unknown stream", mutate: func(c *TapConfig) { c.Streams = []string{"votes"} }, wantErr: true, errorMsg: `unknown stream "votes"`},
		{name: "date only start", mutate: func(c *TapConfig) { c.StartDate = "2023-06-01" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTapConfig()
			cfg.Token = "abc"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestStartTimeDefaultsToToday(t *testing.T) {
	cfg := NewTapConfig()
	now := time.Date(2024, 3, 9, 17, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), cfg.StartTime(now))
}

func TestFilters(t *testing.T) {
	cfg := NewTapConfig()
	assert.True(t, cfg.StreamEnabled(StreamAnswers))
	assert.True(t, cfg.FormAllowed("any"))

	cfg.Streams = []string{StreamLandings}
	cfg.Forms = []string{"f1"}
	assert.True(t, cfg.StreamEnabled(StreamLandings))
	assert.False(t, cfg.StreamEnabled(StreamAnswers))
	assert.True(t, cfg.FormAllowed("f1"))
	assert.False(t, cfg.FormAllowed("f2"))
}

func TestApplyOverrides(t *testing.T) {
	cfg := NewTapConfig()
	cfg.Token = "file-token"

	v := viper.New()
	v.Set("token", "flag-token")
	v.Set("log.level", "debug")
	v.Set("request_interval", "1s")
	v.Set("streams", []string{"forms"})
	v.Set("tracing", true)

	ApplyOverrides(cfg, v)

	assert.Equal(t, "flag-token", cfg.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.RequestInterval)
	assert.Equal(t, []string{"forms"}, cfg.Streams)
	assert.True(t, cfg.Tracing)
	assert.Equal(t, "singer", cfg.Sink.Type)
}

func TestNewViperReadsEnvironment(t *testing.T) {
	t.Setenv("FORMTAP_TOKEN", "env-token")
	t.Setenv("FORMTAP_LOG_LEVEL", "warn")

	cfg := NewTapConfig()
	ApplyOverrides(cfg, NewViper())

	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("A", "${B}")
	t.Setenv("B", "nested")
	assert.Equal(t, "x=${B};y=", substituteEnvVars("x=${A};y=${FORMTAP_UNSET_VAR}"))
	assert.Equal(t, "open ${tail", substituteEnvVars("open ${tail"))
}
