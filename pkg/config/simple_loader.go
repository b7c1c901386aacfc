package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/formtap/pkg/errors"
)

// EnvPrefix is the prefix viper uses for environment overrides.
const EnvPrefix = "FORMTAP"

// Load reads a tap configuration file, substitutes ${VAR} references and
// applies defaults. The result is not validated.
func Load(filePath string) (*TapConfig, error) {
	cfg := &TapConfig{}
	if err := LoadInto(filePath, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadInto decodes a YAML or JSON document into out
func LoadInto(filePath string, out interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config").
			WithDetail("path", filePath)
	}

	return nil
}

// ApplyOverrides lays values set in v over cfg. Keys match the YAML names,
// nested with dots (log.level, sink.type).
func ApplyOverrides(cfg *TapConfig, v *viper.Viper) {
	if v == nil {
		return
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) && v.GetString(key) != "" {
			*dst = v.GetString(key)
		}
	}

	setString("token", &cfg.Token)
	setString("start_date", &cfg.StartDate)
	setString("base_url", &cfg.BaseURL)
	setString("user_agent", &cfg.UserAgent)
	setString("metrics_textfile", &cfg.MetricsTextfile)
	setString("log.level", &cfg.Log.Level)
	setString("log.encoding", &cfg.Log.Encoding)
	setString("sink.type", &cfg.Sink.Type)
	setString("state.type", &cfg.State.Type)

	if v.IsSet("streams") {
		if s := v.GetStringSlice("streams"); len(s) > 0 {
			cfg.Streams = s
		}
	}
	if v.IsSet("forms") {
		if f := v.GetStringSlice("forms"); len(f) > 0 {
			cfg.Forms = f
		}
	}
	if v.IsSet("request_interval") {
		if d := v.GetDuration("request_interval"); d > 0 {
			cfg.RequestInterval = d
		}
	}
	if v.IsSet("page_timeout") {
		if d := v.GetDuration("page_timeout"); d > 0 {
			cfg.PageTimeout = d
		}
	}
	if v.IsSet("tracing") {
		cfg.Tracing = v.GetBool("tracing")
	}
	if v.IsSet("log.development") {
		cfg.Log.Development = v.GetBool("log.development")
	}
}

// NewViper returns a viper instance reading FORMTAP_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"token", "start_date", "base_url", "user_agent", "metrics_textfile",
		"log.level", "log.encoding", "log.development", "sink.type", "state.type",
		"streams", "forms", "request_interval", "page_timeout", "tracing",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Substituted text is not scanned again.
func substituteEnvVars(content string) string {
	var b strings.Builder
	rest := content
	for {
		start := strings.Index(rest, "${")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(rest[:start])
		b.WriteString(os.Getenv(rest[start+2 : end]))
		rest = rest[end+1:]
	}
	b.WriteString(rest)
	return b.String()
}
