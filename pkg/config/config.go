package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/stop-on-call/internal/logging"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "STOP_ON_CALL_"

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = uint16(8080)
	DefaultGracePeriod    = 5 * time.Second
	DefaultRedisChannel   = "stop-on-call:stop"
	DefaultRedisStatusKey = "stop-on-call:status"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// ErrConfigFile is returned (wrapped) when an explicitly named file cannot be read or parsed.
var ErrConfigFile = errors.New("invalid config file")

// Method is the HTTP method accepted on the stop route.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// ParseMethod is case-insensitive; anything other than POST is GET.
func ParseMethod(s string) Method {
	if strings.EqualFold(strings.TrimSpace(s), http.MethodPost) {
		return MethodPost
	}
	return MethodGet
}

// Config is the service configuration. It is immutable once loaded.
type Config struct {
	Host   string
	Port   uint16
	Method Method
	// Secret is the shared secret guarding the stop route. Empty means no authentication.
	Secret      string
	GracePeriod time.Duration

	// MetricsAddr enables a Prometheus listener when set (e.g. ":2112").
	MetricsAddr string

	// RedisURL enables the remote trigger and status notifier when set.
	RedisURL       string
	RedisChannel   string
	RedisStatusKey string

	LogLevel  string
	LogFormat string
}

// Default returns the configuration used when no source sets a value.
func Default() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Method:         MethodGet,
		GracePeriod:    DefaultGracePeriod,
		RedisChannel:   DefaultRedisChannel,
		RedisStatusKey: DefaultRedisStatusKey,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}
}

// Addr is the host:port the listener binds.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// HasSecret reports whether stop requests must be authenticated.
func (c Config) HasSecret() bool {
	return c.Secret != ""
}

// raw mirrors Config as it arrives from files, the environment and flags: every value a string.
type raw struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	Method         string `mapstructure:"method"`
	Secret         string `mapstructure:"secret"`
	GracePeriod    string `mapstructure:"grace_period"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	RedisURL       string `mapstructure:"redis_url"`
	RedisChannel   string `mapstructure:"redis_channel"`
	RedisStatusKey string `mapstructure:"redis_status_key"`
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
}

// envNames maps configuration keys to their environment variable suffix.
var envNames = map[string]string{
	"host":             "HOSTNAME",
	"port":             "PORT",
	"method":           "METHOD",
	"secret":           "SECRET",
	"grace_period":     "GRACE_PERIOD",
	"metrics_addr":     "METRICS_ADDR",
	"redis_url":        "REDIS_URL",
	"redis_channel":    "REDIS_CHANNEL",
	"redis_status_key": "REDIS_STATUS_KEY",
	"log_level":        "LOG_LEVEL",
	"log_format":       "LOG_FORMAT",
}

// EnvName returns the environment variable that sets key.
func EnvName(key string) string {
	return EnvPrefix + envNames[key]
}

// Sources lists where configuration is read from, lowest precedence first.
type Sources struct {
	// File is an optional YAML (or JSON) file. A missing file is an error when named.
	File string
	// DotEnv is an optional .env file. A missing file is ignored.
	DotEnv string
	// Environ is the process environment in KEY=VALUE form, usually os.Environ().
	Environ []string
	// Overrides take precedence over everything else (CLI flags). Keys are config keys ("port").
	Overrides map[string]string
}

// Warning records a value that could not be parsed and was replaced by its default.
type Warning struct {
	Key      string
	Value    string
	Fallback string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: invalid value %q, using %q", w.Key, w.Value, w.Fallback)
}

// Load merges the sources and parses the result. Unparseable values fall back to their
// defaults and are reported as warnings; only an unreadable config file is an error.
func Load(src Sources) (Config, []Warning, error) {
	merged := map[string]any{}

	if src.File != "" {
		fileValues, err := readFile(src.File)
		if err != nil {
			return Config{}, nil, err
		}
		for k, v := range fileValues {
			merged[k] = v
		}
	}

	if src.DotEnv != "" {
		dotenv, err := godotenv.Read(src.DotEnv)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, nil, fmt.Errorf("%w: %s: %v", ErrConfigFile, src.DotEnv, err)
		}
		mergeEnv(merged, dotenv)
	}

	mergeEnv(merged, environMap(src.Environ))

	for k, v := range src.Overrides {
		merged[k] = v
	}

	var r raw
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &r,
	})
	if err != nil {
		return Config{}, nil, err
	}
	if err := dec.Decode(merged); err != nil {
		return Config{}, nil, fmt.Errorf("%w: %v", ErrConfigFile, err)
	}

	cfg, warnings := r.parse()
	return cfg, warnings, nil
}

// FromEnv loads configuration from the process environment only.
func FromEnv() (Config, []Warning) {
	cfg, warnings, _ := Load(Sources{Environ: os.Environ()})
	return cfg, warnings
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigFile, err)
	}
	values := map[string]any{}
	// YAML is a superset of JSON, so one decoder covers both.
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigFile, path, err)
	}
	return values, nil
}

// mergeEnv copies prefixed variables into merged. Empty values count as unset.
func mergeEnv(merged map[string]any, env map[string]string) {
	for key, suffix := range envNames {
		if v, ok := env[EnvPrefix+suffix]; ok && v != "" {
			merged[key] = v
		}
	}
}

func environMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}

func (r raw) parse() (Config, []Warning) {
	cfg := Default()
	var warnings []Warning
	warn := func(key, value, fallback string) {
		warnings = append(warnings, Warning{Key: key, Value: value, Fallback: fallback})
	}

	if host := strings.TrimSpace(r.Host); host != "" {
		if ip := net.ParseIP(host); ip != nil {
			cfg.Host = ip.String()
		} else {
			warn("host", r.Host, DefaultHost)
		}
	}

	if port := strings.TrimSpace(r.Port); port != "" {
		if p, err := strconv.ParseUint(port, 10, 16); err == nil {
			cfg.Port = uint16(p)
		} else {
			warn("port", r.Port, strconv.Itoa(int(DefaultPort)))
		}
	}

	cfg.Method = ParseMethod(r.Method)
	cfg.Secret = r.Secret

	if grace := strings.TrimSpace(r.GracePeriod); grace != "" {
		if d, err := time.ParseDuration(grace); err == nil && d > 0 {
			cfg.GracePeriod = d
		} else {
			warn("grace_period", r.GracePeriod, DefaultGracePeriod.String())
		}
	}

	cfg.MetricsAddr = strings.TrimSpace(r.MetricsAddr)
	cfg.RedisURL = strings.TrimSpace(r.RedisURL)
	if ch := strings.TrimSpace(r.RedisChannel); ch != "" {
		cfg.RedisChannel = ch
	}
	if key := strings.TrimSpace(r.RedisStatusKey); key != "" {
		cfg.RedisStatusKey = key
	}

	if _, ok := logging.ParseLevel(r.LogLevel); ok {
		if lvl := strings.TrimSpace(r.LogLevel); lvl != "" {
			cfg.LogLevel = strings.ToLower(lvl)
		}
	} else {
		warn("log_level", r.LogLevel, DefaultLogLevel)
	}

	if _, ok := logging.ParseFormat(r.LogFormat); ok {
		if f := strings.TrimSpace(r.LogFormat); f != "" {
			cfg.LogFormat = strings.ToLower(f)
		}
	} else {
		warn("log_format", r.LogFormat, DefaultLogFormat)
	}

	return cfg, warnings
}
