// Package config loads flipdeck settings from defaults, an optional YAML
// file, FLIPDECK_ environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/flipdeck/internal/quiz"
	"github.com/conorfennell/flipdeck/internal/review"
)

const EnvPrefix = "FLIPDECK_"

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

type Config struct {
	DBPath   string `koanf:"db" validate:"required"`
	ReposDir string `koanf:"repos_dir" validate:"required"`
	Source   string `koanf:"source" validate:"oneof=local remote"`
	Learner  string `koanf:"learner" validate:"required"`

	Log    LogConfig    `koanf:"log"`
	Remote RemoteConfig `koanf:"remote"`
	Review ReviewConfig `koanf:"review"`
	Quiz   quiz.Config  `koanf:"quiz"`
	Audio  AudioConfig  `koanf:"audio"`
	Web    WebConfig    `koanf:"web"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type RemoteConfig struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	Token   string        `koanf:"token"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type ReviewConfig struct {
	Limit         int               `koanf:"limit" validate:"gt=0,lte=500"`
	FetchTimeout  time.Duration     `koanf:"fetch_timeout" validate:"gt=0"`
	SubmitTimeout time.Duration     `koanf:"submit_timeout" validate:"gt=0"`
	Retries       uint64            `koanf:"retries" validate:"lte=10"`
	RetryBase     time.Duration     `koanf:"retry_base" validate:"gt=0"`
	Points        int               `koanf:"points" validate:"gte=0"`
	Thresholds    review.Thresholds `koanf:"thresholds"`
}

// AudioConfig holds the player command lines. {text} and {ref} are replaced
// with the spoken text and the audio reference.
type AudioConfig struct {
	TextCommand string            `koanf:"text_command"`
	ClipCommand string            `koanf:"clip_command"`
	Clips       map[string]string `koanf:"clips"`
}

type WebConfig struct {
	Addr          string        `koanf:"addr" validate:"required,hostname_port"`
	FeedbackDelay time.Duration `koanf:"feedback_delay" validate:"gte=0"`
}

var defaults = map[string]any{
	"db":                          "flipdeck.db",
	"repos_dir":                   ".flipdeck/repos",
	"source":                      SourceLocal,
	"learner":                     "default",
	"log.level":                   "info",
	"log.format":                  "text",
	"remote.timeout":              10 * time.Second,
	"review.limit":                20,
	"review.fetch_timeout":        10 * time.Second,
	"review.submit_timeout":       10 * time.Second,
	"review.retries":              2,
	"review.retry_base":           200 * time.Millisecond,
	"review.points":               10,
	"review.thresholds.excellent": 90,
	"review.thresholds.good":      70,
	"quiz.options":                4,
	"quiz.max_attempts":           3,
	"web.addr":                    "127.0.0.1:8080",
	"web.feedback_delay":          1500 * time.Millisecond,
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"db":         "db",
	"repos-dir":  "repos_dir",
	"source":     "source",
	"learner":    "learner",
	"log-level":  "log.level",
	"log-format": "log.format",
	"remote-url": "remote.base_url",
	"addr":       "web.addr",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("db", "", "path to the SQLite deck database")
	fs.String("repos-dir", "", "where git deck sources are cloned")
	fs.String("source", "", "card source: local or remote")
	fs.String("learner", "", "learner ID to review as")
	fs.String("log-level", "", "debug, info, warn or error")
	fs.String("log-format", "", "text or json")
	fs.String("remote-url", "", "base URL of the flashcard API")
	fs.String("addr", "", "listen address for serve")
}

// Load merges every configuration layer and validates the result. fs must be
// parsed already; it may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set default %s: %w", key, err)
		}
	}

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		p := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		cfg := sl.Current().Interface().(Config)
		if cfg.Source == SourceRemote && cfg.Remote.BaseURL == "" {
			sl.ReportError(cfg.Remote.BaseURL, "Remote.BaseURL", "BaseURL", "required_with_remote", "")
		}
	}, Config{})
	return v
}

// Validate checks field constraints and reports every violation at once.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}
