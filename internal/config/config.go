package config

import (
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
)

const envPrefix = "ANKICHAT_"

// LLM holds settings for the content-generation client.
type LLM struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model" validate:"required"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// Config is the full application configuration. Values are layered:
// defaults, then the YAML config file, then ANKICHAT_* environment
// variables, then command-line flags.
type Config struct {
	DBPath          string   `koanf:"db_path" validate:"required"`
	UserID          string   `koanf:"user_id" validate:"required"`
	MaxSessionCards int      `koanf:"max_session_cards" validate:"gt=0"`
	Sources         []string `koanf:"sources"`
	ReposDir        string   `koanf:"repos_dir" validate:"required"`
	LogLevel        string   `koanf:"log_level" validate:"oneof=debug info warn error"`
	LLM             LLM      `koanf:"llm"`
}

func defaults() Config {
	return Config{
		DBPath:          "ankichat.db",
		UserID:          "default",
		MaxSessionCards: 20,
		ReposDir:        "repos",
		LogLevel:        "info",
		LLM: LLM{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 10 * time.Second,
		},
	}
}

// Flags returns the flag set Load understands. Callers parse it before
// calling Load so --help works without touching config files.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("ankichat", pflag.ContinueOnError)
	fs.String("config", "", "path to YAML config file")
	fs.String("db-path", "", "path to the SQLite database")
	fs.String("user-id", "", "user the session belongs to")
	fs.Int("max-session-cards", 0, "maximum cards per review session")
	fs.StringSlice("source", nil, "card source directory or git URL (repeatable)")
	fs.String("mode", "standard", "training mode: standard, fill_in_blank or multiple_choice")
	fs.Bool("import", false, "import card sources before starting")
	fs.String("log-level", "", "log level: debug, info, warn or error")
	return fs
}

// flagKeys maps flag names to config keys. Flags not listed here are
// runtime switches, not configuration.
var flagKeys = map[string]string{
	"db-path":           "db_path",
	"user-id":           "user_id",
	"max-session-cards": "max_session_cards",
	"source":            "sources",
	"log-level":         "log_level",
}

// Load builds the configuration from defaults, the optional config file,
// the environment, and parsed flags, then validates it.
func Load(fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// ANKICHAT_DB_PATH -> db_path; a double underscore nests, so
	// ANKICHAT_LLM__API_KEY -> llm.api_key.
	envMapper := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}
	if err := k.Load(env.Provider(envPrefix, ".", envMapper), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment: %w", err)
	}

	flagMapper := func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagMapper), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load flags: %w", err)
	}

	// Unmarshalling over the defaults keeps any value no layer set.
	cfg := defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
