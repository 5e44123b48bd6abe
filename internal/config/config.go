// Package config loads voicechat configuration. Values are layered, each
// layer overriding the one before: built-in defaults, an optional YAML file,
// the environment (including a .env file) and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chriscow/voicechat/internal/chat"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no config file is given and it exists.
const DefaultFile = "voicechat.yaml"

// EnvPrefix prefixes every voicechat environment variable.
const EnvPrefix = "VOICECHAT_"

// Config is the complete voicechat configuration.
type Config struct {
	Client ClientConfig `yaml:"client"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ClientConfig configures the ui and chat commands.
type ClientConfig struct {
	ChatURL         string `yaml:"chat_url"`
	BaseURL         string `yaml:"base_url"`
	ConnectEndpoint string `yaml:"connect_endpoint"`
	Mode            string `yaml:"mode"`

	// MicFile is an Ogg/Opus file streamed as the microphone
	MicFile string `yaml:"mic_file"`

	// RecordDir receives the bot audio as Ogg files when set
	RecordDir string `yaml:"record_dir"`
}

// ServerConfig configures the serve command.
type ServerConfig struct {
	Addr          string        `yaml:"addr"`
	LiveKitURL    string        `yaml:"livekit_url"`
	APIKey        string        `yaml:"api_key"`
	APISecret     string        `yaml:"api_secret"`
	Room          string        `yaml:"room"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	AllowedOrigin string        `yaml:"allowed_origin"`

	LLMProvider string  `yaml:"llm_provider"`
	LLMBaseURL  string  `yaml:"llm_base_url"`
	LLMAPIKey   string  `yaml:"llm_api_key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	TopP        float32 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
	PromptFile  string  `yaml:"prompt_file"`

	// PluginDir holds .so LLM providers loaded at startup
	PluginDir string `yaml:"plugin_dir"`
}

// LogConfig configures the slog default logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// File receives the logs instead of stderr
	File string `yaml:"file"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Client: ClientConfig{
			ChatURL:         chat.DefaultURL,
			BaseURL:         "http://localhost:8080",
			ConnectEndpoint: "/connect",
			Mode:            "chat",
		},
		Server: ServerConfig{
			Addr:          ":8080",
			TokenTTL:      time.Hour,
			AllowedOrigin: "*",
			LLMProvider:   "openai",
			LLMBaseURL:    "https://api.cerebras.ai/v1",
			Model:         "llama-3.3-70b",
			Temperature:   0.7,
			TopP:          1.0,
			MaxTokens:     250,
			PromptFile:    "prompt.txt",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// DefaultFile if path is empty and the file exists), .env and the
// environment. Flags are applied afterwards with ApplyFlags.
func Load(path string) (Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overlays environment variables. The LiveKit and OpenAI variables
// are honoured under their usual names as well.
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	str(&c.Client.ChatURL, EnvPrefix+"CHAT_URL")
	str(&c.Client.BaseURL, EnvPrefix+"BASE_URL")
	str(&c.Client.ConnectEndpoint, EnvPrefix+"CONNECT_ENDPOINT")
	str(&c.Client.Mode, EnvPrefix+"MODE")
	str(&c.Client.MicFile, EnvPrefix+"MIC_FILE")
	str(&c.Client.RecordDir, EnvPrefix+"RECORD_DIR")

	str(&c.Server.Addr, EnvPrefix+"ADDR")
	str(&c.Server.LiveKitURL, EnvPrefix+"LIVEKIT_URL", "LIVEKIT_URL")
	str(&c.Server.APIKey, EnvPrefix+"API_KEY", "LIVEKIT_API_KEY")
	str(&c.Server.APISecret, EnvPrefix+"API_SECRET", "LIVEKIT_API_SECRET")
	str(&c.Server.Room, EnvPrefix+"ROOM")
	str(&c.Server.AllowedOrigin, EnvPrefix+"ALLOWED_ORIGIN")
	str(&c.Server.LLMProvider, EnvPrefix+"LLM_PROVIDER")
	str(&c.Server.LLMBaseURL, EnvPrefix+"LLM_BASE_URL")
	str(&c.Server.LLMAPIKey, EnvPrefix+"LLM_API_KEY", "CEREBRAS_API_KEY", "OPENAI_API_KEY")
	str(&c.Server.Model, EnvPrefix+"MODEL")
	str(&c.Server.PromptFile, EnvPrefix+"PROMPT_FILE")
	str(&c.Server.PluginDir, EnvPrefix+"PLUGIN_DIR")

	str(&c.Log.Level, EnvPrefix+"LOG_LEVEL")
	str(&c.Log.Format, EnvPrefix+"LOG_FORMAT")
	str(&c.Log.File, EnvPrefix+"LOG_FILE")

	if v, ok := lookup(EnvPrefix + "TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sTOKEN_TTL: %w", EnvPrefix, err)
		}
		c.Server.TokenTTL = d
	}
	if v, ok := lookup(EnvPrefix + "TEMPERATURE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("invalid %sTEMPERATURE: %w", EnvPrefix, err)
		}
		c.Server.Temperature = float32(f)
	}
	if v, ok := lookup(EnvPrefix + "MAX_TOKENS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sMAX_TOKENS: %w", EnvPrefix, err)
		}
		c.Server.MaxTokens = n
	}
	return nil
}

// ApplyFlags copies every flag the user set explicitly over the loaded
// values. Flag names map to fields as listed in flagTargets.
func (c *Config) ApplyFlags(flags *pflag.FlagSet) error {
	targets := c.flagTargets()

	var err error
	flags.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		dst, ok := targets[f.Name]
		if !ok {
			return
		}
		switch p := dst.(type) {
		case *string:
			*p = f.Value.String()
		case *int:
			*p, err = strconv.Atoi(f.Value.String())
		case *float32:
			var v float64
			v, err = strconv.ParseFloat(f.Value.String(), 32)
			*p = float32(v)
		case *time.Duration:
			*p, err = time.ParseDuration(f.Value.String())
		}
		if err != nil {
			err = fmt.Errorf("invalid --%s: %w", f.Name, err)
		}
	})
	return err
}

func (c *Config) flagTargets() map[string]any {
	return map[string]any{
		"chat-url":         &c.Client.ChatURL,
		"base-url":         &c.Client.BaseURL,
		"connect-endpoint": &c.Client.ConnectEndpoint,
		"mode":             &c.Client.Mode,
		"mic-file":         &c.Client.MicFile,
		"record":           &c.Client.RecordDir,

		"addr":           &c.Server.Addr,
		"livekit-url":    &c.Server.LiveKitURL,
		"api-key":        &c.Server.APIKey,
		"api-secret":     &c.Server.APISecret,
		"room":           &c.Server.Room,
		"token-ttl":      &c.Server.TokenTTL,
		"allowed-origin": &c.Server.AllowedOrigin,
		"llm-provider":   &c.Server.LLMProvider,
		"llm-base-url":   &c.Server.LLMBaseURL,
		"llm-api-key":    &c.Server.LLMAPIKey,
		"model":          &c.Server.Model,
		"temperature":    &c.Server.Temperature,
		"max-tokens":     &c.Server.MaxTokens,
		"prompt-file":    &c.Server.PromptFile,
		"plugin-dir":     &c.Server.PluginDir,

		"log-level":  &c.Log.Level,
		"log-format": &c.Log.Format,
		"log-file":   &c.Log.File,
	}
}

// ValidateClient checks the settings used by the ui and chat commands.
func (c Config) ValidateClient() error {
	if c.Client.ChatURL == "" {
		return fmt.Errorf("chat URL is required")
	}
	if c.Client.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	switch strings.ToLower(c.Client.Mode) {
	case "chat", "voice":
	default:
		return fmt.Errorf("mode must be chat or voice, got %q", c.Client.Mode)
	}
	return c.Log.validate()
}

// ValidateServer checks the settings used by the serve command.
func (c Config) ValidateServer() error {
	s := c.Server
	if s.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if s.LiveKitURL == "" {
		return fmt.Errorf("LiveKit URL is required (--livekit-url or LIVEKIT_URL)")
	}
	if s.APIKey == "" || s.APISecret == "" {
		return fmt.Errorf("LiveKit API key and secret are required (LIVEKIT_API_KEY, LIVEKIT_API_SECRET)")
	}
	if s.LLMProvider == "" {
		return fmt.Errorf("LLM provider is required")
	}
	if s.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	if s.Temperature < 0 || s.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return c.Log.validate()
}

func (l LogConfig) validate() error {
	if _, err := parseLevel(l.Level); err != nil {
		return err
	}
	switch l.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("log format must be console or json, got %q", l.Format)
	}
}

// LoadPrompt reads the system prompt file. A missing default prompt file
// yields an empty prompt.
func (s ServerConfig) LoadPrompt() (string, error) {
	if s.PromptFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(s.PromptFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && s.PromptFile == Defaults().Server.PromptFile {
			return "", nil
		}
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
