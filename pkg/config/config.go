// Package config loads service settings: defaults, then an optional YAML file, then a
// .env file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix      = "PRONOUNCE_"
	geminiKeyEnv   = "GEMINI_KEY"
	openAITokenEnv = "OPEN_API_TOKEN"
	defaultEnvFile = ".env"
	logFormatText  = "text"
	logFormatJSON  = "json"
)

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type AudioConfig struct {
	ScratchDir       string `yaml:"scratch_dir"`
	FFmpegPath       string `yaml:"ffmpeg_path"`
	Transcode        bool   `yaml:"transcode"`
	TargetSampleRate int    `yaml:"target_sample_rate"`
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`
	// RetentionMinutes of zero disables the sweeper.
	RetentionMinutes     int  `yaml:"retention_minutes"`
	SweepIntervalSeconds int  `yaml:"sweep_interval_seconds"`
	RemoveAfterAssess    bool `yaml:"remove_after_assess"`
}

type ModelsConfig struct {
	Default   string            `yaml:"default"`
	Available []model.ModelInfo `yaml:"available"`
}

type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	UploadMode     string `yaml:"upload_mode"`
	DeleteUploaded bool   `yaml:"delete_uploaded"`
	Structured     bool   `yaml:"structured"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type GenerationConfig struct {
	// Temperature below zero leaves the provider default in place.
	Temperature float64 `yaml:"temperature"`
	// MaxTokens of zero leaves the provider default in place.
	MaxTokens int `yaml:"max_tokens"`
}

type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	HTTP       HTTPConfig       `yaml:"http"`
	Audio      AudioConfig      `yaml:"audio"`
	Models     ModelsConfig     `yaml:"models"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Generation GenerationConfig `yaml:"generation"`
}

func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: logFormatText,
		},
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Audio: AudioConfig{
			ScratchDir:           "media",
			FFmpegPath:           "ffmpeg",
			Transcode:            true,
			MaxUploadBytes:       50 << 20,
			RetentionMinutes:     60,
			SweepIntervalSeconds: 300,
		},
		Models: ModelsConfig{
			Default:   model.DefaultModelName,
			Available: model.DefaultModels(),
		},
		Gemini: GeminiConfig{
			UploadMode: string(model.UploadModeFiles),
		},
		Generation: GenerationConfig{
			Temperature: -1,
		},
	}
}

// Load builds a Config. path may be empty to skip the YAML file. envFile may be empty to
// try ".env" in the working directory; a missing default .env is not an error.
func Load(path string, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := loadEnvFile(envFile); err != nil {
		return cfg, err
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadEnvFile never overrides variables that are already set.
func loadEnvFile(envFile string) error {
	if envFile == "" {
		if _, err := os.Stat(defaultEnvFile); err != nil {
			return nil
		}
		envFile = defaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", envFile, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Logging.Level, envPrefix+"LOG_LEVEL")
	overrideString(&cfg.Logging.Format, envPrefix+"LOG_FORMAT")
	overrideString(&cfg.HTTP.Bind, envPrefix+"HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, envPrefix+"HTTP_PORT")
	overrideString(&cfg.Audio.ScratchDir, envPrefix+"SCRATCH_DIR")
	overrideString(&cfg.Audio.FFmpegPath, envPrefix+"FFMPEG_PATH")
	overrideBool(&cfg.Audio.Transcode, envPrefix+"TRANSCODE")
	overrideInt(&cfg.Audio.TargetSampleRate, envPrefix+"TARGET_SAMPLE_RATE")
	overrideInt64(&cfg.Audio.MaxUploadBytes, envPrefix+"MAX_UPLOAD_BYTES")
	overrideInt(&cfg.Audio.RetentionMinutes, envPrefix+"RETENTION_MINUTES")
	overrideInt(&cfg.Audio.SweepIntervalSeconds, envPrefix+"SWEEP_INTERVAL_SECONDS")
	overrideBool(&cfg.Audio.RemoveAfterAssess, envPrefix+"REMOVE_AFTER_ASSESS")
	overrideString(&cfg.Models.Default, envPrefix+"DEFAULT_MODEL")
	overrideString(&cfg.Gemini.APIKey, geminiKeyEnv)
	overrideString(&cfg.Gemini.APIKey, envPrefix+"GEMINI_API_KEY")
	overrideString(&cfg.Gemini.BaseURL, envPrefix+"GEMINI_BASE_URL")
	overrideString(&cfg.Gemini.UploadMode, envPrefix+"GEMINI_UPLOAD_MODE")
	overrideBool(&cfg.Gemini.DeleteUploaded, envPrefix+"GEMINI_DELETE_UPLOADED")
	overrideBool(&cfg.Gemini.Structured, envPrefix+"GEMINI_STRUCTURED")
	overrideString(&cfg.OpenAI.APIKey, openAITokenEnv)
	overrideString(&cfg.OpenAI.APIKey, envPrefix+"OPENAI_API_KEY")
	overrideString(&cfg.OpenAI.BaseURL, envPrefix+"OPENAI_BASE_URL")
	overrideFloat(&cfg.Generation.Temperature, envPrefix+"TEMPERATURE")
	overrideInt(&cfg.Generation.MaxTokens, envPrefix+"MAX_TOKENS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			*target = parsed
		}
	}
}

func (c Config) Validate() error {
	switch c.Logging.Format {
	case logFormatText, logFormatJSON:
	default:
		return errors.New("logging.format must be one of text|json")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.Audio.ScratchDir) == "" {
		return errors.New("audio.scratch_dir must not be empty")
	}
	if c.Audio.Transcode && strings.TrimSpace(c.Audio.FFmpegPath) == "" {
		return errors.New("audio.ffmpeg_path must be set when transcode is enabled")
	}
	if c.Audio.TargetSampleRate < 0 {
		return errors.New("audio.target_sample_rate must be >= 0")
	}
	if c.Audio.MaxUploadBytes <= 0 {
		return errors.New("audio.max_upload_bytes must be positive")
	}
	if c.Audio.RetentionMinutes < 0 {
		return errors.New("audio.retention_minutes must be >= 0")
	}
	if c.Audio.RetentionMinutes > 0 && c.Audio.SweepIntervalSeconds <= 0 {
		return errors.New("audio.sweep_interval_seconds must be positive when retention is enabled")
	}
	switch model.UploadMode(c.Gemini.UploadMode) {
	case model.UploadModeFiles, model.UploadModeInline:
	default:
		return errors.New("gemini.upload_mode must be one of files|inline")
	}
	if c.Generation.MaxTokens < 0 {
		return errors.New("generation.max_tokens must be >= 0")
	}
	return c.validateModels()
}

func (c Config) validateModels() error {
	if len(c.Models.Available) == 0 {
		return errors.New("models.available must not be empty")
	}
	seen := make(map[string]struct{}, len(c.Models.Available))
	for _, m := range c.Models.Available {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return errors.New("models.available entries need a name")
		}
		switch m.Provider {
		case model.ProviderGemini, model.ProviderOpenAI:
		default:
			return fmt.Errorf("models.available %q has unknown provider %q", name, m.Provider)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("models.available lists %q twice", name)
		}
		seen[name] = struct{}{}
	}
	if _, ok := seen[strings.TrimSpace(c.Models.Default)]; !ok {
		return fmt.Errorf("models.default %q is not in models.available", c.Models.Default)
	}
	return nil
}

func (c Config) Catalog() model.ModelCatalog {
	return model.NewModelCatalog(c.Models.Available, c.Models.Default)
}

func (c Config) RetentionTTL() time.Duration {
	return time.Duration(c.Audio.RetentionMinutes) * time.Minute
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Audio.SweepIntervalSeconds) * time.Second
}

func (c Config) GeminiOptions() model.AssessmentOptions {
	opts := c.generationOptions()
	opts.AuthToken = c.Gemini.APIKey
	opts.URL = c.Gemini.BaseURL
	opts.UploadMode = model.UploadMode(c.Gemini.UploadMode)
	opts.DeleteUploaded = c.Gemini.DeleteUploaded
	opts.Structured = c.Gemini.Structured
	return opts
}

func (c Config) OpenAIOptions() model.AssessmentOptions {
	opts := c.generationOptions()
	opts.AuthToken = c.OpenAI.APIKey
	opts.URL = c.OpenAI.BaseURL
	return opts
}

func (c Config) generationOptions() model.AssessmentOptions {
	var opts model.AssessmentOptions
	if c.Generation.Temperature >= 0 {
		temperature := c.Generation.Temperature
		opts.Temperature = &temperature
	}
	if c.Generation.MaxTokens > 0 {
		maxTokens := c.Generation.MaxTokens
		opts.MaxTokens = &maxTokens
	}
	return opts
}
