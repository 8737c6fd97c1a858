// Package config reads the process settings from the environment, after
// loading any .env.local file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/casualjim/recall/concept"
	"github.com/joho/godotenv"
)

// ErrMissingSetting is returned by Validate for required settings left empty.
var ErrMissingSetting = errors.New("missing required setting")

// DefaultEnvFile is loaded before the process environment is read.
const DefaultEnvFile = ".env.local"

type Config struct {
	// LiveKitURL is the public URL participants connect to.
	LiveKitURL       string
	LiveKitAPIKey    string
	LiveKitAPISecret string

	DeepgramAPIKey string
	GroqAPIKey     string
	MurfAPIKey     string
	GroqBaseURL    string

	LLMModel       string
	LLMTemperature float64
	STTModel       string
	STTLanguage    string
	TTSVoice       string
	TTSStyle       string
	SampleRate     int

	ContentFile string
	NATSURL     string
	ListenAddr  string
	// DevTokens mounts the unauthenticated token endpoint on the server.
	DevTokens bool
	LogLevel  string
	LogFormat string
}

func Default() Config {
	return Config{
		LiveKitURL:     "ws://localhost:8080",
		GroqBaseURL:    "https://api.groq.com/openai/v1",
		LLMModel:       "llama-3.3-70b-versatile",
		LLMTemperature: 0.7,
		STTModel:       "nova-2",
		STTLanguage:    "en-US",
		TTSVoice:       "en-US-matthew",
		TTSStyle:       "Conversational",
		SampleRate:     16000,
		ContentFile:    concept.DefaultPath,
		ListenAddr:     ":8080",
		LogLevel:       "info",
		LogFormat:      "console",
	}
}

// Load reads envFiles (DefaultEnvFile when none are given) into the process
// environment without overriding variables already set, then builds the config.
// Missing env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{DefaultEnvFile}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the config from lookup, falling back to defaults.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("LIVEKIT_URL", &cfg.LiveKitURL)
	str("LIVEKIT_API_KEY", &cfg.LiveKitAPIKey)
	str("LIVEKIT_API_SECRET", &cfg.LiveKitAPISecret)
	str("DEEPGRAM_API_KEY", &cfg.DeepgramAPIKey)
	str("GROQ_API_KEY", &cfg.GroqAPIKey)
	str("MURF_API_KEY", &cfg.MurfAPIKey)
	str("GROQ_BASE_URL", &cfg.GroqBaseURL)
	str("LLM_MODEL", &cfg.LLMModel)
	str("STT_MODEL", &cfg.STTModel)
	str("STT_LANGUAGE", &cfg.STTLanguage)
	str("TTS_VOICE", &cfg.TTSVoice)
	str("TTS_STYLE", &cfg.TTSStyle)
	str("CONTENT_FILE", &cfg.ContentFile)
	str("NATS_URL", &cfg.NATSURL)
	str("LISTEN_ADDR", &cfg.ListenAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	var raw string
	str("LLM_TEMPERATURE", &raw)
	if raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLM_TEMPERATURE %q: %w", raw, err)
		}
		cfg.LLMTemperature = t
	}

	raw = ""
	str("DEV_TOKENS", &raw)
	if raw != "" {
		dev, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEV_TOKENS %q: %w", raw, err)
		}
		cfg.DevTokens = dev
	}

	raw = ""
	str("SAMPLE_RATE", &raw)
	if raw != "" {
		rate, err := strconv.Atoi(raw)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("invalid SAMPLE_RATE %q", raw)
		}
		cfg.SampleRate = rate
	}
	return cfg, nil
}

// Validate reports every required setting that is empty. Voice services are
// only required when voice is true.
func (c Config) Validate(voice bool) error {
	required := []struct {
		key, value string
	}{
		{"GROQ_API_KEY", c.GroqAPIKey},
	}
	if voice {
		required = append(required,
			struct{ key, value string }{"LIVEKIT_API_KEY", c.LiveKitAPIKey},
			struct{ key, value string }{"LIVEKIT_API_SECRET", c.LiveKitAPISecret},
			struct{ key, value string }{"DEEPGRAM_API_KEY", c.DeepgramAPIKey},
			struct{ key, value string }{"MURF_API_KEY", c.MurfAPIKey},
		)
	}

	var err error
	for _, r := range required {
		if r.value == "" {
			err = errors.Join(err, fmt.Errorf("%w: %s", ErrMissingSetting, r.key))
		}
	}
	return err
}
