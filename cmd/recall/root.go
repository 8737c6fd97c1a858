package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/casualjim/recall/concept"
	"github.com/casualjim/recall/internal/broker"
	"github.com/casualjim/recall/internal/config"
	"github.com/casualjim/recall/internal/logging"
	"github.com/casualjim/recall/pkg/natsx"
	"github.com/casualjim/recall/pkg/slogx"
	"github.com/casualjim/recall/provider/openai"
	"github.com/casualjim/recall/session"
	"github.com/casualjim/recall/voice/stt"
	"github.com/casualjim/recall/voice/tts"
	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "recall",
		Short:         "Active Recall Coach, a voice tutor for programming concepts",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSlice("env-file", []string{config.DefaultEnvFile}, "Environment files loaded before the process environment")

	root.AddCommand(NewStartCommand())
	root.AddCommand(NewConsoleCommand())
	root.AddCommand(NewTokenCommand())
	return root
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// loadConcepts reads the content file. A missing file leaves the store empty.
func loadConcepts(cfg config.Config) (*concept.Store, error) {
	store, err := concept.Load(cfg.ContentFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load concepts from %s: %w", cfg.ContentFile, err)
	}
	return store, nil
}

// connectBroker uses NATS when NATS_URL is set and an in-process broker otherwise.
// The returned function releases the connection.
func connectBroker(ctx context.Context, cfg config.Config, logger *slog.Logger) (broker.Broker, func(), error) {
	if cfg.NATSURL == "" {
		return broker.Local(), func() {}, nil
	}
	nc, err := natsx.NewClient(cfg.NATSURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	logger.InfoContext(ctx, "publishing session events to nats", slog.String("url", cfg.NATSURL))
	return broker.NATS(nc), func() {
		if err := nc.Drain(); err != nil {
			logger.WarnContext(ctx, "failed to drain nats connection", slogx.Error(err))
		}
	}, nil
}

// newWorker prewarms the shared session resources. Voice services are only
// created when voice is set.
func newWorker(cfg config.Config, logger *slog.Logger, b broker.Broker, voice bool, extra ...session.Option) (*session.Worker, error) {
	if err := cfg.Validate(voice); err != nil {
		return nil, err
	}
	store, err := loadConcepts(cfg)
	if err != nil {
		return nil, err
	}

	options := []session.Option{
		session.WithStore(store),
		session.WithModel(openai.Groq(cfg.LLMModel, cfg.GroqAPIKey, cfg.GroqBaseURL)),
		session.WithTemperature(cfg.LLMTemperature),
		session.WithBroker(b),
		session.WithSampleRate(cfg.SampleRate),
		session.WithLogger(logger),
	}
	if voice {
		options = append(options,
			session.WithTranscriber(stt.NewDeepgram(stt.DeepgramConfig{
				APIKey:     cfg.DeepgramAPIKey,
				Model:      cfg.STTModel,
				Language:   cfg.STTLanguage,
				SampleRate: cfg.SampleRate,
			})),
			session.WithSynthesizer(tts.NewMurf(tts.MurfConfig{
				APIKey:     cfg.MurfAPIKey,
				Voice:      cfg.TTSVoice,
				Style:      cfg.TTSStyle,
				SampleRate: cfg.SampleRate,
			})),
		)
	}
	return session.NewWorker(append(options, extra...)...)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
