package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/aisuru/companion/backend/internal/config"
	"github.com/aisuru/companion/backend/internal/model/companion"
	"github.com/aisuru/companion/backend/internal/service/ai"
	chatService "github.com/aisuru/companion/backend/internal/service/chat"
	"github.com/aisuru/companion/backend/internal/service/speech"
	"github.com/aisuru/companion/backend/internal/store"
)

// app holds the long-lived services built from configuration.
type app struct {
	companions  companion.Store
	chats       *chatService.Service
	synthesizer speech.Synthesizer
	transcriber speech.Transcriber
	transcripts store.TranscriptStore
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	companions, err := loadCompanions(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	var gemini *genai.Client
	if cfg.AI.Provider == config.ProviderGemini || cfg.Speech.Enabled || cfg.Speech.TranscribeModel != "" {
		apiKey := cfg.AI.Gemini.APIKey
		if apiKey == "" {
			apiKey = cfg.Speech.APIKey
		}
		if apiKey != "" {
			gemini, err = genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  apiKey,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				return nil, errors.Wrap(err, "create gemini client")
			}
		}
	}

	var generator ai.Generator
	if cfg.AI.Enabled() {
		generator, err = ai.NewGenerator(ctx, cfg.AI, gemini)
		if err != nil {
			return nil, errors.Wrap(err, "create reply generator")
		}
		log.Info().Str("provider", cfg.AI.Provider).Msg("reply generator ready")
	} else {
		generator = ai.Unavailable{}
		log.Warn().Str("provider", cfg.AI.Provider).Msg("ai credentials missing, every reply will fail")
	}

	var synthesizer speech.Synthesizer = speech.Disabled{}
	if cfg.Speech.Enabled && gemini != nil {
		synthesizer = speech.NewGeminiSynthesizer(gemini, cfg.Speech.Model, cfg.Speech.Timeout, cfg.Speech.Format)
		log.Info().Str("model", cfg.Speech.Model).Stringer("format", cfg.Speech.Format).Msg("speech synthesis ready")
	} else {
		log.Info().Msg("speech synthesis disabled, replies carry no voice")
	}

	var transcriber speech.Transcriber
	if cfg.Speech.TranscribeModel != "" && gemini != nil {
		transcriber = speech.NewGeminiTranscriber(gemini, cfg.Speech.TranscribeModel, cfg.Speech.Timeout)
		log.Info().Str("model", cfg.Speech.TranscribeModel).Stringer("input", cfg.Speech.InputFormat).Msg("speech recognition ready")
	} else {
		log.Info().Msg("speech recognition disabled, voice input is rejected")
	}

	transcripts, err := openTranscripts(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	chats := chatService.NewService(companions, generator, synthesizer, transcripts, chatService.Options{
		HistoryLimit: cfg.AI.HistoryLimit,
	})

	return &app{
		companions:  companions,
		chats:       chats,
		synthesizer: synthesizer,
		transcriber: transcriber,
		transcripts: transcripts,
	}, nil
}

func (a *app) Close() {
	a.chats.Close()
	if err := a.transcripts.Close(); err != nil {
		log.Warn().Err(err).Msg("close transcript store")
	}
}

func loadCompanions(cfg config.CatalogConfig) (companion.Store, error) {
	if cfg.File == "" {
		return companion.NewMemoryStore(companion.Seed()), nil
	}
	items, err := companion.LoadFile(cfg.File)
	if err != nil {
		return nil, errors.Wrapf(err, "load companions from %s", cfg.File)
	}
	log.Info().Str("file", cfg.File).Int("count", len(items)).Msg("companion catalog loaded")
	return companion.NewMemoryStore(items), nil
}

// openTranscripts builds the local store and, when Redis is configured, puts
// the remote document store in front of it.
func openTranscripts(ctx context.Context, cfg config.StoreConfig) (store.TranscriptStore, error) {
	var local store.TranscriptStore
	if cfg.SQLitePath == "" {
		local = store.NewMemoryStore()
	} else {
		dsn, err := store.SQLiteDSNForFile(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sqlite, err := store.NewSQLiteStore(dsn)
		if err != nil {
			return nil, errors.Wrap(err, "open sqlite transcripts")
		}
		local = sqlite
		log.Info().Str("path", cfg.SQLitePath).Msg("local transcripts in sqlite")
	}

	if !cfg.RemoteEnabled() {
		return local, nil
	}

	remote := store.NewRedisStore(store.RedisOptions{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisKeyPrefix,
	})
	if err := remote.Ping(ctx); err != nil {
		// Permission errors surface on first use and switch the store to local.
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
	}
	return store.NewFallbackStore(remote, local), nil
}
