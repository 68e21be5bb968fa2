package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swaasthya/saathi/internal/advice"
	"github.com/swaasthya/saathi/internal/audio"
	"github.com/swaasthya/saathi/internal/config"
	"github.com/swaasthya/saathi/internal/conversation"
	"github.com/swaasthya/saathi/internal/httpapi"
	"github.com/swaasthya/saathi/internal/localize"
	"github.com/swaasthya/saathi/internal/messaging"
	"github.com/swaasthya/saathi/internal/observability"
	"github.com/swaasthya/saathi/internal/prescription"
	"github.com/swaasthya/saathi/internal/session"
	"github.com/swaasthya/saathi/internal/speech"
	"github.com/swaasthya/saathi/internal/verify"
)

const (
	hubQueueSize      = 64
	janitorInterval   = time.Minute
	assetSweepEvery   = 10 * time.Minute
	sessionGaugeEvery = 30 * time.Second
)

type ProviderInfo struct {
	Mode         string
	Detail       string
	AudioBackend string
	SessionStore string
}

type BuildResult struct {
	Config     config.Config
	API        *httpapi.Server
	Dispatcher *conversation.Dispatcher
	Sessions   session.Repository
	Assets     *speech.LocalAssetStore
	Metrics    *observability.Metrics
	Providers  ProviderInfo

	// Cleanup should be called on shutdown after the dispatcher has drained.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL parse error: %w", err)
		}
		redisClient = redis.NewClient(opts)
	}
	closeRedis := func() error {
		if redisClient == nil {
			return nil
		}
		return redisClient.Close()
	}

	sessions, err := session.NewRepository(ctx, session.StoreConfig{
		Kind:        cfg.SessionStore,
		DatabaseURL: cfg.DatabaseURL,
		Redis:       redisClient,
		TTL:         cfg.SessionTTL,
	})
	if err != nil {
		_ = closeRedis()
		return nil, fmt.Errorf("session store init failed: %w", err)
	}
	fail := func(err error) (*BuildResult, error) {
		_ = sessions.Close()
		_ = closeRedis()
		return nil, err
	}

	providers, err := resolveProviders(cfg, metrics)
	if err != nil {
		return fail(err)
	}
	audioSetup := resolveAudio(cfg)

	assets, err := speech.NewLocalAssetStore(cfg.PublicDir, cfg.PublicBaseURL, cfg.AssetTTL)
	if err != nil {
		return fail(fmt.Errorf("asset store init failed: %w", err))
	}
	synth := speech.NewSynthesizer(providers.voice, audioSetup.transcoder, assets, speech.SynthesizerConfig{
		MaxChunkChars: cfg.TTSMaxChunkChars,
		Parallelism:   cfg.TTSParallelism,
		ScratchDir:    cfg.ScratchDir,
		Format:        audio.PCMFormat{SampleRate: cfg.TTSSampleRate},
	}, metrics)
	recognizer := speech.NewRecognizer(audioSetup.converter, providers.stt, cfg.SarvamSTTModel)

	var fallback localize.Backend
	if providers.mode == "live" && cfg.TranslateFallbackURL != "" {
		fallback = localize.NewPublicBackend(cfg.TranslateFallbackURL)
	}
	translator := localize.NewTranslator(
		localize.NewLLMBackend(providers.llm, cfg.LLMTextModel),
		fallback,
		localize.WithFallbackRecorder(metrics),
	)

	var structurer prescription.Structurer
	if cfg.MedicalAPIURL != "" {
		structurer = prescription.NewMedicalClient(cfg.MedicalAPIURL, cfg.LLMTimeout)
	}
	extractor := prescription.NewExtractor(providers.llm, structurer, prescription.ExtractorConfig{
		VisionModel: cfg.LLMVisionModel,
		TextModel:   cfg.LLMTextModel,
	}, metrics)
	verifier := verify.NewPipeline(providers.llm, translator, verify.PipelineConfig{
		VisionModel: cfg.LLMVisionModel,
		TextModel:   cfg.LLMTextModel,
	}, metrics)
	advisor := advice.NewAdvisor(providers.llm, translator, advice.Config{
		Model:    cfg.LLMTextModel,
		MinWords: cfg.AnswerMinWords,
	})

	hub := messaging.NewHub(hubQueueSize)
	router := messaging.NewRouter(messaging.MessengerFunc(logReply))
	router.Handle(messaging.WebSocketPrefix, hub)
	if cfg.TwilioSID != "" && cfg.TwilioAuthToken != "" {
		router.Handle(messaging.WhatsAppPrefix, messaging.NewTwilioMessenger(cfg.TwilioSID, cfg.TwilioAuthToken, cfg.TwilioFrom))
	} else {
		slog.Warn("twilio credentials not set; whatsapp replies are logged only")
	}

	var deduper messaging.Deduper = messaging.NewMemoryDeduper(cfg.DedupeTTL)
	if redisClient != nil {
		deduper = messaging.NewRedisDeduper(redisClient, cfg.DedupeTTL)
	}

	controller := conversation.NewController(conversation.Deps{
		Sessions:  sessions,
		Messenger: router,
		Media: messaging.NewMediaFetcher(messaging.MediaFetcherConfig{
			Username: cfg.TwilioSID,
			Password: cfg.TwilioAuthToken,
		}),
		Extractor:   extractor,
		Verifier:    verifier,
		Advisor:     advisor,
		Translator:  translator,
		Synthesizer: synth,
		Recognizer:  recognizer,
		Metrics:     metrics,
	}, conversation.Config{
		ScratchDir:   cfg.ScratchDir,
		DashboardURL: cfg.DashboardURL,
	})
	dispatcher := conversation.NewDispatcher(controller, deduper, metrics, conversation.DispatcherConfig{
		EventTimeout: cfg.EventTimeout,
	})

	var validator *messaging.SignatureValidator
	if cfg.TwilioValidateSignature {
		validator = messaging.NewSignatureValidator(cfg.TwilioAuthToken)
	}

	api := httpapi.New(cfg, httpapi.Deps{
		Events:    dispatcher,
		Sessions:  sessions,
		Hub:       hub,
		Validator: validator,
		Metrics:   metrics,
		Ready:     readinessChecks(sessions, redisClient),
	})

	cleanup := func() error {
		var errs []string
		if err := sessions.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if err := closeRedis(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return errors.New(strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:     cfg,
		API:        api,
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Assets:     assets,
		Metrics:    metrics,
		Providers: ProviderInfo{
			Mode:         providers.mode,
			Detail:       providers.detail,
			AudioBackend: audioSetup.backend,
			SessionStore: storeName(sessions),
		},
		Cleanup: cleanup,
	}, nil
}

// StartBackground runs the asset and session janitors until ctx ends.
func (b *BuildResult) StartBackground(ctx context.Context) {
	b.Assets.StartJanitor(ctx, assetSweepEvery)
	session.StartJanitor(ctx, b.Sessions, b.Config.SessionTTL, janitorInterval, func(n int) {
		slog.Info("pruned idle sessions", "count", n)
	})

	counter, ok := b.Sessions.(session.Counter)
	if !ok {
		return
	}
	go func() {
		ticker := time.NewTicker(sessionGaugeEvery)
		defer ticker.Stop()
		for {
			if n, err := counter.Count(ctx); err == nil {
				b.Metrics.SetActiveSessions(n)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

type pinger interface {
	Ping(ctx context.Context) error
}

func readinessChecks(sessions session.Repository, redisClient *redis.Client) []httpapi.ReadinessCheck {
	var checks []httpapi.ReadinessCheck
	if p, ok := sessions.(pinger); ok {
		checks = append(checks, httpapi.ReadinessCheck{Name: "sessions", Check: p.Ping})
	}
	if redisClient != nil {
		checks = append(checks, httpapi.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}

func logReply(_ context.Context, reply messaging.Reply) error {
	slog.Info("reply (no messenger configured)",
		"to", reply.To,
		"chars", len([]rune(reply.Body)),
		"has_media", reply.MediaURL != "",
	)
	return nil
}

func storeName(repo session.Repository) string {
	switch repo.(type) {
	case *session.RedisRepository:
		return "redis"
	case *session.PostgresRepository:
		return "postgres"
	default:
		return "memory"
	}
}
