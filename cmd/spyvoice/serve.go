package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-go/vai-spy/pkg/core/discussion"
	"github.com/vango-go/vai-spy/pkg/core/live"
	"github.com/vango-go/vai-spy/pkg/core/llm"
	"github.com/vango-go/vai-spy/pkg/core/match"
	"github.com/vango-go/vai-spy/pkg/core/settings"
	"github.com/vango-go/vai-spy/pkg/core/voice"
	"github.com/vango-go/vai-spy/pkg/core/voice/stt"
	"github.com/vango-go/vai-spy/pkg/core/voice/tts"
	"github.com/vango-go/vai-spy/pkg/gateway/config"
	gatewayserver "github.com/vango-go/vai-spy/pkg/gateway/server"
	"github.com/vango-go/vai-spy/pkg/metrics"
)

// audioDevices are the process-wide capture and playback endpoints.
type audioDevices struct {
	Mic    discussion.MicSource
	Player voice.Player
	Close  func()
}

type serveDeps struct {
	loadConfig   func() (config.Config, error)
	openAudio    func(*slog.Logger) (audioDevices, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServeDeps() serveDeps {
	return serveDeps{
		loadConfig: config.LoadFromEnv,
		openAudio:  openAudio,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func newServeCmd(deps serveDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the AI seat and its control surface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.ErrOrStderr(), deps)
		},
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func buildPipeline(cfg config.Config) *voice.Pipeline {
	return voice.NewPipeline(
		stt.NewCloud(cfg.STTBaseURL, cfg.STTAPIKey, stt.WithCloudTimeout(cfg.TranscribeTimeout)),
		stt.NewLocal(cfg.RecognizerURL).WithTimeout(cfg.TranscribeTimeout),
		tts.NewCloud(cfg.TTSBaseURL, cfg.TTSAPIKey,
			tts.WithCloudModel(cfg.TTSModel),
			tts.WithCloudTimeout(cfg.SynthesizeTimeout),
			tts.WithVoiceCache(tts.NewVoiceCache(cfg.VoiceCacheTTL)),
		),
		tts.NewNative(cfg.EspeakBinary),
	)
}

func buildCompleter(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	if cfg.LLMBackend == config.LLMBackendGemini {
		return llm.NewGemini(ctx, cfg.GeminiAPIKey,
			llm.WithGeminiModel(cfg.GeminiModel),
			llm.WithGeminiTimeout(cfg.LLMTimeout),
		)
	}
	if cfg.LLMBaseURL == "" {
		return nil, errors.New("SPYVOICE_LLM_BASE_URL must be set for the chat backend")
	}
	return llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, llm.WithTimeout(cfg.LLMTimeout)), nil
}

func runServe(ctx context.Context, stderr io.Writer, deps serveDeps) error {
	if deps.loadConfig == nil {
		return errors.New("missing loadConfig dependency")
	}
	if deps.openAudio == nil {
		return errors.New("missing openAudio dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(stderr, cfg.LogLevel)

	store, err := match.Open(ctx, cfg.StoreBackend, cfg.StoreDSN)
	if err != nil {
		return fmt.Errorf("open match store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close match store", "error", err)
		}
	}()
	bridge := match.NewBridge(store, match.WithLogger(logger))

	prefs, err := settings.Open(cfg.SettingsPath)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}

	completer, err := buildCompleter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init llm: %w", err)
	}

	audio, err := deps.openAudio(logger)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	if audio.Close != nil {
		defer audio.Close()
	}

	pipeline := buildPipeline(cfg)
	m := metrics.New(cfg.MetricsNamespace)

	baseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sup := discussion.NewSupervisor(baseCtx, discussion.SupervisorDeps{
		Bridge:      bridge,
		Settings:    prefs,
		Mic:         audio.Mic,
		Transcriber: pipeline,
		Vocalizer:   voice.NewSpeaker(pipeline, audio.Player),
		LLM:         completer,
		Audio:       live.DefaultAudioConfig(),
		Monitor:     cfg.Monitor(),
		Metrics:     m,
		Logger:      logger,
	})
	defer sup.Close()

	prefs.OnChange(func(settings.Settings) {
		sup.Refresh(baseCtx)
	})
	prefs.Watch()

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		if err := sup.Watch(baseCtx, cfg.PollInterval); err != nil {
			logger.Error("supervisor stopped", "error", err)
		}
	}()

	gw := gatewayserver.New(cfg, logger, gatewayserver.Deps{
		Runtime:      sup,
		Matches:      bridge,
		Metrics:      m,
		Capabilities: pipeline.Capabilities,
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	for name, capability := range pipeline.Capabilities() {
		logger.Info("voice capability", "provider", name, "available", capability.Available, "reason", capability.Reason)
	}
	logger.Info("starting spyvoice", "addr", cfg.Addr, "store", cfg.StoreBackend, "llm", cfg.LLMBackend)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		cancel()
		<-watchDone
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		_ = httpSrv.Close()
		cancel()
		<-watchDone
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	shutdownErr := httpSrv.Shutdown(shutdownCtx)

	cancel()
	<-watchDone

	if shutdownErr != nil {
		return fmt.Errorf("shutdown http server: %w", shutdownErr)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("spyvoice stopped")
	return nil
}
