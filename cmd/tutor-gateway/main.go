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

	"github.com/joho/godotenv"

	"github.com/studybuddy-ai/tutor-live/pkg/core/providers/anthropic"
	"github.com/studybuddy-ai/tutor-live/pkg/core/providers/gemini"
	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/voice/tts"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
	gatewayserver "github.com/studybuddy-ai/tutor-live/pkg/gateway/server"
	"github.com/studybuddy-ai/tutor-live/pkg/store"
)

type gatewayDeps struct {
	loadConfig   func() (config.Config, error)
	openStore    func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultGatewayDeps() gatewayDeps {
	return gatewayDeps{
		loadConfig: config.LoadFromEnv,
		openStore:  openStore,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	if cfg.MigrateOnStart {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return store.New(ctx, cfg.DatabaseURL, logger)
}

func buildProviders(ctx context.Context, cfg config.Config) (gatewayserver.Providers, error) {
	chat := anthropic.New(cfg.AnthropicAPIKey)

	var classifier tutor.EmotionClassifier = chat
	if cfg.EmotionBackend == config.EmotionBackendGemini {
		gem, err := gemini.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return gatewayserver.Providers{}, fmt.Errorf("gemini classifier: %w", err)
		}
		classifier = gem
	}

	var speech tts.Provider
	if cfg.DeepgramAPIKey != "" {
		speech = tts.NewDeepgram(cfg.DeepgramAPIKey)
	}

	return gatewayserver.Providers{
		Chat:       chat,
		Classifier: classifier,
		Analyzer:   chat,
		Summarizer: chat,
		TTS:        speech,
	}, nil
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runGateway(ctx context.Context, logger *slog.Logger, deps gatewayDeps) error {
	if deps.loadConfig == nil || deps.openStore == nil {
		return errors.New("missing dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := deps.openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if st != nil {
		defer st.Close()
	}

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		return err
	}

	gw := gatewayserver.New(cfg, providers, st, logger)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting tutor gateway",
		"addr", cfg.Addr,
		"emotion_backend", cfg.EmotionBackend,
		"tts_enabled", providers.TTS != nil,
		"store_enabled", st != nil)

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
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.LiveSessions().WarnAll("shutdown", "server is shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.LiveSessions().Wait(waitCtx) {
		gw.LiveSessions().CancelAll()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("tutor gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps gatewayDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment variables")
	}

	if err := runGateway(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "tutor-gateway: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultGatewayDeps()))
}
