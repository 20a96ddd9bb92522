package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aisuru/companion/backend/internal/config"
	"github.com/aisuru/companion/backend/internal/handler"
	"github.com/aisuru/companion/backend/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "aisuru",
		Short:        "Anime companion chat backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A missing .env is fine, the process environment still applies.
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(serve)
	root.RunE = serve.RunE

	return root
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return err
	}
	defer app.Close()

	router := handler.NewRouter(handler.Deps{
		Companions:  app.companions,
		Chats:       app.chats,
		Synthesizer: app.synthesizer,
		Transcriber: app.transcriber,
		Format:      cfg.Speech.Format,
		InputFormat: cfg.Speech.InputFormat,
		PaceAudio:   true,
	})

	return startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("companion backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
