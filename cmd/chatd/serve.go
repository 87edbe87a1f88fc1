package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"chatd/internal/httpapi"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	var (
		mf          modelFlags
		addr        string
		corsOrigins string
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP daemon",
		Example: "  chatd serve --addr :8080 --models-dir ~/models/llm --model olmoe-1b-7b-q4",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			mf.apply(cmd, &cfg)
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("cors-origins") {
				cfg.CORSEnabled = true
				cfg.CORSOrigins = splitCSV(corsOrigins)
			}
			log := newLogger(cfg.LogLevel)

			mgr, st, err := buildManager(cfg, log, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer func() {
				if st != nil {
					_ = st.Close()
				}
			}()
			defer func() { _ = mgr.Close() }()

			httpapi.SetLogger(log.With().Str("component", "http").Logger())
			httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
			httpapi.SetRespondTimeoutSeconds(int64(cfg.RespondTimeoutSeconds))
			httpapi.SetRateLimit(cfg.RespondRatePerSec, cfg.RespondBurst)
			httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			httpapi.SetBaseContext(ctx)

			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewMux(mgr),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Int("models", len(mgr.ListModels())).Msg("chatd listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}
			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown")
			}
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma-separated allowed CORS origins (enables CORS)")
	return cmd
}
