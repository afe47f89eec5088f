package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/MathFreedom/SafeMask/internal/config"
	"github.com/MathFreedom/SafeMask/internal/server"
)

var (
	serveAddr        string
	servePolicyFile  string
	servePatternFile string
	serveMode        string
	serveGlobalRPM   int
	serveCallerRPM   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SafeMask HTTP API",
	Long: `Serves the anonymization engine and vault over HTTP. Authenticated
endpoints require an API key from SAFEMASK_API_KEYS (comma-separated;
each entry "key" or "key:caller").`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8787)")
	serveCmd.Flags().StringVar(&servePolicyFile, "policy", "", "default per-category policy YAML file")
	serveCmd.Flags().StringVar(&servePatternFile, "patterns", "", "recognizer override YAML file")
	serveCmd.Flags().StringVar(&serveMode, "mode", "pseudo", "default uniform mode when no policy file is given")
	serveCmd.Flags().IntVar(&serveGlobalRPM, "rate-limit", 600, "global requests per minute (0 disables)")
	serveCmd.Flags().IntVar(&serveCallerRPM, "rate-limit-caller", 120, "per-caller requests per minute")
	rootCmd.AddCommand(serveCmd)
}

// parseAPIKeys returns a map of key -> caller from SAFEMASK_API_KEYS
// (comma-separated; each entry key or key:caller).
func parseAPIKeys(env string) map[string]string {
	m := make(map[string]string)
	if env == "" {
		return m
	}
	for _, part := range strings.Split(env, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		caller := "default"
		if idx := strings.Index(part, ":"); idx > 0 {
			caller = strings.TrimSpace(part[idx+1:])
			part = strings.TrimSpace(part[:idx])
		}
		m[part] = caller
	}
	return m
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pol, err := resolvePolicy(servePolicyFile, serveMode)
	if err != nil {
		return err
	}

	v, err := openVault(cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	engine, _, err := buildEngine(cfg, v, servePatternFile)
	if err != nil {
		return err
	}

	apiKeys := parseAPIKeys(os.Getenv("SAFEMASK_API_KEYS"))
	if len(apiKeys) == 0 {
		log.Warn().Msg("SAFEMASK_API_KEYS not set — all API endpoints will return 401. Set for production.")
	}

	opts := []server.Option{
		server.WithCORSOrigins([]string{"*"}),
	}
	if serveGlobalRPM > 0 {
		opts = append(opts, server.WithRateLimiter(server.NewRateLimiter(serveGlobalRPM, serveCallerRPM)))
	}

	srv := server.NewServer(engine, v, pol, apiKeys, opts...)

	addr := serveAddr
	if addr == "" {
		addr = cfg.ListenAddr
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().
		Str("addr", addr).
		Int("vault_tokens", v.Len()).
		Bool("smart_available", cfg.OpenAIAPIKey != "").
		Msg("safemask_serve_started")

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown_signal_received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server_stopped")
	return nil
}
