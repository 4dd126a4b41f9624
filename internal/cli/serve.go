package cli

import (
	"atsmatch/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP matching API",
	Long: `Start an HTTP server exposing the matcher.

Available endpoints:
- GET  /health: Liveness check
- GET  /ready: Embedding provider and circuit breaker status
- GET  /stats: Rate limiter and suggestion catalog statistics
- POST /match/text: Score JSON {"resume_text", "job_description"}
- POST /match/pdf: Score a multipart upload (file, job_description, mode)

Both match endpoints accept ?top_k=N and ?download=1.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetString("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}

	svc, err := newServices(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	serverCfg := server.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         Version,
		APIKeys:         cfg.Server.APIKeys,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxRequestSize:  cfg.App.MaxFileSize,
		MaxTopK:         cfg.Matching.MaxTopK,
		RateLimit:       &cfg.Server.RateLimit,
	}
	deps := server.Dependencies{
		Matcher:    svc.matcher,
		Embeddings: svc.embeddings,
		Catalog:    svc.catalog,
	}
	return server.NewServer(cfg, serverCfg, deps, logger).Start(cmd.Context())
}
