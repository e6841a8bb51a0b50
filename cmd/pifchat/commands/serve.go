package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ralmansi/pifchat/internal/generator"
	"github.com/ralmansi/pifchat/internal/logging"
	"github.com/ralmansi/pifchat/internal/server"
	"github.com/ralmansi/pifchat/internal/store"
)

// NewServeCmd constructs the `pifchat serve` command, which starts the HTTP
// API for the question-answering pipeline.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var startProxy bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pifchat HTTP API",
		Long: `Start the HTTP server on localhost.

Endpoints:
  POST /api/chat    answer a question (JSON in/out, per-session history)
  GET  /api/health  liveness
  GET  /api/ready   readiness of Ollama, Qdrant, and the LLM proxy
  GET  /metrics     Prometheus metrics

With --start-proxy, a litellm proxy is launched from the configured
litellm config file and stopped on shutdown; an already-running proxy
is detected and reused.

Examples:
  pifchat serve
  pifchat serve --port 9090
  pifchat serve --start-proxy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			svc, cleanup, err := buildServices(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			if startProxy {
				proxy := generator.NewProxyProcess(cfg.Proxy.URL, cfg.Proxy.ConfigPath, log)
				if err := proxy.Start(ctx); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				defer proxy.Stop()
				svc.generator.AttachProcess(proxy)
			}

			// Open chat history store. PIFCHAT_HISTORY_DB (or history.db_path)
			// overrides the default ~/.pifchat/history.db; "disabled" turns
			// persistence off.
			var historyStore store.HistoryStore
			dbPath := cfg.History.DBPath
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := store.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled")
			}

			if host == "" {
				host = cfg.Server.Host
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			srv, err := server.New(svc.rag, historyStore, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					svc.embedder,
					svc.store,
					svc.generator,
				},
				APIKey: cfg.Server.APIKey,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default from config)")
	cmd.Flags().BoolVar(&startProxy, "start-proxy", false, "Launch and manage the litellm proxy process")

	return cmd
}
