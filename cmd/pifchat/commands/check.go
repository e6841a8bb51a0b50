package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ralmansi/pifchat/internal/embedder"
	"github.com/ralmansi/pifchat/internal/generator"
	"github.com/ralmansi/pifchat/internal/logging"
	"github.com/ralmansi/pifchat/internal/vectorstore"
)

// checkProbeTimeout bounds each individual service probe.
const checkProbeTimeout = 10 * time.Second

// serviceCheck is one probe: run it, and print hint when it fails.
type serviceCheck struct {
	name  string
	probe func(ctx context.Context) error
	hint  string
}

// NewCheckCmd constructs the `pifchat check` command, which probes every
// backing service and prints a readiness summary.
func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that Ollama, Qdrant, and the LLM proxy are reachable",
		Long: `Probe each backing service and print a summary. Exits non-zero when any
service is down, so it can gate scripts:

  pifchat check && pifchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			checks := []serviceCheck{
				{
					name: "ollama",
					probe: func(ctx context.Context) error {
						emb, err := embedder.New(ctx, &embedder.Config{
							Host:       cfg.Embedding.Host,
							Model:      cfg.Embedding.Model,
							Dimensions: cfg.Embedding.Dimensions,
						}, log)
						if err != nil {
							return err
						}
						return emb.Ping(ctx)
					},
					hint: fmt.Sprintf("start it with: ollama serve  (then: ollama pull %s)", cfg.Embedding.Model),
				},
				{
					name: "qdrant",
					probe: func(ctx context.Context) error {
						vs, err := vectorstore.Connect(ctx, &vectorstore.Config{
							Host:       cfg.Qdrant.Host,
							Port:       cfg.Qdrant.Port,
							APIKey:     cfg.Qdrant.APIKey,
							UseTLS:     cfg.Qdrant.TLS,
							MaxRetries: 1,
						}, log)
						if err != nil {
							return err
						}
						defer func() { _ = vs.Close() }()
						return vs.Ping(ctx)
					},
					hint: "start it with: docker run -p 6333:6333 -p 6334:6334 qdrant/qdrant",
				},
				{
					name: "llm-proxy",
					probe: func(ctx context.Context) error {
						return generator.New(cfg.Proxy, log).Ping(ctx)
					},
					hint: fmt.Sprintf("start it with: litellm --config %s --port 4000  (or: pifchat serve --start-proxy)", proxyConfigHint()),
				},
			}

			down := 0
			for _, c := range checks {
				ctx, cancel := context.WithTimeout(cmd.Context(), checkProbeTimeout)
				err := c.probe(ctx)
				cancel()

				if err != nil {
					down++
					fmt.Printf("[down] %-10s %v\n", c.name, err)
					fmt.Printf("       hint: %s\n", c.hint)
					continue
				}
				fmt.Printf("[ok]   %s\n", c.name)
			}

			if down > 0 {
				return fmt.Errorf("check: %d of %d services unavailable", down, len(checks))
			}
			fmt.Println("all services ready")
			return nil
		},
	}
}

// proxyConfigHint names the litellm config path for the remediation hint.
func proxyConfigHint() string {
	if cfg.Proxy.ConfigPath != "" {
		return cfg.Proxy.ConfigPath
	}
	return "litellm_config.yaml"
}
