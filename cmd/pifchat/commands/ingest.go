package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ralmansi/pifchat/internal/config"
	"github.com/ralmansi/pifchat/internal/embedder"
	"github.com/ralmansi/pifchat/internal/ingestion"
	"github.com/ralmansi/pifchat/internal/logging"
	"github.com/ralmansi/pifchat/internal/vectorstore"
)

// NewIngestCmd constructs the `pifchat ingest` command, which embeds
// pre-extracted report chunks and populates the per-document Qdrant
// collections.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [chunk-file...]",
		Short: "Index extracted report chunks into the vector store",
		Long: `Embed and index one or more chunk files produced by the PDF extraction
pipeline. Each file is a JSON array of {chunk_id, index, text} objects for
one report; its collection is derived from the file name, so
"PIF Annual Report 2021-ar_chunks.json" populates
"PIF Annual Report 2021-ar_collection".

The target collection is dropped and rebuilt on every run. Chunks shorter
than 100 characters are skipped.

Examples:
  pifchat ingest data/chunks/*.json
  pifchat ingest "data/chunks/PIF Annual Report 2021-ar_chunks.json"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			emb, err := embedder.New(ctx, &embedder.Config{
				Host:       cfg.Embedding.Host,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
			}, log)
			if err != nil {
				return fmt.Errorf("ingest: embedding backend: %w", err)
			}

			vs, err := vectorstore.Connect(ctx, &vectorstore.Config{
				Host:   cfg.Qdrant.Host,
				Port:   cfg.Qdrant.Port,
				APIKey: cfg.Qdrant.APIKey,
				UseTLS: cfg.Qdrant.TLS,
			}, log)
			if err != nil {
				return fmt.Errorf("ingest: vector store: %w", err)
			}
			defer func() { _ = vs.Close() }()

			pipeline := ingestion.New(emb, vs, log)

			for _, path := range args {
				if err := ingestFile(cmd, pipeline, path, log); err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
			}

			fmt.Printf("done: %d file(s) indexed\n", len(args))
			return nil
		},
	}

	return cmd
}

// ingestFile runs the pipeline for a single chunk file with a progress bar.
func ingestFile(cmd *cobra.Command, pipeline *ingestion.Pipeline, path string, log *slog.Logger) error {
	chunks, skipped, err := ingestion.ReadChunkFile(path)
	if err != nil {
		return err
	}

	collection := config.CollectionName(documentBase(path))
	fmt.Printf("%s: %d chunks (%d skipped as too short) -> %s\n",
		filepath.Base(path), len(chunks), skipped, collection)

	bar := progressbar.NewOptions(len(chunks),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("uploading"),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	stats, err := pipeline.Ingest(cmd.Context(), collection, chunks, func(done, total int) {
		_ = bar.Set(done)
	})
	if err != nil {
		return err
	}

	log.Info("file indexed",
		slog.String("file", path),
		slog.String("collection", collection),
		slog.Int("uploaded", stats.Uploaded),
		slog.Int("failed_embeddings", stats.Failed),
	)
	return nil
}

// documentBase derives the report base name from a chunk file path:
// "PIF Annual Report 2021-ar_chunks.json" -> "PIF Annual Report 2021-ar".
func documentBase(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSuffix(name, "_chunks")
}
