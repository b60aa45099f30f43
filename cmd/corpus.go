package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kolo-Naukowe-Data-Science-PW/Chatbot-MiNI/internal/corpus"
)

type chunkLine struct {
	Path      string `json:"path"`
	SourceURL string `json:"source_url"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
}

// newCorpusCmd lists the durable documents the way ingestion reads them.
func newCorpusCmd() *cobra.Command {
	var (
		dir       string
		chunks    bool
		chunkSize int
		overlap   int
	)
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "List stored documents with their provenance",
		Long: `Prints one JSON line per document in durable storage, paired with
the source URL from its metadata file ("unknown" when missing). With
--chunks, HTML, PDF and DOCX documents are cleaned and split into
overlapping text chunks instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			if dir == "" {
				dir = rt.cfg.Storage.Dir
			}
			docs, err := corpus.List(dir, rt.logger)
			if err != nil {
				return fmt.Errorf("list corpus: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !chunks {
				for _, doc := range docs {
					if err := enc.Encode(doc); err != nil {
						return fmt.Errorf("write document: %w", err)
					}
				}
				return nil
			}
			total := 0
			for _, doc := range docs {
				text, err := corpus.Text(doc)
				if errors.Is(err, corpus.ErrUnsupported) {
					rt.logger.Debug("no text extractor", zap.String("path", doc.Path), zap.String("category", doc.Category))
					continue
				}
				if err != nil {
					rt.logger.Warn("failed to read document", zap.String("path", doc.Path), zap.Error(err))
					continue
				}
				for i, chunk := range corpus.Chunk(text, chunkSize, overlap) {
					if err := enc.Encode(chunkLine{Path: doc.Path, SourceURL: doc.SourceURL, Index: i, Text: chunk}); err != nil {
						return fmt.Errorf("write chunk: %w", err)
					}
					total++
				}
			}
			rt.logger.Info("corpus chunked", zap.Int("documents", len(docs)), zap.Int("chunks", total))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to read (default storage.dir)")
	cmd.Flags().BoolVar(&chunks, "chunks", false, "emit text chunks of HTML, PDF and DOCX documents")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", corpus.DefaultChunkSize, "maximum characters per chunk")
	cmd.Flags().IntVar(&overlap, "chunk-overlap", corpus.DefaultChunkOverlap, "characters shared by consecutive chunks")
	return cmd
}
