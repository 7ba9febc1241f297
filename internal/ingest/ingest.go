// Package ingest turns documents into embedded chunks.
//
// Loaders accept PDFs, plain text, and URLs, split content with a
// recursive character splitter, and hand uniform chunks to the configured
// stores. Batch ingestion is best-effort: a file that fails to load is
// skipped and counted, never fatal to the batch.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
)

// Default splitter parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// ErrUnsupportedType indicates a file extension or MIME type no loader
// handles.
var ErrUnsupportedType = errors.New("unsupported document type")

// ErrNoContent indicates a document loaded successfully but produced no
// usable text.
var ErrNoContent = errors.New("document contains no extractable text")

// ChunkWriter receives embedded chunks. Both knowledge stores satisfy it.
type ChunkWriter interface {
	Upsert(ctx context.Context, chunks []knowledge.Chunk) error
}

// Result is the accounting for one ingestion batch.
type Result struct {
	ProcessedFiles int      `json:"processed_files"`
	SkippedFiles   int      `json:"skipped_files"`
	TotalChunks    int      `json:"total_chunks"`
	ProcessedNames []string `json:"processed_names"`
}

// Config tunes the splitter. Zero values take the defaults.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Ingestor loads, splits, and writes documents. Writes go to every
// configured writer in order; a mirror failure fails the ingest so the
// indexes cannot silently diverge.
type Ingestor struct {
	writers  []ChunkWriter
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

// New creates an Ingestor writing to the given stores.
func New(cfg Config, logger *slog.Logger, writers ...ChunkWriter) *Ingestor {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		writers: writers,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		logger: logger,
	}
}

// IngestText splits raw text and writes the chunks. sourceType is one of
// the knowledge.SourceType constants. Returns the number of chunks
// written.
func (ig *Ingestor) IngestText(ctx context.Context, name, text, sourceType string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%q: %w", name, ErrNoContent)
	}

	pieces, err := ig.splitter.SplitText(text)
	if err != nil {
		return 0, fmt.Errorf("split %q: %w", name, err)
	}
	return ig.writeChunks(ctx, name, sourceType, pieces)
}

// IngestPDF extracts and chunks a PDF document.
func (ig *Ingestor) IngestPDF(ctx context.Context, name string, r io.ReaderAt, size int64) (int, error) {
	loader := documentloaders.NewPDF(r, size)
	docs, err := loader.LoadAndSplit(ctx, ig.splitter)
	if err != nil {
		return 0, fmt.Errorf("load pdf %q: %w", name, err)
	}
	return ig.writeChunks(ctx, name, knowledge.SourceTypePDF, documentTexts(docs))
}

// IngestFile routes a local file to the right loader by extension.
func (ig *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	name := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		f, err := os.Open(path)
		if err != nil {
			return 0, fmt.Errorf("open %q: %w", path, err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return 0, fmt.Errorf("stat %q: %w", path, err)
		}
		return ig.IngestPDF(ctx, name, f, info.Size())

	case ".txt", ".md", ".text":
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("read %q: %w", path, err)
		}
		return ig.IngestText(ctx, name, string(data), knowledge.SourceTypeText)

	default:
		return 0, fmt.Errorf("%q: %w", path, ErrUnsupportedType)
	}
}

// IngestFiles ingests a batch of local files with per-file skip-on-error
// accounting. The returned Result is always valid, even when every file
// was skipped.
func (ig *Ingestor) IngestFiles(ctx context.Context, paths []string) Result {
	var res Result
	for _, path := range paths {
		chunks, err := ig.IngestFile(ctx, path)
		if err != nil {
			ig.logger.Warn("skipping file", "path", path, "error", err)
			res.SkippedFiles++
			continue
		}
		res.ProcessedFiles++
		res.TotalChunks += chunks
		res.ProcessedNames = append(res.ProcessedNames, filepath.Base(path))
	}
	ig.logger.Info("ingestion batch complete",
		"processed", res.ProcessedFiles,
		"skipped", res.SkippedFiles,
		"chunks", res.TotalChunks,
	)
	return res
}

// writeChunks assigns IDs and metadata, then upserts to every writer.
func (ig *Ingestor) writeChunks(ctx context.Context, name, sourceType string, pieces []string) (int, error) {
	chunks := make([]knowledge.Chunk, 0, len(pieces))
	now := time.Now().UTC().Format(time.RFC3339)
	for _, piece := range pieces {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		chunks = append(chunks, knowledge.Chunk{
			ID:   uuid.NewString(),
			Text: piece,
			Metadata: map[string]string{
				knowledge.MetaSourceType: sourceType,
				knowledge.MetaOriginName: name,
				knowledge.MetaIngestedAt: now,
			},
		})
	}
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%q: %w", name, ErrNoContent)
	}

	for _, w := range ig.writers {
		if err := w.Upsert(ctx, chunks); err != nil {
			return 0, fmt.Errorf("write chunks for %q: %w", name, err)
		}
	}
	ig.logger.Debug("document ingested", "name", name, "source_type", sourceType, "chunks", len(chunks))
	return len(chunks), nil
}

func documentTexts(docs []schema.Document) []string {
	texts := make([]string, 0, len(docs))
	for _, d := range docs {
		texts = append(texts, d.PageContent)
	}
	return texts
}
