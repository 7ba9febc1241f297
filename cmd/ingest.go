package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/app"
)

var ingestURLs []string

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Index documents into the knowledge base",
	Long: `Index local files (PDF, text, markdown) and web pages.
Directories are walked for supported files.

Files that fail to load are skipped and counted; the batch itself
never fails.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && len(ingestURLs) == 0 {
			return fmt.Errorf("nothing to ingest: pass files or --url")
		}
		return nil
	},
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringArrayVar(&ingestURLs, "url", nil, "web page to ingest (repeatable)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}

	result := a.Ingestor.IngestFiles(ctx, paths)
	for _, rawURL := range ingestURLs {
		chunks, err := a.Ingestor.IngestURL(ctx, rawURL)
		if err != nil {
			logger.Warn("skipping url", "url", rawURL, "error", err)
			result.SkippedFiles++
			continue
		}
		result.ProcessedFiles++
		result.TotalChunks += chunks
		result.ProcessedNames = append(result.ProcessedNames, rawURL)
	}

	for _, name := range result.ProcessedNames {
		fmt.Fprintf(out, "  indexed %s\n", name)
	}
	fmt.Fprintf(out, "processed %d, skipped %d, %d chunks total\n",
		result.ProcessedFiles, result.SkippedFiles, result.TotalChunks)

	if result.ProcessedFiles == 0 {
		return fmt.Errorf("no documents were ingested")
	}
	return nil
}

// expandPaths replaces directory arguments with the supported files they
// contain. Plain files pass through untouched so unsupported ones still
// get counted as skipped.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %q: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".pdf", ".txt", ".md", ".text":
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", arg, err)
		}
	}
	return paths, nil
}
