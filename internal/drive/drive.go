package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/ingest"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
)

// Drive documents tend to be shorter and denser than uploaded PDFs, so
// the importer splits them finer than the general loader defaults.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

const (
	mimeFolder    = "application/vnd.google-apps.folder"
	mimeGoogleDoc = "application/vnd.google-apps.document"
	mimePDF       = "application/pdf"

	listPageSize = 100

	// maxDownloadSize caps a single file download.
	maxDownloadSize = 50 << 20 // 50 MB
)

// File is the subset of Drive metadata the importer needs.
type File struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// NewService creates a Drive API service from an authorized HTTP client.
func NewService(ctx context.Context, client *http.Client) (*gdrive.Service, error) {
	svc, err := gdrive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	return svc, nil
}

// Importer downloads Drive files and feeds them to the ingestor.
type Importer struct {
	svc      *gdrive.Service
	ingestor *ingest.Ingestor
	logger   log.Logger
}

// NewImporter creates an Importer.
func NewImporter(svc *gdrive.Service, ingestor *ingest.Ingestor, logger log.Logger) *Importer {
	return &Importer{svc: svc, ingestor: ingestor, logger: logger}
}

// List returns non-folder files visible to the authorized account.
// query, when non-empty, is a name filter.
func (im *Importer) List(ctx context.Context, query string) ([]File, error) {
	q := fmt.Sprintf("mimeType != '%s' and trashed = false", mimeFolder)
	if query != "" {
		q += fmt.Sprintf(" and name contains '%s'", strings.ReplaceAll(query, "'", `\'`))
	}

	var files []File
	call := im.svc.Files.List().
		Q(q).
		PageSize(listPageSize).
		Fields("nextPageToken, files(id, name, mimeType, size)")

	err := call.Pages(ctx, func(page *gdrive.FileList) error {
		for _, f := range page.Files {
			files = append(files, File{ID: f.Id, Name: f.Name, MimeType: f.MimeType, Size: f.Size})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing drive files: %w", err)
	}
	return files, nil
}

// Import downloads and indexes the given files. Files that fail are
// counted as skipped; the batch itself never fails.
func (im *Importer) Import(ctx context.Context, files []File) ingest.Result {
	var result ingest.Result
	for _, f := range files {
		chunks, err := im.importOne(ctx, f)
		if err != nil {
			im.logger.Warn("skipping drive file", "name", f.Name, "mime_type", f.MimeType, "error", err)
			result.SkippedFiles++
			continue
		}
		result.ProcessedFiles++
		result.TotalChunks += chunks
		result.ProcessedNames = append(result.ProcessedNames, f.Name)
		im.logger.Info("drive file ingested", "name", f.Name, "chunks", chunks)
	}
	return result
}

// importOne routes one file to the matching loader by MIME type.
func (im *Importer) importOne(ctx context.Context, f File) (int, error) {
	switch {
	case f.MimeType == mimeFolder:
		return 0, ingest.ErrUnsupportedType

	case f.MimeType == mimePDF:
		data, err := im.download(ctx, f.ID)
		if err != nil {
			return 0, err
		}
		return im.ingestor.IngestPDF(ctx, f.Name, bytes.NewReader(data), int64(len(data)))

	case f.MimeType == mimeGoogleDoc:
		data, err := im.export(ctx, f.ID, "text/plain")
		if err != nil {
			return 0, err
		}
		return im.ingestor.IngestText(ctx, f.Name, string(data), knowledge.SourceTypeDocument)

	case strings.HasPrefix(f.MimeType, "text/"):
		data, err := im.download(ctx, f.ID)
		if err != nil {
			return 0, err
		}
		return im.ingestor.IngestText(ctx, f.Name, string(data), knowledge.SourceTypeText)

	default:
		return 0, fmt.Errorf("%w: %s", ingest.ErrUnsupportedType, f.MimeType)
	}
}

// download fetches the raw file content.
func (im *Importer) download(ctx context.Context, id string) ([]byte, error) {
	resp, err := im.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("downloading %q: %w", id, err)
	}
	defer resp.Body.Close()
	return readCapped(resp.Body)
}

// export converts a Google-native document to the given MIME type.
func (im *Importer) export(ctx context.Context, id, mimeType string) ([]byte, error) {
	resp, err := im.svc.Files.Export(id, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("exporting %q: %w", id, err)
	}
	defer resp.Body.Close()
	return readCapped(resp.Body)
}

func readCapped(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDownloadSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}
