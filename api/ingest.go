package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/ingest"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/knowledge"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/log"
	"github.com/hs094/Deepseek-Local-RAG-Agent/internal/session"
)

const (
	// maxUploadSize caps the total multipart request size.
	maxUploadSize = 64 << 20 // 64 MB

	// uploadMemoryLimit is the in-memory buffer before multipart parts
	// spill to temp files.
	uploadMemoryLimit = 8 << 20 // 8 MB
)

// IngestHandler handles document ingestion endpoints.
//
// Endpoints:
//   - POST /api/ingest/files - multipart upload of PDF, text or markdown files
//   - POST /api/ingest/url   - fetch a web page and index its readable text
//
// An optional sessionId (form field or JSON field) records the ingested
// names on the session so clients can display the loaded sources.
type IngestHandler struct {
	ingestor *ingest.Ingestor
	store    *session.Store
	logger   log.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(ingestor *ingest.Ingestor, store *session.Store, logger log.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, store: store, logger: logger}
}

// RegisterRoutes registers ingest routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.ingestor == nil {
		h.logger.Warn("ingestor is nil, ingest endpoints not registered")
		return
	}
	mux.HandleFunc("POST /api/ingest/files", h.handleFiles)
	mux.HandleFunc("POST /api/ingest/url", h.handleURL)
}

// handleFiles ingests uploaded documents. Each file is processed
// independently; a bad file is counted as skipped rather than failing
// the whole upload.
func (h *IngestHandler) handleFiles(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "no files provided")
		return
	}

	var result ingest.Result
	for _, header := range files {
		chunks, err := h.ingestUpload(r, header)
		if err != nil {
			h.logger.Warn("skipping uploaded file", "name", header.Filename, "error", err)
			result.SkippedFiles++
			continue
		}
		result.ProcessedFiles++
		result.TotalChunks += chunks
		result.ProcessedNames = append(result.ProcessedNames, header.Filename)
	}

	h.recordSources(r.FormValue("sessionId"), result.ProcessedNames)
	h.logger.Info("upload ingested",
		"processed", result.ProcessedFiles,
		"skipped", result.SkippedFiles,
		"chunks", result.TotalChunks)
	writeJSON(w, http.StatusOK, result)
}

// ingestUpload routes one uploaded file by extension.
func (h *IngestHandler) ingestUpload(r *http.Request, header *multipart.FileHeader) (int, error) {
	file, err := header.Open()
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = file.Close()
	}()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		return h.ingestor.IngestPDF(r.Context(), header.Filename, file, header.Size)
	case ".txt", ".md", ".text":
		data, err := io.ReadAll(file)
		if err != nil {
			return 0, err
		}
		return h.ingestor.IngestText(r.Context(), header.Filename, string(data), knowledge.SourceTypeText)
	default:
		return 0, ingest.ErrUnsupportedType
	}
}

// IngestURLRequest is the request body for URL ingestion.
type IngestURLRequest struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// IngestURLResponse reports the outcome of URL ingestion.
type IngestURLResponse struct {
	URL    string `json:"url"`
	Chunks int    `json:"chunks"`
}

// handleURL fetches a web page and indexes its readable text.
func (h *IngestHandler) handleURL(w http.ResponseWriter, r *http.Request) {
	var req IngestURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "url is required")
		return
	}

	chunks, err := h.ingestor.IngestURL(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, ingest.ErrNoContent) {
			writeError(w, http.StatusUnprocessableEntity, "no_content", "no extractable text at url")
			return
		}
		h.logger.Error("url ingestion failed", "url", req.URL, "error", err)
		writeError(w, http.StatusBadGateway, "ingest_failed", "failed to fetch or index url")
		return
	}

	h.recordSources(req.SessionID, []string{req.URL})
	writeJSON(w, http.StatusOK, IngestURLResponse{URL: req.URL, Chunks: chunks})
}

// recordSources attaches ingested names to a session when one is given.
// A missing or unknown session is not an error for ingestion itself.
func (h *IngestHandler) recordSources(sessionID string, names []string) {
	if sessionID == "" || h.store == nil || len(names) == 0 {
		return
	}
	sess, err := h.store.GetByString(sessionID)
	if err != nil {
		h.logger.Warn("source recording skipped", "session_id", sessionID, "error", err)
		return
	}
	for _, name := range names {
		sess.AddSource(name)
	}
}
