package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docsearch/internal/adapter/extract"
	"docsearch/internal/domain"
	"docsearch/internal/logger"
	"docsearch/internal/metrics"
	"docsearch/internal/usecase"
)

const defaultMaxUpload = 10 << 20

// Options configures the HTTP API.
type Options struct {
	MaxUploadBytes int64
	// Gatherer backs /metrics. Nil uses the default prometheus registry.
	Gatherer prometheus.Gatherer
}

// Server serves the document and search API.
type Server struct {
	ingest        *usecase.IngestUseCase
	retrieve      *usecase.RetrieveUseCase
	catalog       *usecase.CatalogUseCase
	logger        *zap.Logger
	opts          Options
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingest *usecase.IngestUseCase,
	retrieve *usecase.RetrieveUseCase,
	catalog *usecase.CatalogUseCase,
	logger *zap.Logger,
	opts Options,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		ingest:        ingest,
		retrieve:      retrieve,
		catalog:       catalog,
		logger:        logger,
		opts:          opts,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Handler builds the chi router with the middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", s.UploadDocument)
		r.Post("/upload", s.UploadDocument)
		r.Get("/", s.ListDocuments)
		r.Get("/{id}", s.GetDocument)
		r.Delete("/{id}", s.DeleteDocument)
	})

	r.Route("/search", func(r chi.Router) {
		r.Post("/", s.Search)
		r.Get("/stats", s.Stats)
	})
	return r
}

type uploadRequest struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

type uploadResponse struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	Message    string `json:"message"`
}

// UploadDocument handles POST /documents. It accepts a multipart "file"
// field or a JSON body with inline text.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	var doc domain.Document
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		d, err := s.readMultipart(r)
		if err != nil {
			s.handleRequestError(w, err)
			return
		}
		doc = d
	default:
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.handleRequestError(w, err)
			return
		}
		if req.Filename == "" {
			req.Filename = "untitled.txt"
		}
		doc = domain.Document{ID: req.ID, Filename: req.Filename, Text: req.Text, SizeBytes: len(req.Text)}
	}

	if strings.TrimSpace(doc.Text) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "could not extract text from document")
		return
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.UploadedAt = time.Now().UTC()

	n, err := s.ingest.Ingest(r.Context(), doc, nil)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		ID:         doc.ID,
		Filename:   doc.Filename,
		ChunkCount: n,
		Message:    fmt.Sprintf("Document uploaded and indexed successfully with %d chunks", n),
	})
}

func (s *Server) readMultipart(r *http.Request) (domain.Document, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return domain.Document{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.Document{}, err
	}
	text, err := extract.Text(header.Filename, data)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:        r.FormValue("id"),
		Filename:  header.Filename,
		Text:      text,
		SizeBytes: len(data),
	}, nil
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.catalog.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /documents/{id}. Unknown IDs succeed.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ingest.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Document %s deleted successfully", id),
	})
}

type searchRequest struct {
	Query          string   `json:"query"`
	TopK           *int     `json:"top_k"`
	ScoreThreshold *float64 `json:"score_threshold"`
}

type searchResultItem struct {
	Content         string  `json:"content"`
	Filename        string  `json:"filename"`
	DocumentID      string  `json:"document_id"`
	ChunkIndex      int     `json:"chunk_index"`
	SimilarityScore float64 `json:"similarity_score"`
}

type searchResponse struct {
	Query        string             `json:"query"`
	Results      []searchResultItem `json:"results"`
	TotalResults int                `json:"total_results"`
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleRequestError(w, err)
		return
	}

	k := 0
	if req.TopK != nil {
		k = *req.TopK
		if k == 0 {
			writeError(w, http.StatusBadRequest, "invalid_query", "top_k must be positive")
			return
		}
	}

	results, err := s.retrieve.Search(r.Context(), req.Query, k, req.ScoreThreshold)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]searchResultItem, len(results))
	for i, res := range results {
		items[i] = searchResultItem{
			Content:         res.Text,
			Filename:        res.Metadata.Filename,
			DocumentID:      res.Metadata.DocumentID,
			ChunkIndex:      res.Metadata.Position,
			SimilarityScore: math.Round(res.Score*10000) / 10000,
		}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:        req.Query,
		Results:      items,
		TotalResults: len(items),
	})
}

// Stats handles GET /search/stats.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Error("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    stats.Status,
		"documents": stats.Documents,
		"chunks":    stats.Chunks,
		"model":     stats.Schema.Model,
	})
}

// handleRequestError maps body decoding failures before they reach a use case.
func (s *Server) handleRequestError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large",
			fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit))
	case errors.Is(err, domain.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported_format", "only plain text files are supported")
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
	}
}
