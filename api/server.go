package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"ghostwriter/checker"
	"ghostwriter/pkg/metrics"
	processor "ghostwriter/process"
	"ghostwriter/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// CheckService is what the HTTP layer needs from the checker.
type CheckService interface {
	Check(ctx context.Context, req checker.CheckRequest) (*repository.Report, error)
	Generate(ctx context.Context, req checker.GenerateRequest) (*repository.Report, error)
	CheckFile(ctx context.Context, filename string, r io.Reader, mode string, threshold *float64) (*repository.Report, error)
	Report(ctx context.Context, id string) (*repository.Report, error)
	Reports(ctx context.Context, limit int) ([]*repository.Report, error)
}

// FileExtractor turns an uploaded file into text.
type FileExtractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (*processor.ExtractionResult, error)
}

// Server represents the API server
type Server struct {
	service        CheckService
	extractor      FileExtractor
	metrics        *metrics.Collector
	validate       *validator.Validate
	logger         *zap.Logger
	port           int
	maxUploadBytes int64
}

func NewServer(service CheckService, extractor FileExtractor, m *metrics.Collector, logger *zap.Logger, port int, maxUploadBytes int64) *Server {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Server{
		service:        service,
		extractor:      extractor,
		metrics:        m,
		validate:       v,
		logger:         logger,
		port:           port,
		maxUploadBytes: maxUploadBytes,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /health", s.healthHandler)
	s.handle(mux, "POST /api/generate", s.generateHandler)
	s.handle(mux, "POST /api/check", s.checkHandler)
	s.handle(mux, "POST /api/check/upload", s.uploadHandler)
	s.handle(mux, "POST /api/extract", s.extractHandler)
	s.handle(mux, "GET /api/reports", s.listReportsHandler)
	s.handle(mux, "GET /api/reports/{id}", s.reportHandler)
	s.handle(mux, "GET /api/reports/{id}/docx", s.reportDocxHandler)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", zap.Int("port", s.port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, h))
}
