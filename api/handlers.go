package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ghostwriter/checker"
	"ghostwriter/export"
	"ghostwriter/generate"
	"ghostwriter/pkg/breaker"
	processor "ghostwriter/process"
	"ghostwriter/repository"
	"ghostwriter/search"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	maxJSONBody       = 1 << 20
	multipartOverhead = 1 << 20
	defaultListLimit  = 20
	docxContentType   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type GenerateRequest struct {
	Prompt    string   `json:"prompt" validate:"required,max=4000"`
	Mode      string   `json:"mode,omitempty" validate:"omitempty,oneof=similarity results"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

type CheckRequest struct {
	Text      string   `json:"text" validate:"required,max=100000"`
	Mode      string   `json:"mode,omitempty" validate:"omitempty,oneof=similarity results"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// normalizer is implemented by requests that clean fields before validation.
type normalizer interface {
	normalize()
}

func (r *GenerateRequest) normalize() { r.Mode = normalizeMode(r.Mode) }

func (r *CheckRequest) normalize() { r.Mode = normalizeMode(r.Mode) }

func normalizeMode(mode string) string {
	return strings.ToLower(strings.TrimSpace(mode))
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ReportList struct {
	Reports []*repository.Report `json:"reports"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !s.decode(w, r, &req) {
		return
	}

	report, err := s.service.Generate(r.Context(), checker.GenerateRequest{
		Prompt:    req.Prompt,
		Mode:      req.Mode,
		Threshold: req.Threshold,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !s.decode(w, r, &req) {
		return
	}

	report, err := s.service.Check(r.Context(), checker.CheckRequest{
		Text:      req.Text,
		Source:    repository.SourceTyped,
		Mode:      req.Mode,
		Threshold: req.Threshold,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	mode := normalizeMode(r.FormValue("mode"))
	if err := s.validate.Var(mode, "omitempty,oneof=similarity results"); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "mode must be one of: similarity results"})
		return
	}
	var threshold *float64
	if v := r.FormValue("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "threshold must be a number"})
			return
		}
		threshold = &f
	}

	report, err := s.service.CheckFile(r.Context(), header.Filename, file, mode, threshold)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		s.writeError(w, r, checker.ErrExtractionUnavailable)
		return
	}
	file, header, ok := s.formFile(w, r)
	if !ok {
		return
	}
	defer file.Close()

	result, err := s.extractor.Extract(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) listReportsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	reports, err := s.service.Reports(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportList{Reports: reports})
}

func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) reportDocxHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	dir, err := os.MkdirTemp("", "ghostwriter-report-*")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "report.docx")
	if err := export.WriteDocx(report, path); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report-"+report.ID+".docx"))
	http.ServeFile(w, r, path)
}

// decode reads and validates a JSON body, answering 400 itself on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
			return false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := s.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: validationMessage(err)})
		return false
	}
	return true
}

func (s *Server) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: processor.ErrTooLarge.Error()})
			return nil, nil, false
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form: " + err.Error()})
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing file field"})
		return nil, nil, false
	}
	if header.Size > s.maxUploadBytes {
		file.Close()
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: processor.ErrTooLarge.Error()})
		return nil, nil, false
	}
	return file, header, true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var apiErr *search.APIError
	switch {
	case errors.Is(err, checker.ErrEmptyText),
		errors.Is(err, checker.ErrInvalidMode),
		errors.Is(err, checker.ErrInvalidThreshold),
		errors.Is(err, generate.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, processor.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, processor.ErrUnsupportedFile),
		errors.Is(err, processor.ErrOCRUnavailable):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, processor.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checker.ErrGenerationUnavailable),
		errors.Is(err, checker.ErrExtractionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, checker.ErrSearchFailed),
		errors.Is(err, checker.ErrGenerationFailed),
		errors.Is(err, breaker.ErrUnavailable),
		errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fe.Field()+" must be one of: "+fe.Param())
		case "gte", "lte":
			msgs = append(msgs, fe.Field()+" must be within [0, 1]")
		case "max":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
