package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/editor"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/export"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/rbac"
	"github.com/Jeremypoh05/JPlura-SaaS-Project-Management-Website-Builder-sub000/internal/search"
)

const maxActionBytes = 4 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		validate:   validate,
		logger:     logger.Named("http"),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}

	parts := splitPath(r.URL.Path)
	switch {
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "search" && r.Method == http.MethodGet:
		s.handleSearch(w, r)
		return
	case len(parts) == 4 && parts[0] == "api" && parts[1] == "funnels" && parts[3] == "pages":
		s.handleFunnelPages(w, r, actor, parts[2])
		return
	case len(parts) >= 3 && parts[0] == "api" && parts[1] == "pages":
		s.handlePage(w, r, actor, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleFunnelPages(w http.ResponseWriter, r *http.Request, actor Actor, funnelID string) {
	switch r.Method {
	case http.MethodGet:
		pages, err := s.service.ListPages(r.Context(), funnelID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": pages})
	case http.MethodPost:
		var body CreatePageInput
		if !s.decodeAndValidate(w, r, &body) {
			return
		}
		page, err := s.service.CreatePage(r.Context(), actor, funnelID, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"page": page})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handlePage(w http.ResponseWriter, r *http.Request, actor Actor, pageID string, rest []string) {
	if len(rest) == 0 {
		if r.Method == http.MethodDelete {
			if err := s.service.DeletePage(r.Context(), actor, pageID); err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body RenamePageInput
		if !s.decodeAndValidate(w, r, &body) {
			return
		}
		page, err := s.service.Rename(r.Context(), actor, pageID, body)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"page": page})
		return
	}

	if len(rest) == 1 && rest[0] == "session" {
		s.handleSession(w, r, actor, pageID)
		return
	}

	if len(rest) == 1 && rest[0] == "versions" && r.Method == http.MethodGet {
		limit := queryInt(r, "limit", 50)
		versions, err := s.service.Versions(pageID, limit)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": versions})
		return
	}

	if len(rest) == 3 && rest[0] == "versions" && rest[2] == "restore" && r.Method == http.MethodPost {
		view, err := s.service.Restore(r.Context(), actor, pageID, rest[1])
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	if len(rest) != 1 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch rest[0] {
	case "actions":
		if !s.service.Can(actor.Role, rbac.ActionEdit) {
			s.writeServiceError(w, r, errForbidden)
			return
		}
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxActionBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "Could not read action", nil)
			return
		}
		action, err := editor.DecodeAction(raw)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.respondView(w, r, func() (SessionView, error) {
			return s.service.Dispatch(r.Context(), actor, pageID, action)
		})
	case "undo":
		s.respondView(w, r, func() (SessionView, error) { return s.service.Undo(r.Context(), actor, pageID) })
	case "redo":
		s.respondView(w, r, func() (SessionView, error) { return s.service.Redo(r.Context(), actor, pageID) })
	case "reload":
		s.respondView(w, r, func() (SessionView, error) { return s.service.Reload(r.Context(), actor, pageID) })
	case "save":
		result, err := s.service.Save(r.Context(), actor, pageID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "publish":
		s.handlePublish(w, r, actor, pageID)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request, actor Actor, pageID string) {
	switch r.Method {
	case http.MethodPost:
		opts := OpenOptions{
			Live:      queryBool(r, "live"),
			FromDraft: queryBool(r, "draft"),
		}
		s.respondView(w, r, func() (SessionView, error) {
			return s.service.OpenSession(r.Context(), actor, pageID, opts)
		})
	case http.MethodGet:
		s.respondView(w, r, func() (SessionView, error) { return s.service.GetSession(actor, pageID) })
	case http.MethodDelete:
		if err := s.service.CloseSession(actor, pageID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handlePublish(w http.ResponseWriter, r *http.Request, actor Actor, pageID string) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.service.Publish(r.Context(), actor, pageID, format)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	if result.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", result.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Search(search.Query{
		Text:     q,
		FunnelID: r.URL.Query().Get("funnelId"),
		Limit:    queryInt(r, "limit", 20),
		Offset:   queryInt(r, "offset", 0),
	}))
}

func (s *HTTPServer) respondView(w http.ResponseWriter, r *http.Request, fn func() (SessionView, error)) {
	view, err := fn()
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) decodeAndValidate(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	if err := s.validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make([]map[string]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				details = append(details, map[string]string{"field": fe.Field(), "rule": fe.Tag()})
			}
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request body", details)
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func (s *HTTPServer) requireActor(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Actor{}, false
	}
	actor, err := s.service.ActorFromToken(token)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return Actor{}, false
	}
	return actor, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", id)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "X-Request-ID, X-Archive-Key, Content-Disposition")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func queryBool(r *http.Request, key string) bool {
	parsed, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return parsed
}
