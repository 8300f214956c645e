package app

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/credential"
	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/logger"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        *logger.Logger
	events     *eventStreamer
}

func NewHTTPServer(service *Service, corsOrigin string, log *logger.Logger) *HTTPServer {
	log = logger.OrNop(log)
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		log:        log,
		events:     newEventStreamer(corsOrigin, log),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/documents" {
		var body MountInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		doc, err := s.service.Mount(r.Context(), body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "documents" {
		s.handleDocument(w, r, parts[2], parts[3:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failures := s.service.Ping(ctx)
	checks := map[string]any{}
	for _, name := range s.service.CheckNames() {
		if err, failed := failures[name]; failed {
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	status, statusCode := "ready", http.StatusOK
	if len(failures) > 0 {
		status, statusCode = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, map[string]any{
		"ok":     len(failures) == 0,
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleDocument(w http.ResponseWriter, r *http.Request, itemID string, rest []string) {
	route := strings.Join(rest, "/")
	switch {
	case route == "" && r.Method == http.MethodGet:
		doc, err := s.service.Get(itemID)
		s.respond(w, r, http.StatusOK, "document", doc, err)

	case route == "" && r.Method == http.MethodDelete:
		if err := s.service.Destroy(itemID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case route == "content" && r.Method == http.MethodPut:
		var body struct {
			HTML string `json:"html"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		doc, err := s.service.SetContent(r.Context(), itemID, body.HTML)
		s.respond(w, r, http.StatusOK, "document", doc, err)

	case route == "insert" && r.Method == http.MethodPost:
		var body struct {
			Offset int    `json:"offset"`
			HTML   string `json:"html"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		doc, err := s.service.Insert(r.Context(), itemID, body.Offset, body.HTML)
		s.respond(w, r, http.StatusOK, "document", doc, err)

	case route == "cursor" && r.Method == http.MethodPost:
		var body struct {
			Offset int `json:"offset"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		doc, err := s.service.SetCursor(r.Context(), itemID, body.Offset)
		s.respond(w, r, http.StatusOK, "document", doc, err)

	case route == "selection" && r.Method == http.MethodPost:
		var body struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		doc, err := s.service.Select(itemID, body.From, body.To)
		s.respond(w, r, http.StatusOK, "document", doc, err)

	case route == "input" && r.Method == http.MethodPost:
		var body struct {
			Text string `json:"text"`
		}
		if !decodeOrFail(w, r, &body) {
			return
		}
		doc, err := s.service.Input(itemID, body.Text)
		s.respond(w, r, http.StatusOK, "document", doc, err)

	case route == "session" && r.Method == http.MethodPost:
		sess, err := s.service.OpenSession(itemID)
		s.respond(w, r, http.StatusCreated, "session", sess, err)

	case route == "session" && r.Method == http.MethodGet:
		sess, err := s.service.Session(itemID)
		s.respond(w, r, http.StatusOK, "session", sess, err)

	case route == "session" && r.Method == http.MethodDelete:
		if err := s.service.CloseSession(itemID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case route == "session/requests" && r.Method == http.MethodPost:
		var body RequestInput
		if !decodeOrFail(w, r, &body) {
			return
		}
		resp, sess, err := s.service.Request(r.Context(), itemID, body)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"response": resp, "session": sess})

	case route == "session/history" && r.Method == http.MethodDelete:
		sess, err := s.service.ClearHistory(itemID)
		s.respond(w, r, http.StatusOK, "session", sess, err)

	case route == "session/attach" && r.Method == http.MethodPost:
		result, err := s.service.Attach(r.Context(), itemID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case route == "save" && r.Method == http.MethodPost:
		if err := s.service.Save(r.Context(), itemID); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case route == "annotations" && r.Method == http.MethodGet:
		limit := 50
		if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
			if parsedLimit, err := strconv.Atoi(rawLimit); err == nil && parsedLimit > 0 {
				limit = parsedLimit
			}
		}
		records, err := s.service.Annotations(r.Context(), itemID, limit)
		s.respond(w, r, http.StatusOK, "annotations", records, err)

	case route == "events" && r.Method == http.MethodGet:
		doc, err := s.service.Document(itemID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.events.serve(w, r, doc)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) respond(w http.ResponseWriter, r *http.Request, status int, key string, payload any, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{key: payload})
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "code", code, "error", err)
	}
	writeError(w, status, code, message, details)
}

func decodeOrFail(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := decodeBody(r, target); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return false
	}
	return true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		if token := bearerToken(r); token != "" {
			ctx = credential.WithToken(ctx, token)
		}
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
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

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
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
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
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
