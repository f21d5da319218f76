package peer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/roach88/savetray/internal/delegate"
	"github.com/roach88/savetray/internal/store"
)

// Submitter queues a write on the local peer. *delegate.Loop implements it.
type Submitter interface {
	Submit(ctx context.Context, req delegate.Request) (delegate.Result, error)
}

// Documents is the local document store as seen by the server.
type Documents interface {
	ReadAttachment(ctx context.Context, documentRef, namespace, key string) (json.RawMessage, error)
	CreateDocument(ctx context.Context, ref string, kind store.DocumentKind) error
}

// Server exposes the local peer over HTTP.
type Server struct {
	writes Submitter
	docs   Documents
	dir    *StaticDirectory
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger (default slog.Default()).
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates a Server.
func NewServer(writes Submitter, docs Documents, dir *StaticDirectory, opts ...ServerOption) *Server {
	s := &Server{
		writes: writes,
		docs:   docs,
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.Use(s.logRequests)

	r.Methods(http.MethodPost).Path("/v1/queries/set-attachment").HandlerFunc(s.setAttachment)
	r.Methods(http.MethodGet).Path("/v1/documents/{ref}/attachments/{namespace}/{key}").HandlerFunc(s.getAttachment)
	r.Methods(http.MethodPut).Path("/v1/documents/{ref}").HandlerFunc(s.putDocument)
	r.Methods(http.MethodGet).Path("/v1/coordinator").HandlerFunc(s.getCoordinator)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.logger.Info("handled",
			"method", r.Method,
			"path", r.URL.Path,
			"peer", r.Header.Get(HeaderPeer),
			"status", m.Code,
			"duration", m.Duration,
		)
	})
}

func (s *Server) setAttachment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	// A malformed request is still a well-formed query: the handler answers
	// the empty request, so coordinator status is checked before shape.
	req, ok := delegate.DecodeRequest(body)
	if !ok {
		s.logger.Warn("malformed write request", "peer", r.Header.Get(HeaderPeer))
		req = delegate.Request{}
	}

	res, err := s.writes.Submit(r.Context(), req)
	switch {
	case errors.Is(err, delegate.ErrLoopStopped):
		writeError(w, http.StatusServiceUnavailable, "write loop stopped")
		return
	case err != nil:
		// Caller went away; the write may still land.
		s.logger.Debug("write caller gone", "request_id", req.ID, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getAttachment(w http.ResponseWriter, r *http.Request) {
	ref, namespace, key, ok := pathVars(r, "ref", "namespace", "key")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad path")
		return
	}

	raw, err := s.docs.ReadAttachment(r.Context(), ref, namespace, key)
	if errors.Is(err, delegate.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		s.logger.Error("read attachment", "document", ref, "namespace", namespace, "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "read failed")
		return
	}
	if raw == nil {
		raw = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) putDocument(w http.ResponseWriter, r *http.Request) {
	ref, _, _, ok := pathVars(r, "ref", "", "")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad path")
		return
	}

	var body struct {
		Kind store.DocumentKind `json:"kind"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "body must be {\"kind\": ...}")
		return
	}
	if !body.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "unknown document kind")
		return
	}

	if err := s.docs.CreateDocument(r.Context(), ref, body.Kind); err != nil {
		s.logger.Warn("create document", "document", ref, "error", err)
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ref": ref, "kind": string(body.Kind)})
}

func (s *Server) getCoordinator(w http.ResponseWriter, r *http.Request) {
	coordinator, _ := s.dir.CurrentCoordinator(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{
		"self":        string(s.dir.Self()),
		"coordinator": string(coordinator),
	})
}

// pathVars unescapes the named route variables. Empty names are skipped.
func pathVars(r *http.Request, names ...string) (a, b, c string, ok bool) {
	vars := mux.Vars(r)
	out := make([]string, 3)
	for i, name := range names {
		if name == "" {
			continue
		}
		v, err := url.PathUnescape(vars[name])
		if err != nil || v == "" {
			return "", "", "", false
		}
		out[i] = v
	}
	return out[0], out[1], out[2], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
