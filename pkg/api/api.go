// Package api exposes the engine over HTTP.
//
// Routes (all JSON):
//
//	GET    /healthz
//	POST   /v1/snapshots                                     submit a snapshot document
//	GET    /v1/snapshots                                     list snapshot IDs
//	GET    /v1/snapshots/{id}                                fetch a snapshot document
//	DELETE /v1/snapshots/{id}                                delete a snapshot
//	GET    /v1/snapshots/{id}/verdicts/{package}/{release}   evaluate one node
//	POST   /v1/snapshots/{id}/evaluate                       evaluate a batch of refs
//	POST   /v1/snapshots/{id}/invalidate                     drop cached verdicts for a node
//
// Errors use a stable envelope {"error": {"code", "message"}} where code
// is the machine-readable error code and the HTTP status follows from
// it.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stackgate/pkg/cache"
	"github.com/matzehuels/stackgate/pkg/descriptor"
	"github.com/matzehuels/stackgate/pkg/errors"
	"github.com/matzehuels/stackgate/pkg/eval"
	"github.com/matzehuels/stackgate/pkg/snapshot"
	"github.com/matzehuels/stackgate/pkg/store"
	"github.com/matzehuels/stackgate/pkg/timeline"
)

// Config configures the API server.
type Config struct {
	// Store persists snapshot documents. Required.
	Store store.Store

	// Cache is the optional shared verdict cache passed to evaluators.
	Cache cache.Cache

	// Policy overrides the evaluation policy. Nil means the default.
	Policy *eval.Policy

	// Logger receives request and evaluation logs. Nil means the
	// package default logger.
	Logger *log.Logger
}

// Server holds the HTTP handlers and a per-snapshot evaluator pool.
//
// Evaluators are built lazily from stored documents and reused across
// requests so their memo tables stay warm. Any mutation of a snapshot
// (resubmission, deletion) drops its pooled evaluator.
type Server struct {
	store  store.Store
	cache  cache.Cache
	policy *eval.Policy
	logger *log.Logger

	mu    sync.Mutex
	evals map[string]*eval.Evaluator
}

// NewServer creates a server. Config.Store is required.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		store:  cfg.Store,
		cache:  cfg.Cache,
		policy: cfg.Policy,
		logger: logger,
		evals:  make(map[string]*eval.Evaluator),
	}, nil
}

// Handler builds the chi router with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/v1/snapshots", func(r chi.Router) {
		r.Post("/", s.handleSubmitSnapshot)
		r.Get("/", s.handleListSnapshots)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSnapshot)
			r.Delete("/", s.handleDeleteSnapshot)
			r.Get("/verdicts/{package}/{release}", s.handleVerdict)
			r.Post("/evaluate", s.handleEvaluateBatch)
			r.Post("/invalidate", s.handleInvalidate)
		})
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitSnapshot(w http.ResponseWriter, r *http.Request) {
	var doc snapshot.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding snapshot document"))
		return
	}

	// Replay validates every record and rejects structural problems
	// before anything is stored.
	snap, err := snapshot.FromDocument(doc)
	if err != nil {
		writeError(w, err)
		return
	}

	stored := snap.Document()
	if err := s.store.Put(r.Context(), stored); err != nil {
		writeError(w, err)
		return
	}
	s.dropEvaluator(stored.ID)

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":          stored.ID,
		"fingerprint": snap.Fingerprint(),
	})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	s.dropEvaluator(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVerdict(w http.ResponseWriter, r *http.Request) {
	e, err := s.evaluatorFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	verdict, err := e.Evaluate(r.Context(),
		chi.URLParam(r, "package"),
		timeline.Release(chi.URLParam(r, "release")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

// batchRequest is the evaluate-batch body: refs in "package@release"
// form.
type batchRequest struct {
	Refs []string `json:"refs"`
}

type batchResponse struct {
	Verdicts []*eval.Verdict `json:"verdicts"`
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding batch request"))
		return
	}
	if len(req.Refs) == 0 {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "refs must not be empty"))
		return
	}

	refs := make([]descriptor.Ref, 0, len(req.Refs))
	for _, raw := range req.Refs {
		ref, err := parseRef(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		refs = append(refs, ref)
	}

	e, err := s.evaluatorFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	results, err := e.EvaluateAll(r.Context(), refs)
	if err != nil {
		writeError(w, err)
		return
	}

	// emit in request order, deduplicated
	resp := batchResponse{Verdicts: make([]*eval.Verdict, 0, len(results))}
	seen := make(map[descriptor.Ref]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		if v, ok := results[ref]; ok {
			resp.Verdicts = append(resp.Verdicts, v)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type invalidateRequest struct {
	Package string `json:"package"`
	Release string `json:"release"`
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "decoding invalidate request"))
		return
	}
	if req.Package == "" || req.Release == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "package and release are required"))
		return
	}

	e, err := s.evaluatorFor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	dropped := e.Invalidate(r.Context(), req.Package, timeline.Release(req.Release))
	writeJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}

// evaluatorFor returns the pooled evaluator for a snapshot, building it
// from the stored document on first use.
func (s *Server) evaluatorFor(ctx context.Context, id string) (*eval.Evaluator, error) {
	s.mu.Lock()
	if e, ok := s.evals[id]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot.FromDocument(doc)
	if err != nil {
		return nil, err
	}
	e := eval.New(snap, eval.Options{
		Policy: s.policy,
		Logger: s.logger,
		Cache:  s.cache,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	// another request may have built it concurrently; keep the first
	if existing, ok := s.evals[id]; ok {
		return existing, nil
	}
	s.evals[id] = e
	return e, nil
}

func (s *Server) dropEvaluator(id string) {
	s.mu.Lock()
	delete(s.evals, id)
	s.mu.Unlock()
}
