package surgery

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/surgeon/kit"
	"github.com/hazyhaar/surgeon/shield"
)

const maxRequestBody = 16 << 20

// Router returns a chi router serving the document API. extra middleware
// (a rate limiter, typically) runs after the shield stack.
func (s *Service) Router(extra ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(shield.SecurityHeaders(shield.APIHeaders()))
	r.Use(shield.MaxBody(maxRequestBody))
	r.Use(s.contextMiddleware)
	r.Use(extra...)
	s.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the document API on r.
func (s *Service) RegisterHTTP(r chi.Router) {
	r.Get("/change-types", s.handleChangeTypes)
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Put("/", s.handlePut)
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Post("/import", s.handleImport)
			r.Post("/changes", s.handleApply)
			r.Post("/preview", s.handlePreview)
			r.Post("/rollback", s.handleRollback)
			r.Post("/clear-audit", s.handleClearAudit)
			r.Get("/journal", s.handleJournal)
			r.Get("/markdown", s.handleMarkdown)
		})
	})
}

func (s *Service) contextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, middleware.GetReqID(ctx))
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) handleChangeTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"types": s.ChangeTypes()})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// PUT /documents/{id} accepts either a JSON PutRequest or a raw text/html body.
func (s *Service) handlePut(w http.ResponseWriter, r *http.Request) {
	req := PutRequest{}
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		if !decode(w, r, &req) {
			return
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			bodyError(w, err)
			return
		}
		req.Markup = string(body)
	}
	req.DocumentID = chi.URLParam(r, "id")

	doc, err := s.Put(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GET /documents/{id}; ?format=html returns the raw markup.
func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := s.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Hash+`"`)
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, doc.Markup)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decode(w, r, &req) {
		return
	}
	doc, err := s.Import(r.Context(), chi.URLParam(r, "id"), req.URL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Service) handleApply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decode(w, r, &req) {
		return
	}
	req.DocumentID = chi.URLParam(r, "id")
	res, err := s.Apply(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decode(w, r, &req) {
		return
	}
	req.DocumentID = chi.URLParam(r, "id")
	res, err := s.Preview(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleRollback(w http.ResponseWriter, r *http.Request) {
	var req RollbackRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	req.DocumentID = chi.URLParam(r, "id")
	res, err := s.Rollback(r.Context(), &req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleClearAudit(w http.ResponseWriter, r *http.Request) {
	res, err := s.ClearAudit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleJournal(w http.ResponseWriter, r *http.Request) {
	ops, err := s.Journal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"operations": ops})
}

func (s *Service) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	md, err := s.Markdown(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	io.WriteString(w, md)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		bodyError(w, err)
		return false
	}
	return true
}

func bodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "invalid request body", http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("surgery: request failed",
			"path", r.URL.Path, "request_id", kit.GetRequestID(r.Context()), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
