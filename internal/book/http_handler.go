package book

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"booksapi/internal/httpx"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageNumber = 1
	defaultPageSize   = 10
)

type createBookRequest struct {
	Title  string `json:"title" validate:"required,max=500"`
	Author string `json:"author" validate:"required,max=200"`
	// Pointer so presence is checked without refusing year zero.
	PublicationYear *int `json:"publicationYear" validate:"required"`
}

type bookResponse struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	PublicationYear int     `json:"publicationYear"`
	BookViews       int     `json:"bookViews"`
	PopularityScore float64 `json:"popularityScore"`
}

func toResponse(s Scored) bookResponse {
	return bookResponse{
		ID:              s.ID,
		Title:           s.Title,
		Author:          s.Author,
		PublicationYear: s.PublicationYear,
		BookViews:       s.BookViews,
		PopularityScore: s.PopularityScore,
	}
}

type HTTPHandler struct {
	service *Service
	logger  *zap.Logger
}

func NewHTTPHandler(service *Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{service: service, logger: logger}
}

// Register wires all book routes onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /books", h.List)
	mux.HandleFunc("GET /books/popular", h.Popular)
	mux.HandleFunc("GET /books/{id}", h.Get)
	mux.HandleFunc("POST /books", h.CreateBatch)
	mux.HandleFunc("PUT /books/{id}", h.Update)
	mux.HandleFunc("DELETE /books/{id}", h.Delete)
	mux.HandleFunc("DELETE /books/softdeletesingle/{id}", h.SoftDeleteOne)
	mux.HandleFunc("DELETE /books/softdelete", h.SoftDeleteBatch)
}

// List handles GET /books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]bookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, toResponse(b))
	}
	httpx.JSONSuccess(w, out, map[string]any{"total": len(out)})
}

// Get handles GET /books/{id}; every fetch counts as one view.
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONSuccess(w, toResponse(b), nil)
}

// CreateBatch handles POST /books
func (h *HTTPHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var payload []createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON array of books", nil)
		return
	}
	if len(payload) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Book list cannot be empty", nil)
		return
	}

	var details []httpx.ErrorDetail
	for i, item := range payload {
		for _, ve := range ValidateStruct(item) {
			details = append(details, httpx.ErrorDetail{
				Field:   fmt.Sprintf("[%d].%s", i, ve.Field),
				Message: ve.Message,
			})
		}
	}
	if len(details) > 0 {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid book data", details)
		return
	}

	items := make([]NewBook, len(payload))
	for i, p := range payload {
		items[i] = NewBook{Title: p.Title, Author: p.Author, PublicationYear: *p.PublicationYear}
	}

	created, err := h.service.CreateBatch(r.Context(), items)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]bookResponse, 0, len(created))
	for _, b := range created {
		out = append(out, toResponse(b))
	}
	httpx.JSONSuccessCreated(w, out)
}

// Update handles PUT /books/{id}
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var payload createBookRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON book object", nil)
		return
	}
	if ve := ValidateStruct(payload); len(ve) > 0 {
		details := make([]httpx.ErrorDetail, 0, len(ve))
		for _, v := range ve {
			details = append(details, httpx.ErrorDetail{Field: v.Field, Message: v.Message})
		}
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid book data", details)
		return
	}

	in := NewBook{Title: payload.Title, Author: payload.Author, PublicationYear: *payload.PublicationYear}
	if err := h.service.Update(r.Context(), id, in); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

// Delete handles DELETE /books/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

// SoftDeleteOne handles DELETE /books/softdeletesingle/{id}
func (h *HTTPHandler) SoftDeleteOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

// SoftDeleteBatch handles DELETE /books/softdelete
func (h *HTTPHandler) SoftDeleteBatch(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON array of ids", nil)
		return
	}
	if len(ids) == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "ID list cannot be empty", nil)
		return
	}
	for i, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid book id", []httpx.ErrorDetail{
				{Field: fmt.Sprintf("[%d]", i), Message: "must be a valid UUID"},
			})
			return
		}
	}

	if err := h.service.SoftDeleteBatch(r.Context(), ids); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONSuccessNoContent(w)
}

// Popular handles GET /books/popular?pageNumber&pageSize
func (h *HTTPHandler) Popular(w http.ResponseWriter, r *http.Request) {
	pageNumber, ok := h.pageParam(w, r, "pageNumber", defaultPageNumber)
	if !ok {
		return
	}
	pageSize, ok := h.pageParam(w, r, "pageSize", defaultPageSize)
	if !ok {
		return
	}

	titles, err := h.service.Popular(r.Context(), pageNumber, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSONSuccess(w, titles, map[string]any{
		"pageNumber": pageNumber,
		"pageSize":   pageSize,
	})
}

// pathID extracts and validates the {id} path segment.
func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid book id", nil)
		return "", false
	}
	return id, true
}

// pageParam parses a positive pagination parameter, falling back to def when
// absent. Non-positive or non-numeric values are rejected, not clamped.
func (h *HTTPHandler) pageParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("%s must be a positive integer", name), nil)
		return 0, false
	}
	return v, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var conflict *TitleConflictError
	switch {
	case errors.As(err, &conflict):
		httpx.JSONError(w, http.StatusConflict, "TITLE_CONFLICT", conflict.Error(), nil)
	case errors.Is(err, ErrEmptyBatch):
		httpx.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	case errors.Is(err, ErrConcurrentModification):
		httpx.JSONError(w, http.StatusInternalServerError, "CONCURRENCY_CONFLICT", "Book was modified concurrently", nil)
	default:
		h.logger.Error("request failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
