package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/Contexta/internal/api/render"
	"github.com/markdave123-py/Contexta/internal/apperr"
	"github.com/markdave123-py/Contexta/internal/services"
)

// multipartMemory is how much of a multipart form is kept in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

type DocumentHandler struct {
	docs           *services.DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(docs *services.DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{docs: docs, maxUploadBytes: maxUploadBytes}
}

type uploadResponse struct {
	DocID      string         `json:"doc_id"`
	FileName   string         `json:"filename"`
	Structured map[string]any `json:"structured"`
	PageCount  int            `json:"page_count"`
	FullText   string         `json:"full_text"`
}

// UploadDocument accepts a multipart "file" field holding a PDF.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		render.Error(w, r, uploadError(err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		render.Error(w, r, apperr.Validation("multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		render.Error(w, r, uploadError(err))
		return
	}

	doc, err := h.docs.Upload(r.Context(), user.ID, header.Filename, data)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusCreated, uploadResponse{
		DocID:      doc.ID,
		FileName:   doc.FileName,
		Structured: doc.Structured,
		PageCount:  doc.PageCount,
		FullText:   doc.FullText,
	})
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("uploaded file is too large")
	}
	return apperr.Validation("request is not a valid multipart upload")
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	docs, err := h.docs.List(r.Context(), user.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, docs)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	view, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, view)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := h.docs.Delete(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"message": "document deleted"})
}
