package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RedPatata13/SAA-E-LIbrary/internal/apperror"
	"github.com/RedPatata13/SAA-E-LIbrary/internal/service"
)

// EbookHandler exposes the library catalogue and managed files.
type EbookHandler struct {
	ebooks   *service.EbookService
	readings *service.ReadingService
	logger   *slog.Logger
}

func NewEbookHandler(ebooks *service.EbookService, readings *service.ReadingService, logger *slog.Logger) *EbookHandler {
	return &EbookHandler{ebooks: ebooks, readings: readings, logger: logger}
}

// HandleUpload copies a picked file into the library.
// POST /api/ebooks  {"title", "author", "publisher", "doi", "filePath", "fileName"}
func (h *EbookHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var in service.UploadInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ebook, err := h.ebooks.Upload(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"ebook": ebook})
}

// HandleList returns every ebook with its file content (base64, or null).
// GET /api/ebooks
func (h *EbookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ebooks, err := h.ebooks.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"ebooks": ebooks})
}

// HandleGet returns one ebook's metadata.
// GET /api/ebooks/{id}
func (h *EbookHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ebook, err := h.ebooks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"ebook": ebook})
}

// HandleUpdate patches metadata and optionally swaps the file.
// PATCH /api/ebooks/{id}
func (h *EbookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ebook, err := h.ebooks.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"ebook": ebook})
}

// HandleRemove deletes the record and then its file.
// DELETE /api/ebooks/{id}
func (h *EbookHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.ebooks.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"message": "Ebook removed"})
}

// HandleFilePath resolves a stored file name to a physical path.
// GET /api/files/path?fileName=...
func (h *EbookHandler) HandleFilePath(w http.ResponseWriter, r *http.Request) {
	path, err := h.ebooks.FilePath(r.URL.Query().Get("fileName"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"path": path})
}

// HandleFileExists reports whether a path exists. It never fails.
// GET /api/files/exists?path=...
func (h *EbookHandler) HandleFileExists(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, map[string]any{"exists": h.ebooks.FileExists(r.URL.Query().Get("path"))})
}

// HandleReadingStatus records the last page a user reached in a book.
// PUT /api/ebooks/{id}/reading  {"userId", "pageNumber"}
func (h *EbookHandler) HandleReadingStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID     string `json:"userId"`
		PageNumber *int   `json:"pageNumber"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.PageNumber == nil {
		writeError(w, apperror.ValidationFailed("pageNumber", "pageNumber is required"))
		return
	}
	record, err := h.readings.UpdateReadingStatus(r.Context(), chi.URLParam(r, "id"), in.UserID, *in.PageNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"record": record})
}

// HandleServeFile streams a managed file, resolving the ebooks:// scheme.
// GET /ebooks/{fileName}
func (h *EbookHandler) HandleServeFile(w http.ResponseWriter, r *http.Request) {
	path, err := h.ebooks.FilePath(chi.URLParam(r, "fileName"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !h.ebooks.FileExists(path) {
		writeError(w, apperror.NotFound("File", chi.URLParam(r, "fileName")))
		return
	}
	http.ServeFile(w, r, path)
}
