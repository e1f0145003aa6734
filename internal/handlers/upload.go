package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/chatwire/chatwire/internal/api/middleware"
)

// allowedExtensions mirrors the attachment types messages may reference.
var allowedExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".gif": true,
	".pdf": true, ".doc": true, ".docx": true, ".txt": true,
	".mp4": true, ".mp3": true,
}

var allowedMimePrefixes = []string{
	"image/", "video/", "audio/", "text/",
	"application/pdf", "application/msword",
	"application/vnd.openxmlformats-officedocument",
	"application/octet-stream",
}

func allowedMimeType(ct string) bool {
	for _, prefix := range allowedMimePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// UploadResponse describes a stored attachment.
type UploadResponse struct {
	Success  bool   `json:"success"`
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	FileType string `json:"file_type"`
}

// Upload stores a multipart file attachment on local disk under a ULID
// name and returns the URL a sendMessage event can reference.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.Error(w, http.StatusBadRequest, "file size too large. Maximum is 10MB")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] || !allowedMimeType(header.Header.Get("Content-Type")) {
		h.Error(w, http.StatusBadRequest, "file type not allowed")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		h.Error(w, http.StatusInternalServerError, "upload storage unavailable")
		return
	}

	name := ulid.Make().String() + ext
	dst, err := os.Create(filepath.Join(h.uploadDir, name))
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	h.logger.Info().
		Int64("user_id", identity.ID).
		Str("file", name).
		Int64("size", size).
		Msg("file uploaded")

	h.JSON(w, http.StatusOK, UploadResponse{
		Success:  true,
		FileURL:  "/uploads/" + name,
		FileName: header.Filename,
		FileSize: size,
		FileType: header.Header.Get("Content-Type"),
	})
}
