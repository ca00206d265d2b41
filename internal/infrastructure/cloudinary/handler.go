package cloudinary

import (
	"context"
	"io"
	"net/http"
	"strings"

	"holidaysri-admin/pkg/middleware"
	"holidaysri-admin/pkg/response"
)

const maxUploadSize = 10 << 20

// SlipUploader is what the upload endpoint needs from the asset host
type SlipUploader interface {
	UploadPaymentSlip(ctx context.Context, file io.Reader, filename, uploadedBy string) (*UploadResult, error)
}

// Handler serves the payment slip upload endpoint
type Handler struct {
	uploader SlipUploader
}

// NewHandler creates a new Cloudinary HTTP handler
func NewHandler(uploader SlipUploader) *Handler {
	return &Handler{uploader: uploader}
}

// UploadResponse is returned by a successful upload
type UploadResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// HandleUpload accepts a multipart "file" field and stores it
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		response.SendError(w, r, http.StatusBadRequest, "INVALID_FORM", "Failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.SendError(w, r, http.StatusBadRequest, "MISSING_FILE", "File is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		response.SendError(w, r, http.StatusBadRequest, "INVALID_FILE_TYPE", "File must be an image or a PDF")
		return
	}

	adminID, _ := middleware.GetUserIDFromContext(r.Context())
	result, err := h.uploader.UploadPaymentSlip(r.Context(), file, header.Filename, adminID)
	if err != nil {
		response.SendError(w, r, http.StatusBadGateway, "UPLOAD_FAILED", "Failed to upload file")
		return
	}

	response.SendCreated(w, r, UploadResponse{URL: result.SecureURL, PublicID: result.PublicID})
}
