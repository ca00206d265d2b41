package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// ImageStore is the slice of the asset host the payout workflow depends on
type ImageStore interface {
	UploadPaymentSlip(ctx context.Context, file io.Reader, filename, uploadedBy string) (*UploadResult, error)
	DeleteFiles(ctx context.Context, refs []string) error
}

// Service provides Cloudinary operations
type Service struct {
	cld          *cloudinary.Cloudinary
	uploadFolder string
	log          zerolog.Logger
}

// UploadResult contains information about an uploaded file
type UploadResult struct {
	PublicID     string    `json:"publicId"`
	SecureURL    string    `json:"url"`
	Format       string    `json:"format"`
	ResourceType string    `json:"resourceType"`
	Bytes        int       `json:"bytes"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UploadOptions provides options for uploading files
type UploadOptions struct {
	Folder         string // subfolder within the main upload folder
	PublicID       string
	UniqueFilename bool
	Tags           []string
	ResourceType   string // image, raw or auto (default)
	AllowedFormats []string
}

// NewService creates a new Cloudinary service
func NewService(cfg Config, log zerolog.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cloudinary config: %w", err)
	}
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	folder := cfg.UploadFolder
	if folder == "" {
		folder = DefaultFolder
	}
	log.Info().Str("cloud", cfg.CloudName).Str("folder", folder).Msg("cloudinary initialized")

	return &Service{cld: cld, uploadFolder: folder, log: log}, nil
}

// UploadFile uploads a file to Cloudinary
func (s *Service) UploadFile(ctx context.Context, file io.Reader, filename string, opts *UploadOptions) (*UploadResult, error) {
	if opts == nil {
		opts = &UploadOptions{}
	}

	folder := s.uploadFolder
	if opts.Folder != "" {
		folder = path.Join(folder, opts.Folder)
	}

	params := uploader.UploadParams{
		Folder:         folder,
		UniqueFilename: api.Bool(opts.UniqueFilename),
		ResourceType:   "auto",
	}
	if opts.PublicID != "" {
		params.PublicID = opts.PublicID
	}
	if len(opts.Tags) > 0 {
		params.Tags = api.CldAPIArray(opts.Tags)
	}
	if opts.ResourceType != "" {
		params.ResourceType = opts.ResourceType
	}
	if len(opts.AllowedFormats) > 0 {
		params.AllowedFormats = opts.AllowedFormats
	}

	result, err := s.cld.Upload.Upload(ctx, file, params)
	if err != nil {
		s.log.Error().Err(err).Str("filename", filename).Msg("cloudinary upload failed")
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary error: %s", result.Error.Message)
	}

	s.log.Debug().Str("public_id", result.PublicID).Str("folder", folder).Msg("file uploaded")
	return &UploadResult{
		PublicID:     result.PublicID,
		SecureURL:    result.SecureURL,
		Format:       result.Format,
		ResourceType: result.ResourceType,
		Bytes:        result.Bytes,
		CreatedAt:    result.CreatedAt,
	}, nil
}

// UploadMultipartFile uploads a multipart file to Cloudinary
func (s *Service) UploadMultipartFile(ctx context.Context, fileHeader *multipart.FileHeader, opts *UploadOptions) (*UploadResult, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open multipart file: %w", err)
	}
	defer file.Close()

	return s.UploadFile(ctx, file, fileHeader.Filename, opts)
}

// UploadPaymentSlip stores a bank transfer slip attached to a payout
func (s *Service) UploadPaymentSlip(ctx context.Context, file io.Reader, filename, uploadedBy string) (*UploadResult, error) {
	return s.UploadFile(ctx, file, filename, &UploadOptions{
		Folder:         "payment-slips",
		UniqueFilename: true,
		Tags:           []string{"payment-slip", "admin-" + uploadedBy},
		AllowedFormats: []string{"jpg", "jpeg", "png", "webp", "pdf"},
	})
}

// DeleteFile deletes a file from Cloudinary by public ID
func (s *Service) DeleteFile(ctx context.Context, publicID string) error {
	_, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to delete file %s: %w", publicID, err)
	}
	return nil
}

// DeleteFiles deletes every referenced asset. A ref is either a public ID or a
// delivery URL. All deletions are attempted; failures are joined.
func (s *Service) DeleteFiles(ctx context.Context, refs []string) error {
	var errs []error
	for _, ref := range refs {
		publicID := ref
		if strings.Contains(ref, "://") {
			publicID = ExtractPublicIDFromURL(ref)
		}
		if publicID == "" {
			continue
		}
		if err := s.DeleteFile(ctx, publicID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExtractPublicIDFromURL extracts the public ID from a Cloudinary delivery URL
// of the form .../upload/v{version}/{folder}/{publicID}.{format}
func ExtractPublicIDFromURL(url string) string {
	parts := strings.SplitN(url, "/upload/", 2)
	if len(parts) < 2 {
		return ""
	}

	segments := strings.Split(parts[1], "/")
	if len(segments) > 1 && isVersionSegment(segments[0]) {
		segments = segments[1:]
	}

	withExt := strings.Join(segments, "/")
	return strings.TrimSuffix(withExt, filepath.Ext(withExt))
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
