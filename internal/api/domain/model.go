package domain

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

const (
	// UnknownSizeLabel is used for records synthesized from a verified URL.
	UnknownSizeLabel = "Unknown"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type: only .glb and .gltf are accepted")
)

// SupportedExtensions lists accepted model extensions in candidate probing order.
var SupportedExtensions = []string{".glb", ".gltf"}

// ModelRecord stores what is known about one uploaded 3D asset.
type ModelRecord struct {
	ID               string    `json:"id"`
	RemoteURL        string    `json:"remote_url"`
	OriginalFilename string    `json:"original_filename"`
	SizeBytes        int64     `json:"size_bytes"`
	SizeLabel        string    `json:"size_label"`
	UploadedAt       time.Time `json:"uploaded_at"`
	ProviderObjectID string    `json:"provider_object_id,omitempty"`
}

// ResolutionSource tells which strategy produced a resolved model.
type ResolutionSource string

const (
	SourceCache     ResolutionSource = "cache"
	SourceCandidate ResolutionSource = "candidate"
)

// ResolvedModel is a record whose RemoteURL has just been verified reachable.
type ResolvedModel struct {
	Record ModelRecord      `json:"record"`
	Source ResolutionSource `json:"source"`
}

// UploadResult is returned by the upload pipeline.
// Persisted is false when the cache write failed; the upload itself still succeeded.
type UploadResult struct {
	Record    ModelRecord `json:"record"`
	Persisted bool        `json:"persisted"`
}

// ShareLink holds the shareable page URL and the external QR image URL for it.
type ShareLink struct {
	URL        string `json:"url"`
	QRImageURL string `json:"qr_image_url"`
}

// ProbeResult is the outcome of a reachability check.
type ProbeResult struct {
	Reachable  bool   `json:"reachable"`
	StatusCode int    `json:"status_code,omitempty"`
	Status     string `json:"status,omitempty"`
	Reason     string `json:"reason,omitempty"`
	// Inconclusive is set when no answer was obtained from the host (circuit
	// open, caller cancelled). It says nothing about whether the URL is live.
	Inconclusive bool `json:"inconclusive,omitempty"`
}

// ValidateModelFile checks the filename extension, case-insensitively.
func ValidateModelFile(filename string) error {
	if ModelExtension(filename) == "" {
		return ErrUnsupportedFileType
	}
	return nil
}

// ModelExtension returns the lower-cased supported extension of filename, or "".
func ModelExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return ext
		}
	}
	return ""
}
