package port

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
)

//go:generate mockgen -destination=../service/mocks/repository_mock.go -package=mocks -source=repository.go

var (
	ErrRecordNotFound    = errors.New("model record not found")
	ErrDeleteUnsupported = errors.New("media host does not support deletion with current credentials")
)

// CacheStore is the local metadata cache keyed by model ID.
type CacheStore interface {
	// Get returns the record for id or ErrRecordNotFound.
	Get(ctx context.Context, id string) (*domain.ModelRecord, error)

	// Put stores the full record atomically. Last write wins; an overwrite keeps
	// the original insertion position.
	Put(ctx context.Context, record domain.ModelRecord) error

	// Remove deletes the record. Removing an absent id is not an error.
	Remove(ctx context.Context, id string) error

	// ListAll returns every record, newest UploadedAt first, ties in insertion order.
	ListAll(ctx context.Context) ([]domain.ModelRecord, error)

	// Close releases the backing resources.
	Close() error
}

// Prober checks whether a remote URL currently serves content.
// It never fails: every failure mode is reported through the result.
type Prober interface {
	Probe(ctx context.Context, url string) domain.ProbeResult
}

// UploadRequest is one object transfer to the media host.
type UploadRequest struct {
	// ObjectName is "<timestamp>_<suffix>", without extension.
	ObjectName string
	Extension  string
	Filename   string
	Data       []byte
}

// UploadedObject is what the media host reports after a successful upload.
type UploadedObject struct {
	SecureURL string
	ObjectID  string
}

// MediaHost stores model binaries and serves them from public URLs.
type MediaHost interface {
	// Upload transfers the object and returns its retrieval URL.
	// Failures are reported as *UploadError.
	Upload(ctx context.Context, req UploadRequest) (*UploadedObject, error)

	// Delete removes a previously uploaded object by its host-assigned ID.
	Delete(ctx context.Context, objectID string) error
}

// CandidateGenerator derives plausible remote URLs from a model ID.
type CandidateGenerator interface {
	// Generate returns candidates in probing order. The result is a pure function of id.
	Generate(id string) []string
}
