package port

import (
	"context"
	"errors"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
)

//go:generate mockgen -destination=../service/mocks/service_mock.go -package=mocks -source=service.go

var (
	ErrModelNotFound = errors.New("model link expired or unavailable")
	ErrSuperseded    = errors.New("resolution superseded by a newer request")

	// ErrModelUnavailable means the host could not be asked, so absence is not proven.
	ErrModelUnavailable = errors.New("media host temporarily unavailable")
)

// ModelService defines the business logic for model sharing.
type ModelService interface {
	// UploadModel validates, uploads and records a model file.
	UploadModel(ctx context.Context, filename string, data []byte) (*domain.UploadResult, error)

	// ResolveModel turns a shared model ID into a verified remote URL.
	// A newer call with the same non-empty session supersedes an in-flight one.
	ResolveModel(ctx context.Context, session string, id string) (*domain.ResolvedModel, error)

	// ListModels returns all locally known models, newest first.
	ListModels(ctx context.Context) ([]domain.ModelRecord, error)

	// DeleteModel forgets a model and, when possible, deletes the remote object.
	DeleteModel(ctx context.Context, id string) error

	// ShareLink builds the shareable URL and QR image URL for id.
	ShareLink(id string) (domain.ShareLink, error)
}
