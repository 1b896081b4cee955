package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/metrics"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

// ModelServiceImpl is the facade that wires the model use-case services.
type ModelServiceImpl struct {
	cache port.CacheStore
	host  port.MediaHost

	uploadUseCase  *uploadService
	resolveUseCase *resolver
	shareLinks     shareLinkBuilder
	generations    *generationTracker
}

// Ensure ModelServiceImpl implements port.ModelService.
var _ port.ModelService = (*ModelServiceImpl)(nil)

// NewModelService builds the facade and its use-case services.
func NewModelService(
	cfg *config.Config,
	cache port.CacheStore,
	host port.MediaHost,
	prober port.Prober,
	generator port.CandidateGenerator,
	stamper StampGenerator,
) *ModelServiceImpl {
	return &ModelServiceImpl{
		cache: cache,
		host:  host,
		uploadUseCase: newUploadService(host, cache, stamper,
			cfg.App.MaxFileSize,
			time.Duration(cfg.App.UploadTimeoutMS)*time.Millisecond,
		),
		resolveUseCase: newResolver(cache, prober, generator,
			cfg.MediaHost.TrustedDomain(),
			cfg.App.ProbeParallelism,
		),
		shareLinks:  newShareLinkBuilder(cfg.Share),
		generations: newGenerationTracker(),
	}
}

// UploadModel delegates to the upload pipeline.
func (s *ModelServiceImpl) UploadModel(ctx context.Context, filename string, data []byte) (*domain.UploadResult, error) {
	return s.uploadUseCase.upload(ctx, data, filename, int64(len(data)))
}

// ResolveModel resolves id, superseding any in-flight resolve for the same session.
func (s *ModelServiceImpl) ResolveModel(ctx context.Context, session string, id string) (*domain.ResolvedModel, error) {
	if _, err := domain.ParseID(id); err != nil {
		return nil, err
	}

	resolveCtx, gen, release := s.generations.begin(ctx, session)
	defer release()

	res, err := s.resolveUseCase.resolve(resolveCtx, id)
	if s.generations.isSuperseded(gen) {
		metrics.ResolutionsTotal.WithLabelValues("superseded").Inc()
		logger.Debugw("Resolve superseded", "model_id", id, "session", session, "generation", gen.id)
		return nil, port.ErrSuperseded
	}

	switch {
	case err == nil:
		metrics.ResolutionsTotal.WithLabelValues(string(res.Source)).Inc()
		logger.Infow("Model resolved", "model_id", id, "source", string(res.Source), "url", res.Record.RemoteURL)
		return res, nil
	case errors.Is(err, port.ErrModelUnavailable):
		metrics.ResolutionsTotal.WithLabelValues("unavailable").Inc()
		logger.Warnw("Model could not be verified, host unavailable", "model_id", id)
		return nil, err
	case errors.Is(err, port.ErrModelNotFound):
		metrics.ResolutionsTotal.WithLabelValues("not_found").Inc()
		logger.Infow("Model not found", "model_id", id)
		return nil, err
	default:
		metrics.ResolutionsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
}

// ListModels returns cached records, newest first.
func (s *ModelServiceImpl) ListModels(ctx context.Context) ([]domain.ModelRecord, error) {
	records, err := s.cache.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return records, nil
}

// DeleteModel removes the cache entry; remote deletion is best-effort.
func (s *ModelServiceImpl) DeleteModel(ctx context.Context, id string) error {
	if _, err := domain.ParseID(id); err != nil {
		return err
	}

	rec, err := s.cache.Get(ctx, id)
	switch {
	case err == nil && rec.ProviderObjectID != "":
		s.deleteRemote(ctx, id, rec.ProviderObjectID)
	case err != nil && !errors.Is(err, port.ErrRecordNotFound):
		logger.Warnw("Cache read failed during delete", "model_id", id, "error", err.Error())
	}

	if err := s.cache.Remove(ctx, id); err != nil {
		metrics.CacheWriteFailures.WithLabelValues("remove").Inc()
		return fmt.Errorf("failed to remove model %s: %w", id, err)
	}

	logger.Infow("Model deleted", "model_id", id)
	return nil
}

func (s *ModelServiceImpl) deleteRemote(ctx context.Context, id, objectID string) {
	err := s.host.Delete(ctx, objectID)
	switch {
	case err == nil:
		logger.Infow("Remote object deleted", "model_id", id, "object_id", objectID)
	case errors.Is(err, port.ErrDeleteUnsupported):
		logger.Infow("Remote object kept, host deletion unsupported", "model_id", id, "object_id", objectID)
	default:
		logger.Warnw("Remote object deletion failed", "model_id", id, "object_id", objectID, "error", err.Error())
	}
}

// ShareLink builds the share URL and QR image URL for a valid id.
func (s *ModelServiceImpl) ShareLink(id string) (domain.ShareLink, error) {
	if _, err := domain.ParseID(id); err != nil {
		return domain.ShareLink{}, err
	}
	return s.shareLinks.build(id)
}
