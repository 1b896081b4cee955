package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/metrics"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

//go:generate mockgen -destination=mocks/dependencies_mock.go -package=mocks -source=upload_service.go

// StampGenerator hands out strictly increasing upload timestamps in Unix milliseconds.
type StampGenerator interface {
	Next() (int64, error)
}

// uploadService validates, transfers and records model files.
type uploadService struct {
	host        port.MediaHost
	cache       port.CacheStore
	stamper     StampGenerator
	maxFileSize int64
	timeout     time.Duration
}

func newUploadService(host port.MediaHost, cache port.CacheStore, stamper StampGenerator, maxFileSize int64, timeout time.Duration) *uploadService {
	return &uploadService{
		host:        host,
		cache:       cache,
		stamper:     stamper,
		maxFileSize: maxFileSize,
		timeout:     timeout,
	}
}

// upload runs the pipeline. Validation failures return before any network call;
// a failed cache write is reported through Persisted rather than as an error.
func (s *uploadService) upload(ctx context.Context, data []byte, filename string, sizeBytes int64) (*domain.UploadResult, error) {
	if err := domain.ValidateModelFile(filename); err != nil {
		metrics.UploadsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if s.maxFileSize > 0 && sizeBytes > s.maxFileSize {
		metrics.UploadsTotal.WithLabelValues(port.UploadTooLarge.String()).Inc()
		return nil, &port.UploadError{
			Kind: port.UploadTooLarge,
			Err:  fmt.Errorf("%d bytes exceeds limit of %d", sizeBytes, s.maxFileSize),
		}
	}

	ts, err := s.stamper.Next()
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to allocate upload timestamp: %w", err)
	}

	suffix := domain.SanitizeName(filename)
	ext := domain.ModelExtension(filename)
	id := domain.BuildID(ts, suffix)

	logger.Infow("Upload started", "model_id", id, "file_name", filename, "size_bytes", sizeBytes)

	uploadCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	obj, err := s.host.Upload(uploadCtx, port.UploadRequest{
		ObjectName: domain.ObjectName(ts, suffix),
		Extension:  ext,
		Filename:   filename,
		Data:       data,
	})
	if err != nil {
		var upErr *port.UploadError
		if !errors.As(err, &upErr) {
			upErr = &port.UploadError{Kind: port.UploadRejected, Err: err}
		}
		metrics.UploadsTotal.WithLabelValues(upErr.Kind.String()).Inc()
		logger.Errorw("Upload failed", "model_id", id, "kind", upErr.Kind.String(), "error", upErr.Error())
		return nil, upErr
	}

	record := domain.ModelRecord{
		ID:               id,
		RemoteURL:        obj.SecureURL,
		OriginalFilename: filename,
		SizeBytes:        sizeBytes,
		SizeLabel:        domain.FormatSize(sizeBytes),
		UploadedAt:       time.UnixMilli(ts).UTC(),
		ProviderObjectID: obj.ObjectID,
	}

	persisted := true
	if err := s.cache.Put(ctx, record); err != nil {
		persisted = false
		metrics.CacheWriteFailures.WithLabelValues("put").Inc()
		logger.Warnw("Uploaded model not cached", "model_id", id, "error", err.Error())
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	logger.Infow("Upload completed", "model_id", id, "url", record.RemoteURL, "persisted", persisted)
	return &domain.UploadResult{Record: record, Persisted: persisted}, nil
}
