package mediahost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// s3API is the subset of the S3 client the host uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Host stores models in an S3-compatible bucket served from a public base URL.
type S3Host struct {
	client        s3API
	bucket        string
	folder        string
	publicBaseURL string
}

var _ port.MediaHost = (*S3Host)(nil)

// NewS3Host builds an S3 client from the default AWS credential chain.
func NewS3Host(ctx context.Context, cfg config.MediaHostConfig) (*S3Host, error) {
	if cfg.S3.Bucket == "" {
		return nil, errors.New("media_host.s3.bucket is required for s3")
	}
	if cfg.S3.PublicBaseURL == "" {
		return nil, errors.New("media_host.s3.public_base_url is required for s3")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true // MinIO, LocalStack
		}
	})

	return newS3Host(client, cfg), nil
}

func newS3Host(client s3API, cfg config.MediaHostConfig) *S3Host {
	return &S3Host{
		client:        client,
		bucket:        cfg.S3.Bucket,
		folder:        strings.Trim(cfg.Folder, "/"),
		publicBaseURL: strings.TrimRight(cfg.S3.PublicBaseURL, "/"),
	}
}

func (h *S3Host) objectKey(objectName, ext string) string {
	if h.folder == "" {
		return objectName + ext
	}
	return path.Join(h.folder, objectName+ext)
}

func (h *S3Host) Upload(ctx context.Context, req port.UploadRequest) (*port.UploadedObject, error) {
	key := h.objectKey(req.ObjectName, req.Extension)

	contentType := mime.TypeByExtension(req.Extension)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(req.Data),
		ContentLength: aws.Int64(int64(len(req.Data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		logger.Warnw("S3 upload failed", "bucket", h.bucket, "key", key, "error", err.Error())
		return nil, classifyS3Error(err)
	}

	return &port.UploadedObject{
		SecureURL: h.publicBaseURL + "/" + key,
		ObjectID:  key,
	}, nil
}

func (h *S3Host) Delete(ctx context.Context, objectID string) error {
	if objectID == "" {
		return errors.New("empty object id")
	}
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(objectID),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s: %w", objectID, err)
	}
	return nil
}

// classifyS3Error maps SDK failures onto upload error kinds.
func classifyS3Error(err error) error {
	var statusErr interface{ HTTPStatusCode() int }
	status := 0
	if errors.As(err, &statusErr) {
		status = statusErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "EntityTooLarge" || status == 413 {
			return &port.UploadError{Kind: port.UploadTooLarge, StatusCode: status, Err: err}
		}
		return &port.UploadError{Kind: port.UploadRejected, StatusCode: status, Err: err}
	}
	if status == 413 {
		return &port.UploadError{Kind: port.UploadTooLarge, StatusCode: status, Err: err}
	}
	if status != 0 {
		return &port.UploadError{Kind: port.UploadRejected, StatusCode: status, Err: err}
	}
	return &port.UploadError{Kind: port.UploadNetwork, Err: err}
}
