package mediahost

import (
	"bytes"
	"context"
	"crypto/sha1" // #nosec G505 -- required by the Cloudinary signature scheme
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

const (
	DefaultCloudinaryAPIBase = "https://api.cloudinary.com"

	maxErrorBody = 64 * 1024
)

// CloudinaryHost uploads through an unsigned upload preset and deletes through
// the signed destroy endpoint when API credentials are configured.
type CloudinaryHost struct {
	client       *http.Client
	apiBase      string
	cloudName    string
	uploadPreset string
	resourceType string
	folder       string
	apiKey       string
	apiSecret    string
	now          func() time.Time
}

var _ port.MediaHost = (*CloudinaryHost)(nil)

func NewCloudinaryHost(client *http.Client, cfg config.MediaHostConfig) (*CloudinaryHost, error) {
	if cfg.CloudName == "" {
		return nil, errors.New("media_host.cloud_name is required for cloudinary")
	}
	if cfg.UploadPreset == "" {
		return nil, errors.New("media_host.upload_preset is required for cloudinary")
	}
	if client == nil {
		client = &http.Client{}
	}

	apiBase := strings.TrimRight(cfg.APIBaseURL, "/")
	if apiBase == "" {
		apiBase = DefaultCloudinaryAPIBase
	}
	resourceType := cfg.ResourceType
	if resourceType == "" {
		resourceType = "raw"
	}

	return &CloudinaryHost{
		client:       client,
		apiBase:      apiBase,
		cloudName:    cfg.CloudName,
		uploadPreset: cfg.UploadPreset,
		resourceType: resourceType,
		folder:       cfg.Folder,
		apiKey:       cfg.APIKey,
		apiSecret:    cfg.APISecret,
		now:          time.Now,
	}, nil
}

type cloudinaryResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Result    string `json:"result"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (h *CloudinaryHost) endpoint(action string) string {
	return fmt.Sprintf("%s/v1_1/%s/%s/%s", h.apiBase, url.PathEscape(h.cloudName), h.resourceType, action)
}

func (h *CloudinaryHost) Upload(ctx context.Context, req port.UploadRequest) (*port.UploadedObject, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fields := [][2]string{
		{"upload_preset", h.uploadPreset},
		{"resource_type", h.resourceType},
		{"public_id", req.ObjectName + req.Extension},
	}
	if h.folder != "" {
		fields = append(fields, [2]string{"folder", h.folder})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, &port.UploadError{Kind: port.UploadRejected, Err: err}
		}
	}

	part, err := w.CreateFormFile("file", req.Filename)
	if err != nil {
		return nil, &port.UploadError{Kind: port.UploadRejected, Err: err}
	}
	if _, err := part.Write(req.Data); err != nil {
		return nil, &port.UploadError{Kind: port.UploadRejected, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &port.UploadError{Kind: port.UploadRejected, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint("upload"), &body)
	if err != nil {
		return nil, &port.UploadError{Kind: port.UploadRejected, Err: err}
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, &port.UploadError{Kind: port.UploadNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, &port.UploadError{Kind: port.UploadNetwork, StatusCode: resp.StatusCode, Err: err}
	}

	var parsed cloudinaryResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		kind := port.UploadRejected
		if resp.StatusCode == http.StatusRequestEntityTooLarge || strings.Contains(strings.ToLower(msg), "too large") {
			kind = port.UploadTooLarge
		}
		logger.Warnw("Cloudinary rejected upload",
			"object", req.ObjectName,
			"status_code", resp.StatusCode,
			"message", msg,
		)
		return nil, &port.UploadError{Kind: kind, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	if parsed.SecureURL == "" {
		return nil, &port.UploadError{
			Kind:       port.UploadRejected,
			StatusCode: resp.StatusCode,
			Err:        errors.New("response missing secure_url"),
		}
	}

	return &port.UploadedObject{SecureURL: parsed.SecureURL, ObjectID: parsed.PublicID}, nil
}

// Delete calls the signed destroy endpoint.
func (h *CloudinaryHost) Delete(ctx context.Context, objectID string) error {
	if h.apiKey == "" || h.apiSecret == "" {
		return port.ErrDeleteUnsupported
	}
	if objectID == "" {
		return errors.New("empty object id")
	}

	timestamp := strconv.FormatInt(h.now().Unix(), 10)
	form := url.Values{}
	form.Set("public_id", objectID)
	form.Set("timestamp", timestamp)
	form.Set("api_key", h.apiKey)
	form.Set("signature", h.sign(objectID, timestamp))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var parsed cloudinaryResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cloudinary destroy %s: status %d", objectID, resp.StatusCode)
	}
	// "not found" means the object is already gone.
	if parsed.Result != "" && parsed.Result != "ok" && parsed.Result != "not found" {
		return fmt.Errorf("cloudinary destroy %s: result %q", objectID, parsed.Result)
	}
	return nil
}

// sign computes the API signature over the sorted parameters followed by the secret.
func (h *CloudinaryHost) sign(publicID, timestamp string) string {
	payload := "public_id=" + publicID + "&timestamp=" + timestamp + h.apiSecret
	sum := sha1.Sum([]byte(payload)) // #nosec G401
	return hex.EncodeToString(sum[:])
}
