package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/domain"
)

const defaultQRSize = 150

// shareLinkBuilder produces "<base>?model=<id>" links and the QR service URL for them.
type shareLinkBuilder struct {
	baseURL      string
	qrServiceURL string
	qrSize       int
}

func newShareLinkBuilder(cfg config.ShareConfig) shareLinkBuilder {
	size := cfg.QRSize
	if size <= 0 {
		size = defaultQRSize
	}
	return shareLinkBuilder{baseURL: cfg.BaseURL, qrServiceURL: cfg.QRServiceURL, qrSize: size}
}

func (b shareLinkBuilder) build(id string) (domain.ShareLink, error) {
	u, err := url.Parse(b.baseURL)
	if err != nil {
		return domain.ShareLink{}, fmt.Errorf("invalid share base url: %w", err)
	}
	q := u.Query()
	q.Set("model", id)
	u.RawQuery = q.Encode()
	link := u.String()

	qr := ""
	if b.qrServiceURL != "" {
		sep := "?"
		if strings.Contains(b.qrServiceURL, "?") {
			sep = "&"
		}
		qr = fmt.Sprintf("%s%ssize=%dx%d&data=%s", b.qrServiceURL, sep, b.qrSize, b.qrSize, url.QueryEscape(link))
	}

	return domain.ShareLink{URL: link, QRImageURL: qr}, nil
}
