package agent

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/haasonsaas/scout/pkg/models"
)

const (
	// imageProbeTimeout bounds the per-URL validation probe.
	imageProbeTimeout = 10 * time.Second

	// maxDataURIBytes caps inline data-URI payloads (decoded).
	maxDataURIBytes = 10 << 20

	// maxProbeRedirects: follow one redirect, then give up.
	maxProbeRedirects = 1
)

var (
	imageURLPattern = regexp.MustCompile(`https?://[^\s<>"']+\.(?:png|jpe?g|gif|webp)(?:\?[^\s<>"']*)?`)
	dataURIPattern  = regexp.MustCompile(`data:image/(?:png|jpeg|gif|webp);base64,[A-Za-z0-9+/=]+`)
)

// ImageValidator extracts and validates image references in user messages.
// Valid references become additional content parts on the user turn;
// invalid ones are dropped with a log line, never an error.
type ImageValidator struct {
	client *http.Client
	logger *slog.Logger
}

// NewImageValidator builds a validator with the standard probe policy.
func NewImageValidator(logger *slog.Logger) *ImageValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageValidator{
		client: &http.Client{
			Timeout: imageProbeTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxProbeRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		logger: logger,
	}
}

// ExtractParts scans a user message for image URLs and inline data URIs and
// returns the content parts for the ones that validate. The text part is
// returned unchanged as the first element.
func (v *ImageValidator) ExtractParts(ctx context.Context, message string) []models.ContentPart {
	parts := []models.ContentPart{models.TextPart(message)}

	for _, uri := range dataURIPattern.FindAllString(message, -1) {
		if mediaType, ok := v.validateDataURI(uri); ok {
			parts = append(parts, models.ImagePart(uri, mediaType))
		}
	}
	for _, url := range imageURLPattern.FindAllString(message, -1) {
		if mediaType, ok := v.probeURL(ctx, url); ok {
			parts = append(parts, models.ImagePart(url, mediaType))
		}
	}
	return parts
}

// validateDataURI checks the declared type and the decoded size cap.
func (v *ImageValidator) validateDataURI(uri string) (string, bool) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return "", false
	}
	mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")

	// Base64 expands by 4/3; bound the decoded size before decoding.
	if base64.StdEncoding.DecodedLen(len(payload)) > maxDataURIBytes {
		v.logger.Debug("dropping oversize data URI", "media_type", mediaType, "encoded_len", len(payload))
		return "", false
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		v.logger.Debug("dropping malformed data URI", "error", err)
		return "", false
	}
	return mediaType, true
}

// probeURL sends a HEAD request and accepts the URL when the response
// content type indicates an image. Probe failures drop the URL; they never
// fail the chat request.
func (v *ImageValidator) probeURL(ctx context.Context, url string) (string, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, imageProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, url, nil)
	if err != nil {
		return "", false
	}
	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("image probe failed", "url", url, "error", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		v.logger.Debug("image probe rejected", "url", url, "status", resp.StatusCode)
		return "", false
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		v.logger.Debug("image probe wrong content type", "url", url, "content_type", contentType)
		return "", false
	}
	return contentType, true
}
