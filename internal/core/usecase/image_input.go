package usecase

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/eatwise/labelscan/internal/core/domain"
)

const defaultMaxImageBytes = 8 << 20

// NewLabelImage validates raw upload bytes. The declared type is trusted only
// when it is an image type; otherwise the content is sniffed.
func NewLabelImage(data []byte, declaredType string, maxBytes int64) (domain.LabelImage, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	if len(data) == 0 {
		return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "label image", fmt.Errorf("image is empty"))
	}
	if int64(len(data)) > maxBytes {
		return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "label image", fmt.Errorf("image exceeds %d bytes", maxBytes))
	}

	mimeType := normalizeMimeType(declaredType)
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = normalizeMimeType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "label image", fmt.Errorf("unsupported content type %q", mimeType))
	}
	return domain.LabelImage{Data: data, MimeType: mimeType}, nil
}

// DecodeLabelImage accepts either a data URL ("data:image/png;base64,...")
// or bare base64 text.
func DecodeLabelImage(encoded string, maxBytes int64) (domain.LabelImage, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "label image", fmt.Errorf("imageBase64 is required"))
	}

	declaredType := ""
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		header, payload, found := strings.Cut(rest, ",")
		if !found {
			return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "label image", fmt.Errorf("malformed data url"))
		}
		declaredType, _, _ = strings.Cut(header, ";")
		encoded = payload
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
	}
	if err != nil {
		return domain.LabelImage{}, domain.WrapError(domain.ErrInvalidInput, "label image", fmt.Errorf("decode base64: %w", err))
	}
	return NewLabelImage(data, declaredType, maxBytes)
}

func normalizeMimeType(raw string) string {
	mimeType, _, _ := strings.Cut(raw, ";")
	return strings.ToLower(strings.TrimSpace(mimeType))
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	default:
		return ".jpg"
	}
}
