package usecase

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/eatwise/labelscan/internal/core/domain"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestNewLabelImageSniffsType(t *testing.T) {
	img, err := NewLabelImage(pngHeader, "application/octet-stream", 0)
	if err != nil {
		t.Fatalf("NewLabelImage() error = %v", err)
	}
	if img.MimeType != "image/png" {
		t.Fatalf("expected sniffed image/png, got %q", img.MimeType)
	}
}

func TestNewLabelImageRejectsNonImages(t *testing.T) {
	_, err := NewLabelImage([]byte("hello world"), "text/plain", 0)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNewLabelImageEnforcesLimit(t *testing.T) {
	_, err := NewLabelImage(pngHeader, "image/png", 4)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversize image, got %v", err)
	}
}

func TestDecodeLabelImageDataURL(t *testing.T) {
	encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(pngHeader)

	img, err := DecodeLabelImage(encoded, 0)
	if err != nil {
		t.Fatalf("DecodeLabelImage() error = %v", err)
	}
	if img.MimeType != "image/jpeg" {
		t.Fatalf("expected declared type kept, got %q", img.MimeType)
	}
	if string(img.Data) != string(pngHeader) {
		t.Fatalf("decoded bytes mismatch")
	}
}

func TestDecodeLabelImageBareBase64WithoutPadding(t *testing.T) {
	encoded := base64.RawStdEncoding.EncodeToString(pngHeader)

	img, err := DecodeLabelImage(encoded, 0)
	if err != nil {
		t.Fatalf("DecodeLabelImage() error = %v", err)
	}
	if img.MimeType != "image/png" {
		t.Fatalf("expected sniffed type, got %q", img.MimeType)
	}
}

func TestDecodeLabelImageRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "data:image/png;base64", "!!!not-base64!!!"} {
		if _, err := DecodeLabelImage(input, 0); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("input %q: expected invalid input, got %v", input, err)
		}
	}
}
