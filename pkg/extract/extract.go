// Package extract turns uploaded files into flat text. Unknown formats yield
// an empty string rather than an error.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
)

// ErrUnsupported marks a file type with no extractor.
var ErrUnsupported = errors.New("unsupported file type")

// uploadTypes lists the extensions accepted by the uploaders.
var uploadTypes = map[string]bool{
	".pdf": true, ".docx": true, ".pptx": true, ".csv": true,
	".xls": true, ".xlsx": true, ".png": true, ".jpg": true, ".jpeg": true,
}

// SupportedUpload reports whether an upload with this file name is accepted.
func SupportedUpload(name string) bool {
	return uploadTypes[Ext(name)]
}

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// OCREngine extracts text from scanned or image-heavy documents.
type OCREngine interface {
	OCRDocument(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ImageDescriber explains an image and transcribes any text in it.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

type Options struct {
	// OCR routes PDFs through the OCR engine instead of the text layer.
	OCR bool
}

// Extractor dispatches on file extension. OCR and Vision are optional; PDFs
// with OCR requested and images fail without them.
type Extractor struct {
	OCR    OCREngine
	Vision ImageDescriber
	Logger *slog.Logger
}

func New(ocr OCREngine, vision ImageDescriber) *Extractor {
	return &Extractor{OCR: ocr, Vision: vision, Logger: slog.Default()}
}

// Extract returns the text content of a file. Unrecognised extensions return
// "" and a nil error.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte, opts Options) (string, error) {
	text, err := e.extract(ctx, Ext(name), data, opts)
	if errors.Is(err, ErrUnsupported) {
		e.logger().Warn("No extractor for file type", "file", name)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", name, err)
	}
	return text, nil
}

func (e *Extractor) extract(ctx context.Context, ext string, data []byte, opts Options) (string, error) {
	switch ext {
	case ".pdf":
		if opts.OCR {
			return e.ocrPDF(ctx, data)
		}
		return pdfText(data)
	case ".docx":
		return docxText(data)
	case ".pptx":
		return pptxText(data)
	case ".csv":
		return csvText(data)
	case ".xlsx":
		return xlsxText(data)
	case ".png", ".jpg", ".jpeg", ".webp":
		return e.imageText(ctx, ext, data)
	default:
		return "", ErrUnsupported
	}
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func pdfText(data []byte) (string, error) {
	body, _, err := docconv.ConvertPDF(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf document: %w", err)
	}
	return body, nil
}

func (e *Extractor) ocrPDF(ctx context.Context, data []byte) (string, error) {
	if e.OCR == nil {
		return "", errors.New("OCR requested but no OCR engine is configured")
	}
	return e.OCR.OCRDocument(ctx, data, "application/pdf")
}

var imageMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

func (e *Extractor) imageText(ctx context.Context, ext string, data []byte) (string, error) {
	if e.Vision == nil {
		return "", errors.New("image uploads need a vision model")
	}
	return e.Vision.DescribeImage(ctx, data, imageMIME[ext])
}
