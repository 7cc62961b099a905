// Package pdf extracts article text from PDF files using MuPDF.
package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/article-analyzer/internal/domain"
	"github.com/spherical/article-analyzer/internal/observability"
)

// Extractor implements domain.TextExtractor on top of go-fitz
type Extractor struct {
	validator *Validator
	logger    *observability.Logger
}

// NewExtractor creates a new PDF text extractor
func NewExtractor(logger *observability.Logger) *Extractor {
	if logger == nil {
		logger = observability.Nop()
	}
	logger = logger.WithComponent("pdf")
	return &Extractor{
		validator: NewValidator(func(format string, args ...interface{}) {
			logger.Warn().Msgf(format, args...)
		}),
		logger: logger,
	}
}

// ExtractText returns the text of every page joined by newlines and trimmed.
// A document without extractable text is an extraction error.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	if _, err := e.validator.ValidatePDFPath(path); err != nil {
		return "", err
	}

	e.logger.Info().Str("path", path).Msg("Extracting text from PDF")

	doc, err := fitz.New(path)
	if err != nil {
		return "", domain.ExtractionError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	var text strings.Builder

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		pageText, err := doc.Text(pageNum)
		if err != nil {
			e.logger.Warn().
				Int("page", pageNum+1).
				Err(err).
				Msg("Failed to extract page text, skipping")
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	extracted := strings.TrimSpace(text.String())
	if extracted == "" {
		return "", domain.ExtractionError(fmt.Sprintf("PDF contains no extractable text: %s", path), nil)
	}

	e.logger.Info().
		Int("characters", len(extracted)).
		Int("pages", pageCount).
		Msg("Text extraction complete")

	return extracted, nil
}

// Info returns page count, file size and document metadata.
func (e *Extractor) Info(path string) (*domain.DocumentInfo, error) {
	info, err := e.validator.ValidatePDFPath(path)
	if err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, domain.ExtractionError("failed to open PDF", err)
	}
	defer doc.Close()

	metadata := make(map[string]string)
	for k, v := range doc.Metadata() {
		if strings.TrimSpace(v) != "" {
			metadata[k] = v
		}
	}

	return &domain.DocumentInfo{
		Path:     path,
		Pages:    doc.NumPage(),
		SizeKB:   float64(info.Size()) / 1024,
		Metadata: metadata,
	}, nil
}
