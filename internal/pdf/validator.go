package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/article-analyzer/internal/domain"
)

// maxSize is the size above which a PDF still validates but triggers a warning
const maxSize = 100 * 1024 * 1024 // 100MB

// Validator provides input validation for PDF files
type Validator struct {
	warn func(format string, args ...interface{})
}

// NewValidator creates a new validator instance. warn may be nil.
func NewValidator(warn func(format string, args ...interface{})) *Validator {
	return &Validator{warn: warn}
}

// ValidatePDFPath validates that a file path is valid and points to a PDF
func (v *Validator) ValidatePDFPath(path string) (os.FileInfo, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.ValidationError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ValidationError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return nil, domain.ValidationError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return nil, domain.ValidationError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return nil, domain.ValidationError(fmt.Sprintf("file is not a PDF (has extension %s)", ext), nil)
	}

	if info.Size() > maxSize && v.warn != nil {
		v.warn("PDF file is very large (%d MB), processing may take a while", info.Size()/(1024*1024))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return info, nil
}
