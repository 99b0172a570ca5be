// Package docproc extracts and normalizes text from uploaded document files.
package docproc

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// DefaultMaxFileSizeBytes is the upload size limit.
	DefaultMaxFileSizeBytes = 50 * 1024 * 1024

	// minExtractedLength is the minimum usable text length after cleaning.
	minExtractedLength = 10
)

// supportedExtensions are the file types the processor can extract.
var supportedExtensions = map[string]bool{
	"pdf": true,
	"txt": true,
	"md":  true,
}

// Processor extracts text from supported document formats.
type Processor struct {
	maxFileSizeBytes int64
}

// Config holds processor limits.
type Config struct {
	// MaxFileSizeBytes defaults to DefaultMaxFileSizeBytes if zero.
	MaxFileSizeBytes int64
}

// NewProcessor creates a document processor.
func NewProcessor(c Config) *Processor {
	maxSize := c.MaxFileSizeBytes
	if maxSize == 0 {
		maxSize = DefaultMaxFileSizeBytes
	}
	return &Processor{maxFileSizeBytes: maxSize}
}

// MaxFileSizeBytes returns the configured upload size limit.
func (p *Processor) MaxFileSizeBytes() int64 {
	return p.maxFileSizeBytes
}

// Supported reports whether the filename's extension can be processed.
func Supported(filename string) bool {
	return supportedExtensions[extension(filename)]
}

// ProcessFile validates the file, extracts its text, and returns the
// cleaned text with the detected MIME type.
func (p *Processor) ProcessFile(filePath string) (text, mimeType string, err error) {
	if err := p.Validate(filePath); err != nil {
		return "", "", err
	}

	ext := extension(filePath)
	mimeType = mime.TypeByExtension("." + ext)

	var raw string
	switch ext {
	case "pdf":
		raw, err = extractPDF(filePath)
	case "txt", "md":
		raw, err = extractText(filePath)
	default:
		return "", mimeType, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return "", mimeType, fmt.Errorf("extracting %s: %w", ext, err)
	}

	cleaned := CleanText(raw)
	if len(strings.TrimSpace(cleaned)) < minExtractedLength {
		return "", mimeType, fmt.Errorf("extracted text is too short or empty")
	}

	return cleaned, mimeType, nil
}

// Validate checks existence, type, size, and extension before processing.
func (p *Processor) Validate(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}
	if err != nil {
		return fmt.Errorf("stating file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is not a file: %s", filePath)
	}
	if info.Size() > p.maxFileSizeBytes {
		return fmt.Errorf("file exceeds size limit of %d bytes", p.maxFileSizeBytes)
	}
	if !Supported(filePath) {
		return fmt.Errorf("unsupported file format: %s", extension(filePath))
	}
	return nil
}

var multiSpace = regexp.MustCompile(` +`)

// CleanText normalizes extracted text: trims lines, drops empty ones, and
// collapses runs of spaces.
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	cleaned := strings.Join(kept, "\n")
	cleaned = multiSpace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func extractText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
