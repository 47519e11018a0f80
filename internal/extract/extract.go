// Package extract turns stored document bytes into plain text plus basic
// counts. Only plain-text formats are handled in-process; rich formats
// (PDF, Word) are the job of an external extraction service and surface
// here as UnsupportedFormatError.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extraction is the result of extracting one document.
type Extraction struct {
	// Content is the extracted plain text.
	Content string

	// WordCount is the number of whitespace-delimited words in Content.
	WordCount int

	// CharacterCount is the number of characters in Content.
	CharacterCount int

	// FileType is the lowercased file extension, including the dot.
	FileType string
}

// UnsupportedFormatError reports a file extension this extractor cannot read.
type UnsupportedFormatError struct {
	// Name is the file name that was rejected.
	Name string

	// FileType is the offending extension.
	FileType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("extract: unsupported file type %q for %s", e.FileType, e.Name)
}

// NotFoundError reports a source path that does not exist.
type NotFoundError struct {
	// Path is the missing file path.
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("extract: file not found: %s", e.Path)
}

// supportedTypes lists the extensions extractable in-process.
var supportedTypes = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
}

// Supported reports whether the file name's extension can be extracted.
func Supported(name string) bool {
	return supportedTypes[strings.ToLower(filepath.Ext(name))]
}

// Extract converts raw document bytes into an Extraction. The format is
// chosen by the file name's extension.
func Extract(name string, data []byte) (*Extraction, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if !supportedTypes[ext] {
		return nil, &UnsupportedFormatError{Name: name, FileType: ext}
	}

	content := strings.TrimSpace(string(data))
	return &Extraction{
		Content:        content,
		WordCount:      len(strings.Fields(content)),
		CharacterCount: utf8.RuneCountInString(content),
		FileType:       ext,
	}, nil
}

// ExtractFile reads and extracts a document from the local filesystem.
func ExtractFile(path string) (*Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("extract: read %s: %w", path, err)
	}
	return Extract(filepath.Base(path), data)
}
