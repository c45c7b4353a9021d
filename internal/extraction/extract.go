// Package extraction turns uploaded document bytes into plain text for
// chunking.
package extraction

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnsupportedType is returned for file types the service cannot extract
// text from.
var ErrUnsupportedType = errors.New("unsupported file type")

// textExtensions are the extensions the service accepts. Binary document
// formats (PDF, Office) need an extraction capability this service does not
// carry; they are rejected up front rather than indexed as garbage.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".log":      true,
}

// Supported reports whether the file name's extension is extractable.
func Supported(fileName string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(fileName))]
}

// Extract returns the document's text content.
//
// The bytes are decoded as UTF-8; invalid sequences are replaced with the
// Unicode replacement character so a stray byte never poisons the chunk
// pipeline. Returns ErrUnsupportedType for extensions outside the plain-text
// family.
func Extract(fileName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !textExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	if utf8.Valid(data) {
		return string(data), nil
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}
