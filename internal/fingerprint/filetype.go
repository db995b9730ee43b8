package fingerprint

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedType means the upload is not one of the accepted raster formats.
var ErrUnsupportedType = errors.New("unsupported file type")

// Sources for the resolved extension, strongest signal first.
const (
	SourceContent  = "content"  // magic-number sniffing of the bytes
	SourceDeclared = "declared" // Content-Type supplied by the caller
	SourceFilename = "filename" // extension of the uploaded file name
)

// FileType is a validated extension/content-type pair for an upload.
type FileType struct {
	Extension string // without leading dot, e.g. "jpg"
	MimeType  string
	Source    string
}

// allowedTypes is the fixed allow-list of accepted raster formats.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var extToMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ResolveType picks the validated extension/content-type pair for an upload:
// magic-number detection over the bytes, falling back to the declared MIME
// type, falling back to the filename extension. Anything outside the raster
// allow-list fails with ErrUnsupportedType.
func ResolveType(data []byte, declaredMime, fileName string) (*FileType, error) {
	detected := mimetype.Detect(data)
	if ext, ok := allowedTypes[normalizeMime(detected.String())]; ok {
		return &FileType{Extension: ext, MimeType: normalizeMime(detected.String()), Source: SourceContent}, nil
	}

	if ext, ok := allowedTypes[normalizeMime(declaredMime)]; ok {
		return &FileType{Extension: ext, MimeType: normalizeMime(declaredMime), Source: SourceDeclared}, nil
	}

	if mime, ok := extToMime[strings.ToLower(filepath.Ext(fileName))]; ok {
		return &FileType{Extension: allowedTypes[mime], MimeType: mime, Source: SourceFilename}, nil
	}

	return nil, fmt.Errorf("%w (detected: %s)", ErrUnsupportedType, detected.String())
}

// normalizeMime strips parameters like "; charset=utf-8" and lower-cases.
func normalizeMime(m string) string {
	if i := strings.Index(m, ";"); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
