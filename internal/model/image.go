package model

import (
	"time"
)

// Classification of an ingested upload against previously seen content.
const (
	MatchNone       = "none"       // never seen before, stored as new
	MatchExact      = "exact"      // byte-identical content already stored
	MatchPerceptual = "perceptual" // visually similar content already stored
)

// Image is one record per distinct image content, keyed by the SHA-256 of the
// exact byte stream. PerceptualHash is a similarity signal, not an identity:
// several records may share one.
type Image struct {
	ContentHash      string    `db:"content_hash"`
	PerceptualHash   string    `db:"perceptual_hash"`
	BlobURL          string    `db:"blob_url"`
	OriginalFileName string    `db:"original_file_name"`
	MimeType         string    `db:"mime_type"`
	FileSizeBytes    int64     `db:"file_size_bytes"`
	FileExtension    string    `db:"file_extension"`
	ExtensionSource  string    `db:"extension_source"`
	Metadata         *string   `db:"metadata"` // opaque extractor output, not interpreted here
	RequestCount     int64     `db:"request_count"`
	ThumbsUp         int64     `db:"thumbs_up"`
	ThumbsDown       int64     `db:"thumbs_down"`
	FirstSeenAt      time.Time `db:"first_seen_at"`

	// OriginWebsites is loaded from the image_origins table, not a column.
	OriginWebsites []string `db:"-"`
}
