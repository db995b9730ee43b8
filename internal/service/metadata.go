package service

import (
	"bytes"
	"encoding/json"
	"image"
)

// MetadataExtractor produces an opaque blob attached to a new image record.
// The core never interprets the output; richer extractors (EXIF, C2PA) can be
// plugged in by the surrounding host.
type MetadataExtractor interface {
	Extract(data []byte) (*string, error)
}

// DimensionExtractor records the decoded dimensions and container format.
type DimensionExtractor struct{}

func NewDimensionExtractor() *DimensionExtractor {
	return &DimensionExtractor{}
}

func (e *DimensionExtractor) Extract(data []byte) (*string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(map[string]any{
		"width":  cfg.Width,
		"height": cfg.Height,
		"format": format,
	})
	if err != nil {
		return nil, err
	}

	s := string(raw)
	return &s, nil
}
