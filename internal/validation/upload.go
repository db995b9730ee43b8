package validation

import (
	"fmt"
)

// UploadConstraints defines validation rules for intake payloads
type UploadConstraints struct {
	MaxSize int64
}

// ValidateUploadSize rejects payloads over the configured limit before any
// decoding work happens.
func ValidateUploadSize(size int64, constraints UploadConstraints) error {
	if size <= 0 {
		return fmt.Errorf("upload is empty")
	}
	if size > constraints.MaxSize {
		maxMB := constraints.MaxSize / (1 << 20)
		return fmt.Errorf("file too large: maximum size is %d MB", maxMB)
	}
	return nil
}
