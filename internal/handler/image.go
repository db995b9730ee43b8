package handler

import (
	"net/http"

	"github.com/slonweiss/node-proxy/internal/repository"
)

type imageResponse struct {
	ImageHash        string   `json:"imageHash"`
	PHash            string   `json:"pHash"`
	S3ObjectURL      string   `json:"s3ObjectUrl"`
	OriginalFileName string   `json:"originalFileName"`
	MimeType         string   `json:"mimeType"`
	FileSizeBytes    int64    `json:"fileSizeBytes"`
	OriginWebsites   []string `json:"originWebsites"`
	RequestCount     int64    `json:"requestCount"`
	ThumbsUp         int64    `json:"thumbsUp"`
	ThumbsDown       int64    `json:"thumbsDown"`
	FirstSeenAt      string   `json:"firstSeenAt"`
}

type ImageHandler struct {
	imageRepo repository.ImageRepository
}

func NewImageHandler(imageRepo repository.ImageRepository) *ImageHandler {
	return &ImageHandler{imageRepo: imageRepo}
}

// Show lets clients reconcile retried uploads and feedback against the
// current record state.
func (h *ImageHandler) Show(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")

	img, err := h.imageRepo.ByContentHash(hash)
	if err != nil {
		renderError(w, r, err)
		return
	}

	origins := img.OriginWebsites
	if origins == nil {
		origins = []string{}
	}

	renderJSON(w, http.StatusOK, imageResponse{
		ImageHash:        img.ContentHash,
		PHash:            img.PerceptualHash,
		S3ObjectURL:      img.BlobURL,
		OriginalFileName: img.OriginalFileName,
		MimeType:         img.MimeType,
		FileSizeBytes:    img.FileSizeBytes,
		OriginWebsites:   origins,
		RequestCount:     img.RequestCount,
		ThumbsUp:         img.ThumbsUp,
		ThumbsDown:       img.ThumbsDown,
		FirstSeenAt:      img.FirstSeenAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}
