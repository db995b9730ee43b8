package handler

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/slonweiss/node-proxy/internal/ctxkeys"
	"github.com/slonweiss/node-proxy/internal/model"
	"github.com/slonweiss/node-proxy/internal/service"
	"github.com/slonweiss/node-proxy/internal/validation"
)

type uploadResponse struct {
	Message          string   `json:"message"`
	ImageHash        string   `json:"imageHash"`
	PHash            string   `json:"pHash"`
	S3ObjectURL      string   `json:"s3ObjectUrl"`
	DataMatch        string   `json:"dataMatch"`
	OriginalFileName string   `json:"originalFileName"`
	OriginWebsites   []string `json:"originWebsites"`
	RequestCount     int64    `json:"requestCount"`
	ImageOriginURL   string   `json:"imageOriginUrl"`
	FileExtension    string   `json:"fileExtension"`
	ExtensionSource  string   `json:"extensionSource"`
}

type UploadHandler struct {
	ingestService *service.IngestService
	maxBytes      int64
}

func NewUploadHandler(ingestService *service.IngestService, maxBytes int64) *UploadHandler {
	return &UploadHandler{
		ingestService: ingestService,
		maxBytes:      maxBytes,
	}
}

// Multipart accepts a form upload with an "image" file field and an optional
// "imageOriginUrl" field naming the page the image was seen on.
func (h *UploadHandler) Multipart(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	err := r.ParseMultipartForm(h.maxBytes)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed multipart request"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "missing image file field"})
		return
	}
	defer func() { _ = file.Close() }()

	err = validation.ValidateUploadSize(header.Size, validation.UploadConstraints{MaxSize: h.maxBytes})
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read image file"})
		return
	}

	h.ingest(w, r, &service.Upload{
		Data:         data,
		FileName:     header.Filename,
		DeclaredMime: header.Header.Get("Content-Type"),
		Origin:       ctxkeys.Origin(r.Context()),
	}, r.FormValue("imageOriginUrl"))
}

// Raw accepts the image bytes as the request body; the filename travels in
// X-File-Name and the declared type in Content-Type.
func (h *UploadHandler) Raw(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	err = validation.ValidateUploadSize(int64(len(data)), validation.UploadConstraints{MaxSize: h.maxBytes})
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.ingest(w, r, &service.Upload{
		Data:         data,
		FileName:     r.Header.Get("X-File-Name"),
		DeclaredMime: r.Header.Get("Content-Type"),
		Origin:       ctxkeys.Origin(r.Context()),
	}, r.Header.Get("X-Image-Origin-Url"))
}

type base64Request struct {
	Image          string `json:"image"`
	FileName       string `json:"fileName"`
	MimeType       string `json:"mimeType"`
	ImageOriginURL string `json:"imageOriginUrl"`
}

// Base64 accepts a JSON envelope with a base64 (optionally data-URL wrapped)
// image payload.
func (h *UploadHandler) Base64(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, h.maxBytes+h.maxBytes/2)

	var req base64Request
	err := json.NewDecoder(body).Decode(&req)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return
	}

	encoded := req.Image
	declaredMime := req.MimeType
	if strings.HasPrefix(encoded, "data:") {
		// data:image/png;base64,AAAA...
		head, rest, found := strings.Cut(encoded, ",")
		if !found {
			renderJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed data URL"})
			return
		}
		encoded = rest
		head = strings.TrimPrefix(head, "data:")
		if declaredMime == "" {
			declaredMime, _, _ = strings.Cut(head, ";")
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: "image field is not valid base64"})
		return
	}

	err = validation.ValidateUploadSize(int64(len(data)), validation.UploadConstraints{MaxSize: h.maxBytes})
	if err != nil {
		renderJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.ingest(w, r, &service.Upload{
		Data:         data,
		FileName:     req.FileName,
		DeclaredMime: declaredMime,
		Origin:       ctxkeys.Origin(r.Context()),
	}, req.ImageOriginURL)
}

// ingest is the shared tail of every input decoder.
func (h *UploadHandler) ingest(w http.ResponseWriter, r *http.Request, upload *service.Upload, imageOriginURL string) {
	result, err := h.ingestService.Ingest(upload)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var message string
	switch result.Match {
	case model.MatchExact:
		message = "Duplicate image received"
	case model.MatchPerceptual:
		message = "Visually similar image received"
	default:
		message = "Image received and stored"
	}

	origins := result.Image.OriginWebsites
	if origins == nil {
		origins = []string{}
	}

	renderJSON(w, http.StatusOK, uploadResponse{
		Message:          message,
		ImageHash:        result.Image.ContentHash,
		PHash:            result.Image.PerceptualHash,
		S3ObjectURL:      result.Image.BlobURL,
		DataMatch:        result.Match,
		OriginalFileName: result.Image.OriginalFileName,
		OriginWebsites:   origins,
		RequestCount:     result.Image.RequestCount,
		ImageOriginURL:   imageOriginURL,
		FileExtension:    result.FileType.Extension,
		ExtensionSource:  result.FileType.Source,
	})
}
