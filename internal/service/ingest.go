package service

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/slonweiss/node-proxy/internal/fingerprint"
	"github.com/slonweiss/node-proxy/internal/model"
	"github.com/slonweiss/node-proxy/internal/repository"
	"github.com/slonweiss/node-proxy/internal/storage"
)

var (
	ErrEmptyUpload = errors.New("upload contains no data")
	// ErrIntegrity means the blob store returned different bytes than were
	// written. The record is never created in that case.
	ErrIntegrity = errors.New("stored object failed verification")
)

// Upload is one decoded intake request, independent of how the bytes arrived
// (multipart, raw body or base64 envelope).
type Upload struct {
	Data         []byte
	FileName     string
	DeclaredMime string
	Origin       string // resolved caller origin, may be empty
}

// IngestResult reports how an upload was classified and the record that now
// represents it.
type IngestResult struct {
	// Match is model.MatchNone for a first sighting, model.MatchExact for a
	// byte-identical duplicate and model.MatchPerceptual for a visually
	// similar one.
	Match    string
	Image    *model.Image
	FileType *fingerprint.FileType
}

type IngestService struct {
	imageRepo repository.ImageRepository
	storage   storage.Storage
	extractor MetadataExtractor
	keyPrefix string
}

func NewIngestService(imageRepo repository.ImageRepository, storage storage.Storage, extractor MetadataExtractor, keyPrefix string) *IngestService {
	return &IngestService{
		imageRepo: imageRepo,
		storage:   storage,
		extractor: extractor,
		keyPrefix: keyPrefix,
	}
}

// ObjectKey derives the blob key for a content hash. The derivation is
// deterministic so racing or retried ingests of the same bytes land on the
// same object.
func (s *IngestService) ObjectKey(contentHash, extension string) string {
	return path.Join(s.keyPrefix, fmt.Sprintf("%s.%s", contentHash, extension))
}

// Ingest runs the upload through fingerprinting, duplicate and similarity
// resolution, and either reconciles an existing record or stores the bytes
// and creates a new one.
func (s *IngestService) Ingest(upload *Upload) (*IngestResult, error) {
	if len(upload.Data) == 0 {
		return nil, ErrEmptyUpload
	}

	fileType, err := fingerprint.ResolveType(upload.Data, upload.DeclaredMime, upload.FileName)
	if err != nil {
		return nil, err
	}

	prints, err := fingerprint.Compute(upload.Data)
	if err != nil {
		return nil, err
	}

	// The two lookups touch independent keys; issue them together.
	var (
		wg         sync.WaitGroup
		exact      *model.Image
		exactErr   error
		similar    []*model.Image
		similarErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		exact, exactErr = s.imageRepo.ByContentHash(prints.ContentHash)
	}()
	go func() {
		defer wg.Done()
		similar, similarErr = s.imageRepo.ByPerceptualHash(prints.PerceptualHash)
	}()
	wg.Wait()

	if exactErr != nil && !errors.Is(exactErr, repository.ErrImageNotFound) {
		return nil, fmt.Errorf("exact lookup failed: %w", exactErr)
	}
	if similarErr != nil {
		return nil, fmt.Errorf("similarity lookup failed: %w", similarErr)
	}

	// Byte-identical content always wins over perceptual similarity.
	if exact != nil {
		return s.reconcile(exact.ContentHash, upload.Origin, model.MatchExact)
	}
	if len(similar) > 0 {
		// The oldest matching record absorbs the request; the new bytes
		// are discarded, not stored again.
		return s.reconcile(similar[0].ContentHash, upload.Origin, model.MatchPerceptual)
	}

	return s.storeNew(upload, prints, fileType)
}

func (s *IngestService) reconcile(contentHash, origin, match string) (*IngestResult, error) {
	img, err := s.imageRepo.Reconcile(contentHash, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile existing record: %w", err)
	}

	slog.Info("upload matched existing record",
		"match", match,
		"content_hash", contentHash,
		"request_count", img.RequestCount,
	)

	// Reconciliation reports the stored record's resolved type, not the
	// incoming variant's.
	return &IngestResult{
		Match: match,
		Image: img,
		FileType: &fingerprint.FileType{
			Extension: img.FileExtension,
			MimeType:  img.MimeType,
			Source:    img.ExtensionSource,
		},
	}, nil
}

func (s *IngestService) storeNew(upload *Upload, prints *fingerprint.Result, fileType *fingerprint.FileType) (*IngestResult, error) {
	key := s.ObjectKey(prints.ContentHash, fileType.Extension)

	err := s.storage.Save(key, bytes.NewReader(upload.Data), fileType.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	// Read the object back before the record becomes visible. A write
	// acknowledgment alone does not guarantee readable integrity.
	echo, err := s.storage.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to verify blob: %w", err)
	}
	if !bytes.Equal(echo, upload.Data) {
		slog.Error("blob verification mismatch",
			"key", key,
			"written_bytes", len(upload.Data),
			"read_bytes", len(echo),
		)
		// No record points at the object yet; remove it so a retry of the
		// same bytes starts from a clean key.
		err = s.storage.Delete(key)
		if err != nil {
			slog.Warn("failed to remove unverified blob", "key", key, "error", err)
		}
		return nil, ErrIntegrity
	}

	var metadata *string
	if s.extractor != nil {
		metadata, err = s.extractor.Extract(upload.Data)
		if err != nil {
			// Metadata is opaque provenance, not a gate.
			slog.Warn("metadata extraction failed", "error", err, "content_hash", prints.ContentHash)
		}
	}

	img := &model.Image{
		ContentHash:      prints.ContentHash,
		PerceptualHash:   prints.PerceptualHash,
		BlobURL:          s.storage.URL(key),
		OriginalFileName: upload.FileName,
		MimeType:         fileType.MimeType,
		FileSizeBytes:    int64(len(upload.Data)),
		FileExtension:    fileType.Extension,
		ExtensionSource:  fileType.Source,
		Metadata:         metadata,
		FirstSeenAt:      time.Now().UTC(),
	}

	created, err := s.imageRepo.Create(img, upload.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to create image record: %w", err)
	}
	if !created {
		// Lost the creation race to a concurrent upload of identical
		// bytes. The blob key is shared, so fall back to the duplicate
		// path instead of failing the request.
		return s.reconcile(prints.ContentHash, upload.Origin, model.MatchExact)
	}

	img.RequestCount = 1
	if upload.Origin != "" {
		img.OriginWebsites = []string{upload.Origin}
	}

	slog.Info("new image ingested",
		"content_hash", img.ContentHash,
		"perceptual_hash", img.PerceptualHash,
		"size_bytes", img.FileSizeBytes,
		"extension_source", img.ExtensionSource,
	)

	return &IngestResult{Match: model.MatchNone, Image: img, FileType: fileType}, nil
}
