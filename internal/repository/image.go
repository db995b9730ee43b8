package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/slonweiss/node-proxy/internal/model"
)

var (
	ErrImageNotFound = errors.New("image not found")
)

type ImageRepository interface {
	// Create inserts the record if no record with the same content hash
	// exists yet. It reports false when the conditional insert lost to a
	// concurrent writer, so the caller can fall back to Reconcile.
	Create(img *model.Image, origin string) (bool, error)
	ByContentHash(hash string) (*model.Image, error)
	// ByPerceptualHash returns every record sharing the fingerprint,
	// oldest first. Perceptual hashes are similarity keys, not identities.
	ByPerceptualHash(phash string) ([]*model.Image, error)
	// Reconcile atomically increments the request counter and adds the
	// origin to the provenance set of an existing record, returning the
	// post-update record.
	Reconcile(hash, origin string) (*model.Image, error)
}

type imageRepository struct {
	db *sqlx.DB
}

func NewImageRepository(db *sqlx.DB) *imageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(img *model.Image, origin string) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO images (content_hash, perceptual_hash, blob_url, original_file_name, mime_type, file_size_bytes, file_extension, extension_source, metadata, request_count, thumbs_up, thumbs_down, first_seen_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, 0, 0, $10)
	          ON CONFLICT (content_hash) DO NOTHING`

	res, err := tx.Exec(query,
		img.ContentHash,
		img.PerceptualHash,
		img.BlobURL,
		img.OriginalFileName,
		img.MimeType,
		img.FileSizeBytes,
		img.FileExtension,
		img.ExtensionSource,
		img.Metadata,
		img.FirstSeenAt,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// A concurrent upload of the same bytes won the race.
		return false, nil
	}

	if origin != "" {
		_, err = tx.Exec(`INSERT INTO image_origins (content_hash, origin) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			img.ContentHash, origin)
		if err != nil {
			return false, err
		}
	}

	err = tx.Commit()
	if err != nil {
		return false, err
	}

	return true, nil
}

func (r *imageRepository) ByContentHash(hash string) (*model.Image, error) {
	img := &model.Image{}
	query := `SELECT * FROM images WHERE content_hash = $1`

	err := r.db.Get(img, query, hash)
	if err == sql.ErrNoRows {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, err
	}

	img.OriginWebsites, err = r.origins(hash)
	if err != nil {
		return nil, err
	}

	return img, nil
}

func (r *imageRepository) ByPerceptualHash(phash string) ([]*model.Image, error) {
	var images []*model.Image
	query := `SELECT * FROM images WHERE perceptual_hash = $1 ORDER BY first_seen_at ASC, content_hash ASC`

	err := r.db.Select(&images, query, phash)
	if err != nil {
		return nil, err
	}

	for _, img := range images {
		img.OriginWebsites, err = r.origins(img.ContentHash)
		if err != nil {
			return nil, err
		}
	}

	return images, nil
}

func (r *imageRepository) Reconcile(hash, origin string) (*model.Image, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// The counter moves as a delta on the database side. A read-modify-write
	// here would drop increments under concurrent requests.
	res, err := tx.Exec(`UPDATE images SET request_count = request_count + 1 WHERE content_hash = $1`, hash)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrImageNotFound
	}

	if origin != "" {
		_, err = tx.Exec(`INSERT INTO image_origins (content_hash, origin) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			hash, origin)
		if err != nil {
			return nil, err
		}
	}

	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("failed to commit reconcile: %w", err)
	}

	return r.ByContentHash(hash)
}

func (r *imageRepository) origins(hash string) ([]string, error) {
	var origins []string
	err := r.db.Select(&origins, `SELECT origin FROM image_origins WHERE content_hash = $1 ORDER BY origin`, hash)
	if err != nil {
		return nil, err
	}
	return origins, nil
}
