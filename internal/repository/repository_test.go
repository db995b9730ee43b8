package repository

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/slonweiss/node-proxy/internal/db"
	"github.com/slonweiss/node-proxy/internal/model"
)

// newTestDB opens an in-memory sqlite database with the real migrations
// applied. A single connection keeps every query on the same memory store.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	t.Cleanup(func() { _ = database.Close() })
	return database
}

func testImage(hash, phash string) *model.Image {
	return &model.Image{
		ContentHash:      hash,
		PerceptualHash:   phash,
		BlobURL:          "https://bucket.s3.us-east-1.amazonaws.com/uploads/" + hash + ".png",
		OriginalFileName: "pic.png",
		MimeType:         "image/png",
		FileSizeBytes:    1234,
		FileExtension:    "png",
		ExtensionSource:  "content",
		FirstSeenAt:      time.Now().UTC(),
	}
}
