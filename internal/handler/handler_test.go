package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/slonweiss/node-proxy/internal/ctxkeys"
	"github.com/slonweiss/node-proxy/internal/db"
	"github.com/slonweiss/node-proxy/internal/repository"
	"github.com/slonweiss/node-proxy/internal/service"
)

const testMaxUpload = 10 << 20

// memStorage stands in for the blob store so handler tests exercise the full
// stack below the HTTP surface without network.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (m *memStorage) Save(key string, body io.Reader, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memStorage) Read(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("object missing")
	}
	return append([]byte(nil), data...), nil
}

func (m *memStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) URL(key string) string {
	return "https://test-bucket.example.com/" + key
}

type testEnv struct {
	mux   *http.ServeMux
	db    *sqlx.DB
	store *memStorage
}

// newTestEnv wires the handlers over an in-memory database and blob store,
// routed the same way the server routes them.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := sqlx.Connect("sqlite", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	t.Cleanup(func() { _ = database.Close() })

	store := newMemStorage()
	imageRepo := repository.NewImageRepository(database)
	feedbackRepo := repository.NewFeedbackRepository(database)

	ingestService := service.NewIngestService(imageRepo, store, service.NewDimensionExtractor(), "uploads")
	feedbackService := service.NewFeedbackService(feedbackRepo)
	authService := service.NewAuthService("test-secret")

	uploadHandler := NewUploadHandler(ingestService, testMaxUpload)
	feedbackHandler := NewFeedbackHandler(feedbackService, authService)
	imageHandler := NewImageHandler(imageRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", uploadHandler.Multipart)
	mux.HandleFunc("POST /upload/raw", uploadHandler.Raw)
	mux.HandleFunc("POST /upload/base64", uploadHandler.Base64)
	mux.HandleFunc("POST /feedback", feedbackHandler.Submit)
	mux.HandleFunc("GET /images/{hash}", imageHandler.Show)

	return &testEnv{mux: mux, db: database, store: store}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			gray := uint8(x * 4)
			if y > 32 {
				gray /= 3
			}
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartUpload(t *testing.T, fileName string, data []byte, originURL string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	if originURL != "" {
		require.NoError(t, writer.WriteField("imageOriginUrl", originURL))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func withOrigin(req *http.Request, origin string) *http.Request {
	return req.WithContext(ctxkeys.WithOrigin(req.Context(), origin))
}

func jsonBody(v any) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	err := json.NewEncoder(&buf).Encode(v)
	return &buf, err
}
