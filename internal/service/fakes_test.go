package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slonweiss/node-proxy/internal/model"
	"github.com/slonweiss/node-proxy/internal/repository"
)

// fakeImageRepo mimics the conditional-write and atomic-delta semantics of
// the real store in memory.
type fakeImageRepo struct {
	mu                  sync.Mutex
	images              map[string]*model.Image
	origins             map[string]map[string]bool
	forceCreateConflict bool
	createCalls         int
	reconcileCalls      int
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{
		images:  make(map[string]*model.Image),
		origins: make(map[string]map[string]bool),
	}
}

func (f *fakeImageRepo) Create(img *model.Image, origin string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	_, exists := f.images[img.ContentHash]
	if exists || f.forceCreateConflict {
		if !exists {
			// Simulate the concurrent winner having committed first.
			f.insertLocked(img, origin)
		}
		return false, nil
	}

	f.insertLocked(img, origin)
	return true, nil
}

func (f *fakeImageRepo) insertLocked(img *model.Image, origin string) {
	stored := *img
	stored.RequestCount = 1
	f.images[img.ContentHash] = &stored
	f.origins[img.ContentHash] = make(map[string]bool)
	if origin != "" {
		f.origins[img.ContentHash][origin] = true
	}
}

func (f *fakeImageRepo) ByContentHash(hash string) (*model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	img, ok := f.images[hash]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	return f.snapshotLocked(img), nil
}

func (f *fakeImageRepo) ByPerceptualHash(phash string) ([]*model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Image
	for _, img := range f.images {
		if img.PerceptualHash == phash {
			out = append(out, f.snapshotLocked(img))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
		}
		return out[i].ContentHash < out[j].ContentHash
	})
	return out, nil
}

func (f *fakeImageRepo) Reconcile(hash, origin string) (*model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconcileCalls++

	img, ok := f.images[hash]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	img.RequestCount++
	if origin != "" {
		f.origins[hash][origin] = true
	}
	return f.snapshotLocked(img), nil
}

func (f *fakeImageRepo) snapshotLocked(img *model.Image) *model.Image {
	out := *img
	out.OriginWebsites = nil
	for origin := range f.origins[img.ContentHash] {
		out.OriginWebsites = append(out.OriginWebsites, origin)
	}
	sort.Strings(out.OriginWebsites)
	return &out
}

// fakeStorage is an in-memory blob store with optional failure injection.
type fakeStorage struct {
	mu            sync.Mutex
	objects       map[string][]byte
	contentTypes  map[string]string
	saveCalls     int
	corruptOnRead bool
	saveErr       error
	readErr       error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeStorage) Save(key string, body io.Reader, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	f.contentTypes[key] = contentType
	return nil
}

func (f *fakeStorage) Read(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object missing")
	}
	if f.corruptOnRead {
		corrupted := append([]byte(nil), data...)
		if len(corrupted) > 0 {
			corrupted[0] ^= 0xff
		}
		return corrupted, nil
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) URL(key string) string {
	return "https://fake.example.com/" + key
}

// fakeFeedbackRepo tracks call counts so tests can assert that validation
// failures never touch storage.
type fakeFeedbackRepo struct {
	records     map[string]*model.Feedback
	readCalls   int
	submitCalls int
	changeCalls int
	submitErr   error
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{records: make(map[string]*model.Feedback)}
}

func feedbackKey(imageHash, userID string) string {
	return imageHash + "|" + userID
}

func (f *fakeFeedbackRepo) ByImageAndUser(imageHash, userID string) (*model.Feedback, error) {
	f.readCalls++
	fb, ok := f.records[feedbackKey(imageHash, userID)]
	if !ok {
		return nil, repository.ErrFeedbackNotFound
	}
	out := *fb
	return &out, nil
}

func (f *fakeFeedbackRepo) SubmitNew(fb *model.Feedback) error {
	f.submitCalls++
	if f.submitErr != nil {
		return f.submitErr
	}
	key := feedbackKey(fb.ImageHash, fb.UserID)
	if _, ok := f.records[key]; ok {
		return repository.ErrFeedbackExists
	}
	stored := *fb
	f.records[key] = &stored
	return nil
}

func (f *fakeFeedbackRepo) ChangeVote(fb *model.Feedback, previous string) error {
	f.changeCalls++
	key := feedbackKey(fb.ImageHash, fb.UserID)
	existing, ok := f.records[key]
	if !ok {
		return repository.ErrFeedbackNotFound
	}
	existing.VoteType = fb.VoteType
	existing.Comment = fb.Comment
	existing.UpdatedAt = fb.UpdatedAt
	return nil
}

// pngBytes renders a small structured test image.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray := uint8((x * 255) / width)
			if y > height/2 {
				gray /= 4
			}
			img.Set(x, y, color.RGBA{gray, gray, gray, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
