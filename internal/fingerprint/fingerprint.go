package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"math"
	"math/bits"
	"sort"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	// ErrDecode means the buffer could not be parsed as an image.
	ErrDecode = errors.New("image data could not be decoded")
)

// pHash grid: images are resampled to hashSize*4 and the low-frequency
// hashSize block of the DCT becomes the 64-bit hash.
const (
	hashSize = 8
	gridSize = hashSize * 4 // 32
)

// Result holds both content-identity fingerprints of an image buffer.
type Result struct {
	// ContentHash is the SHA-256 hex digest of the exact byte stream.
	// Identical bytes always and only produce identical hashes.
	ContentHash string
	// PerceptualHash is a 64-bit hex fingerprint over the downsampled
	// grayscale pixel content. Stable under minor re-encoding, best effort.
	PerceptualHash string
}

// ContentHash returns the SHA-256 hex digest of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Compute derives both fingerprints from a raw image buffer. It fails with
// ErrDecode when the buffer is not a decodable raster image; callers must not
// proceed to storage in that case.
func Compute(data []byte) (*Result, error) {
	phash, err := PerceptualHash(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		ContentHash:    ContentHash(data),
		PerceptualHash: phash,
	}, nil
}

// PerceptualHash decodes the image, resamples it to a 32x32 grayscale grid,
// applies a 2D DCT and thresholds the low-frequency 8x8 block, DC term
// excluded, against its median. Visually near-identical inputs usually
// collide; unrelated inputs almost never do.
func PerceptualHash(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	pixels := grayscaleGrid(img)
	freq := dct2d(pixels)

	// Low-frequency corner carries the visual structure. The DC term is the
	// sum of all luminance values, orders of magnitude above every AC
	// coefficient; including it would pin one bit and skew the median, so
	// only the 63 AC coefficients participate.
	block := make([]float64, 0, hashSize*hashSize-1)
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			if x == 0 && y == 0 {
				continue
			}
			block = append(block, freq[y][x])
		}
	}

	m := median(block)

	var hash uint64
	for i, v := range block {
		if v > m {
			hash |= 1 << uint(63-i)
		}
	}

	return fmt.Sprintf("%016x", hash), nil
}

// Distance returns the Hamming distance between two perceptual hash hex
// strings, or an error when either is malformed.
func Distance(a, b string) (int, error) {
	ab, err := hexToUint64(a)
	if err != nil {
		return 0, err
	}
	bb, err := hexToUint64(b)
	if err != nil {
		return 0, err
	}
	return bits.OnesCount64(ab ^ bb), nil
}

func hexToUint64(s string) (uint64, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 8 {
		return 0, fmt.Errorf("malformed perceptual hash %q", s)
	}
	var v uint64
	for _, b := range raw {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// grayscaleGrid resamples img to gridSize x gridSize and converts to
// luminance values.
func grayscaleGrid(img image.Image) [][]float64 {
	scaled := image.NewGray(image.Rect(0, 0, gridSize, gridSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Src, nil)

	pixels := make([][]float64, gridSize)
	for y := 0; y < gridSize; y++ {
		row := make([]float64, gridSize)
		for x := 0; x < gridSize; x++ {
			row[x] = float64(scaled.GrayAt(x, y).Y)
		}
		pixels[y] = row
	}
	return pixels
}

// dct2d applies a DCT-II along rows then columns.
func dct2d(pixels [][]float64) [][]float64 {
	n := len(pixels)
	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		rows[y] = dct1d(pixels[y])
	}

	out := make([][]float64, n)
	col := make([]float64, n)
	for y := range out {
		out[y] = make([]float64, n)
	}
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rows[y][x]
		}
		transformed := dct1d(col)
		for y := 0; y < n; y++ {
			out[y][x] = transformed[y]
		}
	}
	return out
}

func dct1d(in []float64) []float64 {
	n := len(in)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		out[k] = sum
	}
	return out
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
