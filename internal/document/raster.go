package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/draw"
)

// Page is the rasterized form of one document page.
type Page struct {
	Index       int    `json:"index"`
	ImagePath   string `json:"image_path"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Thumbnail   []byte `json:"thumbnail"`
	Fingerprint string `json:"fingerprint"`
	// Digest is the SHA-256 of the rasterized PNG bytes.
	Digest string `json:"digest"`
}

// Rasterizer renders document pages to PNG through pdftoppm.
type Rasterizer struct {
	Binary         string
	DPI            int
	ThumbnailWidth int
	Timeout        time.Duration
}

// Rasterize renders the page at index (0-based) into dir and returns its
// pixel geometry, a PNG thumbnail, its perceptual hash, and a content digest.
func (r Rasterizer) Rasterize(ctx context.Context, docPath string, index int, dir string) (Page, error) {
	if index < 0 {
		return Page{}, fmt.Errorf("invalid page index %d", index)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Page{}, fmt.Errorf("create raster dir: %w", err)
	}
	binary := strings.TrimSpace(r.Binary)
	if binary == "" {
		binary = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 150
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	pageNumber := strconv.Itoa(index + 1)
	prefix := filepath.Join(dir, fmt.Sprintf("page-%04d", index+1))
	args := []string{"-png", "-r", strconv.Itoa(dpi), "-f", pageNumber, "-l", pageNumber, "-singlefile", docPath, prefix}
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Page{}, fmt.Errorf("pdftoppm page %d timed out after %s", index+1, r.Timeout)
		}
		return Page{}, fmt.Errorf("pdftoppm page %d: %w: %s", index+1, err, strings.TrimSpace(stderr.String()))
	}

	imagePath := prefix + ".png"
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return Page{}, fmt.Errorf("read raster: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return Page{}, fmt.Errorf("decode raster %s: %w", filepath.Base(imagePath), err)
	}
	sum := sha256.Sum256(data)
	bounds := img.Bounds()
	thumb, err := Thumbnail(img, r.ThumbnailWidth)
	if err != nil {
		return Page{}, err
	}
	hash, err := PerceptualHash(img)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Index:       index,
		ImagePath:   imagePath,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Thumbnail:   thumb,
		Fingerprint: hash,
		Digest:      hex.EncodeToString(sum[:]),
	}, nil
}

// Thumbnail scales img to width (keeping aspect) and returns PNG bytes.
func Thumbnail(img image.Image, width int) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("empty page image")
	}
	if width <= 0 {
		width = 320
	}
	height := max(1, bounds.Dy()*width/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
