package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Info describes a source document: its identity and per-page geometry in
// PDF points.
type Info struct {
	Path        string
	Fingerprint string
	Pages       []PageBox
}

// PageBox is the media box of one page in PDF points.
type PageBox struct {
	Width  float64
	Height float64
}

// PageCount returns the number of pages.
func (i Info) PageCount() int {
	return len(i.Pages)
}

// Open fingerprints the document and reads its page boxes.
func Open(path string) (Info, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Info{}, fmt.Errorf("resolve document path: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(abs), ".pdf") {
		return Info{}, fmt.Errorf("document %q is not a PDF", abs)
	}
	fingerprint, err := Fingerprint(abs)
	if err != nil {
		return Info{}, err
	}
	ctx, err := api.ReadContextFile(abs)
	if err != nil {
		return Info{}, fmt.Errorf("read pdf %q: %w", abs, err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return Info{}, fmt.Errorf("read page boxes: %w", err)
	}
	if len(dims) == 0 || ctx.PageCount == 0 {
		return Info{}, fmt.Errorf("document %q has no pages", abs)
	}
	info := Info{Path: abs, Fingerprint: fingerprint, Pages: make([]PageBox, 0, len(dims))}
	for _, d := range dims {
		info.Pages = append(info.Pages, PageBox{Width: d.Width, Height: d.Height})
	}
	return info, nil
}

// Fingerprint returns the hex SHA-256 of the file contents.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash document: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
