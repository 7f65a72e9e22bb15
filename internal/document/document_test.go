package document

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writeMinimalPDF writes a PDF with one page per media box.
func writeMinimalPDF(t *testing.T, path string, boxes [][2]int) {
	t.Helper()
	var objects []string
	kids := ""
	for i := range boxes {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(boxes)))
	for _, box := range boxes {
		objects = append(objects, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << >> >>", box[0], box[1]))
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
}

func writeFixturePNG(t *testing.T, path string, w, h int) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.Set(x, y, color.White)
			} else {
				img.Set(x, y, color.RGBA{R: 20, G: 40, B: 200, A: 255})
			}
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return img
}

func TestOpenReadsPageBoxes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pdf")
	writeMinimalPDF(t, path, [][2]int{{720, 405}, {720, 405}, {612, 792}})

	info, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if info.PageCount() != 3 {
		t.Fatalf("expected 3 pages, got %d", info.PageCount())
	}
	if info.Pages[2].Width != 612 || info.Pages[2].Height != 792 {
		t.Fatalf("unexpected third page box: %+v", info.Pages[2])
	}
	if len(info.Fingerprint) != 64 {
		t.Fatalf("expected sha256 fingerprint, got %q", info.Fingerprint)
	}
}

func TestOpenRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for non-pdf input")
	}
}

func TestFingerprintChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	writeMinimalPDF(t, a, [][2]int{{720, 405}})
	writeMinimalPDF(t, b, [][2]int{{720, 406}})
	fa, err := Fingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	fb, err := Fingerprint(b)
	if err != nil {
		t.Fatal(err)
	}
	if fa == fb {
		t.Fatal("expected different fingerprints")
	}
}

func TestRasterizeUsesPdftoppm(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.png")
	writeFixturePNG(t, fixture, 640, 360)
	argsFile := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "pdftoppm")
	content := fmt.Sprintf("#!/bin/sh\necho \"$@\" > %q\nfor last; do :; done\ncp %q \"$last.png\"\n", argsFile, fixture)
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	r := Rasterizer{Binary: script, DPI: 96, ThumbnailWidth: 160}
	page, err := r.Rasterize(context.Background(), "/deck.pdf", 1, filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("Rasterize returned error: %v", err)
	}
	if page.Index != 1 || page.Width != 640 || page.Height != 360 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if filepath.Base(page.ImagePath) != "page-0002.png" {
		t.Fatalf("unexpected image path %q", page.ImagePath)
	}
	thumb, err := png.Decode(bytes.NewReader(page.Thumbnail))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if thumb.Bounds().Dx() != 160 || thumb.Bounds().Dy() != 90 {
		t.Fatalf("unexpected thumbnail size %v", thumb.Bounds())
	}
	if page.Fingerprint == "" {
		t.Fatal("expected perceptual hash")
	}
	raw, err := os.ReadFile(fixture)
	if err != nil {
		t.Fatal(err)
	}
	if sum := sha256.Sum256(raw); page.Digest != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest = %q, want sha256 of the raster", page.Digest)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "-png -r 96 -f 2 -l 2 -singlefile /deck.pdf " + filepath.Join(dir, "pages", "page-0002") + "\n"
	if string(args) != want {
		t.Fatalf("unexpected pdftoppm args:\n got %q\nwant %q", args, want)
	}
}

func TestRasterizeReportsToolFailure(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "pdftoppm")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'broken pdf' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Rasterizer{Binary: script}.Rasterize(context.Background(), "/deck.pdf", 0, dir)
	if err == nil {
		t.Fatal("expected error")
	}
	if !bytes.Contains([]byte(err.Error()), []byte("broken pdf")) {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestPerceptualHashStable(t *testing.T) {
	img := writeFixturePNG(t, filepath.Join(t.TempDir(), "p.png"), 128, 72)
	a, err := PerceptualHash(img)
	if err != nil {
		t.Fatal(err)
	}
	b, err := PerceptualHash(img)
	if err != nil {
		t.Fatal(err)
	}
	if d, err := Distance(a, b); err != nil || d != 0 {
		t.Fatalf("expected zero distance, got %d (%v)", d, err)
	}
	if changed, _ := Changed(a, b); changed {
		t.Fatal("identical hashes must not count as changed")
	}
	if changed, _ := Changed("", b); changed {
		t.Fatal("missing previous hash must not count as changed")
	}
	if _, err := Distance("garbage", b); err == nil {
		t.Fatal("expected parse error")
	}
}
