// Package document is the page-raster collaborator for slide decks. It reads
// page geometry with pdfcpu, rasterizes single pages with pdftoppm, scales
// thumbnails with golang.org/x/image/draw, and computes perceptual hashes
// with goimagehash so callers can detect changed pages without re-rendering.
package document
