package document

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
)

// ChangeThreshold is the Hamming distance above which two page hashes are
// treated as different content.
const ChangeThreshold = 5

// PerceptualHash returns the pHash of img in goimagehash string form.
func PerceptualHash(img image.Image) (string, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("perceptual hash: %w", err)
	}
	return hash.ToString(), nil
}

// Distance returns the Hamming distance between two hashes produced by
// PerceptualHash.
func Distance(a, b string) (int, error) {
	ha, err := goimagehash.ImageHashFromString(a)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", a, err)
	}
	hb, err := goimagehash.ImageHashFromString(b)
	if err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", b, err)
	}
	return ha.Distance(hb)
}

// Changed reports whether the page content moved beyond ChangeThreshold.
// An empty previous hash never counts as a change.
func Changed(previous, current string) (bool, error) {
	if previous == "" || current == "" {
		return false, nil
	}
	d, err := Distance(previous, current)
	if err != nil {
		return false, err
	}
	return d > ChangeThreshold, nil
}
