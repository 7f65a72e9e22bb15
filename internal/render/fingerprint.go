package render

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"slidecast/internal/plan"
)

// Fingerprint identifies the rendered result of slide: the page raster
// digest, the media identity, and every encode argument with paths replaced by
// placeholders. Equal fingerprints produce interchangeable segments.
func (r *Renderer) Fingerprint(slide plan.SlideSpec) string {
	h := sha256.New()
	p := paths{image: "{page}", media: "{media}", output: "{segment}", passlog: "{passlog}"}
	for pass := 1; pass <= r.passes; pass++ {
		h.Write([]byte(strings.Join(r.args(slide, p, pass), "\x00")))
		h.Write([]byte{'\n'})
	}
	page := slide.ImageDigest
	if page == "" {
		page = slide.ImagePath
	}
	h.Write([]byte("page=" + page + "\n"))
	switch body := slide.Body.(type) {
	case plan.Audio:
		h.Write([]byte("media=" + body.Asset.Identity.Key() + "\n"))
	case plan.Video:
		h.Write([]byte("media=" + body.Asset.Identity.Key() + "\n"))
	}
	return hex.EncodeToString(h.Sum(nil))
}
