package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Effect is a picture-in-picture effect.
type Effect string

const (
	EffectCircle    Effect = "circle"
	EffectChroma    Effect = "chroma"
	EffectVignette  Effect = "vignette"
	EffectGrayscale Effect = "grayscale"
	EffectSepia     Effect = "sepia"
	EffectNegative  Effect = "negative"
	EffectHFlip     Effect = "hflip"
	EffectVFlip     Effect = "vflip"
	EffectBlur      Effect = "blur"
	EffectPixelate  Effect = "pixelate"
)

type effectGroup int

const (
	groupShape effectGroup = iota
	groupColor
	groupProcessing
)

var effectGroups = map[Effect]effectGroup{
	EffectCircle:    groupShape,
	EffectChroma:    groupShape,
	EffectVignette:  groupShape,
	EffectGrayscale: groupColor,
	EffectSepia:     groupColor,
	EffectNegative:  groupColor,
	EffectHFlip:     groupProcessing,
	EffectVFlip:     groupProcessing,
	EffectBlur:      groupProcessing,
	EffectPixelate:  groupProcessing,
}

// processingOrder fixes the filter order of processing effects.
var processingOrder = []Effect{EffectHFlip, EffectVFlip, EffectBlur, EffectPixelate}

// Chroma key defaults.
const (
	DefaultChromaColor      = "green"
	DefaultChromaSimilarity = 0.13
	DefaultChromaBlend      = 0.02
)

// Effects is a validated effect selection: at most one shape and one colour
// effect, plus any processing effects in a fixed order.
type Effects struct {
	Shape            Effect
	Color            Effect
	Processing       []Effect
	ChromaColor      string
	ChromaSimilarity float64
	ChromaBlend      float64
}

// IsZero reports whether no effect is selected.
func (e Effects) IsZero() bool {
	return e.Shape == "" && e.Color == "" && len(e.Processing) == 0
}

// ParseEffect normalizes an effect name.
func ParseEffect(value string) (Effect, bool) {
	e := Effect(strings.ToLower(strings.TrimSpace(value)))
	switch e {
	case "chroma-key", "chromakey":
		e = EffectChroma
	case "gray", "greyscale":
		e = EffectGrayscale
	}
	_, ok := effectGroups[e]
	return e, ok
}

// ResolveEffects validates a raw effect list.
func ResolveEffects(list []Effect) (Effects, error) {
	out := Effects{
		ChromaColor:      DefaultChromaColor,
		ChromaSimilarity: DefaultChromaSimilarity,
		ChromaBlend:      DefaultChromaBlend,
	}
	seen := make(map[Effect]bool, len(list))
	for _, e := range list {
		group, ok := effectGroups[e]
		if !ok {
			return Effects{}, fmt.Errorf("unknown effect %q", e)
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		switch group {
		case groupShape:
			if out.Shape != "" {
				return Effects{}, fmt.Errorf("effects %q and %q are both shape effects; choose one", out.Shape, e)
			}
			out.Shape = e
		case groupColor:
			if out.Color != "" {
				return Effects{}, fmt.Errorf("effects %q and %q are both colour effects; choose one", out.Color, e)
			}
			out.Color = e
		case groupProcessing:
			out.Processing = append(out.Processing, e)
		}
	}
	sort.SliceStable(out.Processing, func(i, j int) bool {
		return indexOf(processingOrder, out.Processing[i]) < indexOf(processingOrder, out.Processing[j])
	})
	return out, nil
}

func indexOf(list []Effect, e Effect) int {
	for i, v := range list {
		if v == e {
			return i
		}
	}
	return len(list)
}
