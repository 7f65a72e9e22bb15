package render

import (
	"fmt"
	"strings"

	"slidecast/internal/ffmpeg"
	"slidecast/internal/media"
	"slidecast/internal/plan"
)

// pageFilter fits the page image into the frame and letterboxes it.
func pageFilter(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1", w, h, w, h)
}

// silenceSource is the lavfi source for generated silence.
func silenceSource(a plan.AudioParams) string {
	return fmt.Sprintf("anullsrc=channel_layout=%s:sample_rate=%d", a.ChannelLayout(), a.SampleRate)
}

// audioFilter conforms a source stream to the plan's audio layout and pads
// it with silence when the slide outlasts the media.
func audioFilter(a plan.AudioParams, trim plan.Trim) string {
	f := fmt.Sprintf("aresample=%d,aformat=sample_rates=%d:channel_layouts=%s", a.SampleRate, a.SampleRate, a.ChannelLayout())
	if trim == plan.TrimPad {
		f += ",apad"
	}
	return f
}

// rotationFilters undoes the display rotation, which is measured clockwise.
func rotationFilters(rotation int) []string {
	switch rotation {
	case 90:
		return []string{"transpose=clock"}
	case 180:
		return []string{"hflip", "vflip"}
	case 270:
		return []string{"transpose=cclock"}
	}
	return nil
}

var processingFilters = map[plan.Effect]string{
	plan.EffectHFlip:    "hflip",
	plan.EffectVFlip:    "vflip",
	plan.EffectBlur:     "boxblur=5",
	plan.EffectPixelate: "scale=iw/16:ih/16,scale=iw*16:ih*16:flags=neighbor",
}

var colorFilters = map[plan.Effect]string{
	plan.EffectGrayscale: "format=gray",
	plan.EffectSepia:     "colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131",
	plan.EffectNegative:  "negate",
}

// ellipseMask keeps the pixels inside the ellipse inscribed in the frame.
const ellipseMask = "format=rgba,geq=r='r(X,Y)':g='g(X,Y)':b='b(X,Y)':" +
	"a='if(lte(pow((X-W/2)/(W/2),2)+pow((Y-H/2)/(H/2),2),1),255,0)'"

func shapeFilter(e plan.Effects) string {
	switch e.Shape {
	case plan.EffectCircle:
		return ellipseMask
	case plan.EffectChroma:
		return fmt.Sprintf("chromakey=color=%s:similarity=%g:blend=%g", e.ChromaColor, e.ChromaSimilarity, e.ChromaBlend)
	case plan.EffectVignette:
		return "vignette=eval=frame"
	}
	return ""
}

// overlayFilters returns the foreground chain applied to the PinP video:
// deinterlace and rotation first, then padding, processing, colour, shape,
// and finally the scale to the overlay geometry.
func overlayFilters(v media.VideoStream, body plan.Video, slideDuration float64) []string {
	var chain []string
	if v.Interlaced {
		chain = append(chain, "yadif")
	}
	chain = append(chain, rotationFilters(v.Rotation)...)
	if body.Trim == plan.TrimPad {
		if hold := slideDuration - body.Asset.Duration; hold > 0 {
			chain = append(chain, "tpad=stop_mode=clone:stop_duration="+ffmpeg.FormatSeconds(hold))
		}
	}
	for _, e := range body.Effects.Processing {
		if f, ok := processingFilters[e]; ok {
			chain = append(chain, f)
		}
	}
	if f, ok := colorFilters[body.Effects.Color]; ok {
		chain = append(chain, f)
	}
	if f := shapeFilter(body.Effects); f != "" {
		chain = append(chain, f)
	}
	return append(chain, fmt.Sprintf("scale=%d:%d", body.Geometry.Width, body.Geometry.Height))
}

// pinpGraph builds the filter_complex of a video slide. Input 0 is the page
// image and input 1 the video; the result is labelled [v].
func pinpGraph(params plan.Params, body plan.Video, slideDuration float64) string {
	g := body.Geometry
	parts := []string{
		"[0:v]" + pageFilter(params.Width, params.Height) + "[bg]",
		"[1:v]" + strings.Join(overlayFilters(*body.Asset.Video, body, slideDuration), ",") + "[fg]",
		fmt.Sprintf("[bg][fg]overlay=x=%s:y=%s:eof_action=pass[v]", g.OverlayX(), g.OverlayY()),
	}
	return strings.Join(parts, ";")
}
