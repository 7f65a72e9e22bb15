package plan

import (
	"math"

	"slidecast/internal/chapters"
	"slidecast/internal/document"
	"slidecast/internal/encoders"
	"slidecast/internal/media"
	"slidecast/internal/textutil"
)

// Inputs are the probed facts a plan is built from.
type Inputs struct {
	DocumentPath string
	PageCount    int
	// Pages holds the rasterized pages; pages that failed are absent.
	Pages []document.Page
	// Media maps each assignment MediaPath to its probed asset.
	Media map[string]media.Asset
	// MediaErrors maps MediaPath to the probe failure, when probing failed.
	MediaErrors map[string]error
}

// Build resolves assignments into a RenderPlan. It reads only its arguments.
// The returned plan holds every slide that resolved; callers must check
// Report.HasErrors before rendering it.
func Build(in Inputs, assignments []Assignment, params Params, encoder encoders.Profile, substitution *encoders.Substitution) (RenderPlan, Report) {
	report := ValidateParams(params)
	report.Merge(ValidateEncoder(params, encoder))

	result := RenderPlan{
		DocumentPath: in.DocumentPath,
		Encoder:      encoder,
		Substitution: substitution,
		Params:       params,
	}
	if substitution != nil {
		report.Noticef(GlobalPage, "%s", substitution.String())
	}
	if in.PageCount <= 0 {
		report.Errorf(GlobalPage, "document has no pages")
		return result, report
	}

	pages := make(map[int]document.Page, len(in.Pages))
	for _, p := range in.Pages {
		pages[p.Index] = p
	}
	byPage := make(map[int]Assignment, len(assignments))
	for _, a := range assignments {
		if a.Page < 0 || a.Page >= in.PageCount {
			report.Errorf(GlobalPage, "assignment for page %d but the document has %d pages", a.Page+1, in.PageCount)
			continue
		}
		if _, dup := byPage[a.Page]; dup {
			report.Errorf(a.Page, "page has more than one material assignment")
			continue
		}
		byPage[a.Page] = a
	}

	for index := range in.PageCount {
		a, ok := byPage[index]
		if !ok {
			report.Errorf(index, "no material assigned")
			continue
		}
		page, ok := pages[index]
		if !ok {
			report.Errorf(index, "page could not be rasterized")
			continue
		}
		checkPageHash(&report, a, page)
		spec, ok := resolveSlide(&report, in, a, page, params)
		if ok {
			result.Slides = append(result.Slides, spec)
		}
	}

	if params.Chapters && params.YouTubeChapters && !report.HasErrors() {
		for _, msg := range chapters.CheckYouTube(chapters.Compute(result.ChapterSlides())) {
			report.Errorf(GlobalPage, "%s", msg)
		}
	}
	return result, report
}

// ChapterSlides returns the chapter view of the plan's slides.
func (p RenderPlan) ChapterSlides() []chapters.Slide {
	out := make([]chapters.Slide, 0, len(p.Slides))
	for _, s := range p.Slides {
		out = append(out, chapters.Slide{Title: s.ChapterTitle, Duration: s.Duration})
	}
	return out
}

func checkPageHash(report *Report, a Assignment, page document.Page) {
	if a.PageHash == "" || page.Fingerprint == "" {
		return
	}
	changed, err := document.Changed(a.PageHash, page.Fingerprint)
	if err != nil {
		report.Warnf(a.Page, "stored page fingerprint is unreadable: %v", err)
		return
	}
	if changed {
		report.Warnf(a.Page, "page content changed since its material was assigned")
	}
}

func resolveSlide(report *Report, in Inputs, a Assignment, page document.Page, params Params) (SlideSpec, bool) {
	spec := SlideSpec{
		Page:         a.Page,
		ImagePath:    page.ImagePath,
		PageHash:     page.Fingerprint,
		ImageDigest:  page.Digest,
		ChapterTitle: textutil.NormalizeTitle(a.ChapterTitle),
	}
	switch a.Material {
	case MaterialSilent, "":
		if a.MediaPath != "" {
			report.Noticef(a.Page, "media %s ignored for a silent slide", a.MediaPath)
		}
		duration := a.Duration
		if duration <= 0 {
			duration = params.DefaultDuration
		}
		if duration < MinSilentDuration || duration > MaxSilentDuration {
			report.Errorf(a.Page, "silent duration %.2fs outside %.0f-%.0fs", duration, MinSilentDuration, MaxSilentDuration)
			return SlideSpec{}, false
		}
		spec.Duration = duration
		spec.Body = Silent{}
		return spec, true

	case MaterialAudio:
		asset, ok := lookupMedia(report, in, a)
		if !ok {
			return SlideSpec{}, false
		}
		if len(asset.AudioStreams) == 0 {
			report.Errorf(a.Page, "%s has no audio stream", asset.Identity.Path)
			return SlideSpec{}, false
		}
		stream, ok := asset.AudioStream(a.AudioStream)
		if !ok {
			report.Errorf(a.Page, "audio stream %d does not exist in %s (%d streams)", a.AudioStream, asset.Identity.Path, len(asset.AudioStreams))
			return SlideSpec{}, false
		}
		duration, trim, ok := resolveDuration(report, a, asset.Duration)
		if !ok {
			return SlideSpec{}, false
		}
		noteResample(report, a.Page, stream, params.Audio)
		spec.Duration = duration
		spec.Body = Audio{Asset: asset, Stream: stream, Trim: trim}
		return spec, true

	case MaterialVideo:
		asset, ok := lookupMedia(report, in, a)
		if !ok {
			return SlideSpec{}, false
		}
		if asset.Video == nil {
			report.Errorf(a.Page, "%s has no video stream", asset.Identity.Path)
			return SlideSpec{}, false
		}
		var stream *media.AudioStream
		if len(asset.AudioStreams) > 0 {
			s, ok := asset.AudioStream(a.AudioStream)
			if !ok {
				report.Errorf(a.Page, "audio stream %d does not exist in %s (%d streams)", a.AudioStream, asset.Identity.Path, len(asset.AudioStreams))
				return SlideSpec{}, false
			}
			noteResample(report, a.Page, s, params.Audio)
			stream = &s
		}
		duration, trim, ok := resolveDuration(report, a, asset.Duration)
		if !ok {
			return SlideSpec{}, false
		}
		video, ok := resolveVideo(report, a, asset, stream, trim, params)
		if !ok {
			return SlideSpec{}, false
		}
		spec.Duration = duration
		spec.Body = video
		return spec, true

	default:
		report.Errorf(a.Page, "unknown material %q", a.Material)
		return SlideSpec{}, false
	}
}

func lookupMedia(report *Report, in Inputs, a Assignment) (media.Asset, bool) {
	if a.MediaPath == "" {
		report.Errorf(a.Page, "%s slide has no media file", a.Material)
		return media.Asset{}, false
	}
	if err, failed := in.MediaErrors[a.MediaPath]; failed {
		report.Errorf(a.Page, "could not probe %s: %v", a.MediaPath, err)
		return media.Asset{}, false
	}
	asset, ok := in.Media[a.MediaPath]
	if !ok {
		report.Errorf(a.Page, "%s was not probed", a.MediaPath)
		return media.Asset{}, false
	}
	return asset, true
}

// resolveDuration applies the trim policy. An explicit duration must match
// the media length unless trim says how to reconcile them.
func resolveDuration(report *Report, a Assignment, mediaLength float64) (float64, Trim, bool) {
	trim := a.Trim
	if trim == "" {
		trim = TrimNone
	}
	if a.Duration <= 0 {
		if trim != TrimNone {
			report.Noticef(a.Page, "trim %q ignored without an explicit duration", trim)
		}
		return mediaLength, TrimNone, true
	}
	within := math.Abs(a.Duration-mediaLength) <= durationTolerance
	switch trim {
	case TrimNone:
		if within {
			return mediaLength, TrimNone, true
		}
		if a.Duration < mediaLength {
			report.Errorf(a.Page, "duration %.2fs is shorter than the media (%.2fs); set trim = \"cut\" to truncate it", a.Duration, mediaLength)
		} else {
			report.Errorf(a.Page, "duration %.2fs is longer than the media (%.2fs); set trim = \"pad\" to hold the last frame", a.Duration, mediaLength)
		}
		return 0, trim, false
	case TrimCut:
		if a.Duration > mediaLength+durationTolerance {
			report.Errorf(a.Page, "cut duration %.2fs exceeds the media length %.2fs", a.Duration, mediaLength)
			return 0, trim, false
		}
		if within {
			return mediaLength, TrimNone, true
		}
		report.Noticef(a.Page, "media truncated from %.2fs to %.2fs", mediaLength, a.Duration)
		return a.Duration, TrimCut, true
	case TrimPad:
		if a.Duration < mediaLength-durationTolerance {
			report.Errorf(a.Page, "pad duration %.2fs is shorter than the media length %.2fs", a.Duration, mediaLength)
			return 0, trim, false
		}
		if within {
			return mediaLength, TrimNone, true
		}
		report.Noticef(a.Page, "last frame held for %.2fs after the media ends", a.Duration-mediaLength)
		return a.Duration, TrimPad, true
	default:
		report.Errorf(a.Page, "unknown trim %q; use none, cut, or pad", trim)
		return 0, trim, false
	}
}

func resolveVideo(report *Report, a Assignment, asset media.Asset, stream *media.AudioStream, trim Trim, params Params) (Video, bool) {
	v := *asset.Video
	scale := a.Scale
	if scale == 0 {
		scale = DefaultScale
	}
	if scale < MinScale || scale > MaxScale {
		report.Errorf(a.Page, "scale %d%% outside %d-%d%%", scale, MinScale, MaxScale)
		return Video{}, false
	}
	position, ok := ParsePosition(string(a.Position))
	if !ok {
		report.Errorf(a.Page, "unknown position %q", a.Position)
		return Video{}, false
	}
	effects, err := ResolveEffects(a.Effects)
	if err != nil {
		report.Errorf(a.Page, "%v", err)
		return Video{}, false
	}
	geometry := ComputeGeometry(v, scale, position, params.Width, params.Height)
	if !geometry.Fits(params.Width, params.Height) {
		report.Errorf(a.Page, "picture-in-picture %s does not fit the %dx%d frame; lower the scale", geometry, params.Width, params.Height)
		return Video{}, false
	}

	sourceW, sourceH := v.Width, v.Height
	if v.Rotated() {
		sourceW, sourceH = sourceH, sourceW
	}
	if sourceW > 0 && sourceH > 0 && (geometry.Width > sourceW || geometry.Height > sourceH) {
		report.Warnf(a.Page, "video %dx%d is upscaled to %dx%d", sourceW, sourceH, geometry.Width, geometry.Height)
	}
	if v.FrameRate > float64(params.FPS)*1.1 {
		report.Warnf(a.Page, "video at %.2f fps drops frames at %d fps output", v.FrameRate, params.FPS)
	}
	if v.VariableRate {
		report.Warnf(a.Page, "video has a variable frame rate; it is converted to constant %d fps", params.FPS)
	}
	if v.Interlaced {
		report.Noticef(a.Page, "interlaced video is deinterlaced")
	}
	if v.Rotation != 0 {
		report.Noticef(a.Page, "video is rotated %d degrees for display", v.Rotation)
	}
	return Video{Asset: asset, Stream: stream, Geometry: geometry, Effects: effects, Trim: trim}, true
}

func noteResample(report *Report, page int, stream media.AudioStream, target AudioParams) {
	if stream.SampleRate > 0 && stream.SampleRate != target.SampleRate {
		report.Noticef(page, "audio resampled from %d Hz to %d Hz", stream.SampleRate, target.SampleRate)
	}
	if stream.Channels > 0 && stream.Channels != target.Channels {
		report.Noticef(page, "audio remixed from %d to %d channels", stream.Channels, target.Channels)
	}
}
