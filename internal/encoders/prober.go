package encoders

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"slidecast/internal/config"
	"slidecast/internal/ffmpeg"
	"slidecast/internal/logging"
	"slidecast/internal/store"
)

// Profile is one discovered encoder. Usable is only ever true after a
// successful test encode.
type Profile struct {
	Name     string `json:"name"`
	Family   Family `json:"family"`
	Vendor   Vendor `json:"vendor"`
	Hardware bool   `json:"hardware"`
	Usable   bool   `json:"usable"`
	Reason   string `json:"reason,omitempty"`
	// Position is the encoder's index in ffmpeg's own listing.
	Position int `json:"position"`
}

// Settings returns the codec-specific arguments for the profile.
func (p Profile) Settings() Settings {
	return SettingsFor(p.Name)
}

// Discovery is the outcome of a discovery run.
type Discovery struct {
	HostFingerprint string    `json:"host_fingerprint"`
	FFmpegVersion   string    `json:"ffmpeg_version"`
	Profiles        []Profile `json:"profiles"`
	DiscoveredAt    time.Time `json:"discovered_at"`
	Cached          bool      `json:"-"`
}

// Usable returns only the usable profiles, in rank order.
func (d Discovery) Usable() []Profile {
	var out []Profile
	for _, p := range d.Profiles {
		if p.Usable {
			out = append(out, p)
		}
	}
	return out
}

const listTimeout = 15 * time.Second

// Prober runs encoder discovery.
type Prober struct {
	ffmpegBinary   string
	testTimeout    time.Duration
	testResolution string
	testFPS        int
	testDuration   int
	scratchDir     string
	cacheTTL       time.Duration
	goos           string
	runner         *ffmpeg.Runner
	store          *store.Store
	logger         *slog.Logger
}

// NewProber builds a prober from configuration. st may be nil to disable
// caching.
func NewProber(cfg *config.Config, st *store.Store, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "encoders")
	return &Prober{
		ffmpegBinary:   cfg.Tools.FFmpeg,
		testTimeout:    cfg.EncoderTestTimeout(),
		testResolution: cfg.Encoders.TestResolution,
		testFPS:        cfg.Encoders.TestFPS,
		testDuration:   cfg.Encoders.TestDurationSeconds,
		scratchDir:     filepath.Join(cfg.Paths.ScratchDir, "encoder-tests"),
		cacheTTL:       cfg.EncoderCacheTTL(),
		goos:           runtime.GOOS,
		runner:         ffmpeg.NewRunner(cfg.Tools.FFmpeg, logger),
		store:          st,
		logger:         logger,
	}
}

// Discover returns the ranked encoder list, from cache when the host
// fingerprint matches a fresh entry and refresh is false.
func (p *Prober) Discover(ctx context.Context, refresh bool) (Discovery, error) {
	version, err := ffmpeg.Capture(ctx, p.ffmpegBinary, listTimeout, "-hide_banner", "-version")
	if err != nil {
		return Discovery{}, fmt.Errorf("query ffmpeg version: %w", err)
	}
	version = firstLine(version)
	fingerprint := p.hostFingerprint(version)

	if !refresh {
		if cached, ok := p.loadCached(ctx, fingerprint); ok {
			return cached, nil
		}
	}

	listing, err := ffmpeg.Capture(ctx, p.ffmpegBinary, listTimeout, "-hide_banner", "-encoders")
	if err != nil {
		return Discovery{}, fmt.Errorf("list ffmpeg encoders: %w", err)
	}
	positions := make(map[string]int)
	for i, name := range parseEncoderList(listing) {
		positions[name] = i
	}
	if len(positions) == 0 {
		return Discovery{}, fmt.Errorf("ffmpeg reported no video encoders")
	}

	if err := os.MkdirAll(p.scratchDir, 0o755); err != nil {
		return Discovery{}, fmt.Errorf("create encoder test dir: %w", err)
	}
	defer os.RemoveAll(p.scratchDir)

	vendorFailed := make(map[Vendor]string)
	var profiles []Profile
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return Discovery{}, err
		}
		position, listed := positions[c.name]
		if !listed || !p.platformSupports(c.vendor) {
			continue
		}
		profile := Profile{
			Name:     c.name,
			Family:   c.family,
			Vendor:   c.vendor,
			Hardware: c.vendor != VendorSoftware,
			Position: position,
		}
		if reason, failed := vendorFailed[c.vendor]; failed {
			profile.Reason = "vendor unavailable: " + reason
			profiles = append(profiles, profile)
			continue
		}
		profile.Usable, profile.Reason = p.validate(ctx, c.name)
		if !profile.Usable && profile.Hardware && c.family == FamilyH264 {
			vendorFailed[c.vendor] = c.name + " failed"
		}
		p.logger.Info("encoder validated",
			logging.String("encoder", c.name),
			logging.Bool("usable", profile.Usable),
			logging.String("reason", profile.Reason))
		profiles = append(profiles, profile)
	}
	if err := ctx.Err(); err != nil {
		return Discovery{}, err
	}
	Rank(profiles)

	discovery := Discovery{
		HostFingerprint: fingerprint,
		FFmpegVersion:   version,
		Profiles:        profiles,
		DiscoveredAt:    time.Now().UTC(),
	}
	p.saveCached(ctx, discovery)
	return discovery, nil
}

// Rank orders profiles hardware first, preserving ffmpeg's listing order
// within each tier.
func Rank(profiles []Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if profiles[i].Hardware != profiles[j].Hardware {
			return profiles[i].Hardware
		}
		return profiles[i].Position < profiles[j].Position
	})
}

func (p *Prober) platformSupports(vendor Vendor) bool {
	switch vendor {
	case VendorVideoToolbox:
		return p.goos == "darwin"
	case VendorNvidia, VendorIntel, VendorAMD:
		return p.goos != "darwin"
	default:
		return true
	}
}

// validate performs a short real encode and reports usability.
func (p *Prober) validate(ctx context.Context, name string) (bool, string) {
	output := filepath.Join(p.scratchDir, name+".mp4")
	source := fmt.Sprintf("color=c=black:s=%s:r=%d", p.testResolution, p.testFPS)
	cmd := ffmpeg.NewCommand("error").
		Input(source, "-f", "lavfi").
		Add("-c:v", name).
		Add(SettingsFor(name).Args()...).
		Add("-t", strconv.Itoa(p.testDuration), "-pix_fmt", "yuv420p", "-an")
	result := p.runner.Run(ctx, ffmpeg.Invocation{
		Label:   "encoder test " + name,
		Args:    cmd.Output(output),
		Output:  output,
		Timeout: p.testTimeout,
	})
	_ = os.Remove(output)
	switch {
	case result.OK():
		return true, ""
	case result.TimedOut:
		return false, fmt.Sprintf("test encode timed out after %s", p.testTimeout)
	case result.MissingOutput:
		return false, "test encode produced no output"
	default:
		if tail := ffmpeg.LastLines(result.Stderr, 1); tail != "" {
			return false, tail
		}
		return false, fmt.Sprintf("test encode failed (exit %d)", result.ExitCode)
	}
}

// hostFingerprint identifies the ffmpeg build and platform.
func (p *Prober) hostFingerprint(version string) string {
	h := sha256.New()
	resolved := p.ffmpegBinary
	if path, err := exec.LookPath(p.ffmpegBinary); err == nil {
		resolved = path
	}
	fmt.Fprintf(h, "%s\n%s\n%s/%s\n", resolved, version, p.goos, runtime.GOARCH)
	if info, err := os.Stat(resolved); err == nil {
		fmt.Fprintf(h, "%d\n%d\n", info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (p *Prober) loadCached(ctx context.Context, fingerprint string) (Discovery, bool) {
	if p.store == nil {
		return Discovery{}, false
	}
	payload, at, found, err := p.store.EncoderDiscovery(ctx, fingerprint)
	if err != nil || !found {
		return Discovery{}, false
	}
	if p.cacheTTL > 0 && time.Since(at) > p.cacheTTL {
		p.logger.Debug("encoder discovery cache expired", logging.Duration("age", time.Since(at)))
		return Discovery{}, false
	}
	var discovery Discovery
	if err := json.Unmarshal(payload, &discovery); err != nil {
		return Discovery{}, false
	}
	discovery.Cached = true
	p.logger.Info("encoder discovery reused",
		logging.Args(logging.DecisionAttrs("encoder_discovery", "cached", "host fingerprint unchanged")...)...)
	return discovery, true
}

func (p *Prober) saveCached(ctx context.Context, discovery Discovery) {
	if p.store == nil {
		return
	}
	payload, err := json.Marshal(discovery)
	if err != nil {
		return
	}
	if err := p.store.SaveEncoderDiscovery(ctx, discovery.HostFingerprint, payload); err != nil {
		p.logger.Debug("encoder discovery cache write failed", logging.Error(err))
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
