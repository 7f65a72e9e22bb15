package encoders

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"slidecast/internal/testsupport"
)

const fakeFFmpeg = `#!/bin/sh
for a; do
  case "$a" in
    -version) echo "ffmpeg version 7.1-test Copyright"; exit 0 ;;
    -encoders)
      cat <<'EOT'
Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D mpeg4                MPEG-4 part 2
 V....D libx264              libx264 H.264 / AVC
 V....D libx265              libx265 H.265 / HEVC
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder
 V..... h264_qsv             H.264 (Intel Quick Sync Video acceleration)
 V....D h264_videotoolbox    VideoToolbox H.264 Encoder
 A....D aac                  AAC (Advanced Audio Coding)
 V....D hevc_nvenc           NVIDIA NVENC hevc encoder
 V..... hevc_qsv             HEVC (Intel Quick Sync Video acceleration)
EOT
      exit 0 ;;
  esac
done
enc=""
prev=""
for a; do
  if [ "$prev" = "-c:v" ]; then enc="$a"; fi
  prev="$a"
done
echo "$enc" >> "LOGFILE"
case "$enc" in
  h264_nvenc) echo "Cannot load libcuda.so.1" >&2; exit 1 ;;
  hevc_qsv) echo "Error creating a MFX session" >&2; exit 1 ;;
esac
for last; do :; done
echo data > "$last"
`

func newTestProber(t *testing.T, withStore bool) (*Prober, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	logFile := filepath.Join(testsupport.BaseDir(cfg), "encodes.log")
	bin := testsupport.WriteScript(t, filepath.Join(testsupport.BaseDir(cfg), "bin", "ffmpeg"),
		strings.TrimPrefix(strings.ReplaceAll(fakeFFmpeg, "LOGFILE", logFile), "#!/bin/sh\n"))
	cfg.Tools.FFmpeg = bin
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	p := NewProber(cfg, nil, nil)
	if withStore {
		p = NewProber(cfg, testsupport.MustOpenStore(t, cfg), nil)
	}
	p.goos = "linux"
	return p, logFile
}

func testedEncoders(t *testing.T, logFile string) []string {
	t.Helper()
	data, err := os.ReadFile(logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	return strings.Fields(string(data))
}

func names(profiles []Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.Name)
	}
	return out
}

func TestDiscoverValidatesAndRanks(t *testing.T) {
	p, logFile := newTestProber(t, false)
	discovery, err := p.Discover(context.Background(), false)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if discovery.FFmpegVersion != "ffmpeg version 7.1-test Copyright" {
		t.Fatalf("unexpected version %q", discovery.FFmpegVersion)
	}

	wantRanked := []string{"h264_nvenc", "h264_qsv", "hevc_nvenc", "hevc_qsv", "mpeg4", "libx264", "libx265"}
	if diff := cmp.Diff(wantRanked, names(discovery.Profiles)); diff != "" {
		t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}
	wantUsable := []string{"h264_qsv", "mpeg4", "libx264", "libx265"}
	if diff := cmp.Diff(wantUsable, names(discovery.Usable())); diff != "" {
		t.Fatalf("usable mismatch (-want +got):\n%s", diff)
	}

	// hevc_nvenc is skipped because its vendor's H.264 encoder failed.
	wantTested := []string{"mpeg4", "libx264", "h264_nvenc", "h264_qsv", "libx265", "hevc_qsv"}
	if diff := cmp.Diff(wantTested, testedEncoders(t, logFile)); diff != "" {
		t.Fatalf("tested encoders mismatch (-want +got):\n%s", diff)
	}
	for _, profile := range discovery.Profiles {
		switch profile.Name {
		case "hevc_nvenc":
			if !strings.HasPrefix(profile.Reason, "vendor unavailable") {
				t.Fatalf("unexpected hevc_nvenc reason %q", profile.Reason)
			}
		case "h264_nvenc":
			if profile.Reason != "Cannot load libcuda.so.1" {
				t.Fatalf("unexpected h264_nvenc reason %q", profile.Reason)
			}
		}
	}
}

func TestDiscoverUsesHostCache(t *testing.T) {
	p, logFile := newTestProber(t, true)
	first, err := p.Discover(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	tested := len(testedEncoders(t, logFile))

	second, err := p.Discover(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached {
		t.Fatal("expected cached discovery")
	}
	if got := len(testedEncoders(t, logFile)); got != tested {
		t.Fatalf("expected no new test encodes, got %d (was %d)", got, tested)
	}
	if diff := cmp.Diff(first.Profiles, second.Profiles); diff != "" {
		t.Fatalf("cached profiles differ:\n%s", diff)
	}

	if _, err := p.Discover(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if got := len(testedEncoders(t, logFile)); got != 2*tested {
		t.Fatalf("expected refresh to re-test, got %d encodes", got)
	}
}

func TestDiscoverDarwinUsesVideoToolboxOnly(t *testing.T) {
	p, logFile := newTestProber(t, false)
	p.goos = "darwin"
	discovery, err := p.Discover(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	for _, profile := range discovery.Profiles {
		if profile.Vendor == VendorNvidia || profile.Vendor == VendorIntel {
			t.Fatalf("unexpected %s on darwin", profile.Name)
		}
	}
	if tested := testedEncoders(t, logFile); !strings.Contains(strings.Join(tested, " "), "h264_videotoolbox") {
		t.Fatalf("expected videotoolbox to be tested, got %v", tested)
	}
}

func TestSelect(t *testing.T) {
	profiles := []Profile{
		{Name: "h264_nvenc", Family: FamilyH264, Hardware: true, Reason: "Cannot load libcuda.so.1"},
		{Name: "h264_qsv", Family: FamilyH264, Hardware: true, Usable: true},
		{Name: "hevc_qsv", Family: FamilyHEVC, Hardware: true, Reason: "Error creating a MFX session"},
		{Name: "libx264", Family: FamilyH264, Usable: true},
		{Name: "libx265", Family: FamilyHEVC, Usable: true},
	}

	tests := []struct {
		name     string
		req      Request
		want     string
		wantSubs *Substitution
	}{
		{"hardware h264", Request{Family: FamilyH264, PreferHardware: true}, "h264_qsv", nil},
		{"software h264", Request{Family: FamilyH264}, "libx264", nil},
		{"exact usable", Request{Encoder: "h264_qsv"}, "h264_qsv", nil},
		{"exact unusable", Request{Encoder: "h264_nvenc"}, "libx264",
			&Substitution{Requested: "h264_nvenc", Selected: "libx264", Reason: "Cannot load libcuda.so.1"}},
		{"hardware hevc unusable", Request{Family: FamilyHEVC, PreferHardware: true}, "libx265",
			&Substitution{Requested: "hevc (hardware)", Selected: "libx265", Reason: "no usable hardware encoder for hevc"}},
		{"missing family", Request{Family: FamilyAV1}, "h264_qsv",
			&Substitution{Requested: "av1", Selected: "h264_qsv", Reason: "no usable encoder for av1"}},
		{"not built", Request{Encoder: "av1_nvenc"}, "h264_qsv",
			&Substitution{Requested: "av1_nvenc", Selected: "h264_qsv", Reason: "not available in this ffmpeg build; no usable encoder for av1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, subs, err := Select(profiles, tt.req)
			if err != nil {
				t.Fatalf("Select failed: %v", err)
			}
			if got.Name != tt.want || !got.Usable {
				t.Fatalf("selected %+v, want %s", got, tt.want)
			}
			if diff := cmp.Diff(tt.wantSubs, subs); diff != "" {
				t.Fatalf("substitution mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, _, err := Select(nil, Request{Family: FamilyH264}); !errors.Is(err, ErrNoUsableEncoder) {
		t.Fatalf("expected ErrNoUsableEncoder, got %v", err)
	}
}

func TestSettingsArgs(t *testing.T) {
	tests := []struct {
		encoder string
		args    string
		quality string
		twoPass bool
	}{
		{"libx264", "-profile:v high -level 4.0 -preset medium", "-crf 23", true},
		{"h264_nvenc", "-profile:v high -preset p5", "-qp 23", true},
		{"hevc_amf", "-profile:v main -quality quality", "-qp 23", true},
		{"h264_videotoolbox", "-profile:v high", "-crf 23", false},
		{"libaom-av1", "-profile:v main -cpu-used 7", "-crf 23", true},
		{"mpeg4", "", "-q:v 14", true},
	}
	for _, tt := range tests {
		s := SettingsFor(tt.encoder)
		if got := strings.Join(s.Args(), " "); got != tt.args {
			t.Errorf("%s args = %q, want %q", tt.encoder, got, tt.args)
		}
		if got := strings.Join(s.QualityArgs(23), " "); got != tt.quality {
			t.Errorf("%s quality = %q, want %q", tt.encoder, got, tt.quality)
		}
		if s.TwoPass != tt.twoPass {
			t.Errorf("%s two-pass = %v", tt.encoder, s.TwoPass)
		}
	}
}

func TestParseFamily(t *testing.T) {
	if f, ok := ParseFamily("H.265"); !ok || f != FamilyHEVC {
		t.Fatalf("unexpected %q %v", f, ok)
	}
	if _, ok := ParseFamily("vp9"); ok {
		t.Fatal("vp9 is not supported")
	}
}
