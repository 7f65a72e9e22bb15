package encoders

import (
	"strconv"
	"strings"
)

// Family is a codec family a user can request.
type Family string

const (
	FamilyMPEG4 Family = "mpeg4"
	FamilyH264  Family = "h264"
	FamilyHEVC  Family = "hevc"
	FamilyAV1   Family = "av1"
)

// Families lists the supported families in display order.
var Families = []Family{FamilyH264, FamilyHEVC, FamilyAV1, FamilyMPEG4}

// ParseFamily accepts family names and a few common aliases.
func ParseFamily(value string) (Family, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "h264", "h.264", "avc":
		return FamilyH264, true
	case "hevc", "h265", "h.265":
		return FamilyHEVC, true
	case "av1":
		return FamilyAV1, true
	case "mpeg4", "mpeg-4":
		return FamilyMPEG4, true
	}
	return "", false
}

// Vendor identifies the hardware backend of an encoder.
type Vendor string

const (
	VendorSoftware     Vendor = "software"
	VendorNvidia       Vendor = "nvidia"
	VendorIntel        Vendor = "intel"
	VendorAMD          Vendor = "amd"
	VendorVideoToolbox Vendor = "videotoolbox"
)

type candidate struct {
	name   string
	family Family
	vendor Vendor
}

// candidates are listed software first within each family; ranking moves
// hardware ahead afterwards.
var candidates = []candidate{
	{"mpeg4", FamilyMPEG4, VendorSoftware},
	{"libx264", FamilyH264, VendorSoftware},
	{"h264_nvenc", FamilyH264, VendorNvidia},
	{"h264_qsv", FamilyH264, VendorIntel},
	{"h264_amf", FamilyH264, VendorAMD},
	{"h264_videotoolbox", FamilyH264, VendorVideoToolbox},
	{"libx265", FamilyHEVC, VendorSoftware},
	{"hevc_nvenc", FamilyHEVC, VendorNvidia},
	{"hevc_qsv", FamilyHEVC, VendorIntel},
	{"hevc_amf", FamilyHEVC, VendorAMD},
	{"hevc_videotoolbox", FamilyHEVC, VendorVideoToolbox},
	{"libaom-av1", FamilyAV1, VendorSoftware},
	{"av1_nvenc", FamilyAV1, VendorNvidia},
	{"av1_qsv", FamilyAV1, VendorIntel},
	{"av1_amf", FamilyAV1, VendorAMD},
}

func lookupCandidate(name string) (candidate, bool) {
	for _, c := range candidates {
		if c.name == name {
			return c, true
		}
	}
	return candidate{}, false
}

// Settings are the fixed codec-specific arguments for an encoder.
type Settings struct {
	Profile    string
	Level      string
	Preset     string
	PresetFlag string
	Extra      []string
	// QualityFlag is the constant-quality option: -crf, -qp, or -q:v.
	QualityFlag string
	// TwoPass reports whether the encoder supports -pass 1/2 encodes.
	TwoPass bool
}

// SettingsFor returns the settings for an encoder name.
func SettingsFor(name string) Settings {
	s := Settings{PresetFlag: "-preset", QualityFlag: "-crf", TwoPass: true}
	switch name {
	case "libx264":
		s.Profile, s.Level, s.Preset = "high", "4.0", "medium"
	case "h264_nvenc":
		s.Profile, s.Preset = "high", "p5"
	case "h264_qsv":
		s.Profile, s.Preset = "high", "medium"
	case "h264_amf":
		s.Profile, s.Preset, s.PresetFlag = "high", "quality", "-quality"
	case "h264_videotoolbox":
		s.Profile = "high"
	case "libx265":
		s.Profile, s.Preset = "main", "medium"
	case "hevc_nvenc":
		s.Profile, s.Preset = "main", "p5"
	case "hevc_qsv":
		s.Profile, s.Preset = "main", "slow"
	case "hevc_amf":
		s.Profile, s.Preset, s.PresetFlag = "main", "quality", "-quality"
	case "hevc_videotoolbox":
		s.Profile = "main"
	case "libaom-av1":
		s.Profile = "main"
		s.Extra = []string{"-cpu-used", "7"}
	case "av1_nvenc":
		s.Preset = "p5"
	case "av1_qsv":
		s.Preset = "medium"
	case "av1_amf":
		s.Preset, s.PresetFlag = "quality", "-quality"
	case "mpeg4":
		s.QualityFlag = "-q:v"
	}
	switch {
	case strings.HasSuffix(name, "_nvenc"), strings.HasSuffix(name, "_qsv"), strings.HasSuffix(name, "_amf"):
		s.QualityFlag = "-qp"
	case strings.HasSuffix(name, "_videotoolbox"):
		s.TwoPass = false
	}
	return s
}

// Args renders the profile, level, preset, and extra arguments.
func (s Settings) Args() []string {
	var args []string
	if s.Profile != "" {
		args = append(args, "-profile:v", s.Profile)
	}
	if s.Level != "" {
		args = append(args, "-level", s.Level)
	}
	if s.Preset != "" {
		args = append(args, s.PresetFlag, s.Preset)
	}
	return append(args, s.Extra...)
}

// QualityArgs renders the constant-quality option for a 0-51 quality value.
// mpeg4 has no CRF mode, so the value is mapped onto its 1-31 qscale range.
func (s Settings) QualityArgs(value int) []string {
	if s.QualityFlag == "-q:v" {
		q := 1 + value*30/51
		return []string{"-q:v", strconv.Itoa(min(31, max(1, q)))}
	}
	return []string{s.QualityFlag, strconv.Itoa(value)}
}
