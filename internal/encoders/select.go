package encoders

import (
	"errors"
	"fmt"
)

// ErrNoUsableEncoder is returned when discovery found nothing that works.
var ErrNoUsableEncoder = errors.New("no usable video encoder")

// Request describes the encoder a run asks for. Encoder, when set, names an
// exact encoder; otherwise Family and PreferHardware drive the choice.
type Request struct {
	Family         Family
	Encoder        string
	PreferHardware bool
}

func (r Request) String() string {
	if r.Encoder != "" {
		return r.Encoder
	}
	if r.PreferHardware {
		return string(r.Family) + " (hardware)"
	}
	return string(r.Family)
}

// Substitution records that a different encoder than requested was chosen.
type Substitution struct {
	Requested string `json:"requested"`
	Selected  string `json:"selected"`
	Reason    string `json:"reason"`
}

func (s Substitution) String() string {
	return fmt.Sprintf("requested %s, using %s: %s", s.Requested, s.Selected, s.Reason)
}

// Select picks a usable profile for req from ranked profiles. It never
// returns an unusable profile.
func Select(profiles []Profile, req Request) (Profile, *Substitution, error) {
	family := req.Family
	reason := ""
	if req.Encoder != "" {
		for _, p := range profiles {
			if p.Name != req.Encoder {
				continue
			}
			if p.Usable {
				return p, nil, nil
			}
			reason = p.Reason
		}
		if reason == "" {
			reason = "not available in this ffmpeg build"
		}
		if c, ok := lookupCandidate(req.Encoder); ok && family == "" {
			family = c.family
		}
	}

	substitute := func(p Profile, why string) (Profile, *Substitution, error) {
		return p, &Substitution{Requested: req.String(), Selected: p.Name, Reason: why}, nil
	}

	if req.Encoder == "" && req.PreferHardware {
		if p, ok := first(profiles, func(p Profile) bool { return p.Family == family && p.Hardware }); ok {
			return p, nil, nil
		}
		reason = "no usable hardware encoder for " + string(family)
	}
	if p, ok := first(profiles, func(p Profile) bool { return p.Family == family && !p.Hardware }); ok {
		if reason == "" {
			return p, nil, nil
		}
		return substitute(p, reason)
	}
	if p, ok := first(profiles, func(p Profile) bool { return p.Family == family }); ok {
		if reason == "" {
			reason = "software encoder for " + string(family) + " is unusable"
		}
		return substitute(p, reason)
	}
	if p, ok := first(profiles, func(Profile) bool { return true }); ok {
		if reason == "" {
			reason = "no usable encoder for " + string(family)
		} else {
			reason += "; no usable encoder for " + string(family)
		}
		return substitute(p, reason)
	}
	return Profile{}, nil, ErrNoUsableEncoder
}

func first(profiles []Profile, match func(Profile) bool) (Profile, bool) {
	for _, p := range profiles {
		if p.Usable && match(p) {
			return p, true
		}
	}
	return Profile{}, false
}
