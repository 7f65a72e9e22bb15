// Package project loads and saves slidecast project files.
//
// A project file is TOML holding everything needed to reproduce a render: the
// document and output paths, the global parameters, and one [[slides]] entry
// per document page in page order. Saving stamps an integrity hash over the
// canonical encoding so hand edits can be flagged on the next load.
package project

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"

	"slidecast/internal/services"
)

// FileExtension is the conventional project file suffix.
const FileExtension = ".slidecast.toml"

// Paths names the source document and the export target. Relative values
// resolve against the project file's directory.
type Paths struct {
	Document string `toml:"document" validate:"required"`
	Output   string `toml:"output,omitempty"`
}

// Slide is the material assignment of one page.
type Slide struct {
	Material     string   `toml:"material" validate:"oneof=silent audio video"`
	Media        string   `toml:"media,omitempty" validate:"required_unless=Material silent"`
	AudioStream  int      `toml:"audio_stream,omitempty" validate:"gte=0"`
	Duration     float64  `toml:"duration,omitempty" validate:"gte=0"`
	Trim         string   `toml:"trim,omitempty" validate:"omitempty,oneof=none cut pad"`
	ChapterTitle string   `toml:"chapter_title,omitempty"`
	PHash        string   `toml:"phash,omitempty"`
	Position     string   `toml:"position,omitempty" validate:"omitempty,position"`
	Scale        int      `toml:"scale,omitempty" validate:"omitempty,min=5,max=100"`
	Effects      []string `toml:"effects,omitempty" validate:"dive,effect"`
}

// Project is the decoded project file.
type Project struct {
	IntegrityHash string     `toml:"integrity_hash,omitempty"`
	Paths         Paths      `toml:"paths"`
	Parameters    Parameters `toml:"parameters"`
	Slides        []Slide    `toml:"slides" validate:"dive"`

	// Warnings collects non-fatal findings from Load.
	Warnings []string `toml:"-"`

	path string
}

// Path returns the file the project was loaded from or last saved to.
func (p *Project) Path() string {
	return p.path
}

// Dir returns the directory relative paths resolve against.
func (p *Project) Dir() string {
	if p.path == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	return filepath.Dir(p.path)
}

// Load reads, decodes, and validates the project at path. A missing or
// mismatching integrity hash is reported in Warnings; loading proceeds.
func Load(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "resolve path", "", err)
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "project", "read", fmt.Sprintf("no project file at %s", abs), err)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "project", "read", "", err)
	}

	var p Project
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return nil, services.Wrap(services.ErrValidation, "project", "parse", abs, err)
	}
	p.path = abs

	if problems := p.Problems(); len(problems) > 0 {
		return nil, services.Wrap(services.ErrValidation, "project", "validate", strings.Join(problems, "; "), nil)
	}

	switch hash, err := p.Hash(); {
	case err != nil:
		return nil, services.Wrap(services.ErrValidation, "project", "hash", "", err)
	case p.IntegrityHash == "":
		p.Warnings = append(p.Warnings, "project has no integrity hash; it was not saved by slidecast")
	case p.IntegrityHash != hash:
		p.Warnings = append(p.Warnings, "integrity hash mismatch; the project was edited by hand")
	}
	return &p, nil
}

// Hash returns the sha256 of the canonical encoding with the hash field
// cleared.
func (p *Project) Hash() (string, error) {
	canonical := *p
	canonical.IntegrityHash = ""
	canonical.Warnings = nil
	data, err := toml.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("encode project: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Save stamps the integrity hash and writes the project atomically to path.
func (p *Project) Save(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}
	hash, err := p.Hash()
	if err != nil {
		return err
	}
	p.IntegrityHash = hash
	data, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	if err := renameio.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	p.path = abs
	return nil
}

// DocumentPath returns the absolute document path.
func (p *Project) DocumentPath() string {
	return p.resolve(p.Paths.Document)
}

// OutputPath returns the absolute output path. It defaults to the document
// name with an .mp4 extension next to the project file.
func (p *Project) OutputPath() string {
	if strings.TrimSpace(p.Paths.Output) != "" {
		return p.resolve(p.Paths.Output)
	}
	base := filepath.Base(p.Paths.Document)
	return filepath.Join(p.Dir(), strings.TrimSuffix(base, filepath.Ext(base))+".mp4")
}

// MediaPaths lists the resolved media files the slides reference.
func (p *Project) MediaPaths() []string {
	var out []string
	for _, s := range p.Slides {
		if s.Material != "silent" && s.Media != "" {
			out = append(out, p.resolve(s.Media))
		}
	}
	return out
}

func (p *Project) resolve(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || filepath.IsAbs(value) {
		return value
	}
	if strings.HasPrefix(value, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, value[2:])
		}
	}
	return filepath.Join(p.Dir(), value)
}

// relativeTo expresses target relative to dir when it lies beneath it.
func relativeTo(dir, target string) string {
	rel, err := filepath.Rel(dir, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return target
	}
	return rel
}
